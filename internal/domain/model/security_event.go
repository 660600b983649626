//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"encoding/json"
	"time"

	domainauth "github.com/gestorhq/portal-api/internal/domain/auth"
	apperrors "github.com/gestorhq/portal-api/internal/errors"
)

// EventType identifies the kind of security event recorded in the audit log.
type EventType string

const (
	EventLoginSuccess    EventType = "login_success"
	EventLoginFailed     EventType = "login_failed"
	EventAccountLocked   EventType = "account_locked"
	EventAccountUnlocked EventType = "account_unlocked"
	EventLogout          EventType = "logout"
	EventPasswordChanged EventType = "password_changed"
	EventAccessDenied    EventType = "access_denied"
)

// Valid returns true if the event type is a defined value.
func (t EventType) Valid() bool {
	switch t {
	case EventLoginSuccess, EventLoginFailed, EventAccountLocked,
		EventAccountUnlocked, EventLogout, EventPasswordChanged, EventAccessDenied:
		return true
	}
	return false
}

// Outcome classifies whether the recorded action succeeded or was refused.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Valid returns true if the outcome is a defined value.
func (o Outcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeFailure
}

// EventDetail is implemented by the typed detail payloads attached to
// security events on the write path. The payload is serialized to JSON at
// the storage boundary.
type EventDetail interface {
	EventType() EventType
}

// LoginFailedDetail records why a login attempt was refused.
type LoginFailedDetail struct {
	Reason         string `json:"reason"`
	FailedCount    int    `json:"failed_count,omitempty"`
	PrincipalKnown bool   `json:"principal_known"`
}

func (LoginFailedDetail) EventType() EventType { return EventLoginFailed }

// AccountLockedDetail records the lockout trigger context.
type AccountLockedDetail struct {
	FailedCount int           `json:"failed_count"`
	Window      time.Duration `json:"window_seconds"`
}

// MarshalJSON renders the window in whole seconds so the stored payload is
// readable without knowing Go duration encoding.
func (d AccountLockedDetail) MarshalJSON() ([]byte, error) {
	type alias struct {
		FailedCount int   `json:"failed_count"`
		Window      int64 `json:"window_seconds"`
	}
	return json.Marshal(alias{FailedCount: d.FailedCount, Window: int64(d.Window / time.Second)})
}

func (AccountLockedDetail) EventType() EventType { return EventAccountLocked }

// AccountUnlockedDetail records which administrator cleared the lockout.
type AccountUnlockedDetail struct {
	UnlockedBy string `json:"desbloqueado_por"`
}

func (AccountUnlockedDetail) EventType() EventType { return EventAccountUnlocked }

// AccessDeniedDetail records the resource an authenticated request was
// refused access to.
type AccessDeniedDetail struct {
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	RequiredRole domainauth.Role `json:"required_role,omitempty"`
	Reason       string          `json:"reason"`
}

func (AccessDeniedDetail) EventType() EventType { return EventAccessDenied }

// SecurityEvent is one immutable row in the append-only audit log.
// Detail is set on the write path; RawDetail carries the stored JSON on
// the read path.
type SecurityEvent struct {
	ID          string          `json:"id" db:"id"`
	Type        EventType       `json:"tipo" db:"event_type"`
	Outcome     Outcome         `json:"resultado" db:"outcome"`
	PrincipalID *string         `json:"usuarioId,omitempty" db:"principal_id"`
	Email       *string         `json:"email,omitempty" db:"email"`
	IP          string          `json:"ip" db:"ip"`
	UserAgent   string          `json:"user_agent" db:"user_agent"`
	Detail      EventDetail     `json:"-" db:"-"`
	RawDetail   json.RawMessage `json:"detalle,omitempty" db:"detail"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// NewEvent builds an event ready for insertion. ID and CreatedAt are
// assigned by the audit recorder.
func NewEvent(t EventType, outcome Outcome) SecurityEvent {
	return SecurityEvent{Type: t, Outcome: outcome}
}

// RequestMeta carries the request-scoped fields every audit entry records.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// SecurityEventFilter narrows audit log queries. Zero values mean the
// dimension is not filtered.
type SecurityEventFilter struct {
	Types       []EventType
	Outcome     Outcome
	PrincipalID string
	Email       string
	IP          string
	From        time.Time
	To          time.Time
}

// Validate rejects unknown enum values in the filter.
func (f *SecurityEventFilter) Validate() error {
	for _, t := range f.Types {
		if !t.Valid() {
			return apperrors.ValidationField("tipo", "unknown event type: "+string(t))
		}
	}
	if f.Outcome != "" && !f.Outcome.Valid() {
		return apperrors.ValidationField("resultado", "unknown outcome: "+string(f.Outcome))
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return apperrors.ValidationField("fechaHasta", "range end precedes range start")
	}
	return nil
}

// ListOptions paginates audit log queries. Events are always returned
// newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

// TypeDayCount is one cell of the per-day activity aggregation.
type TypeDayCount struct {
	Day   time.Time `json:"dia" db:"day"`
	Type  EventType `json:"tipo" db:"event_type"`
	Count int64     `json:"total" db:"total"`
}

// SuspiciousIP is a source address whose failed-login volume crossed the
// configured threshold inside the reporting window.
type SuspiciousIP struct {
	IP       string `json:"ip" db:"ip"`
	Failures int64  `json:"fallos" db:"failures"`
}

// LockedAccount describes a principal currently held by the lockout policy.
type LockedAccount struct {
	PrincipalID string    `json:"usuarioId" db:"principal_id"`
	Email       string    `json:"email" db:"email"`
	LockedAt    time.Time `json:"bloqueado_en" db:"locked_at"`
	FailedCount int       `json:"fallos" db:"failed_count"`
}

// SecurityStats is the per-type, per-day activity aggregation for a trailing
// window of days.
type SecurityStats struct {
	Days   int            `json:"dias"`
	Counts []TypeDayCount `json:"estadisticas"`
}

// SecurityOverview is the admin dashboard aggregate. Alerts carries
// human-readable warnings derived from the other sections.
type SecurityOverview struct {
	RecentByTypeDay []TypeDayCount  `json:"estadisticas_recientes"`
	SuspiciousIPs   []SuspiciousIP  `json:"ips_sospechosas"`
	LockedAccounts  []LockedAccount `json:"cuentas_bloqueadas"`
	Alerts          []string        `json:"alertas"`
}
