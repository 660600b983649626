package ports

// Package ports defines interfaces (hexagonal ports) for auth and security
// behavior. Implementations live in internal/adapters and internal/data;
// orchestration in internal/service.

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/gestorhq/portal-api/internal/domain/auth"
	"github.com/gestorhq/portal-api/internal/domain/model"
)

// ErrSessionNotFound is returned by SessionStore implementations when the
// session does not exist or has expired.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists and retrieves user sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	// Get returns the session and extends its expiry by the configured TTL.
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
	// DeleteByPrincipal removes every live session owned by the principal.
	DeleteByPrincipal(ctx context.Context, principalID string) error
}

// PasswordHasher derives and verifies password hashes. Implementations must
// be constant-time on the verify path.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// CreatePrincipalInput carries the persisted fields for a new principal.
// Role is decided inside the store so the first-account check and the insert
// share one transaction.
type CreatePrincipalInput struct {
	Name         string
	Email        string
	PasswordHash string
	Address      string
	Phone        string
	Company      *string
	TaxID        *string
}

// Credentials pairs a principal with its stored password hash. It only
// exists on the login verification path and is never serialized.
type Credentials struct {
	Principal model.Principal
	Hash      string
}

// PrincipalStore persists principal accounts.
type PrincipalStore interface {
	Create(ctx context.Context, in CreatePrincipalInput) (*model.Principal, error)
	GetByID(ctx context.Context, id string) (*model.Principal, error)
	GetByEmail(ctx context.Context, email string) (*model.Principal, error)
	// GetCredentials returns the principal together with its password hash.
	GetCredentials(ctx context.Context, email string) (*Credentials, error)
	UpdateProfile(ctx context.Context, id string, req model.UpdateProfileRequest) (*model.Principal, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	List(ctx context.Context, opts model.ListOptions) ([]model.Principal, error)
}

// SecurityEventStore appends to and queries the audit log. Rows are never
// updated or deleted.
type SecurityEventStore interface {
	Insert(ctx context.Context, evt model.SecurityEvent) (*model.SecurityEvent, error)
	List(ctx context.Context, filter model.SecurityEventFilter, opts model.ListOptions) ([]model.SecurityEvent, error)
	Count(ctx context.Context, filter model.SecurityEventFilter) (int64, error)
	// CountFailedLogins counts login_failed events for the principal
	// strictly newer than the cutoff.
	CountFailedLogins(ctx context.Context, principalID string, since time.Time) (int, error)
	// LatestLockState returns the most recent account_locked or
	// account_unlocked event for the principal, or nil if neither exists.
	LatestLockState(ctx context.Context, principalID string) (*model.SecurityEvent, error)
	CountByTypeAndDay(ctx context.Context, since time.Time) ([]model.TypeDayCount, error)
	SuspiciousIPs(ctx context.Context, since time.Time, threshold int) ([]model.SuspiciousIP, error)
	LockedAccounts(ctx context.Context) ([]model.LockedAccount, error)
}

// AlertSink receives fire-and-forget notifications for high-severity
// security events (lockouts, suspicious activity).
type AlertSink interface {
	Notify(ctx context.Context, evt model.SecurityEvent) error
}
