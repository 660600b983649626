package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gestorhq/portal-api/internal/domain/model"
	apperrors "github.com/gestorhq/portal-api/internal/errors"
	"github.com/gestorhq/portal-api/internal/ports"
)

// LockoutServiceOptions groups dependencies for LockoutService.
type LockoutServiceOptions struct {
	Events ports.SecurityEventStore
	Audit  *AuditService
	// Sessions is used to revoke a principal's sessions when it gets
	// locked. Optional.
	Sessions ports.SessionStore
	// MaxFailedAttempts before a lock. Defaults to 5.
	MaxFailedAttempts int
	// FailureWindow within which failures count toward the limit.
	// Defaults to 15 minutes.
	FailureWindow time.Duration
	// Now overrides the clock in tests.
	Now    func() time.Time
	Logger *slog.Logger
}

// LockoutService derives account lock state from the audit event stream.
// There is no separate lock flag anywhere: an account is locked exactly
// when its most recent lock-state event is account_locked. Locks never
// expire on their own; only an explicit unlock clears them.
type LockoutService struct {
	events      ports.SecurityEventStore
	audit       *AuditService
	sessions    ports.SessionStore
	maxAttempts int
	window      time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewLockoutService constructs a new LockoutService.
func NewLockoutService(opts LockoutServiceOptions) *LockoutService {
	if opts.MaxFailedAttempts <= 0 {
		opts.MaxFailedAttempts = 5
	}
	if opts.FailureWindow <= 0 {
		opts.FailureWindow = 15 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LockoutService{
		events:      opts.Events,
		audit:       opts.Audit,
		sessions:    opts.Sessions,
		maxAttempts: opts.MaxFailedAttempts,
		window:      opts.FailureWindow,
		now:         opts.Now,
		logger:      opts.Logger,
	}
}

// IsLocked reports whether the principal is currently locked.
func (s *LockoutService) IsLocked(ctx context.Context, principalID string) (bool, error) {
	latest, err := s.events.LatestLockState(ctx, principalID)
	if err != nil {
		return false, fmt.Errorf("lock state: %w", err)
	}
	return latest != nil && latest.Type == model.EventAccountLocked, nil
}

// NoteFailure records a failed login for the principal and locks the
// account when the failure pushes the windowed count to the limit.
// Returns true when this failure triggered a lock.
func (s *LockoutService) NoteFailure(ctx context.Context, p *model.Principal, meta model.RequestMeta) (bool, error) {
	failEvt := model.NewEvent(model.EventLoginFailed, model.OutcomeFailure)
	failEvt.PrincipalID = &p.ID
	failEvt.Email = &p.Email
	failEvt.IP = meta.IP
	failEvt.UserAgent = meta.UserAgent

	since := s.now().Add(-s.window)
	count, err := s.events.CountFailedLogins(ctx, p.ID, since)
	if err != nil {
		return false, fmt.Errorf("count failures: %w", err)
	}
	count++ // this failure

	failEvt.Detail = model.LoginFailedDetail{
		Reason:         "password mismatch",
		FailedCount:    count,
		PrincipalKnown: true,
	}
	// Best-effort: a failed audit insert must not turn a wrong password
	// into a storage error for the caller. Lock and unlock events still
	// propagate because they are the lock state itself.
	s.audit.RecordBestEffort(ctx, failEvt)

	if count < s.maxAttempts {
		return false, nil
	}

	lockEvt := model.NewEvent(model.EventAccountLocked, model.OutcomeFailure)
	lockEvt.PrincipalID = &p.ID
	lockEvt.Email = &p.Email
	lockEvt.IP = meta.IP
	lockEvt.UserAgent = meta.UserAgent
	lockEvt.Detail = model.AccountLockedDetail{
		FailedCount: count,
		Window:      s.window,
	}
	if _, err := s.audit.Record(ctx, lockEvt); err != nil {
		return false, err
	}

	// A locked account keeps no live sessions. Revocation is best-effort:
	// a Redis hiccup must not undo the lock that was already recorded.
	if s.sessions != nil {
		if err := s.sessions.DeleteByPrincipal(ctx, p.ID); err != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to revoke sessions for locked principal",
				"principal_id", p.ID,
				"err", err,
			)
		}
	}
	return true, nil
}

// Unlock clears a lock on the principal. Only currently-locked accounts can
// be unlocked; the unlock is itself an audited event naming the
// administrator who performed it.
func (s *LockoutService) Unlock(ctx context.Context, p *model.Principal, unlockedBy string, meta model.RequestMeta) error {
	locked, err := s.IsLocked(ctx, p.ID)
	if err != nil {
		return err
	}
	if !locked {
		return apperrors.Validation("account is not locked")
	}

	evt := model.NewEvent(model.EventAccountUnlocked, model.OutcomeSuccess)
	evt.PrincipalID = &p.ID
	evt.Email = &p.Email
	evt.IP = meta.IP
	evt.UserAgent = meta.UserAgent
	evt.Detail = model.AccountUnlockedDetail{UnlockedBy: unlockedBy}
	if _, err := s.audit.Record(ctx, evt); err != nil {
		return err
	}
	return nil
}
