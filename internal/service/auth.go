package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/gestorhq/portal-api/internal/domain/auth"
	"github.com/gestorhq/portal-api/internal/domain/model"
	apperrors "github.com/gestorhq/portal-api/internal/errors"
	"github.com/gestorhq/portal-api/internal/ports"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Credentials *CredentialsService
	Lockout     *LockoutService
	Audit       *AuditService
	Sessions    ports.SessionStore
	// SessionTTL is the sliding-expiry window for new sessions.
	// Defaults to 7 days.
	SessionTTL time.Duration
	Logger     *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// AuthService orchestrates login, logout, and the other audited account
// operations. Every attempt leaves an audit event regardless of outcome.
type AuthService struct {
	credentials *CredentialsService
	lockout     *LockoutService
	audit       *AuditService
	sessions    ports.SessionStore
	sessionTTL  time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AuthService{
		credentials: opts.Credentials,
		lockout:     opts.Lockout,
		audit:       opts.Audit,
		sessions:    opts.Sessions,
		sessionTTL:  opts.SessionTTL,
		logger:      opts.Logger,
		now:         opts.Now,
	}
}

// Register creates a new account and immediately opens a session for it, so
// a fresh registrant does not have to log in separately.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.Principal, *domainauth.Session, error) {
	p, err := s.credentials.Register(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	sess, err := s.openSession(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	return p, sess, nil
}

// LoginInput groups parameters for Login.
type LoginInput struct {
	Email    string
	Password string
	Meta     model.RequestMeta
}

// Login verifies credentials and opens a session. Rejections are uniform:
// unknown account and wrong password produce the same error. A locked
// account is the one distinguishable failure.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*domainauth.Session, error) {
	p, ok, err := s.credentials.VerifyPassword(ctx, in.Email, in.Password)
	if err != nil {
		if apperrors.IsValidation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	if p == nil {
		s.auditLoginFailure(ctx, nil, in, model.LoginFailedDetail{
			Reason: "unknown account",
		})
		return nil, apperrors.InvalidCredentials()
	}

	locked, err := s.lockout.IsLocked(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if locked {
		s.auditLoginFailure(ctx, p, in, model.LoginFailedDetail{
			Reason:         "account locked",
			PrincipalKnown: true,
		})
		return nil, apperrors.AccountLocked()
	}

	if !ok {
		lockedNow, err := s.lockout.NoteFailure(ctx, p, in.Meta)
		if err != nil {
			return nil, err
		}
		if lockedNow {
			return nil, apperrors.AccountLocked()
		}
		return nil, apperrors.InvalidCredentials()
	}

	if p.Status != model.PrincipalActive {
		s.auditLoginFailure(ctx, p, in, model.LoginFailedDetail{
			Reason:         "account inactive",
			PrincipalKnown: true,
		})
		return nil, apperrors.InvalidCredentials()
	}

	sess, err := s.openSession(ctx, p)
	if err != nil {
		return nil, err
	}

	evt := model.NewEvent(model.EventLoginSuccess, model.OutcomeSuccess)
	evt.PrincipalID = &p.ID
	evt.Email = &p.Email
	evt.IP = in.Meta.IP
	evt.UserAgent = in.Meta.UserAgent
	s.audit.RecordBestEffort(ctx, evt)

	return sess, nil
}

func (s *AuthService) openSession(ctx context.Context, p *model.Principal) (*domainauth.Session, error) {
	now := s.now().UTC()
	sess := domainauth.Session{
		ID:          uuid.NewString(),
		PrincipalID: p.ID,
		Name:        p.Name,
		Email:       p.Email,
		Role:        p.Role,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "save session")
	}
	return &sess, nil
}

// GetSession resolves a session ID, extending its expiry as a side effect.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, apperrors.Unauthorized("session required")
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			return nil, apperrors.Unauthorized("session expired or invalid")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "get session")
	}
	return &sess, nil
}

// Logout deletes the session. Logging out an already-dead session is fine.
func (s *AuthService) Logout(ctx context.Context, sess *domainauth.Session, meta model.RequestMeta) error {
	if sess == nil || sess.ID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "delete session")
	}

	evt := model.NewEvent(model.EventLogout, model.OutcomeSuccess)
	evt.PrincipalID = &sess.PrincipalID
	evt.Email = &sess.Email
	evt.IP = meta.IP
	evt.UserAgent = meta.UserAgent
	s.audit.RecordBestEffort(ctx, evt)
	return nil
}

// ChangePassword replaces the caller's password and revokes every other
// session the principal holds. The current session survives.
func (s *AuthService) ChangePassword(ctx context.Context, sess *domainauth.Session, current, next string, meta model.RequestMeta) error {
	err := s.credentials.ChangePassword(ctx, sess.PrincipalID, current, next)

	evt := model.NewEvent(model.EventPasswordChanged, model.OutcomeSuccess)
	evt.PrincipalID = &sess.PrincipalID
	evt.Email = &sess.Email
	evt.IP = meta.IP
	evt.UserAgent = meta.UserAgent
	if err != nil {
		evt.Outcome = model.OutcomeFailure
		s.audit.RecordBestEffort(ctx, evt)
		return err
	}
	s.audit.RecordBestEffort(ctx, evt)

	// Old sessions may be on stolen credentials; drop them all, then
	// re-establish the current one.
	if err := s.sessions.DeleteByPrincipal(ctx, sess.PrincipalID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "revoke sessions")
	}
	if err := s.sessions.Save(ctx, *sess); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "restore session")
	}
	return nil
}

// Unlock clears a lockout on the account with the given email on behalf of
// an administrator. Returns the unlocked principal.
func (s *AuthService) Unlock(ctx context.Context, admin *domainauth.Session, email string, meta model.RequestMeta) (*model.Principal, error) {
	p, err := s.credentials.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.lockout.Unlock(ctx, p, admin.PrincipalID, meta); err != nil {
		return nil, err
	}
	return p, nil
}

// RecordAccessDenied audits a request that failed an authorization check.
func (s *AuthService) RecordAccessDenied(ctx context.Context, sess *domainauth.Session, detail model.AccessDeniedDetail, meta model.RequestMeta) {
	evt := model.NewEvent(model.EventAccessDenied, model.OutcomeFailure)
	if sess != nil {
		evt.PrincipalID = &sess.PrincipalID
		evt.Email = &sess.Email
	}
	evt.IP = meta.IP
	evt.UserAgent = meta.UserAgent
	evt.Detail = detail
	s.audit.RecordBestEffort(ctx, evt)
}

func (s *AuthService) auditLoginFailure(ctx context.Context, p *model.Principal, in LoginInput, detail model.LoginFailedDetail) {
	evt := model.NewEvent(model.EventLoginFailed, model.OutcomeFailure)
	if p != nil {
		evt.PrincipalID = &p.ID
		evt.Email = &p.Email
	} else if in.Email != "" {
		// Unknown accounts still leave the attempted address in the
		// trail so enumeration and stuffing runs show up per address.
		attempted := in.Email
		if norm, err := model.NormalizeEmail(in.Email); err == nil {
			attempted = norm
		}
		evt.Email = &attempted
	}
	evt.IP = in.Meta.IP
	evt.UserAgent = in.Meta.UserAgent
	evt.Detail = detail
	s.audit.RecordBestEffort(ctx, evt)
}
