package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gestorhq/portal-api/internal/domain/model"
	apperrors "github.com/gestorhq/portal-api/internal/errors"
	"github.com/gestorhq/portal-api/internal/ports"
)

// CredentialsServiceOptions groups dependencies for CredentialsService.
type CredentialsServiceOptions struct {
	Principals ports.PrincipalStore
	Hasher     ports.PasswordHasher
	Logger     *slog.Logger
}

// CredentialsService manages principal accounts and password verification.
// Password hashes stay inside this service and the data layer; nothing
// above it ever sees one.
type CredentialsService struct {
	principals ports.PrincipalStore
	hasher     ports.PasswordHasher
	logger     *slog.Logger

	// dummyHash is verified against when the account does not exist, so
	// the unknown-account path costs the same as a real verification.
	dummyHash string
}

// NewCredentialsService constructs a new CredentialsService.
func NewCredentialsService(opts CredentialsServiceOptions) (*CredentialsService, error) {
	dummy, err := opts.Hasher.Hash("equalize-timing-for-unknown-accounts")
	if err != nil {
		return nil, fmt.Errorf("derive dummy hash: %w", err)
	}
	return &CredentialsService{
		principals: opts.Principals,
		hasher:     opts.Hasher,
		logger:     opts.Logger,
		dummyHash:  dummy,
	}, nil
}

// Register creates a new account. The data layer decides the role: the
// first account in the system becomes an administrator.
func (s *CredentialsService) Register(ctx context.Context, req model.RegisterRequest) (*model.Principal, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p, err := s.principals.Create(ctx, ports.CreatePrincipalInput{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Address:      req.Address,
		Phone:        req.Phone,
		Company:      req.Company,
		TaxID:        req.TaxID,
	})
	if err != nil {
		return nil, fmt.Errorf("create principal: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "principal registered",
			"principal_id", p.ID,
			"role", p.Role,
		)
	}
	return p, nil
}

// VerifyPassword checks the password for the account. When the account is
// unknown it still performs one hash verification before reporting failure,
// keeping response timing independent of account existence. The boolean is
// false for both unknown accounts and wrong passwords.
func (s *CredentialsService) VerifyPassword(ctx context.Context, email, password string) (*model.Principal, bool, error) {
	email, err := model.NormalizeEmail(email)
	if err != nil {
		return nil, false, err
	}

	creds, err := s.principals.GetCredentials(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			_, _ = s.hasher.Verify(password, s.dummyHash)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load credentials: %w", err)
	}

	ok, err := s.hasher.Verify(password, creds.Hash)
	if err != nil {
		return nil, false, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		p := creds.Principal
		return &p, false, nil
	}

	s.maybeRehash(ctx, creds, password)
	p := creds.Principal
	return &p, true, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *CredentialsService) ChangePassword(ctx context.Context, principalID, current, next string) error {
	if len(next) < model.MinPasswordLength {
		return apperrors.ValidationField("password", "password must be at least 6 characters")
	}

	p, err := s.principals.GetByID(ctx, principalID)
	if err != nil {
		return fmt.Errorf("load principal: %w", err)
	}

	creds, err := s.principals.GetCredentials(ctx, p.Email)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	ok, err := s.hasher.Verify(current, creds.Hash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return apperrors.InvalidCredentials()
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.principals.UpdatePasswordHash(ctx, principalID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// GetByID returns the principal.
func (s *CredentialsService) GetByID(ctx context.Context, id string) (*model.Principal, error) {
	return s.principals.GetByID(ctx, id)
}

// GetByEmail returns the principal with the given email.
func (s *CredentialsService) GetByEmail(ctx context.Context, email string) (*model.Principal, error) {
	email, err := model.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.principals.GetByEmail(ctx, email)
}

// UpdateProfile updates the non-security profile fields.
func (s *CredentialsService) UpdateProfile(ctx context.Context, id string, req model.UpdateProfileRequest) (*model.Principal, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p, err := s.principals.UpdateProfile(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}

// List returns principals, newest first.
func (s *CredentialsService) List(ctx context.Context, opts model.ListOptions) ([]model.Principal, error) {
	return s.principals.List(ctx, opts)
}

// maybeRehash upgrades the stored hash after a successful login when the
// hasher supports cost introspection and the stored hash is weaker than
// current settings. Failure here is logged and otherwise ignored.
func (s *CredentialsService) maybeRehash(ctx context.Context, creds *ports.Credentials, password string) {
	type rehashChecker interface {
		NeedsRehash(encoded string) (bool, error)
	}
	rc, ok := s.hasher.(rehashChecker)
	if !ok {
		return
	}
	needs, err := rc.NeedsRehash(creds.Hash)
	if err != nil || !needs {
		return
	}

	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.principals.UpdatePasswordHash(ctx, creds.Principal.ID, hash)
	}
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "password rehash failed",
			"principal_id", creds.Principal.ID,
			"err", err,
		)
	}
}
