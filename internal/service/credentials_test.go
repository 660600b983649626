package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestorhq/portal-api/internal/domain/model"
	apperrors "github.com/gestorhq/portal-api/internal/errors"
	mocks "github.com/gestorhq/portal-api/internal/mocks/auth"
)

func newCredentialsService(t *testing.T) (*CredentialsService, *mocks.MemoryPrincipalStore) {
	t.Helper()
	principals := mocks.NewMemoryPrincipalStore()
	svc, err := NewCredentialsService(CredentialsServiceOptions{
		Principals: principals,
		Hasher:     mocks.PlainHasher{},
	})
	require.NoError(t, err)
	return svc, principals
}

func validRegisterRequest() model.RegisterRequest {
	return model.RegisterRequest{
		Name:     "Ana Torres",
		Email:    "ana@acme.mx",
		Password: "s3guridad",
		Address:  "Av. Reforma 100",
		Phone:    "555-0100",
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newCredentialsService(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		mutate    func(*model.RegisterRequest)
		wantField string
	}{
		{"missing name", func(r *model.RegisterRequest) { r.Name = "  " }, "nombre"},
		{"missing email", func(r *model.RegisterRequest) { r.Email = "" }, "email"},
		{"malformed email", func(r *model.RegisterRequest) { r.Email = "not-an-email" }, "email"},
		{"short password", func(r *model.RegisterRequest) { r.Password = "abc" }, "password"},
		{"missing address", func(r *model.RegisterRequest) { r.Address = "" }, "direccion"},
		{"missing phone", func(r *model.RegisterRequest) { r.Phone = "" }, "telefono"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegisterRequest()
			tt.mutate(&req)
			_, err := svc.Register(ctx, req)
			require.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.wantField, apperrors.GetField(err))
		})
	}
}

func TestRegister_NormalizesEmail(t *testing.T) {
	svc, _ := newCredentialsService(t)

	req := validRegisterRequest()
	req.Email = "  ANA@Acme.MX "
	p, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ana@acme.mx", p.Email)
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	svc, _ := newCredentialsService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegisterRequest())
	require.NoError(t, err)

	req := validRegisterRequest()
	req.Email = "ANA@acme.mx" // same account, different case
	_, err = svc.Register(ctx, req)
	require.True(t, apperrors.IsConflict(err))
	assert.Equal(t, "email", apperrors.GetField(err))
}

func TestVerifyPassword_UnknownAccount(t *testing.T) {
	svc, _ := newCredentialsService(t)

	p, ok, err := svc.VerifyPassword(context.Background(), "nadie@acme.mx", "whatever")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.False(t, ok)
}

func TestVerifyPassword_WrongPasswordReturnsPrincipal(t *testing.T) {
	svc, _ := newCredentialsService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, validRegisterRequest())
	require.NoError(t, err)

	p, ok, err := svc.VerifyPassword(ctx, "ana@acme.mx", "wrong")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, created.ID, p.ID)
	assert.False(t, ok)
}

func TestUpdateProfile_RejectsEmptyRequiredField(t *testing.T) {
	svc, _ := newCredentialsService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, validRegisterRequest())
	require.NoError(t, err)

	empty := ""
	_, err = svc.UpdateProfile(ctx, p.ID, model.UpdateProfileRequest{Name: &empty})
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpdateProfile_ClearsOptionalFields(t *testing.T) {
	svc, _ := newCredentialsService(t)
	ctx := context.Background()

	req := validRegisterRequest()
	company := "Acme SA"
	req.Company = &company
	p, err := svc.Register(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, p.Company)

	empty := ""
	updated, err := svc.UpdateProfile(ctx, p.ID, model.UpdateProfileRequest{Company: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.Company)
}

func TestChangePassword_ShortNewPassword(t *testing.T) {
	svc, _ := newCredentialsService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, validRegisterRequest())
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, p.ID, "s3guridad", "abc")
	assert.True(t, apperrors.IsValidation(err))
}
