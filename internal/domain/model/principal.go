//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"net/mail"
	"strings"
	"time"

	domainauth "github.com/gestorhq/portal-api/internal/domain/auth"
	apperrors "github.com/gestorhq/portal-api/internal/errors"
)

// PrincipalStatus represents the lifecycle state of a principal account.
type PrincipalStatus string

const (
	PrincipalActive   PrincipalStatus = "active"
	PrincipalInactive PrincipalStatus = "inactive"
)

// Valid returns true if the status is a defined value.
func (s PrincipalStatus) Valid() bool {
	return s == PrincipalActive || s == PrincipalInactive
}

// Principal represents an account in the portal. The password hash is
// deliberately absent: it never leaves the data layer.
type Principal struct {
	ID        string          `json:"id" db:"id"`
	Name      string          `json:"nombre" db:"name"`
	Email     string          `json:"email" db:"email"`
	Role      domainauth.Role `json:"rol" db:"role"`
	Status    PrincipalStatus `json:"estado" db:"status"`
	Address   *string         `json:"direccion,omitempty" db:"address"`
	Phone     *string         `json:"telefono,omitempty" db:"phone"`
	Company   *string         `json:"empresa,omitempty" db:"company"`
	TaxID     *string         `json:"rfc,omitempty" db:"tax_id"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// MinPasswordLength is the minimum accepted raw password length.
const MinPasswordLength = 6

// RegisterRequest carries the fields needed to create a principal.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Address  string
	Phone    string
	Company  *string
	TaxID    *string
}

// Validate checks required fields and normalizes the email to lowercase.
func (r *RegisterRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return apperrors.ValidationField("nombre", "name is required")
	}
	email, err := NormalizeEmail(r.Email)
	if err != nil {
		return err
	}
	r.Email = email
	if len(r.Password) < MinPasswordLength {
		return apperrors.ValidationField("password", "password must be at least 6 characters")
	}
	r.Address = strings.TrimSpace(r.Address)
	if r.Address == "" {
		return apperrors.ValidationField("direccion", "address is required")
	}
	r.Phone = strings.TrimSpace(r.Phone)
	if r.Phone == "" {
		return apperrors.ValidationField("telefono", "phone is required")
	}
	return nil
}

// UpdateProfileRequest carries optional non-security profile fields.
// Password and role are never updatable through this request.
type UpdateProfileRequest struct {
	Name    *string
	Address *string
	Phone   *string
	Company *string
	TaxID   *string
}

// Validate rejects empty updates for required profile fields.
func (r *UpdateProfileRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return apperrors.ValidationField("nombre", "name cannot be empty")
	}
	if r.Address != nil && strings.TrimSpace(*r.Address) == "" {
		return apperrors.ValidationField("direccion", "address cannot be empty")
	}
	if r.Phone != nil && strings.TrimSpace(*r.Phone) == "" {
		return apperrors.ValidationField("telefono", "phone cannot be empty")
	}
	return nil
}

// NormalizeEmail validates the address form and returns it lowercased.
// Uniqueness is case-insensitive, so every comparison goes through here.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperrors.ValidationField("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.ValidationField("email", "email is not valid")
	}
	return email, nil
}
