package errors

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeNotFound,
				Message: "principal not found",
			},
			want: "principal not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to record event",
				Cause:   errors.New("connection reset"),
			},
			want: "failed to record event: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{
		Code:    ErrCodeInternal,
		Message: "wrapped error",
		Cause:   cause,
	}

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestInvalidCredentials_UniformMessage(t *testing.T) {
	// The rejection message must not reveal whether the account exists.
	a := InvalidCredentials()
	b := InvalidCredentials()
	if a.Message != b.Message {
		t.Fatalf("InvalidCredentials() messages differ: %q vs %q", a.Message, b.Message)
	}
	if !IsInvalidCredentials(a) {
		t.Error("IsInvalidCredentials() = false, want true")
	}
}

func TestAccountLocked(t *testing.T) {
	err := AccountLocked()
	if err.Code != ErrCodeAccountLocked {
		t.Errorf("AccountLocked().Code = %v, want %v", err.Code, ErrCodeAccountLocked)
	}
	if !IsAccountLocked(err) {
		t.Error("IsAccountLocked() = false, want true")
	}
	if IsInvalidCredentials(err) {
		t.Error("IsInvalidCredentials() = true for locked error, want false")
	}
}

func TestCodePredicates_Wrapped(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"unauthorized", Unauthorized("session required"), IsUnauthorized},
		{"forbidden", Forbidden("admin role required"), IsForbidden},
		{"validation field", ValidationField("email", "email is not valid"), IsValidation},
		{"conflict", Conflict("email already registered"), IsConflict},
		{"unavailable", Unavailable("session store unreachable"), IsUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Wrapf(tt.err, GetCode(tt.err), "outer context: %s", tt.name)
			if !tt.check(wrapped) {
				t.Errorf("predicate failed for wrapped %s error", tt.name)
			}
		})
	}
}

func TestGetField(t *testing.T) {
	err := ValidationField("telefono", "phone is required")
	if got := GetField(err); got != "telefono" {
		t.Errorf("GetField() = %q, want %q", got, "telefono")
	}
	if got := GetField(errors.New("plain")); got != "" {
		t.Errorf("GetField(plain) = %q, want empty", got)
	}
}

func TestMapDBError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{
			name:     "no rows maps to not found",
			err:      pgx.ErrNoRows,
			wantCode: ErrCodeNotFound,
		},
		{
			name:     "deadline exceeded maps to timeout",
			err:      context.DeadlineExceeded,
			wantCode: ErrCodeTimeout,
		},
		{
			name:     "canceled maps to canceled",
			err:      context.Canceled,
			wantCode: ErrCodeCanceled,
		},
		{
			name: "unique violation maps to conflict",
			err: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "principals_email_lower_idx",
				Detail:         "Key (lower(email))=(ana@acme.mx) already exists.",
			},
			wantCode: ErrCodeConflict,
		},
		{
			name: "check violation maps to validation",
			err: &pgconn.PgError{
				Code:       pgerrcode.CheckViolation,
				ColumnName: "event_type",
			},
			wantCode: ErrCodeValidation,
		},
		{
			name: "unhandled pg error maps to internal",
			err: &pgconn.PgError{
				Code: pgerrcode.SerializationFailure,
			},
			wantCode: ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapDBError(tt.err)
			if got := GetCode(mapped); got != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", got, tt.wantCode)
			}
			if !errors.Is(mapped, tt.err) {
				t.Error("mapped error does not wrap the original")
			}
		})
	}
}

func TestMapDBError_EmailConstraintField(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           pgerrcode.UniqueViolation,
		ConstraintName: "principals_email_lower_idx",
	}
	mapped := MapDBError(pgErr)
	if got := GetField(mapped); got != "email" {
		t.Errorf("GetField() = %q, want %q", got, "email")
	}
}

func TestMapDBError_Passthrough(t *testing.T) {
	plain := errors.New("not a database error")
	if got := MapDBError(plain); !errors.Is(got, plain) {
		t.Errorf("MapDBError() = %v, want original error", got)
	}
	if MapDBError(nil) != nil {
		t.Error("MapDBError(nil) != nil")
	}
}
