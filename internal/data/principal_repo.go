package data

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/gestorhq/portal-api/internal/data/pgxutil"
	domainauth "github.com/gestorhq/portal-api/internal/domain/auth"
	"github.com/gestorhq/portal-api/internal/domain/model"
	apperrors "github.com/gestorhq/portal-api/internal/errors"
	"github.com/gestorhq/portal-api/internal/ports"
)

// PrincipalRepo provides database operations for principal accounts.
// The password hash never leaves this package except through GetCredentials.
type PrincipalRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewPrincipalRepo creates a new PrincipalRepo with the real time provider.
func NewPrincipalRepo(db *sql.DB) *PrincipalRepo {
	return &PrincipalRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewPrincipalRepoWithTimeProvider creates a PrincipalRepo with a custom time provider (useful for tests).
func NewPrincipalRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *PrincipalRepo {
	return &PrincipalRepo{DB: db, timeProvider: tp}
}

// credentialsRow is the only row shape that carries the password hash.
type credentialsRow struct {
	model.Principal
	PasswordHash string `db:"password_hash"`
}

const principalColumns = `id, name, email, role, status, address, phone, company, tax_id, created_at, updated_at`

const (
	principalGetByIDQuery = `
		SELECT ` + principalColumns + `
		FROM principals
		WHERE id = $1`

	principalGetByEmailQuery = `
		SELECT ` + principalColumns + `
		FROM principals
		WHERE lower(email) = lower($1)`

	principalCredentialsQuery = `
		SELECT ` + principalColumns + `, password_hash
		FROM principals
		WHERE lower(email) = lower($1)`

	principalListQuery = `
		SELECT ` + principalColumns + `
		FROM principals
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
)

// Create inserts a new principal. The first account ever created becomes an
// administrator; the role decision and the insert share one transaction so
// two concurrent first registrations cannot both win.
func (r *PrincipalRepo) Create(ctx context.Context, in ports.CreatePrincipalInput) (*model.Principal, error) {
	now := r.timeProvider.Now().UTC()
	var out model.Principal
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		var count int64
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM principals`).Scan(&count); err != nil {
			return fmt.Errorf("count principals: %w", err)
		}
		role := domainauth.RoleClient
		if count == 0 {
			role = domainauth.RoleAdmin
		}

		rows, err := tx.Query(ctx, `
			INSERT INTO principals (
				name, email, password_hash, role, status, address, phone, company, tax_id, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10
			) RETURNING `+principalColumns,
			in.Name,
			in.Email,
			in.PasswordHash,
			role,
			model.PrincipalActive,
			in.Address,
			in.Phone,
			in.Company,
			in.TaxID,
			now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Principal])
		return err
	}})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByID retrieves a principal by ID.
func (r *PrincipalRepo) GetByID(ctx context.Context, id string) (*model.Principal, error) {
	return r.getByQuery(ctx, principalGetByIDQuery, id)
}

// GetByEmail retrieves a principal by email, case-insensitively.
func (r *PrincipalRepo) GetByEmail(ctx context.Context, email string) (*model.Principal, error) {
	return r.getByQuery(ctx, principalGetByEmailQuery, email)
}

// GetCredentials retrieves a principal together with its password hash for
// login verification.
func (r *PrincipalRepo) GetCredentials(ctx context.Context, email string) (*ports.Credentials, error) {
	var row credentialsRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, principalCredentialsQuery, email)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[credentialsRow])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &ports.Credentials{Principal: row.Principal, Hash: row.PasswordHash}, nil
}

// UpdateProfile updates the non-security profile fields present in req.
func (r *PrincipalRepo) UpdateProfile(ctx context.Context, id string, req model.UpdateProfileRequest) (*model.Principal, error) {
	setClause, args := r.buildProfileClause(req)
	if setClause == "" {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := "UPDATE principals SET " + setClause +
		" WHERE id = $" + strconv.Itoa(len(args)) +
		" RETURNING " + principalColumns

	var out model.Principal
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Principal])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// UpdatePasswordHash replaces the stored hash for the principal.
func (r *PrincipalRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx,
			`UPDATE principals SET password_hash = $1, updated_at = $2 WHERE id = $3`,
			hash, r.timeProvider.Now().UTC(), id)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return apperrors.MapDBError(err)
	}
	if affected == 0 {
		return apperrors.NotFound("principal not found")
	}
	return nil
}

// List retrieves principals with pagination, newest first.
func (r *PrincipalRepo) List(ctx context.Context, opts model.ListOptions) ([]model.Principal, error) {
	limit := clampLimit(opts.Limit)
	offset := max(opts.Offset, 0)

	var out []model.Principal
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, principalListQuery, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Principal])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// buildProfileClause builds the SET clause and args for a profile update.
func (r *PrincipalRepo) buildProfileClause(req model.UpdateProfileRequest) (string, []any) {
	setParts := make([]string, 0, 6)
	args := make([]any, 0, 6)
	nextIdx := func() int { return len(args) + 1 }

	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Name))
	}
	if req.Address != nil {
		setParts = append(setParts, fmt.Sprintf("address = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Address))
	}
	if req.Phone != nil {
		setParts = append(setParts, fmt.Sprintf("phone = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Phone))
	}
	if req.Company != nil {
		if strings.TrimSpace(*req.Company) == "" {
			setParts = append(setParts, "company = NULL")
		} else {
			setParts = append(setParts, fmt.Sprintf("company = $%d", nextIdx()))
			args = append(args, strings.TrimSpace(*req.Company))
		}
	}
	if req.TaxID != nil {
		if strings.TrimSpace(*req.TaxID) == "" {
			setParts = append(setParts, "tax_id = NULL")
		} else {
			setParts = append(setParts, fmt.Sprintf("tax_id = $%d", nextIdx()))
			args = append(args, strings.TrimSpace(*req.TaxID))
		}
	}

	if len(setParts) == 0 {
		return "", nil
	}
	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", nextIdx()))
	args = append(args, r.timeProvider.Now().UTC())
	return strings.Join(setParts, ", "), args
}

func (r *PrincipalRepo) getByQuery(ctx context.Context, q string, args ...any) (*model.Principal, error) {
	var p model.Principal
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		p, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Principal])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &p, nil
}
