package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gestorhq/portal-api/internal/data/pgxutil"
	"github.com/gestorhq/portal-api/internal/domain/model"
	apperrors "github.com/gestorhq/portal-api/internal/errors"
)

// SecurityEventRepo provides append and query operations for the audit log.
// There are no update or delete operations; the table is append-only.
type SecurityEventRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewSecurityEventRepo creates a new SecurityEventRepo with the real time provider.
func NewSecurityEventRepo(db *sql.DB) *SecurityEventRepo {
	return &SecurityEventRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewSecurityEventRepoWithTimeProvider creates a SecurityEventRepo with a custom time provider (useful for tests).
func NewSecurityEventRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *SecurityEventRepo {
	return &SecurityEventRepo{DB: db, timeProvider: tp}
}

const securityEventColumns = `id, event_type, outcome, principal_id, email, ip, user_agent, detail, created_at`

const (
	securityEventInsertQuery = `
		INSERT INTO security_events (
			event_type, outcome, principal_id, email, ip, user_agent, detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + securityEventColumns

	countFailedLoginsQuery = `
		SELECT count(*)
		FROM security_events
		WHERE principal_id = $1
		  AND event_type = 'login_failed'
		  AND created_at > $2`

	latestLockStateQuery = `
		SELECT ` + securityEventColumns + `
		FROM security_events
		WHERE principal_id = $1
		  AND event_type IN ('account_locked', 'account_unlocked')
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	countByTypeAndDayQuery = `
		SELECT date_trunc('day', created_at) AS day, event_type, count(*) AS total
		FROM security_events
		WHERE created_at >= $1
		GROUP BY day, event_type
		ORDER BY day DESC, event_type`

	suspiciousIPsQuery = `
		SELECT ip, count(*) AS failures
		FROM security_events
		WHERE event_type = 'login_failed'
		  AND created_at >= $1
		GROUP BY ip
		HAVING count(*) >= $2
		ORDER BY failures DESC, ip`

	lockedAccountsQuery = `
		SELECT principal_id, email, locked_at, failed_count
		FROM (
			SELECT DISTINCT ON (e.principal_id)
				e.principal_id,
				p.email,
				e.created_at AS locked_at,
				COALESCE((e.detail->>'failed_count')::int, 0) AS failed_count,
				e.event_type
			FROM security_events e
			JOIN principals p ON p.id = e.principal_id
			WHERE e.event_type IN ('account_locked', 'account_unlocked')
			ORDER BY e.principal_id, e.created_at DESC, e.id DESC
		) latest
		WHERE latest.event_type = 'account_locked'
		ORDER BY locked_at DESC`
)

// Insert appends one event. The detail payload, when present, is serialized
// to JSONB here so callers work with typed detail values.
func (r *SecurityEventRepo) Insert(ctx context.Context, evt model.SecurityEvent) (*model.SecurityEvent, error) {
	if !evt.Type.Valid() {
		return nil, apperrors.ValidationField("tipo", "unknown event type: "+string(evt.Type))
	}
	if !evt.Outcome.Valid() {
		return nil, apperrors.ValidationField("resultado", "unknown outcome: "+string(evt.Outcome))
	}

	var detail []byte
	if evt.Detail != nil {
		if evt.Detail.EventType() != evt.Type {
			return nil, apperrors.Validationf("detail payload is for %s, event is %s", evt.Detail.EventType(), evt.Type)
		}
		var err error
		if detail, err = json.Marshal(evt.Detail); err != nil {
			return nil, fmt.Errorf("marshal event detail: %w", err)
		}
	} else if len(evt.RawDetail) > 0 {
		detail = evt.RawDetail
	}

	createdAt := evt.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.timeProvider.Now().UTC()
	}

	var out model.SecurityEvent
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, securityEventInsertQuery,
			evt.Type,
			evt.Outcome,
			evt.PrincipalID,
			evt.Email,
			evt.IP,
			evt.UserAgent,
			detail,
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.SecurityEvent])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// List returns events matching the filter, newest first.
func (r *SecurityEventRepo) List(ctx context.Context, filter model.SecurityEventFilter, opts model.ListOptions) ([]model.SecurityEvent, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	limit := clampLimit(opts.Limit)
	offset := max(opts.Offset, 0)

	where, args, argIndex := buildSecurityEventFilters(filter)
	query := `SELECT ` + securityEventColumns + ` FROM security_events` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, argIndex, argIndex+1)
	args = append(args, limit, offset)

	var out []model.SecurityEvent
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.SecurityEvent])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list security events: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// Count returns the number of events matching the filter.
func (r *SecurityEventRepo) Count(ctx context.Context, filter model.SecurityEventFilter) (int64, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	where, args, _ := buildSecurityEventFilters(filter)
	query := `SELECT count(*) FROM security_events` + where

	var count int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, query, args...).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("count security events: %w", apperrors.MapDBError(err))
	}
	return count, nil
}

// CountFailedLogins counts login_failed events for the principal since the
// cutoff, ignoring failures that precede the most recent unlock.
func (r *SecurityEventRepo) CountFailedLogins(ctx context.Context, principalID string, since time.Time) (int, error) {
	var count int
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, countFailedLoginsQuery, principalID, since).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("count failed logins: %w", apperrors.MapDBError(err))
	}
	return count, nil
}

// LatestLockState returns the most recent account_locked or account_unlocked
// event for the principal, or nil when the account has never been locked.
func (r *SecurityEventRepo) LatestLockState(ctx context.Context, principalID string) (*model.SecurityEvent, error) {
	var out model.SecurityEvent
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, latestLockStateQuery, principalID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.SecurityEvent])
		return err
	})
	if err != nil {
		if apperrors.IsNotFound(apperrors.MapDBError(err)) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest lock state: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// CountByTypeAndDay aggregates event volume per type per day since the cutoff.
func (r *SecurityEventRepo) CountByTypeAndDay(ctx context.Context, since time.Time) ([]model.TypeDayCount, error) {
	var out []model.TypeDayCount
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, countByTypeAndDayQuery, since)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.TypeDayCount])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("count by type and day: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// SuspiciousIPs lists source addresses with at least threshold failed logins
// since the cutoff.
func (r *SecurityEventRepo) SuspiciousIPs(ctx context.Context, since time.Time, threshold int) ([]model.SuspiciousIP, error) {
	if threshold < 1 {
		threshold = 1
	}
	var out []model.SuspiciousIP
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, suspiciousIPsQuery, since, threshold)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.SuspiciousIP])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("suspicious ips: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// LockedAccounts lists principals whose latest lock-state event is a lock.
func (r *SecurityEventRepo) LockedAccounts(ctx context.Context) ([]model.LockedAccount, error) {
	var out []model.LockedAccount
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, lockedAccountsQuery)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.LockedAccount])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("locked accounts: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// buildSecurityEventFilters builds the WHERE clause and args for filtered
// queries. Returns the clause, the args, and the next positional index.
func buildSecurityEventFilters(filter model.SecurityEventFilter) (string, []any, int) {
	query := ""
	args := make([]any, 0, 6)
	argIndex := 1
	and := func() string {
		if query == "" {
			return ` WHERE`
		}
		return ` AND`
	}

	if len(filter.Types) > 0 {
		query += fmt.Sprintf(`%s event_type = ANY($%d)`, and(), argIndex)
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		args = append(args, types)
		argIndex++
	}
	if filter.Outcome != "" {
		query += fmt.Sprintf(`%s outcome = $%d`, and(), argIndex)
		args = append(args, filter.Outcome)
		argIndex++
	}
	if filter.PrincipalID != "" {
		query += fmt.Sprintf(`%s principal_id = $%d`, and(), argIndex)
		args = append(args, filter.PrincipalID)
		argIndex++
	}
	if filter.Email != "" {
		query += fmt.Sprintf(`%s lower(email) = lower($%d)`, and(), argIndex)
		args = append(args, filter.Email)
		argIndex++
	}
	if filter.IP != "" {
		query += fmt.Sprintf(`%s ip = $%d`, and(), argIndex)
		args = append(args, filter.IP)
		argIndex++
	}
	if !filter.From.IsZero() {
		query += fmt.Sprintf(`%s created_at >= $%d`, and(), argIndex)
		args = append(args, filter.From)
		argIndex++
	}
	if !filter.To.IsZero() {
		query += fmt.Sprintf(`%s created_at <= $%d`, and(), argIndex)
		args = append(args, filter.To)
		argIndex++
	}

	return query, args, argIndex
}

// clampLimit bounds page sizes: default 50, cap 1000.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
