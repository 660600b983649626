package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gestorhq/portal-api/internal/domain/model"
	"github.com/gestorhq/portal-api/internal/ports"
)

// AuditServiceOptions groups dependencies for AuditService.
type AuditServiceOptions struct {
	Events ports.SecurityEventStore
	// Alerts receives lockout notifications. Optional.
	Alerts ports.AlertSink
	Logger *slog.Logger
	// SuspiciousIPThreshold is the failed-login count that flags an IP in
	// the overview. Defaults to 10.
	SuspiciousIPThreshold int
	// AlertTimeout bounds each outbound notification. Defaults to 5s.
	AlertTimeout time.Duration
}

// AuditService owns the append-only security log. Writes are append-only;
// there is no API to modify or remove recorded events.
type AuditService struct {
	events    ports.SecurityEventStore
	alerts    ports.AlertSink
	logger    *slog.Logger
	threshold int
	timeout   time.Duration
}

// NewAuditService constructs a new AuditService.
func NewAuditService(opts AuditServiceOptions) *AuditService {
	if opts.SuspiciousIPThreshold <= 0 {
		opts.SuspiciousIPThreshold = 10
	}
	if opts.AlertTimeout <= 0 {
		opts.AlertTimeout = 5 * time.Second
	}
	return &AuditService{
		events:    opts.Events,
		alerts:    opts.Alerts,
		logger:    opts.Logger,
		threshold: opts.SuspiciousIPThreshold,
		timeout:   opts.AlertTimeout,
	}
}

// Record appends one event. Lockout events additionally fan out to the
// alert sink without blocking the caller.
func (s *AuditService) Record(ctx context.Context, evt model.SecurityEvent) (*model.SecurityEvent, error) {
	stored, err := s.events.Insert(ctx, evt)
	if err != nil {
		return nil, fmt.Errorf("record security event: %w", err)
	}

	if s.alerts != nil && stored.Type == model.EventAccountLocked {
		s.notifyAsync(ctx, *stored)
	}
	return stored, nil
}

// RecordBestEffort appends one event, logging any failure instead of
// returning it. Audit problems must never abort the operation being
// audited.
func (s *AuditService) RecordBestEffort(ctx context.Context, evt model.SecurityEvent) {
	if _, err := s.Record(ctx, evt); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to record security event",
			"event_type", evt.Type,
			"err", err,
		)
	}
}

// List returns matching events newest first, along with the total count for
// pagination.
func (s *AuditService) List(ctx context.Context, filter model.SecurityEventFilter, opts model.ListOptions) ([]model.SecurityEvent, int64, error) {
	events, err := s.events.List(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list security events: %w", err)
	}
	total, err := s.events.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count security events: %w", err)
	}
	return events, total, nil
}

// Stats aggregates event counts by type and day for the trailing number of
// days (default 7).
func (s *AuditService) Stats(ctx context.Context, days int) (*model.SecurityStats, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	counts, err := s.events.CountByTypeAndDay(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate events: %w", err)
	}
	return &model.SecurityStats{Days: days, Counts: counts}, nil
}

// Overview builds the admin security dashboard for the trailing number of
// days.
func (s *AuditService) Overview(ctx context.Context, days int) (*model.SecurityOverview, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	byTypeDay, err := s.events.CountByTypeAndDay(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate events: %w", err)
	}
	suspicious, err := s.events.SuspiciousIPs(ctx, since, s.threshold)
	if err != nil {
		return nil, fmt.Errorf("suspicious ips: %w", err)
	}
	locked, err := s.events.LockedAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("locked accounts: %w", err)
	}

	overview := &model.SecurityOverview{
		RecentByTypeDay: byTypeDay,
		SuspiciousIPs:   suspicious,
		LockedAccounts:  locked,
		Alerts:          []string{},
	}
	if n := len(locked); n > 0 {
		overview.Alerts = append(overview.Alerts, fmt.Sprintf("%d cuenta(s) bloqueada(s) pendientes de revisión", n))
	}
	if n := len(suspicious); n > 0 {
		overview.Alerts = append(overview.Alerts, fmt.Sprintf("%d IP(s) con actividad sospechosa", n))
	}
	return overview, nil
}

// notifyAsync delivers the alert on its own goroutine. The request context
// may be gone before delivery, so the alert runs on a detached context with
// its own deadline.
func (s *AuditService) notifyAsync(ctx context.Context, evt model.SecurityEvent) {
	detached := context.WithoutCancel(ctx)
	go func() {
		nctx, cancel := context.WithTimeout(detached, s.timeout)
		defer cancel()
		if err := s.alerts.Notify(nctx, evt); err != nil && s.logger != nil {
			s.logger.ErrorContext(nctx, "security alert delivery failed",
				"event_type", evt.Type,
				"err", err,
			)
		}
	}()
}
