// Package mocks provides mock implementations for testing the portal's
// auth and security services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks
// for the ports interfaces. Hand-written in-memory doubles live in the
// auth subpackage; gomock mocks are generated here for tests that need
// call-level expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

// Generate mock for SecurityEventStore interface from internal/ports.
// This creates MockSecurityEventStore with methods for all SecurityEventStore interface methods:
// Insert, List, Count, CountFailedLogins, LatestLockState, CountByTypeAndDay, SuspiciousIPs, LockedAccounts
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=security_event_store_mock.go github.com/gestorhq/portal-api/internal/ports SecurityEventStore

// Generate mock for AlertSink interface from internal/ports.
// This creates MockAlertSink with methods for all AlertSink interface methods:
// Notify
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=alert_sink_mock.go github.com/gestorhq/portal-api/internal/ports AlertSink
