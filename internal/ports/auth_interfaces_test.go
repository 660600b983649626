package ports_test

import (
	"testing"

	mocks "github.com/gestorhq/portal-api/internal/mocks/auth"
	"github.com/gestorhq/portal-api/internal/ports"
)

// This test only verifies that our test doubles conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.SessionStore = (*mocks.MemorySessionStore)(nil)
	var _ ports.PrincipalStore = (*mocks.MemoryPrincipalStore)(nil)
	var _ ports.SecurityEventStore = (*mocks.MemorySecurityEventStore)(nil)
	var _ ports.PasswordHasher = (mocks.PlainHasher{})
	var _ ports.AlertSink = (*mocks.CaptureAlertSink)(nil)
}
