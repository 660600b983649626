package httpx

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestorhq/portal-api/internal/domain/model"
)

// adminAndClient registers two accounts and returns their session cookies.
// The first registration always lands the administrator role.
func adminAndClient(t *testing.T, f *routerFixture) (admin, client *http.Cookie) {
	t.Helper()
	registerAccount(t, f, "admin@acme.mx")
	registerAccount(t, f, "cliente@acme.mx")
	return loginAccount(t, f, "admin@acme.mx", "s3guridad"),
		loginAccount(t, f, "cliente@acme.mx", "s3guridad")
}

func TestSecurityLogs_AdminOnly(t *testing.T) {
	f := newRouterFixture(t)
	_, client := adminAndClient(t, f)

	rec := doJSON(t, f, http.MethodGet, "/security/logs", client, nil)

	require.Equal(t, http.StatusForbidden, rec.Code)

	denied := f.events.EventsOfType(model.EventAccessDenied)
	require.Len(t, denied, 1)
	require.NotNil(t, denied[0].PrincipalID)

	var detail map[string]any
	require.NoError(t, json.Unmarshal(denied[0].RawDetail, &detail))
	assert.Equal(t, "/security/logs", detail["path"])
	assert.Equal(t, "admin", detail["required_role"])
}

func TestSecurityLogs_ListAndFilter(t *testing.T) {
	f := newRouterFixture(t)
	admin, _ := adminAndClient(t, f)

	// Two failed attempts leave login_failed entries.
	for range 2 {
		doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
			"email": "cliente@acme.mx", "password": "nope",
		})
	}

	rec := doJSON(t, f, http.MethodGet, "/security/logs?tipo=login_failed", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Logs    []map[string]any `json:"logs"`
		Total   int64            `json:"total"`
		Filters map[string]any   `json:"filtros"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body.Total)
	require.Len(t, body.Logs, 2)
	for _, evt := range body.Logs {
		assert.Equal(t, "login_failed", evt["tipo"])
		assert.Equal(t, "failure", evt["resultado"])
	}

	// The applied filter is echoed back.
	assert.Equal(t, []any{"login_failed"}, body.Filters["tipo"])
}

func TestSecurityLogs_Pagination(t *testing.T) {
	f := newRouterFixture(t)
	admin, _ := adminAndClient(t, f)

	for range 3 {
		doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
			"email": "cliente@acme.mx", "password": "nope",
		})
	}

	rec := doJSON(t, f, http.MethodGet, "/security/logs?tipo=login_failed&limite=2", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Logs  []map[string]any `json:"logs"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Logs, 2)
	assert.EqualValues(t, 3, body.Total, "total counts all matches, not just the page")
}

func TestSecurityLogs_BadFilterValues(t *testing.T) {
	f := newRouterFixture(t)
	admin, _ := adminAndClient(t, f)

	badType := doJSON(t, f, http.MethodGet, "/security/logs?tipo=explosion", admin, nil)
	require.Equal(t, http.StatusBadRequest, badType.Code)

	badTime := doJSON(t, f, http.MethodGet, "/security/logs?fechaDesde=ayer", admin, nil)
	require.Equal(t, http.StatusBadRequest, badTime.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(badTime.Body.Bytes(), &body))
	assert.Equal(t, "fechaDesde", body["campo"])
}

func TestSecurityStats(t *testing.T) {
	f := newRouterFixture(t)
	admin, _ := adminAndClient(t, f)

	for range 2 {
		doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
			"email": "cliente@acme.mx", "password": "nope",
		})
	}

	rec := doJSON(t, f, http.MethodGet, "/security/stats?dias=7", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Days   int              `json:"dias"`
		Counts []map[string]any `json:"estadisticas"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 7, body.Days)
	assert.NotEmpty(t, body.Counts)
}

func TestSecuritySummary(t *testing.T) {
	f := newRouterFixture(t)
	admin, _ := adminAndClient(t, f)

	for range 2 {
		doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
			"email": "cliente@acme.mx", "password": "nope",
		})
	}

	rec := doJSON(t, f, http.MethodGet, "/security/summary", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "estadisticas_recientes")
	assert.Contains(t, body, "ips_sospechosas")
	assert.Contains(t, body, "cuentas_bloqueadas")
	assert.Contains(t, body, "alertas")
}

func TestSecuritySummary_FlagsLockedAccounts(t *testing.T) {
	f := newRouterFixture(t)
	admin, _ := adminAndClient(t, f)

	for range 5 {
		doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
			"email": "cliente@acme.mx", "password": "nope",
		})
	}

	rec := doJSON(t, f, http.MethodGet, "/security/summary", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		LockedAccounts []map[string]any `json:"cuentas_bloqueadas"`
		Alerts         []string         `json:"alertas"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.LockedAccounts, 1)
	assert.Equal(t, "cliente@acme.mx", body.LockedAccounts[0]["email"])
	assert.NotEmpty(t, body.Alerts)
}

func TestUnlock_RestoresAccess(t *testing.T) {
	f := newRouterFixture(t)
	admin, _ := adminAndClient(t, f)

	for range 5 {
		doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
			"email": "cliente@acme.mx", "password": "nope",
		})
	}
	locked := doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
		"email": "cliente@acme.mx", "password": "s3guridad",
	})
	require.Equal(t, http.StatusLocked, locked.Code)

	rec := doJSON(t, f, http.MethodPost, "/security/unlock/cliente@acme.mx", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Message    string         `json:"message"`
		User       map[string]any `json:"usuario"`
		UnlockedBy string         `json:"desbloqueado_por"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Message)
	assert.Equal(t, "cliente@acme.mx", body.User["email"])
	assert.Equal(t, "admin@acme.mx", body.UnlockedBy)

	loginAccount(t, f, "cliente@acme.mx", "s3guridad")
}

func TestUnlock_Validation(t *testing.T) {
	f := newRouterFixture(t)
	admin, _ := adminAndClient(t, f)

	unknown := doJSON(t, f, http.MethodPost, "/security/unlock/nadie@acme.mx", admin, nil)
	require.Equal(t, http.StatusNotFound, unknown.Code)

	// Unlocking an account that is not locked is rejected without writing
	// an unlock event.
	notLocked := doJSON(t, f, http.MethodPost, "/security/unlock/cliente@acme.mx", admin, nil)
	require.Equal(t, http.StatusBadRequest, notLocked.Code)
	assert.Empty(t, f.events.EventsOfType(model.EventAccountUnlocked))
}

func TestListPrincipals(t *testing.T) {
	f := newRouterFixture(t)
	admin, client := adminAndClient(t, f)

	forbidden := doJSON(t, f, http.MethodGet, "/principals", client, nil)
	require.Equal(t, http.StatusForbidden, forbidden.Code)

	rec := doJSON(t, f, http.MethodGet, "/principals", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Usuarios []model.Principal `json:"usuarios"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Usuarios, 2)
}
