package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestorhq/portal-api/internal/domain/model"
	mocks "github.com/gestorhq/portal-api/internal/mocks/auth"
	"github.com/gestorhq/portal-api/internal/service"
)

type routerFixture struct {
	router     http.Handler
	events     *mocks.MemorySecurityEventStore
	sessions   *mocks.MemorySessionStore
	principals *mocks.MemoryPrincipalStore
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	return newRouterFixtureMode(t, false)
}

// newDevRouterFixture builds the router in development mode, which only
// relaxes the session cookie SameSite attribute.
func newDevRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	return newRouterFixtureMode(t, true)
}

func newRouterFixtureMode(t *testing.T, devMode bool) *routerFixture {
	t.Helper()

	events := mocks.NewMemorySecurityEventStore()
	sessions := mocks.NewMemorySessionStore()
	principals := mocks.NewMemoryPrincipalStore()

	audit := service.NewAuditService(service.AuditServiceOptions{
		Events: events,
		Alerts: mocks.NewCaptureAlertSink(),
	})
	lockout := service.NewLockoutService(service.LockoutServiceOptions{
		Events:            events,
		Audit:             audit,
		Sessions:          sessions,
		MaxFailedAttempts: 5,
		FailureWindow:     15 * time.Minute,
	})
	creds, err := service.NewCredentialsService(service.CredentialsServiceOptions{
		Principals: principals,
		Hasher:     mocks.PlainHasher{},
	})
	require.NoError(t, err)
	auth := service.NewAuthService(service.AuthServiceOptions{
		Credentials: creds,
		Lockout:     lockout,
		Audit:       audit,
		Sessions:    sessions,
		SessionTTL:  time.Hour,
	})

	router := NewRouter(RouterServices{
		Auth:        auth,
		Credentials: creds,
		Audit:       audit,
		DevMode:     devMode,
	})

	return &routerFixture{
		router:     router,
		events:     events,
		sessions:   sessions,
		principals: principals,
	}
}

func doJSON(t *testing.T, f *routerFixture, method, path string, cookie *http.Cookie, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:54321"
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func registerAccount(t *testing.T, f *routerFixture, email string) {
	t.Helper()

	rec := doJSON(t, f, http.MethodPost, "/auth/register", nil, map[string]any{
		"nombre":    "Ana Torres",
		"email":     email,
		"password":  "s3guridad",
		"direccion": "Av. Reforma 100",
		"telefono":  "555-0100",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func loginAccount(t *testing.T, f *routerFixture, email, password string) *http.Cookie {
	t.Helper()

	rec := doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookieFrom(t, rec)
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestRegister_ReturnsUserAndSession(t *testing.T) {
	f := newRouterFixture(t)

	rec := doJSON(t, f, http.MethodPost, "/auth/register", nil, map[string]any{
		"nombre":    "Ana Torres",
		"email":     "ana@acme.mx",
		"password":  "s3guridad",
		"direccion": "Av. Reforma 100",
		"telefono":  "555-0100",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	user, ok := body["user"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	assert.Equal(t, "Ana Torres", user["nombre"])
	assert.Equal(t, "ana@acme.mx", user["email"])
	assert.Equal(t, "admin", user["rol"], "first account becomes the administrator")
	assert.NotContains(t, jsonKeys(user), "password")

	// Registration logs the account in: the session in the body matches the
	// cookie and is immediately usable.
	cookie := sessionCookieFrom(t, rec)
	assert.Equal(t, body["sessionId"], cookie.Value)

	profile := doJSON(t, f, http.MethodGet, "/auth/profile", cookie, nil)
	require.Equal(t, http.StatusOK, profile.Code, profile.Body.String())
	var p map[string]any
	require.NoError(t, json.Unmarshal(profile.Body.Bytes(), &p))
	assert.Equal(t, "Av. Reforma 100", p["direccion"])
}

func jsonKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func TestRegister_DuplicateEmailRejected(t *testing.T) {
	f := newRouterFixture(t)
	registerAccount(t, f, "ana@acme.mx")

	rec := doJSON(t, f, http.MethodPost, "/auth/register", nil, map[string]any{
		"nombre":    "Otra Ana",
		"email":     "ANA@acme.mx",
		"password":  "s3guridad",
		"direccion": "Calle 2",
		"telefono":  "555-0101",
	})

	// A taken email reads as bad input, the same as any other invalid
	// registration field.
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation", body["error"])
	assert.Equal(t, "email", body["campo"])
	assert.NotContains(t, body["message"], "create principal")
}

func TestRegister_MissingFieldValidation(t *testing.T) {
	f := newRouterFixture(t)

	rec := doJSON(t, f, http.MethodPost, "/auth/register", nil, map[string]any{
		"email":     "ana@acme.mx",
		"password":  "s3guridad",
		"direccion": "Calle 2",
		"telefono":  "555-0101",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation", body["error"])
	assert.Equal(t, "nombre", body["campo"])
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	f := newRouterFixture(t)
	registerAccount(t, f, "ana@acme.mx")

	rec := doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
		"email":    "ana@acme.mx",
		"password": "s3guridad",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookie := sessionCookieFrom(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, cookie.Value)
	assert.Positive(t, cookie.MaxAge)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, cookie.Value, body["sessionId"])
	user, ok := body["user"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	assert.Equal(t, "ana@acme.mx", user["email"])
	assert.NotEmpty(t, user["id"])
}

func TestSessionCookie_SameSiteRelaxedInDevMode(t *testing.T) {
	dev := newDevRouterFixture(t)

	rec := doJSON(t, dev, http.MethodPost, "/auth/register", nil, map[string]any{
		"nombre":    "Ana Torres",
		"email":     "ana@acme.mx",
		"password":  "s3guridad",
		"direccion": "Av. Reforma 100",
		"telefono":  "555-0100",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, http.SameSiteLaxMode, sessionCookieFrom(t, rec).SameSite)

	logout := doJSON(t, dev, http.MethodPost, "/auth/logout", sessionCookieFrom(t, rec), nil)
	require.Equal(t, http.StatusOK, logout.Code)
	assert.Equal(t, http.SameSiteLaxMode, sessionCookieFrom(t, logout).SameSite)
}

func TestLogin_WrongPasswordUniformError(t *testing.T) {
	f := newRouterFixture(t)
	registerAccount(t, f, "ana@acme.mx")

	wrong := doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
		"email": "ana@acme.mx", "password": "nope",
	})
	unknown := doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
		"email": "nadie@acme.mx", "password": "nope",
	})

	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String(),
		"unknown account and wrong password must be indistinguishable")
}

func TestLogin_LockoutReturns423(t *testing.T) {
	f := newRouterFixture(t)
	registerAccount(t, f, "ana@acme.mx")

	var last *httptest.ResponseRecorder
	for range 5 {
		last = doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
			"email": "ana@acme.mx", "password": "nope",
		})
	}
	require.Equal(t, http.StatusLocked, last.Code, last.Body.String())

	// Correct password is refused while the account is held.
	rec := doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
		"email": "ana@acme.mx", "password": "s3guridad",
	})
	assert.Equal(t, http.StatusLocked, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "account_locked", body["error"])
}

func TestProfile_RequiresSession(t *testing.T) {
	f := newRouterFixture(t)

	rec := doJSON(t, f, http.MethodGet, "/auth/profile", nil, nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	denied := f.events.EventsOfType(model.EventAccessDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, "203.0.113.7", denied[0].IP)
}

func TestProfile_ReturnsProfile(t *testing.T) {
	f := newRouterFixture(t)
	registerAccount(t, f, "ana@acme.mx")
	cookie := loginAccount(t, f, "ana@acme.mx", "s3guridad")

	rec := doJSON(t, f, http.MethodGet, "/auth/profile", cookie, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ana@acme.mx", body["email"])
	assert.Equal(t, "Ana Torres", body["nombre"])
}

func TestLogout_ClearsCookieAndSession(t *testing.T) {
	f := newRouterFixture(t)
	registerAccount(t, f, "ana@acme.mx")
	cookie := loginAccount(t, f, "ana@acme.mx", "s3guridad")

	rec := doJSON(t, f, http.MethodPost, "/auth/logout", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["message"])

	cleared := sessionCookieFrom(t, rec)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	after := doJSON(t, f, http.MethodGet, "/auth/profile", cookie, nil)
	assert.Equal(t, http.StatusUnauthorized, after.Code)

	assert.Len(t, f.events.EventsOfType(model.EventLogout), 1)
}

func TestLogout_WithoutSessionStillSucceeds(t *testing.T) {
	f := newRouterFixture(t)

	rec := doJSON(t, f, http.MethodPost, "/auth/logout", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	cleared := sessionCookieFrom(t, rec)
	assert.Negative(t, cleared.MaxAge)
}

func TestChangePassword_RotatesCredential(t *testing.T) {
	f := newRouterFixture(t)
	registerAccount(t, f, "ana@acme.mx")
	cookie := loginAccount(t, f, "ana@acme.mx", "s3guridad")

	rec := doJSON(t, f, http.MethodPost, "/auth/change-password", cookie, map[string]any{
		"oldPassword": "s3guridad",
		"newPassword": "renovada1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Session behind the request survives the rotation.
	me := doJSON(t, f, http.MethodGet, "/auth/profile", cookie, nil)
	assert.Equal(t, http.StatusOK, me.Code)

	old := doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
		"email": "ana@acme.mx", "password": "s3guridad",
	})
	assert.Equal(t, http.StatusUnauthorized, old.Code)

	loginAccount(t, f, "ana@acme.mx", "renovada1")
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	f := newRouterFixture(t)
	registerAccount(t, f, "ana@acme.mx")
	cookie := loginAccount(t, f, "ana@acme.mx", "s3guridad")

	rec := doJSON(t, f, http.MethodPost, "/auth/change-password", cookie, map[string]any{
		"oldPassword": "nope",
		"newPassword": "renovada1",
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfile_PartialUpdate(t *testing.T) {
	f := newRouterFixture(t)
	registerAccount(t, f, "ana@acme.mx")
	cookie := loginAccount(t, f, "ana@acme.mx", "s3guridad")

	rec := doJSON(t, f, http.MethodPut, "/auth/profile", cookie, map[string]any{
		"nombre":  "Ana T. de la Cruz",
		"empresa": "Acme MX",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Ana T. de la Cruz", body["nombre"])
	assert.Equal(t, "Acme MX", body["empresa"])
	assert.Equal(t, "Av. Reforma 100", body["direccion"], "unmentioned fields stay put")
}

func TestLogin_RejectsUnknownJSONFields(t *testing.T) {
	f := newRouterFixture(t)

	rec := doJSON(t, f, http.MethodPost, "/auth/login", nil, map[string]any{
		"email": "ana@acme.mx", "password": "x", "extra": true,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_json", body["error"])
}

func TestHealthz(t *testing.T) {
	f := newRouterFixture(t)

	rec := doJSON(t, f, http.MethodGet, "/healthz", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
