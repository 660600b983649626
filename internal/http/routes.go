package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/gestorhq/portal-api/internal/domain/auth"
	"github.com/gestorhq/portal-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth         AuthServiceInterface
	Credentials  *service.CredentialsService
	Audit        *service.AuditService
	CookieDomain string
	DevMode      bool // relaxes cookie SameSite for local development
	Logger       *slog.Logger // Logger for HTTP access logs and panics (optional)
}

// NewRouter creates and configures the HTTP router. Callers wrap it with
// the Logging and Recover middleware.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Svc:          services.Auth,
		Credentials:  services.Credentials,
		CookieDomain: services.CookieDomain,
		DevMode:      services.DevMode,
		Logger:       services.Logger,
	}
	securityHandlers := &SecurityHandlers{
		Audit:       services.Audit,
		Auth:        services.Auth,
		Credentials: services.Credentials,
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	registerAuthRoutes(mux, authHandlers, services.Auth)
	registerSecurityRoutes(mux, securityHandlers, services.Auth)

	return mux
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, authSvc AuthServiceInterface) {
	requireAuth := RequireAuth(authSvc)

	mux.HandleFunc("POST /auth/register", h.Register)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.Handle("GET /auth/profile", requireAuth(http.HandlerFunc(h.Profile)))
	mux.Handle("POST /auth/change-password", requireAuth(http.HandlerFunc(h.ChangePassword)))
	mux.Handle("PUT /auth/profile", requireAuth(http.HandlerFunc(h.UpdateProfile)))
}

func registerSecurityRoutes(mux *http.ServeMux, h *SecurityHandlers, authSvc AuthServiceInterface) {
	requireAdmin := RequireRole(authSvc, domainauth.RoleAdmin)

	mux.Handle("GET /security/logs", requireAdmin(http.HandlerFunc(h.ListLogs)))
	mux.Handle("GET /security/stats", requireAdmin(http.HandlerFunc(h.Stats)))
	mux.Handle("GET /security/summary", requireAdmin(http.HandlerFunc(h.Summary)))
	mux.Handle("POST /security/unlock/{email}", requireAdmin(http.HandlerFunc(h.Unlock)))
	mux.Handle("GET /principals", requireAdmin(http.HandlerFunc(h.ListPrincipals)))
}
