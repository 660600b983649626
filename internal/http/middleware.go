package httpx

import (
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	domainauth "github.com/gestorhq/portal-api/internal/domain/auth"
	"github.com/gestorhq/portal-api/internal/domain/model"
	apperrors "github.com/gestorhq/portal-api/internal/errors"
)

// sessionCookieName is the cookie carrying the opaque session identifier.
const sessionCookieName = "sid"

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth returns a middleware that requires a valid session cookie.
// Unauthenticated requests get a 401 and an access-denied audit entry.
func RequireAuth(authSvc AuthServiceInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := getSessionFromRequest(r, authSvc)
			if err != nil {
				authSvc.RecordAccessDenied(r.Context(), nil, model.AccessDeniedDetail{
					Method: r.Method,
					Path:   r.URL.Path,
					Reason: "authentication required",
				}, RequestMeta(r))
				WriteAppError(w, err)
				return
			}

			ctx := SetSessionInContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns a middleware that requires at least the given role.
// Authenticated requests below the required role get a 403 and an
// access-denied audit entry naming the role that was missing.
func RequireRole(authSvc AuthServiceInterface, requiredRole domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := getSessionFromRequest(r, authSvc)
			if err != nil {
				authSvc.RecordAccessDenied(r.Context(), nil, model.AccessDeniedDetail{
					Method: r.Method,
					Path:   r.URL.Path,
					Reason: "authentication required",
				}, RequestMeta(r))
				WriteAppError(w, err)
				return
			}

			if !hasRequiredRole(session.Role, requiredRole) {
				authSvc.RecordAccessDenied(r.Context(), session, model.AccessDeniedDetail{
					Method:       r.Method,
					Path:         r.URL.Path,
					RequiredRole: requiredRole,
					Reason:       "insufficient role",
				}, RequestMeta(r))
				WriteAppError(w, apperrors.Forbidden("insufficient permissions"))
				return
			}

			ctx := SetSessionInContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// getSessionFromRequest resolves the session cookie through the auth service.
// Resolving a session slides its expiry forward.
func getSessionFromRequest(r *http.Request, authSvc AuthServiceInterface) (*domainauth.Session, error) {
	sessionCookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, apperrors.Unauthorized("session required")
	}
	return authSvc.GetSession(r.Context(), sessionCookie.Value)
}

// hasRequiredRole checks if the user's role meets the required role.
// Role hierarchy: Client = Employee < Admin.
func hasRequiredRole(userRole, requiredRole domainauth.Role) bool {
	roleHierarchy := map[domainauth.Role]int{
		domainauth.RoleClient:   1,
		domainauth.RoleEmployee: 1,
		domainauth.RoleAdmin:    2,
	}

	userLevel, userExists := roleHierarchy[userRole]
	requiredLevel, requiredExists := roleHierarchy[requiredRole]

	if !userExists || !requiredExists {
		return false
	}

	return userLevel >= requiredLevel
}

// RequestMeta extracts the client address and user agent for audit entries.
// The client IP honors proxy headers before falling back to the socket peer.
func RequestMeta(r *http.Request) model.RequestMeta {
	return model.RequestMeta{IP: clientIP(r), UserAgent: r.UserAgent()}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop is the original client.
		if first, _, found := strings.Cut(fwd, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
