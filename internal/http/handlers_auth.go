package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/gestorhq/portal-api/internal/domain/auth"
	"github.com/gestorhq/portal-api/internal/domain/model"
	apperrors "github.com/gestorhq/portal-api/internal/errors"
	"github.com/gestorhq/portal-api/internal/service"
)

// AuthServiceInterface defines what the handlers and middleware need from the
// auth service. Kept as an interface so tests can swap in fakes.
type AuthServiceInterface interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.Principal, *domainauth.Session, error)
	Login(ctx context.Context, in service.LoginInput) (*domainauth.Session, error)
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
	Logout(ctx context.Context, sess *domainauth.Session, meta model.RequestMeta) error
	ChangePassword(ctx context.Context, sess *domainauth.Session, current, next string, meta model.RequestMeta) error
	Unlock(ctx context.Context, admin *domainauth.Session, email string, meta model.RequestMeta) (*model.Principal, error)
	RecordAccessDenied(ctx context.Context, sess *domainauth.Session, detail model.AccessDeniedDetail, meta model.RequestMeta)
}

// AuthHandlers contains the handlers for registration, login, and the other
// self-service account endpoints.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	Credentials  *service.CredentialsService
	CookieDomain string
	// DevMode relaxes the session cookie to SameSite=Lax so the local
	// frontend dev server can reach the API cross-origin.
	DevMode bool
	Logger  *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type registerPayload struct {
	Nombre    string  `json:"nombre"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	Direccion string  `json:"direccion"`
	Telefono  string  `json:"telefono"`
	Empresa   *string `json:"empresa"`
	RFC       *string `json:"rfc"`
}

// userView is the compact principal projection embedded in auth responses.
type userView struct {
	ID     string          `json:"id"`
	Nombre string          `json:"nombre"`
	Email  string          `json:"email"`
	Rol    domainauth.Role `json:"rol"`
}

type authResponse struct {
	User      userView `json:"user"`
	SessionID string   `json:"sessionId"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register handles account creation. The new account is logged in
// immediately: the response carries a fresh session and its cookie.
// POST /auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}

	p, sess, err := h.Svc.Register(r.Context(), model.RegisterRequest{
		Name:     payload.Nombre,
		Email:    payload.Email,
		Password: payload.Password,
		Address:  payload.Direccion,
		Phone:    payload.Telefono,
		Company:  payload.Empresa,
		TaxID:    payload.RFC,
	})
	if err != nil {
		// A taken email is a bad registration input, not a conflict the
		// caller could retry their way around.
		if apperrors.IsConflict(err) {
			err = apperrors.ValidationField("email", "This email is already registered.")
		}
		WriteAppError(w, err)
		return
	}

	h.setSessionCookie(w, r, *sess)
	WriteJSON(w, http.StatusCreated, authResponse{
		User:      userView{ID: p.ID, Nombre: p.Name, Email: p.Email, Rol: p.Role},
		SessionID: sess.ID,
	})
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles credential verification and opens a session.
// POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}

	sess, err := h.Svc.Login(r.Context(), service.LoginInput{
		Email:    payload.Email,
		Password: payload.Password,
		Meta:     RequestMeta(r),
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	h.setSessionCookie(w, r, *sess)
	WriteJSON(w, http.StatusOK, authResponse{
		User:      userView{ID: sess.PrincipalID, Nombre: sess.Name, Email: sess.Email, Rol: sess.Role},
		SessionID: sess.ID,
	})
}

// Logout invalidates the caller's session. Requests without a live session
// still succeed: the cookie is cleared either way.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionCookie, err := r.Cookie(sessionCookieName); err == nil {
		sess, getErr := h.Svc.GetSession(r.Context(), sessionCookie.Value)
		if getErr == nil {
			if logoutErr := h.Svc.Logout(r.Context(), sess, RequestMeta(r)); logoutErr != nil {
				h.logger().WarnContext(r.Context(), "logout failed", "error", logoutErr)
			}
		}
	}

	h.clearCookie(w, r, sessionCookieName)
	WriteJSON(w, http.StatusOK, messageResponse{Message: "Sesión cerrada correctamente"})
}

// Profile returns the authenticated principal's current profile.
// GET /auth/profile.
func (h *AuthHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	p, err := h.Credentials.GetByID(r.Context(), sess.PrincipalID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

type changePasswordPayload struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword rotates the caller's password and revokes their other
// sessions. The session behind this request stays valid.
// POST /auth/change-password.
func (h *AuthHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var payload changePasswordPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}

	sess := GetSessionFromContext(r.Context())
	if err := h.Svc.ChangePassword(r.Context(), sess, payload.OldPassword, payload.NewPassword, RequestMeta(r)); err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, messageResponse{Message: "Contraseña actualizada correctamente"})
}

type updateProfilePayload struct {
	Nombre    *string `json:"nombre"`
	Direccion *string `json:"direccion"`
	Telefono  *string `json:"telefono"`
	Empresa   *string `json:"empresa"`
	RFC       *string `json:"rfc"`
}

// UpdateProfile applies a partial profile update for the caller.
// PUT /auth/profile.
func (h *AuthHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var payload updateProfilePayload
	if !DecodeJSON(w, r, &payload) {
		return
	}

	sess := GetSessionFromContext(r.Context())
	p, err := h.Credentials.UpdateProfile(r.Context(), sess.PrincipalID, model.UpdateProfileRequest{
		Name:    payload.Nombre,
		Address: payload.Direccion,
		Phone:   payload.Telefono,
		Company: payload.Empresa,
		TaxID:   payload.RFC,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func (h *AuthHandlers) cookieSameSite() http.SameSite {
	if h.DevMode {
		return http.SameSiteLaxMode
	}
	return http.SameSiteStrictMode
}

func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, s domainauth.Session) {
	isSecure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.ID,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: h.cookieSameSite(),
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
	})
}

func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	isSecure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecure,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: h.cookieSameSite(),
	})
}
