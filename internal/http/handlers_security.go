package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/gestorhq/portal-api/internal/domain/model"
	apperrors "github.com/gestorhq/portal-api/internal/errors"
	"github.com/gestorhq/portal-api/internal/service"
)

// SecurityHandlers contains the administrator-only reporting and account
// management endpoints.
type SecurityHandlers struct {
	Audit       *service.AuditService
	Auth        AuthServiceInterface
	Credentials *service.CredentialsService
}

type logListResponse struct {
	Logs    []model.SecurityEvent `json:"logs"`
	Total   int64                 `json:"total"`
	Filters logFilterView         `json:"filtros"`
}

// logFilterView echoes the applied filter back to the caller so paginated
// clients can show what the listing was narrowed by.
type logFilterView struct {
	Types       []model.EventType `json:"tipo,omitempty"`
	Outcome     model.Outcome     `json:"resultado,omitempty"`
	PrincipalID string            `json:"usuarioId,omitempty"`
	Email       string            `json:"email,omitempty"`
	IP          string            `json:"ip,omitempty"`
	From        *time.Time        `json:"fechaDesde,omitempty"`
	To          *time.Time        `json:"fechaHasta,omitempty"`
	Limit       int               `json:"limite"`
	Offset      int               `json:"offset"`
}

func newLogFilterView(f model.SecurityEventFilter, opts model.ListOptions) logFilterView {
	view := logFilterView{
		Types:       f.Types,
		Outcome:     f.Outcome,
		PrincipalID: f.PrincipalID,
		Email:       f.Email,
		IP:          f.IP,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	}
	if !f.From.IsZero() {
		view.From = &f.From
	}
	if !f.To.IsZero() {
		view.To = &f.To
	}
	return view
}

// ListLogs returns audit entries filtered by the query parameters, newest
// first, with the total match count for pagination.
// GET /security/logs.
func (h *SecurityHandlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseEventFilter(r.URL.Query())
	if err != nil {
		WriteAppError(w, err)
		return
	}

	opts := ParseListOptions(r.URL.Query())
	events, total, err := h.Audit.List(r.Context(), filter, opts)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	if events == nil {
		events = []model.SecurityEvent{}
	}
	WriteJSON(w, http.StatusOK, logListResponse{
		Logs:    events,
		Total:   total,
		Filters: newLogFilterView(filter, opts),
	})
}

// Stats returns event counts by type and day for the trailing days given by
// "dias" (default 7).
// GET /security/stats.
func (h *SecurityHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Audit.Stats(r.Context(), parseIntParam(r.URL.Query(), "dias"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// Summary returns the aggregated security dashboard: recent activity,
// suspicious source addresses, currently locked accounts, and derived
// warnings.
// GET /security/summary.
func (h *SecurityHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Audit.Overview(r.Context(), parseIntParam(r.URL.Query(), "dias"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, overview)
}

type unlockResponse struct {
	Message    string   `json:"message"`
	User       userView `json:"usuario"`
	UnlockedBy string   `json:"desbloqueado_por"`
}

// Unlock clears a lockout on the account named by the email path segment, on
// behalf of the calling administrator.
// POST /security/unlock/{email}.
func (h *SecurityHandlers) Unlock(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PathValue("email"))
	if email == "" {
		WriteAppError(w, apperrors.ValidationField("email", "account email is required"))
		return
	}

	sess := GetSessionFromContext(r.Context())
	p, err := h.Auth.Unlock(r.Context(), sess, email, RequestMeta(r))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, unlockResponse{
		Message:    "Cuenta desbloqueada correctamente",
		User:       userView{ID: p.ID, Nombre: p.Name, Email: p.Email, Rol: p.Role},
		UnlockedBy: sess.Email,
	})
}

type principalListResponse struct {
	Usuarios []model.Principal `json:"usuarios"`
}

// ListPrincipals returns registered accounts for the admin console.
// GET /principals.
func (h *SecurityHandlers) ListPrincipals(w http.ResponseWriter, r *http.Request) {
	principals, err := h.Credentials.List(r.Context(), ParseListOptions(r.URL.Query()))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if principals == nil {
		principals = []model.Principal{}
	}
	WriteJSON(w, http.StatusOK, principalListResponse{Usuarios: principals})
}
