package httpx

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gestorhq/portal-api/internal/domain/model"
	apperrors "github.com/gestorhq/portal-api/internal/errors"
)

// ParseEventFilter builds a security-event filter from URL query parameters.
// Time bounds accept RFC 3339. A repeated "tipo" parameter yields multiple
// event types.
func ParseEventFilter(q url.Values) (model.SecurityEventFilter, error) {
	var filter model.SecurityEventFilter

	for _, raw := range q["tipo"] {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		filter.Types = append(filter.Types, model.EventType(raw))
	}
	filter.Outcome = model.Outcome(strings.TrimSpace(q.Get("resultado")))
	filter.PrincipalID = strings.TrimSpace(q.Get("usuarioId"))
	filter.Email = strings.TrimSpace(q.Get("email"))
	filter.IP = strings.TrimSpace(q.Get("ip"))

	from, err := parseTimeParam(q, "fechaDesde")
	if err != nil {
		return filter, err
	}
	filter.From = from

	to, err := parseTimeParam(q, "fechaHasta")
	if err != nil {
		return filter, err
	}
	filter.To = to

	if err := filter.Validate(); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseTimeParam(q url.Values, key string) (time.Time, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperrors.ValidationField(key, "expected an RFC 3339 timestamp")
	}
	return t, nil
}

// ParseListOptions reads "limite" and "offset". Unparseable or missing values
// fall back to zero; repos clamp the range.
func ParseListOptions(q url.Values) model.ListOptions {
	return model.ListOptions{
		Limit:  parseIntParam(q, "limite"),
		Offset: parseIntParam(q, "offset"),
	}
}

func parseIntParam(q url.Values, key string) int {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
