package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gestorhq/portal-api/internal/errors"
)

func writeAndDecode(t *testing.T, err error) (int, map[string]string) {
	t.Helper()
	rec := httptest.NewRecorder()
	WriteAppError(rec, err)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestWriteAppError_CuratedMessageOnly(t *testing.T) {
	cause := fmt.Errorf("dial tcp 10.0.0.5:5432: connect: connection refused")
	err := fmt.Errorf("create principal: %w",
		apperrors.Wrap(cause, apperrors.ErrCodeConflict, "This value already exists. Please choose a different one."))

	code, body := writeAndDecode(t, err)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", body["error"])
	assert.Equal(t, "This value already exists. Please choose a different one.", body["message"])
	assert.NotContains(t, body["message"], "create principal")
	assert.NotContains(t, body["message"], "dial tcp")
}

func TestWriteAppError_NonAppErrorIsOpaque(t *testing.T) {
	code, body := writeAndDecode(t, fmt.Errorf("pq: relation does not exist"))

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal", body["error"])
	assert.NotContains(t, body["message"], "pq:")
}

func TestWriteAppError_InfraErrorsAreGeneric500(t *testing.T) {
	for _, err := range []error{
		apperrors.Unavailable("session store unreachable"),
		apperrors.Wrap(fmt.Errorf("context deadline exceeded"), apperrors.ErrCodeTimeout, "operation timed out"),
	} {
		code, body := writeAndDecode(t, err)
		assert.Equal(t, http.StatusInternalServerError, code, "%v", err)
		assert.Equal(t, "internal", body["error"], "%v", err)
		assert.NotContains(t, body["message"], "store", "%v", err)
		assert.NotContains(t, body["message"], "timed out", "%v", err)
	}
}

func TestWriteAppError_ValidationIncludesField(t *testing.T) {
	code, body := writeAndDecode(t, apperrors.ValidationField("email", "This email is already registered."))

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", body["error"])
	assert.Equal(t, "email", body["campo"])
}
