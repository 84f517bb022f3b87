package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hackmate/internal/platform/logger"
	dErrors "hackmate/pkg/domain-errors"
)

type statusUpdate struct {
	Status  string `json:"status" validate:"required,notblank"`
	Message string `json:"message"`
}

func (u *statusUpdate) Normalize() {
	u.Status = strings.ToLower(strings.TrimSpace(u.Status))
}

type plainRequest struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestDecodeJSON(t *testing.T) {
	log := logger.Discard()

	t.Run("successful decode", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"test","value":42}`))
		w := httptest.NewRecorder()

		result, ok := DecodeJSON[plainRequest](w, req, log)

		assert.True(t, ok)
		require.NotNil(t, result)
		assert.Equal(t, "test", result.Name)
		assert.Equal(t, 42, result.Value)
	})

	t.Run("invalid JSON returns error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{invalid json}`))
		w := httptest.NewRecorder()

		result, ok := DecodeJSON[plainRequest](w, req, log)

		assert.False(t, ok)
		assert.Nil(t, result)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w)
		assert.False(t, env.Success)
		assert.Equal(t, "bad_request", env.Error)
	})

	t.Run("empty body returns error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(""))
		w := httptest.NewRecorder()

		_, ok := DecodeJSON[plainRequest](w, req, log)

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDecodeAndValidate(t *testing.T) {
	log := logger.Discard()

	t.Run("normalizes before validating", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"status":"  Registered "}`))
		w := httptest.NewRecorder()

		result, ok := DecodeAndValidate[statusUpdate](w, req, log)

		require.True(t, ok)
		assert.Equal(t, "registered", result.Status)
	})

	t.Run("validation failure is field scoped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"status":"   "}`))
		w := httptest.NewRecorder()

		result, ok := DecodeAndValidate[statusUpdate](w, req, log)

		assert.False(t, ok)
		assert.Nil(t, result)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, string(dErrors.CodeValidation), env.Error)
		assert.Contains(t, env.Message, "status")
	})
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"conflict keeps message", dErrors.New(dErrors.CodeConflict, "already registered"), http.StatusConflict, "conflict", "already registered"},
		{"not found", dErrors.New(dErrors.CodeNotFound, "Hackathon not found"), http.StatusNotFound, "not_found", "Hackathon not found"},
		{"unauthorized", dErrors.New(dErrors.CodeUnauthorized, "token required"), http.StatusUnauthorized, "unauthorized", "token required"},
		{"plain error hidden", errors.New("db exploded"), http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			env := decodeEnvelope(t, w)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Error)
			assert.Equal(t, tt.wantMsg, env.Message)
		})
	}
}

func TestWriteData(t *testing.T) {
	w := httptest.NewRecorder()
	WriteData(w, http.StatusOK, map[string]string{"status": "pending"})

	var body struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "pending", body.Data["status"])
}
