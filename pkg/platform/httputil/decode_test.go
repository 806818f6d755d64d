package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "miriesgo/pkg/domain-errors"
)

type patchRequest struct {
	Status  *string `json:"status"`
	Balance *string `json:"currentBalance"`
}

type preparedRequest struct {
	Name      string `json:"name"`
	sanitized bool
	order     []string
}

func (r *preparedRequest) Sanitize() {
	r.sanitized = true
	r.order = append(r.order, "sanitize")
}

func (r *preparedRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.order = append(r.order, "normalize")
}

func (r *preparedRequest) Validate() error {
	r.order = append(r.order, "validate")
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type domainValidated struct {
	Tag string `json:"tag"`
}

func (r *domainValidated) Validate() error {
	return dErrors.New(dErrors.CodeBadRequest, "unknown tag")
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestDecodeJSON(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("sparse body leaves absent fields nil", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"status":"Pagado"}`))
		w := httptest.NewRecorder()

		result, ok := DecodeJSON[patchRequest](w, req, logger, ctx, "req-1")
		require.True(t, ok)
		require.NotNil(t, result.Status)
		assert.Equal(t, "Pagado", *result.Status)
		assert.Nil(t, result.Balance)
	})

	t.Run("unknown field is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"balance":"10"}`))
		w := httptest.NewRecorder()

		result, ok := DecodeJSON[patchRequest](w, req, logger, ctx, "req-2")
		assert.False(t, ok)
		assert.Nil(t, result)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeError(t, w)["error"])
	})

	t.Run("malformed json is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{nope`))
		w := httptest.NewRecorder()

		_, ok := DecodeJSON[patchRequest](w, req, logger, ctx, "req-3")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("runs sanitize, normalize, validate in order", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"  Ana  "}`))
		w := httptest.NewRecorder()

		result, ok := DecodeAndPrepare[preparedRequest](w, req, logger, ctx, "req-4")
		require.True(t, ok)
		assert.True(t, result.sanitized)
		assert.Equal(t, "Ana", result.Name)
		assert.Equal(t, []string{"sanitize", "normalize", "validate"}, result.order)
	})

	t.Run("plain validation error becomes validation_error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"   "}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[preparedRequest](w, req, logger, ctx, "req-5")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, "validation_error", body["error"])
		assert.Equal(t, "name is required", body["error_description"])
	})

	t.Run("domain validation error keeps its code", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"tag":"x"}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[domainValidated](w, req, logger, ctx, "req-6")
		assert.False(t, ok)
		assert.Equal(t, "bad_request", decodeError(t, w)["error"])
	})
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", dErrors.New(dErrors.CodeNotFound, "client not found"), http.StatusNotFound, "not_found"},
		{"validation", dErrors.New(dErrors.CodeValidation, "unknown loan status"), http.StatusBadRequest, "validation_error"},
		{"unavailable", dErrors.New(dErrors.CodeUnavailable, "scoring timed out"), http.StatusServiceUnavailable, "service_unavailable"},
		{"locked", dErrors.New(dErrors.CodeLocked, "account locked"), http.StatusLocked, "account_locked"},
		{"plain error", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decodeError(t, w)["error"])
		})
	}

	t.Run("internal errors hide their message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Wrap(errors.New("duplicate key value violates"), dErrors.CodeInternal, "insert flag: duplicate key"))
		body := decodeError(t, w)
		assert.Equal(t, "internal_error", body["error"])
		assert.NotContains(t, body, "error_description")
	})
}
