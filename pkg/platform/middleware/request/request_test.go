package request

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miriesgo/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	capture := func(header string) (string, *httptest.ResponseRecorder) {
		var captured string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetRequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
		if header != "" {
			req.Header.Set("X-Request-ID", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return captured, w
	}

	t.Run("generates a uuid when absent", func(t *testing.T) {
		id, w := capture("")
		assert.Len(t, id, 36)
		assert.Equal(t, id, w.Header().Get("X-Request-ID"))
	})

	t.Run("reuses a valid client id", func(t *testing.T) {
		id, _ := capture("front-end.42_a")
		assert.Equal(t, "front-end.42_a", id)
	})

	t.Run("replaces ids with unsafe characters", func(t *testing.T) {
		id, _ := capture("abc\ninjected")
		assert.NotEqual(t, "abc\ninjected", id)
		assert.Len(t, id, 36)
	})

	t.Run("replaces oversized ids", func(t *testing.T) {
		id, _ := capture(strings.Repeat("a", MaxRequestIDLength+1))
		assert.Len(t, id, 36)
	})
}

func TestClientMetadata(t *testing.T) {
	capture := func(trust bool, remote, xff string) (string, string) {
		var ip, ua string
		handler := ClientMetadata(trust)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip = requestcontext.ClientIP(r.Context())
			ua = requestcontext.UserAgent(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		req.Header.Set("User-Agent", "curl/8.4.0")
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
		return ip, ua
	}

	t.Run("uses the remote address", func(t *testing.T) {
		ip, ua := capture(false, "10.0.0.7:5555", "")
		assert.Equal(t, "10.0.0.7", ip)
		assert.Equal(t, "curl/8.4.0", ua)
	})

	t.Run("ignores forwarded header from untrusted peers", func(t *testing.T) {
		ip, _ := capture(false, "10.0.0.7:5555", "190.1.2.3")
		assert.Equal(t, "10.0.0.7", ip)
	})

	t.Run("takes the first forwarded hop behind a trusted proxy", func(t *testing.T) {
		ip, _ := capture(true, "10.0.0.7:5555", "190.1.2.3, 10.0.0.1")
		assert.Equal(t, "190.1.2.3", ip)
	})
}

func TestRequestTime(t *testing.T) {
	var first, second time.Time
	handler := RequestTime(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first = requestcontext.Now(r.Context())
		time.Sleep(2 * time.Millisecond)
		second = requestcontext.Now(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, first, second)
}

func TestRecovery(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map write")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/reports/1", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, w.Body.String())
	assert.Contains(t, logs.String(), "panic recovered")
}

func TestContentTypeJSON(t *testing.T) {
	handler := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("rejects form bodies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/loans/1", strings.NewReader("a=b"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("accepts json with charset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/loans/1", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/clients", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origins get no allow header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestLoggerSkipsSuccessfulHealthChecks(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Empty(t, logs.String())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/clients", nil))
	require.NotEmpty(t, logs.String())
	assert.Contains(t, logs.String(), `"path":"/api/clients"`)
}
