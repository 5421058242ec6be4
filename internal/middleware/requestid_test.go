package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRequestIDRouter echoes the gin.Context and context.Context request ids back as headers.
func newRequestIDRouter() *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.Header("X-Context-Request-ID", c.GetString(RequestIDKey))
		c.Header("X-Ctx-Request-ID", RequestIDFrom(c.Request.Context()))
		c.Status(http.StatusOK)
	})
	return r
}

func sendWithRequestID(r http.Handler, id string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id != "" {
		req.Header.Set(RequestIDHeader, id)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDMiddleware_GeneratesUUID(t *testing.T) {
	w := sendWithRequestID(newRequestIDRouter(), "")

	id := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, w.Header().Get("X-Context-Request-ID"))
	assert.Equal(t, id, w.Header().Get("X-Ctx-Request-ID"))
}

func TestRequestIDMiddleware_PropagatesIncomingID(t *testing.T) {
	w := sendWithRequestID(newRequestIDRouter(), "upstream-id-001")
	assert.Equal(t, "upstream-id-001", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "upstream-id-001", w.Header().Get("X-Ctx-Request-ID"))
}

func TestRequestIDMiddleware_ReplacesOversizedID(t *testing.T) {
	w := sendWithRequestID(newRequestIDRouter(), strings.Repeat("x", 200))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRequestIDMiddleware_DifferentIDsPerRequest(t *testing.T) {
	r := newRequestIDRouter()
	seen := make(map[string]bool)
	for range 10 {
		id := sendWithRequestID(r, "").Header().Get(RequestIDHeader)
		assert.False(t, seen[id], "duplicate request id %s", id)
		seen[id] = true
	}
}

func TestAccessLogMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(RequestIDMiddleware(), AccessLogMiddleware(logger))
	r.GET("/items/:id", func(c *gin.Context) {
		c.Set(UserIDKey, "user-1")
		c.Status(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodGet, "/items/7", nil)
	req.Header.Set(RequestIDHeader, "rid-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "rid-1", entry["request_id"])
	assert.Equal(t, "/items/:id", entry["path"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.EqualValues(t, 500, entry["status"])
}
