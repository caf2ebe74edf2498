package system

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetReqLoggerFallbackWhenContextNil(t *testing.T) {
	fallback := zap.NewNop().Sugar()
	require.Same(t, fallback, GetReqLogger(nil, fallback))
}

func TestGetReqLoggerFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := zap.NewNop().Sugar()
	stored := zap.NewNop().Sugar()
	ctx.Set(ReqLoggerKey, stored)
	require.Same(t, stored, GetReqLogger(ctx, fallback))
}

func TestGetReqLoggerIgnoresInvalidTypes(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := zap.NewNop().Sugar()
	ctx.Set(ReqLoggerKey, "not-a-logger")
	require.Same(t, fallback, GetReqLogger(ctx, fallback))
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zap.InfoLevel)
	fallback := zap.NewNop().Sugar()

	r := gin.New()
	r.Use(RequestLogger(zap.New(core).Sugar()))
	r.GET("/", func(c *gin.Context) {
		GetReqLogger(c, fallback).Infow("handled")
		c.Status(http.StatusNoContent)
	})

	t.Run("mints an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		entries := recorded.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, id, entries[0].ContextMap()["requestID"])
	})

	t.Run("reuses a valid incoming id", func(t *testing.T) {
		want := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, want)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Header().Get(RequestIDHeader))
	})

	t.Run("replaces a malformed incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "<script>")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
	})
}

func TestEnrichReqLoggerWithViewer(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Set("sessionID", "s-1")
	ctx.Set("subject", "user-42")

	core, recorded := observer.New(zap.DebugLevel)
	EnrichReqLoggerWithViewer(ctx, zap.New(core).Sugar()).Infow("final-log")

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "s-1", fields["sessionID"])
	assert.Equal(t, "user-42", fields["subject"])
}

func TestEnrichReqLoggerWithViewerNil(t *testing.T) {
	require.Nil(t, EnrichReqLoggerWithViewer(nil, nil))
}
