package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/telekom/leadform/pkg/config"
	"github.com/telekom/leadform/pkg/metrics"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

func TestDefaultConfigs(t *testing.T) {
	t.Run("submit config from settings", func(t *testing.T) {
		cfg := DefaultSubmitConfig(config.RateLimit{SubmitRate: 0.5, SubmitBurst: 3})
		assert.Equal(t, "submit", cfg.Name)
		assert.Equal(t, 0.5, cfg.Rate)
		assert.Equal(t, 3, cfg.Burst)
	})

	t.Run("submit config defaults", func(t *testing.T) {
		cfg := DefaultSubmitConfig(config.RateLimit{})
		assert.Equal(t, float64(1), cfg.Rate)
		assert.Equal(t, 5, cfg.Burst)
	})

	t.Run("submit is tighter than the API", func(t *testing.T) {
		submit := DefaultSubmitConfig(config.RateLimit{})
		api := DefaultAPIConfig()
		assert.Less(t, submit.Rate, api.Rate)
		assert.Less(t, submit.Burst, api.Burst)
	})

	t.Run("authenticated reads get more", func(t *testing.T) {
		cfg := DefaultReadConfig()
		assert.Greater(t, cfg.Authenticated.Rate, cfg.Unauthenticated.Rate)
		assert.Equal(t, "subject", cfg.UserIdentityKey)
	})
}

func TestNewDefaults(t *testing.T) {
	rl := New(Config{Rate: 10, Burst: 20})
	defer rl.Stop()

	assert.Equal(t, time.Minute, rl.Config().CleanupInterval)
	assert.Equal(t, 5*time.Minute, rl.Config().MaxAge)
	assert.Equal(t, "api", rl.Config().Name)
}

func TestAllow(t *testing.T) {
	rl := New(Config{Rate: 1, Burst: 3})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "burst request %d", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "keys are limited independently")
	assert.Equal(t, 2, rl.Len())
}

func TestMiddleware(t *testing.T) {
	rl := New(Config{Name: "submit", Rate: 0.001, Burst: 2})
	defer rl.Stop()

	r := gin.New()
	r.Use(rl.Middleware())
	r.POST("/api/leads", func(c *gin.Context) { c.Status(http.StatusCreated) })

	before := testutil.ToFloat64(metrics.RateLimited.WithLabelValues("submit"))
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/leads", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimited.WithLabelValues("submit")))
}

func TestCleanup(t *testing.T) {
	rl := New(Config{Rate: 10, Burst: 10, CleanupInterval: 10 * time.Millisecond, MaxAge: 20 * time.Millisecond})
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	require.Equal(t, 1, rl.Len())
	assert.Eventually(t, func() bool { return rl.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestStopIdempotent(t *testing.T) {
	rl := New(DefaultAPIConfig())
	rl.Stop()
	rl.Stop()
}

func TestConcurrency(t *testing.T) {
	rl := New(Config{Rate: 1000, Burst: 1000})
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				rl.Allow("10.0.0.1")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, rl.Len())
}

func TestAuthenticatedMiddleware(t *testing.T) {
	arl := NewAuthenticated(AuthenticatedConfig{
		Unauthenticated: Config{Name: "read_anonymous", Rate: 0.001, Burst: 1},
		Authenticated:   Config{Name: "read_authenticated", Rate: 0.001, Burst: 2},
	})
	defer arl.Stop()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if sub := c.GetHeader("X-Test-Subject"); sub != "" {
			c.Set("subject", sub)
		}
		c.Next()
	}, arl.Middleware())
	r.GET("/api/leads", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(subject string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/leads", nil)
		req.RemoteAddr = "192.0.2.20:1234"
		if subject != "" {
			req.Header.Set("X-Test-Subject", subject)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do(""))
	assert.Equal(t, http.StatusTooManyRequests, do(""))
	assert.Equal(t, http.StatusOK, do("analyst"))
	assert.Equal(t, http.StatusOK, do("analyst"))
	assert.Equal(t, http.StatusTooManyRequests, do("analyst"))
	assert.Equal(t, 1, arl.IPLen())
	assert.Equal(t, 1, arl.UserLen())
}
