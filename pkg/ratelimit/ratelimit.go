package ratelimit

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/telekom/leadform/pkg/apiresponses"
	"github.com/telekom/leadform/pkg/config"
	"github.com/telekom/leadform/pkg/metrics"
)

// Config holds rate limiter configuration
type Config struct {
	// Name labels the rejection metric.
	Name string
	// Rate is the number of requests allowed per second
	Rate float64
	// Burst is the maximum number of requests allowed in a burst
	Burst int
	// CleanupInterval is how often to clean up stale entries
	CleanupInterval time.Duration
	// MaxAge is how long to keep an entry after last access
	MaxAge time.Duration
}

// AuthenticatedConfig holds separate rate limits for authenticated and anonymous callers
type AuthenticatedConfig struct {
	Unauthenticated Config
	Authenticated   Config
	// UserIdentityKey is the gin context key holding the caller identity
	UserIdentityKey string
}

// DefaultSubmitConfig limits lead submissions per IP. Form submits are rare, so the
// limit is tight.
func DefaultSubmitConfig(cfg config.RateLimit) Config {
	r, burst := cfg.SubmitRate, cfg.SubmitBurst
	if r <= 0 {
		r = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return Config{
		Name:            "submit",
		Rate:            r,
		Burst:           burst,
		CleanupInterval: time.Minute,
		MaxAge:          5 * time.Minute,
	}
}

// DefaultAPIConfig returns default config for the remaining API endpoints
func DefaultAPIConfig() Config {
	return Config{
		Name:            "api",
		Rate:            20,
		Burst:           50,
		CleanupInterval: time.Minute,
		MaxAge:          5 * time.Minute,
	}
}

// DefaultReadConfig limits lead listing: per IP for anonymous callers, per token
// subject for authenticated ones.
func DefaultReadConfig() AuthenticatedConfig {
	return AuthenticatedConfig{
		Unauthenticated: Config{
			Name:            "read_anonymous",
			Rate:            5,
			Burst:           10,
			CleanupInterval: time.Minute,
			MaxAge:          5 * time.Minute,
		},
		Authenticated: Config{
			Name:            "read_authenticated",
			Rate:            20,
			Burst:           50,
			CleanupInterval: time.Minute,
			MaxAge:          10 * time.Minute,
		},
		UserIdentityKey: "subject",
	}
}

// entry holds rate limiter and last access time for an IP or user
type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// IPRateLimiter implements per-key rate limiting with automatic cleanup
type IPRateLimiter struct {
	mu      sync.RWMutex
	entries map[string]*entry
	config  Config
	done    chan struct{}
	once    sync.Once
}

// New creates a new per-IP rate limiter with the given configuration
func New(cfg Config) *IPRateLimiter {
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	if cfg.Name == "" {
		cfg.Name = "api"
	}

	rl := &IPRateLimiter{
		entries: make(map[string]*entry),
		config:  cfg,
		done:    make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow checks if a request for the given key should be allowed
func (rl *IPRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, exists := rl.entries[key]
	if !exists {
		e = &entry{
			limiter: rate.NewLimiter(rate.Limit(rl.config.Rate), rl.config.Burst),
		}
		rl.entries[key] = e
	}
	e.lastAccess = time.Now()

	return e.limiter.Allow()
}

// Middleware returns a Gin middleware that applies per-IP rate limiting
func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			metrics.RateLimited.WithLabelValues(rl.config.Name).Inc()
			apiresponses.RespondTooManyRequests(c, "Rate limit exceeded, please try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.once.Do(func() { close(rl.done) })
}

func (rl *IPRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.cleanupStaleEntries()
		}
	}
}

// cleanupStaleEntries removes entries that haven't been accessed recently
func (rl *IPRateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, e := range rl.entries {
		if now.Sub(e.lastAccess) > rl.config.MaxAge {
			delete(rl.entries, key)
		}
	}
}

// Len returns the current number of tracked keys
func (rl *IPRateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.entries)
}

// Config returns a copy of the current configuration
func (rl *IPRateLimiter) Config() Config {
	return rl.config
}

// AuthenticatedRateLimiter tracks authenticated callers by identity and everyone
// else by IP.
type AuthenticatedRateLimiter struct {
	ipLimiter   *IPRateLimiter
	userLimiter *IPRateLimiter
	userKey     string
}

func NewAuthenticated(cfg AuthenticatedConfig) *AuthenticatedRateLimiter {
	if cfg.UserIdentityKey == "" {
		cfg.UserIdentityKey = "subject"
	}
	return &AuthenticatedRateLimiter{
		ipLimiter:   New(cfg.Unauthenticated),
		userLimiter: New(cfg.Authenticated),
		userKey:     cfg.UserIdentityKey,
	}
}

// Allow returns (allowed, isAuthenticated)
func (arl *AuthenticatedRateLimiter) Allow(c *gin.Context) (bool, bool) {
	if userID, exists := c.Get(arl.userKey); exists {
		if userStr, ok := userID.(string); ok && userStr != "" {
			return arl.userLimiter.Allow(userStr), true
		}
	}
	return arl.ipLimiter.Allow(c.ClientIP()), false
}

// Middleware must run after the authentication middleware.
func (arl *AuthenticatedRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, isAuthenticated := arl.Allow(c)
		if !allowed {
			name := arl.ipLimiter.config.Name
			if isAuthenticated {
				name = arl.userLimiter.config.Name
			}
			metrics.RateLimited.WithLabelValues(name).Inc()
			apiresponses.RespondTooManyRequests(c, "Rate limit exceeded, please try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (arl *AuthenticatedRateLimiter) Stop() {
	arl.ipLimiter.Stop()
	arl.userLimiter.Stop()
}

func (arl *AuthenticatedRateLimiter) IPLen() int {
	return arl.ipLimiter.Len()
}

func (arl *AuthenticatedRateLimiter) UserLen() int {
	return arl.userLimiter.Len()
}
