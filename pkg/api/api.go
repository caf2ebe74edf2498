package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/apiresponses"
	"github.com/telekom/leadform/pkg/config"
	"github.com/telekom/leadform/pkg/metrics"
	"github.com/telekom/leadform/pkg/ratelimit"
	"github.com/telekom/leadform/pkg/system"
	"github.com/telekom/leadform/pkg/version"
)

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	gin        *gin.Engine
	config     config.Config
	log        *zap.SugaredLogger
	ready      Pinger
	apiLimiter *ratelimit.IPRateLimiter
}

// NewServer builds the engine with logging, recovery and the shared endpoints. ready
// is consulted by /readyz and may be nil.
func NewServer(log *zap.Logger, cfg config.Config, debug bool, ready Pinger) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		system.RequestLogger(log.Sugar()),
	)
	if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		log.Sugar().Warnw("Ignoring invalid trusted proxies", "trustedProxies", cfg.Server.TrustedProxies, "error", err)
		_ = engine.SetTrustedProxies(nil)
	}

	s := &Server{
		gin:        engine,
		config:     cfg,
		log:        log.Sugar().Named("api"),
		ready:      ready,
		apiLimiter: ratelimit.New(ratelimit.DefaultAPIConfig()),
	}

	engine.GET("healthz", s.healthz)
	engine.GET("readyz", s.readyz)
	engine.GET("metrics", gin.WrapH(metrics.MetricsHandler()))
	engine.GET("api/config", s.apiLimiter.Middleware(), s.getConfig)
	engine.GET("api/version", s.getVersion)

	if cfg.Frontend.Dir != "" {
		engine.NoRoute(ServeForm(cfg.Frontend.Dir))
	}

	return s
}

// IntakeCORS admits the given origins to the intake endpoints. Nil means same-origin only.
func IntakeCORS(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return nil
	}
	return cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Session-ID"},
		ExposeHeaders: []string{"X-Session-ID", system.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	})
}

func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api")
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Close stops background goroutines owned by the server.
func (s *Server) Close() {
	if s.apiLimiter != nil {
		s.apiLimiter.Stop()
	}
}

// Listen serves until ctx is cancelled, then drains in-flight requests for at most the
// configured shutdown timeout.
func (s *Server) Listen(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.ListenAddress,
		Handler:           s.gin,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.config.Server.TLSCertFile != "" && s.config.Server.TLSKeyFile != "" {
			err = srv.ListenAndServeTLS(s.config.Server.TLSCertFile, s.config.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()
	s.log.Infow("Listening", "address", srv.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := config.Duration(s.config.Server.ShutdownTimeout, 15*time.Second)
	s.log.Infow("Shutting down", "timeout", timeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.config.Public())
}

func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, version.GetBuildInfo())
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) readyz(c *gin.Context) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			system.GetReqLogger(c, s.log).Warnw("Readiness check failed", "error", err)
			apiresponses.RespondServiceUnavailable(c, "store")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
