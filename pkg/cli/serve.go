package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/api"
	"github.com/telekom/leadform/pkg/audit"
	"github.com/telekom/leadform/pkg/auth"
	"github.com/telekom/leadform/pkg/config"
	"github.com/telekom/leadform/pkg/intake"
	"github.com/telekom/leadform/pkg/mail"
	"github.com/telekom/leadform/pkg/notify"
	"github.com/telekom/leadform/pkg/personalize"
	"github.com/telekom/leadform/pkg/ratelimit"
	"github.com/telekom/leadform/pkg/store"
	"github.com/telekom/leadform/pkg/submission"
	"github.com/telekom/leadform/pkg/telemetry"
	"github.com/telekom/leadform/pkg/version"
)

func NewServeCommand() *cobra.Command {
	var notifyOnly bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lead form, the intake API and the notification endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := getOptions(cmd)
			logger := SetupLogger(opts.Debug)
			defer func() { _ = logger.Sync() }()
			log := logger.Sugar()
			log.With("version", version.Version).Info("Starting leadform")

			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return fmt.Errorf("loading leadform config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := Build(ctx, cfg, BuildOptions{Debug: opts.Debug, NotifyOnly: notifyOnly}, logger)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Server.Listen(ctx)
		},
	}

	cmd.Flags().BoolVar(&notifyOnly, "notify-only", getEnvBool("LEADFORM_NOTIFY_ONLY", false),
		"Serve only the notification endpoint, e.g. next to a hosted form and database")

	return cmd
}

type BuildOptions struct {
	Debug bool
	// NotifyOnly skips the store and the intake API.
	NotifyOnly bool
}

// App is a fully wired server together with the resources it owns.
type App struct {
	Server  *api.Server
	Intake  *intake.Controller
	closers []func()
}

// Close releases everything Build acquired, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(f func()) {
	a.closers = append(a.closers, f)
}

// Build wires the configured components into a server. On error everything acquired
// so far is released.
func Build(ctx context.Context, cfg config.Config, opts BuildOptions, logger *zap.Logger) (_ *App, err error) {
	log := logger.Sugar()
	app := &App{}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	_, shutdownTracing, err := telemetry.Init(ctx, telemetry.FromConfig(cfg.Tracing, version.Version, log))
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	app.onClose(func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			log.Warnw("Flushing traces failed", "error", err)
		}
	})

	var service *notify.Service
	if cfg.Notify.Mode == "local" || opts.NotifyOnly {
		service, err = buildNotifyService(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
	}

	var (
		controllers []api.APIController
		ready       api.Pinger
	)
	if service != nil {
		controllers = append(controllers, notify.NewController(service, cfg.Notify.AllowedOrigins, log))
	}

	if !opts.NotifyOnly {
		s, err := store.Open(ctx, cfg.Store, log)
		if err != nil {
			return nil, err
		}
		app.onClose(func() {
			if err := s.Close(); err != nil {
				log.Warnw("Closing store failed", "error", err)
			}
		})
		ready = s

		auditor, err := audit.FromConfig(cfg.Audit, log)
		if err != nil {
			return nil, fmt.Errorf("creating audit sinks: %w", err)
		}
		app.onClose(func() {
			if err := auditor.Close(); err != nil {
				log.Warnw("Closing audit sinks failed", "error", err)
			}
		})

		authHandler, err := auth.NewAuth(cfg.Auth, log)
		if err != nil {
			return nil, fmt.Errorf("creating token verifier: %w", err)
		}
		app.onClose(authHandler.Close)

		submitLimiter := ratelimit.New(ratelimit.DefaultSubmitConfig(cfg.RateLimit))
		app.onClose(submitLimiter.Stop)
		readLimiter := ratelimit.NewAuthenticated(ratelimit.DefaultReadConfig())
		app.onClose(readLimiter.Stop)

		intakeOpts := intake.Options{
			Store:         s,
			Notifier:      notifierFor(cfg, service, log),
			SessionTTL:    config.Duration(cfg.Session.TTL, 30*time.Minute),
			CookieName:    cfg.Session.CookieName,
			Auth:          authHandler,
			SubmitLimiter: submitLimiter.Middleware(),
			ReadLimiter:   readLimiter.Middleware(),
			CORS:          api.IntakeCORS(cfg.Server.AllowedOrigins),
		}
		if auditor.Enabled() {
			intakeOpts.Auditor = auditor
		}
		app.Intake = intake.NewController(intakeOpts, log)
		app.onClose(app.Intake.Stop)
		controllers = append(controllers, app.Intake)
	}

	if len(controllers) == 0 {
		return nil, errors.New("nothing to serve: notify mode is not local and --notify-only skips the intake API")
	}

	app.Server = api.NewServer(logger, cfg, opts.Debug, ready)
	app.onClose(app.Server.Close)
	if err := app.Server.RegisterAll(controllers); err != nil {
		return nil, fmt.Errorf("registering controllers: %w", err)
	}
	return app, nil
}

func buildNotifyService(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*notify.Service, error) {
	sender, err := mail.NewSender(cfg.Mail, log)
	if err != nil {
		return nil, fmt.Errorf("creating mail sender: %w", err)
	}
	p, err := personalize.New(ctx, cfg.AI, log)
	if err != nil {
		return nil, fmt.Errorf("creating personalizer: %w", err)
	}
	service, err := notify.NewService(cfg.Notify, config.Duration(cfg.AI.Timeout, 10*time.Second), cfg.Frontend.BrandingName, p, sender, log)
	if err != nil {
		return nil, fmt.Errorf("creating notification service: %w", err)
	}
	log.Infow("Notification service ready", "mailProvider", sender.Provider(), "personalized", cfg.AI.Enabled)
	return service, nil
}

// notifierFor picks how the intake controller requests confirmation emails.
func notifierFor(cfg config.Config, service *notify.Service, log *zap.SugaredLogger) submission.Notifier {
	switch {
	case cfg.Notify.Mode == "remote":
		return notify.NewClient(cfg.Notify.URL, config.Duration(cfg.Notify.Timeout, 20*time.Second), log)
	case service != nil && cfg.Notify.Mode == "local":
		return notify.ServiceNotifier{Service: service}
	default:
		log.Infow("Confirmation emails are disabled")
		return nil
	}
}
