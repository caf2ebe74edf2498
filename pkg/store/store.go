package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/config"
	"github.com/telekom/leadform/pkg/lead"
	"github.com/telekom/leadform/pkg/metrics"
	"github.com/telekom/leadform/pkg/policy"
	"github.com/telekom/leadform/pkg/store/memory"
	"github.com/telekom/leadform/pkg/store/rest"
	"github.com/telekom/leadform/pkg/store/sqlite"
)

// Store persists leads. Insert is a single round trip; a duplicate email yields an
// error wrapping lead.ErrDuplicateEmail.
type Store interface {
	Insert(ctx context.Context, l lead.Lead) (lead.Lead, error)
	List(ctx context.Context, v policy.Viewer) ([]lead.Lead, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Store, log *zap.SugaredLogger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "memory", "":
		s = memory.New()
	case "sqlite":
		s, err = sqlite.Open(ctx, cfg.DSN, log)
	case "rest":
		s, err = rest.New(rest.Options{
			BaseURL: cfg.URL,
			Key:     cfg.Key,
			Table:   cfg.Table,
			Timeout: config.Duration(cfg.Timeout, 10*time.Second),
		}, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Driver, err)
	}
	log.Infow("Lead store ready", "driver", cfg.Driver)
	return Instrument(s, cfg.Driver), nil
}

// Instrument wraps a store with insert metrics.
func Instrument(s Store, driver string) Store {
	return &instrumented{Store: s, driver: driver}
}

type instrumented struct {
	Store
	driver string
}

func (i *instrumented) Insert(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	start := time.Now()
	out, err := i.Store.Insert(ctx, l)
	metrics.StoreInsertDuration.WithLabelValues(i.driver).Observe(time.Since(start).Seconds())
	metrics.StoreInserts.WithLabelValues(i.driver, insertResult(err)).Inc()
	return out, err
}

func insertResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case lead.IsDuplicate(err):
		return "duplicate"
	default:
		return "error"
	}
}
