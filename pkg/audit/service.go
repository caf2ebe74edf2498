package audit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/config"
	"github.com/telekom/leadform/pkg/metrics"
)

// Service fans events out to every configured sink. Sink failures are logged and
// counted, never returned: auditing must not change the outcome of a submission.
type Service struct {
	sinks   []Sink
	timeout time.Duration
	log     *zap.SugaredLogger
}

func NewService(log *zap.SugaredLogger, sinks ...Sink) *Service {
	return &Service{sinks: sinks, timeout: 5 * time.Second, log: log.Named("audit")}
}

// FromConfig builds the sinks enabled in cfg.
func FromConfig(cfg config.Audit, log *zap.SugaredLogger) (*Service, error) {
	var sinks []Sink
	if cfg.Log {
		sinks = append(sinks, NewLogSink(log.Desugar()))
	}
	if cfg.Kafka != nil && len(cfg.Kafka.Brokers) > 0 {
		k, err := NewKafkaSink(KafkaSinkConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, log.Desugar())
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, k)
	}
	return NewService(log, sinks...), nil
}

// Emit writes event to all sinks. A nil Service is a no-op.
func (s *Service) Emit(ctx context.Context, event *Event) {
	if s == nil || event == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, event); err != nil {
			metrics.AuditEventsFailed.WithLabelValues(sink.Name()).Inc()
			s.log.Warnw("audit sink write failed", "sink", sink.Name(), "event_type", event.Type, "error", err)
			continue
		}
		metrics.AuditEventsWritten.WithLabelValues(sink.Name()).Inc()
	}
}

func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}

func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
