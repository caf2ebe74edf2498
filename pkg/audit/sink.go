package audit

import (
	"context"

	"go.uber.org/zap"
)

// Sink defines the interface for audit event destinations.
type Sink interface {
	// Write sends an audit event to the sink.
	Write(ctx context.Context, event *Event) error

	// Close releases any resources held by the sink.
	Close() error

	// Name returns the sink's identifier.
	Name() string
}

// LogSink writes audit events to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

func (s *LogSink) Write(_ context.Context, event *Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Time("timestamp", event.Timestamp),
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session_id", event.SessionID))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.Industry != "" {
		fields = append(fields, zap.String("industry", event.Industry))
	}
	if event.LeadID != "" {
		fields = append(fields, zap.String("lead_id", event.LeadID))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	s.logger.Info("audit_event", fields...)
	return nil
}

func (s *LogSink) Close() error { return nil }

func (s *LogSink) Name() string { return "log" }
