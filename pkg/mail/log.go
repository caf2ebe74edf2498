package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/lead"
)

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	from Address
	log  *zap.SugaredLogger
}

func NewLogSender(from Address, log *zap.SugaredLogger) *LogSender {
	return &LogSender{from: from, log: log.Named("mail-log")}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	s.log.Infow("Mail delivery disabled, logging message",
		"from", s.from.String(),
		"to", lead.MaskEmail(msg.To),
		"subject", msg.Subject,
		"bodyBytes", len(msg.HTML)+len(msg.Text))
	observe(s.Provider(), nil)
	return nil
}

func (s *LogSender) Provider() string { return "log" }
