package mail

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/config"
	"github.com/telekom/leadform/pkg/metrics"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string // plain text fallback
}

// Sender delivers a message exactly once; retries are left to the caller.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Provider() string
}

// NewSender builds the sender selected by cfg.Provider.
func NewSender(cfg config.Mail, log *zap.SugaredLogger) (Sender, error) {
	from := Address{Email: cfg.SenderAddress, Name: cfg.SenderName}
	switch cfg.Provider {
	case "smtp":
		return NewSMTPSender(cfg, log), nil
	case "api":
		return NewAPISender(cfg.APIURL, cfg.APIKey, from, log)
	case "log", "":
		return NewLogSender(from, log), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// Address is a sender identity.
type Address struct {
	Email string
	Name  string
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

func observe(provider string, err error) {
	if err != nil {
		metrics.MailSendFailure.WithLabelValues(provider).Inc()
		return
	}
	metrics.MailSendSuccess.WithLabelValues(provider).Inc()
}

func validate(msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("cannot send email with no receiver")
	}
	if msg.HTML == "" && msg.Text == "" {
		return fmt.Errorf("cannot send email with empty body")
	}
	return nil
}
