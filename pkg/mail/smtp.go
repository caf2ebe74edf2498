package mail

import (
	"context"
	"crypto/tls"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/leadform/pkg/config"
	"github.com/telekom/leadform/pkg/lead"
)

type SMTPSender struct {
	dialer *gomail.Dialer
	from   Address
	log    *zap.SugaredLogger
}

func NewSMTPSender(cfg config.Mail, log *zap.SugaredLogger) *SMTPSender {
	log = log.Named("smtp")
	log.Infow("Initializing SMTP mail sender", "host", cfg.Host, "port", cfg.Port, "user", cfg.User)
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warnw("InsecureSkipVerify is enabled for mail TLS connection")
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in for test relays
	}
	return &SMTPSender{
		dialer: d,
		from:   Address{Email: cfg.SenderAddress, Name: cfg.SenderName},
		log:    log,
	}
}

// Send dials the relay and delivers msg. gomail has no context support, so ctx is
// only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from.Email, s.from.Name)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}

	err := s.dialer.DialAndSend(m)
	observe(s.Provider(), err)
	if err != nil {
		s.log.Warnw("Mail send failed", "to", lead.MaskEmail(msg.To), "error", err)
		return err
	}
	s.log.Infow("Mail sent", "to", lead.MaskEmail(msg.To))
	return nil
}

func (s *SMTPSender) Provider() string { return "smtp" }
