package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/config"
	"github.com/telekom/leadform/pkg/lead"
	"github.com/telekom/leadform/pkg/mail"
	"github.com/telekom/leadform/pkg/metrics"
	"github.com/telekom/leadform/pkg/personalize"
)

const tracerName = "github.com/telekom/leadform/pkg/notify"

// Request is the payload of a confirmation. Field names match the JSON contract of
// the notification endpoint.
type Request struct {
	Name     string `json:"name" binding:"required" validate:"required"`
	Email    string `json:"email" binding:"required,email" validate:"required,email"`
	Industry string `json:"industry" binding:"required" validate:"required"`
}

// RequestFor builds the confirmation request for a persisted lead.
func RequestFor(l lead.Lead) Request {
	return Request{Name: l.Name, Email: l.Email, Industry: l.Industry}
}

// Delivery describes a sent confirmation.
type Delivery struct {
	Personalized bool
	Provider     string
}

type Service struct {
	personalizer personalize.Personalizer
	sender       mail.Sender
	subject      *texttemplate.Template
	fallback     string
	branding     string
	timeout      time.Duration
	// personalizeTimeout is always shorter than timeout so the send keeps a budget.
	personalizeTimeout time.Duration
	log          *zap.SugaredLogger
}

var validate = validator.New()

func NewService(cfg config.Notify, aiTimeout time.Duration, branding string, p personalize.Personalizer, sender mail.Sender, log *zap.SugaredLogger) (*Service, error) {
	if sender == nil {
		return nil, errors.New("notify: mail sender is required")
	}
	if p == nil {
		p = personalize.Disabled{}
	}
	subject, err := ParseSubject(cfg.Subject)
	if err != nil {
		return nil, fmt.Errorf("parsing notify subject template: %w", err)
	}
	fallback := cfg.FallbackMessage
	if fallback == "" {
		fallback = config.DefaultFallbackMessage
	}
	timeout := config.Duration(cfg.Timeout, 20*time.Second)
	return &Service{
		personalizer:       p,
		sender:             sender,
		subject:            subject,
		fallback:           fallback,
		branding:           branding,
		timeout:            timeout,
		personalizeTimeout: personalizeBudget(aiTimeout, timeout),
		log:                log.Named("notify"),
	}, nil
}

// personalizeBudget caps the AI call at half the notify timeout when the configured
// AI timeout would leave nothing for the send.
func personalizeBudget(ai, total time.Duration) time.Duration {
	if ai <= 0 || ai >= total {
		return total / 2
	}
	return ai
}

// Notify sends exactly one confirmation email for req. Personalization problems are
// never fatal: the generic message is used instead. A failed send is returned as
// *lead.NotificationError.
func (s *Service) Notify(ctx context.Context, req Request) (Delivery, error) {
	if err := validate.Struct(req); err != nil {
		return Delivery{}, fmt.Errorf("invalid notification request: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "notify.Notify")
	defer span.End()

	log := s.log.With("to", lead.MaskEmail(req.Email), "industry", req.Industry)
	params := ConfirmationParams{
		Name:         req.Name,
		Industry:     req.Industry,
		BrandingName: s.branding,
	}

	message, err := s.personalize(ctx, req)
	delivery := Delivery{Provider: s.sender.Provider()}
	if err != nil {
		reason := fallbackReason(err)
		metrics.PersonalizationFallbacks.WithLabelValues(reason).Inc()
		if reason == "error" {
			log.Warnw("Personalization failed, using generic message", "error", err)
		} else {
			log.Debugw("Using generic message", "reason", reason)
		}
		params.Message = s.fallback
	} else {
		params.Message = message
		delivery.Personalized = true
	}

	msg, err := s.compose(req.Email, params)
	if err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		return delivery, &lead.NotificationError{Err: err}
	}
	span.SetAttributes(
		attribute.String("leadform.mail_provider", delivery.Provider),
		attribute.Bool("leadform.personalized", delivery.Personalized),
	)
	if err := s.sender.Send(ctx, msg); err != nil {
		span.SetStatus(codes.Error, "send failed")
		metrics.Notifications.WithLabelValues("failed").Inc()
		log.Errorw("Confirmation email not sent", "provider", delivery.Provider, "error", err)
		return delivery, &lead.NotificationError{Err: err}
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	log.Infow("Confirmation email sent", "provider", delivery.Provider, "personalized", delivery.Personalized)
	return delivery, nil
}

func (s *Service) personalize(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.personalizeTimeout)
	defer cancel()
	return s.personalizer.Personalize(ctx, lead.Lead{Name: req.Name, Email: req.Email, Industry: req.Industry})
}

func (s *Service) compose(to string, p ConfirmationParams) (mail.Message, error) {
	subject, err := renderSubject(s.subject, p)
	if err != nil {
		return mail.Message{}, fmt.Errorf("rendering subject: %w", err)
	}
	html, err := RenderHTML(p)
	if err != nil {
		return mail.Message{}, fmt.Errorf("rendering html body: %w", err)
	}
	text, err := RenderText(p)
	if err != nil {
		return mail.Message{}, fmt.Errorf("rendering text body: %w", err)
	}
	return mail.Message{To: to, Subject: subject, HTML: html, Text: strings.TrimSpace(text) + "\n"}, nil
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, personalize.ErrDisabled):
		return "disabled"
	case errors.Is(err, personalize.ErrNoCandidates):
		return "no_candidates"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// ServiceNotifier adapts Service to the submission controller's notifier.
type ServiceNotifier struct {
	Service *Service
}

func (n ServiceNotifier) Notify(ctx context.Context, l lead.Lead) error {
	_, err := n.Service.Notify(ctx, RequestFor(l))
	return err
}
