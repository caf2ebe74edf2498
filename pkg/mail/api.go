package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/lead"
	"github.com/telekom/leadform/pkg/version"
)

// APISender posts messages to an HTTP transactional mail API using the Resend
// request shape (POST /emails with a bearer key).
type APISender struct {
	client *resty.Client
	from   Address
	log    *zap.SugaredLogger
}

type apiRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type apiResponse struct {
	ID string `json:"id"`
}

type apiErrorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func NewAPISender(baseURL, apiKey string, from Address, log *zap.SugaredLogger) (*APISender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("mail API key is required")
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15 * time.Second).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", version.UserAgent())
	return &APISender{client: client, from: from, log: log.Named("mail-api")}, nil
}

func (s *APISender) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	var (
		out    apiResponse
		apiErr apiErrorBody
	)
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(apiRequest{From: s.from.String(), To: []string{msg.To}, Subject: msg.Subject, HTML: msg.HTML, Text: msg.Text}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/emails")
	if err == nil && resp.IsError() {
		err = fmt.Errorf("mail API returned %d: %s", resp.StatusCode(), apiErr.Message)
	}
	observe(s.Provider(), err)
	if err != nil {
		s.log.Warnw("Mail send failed", "to", lead.MaskEmail(msg.To), "error", err)
		return err
	}
	s.log.Infow("Mail sent", "to", lead.MaskEmail(msg.To), "messageID", out.ID)
	return nil
}

func (s *APISender) Provider() string { return "api" }
