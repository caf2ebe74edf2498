package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/apiresponses"
	"github.com/telekom/leadform/pkg/lead"
	"github.com/telekom/leadform/pkg/version"
)

// Client calls a remote notification endpoint.
type Client struct {
	client *resty.Client
	url    string
	log    *zap.SugaredLogger
}

func NewClient(url string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent())
	return &Client{client: c, url: url, log: log.Named("notify-client")}
}

// Notify posts the lead once. Non-2xx answers are failures; there is no retry.
func (c *Client) Notify(ctx context.Context, l lead.Lead) error {
	var (
		out    Response
		apiErr apiresponses.APIError
	)
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(RequestFor(l)).
		SetResult(&out).
		SetError(&apiErr).
		Post(c.url)
	if err != nil {
		return &lead.NotificationError{Err: err}
	}
	if resp.IsError() {
		return &lead.NotificationError{Err: fmt.Errorf("notification endpoint returned %d: %s", resp.StatusCode(), apiErr.Error)}
	}
	c.log.Debugw("Remote notification accepted", "to", lead.MaskEmail(l.Email), "personalized", out.Personalized)
	return nil
}
