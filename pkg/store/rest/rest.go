// Package rest talks to a hosted PostgREST-style data API (for example Supabase).
// The service is located by two client values, the endpoint URL and the publishable
// key; row-level security in the hosted database decides what a caller may read.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/lead"
	"github.com/telekom/leadform/pkg/policy"
	"github.com/telekom/leadform/pkg/version"
)

// SessionHeader carries the browser session correlator; the hosted SELECT policy
// compares it with leads.session_id.
const SessionHeader = "x-session-id"

// Postgres SQLSTATE codes the data API passes through.
const (
	uniqueViolation       = "23505"
	insufficientPrivilege = "42501"
)

type Options struct {
	BaseURL string
	Key     string
	Table   string
	Timeout time.Duration
}

type Store struct {
	client *resty.Client
	key    string
	path   string
	log    *zap.SugaredLogger
}

// insertRow is the insert payload; id and created_at are left to the database.
type insertRow struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Industry  string  `json:"industry"`
	SessionID *string `json:"session_id"`
}

type row struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Industry  string    `json:"industry"`
	SessionID *string   `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (r row) lead() lead.Lead {
	l := lead.Lead{ID: r.ID, Name: r.Name, Email: r.Email, Industry: r.Industry, CreatedAt: r.CreatedAt}
	if r.SessionID != nil {
		l.SessionID = *r.SessionID
	}
	return l
}

// apiError is the PostgREST error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func New(opts Options, log *zap.SugaredLogger) (*Store, error) {
	if opts.BaseURL == "" || opts.Key == "" {
		return nil, fmt.Errorf("store url and key are required")
	}
	if opts.Table == "" {
		opts.Table = "leads"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("apikey", opts.Key).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent())

	return &Store{
		client: client,
		key:    opts.Key,
		path:   "/rest/v1/" + opts.Table,
		log:    log.Named("rest-store"),
	}, nil
}

func (s *Store) Insert(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	body := insertRow{Name: l.Name, Email: l.Email, Industry: l.Industry}
	req := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.key).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=representation")
	if l.SessionID != "" {
		body.SessionID = &l.SessionID
		// lets the returned representation pass the SELECT policy
		req.SetHeader(SessionHeader, l.SessionID)
	}

	var (
		created []row
		apiErr  apiError
	)
	resp, err := req.SetBody(body).SetResult(&created).SetError(&apiErr).Post(s.path)
	if err != nil {
		return lead.Lead{}, fmt.Errorf("calling data API: %w", err)
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusConflict || apiErr.Code == uniqueViolation {
			return lead.Lead{}, fmt.Errorf("%w: %s", lead.ErrDuplicateEmail, apiErr.Message)
		}
		if apiErr.Code == insufficientPrivilege || resp.StatusCode() == http.StatusUnauthorized {
			return lead.Lead{}, fmt.Errorf("data API denied insert by row-level policy: status %d: %s", resp.StatusCode(), apiErr.Message)
		}
		return lead.Lead{}, fmt.Errorf("data API rejected insert: status %d: %s %s", resp.StatusCode(), apiErr.Code, apiErr.Message)
	}
	if len(created) == 0 {
		// 2xx with an empty body, as with return=minimal or a proxy that strips it
		s.log.Debugw("Insert returned no representation", "email", lead.MaskEmail(l.Email))
		l.CreatedAt = time.Now().UTC()
		return l, nil
	}
	return created[0].lead(), nil
}

func (s *Store) List(ctx context.Context, v policy.Viewer) ([]lead.Lead, error) {
	if _, _, none := policy.Scope(v); none {
		return []lead.Lead{}, nil
	}

	token := s.key
	if v.Token != "" {
		token = v.Token
	}
	req := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("select", "id,name,email,industry,session_id,created_at").
		SetQueryParam("order", "created_at.asc")
	if v.SessionID != "" {
		req.SetHeader(SessionHeader, v.SessionID)
	}

	var (
		rows   []row
		apiErr apiError
	)
	resp, err := req.SetResult(&rows).SetError(&apiErr).Get(s.path)
	if err != nil {
		return nil, fmt.Errorf("calling data API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("data API rejected read: status %d: %s", resp.StatusCode(), apiErr.Message)
	}

	out := make([]lead.Lead, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.lead())
	}
	return policy.Filter(v, out), nil
}

func (s *Store) Ping(ctx context.Context) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.key).
		SetQueryParam("select", "id").
		SetQueryParam("limit", "0").
		Get(s.path)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return fmt.Errorf("data API unhealthy: status %d", resp.StatusCode())
	}
	return nil
}

func (s *Store) Close() error { return nil }
