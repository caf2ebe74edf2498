// Package memory keeps leads in process memory. It enforces the same uniqueness and
// read policy as the database backends and backs tests and local development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telekom/leadform/pkg/lead"
	"github.com/telekom/leadform/pkg/policy"
)

type Store struct {
	mu      sync.RWMutex
	leads   []lead.Lead
	byEmail map[string]int

	// Now is the clock used for created_at.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		byEmail: make(map[string]int),
		Now:     time.Now,
	}
}

func (s *Store) Insert(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	if err := ctx.Err(); err != nil {
		return lead.Lead{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[l.Email]; exists {
		return lead.Lead{}, fmt.Errorf("%w: %s", lead.ErrDuplicateEmail, lead.MaskEmail(l.Email))
	}
	l.ID = uuid.NewString()
	l.CreatedAt = s.Now().UTC()
	s.byEmail[l.Email] = len(s.leads)
	s.leads = append(s.leads, l)
	return l, nil
}

func (s *Store) List(ctx context.Context, v policy.Viewer) ([]lead.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return policy.Filter(v, s.leads), nil
}

// Len returns the number of stored leads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.leads)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
