package session

import (
	"sync"

	"github.com/telekom/leadform/pkg/lead"
)

// State is the injectable session container. RecordSuccess is its only mutator.
type State struct {
	mu        sync.RWMutex
	submitted bool
	leads     []lead.Lead
	count     int
}

// Snapshot is a copy of State safe to hand out.
type Snapshot struct {
	Submitted bool        `json:"submitted"`
	Count     int         `json:"count"`
	Leads     []lead.Lead `json:"leads"`
}

func NewState() *State {
	return &State{}
}

// RecordSuccess appends a confirmed lead and bumps the counter.
func (s *State) RecordSuccess(l lead.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = true
	s.leads = append(s.leads, l)
	s.count++
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	leads := make([]lead.Lead, len(s.leads))
	copy(leads, s.leads)
	return Snapshot{Submitted: s.submitted, Count: s.count, Leads: leads}
}
