package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/metrics"
)

// Busy is implemented by values that must not be evicted while work is outstanding.
type Busy interface {
	Busy() bool
}

type entry[T any] struct {
	value      T
	lastAccess time.Time
}

// Registry maps session ids to per-session values created on first use. Entries idle
// for longer than the TTL are removed by a background cleanup loop.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	create  func(id string) T
	ttl     time.Duration
	now     func() time.Time
	log     *zap.SugaredLogger
	done    chan struct{}
	once    sync.Once
}

// NewRegistry starts a registry. Call Stop to end the cleanup loop.
func NewRegistry[T any](ttl time.Duration, create func(id string) T, log *zap.SugaredLogger) *Registry[T] {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	r := &Registry[T]{
		entries: make(map[string]*entry[T]),
		create:  create,
		ttl:     ttl,
		now:     time.Now,
		log:     log.Named("sessions"),
		done:    make(chan struct{}),
	}
	go r.cleanup()
	return r
}

// Get returns the value for id, creating it when absent, and marks it as used.
func (r *Registry[T]) Get(id string) T {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		e = &entry[T]{value: r.create(id)}
		r.entries[id] = e
		metrics.ActiveSessions.Inc()
	}
	e.lastAccess = r.now()
	return e.value
}

// Lookup returns the value for id without creating or touching it.
func (r *Registry[T]) Lookup(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (r *Registry[T]) Stop() {
	r.once.Do(func() { close(r.done) })
}

func (r *Registry[T]) cleanup() {
	interval := r.ttl / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			if n := r.Expire(); n > 0 {
				r.log.Debugw("Expired idle sessions", "count", n)
			}
		}
	}
}

// Expire removes idle entries and returns how many were dropped. Busy entries are
// kept regardless of age.
func (r *Registry[T]) Expire() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, e := range r.entries {
		if now.Sub(e.lastAccess) <= r.ttl {
			continue
		}
		if b, ok := any(e.value).(Busy); ok && b.Busy() {
			continue
		}
		delete(r.entries, id)
		removed++
	}
	metrics.ActiveSessions.Sub(float64(removed))
	return removed
}
