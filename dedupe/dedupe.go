// Package dedupe remembers which anomaly ids have already been processed.
package dedupe

import (
	"context"
	"log"
	"sync"
)

type Set interface {
	Contains(ctx context.Context, id string) (bool, error)
	Add(ctx context.Context, id string) error
}

// Claimer marks an id processed and reports whether this call was the one
// that did it, as a single step.
type Claimer interface {
	Claim(ctx context.Context, id string) (bool, error)
}

// Claim marks id processed in s. It reports false when id was already
// there. Sets without an atomic claim fall back to Contains then Add.
func Claim(ctx context.Context, s Set, id string) (bool, error) {
	if c, ok := s.(Claimer); ok {
		return c.Claim(ctx, id)
	}
	seen, err := s.Contains(ctx, id)
	if err != nil || seen {
		return false, err
	}
	return true, s.Add(ctx, id)
}

type MemorySet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewMemorySet() *MemorySet {
	return &MemorySet{ids: make(map[string]struct{})}
}

func (m *MemorySet) Contains(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ids[id]
	return ok, nil
}

func (m *MemorySet) Add(_ context.Context, id string) error {
	m.mu.Lock()
	m.ids[id] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *MemorySet) Claim(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[id]; ok {
		return false, nil
	}
	m.ids[id] = struct{}{}
	return true, nil
}

func (m *MemorySet) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Layered answers from local memory first and writes through to a shared
// remote set so a restarted or second instance sees the same history.
// Remote failures are logged and the local answer stands. Claim is atomic
// across instances only when the remote set is a Claimer.
type Layered struct {
	local  *MemorySet
	remote Set
}

func NewLayered(remote Set) *Layered {
	return &Layered{local: NewMemorySet(), remote: remote}
}

func (l *Layered) Contains(ctx context.Context, id string) (bool, error) {
	if ok, _ := l.local.Contains(ctx, id); ok {
		return true, nil
	}
	if l.remote == nil {
		return false, nil
	}
	ok, err := l.remote.Contains(ctx, id)
	if err != nil {
		log.Printf("dedupe: remote lookup %s: %v", id, err)
		return false, nil
	}
	if ok {
		l.local.Add(ctx, id)
	}
	return ok, nil
}

func (l *Layered) Add(ctx context.Context, id string) error {
	l.local.Add(ctx, id)
	if l.remote == nil {
		return nil
	}
	if err := l.remote.Add(ctx, id); err != nil {
		log.Printf("dedupe: remote add %s: %v", id, err)
	}
	return nil
}

// Claim takes id locally, then claims it on the remote. An id another
// instance claimed first is kept locally and reported as already taken.
func (l *Layered) Claim(ctx context.Context, id string) (bool, error) {
	if ok, _ := l.local.Claim(ctx, id); !ok {
		return false, nil
	}
	if l.remote == nil {
		return true, nil
	}
	ok, err := Claim(ctx, l.remote, id)
	if err != nil {
		log.Printf("dedupe: remote claim %s: %v", id, err)
		return true, nil
	}
	return ok, nil
}
