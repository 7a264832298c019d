// Package audit keeps the bounded, newest-first history of mutating actions.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultCapacity = 100

const (
	ActionDecisionRecorded     = "decision.recorded"
	ActionWorkOrderCreated     = "workorder.created"
	ActionPurchaseOrderCreated = "purchaseorder.created"
	ActionNotificationSent     = "notification.sent"
	ActionAnomalySkipped       = "anomaly.skipped"
	ActionAnomalyDuplicate     = "anomaly.duplicate"
	ActionWorkOrderStatus      = "workorder.status"
	ActionPurchaseOrderStatus  = "purchaseorder.status"
	ActionInputRejected        = "input.rejected"
)

const (
	ActorSystem   = "system"
	ActorOperator = "operator"
)

type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Actor     string    `json:"actor"`
}

// Log holds at most capacity entries. Once full, each append evicts the
// oldest entry.
type Log struct {
	mu       sync.RWMutex
	capacity int
	// ring buffer; head is the next write slot
	buf   []Entry
	head  int
	count int
	now   func() time.Time
	// OnAppend, when set, receives every entry after it is stored.
	OnAppend func(Entry)
}

func New(capacity int, now func() time.Time) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &Log{capacity: capacity, buf: make([]Entry, capacity), now: now}
}

func (l *Log) Append(action, details, actor string) Entry {
	e := Entry{
		ID:        uuid.New().String(),
		Timestamp: l.now(),
		Action:    action,
		Details:   details,
		Actor:     actor,
	}
	l.mu.Lock()
	l.buf[l.head] = e
	l.head = (l.head + 1) % l.capacity
	if l.count < l.capacity {
		l.count++
	}
	hook := l.OnAppend
	l.mu.Unlock()

	if hook != nil {
		hook(e)
	}
	return e
}

// Entries returns up to limit entries, newest first. limit <= 0 returns all.
func (l *Log) Entries(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := l.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		idx := (l.head - 1 - i + l.capacity) % l.capacity
		out[i] = l.buf[idx]
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

func (l *Log) Capacity() int { return l.capacity }
