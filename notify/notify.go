// Package notify decides who hears about a work order and hands the records
// to delivery sinks. Delivery is best-effort.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleMaintenance Role = "maintenance_team"
	RoleSupervisor  Role = "production_supervisor"
	RoleTechnician  Role = "technician"
	RoleStores      Role = "stores"
)

var Roles = []Role{RoleMaintenance, RoleSupervisor, RoleTechnician, RoleStores}

func (r Role) Valid() bool {
	for _, v := range Roles {
		if v == r {
			return true
		}
	}
	return false
}

type Record struct {
	ID           string    `json:"id"`
	WorkOrderID  string    `json:"work_order_id"`
	Role         Role      `json:"recipient"`
	Recipient    string    `json:"recipient_name,omitempty"`
	Message      string    `json:"message"`
	SentAt       time.Time `json:"sent_at"`
	Acknowledged bool      `json:"acknowledged"`
}

// Subject is the part of a work order the messages are built from.
type Subject struct {
	WorkOrderID    string
	Source         string
	Type           string
	Priority       string
	Status         string
	TechnicianID   string
	TechnicianName string
	ScheduledTime  *time.Time
	Parts          []string // "2x Spindle Bearing"
}

// FanOut builds one record per interested role: the maintenance team and
// the production supervisor always, the technician when one is assigned and
// stores when parts are needed.
func FanOut(s Subject, now time.Time) []Record {
	when := "unscheduled"
	if s.ScheduledTime != nil {
		when = s.ScheduledTime.Format(time.RFC3339)
	}

	recs := []Record{
		newRecord(s, RoleMaintenance, "", fmt.Sprintf("New %s work order %s for %s (priority %s, status %s)",
			s.Type, s.WorkOrderID, s.Source, s.Priority, s.Status), now),
		newRecord(s, RoleSupervisor, "", fmt.Sprintf("Maintenance on %s planned for %s; production may be interrupted",
			s.Source, when), now),
	}
	if s.TechnicianID != "" {
		recs = append(recs, newRecord(s, RoleTechnician, s.TechnicianName,
			fmt.Sprintf("You are assigned to work order %s on %s, starting %s", s.WorkOrderID, s.Source, when), now))
	}
	if len(s.Parts) > 0 {
		recs = append(recs, newRecord(s, RoleStores, "",
			fmt.Sprintf("Prepare spares for work order %s: %s", s.WorkOrderID, strings.Join(s.Parts, ", ")), now))
	}
	return recs
}

func newRecord(s Subject, role Role, recipient, msg string, now time.Time) Record {
	return Record{
		ID:          uuid.New().String(),
		WorkOrderID: s.WorkOrderID,
		Role:        role,
		Recipient:   recipient,
		Message:     msg,
		SentAt:      now,
	}
}

// Sink delivers records somewhere.
type Sink interface {
	Name() string
	Send(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Name() string                               { return "func" }
func (f SinkFunc) Send(ctx context.Context, rec Record) error { return f(ctx, rec) }

type Dispatcher struct {
	sinks []Sink
	logf  func(string, ...any)
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, logf: log.Printf}
}

func (d *Dispatcher) AddSink(s Sink) { d.sinks = append(d.sinks, s) }

// SetLogger replaces the failure logger.
func (d *Dispatcher) SetLogger(fn func(string, ...any)) {
	if fn != nil {
		d.logf = fn
	}
}

// Dispatch sends every record to every sink. Failures are logged and counted;
// they never propagate.
func (d *Dispatcher) Dispatch(ctx context.Context, recs []Record) (failed int) {
	for _, rec := range recs {
		for _, s := range d.sinks {
			if err := s.Send(ctx, rec); err != nil {
				failed++
				d.logf("notify: %s sink: record %s to %s: %v", s.Name(), rec.ID, rec.Role, err)
			}
		}
	}
	return failed
}
