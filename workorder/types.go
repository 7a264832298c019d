// Package workorder runs the work order and purchase order lifecycle: status
// derivation at creation, technician binding, procurement for shortfalls and
// the operator-driven transitions that follow.
package workorder

import (
	"errors"
	"time"

	"maintcore/decision"
	"maintcore/notify"
	"maintcore/resources"
	"maintcore/telemetry"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyProcessed means another writer claimed the anomaly between
	// admission and creation.
	ErrAlreadyProcessed = errors.New("anomaly already processed")
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusScheduled     Status = "scheduled"
	StatusInProgress    Status = "in-progress"
	StatusWaitingSpares Status = "waiting-spares"
	StatusCompleted     Status = "completed"
)

type Trigger string

const (
	TriggerComponent Trigger = "component"
	TriggerAnomaly   Trigger = "anomaly"
)

type WorkOrder struct {
	ID                string                   `json:"id"`
	Source            string                   `json:"source"`
	Trigger           Trigger                  `json:"trigger"`
	AnomalyID         string                   `json:"anomaly_id,omitempty"`
	Type              decision.MaintenanceType `json:"type"`
	Status            Status                   `json:"status"`
	Priority          decision.Priority        `json:"priority"`
	TechnicianID      string                   `json:"assigned_technician,omitempty"`
	TechnicianName    string                   `json:"assigned_technician_name,omitempty"`
	ScheduledTime     *time.Time               `json:"scheduled_time,omitempty"`
	SparesRequired    []resources.Requirement  `json:"spares_required"`
	EstimatedHours    float64                  `json:"estimated_duration_hours"`
	CreatedAt         time.Time                `json:"created_at"`
	Instructions      string                   `json:"instructions"`
	NotificationsSent []notify.Record          `json:"notifications_sent"`
	CompletedAt       *time.Time               `json:"completed_at,omitempty"`
}

func (w *WorkOrder) Open() bool {
	return w.Status != StatusCompleted
}

func (w *WorkOrder) clone() *WorkOrder {
	c := *w
	c.SparesRequired = append([]resources.Requirement(nil), w.SparesRequired...)
	c.NotificationsSent = append([]notify.Record(nil), w.NotificationsSent...)
	return &c
}

type POStatus string

const (
	POPending  POStatus = "pending"
	POApproved POStatus = "approved"
	POOrdered  POStatus = "ordered"
	POShipped  POStatus = "shipped"
	POReceived POStatus = "received"
)

var poSequence = []POStatus{POPending, POApproved, POOrdered, POShipped, POReceived}

func (s POStatus) rank() int {
	for i, v := range poSequence {
		if v == s {
			return i
		}
	}
	return -1
}

// AutoReplenishRef marks purchase orders raised by stock level rather than
// by a work order.
const AutoReplenishRef = "AUTO-REPLENISH"

type PurchaseOrder struct {
	ID               string    `json:"id"`
	PartID           string    `json:"spare_part_id"`
	PartName         string    `json:"spare_part"`
	PartNumber       string    `json:"part_number"`
	Quantity         int       `json:"quantity"`
	Vendor           string    `json:"vendor"`
	Status           POStatus  `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	ExpectedDelivery time.Time `json:"expected_delivery"`
	WorkOrderID      string    `json:"work_order_id,omitempty"`
}

func (p *PurchaseOrder) Open() bool {
	return p.Status != POReceived
}

// Request asks for a work order.
type Request struct {
	Source         string
	Trigger        Trigger
	AnomalyID      string
	Severity       telemetry.Severity
	Type           decision.MaintenanceType
	Priority       decision.Priority
	ScheduledTime  *time.Time
	EstimatedHours float64
	Instructions   string
}

// RequiredSkill maps a request to the minimum technician skill: senior for
// spare replacement, critical priority or a high-severity anomaly, junior
// otherwise.
func RequiredSkill(r Request) resources.Skill {
	if r.Type == decision.TypeSpareReplacement ||
		r.Priority == decision.PriorityCritical ||
		r.Severity == telemetry.SeverityHigh {
		return resources.SkillSenior
	}
	return resources.SkillJunior
}

// Admission is the outcome of the anomaly admission check.
type Admission int

const (
	Admitted Admission = iota
	Duplicate
	OverCap
)

func (a Admission) String() string {
	switch a {
	case Admitted:
		return "admitted"
	case Duplicate:
		return "duplicate"
	case OverCap:
		return "over cap"
	}
	return "unknown"
}
