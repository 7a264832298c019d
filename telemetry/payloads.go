package telemetry

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput marks an event that must be rejected without touching state.
var ErrInvalidInput = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

type Trend string

const (
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
	TrendCritical  Trend = "critical"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities low < medium < high; unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	}
	return 0
}

// ComponentHealth is one health observation for a named component.
type ComponentHealth struct {
	Name               string     `json:"name"`
	Health             float64    `json:"health"`
	RUL                float64    `json:"rul"`
	Trend              Trend      `json:"trend"`
	FailureProbability float64    `json:"failure_probability"`
	LastMaintenanceAt  *time.Time `json:"last_maintenance_at,omitempty"`
	PredictedFailureAt *time.Time `json:"predicted_failure_at,omitempty"`
}

func (c *ComponentHealth) Validate() error {
	if c.Name == "" {
		return invalid("component name is required")
	}
	if c.Health < 0 || c.Health > 100 {
		return invalid("component %q: health %.2f outside [0,100]", c.Name, c.Health)
	}
	if c.RUL < 0 {
		return invalid("component %q: negative rul %.2f", c.Name, c.RUL)
	}
	if c.FailureProbability < 0 || c.FailureProbability > 1 {
		return invalid("component %q: failure probability %.3f outside [0,1]", c.Name, c.FailureProbability)
	}
	switch c.Trend {
	case TrendStable, TrendDeclining, TrendCritical:
	default:
		return invalid("component %q: unknown trend %q", c.Name, c.Trend)
	}
	return nil
}

// ScheduledBatch is a production batch occupying the line between StartTime and EndTime.
type ScheduledBatch struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
}

const (
	BatchQueued     = "queued"
	BatchInProgress = "in-progress"
	BatchCompleted  = "completed"
	BatchDelayed    = "delayed"
)

func (b *ScheduledBatch) Validate() error {
	if b.ID == "" {
		return invalid("batch id is required")
	}
	if !b.StartTime.Before(b.EndTime) {
		return invalid("batch %q: start %s is not before end %s", b.ID, b.StartTime.Format(time.RFC3339), b.EndTime.Format(time.RFC3339))
	}
	switch b.Status {
	case "", BatchQueued, BatchInProgress, BatchCompleted, BatchDelayed:
	default:
		return invalid("batch %q: unknown status %q", b.ID, b.Status)
	}
	return nil
}

// Anomaly is an immutable severity-tagged event from a sensor or subsystem.
type Anomaly struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
}

func (a *Anomaly) Validate() error {
	if a.ID == "" {
		return invalid("anomaly id is required")
	}
	if a.Source == "" {
		return invalid("anomaly %s: source is required", a.ID)
	}
	if a.Timestamp.IsZero() {
		return invalid("anomaly %s: timestamp is required", a.ID)
	}
	if a.Severity.Rank() == 0 {
		return invalid("anomaly %s: unknown severity %q", a.ID, a.Severity)
	}
	return nil
}

// SensorSample is one reading of the threshold-monitored machine sensors.
type SensorSample struct {
	Machine     string    `json:"machine,omitempty"`
	Vibration   float64   `json:"vibration"`
	Temperature float64   `json:"temperature"`
	MotorLoad   float64   `json:"motor_load"`
	Timestamp   time.Time `json:"timestamp"`
}

func (s *SensorSample) Validate() error {
	if s.Timestamp.IsZero() {
		return invalid("sensor sample: timestamp is required")
	}
	return nil
}

// ProcessSignal is one reading of drift-tracked process parameters, keyed by parameter name.
type ProcessSignal struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

func (p *ProcessSignal) Validate() error {
	if len(p.Values) == 0 {
		return invalid("process signal: no values")
	}
	return nil
}

// --- Envelope payloads ---

type HealthUpdate struct {
	Component ComponentHealth `json:"component"`
}

type AnomalyReport struct {
	Anomaly Anomaly `json:"anomaly"`
}

type SensorBatch struct {
	Samples []SensorSample `json:"samples"`
}

type SignalBatch struct {
	Signals []ProcessSignal `json:"signals"`
}

type ScheduleUpdate struct {
	Batches []ScheduledBatch `json:"batches"`
}
