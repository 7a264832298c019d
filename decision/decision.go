// Package decision classifies component health into maintenance decisions.
package decision

import (
	"fmt"
	"time"

	"maintcore/config"
	"maintcore/schedule"
	"maintcore/telemetry"
)

type MaintenanceType string

const (
	TypeNone             MaintenanceType = "none"
	TypeGeneral          MaintenanceType = "general"
	TypeSpareReplacement MaintenanceType = "spare_replacement"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities low < medium < high < critical.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

// Decision is the current maintenance verdict for one component.
type Decision struct {
	ComponentName       string           `json:"component_name"`
	RequiresMaintenance bool             `json:"requires_maintenance"`
	Type                MaintenanceType  `json:"maintenance_type"`
	Priority            Priority         `json:"priority"`
	Reasoning           string           `json:"reasoning"`
	SuggestedStart      *time.Time       `json:"suggested_start,omitempty"`
	IdleWindow          *schedule.Window `json:"idle_window,omitempty"`
	EstimatedHours      float64          `json:"estimated_duration_hours"`
	DecidedAt           time.Time        `json:"decided_at"`
}

// Policy bundles the tunable thresholds and job durations.
type Policy struct {
	Thresholds config.ThresholdsConfig
	Durations  config.DurationsConfig
}

func PolicyFrom(cfg *config.Config) Policy {
	return Policy{Thresholds: cfg.Thresholds, Durations: cfg.Durations}
}

// Analyze decides whether a component needs maintenance and when it could be
// done. It is a pure function of its inputs.
func Analyze(c telemetry.ComponentHealth, batches []telemetry.ScheduledBatch, p Policy, now time.Time) Decision {
	th := p.Thresholds
	d := Decision{
		ComponentName: c.Name,
		Type:          TypeNone,
		Priority:      PriorityLow,
		DecidedAt:     now,
	}

	d.RequiresMaintenance = c.Health < th.WarningHealth || c.RUL < th.WarningRUL || c.Trend == telemetry.TrendCritical

	switch {
	case !d.RequiresMaintenance:
		d.Reasoning = fmt.Sprintf("Component health at %.0f%% with RUL of %.0fh. No maintenance required.", c.Health, c.RUL)
	case c.Health < th.CriticalHealth || c.Trend == telemetry.TrendCritical:
		d.Type = TypeSpareReplacement
		d.Priority = PriorityHigh
		if c.Health < th.CriticalPriorityHealth {
			d.Priority = PriorityCritical
		}
		d.Reasoning = fmt.Sprintf("Critical condition detected. Health: %.0f%%, Trend: %s. Spare replacement required.", c.Health, c.Trend)
	default:
		d.Type = TypeGeneral
		d.Priority = PriorityMedium
		if c.Health < th.HighPriorityHealth {
			d.Priority = PriorityHigh
		}
		d.Reasoning = fmt.Sprintf("Preventive maintenance recommended. Health: %.0f%%, RUL: %.0fh. General maintenance sufficient.", c.Health, c.RUL)
	}

	d.EstimatedHours = p.Durations.GeneralHours
	if d.Type == TypeSpareReplacement {
		d.EstimatedHours = p.Durations.SpareReplacementHours
	}

	if w := schedule.FindIdleWindow(batches, schedule.Hours(d.EstimatedHours), now); w != nil {
		start := w.Start
		d.SuggestedStart = &start
		d.IdleWindow = w
	}
	return d
}

// SameOutcome reports whether two decisions would drive the same action.
// Timestamps and the suggested window are ignored.
func SameOutcome(a, b Decision) bool {
	return a.ComponentName == b.ComponentName &&
		a.RequiresMaintenance == b.RequiresMaintenance &&
		a.Type == b.Type &&
		a.Priority == b.Priority
}
