package detect

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"maintcore/config"
	"maintcore/telemetry"
)

type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
)

// Drift is one detected trend in a process parameter.
type Drift struct {
	ID                string             `json:"id"`
	Parameter         string             `json:"parameter"`
	Direction         Direction          `json:"direction"`
	Magnitude         float64            `json:"magnitude"` // percent change over the window
	Severity          telemetry.Severity `json:"severity"`
	DetectedAt        time.Time          `json:"detected_at"`
	Description       string             `json:"description"`
	RecommendedAction string             `json:"recommended_action"`
}

// Anomaly converts the drift into an anomaly sourced at the parameter name.
func (d Drift) Anomaly() telemetry.Anomaly {
	return telemetry.Anomaly{
		ID:          d.ID,
		Timestamp:   d.DetectedAt,
		Source:      d.Parameter,
		Severity:    d.Severity,
		Description: d.Description + ". " + d.RecommendedAction,
	}
}

// Lookup maps a parameter name to its description template and actions.
type Lookup map[string]config.DriftText

func (l Lookup) describe(param string, dir Direction) (desc, action string) {
	text, ok := l[param]
	if !ok {
		return fmt.Sprintf("%s drift %s", param, dir), "Review process settings for " + param
	}
	desc = text.Description
	if strings.Contains(desc, "%s") {
		desc = fmt.Sprintf(desc, dir)
	}
	action = text.Increasing
	if dir == Decreasing {
		action = text.Decreasing
	}
	return desc, action
}

// TrendFit is the least-squares line through a series indexed 0..n-1.
type TrendFit struct {
	Slope         float64
	PercentChange float64 // slope*n relative to the mean, in percent
}

// Trend fits a straight line to values. Fewer than two points, or a zero
// mean, yield a zero percent change.
func Trend(values []float64) TrendFit {
	n := float64(len(values))
	if len(values) < 2 {
		return TrendFit{}
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumX2 += x * x
	}
	den := n*sumX2 - sumX*sumX
	if den == 0 {
		return TrendFit{}
	}
	slope := (n*sumXY - sumX*sumY) / den
	fit := TrendFit{Slope: slope}
	if avg := sumY / n; avg != 0 {
		fit.PercentChange = slope * n / avg * 100
	}
	return fit
}

// DriftConfig tunes the drift detector.
type DriftConfig struct {
	Window  int
	Epsilon float64
	Medium  float64
	High    float64
}

func DriftConfigFrom(cfg config.DetectionConfig) DriftConfig {
	return DriftConfig{
		Window:  cfg.DriftWindow,
		Epsilon: cfg.DriftEpsilon,
		Medium:  cfg.DriftMedium,
		High:    cfg.DriftHigh,
	}
}

// DriftTracker keeps the last Window readings per parameter. It is not safe
// for concurrent use; the engine owns it.
type DriftTracker struct {
	cfg    DriftConfig
	lookup Lookup
	series map[string][]float64
	// last reported direction/severity per parameter, so a steady drift is
	// reported once rather than on every sample
	reported map[string]string
}

func NewDriftTracker(cfg DriftConfig, lookup Lookup) *DriftTracker {
	if cfg.Window < 2 {
		cfg.Window = 2
	}
	return &DriftTracker{
		cfg:      cfg,
		lookup:   lookup,
		series:   make(map[string][]float64),
		reported: make(map[string]string),
	}
}

// Observe appends every value in the signal to its parameter's window.
func (t *DriftTracker) Observe(sig telemetry.ProcessSignal) {
	for param, v := range sig.Values {
		s := append(t.series[param], v)
		if len(s) > t.cfg.Window {
			s = s[len(s)-t.cfg.Window:]
		}
		t.series[param] = s
	}
}

// Evaluate fits every full window and returns the drifts that are new or
// have changed direction or severity since the last report. Results are
// ordered by parameter name.
func (t *DriftTracker) Evaluate(now time.Time) []Drift {
	params := make([]string, 0, len(t.series))
	for p := range t.series {
		params = append(params, p)
	}
	sort.Strings(params)

	var out []Drift
	for _, p := range params {
		values := t.series[p]
		if len(values) < t.cfg.Window {
			continue
		}
		fit := Trend(values)
		if math.Abs(fit.Slope) <= t.cfg.Epsilon {
			delete(t.reported, p)
			continue
		}
		mag := math.Abs(fit.PercentChange)
		dir := Increasing
		if fit.Slope < 0 {
			dir = Decreasing
		}
		sev := telemetry.SeverityLow
		switch {
		case mag > t.cfg.High:
			sev = telemetry.SeverityHigh
		case mag > t.cfg.Medium:
			sev = telemetry.SeverityMedium
		}

		key := string(dir) + "/" + string(sev)
		if t.reported[p] == key {
			continue
		}
		t.reported[p] = key

		desc, action := t.lookup.describe(p, dir)
		out = append(out, Drift{
			ID:                uuid.New().String(),
			Parameter:         p,
			Direction:         dir,
			Magnitude:         mag,
			Severity:          sev,
			DetectedAt:        now,
			Description:       desc,
			RecommendedAction: action,
		})
	}
	return out
}

// Actionable reports whether the drift is severe enough to enter the
// anomaly admission path.
func (d Drift) Actionable() bool {
	return d.Severity.Rank() >= telemetry.SeverityMedium.Rank()
}
