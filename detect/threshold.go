// Package detect turns raw sensor excursions and slow process drift into
// severity-tagged anomalies.
package detect

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"maintcore/config"
	"maintcore/telemetry"
)

const (
	SourceVibration   = "Vibration Sensor"
	SourceTemperature = "Temperature Sensor"
	SourceMotorLoad   = "Motor Load Sensor"
)

// Thresholds are the excursion limits for the threshold detector.
type Thresholds struct {
	Vibration     float64 // mm/s
	Temperature   float64 // degrees C
	MotorLoad     float64 // percent
	MotorLoadHigh float64
}

func ThresholdsFrom(cfg config.DetectionConfig) Thresholds {
	return Thresholds{
		Vibration:     cfg.Vibration,
		Temperature:   cfg.Temperature,
		MotorLoad:     cfg.MotorLoad,
		MotorLoadHigh: cfg.MotorLoadHigh,
	}
}

// Classify compares one sample against the limits and returns an anomaly per
// exceeded limit. Vibration escalates at 1.2x and 1.5x the limit, temperature
// at +5 and +15 degrees.
func (t Thresholds) Classify(s telemetry.SensorSample) []telemetry.Anomaly {
	var out []telemetry.Anomaly

	if s.Vibration > t.Vibration {
		sev := telemetry.SeverityLow
		switch {
		case s.Vibration > t.Vibration*1.5:
			sev = telemetry.SeverityHigh
		case s.Vibration > t.Vibration*1.2:
			sev = telemetry.SeverityMedium
		}
		out = append(out, newAnomaly(s, SourceVibration, sev,
			fmt.Sprintf("High vibration detected: %.2f mm/s (threshold: %g mm/s)", s.Vibration, t.Vibration)))
	}

	if s.Temperature > t.Temperature {
		sev := telemetry.SeverityLow
		switch {
		case s.Temperature > t.Temperature+15:
			sev = telemetry.SeverityHigh
		case s.Temperature > t.Temperature+5:
			sev = telemetry.SeverityMedium
		}
		out = append(out, newAnomaly(s, SourceTemperature, sev,
			fmt.Sprintf("High temperature detected: %.1f°C (threshold: %g°C)", s.Temperature, t.Temperature)))
	}

	if s.MotorLoad > t.MotorLoad {
		sev := telemetry.SeverityMedium
		if s.MotorLoad > t.MotorLoadHigh {
			sev = telemetry.SeverityHigh
		}
		out = append(out, newAnomaly(s, SourceMotorLoad, sev,
			fmt.Sprintf("Motor overload detected: %.1f%% (threshold: %g%%)", s.MotorLoad, t.MotorLoad)))
	}

	return out
}

// sampleNamespace scopes the name-based ids of threshold anomalies.
var sampleNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("maintcore/sensor-sample"))

// sampleAnomalyID is stable for a given source and sample time, so a
// redelivered sample maps onto the anomaly it already produced.
func sampleAnomalyID(source string, at time.Time) string {
	return uuid.NewSHA1(sampleNamespace, []byte(source+"|"+at.UTC().Format(time.RFC3339Nano))).String()
}

func newAnomaly(s telemetry.SensorSample, source string, sev telemetry.Severity, desc string) telemetry.Anomaly {
	if s.Machine != "" {
		source = s.Machine + " " + source
	}
	return telemetry.Anomaly{
		ID:          sampleAnomalyID(source, s.Timestamp),
		Timestamp:   s.Timestamp,
		Source:      source,
		Severity:    sev,
		Description: desc,
	}
}
