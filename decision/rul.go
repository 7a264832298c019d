package decision

import (
	"math"
	"time"

	"maintcore/config"
)

// RULInput carries the operating conditions used to estimate remaining life.
type RULInput struct {
	ComponentName    string  `json:"component_name"`
	CurrentHealth    float64 `json:"current_health"`
	OperatingHours   float64 `json:"operating_hours"`
	VibrationLevel   float64 `json:"vibration_level"`
	TemperatureDelta float64 `json:"temperature_delta"`
	MotorLoadAvg     float64 `json:"motor_load_avg"`
}

type RULPrediction struct {
	ComponentName        string    `json:"component_name"`
	PredictedRUL         float64   `json:"predicted_rul"`
	ConfidenceLevel      float64   `json:"confidence_level"`
	DegradationRate      float64   `json:"degradation_rate"`
	FailureProbability   float64   `json:"failure_probability"`
	PredictedFailureDate time.Time `json:"predicted_failure_date"`
}

const (
	baseDegradationRate = 0.001 // health percent per hour
	temperatureDeltaMax = 10
)

// PredictRUL applies a multiplicative degradation heuristic: each stressed
// condition (vibration, temperature rise, motor load) accelerates wear.
func PredictRUL(in RULInput, det config.DetectionConfig, now time.Time) RULPrediction {
	vf, tf, lf := 1.0, 1.0, 1.0
	if in.VibrationLevel > det.Vibration {
		vf = 1.5
	}
	if in.TemperatureDelta > temperatureDeltaMax {
		tf = 1.3
	}
	if in.MotorLoadAvg > det.MotorLoad {
		lf = 1.4
	}

	rate := baseDegradationRate * vf * tf * lf
	rul := math.Round(in.CurrentHealth / rate)

	confidence := clamp(0.85-math.Abs(vf-1)*0.1-math.Abs(tf-1)*0.1, 0.6, 0.95)
	failureProb := clamp(1-rul/1000, 0.01, 0.99)

	return RULPrediction{
		ComponentName:        in.ComponentName,
		PredictedRUL:         rul,
		ConfidenceLevel:      confidence,
		DegradationRate:      rate,
		FailureProbability:   failureProb,
		PredictedFailureDate: now.Add(time.Duration(rul * float64(time.Hour))),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
