// Package schedule answers questions about the production schedule, chiefly
// where a maintenance job of a given length fits between batches.
package schedule

import (
	"math"
	"sort"
	"time"

	"maintcore/telemetry"
)

// Window is a contiguous span of line time free of production batches.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Hours converts fractional hours to a Duration.
func Hours(h float64) time.Duration {
	return time.Duration(math.Round(h * float64(time.Hour)))
}

// Validate reports the first malformed batch in the schedule.
func Validate(batches []telemetry.ScheduledBatch) error {
	for i := range batches {
		if err := batches[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FindIdleWindow returns the earliest window of exactly duration that does not
// overlap any batch still running or queued after now. Gaps are taken first-fit:
// before the first batch, then between consecutive batches, and finally right
// after the last batch. It returns nil for a malformed schedule or a
// non-positive duration.
func FindIdleWindow(batches []telemetry.ScheduledBatch, duration time.Duration, now time.Time) *Window {
	if duration <= 0 || Validate(batches) != nil {
		return nil
	}

	future := make([]telemetry.ScheduledBatch, 0, len(batches))
	for _, b := range batches {
		if b.EndTime.After(now) {
			future = append(future, b)
		}
	}
	sort.SliceStable(future, func(i, j int) bool {
		return future[i].StartTime.Before(future[j].StartTime)
	})

	if len(future) == 0 {
		return &Window{Start: now, End: now.Add(duration)}
	}

	if future[0].StartTime.Sub(now) >= duration {
		return &Window{Start: now, End: now.Add(duration)}
	}

	// busyUntil tracks the latest end seen so far so that a long batch
	// overlapping its successors still blocks the gap after them.
	busyUntil := future[0].EndTime
	for i := 1; i < len(future); i++ {
		if future[i].StartTime.Sub(busyUntil) >= duration {
			return &Window{Start: busyUntil, End: busyUntil.Add(duration)}
		}
		if future[i].EndTime.After(busyUntil) {
			busyUntil = future[i].EndTime
		}
	}

	return &Window{Start: busyUntil, End: busyUntil.Add(duration)}
}
