package checks

import (
	"context"
	"time"

	"github.com/charlesng35/weddingdesk/internal/monitoring"
)

const defaultSweepMaxAge = 10 * time.Minute

// SchedulerState is the view of the background runner the probe needs.
type SchedulerState interface {
	Running() bool
}

// SweepClock reports when the reminder queue was last swept.
type SweepClock interface {
	LastSweep(ctx context.Context) (time.Time, error)
}

// Reminders reports down when the runner is stopped and degraded when the
// last sweep is older than maxAge. A nil runner means reminders are disabled.
func Reminders(runner SchedulerState, sweeps SweepClock, maxAge time.Duration, now func() time.Time) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultSweepMaxAge
	}
	if now == nil {
		now = time.Now
	}

	return monitoring.NewCheck("reminders", func(ctx context.Context) monitoring.ProbeResult {
		if runner == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "reminders disabled"}
		}
		if !runner.Running() {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "scheduler not running"}
		}
		if sweeps == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp}
		}

		last, err := sweeps.LastSweep(ctx)
		if err != nil {
			return monitoring.ResultFromError("reminders", err, 0)
		}
		if last.IsZero() {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "no sweep recorded yet"}
		}
		if age := now().Sub(last); age > maxAge {
			return monitoring.ProbeResult{
				Status:  monitoring.StatusDegraded,
				Details: "last sweep at " + last.UTC().Format(time.RFC3339),
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	})
}
