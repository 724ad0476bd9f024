package server

import (
	"net/http"

	"github.com/joshp123/evorelay/internal/core"
	"github.com/joshp123/evorelay/internal/oauth"
	"github.com/joshp123/evorelay/internal/poll"
)

// HealthReport is the /health document.
type HealthReport struct {
	Status       core.HealthStatus `json:"status"`
	Session      string            `json:"session"`
	LocationID   string            `json:"location_id,omitempty"`
	LastCycle    *poll.Result      `json:"last_cycle,omitempty"`
	SkippedTicks int64             `json:"skipped_ticks"`
	Sinks        []core.SinkStatus `json:"sinks,omitempty"`
}

type SessionSource interface {
	State() oauth.State
	Session() (oauth.Session, bool)
}

type CycleSource interface {
	LastResult() (poll.Result, bool)
	Skipped() int64
}

type SinkSource interface {
	Statuses() []core.SinkStatus
}

// Sources collects the live state a HealthReport is built from. Sinks may be
// nil.
type Sources struct {
	Session SessionSource
	Cycle   CycleSource
	Sinks   SinkSource
}

// Report derives overall health from the last cycle: HEALTHY after a
// successful cycle, ERROR after a failed one, UNKNOWN before the first.
func (s Sources) Report() HealthReport {
	report := HealthReport{
		Status:       core.HealthUnknown,
		Session:      s.Session.State().String(),
		SkippedTicks: s.Cycle.Skipped(),
	}
	if session, ok := s.Session.Session(); ok {
		report.LocationID = session.LocationID
	}
	if last, ok := s.Cycle.LastResult(); ok {
		report.LastCycle = &last
		report.Status = core.HealthHealthy
		if !last.OK() {
			report.Status = core.HealthError
		}
	}
	if s.Sinks != nil {
		report.Sinks = s.Sinks.Statuses()
		if report.Status == core.HealthHealthy && anySinkFailed(report.Sinks) {
			report.Status = core.HealthDegraded
		}
	}
	return report
}

func anySinkFailed(statuses []core.SinkStatus) bool {
	for _, status := range statuses {
		if status.Health == core.HealthError {
			return true
		}
	}
	return false
}

// HealthHandler answers 503 when the last cycle failed and 200 otherwise.
func HealthHandler(report func() HealthReport) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		current := report()
		status := http.StatusOK
		if current.Status == core.HealthError {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, current)
	})
}
