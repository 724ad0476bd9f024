package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SinkError wraps a failure from a single sink.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// SinkStatus is the outcome of the last store attempt of one sink.
type SinkStatus struct {
	Name      string       `json:"name"`
	Health    HealthStatus `json:"health"`
	Message   string       `json:"message,omitempty"`
	UpdatedAt time.Time    `json:"updated_at,omitzero"`
}

// Fanout stores every snapshot to all of its sinks in order. A failing sink
// does not stop the ones after it.
type Fanout struct {
	sinks  []Sink
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	statuses map[string]SinkStatus
}

func NewFanout(logger zerolog.Logger, sinks ...Sink) *Fanout {
	statuses := make(map[string]SinkStatus, len(sinks))
	for _, sink := range sinks {
		statuses[sink.Name()] = SinkStatus{Name: sink.Name(), Health: HealthUnknown}
	}
	return &Fanout{
		sinks:    sinks,
		logger:   logger.With().Str("component", "fanout").Logger(),
		now:      time.Now,
		statuses: statuses,
	}
}

func (f *Fanout) Name() string {
	return "fanout"
}

// Store returns the joined SinkErrors of every sink that failed.
func (f *Fanout) Store(ctx context.Context, snapshot *StatusSnapshot) error {
	var errs []error
	for _, sink := range f.sinks {
		start := f.now()
		err := sink.Store(ctx, snapshot)
		logger := f.logger.With().Str("sink", sink.Name()).Dur("took", f.now().Sub(start)).Logger()

		status := SinkStatus{Name: sink.Name(), Health: HealthHealthy, UpdatedAt: f.now()}
		if err != nil {
			status.Health = HealthError
			status.Message = err.Error()
			errs = append(errs, &SinkError{Sink: sink.Name(), Err: err})
			logger.Error().Err(err).Msg("sink store failed")
		} else {
			logger.Debug().Msg("sink stored snapshot")
		}

		f.mu.Lock()
		f.statuses[sink.Name()] = status
		f.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Statuses reports the last outcome per sink, in configuration order.
func (f *Fanout) Statuses() []SinkStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]SinkStatus, 0, len(f.sinks))
	for _, sink := range f.sinks {
		out = append(out, f.statuses[sink.Name()])
	}
	return out
}

// Close closes every sink that holds resources.
func (f *Fanout) Close() error {
	var errs []error
	for _, sink := range f.sinks {
		closer, ok := sink.(Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, &SinkError{Sink: sink.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}
