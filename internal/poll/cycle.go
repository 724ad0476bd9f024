package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/joshp123/evorelay/internal/core"
	"github.com/joshp123/evorelay/internal/oauth"
)

// Fetcher returns the current status snapshot of the selected installation.
type Fetcher interface {
	Status(ctx context.Context) (*core.StatusSnapshot, error)
}

// Result describes one finished cycle.
type Result struct {
	CycleID    string    `json:"cycle_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Zones      int       `json:"zones"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// OK reports whether the cycle fetched and stored a snapshot.
func (r Result) OK() bool {
	return r.Error == ""
}

// Option configures a Cycle.
type Option func(*Cycle)

func WithClock(now func() time.Time) Option {
	return func(c *Cycle) {
		c.now = now
	}
}

// WithObserver registers a callback run after every cycle.
func WithObserver(observe func(Result)) Option {
	return func(c *Cycle) {
		c.observers = append(c.observers, observe)
	}
}

// Cycle fetches a snapshot and hands it to the sink. Failures end the cycle
// and are recorded; they never reach the caller.
type Cycle struct {
	fetcher   Fetcher
	sink      core.Sink
	logger    zerolog.Logger
	now       func() time.Time
	observers []func(Result)

	busy    atomic.Bool
	skipped atomic.Int64
	wg      sync.WaitGroup

	mu   sync.RWMutex
	last *Result
}

func NewCycle(fetcher Fetcher, sink core.Sink, logger zerolog.Logger, opts ...Option) *Cycle {
	c := &Cycle{
		fetcher: fetcher,
		sink:    sink,
		logger:  logger.With().Str("component", "poll").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunOnce performs a single fetch-and-store.
func (c *Cycle) RunOnce(ctx context.Context) (result Result) {
	result = Result{CycleID: uuid.NewString(), StartedAt: c.now()}
	logger := c.logger.With().Str("cycle_id", result.CycleID).Logger()

	defer func() {
		if r := recover(); r != nil {
			result.Stage = "panic"
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		result.FinishedAt = c.now()
		c.record(logger, result)
	}()

	logger.Debug().Msg("poll cycle started")
	snapshot, err := c.fetcher.Status(ctx)
	if err != nil {
		result.Stage = fetchStage(err)
		result.Error = err.Error()
		return result
	}
	result.Zones = len(snapshot.Zones())

	if err := c.sink.Store(ctx, snapshot); err != nil {
		result.Stage = "store"
		result.Error = err.Error()
	}
	return result
}

func fetchStage(err error) string {
	var expired *oauth.ExpiredSessionError
	var authErr *oauth.AuthError
	switch {
	case errors.As(err, &expired), errors.As(err, &authErr), errors.Is(err, oauth.ErrNotAuthenticated):
		return "auth"
	default:
		return "fetch"
	}
}

func (c *Cycle) record(logger zerolog.Logger, result Result) {
	took := result.FinishedAt.Sub(result.StartedAt)
	cycleDuration.Observe(took.Seconds())

	if result.OK() {
		cyclesTotal.WithLabelValues("success").Inc()
		lastSuccess.Set(float64(result.FinishedAt.Unix()))
		logger.Info().Int("zones", result.Zones).Dur("took", took).Msg("poll cycle complete")
	} else {
		cyclesTotal.WithLabelValues(result.Stage + "_error").Inc()
		logger.Error().Str("stage", result.Stage).Str("error", result.Error).Dur("took", took).Msg("poll cycle failed")
	}

	c.mu.Lock()
	c.last = &result
	c.mu.Unlock()

	for _, observe := range c.observers {
		observe(result)
	}
}

// LastResult returns the most recent cycle outcome.
func (c *Cycle) LastResult() (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Result{}, false
	}
	return *c.last, true
}

// Skipped returns how many ticks were dropped while a cycle was running.
func (c *Cycle) Skipped() int64 {
	return c.skipped.Load()
}

// Schedule runs a cycle immediately and then on every tick of interval until
// ctx is done. Ticks never wait for the cycle they start, so a slow cycle does
// not shift later ticks; a tick that finds a cycle in flight is dropped.
func (c *Cycle) Schedule(ctx context.Context, interval time.Duration) {
	c.logger.Info().Dur("interval", interval).Msg("poll loop started")

	c.launch(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.wg.Wait()
			c.logger.Info().Msg("poll loop stopped")
			return
		case <-ticker.C:
			c.launch(ctx)
		}
	}
}

func (c *Cycle) launch(ctx context.Context) {
	if !c.busy.CompareAndSwap(false, true) {
		c.skipped.Add(1)
		skippedTotal.Inc()
		c.logger.Warn().Msg("previous poll cycle still running; tick skipped")
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.busy.Store(false)
		c.RunOnce(ctx)
	}()
}
