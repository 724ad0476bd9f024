package redisstream

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/joshp123/evorelay/internal/core"
)

// StreamClient is the subset of a Redis client the sink needs.
type StreamClient interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
	Close() error
}

// Sink appends every snapshot to a capped Redis stream.
type Sink struct {
	client StreamClient
	stream string
	maxLen int64
	logger zerolog.Logger
}

func NewSink(client StreamClient, stream string, maxLen int64, logger zerolog.Logger) *Sink {
	return &Sink{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger.With().Str("component", "redis").Logger(),
	}
}

func (s *Sink) Name() string {
	return "redis"
}

func (s *Sink) Store(ctx context.Context, snapshot *core.StatusSnapshot) error {
	id, err := s.client.XAdd(ctx, s.args(snapshot)).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	s.logger.Debug().Str("stream", s.stream).Str("id", id).Msg("snapshot appended")
	return nil
}

func (s *Sink) Close() error {
	return s.client.Close()
}

// args trims approximately, so MAXLEN ~ keeps XADD cheap.
func (s *Sink) args(snapshot *core.StatusSnapshot) *goredis.XAddArgs {
	return &goredis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: s.maxLen > 0,
		Values: Fields(snapshot),
	}
}

// Fields is the stream entry for a snapshot.
func Fields(snapshot *core.StatusSnapshot) map[string]any {
	return map[string]any{
		"location_id": snapshot.LocationID,
		"fetched_at":  snapshot.FetchedAt.UTC().Format(time.RFC3339),
		"zones":       len(snapshot.Zones()),
		"payload":     string(snapshot.Raw),
	}
}
