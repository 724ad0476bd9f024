package archive

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/joshp123/evorelay/internal/core"
	"github.com/joshp123/evorelay/plugins/evohome"
)

// Sink writes the raw vendor document of every snapshot to object storage.
type Sink struct {
	store  BlobStore
	prefix string
	logger zerolog.Logger
}

func NewSink(store BlobStore, prefix string, logger zerolog.Logger) *Sink {
	return &Sink{
		store:  store,
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
		logger: logger.With().Str("component", "archive").Logger(),
	}
}

func (s *Sink) Name() string {
	return "archive"
}

func (s *Sink) Store(ctx context.Context, snapshot *core.StatusSnapshot) error {
	if len(snapshot.Raw) == 0 {
		return fmt.Errorf("snapshot has no raw document")
	}
	key := Key(s.prefix, snapshot.LocationID, snapshot.FetchedAt)
	if err := s.store.Put(ctx, key, snapshot.Raw); err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Int("bytes", len(snapshot.Raw)).Msg("snapshot archived")
	return nil
}

// Load reads an archived snapshot back. fetchedAt is taken from the key.
func (s *Sink) Load(ctx context.Context, key string) (*core.StatusSnapshot, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	locationID, fetchedAt, err := ParseKey(s.prefix, key)
	if err != nil {
		return nil, err
	}
	return evohome.ParseStatus(locationID, data, fetchedAt)
}

const keyTimeLayout = "2006/01/02/150405Z"

// Key returns {prefix}/{locationId}/{YYYY}/{MM}/{DD}/{HHMMSS}Z.json in UTC.
func Key(prefix, locationID string, fetchedAt time.Time) string {
	return path.Join(prefix, locationID, fetchedAt.UTC().Format(keyTimeLayout)+".json")
}

// ParseKey is the inverse of Key.
func ParseKey(prefix, key string) (string, time.Time, error) {
	rest := key
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		var ok bool
		if rest, ok = strings.CutPrefix(key, prefix+"/"); !ok {
			return "", time.Time{}, fmt.Errorf("archive key %q does not match prefix %q", key, prefix)
		}
	}
	locationID, stamp, ok := strings.Cut(strings.TrimSuffix(rest, ".json"), "/")
	if !ok || locationID == "" {
		return "", time.Time{}, fmt.Errorf("archive key %q has no location", key)
	}
	fetchedAt, err := time.Parse(keyTimeLayout, stamp)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("archive key %q: %w", key, err)
	}
	return locationID, fetchedAt, nil
}
