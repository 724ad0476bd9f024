package archive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/evorelay/internal/core"
	"github.com/joshp123/evorelay/plugins/evohome"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return data, nil
}

func (m *memoryStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

const statusDoc = `{"locationId":"1234567","gateways":[{"temperatureControlSystems":[{"zones":[{"zoneId":"5001","name":"Hall","temperatureStatus":{"temperature":19,"isAvailable":true},"heatSetpointStatus":{"targetTemperature":20,"setpointMode":"FollowSchedule"}}]}]}]}`

func TestKey(t *testing.T) {
	fetchedAt := time.Date(2024, 3, 7, 9, 5, 1, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "evorelay/snapshots/1234567/2024/03/07/080501Z.json", Key("evorelay/snapshots", "1234567", fetchedAt))
	assert.Equal(t, "1234567/2024/03/07/080501Z.json", Key("", "1234567", fetchedAt))
}

func TestParseKey(t *testing.T) {
	locationID, fetchedAt, err := ParseKey("evorelay/snapshots/", "evorelay/snapshots/1234567/2024/03/07/080501Z.json")
	require.NoError(t, err)
	assert.Equal(t, "1234567", locationID)
	assert.True(t, fetchedAt.Equal(time.Date(2024, 3, 7, 8, 5, 1, 0, time.UTC)))

	_, _, err = ParseKey("other", "evorelay/snapshots/1234567/2024/03/07/080501Z.json")
	assert.Error(t, err)

	_, _, err = ParseKey("", "1234567/not-a-time.json")
	assert.Error(t, err)
}

func TestSinkStoreAndLoad(t *testing.T) {
	store := newMemoryStore()
	sink := NewSink(store, "/evorelay/snapshots/", zerolog.Nop())

	fetchedAt := time.Date(2024, 3, 7, 8, 5, 1, 0, time.UTC)
	snapshot, err := evohome.ParseStatus("1234567", []byte(statusDoc), fetchedAt)
	require.NoError(t, err)

	require.NoError(t, sink.Store(context.Background(), snapshot))
	key := "evorelay/snapshots/1234567/2024/03/07/080501Z.json"
	require.Contains(t, store.objects, key)
	assert.JSONEq(t, statusDoc, string(store.objects[key]))

	loaded, err := sink.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "1234567", loaded.LocationID)
	assert.True(t, loaded.FetchedAt.Equal(fetchedAt))
	require.Len(t, loaded.Zones(), 1)
	assert.Equal(t, "5001", loaded.Zones()[0].ZoneID)

	_, err = sink.Load(context.Background(), "evorelay/snapshots/1234567/2024/03/08/000000Z.json")
	require.ErrorIs(t, err, ErrBlobNotFound)
}

func TestSinkStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("bucket missing")
	sink := NewSink(store, "snapshots", zerolog.Nop())

	snapshot, err := evohome.ParseStatus("1234567", []byte(statusDoc), time.Now())
	require.NoError(t, err)
	err = sink.Store(context.Background(), snapshot)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket missing")

	assert.Error(t, sink.Store(context.Background(), &core.StatusSnapshot{LocationID: "1"}))
}

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		raw    string
		host   string
		secure bool
		err    bool
	}{
		{raw: "https://s3.example.com", host: "s3.example.com", secure: true},
		{raw: "http://minio:9000", host: "minio:9000", secure: false},
		{raw: "s3.example.com", host: "s3.example.com", secure: true},
		{raw: "https://", err: true},
	}
	for _, tc := range cases {
		host, secure, err := parseEndpoint(tc.raw)
		if tc.err {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.host, host)
		assert.Equal(t, tc.secure, secure)
	}
}
