package mqttpub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/evorelay/internal/core"
	"github.com/joshp123/evorelay/plugins/evohome"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

type fakePublisher struct {
	messages []published
	err      error
	closed   bool
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{topic: topic, qos: qos, retained: retained, payload: string(payload)})
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

const statusDoc = `{"locationId":"1234567","gateways":[{"temperatureControlSystems":[{"zones":[
	{"zoneId":"5001","name":"Living Room","temperatureStatus":{"temperature":20.5,"isAvailable":true},"heatSetpointStatus":{"targetTemperature":21,"setpointMode":"FollowSchedule"}},
	{"zoneId":"5002","name":"Bedroom","temperatureStatus":{"isAvailable":false},"heatSetpointStatus":{"targetTemperature":16.5,"setpointMode":"TemporaryOverride"}}
]}]}]}`

func snapshot(t *testing.T) *core.StatusSnapshot {
	t.Helper()
	s, err := evohome.ParseStatus("1234567", []byte(statusDoc), time.Date(2024, 3, 7, 8, 5, 1, 0, time.UTC))
	require.NoError(t, err)
	return s
}

func TestSinkPublishesStatusAndZones(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewSink(pub, "/home/evorelay/", 1, false, zerolog.Nop())

	require.NoError(t, sink.Store(context.Background(), snapshot(t)))
	require.Len(t, pub.messages, 3)

	status := pub.messages[0]
	assert.Equal(t, "home/evorelay/1234567/status", status.topic)
	assert.True(t, status.retained)
	assert.Equal(t, byte(1), status.qos)
	assert.JSONEq(t, statusDoc, status.payload)

	assert.Equal(t, "home/evorelay/1234567/zones/5001", pub.messages[1].topic)
	assert.False(t, pub.messages[1].retained)
	assert.JSONEq(t, `{
		"location_id":"1234567","zone_id":"5001","name":"Living Room",
		"temperature":20.5,"available":true,"target_temperature":21,
		"setpoint_mode":"FollowSchedule","fetched_at":"2024-03-07T08:05:01Z"
	}`, pub.messages[1].payload)

	assert.Equal(t, "home/evorelay/1234567/zones/5002", pub.messages[2].topic)
	assert.Contains(t, pub.messages[2].payload, `"temperature":null`)
}

func TestSinkPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	sink := NewSink(pub, "evorelay", 0, true, zerolog.Nop())

	err := sink.Store(context.Background(), snapshot(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evorelay/1234567/status")

	require.NoError(t, sink.Close())
	assert.True(t, pub.closed)
}

func TestMessagesWithoutPrefix(t *testing.T) {
	messages, err := Messages("", snapshot(t), true)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "1234567/status", messages[0].Topic)
	assert.True(t, messages[2].Retained)
}

func TestBrokerURL(t *testing.T) {
	cases := []struct {
		raw    string
		want   string
		tls    bool
		hasErr bool
	}{
		{raw: "tcp://broker:1883", want: "tcp://broker:1883"},
		{raw: "mqtt://broker:1883", want: "tcp://broker:1883"},
		{raw: "mqtts://broker:8883", want: "ssl://broker:8883", tls: true},
		{raw: "wss://broker/mqtt", want: "wss://broker/mqtt", tls: true},
		{raw: "http://broker", hasErr: true},
		{raw: "broker:1883", hasErr: true},
	}
	for _, tc := range cases {
		got, useTLS, err := brokerURL(tc.raw)
		if tc.hasErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.tls, useTLS)
	}
}
