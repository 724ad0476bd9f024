package mqttpub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/joshp123/evorelay/internal/core"
)

// Message is one MQTT publish.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// ZonePayload is the per-zone document published under zones/{zoneId}.
type ZonePayload struct {
	LocationID        string    `json:"location_id"`
	ZoneID            string    `json:"zone_id"`
	Name              string    `json:"name"`
	Temperature       *float64  `json:"temperature"`
	Available         bool      `json:"available"`
	TargetTemperature float64   `json:"target_temperature"`
	SetpointMode      string    `json:"setpoint_mode"`
	FetchedAt         time.Time `json:"fetched_at"`
}

// Sink publishes every snapshot to an MQTT broker.
type Sink struct {
	publisher Publisher
	prefix    string
	qos       byte
	retain    bool
	logger    zerolog.Logger
}

func NewSink(publisher Publisher, prefix string, qos byte, retain bool, logger zerolog.Logger) *Sink {
	return &Sink{
		publisher: publisher,
		prefix:    strings.Trim(strings.TrimSpace(prefix), "/"),
		qos:       qos,
		retain:    retain,
		logger:    logger.With().Str("component", "mqtt").Logger(),
	}
}

func (s *Sink) Name() string {
	return "mqtt"
}

func (s *Sink) Store(ctx context.Context, snapshot *core.StatusSnapshot) error {
	messages, err := Messages(s.prefix, snapshot, s.retain)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.publisher.Publish(msg.Topic, s.qos, msg.Retained, msg.Payload); err != nil {
			return fmt.Errorf("publish %s: %w", msg.Topic, err)
		}
	}
	s.logger.Debug().Int("messages", len(messages)).Str("location_id", snapshot.LocationID).Msg("snapshot published")
	return nil
}

func (s *Sink) Close() error {
	return s.publisher.Close()
}

// Messages builds the status message followed by one message per zone. The
// status message is always retained; zone messages follow retainZones.
func Messages(prefix string, snapshot *core.StatusSnapshot, retainZones bool) ([]Message, error) {
	base := snapshot.LocationID
	if prefix != "" {
		base = prefix + "/" + snapshot.LocationID
	}

	zones := snapshot.Zones()
	messages := make([]Message, 0, len(zones)+1)
	messages = append(messages, Message{Topic: base + "/status", Payload: snapshot.Raw, Retained: true})

	for _, zone := range zones {
		payload, err := json.Marshal(ZonePayload{
			LocationID:        snapshot.LocationID,
			ZoneID:            zone.ZoneID,
			Name:              zone.Name,
			Temperature:       zone.TemperatureStatus.Temperature,
			Available:         zone.TemperatureStatus.IsAvailable,
			TargetTemperature: zone.HeatSetpointStatus.TargetTemperature,
			SetpointMode:      zone.HeatSetpointStatus.SetpointMode,
			FetchedAt:         snapshot.FetchedAt.UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("encode zone %s: %w", zone.ZoneID, err)
		}
		messages = append(messages, Message{
			Topic:    base + "/zones/" + zone.ZoneID,
			Payload:  payload,
			Retained: retainZones,
		})
	}
	return messages, nil
}
