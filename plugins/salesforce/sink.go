package salesforce

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/joshp123/evorelay/internal/core"
)

// Sink writes one record per zone on every poll. It logs in on every store;
// Salesforce sessions are not kept between cycles.
type Sink struct {
	client *Client
	logger zerolog.Logger
}

func NewSink(client *Client) *Sink {
	return &Sink{client: client, logger: client.logger}
}

func (s *Sink) Name() string {
	return "salesforce"
}

func (s *Sink) Store(ctx context.Context, snapshot *core.StatusSnapshot) error {
	if snapshot == nil {
		s.logger.Debug().Msg("no snapshot; nothing to create")
		return nil
	}
	records := RecordsFromSnapshot(s.client.cfg.SObject, snapshot)
	if len(records) == 0 {
		s.logger.Debug().Str("location_id", snapshot.LocationID).Msg("snapshot has no zones; nothing to create")
		return nil
	}

	conn, err := s.client.Login(ctx)
	if err != nil {
		return err
	}

	results, err := s.client.CreateRecords(ctx, conn, records)
	if err != nil {
		return err
	}

	var rejected *RejectedError
	for i, result := range results {
		if result.Success {
			continue
		}
		reason := "unknown error"
		if len(result.Errors) > 0 {
			reason = result.Errors[0].String()
		}
		s.logger.Error().
			Str("zone_id", records[i].TempZone.ZoneID).
			Str("reason", reason).
			Msg("salesforce rejected record")
		if rejected == nil {
			rejected = &RejectedError{Total: len(records), First: reason}
		}
		rejected.Rejected++
	}
	if rejected != nil {
		return rejected
	}

	s.logger.Info().Int("records", len(results)).Str("location_id", snapshot.LocationID).Msg("salesforce records created")
	return nil
}
