package salesforce

import (
	"fmt"
	"strings"

	"github.com/joshp123/evorelay/internal/core"
)

// ZoneRecord is one zone reading as a Salesforce sObject row.
type ZoneRecord struct {
	Attributes        Attributes `json:"attributes"`
	SetPointMode      string     `json:"SetPointMode__c"`
	TargetTemperature float64    `json:"TargetTemperature__c"`
	// Temperature is sent as null when the zone sensor is unavailable.
	Temperature *float64 `json:"Temperature__c"`
	TempZone    ZoneRef  `json:"TempZone__r"`
}

type Attributes struct {
	Type string `json:"type"`
}

// ZoneRef links a record to its parent zone by external id.
type ZoneRef struct {
	ZoneID string `json:"ZoneID__c"`
}

// RecordsFromSnapshot maps every zone of the snapshot to one record.
func RecordsFromSnapshot(sobject string, snapshot *core.StatusSnapshot) []ZoneRecord {
	zones := snapshot.Zones()
	records := make([]ZoneRecord, 0, len(zones))
	for _, zone := range zones {
		records = append(records, ZoneRecord{
			Attributes:        Attributes{Type: sobject},
			SetPointMode:      zone.HeatSetpointStatus.SetpointMode,
			TargetTemperature: zone.HeatSetpointStatus.TargetTemperature,
			Temperature:       zone.TemperatureStatus.Temperature,
			TempZone:          ZoneRef{ZoneID: zone.ZoneID},
		})
	}
	return records
}

// SaveResult is the per-record outcome of a composite create.
type SaveResult struct {
	ID      string      `json:"id"`
	Success bool        `json:"success"`
	Errors  []SaveError `json:"errors"`
}

type SaveError struct {
	StatusCode string   `json:"statusCode"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields"`
}

func (e SaveError) String() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.StatusCode, e.Message, strings.Join(e.Fields, ", "))
}

// RejectedError reports records Salesforce refused to create.
type RejectedError struct {
	Rejected int
	Total    int
	First    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("salesforce rejected %d of %d records: %s", e.Rejected, e.Total, e.First)
}

type HTTPStatusError struct {
	Status int
	Body   string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("salesforce api error %d: %s", e.Status, strings.TrimSpace(e.Body))
}
