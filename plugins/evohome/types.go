package evohome

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/joshp123/evorelay/internal/core"
)

// AccountInfo is the subset of /userAccount used to find installations.
type AccountInfo struct {
	UserID    string
	Username  string
	FirstName string
	LastName  string
}

// Installation is the per-location installationInfo document.
type Installation struct {
	LocationInfo struct {
		LocationID string `json:"locationId"`
		Name       string `json:"name"`
		City       string `json:"city"`
		Country    string `json:"country"`
	} `json:"locationInfo"`
	Gateways []struct {
		GatewayInfo struct {
			GatewayID string `json:"gatewayId"`
		} `json:"gatewayInfo"`
		TemperatureControlSystems []struct {
			SystemID  string     `json:"systemId"`
			ModelType string     `json:"modelType"`
			Zones     []ZoneInfo `json:"zones"`
		} `json:"temperatureControlSystems"`
	} `json:"gateways"`
}

// ZoneInfo is static zone metadata.
type ZoneInfo struct {
	ZoneID    string `json:"zoneId"`
	Name      string `json:"name"`
	ModelType string `json:"modelType"`
	ZoneType  string `json:"zoneType"`
}

// Zones flattens zone metadata across gateways and control systems.
func (i Installation) Zones() []ZoneInfo {
	var zones []ZoneInfo
	for _, gw := range i.Gateways {
		for _, tcs := range gw.TemperatureControlSystems {
			zones = append(zones, tcs.Zones...)
		}
	}
	return zones
}

// ParseStatus validates a location status document at the boundary.
func ParseStatus(locationID string, raw []byte, fetchedAt time.Time) (*core.StatusSnapshot, error) {
	var doc struct {
		LocationID string               `json:"locationId"`
		Gateways   []core.GatewayStatus `json:"gateways"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &DataShapeError{What: "status", Reason: "decode", Err: err}
	}
	if len(doc.Gateways) == 0 {
		return nil, &DataShapeError{What: "status", Reason: "no gateways"}
	}
	for gi, gw := range doc.Gateways {
		for ti, tcs := range gw.TemperatureControlSystems {
			for zi, zone := range tcs.Zones {
				if zone.ZoneID == "" {
					return nil, &DataShapeError{
						What:   "status",
						Reason: fmt.Sprintf("gateways[%d].temperatureControlSystems[%d].zones[%d] missing zoneId", gi, ti, zi),
					}
				}
			}
		}
	}
	if doc.LocationID != "" {
		locationID = doc.LocationID
	}

	return &core.StatusSnapshot{
		LocationID: locationID,
		FetchedAt:  fetchedAt,
		Gateways:   doc.Gateways,
		Raw:        append(json.RawMessage(nil), raw...),
	}, nil
}
