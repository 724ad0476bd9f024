package core

import (
	"encoding/json"
	"time"
)

// StatusSnapshot is one poll result: a typed view of the fields sinks read,
// plus the untouched vendor document.
type StatusSnapshot struct {
	LocationID string
	FetchedAt  time.Time
	Gateways   []GatewayStatus
	Raw        json.RawMessage
}

type GatewayStatus struct {
	GatewayID                 string                `json:"gatewayId"`
	TemperatureControlSystems []ControlSystemStatus `json:"temperatureControlSystems"`
}

type ControlSystemStatus struct {
	SystemID         string       `json:"systemId"`
	SystemModeStatus *SystemMode  `json:"systemModeStatus"`
	Zones            []ZoneStatus `json:"zones"`
}

type SystemMode struct {
	Mode        string `json:"mode"`
	IsPermanent bool   `json:"isPermanent"`
}

type ZoneStatus struct {
	ZoneID             string             `json:"zoneId"`
	Name               string             `json:"name"`
	TemperatureStatus  TemperatureStatus  `json:"temperatureStatus"`
	HeatSetpointStatus HeatSetpointStatus `json:"heatSetpointStatus"`
}

type TemperatureStatus struct {
	// Temperature is nil when the sensor reports unavailable.
	Temperature *float64 `json:"temperature"`
	IsAvailable bool     `json:"isAvailable"`
}

type HeatSetpointStatus struct {
	TargetTemperature float64 `json:"targetTemperature"`
	SetpointMode      string  `json:"setpointMode"`
}

// Zones flattens zone status across gateways and control systems, in
// document order.
func (s *StatusSnapshot) Zones() []ZoneStatus {
	if s == nil {
		return nil
	}
	var zones []ZoneStatus
	for _, gw := range s.Gateways {
		for _, tcs := range gw.TemperatureControlSystems {
			zones = append(zones, tcs.Zones...)
		}
	}
	return zones
}
