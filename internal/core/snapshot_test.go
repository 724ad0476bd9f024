package core

import "testing"

func TestSnapshotZonesFlattensInDocumentOrder(t *testing.T) {
	snapshot := &StatusSnapshot{
		Gateways: []GatewayStatus{
			{TemperatureControlSystems: []ControlSystemStatus{
				{Zones: []ZoneStatus{{ZoneID: "1"}, {ZoneID: "2"}}},
				{Zones: []ZoneStatus{{ZoneID: "3"}}},
			}},
			{TemperatureControlSystems: []ControlSystemStatus{
				{Zones: []ZoneStatus{{ZoneID: "4"}}},
			}},
		},
	}

	zones := snapshot.Zones()
	if len(zones) != 4 {
		t.Fatalf("expected 4 zones, got %d", len(zones))
	}
	for i, want := range []string{"1", "2", "3", "4"} {
		if zones[i].ZoneID != want {
			t.Fatalf("zone %d: expected %s, got %s", i, want, zones[i].ZoneID)
		}
	}
}

func TestSnapshotZonesNil(t *testing.T) {
	var snapshot *StatusSnapshot
	if zones := snapshot.Zones(); zones != nil {
		t.Fatalf("expected no zones, got %v", zones)
	}
}
