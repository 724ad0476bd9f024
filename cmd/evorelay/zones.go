package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshp123/evorelay/internal/core"
	"github.com/joshp123/evorelay/plugins/evohome"
)

type zoneRow struct {
	ZoneID            string   `json:"zone_id"`
	Name              string   `json:"name"`
	ModelType         string   `json:"model_type,omitempty"`
	Temperature       *float64 `json:"temperature"`
	TargetTemperature float64  `json:"target_temperature"`
	SetpointMode      string   `json:"setpoint_mode"`
}

func newZonesCmd() *cobra.Command {
	var zone string
	cmd := &cobra.Command{
		Use:   "zones",
		Short: "List zones of the selected installation with their current status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client, err := a.connect(ctx)
			if err != nil {
				return err
			}

			inst, err := client.Installation(ctx)
			if err != nil {
				return err
			}
			snapshot, err := client.Status(ctx)
			if err != nil {
				return err
			}

			rows := zoneRows(inst, snapshot)
			if zone != "" {
				names := make(map[string]string, len(rows))
				for _, row := range rows {
					names[row.ZoneID] = row.Name
				}
				id, err := resolveZone(zone, names)
				if err != nil {
					return err
				}
				rows = filterRows(rows, id)
			}

			if jsonOutput {
				printJSON(rows)
				return nil
			}
			printf("location %s\n", snapshot.LocationID)
			out := [][]string{{"ZONE_ID", "NAME", "TEMP", "TARGET", "MODE"}}
			for _, row := range rows {
				out = append(out, []string{row.ZoneID, row.Name, formatTemp(row.Temperature), formatTemp(&row.TargetTemperature), row.SetpointMode})
			}
			table(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&zone, "zone", "", "Only show this zone (id or name)")
	return cmd
}

// zoneRows joins live status with installation metadata by zone id, in
// status order.
func zoneRows(inst evohome.Installation, snapshot *core.StatusSnapshot) []zoneRow {
	models := make(map[string]string)
	for _, info := range inst.Zones() {
		models[info.ZoneID] = info.ModelType
	}

	zones := snapshot.Zones()
	rows := make([]zoneRow, 0, len(zones))
	for _, z := range zones {
		rows = append(rows, zoneRow{
			ZoneID:            z.ZoneID,
			Name:              z.Name,
			ModelType:         models[z.ZoneID],
			Temperature:       z.TemperatureStatus.Temperature,
			TargetTemperature: z.HeatSetpointStatus.TargetTemperature,
			SetpointMode:      z.HeatSetpointStatus.SetpointMode,
		})
	}
	return rows
}

func filterRows(rows []zoneRow, zoneID string) []zoneRow {
	for _, row := range rows {
		if row.ZoneID == zoneID {
			return []zoneRow{row}
		}
	}
	return nil
}

func formatTemp(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%s°C", strconv.FormatFloat(*value, 'f', 1, 64))
}
