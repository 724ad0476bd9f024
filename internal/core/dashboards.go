package core

import (
	"fmt"
	"os"
	"path/filepath"
)

// DashboardsMap materializes dashboard content to URL paths.
func DashboardsMap(dashboards []Dashboard) map[string][]byte {
	result := make(map[string][]byte, len(dashboards))
	for _, dash := range dashboards {
		result["/dashboards/"+dash.Name+".json"] = dash.JSON
	}
	return result
}

// WriteDashboards writes dashboards to disk for Grafana provisioning.
func WriteDashboards(dir string, dashboards []Dashboard) error {
	if dir == "" {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dashboard dir: %w", err)
	}
	for _, dash := range dashboards {
		path := filepath.Join(dir, dash.Name+".json")
		if err := os.WriteFile(path, dash.JSON, 0o644); err != nil {
			return fmt.Errorf("write dashboard %s: %w", path, err)
		}
	}

	return nil
}
