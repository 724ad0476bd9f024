package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDashboards(t *testing.T) {
	dashboards := []Dashboard{{Name: "evohome-overview", JSON: []byte(`{"title":"evohome"}`)}}

	paths := DashboardsMap(dashboards)
	if string(paths["/dashboards/evohome-overview.json"]) != `{"title":"evohome"}` {
		t.Fatalf("unexpected dashboard map: %v", paths)
	}

	dir := filepath.Join(t.TempDir(), "grafana")
	if err := WriteDashboards(dir, dashboards); err != nil {
		t.Fatalf("WriteDashboards error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "evohome-overview.json"))
	if err != nil {
		t.Fatalf("read dashboard: %v", err)
	}
	if string(data) != `{"title":"evohome"}` {
		t.Fatalf("unexpected dashboard content: %s", data)
	}

	if err := WriteDashboards("", dashboards); err != nil {
		t.Fatalf("empty dir should be a no-op: %v", err)
	}
}
