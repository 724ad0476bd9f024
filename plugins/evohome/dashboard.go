package evohome

import (
	_ "embed"

	"github.com/joshp123/evorelay/internal/core"
)

//go:embed dashboard.json
var dashboardJSON []byte

// Dashboard returns the Grafana overview dashboard for the metrics sink.
func Dashboard() core.Dashboard {
	return core.Dashboard{Name: "evohome-overview", JSON: dashboardJSON}
}
