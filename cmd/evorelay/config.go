package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshp123/evorelay/internal/config"
)

type configSummary struct {
	Path           string   `json:"path"`
	SchemaVersion  int      `json:"schema_version"`
	IntervalMS     int64    `json:"interval_ms"`
	HTTPAddr       string   `json:"http_addr"`
	GRPCAddr       string   `json:"grpc_addr"`
	EvohomeUser    string   `json:"evohome_username"`
	LocationID     string   `json:"location_id,omitempty"`
	RefreshEnabled bool     `json:"refresh_enabled"`
	Sinks          []string `json:"sinks"`
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Parse and validate the configuration without contacting any service",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			summary := summarize(configPath, cfg)
			if jsonOutput {
				printJSON(summary)
				return nil
			}
			okLabel.Printf("OK")
			printf(" %s\n", summary.Path)
			table([][]string{
				{"interval_ms", strconv.FormatInt(summary.IntervalMS, 10)},
				{"http_addr", summary.HTTPAddr},
				{"grpc_addr", summary.GRPCAddr},
				{"evohome.username", summary.EvohomeUser},
				{"evohome.location_id", orDash(summary.LocationID)},
				{"evohome.refresh_enabled", strconv.FormatBool(summary.RefreshEnabled)},
				{"sinks", joinOrDash(summary.Sinks)},
			})
			return nil
		},
	})
	return cmd
}

// summarize lists what the config enables. Secrets are never included.
func summarize(path string, cfg *config.Config) configSummary {
	return configSummary{
		Path:           path,
		SchemaVersion:  cfg.SchemaVersion,
		IntervalMS:     cfg.Poll.IntervalMS,
		HTTPAddr:       cfg.Server.HTTPAddr,
		GRPCAddr:       cfg.Server.GRPCAddr,
		EvohomeUser:    cfg.Evohome.Username,
		LocationID:     cfg.Evohome.LocationID,
		RefreshEnabled: cfg.Evohome.RefreshEnabled != nil && *cfg.Evohome.RefreshEnabled,
		Sinks:          append(config.EnabledSinks(cfg), "metrics"),
	}
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func joinOrDash(values []string) string {
	return orDash(strings.Join(values, ", "))
}
