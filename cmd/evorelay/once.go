package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/joshp123/evorelay/internal/core"
	"github.com/joshp123/evorelay/internal/poll"
)

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Bootstrap, run a single poll cycle, and exit",
		Long: `Run one fetch-and-store cycle against every configured sink. Exits 1 when
bootstrap or the cycle fails.`,
		Args: cobra.NoArgs,
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

			sinks, err := a.buildSinks()
			if err != nil {
				return err
			}
			defer a.closeSinks(sinks.all)
			fanout := core.NewFanout(a.logger, sinks.all...)

			result := poll.NewCycle(client, fanout, a.logger).RunOnce(ctx)
			if jsonOutput {
				printJSON(struct {
					poll.Result
					Sinks []core.SinkStatus `json:"sinks"`
				}{result, fanout.Statuses()})
			} else {
				printResult(result, fanout.Statuses())
			}
			if !result.OK() {
				return errAlreadyReported
			}
			return nil
		},
	}
}

func printResult(result poll.Result, sinks []core.SinkStatus) {
	took := result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond)
	if result.OK() {
		okLabel.Printf("OK")
		printf(" cycle %s: %d zones in %s\n", result.CycleID, result.Zones, took)
	} else {
		errorLabel.Printf("FAILED")
		printf(" cycle %s at %s: %s\n", result.CycleID, result.Stage, result.Error)
	}

	rows := [][]string{{"SINK", "HEALTH", "MESSAGE"}}
	for _, sink := range sinks {
		rows = append(rows, []string{sink.Name, string(sink.Health), sink.Message})
	}
	table(rows)
}
