package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshp123/evorelay/internal/core"
)

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay KEY...",
		Short: "Re-send archived snapshots to the other configured sinks",
		Long: `Load snapshots from the archive bucket and store them again, for example
after a Salesforce outage. The archive sink itself is skipped.

Examples:
  evorelay replay evorelay/snapshots/1234567/2024/03/07/080501Z.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, keys []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			sinks, err := a.buildSinks()
			if err != nil {
				return err
			}
			if sinks.archive == nil {
				return fmt.Errorf("replay needs the archive sink to be configured")
			}

			targets := withoutSink(sinks.all, sinks.archive.Name())
			if len(targets) == 0 {
				return fmt.Errorf("no sinks besides the archive are configured")
			}
			defer a.closeSinks(sinks.all)
			fanout := core.NewFanout(a.logger, targets...)

			ctx := cmd.Context()
			failed := 0
			for _, key := range keys {
				snapshot, err := sinks.archive.Load(ctx, key)
				if err != nil {
					errorLabel.Printf("FAILED")
					printf(" %s: %v\n", key, err)
					failed++
					continue
				}
				if err := fanout.Store(ctx, snapshot); err != nil {
					errorLabel.Printf("FAILED")
					printf(" %s: %v\n", key, err)
					failed++
					continue
				}
				okLabel.Printf("OK")
				printf(" %s (%d zones)\n", key, len(snapshot.Zones()))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d snapshots failed", failed, len(keys))
			}
			return nil
		},
	}
}

func withoutSink(sinks []core.Sink, name string) []core.Sink {
	out := make([]core.Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink.Name() != name {
			out = append(out, sink)
		}
	}
	return out
}
