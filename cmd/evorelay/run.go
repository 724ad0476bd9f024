package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/joshp123/evorelay/internal/core"
	"github.com/joshp123/evorelay/internal/oauth"
	"github.com/joshp123/evorelay/internal/poll"
	"github.com/joshp123/evorelay/internal/server"
	"github.com/joshp123/evorelay/plugins/evohome"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the polling daemon",
		Long: `Log in to evohome, select the installation, and poll it on a fixed
interval. Health and metrics are served on server.http_addr; gRPC health and
reflection on server.grpc_addr. A failed bootstrap exits non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp()
			if err != nil {
				return err
			}
			return a.run(ctx)
		},
	}
}

func (a *app) run(ctx context.Context) error {
	client, err := a.evohomeClient()
	if err != nil {
		return err
	}

	metricsSink := evohome.NewMetricsSink()
	sinks, err := a.buildSinks(metricsSink)
	if err != nil {
		return err
	}
	fanout := core.NewFanout(a.logger, sinks.all...)
	defer a.closeSinks(sinks.all)

	grpcServer, err := server.NewGRPCServer(a.cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	cycle := poll.NewCycle(client, fanout, a.logger, poll.WithObserver(func(result poll.Result) {
		grpcServer.SetServing(result.OK())
	}))

	dashboards := []core.Dashboard{evohome.Dashboard()}
	if err := core.WriteDashboards(a.cfg.Server.DashboardsDir, dashboards); err != nil {
		return err
	}

	collectors := []prometheus.Collector{metricsSink, buildInfo()}
	collectors = append(collectors, oauth.MetricsCollectors()...)
	collectors = append(collectors, poll.MetricsCollectors()...)
	registry := core.MetricsRegistry(collectors...)

	sources := server.Sources{Session: client.Session(), Cycle: cycle, Sinks: fanout}
	httpServer := server.NewHTTPServer(a.cfg.Server.HTTPAddr,
		server.NewMux(sources.Report, server.MetricsHandler(registry), core.DashboardsMap(dashboards)))

	serveErr := make(chan error, 2)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			serveErr <- fmt.Errorf("http serve: %w", err)
		}
	}()
	go func() {
		if err := grpcServer.Serve(); err != nil {
			serveErr <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	a.logger.Info().
		Str("http_addr", a.cfg.Server.HTTPAddr).
		Str("grpc_addr", a.cfg.Server.GRPCAddr).
		Strs("sinks", sinkNames(sinks.all)).
		Msg("evorelay started")

	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()

	var runErr error
	if _, err := client.Connect(pollCtx); err != nil {
		grpcServer.SetServing(false)
		runErr = fmt.Errorf("bootstrap: %w", err)
	} else {
		pollDone := make(chan struct{})
		go func() {
			cycle.Schedule(pollCtx, a.cfg.Poll.Interval())
			close(pollDone)
		}()

		select {
		case <-ctx.Done():
		case runErr = <-serveErr:
		}
		cancelPoll()
		<-pollDone
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("http shutdown")
	}
	grpcServer.Stop()

	if runErr != nil {
		a.logger.Error().Err(runErr).Msg("evorelay stopped")
		return runErr
	}
	a.logger.Info().Msg("evorelay stopped")
	return nil
}

func buildInfo() prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "evorelay_build_info",
		Help:        "Build information",
		ConstLabels: prometheus.Labels{"version": version},
	}, func() float64 { return 1 })
}

func sinkNames(sinks []core.Sink) []string {
	names := make([]string, 0, len(sinks))
	for _, sink := range sinks {
		names = append(names, sink.Name())
	}
	return names
}
