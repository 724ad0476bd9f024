package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/fullstorydev/grpcurl"
	"github.com/jhump/protoreflect/grpcreflect"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joshp123/evorelay/internal/config"
	"github.com/joshp123/evorelay/internal/server"
)

type statusReport struct {
	Addr     string   `json:"addr"`
	Server   string   `json:"server"`
	Poll     string   `json:"poll"`
	Services []string `json:"services"`
}

func newStatusCmd() *cobra.Command {
	var addr string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running daemon's gRPC health and services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = resolveAddr()
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			conn, err := grpcurl.BlockingDial(ctx, "tcp", addr, insecure.NewCredentials())
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			defer conn.Close()

			report, err := queryStatus(ctx, conn)
			if err != nil {
				return err
			}
			report.Addr = addr

			if jsonOutput {
				printJSON(report)
			} else {
				printStatus(report)
			}
			if report.Poll != healthpb.HealthCheckResponse_SERVING.String() {
				return errAlreadyReported
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Daemon gRPC address (default: server.grpc_addr from the config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Dial and request timeout")
	return cmd
}

func queryStatus(ctx context.Context, conn *grpc.ClientConn) (statusReport, error) {
	health := healthpb.NewHealthClient(conn)
	overall, err := health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return statusReport{}, fmt.Errorf("health check: %w", err)
	}
	pollStatus, err := health.Check(ctx, &healthpb.HealthCheckRequest{Service: server.PollService})
	if err != nil {
		return statusReport{}, fmt.Errorf("health check %s: %w", server.PollService, err)
	}

	refClient := grpcreflect.NewClientAuto(ctx, conn)
	defer refClient.Reset()
	services, err := grpcurl.ListServices(grpcurl.DescriptorSourceFromServer(ctx, refClient))
	if err != nil {
		return statusReport{}, fmt.Errorf("list services: %w", err)
	}

	return statusReport{
		Server:   overall.GetStatus().String(),
		Poll:     pollStatus.GetStatus().String(),
		Services: services,
	}, nil
}

func printStatus(report statusReport) {
	printf("daemon %s\n", report.Addr)
	printf("  server: %s\n", colorStatus(report.Server))
	printf("  poll:   %s\n", colorStatus(report.Poll))
	printf("  services:\n")
	for _, svc := range report.Services {
		printf("    - %s\n", svc)
	}
}

func colorStatus(status string) string {
	if status == healthpb.HealthCheckResponse_SERVING.String() {
		return okLabel.Sprint(status)
	}
	return errorLabel.Sprint(status)
}

// resolveAddr reads server.grpc_addr from the config when it parses, and
// turns a wildcard listen host into loopback.
func resolveAddr() string {
	addr := config.DefaultGRPCAddr
	if cfg, err := config.Load(configPath); err == nil {
		addr = cfg.Server.GRPCAddr
	}
	return dialAddr(addr)
}

func dialAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
