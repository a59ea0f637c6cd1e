package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

// healthService is the service name fridgekeep-server reports health under.
const healthService = "fridgekeep.ResourceStore"

func newHealthCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Query the server's gRPC health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout())
			defer cancel()

			status, err := checkHealth(ctx, c.grpcAddr(), c.apiKeyHeader(), c.apiKey())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			if status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("server is %s", status)
			}
			return nil
		},
	}
}

// checkHealth dials addr and returns the serving status of healthService.
func checkHealth(ctx context.Context, addr, header, key string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.DialContext(ctx, addr, //nolint:staticcheck // DialContext kept for grpc 1.62 compat
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health: dial %s: %w", addr, err)
	}
	defer conn.Close()

	if key != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, header, key)
	}
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: healthService})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health: check: %w", err)
	}
	return resp.GetStatus(), nil
}
