package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"esbridge/internal/transport"
)

var healthAddr string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query a running bridge's gRPC health service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		st, err := transport.Check(ctx, healthAddr)
		if err != nil {
			return err
		}
		cmd.Println(st.String())
		if st != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("bridge at %s is %s", healthAddr, st)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().StringVar(&healthAddr, "addr", "localhost:50051", "health service address")
	rootCmd.AddCommand(healthCmd)
}
