// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/holomush/userauth/internal/config"
	"github.com/holomush/userauth/internal/control"
)

// ServiceStatus is the health of one service reported by a running server.
type ServiceStatus struct {
	Service string `json:"service"`
	Health  string `json:"health,omitempty"`
	Error   string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	addr       string
	timeout    time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the health of a running userauth server",
		Long:  `Query the gRPC health service of a running userauth server.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().StringVar(&cfg.addr, "control-addr", config.DefaultControlAddr, "gRPC health address of the server")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "query timeout")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	statuses := queryHealth(ctx, cfg.addr, []string{"", control.ServiceName})

	if cfg.jsonOutput {
		output, err := formatStatusJSON(statuses)
		if err != nil {
			return err
		}
		cmd.Println(output)
		return nil
	}
	cmd.Print(formatStatusTable(statuses))
	return nil
}

// queryHealth asks the health service at addr about each service name.
// The empty name is the server as a whole.
func queryHealth(ctx context.Context, addr string, services []string) []ServiceStatus {
	out := make([]ServiceStatus, 0, len(services))

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		for _, svc := range services {
			out = append(out, ServiceStatus{Service: displayName(svc), Error: fmt.Sprintf("failed to connect: %v", err)})
		}
		return out
	}
	defer func() { _ = conn.Close() }()

	client := healthpb.NewHealthClient(conn)
	for _, svc := range services {
		status := ServiceStatus{Service: displayName(svc)}
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		if err != nil {
			status.Error = err.Error()
		} else {
			status.Health = strings.ToLower(resp.GetStatus().String())
		}
		out = append(out, status)
	}
	return out
}

func displayName(service string) string {
	if service == "" {
		return "server"
	}
	return service
}

// formatStatusTable formats the statuses as a human-readable table.
func formatStatusTable(statuses []ServiceStatus) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "SERVICE\tHEALTH")
	_, _ = fmt.Fprintln(w, "-------\t------")
	for _, s := range statuses {
		health := s.Health
		if s.Error != "" {
			health = "unreachable: " + s.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", s.Service, health)
	}

	_ = w.Flush()
	return sb.String()
}

// formatStatusJSON formats the statuses as JSON.
func formatStatusJSON(statuses []ServiceStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}
