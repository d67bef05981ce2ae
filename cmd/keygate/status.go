// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// EndpointStatus holds the probe result for one endpoint.
type EndpointStatus struct {
	Endpoint string `json:"endpoint"`
	URL      string `json:"url"`
	Up       bool   `json:"up"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	httpAddr    string
	metricsAddr string
	jsonOutput  bool
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running Keygate server",
		Long:  `Probe the health endpoints of a running Keygate server and report the results.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.httpAddr, "http-addr", "127.0.0.1:8080", "API address to probe")
	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", "127.0.0.1:9100", "observability address to probe")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	client := &http.Client{Timeout: 2 * time.Second}

	statuses := []EndpointStatus{
		probeEndpoint(client, "api", "http://"+cfg.httpAddr+"/healthz"),
		probeEndpoint(client, "liveness", "http://"+cfg.metricsAddr+"/healthz/liveness"),
		probeEndpoint(client, "readiness", "http://"+cfg.metricsAddr+"/healthz/readiness"),
	}

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(formatStatusTable(statuses))
	return nil
}

// probeEndpoint performs a GET against a health URL and classifies the
// result.
func probeEndpoint(client *http.Client, name, url string) EndpointStatus {
	status := EndpointStatus{Endpoint: name, URL: url}

	resp, err := client.Get(url)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	status.Up = resp.StatusCode == http.StatusOK
	status.Status = resp.Status
	return status
}

// byteWriter lets tabwriter write into a byte slice.
type byteWriter []byte

func (b *byteWriter) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

// formatStatusTable formats the probe results as a human-readable table.
func formatStatusTable(statuses []EndpointStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ENDPOINT\tSTATE\tDETAIL")
	_, _ = fmt.Fprintln(w, "--------\t-----\t------")

	for _, s := range statuses {
		if s.Up {
			_, _ = fmt.Fprintf(w, "%s\tup\t%s\n", s.Endpoint, s.Status)
		} else {
			detail := s.Status
			if s.Error != "" {
				detail = s.Error
			}
			_, _ = fmt.Fprintf(w, "%s\tdown\t%s\n", s.Endpoint, detail)
		}
	}

	_ = w.Flush()
	return string(buf)
}
