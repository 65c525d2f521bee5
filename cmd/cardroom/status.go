// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardroom/cardroom/internal/config"
)

// statusTimeout bounds each probe request.
const statusTimeout = 2 * time.Second

// ProbeStatus holds the result of one health probe.
type ProbeStatus struct {
	Probe  string `json:"probe"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running Cardroom server",
		Long:  `Query the liveness and readiness probes of a running Cardroom server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runStatus(cmd, cfg, appCfg.Metrics.Addr)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig, metricsAddr string) error {
	statuses := []ProbeStatus{
		queryProbe(metricsAddr, "liveness"),
		queryProbe(metricsAddr, "readiness"),
	}

	if cfg.jsonOutput {
		out, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROBE\tSTATUS\tERROR")
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Probe, s.Status, s.Error)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to format table: %w", err)
	}
	cmd.Print(sb.String())
	return nil
}

// queryProbe hits one health endpoint on the observability server.
func queryProbe(addr, probe string) ProbeStatus {
	status := ProbeStatus{Probe: probe, Status: "unknown"}

	client := &http.Client{Timeout: statusTimeout}
	resp, err := client.Get(fmt.Sprintf("http://%s/healthz/%s", addr, probe))
	if err != nil {
		status.Status = "unreachable"
		status.Error = err.Error()
		return status
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		status.Status = "ok"
	} else {
		status.Status = fmt.Sprintf("http %d", resp.StatusCode)
	}
	return status
}
