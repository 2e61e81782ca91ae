// This file implements the check command, a one-shot reachability scan
// from the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/portscope/portscope/internal/metrics"
	"github.com/portscope/portscope/internal/ports"
	"github.com/portscope/portscope/internal/probe"
	"github.com/portscope/portscope/internal/ratelimit"
	"github.com/portscope/portscope/internal/scan"
)

// Check command flags.
var (
	checkPorts       string
	checkTimeout     time.Duration
	checkConcurrency int
	checkDNSServer   string
	checkJSON        bool
)

// checkClientID is the rate limiter identity used for CLI scans. A
// fresh limiter is built per invocation, so it always admits; the
// identity exists to keep the pipeline uniform with the API path.
const checkClientID = "cli"

var checkCmd = &cobra.Command{
	Use:   "check TARGET",
	Short: "Check TCP port reachability for a public host",
	Long: `Check which of the allowed TCP ports are reachable on a target.

The target must be a public hostname or IP address. Private, loopback,
and reserved addresses are rejected, as are ports outside the fixed
allow-list. Without --ports, the full allow-list is checked.`,
	Example: `  portscope check example.com
  portscope check example.com --ports 80,443
  portscope check 93.184.216.34 --timeout 2s --json`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkPorts, "ports", "",
		fmt.Sprintf("comma-separated ports to check (allowed: %s)", joinPorts(ports.Allowed)))
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", probe.DefaultTimeout, "per-port probe timeout (minimum 1s)")
	checkCmd.Flags().IntVar(&checkConcurrency, "concurrency", 0, "maximum concurrent probes (0 means one per port)")
	checkCmd.Flags().StringVar(&checkDNSServer, "dns-server", "", "explicit DNS server (host:port)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "emit the result as JSON")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg.Scan.ProbeTimeout = checkTimeout
	if checkConcurrency > 0 {
		cfg.Scan.Concurrency = checkConcurrency
	}
	if checkDNSServer != "" {
		cfg.Scan.DNSServer = checkDNSServer
	}

	requested := ports.Allowed
	if checkPorts != "" {
		requested, err = parsePortList(checkPorts)
		if err != nil {
			return err
		}
	}

	limiter := ratelimit.New(cfg.RateLimit.Window)
	coordinator := buildCoordinator(cfg, limiter, metrics.New())

	result, err := coordinator.Scan(cmd.Context(), checkClientID, args[0], requested)
	if err != nil {
		return err
	}

	if checkJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	displayResult(result)
	return nil
}

// parsePortList parses a comma-separated port list. Allow-list
// membership is enforced by the scan pipeline, not here.
func parsePortList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", part, err)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no ports given")
	}
	return out, nil
}

func joinPorts(list []int) string {
	parts := make([]string, len(list))
	for i, p := range list {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

// displayResult renders a scan result as a table.
func displayResult(result *scan.Result) {
	fmt.Printf("Target:  %s (%s)\n", result.Target, result.IP)
	fmt.Printf("Scan ID: %s\n", result.ScanID)
	fmt.Printf("Time:    %s\n\n", result.Timestamp.Format(time.RFC3339))

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Port", "Status", "Latency")

	for i := range result.Results {
		r := &result.Results[i]

		latency := "-"
		if r.LatencyMS != nil {
			latency = fmt.Sprintf("%dms", *r.LatencyMS)
		}

		_ = table.Append([]string{
			strconv.Itoa(r.Port),
			string(r.Status),
			latency,
		})
	}

	_ = table.Render()
}
