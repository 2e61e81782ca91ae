// This file implements the serve command, which runs the portscope API
// server until interrupted.
package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/portscope/portscope/internal/api"
	"github.com/portscope/portscope/internal/config"
	"github.com/portscope/portscope/internal/logging"
	"github.com/portscope/portscope/internal/metrics"
	"github.com/portscope/portscope/internal/probe"
	"github.com/portscope/portscope/internal/ratelimit"
	"github.com/portscope/portscope/internal/scan"
	"github.com/portscope/portscope/internal/target"
)

// Serve command flags.
var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the portscope API server",
	Long: `Run the portscope API server in the foreground.

The server exposes the scan endpoint, health and version endpoints, and
Prometheus metrics. It shuts down gracefully on SIGINT or SIGTERM.`,
	Example: `  portscope serve
  portscope serve --host 0.0.0.0 --port 9090
  portscope serve --config /etc/portscope/config.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen address (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if serveHost != "" {
		cfg.API.Host = serveHost
	}
	if servePort != 0 {
		cfg.API.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.Default().WithComponent("serve")
	m := metrics.New()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := ratelimit.NewWithEviction(cfg.RateLimit.Window, cfg.RateLimit.EvictAfter)
	go limiter.Start(ctx)

	coordinator := buildCoordinator(cfg, limiter, m)

	server := api.New(cfg, coordinator, m)

	logger.Info("portscope starting",
		"version", version,
		"address", server.Address(),
		"rate_limit_window", cfg.RateLimit.Window,
		"probe_timeout", cfg.Scan.ProbeTimeout)

	if err := server.Start(ctx); err != nil {
		logger.Error("Server exited with error", "error", err)
		return err
	}

	logger.Info("portscope stopped")
	return nil
}

// buildCoordinator assembles the scan pipeline from configuration.
func buildCoordinator(cfg *config.Config, limiter *ratelimit.Limiter, m *metrics.Metrics) *scan.Coordinator {
	resolver := target.NewResolver(
		target.WithDNSServer(cfg.Scan.DNSServer),
		target.WithTimeout(cfg.Scan.ResolveTimeout),
	)

	engineOpts := []probe.Option{
		probe.WithTimeout(cfg.Scan.ProbeTimeout),
		probe.WithConcurrency(cfg.Scan.Concurrency),
	}
	if m != nil {
		engineOpts = append(engineOpts, probe.WithObserver(func(status probe.Status, duration time.Duration) {
			m.RecordProbe(string(status), duration)
		}))
	}
	engine := probe.NewEngine(engineOpts...)

	opts := []scan.Option{scan.WithLogger(logging.Default())}
	if m != nil {
		opts = append(opts, scan.WithMetrics(m))
	}
	return scan.NewCoordinator(limiter, resolver, engine, opts...)
}
