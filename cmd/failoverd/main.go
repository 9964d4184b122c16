// Command failoverd runs the resilience layer as an HTTP service: a
// generate endpoint with provider failover, health and metrics endpoints,
// and an admin probe surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nimbus-labs/llmfailover"
	"github.com/nimbus-labs/llmfailover/internal/logging"
	"github.com/nimbus-labs/llmfailover/internal/version"
)

func main() {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "failoverd",
		Short:         "Resilient LLM gateway with failover, circuit breakers, and a deterministic fallback",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	var addr string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logging.Setup(cfg.Server.LogLevel, cfg.Server.LogFormat)
			return runServe(cmd.Context(), cfg)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (.yaml or .json)")
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Issue one live test call per provider and print the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logging.Setup("warn", "text")
			return runProbe(cmd.Context(), cfg)
		},
	}
	probeCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (.yaml or .json)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(*cobra.Command, []string) {
			fmt.Println(version.String())
		},
	}

	root.AddCommand(serveCmd, probeCmd, versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file when given, otherwise derives a config
// from the environment variables that are set.
func loadConfig(path string) (llmfailover.Config, error) {
	if path == "" {
		return defaultEnvConfig(), nil
	}
	cfg, err := llmfailover.LoadConfig(path)
	if err != nil {
		return llmfailover.Config{}, err
	}
	if err := llmfailover.ValidateConfig(*cfg); err != nil {
		return llmfailover.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return *cfg, nil
}

func runProbe(ctx context.Context, cfg llmfailover.Config) error {
	orch, journal, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeJournal(journal)

	results := orch.ProbeAll(ctx)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}
	for _, res := range results {
		if !res.OK {
			return fmt.Errorf("%d of %d probes failed", countFailed(results), len(results))
		}
	}
	return nil
}

func countFailed(results []llmfailover.ProbeResult) int {
	n := 0
	for _, res := range results {
		if !res.OK {
			n++
		}
	}
	return n
}
