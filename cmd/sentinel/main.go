package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"aidSentinel/internal/config"
	"aidSentinel/internal/model"
)

func main() {
	root := &cobra.Command{
		Use:          "sentinel",
		Short:        "Autonomous disaster-aid payout pipeline",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("mode", "MOCK", "LIVE or MOCK")
	root.PersistentFlags().String("oracle-url", "", "reasoning service endpoint")
	root.PersistentFlags().String("oracle-api-key", "", "reasoning service API key")
	root.PersistentFlags().Duration("oracle-timeout", 15*time.Second, "reasoning service request timeout")
	root.PersistentFlags().Int("max-retries", 2, "transport retry attempts")
	root.PersistentFlags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	root.PersistentFlags().String("recipients", "./data/recipients.yaml", "recipient registry YAML path")
	root.PersistentFlags().String("scenarios", "", "scenarios YAML path (built-ins when empty)")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN (in-memory ledger when empty)")
	root.PersistentFlags().String("rpc", "", "settlement chain RPC URL")
	root.PersistentFlags().String("private-key", "", "payout signing key (hex)")
	root.PersistentFlags().String("contract", "", "vault contract address")
	root.PersistentFlags().Int64("chain-id", 0, "settlement chain id")
	root.PersistentFlags().Float64("max-payout", 10000, "maximum single-transfer amount")
	root.PersistentFlags().Float64("initial-balance", 10000, "initial vault balance")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the polling loop and API server",
		RunE:  runSentinel,
	}
	runCmd.Flags().Duration("poll-interval", time.Minute, "feed poll interval")
	runCmd.Flags().StringSlice("source", []string{"gdacs", "eonet", "nws"}, "feed sources to poll")
	runCmd.Flags().Duration("feed-timeout", 20*time.Second, "per-source fetch timeout")
	runCmd.Flags().StringSlice("kafka-broker", nil, "kafka brokers for outcome publishing")
	runCmd.Flags().String("kafka-topic", "sentinel.outcomes", "kafka topic for outcome publishing")
	runCmd.Flags().String("listen", ":8080", "HTTP listen address")
	root.AddCommand(runCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate [scenario]",
		Short: "Run one canned scenario through the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulate,
	}
	root.AddCommand(simulateCmd)

	recipientsCmd := &cobra.Command{
		Use:   "recipients",
		Short: "List eligible recipients for a disaster type and location",
		RunE:  runRecipients,
	}
	recipientsCmd.Flags().String("type", "", "disaster type")
	recipientsCmd.Flags().String("lat", "", "latitude")
	recipientsCmd.Flags().String("lon", "", "longitude")
	root.AddCommand(recipientsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSentinel(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	// Resolve transfers left in flight by a previous crash before
	// accepting new work.
	if err := app.Coordinator.ReconcileInflight(ctx); err != nil {
		return fmt.Errorf("reconcile inflight transfers: %w", err)
	}

	logger.Info("sentinel start",
		zap.String("mode", cfg.Mode),
		zap.Strings("sources", cfg.Sources),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Float64("max_payout", cfg.MaxPayout),
		zap.Float64("initial_balance", cfg.InitialBalance),
		zap.String("listen", cfg.ListenAddr),
	)

	if app.Poller != nil {
		go app.Poller.Run(ctx)
	}

	server := app.NewServer(logger)
	return server.Run(ctx, cfg.ListenAddr)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	// Simulation never touches the real settlement chain or oracle.
	cfg.Mode = "MOCK"

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Coordinator.Simulate(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runRecipients(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	cfg.Mode = "MOCK"

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	dt, _ := cmd.Flags().GetString("type")
	latStr, _ := cmd.Flags().GetString("lat")
	lonStr, _ := cmd.Flags().GetString("lon")

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return fmt.Errorf("parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return fmt.Errorf("parse lon: %w", err)
	}
	if !model.ValidCoordinates(lat, lon) {
		return fmt.Errorf("coordinates out of range: %.4f,%.4f", lat, lon)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	candidates := app.Coordinator.ListEligibleRecipients(model.BucketDisasterType(dt), lat, lon)
	return printJSON(candidates)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
