// Package escrow parses escrow command flags and starts the escrow service.
package escrow

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	entrypoint "github.com/louisbranch/escrow/internal/platform/cmd"
	"github.com/louisbranch/escrow/internal/platform/logging"
	server "github.com/louisbranch/escrow/internal/services/escrow/app"
)

// Config holds escrow command configuration.
type Config struct {
	GRPCAddr        string `env:"ESCROW_GRPC_ADDR"          envDefault:"localhost:8090"`
	WebhookAddr     string `env:"ESCROW_WEBHOOK_ADDR"       envDefault:"localhost:8091"`
	DBPath          string `env:"ESCROW_DB_PATH"            envDefault:"data/escrow.db"`
	ReserveInFlight bool   `env:"ESCROW_RESERVE_IN_FLIGHT"  envDefault:"true"`
	Gateway         string `env:"ESCROW_TRANSFER_GATEWAY"   envDefault:"local"`

	LocalWorkers             int           `env:"ESCROW_LOCAL_WORKERS"              envDefault:"8"`
	LocalDelay               time.Duration `env:"ESCROW_LOCAL_DELAY"                envDefault:"0s"`
	LocalFailingDestinations string        `env:"ESCROW_LOCAL_FAILING_DESTINATIONS"`

	PayoutURL             string `env:"ESCROW_PAYOUT_URL"`
	PayoutAPIKey          string `env:"ESCROW_PAYOUT_API_KEY"`
	PayoutOutcomeSecret   string `env:"ESCROW_PAYOUT_OUTCOME_SECRET"`
	PayoutOutcomeIssuer   string `env:"ESCROW_PAYOUT_OUTCOME_ISSUER"   envDefault:"payout"`
	PayoutOutcomeAudience string `env:"ESCROW_PAYOUT_OUTCOME_AUDIENCE" envDefault:"escrow"`

	StaleTransferAfter time.Duration `env:"ESCROW_STALE_TRANSFER_AFTER" envDefault:"15m"`
	StaleScanInterval  time.Duration `env:"ESCROW_STALE_SCAN_INTERVAL"  envDefault:"1m"`

	LogLevel string `env:"ESCROW_LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"ESCROW_LOG_FILE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.GRPCAddr, "addr", cfg.GRPCAddr, "The escrow gRPC listen address")
	fs.StringVar(&cfg.WebhookAddr, "webhook-addr", cfg.WebhookAddr, "The payout webhook listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the escrow SQLite database")
	fs.StringVar(&cfg.Gateway, "gateway", cfg.Gateway, "Transfer gateway: local or payout")
	fs.BoolVar(&cfg.ReserveInFlight, "reserve-in-flight", cfg.ReserveInFlight, "Reserve requested withdrawals until their outcome arrives")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the escrow service.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(entrypoint.ServiceEscrow, logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceEscrow, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		return server.Run(ctx, cfg.serverConfig(logger))
	})
}

func (cfg Config) serverConfig(logger *zap.Logger) server.Config {
	return server.Config{
		GRPCAddr:        cfg.GRPCAddr,
		WebhookAddr:     cfg.WebhookAddr,
		DBPath:          cfg.DBPath,
		ReserveInFlight: cfg.ReserveInFlight,
		Gateway:         cfg.Gateway,
		Local: server.LocalGatewayConfig{
			Workers:             cfg.LocalWorkers,
			Delay:               cfg.LocalDelay,
			FailingDestinations: cfg.LocalFailingDestinations,
		},
		Payout: server.PayoutConfig{
			BaseURL:         cfg.PayoutURL,
			APIKey:          cfg.PayoutAPIKey,
			OutcomeSecret:   cfg.PayoutOutcomeSecret,
			OutcomeIssuer:   cfg.PayoutOutcomeIssuer,
			OutcomeAudience: cfg.PayoutOutcomeAudience,
		},
		StaleTransferAfter: cfg.StaleTransferAfter,
		StaleScanInterval:  cfg.StaleScanInterval,
		Logger:             logger,
	}
}
