// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"

	"go.uber.org/zap"

	entrypoint "github.com/louisbranch/escrow/internal/platform/cmd"
	"github.com/louisbranch/escrow/internal/platform/logging"
	mcpservice "github.com/louisbranch/escrow/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	Addr      string `env:"ESCROW_ADDR"               envDefault:"localhost:8090"`
	HTTPAddr  string `env:"ESCROW_MCP_HTTP_ADDR"      envDefault:"localhost:8092"`
	Transport string `env:"ESCROW_MCP_TRANSPORT"      envDefault:"stdio"`
	Locale    string `env:"ESCROW_MCP_LOCALE"         envDefault:"en-US"`
	LogLevel  string `env:"ESCROW_MCP_LOG_LEVEL"      envDefault:"info"`
	LogFile   string `env:"ESCROW_MCP_LOG_FILE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "escrow server address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Locale for amounts and error messages")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(entrypoint.ServiceMCP, logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceMCP, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		return mcpservice.Run(ctx, cfg.serviceConfig(logger))
	})
}

func (cfg Config) serviceConfig(logger *zap.Logger) mcpservice.Config {
	return mcpservice.Config{
		GRPCAddr:  cfg.Addr,
		Transport: mcpservice.TransportKind(cfg.Transport),
		HTTPAddr:  cfg.HTTPAddr,
		Locale:    cfg.Locale,
		Logger:    logger,
	}
}
