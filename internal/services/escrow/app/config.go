package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Gateway names accepted by Config.Gateway.
const (
	GatewayLocal  = "local"
	GatewayPayout = "payout"
)

// Config describes one escrow process.
type Config struct {
	// GRPCAddr is the listen address of the escrow API.
	GRPCAddr string
	// WebhookAddr is the listen address of the payout outcome webhook. It is
	// required with the payout gateway and ignored otherwise.
	WebhookAddr string
	DBPath      string

	// ReserveInFlight reserves requested withdrawals against the campaign
	// balance until their outcome arrives. Disabling it lets overlapping
	// requests jointly exceed the balance.
	ReserveInFlight bool

	Gateway string
	Local   LocalGatewayConfig
	Payout  PayoutConfig

	// StaleTransferAfter is the pending age the scan reports; zero disables
	// the scan.
	StaleTransferAfter time.Duration
	StaleScanInterval  time.Duration

	Logger *zap.Logger
}

// LocalGatewayConfig tunes the in-process gateway.
type LocalGatewayConfig struct {
	Workers int
	Delay   time.Duration
	// FailingDestinations is a comma-separated account list whose transfers
	// report failure.
	FailingDestinations string
}

// PayoutConfig connects to the external payout provider.
type PayoutConfig struct {
	BaseURL         string
	APIKey          string
	OutcomeSecret   string
	OutcomeIssuer   string
	OutcomeAudience string
}

func (c Config) validate() error {
	if strings.TrimSpace(c.GRPCAddr) == "" {
		return errors.New("grpc address is required")
	}
	switch c.Gateway {
	case GatewayLocal:
	case GatewayPayout:
		if strings.TrimSpace(c.Payout.BaseURL) == "" {
			return errors.New("payout base url is required for the payout gateway")
		}
		if strings.TrimSpace(c.WebhookAddr) == "" {
			return errors.New("webhook address is required for the payout gateway")
		}
	default:
		return fmt.Errorf("unknown transfer gateway %q", c.Gateway)
	}
	return nil
}

func (c Config) dbPath() string {
	if path := strings.TrimSpace(c.DBPath); path != "" {
		return path
	}
	return filepath.Join("data", "escrow.db")
}

func (c Config) scanInterval() time.Duration {
	if c.StaleScanInterval > 0 {
		return c.StaleScanInterval
	}
	return time.Minute
}
