// Package app composes and runs the escrow process boundary.
//
// One process hosts the campaign gRPC API and, with the payout gateway, the
// HTTP webhook that receives transfer outcomes. Both share one SQLite store,
// so every funds decision is made from a single source of truth.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/escrow/internal/platform/timeouts"
	escrowservice "github.com/louisbranch/escrow/internal/services/escrow/api/grpc/escrow"
	"github.com/louisbranch/escrow/internal/services/escrow/api/grpc/metadata"
	"github.com/louisbranch/escrow/internal/services/escrow/api/webhook"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/withdrawal"
	"github.com/louisbranch/escrow/internal/services/escrow/jobs"
	"github.com/louisbranch/escrow/internal/services/escrow/registry"
	"github.com/louisbranch/escrow/internal/services/escrow/settlement"
	escrowsqlite "github.com/louisbranch/escrow/internal/services/escrow/storage/sqlite"
	"github.com/louisbranch/escrow/internal/services/escrow/transfer"
	"github.com/louisbranch/escrow/internal/services/escrow/transfer/local"
	"github.com/louisbranch/escrow/internal/services/escrow/transfer/payout"
)

// Server hosts the escrow service.
type Server struct {
	listener     net.Listener
	grpcServer   *grpc.Server
	health       *health.Server
	httpListener net.Listener
	httpServer   *http.Server
	store        *escrowsqlite.Store
	local        *local.Gateway
	scheduler    *jobs.Scheduler
	logger       *zap.Logger
}

// New opens the store, builds the transfer gateway, and binds listeners.
func New(cfg Config) (_ *Server, err error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{logger: logger}
	defer func() {
		if err != nil {
			s.close(context.Background())
		}
	}()

	s.store, err = openStore(cfg.dbPath())
	if err != nil {
		return nil, err
	}

	var gateway transfer.Gateway
	switch cfg.Gateway {
	case GatewayLocal:
		s.local, err = local.New(
			local.WithWorkers(cfg.Local.Workers),
			local.WithDelay(cfg.Local.Delay),
			local.WithFailingDestinations(local.ParseDestinations(cfg.Local.FailingDestinations)...),
			local.WithLogger(logger.Named("transfer")),
		)
		if err != nil {
			return nil, err
		}
		gateway = s.local
	case GatewayPayout:
		gateway, err = payout.NewClient(cfg.Payout.BaseURL,
			payout.WithAPIKey(cfg.Payout.APIKey),
			payout.WithLogger(logger.Named("payout")),
		)
		if err != nil {
			return nil, err
		}
	}

	coordinator := settlement.New(s.store, gateway,
		settlement.WithPolicy(withdrawal.Policy{ReserveInFlight: cfg.ReserveInFlight}),
		settlement.WithLogger(logger.Named("settlement")),
	)
	if s.local != nil {
		s.local.Bind(coordinator)
	}
	reg := registry.New(s.store, coordinator, registry.WithLogger(logger.Named("registry")))

	if cfg.Gateway == GatewayPayout {
		verifier, err := payout.NewVerifier(payout.OutcomeConfig{
			Secret:   []byte(cfg.Payout.OutcomeSecret),
			Issuer:   cfg.Payout.OutcomeIssuer,
			Audience: cfg.Payout.OutcomeAudience,
		})
		if err != nil {
			return nil, fmt.Errorf("configure outcome verifier: %w", err)
		}
		s.httpListener, err = net.Listen("tcp", cfg.WebhookAddr)
		if err != nil {
			return nil, fmt.Errorf("listen on webhook addr %s: %w", cfg.WebhookAddr, err)
		}
		s.httpServer = &http.Server{
			Handler:           webhook.NewHandler(verifier, coordinator, logger.Named("webhook")),
			ReadHeaderTimeout: timeouts.ReadHeader,
		}
	}

	if cfg.StaleTransferAfter > 0 {
		s.scheduler, err = jobs.NewScheduler(logger.Named("jobs"))
		if err != nil {
			return nil, err
		}
		scan := jobs.NewStaleTransferScan(s.store, cfg.StaleTransferAfter, jobs.WithLogger(logger.Named("jobs")))
		if err := s.scheduler.AddStaleTransferScan(scan, cfg.scanInterval()); err != nil {
			return nil, err
		}
	}

	s.listener, err = net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on grpc addr %s: %w", cfg.GRPCAddr, err)
	}
	s.grpcServer = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(metadata.UnaryServerInterceptor(nil, logger.Named("grpc"))),
	)
	escrowservice.Register(s.grpcServer, escrowservice.NewService(reg))
	s.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(escrowservice.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	logger.Info("escrow configured",
		zap.String("gateway", cfg.Gateway),
		zap.Bool("reserve_in_flight", coordinator.Policy().ReserveInFlight),
		zap.String("db_path", cfg.dbPath()),
	)
	return s, nil
}

// Addr returns the gRPC listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// WebhookAddr returns the webhook listener address, or "" without one.
func (s *Server) WebhookAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Run creates and serves an escrow server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs every listener and blocks until ctx ends or one of them fails.
// Resources are released before Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	group, groupCtx := errgroup.WithContext(ctx)

	if s.scheduler != nil {
		s.scheduler.Start()
	}

	s.logger.Info("escrow gRPC server listening", zap.String("addr", s.Addr()))
	group.Go(func() error {
		if err := s.grpcServer.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})
	if s.httpServer != nil {
		s.logger.Info("escrow webhook listening", zap.String("addr", s.WebhookAddr()))
		group.Go(func() error {
			if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve webhook: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		s.shutdownListeners()
		return nil
	})

	err := group.Wait()
	closeCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	s.close(closeCtx)
	return err
}

func (s *Server) shutdownListeners() {
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("webhook shutdown", zap.Error(err))
		}
	}
	if s.grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(timeouts.Shutdown):
			s.grpcServer.Stop()
		}
	}
}

// close releases the scheduler, gateway workers, and store, in that order.
// Transfers still delayed inside the local gateway stay pending.
func (s *Server) close(ctx context.Context) {
	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			s.logger.Warn("close scheduler", zap.Error(err))
		}
	}
	if s.local != nil {
		if err := s.local.Close(ctx); err != nil {
			s.logger.Warn("close local gateway", zap.Error(err))
		}
	}
	// Listeners are already closed after Serve; this covers a failed New.
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close escrow store", zap.Error(err))
		}
	}
}

func openStore(path string) (*escrowsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := escrowsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open escrow sqlite store: %w", err)
	}
	return store, nil
}
