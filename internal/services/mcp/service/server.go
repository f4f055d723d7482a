// Package service hosts the MCP bridge in front of the escrow gRPC API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	platformgrpc "github.com/louisbranch/escrow/internal/platform/grpc"
	"github.com/louisbranch/escrow/internal/platform/timeouts"
	escrowservice "github.com/louisbranch/escrow/internal/services/escrow/api/grpc/escrow"
	"github.com/louisbranch/escrow/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "escrow MCP"
	serverVersion = "0.1.0"
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves the streamable HTTP transport.
	TransportHTTP TransportKind = "http"
)

// DefaultHTTPAddr keeps the HTTP transport on loopback unless configured.
const DefaultHTTPAddr = "localhost:8092"

// Config configures the MCP server.
type Config struct {
	// GRPCAddr is the escrow API address.
	GRPCAddr  string
	Transport TransportKind
	HTTPAddr  string
	// Locale selects amount formatting and error message language.
	Locale string
	Logger *zap.Logger
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	conn      *grpc.ClientConn
	logger    *zap.Logger
}

// New dials the escrow API, waits for it to report healthy, and registers
// the campaign tools and resources.
func New(ctx context.Context, cfg Config) (*Server, error) {
	addr := strings.TrimSpace(cfg.GRPCAddr)
	if addr == "" {
		return nil, errors.New("escrow address is required")
	}
	logger := loggerOrNop(cfg.Logger)

	logf := func(format string, args ...any) {
		logger.Debug(fmt.Sprintf("escrow "+format, args...))
	}
	conn, err := platformgrpc.DialWithHealth(ctx, addr, timeouts.GRPCDial, logf)
	if err != nil {
		var dialErr *platformgrpc.DialError
		if errors.As(err, &dialErr) && dialErr.Stage == platformgrpc.DialStageConnect {
			return nil, fmt.Errorf("connect to escrow server at %s: %w", addr, dialErr.Err)
		}
		return nil, fmt.Errorf("escrow server at %s is not healthy: %w", addr, err)
	}

	server := newServer(escrowservice.NewClient(conn), cfg.Locale, logger)
	server.conn = conn
	return server, nil
}

// newServer binds tool and resource handlers to client.
func newServer(client domain.CampaignClient, locale string, logger *zap.Logger) *Server {
	logger = loggerOrNop(logger)
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		SubscribeHandler:   resourceSubscribeHandler,
		UnsubscribeHandler: resourceUnsubscribeHandler,
	})

	notify := func(ctx context.Context, uri string) {
		if err := mcpServer.ResourceUpdated(ctx, &mcp.ResourceUpdatedNotificationParams{URI: uri}); err != nil {
			logger.Warn("mcp resource updated notify failed", zap.String("uri", uri), zap.Error(err))
		}
	}

	deps := domain.Deps{
		Client: client,
		Format: domain.NewFormatter(locale),
		Notify: notify,
	}
	registerCampaignTools(mcpServer, deps)
	registerCampaignResources(mcpServer, deps)

	return &Server{mcpServer: mcpServer, logger: logger}
}

func resourceSubscribeHandler(_ context.Context, req *mcp.SubscribeRequest) error {
	if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
		return fmt.Errorf("resource uri is required")
	}
	return nil
}

func resourceUnsubscribeHandler(_ context.Context, req *mcp.UnsubscribeRequest) error {
	if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
		return fmt.Errorf("resource uri is required")
	}
	return nil
}

// Run dials the escrow API and serves MCP on the configured transport until
// ctx ends.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	switch cfg.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}

	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.Transport == TransportHTTP {
		return server.ListenAndServeHTTP(ctx, cfg.HTTPAddr)
	}
	return server.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close releases the gRPC connection held by the server.
func (s *Server) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// serveWithTransport runs one MCP session on transport. The gRPC connection
// is closed on every exit path.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if closeErr := s.Close(); closeErr != nil {
		if err == nil {
			return fmt.Errorf("close gRPC connection: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close gRPC connection: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
