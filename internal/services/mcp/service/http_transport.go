package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/louisbranch/escrow/internal/platform/timeouts"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandler returns the streamable HTTP handler. Every session shares the
// same MCP server and escrow connection.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}

// ListenAndServeHTTP listens on addr and serves the streamable HTTP transport until
// ctx ends. An empty addr binds DefaultHTTPAddr.
func (s *Server) ListenAndServeHTTP(ctx context.Context, addr string) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if strings.TrimSpace(addr) == "" {
		addr = DefaultHTTPAddr
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = s.Close()
		return fmt.Errorf("listen on MCP http addr %s: %w", addr, err)
	}
	return s.serveHTTPListener(ctx, listener)
}

func (s *Server) serveHTTPListener(ctx context.Context, listener net.Listener) error {
	if ctx == nil {
		ctx = context.Background()
	}
	httpServer := &http.Server{
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()
	s.logger.Info("mcp http transport listening", zap.String("addr", listener.Addr().String()))

	var err error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Warn("mcp http shutdown", zap.Error(shutdownErr))
			_ = httpServer.Close()
		}
		<-serveErr
	case err = <-serveErr:
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close gRPC connection: %w", closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP http: %w", err)
	}
	return nil
}
