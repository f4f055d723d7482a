// Package metadata defines the escrow request headers and the interceptor
// that guarantees every call carries a correlation id.
//
// The caller account travels in AccountIDHeader. The identity provider in
// front of the service is trusted to set it; the escrow API never
// authenticates accounts itself.
package metadata

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/louisbranch/escrow/internal/platform/id"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
)

// AccountIDHeader is the gRPC metadata key naming the calling account.
const AccountIDHeader = "x-escrow-account-id"

// RequestIDHeader is the gRPC metadata key for request correlation IDs.
const RequestIDHeader = "x-escrow-request-id"

// LocaleHeader selects the language of error messages.
const LocaleHeader = "accept-language"

type contextKey string

const requestIDContextKey contextKey = "escrow-request-id"

// RequestIDFromContext returns the request ID stored in context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey).(string)
	return value
}

// WithRequestID stores the request ID in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// CallerFromContext returns the calling account from incoming metadata. The
// zero AccountID means the caller did not identify itself.
func CallerFromContext(ctx context.Context) ledger.AccountID {
	return ledger.NewAccountID(valueFromIncomingContext(ctx, AccountIDHeader))
}

// LocaleFromContext returns the requested message locale, if any.
func LocaleFromContext(ctx context.Context) string {
	value := valueFromIncomingContext(ctx, LocaleHeader)
	if i := strings.IndexByte(value, ','); i >= 0 {
		value = value[:i]
	}
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = value[:i]
	}
	return strings.TrimSpace(value)
}

// OutgoingContext returns ctx with the caller account and request id appended
// to outgoing metadata. Empty values are skipped.
func OutgoingContext(ctx context.Context, caller ledger.AccountID, requestID string) context.Context {
	var pairs []string
	if !caller.IsZero() {
		pairs = append(pairs, AccountIDHeader, caller.String())
	}
	if requestID != "" {
		pairs = append(pairs, RequestIDHeader, requestID)
	}
	if len(pairs) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

// IsPrintableASCII reports whether a string contains only printable ASCII characters.
func IsPrintableASCII(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}

// FirstMetadataValue returns the first printable ASCII metadata value for a key.
func FirstMetadataValue(md metadata.MD, key string) string {
	if len(md) == 0 {
		return ""
	}
	for mdKey, values := range md {
		if !strings.EqualFold(mdKey, key) {
			continue
		}
		for _, value := range values {
			if IsPrintableASCII(value) {
				return value
			}
		}
	}
	return ""
}

// UnaryServerInterceptor assigns a request id to calls that arrive without
// one, echoes it in the response header, and logs each failed call.
func UnaryServerInterceptor(idGenerator id.Generator, logger *zap.Logger) grpc.UnaryServerInterceptor {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := valueFromIncomingContext(ctx, RequestIDHeader)
		if requestID == "" {
			generated, err := idGenerator()
			if err != nil {
				return nil, status.Errorf(codes.Internal, "ensure request metadata: %v", err)
			}
			requestID = generated
		}
		ctx = WithRequestID(ctx, requestID)
		if err := grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID)); err != nil {
			return nil, status.Errorf(codes.Internal, "set response metadata: %v", err)
		}

		resp, err := handler(ctx, req)
		if err != nil {
			code := status.Code(err)
			fields := []zap.Field{
				zap.String("method", info.FullMethod),
				zap.String("request_id", requestID),
				zap.String("code", code.String()),
				zap.Error(err),
			}
			if code == codes.Internal || code == codes.Unknown {
				logger.Error("escrow call failed", fields...)
			} else {
				logger.Debug("escrow call rejected", fields...)
			}
		}
		return resp, err
	}
}

func valueFromIncomingContext(ctx context.Context, header string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	return FirstMetadataValue(md, header)
}
