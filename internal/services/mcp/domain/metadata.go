package domain

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/louisbranch/escrow/internal/platform/id"
	"github.com/louisbranch/escrow/internal/platform/timeouts"
	grpcmeta "github.com/louisbranch/escrow/internal/services/escrow/api/grpc/metadata"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolCallMetadata carries correlation identifiers for one tool call.
type ToolCallMetadata struct {
	RequestID string
}

// ResourceUpdateNotifier announces that the resource at uri changed.
type ResourceUpdateNotifier func(ctx context.Context, uri string)

// Deps bundles what every handler needs.
type Deps struct {
	Client    CampaignClient
	Format    Formatter
	Notify    ResourceUpdateNotifier
	RequestID id.Generator
}

func (d Deps) newRequestID() (string, error) {
	if d.RequestID == nil {
		return id.NewID()
	}
	return d.RequestID()
}

// callContext bounds one gRPC call and attaches caller, request id and locale.
type callContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	meta   ToolCallMetadata
}

func (d Deps) newCallContext(ctx context.Context, caller ledger.AccountID) (callContext, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestID, err := d.newRequestID()
	if err != nil {
		return callContext{}, fmt.Errorf("generate request id: %w", err)
	}
	runCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
	runCtx = grpcmeta.OutgoingContext(runCtx, caller, requestID)
	runCtx = metadata.AppendToOutgoingContext(runCtx, grpcmeta.LocaleHeader, d.Format.Locale())
	return callContext{ctx: runCtx, cancel: cancel, meta: ToolCallMetadata{RequestID: requestID}}, nil
}

// MergeResponseMetadata prefers the request id the server echoed.
func MergeResponseMetadata(sent ToolCallMetadata, header metadata.MD) ToolCallMetadata {
	if requestID := grpcmeta.FirstMetadataValue(header, grpcmeta.RequestIDHeader); requestID != "" {
		return ToolCallMetadata{RequestID: requestID}
	}
	return sent
}

// CallToolResultWithMetadata builds a tool result with correlation metadata.
func CallToolResultWithMetadata(meta ToolCallMetadata) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Meta: map[string]any{
			grpcmeta.RequestIDHeader: meta.RequestID,
		},
	}
}

// NotifyResourceUpdates sends resource update notifications for each URI provided.
func NotifyResourceUpdates(ctx context.Context, notify ResourceUpdateNotifier, uris ...string) {
	if notify == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for _, uri := range uris {
		if strings.TrimSpace(uri) == "" {
			continue
		}
		notify(ctx, uri)
	}
}

// CampaignURI returns the resource URI of one campaign.
func CampaignURI(campaignID uint64) string {
	return fmt.Sprintf("campaign://%d", campaignID)
}

func requireAccount(value string) (ledger.AccountID, error) {
	account := ledger.NewAccountID(value)
	if account.IsZero() {
		return "", fmt.Errorf("account_id is required")
	}
	return account, nil
}

func parseAmountInput(field, value string) (ledger.Amount, error) {
	if strings.TrimSpace(value) == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	amount, err := ledger.ParseAmount(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	return amount, nil
}
