package domain

import (
	"context"

	"google.golang.org/grpc"

	escrowservice "github.com/louisbranch/escrow/internal/services/escrow/api/grpc/escrow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CampaignClient is the subset of the escrow API the MCP tools call.
type CampaignClient interface {
	CreateCampaign(ctx context.Context, in *escrowservice.CreateCampaignRequest, opts ...grpc.CallOption) (*escrowservice.CreateCampaignResponse, error)
	GetCampaign(ctx context.Context, in *escrowservice.CampaignRequest, opts ...grpc.CallOption) (*escrowservice.CampaignResponse, error)
	ListCampaigns(ctx context.Context, in *escrowservice.ListCampaignsRequest, opts ...grpc.CallOption) (*escrowservice.ListCampaignsResponse, error)
	Contribute(ctx context.Context, in *escrowservice.ContributeRequest, opts ...grpc.CallOption) (*escrowservice.CampaignResponse, error)
	FinalizeCampaign(ctx context.Context, in *escrowservice.CampaignRequest, opts ...grpc.CallOption) (*escrowservice.CampaignResponse, error)
	RequestWithdrawal(ctx context.Context, in *escrowservice.RequestWithdrawalRequest, opts ...grpc.CallOption) (*escrowservice.WithdrawalResponse, error)
	GetExcessFunds(ctx context.Context, in *escrowservice.CampaignRequest, opts ...grpc.CallOption) (*escrowservice.ExcessFundsResponse, error)
	Refund(ctx context.Context, in *escrowservice.CampaignRequest, opts ...grpc.CallOption) (*escrowservice.RefundResponse, error)
	SetImageURL(ctx context.Context, in *escrowservice.SetImageURLRequest, opts ...grpc.CallOption) (*escrowservice.CampaignResponse, error)
}

// CampaignCreateInput represents the MCP tool input for campaign creation.
type CampaignCreateInput struct {
	AccountID       string `json:"account_id" jsonschema:"account that will own the campaign"`
	Name            string `json:"name" jsonschema:"campaign name"`
	FundingGoal     string `json:"funding_goal" jsonschema:"funding goal in minor units, as a decimal string"`
	DurationSeconds int64  `json:"duration_seconds" jsonschema:"seconds from now until the campaign deadline"`
}

// CampaignContributeInput represents the MCP tool input for a contribution.
type CampaignContributeInput struct {
	AccountID  string `json:"account_id" jsonschema:"contributing account"`
	CampaignID uint64 `json:"campaign_id" jsonschema:"campaign identifier"`
	Amount     string `json:"amount" jsonschema:"attached amount in minor units, as a decimal string"`
}

// CampaignActionInput represents tool input that only names a campaign and caller.
type CampaignActionInput struct {
	AccountID  string `json:"account_id" jsonschema:"calling account"`
	CampaignID uint64 `json:"campaign_id" jsonschema:"campaign identifier"`
}

// CampaignWithdrawInput represents the MCP tool input for an owner withdrawal.
type CampaignWithdrawInput struct {
	AccountID  string `json:"account_id" jsonschema:"campaign owner account"`
	CampaignID uint64 `json:"campaign_id" jsonschema:"campaign identifier"`
	Amount     string `json:"amount,omitempty" jsonschema:"amount to withdraw; all available funds when omitted"`
}

// CampaignSetImageInput represents the MCP tool input for setting the campaign image.
type CampaignSetImageInput struct {
	AccountID  string `json:"account_id" jsonschema:"campaign owner account"`
	CampaignID uint64 `json:"campaign_id" jsonschema:"campaign identifier"`
	ImageURL   string `json:"image_url" jsonschema:"image URL; empty clears it"`
}

// CampaignExcessFundsInput represents the MCP tool input for the excess query.
type CampaignExcessFundsInput struct {
	CampaignID uint64 `json:"campaign_id" jsonschema:"campaign identifier"`
}

// CampaignResult represents a campaign as returned by tools and resources.
type CampaignResult struct {
	ID            uint64 `json:"campaign_id" jsonschema:"campaign identifier"`
	Name          string `json:"name" jsonschema:"campaign name"`
	Owner         string `json:"owner" jsonschema:"owning account"`
	ImageURL      string `json:"image_url,omitempty" jsonschema:"campaign image URL"`
	FundingGoal   string `json:"funding_goal" jsonschema:"funding goal in minor units"`
	TotalFunds    string `json:"total_funds" jsonschema:"funds currently held"`
	ReservedFunds string `json:"reserved_funds" jsonschema:"funds reserved by in-flight withdrawals"`
	Contributors  int    `json:"contributors" jsonschema:"number of distinct contributors"`
	Status        string `json:"status" jsonschema:"campaign status (active, completed)"`
	Deadline      string `json:"deadline" jsonschema:"RFC3339 deadline"`
	CreatedAt     string `json:"created_at" jsonschema:"RFC3339 timestamp when the campaign was created"`
	Summary       string `json:"summary" jsonschema:"human readable funding progress"`
}

// WithdrawalResult represents the MCP tool output for a withdrawal request.
type WithdrawalResult struct {
	ID            string `json:"withdrawal_id" jsonschema:"withdrawal identifier"`
	CampaignID    uint64 `json:"campaign_id" jsonschema:"campaign identifier"`
	Amount        string `json:"amount" jsonschema:"requested amount in minor units"`
	Reserved      bool   `json:"reserved" jsonschema:"whether funds are held until the outcome"`
	Status        string `json:"status" jsonschema:"withdrawal status (pending, settled, failed)"`
	FailureReason string `json:"failure_reason,omitempty" jsonschema:"transfer failure reason"`
	Summary       string `json:"summary" jsonschema:"human readable description"`
}

// RefundResult represents the MCP tool output for a refund.
type RefundResult struct {
	ID         string `json:"refund_id" jsonschema:"refund identifier"`
	CampaignID uint64 `json:"campaign_id" jsonschema:"campaign identifier"`
	Account    string `json:"account" jsonschema:"refunded account"`
	Amount     string `json:"amount" jsonschema:"refunded amount in minor units"`
	Status     string `json:"status" jsonschema:"refund transfer status"`
	Summary    string `json:"summary" jsonschema:"human readable description"`
}

// ExcessFundsResult represents the MCP tool output for the excess query.
type ExcessFundsResult struct {
	CampaignID  uint64 `json:"campaign_id" jsonschema:"campaign identifier"`
	ExcessFunds string `json:"excess_funds" jsonschema:"funds above the goal in minor units"`
	Summary     string `json:"summary" jsonschema:"human readable description"`
}

// CampaignListPayload represents the MCP resource payload for campaign listings.
type CampaignListPayload struct {
	Campaigns []CampaignResult `json:"campaigns"`
}

// CampaignPayload represents the MCP resource payload for a single campaign.
type CampaignPayload struct {
	Campaign CampaignResult `json:"campaign"`
}

// CampaignCreateTool defines the MCP tool schema for creating campaigns.
func CampaignCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "campaign_create",
		Description: "Creates a crowdfunding campaign owned by account_id",
	}
}

// CampaignContributeTool defines the MCP tool schema for contributions.
func CampaignContributeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "campaign_contribute",
		Description: "Contributes an amount to an active campaign before its deadline",
	}
}

// CampaignFinalizeTool defines the MCP tool schema for finalizing campaigns.
func CampaignFinalizeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "campaign_finalize",
		Description: "Marks a campaign completed once its goal is met or its deadline passed",
	}
}

// CampaignWithdrawTool defines the MCP tool schema for owner withdrawals.
func CampaignWithdrawTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "campaign_withdraw",
		Description: "Requests a withdrawal of raised funds to the campaign owner",
	}
}

// CampaignRefundTool defines the MCP tool schema for contributor refunds.
func CampaignRefundTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "campaign_refund",
		Description: "Refunds the caller's contribution to a completed campaign that missed its goal",
	}
}

// CampaignSetImageTool defines the MCP tool schema for the campaign image.
func CampaignSetImageTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "campaign_set_image",
		Description: "Sets the campaign image URL",
	}
}

// CampaignExcessFundsTool defines the MCP tool schema for the excess query.
func CampaignExcessFundsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "campaign_excess_funds",
		Description: "Reports funds raised above the campaign goal",
	}
}

// CampaignListResource defines the MCP resource for campaign listings.
func CampaignListResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "campaign_list",
		Title:       "Campaigns",
		Description: "Readable listing of every campaign",
		MIMEType:    "application/json",
		URI:         "campaigns://list",
	}
}

// CampaignResourceTemplate defines the MCP resource template for one campaign.
func CampaignResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "campaign",
		Title:       "Campaign",
		Description: "Readable campaign record including contributions. URI format: campaign://{campaign_id}",
		MIMEType:    "application/json",
		URITemplate: "campaign://{campaign_id}",
	}
}
