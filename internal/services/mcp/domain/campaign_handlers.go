package domain

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	escrowservice "github.com/louisbranch/escrow/internal/services/escrow/api/grpc/escrow"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CampaignCreateHandler creates a campaign and returns its first snapshot.
func CampaignCreateHandler(deps Deps) mcp.ToolHandlerFor[CampaignCreateInput, CampaignResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CampaignCreateInput) (*mcp.CallToolResult, CampaignResult, error) {
		owner, err := requireAccount(input.AccountID)
		if err != nil {
			return nil, CampaignResult{}, err
		}
		goal, err := parseAmountInput("funding_goal", input.FundingGoal)
		if err != nil {
			return nil, CampaignResult{}, err
		}

		call, err := deps.newCallContext(ctx, owner)
		if err != nil {
			return nil, CampaignResult{}, err
		}
		defer call.cancel()

		var header metadata.MD
		created, err := deps.Client.CreateCampaign(call.ctx, &escrowservice.CreateCampaignRequest{
			Name:            strings.TrimSpace(input.Name),
			FundingGoal:     goal,
			DurationSeconds: input.DurationSeconds,
		}, grpc.Header(&header))
		if err != nil {
			return nil, CampaignResult{}, fmt.Errorf("campaign create failed: %w", err)
		}
		if created == nil {
			return nil, CampaignResult{}, fmt.Errorf("campaign create response is missing")
		}

		response, err := deps.Client.GetCampaign(call.ctx, &escrowservice.CampaignRequest{CampaignID: created.CampaignID})
		if err != nil {
			return nil, CampaignResult{}, fmt.Errorf("campaign get failed: %w", err)
		}
		if response == nil {
			return nil, CampaignResult{}, fmt.Errorf("campaign get response is missing")
		}

		result := deps.Format.campaignResult(response.Campaign)
		NotifyResourceUpdates(ctx, deps.Notify, CampaignListResource().URI, CampaignURI(result.ID))
		return CallToolResultWithMetadata(MergeResponseMetadata(call.meta, header)), result, nil
	}
}

// CampaignContributeHandler attaches an amount to a campaign.
func CampaignContributeHandler(deps Deps) mcp.ToolHandlerFor[CampaignContributeInput, CampaignResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CampaignContributeInput) (*mcp.CallToolResult, CampaignResult, error) {
		account, err := requireAccount(input.AccountID)
		if err != nil {
			return nil, CampaignResult{}, err
		}
		amount, err := parseAmountInput("amount", input.Amount)
		if err != nil {
			return nil, CampaignResult{}, err
		}
		return campaignMutation(ctx, deps, account, input.CampaignID, "campaign contribute", func(callCtx context.Context, opts ...grpc.CallOption) (*escrowservice.CampaignResponse, error) {
			return deps.Client.Contribute(callCtx, &escrowservice.ContributeRequest{CampaignID: input.CampaignID, Amount: amount}, opts...)
		})
	}
}

// CampaignFinalizeHandler marks a campaign completed.
func CampaignFinalizeHandler(deps Deps) mcp.ToolHandlerFor[CampaignActionInput, CampaignResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CampaignActionInput) (*mcp.CallToolResult, CampaignResult, error) {
		account, err := requireAccount(input.AccountID)
		if err != nil {
			return nil, CampaignResult{}, err
		}
		return campaignMutation(ctx, deps, account, input.CampaignID, "campaign finalize", func(callCtx context.Context, opts ...grpc.CallOption) (*escrowservice.CampaignResponse, error) {
			return deps.Client.FinalizeCampaign(callCtx, &escrowservice.CampaignRequest{CampaignID: input.CampaignID}, opts...)
		})
	}
}

// CampaignSetImageHandler sets or clears the campaign image.
func CampaignSetImageHandler(deps Deps) mcp.ToolHandlerFor[CampaignSetImageInput, CampaignResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CampaignSetImageInput) (*mcp.CallToolResult, CampaignResult, error) {
		account, err := requireAccount(input.AccountID)
		if err != nil {
			return nil, CampaignResult{}, err
		}
		return campaignMutation(ctx, deps, account, input.CampaignID, "campaign set image", func(callCtx context.Context, opts ...grpc.CallOption) (*escrowservice.CampaignResponse, error) {
			return deps.Client.SetImageURL(callCtx, &escrowservice.SetImageURLRequest{CampaignID: input.CampaignID, ImageURL: input.ImageURL}, opts...)
		})
	}
}

func campaignMutation(
	ctx context.Context,
	deps Deps,
	caller ledger.AccountID,
	campaignID uint64,
	action string,
	call func(context.Context, ...grpc.CallOption) (*escrowservice.CampaignResponse, error),
) (*mcp.CallToolResult, CampaignResult, error) {
	callCtx, err := deps.newCallContext(ctx, caller)
	if err != nil {
		return nil, CampaignResult{}, err
	}
	defer callCtx.cancel()

	var header metadata.MD
	response, err := call(callCtx.ctx, grpc.Header(&header))
	if err != nil {
		return nil, CampaignResult{}, fmt.Errorf("%s failed: %w", action, err)
	}
	if response == nil {
		return nil, CampaignResult{}, fmt.Errorf("%s response is missing", action)
	}

	result := deps.Format.campaignResult(response.Campaign)
	NotifyResourceUpdates(ctx, deps.Notify, CampaignListResource().URI, CampaignURI(campaignID))
	return CallToolResultWithMetadata(MergeResponseMetadata(callCtx.meta, header)), result, nil
}

// CampaignWithdrawHandler requests an owner withdrawal. The result reflects
// the record right after submission; the outcome may still be pending.
func CampaignWithdrawHandler(deps Deps) mcp.ToolHandlerFor[CampaignWithdrawInput, WithdrawalResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CampaignWithdrawInput) (*mcp.CallToolResult, WithdrawalResult, error) {
		owner, err := requireAccount(input.AccountID)
		if err != nil {
			return nil, WithdrawalResult{}, err
		}
		request := &escrowservice.RequestWithdrawalRequest{CampaignID: input.CampaignID}
		if strings.TrimSpace(input.Amount) != "" {
			amount, err := parseAmountInput("amount", input.Amount)
			if err != nil {
				return nil, WithdrawalResult{}, err
			}
			request.Amount = &amount
		}

		call, err := deps.newCallContext(ctx, owner)
		if err != nil {
			return nil, WithdrawalResult{}, err
		}
		defer call.cancel()

		var header metadata.MD
		response, err := deps.Client.RequestWithdrawal(call.ctx, request, grpc.Header(&header))
		if err != nil {
			return nil, WithdrawalResult{}, fmt.Errorf("campaign withdraw failed: %w", err)
		}
		if response == nil {
			return nil, WithdrawalResult{}, fmt.Errorf("campaign withdraw response is missing")
		}

		result := deps.Format.withdrawalResult(response.Withdrawal)
		NotifyResourceUpdates(ctx, deps.Notify, CampaignListResource().URI, CampaignURI(input.CampaignID))
		return CallToolResultWithMetadata(MergeResponseMetadata(call.meta, header)), result, nil
	}
}

// CampaignRefundHandler refunds the caller's contribution.
func CampaignRefundHandler(deps Deps) mcp.ToolHandlerFor[CampaignActionInput, RefundResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CampaignActionInput) (*mcp.CallToolResult, RefundResult, error) {
		account, err := requireAccount(input.AccountID)
		if err != nil {
			return nil, RefundResult{}, err
		}

		call, err := deps.newCallContext(ctx, account)
		if err != nil {
			return nil, RefundResult{}, err
		}
		defer call.cancel()

		var header metadata.MD
		response, err := deps.Client.Refund(call.ctx, &escrowservice.CampaignRequest{CampaignID: input.CampaignID}, grpc.Header(&header))
		if err != nil {
			return nil, RefundResult{}, fmt.Errorf("campaign refund failed: %w", err)
		}
		if response == nil {
			return nil, RefundResult{}, fmt.Errorf("campaign refund response is missing")
		}

		result := deps.Format.refundResult(response.Refund)
		NotifyResourceUpdates(ctx, deps.Notify, CampaignListResource().URI, CampaignURI(input.CampaignID))
		return CallToolResultWithMetadata(MergeResponseMetadata(call.meta, header)), result, nil
	}
}

// CampaignExcessFundsHandler reports funds raised above the goal.
func CampaignExcessFundsHandler(deps Deps) mcp.ToolHandlerFor[CampaignExcessFundsInput, ExcessFundsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CampaignExcessFundsInput) (*mcp.CallToolResult, ExcessFundsResult, error) {
		call, err := deps.newCallContext(ctx, "")
		if err != nil {
			return nil, ExcessFundsResult{}, err
		}
		defer call.cancel()

		var header metadata.MD
		response, err := deps.Client.GetExcessFunds(call.ctx, &escrowservice.CampaignRequest{CampaignID: input.CampaignID}, grpc.Header(&header))
		if err != nil {
			return nil, ExcessFundsResult{}, fmt.Errorf("campaign excess funds failed: %w", err)
		}
		if response == nil {
			return nil, ExcessFundsResult{}, fmt.Errorf("campaign excess funds response is missing")
		}

		result := ExcessFundsResult{
			CampaignID:  input.CampaignID,
			ExcessFunds: response.ExcessFunds.String(),
			Summary:     deps.Format.p().Sprintf("%s raised above the goal", deps.Format.Amount(response.ExcessFunds)),
		}
		return CallToolResultWithMetadata(MergeResponseMetadata(call.meta, header)), result, nil
	}
}
