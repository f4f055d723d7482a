package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	escrowservice "github.com/louisbranch/escrow/internal/services/escrow/api/grpc/escrow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const campaignURIScheme = "campaign://"

// CampaignListResourceHandler returns a readable campaign listing resource.
func CampaignListResourceHandler(deps Deps) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if deps.Client == nil {
			return nil, fmt.Errorf("campaign list client is not configured")
		}

		uri := CampaignListResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}

		call, err := deps.newCallContext(ctx, "")
		if err != nil {
			return nil, err
		}
		defer call.cancel()

		response, err := deps.Client.ListCampaigns(call.ctx, &escrowservice.ListCampaignsRequest{})
		if err != nil {
			return nil, fmt.Errorf("campaign list failed: %w", err)
		}
		if response == nil {
			return nil, fmt.Errorf("campaign list response is missing")
		}

		payload := CampaignListPayload{Campaigns: make([]CampaignResult, 0, len(response.Campaigns))}
		for _, snapshot := range response.Campaigns {
			payload.Campaigns = append(payload.Campaigns, deps.Format.campaignResult(snapshot))
		}
		return jsonResource(uri, payload)
	}
}

// CampaignResourceHandler returns a readable single campaign resource.
func CampaignResourceHandler(deps Deps) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if deps.Client == nil {
			return nil, fmt.Errorf("campaign client is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("campaign ID is required; use URI format campaign://{campaign_id}")
		}
		uri := req.Params.URI

		campaignID, err := ParseCampaignURI(uri)
		if err != nil {
			return nil, fmt.Errorf("parse campaign ID from URI: %w", err)
		}

		call, err := deps.newCallContext(ctx, "")
		if err != nil {
			return nil, err
		}
		defer call.cancel()

		response, err := deps.Client.GetCampaign(call.ctx, &escrowservice.CampaignRequest{CampaignID: campaignID})
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil, mcp.ResourceNotFoundError(uri)
			}
			return nil, fmt.Errorf("get campaign failed: %w", err)
		}
		if response == nil {
			return nil, fmt.Errorf("campaign response is missing")
		}
		return jsonResource(uri, CampaignPayload{Campaign: deps.Format.campaignResult(response.Campaign)})
	}
}

// ParseCampaignURI extracts the campaign ID from campaign://{campaign_id}.
func ParseCampaignURI(uri string) (uint64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), campaignURIScheme)
	if !ok {
		return 0, fmt.Errorf("URI must start with %s", campaignURIScheme)
	}
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		return 0, fmt.Errorf("campaign ID is required in URI")
	}
	campaignID, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("campaign ID %q is not a number", rest)
	}
	return campaignID, nil
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal resource %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
