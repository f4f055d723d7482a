package service

import (
	"github.com/louisbranch/escrow/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerCampaignTools(server *mcp.Server, deps domain.Deps) {
	mcp.AddTool(server, domain.CampaignCreateTool(), domain.CampaignCreateHandler(deps))
	mcp.AddTool(server, domain.CampaignContributeTool(), domain.CampaignContributeHandler(deps))
	mcp.AddTool(server, domain.CampaignFinalizeTool(), domain.CampaignFinalizeHandler(deps))
	mcp.AddTool(server, domain.CampaignWithdrawTool(), domain.CampaignWithdrawHandler(deps))
	mcp.AddTool(server, domain.CampaignRefundTool(), domain.CampaignRefundHandler(deps))
	mcp.AddTool(server, domain.CampaignSetImageTool(), domain.CampaignSetImageHandler(deps))
	mcp.AddTool(server, domain.CampaignExcessFundsTool(), domain.CampaignExcessFundsHandler(deps))
}

// registerCampaignResources registers readable campaign MCP resources.
func registerCampaignResources(server *mcp.Server, deps domain.Deps) {
	server.AddResource(domain.CampaignListResource(), domain.CampaignListResourceHandler(deps))
	server.AddResourceTemplate(domain.CampaignResourceTemplate(), domain.CampaignResourceHandler(deps))
}
