package escrow

import (
	"context"

	"google.golang.org/grpc"

	"github.com/louisbranch/escrow/internal/platform/grpc/jsoncodec"
)

// Client is a typed client for escrow.v1.CampaignService. The caller account
// is read from outgoing metadata; see metadata.OutgoingContext.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps conn. Every call forces the JSON codec, so conn needs no
// default call options.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) CreateCampaign(ctx context.Context, in *CreateCampaignRequest, opts ...grpc.CallOption) (*CreateCampaignResponse, error) {
	out := new(CreateCampaignResponse)
	if err := c.invoke(ctx, "CreateCampaign", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCampaign(ctx context.Context, in *CampaignRequest, opts ...grpc.CallOption) (*CampaignResponse, error) {
	out := new(CampaignResponse)
	if err := c.invoke(ctx, "GetCampaign", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListCampaigns(ctx context.Context, in *ListCampaignsRequest, opts ...grpc.CallOption) (*ListCampaignsResponse, error) {
	out := new(ListCampaignsResponse)
	if err := c.invoke(ctx, "ListCampaigns", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCampaignDetails(ctx context.Context, in *CampaignRequest, opts ...grpc.CallOption) (*CampaignDetailsResponse, error) {
	out := new(CampaignDetailsResponse)
	if err := c.invoke(ctx, "GetCampaignDetails", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetContributions(ctx context.Context, in *CampaignRequest, opts ...grpc.CallOption) (*ContributionsResponse, error) {
	out := new(ContributionsResponse)
	if err := c.invoke(ctx, "GetContributions", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Contribute(ctx context.Context, in *ContributeRequest, opts ...grpc.CallOption) (*CampaignResponse, error) {
	out := new(CampaignResponse)
	if err := c.invoke(ctx, "Contribute", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FinalizeCampaign(ctx context.Context, in *CampaignRequest, opts ...grpc.CallOption) (*CampaignResponse, error) {
	out := new(CampaignResponse)
	if err := c.invoke(ctx, "FinalizeCampaign", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RequestWithdrawal(ctx context.Context, in *RequestWithdrawalRequest, opts ...grpc.CallOption) (*WithdrawalResponse, error) {
	out := new(WithdrawalResponse)
	if err := c.invoke(ctx, "RequestWithdrawal", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetExcessFunds(ctx context.Context, in *CampaignRequest, opts ...grpc.CallOption) (*ExcessFundsResponse, error) {
	out := new(ExcessFundsResponse)
	if err := c.invoke(ctx, "GetExcessFunds", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Refund(ctx context.Context, in *CampaignRequest, opts ...grpc.CallOption) (*RefundResponse, error) {
	out := new(RefundResponse)
	if err := c.invoke(ctx, "Refund", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SetImageURL(ctx context.Context, in *SetImageURLRequest, opts ...grpc.CallOption) (*CampaignResponse, error) {
	out := new(CampaignResponse)
	if err := c.invoke(ctx, "SetImageURL", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListCampaignEvents(ctx context.Context, in *ListCampaignEventsRequest, opts ...grpc.CallOption) (*ListCampaignEventsResponse, error) {
	out := new(ListCampaignEventsResponse)
	if err := c.invoke(ctx, "ListCampaignEvents", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListWithdrawals(ctx context.Context, in *CampaignRequest, opts ...grpc.CallOption) (*ListWithdrawalsResponse, error) {
	out := new(ListWithdrawalsResponse)
	if err := c.invoke(ctx, "ListWithdrawals", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{jsoncodec.CallOption()}, opts...)
	return c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}
