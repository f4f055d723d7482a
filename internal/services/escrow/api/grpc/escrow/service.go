// Package escrow exposes the campaign registry as the escrow.v1.CampaignService
// gRPC API. Messages are plain structs carried by the JSON codec.
package escrow

import (
	"context"

	"google.golang.org/grpc"

	apperrors "github.com/louisbranch/escrow/internal/platform/errors"
	"github.com/louisbranch/escrow/internal/services/escrow/api/grpc/metadata"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/campaign"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/event"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/withdrawal"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "escrow.v1.CampaignService"

// Backend is the registry surface the service routes calls to.
type Backend interface {
	CreateCampaign(ctx context.Context, caller ledger.AccountID, input campaign.CreateInput) (uint64, error)
	GetCampaign(ctx context.Context, id uint64) (campaign.Snapshot, error)
	ListCampaigns(ctx context.Context) ([]campaign.Snapshot, error)
	Details(ctx context.Context, id uint64) (campaign.Details, error)
	Contributions(ctx context.Context, id uint64) ([]campaign.Contribution, error)
	Contribute(ctx context.Context, id uint64, caller ledger.AccountID, amount ledger.Amount) (campaign.Snapshot, error)
	Finalize(ctx context.Context, id uint64, caller ledger.AccountID) (campaign.Snapshot, error)
	RequestWithdrawal(ctx context.Context, id uint64, caller ledger.AccountID, amount *ledger.Amount) (withdrawal.Withdrawal, error)
	ExcessFunds(ctx context.Context, id uint64) (ledger.Amount, error)
	Refund(ctx context.Context, id uint64, caller ledger.AccountID) (withdrawal.Refund, error)
	SetImageURL(ctx context.Context, id uint64, caller ledger.AccountID, url string) (campaign.Snapshot, error)
	ListEvents(ctx context.Context, id uint64, afterSeq uint64, limit int) ([]event.Event, error)
	ListWithdrawals(ctx context.Context, id uint64) ([]withdrawal.Withdrawal, error)
}

// CampaignServiceServer is the server API of escrow.v1.CampaignService.
type CampaignServiceServer interface {
	CreateCampaign(context.Context, *CreateCampaignRequest) (*CreateCampaignResponse, error)
	GetCampaign(context.Context, *CampaignRequest) (*CampaignResponse, error)
	ListCampaigns(context.Context, *ListCampaignsRequest) (*ListCampaignsResponse, error)
	GetCampaignDetails(context.Context, *CampaignRequest) (*CampaignDetailsResponse, error)
	GetContributions(context.Context, *CampaignRequest) (*ContributionsResponse, error)
	Contribute(context.Context, *ContributeRequest) (*CampaignResponse, error)
	FinalizeCampaign(context.Context, *CampaignRequest) (*CampaignResponse, error)
	RequestWithdrawal(context.Context, *RequestWithdrawalRequest) (*WithdrawalResponse, error)
	GetExcessFunds(context.Context, *CampaignRequest) (*ExcessFundsResponse, error)
	Refund(context.Context, *CampaignRequest) (*RefundResponse, error)
	SetImageURL(context.Context, *SetImageURLRequest) (*CampaignResponse, error)
	ListCampaignEvents(context.Context, *ListCampaignEventsRequest) (*ListCampaignEventsResponse, error)
	ListWithdrawals(context.Context, *CampaignRequest) (*ListWithdrawalsResponse, error)
}

// Service implements CampaignServiceServer over a Backend.
type Service struct {
	backend Backend
}

// NewService returns a Service routing to backend.
func NewService(backend Backend) *Service {
	return &Service{backend: backend}
}

// Register attaches the service to server.
func Register(server grpc.ServiceRegistrar, srv CampaignServiceServer) {
	server.RegisterService(&ServiceDesc, srv)
}

func (s *Service) CreateCampaign(ctx context.Context, in *CreateCampaignRequest) (*CreateCampaignResponse, error) {
	id, err := s.backend.CreateCampaign(ctx, metadata.CallerFromContext(ctx), campaign.CreateInput{
		Name:            in.Name,
		FundingGoal:     in.FundingGoal,
		DurationSeconds: in.DurationSeconds,
	})
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return &CreateCampaignResponse{CampaignID: id}, nil
}

func (s *Service) GetCampaign(ctx context.Context, in *CampaignRequest) (*CampaignResponse, error) {
	snap, err := s.backend.GetCampaign(ctx, in.CampaignID)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return &CampaignResponse{Campaign: snap}, nil
}

func (s *Service) ListCampaigns(ctx context.Context, _ *ListCampaignsRequest) (*ListCampaignsResponse, error) {
	list, err := s.backend.ListCampaigns(ctx)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return &ListCampaignsResponse{Campaigns: list}, nil
}

func (s *Service) GetCampaignDetails(ctx context.Context, in *CampaignRequest) (*CampaignDetailsResponse, error) {
	details, err := s.backend.Details(ctx, in.CampaignID)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return &CampaignDetailsResponse{Details: details}, nil
}

func (s *Service) GetContributions(ctx context.Context, in *CampaignRequest) (*ContributionsResponse, error) {
	list, err := s.backend.Contributions(ctx, in.CampaignID)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return &ContributionsResponse{Contributions: list, TotalContributors: uint64(len(list))}, nil
}

func (s *Service) Contribute(ctx context.Context, in *ContributeRequest) (*CampaignResponse, error) {
	snap, err := s.backend.Contribute(ctx, in.CampaignID, metadata.CallerFromContext(ctx), in.Amount)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return &CampaignResponse{Campaign: snap}, nil
}

func (s *Service) FinalizeCampaign(ctx context.Context, in *CampaignRequest) (*CampaignResponse, error) {
	snap, err := s.backend.Finalize(ctx, in.CampaignID, metadata.CallerFromContext(ctx))
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return &CampaignResponse{Campaign: snap}, nil
}

func (s *Service) RequestWithdrawal(ctx context.Context, in *RequestWithdrawalRequest) (*WithdrawalResponse, error) {
	w, err := s.backend.RequestWithdrawal(ctx, in.CampaignID, metadata.CallerFromContext(ctx), in.Amount)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return &WithdrawalResponse{Withdrawal: withdrawalToWire(w)}, nil
}

func (s *Service) GetExcessFunds(ctx context.Context, in *CampaignRequest) (*ExcessFundsResponse, error) {
	excess, err := s.backend.ExcessFunds(ctx, in.CampaignID)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return &ExcessFundsResponse{ExcessFunds: excess}, nil
}

func (s *Service) Refund(ctx context.Context, in *CampaignRequest) (*RefundResponse, error) {
	r, err := s.backend.Refund(ctx, in.CampaignID, metadata.CallerFromContext(ctx))
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return &RefundResponse{Refund: refundToWire(r)}, nil
}

func (s *Service) SetImageURL(ctx context.Context, in *SetImageURLRequest) (*CampaignResponse, error) {
	snap, err := s.backend.SetImageURL(ctx, in.CampaignID, metadata.CallerFromContext(ctx), in.ImageURL)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return &CampaignResponse{Campaign: snap}, nil
}

func (s *Service) ListCampaignEvents(ctx context.Context, in *ListCampaignEventsRequest) (*ListCampaignEventsResponse, error) {
	if in.Limit < 0 {
		return nil, handleError(ctx, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "limit must not be negative", map[string]string{
			"Field": "limit",
		}))
	}
	events, err := s.backend.ListEvents(ctx, in.CampaignID, in.AfterSeq, in.Limit)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	resp := &ListCampaignEventsResponse{Events: events}
	if n := len(events); n > 0 {
		resp.NextAfterSeq = events[n-1].Seq
	}
	return resp, nil
}

func (s *Service) ListWithdrawals(ctx context.Context, in *CampaignRequest) (*ListWithdrawalsResponse, error) {
	list, err := s.backend.ListWithdrawals(ctx, in.CampaignID)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	out := make([]Withdrawal, 0, len(list))
	for _, w := range list {
		out = append(out, withdrawalToWire(w))
	}
	return &ListWithdrawalsResponse{Withdrawals: out}, nil
}

func handleError(ctx context.Context, err error) error {
	return apperrors.HandleError(err, metadata.LocaleFromContext(ctx))
}

// ServiceDesc describes escrow.v1.CampaignService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CampaignServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateCampaign", CampaignServiceServer.CreateCampaign),
		unary("GetCampaign", CampaignServiceServer.GetCampaign),
		unary("ListCampaigns", CampaignServiceServer.ListCampaigns),
		unary("GetCampaignDetails", CampaignServiceServer.GetCampaignDetails),
		unary("GetContributions", CampaignServiceServer.GetContributions),
		unary("Contribute", CampaignServiceServer.Contribute),
		unary("FinalizeCampaign", CampaignServiceServer.FinalizeCampaign),
		unary("RequestWithdrawal", CampaignServiceServer.RequestWithdrawal),
		unary("GetExcessFunds", CampaignServiceServer.GetExcessFunds),
		unary("Refund", CampaignServiceServer.Refund),
		unary("SetImageURL", CampaignServiceServer.SetImageURL),
		unary("ListCampaignEvents", CampaignServiceServer.ListCampaignEvents),
		unary("ListWithdrawals", CampaignServiceServer.ListWithdrawals),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "escrow/v1/campaign.json",
}

// unary builds the MethodDesc that decodes Req, runs the interceptor chain,
// and dispatches to call.
func unary[Req, Resp any](method string, call func(CampaignServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(CampaignServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var _ CampaignServiceServer = (*Service)(nil)
