package domain

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/louisbranch/escrow/internal/platform/id"
	escrowservice "github.com/louisbranch/escrow/internal/services/escrow/api/grpc/escrow"
	grpcmeta "github.com/louisbranch/escrow/internal/services/escrow/api/grpc/metadata"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/campaign"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/withdrawal"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type fakeClient struct {
	snapshot   campaign.Snapshot
	err        error
	outgoing   []metadata.MD
	contribute *escrowservice.ContributeRequest
	withdraw   *escrowservice.RequestWithdrawalRequest
	created    *escrowservice.CreateCampaignRequest
}

func (f *fakeClient) record(ctx context.Context) {
	md, _ := metadata.FromOutgoingContext(ctx)
	f.outgoing = append(f.outgoing, md)
}

func (f *fakeClient) campaign(ctx context.Context) (*escrowservice.CampaignResponse, error) {
	f.record(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return &escrowservice.CampaignResponse{Campaign: f.snapshot}, nil
}

func (f *fakeClient) CreateCampaign(ctx context.Context, in *escrowservice.CreateCampaignRequest, _ ...grpc.CallOption) (*escrowservice.CreateCampaignResponse, error) {
	f.record(ctx)
	f.created = in
	if f.err != nil {
		return nil, f.err
	}
	return &escrowservice.CreateCampaignResponse{CampaignID: f.snapshot.ID}, nil
}

func (f *fakeClient) GetCampaign(ctx context.Context, _ *escrowservice.CampaignRequest, _ ...grpc.CallOption) (*escrowservice.CampaignResponse, error) {
	return f.campaign(ctx)
}

func (f *fakeClient) ListCampaigns(ctx context.Context, _ *escrowservice.ListCampaignsRequest, _ ...grpc.CallOption) (*escrowservice.ListCampaignsResponse, error) {
	f.record(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return &escrowservice.ListCampaignsResponse{Campaigns: []campaign.Snapshot{f.snapshot}}, nil
}

func (f *fakeClient) Contribute(ctx context.Context, in *escrowservice.ContributeRequest, _ ...grpc.CallOption) (*escrowservice.CampaignResponse, error) {
	f.contribute = in
	return f.campaign(ctx)
}

func (f *fakeClient) FinalizeCampaign(ctx context.Context, _ *escrowservice.CampaignRequest, _ ...grpc.CallOption) (*escrowservice.CampaignResponse, error) {
	return f.campaign(ctx)
}

func (f *fakeClient) RequestWithdrawal(ctx context.Context, in *escrowservice.RequestWithdrawalRequest, _ ...grpc.CallOption) (*escrowservice.WithdrawalResponse, error) {
	f.record(ctx)
	f.withdraw = in
	if f.err != nil {
		return nil, f.err
	}
	amount := f.snapshot.TotalFunds
	if in.Amount != nil {
		amount = *in.Amount
	}
	return &escrowservice.WithdrawalResponse{Withdrawal: escrowservice.Withdrawal{
		ID:         "wd-1",
		CampaignID: in.CampaignID,
		Owner:      f.snapshot.Owner,
		Amount:     amount,
		Reserved:   true,
		Status:     withdrawal.StatusPending,
	}}, nil
}

func (f *fakeClient) GetExcessFunds(ctx context.Context, _ *escrowservice.CampaignRequest, _ ...grpc.CallOption) (*escrowservice.ExcessFundsResponse, error) {
	f.record(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return &escrowservice.ExcessFundsResponse{ExcessFunds: f.snapshot.TotalFunds.Sub(f.snapshot.FundingGoal)}, nil
}

func (f *fakeClient) Refund(ctx context.Context, in *escrowservice.CampaignRequest, _ ...grpc.CallOption) (*escrowservice.RefundResponse, error) {
	f.record(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return &escrowservice.RefundResponse{Refund: escrowservice.Refund{
		ID:         "rf-1",
		CampaignID: in.CampaignID,
		Account:    "alice.near",
		Amount:     400,
		Status:     withdrawal.RefundRequested,
	}}, nil
}

func (f *fakeClient) SetImageURL(ctx context.Context, _ *escrowservice.SetImageURLRequest, _ ...grpc.CallOption) (*escrowservice.CampaignResponse, error) {
	return f.campaign(ctx)
}

func newFakeClient() *fakeClient {
	deadline := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	return &fakeClient{snapshot: campaign.Snapshot{
		ID:          3,
		Name:        "Well",
		Owner:       "owner.near",
		FundingGoal: 1000000,
		TotalFunds:  1234567,
		Deadline:    ledger.FromTime(deadline),
		Status:      campaign.StatusActive,
		Contributions: []campaign.Contribution{
			{Account: "alice.near", Amount: 1234567},
		},
	}}
}

func testDeps(client CampaignClient, notified *[]string) Deps {
	return Deps{
		Client:    client,
		Format:    NewFormatter("en-US"),
		RequestID: id.Sequence("mcp"),
		Notify: func(_ context.Context, uri string) {
			*notified = append(*notified, uri)
		},
	}
}

func TestCampaignCreateHandler(t *testing.T) {
	client := newFakeClient()
	var notified []string
	handler := CampaignCreateHandler(testDeps(client, &notified))

	res, out, err := handler(context.Background(), nil, CampaignCreateInput{
		AccountID:       " owner.near ",
		Name:            "  Well ",
		FundingGoal:     "1000000",
		DurationSeconds: 3600,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if client.created.Name != "Well" || client.created.FundingGoal != 1000000 || client.created.DurationSeconds != 3600 {
		t.Fatalf("create request = %+v", client.created)
	}
	if got := grpcmeta.FirstMetadataValue(client.outgoing[0], grpcmeta.AccountIDHeader); got != "owner.near" {
		t.Fatalf("caller header = %q, want owner.near", got)
	}
	if got := grpcmeta.FirstMetadataValue(client.outgoing[0], grpcmeta.LocaleHeader); got != "en-US" {
		t.Fatalf("locale header = %q, want en-US", got)
	}
	if res.Meta[grpcmeta.RequestIDHeader] != "mcp-1" {
		t.Fatalf("result meta = %v", res.Meta)
	}
	if out.ID != 3 || out.TotalFunds != "1234567" || out.Contributors != 1 || out.Deadline != "2026-11-01T00:00:00Z" {
		t.Fatalf("result = %+v", out)
	}
	if out.Summary != "Well has raised 1,234,567 of 1,000,000" {
		t.Fatalf("summary = %q", out.Summary)
	}
	if strings.Join(notified, " ") != "campaigns://list campaign://3" {
		t.Fatalf("notified = %v", notified)
	}
}

func TestCampaignToolsRejectBadInput(t *testing.T) {
	client := newFakeClient()
	var notified []string
	deps := testDeps(client, &notified)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want string
	}{
		{
			name: "create without account",
			call: func() error {
				_, _, err := CampaignCreateHandler(deps)(ctx, nil, CampaignCreateInput{Name: "x", FundingGoal: "1"})
				return err
			},
			want: "account_id is required",
		},
		{
			name: "create without goal",
			call: func() error {
				_, _, err := CampaignCreateHandler(deps)(ctx, nil, CampaignCreateInput{AccountID: "a", Name: "x"})
				return err
			},
			want: "funding_goal is required",
		},
		{
			name: "contribute negative amount",
			call: func() error {
				_, _, err := CampaignContributeHandler(deps)(ctx, nil, CampaignContributeInput{AccountID: "a", Amount: "-5"})
				return err
			},
			want: "invalid amount",
		},
		{
			name: "withdraw fractional amount",
			call: func() error {
				_, _, err := CampaignWithdrawHandler(deps)(ctx, nil, CampaignWithdrawInput{AccountID: "a", Amount: "1.5"})
				return err
			},
			want: "invalid amount",
		},
		{
			name: "refund without account",
			call: func() error {
				_, _, err := CampaignRefundHandler(deps)(ctx, nil, CampaignActionInput{})
				return err
			},
			want: "account_id is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
	if len(client.outgoing) != 0 {
		t.Fatalf("rejected input reached the API %d times", len(client.outgoing))
	}
	if len(notified) != 0 {
		t.Fatalf("rejected input notified %v", notified)
	}
}

func TestCampaignContributeHandler(t *testing.T) {
	client := newFakeClient()
	var notified []string

	_, out, err := CampaignContributeHandler(testDeps(client, &notified))(context.Background(), nil, CampaignContributeInput{
		AccountID:  "alice.near",
		CampaignID: 3,
		Amount:     "18446744073709551615",
	})
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if client.contribute.Amount != ledger.MaxAmount || client.contribute.CampaignID != 3 {
		t.Fatalf("contribute request = %+v", client.contribute)
	}
	if got := grpcmeta.FirstMetadataValue(client.outgoing[0], grpcmeta.AccountIDHeader); got != "alice.near" {
		t.Fatalf("caller header = %q", got)
	}
	if out.Name != "Well" {
		t.Fatalf("result = %+v", out)
	}
	if len(notified) != 2 {
		t.Fatalf("notified = %v", notified)
	}
}

func TestCampaignWithdrawHandlerDefaultsToAllFunds(t *testing.T) {
	client := newFakeClient()
	var notified []string
	handler := CampaignWithdrawHandler(testDeps(client, &notified))

	_, out, err := handler(context.Background(), nil, CampaignWithdrawInput{AccountID: "owner.near", CampaignID: 3})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if client.withdraw.Amount != nil {
		t.Fatalf("expected omitted amount, got %d", *client.withdraw.Amount)
	}
	if out.ID != "wd-1" || out.Amount != "1234567" || out.Status != "pending" || !out.Reserved {
		t.Fatalf("result = %+v", out)
	}
	if out.Summary != "withdrawal of 1,234,567 to owner.near is pending" {
		t.Fatalf("summary = %q", out.Summary)
	}

	_, out, err = handler(context.Background(), nil, CampaignWithdrawInput{AccountID: "owner.near", CampaignID: 3, Amount: "25"})
	if err != nil {
		t.Fatalf("withdraw amount: %v", err)
	}
	if client.withdraw.Amount == nil || *client.withdraw.Amount != 25 || out.Amount != "25" {
		t.Fatalf("request = %+v result = %+v", client.withdraw, out)
	}
}

func TestCampaignRefundAndExcessHandlers(t *testing.T) {
	client := newFakeClient()
	var notified []string
	deps := testDeps(client, &notified)

	_, refund, err := CampaignRefundHandler(deps)(context.Background(), nil, CampaignActionInput{AccountID: "alice.near", CampaignID: 3})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refund.ID != "rf-1" || refund.Amount != "400" || refund.Status != "requested" {
		t.Fatalf("refund = %+v", refund)
	}

	_, excess, err := CampaignExcessFundsHandler(deps)(context.Background(), nil, CampaignExcessFundsInput{CampaignID: 3})
	if err != nil {
		t.Fatalf("excess: %v", err)
	}
	if excess.ExcessFunds != "234567" || excess.Summary != "234,567 raised above the goal" {
		t.Fatalf("excess = %+v", excess)
	}
	if got := grpcmeta.FirstMetadataValue(client.outgoing[1], grpcmeta.AccountIDHeader); got != "" {
		t.Fatalf("excess query sent caller %q", got)
	}
	if len(notified) != 2 {
		t.Fatalf("read-only query notified: %v", notified)
	}
}

func TestCampaignHandlerWrapsAPIError(t *testing.T) {
	client := newFakeClient()
	client.err = status.Error(codes.FailedPrecondition, "campaign is completed")
	var notified []string

	_, _, err := CampaignFinalizeHandler(testDeps(client, &notified))(context.Background(), nil, CampaignActionInput{AccountID: "owner.near", CampaignID: 3})
	if err == nil {
		t.Fatal("expected error")
	}
	if status.Code(errors.Unwrap(err)) != codes.FailedPrecondition {
		t.Fatalf("error = %v, want wrapped FailedPrecondition", err)
	}
	if !strings.HasPrefix(err.Error(), "campaign finalize failed") {
		t.Fatalf("error = %q", err)
	}
	if len(notified) != 0 {
		t.Fatalf("failed call notified %v", notified)
	}
}

func TestCampaignResources(t *testing.T) {
	client := newFakeClient()
	var notified []string
	deps := testDeps(client, &notified)

	list, err := CampaignListResourceHandler(deps)(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "campaigns://list"}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var payload CampaignListPayload
	if err := json.Unmarshal([]byte(list.Contents[0].Text), &payload); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(payload.Campaigns) != 1 || payload.Campaigns[0].ID != 3 {
		t.Fatalf("list payload = %+v", payload)
	}

	one, err := CampaignResourceHandler(deps)(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "campaign://3"}})
	if err != nil {
		t.Fatalf("read campaign: %v", err)
	}
	if one.Contents[0].URI != "campaign://3" || one.Contents[0].MIMEType != "application/json" {
		t.Fatalf("contents = %+v", one.Contents[0])
	}

	client.err = status.Error(codes.NotFound, "campaign not found")
	if _, err := CampaignResourceHandler(deps)(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "campaign://9"}}); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestParseCampaignURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    uint64
		wantErr bool
	}{
		{uri: "campaign://0", want: 0},
		{uri: "campaign://42/", want: 42},
		{uri: "campaign://", wantErr: true},
		{uri: "campaign://abc", wantErr: true},
		{uri: "campaigns://list", wantErr: true},
		{uri: "campaign://-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseCampaignURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tt.want {
				t.Fatalf("id = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatterFallsBackToEnglish(t *testing.T) {
	f := NewFormatter("not a locale!")
	if f.Locale() != "en-US" {
		t.Fatalf("locale = %q", f.Locale())
	}
	if got := f.Amount(1000); got != "1,000" {
		t.Fatalf("amount = %q", got)
	}
	var zero Formatter
	if got := zero.Amount(12345); got != "12,345" {
		t.Fatalf("zero formatter amount = %q", got)
	}
}
