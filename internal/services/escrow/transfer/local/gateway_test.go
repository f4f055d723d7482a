package local

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/louisbranch/escrow/internal/services/escrow/transfer"
	"github.com/louisbranch/escrow/internal/testkit/escrowfakes"
)

func newGateway(t *testing.T, opts ...Option) *Gateway {
	t.Helper()

	g, err := New(opts...)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = g.Close(ctx)
	})
	return g
}

func request(id string, dest ledger.AccountID) transfer.Request {
	return transfer.Request{ID: id, Kind: transfer.KindWithdrawal, CampaignID: 1, Destination: dest, Amount: 10}
}

func TestSubmitReportsSuccess(t *testing.T) {
	reporter := escrowfakes.NewReporter(1)
	g := newGateway(t, WithReporter(reporter))

	if err := g.Submit(context.Background(), request("wd-1", "owner.near")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !reporter.Wait(2 * time.Second) {
		t.Fatal("timed out waiting for report")
	}
	reports := reporter.Reports()
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	got := reports[0]
	if got.Request.ID != "wd-1" || len(got.Outcomes) != 1 || !got.Outcomes[0].Success {
		t.Fatalf("report = %+v", got)
	}
	if got.Outcomes[0].Reference != "local-wd-1" {
		t.Fatalf("reference = %q", got.Outcomes[0].Reference)
	}
}

func TestFailingDestinationReportsFailure(t *testing.T) {
	reporter := escrowfakes.NewReporter(1)
	g := newGateway(t,
		WithReporter(reporter),
		WithFailingDestinations(ParseDestinations(" broke.near , ,other.near")...),
	)

	if err := g.Submit(context.Background(), request("wd-2", "broke.near")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !reporter.Wait(2 * time.Second) {
		t.Fatal("timed out waiting for report")
	}
	outcome := reporter.Reports()[0].Outcomes[0]
	if outcome.Success || outcome.Reason == "" {
		t.Fatalf("outcome = %+v, want failure with reason", outcome)
	}
}

func TestSubmitRequiresReporter(t *testing.T) {
	g := newGateway(t)

	err := g.Submit(context.Background(), request("wd-3", "owner.near"))
	if !errors.Is(err, ErrNotBound) {
		t.Fatalf("submit error = %v, want %v", err, ErrNotBound)
	}
	if !transfer.IsRejected(err) {
		t.Fatalf("submit error = %v, want a rejection", err)
	}

	reporter := escrowfakes.NewReporter(1)
	g.Bind(reporter)
	if err := g.Submit(context.Background(), request("wd-3", "owner.near")); err != nil {
		t.Fatalf("submit after bind: %v", err)
	}
	if !reporter.Wait(2 * time.Second) {
		t.Fatal("timed out waiting for report")
	}
}

func TestSubmitRejectsInvalidRequest(t *testing.T) {
	g := newGateway(t, WithReporter(escrowfakes.NewReporter(0)))

	if err := g.Submit(context.Background(), request("", "owner.near")); err == nil {
		t.Fatal("expected missing id error")
	}
	bad := request("wd-4", "owner.near")
	bad.Amount = 0
	if err := g.Submit(context.Background(), bad); err == nil {
		t.Fatal("expected zero amount error")
	}
}

func TestSubmitFailsWhenPoolIsFull(t *testing.T) {
	reporter := escrowfakes.NewReporter(0)
	g := newGateway(t, WithReporter(reporter), WithWorkers(1), WithDelay(time.Hour))

	if err := g.Submit(context.Background(), request("wd-5", "owner.near")); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if got := g.Running(); got != 1 {
		t.Fatalf("running = %d, want 1", got)
	}
	err := g.Submit(context.Background(), request("wd-6", "owner.near"))
	if err == nil {
		t.Fatal("expected overload error with the only worker busy")
	}
	if !transfer.IsRejected(err) {
		t.Fatalf("overload error = %v, want a rejection", err)
	}
}

func TestSubmitRejectsCanceledContext(t *testing.T) {
	g := newGateway(t, WithReporter(escrowfakes.NewReporter(0)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Submit(ctx, request("wd-8", "owner.near"))
	if !errors.Is(err, context.Canceled) || !transfer.IsRejected(err) {
		t.Fatalf("submit error = %v, want rejected context.Canceled", err)
	}
}

func TestCloseAbandonsDelayedTransfers(t *testing.T) {
	reporter := escrowfakes.NewReporter(1)
	g, err := New(WithReporter(reporter), WithDelay(time.Hour))
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	if err := g.Submit(context.Background(), request("wd-7", "owner.near")); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(reporter.Reports()); got != 0 {
		t.Fatalf("reports after close = %d, want 0", got)
	}
}
