package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/louisbranch/escrow/internal/platform/errors"
	"github.com/louisbranch/escrow/internal/platform/id"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/campaign"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/event"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/louisbranch/escrow/internal/services/escrow/settlement"
	"github.com/louisbranch/escrow/internal/testkit/escrowfakes"
)

const (
	owner = ledger.AccountID("owner.near")
	alice = ledger.AccountID("alice.near")
	bob   = ledger.AccountID("bob.near")
)

var start = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) (*Registry, *escrowfakes.Store, *escrowfakes.Clock) {
	t.Helper()

	store := escrowfakes.NewStore()
	clock := escrowfakes.NewClock(start)
	coord := settlement.New(store, &escrowfakes.Gateway{},
		settlement.WithClock(clock.Now),
		settlement.WithIDGenerator(id.Sequence("tr")),
	)
	return New(store, coord, WithClock(clock.Now)), store, clock
}

func createCampaign(t *testing.T, r *Registry, goal ledger.Amount) uint64 {
	t.Helper()

	campaignID, err := r.CreateCampaign(context.Background(), owner, campaign.CreateInput{
		Name:            "Community garden",
		FundingGoal:     goal,
		DurationSeconds: 86400,
	})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return campaignID
}

func assertCode(t *testing.T, err error, want apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := apperrors.GetCode(err); got != want {
		t.Fatalf("code = %s, want %s (err: %v)", got, want, err)
	}
}

func TestCreateCampaignAllocatesSequentialIDs(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	first := createCampaign(t, r, 10)
	second := createCampaign(t, r, 20)
	if first != 0 || second != 1 {
		t.Fatalf("ids = %d, %d, want 0, 1", first, second)
	}

	snap, err := r.GetCampaign(context.Background(), second)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if snap.Owner != owner || snap.FundingGoal != 20 || snap.TotalFunds != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Status != campaign.StatusActive || snap.Completed {
		t.Fatalf("status = %s completed = %v", snap.Status, snap.Completed)
	}
	if want := ledger.FromTime(start).AddSeconds(86400); snap.Deadline != want {
		t.Fatalf("deadline = %d, want %d", snap.Deadline, want)
	}
}

func TestCreateCampaignRejectsInvalidInput(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		caller ledger.AccountID
		input  campaign.CreateInput
		code   apperrors.Code
	}{
		{name: "zero goal", caller: owner, input: campaign.CreateInput{FundingGoal: 0, DurationSeconds: 60}, code: apperrors.CodeInvalidAmount},
		{name: "zero duration", caller: owner, input: campaign.CreateInput{FundingGoal: 5, DurationSeconds: 0}, code: apperrors.CodeInvalidDuration},
		{name: "negative duration", caller: owner, input: campaign.CreateInput{FundingGoal: 5, DurationSeconds: -1}, code: apperrors.CodeInvalidDuration},
		{name: "missing caller", caller: "", input: campaign.CreateInput{FundingGoal: 5, DurationSeconds: 60}, code: apperrors.CodeCallerMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.CreateCampaign(ctx, tt.caller, tt.input)
			assertCode(t, err, tt.code)
		})
	}

	// Rejected creates never consume an id.
	if got := createCampaign(t, r, 10); got != 0 {
		t.Fatalf("first accepted id = %d, want 0", got)
	}
}

func TestContributionAndExcessFunds(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	campaignID := createCampaign(t, r, 10)

	snap, err := r.Contribute(ctx, campaignID, alice, 15)
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if snap.TotalFunds != 15 {
		t.Fatalf("total = %d, want 15", snap.TotalFunds)
	}
	excess, err := r.ExcessFunds(ctx, campaignID)
	if err != nil {
		t.Fatalf("excess funds: %v", err)
	}
	if excess != 5 {
		t.Fatalf("excess = %d, want 5", excess)
	}
}

func TestContributeAccumulatesPerAccount(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	campaignID := createCampaign(t, r, 100)

	for _, step := range []struct {
		account ledger.AccountID
		amount  ledger.Amount
	}{{bob, 4}, {alice, 3}, {bob, 6}} {
		if _, err := r.Contribute(ctx, campaignID, step.account, step.amount); err != nil {
			t.Fatalf("contribute %s: %v", step.account, err)
		}
	}

	contributions, err := r.Contributions(ctx, campaignID)
	if err != nil {
		t.Fatalf("contributions: %v", err)
	}
	want := []campaign.Contribution{{Account: alice, Amount: 3}, {Account: bob, Amount: 10}}
	if len(contributions) != len(want) {
		t.Fatalf("contributions = %+v, want %+v", contributions, want)
	}
	for i := range want {
		if contributions[i] != want[i] {
			t.Fatalf("contributions[%d] = %+v, want %+v", i, contributions[i], want[i])
		}
	}
	count, err := r.TotalContributors(ctx, campaignID)
	if err != nil {
		t.Fatalf("total contributors: %v", err)
	}
	if count != 2 {
		t.Fatalf("contributors = %d, want 2", count)
	}
	total, err := r.TotalFunds(ctx, campaignID)
	if err != nil {
		t.Fatalf("total funds: %v", err)
	}
	if total != 13 {
		t.Fatalf("total = %d, want 13", total)
	}
}

func TestContributeRejections(t *testing.T) {
	r, _, clock := newTestRegistry(t)
	ctx := context.Background()
	open := createCampaign(t, r, 10)
	closed := createCampaign(t, r, 10)
	if _, err := r.Finalize(ctx, closed, owner); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	_, err := r.Contribute(ctx, open, alice, 0)
	assertCode(t, err, apperrors.CodeInvalidAmount)
	_, err = r.Contribute(ctx, open, owner, 5)
	assertCode(t, err, apperrors.CodeUnauthorized)
	_, err = r.Contribute(ctx, closed, alice, 5)
	assertCode(t, err, apperrors.CodeInvalidState)
	_, err = r.Contribute(ctx, open, "", 5)
	assertCode(t, err, apperrors.CodeCallerMissing)
	_, err = r.Contribute(ctx, 42, alice, 5)
	assertCode(t, err, apperrors.CodeNotFound)

	// The deadline instant still accepts contributions.
	clock.Advance(24 * time.Hour)
	if _, err := r.Contribute(ctx, open, alice, 1); err != nil {
		t.Fatalf("contribute at deadline: %v", err)
	}
	clock.Advance(time.Nanosecond)
	_, err = r.Contribute(ctx, open, alice, 1)
	assertCode(t, err, apperrors.CodeDeadlinePassed)
}

func TestFinalizeOnlyOnceAndOnlyOwner(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	campaignID := createCampaign(t, r, 10)

	_, err := r.Finalize(ctx, campaignID, alice)
	assertCode(t, err, apperrors.CodeUnauthorized)

	snap, err := r.Finalize(ctx, campaignID, owner)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !snap.Completed || snap.Status != campaign.StatusCompleted {
		t.Fatalf("snapshot = %+v", snap)
	}

	_, err = r.Finalize(ctx, campaignID, owner)
	assertCode(t, err, apperrors.CodeInvalidState)

	completed, err := r.IsCompleted(ctx, campaignID)
	if err != nil {
		t.Fatalf("is completed: %v", err)
	}
	if !completed {
		t.Fatal("expected completed campaign")
	}
}

func TestSetImageURLOwnerOnly(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	campaignID := createCampaign(t, r, 10)

	_, err := r.SetImageURL(ctx, campaignID, alice, "https://example.com/x.png")
	assertCode(t, err, apperrors.CodeUnauthorized)

	if _, err := r.SetImageURL(ctx, campaignID, owner, " https://example.com/garden.png "); err != nil {
		t.Fatalf("set image url: %v", err)
	}
	url, err := r.ImageURL(ctx, campaignID)
	if err != nil {
		t.Fatalf("image url: %v", err)
	}
	if url != "https://example.com/garden.png" {
		t.Fatalf("image url = %q", url)
	}
}

func TestDetailsAndAccessors(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	campaignID := createCampaign(t, r, 10)
	if _, err := r.Contribute(ctx, campaignID, alice, 4); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	details, err := r.Details(ctx, campaignID)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.Owner != owner || details.Name != "Community garden" || details.FundingGoal != 10 ||
		details.TotalFunds != 4 || details.TotalContributors != 1 || details.Completed {
		t.Fatalf("details = %+v", details)
	}

	gotOwner, err := r.Owner(ctx, campaignID)
	if err != nil || gotOwner != owner {
		t.Fatalf("owner = %q, %v", gotOwner, err)
	}
	goal, err := r.FundingGoal(ctx, campaignID)
	if err != nil || goal != 10 {
		t.Fatalf("goal = %d, %v", goal, err)
	}
	deadline, err := r.Deadline(ctx, campaignID)
	if err != nil || deadline != details.Deadline {
		t.Fatalf("deadline = %d, %v", deadline, err)
	}

	_, err = r.Details(ctx, 77)
	assertCode(t, err, apperrors.CodeNotFound)
	if md := apperrors.GetMetadata(err); md["Resource"] != "campaign" || md["ID"] != "77" {
		t.Fatalf("not found metadata = %v", md)
	}
}

func TestListCampaignsOrderedByID(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	for i := 0; i < 3; i++ {
		createCampaign(t, r, ledger.Amount(10*(i+1)))
	}

	list, err := r.ListCampaigns(context.Background())
	if err != nil {
		t.Fatalf("list campaigns: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("list len = %d, want 3", len(list))
	}
	for i, snap := range list {
		if snap.ID != uint64(i) || snap.FundingGoal != ledger.Amount(10*(i+1)) {
			t.Fatalf("list[%d] = %+v", i, snap)
		}
	}
}

func TestRejectedCallLeavesNoTrace(t *testing.T) {
	r, store, _ := newTestRegistry(t)
	ctx := context.Background()
	campaignID := createCampaign(t, r, 10)
	units := store.Units

	_, err := r.Contribute(ctx, campaignID, owner, 5)
	assertCode(t, err, apperrors.CodeUnauthorized)

	if store.Units != units {
		t.Fatalf("committed units = %d, want %d", store.Units, units)
	}
	events, err := r.ListEvents(ctx, campaignID, 0, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Type != event.TypeCampaignCreated {
		t.Fatalf("events = %+v", events)
	}
}

func TestListEventsPages(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	campaignID := createCampaign(t, r, 10)
	for i := 0; i < 3; i++ {
		if _, err := r.Contribute(ctx, campaignID, alice, 1); err != nil {
			t.Fatalf("contribute: %v", err)
		}
	}

	page, err := r.ListEvents(ctx, campaignID, 0, 2)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page len = %d, want 2", len(page))
	}
	rest, err := r.ListEvents(ctx, campaignID, page[1].Seq, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("rest len = %d, want 2", len(rest))
	}
	for _, evt := range rest {
		if evt.Type != event.TypeContributed || evt.ActorID != alice || evt.Amount != 1 {
			t.Fatalf("event = %+v", evt)
		}
	}

	_, err = r.ListEvents(ctx, 9, 0, 10)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestWithdrawalDelegatesToSettler(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	campaignID := createCampaign(t, r, 10)
	if _, err := r.Contribute(ctx, campaignID, alice, 15); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if _, err := r.Finalize(ctx, campaignID, owner); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	amount := ledger.Amount(10)
	w, err := r.RequestWithdrawal(ctx, campaignID, owner, &amount)
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	list, err := r.ListWithdrawals(ctx, campaignID)
	if err != nil {
		t.Fatalf("list withdrawals: %v", err)
	}
	if len(list) != 1 || list[0].ID != w.ID {
		t.Fatalf("withdrawals = %+v", list)
	}
}

func TestRegistryWithoutSettler(t *testing.T) {
	r := New(escrowfakes.NewStore(), nil)
	_, err := r.RequestWithdrawal(context.Background(), 0, owner, nil)
	if err == nil {
		t.Fatal("expected settler error")
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		t.Fatalf("expected plain configuration error, got %v", appErr)
	}
}
