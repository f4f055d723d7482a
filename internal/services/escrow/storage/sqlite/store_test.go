package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/escrow/internal/services/escrow/domain/campaign"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/event"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/withdrawal"
	"github.com/louisbranch/escrow/internal/services/escrow/storage"
)

var testNow = ledger.FromTime(time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC))

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestNextCampaignIDStartsAtZeroAndIncrements(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	var got []uint64
	for i := 0; i < 3; i++ {
		err := store.Atomic(context.Background(), func(ctx context.Context, tx storage.Tx) error {
			id, err := tx.NextCampaignID(ctx)
			if err != nil {
				return err
			}
			got = append(got, id)
			return nil
		})
		if err != nil {
			t.Fatalf("allocate id %d: %v", i, err)
		}
	}
	for i, id := range got {
		if id != uint64(i) {
			t.Fatalf("ids = %v, want 0,1,2", got)
		}
	}
}

func TestAtomicRollsBackOnError(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	boom := errors.New("boom")
	err := store.Atomic(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		id, err := tx.NextCampaignID(ctx)
		if err != nil {
			return err
		}
		if err := tx.PutCampaign(ctx, testCampaign(t, id)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("atomic error = %v, want %v", err, boom)
	}

	err = store.Atomic(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetCampaign(ctx, 0); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get rolled back campaign error = %v, want %v", err, storage.ErrNotFound)
		}
		id, err := tx.NextCampaignID(ctx)
		if err != nil {
			return err
		}
		if id != 0 {
			t.Fatalf("id after rollback = %d, want 0", id)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("atomic: %v", err)
	}
}

func TestAtomicRejectsCanceledContext(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := store.Atomic(ctx, func(context.Context, storage.Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("atomic error = %v, want %v", err, context.Canceled)
	}
	if called {
		t.Fatal("expected fn not to run")
	}
}

func TestCampaignRoundTripWithContributions(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	c := testCampaign(t, 0)
	c.ImageURL = "https://example.com/a.png"
	c.TotalFunds = 700
	c.ReservedFunds = 200
	c.Contributions["alice"] = 500
	c.Contributions["bob"] = 200

	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		return tx.PutCampaign(ctx, c)
	})

	var got campaign.Campaign
	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		var err error
		got, err = tx.GetCampaign(ctx, 0)
		return err
	})
	if got.Owner != c.Owner || got.Name != c.Name || got.ImageURL != c.ImageURL {
		t.Fatalf("campaign = %+v, want %+v", got, c)
	}
	if got.FundingGoal != c.FundingGoal || got.TotalFunds != 700 || got.ReservedFunds != 200 {
		t.Fatalf("amounts = %d/%d/%d, want %d/700/200", got.FundingGoal, got.TotalFunds, got.ReservedFunds, c.FundingGoal)
	}
	if got.Deadline != c.Deadline || got.Status != campaign.StatusActive || got.CreatedAt != testNow {
		t.Fatalf("timing/status = %+v", got)
	}
	if len(got.Contributions) != 2 || got.Contributions["alice"] != 500 || got.Contributions["bob"] != 200 {
		t.Fatalf("contributions = %v", got.Contributions)
	}

	// Removing an entry on update must drop the stored row.
	delete(c.Contributions, "bob")
	c.TotalFunds = 500
	c.Status = campaign.StatusCompleted
	c.CompletedAt = testNow.AddSeconds(10)
	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		return tx.PutCampaign(ctx, c)
	})
	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		var err error
		got, err = tx.GetCampaign(ctx, 0)
		return err
	})
	if _, ok := got.Contributions["bob"]; ok {
		t.Fatalf("expected bob entry removed, got %v", got.Contributions)
	}
	if !got.IsCompleted() || got.CompletedAt != c.CompletedAt {
		t.Fatalf("status = %s completed_at = %d", got.Status, got.CompletedAt)
	}
}

func TestAmountsAboveInt64SurviveStorage(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	c := testCampaign(t, 0)
	c.FundingGoal = ledger.MaxAmount
	c.TotalFunds = ledger.MaxAmount - 1
	c.Contributions["alice"] = ledger.MaxAmount - 1
	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		return tx.PutCampaign(ctx, c)
	})

	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.GetCampaign(ctx, 0)
		if err != nil {
			return err
		}
		if got.FundingGoal != ledger.MaxAmount || got.Contributions["alice"] != ledger.MaxAmount-1 {
			t.Fatalf("amounts = %s/%s", got.FundingGoal, got.Contributions["alice"])
		}
		return nil
	})
}

func TestListCampaignsOrdersByID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		for _, id := range []uint64{2, 0, 1} {
			c := testCampaign(t, id)
			c.Contributions["alice"] = ledger.Amount(id + 1)
			c.TotalFunds = ledger.Amount(id + 1)
			if err := tx.PutCampaign(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})

	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		list, err := tx.ListCampaigns(ctx)
		if err != nil {
			return err
		}
		if len(list) != 3 {
			t.Fatalf("list len = %d, want 3", len(list))
		}
		for i, c := range list {
			if c.ID != uint64(i) {
				t.Fatalf("list[%d].ID = %d", i, c.ID)
			}
			if c.Contributions["alice"] != ledger.Amount(i+1) {
				t.Fatalf("list[%d] contributions = %v", i, c.Contributions)
			}
		}
		return nil
	})
}

func TestGetMissingRecordsReturnNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetCampaign(ctx, 42); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get campaign error = %v, want %v", err, storage.ErrNotFound)
		}
		if _, err := tx.GetWithdrawal(ctx, "wd-x"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get withdrawal error = %v, want %v", err, storage.ErrNotFound)
		}
		if _, err := tx.GetRefund(ctx, "rf-x"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get refund error = %v, want %v", err, storage.ErrNotFound)
		}
		return nil
	})
}

func TestWithdrawalLifecycleAndPendingScan(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	c := testCampaign(t, 0)
	c.TotalFunds = 1000
	old := withdrawal.New("wd-old", c, 300, true, testNow)
	fresh := withdrawal.New("wd-new", c, 100, false, testNow.AddSeconds(3600))
	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.PutCampaign(ctx, c); err != nil {
			return err
		}
		if err := tx.PutWithdrawal(ctx, old); err != nil {
			return err
		}
		return tx.PutWithdrawal(ctx, fresh)
	})

	pending, err := store.ListPendingWithdrawals(context.Background(), testNow.AddSeconds(60))
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "wd-old" || !pending[0].Reserved || pending[0].Amount != 300 {
		t.Fatalf("pending = %+v", pending)
	}

	_, settled, err := withdrawal.Settle(c, old, testNow.AddSeconds(120))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		return tx.PutWithdrawal(ctx, settled)
	})

	pending, err = store.ListPendingWithdrawals(context.Background(), testNow.AddSeconds(7200))
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "wd-new" {
		t.Fatalf("pending after settle = %+v", pending)
	}

	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.GetWithdrawal(ctx, "wd-old")
		if err != nil {
			return err
		}
		if got.Status != withdrawal.StatusSettled || got.ResolvedAt != testNow.AddSeconds(120) {
			t.Fatalf("withdrawal = %+v", got)
		}
		list, err := tx.ListWithdrawals(ctx, 0)
		if err != nil {
			return err
		}
		if len(list) != 2 || list[0].ID != "wd-old" || list[1].ID != "wd-new" {
			t.Fatalf("withdrawals = %+v", list)
		}
		return nil
	})
}

func TestRefundRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	c := testCampaign(t, 0)
	r := withdrawal.NewRefund("rf-1", 0, "alice", 250, testNow)
	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.PutCampaign(ctx, c); err != nil {
			return err
		}
		return tx.PutRefund(ctx, r)
	})

	failed, err := r.Resolve(false, "account closed", testNow.AddSeconds(5))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		return tx.PutRefund(ctx, failed)
	})

	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.GetRefund(ctx, "rf-1")
		if err != nil {
			return err
		}
		if got.Status != withdrawal.RefundFailed || got.FailureReason != "account closed" || got.Amount != 250 || got.Account != "alice" {
			t.Fatalf("refund = %+v", got)
		}
		return nil
	})
}

func TestListRequestedRefunds(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	c := testCampaign(t, 0)
	old := withdrawal.NewRefund("rf-old", 0, "alice", 100, testNow)
	fresh := withdrawal.NewRefund("rf-new", 0, "bob", 50, testNow.AddSeconds(3600))
	delivered := withdrawal.NewRefund("rf-done", 0, "carol", 25, testNow)
	delivered, err := delivered.Resolve(true, "", testNow.AddSeconds(1))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.PutCampaign(ctx, c); err != nil {
			return err
		}
		for _, r := range []withdrawal.Refund{old, fresh, delivered} {
			if err := tx.PutRefund(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})

	requested, err := store.ListRequestedRefunds(context.Background(), testNow.AddSeconds(60))
	if err != nil {
		t.Fatalf("list requested: %v", err)
	}
	if len(requested) != 1 || requested[0].ID != "rf-old" || requested[0].Amount != 100 || requested[0].Account != "alice" {
		t.Fatalf("requested = %+v", requested)
	}
}

func TestEventsAppendAndPage(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		for i := 0; i < 3; i++ {
			evt, err := event.New(event.TypeContributed, 7, "alice", testNow.AddSeconds(int64(i)),
				event.WithAmount(ledger.Amount(i+1)),
				event.WithPayload(map[string]int{"n": i}),
			)
			if err != nil {
				return err
			}
			stored, err := tx.AppendEvent(ctx, evt)
			if err != nil {
				return err
			}
			if stored.Seq == 0 {
				t.Fatal("expected assigned seq")
			}
		}
		other, err := event.New(event.TypeCampaignCreated, 8, "carol", testNow)
		if err != nil {
			return err
		}
		_, err = tx.AppendEvent(ctx, other)
		return err
	})

	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		first, err := tx.ListEvents(ctx, 7, 0, 2)
		if err != nil {
			return err
		}
		if len(first) != 2 || first[0].Amount != 1 || first[1].Amount != 2 {
			t.Fatalf("first page = %+v", first)
		}
		if string(first[0].PayloadJSON) != `{"n":0}` {
			t.Fatalf("payload = %s", first[0].PayloadJSON)
		}
		rest, err := tx.ListEvents(ctx, 7, first[1].Seq, 10)
		if err != nil {
			return err
		}
		if len(rest) != 1 || rest[0].Amount != 3 || rest[0].ActorID != "alice" {
			t.Fatalf("second page = %+v", rest)
		}
		return nil
	})
}

func TestReopenKeepsState(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "escrow.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	mustAtomic(t, store, func(ctx context.Context, tx storage.Tx) error {
		id, err := tx.NextCampaignID(ctx)
		if err != nil {
			return err
		}
		return tx.PutCampaign(ctx, testCampaign(t, id))
	})
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	mustAtomic(t, reopened, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetCampaign(ctx, 0); err != nil {
			t.Fatalf("get campaign after reopen: %v", err)
		}
		id, err := tx.NextCampaignID(ctx)
		if err != nil {
			return err
		}
		if id != 1 {
			t.Fatalf("next id after reopen = %d, want 1", id)
		}
		return nil
	})
}

func testCampaign(t *testing.T, id uint64) campaign.Campaign {
	t.Helper()

	c, err := campaign.Create(campaign.CreateInput{
		Name:            "Lighthouse restoration",
		FundingGoal:     1000,
		DurationSeconds: 86400,
	}, id, "owner", testNow)
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return c
}

func mustAtomic(t *testing.T, store *Store, fn func(ctx context.Context, tx storage.Tx) error) {
	t.Helper()

	if err := store.Atomic(context.Background(), fn); err != nil {
		t.Fatalf("atomic: %v", err)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "escrow.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
