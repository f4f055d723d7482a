// Package registry owns the campaign collection. Each call loads the
// campaign inside one storage unit, applies the pure transition from the
// campaign package, and records a journal event alongside the new state.
// Money leaving escrow is delegated to a Settler.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/escrow/internal/services/escrow/domain/campaign"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/event"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/withdrawal"
	"github.com/louisbranch/escrow/internal/services/escrow/settlement"
	"github.com/louisbranch/escrow/internal/services/escrow/storage"
	"go.uber.org/zap"
)

// Settler settles withdrawals and refunds.
type Settler interface {
	RequestWithdrawal(ctx context.Context, campaignID uint64, caller ledger.AccountID, amount *ledger.Amount) (withdrawal.Withdrawal, error)
	Refund(ctx context.Context, campaignID uint64, caller ledger.AccountID) (withdrawal.Refund, error)
}

// Registry serves campaign operations.
type Registry struct {
	store   storage.Store
	settler Settler
	clock   func() time.Time
	logger  *zap.Logger
}

// Option customizes a Registry.
type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets the logger for accepted state changes.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New builds a Registry over store.
func New(store storage.Store, settler Settler, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		settler: settler,
		clock:   time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateCampaign opens a campaign owned by caller and returns its id.
func (r *Registry) CreateCampaign(ctx context.Context, caller ledger.AccountID, input campaign.CreateInput) (uint64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	now := r.now()
	var created campaign.Campaign
	err := r.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		// Validate before allocating so rejected calls never consume an id.
		if _, err := campaign.Create(input, 0, caller, now); err != nil {
			return err
		}
		id, err := tx.NextCampaignID(ctx)
		if err != nil {
			return err
		}
		created, err = campaign.Create(input, id, caller, now)
		if err != nil {
			return err
		}
		if err := tx.PutCampaign(ctx, created); err != nil {
			return err
		}
		return appendEvent(ctx, tx, event.TypeCampaignCreated, created.ID, caller, now,
			event.WithAmount(created.FundingGoal),
			event.WithPayload(map[string]any{
				"name":     created.Name,
				"deadline": created.Deadline,
			}),
		)
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("campaign created",
		zap.Uint64("campaign_id", created.ID),
		zap.String("owner", created.Owner.String()),
		zap.Stringer("funding_goal", created.FundingGoal),
		zap.Time("deadline", created.Deadline.Time()),
	)
	return created.ID, nil
}

// GetCampaign returns the read model of one campaign.
func (r *Registry) GetCampaign(ctx context.Context, id uint64) (campaign.Snapshot, error) {
	c, err := r.load(ctx, id)
	if err != nil {
		return campaign.Snapshot{}, err
	}
	return campaign.NewSnapshot(c), nil
}

// ListCampaigns returns every campaign ordered by id.
func (r *Registry) ListCampaigns(ctx context.Context) ([]campaign.Snapshot, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var campaigns []campaign.Campaign
	err := r.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		campaigns, err = tx.ListCampaigns(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]campaign.Snapshot, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, campaign.NewSnapshot(c))
	}
	return out, nil
}

// Contribute pledges amount from caller.
func (r *Registry) Contribute(ctx context.Context, id uint64, caller ledger.AccountID, amount ledger.Amount) (campaign.Snapshot, error) {
	if caller.IsZero() {
		return campaign.Snapshot{}, settlement.ErrCallerMissing
	}
	updated, err := r.mutate(ctx, id, func(c campaign.Campaign, now ledger.Timestamp) (campaign.Campaign, event.Event, error) {
		next, err := campaign.Contribute(c, caller, amount, now)
		if err != nil {
			return campaign.Campaign{}, event.Event{}, err
		}
		evt, err := event.New(event.TypeContributed, id, caller, now, event.WithAmount(amount))
		return next, evt, err
	})
	if err != nil {
		return campaign.Snapshot{}, err
	}
	r.logger.Info("contribution accepted",
		zap.Uint64("campaign_id", id),
		zap.String("account", caller.String()),
		zap.Stringer("amount", amount),
		zap.Stringer("total_funds", updated.TotalFunds),
	)
	return campaign.NewSnapshot(updated), nil
}

// Finalize completes the campaign. Owner only; goal and deadline are not
// consulted.
func (r *Registry) Finalize(ctx context.Context, id uint64, caller ledger.AccountID) (campaign.Snapshot, error) {
	if caller.IsZero() {
		return campaign.Snapshot{}, settlement.ErrCallerMissing
	}
	updated, err := r.mutate(ctx, id, func(c campaign.Campaign, now ledger.Timestamp) (campaign.Campaign, event.Event, error) {
		next, err := campaign.Finalize(c, caller, now)
		if err != nil {
			return campaign.Campaign{}, event.Event{}, err
		}
		evt, err := event.New(event.TypeCampaignFinalized, id, caller, now,
			event.WithAmount(next.TotalFunds),
			event.WithPayload(map[string]bool{"goal_met": next.TotalFunds >= next.FundingGoal}),
		)
		return next, evt, err
	})
	if err != nil {
		return campaign.Snapshot{}, err
	}
	r.logger.Info("campaign finalized",
		zap.Uint64("campaign_id", id),
		zap.Stringer("total_funds", updated.TotalFunds),
		zap.Stringer("funding_goal", updated.FundingGoal),
	)
	return campaign.NewSnapshot(updated), nil
}

// SetImageURL replaces the campaign image. Owner only.
func (r *Registry) SetImageURL(ctx context.Context, id uint64, caller ledger.AccountID, url string) (campaign.Snapshot, error) {
	if caller.IsZero() {
		return campaign.Snapshot{}, settlement.ErrCallerMissing
	}
	updated, err := r.mutate(ctx, id, func(c campaign.Campaign, now ledger.Timestamp) (campaign.Campaign, event.Event, error) {
		next, err := campaign.SetImageURL(c, caller, url)
		if err != nil {
			return campaign.Campaign{}, event.Event{}, err
		}
		evt, err := event.New(event.TypeImageURLSet, id, caller, now,
			event.WithPayload(map[string]string{"image_url": next.ImageURL}),
		)
		return next, evt, err
	})
	if err != nil {
		return campaign.Snapshot{}, err
	}
	return campaign.NewSnapshot(updated), nil
}

// ExcessFunds returns how far the campaign is over its goal.
func (r *Registry) ExcessFunds(ctx context.Context, id uint64) (ledger.Amount, error) {
	c, err := r.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return campaign.ExcessFunds(c), nil
}

// RequestWithdrawal starts a withdrawal for the owner. A nil amount
// withdraws everything available.
func (r *Registry) RequestWithdrawal(ctx context.Context, id uint64, caller ledger.AccountID, amount *ledger.Amount) (withdrawal.Withdrawal, error) {
	if r == nil || r.settler == nil {
		return withdrawal.Withdrawal{}, fmt.Errorf("settler is not configured")
	}
	return r.settler.RequestWithdrawal(ctx, id, caller, amount)
}

// Refund returns caller's contribution.
func (r *Registry) Refund(ctx context.Context, id uint64, caller ledger.AccountID) (withdrawal.Refund, error) {
	if r == nil || r.settler == nil {
		return withdrawal.Refund{}, fmt.Errorf("settler is not configured")
	}
	return r.settler.Refund(ctx, id, caller)
}

// ListEvents pages through a campaign's journal.
func (r *Registry) ListEvents(ctx context.Context, id uint64, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var events []event.Event
	err := r.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := settlement.LoadCampaign(ctx, tx, id); err != nil {
			return err
		}
		var err error
		events, err = tx.ListEvents(ctx, id, afterSeq, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListWithdrawals returns a campaign's withdrawal records oldest first.
func (r *Registry) ListWithdrawals(ctx context.Context, id uint64) ([]withdrawal.Withdrawal, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var list []withdrawal.Withdrawal
	err := r.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := settlement.LoadCampaign(ctx, tx, id); err != nil {
			return err
		}
		var err error
		list, err = tx.ListWithdrawals(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

type transition func(c campaign.Campaign, now ledger.Timestamp) (campaign.Campaign, event.Event, error)

// mutate applies fn to campaign id and stores the result with its event in
// one unit.
func (r *Registry) mutate(ctx context.Context, id uint64, fn transition) (campaign.Campaign, error) {
	if err := r.ready(); err != nil {
		return campaign.Campaign{}, err
	}
	now := r.now()
	var updated campaign.Campaign
	err := r.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		current, err := settlement.LoadCampaign(ctx, tx, id)
		if err != nil {
			return err
		}
		next, evt, err := fn(current, now)
		if err != nil {
			return err
		}
		if err := tx.PutCampaign(ctx, next); err != nil {
			return err
		}
		if _, err := tx.AppendEvent(ctx, evt); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return campaign.Campaign{}, err
	}
	return updated, nil
}

func (r *Registry) load(ctx context.Context, id uint64) (campaign.Campaign, error) {
	if err := r.ready(); err != nil {
		return campaign.Campaign{}, err
	}
	var c campaign.Campaign
	err := r.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		c, err = settlement.LoadCampaign(ctx, tx, id)
		return err
	})
	if err != nil {
		return campaign.Campaign{}, err
	}
	return c, nil
}

func (r *Registry) ready() error {
	if r == nil || r.store == nil {
		return fmt.Errorf("campaign store is not configured")
	}
	return nil
}

func (r *Registry) now() ledger.Timestamp {
	return ledger.FromTime(r.clock())
}

func appendEvent(ctx context.Context, tx storage.EventStore, eventType event.Type, campaignID uint64, actor ledger.AccountID, now ledger.Timestamp, opts ...event.Option) error {
	evt, err := event.New(eventType, campaignID, actor, now, opts...)
	if err != nil {
		return err
	}
	if _, err := tx.AppendEvent(ctx, evt); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}
