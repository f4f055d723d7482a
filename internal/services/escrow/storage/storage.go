// Package storage defines persistence contracts for escrow state.
//
// Every state-changing escrow call runs inside Store.Atomic. Either all of
// the writes issued through the Tx become visible, or none do. Calls are
// serialized: no two Atomic units overlap.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/escrow/internal/services/escrow/domain/campaign"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/event"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/withdrawal"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// CampaignStore persists campaigns and the registry id counter.
type CampaignStore interface {
	// NextCampaignID allocates the next id from a monotonic counter. The
	// allocation commits or rolls back with the enclosing unit.
	NextCampaignID(ctx context.Context) (uint64, error)
	PutCampaign(ctx context.Context, c campaign.Campaign) error
	GetCampaign(ctx context.Context, id uint64) (campaign.Campaign, error)
	// ListCampaigns returns every campaign ordered by id.
	ListCampaigns(ctx context.Context) ([]campaign.Campaign, error)
}

// WithdrawalStore persists pending-transfer records.
type WithdrawalStore interface {
	PutWithdrawal(ctx context.Context, w withdrawal.Withdrawal) error
	GetWithdrawal(ctx context.Context, id string) (withdrawal.Withdrawal, error)
	// ListWithdrawals returns a campaign's withdrawals oldest first.
	ListWithdrawals(ctx context.Context, campaignID uint64) ([]withdrawal.Withdrawal, error)
}

// RefundStore persists refund records.
type RefundStore interface {
	PutRefund(ctx context.Context, r withdrawal.Refund) error
	GetRefund(ctx context.Context, id string) (withdrawal.Refund, error)
}

// EventStore persists the campaign journal.
type EventStore interface {
	// AppendEvent stores evt and returns it with its assigned sequence.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents returns up to limit events for campaignID with Seq > afterSeq.
	ListEvents(ctx context.Context, campaignID uint64, afterSeq uint64, limit int) ([]event.Event, error)
}

// Tx is the view of storage available inside one atomic unit.
type Tx interface {
	CampaignStore
	WithdrawalStore
	RefundStore
	EventStore
}

// Store runs atomic units and serves read-only operational queries.
type Store interface {
	// Atomic runs fn in a single serialized unit. A non-nil return from fn
	// discards every write made through tx.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ListPendingWithdrawals returns pending withdrawals requested at or
	// before the given time, oldest first.
	ListPendingWithdrawals(ctx context.Context, requestedBefore ledger.Timestamp) ([]withdrawal.Withdrawal, error)
	// ListRequestedRefunds returns refunds without a delivery outcome
	// requested at or before the given time, oldest first.
	ListRequestedRefunds(ctx context.Context, requestedBefore ledger.Timestamp) ([]withdrawal.Refund, error)
	Close() error
}
