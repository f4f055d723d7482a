// Package jobs runs periodic read-only checks over escrow state.
//
// Jobs never mutate funds. A pending withdrawal or requested refund stays
// that way until its transfer outcome arrives; the scan only makes long waits
// visible.
package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/withdrawal"
)

// PendingLister reads transfers still waiting on an outcome.
type PendingLister interface {
	ListPendingWithdrawals(ctx context.Context, requestedBefore ledger.Timestamp) ([]withdrawal.Withdrawal, error)
	ListRequestedRefunds(ctx context.Context, requestedBefore ledger.Timestamp) ([]withdrawal.Refund, error)
}

// StaleTransfers is what one scan found.
type StaleTransfers struct {
	Withdrawals []withdrawal.Withdrawal
	Refunds     []withdrawal.Refund
}

// Len counts stale transfers of both kinds.
func (s StaleTransfers) Len() int {
	return len(s.Withdrawals) + len(s.Refunds)
}

// StaleTransferScan reports transfers waiting for longer than staleAfter.
type StaleTransferScan struct {
	store      PendingLister
	staleAfter time.Duration
	clock      func() time.Time
	logger     *zap.Logger
}

// ScanOption configures a StaleTransferScan.
type ScanOption func(*StaleTransferScan)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) ScanOption {
	return func(j *StaleTransferScan) {
		if clock != nil {
			j.clock = clock
		}
	}
}

// WithLogger sets the logger that receives stale transfer reports.
func WithLogger(logger *zap.Logger) ScanOption {
	return func(j *StaleTransferScan) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// NewStaleTransferScan builds the scan.
func NewStaleTransferScan(store PendingLister, staleAfter time.Duration, opts ...ScanOption) *StaleTransferScan {
	j := &StaleTransferScan{
		store:      store,
		staleAfter: staleAfter,
		clock:      time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Name identifies the job in the scheduler.
func (j *StaleTransferScan) Name() string {
	return "stale_transfer_scan"
}

// Run lists stale withdrawals and refunds, logs each one, and returns them.
func (j *StaleTransferScan) Run(ctx context.Context) (StaleTransfers, error) {
	now := j.clock()
	cutoff := ledger.FromTime(now.Add(-j.staleAfter))
	withdrawals, err := j.store.ListPendingWithdrawals(ctx, cutoff)
	if err != nil {
		return StaleTransfers{}, fmt.Errorf("list pending withdrawals: %w", err)
	}
	refunds, err := j.store.ListRequestedRefunds(ctx, cutoff)
	if err != nil {
		return StaleTransfers{}, fmt.Errorf("list requested refunds: %w", err)
	}
	for _, w := range withdrawals {
		j.logger.Warn("withdrawal transfer still pending",
			zap.String("withdrawal_id", w.ID),
			zap.Uint64("campaign_id", w.CampaignID),
			zap.Stringer("amount", w.Amount),
			zap.Bool("reserved", w.Reserved),
			zap.Duration("pending_for", now.Sub(w.RequestedAt.Time())),
		)
	}
	for _, r := range refunds {
		j.logger.Warn("refund transfer still undelivered",
			zap.String("refund_id", r.ID),
			zap.Uint64("campaign_id", r.CampaignID),
			zap.String("account", r.Account.String()),
			zap.Stringer("amount", r.Amount),
			zap.Duration("pending_for", now.Sub(r.RequestedAt.Time())),
		)
	}
	stale := StaleTransfers{Withdrawals: withdrawals, Refunds: refunds}
	j.logger.Debug("stale transfer scan finished", zap.Int("stale", stale.Len()))
	return stale, nil
}
