// Package escrowfakes provides in-memory collaborators for escrow tests.
package escrowfakes

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/louisbranch/escrow/internal/services/escrow/domain/campaign"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/event"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/withdrawal"
	"github.com/louisbranch/escrow/internal/services/escrow/storage"
)

// Store is an in-memory storage.Store. Each Atomic unit works on a copy of
// the state that replaces the shared state only when fn returns nil.
type Store struct {
	mu    sync.Mutex
	state memState

	// AtomicErr, when set, fails the next Atomic call before fn runs.
	AtomicErr error
	// Units counts committed Atomic units.
	Units int
}

type memState struct {
	nextID      uint64
	campaigns   map[uint64]campaign.Campaign
	withdrawals map[string]withdrawal.Withdrawal
	refunds     map[string]withdrawal.Refund
	events      []event.Event
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{state: memState{
		campaigns:   make(map[uint64]campaign.Campaign),
		withdrawals: make(map[string]withdrawal.Withdrawal),
		refunds:     make(map[string]withdrawal.Refund),
	}}
}

func (s memState) clone() memState {
	out := memState{
		nextID:      s.nextID,
		campaigns:   make(map[uint64]campaign.Campaign, len(s.campaigns)),
		withdrawals: maps.Clone(s.withdrawals),
		refunds:     maps.Clone(s.refunds),
		events:      slices.Clone(s.events),
	}
	for id, c := range s.campaigns {
		out.campaigns[id] = c.Clone()
	}
	return out
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AtomicErr != nil {
		err := s.AtomicErr
		s.AtomicErr = nil
		return err
	}
	work := &memTx{state: s.state.clone()}
	if err := fn(ctx, work); err != nil {
		return err
	}
	s.state = work.state
	s.Units++
	return nil
}

func (s *Store) ListPendingWithdrawals(_ context.Context, requestedBefore ledger.Timestamp) ([]withdrawal.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []withdrawal.Withdrawal
	for _, w := range s.state.withdrawals {
		if w.Status == withdrawal.StatusPending && !w.RequestedAt.After(requestedBefore) {
			out = append(out, w)
		}
	}
	sortWithdrawals(out)
	return out, nil
}

// ListRequestedRefunds returns committed refunds still awaiting delivery.
func (s *Store) ListRequestedRefunds(_ context.Context, requestedBefore ledger.Timestamp) ([]withdrawal.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []withdrawal.Refund
	for _, r := range s.state.refunds {
		if r.Status == withdrawal.RefundRequested && !r.RequestedAt.After(requestedBefore) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b withdrawal.Refund) int {
		if c := cmp.Compare(a.RequestedAt, b.RequestedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) Close() error { return nil }

// Campaign returns the committed campaign with id.
func (s *Store) Campaign(id uint64) (campaign.Campaign, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.campaigns[id]
	if !ok {
		return campaign.Campaign{}, false
	}
	return c.Clone(), true
}

// PutCampaign seeds a committed campaign directly.
func (s *Store) PutCampaign(c campaign.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.campaigns[c.ID] = c.Clone()
	if c.ID >= s.state.nextID {
		s.state.nextID = c.ID + 1
	}
}

// Withdrawal returns the committed withdrawal with id.
func (s *Store) Withdrawal(id string) (withdrawal.Withdrawal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.state.withdrawals[id]
	return w, ok
}

// Refund returns the committed refund with id.
func (s *Store) Refund(id string) (withdrawal.Refund, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.state.refunds[id]
	return r, ok
}

// EventTypes lists the committed journal types for a campaign in order.
func (s *Store) EventTypes(campaignID uint64) []event.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Type
	for _, evt := range s.state.events {
		if evt.CampaignID == campaignID {
			out = append(out, evt.Type)
		}
	}
	return out
}

type memTx struct {
	state memState
}

func (t *memTx) NextCampaignID(context.Context) (uint64, error) {
	id := t.state.nextID
	t.state.nextID++
	return id, nil
}

func (t *memTx) PutCampaign(_ context.Context, c campaign.Campaign) error {
	if c.Owner.IsZero() {
		return errors.New("campaign owner is required")
	}
	t.state.campaigns[c.ID] = c.Clone()
	return nil
}

func (t *memTx) GetCampaign(_ context.Context, id uint64) (campaign.Campaign, error) {
	c, ok := t.state.campaigns[id]
	if !ok {
		return campaign.Campaign{}, storage.ErrNotFound
	}
	return c.Clone(), nil
}

func (t *memTx) ListCampaigns(context.Context) ([]campaign.Campaign, error) {
	ids := slices.Sorted(maps.Keys(t.state.campaigns))
	out := make([]campaign.Campaign, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.state.campaigns[id].Clone())
	}
	return out, nil
}

func (t *memTx) PutWithdrawal(_ context.Context, w withdrawal.Withdrawal) error {
	if strings.TrimSpace(w.ID) == "" {
		return errors.New("withdrawal id is required")
	}
	t.state.withdrawals[w.ID] = w
	return nil
}

func (t *memTx) GetWithdrawal(_ context.Context, id string) (withdrawal.Withdrawal, error) {
	w, ok := t.state.withdrawals[id]
	if !ok {
		return withdrawal.Withdrawal{}, storage.ErrNotFound
	}
	return w, nil
}

func (t *memTx) ListWithdrawals(_ context.Context, campaignID uint64) ([]withdrawal.Withdrawal, error) {
	var out []withdrawal.Withdrawal
	for _, w := range t.state.withdrawals {
		if w.CampaignID == campaignID {
			out = append(out, w)
		}
	}
	sortWithdrawals(out)
	return out, nil
}

func (t *memTx) PutRefund(_ context.Context, r withdrawal.Refund) error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("refund id is required")
	}
	t.state.refunds[r.ID] = r
	return nil
}

func (t *memTx) GetRefund(_ context.Context, id string) (withdrawal.Refund, error) {
	r, ok := t.state.refunds[id]
	if !ok {
		return withdrawal.Refund{}, storage.ErrNotFound
	}
	return r, nil
}

func (t *memTx) AppendEvent(_ context.Context, evt event.Event) (event.Event, error) {
	evt.Seq = uint64(len(t.state.events) + 1)
	t.state.events = append(t.state.events, evt)
	return evt, nil
}

func (t *memTx) ListEvents(_ context.Context, campaignID uint64, afterSeq uint64, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []event.Event
	for _, evt := range t.state.events {
		if evt.CampaignID != campaignID || evt.Seq <= afterSeq {
			continue
		}
		out = append(out, evt)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func sortWithdrawals(list []withdrawal.Withdrawal) {
	slices.SortFunc(list, func(a, b withdrawal.Withdrawal) int {
		switch {
		case a.RequestedAt < b.RequestedAt:
			return -1
		case a.RequestedAt > b.RequestedAt:
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
}

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*memTx)(nil)
)
