// Package withdrawal models funds leaving escrow: owner withdrawals, which
// settle in two phases, and contributor refunds.
//
// A withdrawal is authorized against the campaign and persisted as a pending
// record before any transfer is attempted. The campaign's TotalFunds only
// drops when the transfer primitive confirms success. Until then the amount
// may be held in the campaign's ReservedFunds so later requests cannot
// promise the same balance twice.
package withdrawal

import (
	"strings"

	apperrors "github.com/louisbranch/escrow/internal/platform/errors"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/campaign"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
)

// Status tracks the settlement phase of a withdrawal.
type Status string

const (
	StatusPending Status = "pending"
	StatusSettled Status = "settled"
	StatusFailed  Status = "failed"
)

// Withdrawal is the pending-transfer record stored alongside the campaign.
type Withdrawal struct {
	ID         string
	CampaignID uint64
	Owner      ledger.AccountID
	Amount     ledger.Amount
	// Reserved records whether Amount was added to the campaign's
	// ReservedFunds at request time.
	Reserved      bool
	Status        Status
	RequestedAt   ledger.Timestamp
	ResolvedAt    ledger.Timestamp
	FailureReason string
}

// Policy selects how overlapping withdrawal requests are authorized.
type Policy struct {
	// ReserveInFlight subtracts unconfirmed withdrawals from the balance
	// available to new requests. When false, every request is checked
	// against TotalFunds alone and overlapping requests may jointly exceed
	// the balance.
	ReserveInFlight bool
}

// Available returns the balance a new withdrawal may draw on.
func (p Policy) Available(c campaign.Campaign) ledger.Amount {
	if p.ReserveInFlight {
		return c.TotalFunds.Sub(c.ReservedFunds)
	}
	return c.TotalFunds
}

// Authorize checks a withdrawal request and resolves its amount. A nil
// requested amount means everything available.
//
// Checks run in a fixed order: completed, owner, amount.
func (p Policy) Authorize(c campaign.Campaign, caller ledger.AccountID, requested *ledger.Amount) (ledger.Amount, error) {
	if !c.IsCompleted() {
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidState, "campaign is not completed; withdraw not allowed", map[string]string{
			"Status":    string(c.Status),
			"Operation": "withdraw",
		})
	}
	if caller != c.Owner {
		return 0, campaign.ErrNotOwner
	}
	available := p.Available(c)
	amount := available
	if requested != nil {
		amount = *requested
	}
	if amount > available {
		return 0, campaign.ErrInsufficientFunds(amount, available)
	}
	if amount.IsZero() {
		return 0, campaign.ErrInvalidAmount
	}
	return amount, nil
}

// New builds the pending record for an authorized request.
func New(id string, c campaign.Campaign, amount ledger.Amount, reserved bool, now ledger.Timestamp) Withdrawal {
	return Withdrawal{
		ID:          strings.TrimSpace(id),
		CampaignID:  c.ID,
		Owner:       c.Owner,
		Amount:      amount,
		Reserved:    reserved,
		Status:      StatusPending,
		RequestedAt: now,
	}
}

// Reserve holds w.Amount on the campaign when the record asks for it.
func Reserve(c campaign.Campaign, w Withdrawal) campaign.Campaign {
	if !w.Reserved {
		return c
	}
	updated := c.Clone()
	updated.ReservedFunds = updated.ReservedFunds.Add(w.Amount)
	return updated
}

// Settle applies a successful transfer: TotalFunds drops by the withdrawn
// amount and any reservation is released.
func Settle(c campaign.Campaign, w Withdrawal, now ledger.Timestamp) (campaign.Campaign, Withdrawal, error) {
	if err := requirePending(w); err != nil {
		return campaign.Campaign{}, Withdrawal{}, err
	}
	updated := release(c, w)
	updated.TotalFunds = updated.TotalFunds.Sub(w.Amount)

	w.Status = StatusSettled
	w.ResolvedAt = now
	return updated, w, nil
}

// Fail applies an unsuccessful transfer: TotalFunds is untouched and any
// reservation is released so the owner can request again.
func Fail(c campaign.Campaign, w Withdrawal, reason string, now ledger.Timestamp) (campaign.Campaign, Withdrawal, error) {
	if err := requirePending(w); err != nil {
		return campaign.Campaign{}, Withdrawal{}, err
	}
	updated := release(c, w)

	w.Status = StatusFailed
	w.ResolvedAt = now
	w.FailureReason = strings.TrimSpace(reason)
	return updated, w, nil
}

func release(c campaign.Campaign, w Withdrawal) campaign.Campaign {
	updated := c.Clone()
	if w.Reserved {
		updated.ReservedFunds = updated.ReservedFunds.Sub(w.Amount)
	}
	return updated
}

func requirePending(w Withdrawal) error {
	if w.Status == StatusPending {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeInvalidState, "withdrawal "+w.ID+" is already "+string(w.Status), map[string]string{
		"Status":       string(w.Status),
		"Operation":    "confirm withdrawal",
		"WithdrawalID": w.ID,
	})
}
