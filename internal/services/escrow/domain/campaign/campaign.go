package campaign

import (
	"maps"
	"strings"

	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
)

// Campaign is the canonical stored state of one campaign.
type Campaign struct {
	ID          uint64
	Name        string
	ImageURL    string
	Owner       ledger.AccountID
	FundingGoal ledger.Amount
	TotalFunds  ledger.Amount
	// ReservedFunds is the sum of withdrawals requested but not yet
	// confirmed. It is always <= TotalFunds.
	ReservedFunds ledger.Amount
	Deadline      ledger.Timestamp
	Status        Status
	Contributions map[ledger.AccountID]ledger.Amount
	CreatedAt     ledger.Timestamp
	CompletedAt   ledger.Timestamp
}

// CreateInput describes the metadata needed to open a campaign.
type CreateInput struct {
	Name            string
	FundingGoal     ledger.Amount
	DurationSeconds int64
}

// Create validates input and returns a new active campaign owned by owner.
func Create(input CreateInput, id uint64, owner ledger.AccountID, now ledger.Timestamp) (Campaign, error) {
	if owner.IsZero() {
		return Campaign{}, ErrOwnerMissing
	}
	if input.FundingGoal.IsZero() {
		return Campaign{}, ErrInvalidGoal
	}
	if input.DurationSeconds <= 0 {
		return Campaign{}, ErrInvalidDuration
	}
	return Campaign{
		ID:            id,
		Name:          strings.TrimSpace(input.Name),
		Owner:         owner,
		FundingGoal:   input.FundingGoal,
		Deadline:      now.AddSeconds(input.DurationSeconds),
		Status:        StatusActive,
		Contributions: map[ledger.AccountID]ledger.Amount{},
		CreatedAt:     now,
	}, nil
}

// Clone returns a deep copy so transitions never alias the caller's map.
func (c Campaign) Clone() Campaign {
	out := c
	out.Contributions = make(map[ledger.AccountID]ledger.Amount, len(c.Contributions))
	maps.Copy(out.Contributions, c.Contributions)
	return out
}

// IsCompleted reports whether the campaign reached its terminal status.
func (c Campaign) IsCompleted() bool {
	return c.Status == StatusCompleted
}

// Contribute records amount pledged by caller.
//
// Checks run in a fixed order: completed, deadline, amount, owner.
func Contribute(c Campaign, caller ledger.AccountID, amount ledger.Amount, now ledger.Timestamp) (Campaign, error) {
	if c.Status != StatusActive {
		return Campaign{}, errStatusDisallows(c.Status, "contribute")
	}
	if now.After(c.Deadline) {
		return Campaign{}, ErrDeadlinePassed
	}
	if amount.IsZero() {
		return Campaign{}, ErrInvalidAmount
	}
	if caller == c.Owner {
		return Campaign{}, ErrOwnerContribution
	}

	updated := c.Clone()
	updated.TotalFunds = updated.TotalFunds.Add(amount)
	updated.Contributions[caller] = updated.Contributions[caller].Add(amount)
	return updated, nil
}

// Finalize moves the campaign to completed. Neither the goal nor the
// deadline is consulted.
func Finalize(c Campaign, caller ledger.AccountID, now ledger.Timestamp) (Campaign, error) {
	if caller != c.Owner {
		return Campaign{}, ErrNotOwner
	}
	if !IsStatusTransitionAllowed(c.Status, StatusCompleted) {
		return Campaign{}, errStatusDisallows(c.Status, "finalize")
	}

	updated := c.Clone()
	updated.Status = StatusCompleted
	updated.CompletedAt = now
	return updated, nil
}

// SetImageURL replaces the campaign image. Owner only.
func SetImageURL(c Campaign, caller ledger.AccountID, url string) (Campaign, error) {
	if caller != c.Owner {
		return Campaign{}, ErrNotOwner
	}
	updated := c.Clone()
	updated.ImageURL = strings.TrimSpace(url)
	return updated, nil
}

// ExcessFunds returns how far TotalFunds exceeds the goal, or zero.
func ExcessFunds(c Campaign) ledger.Amount {
	return c.TotalFunds.Sub(c.FundingGoal)
}

// Refund removes caller's contribution and returns the amount owed back.
// TotalFunds is reduced immediately, before any transfer is attempted.
//
// Checks run in a fixed order: completed, deadline, owner, goal, entry.
// While a withdrawal holds a reservation the refund must fit in the
// unreserved balance. Otherwise TotalFunds saturates at zero, so a
// contribution stays refundable after an earlier withdrawal settled.
func Refund(c Campaign, caller ledger.AccountID, now ledger.Timestamp) (Campaign, ledger.Amount, error) {
	if c.Status != StatusCompleted {
		return Campaign{}, 0, errStatusDisallows(c.Status, "refund")
	}
	if now.Before(c.Deadline) {
		return Campaign{}, 0, ErrDeadlineNotPassed
	}
	if caller == c.Owner {
		return Campaign{}, 0, ErrOwnerRefund
	}
	if c.TotalFunds >= c.FundingGoal {
		return Campaign{}, 0, ErrGoalMet
	}
	amount, ok := c.Contributions[caller]
	if !ok || amount.IsZero() {
		return Campaign{}, 0, ErrNoContribution
	}
	if !c.ReservedFunds.IsZero() {
		if available := c.TotalFunds.Sub(c.ReservedFunds); amount > available {
			return Campaign{}, 0, ErrInsufficientFunds(amount, available)
		}
	}

	updated := c.Clone()
	delete(updated.Contributions, caller)
	updated.TotalFunds = updated.TotalFunds.Sub(amount)
	return updated, amount, nil
}

// RestoreContribution undoes a Refund whose transfer could not be handed off.
func RestoreContribution(c Campaign, account ledger.AccountID, amount ledger.Amount) Campaign {
	updated := c.Clone()
	updated.Contributions[account] = updated.Contributions[account].Add(amount)
	updated.TotalFunds = updated.TotalFunds.Add(amount)
	return updated
}
