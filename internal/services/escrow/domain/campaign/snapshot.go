package campaign

import (
	"cmp"
	"slices"

	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
)

// Contribution is one flattened (account, amount) pair.
type Contribution struct {
	Account ledger.AccountID `json:"account"`
	Amount  ledger.Amount    `json:"amount"`
}

// Snapshot is the read model returned to callers. It is built on demand
// from a Campaign and never stored.
type Snapshot struct {
	ID            uint64           `json:"campaign_id"`
	Name          string           `json:"name"`
	ImageURL      string           `json:"image_url"`
	Owner         ledger.AccountID `json:"owner"`
	FundingGoal   ledger.Amount    `json:"funding_goal"`
	TotalFunds    ledger.Amount    `json:"total_funds"`
	ReservedFunds ledger.Amount    `json:"reserved_funds"`
	Deadline      ledger.Timestamp `json:"deadline"`
	Status        Status           `json:"status"`
	Completed     bool             `json:"is_completed"`
	Contributions []Contribution   `json:"contributions"`
	CreatedAt     ledger.Timestamp `json:"created_at"`
}

// Details is the compact summary exposed by the details accessor.
type Details struct {
	Owner             ledger.AccountID `json:"owner"`
	Name              string           `json:"name"`
	FundingGoal       ledger.Amount    `json:"funding_goal"`
	TotalFunds        ledger.Amount    `json:"total_funds"`
	Deadline          ledger.Timestamp `json:"deadline"`
	TotalContributors uint64           `json:"total_contributors"`
	Completed         bool             `json:"is_completed"`
	ImageURL          string           `json:"image_url"`
}

// NewSnapshot projects c into its read model. Contributions are sorted by
// account so repeated reads are byte-identical.
func NewSnapshot(c Campaign) Snapshot {
	return Snapshot{
		ID:            c.ID,
		Name:          c.Name,
		ImageURL:      c.ImageURL,
		Owner:         c.Owner,
		FundingGoal:   c.FundingGoal,
		TotalFunds:    c.TotalFunds,
		ReservedFunds: c.ReservedFunds,
		Deadline:      c.Deadline,
		Status:        c.Status,
		Completed:     c.IsCompleted(),
		Contributions: SortedContributions(c),
		CreatedAt:     c.CreatedAt,
	}
}

// NewDetails projects c into its summary.
func NewDetails(c Campaign) Details {
	return Details{
		Owner:             c.Owner,
		Name:              c.Name,
		FundingGoal:       c.FundingGoal,
		TotalFunds:        c.TotalFunds,
		Deadline:          c.Deadline,
		TotalContributors: uint64(len(c.Contributions)),
		Completed:         c.IsCompleted(),
		ImageURL:          c.ImageURL,
	}
}

// SortedContributions flattens the contribution map ordered by account.
func SortedContributions(c Campaign) []Contribution {
	out := make([]Contribution, 0, len(c.Contributions))
	for account, amount := range c.Contributions {
		out = append(out, Contribution{Account: account, Amount: amount})
	}
	slices.SortFunc(out, func(a, b Contribution) int {
		return cmp.Compare(a.Account, b.Account)
	})
	return out
}
