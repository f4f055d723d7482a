package registry

import (
	"context"

	"github.com/louisbranch/escrow/internal/services/escrow/domain/campaign"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
)

// Owner returns the campaign owner.
func (r *Registry) Owner(ctx context.Context, id uint64) (ledger.AccountID, error) {
	c, err := r.load(ctx, id)
	if err != nil {
		return "", err
	}
	return c.Owner, nil
}

// FundingGoal returns the campaign goal.
func (r *Registry) FundingGoal(ctx context.Context, id uint64) (ledger.Amount, error) {
	c, err := r.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return c.FundingGoal, nil
}

// TotalFunds returns the funds currently held in escrow.
func (r *Registry) TotalFunds(ctx context.Context, id uint64) (ledger.Amount, error) {
	c, err := r.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return c.TotalFunds, nil
}

// Contributions returns the contribution ledger sorted by account.
func (r *Registry) Contributions(ctx context.Context, id uint64) ([]campaign.Contribution, error) {
	c, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return campaign.SortedContributions(c), nil
}

// TotalContributors counts accounts with a live contribution.
func (r *Registry) TotalContributors(ctx context.Context, id uint64) (uint64, error) {
	c, err := r.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return uint64(len(c.Contributions)), nil
}

// Deadline returns the campaign deadline.
func (r *Registry) Deadline(ctx context.Context, id uint64) (ledger.Timestamp, error) {
	c, err := r.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return c.Deadline, nil
}

// IsCompleted reports whether the campaign was finalized.
func (r *Registry) IsCompleted(ctx context.Context, id uint64) (bool, error) {
	c, err := r.load(ctx, id)
	if err != nil {
		return false, err
	}
	return c.IsCompleted(), nil
}

// ImageURL returns the campaign image.
func (r *Registry) ImageURL(ctx context.Context, id uint64) (string, error) {
	c, err := r.load(ctx, id)
	if err != nil {
		return "", err
	}
	return c.ImageURL, nil
}

// Details returns the compact campaign summary.
func (r *Registry) Details(ctx context.Context, id uint64) (campaign.Details, error) {
	c, err := r.load(ctx, id)
	if err != nil {
		return campaign.Details{}, err
	}
	return campaign.NewDetails(c), nil
}
