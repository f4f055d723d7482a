package campaign

import (
	apperrors "github.com/louisbranch/escrow/internal/platform/errors"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
)

var (
	// ErrInvalidGoal indicates a zero funding goal.
	ErrInvalidGoal = apperrors.New(apperrors.CodeInvalidAmount, "funding goal must be positive")
	// ErrInvalidDuration indicates a non-positive campaign duration.
	ErrInvalidDuration = apperrors.New(apperrors.CodeInvalidDuration, "duration must be positive")
	// ErrInvalidAmount indicates a zero contribution or withdrawal amount.
	ErrInvalidAmount = apperrors.New(apperrors.CodeInvalidAmount, "amount must be positive")
	// ErrOwnerMissing indicates a create call without an identity.
	ErrOwnerMissing = apperrors.New(apperrors.CodeCallerMissing, "campaign owner is required")
	// ErrNotOwner indicates a call that only the owner may make.
	ErrNotOwner = apperrors.New(apperrors.CodeUnauthorized, "caller is not the campaign owner")
	// ErrOwnerContribution indicates the owner tried to pledge to their own campaign.
	ErrOwnerContribution = apperrors.New(apperrors.CodeUnauthorized, "owner cannot contribute to own campaign")
	// ErrOwnerRefund indicates the owner tried to refund from their own campaign.
	ErrOwnerRefund = apperrors.New(apperrors.CodeUnauthorized, "owner cannot refund from own campaign")
	// ErrDeadlinePassed indicates a contribution after the deadline.
	ErrDeadlinePassed = apperrors.New(apperrors.CodeDeadlinePassed, "campaign deadline has passed")
	// ErrDeadlineNotPassed indicates a refund before the deadline.
	ErrDeadlineNotPassed = apperrors.New(apperrors.CodeDeadlineNotPassed, "campaign deadline has not passed")
	// ErrGoalMet indicates a refund on a campaign that reached its goal.
	ErrGoalMet = apperrors.New(apperrors.CodeGoalMet, "campaign reached its funding goal")
	// ErrNoContribution indicates a refund by an account with no entry.
	ErrNoContribution = apperrors.New(apperrors.CodeNoContribution, "no contribution to refund")
)

func errStatusDisallows(status Status, op string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidState, "campaign is "+string(status)+"; "+op+" not allowed", map[string]string{
		"Status":    string(status),
		"Operation": op,
	})
}

// ErrInsufficientFunds reports a withdrawal above what is available.
func ErrInsufficientFunds(requested, available ledger.Amount) error {
	return apperrors.WithMetadata(apperrors.CodeInsufficientFunds, "requested "+requested.String()+" exceeds available "+available.String(), map[string]string{
		"Requested": requested.String(),
		"Available": available.String(),
	})
}
