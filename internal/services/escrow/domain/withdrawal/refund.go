package withdrawal

import (
	"strings"

	apperrors "github.com/louisbranch/escrow/internal/platform/errors"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
)

// RefundStatus tracks delivery of a refund transfer. The campaign ledger is
// already adjusted by the time a refund record exists.
type RefundStatus string

const (
	RefundRequested RefundStatus = "requested"
	RefundDelivered RefundStatus = "delivered"
	RefundFailed    RefundStatus = "failed"
)

// Refund records a contribution returned to its account.
type Refund struct {
	ID            string
	CampaignID    uint64
	Account       ledger.AccountID
	Amount        ledger.Amount
	Status        RefundStatus
	RequestedAt   ledger.Timestamp
	ResolvedAt    ledger.Timestamp
	FailureReason string
}

// NewRefund builds the record for a refund that was just applied.
func NewRefund(id string, campaignID uint64, account ledger.AccountID, amount ledger.Amount, now ledger.Timestamp) Refund {
	return Refund{
		ID:          strings.TrimSpace(id),
		CampaignID:  campaignID,
		Account:     account,
		Amount:      amount,
		Status:      RefundRequested,
		RequestedAt: now,
	}
}

// Resolve marks the refund delivered or failed.
func (r Refund) Resolve(success bool, reason string, now ledger.Timestamp) (Refund, error) {
	if r.Status != RefundRequested {
		return Refund{}, apperrors.WithMetadata(apperrors.CodeInvalidState, "refund "+r.ID+" is already "+string(r.Status), map[string]string{
			"Status":    string(r.Status),
			"Operation": "confirm refund",
		})
	}
	r.ResolvedAt = now
	if success {
		r.Status = RefundDelivered
		return r, nil
	}
	r.Status = RefundFailed
	r.FailureReason = strings.TrimSpace(reason)
	return r, nil
}
