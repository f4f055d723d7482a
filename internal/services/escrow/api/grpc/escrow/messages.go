package escrow

import (
	"github.com/louisbranch/escrow/internal/services/escrow/domain/campaign"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/event"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/withdrawal"
)

// Amounts travel as decimal strings; ledger.Amount implements the text
// marshalers, so uint64 values never lose precision in JSON clients.

type CreateCampaignRequest struct {
	Name            string        `json:"name"`
	FundingGoal     ledger.Amount `json:"funding_goal"`
	DurationSeconds int64         `json:"duration_seconds"`
}

type CreateCampaignResponse struct {
	CampaignID uint64 `json:"campaign_id"`
}

type CampaignRequest struct {
	CampaignID uint64 `json:"campaign_id"`
}

type CampaignResponse struct {
	Campaign campaign.Snapshot `json:"campaign"`
}

type ListCampaignsRequest struct{}

type ListCampaignsResponse struct {
	Campaigns []campaign.Snapshot `json:"campaigns"`
}

type CampaignDetailsResponse struct {
	Details campaign.Details `json:"details"`
}

type ContributionsResponse struct {
	Contributions     []campaign.Contribution `json:"contributions"`
	TotalContributors uint64                  `json:"total_contributors"`
}

type ContributeRequest struct {
	CampaignID uint64        `json:"campaign_id"`
	Amount     ledger.Amount `json:"amount"`
}

type RequestWithdrawalRequest struct {
	CampaignID uint64 `json:"campaign_id"`
	// Amount defaults to all available funds when omitted.
	Amount *ledger.Amount `json:"amount,omitempty"`
}

type WithdrawalResponse struct {
	Withdrawal Withdrawal `json:"withdrawal"`
}

type ExcessFundsResponse struct {
	ExcessFunds ledger.Amount `json:"excess_funds"`
}

type RefundResponse struct {
	Refund Refund `json:"refund"`
}

type SetImageURLRequest struct {
	CampaignID uint64 `json:"campaign_id"`
	ImageURL   string `json:"image_url"`
}

type ListCampaignEventsRequest struct {
	CampaignID uint64 `json:"campaign_id"`
	AfterSeq   uint64 `json:"after_seq"`
	Limit      int    `json:"limit"`
}

type ListCampaignEventsResponse struct {
	Events []event.Event `json:"events"`
	// NextAfterSeq is the cursor for the following page; zero when the page
	// was empty.
	NextAfterSeq uint64 `json:"next_after_seq"`
}

type ListWithdrawalsResponse struct {
	Withdrawals []Withdrawal `json:"withdrawals"`
}

// Withdrawal is the wire form of a withdrawal record.
type Withdrawal struct {
	ID            string            `json:"withdrawal_id"`
	CampaignID    uint64            `json:"campaign_id"`
	Owner         ledger.AccountID  `json:"owner"`
	Amount        ledger.Amount     `json:"amount"`
	Reserved      bool              `json:"reserved"`
	Status        withdrawal.Status `json:"status"`
	RequestedAt   ledger.Timestamp  `json:"requested_at"`
	ResolvedAt    ledger.Timestamp  `json:"resolved_at,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
}

// Refund is the wire form of a refund record.
type Refund struct {
	ID            string                  `json:"refund_id"`
	CampaignID    uint64                  `json:"campaign_id"`
	Account       ledger.AccountID        `json:"account"`
	Amount        ledger.Amount           `json:"amount"`
	Status        withdrawal.RefundStatus `json:"status"`
	RequestedAt   ledger.Timestamp        `json:"requested_at"`
	ResolvedAt    ledger.Timestamp        `json:"resolved_at,omitempty"`
	FailureReason string                  `json:"failure_reason,omitempty"`
}

func withdrawalToWire(w withdrawal.Withdrawal) Withdrawal {
	return Withdrawal{
		ID:            w.ID,
		CampaignID:    w.CampaignID,
		Owner:         w.Owner,
		Amount:        w.Amount,
		Reserved:      w.Reserved,
		Status:        w.Status,
		RequestedAt:   w.RequestedAt,
		ResolvedAt:    w.ResolvedAt,
		FailureReason: w.FailureReason,
	}
}

func refundToWire(r withdrawal.Refund) Refund {
	return Refund{
		ID:            r.ID,
		CampaignID:    r.CampaignID,
		Account:       r.Account,
		Amount:        r.Amount,
		Status:        r.Status,
		RequestedAt:   r.RequestedAt,
		ResolvedAt:    r.ResolvedAt,
		FailureReason: r.FailureReason,
	}
}
