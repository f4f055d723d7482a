// Package event defines the campaign journal. Every accepted state change
// appends one event in the same storage unit as the change itself, so the
// journal and the campaign row never disagree.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
)

// Type names a journal entry.
type Type string

const (
	TypeCampaignCreated   Type = "campaign.created"
	TypeContributed       Type = "campaign.contributed"
	TypeCampaignFinalized Type = "campaign.finalized"
	TypeImageURLSet       Type = "campaign.image_url_set"

	TypeWithdrawalRequested Type = "withdrawal.requested"
	TypeWithdrawalSettled   Type = "withdrawal.settled"
	TypeWithdrawalFailed    Type = "withdrawal.failed"

	TypeRefundRequested Type = "refund.requested"
	TypeRefundDelivered Type = "refund.delivered"
	TypeRefundFailed    Type = "refund.failed"
)

// Event is one journal entry. Seq is assigned by storage on append.
type Event struct {
	Seq         uint64           `json:"seq"`
	CampaignID  uint64           `json:"campaign_id"`
	Type        Type             `json:"type"`
	ActorID     ledger.AccountID `json:"actor_id,omitempty"`
	Amount      ledger.Amount    `json:"amount"`
	TransferID  string           `json:"transfer_id,omitempty"`
	PayloadJSON json.RawMessage  `json:"payload,omitempty"`
	RecordedAt  ledger.Timestamp `json:"recorded_at"`
}

// Option customizes an event built by New.
type Option func(*Event) error

// WithAmount records the amount moved by the change.
func WithAmount(amount ledger.Amount) Option {
	return func(e *Event) error {
		e.Amount = amount
		return nil
	}
}

// WithTransfer links the event to a withdrawal or refund record.
func WithTransfer(id string) Option {
	return func(e *Event) error {
		e.TransferID = id
		return nil
	}
}

// WithPayload attaches payload encoded as JSON.
func WithPayload(payload any) Option {
	return func(e *Event) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		e.PayloadJSON = data
		return nil
	}
}

// New builds an event for campaignID performed by actor at now.
func New(eventType Type, campaignID uint64, actor ledger.AccountID, now ledger.Timestamp, opts ...Option) (Event, error) {
	evt := Event{
		CampaignID: campaignID,
		Type:       eventType,
		ActorID:    actor,
		RecordedAt: now,
	}
	for _, opt := range opts {
		if err := opt(&evt); err != nil {
			return Event{}, fmt.Errorf("build %s event: %w", eventType, err)
		}
	}
	return evt, nil
}
