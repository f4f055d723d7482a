// Package transfer defines the value-transfer primitive escrow settles
// through. A Gateway accepts a request and executes it asynchronously; the
// outcome comes back later through a Reporter, in a separate invocation that
// carries no value of its own.
package transfer

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/louisbranch/escrow/internal/platform/errors"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
)

// Kind names what a transfer settles.
type Kind string

const (
	KindWithdrawal Kind = "withdrawal"
	KindRefund     Kind = "refund"
)

// ParseKind canonicalizes a wire label.
func ParseKind(value string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(KindWithdrawal):
		return KindWithdrawal, true
	case string(KindRefund):
		return KindRefund, true
	default:
		return "", false
	}
}

// Request asks for Amount to move from escrow to Destination. ID is the
// withdrawal or refund record id and doubles as the idempotency key.
type Request struct {
	ID          string           `json:"id"`
	Kind        Kind             `json:"kind"`
	CampaignID  uint64           `json:"campaign_id"`
	Destination ledger.AccountID `json:"destination"`
	Amount      ledger.Amount    `json:"amount"`
}

// Validate reports whether r can be submitted.
func (r Request) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "transfer id is required")
	}
	if _, ok := ParseKind(string(r.Kind)); !ok {
		return apperrors.WithMetadata(apperrors.CodeInvalidArgument, "unknown transfer kind", map[string]string{"Kind": string(r.Kind)})
	}
	if r.Destination.IsZero() {
		return apperrors.New(apperrors.CodeInvalidArgument, "transfer destination is required")
	}
	if r.Amount.IsZero() {
		return apperrors.New(apperrors.CodeInvalidAmount, "transfer amount must be positive")
	}
	return nil
}

// Outcome is the result of executing one transfer.
type Outcome struct {
	Success bool `json:"success"`
	// Reason explains a failure.
	Reason string `json:"reason,omitempty"`
	// Reference is the provider's identifier for the executed transfer.
	Reference string `json:"reference,omitempty"`
}

// Report carries the outcomes observed for a request. Well-behaved gateways
// send exactly one outcome.
type Report struct {
	Request  Request   `json:"request"`
	Outcomes []Outcome `json:"outcomes"`
}

// Gateway hands a request to the transfer primitive. A nil error means the
// request was accepted for asynchronous execution, not that it succeeded.
//
// A Submit error wrapped with Rejected guarantees the primitive never took
// the request. Any other error leaves the outcome unknown: the transfer may
// still execute and report back.
type Gateway interface {
	Submit(ctx context.Context, req Request) error
}

// RejectedError marks a submit the primitive definitely did not accept.
type RejectedError struct {
	Err error
}

func (e *RejectedError) Error() string {
	return "transfer rejected: " + e.Err.Error()
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// Rejected wraps err as a definite rejection. A nil err stays nil.
func Rejected(err error) error {
	if err == nil {
		return nil
	}
	return &RejectedError{Err: err}
}

// IsRejected reports whether err proves the request was never accepted.
func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}

// Reporter receives transfer outcomes.
type Reporter interface {
	Report(ctx context.Context, report Report) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, report Report) error

func (f ReporterFunc) Report(ctx context.Context, report Report) error {
	return f(ctx, report)
}
