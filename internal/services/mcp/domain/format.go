package domain

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	escrowservice "github.com/louisbranch/escrow/internal/services/escrow/api/grpc/escrow"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/campaign"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
)

// Formatter renders amounts and summaries for one locale.
type Formatter struct {
	locale  string
	printer *message.Printer
}

// NewFormatter returns a formatter for a BCP 47 locale. Unknown or empty
// locales render as en-US.
func NewFormatter(locale string) Formatter {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil || tag == language.Und {
		tag = language.AmericanEnglish
	}
	return Formatter{locale: tag.String(), printer: message.NewPrinter(tag)}
}

// Locale returns the BCP 47 tag the formatter renders with.
func (f Formatter) Locale() string {
	if f.printer == nil {
		return language.AmericanEnglish.String()
	}
	return f.locale
}

// Amount renders an amount with locale digit grouping.
func (f Formatter) Amount(amount ledger.Amount) string {
	return f.p().Sprintf("%d", uint64(amount))
}

func (f Formatter) p() *message.Printer {
	if f.printer == nil {
		return message.NewPrinter(language.AmericanEnglish)
	}
	return f.printer
}

func (f Formatter) campaignResult(snapshot campaign.Snapshot) CampaignResult {
	summary := f.p().Sprintf("%s has raised %s of %s", snapshot.Name, f.Amount(snapshot.TotalFunds), f.Amount(snapshot.FundingGoal))
	if snapshot.ReservedFunds > 0 {
		summary += f.p().Sprintf(" (%s reserved for withdrawals)", f.Amount(snapshot.ReservedFunds))
	}
	return CampaignResult{
		ID:            snapshot.ID,
		Name:          snapshot.Name,
		Owner:         snapshot.Owner.String(),
		ImageURL:      snapshot.ImageURL,
		FundingGoal:   snapshot.FundingGoal.String(),
		TotalFunds:    snapshot.TotalFunds.String(),
		ReservedFunds: snapshot.ReservedFunds.String(),
		Contributors:  len(snapshot.Contributions),
		Status:        string(snapshot.Status),
		Deadline:      formatTimestamp(snapshot.Deadline),
		CreatedAt:     formatTimestamp(snapshot.CreatedAt),
		Summary:       summary,
	}
}

func (f Formatter) withdrawalResult(w escrowservice.Withdrawal) WithdrawalResult {
	return WithdrawalResult{
		ID:            w.ID,
		CampaignID:    w.CampaignID,
		Amount:        w.Amount.String(),
		Reserved:      w.Reserved,
		Status:        string(w.Status),
		FailureReason: w.FailureReason,
		Summary:       f.p().Sprintf("withdrawal of %s to %s is %s", f.Amount(w.Amount), w.Owner.String(), string(w.Status)),
	}
}

func (f Formatter) refundResult(r escrowservice.Refund) RefundResult {
	return RefundResult{
		ID:         r.ID,
		CampaignID: r.CampaignID,
		Account:    r.Account.String(),
		Amount:     r.Amount.String(),
		Status:     string(r.Status),
		Summary:    f.p().Sprintf("refund of %s to %s is %s", f.Amount(r.Amount), r.Account.String(), string(r.Status)),
	}
}

// formatTimestamp returns an RFC3339 timestamp or empty string.
func formatTimestamp(ts ledger.Timestamp) string {
	if ts == 0 {
		return ""
	}
	return ts.Time().Format(time.RFC3339)
}
