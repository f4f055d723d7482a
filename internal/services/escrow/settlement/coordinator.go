// Package settlement moves escrowed funds out through the transfer
// primitive.
//
// A withdrawal runs in two phases. RequestWithdrawal authorizes the request,
// stores a pending record in one storage unit, and only then submits the
// transfer. ConfirmWithdrawal runs when the primitive reports back and is the
// only place TotalFunds drops for a withdrawal. Between the two phases other
// calls observe the campaign; ReserveInFlight decides whether they also see
// the amount already promised.
//
// Refunds adjust the ledger at request time and use the outcome only to
// track delivery.
//
// A submit error undoes the request only when the gateway proves the
// transfer was never accepted (transfer.Rejected). Any other error leaves the
// withdrawal pending or the refund requested, so a late outcome still applies
// and the stale transfer scan reports the wait.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/louisbranch/escrow/internal/platform/errors"
	"github.com/louisbranch/escrow/internal/platform/id"
	"github.com/louisbranch/escrow/internal/platform/timeouts"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/campaign"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/event"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/withdrawal"
	"github.com/louisbranch/escrow/internal/services/escrow/storage"
	"github.com/louisbranch/escrow/internal/services/escrow/transfer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/louisbranch/escrow/internal/services/escrow/settlement"

// Coordinator runs withdrawal and refund settlement.
type Coordinator struct {
	store         storage.Store
	gateway       transfer.Gateway
	policy        withdrawal.Policy
	clock         func() time.Time
	newID         id.Generator
	logger        *zap.Logger
	tracer        trace.Tracer
	submitTimeout time.Duration
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithPolicy selects how overlapping withdrawals are authorized.
func WithPolicy(policy withdrawal.Policy) Option {
	return func(c *Coordinator) { c.policy = policy }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithIDGenerator overrides how withdrawal and refund ids are generated.
func WithIDGenerator(gen id.Generator) Option {
	return func(c *Coordinator) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithLogger sets the logger for settlement outcomes.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Coordinator) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithSubmitTimeout caps each gateway submit call.
func WithSubmitTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.submitTimeout = d
		}
	}
}

// New builds a Coordinator. In-flight reservation is on unless a policy
// option says otherwise.
func New(store storage.Store, gateway transfer.Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:         store,
		gateway:       gateway,
		policy:        withdrawal.Policy{ReserveInFlight: true},
		clock:         time.Now,
		newID:         id.NewID,
		logger:        zap.NewNop(),
		tracer:        otel.Tracer(tracerName),
		submitTimeout: timeouts.TransferSubmit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the active withdrawal policy.
func (c *Coordinator) Policy() withdrawal.Policy {
	return c.policy
}

// RequestWithdrawal authorizes a withdrawal of amount, or of everything
// available when amount is nil, and submits the transfer to the owner.
// TotalFunds is not changed here. When the submit outcome is unknown the
// pending record is returned along with a TRANSFER_SUBMIT_UNCONFIRMED error.
func (c *Coordinator) RequestWithdrawal(ctx context.Context, campaignID uint64, caller ledger.AccountID, amount *ledger.Amount) (w withdrawal.Withdrawal, err error) {
	ctx, span := c.tracer.Start(ctx, "settlement.RequestWithdrawal", trace.WithAttributes(
		attribute.Int64("escrow.campaign_id", int64(campaignID)),
	))
	defer func() { endSpan(span, err) }()

	if err := c.ready(); err != nil {
		return withdrawal.Withdrawal{}, err
	}
	if caller.IsZero() {
		return withdrawal.Withdrawal{}, ErrCallerMissing
	}

	now := c.now()
	err = c.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		current, err := LoadCampaign(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		resolved, err := c.policy.Authorize(current, caller, amount)
		if err != nil {
			return err
		}
		recordID, err := c.newID()
		if err != nil {
			return err
		}
		w = withdrawal.New(recordID, current, resolved, c.policy.ReserveInFlight, now)
		if err := tx.PutCampaign(ctx, withdrawal.Reserve(current, w)); err != nil {
			return err
		}
		if err := tx.PutWithdrawal(ctx, w); err != nil {
			return err
		}
		return appendEvent(ctx, tx, event.TypeWithdrawalRequested, campaignID, caller, now,
			event.WithAmount(w.Amount),
			event.WithTransfer(w.ID),
			event.WithPayload(map[string]bool{"reserved": w.Reserved}),
		)
	})
	if err != nil {
		return withdrawal.Withdrawal{}, err
	}
	span.SetAttributes(attribute.String("escrow.withdrawal_id", w.ID))

	req := transfer.Request{
		ID:          w.ID,
		Kind:        transfer.KindWithdrawal,
		CampaignID:  w.CampaignID,
		Destination: w.Owner,
		Amount:      w.Amount,
	}
	if submitErr := c.submit(ctx, req); submitErr != nil {
		if !transfer.IsRejected(submitErr) {
			c.logger.Warn("withdrawal submit unconfirmed; left pending",
				zap.String("withdrawal_id", w.ID),
				zap.Uint64("campaign_id", w.CampaignID),
				zap.Stringer("amount", w.Amount),
				zap.Error(submitErr),
			)
			return w, errSubmitUnconfirmed("submit withdrawal transfer", w.ID, submitErr)
		}
		c.logger.Warn("withdrawal submit rejected",
			zap.String("withdrawal_id", w.ID),
			zap.Uint64("campaign_id", w.CampaignID),
			zap.Stringer("amount", w.Amount),
			zap.Error(submitErr),
		)
		if _, compErr := c.resolveWithdrawal(ctx, w.ID, false, "submit rejected: "+submitErr.Error()); compErr != nil {
			c.logger.Error("withdrawal submit compensation failed",
				zap.String("withdrawal_id", w.ID),
				zap.Error(compErr),
			)
		}
		return withdrawal.Withdrawal{}, apperrors.Wrap(apperrors.CodeTransferSubmitFailed, "submit withdrawal transfer", submitErr)
	}

	c.logger.Info("withdrawal requested",
		zap.String("withdrawal_id", w.ID),
		zap.Uint64("campaign_id", w.CampaignID),
		zap.Stringer("amount", w.Amount),
		zap.Bool("reserved", w.Reserved),
	)
	return w, nil
}

// ConfirmWithdrawal applies the single outcome reported for withdrawalID.
// Success lowers TotalFunds by amount; failure leaves funds untouched and
// only releases the reservation. A record is resolved at most once.
func (c *Coordinator) ConfirmWithdrawal(ctx context.Context, withdrawalID string, amount ledger.Amount, outcomes []transfer.Outcome) (w withdrawal.Withdrawal, err error) {
	ctx, span := c.tracer.Start(ctx, "settlement.ConfirmWithdrawal", trace.WithAttributes(
		attribute.String("escrow.withdrawal_id", withdrawalID),
		attribute.Int("escrow.outcome_count", len(outcomes)),
	))
	defer func() { endSpan(span, err) }()

	if err := c.ready(); err != nil {
		return withdrawal.Withdrawal{}, err
	}
	outcome, err := singleOutcome(withdrawalID, outcomes)
	if err != nil {
		c.logger.Error("withdrawal confirmation rejected",
			zap.String("withdrawal_id", withdrawalID),
			zap.Int("outcome_count", len(outcomes)),
		)
		return withdrawal.Withdrawal{}, err
	}

	w, err = c.confirmWithdrawal(ctx, withdrawalID, &amount, outcome)
	if err != nil {
		return withdrawal.Withdrawal{}, err
	}
	if w.Status == withdrawal.StatusFailed {
		c.logger.Warn("withdrawal transfer failed",
			zap.String("withdrawal_id", w.ID),
			zap.Uint64("campaign_id", w.CampaignID),
			zap.String("owner", w.Owner.String()),
			zap.Stringer("amount", w.Amount),
			zap.String("reason", w.FailureReason),
		)
	} else {
		c.logger.Info("withdrawal settled",
			zap.String("withdrawal_id", w.ID),
			zap.Uint64("campaign_id", w.CampaignID),
			zap.Stringer("amount", w.Amount),
			zap.String("reference", outcome.Reference),
		)
	}
	return w, nil
}

func (c *Coordinator) resolveWithdrawal(ctx context.Context, withdrawalID string, success bool, reason string) (withdrawal.Withdrawal, error) {
	return c.confirmWithdrawal(ctx, withdrawalID, nil, transfer.Outcome{Success: success, Reason: reason})
}

// confirmWithdrawal resolves the record in one unit. A nil amount skips the
// amount check.
func (c *Coordinator) confirmWithdrawal(ctx context.Context, withdrawalID string, amount *ledger.Amount, outcome transfer.Outcome) (withdrawal.Withdrawal, error) {
	now := c.now()
	var resolved withdrawal.Withdrawal
	err := c.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		pending, err := tx.GetWithdrawal(ctx, withdrawalID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.NotFound("withdrawal", withdrawalID)
			}
			return err
		}
		current, err := LoadCampaign(ctx, tx, pending.CampaignID)
		if err != nil {
			return err
		}

		var (
			updated   campaign.Campaign
			eventType event.Type
			opts      = []event.Option{event.WithAmount(pending.Amount), event.WithTransfer(pending.ID)}
		)
		if outcome.Success {
			updated, resolved, err = withdrawal.Settle(current, pending, now)
			eventType = event.TypeWithdrawalSettled
			if outcome.Reference != "" {
				opts = append(opts, event.WithPayload(map[string]string{"reference": outcome.Reference}))
			}
		} else {
			updated, resolved, err = withdrawal.Fail(current, pending, outcome.Reason, now)
			eventType = event.TypeWithdrawalFailed
			opts = append(opts, event.WithPayload(map[string]string{"reason": resolved.FailureReason}))
		}
		if err != nil {
			return err
		}
		if amount != nil && *amount != pending.Amount {
			return errAmountMismatch(pending.ID, *amount, pending.Amount)
		}

		if err := tx.PutCampaign(ctx, updated); err != nil {
			return err
		}
		if err := tx.PutWithdrawal(ctx, resolved); err != nil {
			return err
		}
		return appendEvent(ctx, tx, eventType, pending.CampaignID, "", now, opts...)
	})
	if err != nil {
		return withdrawal.Withdrawal{}, err
	}
	return resolved, nil
}

// Refund removes caller's contribution, lowers TotalFunds, and submits the
// refund transfer. If the gateway rejects the transfer the contribution is
// restored.
func (c *Coordinator) Refund(ctx context.Context, campaignID uint64, caller ledger.AccountID) (r withdrawal.Refund, err error) {
	ctx, span := c.tracer.Start(ctx, "settlement.Refund", trace.WithAttributes(
		attribute.Int64("escrow.campaign_id", int64(campaignID)),
	))
	defer func() { endSpan(span, err) }()

	if err := c.ready(); err != nil {
		return withdrawal.Refund{}, err
	}
	if caller.IsZero() {
		return withdrawal.Refund{}, ErrCallerMissing
	}

	now := c.now()
	err = c.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		current, err := LoadCampaign(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		updated, amount, err := campaign.Refund(current, caller, now)
		if err != nil {
			return err
		}
		recordID, err := c.newID()
		if err != nil {
			return err
		}
		r = withdrawal.NewRefund(recordID, campaignID, caller, amount, now)
		if err := tx.PutCampaign(ctx, updated); err != nil {
			return err
		}
		if err := tx.PutRefund(ctx, r); err != nil {
			return err
		}
		return appendEvent(ctx, tx, event.TypeRefundRequested, campaignID, caller, now,
			event.WithAmount(amount),
			event.WithTransfer(r.ID),
		)
	})
	if err != nil {
		return withdrawal.Refund{}, err
	}
	span.SetAttributes(attribute.String("escrow.refund_id", r.ID))

	req := transfer.Request{
		ID:          r.ID,
		Kind:        transfer.KindRefund,
		CampaignID:  r.CampaignID,
		Destination: r.Account,
		Amount:      r.Amount,
	}
	if submitErr := c.submit(ctx, req); submitErr != nil {
		if !transfer.IsRejected(submitErr) {
			c.logger.Warn("refund submit unconfirmed; left requested",
				zap.String("refund_id", r.ID),
				zap.Uint64("campaign_id", r.CampaignID),
				zap.Stringer("amount", r.Amount),
				zap.Error(submitErr),
			)
			return r, errSubmitUnconfirmed("submit refund transfer", r.ID, submitErr)
		}
		c.logger.Warn("refund submit rejected",
			zap.String("refund_id", r.ID),
			zap.Uint64("campaign_id", r.CampaignID),
			zap.Stringer("amount", r.Amount),
			zap.Error(submitErr),
		)
		if compErr := c.restoreRefund(ctx, r, "submit rejected: "+submitErr.Error()); compErr != nil {
			c.logger.Error("refund submit compensation failed",
				zap.String("refund_id", r.ID),
				zap.Error(compErr),
			)
		}
		return withdrawal.Refund{}, apperrors.Wrap(apperrors.CodeTransferSubmitFailed, "submit refund transfer", submitErr)
	}

	c.logger.Info("refund requested",
		zap.String("refund_id", r.ID),
		zap.Uint64("campaign_id", r.CampaignID),
		zap.String("account", r.Account.String()),
		zap.Stringer("amount", r.Amount),
	)
	return r, nil
}

// restoreRefund puts the contribution back and marks the refund failed.
func (c *Coordinator) restoreRefund(ctx context.Context, r withdrawal.Refund, reason string) error {
	now := c.now()
	return c.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		stored, err := tx.GetRefund(ctx, r.ID)
		if err != nil {
			return err
		}
		failed, err := stored.Resolve(false, reason, now)
		if err != nil {
			return err
		}
		current, err := LoadCampaign(ctx, tx, stored.CampaignID)
		if err != nil {
			return err
		}
		if err := tx.PutCampaign(ctx, campaign.RestoreContribution(current, stored.Account, stored.Amount)); err != nil {
			return err
		}
		if err := tx.PutRefund(ctx, failed); err != nil {
			return err
		}
		return appendEvent(ctx, tx, event.TypeRefundFailed, stored.CampaignID, "", now,
			event.WithAmount(stored.Amount),
			event.WithTransfer(stored.ID),
			event.WithPayload(map[string]any{"reason": failed.FailureReason, "restored": true}),
		)
	})
}

// ConfirmRefund records the delivery outcome of a refund. The ledger is not
// touched: a failed delivery is logged for manual reconciliation.
func (c *Coordinator) ConfirmRefund(ctx context.Context, refundID string, amount ledger.Amount, outcomes []transfer.Outcome) (r withdrawal.Refund, err error) {
	ctx, span := c.tracer.Start(ctx, "settlement.ConfirmRefund", trace.WithAttributes(
		attribute.String("escrow.refund_id", refundID),
		attribute.Int("escrow.outcome_count", len(outcomes)),
	))
	defer func() { endSpan(span, err) }()

	if err := c.ready(); err != nil {
		return withdrawal.Refund{}, err
	}
	outcome, err := singleOutcome(refundID, outcomes)
	if err != nil {
		c.logger.Error("refund confirmation rejected",
			zap.String("refund_id", refundID),
			zap.Int("outcome_count", len(outcomes)),
		)
		return withdrawal.Refund{}, err
	}

	now := c.now()
	err = c.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		stored, err := tx.GetRefund(ctx, refundID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.NotFound("refund", refundID)
			}
			return err
		}
		r, err = stored.Resolve(outcome.Success, outcome.Reason, now)
		if err != nil {
			return err
		}
		if amount != stored.Amount {
			return errAmountMismatch(stored.ID, amount, stored.Amount)
		}
		if err := tx.PutRefund(ctx, r); err != nil {
			return err
		}
		eventType := event.TypeRefundDelivered
		opts := []event.Option{event.WithAmount(r.Amount), event.WithTransfer(r.ID)}
		if !outcome.Success {
			eventType = event.TypeRefundFailed
			opts = append(opts, event.WithPayload(map[string]any{"reason": r.FailureReason, "restored": false}))
		}
		return appendEvent(ctx, tx, eventType, r.CampaignID, "", now, opts...)
	})
	if err != nil {
		return withdrawal.Refund{}, err
	}

	if r.Status == withdrawal.RefundFailed {
		c.logger.Error("refund transfer failed; manual reconciliation required",
			zap.String("refund_id", r.ID),
			zap.Uint64("campaign_id", r.CampaignID),
			zap.String("account", r.Account.String()),
			zap.Stringer("amount", r.Amount),
			zap.String("reason", r.FailureReason),
		)
	} else {
		c.logger.Info("refund delivered",
			zap.String("refund_id", r.ID),
			zap.Uint64("campaign_id", r.CampaignID),
			zap.Stringer("amount", r.Amount),
		)
	}
	return r, nil
}

// Report routes a transfer outcome to the matching confirmation.
func (c *Coordinator) Report(ctx context.Context, report transfer.Report) error {
	switch report.Request.Kind {
	case transfer.KindWithdrawal:
		_, err := c.ConfirmWithdrawal(ctx, report.Request.ID, report.Request.Amount, report.Outcomes)
		return err
	case transfer.KindRefund:
		_, err := c.ConfirmRefund(ctx, report.Request.ID, report.Request.Amount, report.Outcomes)
		return err
	default:
		return apperrors.WithMetadata(apperrors.CodeTransferInvalidReport, "unknown transfer kind", map[string]string{
			"Kind": string(report.Request.Kind),
		})
	}
}

func (c *Coordinator) submit(ctx context.Context, req transfer.Request) error {
	if err := req.Validate(); err != nil {
		return transfer.Rejected(err)
	}
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.submitTimeout)
	defer cancel()
	return c.gateway.Submit(submitCtx, req)
}

func (c *Coordinator) ready() error {
	if c == nil || c.store == nil {
		return fmt.Errorf("settlement store is not configured")
	}
	if c.gateway == nil {
		return fmt.Errorf("transfer gateway is not configured")
	}
	return nil
}

func (c *Coordinator) now() ledger.Timestamp {
	return ledger.FromTime(c.clock())
}

func singleOutcome(transferID string, outcomes []transfer.Outcome) (transfer.Outcome, error) {
	if len(outcomes) != 1 {
		return transfer.Outcome{}, apperrors.TransferError(apperrors.CodeTransferOutcomeCount, "transfer must report exactly one outcome", transferID, map[string]string{
			"Count": strconv.Itoa(len(outcomes)),
		})
	}
	return outcomes[0], nil
}

func errAmountMismatch(transferID string, reported, recorded ledger.Amount) error {
	return apperrors.TransferError(apperrors.CodeTransferAmountMismatch, "reported amount does not match the recorded transfer", transferID, map[string]string{
		"Reported": reported.String(),
		"Recorded": recorded.String(),
	})
}

func errSubmitUnconfirmed(message, transferID string, cause error) error {
	return apperrors.TransferError(apperrors.CodeTransferSubmitUnconfirmed, message, transferID, nil).WithCause(cause)
}

func appendEvent(ctx context.Context, tx storage.EventStore, eventType event.Type, campaignID uint64, actor ledger.AccountID, now ledger.Timestamp, opts ...event.Option) error {
	evt, err := event.New(eventType, campaignID, actor, now, opts...)
	if err != nil {
		return err
	}
	if _, err := tx.AppendEvent(ctx, evt); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}
