package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/escrow/internal/services/escrow/domain/campaign"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/event"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/withdrawal"
	"github.com/louisbranch/escrow/internal/services/escrow/storage"
)

const campaignCounter = "campaign"

const campaignColumns = `id, name, image_url, owner, funding_goal, total_funds, reserved_funds,
		        deadline, status, created_at, completed_at`

const withdrawalColumns = `id, campaign_id, owner, amount, reserved, status,
		        requested_at, resolved_at, failure_reason`

const refundColumns = `id, campaign_id, account_id, amount, status, requested_at, resolved_at, failure_reason`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// txStore implements storage.Tx over one SQL transaction.
type txStore struct {
	q querier
}

func (t *txStore) NextCampaignID(ctx context.Context) (uint64, error) {
	if _, err := t.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO registry_counters (name, value) VALUES (?, 0)`,
		campaignCounter,
	); err != nil {
		return 0, fmt.Errorf("seed campaign counter: %w", err)
	}
	var next int64
	if err := t.q.QueryRowContext(ctx,
		`UPDATE registry_counters SET value = value + 1 WHERE name = ? RETURNING value - 1`,
		campaignCounter,
	).Scan(&next); err != nil {
		return 0, fmt.Errorf("allocate campaign id: %w", err)
	}
	return uint64(next), nil
}

func (t *txStore) PutCampaign(ctx context.Context, c campaign.Campaign) error {
	if c.Owner.IsZero() {
		return fmt.Errorf("campaign owner is required")
	}
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO campaigns (`+campaignColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   image_url = excluded.image_url,
		   total_funds = excluded.total_funds,
		   reserved_funds = excluded.reserved_funds,
		   status = excluded.status,
		   completed_at = excluded.completed_at`,
		int64(c.ID),
		c.Name,
		c.ImageURL,
		c.Owner.String(),
		c.FundingGoal.String(),
		c.TotalFunds.String(),
		c.ReservedFunds.String(),
		int64(c.Deadline),
		string(c.Status),
		int64(c.CreatedAt),
		int64(c.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("put campaign %d: %w", c.ID, err)
	}

	if _, err := t.q.ExecContext(ctx, `DELETE FROM contributions WHERE campaign_id = ?`, int64(c.ID)); err != nil {
		return fmt.Errorf("clear contributions %d: %w", c.ID, err)
	}
	for _, entry := range campaign.SortedContributions(c) {
		if entry.Amount.IsZero() {
			continue
		}
		if _, err := t.q.ExecContext(ctx,
			`INSERT INTO contributions (campaign_id, account_id, amount) VALUES (?, ?, ?)`,
			int64(c.ID), entry.Account.String(), entry.Amount.String(),
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("put contribution %d/%s: %w", c.ID, entry.Account, storage.ErrAlreadyExists)
			}
			return fmt.Errorf("put contribution %d/%s: %w", c.ID, entry.Account, err)
		}
	}
	return nil
}

func (t *txStore) GetCampaign(ctx context.Context, id uint64) (campaign.Campaign, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, int64(id))
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return campaign.Campaign{}, storage.ErrNotFound
		}
		return campaign.Campaign{}, fmt.Errorf("get campaign %d: %w", id, err)
	}

	rows, err := t.q.QueryContext(ctx,
		`SELECT campaign_id, account_id, amount FROM contributions WHERE campaign_id = ?`,
		int64(id),
	)
	if err != nil {
		return campaign.Campaign{}, fmt.Errorf("get contributions %d: %w", id, err)
	}
	if err := collectContributions(rows, map[uint64]*campaign.Campaign{id: &c}); err != nil {
		return campaign.Campaign{}, err
	}
	return c, nil
}

func (t *txStore) ListCampaigns(ctx context.Context) ([]campaign.Campaign, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT `+campaignColumns+` FROM campaigns ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	var campaigns []campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}
	_ = rows.Close()

	byID := make(map[uint64]*campaign.Campaign, len(campaigns))
	for i := range campaigns {
		byID[campaigns[i].ID] = &campaigns[i]
	}
	contribRows, err := t.q.QueryContext(ctx, `SELECT campaign_id, account_id, amount FROM contributions`)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	if err := collectContributions(contribRows, byID); err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (t *txStore) PutWithdrawal(ctx context.Context, w withdrawal.Withdrawal) error {
	if strings.TrimSpace(w.ID) == "" {
		return fmt.Errorf("withdrawal id is required")
	}
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO withdrawals (`+withdrawalColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   resolved_at = excluded.resolved_at,
		   failure_reason = excluded.failure_reason`,
		w.ID,
		int64(w.CampaignID),
		w.Owner.String(),
		w.Amount.String(),
		boolToInt(w.Reserved),
		string(w.Status),
		int64(w.RequestedAt),
		int64(w.ResolvedAt),
		w.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("put withdrawal %s: %w", w.ID, err)
	}
	return nil
}

func (t *txStore) GetWithdrawal(ctx context.Context, id string) (withdrawal.Withdrawal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return withdrawal.Withdrawal{}, fmt.Errorf("withdrawal id is required")
	}
	w, err := scanWithdrawal(t.q.QueryRowContext(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return withdrawal.Withdrawal{}, storage.ErrNotFound
		}
		return withdrawal.Withdrawal{}, fmt.Errorf("get withdrawal %s: %w", id, err)
	}
	return w, nil
}

func (t *txStore) ListWithdrawals(ctx context.Context, campaignID uint64) ([]withdrawal.Withdrawal, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE campaign_id = ? ORDER BY requested_at, id`,
		int64(campaignID),
	)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals %d: %w", campaignID, err)
	}
	return collectWithdrawals(rows)
}

func (t *txStore) PutRefund(ctx context.Context, r withdrawal.Refund) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("refund id is required")
	}
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO refunds (id, campaign_id, account_id, amount, status, requested_at, resolved_at, failure_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   resolved_at = excluded.resolved_at,
		   failure_reason = excluded.failure_reason`,
		r.ID,
		int64(r.CampaignID),
		r.Account.String(),
		r.Amount.String(),
		string(r.Status),
		int64(r.RequestedAt),
		int64(r.ResolvedAt),
		r.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("put refund %s: %w", r.ID, err)
	}
	return nil
}

func (t *txStore) GetRefund(ctx context.Context, id string) (withdrawal.Refund, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return withdrawal.Refund{}, fmt.Errorf("refund id is required")
	}
	row := t.q.QueryRowContext(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE id = ?`,
		id,
	)
	r, err := scanRefund(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return withdrawal.Refund{}, storage.ErrNotFound
		}
		return withdrawal.Refund{}, fmt.Errorf("get refund %s: %w", id, err)
	}
	return r, nil
}

func (t *txStore) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if strings.TrimSpace(string(evt.Type)) == "" {
		return event.Event{}, fmt.Errorf("event type is required")
	}
	var seq int64
	err := t.q.QueryRowContext(ctx,
		`INSERT INTO campaign_events (campaign_id, type, actor_id, amount, transfer_id, payload_json, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING seq`,
		int64(evt.CampaignID),
		string(evt.Type),
		evt.ActorID.String(),
		evt.Amount.String(),
		evt.TransferID,
		[]byte(evt.PayloadJSON),
		int64(evt.RecordedAt),
	).Scan(&seq)
	if err != nil {
		return event.Event{}, fmt.Errorf("append %s event: %w", evt.Type, err)
	}
	evt.Seq = uint64(seq)
	return evt, nil
}

func (t *txStore) ListEvents(ctx context.Context, campaignID uint64, afterSeq uint64, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := t.q.QueryContext(ctx,
		`SELECT seq, campaign_id, type, actor_id, amount, transfer_id, payload_json, recorded_at
		   FROM campaign_events
		  WHERE campaign_id = ? AND seq > ?
		  ORDER BY seq
		  LIMIT ?`,
		int64(campaignID), int64(afterSeq), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events %d: %w", campaignID, err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			evt         event.Event
			seq         int64
			rowCampaign int64
			eventType   string
			actor       string
			amount      string
			payload     []byte
			recordedAt  int64
		)
		if err := rows.Scan(&seq, &rowCampaign, &eventType, &actor, &amount, &evt.TransferID, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		parsed, err := ledger.ParseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("scan event %d: %w", seq, err)
		}
		evt.Seq = uint64(seq)
		evt.CampaignID = uint64(rowCampaign)
		evt.Type = event.Type(eventType)
		evt.ActorID = ledger.AccountID(actor)
		evt.Amount = parsed
		if len(payload) > 0 {
			evt.PayloadJSON = payload
		}
		evt.RecordedAt = ledger.Timestamp(recordedAt)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanCampaign(row scanner) (campaign.Campaign, error) {
	var (
		c                           campaign.Campaign
		id                          int64
		owner                       string
		goal, total, reserved       string
		deadline, created, finished int64
		status                      string
	)
	if err := row.Scan(&id, &c.Name, &c.ImageURL, &owner, &goal, &total, &reserved, &deadline, &status, &created, &finished); err != nil {
		return campaign.Campaign{}, err
	}
	var err error
	if c.FundingGoal, err = ledger.ParseAmount(goal); err != nil {
		return campaign.Campaign{}, err
	}
	if c.TotalFunds, err = ledger.ParseAmount(total); err != nil {
		return campaign.Campaign{}, err
	}
	if c.ReservedFunds, err = ledger.ParseAmount(reserved); err != nil {
		return campaign.Campaign{}, err
	}
	parsedStatus, ok := campaign.ParseStatus(status)
	if !ok {
		return campaign.Campaign{}, fmt.Errorf("unknown campaign status %q", status)
	}
	c.ID = uint64(id)
	c.Owner = ledger.AccountID(owner)
	c.Deadline = ledger.Timestamp(deadline)
	c.Status = parsedStatus
	c.CreatedAt = ledger.Timestamp(created)
	c.CompletedAt = ledger.Timestamp(finished)
	c.Contributions = map[ledger.AccountID]ledger.Amount{}
	return c, nil
}

func collectContributions(rows *sql.Rows, byID map[uint64]*campaign.Campaign) error {
	defer rows.Close()
	for rows.Next() {
		var (
			campaignID int64
			account    string
			amount     string
		)
		if err := rows.Scan(&campaignID, &account, &amount); err != nil {
			return fmt.Errorf("scan contribution: %w", err)
		}
		target, ok := byID[uint64(campaignID)]
		if !ok {
			continue
		}
		parsed, err := ledger.ParseAmount(amount)
		if err != nil {
			return fmt.Errorf("scan contribution %d/%s: %w", campaignID, account, err)
		}
		target.Contributions[ledger.AccountID(account)] = parsed
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate contributions: %w", err)
	}
	return nil
}

func scanWithdrawal(row scanner) (withdrawal.Withdrawal, error) {
	var (
		w          withdrawal.Withdrawal
		campaignID int64
		owner      string
		amount     string
		reserved   int64
		status     string
		requested  int64
		resolved   int64
	)
	if err := row.Scan(&w.ID, &campaignID, &owner, &amount, &reserved, &status, &requested, &resolved, &w.FailureReason); err != nil {
		return withdrawal.Withdrawal{}, err
	}
	parsed, err := ledger.ParseAmount(amount)
	if err != nil {
		return withdrawal.Withdrawal{}, err
	}
	w.CampaignID = uint64(campaignID)
	w.Owner = ledger.AccountID(owner)
	w.Amount = parsed
	w.Reserved = reserved != 0
	w.Status = withdrawal.Status(status)
	w.RequestedAt = ledger.Timestamp(requested)
	w.ResolvedAt = ledger.Timestamp(resolved)
	return w, nil
}

func collectWithdrawals(rows *sql.Rows) ([]withdrawal.Withdrawal, error) {
	defer rows.Close()
	var out []withdrawal.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawals: %w", err)
	}
	return out, nil
}

func scanRefund(row scanner) (withdrawal.Refund, error) {
	var (
		r          withdrawal.Refund
		campaignID int64
		account    string
		amount     string
		status     string
		requested  int64
		resolved   int64
	)
	if err := row.Scan(&r.ID, &campaignID, &account, &amount, &status, &requested, &resolved, &r.FailureReason); err != nil {
		return withdrawal.Refund{}, err
	}
	parsed, err := ledger.ParseAmount(amount)
	if err != nil {
		return withdrawal.Refund{}, err
	}
	r.CampaignID = uint64(campaignID)
	r.Account = ledger.AccountID(account)
	r.Amount = parsed
	r.Status = withdrawal.RefundStatus(status)
	r.RequestedAt = ledger.Timestamp(requested)
	r.ResolvedAt = ledger.Timestamp(resolved)
	return r, nil
}

func collectRefunds(rows *sql.Rows) ([]withdrawal.Refund, error) {
	defer rows.Close()
	var out []withdrawal.Refund
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("scan refund: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refunds: %w", err)
	}
	return out, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

var _ storage.Tx = (*txStore)(nil)
