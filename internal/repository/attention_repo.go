package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"attention-engine/internal/model"
)

type AttentionRepository struct {
	db *pgxpool.Pool
}

func NewAttentionRepository(db *pgxpool.Pool) *AttentionRepository {
	return &AttentionRepository{db: db}
}

const attentionColumns = `
        id, account, email_id, sender, subject, analysis_method,
        matched_role, confidence, rationale, status, dismissed_reason,
        snoozed_until, first_viewed_at, acted_at, action_type,
        created_at, status_changed_at
`

// Upsert inserts a new attention item or refreshes the classification
// fields of an existing one. Lifecycle fields (status, dismissal,
// snooze) are never touched on conflict within the retention window,
// so a dismissed item cannot be resurrected by re-analysis. A row past
// its retention is deleted first: it is already invisible to List and
// due for purge, and the fresh verdict must start a new active
// lifecycle instead of being absorbed into it.
func (r *AttentionRepository) Upsert(ctx context.Context, item *model.AttentionItem) error {
	now := item.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}

	purge := `
        DELETE FROM attention_items
        WHERE account = $1 AND email_id = $2
          AND ((status = 'dismissed' AND status_changed_at + interval '7 days' < $3)
            OR (status <> 'dismissed' AND status_changed_at + interval '30 days' < $3))
    `
	if _, err := r.db.Exec(ctx, purge, item.Account, item.EmailID, now); err != nil {
		return err
	}

	query := `
        INSERT INTO attention_items
            (account, email_id, sender, subject, analysis_method,
             matched_role, confidence, rationale, status,
             created_at, status_changed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'active', $9, $9)
        ON CONFLICT (account, email_id) DO UPDATE SET
            sender          = EXCLUDED.sender,
            subject         = EXCLUDED.subject,
            analysis_method = EXCLUDED.analysis_method,
            matched_role    = EXCLUDED.matched_role,
            confidence      = EXCLUDED.confidence,
            rationale       = EXCLUDED.rationale
        RETURNING id
    `
	return r.db.QueryRow(ctx, query,
		item.Account, item.EmailID, item.From, item.Subject,
		item.Method, item.MatchedRole, item.Confidence, item.Rationale,
		now,
	).Scan(&item.ID)
}

// Find returns the item for (account, email_id) regardless of status.
func (r *AttentionRepository) Find(ctx context.Context, account model.AccountID, emailID string) (*model.AttentionItem, error) {
	query := `SELECT ` + attentionColumns + ` FROM attention_items WHERE account = $1 AND email_id = $2`

	row := r.db.QueryRow(ctx, query, account, emailID)
	item, err := scanAttentionItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: attention item %s/%s", model.ErrNotFound, account, emailID)
		}
		return nil, err
	}
	return item, nil
}

// List returns the items that currently need the user's attention:
// active items and snoozed items whose snooze has elapsed, minus
// anything past its retention window. includeExpired returns every row
// for the account regardless of status or TTL.
func (r *AttentionRepository) List(ctx context.Context, account model.AccountID, includeExpired bool, now time.Time) ([]model.AttentionItem, error) {
	query := `SELECT ` + attentionColumns + `
        FROM attention_items
        WHERE account = $1
          AND ($2 OR (
                (status = 'active' OR (status = 'snoozed' AND snoozed_until <= $3))
                AND status_changed_at + interval '30 days' > $3
          ))
        ORDER BY created_at DESC
    `

	rows, err := r.db.Query(ctx, query, account, includeExpired, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.AttentionItem{}
	for rows.Next() {
		item, err := scanAttentionItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// SetDismissed moves an item to dismissed with a reason.
func (r *AttentionRepository) SetDismissed(ctx context.Context, account model.AccountID, emailID string, reason model.DismissReason, now time.Time) error {
	query := `
        UPDATE attention_items
        SET status = 'dismissed', dismissed_reason = $3, snoozed_until = NULL, status_changed_at = $4
        WHERE account = $1 AND email_id = $2
    `
	tag, err := r.db.Exec(ctx, query, account, emailID, reason, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: attention item %s/%s", model.ErrNotFound, account, emailID)
	}
	return nil
}

// SetSnoozed hides an item until the given time.
func (r *AttentionRepository) SetSnoozed(ctx context.Context, account model.AccountID, emailID string, until time.Time, now time.Time) error {
	query := `
        UPDATE attention_items
        SET status = 'snoozed', snoozed_until = $3, status_changed_at = $4
        WHERE account = $1 AND email_id = $2
    `
	tag, err := r.db.Exec(ctx, query, account, emailID, until, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: attention item %s/%s", model.ErrNotFound, account, emailID)
	}
	return nil
}

// SetFirstViewed stamps first_viewed_at once; later views keep the
// original timestamp for latency metrics.
func (r *AttentionRepository) SetFirstViewed(ctx context.Context, account model.AccountID, emailID string, now time.Time) error {
	query := `
        UPDATE attention_items
        SET first_viewed_at = COALESCE(first_viewed_at, $3)
        WHERE account = $1 AND email_id = $2
    `
	tag, err := r.db.Exec(ctx, query, account, emailID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: attention item %s/%s", model.ErrNotFound, account, emailID)
	}
	return nil
}

// SetActed marks the item as acted on with the action taken.
func (r *AttentionRepository) SetActed(ctx context.Context, account model.AccountID, emailID, actionType string, now time.Time) error {
	query := `
        UPDATE attention_items
        SET status = 'acted', acted_at = $3, action_type = $4, status_changed_at = $3
        WHERE account = $1 AND email_id = $2
    `
	tag, err := r.db.Exec(ctx, query, account, emailID, now, actionType)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: attention item %s/%s", model.ErrNotFound, account, emailID)
	}
	return nil
}

// PurgeExpired removes rows past their per-status retention window.
// Safe to call repeatedly; a second call right after the first deletes
// nothing.
func (r *AttentionRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
        DELETE FROM attention_items
        WHERE (status = 'dismissed' AND status_changed_at + interval '7 days' < $1)
           OR (status <> 'dismissed' AND status_changed_at + interval '30 days' < $1)
    `
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanAttentionItem(row pgx.Row) (*model.AttentionItem, error) {
	var item model.AttentionItem
	var matchedRole, dismissedReason, actionType *string
	err := row.Scan(
		&item.ID,
		&item.Account,
		&item.EmailID,
		&item.From,
		&item.Subject,
		&item.Method,
		&matchedRole,
		&item.Confidence,
		&item.Rationale,
		&item.Status,
		&dismissedReason,
		&item.SnoozedUntil,
		&item.FirstViewedAt,
		&item.ActedAt,
		&actionType,
		&item.CreatedAt,
		&item.StatusChangedAt,
	)
	if err != nil {
		return nil, err
	}
	if matchedRole != nil {
		item.MatchedRole = *matchedRole
	}
	if dismissedReason != nil {
		item.DismissedReason = model.DismissReason(*dismissedReason)
	}
	if actionType != nil {
		item.ActionType = *actionType
	}
	return &item, nil
}
