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

type RuleRepository struct {
	db *pgxpool.Pool
}

func NewRuleRepository(db *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `
        id, account, field, operator, value, action, rationale,
        confidence, example_count, status, rejection_reason, created_at, decided_at
`

func (r *RuleRepository) Upsert(ctx context.Context, rule *model.RuleSuggestion) error {
	query := `
        INSERT INTO rule_suggestions
            (id, account, field, operator, value, action, rationale,
             confidence, example_count, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10)
        ON CONFLICT (id) DO UPDATE SET
            rationale     = EXCLUDED.rationale,
            confidence    = EXCLUDED.confidence,
            example_count = EXCLUDED.example_count
    `
	now := rule.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	_, err := r.db.Exec(ctx, query,
		rule.ID, rule.Account, rule.Field, rule.Operator, rule.Value,
		rule.Action, rule.Rationale, rule.Confidence, rule.ExampleCount, now,
	)
	return err
}

func (r *RuleRepository) ListByStatus(ctx context.Context, account model.AccountID, status model.SuggestionStatus) ([]model.RuleSuggestion, error) {
	query := `SELECT ` + ruleColumns + `
        FROM rule_suggestions
        WHERE account = $1 AND status = $2
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, account, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RuleSuggestion{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

func (r *RuleRepository) Find(ctx context.Context, account model.AccountID, id string) (*model.RuleSuggestion, error) {
	query := `SELECT ` + ruleColumns + ` FROM rule_suggestions WHERE account = $1 AND id = $2`
	rule, err := scanRule(r.db.QueryRow(ctx, query, account, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: rule %s/%s", model.ErrNotFound, account, id)
		}
		return nil, err
	}
	return rule, nil
}

func (r *RuleRepository) SetDecision(ctx context.Context, account model.AccountID, id string, status model.SuggestionStatus, rejectionReason string, decidedAt time.Time) error {
	query := `
        UPDATE rule_suggestions
        SET status = $3, rejection_reason = $4, decided_at = $5
        WHERE account = $1 AND id = $2
    `
	tag, err := r.db.Exec(ctx, query, account, id, status, rejectionReason, decidedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: rule %s/%s", model.ErrNotFound, account, id)
	}
	return nil
}

func (r *RuleRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
        DELETE FROM rule_suggestions
        WHERE (status = 'approved' AND decided_at + interval '30 days' < $1)
           OR (status = 'rejected' AND decided_at + interval '7 days' < $1)
    `
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanRule(row pgx.Row) (*model.RuleSuggestion, error) {
	var rule model.RuleSuggestion
	var rejectionReason *string
	err := row.Scan(
		&rule.ID,
		&rule.Account,
		&rule.Field,
		&rule.Operator,
		&rule.Value,
		&rule.Action,
		&rule.Rationale,
		&rule.Confidence,
		&rule.ExampleCount,
		&rule.Status,
		&rejectionReason,
		&rule.CreatedAt,
		&rule.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	if rejectionReason != nil {
		rule.RejectionReason = *rejectionReason
	}
	return &rule, nil
}
