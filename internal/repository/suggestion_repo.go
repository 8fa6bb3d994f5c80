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

type SuggestionRepository struct {
	db *pgxpool.Pool
}

func NewSuggestionRepository(db *pgxpool.Pool) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

const suggestionColumns = `
        id, account, email_id, action, label, rationale, confidence,
        analysis_method, pattern, status, rejection_reason, created_at, decided_at
`

// Upsert inserts a suggestion or refreshes its proposal fields. The
// decision state of an existing row is left alone.
func (r *SuggestionRepository) Upsert(ctx context.Context, s *model.ActionSuggestion) error {
	query := `
        INSERT INTO action_suggestions
            (id, account, email_id, action, label, rationale, confidence,
             analysis_method, pattern, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10)
        ON CONFLICT (id) DO UPDATE SET
            action     = EXCLUDED.action,
            label      = EXCLUDED.label,
            rationale  = EXCLUDED.rationale,
            confidence = EXCLUDED.confidence,
            pattern    = EXCLUDED.pattern
    `
	now := s.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	_, err := r.db.Exec(ctx, query,
		s.ID, s.Account, s.EmailID, s.Action, s.Label, s.Rationale,
		s.Confidence, s.Method, s.Pattern, now,
	)
	return err
}

// ListByStatus returns an account's suggestions in one lifecycle state.
func (r *SuggestionRepository) ListByStatus(ctx context.Context, account model.AccountID, status model.SuggestionStatus) ([]model.ActionSuggestion, error) {
	query := `SELECT ` + suggestionColumns + `
        FROM action_suggestions
        WHERE account = $1 AND status = $2
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, account, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ActionSuggestion{}
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Find returns a suggestion by id within an account.
func (r *SuggestionRepository) Find(ctx context.Context, account model.AccountID, id string) (*model.ActionSuggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM action_suggestions WHERE account = $1 AND id = $2`
	s, err := scanSuggestion(r.db.QueryRow(ctx, query, account, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: suggestion %s/%s", model.ErrNotFound, account, id)
		}
		return nil, err
	}
	return s, nil
}

// SetDecision overwrites the current decision state. Re-deciding is
// allowed; the ledger keeps the history.
func (r *SuggestionRepository) SetDecision(ctx context.Context, account model.AccountID, id string, status model.SuggestionStatus, rejectionReason string, decidedAt time.Time) error {
	query := `
        UPDATE action_suggestions
        SET status = $3, rejection_reason = $4, decided_at = $5
        WHERE account = $1 AND id = $2
    `
	tag, err := r.db.Exec(ctx, query, account, id, status, rejectionReason, decidedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: suggestion %s/%s", model.ErrNotFound, account, id)
	}
	return nil
}

// PurgeExpired removes decided suggestions past their retention
// window. Pending suggestions are never purged.
func (r *SuggestionRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
        DELETE FROM action_suggestions
        WHERE (status = 'approved' AND decided_at + interval '30 days' < $1)
           OR (status = 'rejected' AND decided_at + interval '7 days' < $1)
    `
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanSuggestion(row pgx.Row) (*model.ActionSuggestion, error) {
	var s model.ActionSuggestion
	var label, pattern, rejectionReason *string
	err := row.Scan(
		&s.ID,
		&s.Account,
		&s.EmailID,
		&s.Action,
		&label,
		&s.Rationale,
		&s.Confidence,
		&s.Method,
		&pattern,
		&s.Status,
		&rejectionReason,
		&s.CreatedAt,
		&s.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	if label != nil {
		s.Label = *label
	}
	if pattern != nil {
		s.Pattern = *pattern
	}
	if rejectionReason != nil {
		s.RejectionReason = *rejectionReason
	}
	return &s, nil
}
