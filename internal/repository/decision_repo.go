package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"attention-engine/internal/model"
)

// DecisionRepository is the append-only decision ledger. Rows are
// never updated or deleted; deleting a suggestion leaves its ledger
// entries in place.
type DecisionRepository struct {
	db *pgxpool.Pool
}

func NewDecisionRepository(db *pgxpool.Pool) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Append writes one immutable ledger entry.
func (r *DecisionRepository) Append(ctx context.Context, d *model.Decision) error {
	query := `
        INSERT INTO decision_ledger
            (account, kind, target_id, approved, rejection_reason,
             analysis_method, action, pattern, decided_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `
	return r.db.QueryRow(ctx, query,
		d.Account, d.Kind, d.TargetID, d.Approved, d.RejectionReason,
		d.Method, d.Action, d.Pattern, d.DecidedAt,
	).Scan(&d.ID)
}

// ListByAccountSince returns an account's ledger entries newer than
// the cutoff, oldest first.
func (r *DecisionRepository) ListByAccountSince(ctx context.Context, account model.AccountID, since time.Time) ([]model.Decision, error) {
	query := `
        SELECT id, account, kind, target_id, approved, rejection_reason,
               analysis_method, action, pattern, decided_at
        FROM decision_ledger
        WHERE account = $1 AND decided_at >= $2
        ORDER BY decided_at ASC
    `
	rows, err := r.db.Query(ctx, query, account, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDecisions(rows)
}

// ListSince returns ledger entries across all accounts newer than the
// cutoff. Rejection-pattern mining is global: a pattern the user keeps
// rejecting is noise regardless of mailbox.
func (r *DecisionRepository) ListSince(ctx context.Context, since time.Time) ([]model.Decision, error) {
	query := `
        SELECT id, account, kind, target_id, approved, rejection_reason,
               analysis_method, action, pattern, decided_at
        FROM decision_ledger
        WHERE decided_at >= $1
        ORDER BY decided_at ASC
    `
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDecisions(rows)
}

func scanDecisions(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]model.Decision, error) {
	out := []model.Decision{}
	for rows.Next() {
		var d model.Decision
		var rejectionReason, method, action, pattern *string
		err := rows.Scan(
			&d.ID, &d.Account, &d.Kind, &d.TargetID, &d.Approved,
			&rejectionReason, &method, &action, &pattern, &d.DecidedAt,
		)
		if err != nil {
			return nil, err
		}
		if rejectionReason != nil {
			d.RejectionReason = *rejectionReason
		}
		if method != nil {
			d.Method = model.AnalysisMethod(*method)
		}
		if action != nil {
			d.Action = model.SuggestionAction(*action)
		}
		if pattern != nil {
			d.Pattern = *pattern
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
