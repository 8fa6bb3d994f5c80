package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"attention-engine/internal/model"
)

// SummaryRepository keeps the last analysis summary, one row per
// account, overwritten on every run.
type SummaryRepository struct {
	db *pgxpool.Pool
}

func NewSummaryRepository(db *pgxpool.Pool) *SummaryRepository {
	return &SummaryRepository{db: db}
}

func (r *SummaryRepository) Upsert(ctx context.Context, s *model.AnalysisSummary) error {
	query := `
        INSERT INTO analysis_summaries
            (account, emails_fetched, emails_analyzed, already_tracked,
             dismissed, suggestions_generated, rules_generated,
             attention_items, haiku_analyzed, haiku_remaining,
             haiku_failures, persist_failures, ran_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT (account) DO UPDATE SET
            emails_fetched        = EXCLUDED.emails_fetched,
            emails_analyzed       = EXCLUDED.emails_analyzed,
            already_tracked       = EXCLUDED.already_tracked,
            dismissed             = EXCLUDED.dismissed,
            suggestions_generated = EXCLUDED.suggestions_generated,
            rules_generated       = EXCLUDED.rules_generated,
            attention_items       = EXCLUDED.attention_items,
            haiku_analyzed        = EXCLUDED.haiku_analyzed,
            haiku_remaining       = EXCLUDED.haiku_remaining,
            haiku_failures        = EXCLUDED.haiku_failures,
            persist_failures      = EXCLUDED.persist_failures,
            ran_at                = EXCLUDED.ran_at
    `
	_, err := r.db.Exec(ctx, query,
		s.Account, s.EmailsFetched, s.EmailsAnalyzed, s.AlreadyTracked,
		s.Dismissed, s.SuggestionsGenerated, s.RulesGenerated,
		s.AttentionItems, s.HaikuAnalyzed, s.HaikuRemaining,
		s.HaikuFailures, s.PersistFailures, s.RanAt,
	)
	return err
}

func (r *SummaryRepository) Get(ctx context.Context, account model.AccountID) (*model.AnalysisSummary, error) {
	query := `
        SELECT account, emails_fetched, emails_analyzed, already_tracked,
               dismissed, suggestions_generated, rules_generated,
               attention_items, haiku_analyzed, haiku_remaining,
               haiku_failures, persist_failures, ran_at
        FROM analysis_summaries
        WHERE account = $1
    `
	var s model.AnalysisSummary
	err := r.db.QueryRow(ctx, query, account).Scan(
		&s.Account, &s.EmailsFetched, &s.EmailsAnalyzed, &s.AlreadyTracked,
		&s.Dismissed, &s.SuggestionsGenerated, &s.RulesGenerated,
		&s.AttentionItems, &s.HaikuAnalyzed, &s.HaikuRemaining,
		&s.HaikuFailures, &s.PersistFailures, &s.RanAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no analysis summary for %s", model.ErrNotFound, account)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
