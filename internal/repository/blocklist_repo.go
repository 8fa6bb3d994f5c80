package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"attention-engine/internal/model"
)

// BlocklistRepository holds the GLOBAL sender blocklist. Global scope
// is deliberate: privacy configuration is not account-scoped.
type BlocklistRepository struct {
	db *pgxpool.Pool
}

func NewBlocklistRepository(db *pgxpool.Pool) *BlocklistRepository {
	return &BlocklistRepository{db: db}
}

func (r *BlocklistRepository) List(ctx context.Context) ([]model.BlocklistEntry, error) {
	query := `SELECT id, sender, hard, note, created_at FROM sender_blocklist ORDER BY created_at`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.BlocklistEntry{}
	for rows.Next() {
		var e model.BlocklistEntry
		var note *string
		if err := rows.Scan(&e.ID, &e.Sender, &e.Hard, &note, &e.CreatedAt); err != nil {
			return nil, err
		}
		if note != nil {
			e.Note = *note
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *BlocklistRepository) Add(ctx context.Context, sender string, hard bool, note string) (*model.BlocklistEntry, error) {
	query := `
        INSERT INTO sender_blocklist (sender, hard, note, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (sender) DO UPDATE SET hard = EXCLUDED.hard, note = EXCLUDED.note
        RETURNING id, created_at
    `
	e := &model.BlocklistEntry{Sender: sender, Hard: hard, Note: note}
	err := r.db.QueryRow(ctx, query, sender, hard, note, time.Now()).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *BlocklistRepository) Remove(ctx context.Context, sender string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sender_blocklist WHERE sender = $1`, sender)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: blocklist entry %s", model.ErrNotFound, sender)
	}
	return nil
}
