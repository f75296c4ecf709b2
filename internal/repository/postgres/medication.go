package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
)

// MedicationRow is one row of the medications table.
type MedicationRow struct {
	Content   string          `db:"content"`
	Metadata  json.RawMessage `db:"metadata"`
	Embedding pgvector.Vector `db:"embedding"`
}

// MatchRow is one candidate returned by the match_medications function,
// ordered by the store by vector distance.
type MatchRow struct {
	ID         string          `db:"id"`
	Content    string          `db:"content"`
	Metadata   json.RawMessage `db:"metadata"`
	Similarity float64         `db:"similarity"`
}

// MedicationRepository stores embedding documents and runs nearest-neighbor
// matching against the medications table. The table schema and the
// match_medications function live in migrations/0001_medications.sql; the
// store itself is external to this service.
type MedicationRepository struct {
	db *sqlx.DB
}

func NewMedicationRepository(db *sqlx.DB) *MedicationRepository {
	return &MedicationRepository{db: db}
}

// BulkInsert inserts embedding documents in one transaction.
func (r *MedicationRepository) BulkInsert(ctx context.Context, rows []MedicationRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx,
		`INSERT INTO medications (content, metadata, embedding) VALUES ($1, $2, $3)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.Content, row.Metadata, row.Embedding); err != nil {
			return fmt.Errorf("failed to insert medication row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert: %w", err)
	}
	return nil
}

// Match calls the server-side nearest-neighbor function. The filter is a
// JSONB containment filter over metadata; pass nil for no filter. The
// function may cap or ignore any similarity expectations, so callers apply
// their own threshold.
func (r *MedicationRepository) Match(ctx context.Context, embedding pgvector.Vector, count int, filter json.RawMessage) ([]MatchRow, error) {
	if len(filter) == 0 {
		filter = json.RawMessage(`{}`)
	}

	var rows []MatchRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, content, metadata, similarity FROM match_medications($1, $2, $3)`,
		embedding, count, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to match medications: %w", err)
	}
	return rows, nil
}

// Count returns the number of stored medication documents.
func (r *MedicationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM medications`); err != nil {
		return 0, fmt.Errorf("failed to count medications: %w", err)
	}
	return count, nil
}

// Ping checks the store connection.
func (r *MedicationRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
