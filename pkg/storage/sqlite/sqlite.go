// Package sqlite provides a SQLite-backed summary store for embedded
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/reveriehq/engram/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS summaries (
	owner_key TEXT NOT NULL,
	window_start INTEGER NOT NULL,
	window_end INTEGER NOT NULL,
	summary_text TEXT NOT NULL,
	key_topics TEXT NOT NULL DEFAULT '[]',
	dominant_tone TEXT NOT NULL DEFAULT '',
	message_count INTEGER NOT NULL DEFAULT 0,
	compression_ratio REAL NOT NULL DEFAULT 0,
	confidence_score REAL NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	UNIQUE (owner_key, window_start, window_end)
)`

// Store implements storage.SummaryStore on SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath and applies the schema.
// Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Insert writes a summary row; INSERT OR IGNORE keeps re-runs no-ops.
func (s *Store) Insert(ctx context.Context, summary *storage.WindowSummary) (bool, error) {
	topics, err := json.Marshal(summary.KeyTopics)
	if err != nil {
		return false, fmt.Errorf("encoding key topics: %w", err)
	}

	createdAt := summary.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO summaries (
			owner_key, window_start, window_end, summary_text, key_topics,
			dominant_tone, message_count, compression_ratio, confidence_score, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.OwnerKey,
		summary.WindowStart.UTC().Unix(),
		summary.WindowEnd.UTC().Unix(),
		summary.SummaryText,
		string(topics),
		summary.DominantTone,
		summary.MessageCount,
		summary.CompressionRatio,
		summary.ConfidenceScore,
		createdAt.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting summary for %s: %w", summary.OwnerKey, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking insert result: %w", err)
	}
	return n > 0, nil
}

// LatestWindowEnd returns the newest summarized window end for the owner.
func (s *Store) LatestWindowEnd(ctx context.Context, ownerKey string) (time.Time, error) {
	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(window_end) FROM summaries WHERE owner_key = ?`, ownerKey,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("querying latest window for %s: %w", ownerKey, err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return time.Unix(latest.Int64, 0).UTC(), nil
}

// List returns the owner's summaries, newest window first.
func (s *Store) List(ctx context.Context, ownerKey string, limit int) ([]*storage.WindowSummary, error) {
	query := `
		SELECT owner_key, window_start, window_end, summary_text, key_topics,
			dominant_tone, message_count, compression_ratio, confidence_score, created_at
		FROM summaries
		WHERE owner_key = ?
		ORDER BY window_end DESC`
	args := []any{ownerKey}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing summaries for %s: %w", ownerKey, err)
	}
	defer rows.Close()

	var summaries []*storage.WindowSummary
	for rows.Next() {
		var (
			sum                           storage.WindowSummary
			windowStart, windowEnd, stamp int64
			topics                        string
		)
		if err := rows.Scan(
			&sum.OwnerKey, &windowStart, &windowEnd, &sum.SummaryText, &topics,
			&sum.DominantTone, &sum.MessageCount, &sum.CompressionRatio,
			&sum.ConfidenceScore, &stamp,
		); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}

		if err := json.Unmarshal([]byte(topics), &sum.KeyTopics); err != nil {
			return nil, fmt.Errorf("decoding key topics: %w", err)
		}
		sum.WindowStart = time.Unix(windowStart, 0).UTC()
		sum.WindowEnd = time.Unix(windowEnd, 0).UTC()
		sum.CreatedAt = time.Unix(stamp, 0).UTC()

		summaries = append(summaries, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating summaries: %w", err)
	}

	return summaries, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ storage.SummaryStore = (*Store)(nil)
