// Package sqlitevec provides an embedded vector driver using sqlite-vec, with
// one vec0 virtual table per perspective and a shared payload mapping table.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/reveriehq/engram/pkg/vector"
)

// searchOversample widens KNN queries so post-filtering still yields topK.
const searchOversample = 4

var perspectiveNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Driver implements vector.Driver using SQLite with sqlite-vec.
type Driver struct {
	db           *sql.DB
	perspectives map[string]uint
	logger       *zap.Logger
}

// Config holds configuration for the sqlite-vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Perspectives maps each perspective name to its vector dimensionality.
	// One vec0 virtual table is created per perspective.
	Perspectives map[string]uint
}

// NewDriver creates an embedded vector driver backed by sqlite-vec.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if len(c.Perspectives) == 0 {
		return nil, fmt.Errorf("at least one perspective is required")
	}
	for name, dims := range c.Perspectives {
		if !perspectiveNameRe.MatchString(name) {
			return nil, fmt.Errorf("invalid perspective name %q", name)
		}
		if dims == 0 {
			return nil, fmt.Errorf("perspective %q dimensions cannot be 0", name)
		}
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// Mapping table: string point IDs to integer rowids, plus the payload
	// columns every filter touches.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_points (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			point_id TEXT NOT NULL UNIQUE,
			owner_key TEXT NOT NULL,
			created_at REAL NOT NULL,
			tier_rank INTEGER NOT NULL DEFAULT 0,
			superseded_by TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating points table: %w", err)
	}

	for name, dims := range c.Perspectives {
		createVec := fmt.Sprintf(
			`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d])`,
			embTable(name), dims,
		)
		if _, err := db.Exec(createVec); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating vec0 table for perspective %q: %w", name, err)
		}
	}

	logger.Info("sqlite-vec vector driver initialized",
		zap.String("db_path", c.DBPath),
		zap.Int("perspectives", len(c.Perspectives)),
		zap.String("vec_version", vecVersion),
	)

	return &Driver{
		db:           db,
		perspectives: c.Perspectives,
		logger:       logger,
	}, nil
}

func embTable(perspective string) string {
	return "vec_emb_" + perspective
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB format
// sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Upsert stores points, replacing any existing point with the same ID.
func (d *Driver) Upsert(ctx context.Context, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range points {
		for perspective := range p.Vectors {
			if _, ok := d.perspectives[perspective]; !ok {
				return fmt.Errorf("unknown perspective %q for point %s", perspective, p.ID)
			}
		}

		owner, createdAt, tierRank, superseded, extra, err := splitPayload(p.Payload)
		if err != nil {
			return fmt.Errorf("encoding payload for point %s: %w", p.ID, err)
		}

		var rowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_points WHERE point_id = ?`, p.ID,
		).Scan(&rowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx, `
				UPDATE vec_points
				SET owner_key = ?, created_at = ?, tier_rank = ?, superseded_by = ?, version = ?, payload = ?
				WHERE rowid = ?`,
				owner, createdAt, tierRank, superseded, p.Version, extra, rowID,
			); err != nil {
				return fmt.Errorf("updating point %s: %w", p.ID, err)
			}
		case sql.ErrNoRows:
			result, err := tx.ExecContext(ctx, `
				INSERT INTO vec_points(point_id, owner_key, created_at, tier_rank, superseded_by, version, payload)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				p.ID, owner, createdAt, tierRank, superseded, p.Version, extra,
			)
			if err != nil {
				return fmt.Errorf("inserting point %s: %w", p.ID, err)
			}
			rowID, err = result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for point %s: %w", p.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing point %s: %w", p.ID, err)
		}

		// vec0 does not support UPDATE: refresh embeddings via DELETE+INSERT.
		for perspective, emb := range p.Vectors {
			table := embTable(perspective)
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, table), rowID,
			); err != nil {
				return fmt.Errorf("deleting old %s embedding for %s: %w", perspective, p.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, table),
				rowID, serializeFloat32(emb),
			); err != nil {
				return fmt.Errorf("inserting %s embedding for %s: %w", perspective, p.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("upserted points to sqlite-vec", zap.Int("count", len(points)))
	return nil
}

// filterClause builds the WHERE fragment for a vector.Filter against the
// vec_points columns (aliased as p).
func filterClause(f vector.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if f.Owner != "" {
		clauses = append(clauses, "p.owner_key = ?")
		args = append(args, f.Owner)
	}
	if f.MinTierRank >= 0 {
		clauses = append(clauses, "p.tier_rank >= ?")
		args = append(args, f.MinTierRank)
	}
	if !f.IncludeSuperseded {
		clauses = append(clauses, "p.superseded_by = ''")
	}
	if !f.CreatedFrom.IsZero() {
		clauses = append(clauses, "p.created_at >= ?")
		args = append(args, unixSeconds(f.CreatedFrom))
	}
	if !f.CreatedTo.IsZero() {
		clauses = append(clauses, "p.created_at < ?")
		args = append(args, unixSeconds(f.CreatedTo))
	}

	if len(clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(clauses, " AND "), args
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Search finds the topK most similar points under the given perspective.
// KNN runs first with oversampling, filters apply on the joined rows.
func (d *Driver) Search(ctx context.Context, perspective string, embedding []float32, f vector.Filter, topK int) ([]vector.SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if _, ok := d.perspectives[perspective]; !ok {
		return nil, fmt.Errorf("unknown perspective %q", perspective)
	}

	where, args := filterClause(f)
	query := fmt.Sprintf(`
		SELECT p.point_id, p.owner_key, p.created_at, p.tier_rank, p.superseded_by, p.version, p.payload, ve.distance
		FROM %s ve
		INNER JOIN vec_points p ON p.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
			AND %s
		ORDER BY ve.distance
		LIMIT ?
	`, embTable(perspective), where)

	queryArgs := append([]any{serializeFloat32(embedding), topK*searchOversample + 16}, args...)
	queryArgs = append(queryArgs, topK)

	rows, err := d.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("querying perspective %q: %w", perspective, err)
	}
	defer rows.Close()

	var results []vector.SearchResult
	for rows.Next() {
		var (
			p        vector.Point
			distance float64
		)
		if p, distance, err = scanPointRow(rows); err != nil {
			return nil, err
		}
		results = append(results, vector.SearchResult{
			Point: p,
			// Lower distance = higher similarity.
			Score: float32(1.0 / (1.0 + distance)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec",
		zap.String("perspective", perspective),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Get retrieves points by their IDs. Embeddings are not loaded; callers on
// the hot path only need payloads.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Point, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT p.point_id, p.owner_key, p.created_at, p.tier_rank, p.superseded_by, p.version, p.payload, 0.0
		FROM vec_points p
		WHERE p.point_id IN (%s)
	`, strings.Join(placeholders, ","))

	return d.collectPoints(ctx, query, args...)
}

// List returns all points matching the filter.
func (d *Driver) List(ctx context.Context, f vector.Filter) ([]vector.Point, error) {
	where, args := filterClause(f)
	query := fmt.Sprintf(`
		SELECT p.point_id, p.owner_key, p.created_at, p.tier_rank, p.superseded_by, p.version, p.payload, 0.0
		FROM vec_points p
		WHERE %s
		ORDER BY p.created_at
	`, where)

	return d.collectPoints(ctx, query, args...)
}

// Owners returns the distinct owner keys present in the store.
func (d *Driver) Owners(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT DISTINCT owner_key FROM vec_points ORDER BY owner_key`)
	if err != nil {
		return nil, fmt.Errorf("querying owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scanning owner: %w", err)
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating owners: %w", err)
	}
	return owners, nil
}

// SetPayload merges updates into a point's payload under a real
// compare-and-set: the UPDATE is guarded by the version column.
func (d *Driver) SetPayload(ctx context.Context, id string, updates map[string]any, expectedVersion int64) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		version int64
		extra   string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT version, payload FROM vec_points WHERE point_id = ?`, id,
	).Scan(&version, &extra)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", vector.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("reading point %s: %w", id, err)
	}
	if version != expectedVersion {
		return fmt.Errorf("%w: point %s at version %d, expected %d",
			vector.ErrVersionMismatch, id, version, expectedVersion)
	}

	merged := map[string]any{}
	if err := json.Unmarshal([]byte(extra), &merged); err != nil {
		return fmt.Errorf("decoding payload for %s: %w", id, err)
	}

	sets := []string{"version = version + 1"}
	var args []any
	for key, value := range updates {
		switch key {
		case vector.PayloadOwner:
			sets = append(sets, "owner_key = ?")
			args = append(args, value)
		case vector.PayloadTierRank:
			sets = append(sets, "tier_rank = ?")
			args = append(args, value)
		case vector.PayloadSuperseded:
			sets = append(sets, "superseded_by = ?")
			args = append(args, value)
		case vector.PayloadCreatedAt:
			sets = append(sets, "created_at = ?")
			args = append(args, value)
		default:
			merged[key] = value
		}
	}

	extraBytes, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encoding payload for %s: %w", id, err)
	}
	sets = append(sets, "payload = ?")
	args = append(args, string(extraBytes))

	args = append(args, id, expectedVersion)
	result, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE vec_points SET %s WHERE point_id = ? AND version = ?`, strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating point %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: point %s changed mid-update", vector.ErrVersionMismatch, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Delete physically removes points by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT rowid FROM vec_points WHERE point_id IN (%s)`, inClause), args...,
	)
	if err != nil {
		return fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rowids: %w", err)
	}

	for perspective := range d.perspectives {
		table := embTable(perspective)
		for _, rowID := range rowIDs {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, table), rowID,
			); err != nil {
				return fmt.Errorf("deleting %s embedding rowid %d: %w", perspective, rowID, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM vec_points WHERE point_id IN (%s)`, inClause), args...,
	); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted points from sqlite-vec", zap.Int("count", len(ids)))
	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

// splitPayload separates the filterable payload columns from the JSON rest.
func splitPayload(payload map[string]any) (owner string, createdAt float64, tierRank int64, superseded string, extra string, err error) {
	rest := make(map[string]any, len(payload))
	for key, value := range payload {
		switch key {
		case vector.PayloadOwner:
			owner, _ = value.(string)
		case vector.PayloadCreatedAt:
			switch v := value.(type) {
			case float64:
				createdAt = v
			case int64:
				createdAt = float64(v)
			}
		case vector.PayloadTierRank:
			switch v := value.(type) {
			case int64:
				tierRank = v
			case int:
				tierRank = int64(v)
			case float64:
				tierRank = int64(v)
			}
		case vector.PayloadSuperseded:
			superseded, _ = value.(string)
		default:
			rest[key] = value
		}
	}

	extraBytes, err := json.Marshal(rest)
	if err != nil {
		return "", 0, 0, "", "", err
	}
	return owner, createdAt, tierRank, superseded, string(extraBytes), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPointRow reconstructs a vector.Point from the standard column set.
func scanPointRow(row rowScanner) (vector.Point, float64, error) {
	var (
		p          vector.Point
		owner      string
		createdAt  float64
		tierRank   int64
		superseded string
		extra      string
		distance   float64
	)
	if err := row.Scan(&p.ID, &owner, &createdAt, &tierRank, &superseded, &p.Version, &extra, &distance); err != nil {
		return p, 0, fmt.Errorf("scanning point: %w", err)
	}

	payload := map[string]any{}
	if err := json.Unmarshal([]byte(extra), &payload); err != nil {
		return p, 0, fmt.Errorf("decoding payload for %s: %w", p.ID, err)
	}
	payload[vector.PayloadOwner] = owner
	payload[vector.PayloadCreatedAt] = createdAt
	payload[vector.PayloadTierRank] = tierRank
	if superseded != "" {
		payload[vector.PayloadSuperseded] = superseded
	}
	p.Payload = payload

	return p, distance, nil
}

func (d *Driver) collectPoints(ctx context.Context, query string, args ...any) ([]vector.Point, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}
	defer rows.Close()

	var points []vector.Point
	for rows.Next() {
		p, _, err := scanPointRow(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating points: %w", err)
	}
	return points, nil
}

var _ vector.Driver = (*Driver)(nil)
