// Package store persists batch prediction results behind
// content-addressed download tokens.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound reports an unknown download token.
var ErrNotFound = errors.New("result not found")

const defaultCacheSize = 64

// Row is one stored prediction. ID is kept as its rendered text form.
type Row struct {
	ID         string
	Prediction float64
}

// Store keeps result batches in SQLite and caches rendered CSV bodies
// in memory. Tokens are derived from the CSV content, so identical
// batches collapse onto one entry and concurrent uploads never collide.
type Store struct {
	db    *sql.DB
	cache *lru.Cache[string, []byte]
}

// Open creates or opens the result database. cacheSize <= 0 selects a
// default.
func Open(path string, cacheSize int) (*Store, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open result database: %w", err)
	}

	query := `
    CREATE TABLE IF NOT EXISTS batches (
        token TEXT PRIMARY KEY,
        row_count INTEGER NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    CREATE TABLE IF NOT EXISTS batch_predictions (
        token TEXT NOT NULL,
        seq INTEGER NOT NULL,
        row_id TEXT NOT NULL,
        prediction REAL NOT NULL,
        PRIMARY KEY (token, seq)
    );
    `
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("create result tables: %w", err)
	}

	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, cache: cache}, nil
}

// SaveBatch stores a result batch and returns its download token. The
// token is the truncated SHA-256 of the rendered CSV, so re-saving the
// same results is a no-op that yields the same token.
func (s *Store) SaveBatch(ctx context.Context, rows []Row) (string, error) {
	if len(rows) == 0 {
		return "", errors.New("no rows to save")
	}

	body := RenderCSV(rows)
	sum := sha256.Sum256(body)
	token := hex.EncodeToString(sum[:])[:16]

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO batches (token, row_count) VALUES (?, ?)`,
		token, len(rows)); err != nil {
		return "", err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO batch_predictions (token, seq, row_id, prediction) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, token, i, row.ID, row.Prediction); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	s.cache.Add(token, body)
	return token, nil
}

// GetCSV returns the rendered CSV body for a token, from cache when
// possible.
func (s *Store) GetCSV(ctx context.Context, token string) ([]byte, error) {
	if body, ok := s.cache.Get(token); ok {
		return body, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT row_id, prediction FROM batch_predictions WHERE token = ? ORDER BY seq`, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stored []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.Prediction); err != nil {
			return nil, err
		}
		stored = append(stored, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, ErrNotFound
	}

	body := RenderCSV(stored)
	s.cache.Add(token, body)
	return body, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RenderCSV renders rows as `id,prediction` delimited text.
func RenderCSV(rows []Row) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "prediction"})
	for _, row := range rows {
		_ = w.Write([]string{row.ID, strconv.FormatFloat(row.Prediction, 'g', -1, 64)})
	}
	w.Flush()
	return buf.Bytes()
}
