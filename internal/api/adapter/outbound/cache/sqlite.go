package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthanhphan/go-model-share/internal/api/domain"
	"github.com/anthanhphan/go-model-share/internal/api/port"
	"github.com/anthanhphan/gosdk/logger"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS model_records (
	id             TEXT    NOT NULL UNIQUE,
	uploaded_at_ns INTEGER NOT NULL,
	payload        TEXT    NOT NULL
)`

// SQLiteStore persists records in a single-file SQLite database.
// The implicit rowid is the insertion order; upserts keep it.
type SQLiteStore struct {
	db *sql.DB
}

var _ port.CacheStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create model_records table: %w", err)
	}

	logger.Infow("SQLite cache opened", "path", path)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.ModelRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM model_records WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get %s: %w", id, err)
	}

	var rec domain.ModelRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) Put(ctx context.Context, record domain.ModelRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", record.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO model_records (id, uploaded_at_ns, payload) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET uploaded_at_ns = excluded.uploaded_at_ns, payload = excluded.payload`,
		record.ID, record.UploadedAt.UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("sqlite put %s: %w", record.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM model_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite remove %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]domain.ModelRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload FROM model_records ORDER BY uploaded_at_ns DESC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []domain.ModelRecord{}
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		var rec domain.ModelRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			logger.Warnw("Skipping undecodable cached record", "id", id, "error", err.Error())
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite list: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
