package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/lychee-technology/norma"
)

// DuckDBStorage keeps settings in an embedded DuckDB database, one row per
// storage key with the payload in a JSON text column. An empty path opens an
// in-memory database, which is handy for tests and scratch environments.
type DuckDBStorage struct {
	db    *sql.DB
	table string
}

func NewDuckDBStorage(ctx context.Context, cfg norma.DuckDBConfig) (*DuckDBStorage, error) {
	table := cfg.TableName
	if table == "" {
		table = "settings"
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	storage := &DuckDBStorage{db: db, table: quoteDuckDBIdentifier(table)}
	if err := storage.ensureTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return storage, nil
}

func (s *DuckDBStorage) ensureTable(ctx context.Context) error {
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		s.table,
	)
	if _, err := s.db.ExecContext(ctx2, query); err != nil {
		return norma.NewStorageError("failed to create settings table", err)
	}
	return nil
}

func (s *DuckDBStorage) Load(ctx context.Context, key string) (norma.NormalizedRepresentation, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE key = ?", s.table)

	var raw string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return norma.NormalizedRepresentation{}, nil
		}
		return nil, norma.NewStorageError(fmt.Sprintf("failed to read settings for key '%s'", key), err)
	}

	data := make(map[string]any)
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, norma.NewStorageError(fmt.Sprintf("failed to decode settings for key '%s'", key), err)
	}
	return norma.NormalizedRepresentation(data), nil
}

func (s *DuckDBStorage) Save(ctx context.Context, key string, data norma.NormalizedRepresentation) error {
	raw, err := json.Marshal(map[string]any(data))
	if err != nil {
		return norma.NewStorageError("failed to serialize settings document", err)
	}

	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (key, data, updated_at) VALUES (?, ?, ?)",
		s.table,
	)
	if _, err := s.db.ExecContext(ctx, query, key, string(raw), time.Now().UnixMilli()); err != nil {
		return norma.NewStorageError(fmt.Sprintf("failed to write settings for key '%s'", key), err)
	}
	return nil
}

func (s *DuckDBStorage) Keys(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT key FROM %s ORDER BY key", s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, norma.NewStorageError("failed to list settings keys", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, norma.NewStorageError("failed to scan settings key", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, norma.NewStorageError("error iterating settings keys", err)
	}
	return keys, nil
}

func (s *DuckDBStorage) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE key = ?", s.table)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return norma.NewStorageError(fmt.Sprintf("failed to delete settings for key '%s'", key), err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *DuckDBStorage) Close() error {
	return s.db.Close()
}

func quoteDuckDBIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
