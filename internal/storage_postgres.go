package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lychee-technology/norma"
)

// settingsPool is the subset of pgxpool.Pool the adapter needs. Tests
// substitute a pgxmock pool.
type settingsPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStorage stores one row per storage key. The payload is kept as
// JSONB; every save stamps a fresh v7 revision so external consumers can
// detect writes.
type PostgresStorage struct {
	pool      settingsPool
	table     string
	nowFunc   func() time.Time
	closeFunc func()
}

// NewPostgresStorage opens a pgx pool for the configured database and
// verifies the connection.
func NewPostgresStorage(ctx context.Context, cfg norma.PostgresConfig) (*PostgresStorage, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		sslMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.Timeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.Timeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := NewPostgresStorageWithPool(pool, cfg.TableName)
	storage.closeFunc = pool.Close
	return storage, nil
}

// NewPostgresStorageWithPool wraps an existing pool. The caller keeps
// ownership of the pool's lifecycle.
func NewPostgresStorageWithPool(pool settingsPool, tableName string) *PostgresStorage {
	if tableName == "" {
		tableName = "settings"
	}
	return &PostgresStorage{
		pool:    pool,
		table:   sanitizeTableName(tableName),
		nowFunc: time.Now,
	}
}

func (s *PostgresStorage) withClock(now func() time.Time) {
	if now == nil {
		return
	}
	s.nowFunc = now
}

// EnsureTable creates the settings table when it does not exist yet.
func (s *PostgresStorage) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			revision UUID NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		s.table,
	)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return norma.NewStorageError("failed to create settings table", err)
	}
	return nil
}

func (s *PostgresStorage) Load(ctx context.Context, key string) (norma.NormalizedRepresentation, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE key = $1", s.table)

	var raw []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return norma.NormalizedRepresentation{}, nil
		}
		return nil, norma.NewStorageError(fmt.Sprintf("failed to read settings for key '%s'", key), err)
	}

	data := make(map[string]any)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, norma.NewStorageError(fmt.Sprintf("failed to decode settings for key '%s'", key), err)
	}
	return norma.NormalizedRepresentation(data), nil
}

func (s *PostgresStorage) Save(ctx context.Context, key string, data norma.NormalizedRepresentation) error {
	raw, err := json.Marshal(map[string]any(data))
	if err != nil {
		return norma.NewStorageError("failed to serialize settings document", err)
	}

	revision := uuid.Must(uuid.NewV7())
	query := fmt.Sprintf(
		`INSERT INTO %s (key, data, revision, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (key)
			DO UPDATE SET data = EXCLUDED.data, revision = EXCLUDED.revision, updated_at = EXCLUDED.updated_at`,
		s.table,
	)
	if _, err := s.pool.Exec(ctx, query, key, raw, revision, s.nowFunc().UnixMilli()); err != nil {
		return norma.NewStorageError(fmt.Sprintf("failed to write settings for key '%s'", key), err)
	}
	return nil
}

func (s *PostgresStorage) Keys(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT key FROM %s ORDER BY key", s.table)

	rows, err := s.pool.Query(ctx, query)
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

func (s *PostgresStorage) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE key = $1", s.table)
	if _, err := s.pool.Exec(ctx, query, key); err != nil {
		return norma.NewStorageError(fmt.Sprintf("failed to delete settings for key '%s'", key), err)
	}
	return nil
}

// Close releases the pool when this adapter created it.
func (s *PostgresStorage) Close() error {
	if s.closeFunc != nil {
		s.closeFunc()
	}
	return nil
}

// sanitizeTableName quotes a possibly schema-qualified table name so it can
// be interpolated into statements.
func sanitizeTableName(name string) string {
	parts := strings.Split(name, ".")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.Trim(part, " \"")
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}
	if len(clean) == 0 {
		clean = []string{name}
	}
	return pgx.Identifier(clean).Sanitize()
}
