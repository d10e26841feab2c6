// Package journal records settings persist operations into a Postgres
// journal table and exports flushed batches to S3 as parquet files.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/lychee-technology/norma"
)

// Config carries everything one journal pass needs: the Postgres journal
// table, flush thresholds, and the export destination.
type Config struct {
	TableName     string
	BatchSize     int
	FlushInterval time.Duration

	// Export thresholds: a batch is exported once MinRecords rows are
	// waiting or the oldest row is older than MaxAgeMs.
	MinRecords int
	MaxAgeMs   int64

	PGHost     string
	PGPort     int
	PGUser     string
	PGPassword string
	PGDB       string
	PGUseIAM   bool

	S3Bucket   string
	S3Prefix   string
	S3Region   string
	S3Endpoint string

	DuckDBPath     string
	DuckDBMemoryMB int
	DuckDBThreads  int
}

func (c Config) withDefaults() Config {
	if c.TableName == "" {
		c.TableName = "settings_journal"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	if c.MinRecords <= 0 {
		c.MinRecords = 500
	}
	if c.MaxAgeMs <= 0 {
		c.MaxAgeMs = int64((15 * time.Minute) / time.Millisecond)
	}
	if c.DuckDBMemoryMB <= 0 {
		c.DuckDBMemoryMB = 1024
	}
	if c.DuckDBThreads <= 0 {
		c.DuckDBThreads = 2
	}
	return c
}

// generateIAMTokenFn is swappable so tests can exercise the fallback path
// without AWS credentials.
var generateIAMTokenFn = func(ctx context.Context, endpoint, region string, creds aws.CredentialsProvider) (string, error) {
	return auth.GenerateDbConnectAuthToken(ctx, endpoint, region, creds)
}

// BuildConnString resolves the Postgres connection string for the journal,
// generating a DSQL IAM auth token when enabled and falling back to the
// configured password when token generation fails.
func BuildConnString(ctx context.Context, cfg Config, logger *zap.Logger) string {
	pgPassword := cfg.PGPassword
	if cfg.PGUseIAM {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Sugar().Warnw("failed to load aws config for IAM auth; falling back to configured password", "err", err)
		} else {
			region := awsCfg.Region
			if cfg.S3Region != "" {
				region = cfg.S3Region
			}
			endpoint := fmt.Sprintf("%s:%d", cfg.PGHost, cfg.PGPort)
			if token, err := generateIAMTokenFn(ctx, endpoint, region, awsCfg.Credentials); err == nil && token != "" {
				pgPassword = token
				logger.Sugar().Infow("generated IAM auth token for journal connection (dsql)")
			} else {
				logger.Sugar().Warnw("failed to generate IAM auth token; falling back to configured password", "err", err)
			}
		}
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=require",
		cfg.PGHost, cfg.PGPort, cfg.PGUser, pgPassword, cfg.PGDB)
}

// OpenDatabase opens the journal database over lib/pq.
func OpenDatabase(ctx context.Context, cfg Config, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildConnString(ctx, cfg, logger))
	if err != nil {
		return nil, fmt.Errorf("open pg: %w", err)
	}
	return db, nil
}

// Entry is one recorded persist operation.
type Entry struct {
	Revision  uuid.UUID
	Class     string
	Key       string
	Version   int
	ChangedAt int64
	Payload   []byte
}

type journalDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Recorder buffers journal entries and writes them in batches. It satisfies
// the manager's persist observer, so wiring it in is one constructor call.
type Recorder struct {
	db      journalDB
	table   string
	batch   int
	logger  *zap.Logger
	nowFunc func() time.Time

	mu      sync.Mutex
	pending []Entry
}

func NewRecorder(db journalDB, cfg Config, logger *zap.Logger) *Recorder {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.L()
	}
	return &Recorder{
		db:      db,
		table:   cfg.TableName,
		batch:   cfg.BatchSize,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// EnsureTable creates the journal table when it does not exist yet.
func (r *Recorder) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			revision UUID PRIMARY KEY,
			class TEXT NOT NULL,
			key TEXT NOT NULL,
			version INTEGER NOT NULL,
			payload JSONB NOT NULL,
			changed_at BIGINT NOT NULL,
			flushed_at BIGINT NOT NULL DEFAULT 0
		)`,
		pq.QuoteIdentifier(r.table),
	)
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create journal table: %w", err)
	}
	return nil
}

// ObservePersist queues one entry per successful persist. Failures are
// logged, never propagated; the journal must not break settings writes.
func (r *Recorder) ObservePersist(ctx context.Context, class, key string, version int, data norma.NormalizedRepresentation) {
	payload, err := json.Marshal(map[string]any(data))
	if err != nil {
		r.logger.Sugar().Errorw("failed to serialize journal payload", "class", class, "key", key, "err", err)
		return
	}
	entry := Entry{
		Revision:  uuid.Must(uuid.NewV7()),
		Class:     class,
		Key:       key,
		Version:   version,
		ChangedAt: r.nowFunc().UnixMilli(),
		Payload:   payload,
	}
	if err := r.Record(ctx, entry); err != nil {
		r.logger.Sugar().Errorw("failed to record journal entry", "class", class, "key", key, "err", err)
	}
}

// Record buffers an entry and flushes once the batch size is reached.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	r.mu.Lock()
	r.pending = append(r.pending, entry)
	shouldFlush := len(r.pending) >= r.batch
	r.mu.Unlock()

	if shouldFlush {
		return r.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered entries in one multi-value INSERT. Entries are
// requeued on failure so the next flush retries them.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	entries := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(entries) == 0 {
		return nil
	}

	query, args := buildInsertStatement(r.table, entries)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.mu.Lock()
		r.pending = append(entries, r.pending...)
		r.mu.Unlock()
		return fmt.Errorf("insert journal batch: %w", err)
	}
	r.logger.Sugar().Debugw("journal batch flushed", "entries", len(entries))
	return nil
}

// Pending reports how many entries wait for the next flush.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Run flushes on a ticker until the context is cancelled, then drains the
// remaining buffer with a short deadline.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := r.Flush(drainCtx); err != nil {
				r.logger.Sugar().Errorw("final journal flush failed", "err", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				r.logger.Sugar().Errorw("journal flush failed", "err", err)
			}
		}
	}
}

// buildInsertStatement renders one multi-value INSERT for a batch.
func buildInsertStatement(table string, entries []Entry) (string, []any) {
	var valuesClauses []string
	var args []any
	paramIndex := 1

	for _, e := range entries {
		valuesClauses = append(valuesClauses, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, 0)",
			paramIndex, paramIndex+1, paramIndex+2, paramIndex+3, paramIndex+4, paramIndex+5))
		args = append(args,
			e.Revision,
			e.Class,
			e.Key,
			e.Version,
			string(e.Payload),
			e.ChangedAt,
		)
		paramIndex += 6
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (revision, class, key, version, payload, changed_at, flushed_at) VALUES %s",
		pq.QuoteIdentifier(table),
		strings.Join(valuesClauses, ", "),
	)
	return query, args
}

// GetJournalStats returns the unflushed row count and the oldest unflushed
// changed_at timestamp (0 when the table is drained).
func GetJournalStats(ctx context.Context, db journalDB, table string) (int64, int64, error) {
	query := fmt.Sprintf(
		"SELECT COUNT(*), COALESCE(MIN(changed_at), 0) FROM %s WHERE flushed_at = 0",
		pq.QuoteIdentifier(table),
	)
	var count, oldest int64
	if err := db.QueryRowContext(ctx, query).Scan(&count, &oldest); err != nil {
		return 0, 0, fmt.Errorf("query journal stats: %w", err)
	}
	return count, oldest, nil
}

// MarkFlushed stamps every unflushed row up to the snapshot timestamp.
func MarkFlushed(ctx context.Context, db journalDB, table string, snapshotTS, flushedAt int64) (int64, error) {
	query := fmt.Sprintf(
		"UPDATE %s SET flushed_at = $1 WHERE flushed_at = 0 AND changed_at <= $2",
		pq.QuoteIdentifier(table),
	)
	res, err := db.ExecContext(ctx, query, flushedAt, snapshotTS)
	if err != nil {
		return 0, fmt.Errorf("mark flushed: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return rows, nil
}
