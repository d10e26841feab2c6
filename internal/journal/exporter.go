package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsCreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParquetExporter handles DuckDB interactions for exporting journal
// snapshots to an S3 temp path.
type ParquetExporter struct {
	DB     *sql.DB
	Logger *zap.Logger
}

// NewParquetExporter opens a DuckDB connection and configures pragmas and
// extensions.
func NewParquetExporter(ctx context.Context, cfg Config, s3AccessKey, s3Secret string, logger *zap.Logger) (*ParquetExporter, error) {
	cfg = cfg.withDefaults()

	db, err := sql.Open("duckdb", cfg.DuckDBPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pragmas := []string{
		fmt.Sprintf("PRAGMA memory_limit='%dMB';", cfg.DuckDBMemoryMB),
		fmt.Sprintf("PRAGMA threads=%d;", cfg.DuckDBThreads),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx2, p); err != nil {
			logger.Sugar().Warnw("duckdb pragma failed", "pragma", p, "err", err)
		}
	}

	exts := []string{"httpfs", "parquet", "postgres_scanner"}
	for _, e := range exts {
		if _, err := db.ExecContext(ctx2, "INSTALL "+e+";"); err != nil {
			logger.Sugar().Warnw("duckdb install extension failed", "ext", e, "err", err)
		} else {
			if _, err := db.ExecContext(ctx2, "LOAD "+e+";"); err != nil {
				logger.Sugar().Warnw("duckdb load extension failed", "ext", e, "err", err)
			}
		}
	}

	if s3AccessKey != "" {
		if _, err := db.ExecContext(ctx2, fmt.Sprintf("SET s3_access_key_id='%s';", s3AccessKey)); err != nil {
			logger.Sugar().Warnw("duckdb set s3_access_key_id failed", "err", err)
		}
	}
	if s3Secret != "" {
		if _, err := db.ExecContext(ctx2, fmt.Sprintf("SET s3_secret_access_key='%s';", s3Secret)); err != nil {
			logger.Sugar().Warnw("duckdb set s3_secret_access_key failed", "err", err)
		}
	}
	if cfg.S3Region != "" {
		if _, err := db.ExecContext(ctx2, fmt.Sprintf("SET s3_region='%s';", cfg.S3Region)); err != nil {
			logger.Sugar().Warnw("duckdb set s3_region failed", "err", err)
		}
	}
	if cfg.S3Endpoint != "" {
		ep := strings.TrimPrefix(cfg.S3Endpoint, "http://")
		if _, err := db.ExecContext(ctx2, fmt.Sprintf("SET s3_endpoint='%s';", ep)); err != nil {
			logger.Sugar().Warnw("duckdb set s3_endpoint failed", "err", err)
		}
		if _, err := db.ExecContext(ctx2, "SET s3_use_ssl=false;"); err != nil {
			logger.Sugar().Warnw("duckdb set s3_use_ssl failed", "err", err)
		}
		if _, err := db.ExecContext(ctx2, "SET s3_url_style='path';"); err != nil {
			logger.Sugar().Warnw("duckdb set s3_url_style failed", "err", err)
		}
	}

	return &ParquetExporter{DB: db, Logger: logger}, nil
}

// ExportSnapshotToTmp reads the unflushed journal rows through
// postgres_scan and runs COPY to the provided s3TmpPath, e.g.
// 's3://bucket/prefix/journal/_tmp/<tmp_uuid>.parquet'.
func (e *ParquetExporter) ExportSnapshotToTmp(ctx context.Context, pgConnStr, s3TmpPath, table string, snapshotTS int64) error {
	pgEsc := strings.ReplaceAll(pgConnStr, "'", "''")
	tableEsc := strings.ReplaceAll(table, "'", "''")
	s3Esc := strings.ReplaceAll(s3TmpPath, "'", "''")

	sql := fmt.Sprintf(`COPY (
SELECT
  CAST(revision AS VARCHAR) AS revision,
  class,
  key,
  version,
  CAST(payload AS VARCHAR) AS payload,
  changed_at
FROM postgres_scan('%s', '%s', 'flushed_at = 0 AND changed_at <= %d')
) TO '%s' (FORMAT PARQUET, COMPRESSION 'ZSTD');
`, pgEsc, tableEsc, snapshotTS, s3Esc)

	ctx2, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	if _, err := e.DB.ExecContext(ctx2, sql); err != nil {
		return fmt.Errorf("duckdb copy exec: %w", err)
	}
	return nil
}

// CopyTmpToFinal promotes an exported parquet object from its temp key to
// the final key and removes the temp object.
func CopyTmpToFinal(ctx context.Context, client *s3.Client, bucket, tmpKey, finalKey string, logger *zap.Logger) error {
	_, err := client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		CopySource: aws.String(bucket + "/" + tmpKey),
		Key:        aws.String(finalKey),
	})
	if err != nil {
		return fmt.Errorf("copy object: %w", err)
	}
	if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(tmpKey),
	}); err != nil {
		logger.Sugar().Warnw("failed to delete tmp object", "key", tmpKey, "err", err)
	}
	return nil
}

// RunOnce performs one full export pass: check thresholds, snapshot the
// unflushed rows to a temp parquet object, promote it, mark the rows
// flushed.
func RunOnce(ctx context.Context, cfg Config, dryRun bool, logger *zap.Logger) error {
	cfg = cfg.withDefaults()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	if cfg.S3Region != "" {
		awsCfg.Region = cfg.S3Region
	}
	if envKey := os.Getenv("AWS_ACCESS_KEY_ID"); envKey != "" {
		awsCfg.Credentials = awsCreds.NewStaticCredentialsProvider(envKey, os.Getenv("AWS_SECRET_ACCESS_KEY"), "")
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	db, err := OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	duck, err := NewParquetExporter(ctx, cfg, os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"), logger)
	if err != nil {
		return fmt.Errorf("new parquet exporter: %w", err)
	}
	defer duck.DB.Close()

	cnt, oldest, err := GetJournalStats(ctx, db, cfg.TableName)
	if err != nil {
		return fmt.Errorf("get journal stats: %w", err)
	}
	if cnt == 0 {
		logger.Sugar().Infow("no unflushed journal rows")
		return nil
	}

	nowMs := time.Now().UnixMilli()
	should := cnt >= int64(cfg.MinRecords)
	if oldest > 0 && nowMs-oldest >= cfg.MaxAgeMs {
		should = true
	}
	if !should {
		logger.Sugar().Infow("skip export: thresholds not met", "cnt", cnt, "oldest", oldest)
		return nil
	}

	snapshot := nowMs
	tmpUUID := uuid.Must(uuid.NewV7()).String()
	finalUUID := uuid.Must(uuid.NewV7()).String()
	tmpKey := strings.TrimSuffix(cfg.S3Prefix, "/") + fmt.Sprintf("/journal/_tmp/%s.parquet", tmpUUID)
	finalKey := strings.TrimSuffix(cfg.S3Prefix, "/") + fmt.Sprintf("/journal/%s.parquet", finalUUID)
	s3TmpPath := fmt.Sprintf("s3://%s/%s", cfg.S3Bucket, tmpKey)

	pgConnForDuck := BuildConnString(ctx, cfg, logger)
	logger.Sugar().Infow("export journal snapshot", "snapshot_ts", snapshot, "tmp", s3TmpPath)
	if err := duck.ExportSnapshotToTmp(ctx, pgConnForDuck, s3TmpPath, cfg.TableName, snapshot); err != nil {
		return fmt.Errorf("duckdb export: %w", err)
	}
	if err := CopyTmpToFinal(ctx, s3Client, cfg.S3Bucket, tmpKey, finalKey, logger); err != nil {
		return fmt.Errorf("s3 copy tmp->final: %w", err)
	}

	if dryRun {
		logger.Sugar().Infow("dry-run: skipping mark flushed")
		return nil
	}
	rowsUpdated, err := MarkFlushed(ctx, db, cfg.TableName, snapshot, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("mark flushed: %w", err)
	}
	logger.Sugar().Infow("journal export completed", "rows_flushed", rowsUpdated, "final_key", finalKey)
	return nil
}
