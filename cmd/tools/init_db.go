package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type initDBOptions struct {
	host          string
	port          int
	database      string
	user          string
	password      string
	sslMode       string
	settingsTable string
	journalTable  string
}

func runInitDB(args []string) error {
	flags := flag.NewFlagSet("init-db", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: norma-tools init-db [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	opts := initDBOptions{}
	flags.StringVar(&opts.host, "db-host", getenvDefault("DB_HOST", "localhost"), "database host")
	flags.IntVar(&opts.port, "db-port", getenvDefaultInt("DB_PORT", 5432), "database port")
	flags.StringVar(&opts.database, "db-name", getenvDefault("DB_NAME", "norma"), "database name")
	flags.StringVar(&opts.user, "db-user", getenvDefault("DB_USER", "postgres"), "database user")
	flags.StringVar(&opts.password, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flags.StringVar(&opts.sslMode, "db-ssl-mode", getenvDefault("DB_SSL_MODE", "disable"), "database sslmode")
	flags.StringVar(&opts.settingsTable, "settings-table", getenvDefault("SETTINGS_TABLE", "settings_store"), "settings store table name")
	flags.StringVar(&opts.journalTable, "journal-table", getenvDefault("JOURNAL_TABLE", "settings_journal"), "change journal table name")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	return initDatabase(opts)
}

func initDatabase(opts initDBOptions) error {
	ctx := context.Background()

	connString := buildConnString(opts)
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if err := withTx(ctx, conn, func(tx pgx.Tx) error {
		return ensureTables(ctx, tx, opts)
	}); err != nil {
		return err
	}

	fmt.Println("Database initialized successfully.")
	return nil
}

func buildConnString(opts initDBOptions) string {
	hostPort := fmt.Sprintf("%s:%d", opts.host, opts.port)

	var userInfo *url.Userinfo
	if opts.password != "" {
		userInfo = url.UserPassword(opts.user, opts.password)
	} else {
		userInfo = url.User(opts.user)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   hostPort,
		Path:   "/" + opts.database,
	}

	q := url.Values{}
	if opts.sslMode != "" {
		q.Set("sslmode", opts.sslMode)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func ensureTables(ctx context.Context, tx pgx.Tx, opts initDBOptions) error {
	settingsTable := quoteIdentifier(opts.settingsTable)
	journalTable := quoteIdentifier(opts.journalTable)

	ddlSettings := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key        TEXT PRIMARY KEY,
		data       JSONB NOT NULL,
		revision   UUID NOT NULL,
		updated_at BIGINT NOT NULL
	)`, settingsTable)

	if _, err := tx.Exec(ctx, ddlSettings); err != nil {
		return fmt.Errorf("ensure settings table: %w", err)
	}
	fmt.Printf("Created settings table: %s\n", opts.settingsTable)

	ddlJournal := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		revision   UUID PRIMARY KEY,
		class      TEXT NOT NULL,
		key        TEXT NOT NULL,
		version    INTEGER NOT NULL,
		payload    JSONB NOT NULL,
		changed_at BIGINT NOT NULL,
		flushed_at BIGINT NOT NULL DEFAULT 0
	)`, journalTable)

	if _, err := tx.Exec(ctx, ddlJournal); err != nil {
		return fmt.Errorf("ensure journal table: %w", err)
	}
	fmt.Printf("Created journal table: %s\n", opts.journalTable)

	// The flush path scans unflushed entries by age; the stats query and the
	// flush-marking update both filter on flushed_at = 0.
	idxJournal := quoteIdentifier(makeIndexName(opts.journalTable, "unflushed"))
	createIdxJournal := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (flushed_at, changed_at)`, idxJournal, journalTable)
	if _, err := tx.Exec(ctx, createIdxJournal); err != nil {
		return fmt.Errorf("create journal index: %w", err)
	}

	idxClassKey := quoteIdentifier(makeIndexName(opts.journalTable, "class_key"))
	createIdxClassKey := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (class, key, changed_at)`, idxClassKey, journalTable)
	if _, err := tx.Exec(ctx, createIdxClassKey); err != nil {
		return fmt.Errorf("create journal class/key index: %w", err)
	}

	return nil
}

func withTx(ctx context.Context, conn *pgxpool.Conn, fn func(pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w; rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func quoteIdentifier(name string) string {
	return pgx.Identifier(splitIdentifier(name)).Sanitize()
}

func splitIdentifier(name string) []string {
	parts := strings.Split(name, ".")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return []string{name}
	}
	return result
}

func makeIndexName(table string, suffix string) string {
	base := strings.ReplaceAll(table, ".", "_")
	base = strings.ReplaceAll(base, `"`, "")
	return fmt.Sprintf("%s_%s_idx", base, suffix)
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDefaultInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
