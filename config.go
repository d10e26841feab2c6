package norma

import (
	"time"
)

// Config consolidates the runtime configuration of the settings core and
// the bundled storage backends.
type Config struct {
	Schema   SchemaConfig   `json:"schema"`
	Storage  StorageConfig  `json:"storage"`
	Journal  JournalConfig  `json:"journal"`
	Logging  LoggingConfig  `json:"logging"`
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
	Bolt     BoltConfig     `json:"bolt"`
	File     FileConfig     `json:"file"`
	S3       S3Config       `json:"s3"`
	DuckDB   DuckDBConfig   `json:"duckdb"`
}

// SchemaConfig controls schema building and caching.
type SchemaConfig struct {
	// Debug disables the schema cache so every lookup rebuilds the schema
	// from live declarations.
	Debug bool `json:"debug"`
	// CacheSize bounds the in-process schema cache (number of classes).
	CacheSize int `json:"cacheSize"`
}

// StorageConfig selects and parametrizes the storage layer.
type StorageConfig struct {
	// DefaultAdapter is used by classes that declare no adapter themselves.
	DefaultAdapter string        `json:"defaultAdapter"`
	Timeout        time.Duration `json:"timeout"`
	// Adapters lists the built-in adapters the factory should open and
	// register. The memory adapter is always available.
	Adapters []string `json:"adapters"`
	// Breaker guards remote backends with a circuit breaker: after
	// Threshold failures within Window, calls fail fast for Cooldown.
	Breaker BreakerConfig `json:"breaker"`
}

// BreakerConfig parametrizes the storage circuit breaker.
type BreakerConfig struct {
	Enabled   bool          `json:"enabled"`
	Threshold int           `json:"threshold"`
	Window    time.Duration `json:"window"`
	Cooldown  time.Duration `json:"cooldown"`
}

// JournalConfig controls the settings change journal. Disabled by default;
// when enabled every persisted representation is recorded and periodically
// exported.
type JournalConfig struct {
	Enabled       bool          `json:"enabled"`
	TableName     string        `json:"tableName"`
	BatchSize     int           `json:"batchSize"`
	FlushInterval time.Duration `json:"flushInterval"`
	// ExportBucket receives parquet exports of flushed journal batches.
	// Empty disables exporting.
	ExportBucket string `json:"exportBucket"`
	ExportPrefix string `json:"exportPrefix"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level            string `json:"level"`
	Format           string `json:"format"`
	EnableStructured bool   `json:"enableStructured"`
	LogOperations    bool   `json:"logOperations"`
	LogErrors        bool   `json:"logErrors"`
}

// PostgresConfig contains connection settings for the postgres adapter and
// the journal recorder.
type PostgresConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"sslMode"`
	TableName       string        `json:"tableName"`
	MaxConnections  int           `json:"maxConnections"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
	Timeout         time.Duration `json:"timeout"`
	// UseIAMAuth generates an AWS DSQL auth token instead of a password.
	UseIAMAuth bool   `json:"useIamAuth"`
	Region     string `json:"region"`
}

// RedisConfig contains connection settings for the redis adapter.
type RedisConfig struct {
	Addr       string        `json:"addr"`
	Password   string        `json:"password"`
	DB         int           `json:"db"`
	KeyPrefix  string        `json:"keyPrefix"`
	TTL        time.Duration `json:"ttl"`
	MaxRetries int           `json:"maxRetries"`
}

// BoltConfig contains settings for the bbolt adapter.
type BoltConfig struct {
	Path       string        `json:"path"`
	BucketName string        `json:"bucketName"`
	Timeout    time.Duration `json:"timeout"`
}

// FileConfig contains settings for the file adapter.
type FileConfig struct {
	Directory string `json:"directory"`
	// Format selects the on-disk encoding: "json" or "yaml".
	Format      string        `json:"format"`
	LockTimeout time.Duration `json:"lockTimeout"`
}

// S3Config contains settings for the s3 adapter and journal exports.
type S3Config struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	UsePathStyle    bool   `json:"usePathStyle"`
}

// DuckDBConfig contains settings for the duckdb adapter.
type DuckDBConfig struct {
	Path      string `json:"path"`
	TableName string `json:"tableName"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Schema: SchemaConfig{
			Debug:     false,
			CacheSize: 256,
		},
		Storage: StorageConfig{
			DefaultAdapter: AdapterMemory,
			Timeout:        30 * time.Second,
			Adapters:       []string{AdapterMemory},
			Breaker: BreakerConfig{
				Enabled:   false,
				Threshold: 5,
				Window:    time.Minute,
				Cooldown:  30 * time.Second,
			},
		},
		Journal: JournalConfig{
			Enabled:       false,
			TableName:     "settings_journal",
			BatchSize:     100,
			FlushInterval: 30 * time.Second,
			ExportPrefix:  "journal",
		},
		Logging: LoggingConfig{
			Level:            "info",
			Format:           "json",
			EnableStructured: true,
			LogOperations:    false,
			LogErrors:        true,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			TableName:       "settings_store",
			MaxConnections:  10,
			ConnMaxLifetime: 5 * time.Minute,
			Timeout:         30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			KeyPrefix:  "settings:",
			MaxRetries: 3,
		},
		Bolt: BoltConfig{
			Path:       "settings.db",
			BucketName: "settings",
			Timeout:    5 * time.Second,
		},
		File: FileConfig{
			Directory:   "settings",
			Format:      "json",
			LockTimeout: 5 * time.Second,
		},
		S3: S3Config{
			Prefix: "settings",
		},
		DuckDB: DuckDBConfig{
			Path:      "settings.duckdb",
			TableName: "settings_store",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.DefaultAdapter == "" {
		return &ConfigError{Field: "storage.defaultAdapter", Message: "must not be empty"}
	}

	if c.Schema.CacheSize <= 0 && !c.Schema.Debug {
		return &ConfigError{Field: "schema.cacheSize", Message: "must be greater than 0"}
	}

	if c.Storage.Breaker.Enabled {
		if c.Storage.Breaker.Threshold <= 0 {
			return &ConfigError{Field: "storage.breaker.threshold", Message: "must be greater than 0"}
		}
		if c.Storage.Breaker.Window <= 0 {
			return &ConfigError{Field: "storage.breaker.window", Message: "must be greater than 0"}
		}
		if c.Storage.Breaker.Cooldown <= 0 {
			return &ConfigError{Field: "storage.breaker.cooldown", Message: "must be greater than 0"}
		}
	}

	if c.Journal.Enabled {
		if c.Journal.BatchSize <= 0 {
			return &ConfigError{Field: "journal.batchSize", Message: "must be greater than 0"}
		}
		if c.Journal.FlushInterval <= 0 {
			return &ConfigError{Field: "journal.flushInterval", Message: "must be greater than 0"}
		}
		if c.Journal.TableName == "" {
			return &ConfigError{Field: "journal.tableName", Message: "must not be empty"}
		}
	}

	if c.File.Format != "json" && c.File.Format != "yaml" {
		return &ConfigError{Field: "file.format", Message: "must be 'json' or 'yaml'"}
	}

	if c.Postgres.MaxConnections <= 0 {
		return &ConfigError{Field: "postgres.maxConnections", Message: "must be greater than 0"}
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
