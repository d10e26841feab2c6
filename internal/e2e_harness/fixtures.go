package e2e_harness

import (
	"time"

	"github.com/lychee-technology/norma"
)

// ServerSettings is the root settings class the E2E flow exercises.
type ServerSettings struct {
	Host         string            `setting:"host"`
	Port         int               `setting:"port"`
	Debug        bool              `setting:"debug"`
	Tags         []string          `setting:"tags"`
	Limits       map[string]string `setting:"limits"`
	RestartedAt  time.Time         `setting:"restarted_at"`
	ReadTimeout  time.Duration     `setting:"read_timeout"`
	WriteTimeout time.Duration     `setting:"write_timeout"`

	Mailer norma.Embedded[MailerSettings] `embedded:""`
}

// MailerSettings is an embedded settings class stored under its own key.
type MailerSettings struct {
	SMTPHost string `setting:"smtp_host"`
	SMTPPort int    `setting:"smtp_port"`
	Sender   string `setting:"sender"`
}

// DefaultServerSettings returns the prototype registered for ServerSettings.
func DefaultServerSettings() *ServerSettings {
	return &ServerSettings{
		Host:         "0.0.0.0",
		Port:         8080,
		Tags:         []string{"e2e"},
		Limits:       map[string]string{"rps": "100"},
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// DefaultMailerSettings returns the prototype registered for MailerSettings.
func DefaultMailerSettings() *MailerSettings {
	return &MailerSettings{
		SMTPHost: "localhost",
		SMTPPort: 25,
		Sender:   "noreply@example.com",
	}
}

// PostgresConfigFor derives the adapter configuration pointing at the
// harness's postgres container.
func (h *TestHarness) PostgresConfigFor() norma.PostgresConfig {
	cfg := norma.DefaultConfig().Postgres
	cfg.Host = h.PGHost
	cfg.Port = h.PGPort
	cfg.Database = "postgres"
	cfg.Username = "postgres"
	cfg.Password = "password"
	cfg.SSLMode = "disable"
	cfg.TableName = "settings_e2e"
	return cfg
}

// S3ConfigFor derives the adapter configuration pointing at the harness's
// S3 container.
func (h *TestHarness) S3ConfigFor(bucket string) norma.S3Config {
	return norma.S3Config{
		Bucket:          bucket,
		Prefix:          "settings",
		Region:          "us-east-1",
		Endpoint:        h.S3Endpoint,
		AccessKeyID:     "minio",
		SecretAccessKey: "minio",
		UsePathStyle:    true,
	}
}

// RuntimeConfigFor assembles a full library configuration running against
// the harness's containers, with postgres as the default adapter.
func (h *TestHarness) RuntimeConfigFor(bucket string) *norma.Config {
	cfg := norma.DefaultConfig()
	cfg.Storage.DefaultAdapter = norma.AdapterPostgres
	cfg.Storage.Adapters = []string{norma.AdapterPostgres, norma.AdapterS3}
	cfg.Storage.Breaker.Enabled = true
	cfg.Postgres = h.PostgresConfigFor()
	cfg.S3 = h.S3ConfigFor(bucket)
	return cfg
}
