package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StorageConfig locates the supplier folder tree and the engine's own
// state files.
type StorageConfig struct {
	// Root is the directory that holds one folder per supplier/vendor.
	Root string `mapstructure:"root" yaml:"root"`

	// AuditLog is the append-only CSV activity log.
	AuditLog string `mapstructure:"audit_log" yaml:"audit_log"`

	// Checkpoint is the JSON file holding the last successful fetch instant.
	Checkpoint string `mapstructure:"checkpoint" yaml:"checkpoint"`

	// Database is the SQLite file used for run history. Empty disables it.
	Database string `mapstructure:"database" yaml:"database"`
}

// ScheduleConfig holds the fixed daily fetch trigger times ("HH:MM").
type ScheduleConfig struct {
	Times []string `mapstructure:"times" yaml:"times"`
}

// MailConfig holds the IMAP/SMTP account used as the mail transport.
type MailConfig struct {
	IMAPHost      string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort      string `mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost      string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort      string `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username      string `mapstructure:"username" yaml:"username"`
	Password      string `mapstructure:"password" yaml:"-"`
	From          string `mapstructure:"from" yaml:"from"`
	TLS           bool   `mapstructure:"tls" yaml:"tls"`
	InboxMailbox  string `mapstructure:"inbox_mailbox" yaml:"inbox_mailbox"`
	DraftsMailbox string `mapstructure:"drafts_mailbox" yaml:"drafts_mailbox"`
}

// DispatchConfig holds defaults for outbound RFQ runs.
type DispatchConfig struct {
	Subject      string `mapstructure:"subject" yaml:"subject"`
	BodyTemplate string `mapstructure:"body_template" yaml:"body_template"`
	Attachment   string `mapstructure:"attachment" yaml:"attachment"`
	ManualCC     string `mapstructure:"manual_cc" yaml:"manual_cc"`
	AutoSend     bool   `mapstructure:"auto_send" yaml:"auto_send"`
	ThrottleMs   int    `mapstructure:"throttle_ms" yaml:"throttle_ms"`
}

// RegistryConfig points at the vendor spreadsheet loaded at startup.
type RegistryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
	File   string `mapstructure:"file" yaml:"file"`
}

// MetricsConfig enables the Prometheus endpoint in serve mode.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Mail     MailConfig     `mapstructure:"mail" yaml:"mail"`
	Dispatch DispatchConfig `mapstructure:"dispatch" yaml:"dispatch"`
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// DefaultBodyTemplate is the RFQ body used when none is configured.
const DefaultBodyTemplate = "<p>Hello <b>{VendorName}</b>,</p><p>Please confirm your company details.</p>"

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/vendorauto/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "vendorauto", "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	cfg := &AppConfig{
		Storage: StorageConfig{
			Root: "./Suppliers",
		},
		Schedule: ScheduleConfig{
			Times: []string{"09:00", "18:00"},
		},
		Mail: MailConfig{
			IMAPPort:      "993",
			SMTPPort:      "465",
			TLS:           true,
			InboxMailbox:  "INBOX",
			DraftsMailbox: "Drafts",
		},
		Dispatch: DispatchConfig{
			Subject:      "Request for Quotation",
			BodyTemplate: DefaultBodyTemplate,
			ThrottleMs:   250,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
	cfg.applyDerived()
	return cfg
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns the default configuration with
// environment overrides applied.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("storage.root", "./Suppliers")
	v.SetDefault("schedule.times", []string{"09:00", "18:00"})
	v.SetDefault("mail.imap_port", "993")
	v.SetDefault("mail.smtp_port", "465")
	v.SetDefault("mail.tls", true)
	v.SetDefault("mail.inbox_mailbox", "INBOX")
	v.SetDefault("mail.drafts_mailbox", "Drafts")
	v.SetDefault("dispatch.subject", "Request for Quotation")
	v.SetDefault("dispatch.body_template", DefaultBodyTemplate)
	v.SetDefault("dispatch.throttle_ms", 250)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")

	_ = v.BindEnv("storage.root", "SUPPLIERS_BASE_DIR")
	_ = v.BindEnv("schedule.times", "AUTO_FETCH_TIMES")
	_ = v.BindEnv("mail.password", "VENDORAUTO_MAIL_PASSWORD")
	_ = v.BindEnv("registry.path", "VENDORAUTO_REGISTRY")

	if err := v.ReadInConfig(); err != nil {
		_, missing := err.(*os.PathError)
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			missing = true
		}
		if !missing {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	// Derived paths are filled after unmarshalling so that they follow an
	// overridden storage root.
	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// AUTO_FETCH_TIMES arrives as a single comma separated string.
	cfg.Schedule.Times = stringList(v.Get("schedule.times"))
	cfg.applyDerived()

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. The mail password is never written.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	mail := cfg.Mail
	mail.Password = ""

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("storage", cfg.Storage)
	v.Set("schedule", cfg.Schedule)
	v.Set("mail", mail)
	v.Set("dispatch", cfg.Dispatch)
	v.Set("registry", cfg.Registry)
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Throttle returns the delay applied between vendors during dispatch.
func (c *AppConfig) Throttle() time.Duration {
	if c.Dispatch.ThrottleMs < 0 {
		return 0
	}
	return time.Duration(c.Dispatch.ThrottleMs) * time.Millisecond
}

// applyDerived fills the state file paths that default to the storage root.
func (c *AppConfig) applyDerived() {
	if strings.TrimSpace(c.Storage.Root) == "" {
		c.Storage.Root = "./Suppliers"
	}
	if c.Storage.AuditLog == "" {
		c.Storage.AuditLog = filepath.Join(c.Storage.Root, "activity_log.csv")
	}
	if c.Storage.Checkpoint == "" {
		c.Storage.Checkpoint = filepath.Join(c.Storage.Root, "last_fetch.json")
	}
	if c.Storage.Database == "" {
		c.Storage.Database = filepath.Join(c.Storage.Root, "vendorauto.db")
	}
	if c.Mail.From == "" {
		c.Mail.From = c.Mail.Username
	}
}

// stringList normalizes a viper value that may be a list or a comma
// separated string into trimmed, non-empty entries.
func stringList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case string:
		parts = strings.Split(val, ",")
	case []string:
		parts = val
	case []any:
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
