package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type DatabaseDriver string

const (
	DriverSQLite   DatabaseDriver = "sqlite"
	DriverPostgres DatabaseDriver = "postgres"
)

type MailTransport string

const (
	TransportConsole  MailTransport = "console"
	TransportSMTP     MailTransport = "smtp"
	TransportSendgrid MailTransport = "sendgrid"
	TransportNATS     MailTransport = "nats"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Notify   NotifyConfig   `toml:"notify"`
	Mail     MailConfig     `toml:"mail"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Driver DatabaseDriver `toml:"driver"`
	Path   string         `toml:"path"`
	URL    string         `toml:"url"`
}

// NotifyConfig keeps durations as strings so files read like "24h" or "168h".
type NotifyConfig struct {
	UrgencyWindow string `toml:"urgency_window"`
	OverdueCutoff string `toml:"overdue_cutoff"`
	Interval      string `toml:"interval"`
	RunTimeout    string `toml:"run_timeout"`
	Concurrency   int    `toml:"concurrency"`
}

type MailConfig struct {
	Transport     MailTransport  `toml:"transport"`
	From          string         `toml:"from"`
	SubjectPrefix string         `toml:"subject_prefix"`
	BaseURL       string         `toml:"base_url"`
	SMTP          SMTPConfig     `toml:"smtp"`
	Sendgrid      SendgridConfig `toml:"sendgrid"`
	NATS          NATSConfig     `toml:"nats"`
}

type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type SendgridConfig struct {
	APIKey string `toml:"api_key"`
}

type NATSConfig struct {
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// NotifySettings is the parsed form of NotifyConfig.
type NotifySettings struct {
	UrgencyWindow time.Duration
	OverdueCutoff time.Duration
	Interval      time.Duration
	RunTimeout    time.Duration
	Concurrency   int
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   dbPath,
		},
		Notify: NotifyConfig{
			UrgencyWindow: "24h",
			OverdueCutoff: "0s",
			Interval:      "1h",
			RunTimeout:    "2m",
			Concurrency:   4,
		},
		Mail: MailConfig{
			Transport:     TransportConsole,
			From:          "noreply@localhost",
			SubjectPrefix: "[unitask] ",
			SMTP: SMTPConfig{
				Host: "localhost",
				Port: 25,
			},
			NATS: NATSConfig{
				URL:     "nats://localhost:4222",
				Subject: "unitask.reminder",
			},
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".unitask/log",
			},
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database path is required")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return errors.New("database url is required for postgres")
		}
	default:
		return fmt.Errorf("invalid database.driver: %q", c.Database.Driver)
	}

	notify, err := c.NotifySettings()
	if err != nil {
		return err
	}
	if notify.Interval <= 0 {
		return errors.New("notify.interval must be > 0")
	}
	if notify.RunTimeout <= 0 {
		return errors.New("notify.run_timeout must be > 0")
	}
	if notify.Concurrency <= 0 {
		return errors.New("notify.concurrency must be > 0")
	}

	if _, err := mail.ParseAddress(c.Mail.From); err != nil {
		return fmt.Errorf("invalid mail.from: %q", c.Mail.From)
	}
	switch c.Mail.Transport {
	case TransportConsole:
	case TransportSMTP:
		if strings.TrimSpace(c.Mail.SMTP.Host) == "" {
			return errors.New("mail.smtp.host is required")
		}
		if c.Mail.SMTP.Port <= 0 || c.Mail.SMTP.Port > 65535 {
			return fmt.Errorf("invalid mail.smtp.port: %d", c.Mail.SMTP.Port)
		}
	case TransportSendgrid:
		if strings.TrimSpace(c.Mail.Sendgrid.APIKey) == "" {
			return errors.New("mail.sendgrid.api_key is required")
		}
	case TransportNATS:
		if strings.TrimSpace(c.Mail.NATS.URL) == "" {
			return errors.New("mail.nats.url is required")
		}
		if strings.TrimSpace(c.Mail.NATS.Subject) == "" {
			return errors.New("mail.nats.subject is required")
		}
	default:
		return fmt.Errorf("invalid mail.transport: %q", c.Mail.Transport)
	}

	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind is required")
	}
	return nil
}

// NotifySettings parses the notify durations.
func (c Config) NotifySettings() (NotifySettings, error) {
	window, err := parseDuration("notify.urgency_window", c.Notify.UrgencyWindow)
	if err != nil {
		return NotifySettings{}, err
	}
	cutoff, err := parseDuration("notify.overdue_cutoff", c.Notify.OverdueCutoff)
	if err != nil {
		return NotifySettings{}, err
	}
	interval, err := parseDuration("notify.interval", c.Notify.Interval)
	if err != nil {
		return NotifySettings{}, err
	}
	timeout, err := parseDuration("notify.run_timeout", c.Notify.RunTimeout)
	if err != nil {
		return NotifySettings{}, err
	}
	return NotifySettings{
		UrgencyWindow: window,
		OverdueCutoff: cutoff,
		Interval:      interval,
		RunTimeout:    timeout,
		Concurrency:   c.Notify.Concurrency,
	}, nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", field, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be >= 0", field)
	}
	return d, nil
}

// Save validates cfg and writes it to path, creating the parent directory.
// The file is left owner-only (0600), including when it already existed.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod config: %w", err)
	}
	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
