package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/evanschultz/unitask/internal/adapters/mail"
	"github.com/evanschultz/unitask/internal/adapters/storage/postgres"
	"github.com/evanschultz/unitask/internal/adapters/storage/sqlite"
	"github.com/evanschultz/unitask/internal/app"
	"github.com/evanschultz/unitask/internal/config"
	"github.com/evanschultz/unitask/internal/platform"
	"github.com/google/uuid"
)

// store is the storage surface the commands need from either backend.
type store interface {
	app.Repository
	app.Writer
	Close() error
}

// session holds everything one command invocation opened.
type session struct {
	cfg        config.Config
	configPath string
	paths      platform.Paths
	notify     config.NotifySettings
	logger     *runtimeLogger
	repo       store
}

// openSession loads config, starts logging and opens the configured store.
func (c *cli) openSession(ctx context.Context, command string) (*session, error) {
	paths, err := c.paths()
	if err != nil {
		return nil, err
	}
	cfg, configPath, err := c.loadConfig(paths)
	if err != nil {
		return nil, err
	}
	notify, err := cfg.NotifySettings()
	if err != nil {
		return nil, fmt.Errorf("notify settings: %w", err)
	}

	logger, err := newRuntimeLogger(c.stderr, c.appName, c.devMode, cfg.Logging, c.now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Info("startup configuration resolved", "app", c.appName, "dev_mode", c.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	repo, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	return &session{
		cfg:        cfg,
		configPath: configPath,
		paths:      paths,
		notify:     notify,
		logger:     logger,
		repo:       repo,
	}, nil
}

// Close releases the store and the dev log sink.
func (s *session) Close() error {
	var errs []error
	if err := s.repo.Close(); err != nil {
		s.logger.Warn("storage close failed", "driver", s.cfg.Database.Driver, "err", err)
		errs = append(errs, err)
	}
	if err := s.logger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close runtime log sink: %w", err))
	}
	return errors.Join(errs...)
}

// notifier builds a notifier over the session store. mailer may be nil for previews.
func (s *session) notifier(mailer app.Mailer, clock app.Clock) *app.Notifier {
	return app.NewNotifier(s.repo, mailer, uuid.NewString, clock, s.logger, app.NotifierConfig{
		Policy: app.Policy{
			UrgencyWindow: s.notify.UrgencyWindow,
			OverdueCutoff: s.notify.OverdueCutoff,
		},
		Concurrency: s.notify.Concurrency,
	})
}

// openStore opens the backend named by the database driver.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *runtimeLogger) (store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		logger.Info("opening sqlite repository", "db_path", cfg.Path)
		repo, err := sqlite.Open(cfg.Path)
		if err != nil {
			logger.Error("sqlite open failed", "db_path", cfg.Path, "err", err)
			return nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		logger.Info("sqlite repository ready", "db_path", cfg.Path, "migrations", "ensured")
		return repo, nil
	case config.DriverPostgres:
		logger.Info("opening postgres repository")
		repo, err := postgres.Open(ctx, cfg.URL, postgres.PoolOptions{})
		if err != nil {
			logger.Error("postgres open failed", "err", err)
			return nil, fmt.Errorf("open postgres repository: %w", err)
		}
		logger.Info("postgres repository ready", "schema", "ensured")
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// buildMailer constructs the configured transport. The returned close func is never nil.
func buildMailer(cfg config.MailConfig, appName string, stdout io.Writer, styled bool) (app.Mailer, func() error, error) {
	noClose := func() error { return nil }
	renderer := mail.Renderer{
		SubjectPrefix: cfg.SubjectPrefix,
		BaseURL:       cfg.BaseURL,
	}
	switch cfg.Transport {
	case config.TransportConsole:
		m, err := mail.NewConsoleMailer(stdout, renderer, mail.ConsoleOptions{From: cfg.From, Styled: styled})
		if err != nil {
			return nil, nil, err
		}
		return m, noClose, nil
	case config.TransportSMTP:
		m, err := mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.From,
		}, renderer)
		if err != nil {
			return nil, nil, err
		}
		return m, noClose, nil
	case config.TransportSendgrid:
		return mail.NewSendgridMailer(cfg.Sendgrid.APIKey, strings.TrimSpace(appName), cfg.From, renderer), noClose, nil
	case config.TransportNATS:
		m, err := mail.ConnectNATS(cfg.NATS.URL, cfg.NATS.Subject, renderer)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported mail transport %q", cfg.Transport)
	}
}
