package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/unitask/internal/adapters/server"
	"github.com/evanschultz/unitask/internal/app"
	"github.com/evanschultz/unitask/internal/config"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newPathsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data and database paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := c.paths()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.stdout, "app: %s\n", c.appName)
			_, _ = fmt.Fprintf(c.stdout, "dev_mode: %t\n", c.devMode)
			_, _ = fmt.Fprintf(c.stdout, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(c.stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(c.stdout, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(c.stdout, "snapshot: %s\n", paths.SnapshotPath)
			return nil
		},
	}
}

func newInitCommand(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file to the resolved config path",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := c.paths()
			if err != nil {
				return err
			}
			cfg, configPath, err := c.loadConfig(paths)
			if err != nil {
				return err
			}
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config %q already exists (use --force to overwrite)", configPath)
			}
			if err := config.Save(configPath, cfg); err != nil {
				return fmt.Errorf("save config %q: %w", configPath, err)
			}
			_, _ = fmt.Fprintf(c.stdout, "wrote %s\n", configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func newRunCommand(c *cli) *cobra.Command {
	var styled bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send one round of deadline reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd.Context(), "run", func(ctx context.Context, s *session) error {
				mailer, closeMailer, err := buildMailer(s.cfg.Mail, c.appName, c.stdout, styled)
				if err != nil {
					return fmt.Errorf("build mailer: %w", err)
				}
				defer func() {
					if err := closeMailer(); err != nil {
						s.logger.Warn("mailer close failed", "err", err)
					}
				}()

				if s.notify.RunTimeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, s.notify.RunTimeout)
					defer cancel()
				}
				report, err := s.notifier(mailer, c.now).Run(ctx)
				if err != nil {
					return err
				}
				writeRunReport(c.stdout, report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&styled, "styled", false, "render console transport mail as styled markdown")
	return cmd
}

func newPreviewCommand(c *cli) *cobra.Command {
	var (
		render bool
		email  string
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show who would be reminded, without sending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd.Context(), "preview", func(ctx context.Context, s *session) error {
				plan, err := s.notifier(nil, c.now).Preview(ctx)
				if err != nil {
					return err
				}
				plan.Reminders = filterReminders(plan.Reminders, email)
				if err := writePlanTable(c.stdout, plan); err != nil {
					return err
				}
				if !render {
					return nil
				}
				return renderReminders(ctx, c.stdout, s.cfg.Mail, plan.Reminders)
			})
		},
	}
	cmd.Flags().BoolVar(&render, "render", false, "print each reminder as styled markdown")
	cmd.Flags().StringVar(&email, "email", "", "limit output to one recipient")
	return cmd
}

func newServeCommand(c *cli) *cobra.Command {
	var (
		runNow     bool
		noSchedule bool
		styled     bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and send reminders on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd.Context(), "serve", func(ctx context.Context, s *session) error {
				mailer, closeMailer, err := buildMailer(s.cfg.Mail, c.appName, c.stdout, styled)
				if err != nil {
					return fmt.Errorf("build mailer: %w", err)
				}
				defer func() {
					if err := closeMailer(); err != nil {
						s.logger.Warn("mailer close failed", "err", err)
					}
				}()
				notifier := s.notifier(mailer, c.now)

				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					s.logger.Info("http server start", "bind", s.cfg.Server.Bind, "api", s.cfg.Server.APIEndpoint, "mcp", s.cfg.Server.MCPEndpoint)
					return server.Run(gctx, serverConfig(s, c.appName), server.Dependencies{Planner: notifier, Runner: notifier})
				})
				if !noSchedule {
					g.Go(func() error {
						return app.NewScheduler(notifier, s.logger, app.SchedulerConfig{
							Interval: s.notify.Interval,
							Timeout:  s.notify.RunTimeout,
							RunNow:   runNow,
						}).Run(gctx)
					})
				}
				return g.Wait()
			})
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "send one round immediately instead of waiting for the first tick")
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "serve the API only")
	cmd.Flags().BoolVar(&styled, "styled", false, "render console transport mail as styled markdown")
	return cmd
}

// serverConfig maps session settings onto the HTTP and MCP server config.
func serverConfig(s *session, appName string) server.Config {
	return server.Config{
		HTTPBind:      s.cfg.Server.Bind,
		APIEndpoint:   s.cfg.Server.APIEndpoint,
		MCPEndpoint:   s.cfg.Server.MCPEndpoint,
		ServerName:    appName,
		ServerVersion: version,
		UrgencyWindow: s.notify.UrgencyWindow,
		RunTimeout:    s.notify.RunTimeout,
	}
}

func newExportCommand(c *cli) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write teams, boards, tasks and users to a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd.Context(), "export", func(ctx context.Context, s *session) error {
				snap, err := app.ExportSnapshot(ctx, s.repo, c.now())
				if err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
				encoded, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return fmt.Errorf("encode snapshot json: %w", err)
				}
				encoded = append(encoded, '\n')

				if outPath == "-" {
					if _, err := c.stdout.Write(encoded); err != nil {
						return fmt.Errorf("write snapshot to stdout: %w", err)
					}
					return nil
				}
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return fmt.Errorf("create export output dir: %w", err)
				}
				if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
					return fmt.Errorf("write export file: %w", err)
				}
				s.logger.Info("snapshot exported", "path", outPath, "teams", len(snap.Teams), "boards", len(snap.Boards), "tasks", len(snap.Tasks), "users", len(snap.Users))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

func newImportCommand(c *cli) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a JSON snapshot into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			return c.withSession(cmd.Context(), "import", func(ctx context.Context, s *session) error {
				content, err := os.ReadFile(inPath)
				if err != nil {
					return fmt.Errorf("read import file: %w", err)
				}
				var snap app.Snapshot
				if err := json.Unmarshal(content, &snap); err != nil {
					return fmt.Errorf("decode snapshot json: %w", err)
				}
				if err := app.ImportSnapshot(ctx, s.repo, snap, uuid.NewString); err != nil {
					return fmt.Errorf("import snapshot: %w", err)
				}
				s.logger.Info("snapshot imported", "path", inPath, "teams", len(snap.Teams), "boards", len(snap.Boards), "tasks", len(snap.Tasks), "users", len(snap.Users))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

// withSession opens a session, runs fn, and logs the command outcome.
func (c *cli) withSession(ctx context.Context, command string, fn func(context.Context, *session) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := c.openSession(ctx, command)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			_, _ = fmt.Fprintf(c.stderr, "warning: %v\n", closeErr)
		}
	}()

	s.logger.Info("command flow start", "command", command)
	if err := fn(ctx, s); err != nil {
		s.logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	s.logger.Info("command flow complete", "command", command)
	return nil
}

func writeRunReport(w io.Writer, report app.RunReport) {
	d := report.Dispatch
	_, _ = fmt.Fprintf(w, "run %s: %d boards, %d digests, %d sent, %d failed, %d opted out (%s)\n",
		report.RunID, report.Boards, report.Digests, d.Sent, d.Failed, d.OptedOut, report.Duration.Round(time.Millisecond))
	for _, email := range d.FailedRecipients {
		_, _ = fmt.Fprintf(w, "  failed: %s\n", email)
	}
}
