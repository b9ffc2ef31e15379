package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/evanschultz/unitask/internal/config"
	"github.com/evanschultz/unitask/internal/platform"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := newRootCommand(newCLI(os.Stdout, os.Stderr))
	err := fang.Execute(ctx, root, fang.WithVersion(version))
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run executes the command tree without fang's styled help and error output.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if args == nil {
		args = []string{}
	}
	root := newRootCommand(newCLI(stdout, stderr))
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// cli carries global flag values and process IO shared by every subcommand.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time

	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// newCLI resolves flag defaults from the process environment.
func newCLI(stdout, stderr io.Writer) *cli {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	c := &cli{
		stdout:  stdout,
		stderr:  stderr,
		now:     time.Now,
		appName: platform.DefaultAppName,
		devMode: version == "dev",
	}
	if envDev, ok := parseBoolEnv("UNITASK_DEV_MODE"); ok {
		c.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("UNITASK_APP_NAME")); envApp != "" {
		c.appName = envApp
	}
	return c
}

// newRootCommand builds the unitask command tree.
func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "unitask",
		Short:         "Deadline reminders for university team boards",
		Long:          "unitask collects boards and tasks with close deadlines and mails each team member one digest.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to config TOML")
	flags.StringVar(&c.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&c.appName, "app", c.appName, "application name for config/data path resolution")
	flags.BoolVar(&c.devMode, "dev", c.devMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newRunCommand(c),
		newPreviewCommand(c),
		newServeCommand(c),
		newExportCommand(c),
		newImportCommand(c),
		newPathsCommand(c),
		newInitCommand(c),
	)
	return root
}

// paths resolves per-user locations for the selected app name and mode.
func (c *cli) paths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: c.appName,
		DevMode: c.devMode,
	})
}

// loadConfig applies flag, env and file precedence for config and database paths.
func (c *cli) loadConfig(paths platform.Paths) (config.Config, string, error) {
	configPath := strings.TrimSpace(c.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("UNITASK_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}

	dbPath := strings.TrimSpace(c.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("UNITASK_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return config.Config{}, "", fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = dbPath
	}
	return cfg, configPath, nil
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
