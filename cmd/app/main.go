package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/calendle/internal"
	pkgconfig "github.com/starford/calendle/pkg/config"
)

var version = "dev"

// loadConfig reads the config file (if present) over the defaults and
// applies command-line overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	configPath := cmd.String("config")
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// An explicit flag or env var wins over the file.
	if dir := cmd.String("data-dir"); cmd.IsSet("data-dir") && dir != "" {
		cfg.Data.Path = dir
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	err = internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
	if errors.Is(err, internal.ErrRelaunchRequested) {
		return relaunch()
	}
	if err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

// relaunch replaces the current process with a fresh copy of itself.
func relaunch() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("relaunch: %w", err)
	}
	_ = os.Stdout.Sync()
	return syscall.Exec(exe, os.Args, os.Environ())
}

func main() {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: "config/config.yaml",
			Value:       "config/config.yaml",
			Sources:     cli.EnvVars("APP_CONFIG_FILE"),
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Directory holding week and list documents (overrides config)",
			Sources: cli.EnvVars("CALENDLE_DATA_DIR"),
		},
	}

	cmd := &cli.Command{
		Name:    "calendle",
		Usage:   "Weekly planner backend with JSON file storage, bullet search, and a countdown timer",
		Version: version,
		Flags:   flags,
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP command surface (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve planner tools over MCP on stdin/stdout",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
