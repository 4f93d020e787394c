// Command crawldash is a terminal dashboard and command-line client for the
// URL-crawl backend.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"crawldash/internal/api"
	"crawldash/internal/config"
)

// logToFile marks commands that own the terminal, so logs must not go to stderr.
const logToFile = "log-to-file"

// app is the state shared by every subcommand once flags and config are resolved.
type app struct {
	v       *viper.Viper
	cfgDir  string
	cfg     config.Config
	log     *logrus.Logger
	closers []io.Closer
}

func main() {
	a := &app{v: config.New()}
	root := a.rootCommand()
	err := root.ExecuteContext(context.Background())
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "crawldash",
		Short:         "Dashboard for the URL-crawl backend",
		Long:          "crawldash submits URLs to the crawl backend, starts and deletes crawls, and keeps a live table of their status.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	// --- Global flags ---
	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgDir, "config", "", "directory containing config.yaml (default ./configs, then .)")
	flags.String("api-base", "", "backend base URL")
	flags.String("auth-token", "", "static bearer token")
	flags.Duration("poll-interval", 0, "dashboard refresh interval")
	flags.Int("page-size", 0, "rows per page")
	flags.Float64("bulk-rate", 0, "bulk requests per second, 0 for unlimited")
	flags.String("cache-path", "", "badger cache directory, empty string disables the cache")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, text)")
	flags.String("log-file", "", "log file used while the dashboard is open")

	bindings := map[string]string{
		"api_base":      "api-base",
		"auth_token":    "auth-token",
		"poll_interval": "poll-interval",
		"page_size":     "page-size",
		"bulk_rate":     "bulk-rate",
		"cache_path":    "cache-path",
		"log_level":     "log-level",
		"log_format":    "log-format",
		"log_file":      "log-file",
	}
	for key, flag := range bindings {
		// BindPFlag only fails for a nil flag, which would be a typo above.
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	dash := a.dashboardCommand()
	root.RunE = dash.RunE
	root.Annotations = dash.Annotations

	root.AddCommand(
		dash,
		a.listCommand(),
		a.addCommand(),
		a.startCommand(),
		a.deleteCommand(),
		a.detailCommand(),
		a.mockCommand(),
		a.cacheCommand(),
	)
	return root
}

// setup resolves configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.v, a.cfgDir)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	a.cfg = cfg

	// --- Logger Setup ---
	log := logrus.New()
	if cfg.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel) // validated by LoadConfig
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	if _, ok := cmd.Annotations[logToFile]; ok {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.LogFile, err)
		}
		a.closers = append(a.closers, f)
		log.SetOutput(f)
	}
	a.log = log

	log.WithFields(logrus.Fields{
		"api_base":   cfg.APIBase,
		"cache_path": cfg.CachePath,
		"command":    cmd.Name(),
	}).Debug("Configuration loaded successfully")
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

// credentials prefers a signed JWT when a secret is configured.
func (a *app) credentials() api.Credentials {
	if a.cfg.JWTSecret != "" {
		return api.SignedToken{Secret: []byte(a.cfg.JWTSecret), Subject: "crawldash"}
	}
	return api.StaticToken(a.cfg.AuthToken)
}

func (a *app) newClient() (*api.Client, error) {
	if err := a.cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	return api.NewClient(a.cfg.APIBase, a.credentials(), a.cfg.RequestTimeout, a.log)
}
