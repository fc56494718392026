package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/NeapolitanIcecream/openbridge/internal/config"
	"github.com/NeapolitanIcecream/openbridge/internal/orchestrator"
	"github.com/NeapolitanIcecream/openbridge/internal/process"
	"github.com/NeapolitanIcecream/openbridge/internal/server"
	"github.com/NeapolitanIcecream/openbridge/internal/state"
	"github.com/NeapolitanIcecream/openbridge/internal/tools"
	"github.com/NeapolitanIcecream/openbridge/internal/upstream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy server",
	Long:  `Start the Responses-to-Chat-Completions translation proxy in the foreground.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logFile, _ := cmd.Flags().GetBool("log-file")
	setupLogging(verbose, logFile)

	if err := cfgMgr.Load(); err != nil {
		return err
	}
	cfg := cfgMgr.Get()

	if !verbose {
		level := slog.LevelInfo
		switch cfg.LogLevel {
		case "DEBUG":
			level = slog.LevelDebug
		case "WARN", "WARNING":
			level = slog.LevelWarn
		case "ERROR", "CRITICAL":
			level = slog.LevelError
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}

	color.Green("Starting %s v%s...", AppName, Version)
	logger.Info("starting server",
		"host", cfg.Host,
		"port", cfg.Port,
		"state_backend", cfg.StateBackend,
		"upstream_base_url", cfg.UpstreamBaseURL,
	)

	store, err := newStateStore(cfg)
	if err != nil {
		return err
	}

	client := upstream.NewClient(cfg)
	registry := tools.DefaultRegistry()
	orch := orchestrator.New(client, cfg, registry, store, logger)

	procMgr := process.NewManager(baseDir)
	if err := procMgr.WritePID(); err != nil {
		return err
	}
	defer procMgr.CleanupPID()

	srv := server.New(cfgMgr, orch, logger)
	return srv.Start()
}

func newStateStore(cfg *config.Settings) (state.Store, error) {
	switch cfg.StateBackend {
	case config.StateBackendMemory:
		return state.NewMemory(), nil
	case config.StateBackendRemote:
		return state.NewRemote(cfg.RemoteStateURL, cfg.StateKeyPrefix), nil
	case config.StateBackendDisabled:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}
