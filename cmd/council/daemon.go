package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/juniormartinxo/council/internal/api"
	"github.com/juniormartinxo/council/internal/auditlog"
	"github.com/juniormartinxo/council/internal/config"
	"github.com/juniormartinxo/council/internal/limits"
	"github.com/juniormartinxo/council/internal/mcpserver"
	"github.com/juniormartinxo/council/internal/service"
	"github.com/juniormartinxo/council/internal/signature"
	"github.com/juniormartinxo/council/pkg/flow"
	"github.com/juniormartinxo/council/pkg/state"
)

func newDaemonCmd() *cobra.Command {
	var configPath, flowConfig string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the optional localhost status API and MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(configPath, flowConfig)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to council.toml (default: <data-dir>/config.toml)")
	cmd.Flags().StringVarP(&flowConfig, "flow-config", "c", "", "explicit path to a flow.json")
	return cmd
}

// currentRun adapts the daemon's single in-flight *state.State, if any,
// to api.RunView. Nothing in the daemon calls set: the MCP server's
// run_flow tool builds its own State per call, so /status and
// /runs/current/turns report no active run.
type currentRun struct {
	mu    sync.RWMutex
	state *state.State
}

func (c *currentRun) set(st *state.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = st
}

func (c *currentRun) CurrentTurns() (turns []state.Turn, runID string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return nil, "", false
	}
	return c.state.Turns(), c.state.RunID(), true
}

func runDaemon(configPath, flowConfig string) error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	if running, pid := service.IsRunning(cfg); running {
		return fmt.Errorf("daemon already running (PID %d)", pid)
	}

	lim := limits.Limits{
		MaxContextChars: cfg.Limits.MaxContextChars,
		MaxInputChars:   cfg.Limits.MaxInputChars,
		MaxOutputChars:  cfg.Limits.MaxOutputChars,
	}
	envLim, err := limits.Load()
	if err != nil {
		return err
	}
	if os.Getenv("MAX_CONTEXT_CHARS") != "" {
		lim.MaxContextChars = envLim.MaxContextChars
	}
	if os.Getenv("MAX_INPUT_CHARS") != "" {
		lim.MaxInputChars = envLim.MaxInputChars
	}
	if os.Getenv("MAX_OUTPUT_CHARS") != "" {
		lim.MaxOutputChars = envLim.MaxOutputChars
	}

	audit, err := auditlog.New(auditlog.Config{
		Path:         cfg.Audit.Path,
		Level:        auditlog.Level(cfg.Audit.Level),
		MaxSizeBytes: int64(cfg.Audit.MaxSizeMB) * 1024 * 1024,
		MaxBackups:   cfg.Audit.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("init audit log: %w", err)
	}

	trustStore, err := signature.NewTrustStore(cfg.Signature.TrustStoreDir)
	if err != nil {
		return fmt.Errorf("init trust store: %w", err)
	}

	flowPath := flowConfig
	if flowPath == "" {
		flowPath = cfg.Flow.Path
	}
	flowOpts := flow.Options{
		ExplicitPath: flowPath,
		Signature: flow.SignatureOptions{
			Strict:     cfg.Signature.Strict,
			TrustStore: trustStore,
		},
	}

	run := &currentRun{}

	daemon := service.NewDaemon(cfg)

	api.SetVersion(version)
	apiServer := api.NewServer(cfg, run)

	if err := daemon.Start(apiServer.Handler()); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	resolvedPath, _, _ := flow.Resolve(flowPath)
	if resolvedPath != "" {
		onReload := func() {
			if _, err := flow.Load(flowOpts); err != nil {
				audit.Emit(auditlog.Error, auditlog.EventStepError, map[string]interface{}{"error": err.Error()})
				return
			}
			audit.Emit(auditlog.Info, auditlog.EventFlowLoad, map[string]interface{}{"source": "watch-reload"})
		}
		if err := daemon.WatchFlow(resolvedPath, audit, onReload); err != nil {
			fmt.Fprintf(os.Stderr, "warning: flow watcher not started: %v\n", err)
		}
	}

	if cfg.MCP.Enabled {
		mcpDeps := mcpserver.Deps{
			SpoolDir:     filepath.Join(cfg.Service.DataDir, "spool"),
			Audit:        audit,
			Limits:       lim,
			TrustStore:   trustStore,
			SignatureDir: cfg.Signature.TrustStoreDir,
			FlowOptions:  flowOpts,
		}
		mcpSrv := mcpserver.New(mcpDeps)
		go func() {
			if err := mcpSrv.ServeStdio(); err != nil {
				audit.Emit(auditlog.Error, auditlog.EventStepError, map[string]interface{}{"component": "mcpserver", "error": err.Error()})
			}
		}()
	}

	fmt.Printf("council daemon started on %s\n", cfg.Address())
	daemon.Wait()
	return nil
}
