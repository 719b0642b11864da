package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jllopis/chimera/pkg/config"
	"github.com/jllopis/chimera/pkg/mcp"
)

// toolSource rebuilds the MCP tool configuration when the watched config
// changes. A rejected rebuild keeps the last good settings.
type toolSource struct {
	live   *config.ReloadableConfig
	logger *slog.Logger

	mu       sync.Mutex
	builtFor *config.Config
	built    mcp.ToolConfig
}

func (t *toolSource) current() mcp.ToolConfig {
	cfg := t.live.Get()

	t.mu.Lock()
	defer t.mu.Unlock()
	if cfg == t.builtFor {
		return t.built
	}
	tool, err := buildToolConfig(cfg, t.logger)
	if err != nil {
		t.logger.Error("reloaded config rejected, keeping previous settings", "error", err)
		t.builtFor = cfg
		return t.built
	}
	t.builtFor = cfg
	t.built = tool
	return t.built
}

func buildToolConfig(cfg *config.Config, logger *slog.Logger) (mcp.ToolConfig, error) {
	provider, err := newProvider(cfg.Provider)
	if err != nil {
		return mcp.ToolConfig{}, err
	}
	table, err := loadTable(cfg.Classifier.TablePath)
	if err != nil {
		return mcp.ToolConfig{}, err
	}
	return mcp.ToolConfig{
		Provider:     provider,
		Model:        cfg.Provider.Model,
		Table:        table,
		OutputDir:    cfg.Engine.OutputDir,
		ScratchDir:   cfg.Engine.ScratchDir,
		Parallelism:  cfg.Engine.Parallelism,
		ProbeTimeout: time.Duration(cfg.Engine.ProbeTimeoutSeconds) * time.Second,
		Logger:       logger,
	}, nil
}

func runServe(ctx context.Context, global globalFlags, cfg *config.Config, logger *slog.Logger, args []string) {
	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	ensureNoArgs(cmd.Args())

	tool, err := buildToolConfig(cfg, logger)
	if err != nil {
		fail(global.JSON, err)
	}
	src := &toolSource{live: config.NewReloadableConfig(cfg), logger: logger}
	src.builtFor = cfg
	src.built = tool

	// Serve sessions are long-lived: when the config came from a file,
	// watch it so provider and classifier-table changes apply to the next
	// tool call without a restart. Reload reads the file fresh; --set
	// overrides apply to the initial load only.
	if path := configPath(global.ConfigArgs); path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			watcher, _, err := config.WatchConfig(ctx, path, config.WithWatchLogger(logger))
			if err != nil {
				fail(global.JSON, err)
			}
			defer watcher.Stop()
			watcher.OnChange(src.live.Update)
			logger.Info("watching config for reload", "path", path)
		}
	}

	srv := mcp.NewServer("chimera", version)
	mcp.RegisterTools(srv, mcp.ToolConfig{Settings: src.current})

	logger.Info("serving dissection tools over stdio")
	if err := srv.ServeStdio(); err != nil {
		fail(global.JSON, err)
	}
}
