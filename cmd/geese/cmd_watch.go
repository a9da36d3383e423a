package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"geese/internal/config"
	"geese/internal/logging"
	"geese/internal/pipes"
)

// watchCmd keeps custom operations in sync with their files
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reload custom operations as their module files change",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	eng, err := setupEngine(ws)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return watchScopes(ctx, eng, ws)
}

// watchScopes blocks until ctx is done, reloading modules in the global
// and local pipes directories.
func watchScopes(ctx context.Context, eng *engine, ws string) error {
	loader := eng.registry.Loader()
	dirs := []pipes.WatchDir{{Path: loader.GlobalDir(), Source: pipes.SourceGlobal}}
	if local, ok := loader.LocalDir(ws); ok && local != loader.GlobalDir() {
		dirs = append(dirs, pipes.WatchDir{Path: local, Source: pipes.SourceLocal})
	}

	w, err := pipes.NewWatcher(eng.registry, dirs...)
	if err != nil {
		return err
	}
	w.SetDebounce(eng.cfg.Pipes.GetWatchDebounce())
	cfgPath := filepath.Join(eng.root, config.MarkerDir, "config.yaml")
	w.OnFileChange(cfgPath, func(string) {
		if err := logging.ReloadConfig(); err != nil {
			logger.Warn("Logging config reload failed", zap.Error(err))
			return
		}
		logger.Info("Logging config reloaded", zap.String("path", cfgPath))
	})
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	for _, d := range dirs {
		logger.Info("Watching", zap.String("dir", d.Path), zap.String("source", string(d.Source)))
	}
	<-ctx.Done()

	stats := w.Stats()
	logger.Info("Watcher stopped",
		zap.Int("reloaded", stats.Reloaded),
		zap.Int("unloaded", stats.Unloaded),
		zap.Int("errors", stats.Errors))
	return nil
}
