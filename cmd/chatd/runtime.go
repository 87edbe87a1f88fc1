package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chatd/internal/common/fsutil"
	"chatd/internal/config"
	"chatd/internal/engine"
	"chatd/internal/manager"
	"chatd/internal/registry"
	"chatd/internal/session"
	"chatd/internal/store"
)

// modelFlags are the overrides shared by serve and chat.
type modelFlags struct {
	modelsDir string
	model     string
	dbPath    string
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.modelsDir, "models-dir", "", "Directory to scan for *.gguf model files")
	cmd.Flags().StringVar(&f.model, "model", "", "Model id or path to load on first use")
	cmd.Flags().StringVar(&f.dbPath, "db", "", `Conversation database path ("none" disables persistence)`)
}

func (f *modelFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("models-dir") {
		cfg.ModelsDir = f.modelsDir
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = f.model
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = f.dbPath
	}
}

// openStore opens the conversation database. A db_path of "none" returns nil.
func openStore(cfg config.Config, log zerolog.Logger) (*store.Store, error) {
	if strings.EqualFold(cfg.DBPath, "none") {
		return nil, nil
	}
	path, err := fsutil.ExpandHome(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	comp, err := cfg.Compression()
	if err != nil {
		return nil, err
	}
	return store.Open(path, store.WithLogger(log), store.WithCompression(comp))
}

// buildManager wires the registry, store and session settings into a
// Manager. The caller closes the manager before the store.
func buildManager(cfg config.Config, log zerolog.Logger, reg prometheus.Registerer) (*manager.Manager, *store.Store, error) {
	models, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load models: %w", err)
	}
	sessCfg, err := cfg.SessionConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	var metrics *session.Metrics
	if reg != nil {
		metrics = session.NewMetrics(reg)
	}
	mlog := log.With().Str("component", "manager").Logger()
	mgr := manager.New(manager.Config{
		Registry:     models,
		DefaultModel: cfg.Model,
		Session:      sessCfg,
		ModelParams:  engine.ModelParams{GPULayers: cfg.GPULayers},
		Store:        st,
		Logger:       &mlog,
		Metrics:      metrics,
		Publisher:    manager.LogPublisher{Log: mlog},
	})
	return mgr, st, nil
}
