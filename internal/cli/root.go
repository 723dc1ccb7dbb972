package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/lethe/internal/config"
	"github.com/lazypower/lethe/internal/engine"
	"github.com/lazypower/lethe/internal/signal"
	"github.com/lazypower/lethe/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "lethe",
	Short: "Adaptive retention and forgetting for knowledge graphs",
	Long: "Lethe scores how alive each knowledge node is, decides which ones to forget, " +
		"and keeps a bounded archive from which forgotten nodes can be recalled.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.lethe/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(paramsCmd)
	rootCmd.AddCommand(nodeCmd)
}

// loadConfig reads the config file named by --config, or the default one.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
	}
	return config.Load(path)
}

// openDB opens the database named by the config.
func openDB(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// openEngine loads config, opens the database and restores engine state.
// The returned close function releases both.
func openEngine(ctx context.Context) (*engine.Engine, config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, nil, err
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, cfg, nil, err
	}

	provider, err := signal.NewProvider(cfg.Signal, db)
	if err != nil {
		db.Close()
		return nil, cfg, nil, fmt.Errorf("signal provider: %w", err)
	}

	eng := engine.New(db, provider)
	eng.Configure(cfg.Analysis)
	if err := eng.Load(ctx, cfg.Forgetting); err != nil {
		db.Close()
		return nil, cfg, nil, fmt.Errorf("load engine state: %w", err)
	}

	closeFn := func() {
		eng.Stop()
		db.Close()
	}
	return eng, cfg, closeFn, nil
}
