package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tymonhq/tymon/internal/config"
	"github.com/tymonhq/tymon/internal/store"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "tymon",
	Short: "A companion that remembers",
	Long: "Tymon is a conversational companion with long-term memory. It extracts durable facts " +
		"from chats and journal entries, scores and decays them, and recalls the relevant ones in later conversations.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.tymon/config.toml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(memoriesCmd)
	rootCmd.AddCommand(extractCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openDB opens the configured database, falling back to ~/.tymon/tymon.db.
func openDB(cfg *config.Config) (*store.DB, error) {
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
