package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docsearch/config"
	"docsearch/internal/app"
	"docsearch/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	log     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docsearch",
	Short: "Document search - ingest text files and retrieve them by meaning",
	Long: `docsearch splits documents into overlapping chunks, embeds them and
stores the vectors in a local index for semantic retrieval.

Example usage:
  docsearch ingest ./notes               # Ingest a directory
  docsearch query -q "bucket layout"     # Search ingested documents
  docsearch serve --addr :8080           # Start the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}
		rootDir, err = filepath.Abs(rootDir)
		if err != nil {
			return fmt.Errorf("invalid directory: %w", err)
		}

		// API keys usually come from .env; a missing file is fine.
		_ = godotenv.Load(filepath.Join(rootDir, ".env"))

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		log, err = logger.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./docsearch.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "project directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

// openApp opens the index for the current project directory.
func openApp() (*app.App, error) {
	a, err := app.Open(cfg, rootDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return a, nil
}
