package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"paperqa/config"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "paperqa",
	Short: "Ingest research papers and chat with them",
	Long: `paperqa builds a hierarchical chunk index over a paper and answers
questions against it. Retrieval works at the finest chunk tier; when
enough sibling chunks match, they auto-merge into their shared parent so
the model sees whole sections instead of fragments.

Example usage:
  paperqa ingest paper.pdf              # Build the index for one paper
  paperqa ask paper -q "key findings?"  # One-shot question
  paperqa chat paper                    # Interactive chat
  paperqa serve                         # REST API`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			wd, werr := os.Getwd()
			if werr != nil {
				return fmt.Errorf("failed to get working directory: %w", werr)
			}
			cfg, err = config.LoadFromDir(wd)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if storageDir != "" {
			cfg.Storage.Dir = storageDir
		}

		logger = newLogger(cfg.Logging.Level)
		return nil
	},
}

var storageDir string

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./paperqa.yaml)")
	rootCmd.PersistentFlags().StringVarP(&storageDir, "storage", "s", "", "index storage directory (default from config)")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return cfg
}
