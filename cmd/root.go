package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/ppglog/internal/config"
	"github.com/fakeyudi/ppglog/internal/logging"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "ppglog",
	Short:         "Capture pulse sensor readings from a serial device into a table",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		global, err := config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("loading global config: %w", err)
		}
		project, err := config.LoadProject()
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}
		cfg = config.Merge(global, project)
		if err := config.ApplyEnv(&cfg); err != nil {
			return fmt.Errorf("loading environment: %w", err)
		}

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logging.Setup(cmd.ErrOrStderr(), level, cfg.LogFormat)
		slog.Debug("configuration loaded", "port", cfg.Port, "baud", cfg.Baud, "duration", cfg.Duration.D())
		return nil
	},
}

// Execute loads .env from the working directory once, then runs the root
// command. Exits with code 1 on error.
func Execute() {
	if err := loadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadDotEnv copies ./.env into the process environment. Variables that are
// already set win. A missing file is not an error.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log protocol detail at debug level")
}
