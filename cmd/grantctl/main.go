// Command grantctl validates and imports grant workbooks from the command line.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/JonMunkholm/GrantImport/internal/config"
	"github.com/JonMunkholm/GrantImport/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitFailure  = 1 // the command could not run
	exitRejected = 2 // the workbook was read but has errors
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type rootOptions struct {
	envFile string
	jsonOut bool
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(exitFailure)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "grantctl",
		Short: "Validate and import grant workbooks",
		Long: `grantctl checks grant workbooks (one grant per sheet) and imports them
into the grants database. Settings are read from the environment and an
optional .env file, the same way the server reads them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnv(opts.envFile); err != nil {
				return err
			}
			setupLogging()
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file to load (ignored when missing)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print results as JSON")

	cmd.AddCommand(
		newValidateCmd(opts),
		newImportCmd(opts),
		newHistoryCmd(opts),
	)
	return cmd
}

// loadEnv reads path into the environment without overriding variables that
// are already set.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// setupLogging sends logs to stderr so stdout carries only results.
func setupLogging() {
	var cfg config.LoggingConfig
	if err := config.LoadInto(&cfg); err != nil {
		cfg = config.LoggingConfig{Level: "warn", Format: "text"}
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.Level, cfg.Format))
}
