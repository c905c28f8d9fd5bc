package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/GrantImport/internal/config"
	"github.com/JonMunkholm/GrantImport/internal/core"
	"github.com/JonMunkholm/GrantImport/internal/store"
	"github.com/spf13/cobra"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.xlsx>",
		Short: "Check a workbook without writing anything",
		Long: `validate runs every header and item check on the workbook and reports
errors and warnings. It needs no database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var importCfg config.ImportConfig
			if err := config.LoadInto(&importCfg); err != nil {
				return fmt.Errorf("config load: %w", err)
			}
			if err := importCfg.Validate(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}

			validator := core.NewValidator(importCfg)
			res, err := runFile(cmd.Context(), args[0], validator.Validate)
			if err != nil {
				return err
			}
			return report(cmd, opts, res)
		},
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Validate a workbook and commit every valid sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, release, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			ctx := core.WithClient(cmd.Context(), core.ClientInfo{UserAgent: "grantctl"})
			res, err := runFile(ctx, args[0], svc.Import)
			if err != nil {
				return err
			}
			return report(cmd, opts, res)
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent import runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, release, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			records, err := svc.History(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list imports: %w", err)
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			return writeHistory(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

// openService loads the full configuration and connects to the store.
func openService(ctx context.Context) (*core.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	repo, release, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return core.NewService(repo, core.OptionsFromConfig(cfg.Import)), release, nil
}

type runFunc func(ctx context.Context, fileName string, r io.Reader) (*core.ImportResult, error)

// runFile opens path and hands it to run. Known failures are prefixed with
// their coded user message.
func runFile(ctx context.Context, path string, run runFunc) (*core.ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	res, err := run(ctx, filepath.Base(path), f)
	if err != nil {
		if core.IsUserFacing(err) {
			return nil, fmt.Errorf("%s: %w", core.FormatUserError(err), err)
		}
		return nil, err
	}
	return res, nil
}

// report prints res and turns reported errors into a non-zero exit.
func report(cmd *cobra.Command, opts *rootOptions, res *core.ImportResult) error {
	out := cmd.OutOrStdout()

	var err error
	if opts.jsonOut {
		err = writeJSON(out, res)
	} else {
		err = writeResult(out, res)
	}
	if err != nil {
		return err
	}

	if n := len(res.Errors); n > 0 {
		return &exitError{code: exitRejected, err: fmt.Errorf("%s reported %d errors", res.FileName, n)}
	}
	return nil
}
