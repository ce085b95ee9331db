package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/byte4ever/hashit/batch"
	"github.com/byte4ever/hashit/report"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		jobs     int
		dryRun   bool
		exitCode bool
	)

	cmd := &cobra.Command{
		Use:   "batch [flags] MANIFEST",
		Short: "Check every target of a YAML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			const errCtx = "running batch"

			ctx := cmd.Context()

			ma, err := batch.Load(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			targets, err := ma.ResolveWith(
				a.cfg.KeyTemplate, a.alg.Name, a.vars, a.entryOf,
			)
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			limit, err := ma.JobLimit()
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			switch {
			case cmd.Flags().Changed("jobs"):
				limit = jobs
			case a.cfg.Jobs > 0:
				limit = a.cfg.Jobs
			}

			de, err := a.detector()
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			pr, err := a.printer()
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			check := func(
				ctx context.Context,
				inputs []string,
				key string,
			) (bool, error) {
				if dryRun {
					res, err := de.Check(ctx, inputs, key)

					return res.Changed, err
				}

				return de.HasChanged(ctx, inputs, key)
			}

			locked := batch.CheckerFunc(func(
				ctx context.Context,
				inputs []string,
				key string,
			) (changed bool, err error) {
				err = a.withLock(ctx, key, func() error {
					var chErr error

					changed, chErr = check(ctx, inputs, key)

					return chErr
				})

				return changed, err
			})

			results, err := batch.Run(ctx, locked, targets, limit)
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			entries := make([]report.Entry, 0, len(results))
			anyChanged := false

			for _, re := range results {
				en := report.Entry{
					Name:    re.Target.Name,
					Key:     re.Target.Output,
					Inputs:  re.Target.Inputs,
					Changed: re.Changed,
					DryRun:  dryRun,
				}

				if re.Err != nil {
					en.Error = re.Err.Error()
				}

				anyChanged = anyChanged || re.Changed
				entries = append(entries, en)
			}

			if err := pr.Entries(entries); err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			if err := batch.Failed(results); err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			slog.Info("batch done", "targets", len(results), "changed", anyChanged)

			return changedExit(exitCode, anyChanged)
		},
	}

	cmd.Flags().IntVarP(
		&jobs, "jobs", "j", 0,
		"concurrent checks (default: config, manifest, then GOMAXPROCS)",
	)
	cmd.Flags().BoolVar(
		&dryRun, "dry-run", false,
		"compare without recording",
	)
	cmd.Flags().BoolVar(
		&exitCode, "exit-code", false,
		"exit with status 2 when any target changed",
	)

	return cmd
}
