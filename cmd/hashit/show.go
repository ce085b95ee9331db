package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/byte4ever/hashit/store"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show KEY",
		Short: "Print the digests stored under KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			const errCtx = "showing entry"

			ctx := cmd.Context()
			key := args[0]

			be, err := a.cfg.OpenBackend()
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			ok, err := be.Exists(ctx, key)
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			if !ok {
				return fmt.Errorf("%s: %w", errCtx, store.NotFound(key, nil))
			}

			by, err := store.ReadAll(ctx, be, key)
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			digests, err := a.alg.Split(by)
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			pr, err := a.printer()
			if err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			if err := pr.Stored(key, a.alg, digests); err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}

			return nil
		},
	}
}
