// Command hashit reports whether a set of input files changed since the
// last check recorded under an output key, without looking at
// timestamps.
//
//	hashit check --output build/web.digest web/index.html web/app.js
//	hashit exec --output gen.digest -i schema.sql -- make generate
//	hashit batch hashit-targets.yaml --jobs 4
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if err := run(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				slog.Error("fatal", "error", ee.err)
			}

			os.Exit(ee.code)
		}

		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	return newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
}
