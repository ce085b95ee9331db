package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Checker reports whether a target's inputs changed.
// *detector.Detector satisfies it.
type Checker interface {
	HasChanged(ctx context.Context, inputs []string, key string) (bool, error)
}

// CheckerFunc adapts a plain function to the Checker
// interface.
type CheckerFunc func(
	ctx context.Context,
	inputs []string,
	key string,
) (bool, error)

// HasChanged delegates to the wrapped function.
func (f CheckerFunc) HasChanged(
	ctx context.Context,
	inputs []string,
	key string,
) (bool, error) {
	return f(ctx, inputs, key)
}

// Result is the outcome for one target.
type Result struct {
	Target  Target
	Changed bool
	Err     error
}

// Failed returns the joined errors of failed results, or
// nil.
func Failed(results []Result) error {
	var errs []error

	for _, re := range results {
		if re.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", re.Target.Name, re.Err))
		}
	}

	return errors.Join(errs...)
}

// Run checks targets with at most jobs checks in flight;
// jobs <= 0 means GOMAXPROCS. A failing target does not
// stop the others; its error is kept in its Result. Run
// itself only fails when ctx is canceled.
func Run(
	ctx context.Context,
	ch Checker,
	targets []Target,
	jobs int,
) ([]Result, error) {
	const errCtx = "running batch"

	results := make([]Result, len(targets))
	if len(targets) == 0 {
		return results, nil
	}

	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(targets)))

	for i, ta := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			changed, err := ch.HasChanged(gctx, ta.Inputs, ta.Output)

			// Each goroutine owns results[i].
			results[i] = Result{Target: ta, Changed: changed, Err: err}

			slog.Debug(
				"checked target",
				"name", ta.Name,
				"changed", changed,
				"error", err,
			)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("%s: %w", errCtx, err)
	}

	return results, nil
}
