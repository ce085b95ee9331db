// Package runner executes external commands for hashit exec.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// ErrNoCommand is returned when a Command has no name.
var ErrNoCommand = errors.New("no command given")

// Command describes one process to run. Nil streams fall
// back to the process's own stdio.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Run starts c and waits for it. The process is killed
// when ctx is done.
func Run(ctx context.Context, c Command) error {
	const errCtx = "executing command"

	if c.Name == "" {
		return fmt.Errorf("%s: %w", errCtx, ErrNoCommand)
	}

	slog.Info("executing", "cmd", c.Name, "args", strings.Join(c.Args, " "))

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr

	if c.Stdin != nil {
		cmd.Stdin = c.Stdin
	}

	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}

	if c.Stderr != nil {
		cmd.Stderr = c.Stderr
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %s: %w", errCtx, c, err)
	}

	return nil
}

// Output runs the named command and returns its combined
// stdout and stderr. Pass an empty dir to use the current
// working directory.
func Output(
	ctx context.Context,
	dir string,
	name string,
	arg ...string,
) (string, error) {
	var buf strings.Builder

	err := Run(ctx, Command{
		Name:   name,
		Args:   arg,
		Dir:    dir,
		Stdin:  strings.NewReader(""),
		Stdout: &buf,
		Stderr: &buf,
	})

	slog.Debug("output", "result", buf.String())

	return buf.String(), err
}

// ExitCode extracts the exit status carried by err: 0 for
// nil, the process status for an exit error, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) && ee.ExitCode() > 0 {
		return ee.ExitCode()
	}

	return 1
}
