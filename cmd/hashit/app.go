package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"fortio.org/safecast"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/byte4ever/hashit/config"
	"github.com/byte4ever/hashit/detector"
	"github.com/byte4ever/hashit/digester"
	"github.com/byte4ever/hashit/hashcalc"
	"github.com/byte4ever/hashit/keytmpl"
	"github.com/byte4ever/hashit/lock"
	"github.com/byte4ever/hashit/logging"
	"github.com/byte4ever/hashit/report"
	"github.com/byte4ever/hashit/store"
	"github.com/byte4ever/hashit/store/filestore"
)

// exitCodeChanged is returned by --exit-code when inputs
// changed.
const exitCodeChanged = 2

// version can be overridden at build time via -ldflags.
var version = "dev"

// exitError carries a process exit status. A nil err
// exits silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}

	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error {
	return e.err
}

// flagValues holds global flags before they are merged
// over the config file.
type flagValues struct {
	configPath  string
	algorithm   string
	backend     string
	root        string
	logLevel    string
	logFormat   string
	format      string
	color       string
	keyTemplate string
	varFiles    []string
	lock        bool
}

// app is the state shared by every subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer
	flags  flagValues

	cfg  config.Config
	alg  digester.Algorithm
	vars map[string]string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "hashit",
		Short: "Content-digest change detection",
		Long: "hashit compares a digest of input files with the one " +
			"recorded under an output key and reports whether " +
			"anything changed.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(
		&a.flags.configPath, "config", "",
		"config file (.yaml, .yml, .toml or .ini)",
	)
	pf.StringVar(
		&a.flags.algorithm, "algorithm", digester.DefaultName,
		"digest algorithm ("+strings.Join(digester.Names(), ", ")+")",
	)
	pf.StringVar(
		&a.flags.backend, "backend", config.BackendFile,
		"entry backend (file, memory, index, kube, github, gitlab)",
	)
	pf.StringVar(
		&a.flags.root, "root", "",
		"directory confining file keys and holding the index",
	)
	pf.StringVar(
		&a.flags.logLevel, "log-level", "",
		"log level (debug, info, warn, error)",
	)
	pf.StringVar(
		&a.flags.logFormat, "log-format", "",
		"log format (text, json)",
	)
	pf.StringVar(
		&a.flags.format, "format", report.Text,
		"output format (text, json)",
	)
	pf.StringVar(
		&a.flags.color, "color", config.ColorAuto,
		"colorize output (auto|on|off)",
	)
	pf.StringVar(
		&a.flags.keyTemplate, "key-template", keytmpl.Default,
		"output key template when --output is not given",
	)
	pf.StringArrayVar(
		&a.flags.varFiles, "key-var-file", nil,
		`"KEY VALUE" file with extra template variables (repeatable)`,
	)
	pf.BoolVar(
		&a.flags.lock, "lock", false,
		"hold an advisory lock on KEY.lock during the check",
	)

	root.AddCommand(
		newCheckCmd(a),
		newStatusCmd(a),
		newShowCmd(a),
		newExecCmd(a),
		newBatchCmd(a),
	)

	return root
}

// setup merges the config file with explicitly set flags
// and installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	const errCtx = "configuring"

	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	fl := cmd.Flags()
	fv := a.flags

	for name, apply := range map[string]func(){
		"algorithm":    func() { cfg.Algorithm = fv.algorithm },
		"backend":      func() { cfg.Backend.Type = fv.backend },
		"root":         func() { cfg.Backend.Root = fv.root },
		"log-level":    func() { cfg.Log.Level = fv.logLevel },
		"log-format":   func() { cfg.Log.Format = fv.logFormat },
		"format":       func() { cfg.Format = fv.format },
		"color":        func() { cfg.Color = fv.color },
		"key-template": func() { cfg.KeyTemplate = fv.keyTemplate },
		"lock":         func() { cfg.Lock = fv.lock },
	} {
		if fl.Changed(name) {
			apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := logging.Setup(
		a.stderr, cfg.Log.Level, cfg.Log.Format,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	alg, err := cfg.AlgorithmSpec()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	vars, err := keytmpl.ReadVars(fv.varFiles)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	a.cfg, a.alg, a.vars = cfg, alg, vars

	return nil
}

// detector wires the configured backend for entries with
// a filesystem reader for inputs.
func (a *app) detector() (*detector.Detector, error) {
	be, err := a.cfg.OpenBackend()
	if err != nil {
		return nil, err
	}

	co := hashcalc.NewStore(filestore.New(""), a.alg)

	return detector.New(be, co), nil
}

func (a *app) printer() (*report.Printer, error) {
	return report.New(a.stdout, a.cfg.Format, a.colored())
}

func (a *app) colored() bool {
	switch a.cfg.Color {
	case config.ColorOn:
		return true
	case config.ColorOff:
		return false
	default:
		_, noColor := os.LookupEnv("NO_COLOR")

		return !noColor && isTerminal(a.stdout)
	}
}

// outputKey returns output when set, the expanded key
// template otherwise.
func (a *app) outputKey(output string, inputs []string) (string, error) {
	if output != "" {
		return output, nil
	}

	return keytmpl.Expand(a.cfg.KeyTemplate, inputs, a.alg.Name, a.vars)
}

// entryOf names the entry behind key. File keys resolve to
// their path, so equivalent spellings compare equal.
func (a *app) entryOf(key string) string {
	if a.cfg.UsesFiles() {
		return filestore.New(a.cfg.Backend.Root).Path(key)
	}

	return key
}

// withLock runs fn while holding the lock of key when
// locking is enabled.
func (a *app) withLock(
	ctx context.Context,
	key string,
	fn func() error,
) (retErr error) {
	if !a.cfg.Lock {
		return fn()
	}

	if !a.cfg.UsesFiles() {
		return store.NotImplemented(
			key, "lock on "+a.cfg.Backend.Type+" backend",
		)
	}

	pa := lock.Path(filestore.New(a.cfg.Backend.Root).Path(key))

	lk, err := lock.Acquire(ctx, pa)
	if err != nil {
		return err
	}

	defer func() {
		retErr = errors.Join(retErr, lk.Release())
	}()

	return fn()
}

// changedExit turns a change into exit status 2 when
// requested.
func changedExit(exitCode, changed bool) error {
	if exitCode && changed {
		slog.Debug("exiting with change status")

		return &exitError{code: exitCodeChanged}
	}

	return nil
}

func isTerminal(w io.Writer) bool {
	fi, ok := w.(*os.File)
	if !ok {
		return false
	}

	fd, err := safecast.Conv[int](fi.Fd())
	if err != nil {
		return false
	}

	return term.IsTerminal(fd)
}
