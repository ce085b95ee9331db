package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fortio.org/safecast"
	"github.com/goccy/go-yaml"

	"github.com/byte4ever/hashit/keytmpl"
)

var (
	// ErrDuplicateOutput is returned when two targets
	// resolve to the same output key.
	ErrDuplicateOutput = errors.New("duplicate output key")
	// ErrNoTargets is returned for a manifest without
	// targets.
	ErrNoTargets = errors.New("manifest has no targets")
)

// Target is one set of inputs checked against one key.
type Target struct {
	Name   string   `yaml:"name"`
	Output string   `yaml:"output"`
	Inputs []string `yaml:"inputs"`
}

// Manifest lists the targets of a batch run.
type Manifest struct {
	// Jobs caps concurrent checks; zero lets the caller
	// decide.
	Jobs    uint     `yaml:"jobs"`
	Targets []Target `yaml:"targets"`
}

// Decode reads every YAML document from r and merges
// their targets. The last non-zero jobs value wins.
func Decode(r io.Reader) (Manifest, error) {
	const errCtx = "decoding manifest"

	decoder := yaml.NewDecoder(r)

	var ma Manifest

	for {
		var doc Manifest

		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return Manifest{}, fmt.Errorf("%s: %w", errCtx, err)
		}

		if doc.Jobs != 0 {
			ma.Jobs = doc.Jobs
		}

		ma.Targets = append(ma.Targets, doc.Targets...)
	}

	return ma, nil
}

// Load decodes the manifest file at path.
func Load(path string) (result Manifest, retErr error) {
	const errCtx = "loading manifest"

	fi, err := os.Open(path) //nolint:gosec // path is caller-provided by design
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	defer func() {
		if closeErr := fi.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("%s: %w", errCtx, closeErr)
		}
	}()

	ma, err := Decode(fi)
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: %s: %w", errCtx, path, err)
	}

	return ma, nil
}

// EntryFunc maps an output key to the entry it addresses.
// Keys with the same entry are duplicates.
type EntryFunc func(key string) string

// Resolve fills in missing outputs from tmpl (see
// keytmpl.Expand) and missing names from the output, then
// rejects empty manifests and duplicate outputs. Outputs
// are compared as cleaned paths.
func (m Manifest) Resolve(
	tmpl string,
	algorithm string,
	vars map[string]string,
) ([]Target, error) {
	return m.ResolveWith(tmpl, algorithm, vars, filepath.Clean)
}

// ResolveWith is Resolve with outputs compared through
// entry.
func (m Manifest) ResolveWith(
	tmpl string,
	algorithm string,
	vars map[string]string,
	entry EntryFunc,
) ([]Target, error) {
	const errCtx = "resolving targets"

	if len(m.Targets) == 0 {
		return nil, fmt.Errorf("%s: %w", errCtx, ErrNoTargets)
	}

	out := make([]Target, 0, len(m.Targets))
	seen := make(map[string]int, len(m.Targets))

	for i, ta := range m.Targets {
		if ta.Output == "" {
			key, err := keytmpl.Expand(tmpl, ta.Inputs, algorithm, vars)
			if err != nil {
				return nil, fmt.Errorf(
					"%s: target %d (%s): %w", errCtx, i, ta.Name, err,
				)
			}

			ta.Output = key
		}

		if ta.Name == "" {
			ta.Name = ta.Output
		}

		id := entry(ta.Output)

		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf(
				"%s: %w: %q used by targets %d and %d",
				errCtx, ErrDuplicateOutput, ta.Output, prev, i,
			)
		}

		seen[id] = i

		out = append(out, ta)
	}

	return out, nil
}

// JobLimit converts Jobs to an int.
func (m Manifest) JobLimit() (int, error) {
	const errCtx = "reading job limit"

	n, err := safecast.Conv[int](m.Jobs)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", errCtx, err)
	}

	return n, nil
}
