package keytmpl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"
)

// Default is the template used when none is given.
const Default = "{first}.digest"

// Placeholder names.
const (
	First     = "first"
	Dir       = "dir"
	Base      = "base"
	Count     = "count"
	Algorithm = "algorithm"
)

var (
	// ErrNoInputs is returned when a template refers to
	// the first input but there is none.
	ErrNoInputs = errors.New("template needs at least one input")
	// ErrEmptyKey is returned when a template expands to
	// an empty key.
	ErrEmptyKey = errors.New("template expanded to an empty key")
)

// ReadVars reads variable files and merges them into one
// map. Each line is "KEY VALUE" split on the first space;
// lines without a space are skipped. Later files win.
func ReadVars(files []string) (map[string]string, error) {
	const errCtx = "reading template variables"

	vars := make(map[string]string)

	for _, fn := range files {
		content, err := os.ReadFile(fn) //nolint:gosec // paths from CLI flags
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		for _, line := range strings.Split(string(content), "\n") {
			k, v, ok := strings.Cut(strings.TrimRight(line, "\r"), " ")
			if ok {
				vars[k] = v
			}
		}
	}

	return vars, nil
}

// Expand substitutes placeholders in tmpl. Built-in
// placeholders take precedence over extra. An empty tmpl
// means Default.
func Expand(
	tmpl string,
	inputs []string,
	algorithm string,
	extra map[string]string,
) (string, error) {
	const errCtx = "expanding key template"

	if tmpl == "" {
		tmpl = Default
	}

	if len(inputs) == 0 && usesFirst(tmpl) {
		return "", fmt.Errorf("%s: %w: %q", errCtx, ErrNoInputs, tmpl)
	}

	vars := make(map[string]interface{}, len(extra)+5)
	for k, v := range extra {
		vars[k] = v
	}

	for k, v := range builtins(inputs, algorithm) {
		vars[k] = v
	}

	key := fasttemplate.ExecuteStringStd(tmpl, "{", "}", vars)
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%s: %w: %q", errCtx, ErrEmptyKey, tmpl)
	}

	return key, nil
}

func builtins(inputs []string, algorithm string) map[string]string {
	vars := map[string]string{
		Count:     strconv.Itoa(len(inputs)),
		Algorithm: algorithm,
	}

	if len(inputs) > 0 {
		vars[First] = inputs[0]
		vars[Dir] = filepath.Dir(inputs[0])
		vars[Base] = filepath.Base(inputs[0])
	}

	return vars
}

func usesFirst(tmpl string) bool {
	for _, na := range []string{First, Dir, Base} {
		if strings.Contains(tmpl, "{"+na+"}") {
			return true
		}
	}

	return false
}
