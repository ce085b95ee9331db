package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/goccy/go-json"

	"github.com/byte4ever/hashit/digester"
)

// Output formats.
const (
	Text = "text"
	JSON = "json"
)

// ErrFormat is returned for an unknown output format.
var ErrFormat = errors.New("unknown output format")

// Entry is the outcome of one check.
type Entry struct {
	Name    string   `json:"name,omitempty"`
	Key     string   `json:"key"`
	Inputs  []string `json:"inputs"`
	Changed bool     `json:"changed"`
	DryRun  bool     `json:"dry_run,omitempty"`
	Hash    string   `json:"hash,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Stored describes the content of one entry for hashit
// show.
type Stored struct {
	Key       string   `json:"key"`
	Algorithm string   `json:"algorithm"`
	Digests   []string `json:"digests"`
}

// Printer writes entries to a stream.
type Printer struct {
	w      io.Writer
	format string

	changed   *color.Color
	unchanged *color.Color
	failed    *color.Color
	dim       *color.Color
}

// ParseFormat normalises a format name. Empty means
// Text.
func ParseFormat(format string) (string, error) {
	switch fo := strings.ToLower(strings.TrimSpace(format)); fo {
	case "":
		return Text, nil
	case Text, JSON:
		return fo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrFormat, format)
	}
}

// New returns a printer for format. colored only affects
// the text format.
func New(w io.Writer, format string, colored bool) (*Printer, error) {
	const errCtx = "creating printer"

	fo, err := ParseFormat(format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	pr := &Printer{
		w:         w,
		format:    fo,
		changed:   color.New(color.FgYellow, color.Bold),
		unchanged: color.New(color.FgGreen),
		failed:    color.New(color.FgRed, color.Bold),
		dim:       color.New(color.Faint),
	}

	for _, co := range []*color.Color{
		pr.changed, pr.unchanged, pr.failed, pr.dim,
	} {
		if colored {
			co.EnableColor()
		} else {
			co.DisableColor()
		}
	}

	return pr, nil
}

// Entry writes one result.
func (p *Printer) Entry(en Entry) error {
	const errCtx = "printing result"

	var err error
	if p.format == JSON {
		err = p.json(en)
	} else {
		_, err = fmt.Fprintln(p.w, p.line(en))
	}

	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// Entries writes several results: one line each, or one
// JSON array.
func (p *Printer) Entries(ens []Entry) error {
	const errCtx = "printing results"

	if p.format == JSON {
		if ens == nil {
			ens = []Entry{}
		}

		if err := p.json(ens); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		return nil
	}

	for _, en := range ens {
		if _, err := fmt.Fprintln(p.w, p.line(en)); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}
	}

	return nil
}

// Stored writes the split content of an entry.
func (p *Printer) Stored(
	key string,
	alg digester.Algorithm,
	digests [][]byte,
) error {
	const errCtx = "printing entry"

	st := Stored{
		Key:       key,
		Algorithm: alg.Name,
		Digests:   make([]string, 0, len(digests)),
	}

	for _, dg := range digests {
		st.Digests = append(st.Digests, digester.Hex(dg))
	}

	var err error
	if p.format == JSON {
		err = p.json(st)
	} else {
		err = p.storedText(st)
	}

	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

func (p *Printer) storedText(st Stored) error {
	if len(st.Digests) == 0 {
		_, err := fmt.Fprintf(
			p.w, "%s %s\n", st.Key, p.dim.Sprint("(empty)"),
		)

		return err
	}

	for i, dg := range st.Digests {
		if _, err := fmt.Fprintf(
			p.w, "%s %s %s\n", p.dim.Sprintf("%d", i), st.Algorithm, dg,
		); err != nil {
			return err
		}
	}

	return nil
}

func (p *Printer) line(en Entry) string {
	var status string

	switch {
	case en.Error != "":
		status = p.failed.Sprint("error")
	case en.Changed:
		status = p.changed.Sprint("changed")
	default:
		status = p.unchanged.Sprint("unchanged")
	}

	var sb strings.Builder

	if en.Name != "" {
		sb.WriteString(en.Name)
		sb.WriteString(": ")
	}

	sb.WriteString(status)
	sb.WriteString(" ")
	sb.WriteString(en.Key)

	if en.DryRun {
		sb.WriteString(" ")
		sb.WriteString(p.dim.Sprint("(dry run)"))
	}

	if en.Error != "" {
		sb.WriteString(": ")
		sb.WriteString(en.Error)
	}

	return sb.String()
}

func (p *Printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
