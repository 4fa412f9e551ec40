// Package output renders command results as styled text, TSV, or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
)

// Mode selects the output format.
type Mode string

const (
	// ModeAuto picks ModeText on a terminal and ModeTSV when piped.
	ModeAuto Mode = "auto"
	// ModeText renders styled tables and headings.
	ModeText Mode = "text"
	// ModeTSV renders tab-separated values for scripts.
	ModeTSV Mode = "tsv"
	// ModeJSON renders a single JSON document (or JSON lines).
	ModeJSON Mode = "json"
)

// Modes lists every accepted output mode.
func Modes() []string {
	return []string{string(ModeAuto), string(ModeText), string(ModeTSV), string(ModeJSON)}
}

// ValidMode reports whether s names an accepted output mode.
func ValidMode(s string) bool {
	switch Mode(s) {
	case "", ModeAuto, ModeText, ModeTSV, ModeJSON:
		return true
	}
	return false
}

// Styles groups the terminal colors used for text output.
type Styles struct {
	Header text.Colors
	Muted  text.Colors
	Good   text.Colors
	Bad    text.Colors
}

var defaultStyles = Styles{
	Header: text.Colors{text.Bold},
	Muted:  text.Colors{text.Faint},
	Good:   text.Colors{text.FgGreen},
	Bad:    text.Colors{text.FgRed},
}

// Renderer writes command output in the configured Mode.
type Renderer struct {
	out  io.Writer
	errW io.Writer
	mode Mode
}

// NewRenderer wraps the given writers. Colors are disabled when out is
// not a terminal.
func NewRenderer(out, errW io.Writer, mode Mode) *Renderer {
	if !isTerminal(out) {
		text.DisableColors()
	}
	return &Renderer{out: out, errW: errW, mode: mode}
}

// Mode returns the configured mode, before auto-detection.
func (r *Renderer) Mode() Mode {
	return r.mode
}

// EffectiveMode resolves ModeAuto against the output terminal.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode == "" || r.mode == ModeAuto {
		if isTerminal(r.out) {
			return ModeText
		}
		return ModeTSV
	}
	return r.mode
}

// Writer returns the output writer.
func (r *Renderer) Writer() io.Writer {
	return r.out
}

// ErrWriter returns the error writer.
func (r *Renderer) ErrWriter() io.Writer {
	return r.errW
}

// Styles returns the terminal color set.
func (r *Renderer) Styles() Styles {
	return defaultStyles
}

// Println writes a line to the output writer.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output to the output writer.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header prints a section heading, styled on terminals.
func (r *Renderer) Header(level int, s string) {
	if r.EffectiveMode() == ModeText {
		r.Println(defaultStyles.Header.Sprint(s))
		return
	}
	r.Println(FormatHeader(level, s))
}

// Success prints a checkmarked line, green on terminals.
func (r *Renderer) Success(s string) {
	r.Println(defaultStyles.Good.Sprint("✓") + " " + s)
}

// StatusLine prints one named item with its status glyph and an
// optional detail. In TSV mode the fields are tab-separated instead.
func (r *Renderer) StatusLine(name, status, detail string) {
	if r.EffectiveMode() == ModeTSV {
		line := name + "\t" + status
		if detail != "" {
			line += "\t" + detail
		}
		r.Println(line)
		return
	}
	glyph := statusGlyph(status)
	if detail != "" {
		r.Println("  " + glyph + " " + name + " " + defaultStyles.Muted.Sprint(detail))
		return
	}
	r.Println("  " + glyph + " " + name)
}

func statusGlyph(status string) string {
	switch status {
	case "success", "completed":
		return defaultStyles.Good.Sprint("✓")
	case "failed":
		return defaultStyles.Bad.Sprint("✗")
	case "skipped":
		return defaultStyles.Muted.Sprint("-")
	default:
		return defaultStyles.Muted.Sprint("•")
	}
}

// Table returns a go-pretty table mirrored to the output writer.
func (r *Renderer) Table() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	return t
}

// JSON writes v as an indented JSON document.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatHeader renders a plain heading line at the given level.
func FormatHeader(level int, s string) string {
	return strings.Repeat("#", level) + " " + s
}

// FormatKeyValue renders one key-value line for script-friendly output.
func FormatKeyValue(key, value string) string {
	return key + "\t" + value
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
