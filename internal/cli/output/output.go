// Package output renders command results as styled terminal text,
// markdown, or JSON. Styled text is for humans at a TTY; markdown is
// the default for pipes so agents and scripts get structure without
// escape codes; JSON is for machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// OutputMode selects how a command renders its results.
type OutputMode string

// Output modes accepted by the --output flag.
const (
	ModeAuto     OutputMode = "auto"
	ModeText     OutputMode = "text"
	ModeMarkdown OutputMode = "markdown"
	ModeJSON     OutputMode = "json"
)

// Mode normalizes a user-supplied mode string. Unknown values fall
// back to auto.
func Mode(s string) OutputMode {
	switch OutputMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeText:
		return ModeText
	case ModeMarkdown:
		return ModeMarkdown
	case ModeJSON:
		return ModeJSON
	default:
		return ModeAuto
	}
}

// Renderer writes command output in the configured mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	isTTY  bool
	mode   OutputMode
	styles Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode OutputMode) *Renderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return NewRendererWithTTY(out, errOut, isTTY, mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY setting.
// Tests use this to exercise both branches against buffers.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode OutputMode) *Renderer {
	lr := lipgloss.NewRenderer(out)
	if !isTTY {
		lr.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		isTTY:  isTTY,
		mode:   mode,
		styles: newStyles(lr),
	}
}

// EffectiveMode resolves auto to text on a TTY and markdown otherwise.
func (r *Renderer) EffectiveMode() OutputMode {
	if r.mode != ModeAuto && r.mode != "" {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Writer returns the underlying output writer, for table writers and
// other renderers that stream directly.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the error output writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Styles returns the style set matching the renderer's color profile.
func (r *Renderer) Styles() *Styles { return &r.styles }

// Println writes a line to output.
func (r *Renderer) Println(args ...any) {
	fmt.Fprintln(r.out, args...)
}

// Printf writes formatted text to output.
func (r *Renderer) Printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// Header writes a section header. In markdown mode it uses # syntax;
// in text mode it styles the line.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeMarkdown {
		fmt.Fprintln(r.out, FormatHeader(level, text))
		return
	}
	style := r.styles.Header2
	if level <= 1 {
		style = r.styles.Header1
	}
	fmt.Fprintln(r.out, style.Render(text))
}

// StatusLine writes an indented status entry: an icon for the status,
// the item name, and an optional muted detail.
func (r *Renderer) StatusLine(name, status, detail string) {
	var icon string
	switch status {
	case "success", "pass", "ok":
		icon = r.styles.StatusSuccess.String()
	case "failed", "error":
		icon = r.styles.StatusFailed.String()
	default:
		icon = r.styles.Muted.Render("·")
	}
	line := fmt.Sprintf("  %s %s", icon, name)
	if detail != "" {
		line += " " + r.styles.Muted.Render("("+detail+")")
	}
	fmt.Fprintln(r.out, line)
}

// Success writes a confirmation line with a check mark.
func (r *Renderer) Success(msg string) {
	fmt.Fprintln(r.out, r.styles.StatusSuccess.String()+" "+msg)
}

// Muted writes a dimmed line.
func (r *Renderer) Muted(msg string) {
	fmt.Fprintln(r.out, r.styles.Muted.Render(msg))
}

// Warning writes a warning line.
func (r *Renderer) Warning(msg string) {
	fmt.Fprintln(r.out, r.styles.Warning.Render("⚠ "+msg))
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	fmt.Fprintln(r.out, string(data))
	return nil
}

// ScriptLine writes one numbered library entry in text mode: title,
// category, and the available version kinds.
func (r *Renderer) ScriptLine(n int, title, category string, kinds []string) {
	line := fmt.Sprintf("  %2d. %s  %s",
		n,
		r.styles.ScriptTitle.Render(title),
		r.styles.Muted.Render(category),
	)
	if len(kinds) > 0 {
		line += "  " + r.styles.Muted.Render("["+strings.Join(kinds, " ")+"]")
	}
	fmt.Fprintln(r.out, line)
}

// NewSpinner creates a spinner bound to this renderer. On non-TTY
// output the spinner stays silent until Success or Fail.
func (r *Renderer) NewSpinner(msg string) *Spinner {
	return newSpinner(r, msg)
}
