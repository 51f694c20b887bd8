package styles

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfigRenderer renders config command output.
type ConfigRenderer struct {
	theme *Theme
}

// NewConfigRenderer creates a new config renderer.
func NewConfigRenderer(theme *Theme) *ConfigRenderer {
	return &ConfigRenderer{theme: theme}
}

// RenderPath renders the config file location.
func (r *ConfigRenderer) RenderPath(path string, exists bool) string {
	iconStyle := lipgloss.NewStyle().Foreground(r.theme.Accent)
	line := fmt.Sprintf("%s %s", iconStyle.Render(IconConfig), r.theme.Normal.Render(path))
	if !exists {
		line += " " + r.theme.WarningStyle.Render("(not created yet)")
	}
	return line
}

// RenderDocument renders a TOML document inside a titled box.
func (r *ConfigRenderer) RenderDocument(path, doc string) string {
	header := r.theme.BoxHeader.Render(fmt.Sprintf("%s %s", r.theme.Highlight.Render(IconConfig), path))
	return r.theme.Box.Render(header + "\n" + strings.TrimRight(doc, "\n"))
}

// RenderWritten renders a success line for a generated file.
func (r *ConfigRenderer) RenderWritten(what, path string) string {
	return fmt.Sprintf("%s %s %s",
		r.theme.SuccessStyle.Render(IconCheck),
		r.theme.Normal.Render(what),
		r.theme.Subtle.Render(path),
	)
}

// RenderError renders a failure, one line per wrapped message line.
func (r *ConfigRenderer) RenderError(err error) string {
	lines := strings.Split(err.Error(), "\n")
	out := make([]string, 0, len(lines))
	out = append(out, fmt.Sprintf("%s %s", r.theme.ErrorStyle.Render(IconX), r.theme.ErrorStyle.Render(lines[0])))
	for _, l := range lines[1:] {
		out = append(out, r.theme.Subtle.Render(l))
	}
	return strings.Join(out, "\n")
}
