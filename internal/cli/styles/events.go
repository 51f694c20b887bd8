package styles

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const timeLayout = "15:04:05"

// EventRenderer renders IPC traffic and loop events as log lines.
type EventRenderer struct {
	theme *Theme
}

func NewEventRenderer(theme *Theme) *EventRenderer {
	return &EventRenderer{theme: theme}
}

func (r *EventRenderer) stamp(at time.Time) string {
	return r.theme.Subtle.Render(at.Format(timeLayout))
}

// RenderMessage renders a page-to-host message.
func (r *EventRenderer) RenderMessage(at time.Time, label, body string) string {
	return fmt.Sprintf("%s %s %s %s",
		r.stamp(at),
		lipgloss.NewStyle().Foreground(r.theme.Accent).Render(IconArrowLeft),
		r.theme.Badge.Render(label),
		r.theme.Normal.Render(body),
	)
}

// RenderSent renders a host-to-page message.
func (r *EventRenderer) RenderSent(at time.Time, label, body string) string {
	return fmt.Sprintf("%s %s %s %s",
		r.stamp(at),
		lipgloss.NewStyle().Foreground(r.theme.Accent).Render(IconArrow),
		r.theme.BadgeMuted.Render(label),
		r.theme.Normal.Render(body),
	)
}

// RenderEvent renders a loop event. detail may be empty.
func (r *EventRenderer) RenderEvent(at time.Time, name, detail string, failed bool) string {
	style := r.theme.Highlight
	icon := IconBolt
	if failed {
		style = r.theme.ErrorStyle
		icon = IconWarning
	}
	line := fmt.Sprintf("%s %s %s", r.stamp(at), style.Render(icon), style.Render(name))
	if detail != "" {
		line += " " + r.theme.Subtle.Render(detail)
	}
	return line
}

// RenderResult renders the outcome of a command.
func (r *EventRenderer) RenderResult(at time.Time, command, result string) string {
	line := fmt.Sprintf("%s %s %s", r.stamp(at), r.theme.SuccessStyle.Render(IconCheck), r.theme.Subtle.Render(command))
	if result != "" {
		line += " " + r.theme.Normal.Render(result)
	}
	return line
}

// RenderFailure renders a failed command.
func (r *EventRenderer) RenderFailure(at time.Time, command string, err error) string {
	return fmt.Sprintf("%s %s %s %s",
		r.stamp(at),
		r.theme.ErrorStyle.Render(IconX),
		r.theme.Subtle.Render(command),
		r.theme.ErrorStyle.Render(err.Error()),
	)
}

// RenderInfo renders a neutral line.
func (r *EventRenderer) RenderInfo(at time.Time, text string) string {
	return fmt.Sprintf("%s %s %s", r.stamp(at), r.theme.Subtle.Render(IconInfo), r.theme.Normal.Render(text))
}
