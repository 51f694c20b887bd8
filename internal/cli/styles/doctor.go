package styles

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type DoctorRenderer struct {
	theme *Theme
}

func NewDoctorRenderer(theme *Theme) *DoctorRenderer {
	return &DoctorRenderer{theme: theme}
}

type DoctorReport struct {
	OverallOK bool
	Runtime   DoctorRuntimeReport
	Drivers   []DoctorDriver
}

type DoctorRuntimeReport struct {
	Prefix string
	Checks []DoctorRuntimeCheck
}

type DoctorRuntimeCheck struct {
	Name      string
	Installed bool
	Version   string
	Error     string
}

// DoctorDriver is the availability of one native driver.
type DoctorDriver struct {
	Name      string
	Available bool
	Default   bool
	Error     string
}

func (r *DoctorRenderer) Render(report DoctorReport) string {
	header := r.renderHeader(report.OverallOK)

	sections := []string{}
	if len(report.Drivers) > 0 {
		sections = append(sections, r.renderDrivers(report.Drivers))
	}
	if len(report.Runtime.Checks) > 0 || strings.TrimSpace(report.Runtime.Prefix) != "" {
		sections = append(sections, r.renderRuntime(report.Runtime))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, "", strings.Join(sections, "\n\n"))
}

func (r *DoctorRenderer) renderHeader(ok bool) string {
	iconStyle := lipgloss.NewStyle().Foreground(r.theme.Accent)
	statusStyle := r.theme.SuccessStyle
	statusText := "OK"
	if !ok {
		statusStyle = r.theme.WarningStyle
		statusText = "Needs attention"
	}

	title := fmt.Sprintf("%s %s", iconStyle.Render(IconDoctor), r.theme.Title.Render("Doctor"))
	badge := r.theme.BadgeMuted.Render(statusStyle.Render(statusText))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, " ", badge)
}

func (r *DoctorRenderer) renderDrivers(drivers []DoctorDriver) string {
	lines := make([]string, 0, len(drivers))
	for _, d := range drivers {
		icon, style, status := IconCheck, r.theme.SuccessStyle, "Available"
		if !d.Available {
			icon, style, status = IconX, r.theme.ErrorStyle, "Unavailable"
		}
		line := fmt.Sprintf("%s %s %s", style.Render(icon), r.theme.Normal.Render(d.Name), r.theme.BadgeMuted.Render(style.Render(status)))
		if d.Default {
			line += " " + r.theme.Subtle.Render("(default)")
		}
		if d.Error != "" {
			line += "\n  " + r.theme.Subtle.Render(d.Error)
		}
		lines = append(lines, line)
	}
	return r.theme.Box.Render(r.theme.BoxHeader.Render(fmt.Sprintf("%s Drivers", r.theme.Highlight.Render(IconWindow))) + "\n" + strings.Join(lines, "\n"))
}

func (r *DoctorRenderer) renderRuntime(rt DoctorRuntimeReport) string {
	lines := make([]string, 0, len(rt.Checks)+1)

	if strings.TrimSpace(rt.Prefix) != "" {
		lines = append(lines, fmt.Sprintf(
			"%s %s %s",
			r.theme.Subtle.Render("Prefix"),
			r.theme.Normal.Render(rt.Prefix),
			r.theme.Subtle.Render("(runtime override)"),
		))
	}

	for _, c := range rt.Checks {
		lines = append(lines, r.renderRuntimeCheck(c))
	}

	body := strings.Join(lines, "\n")
	return r.theme.Box.Render(r.theme.BoxHeader.Render(fmt.Sprintf("%s Runtime", r.theme.Highlight.Render(IconPackage))) + "\n" + body)
}

func (r *DoctorRenderer) renderRuntimeCheck(c DoctorRuntimeCheck) string {
	icon := IconCheck
	statusStyle := r.theme.SuccessStyle
	status := "OK"
	summary := c.Version

	if !c.Installed {
		icon = IconX
		statusStyle = r.theme.ErrorStyle
		status = "Missing"
		summary = c.Error
	}

	name := r.theme.Normal.Render(c.Name)
	badge := r.theme.BadgeMuted.Render(statusStyle.Render(status))
	info := r.theme.Subtle.Render(summary)

	return fmt.Sprintf("%s %s %s\n  %s", statusStyle.Render(icon), name, badge, info)
}
