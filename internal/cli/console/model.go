package console

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/webloop/internal/cli/styles"
	"github.com/bnema/webloop/internal/remote"
)

const (
	maxLines     = 1000
	maxInputHist = 100
	headerHeight = 2
	footerHeight = 4
)

// Model is the bubbletea model of the console.
type Model struct {
	remote  Remote
	events  <-chan remote.Envelope
	timeout time.Duration
	addr    string

	theme    *styles.Theme
	render   *styles.EventRenderer
	keys     styles.ConsoleKeyMap
	help     help.Model
	input    textinput.Model
	viewport viewport.Model
	loading  styles.LoadingModel

	lines   []string
	history []string
	histPos int
	pending int
	closed  bool
	now     func() time.Time
}

// Options configures New.
type Options struct {
	Addr string
	// Events is the pushed event stream, usually (*remote.Client).Events().
	Events  <-chan remote.Envelope
	Timeout time.Duration
	Theme   *styles.Theme
}

// New creates a console model driving r.
func New(r Remote, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	in := textinput.New()
	in.Placeholder = "type a command, 'help' lists them"
	in.Prompt = "❯ "
	in.PromptStyle = lipgloss.NewStyle().Foreground(theme.Accent)
	in.Focus()

	return Model{
		remote:   r,
		events:   opts.Events,
		timeout:  opts.Timeout,
		addr:     opts.Addr,
		theme:    theme,
		render:   styles.NewEventRenderer(theme),
		keys:     styles.DefaultConsoleKeyMap(),
		help:     styles.NewStyledHelp(theme),
		input:    in,
		viewport: viewport.New(80, 20),
		loading:  styles.NewLoading(theme, "waiting for reply"),
		now:      time.Now,
	}
}

type resultMsg struct {
	line   string
	result string
	err    error
}

type eventMsg struct {
	env remote.Envelope
	ok  bool
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitEvent())
}

func (m Model) waitEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	events := m.events
	return func() tea.Msg {
		env, ok := <-events
		return eventMsg{env: env, ok: ok}
	}
}

func (m Model) run(line string) tea.Cmd {
	r, timeout := m.remote, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		result, err := Execute(ctx, r, line)
		return resultMsg{line: line, result: result, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-headerHeight-footerHeight)
		m.input.Width = max(10, msg.Width-4)
		m.help.Width = msg.Width
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Clear):
			m.lines = nil
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case key.Matches(msg, m.keys.PrevInput):
			m.recall(-1)
			return m, nil
		case key.Matches(msg, m.keys.NextInput):
			m.recall(1)
			return m, nil
		case key.Matches(msg, m.keys.Submit):
			return m.submit()
		}

	case resultMsg:
		m.pending--
		if msg.err != nil {
			m.appendLine(m.render.RenderFailure(m.now(), msg.line, msg.err))
		} else {
			m.appendLine(m.render.RenderResult(m.now(), msg.line, msg.result))
		}
		return m, nil

	case eventMsg:
		if !msg.ok {
			m.closed = true
			m.appendLine(m.render.RenderEvent(m.now(), "disconnected", m.addr, true))
			return m, nil
		}
		m.appendLine(m.renderEnvelope(msg.env))
		return m, m.waitEvent()

	case spinner.TickMsg:
		if m.pending == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.loading.Spinner, cmd = m.loading.Spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if line == "" {
		return m, nil
	}
	m.remember(line)

	switch line {
	case "help":
		for _, u := range Usage() {
			m.appendLine(m.render.RenderInfo(m.now(), u))
		}
		return m, nil
	case "quit":
		return m, tea.Quit
	}
	if m.closed {
		m.appendLine(m.render.RenderFailure(m.now(), line, remote.ErrClosed))
		return m, nil
	}

	m.pending++
	return m, tea.Batch(m.run(line), m.loading.Spinner.Tick)
}

func (m *Model) remember(line string) {
	if n := len(m.history); n == 0 || m.history[n-1] != line {
		m.history = append(m.history, line)
		if len(m.history) > maxInputHist {
			m.history = m.history[len(m.history)-maxInputHist:]
		}
	}
	m.histPos = len(m.history)
}

// recall moves through previously submitted lines.
func (m *Model) recall(delta int) {
	if len(m.history) == 0 {
		return
	}
	m.histPos = min(max(m.histPos+delta, 0), len(m.history))
	if m.histPos == len(m.history) {
		m.input.SetValue("")
		return
	}
	m.input.SetValue(m.history[m.histPos])
	m.input.CursorEnd()
}

func (m *Model) renderEnvelope(env remote.Envelope) string {
	switch env.Type {
	case remote.TypeIPCMessage:
		var p remote.IPCMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err == nil {
			return m.render.RenderMessage(m.now(), p.Label, p.Body)
		}
	case remote.TypeApplicationEvent:
		var p remote.ApplicationEventPayload
		if err := json.Unmarshal(env.Payload, &p); err == nil {
			detail := p.URL
			if p.Error != "" {
				detail = p.Error
			}
			return m.render.RenderEvent(m.now(), p.Event, detail, p.Error != "")
		}
	}
	return m.render.RenderInfo(m.now(), string(env.Type)+" "+string(env.Payload))
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// Lines returns the rendered output lines.
func (m Model) Lines() []string {
	return m.lines
}

func (m Model) View() string {
	status := m.theme.SuccessStyle.Render(styles.IconPlug + " connected")
	if m.closed {
		status = m.theme.ErrorStyle.Render(styles.IconX + " disconnected")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		m.theme.Title.Render("webloop console"), " ",
		m.theme.Subtle.Render(m.addr), " ",
		status,
	)

	footer := m.input.View()
	if m.pending > 0 {
		footer += "  " + m.loading.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		m.viewport.View(),
		m.theme.InputFocused.Render(footer),
		m.help.View(m.keys),
	)
}
