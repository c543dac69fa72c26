package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	scripthost "github.com/wippyai/script-host"
	"github.com/wippyai/script-host/bridge"
	"github.com/wippyai/script-host/config"
	"github.com/wippyai/script-host/metrics"
	"github.com/wippyai/script-host/runtime"
	"github.com/wippyai/script-host/supervisor"
)

const maxLines = 200

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	stateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	inboundStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	outboundStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// postedMsg carries a Looper callback into the program's event loop.
type postedMsg func()

type tickMsg time.Time

type startedMsg struct {
	h   *supervisor.Handle
	err error
}

type consoleModel struct {
	ctx     context.Context
	rt      *runtime.Runtime
	opts    options
	input   textinput.Model
	spinner spinner.Model
	lines   []string
	state   supervisor.State
	handle  *supervisor.Handle
	exited  bool
	err     error
}

func newConsoleModel(ctx context.Context, opts options) *consoleModel {
	ti := textinput.New()
	ti.Placeholder = "tag message"
	ti.Prompt = "> "
	ti.Width = 60
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &consoleModel{ctx: ctx, opts: opts, input: ti, spinner: sp}
}

// attach subscribes to the bridge. Listeners run on the Looper, which is
// the program's event loop, so they may touch the model directly.
func (m *consoleModel) attach(rt *runtime.Runtime) {
	m.rt = rt
	rt.Bridge().OnBroadcast(func(env bridge.Envelope) {
		m.appendLine(inboundStyle.Render(fmt.Sprintf("<- [%s] %s %v", env.Channel, env.Tag, env.Message)))
	})
	rt.Bridge().OnError(func(err error) {
		m.appendLine(errorStyle.Render("error: " + err.Error()))
	})
}

func (m *consoleModel) appendLine(s string) {
	m.lines = append(m.lines, s)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
}

func (m *consoleModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, tick(), m.start)
}

func (m *consoleModel) start() tea.Msg {
	h, err := start(m.ctx, m.rt, m.opts, supervisor.Options{
		OnExit: func(code int, err error) {
			m.exited = true
			m.err = err
			m.appendLine(stateStyle.Render(fmt.Sprintf("runtime exited with code %d", code)))
		},
	})
	return startedMsg{h: h, err: err}
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case postedMsg:
		msg()
		return m, nil

	case startedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.exited = true
			m.appendLine(errorStyle.Render("start failed: " + msg.err.Error()))
			return m, nil
		}
		m.handle = msg.h
		m.appendLine(stateStyle.Render("runtime " + msg.h.ID().String() + " accepted"))

	case tickMsg:
		m.state = m.rt.State()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.FocusMsg:
		if m.rt.Resume() {
			m.appendLine(stateStyle.Render("resume sent"))
		}

	case tea.BlurMsg:
		if m.rt.Pause() {
			m.appendLine(stateStyle.Render("pause sent"))
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.exited {
				return m, tea.Quit
			}
		case "enter":
			m.send(m.input.Value())
			m.input.Reset()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send writes "tag message" as an envelope on the broadcast channel.
func (m *consoleModel) send(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	tag, message, _ := strings.Cut(line, " ")
	err := m.rt.SendMessage(bridge.BroadcastChannel, map[string]any{"tag": tag, "message": message})
	if err != nil {
		m.appendLine(errorStyle.Render("send failed: " + err.Error()))
		return
	}
	m.appendLine(outboundStyle.Render(fmt.Sprintf("-> [%s] %s %s", bridge.BroadcastChannel, tag, message)))
}

func (m *consoleModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Script host"))
	b.WriteString(" ")
	if m.state == supervisor.Deploying {
		b.WriteString(m.spinner.View())
	}
	b.WriteString(stateStyle.Render(m.state.String()))
	if m.rt != nil {
		b.WriteString(helpStyle.Render("  " + m.rt.ArchitectureTag() + "  " + m.rt.WorkspacePath()))
	}
	b.WriteString("\n\n")

	for _, l := range m.lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	help := "enter send • focus change sends pause/resume • ctrl+c quit"
	if m.exited {
		help = "esc quit"
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func runInteractive(ctx context.Context, cfg config.Config, opts options, log *zap.Logger, collector metrics.Collector) (int, error) {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	m := newConsoleModel(runCtx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))

	looper := scripthost.LooperFunc(func(fn func()) {
		p.Send(postedMsg(fn))
	})
	rt, err := runtime.New(ctx, runtime.Config{
		Settings: cfg,
		Looper:   looper,
		Logger:   log,
		Metrics:  collector,
	})
	if err != nil {
		return 1, err
	}
	defer rt.Close(context.Background())
	m.attach(rt)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return 1, err
	}

	stop()
	rt.StopService()
	if m.handle == nil {
		return 0, m.err
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return exitStatus(m.handle.Wait(waitCtx))
}
