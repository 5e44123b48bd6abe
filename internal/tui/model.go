// Package tui is the terminal front end: a chat pane, a voice pane with the
// live transcript and session controls, a status line and a debug log.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/chriscow/voicechat/internal/chat"
	"github.com/chriscow/voicechat/internal/session"
	"github.com/chriscow/voicechat/pkg/realtime"
)

// Controller is the part of the session controller the UI drives.
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	SwitchMode(ctx context.Context, mode session.Mode) error
	ToggleMute() error
}

// ChatSender runs one chat exchange.
type ChatSender interface {
	Send(ctx context.Context, text string) error
}

const debugLines = 6

// Model is the bubbletea model. Controller and chat calls run as commands
// so the update loop never waits on the network.
type Model struct {
	ctx  context.Context
	ctrl Controller
	chat ChatSender

	width, height int
	mode          session.Mode

	// chat pane
	messages    []chat.Message
	chatView    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	sendEnabled bool

	// voice pane
	transcripts []session.Transcript
	voiceView   viewport.Model
	status      string
	controls    session.Controls
	speaking    bool
	hint        string

	logs      *logBuffer
	showDebug bool
}

// New creates the model. ctx bounds every controller and chat call.
func New(ctx context.Context, ctrl Controller, sender ChatSender) Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 2000
	input.Prompt = "> "
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = typingStyle

	return Model{
		ctx:         ctx,
		ctrl:        ctrl,
		chat:        sender,
		chatView:    viewport.New(80, 10),
		voiceView:   viewport.New(80, 10),
		input:       input,
		spinner:     sp,
		sendEnabled: true,
		status:      session.StatusDisconnected,
		controls:    session.Controls{ConnectEnabled: true, MuteLabel: session.MuteLabel},
		hint:        session.InteractionHint,
		logs:        newLogBuffer(500),
		showDebug:   true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()

	case tea.KeyMsg:
		cmd, handled := m.handleKey(msg)
		if handled {
			return m, cmd
		}

	case statusMsg:
		m.status = msg.Text
	case controlsMsg:
		m.controls = msg.Controls
	case modeMsg:
		m.mode = msg.Mode
		if m.mode == session.ModeChat {
			cmds = append(cmds, m.input.Focus())
		} else {
			m.input.Blur()
		}
		m.layout()
	case transcriptMsg:
		m.transcripts = append(m.transcripts, msg.Transcript)
		m.refreshVoice()
	case clearTranscriptMsg:
		m.transcripts = nil
		m.refreshVoice()
	case speakingMsg:
		m.speaking = msg.Speaking
	case hintMsg:
		m.hint = session.InteractionHint

	case chatAppendMsg:
		m.messages = append(m.messages, msg.Message)
		m.refreshChat()
	case chatRemoveMsg:
		for i, cm := range m.messages {
			if cm.ID == msg.ID {
				m.messages = append(m.messages[:i:i], m.messages[i+1:]...)
				break
			}
		}
		m.refreshChat()
	case sendEnabledMsg:
		m.sendEnabled = msg.Enabled
	case clearInputMsg:
		m.input.SetValue("")

	case logMsg:
		m.logs.add(msg.Text)
	case actionErrMsg:
		if session.IsUserError(msg.Err) {
			m.logs.add("notice: " + msg.Err.Error())
		} else {
			m.logs.add("error: " + msg.Err.Error())
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.typing() {
			m.refreshChat()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	if m.mode == session.ModeChat {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		m.chatView, cmd = m.chatView.Update(msg)
	} else {
		m.voiceView, cmd = m.voiceView.Update(msg)
	}
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKey runs the global key bindings. Unhandled keys fall through to the
// focused component.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit, true
	case "tab":
		ctrl := m.ctrl
		next := session.ModeVoice
		if m.mode == session.ModeVoice {
			next = session.ModeChat
		}
		return m.run(func(ctx context.Context) error { return ctrl.SwitchMode(ctx, next) }), true
	case "ctrl+l":
		m.showDebug = !m.showDebug
		m.layout()
		return nil, true
	}

	if m.mode == session.ModeChat {
		if msg.String() != "enter" {
			return nil, false
		}
		text := m.input.Value()
		if !m.sendEnabled || strings.TrimSpace(text) == "" {
			return nil, true
		}
		m.sendEnabled = false
		sender := m.chat
		return m.run(func(ctx context.Context) error { return sender.Send(ctx, text) }), true
	}

	switch msg.String() {
	case "q", "esc":
		return tea.Quit, true
	case "c":
		if m.controls.ConnectEnabled {
			m.controls.ConnectEnabled = false
			return m.run(m.ctrl.Connect), true
		}
	case "d":
		if m.controls.DisconnectEnabled {
			m.controls.DisconnectEnabled = false
			return m.run(m.ctrl.Disconnect), true
		}
	case "m":
		if m.controls.MuteEnabled {
			ctrl := m.ctrl
			return m.run(func(context.Context) error { return ctrl.ToggleMute() }), true
		}
	}
	return nil, false
}

// run wraps a blocking call in a command.
func (m *Model) run(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return actionErrMsg{Err: err}
		}
		return nil
	}
}

func (m Model) typing() bool {
	for _, cm := range m.messages {
		if cm.Typing {
			return true
		}
	}
	return false
}

func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	reserved := 6 // header, controls, status and borders
	if m.showDebug {
		reserved += debugLines + 1
	}
	h := m.height - reserved
	if h < 3 {
		h = 3
	}
	w := m.width - 2

	// one line below each viewport for the input or the hint
	m.chatView.Width, m.chatView.Height = w, h-1
	m.voiceView.Width, m.voiceView.Height = w, h-1
	m.input.Width = w - 4
	m.refreshChat()
	m.refreshVoice()
}

func (m *Model) refreshChat() {
	var b strings.Builder
	for i, cm := range m.messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.renderMessage(cm))
	}
	m.chatView.SetContent(b.String())
	m.chatView.GotoBottom()
}

func (m Model) renderMessage(cm chat.Message) string {
	stamp := timeStyle.Render(cm.Time.Format("15:04"))
	switch {
	case cm.Typing:
		return fmt.Sprintf("%s %s %s", stamp, botStyle.Render("Bot:"), m.spinner.View()+typingStyle.Render(" typing"))
	case cm.Sender == chat.SenderUser:
		return fmt.Sprintf("%s %s %s", stamp, userStyle.Render("You:"), cm.Text)
	default:
		return fmt.Sprintf("%s %s %s", stamp, botStyle.Render("Bot:"), cm.Text)
	}
}

func (m *Model) refreshVoice() {
	if len(m.transcripts) == 0 {
		m.voiceView.SetContent(placeholderStyle.Render(session.TranscriptPlaceholder))
		return
	}
	lines := make([]string, len(m.transcripts))
	for i, t := range m.transcripts {
		if t.Sender == realtime.SenderUser {
			lines[i] = userStyle.Render("User:") + " " + t.Text
		} else {
			lines[i] = botStyle.Render("Bot:") + " " + t.Text
		}
	}
	m.voiceView.SetContent(strings.Join(lines, "\n"))
	m.voiceView.GotoBottom()
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sections := []string{m.renderHeader()}
	if m.mode == session.ModeChat {
		sections = append(sections, paneStyle.Width(m.width-2).Render(
			lipgloss.JoinVertical(lipgloss.Left, m.chatView.View(), m.renderInput())))
	} else {
		sections = append(sections, paneStyle.Width(m.width-2).Render(
			lipgloss.JoinVertical(lipgloss.Left, m.voiceView.View(), m.renderHint())),
			m.renderControls())
	}
	sections = append(sections, m.renderStatus())
	if m.showDebug {
		sections = append(sections, m.renderDebug())
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	tab := func(label string, active bool) string {
		if active {
			return activeTabStyle.Render(label)
		}
		return tabStyle.Render(label)
	}
	return titleStyle.Render("voicechat") + " " +
		tab("Chat", m.mode == session.ModeChat) +
		tab("Voice", m.mode == session.ModeVoice) +
		helpStyle.Render("  tab: switch mode  ctrl+l: debug log  ctrl+c: quit")
}

func (m Model) renderInput() string {
	if !m.sendEnabled {
		return disabledStyle.Render("  waiting for reply...")
	}
	return m.input.View()
}

func (m Model) renderHint() string {
	if m.speaking {
		return speakingStyle.Render("● Bot is speaking")
	}
	return helpStyle.Render(m.hint)
}

func (m Model) renderControls() string {
	button := func(key, label string, enabled bool) string {
		text := fmt.Sprintf("[%s] %s", key, label)
		if enabled {
			return buttonStyle.Render(text)
		}
		return disabledStyle.Render(text)
	}
	return strings.Join([]string{
		button("c", "Connect", m.controls.ConnectEnabled),
		button("d", "Disconnect", m.controls.DisconnectEnabled),
		button("m", m.controls.MuteLabel, m.controls.MuteEnabled),
	}, "  ")
}

func (m Model) renderStatus() string {
	style := statusStyle
	switch {
	case m.status == session.StatusError:
		style = errorStatusStyle
	case m.status == session.StatusConnected:
		style = okStatusStyle
	}
	return style.Render("Status: " + m.status)
}

func (m Model) renderDebug() string {
	lines := m.logs.tail(debugLines)
	for i, l := range lines {
		switch {
		case strings.Contains(l, " User: "):
			lines[i] = userStyle.Render(l)
		case strings.Contains(l, " Bot: "):
			lines[i] = botStyle.Render(l)
		default:
			lines[i] = logStyle.Render(l)
		}
	}
	for len(lines) < debugLines {
		lines = append(lines, "")
	}
	return debugStyle.Width(m.width - 2).Render(strings.Join(lines, "\n"))
}
