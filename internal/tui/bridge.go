package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/chriscow/voicechat/internal/chat"
	"github.com/chriscow/voicechat/internal/session"
)

// TUI message types
type statusMsg struct{ Text string }
type controlsMsg struct{ Controls session.Controls }
type modeMsg struct{ Mode session.Mode }
type transcriptMsg struct{ Transcript session.Transcript }
type clearTranscriptMsg struct{}
type speakingMsg struct{ Speaking bool }
type hintMsg struct{}
type chatAppendMsg struct{ Message chat.Message }
type chatRemoveMsg struct{ ID string }
type sendEnabledMsg struct{ Enabled bool }
type clearInputMsg struct{}
type logMsg struct{ Text string }
type actionErrMsg struct{ Err error }

// sender is satisfied by *tea.Program.
type sender interface {
	Send(msg tea.Msg)
}

// Bridge implements session.View and chat.View by posting messages to the
// running program. It is safe to call from any goroutine other than the
// program's own update loop. Calls made before Attach are dropped.
type Bridge struct {
	mu sync.RWMutex
	p  sender
}

// NewBridge creates an unattached Bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach directs all further calls to p.
func (b *Bridge) Attach(p sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.p = p
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.RLock()
	p := b.p
	b.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

func (b *Bridge) SetStatus(status string)               { b.send(statusMsg{Text: status}) }
func (b *Bridge) SetControls(c session.Controls)        { b.send(controlsMsg{Controls: c}) }
func (b *Bridge) ShowMode(m session.Mode)               { b.send(modeMsg{Mode: m}) }
func (b *Bridge) AppendTranscript(t session.Transcript) { b.send(transcriptMsg{Transcript: t}) }
func (b *Bridge) ClearTranscript()                      { b.send(clearTranscriptMsg{}) }
func (b *Bridge) SetSpeaking(speaking bool)             { b.send(speakingMsg{Speaking: speaking}) }
func (b *Bridge) ResetHint()                            { b.send(hintMsg{}) }
func (b *Bridge) AppendMessage(m chat.Message)          { b.send(chatAppendMsg{Message: m}) }
func (b *Bridge) RemoveMessage(id string)               { b.send(chatRemoveMsg{ID: id}) }
func (b *Bridge) SetSendEnabled(enabled bool)           { b.send(sendEnabledMsg{Enabled: enabled}) }
func (b *Bridge) ClearInput()                           { b.send(clearInputMsg{}) }

var (
	_ session.View = (*Bridge)(nil)
	_ chat.View    = (*Bridge)(nil)
)
