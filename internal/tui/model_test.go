package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/chriscow/voicechat/internal/chat"
	"github.com/chriscow/voicechat/internal/session"
	"github.com/chriscow/voicechat/pkg/realtime"
	"github.com/matryer/is"
)

type fakeController struct {
	mu          sync.Mutex
	connects    int
	disconnects int
	mutes       int
	modes       []session.Mode
	err         error
}

func (f *fakeController) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.err
}

func (f *fakeController) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return f.err
}

func (f *fakeController) SwitchMode(_ context.Context, mode session.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, mode)
	return f.err
}

func (f *fakeController) ToggleMute() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutes++
	return f.err
}

type fakeChat struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeChat) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingSender) snapshot() []tea.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tea.Msg(nil), r.msgs...)
}

func newModel() (Model, *fakeController, *fakeChat) {
	ctrl := &fakeController{}
	sender := &fakeChat{}
	m := New(context.Background(), ctrl, sender)
	return update(m, tea.WindowSizeMsg{Width: 100, Height: 40}), ctrl, sender
}

func update(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func press(m Model, key tea.KeyMsg) (Model, tea.Cmd) {
	next, cmd := m.Update(key)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_Loading(t *testing.T) {
	is := is.New(t)
	m := New(context.Background(), &fakeController{}, &fakeChat{})
	is.Equal(m.View(), "Loading...")
}

func TestModel_VoicePane(t *testing.T) {
	is := is.New(t)
	m, _, _ := newModel()

	m = update(m, modeMsg{Mode: session.ModeVoice}, clearTranscriptMsg{})
	view := m.View()
	is.True(strings.Contains(view, session.TranscriptPlaceholder))
	is.True(strings.Contains(view, "Status: Disconnected"))
	is.True(strings.Contains(view, session.InteractionHint))
	is.True(strings.Contains(view, "[c] Connect"))

	m = update(m,
		statusMsg{Text: session.StatusConnected},
		transcriptMsg{Transcript: session.Transcript{Sender: realtime.SenderUser, Text: "namaste"}},
		transcriptMsg{Transcript: session.Transcript{Sender: realtime.SenderBot, Text: "kaise ho"}},
		speakingMsg{Speaking: true},
	)
	view = m.View()
	is.True(strings.Contains(view, "Status: Connected"))
	is.True(strings.Contains(view, "namaste"))
	is.True(strings.Contains(view, "kaise ho"))
	is.True(!strings.Contains(view, session.TranscriptPlaceholder))
	is.True(strings.Contains(view, "Bot is speaking"))

	m = update(m, speakingMsg{Speaking: false}, clearTranscriptMsg{})
	view = m.View()
	is.True(strings.Contains(view, session.TranscriptPlaceholder))
	is.True(!strings.Contains(view, "Bot is speaking"))
}

func TestModel_ChatMessages(t *testing.T) {
	is := is.New(t)
	m, _, _ := newModel()

	now := time.Now()
	m = update(m,
		chatAppendMsg{Message: chat.Message{ID: "u1", Sender: chat.SenderUser, Text: "hello", Time: now}},
		chatAppendMsg{Message: chat.Message{ID: "p1", Sender: chat.SenderBot, Typing: true, Time: now}},
	)
	is.Equal(len(m.messages), 2)
	is.True(m.typing())
	is.True(strings.Contains(m.View(), "typing"))

	m = update(m,
		chatRemoveMsg{ID: "p1"},
		chatAppendMsg{Message: chat.Message{ID: "b1", Sender: chat.SenderBot, Text: "hi there", Time: now}},
	)
	is.Equal(len(m.messages), 2)
	is.Equal(m.messages[0].ID, "u1")
	is.Equal(m.messages[1].ID, "b1")
	is.True(!m.typing())
	is.True(strings.Contains(m.View(), "hi there"))

	m = update(m, chatRemoveMsg{ID: "missing"})
	is.Equal(len(m.messages), 2)
}

func TestModel_SendEnabled(t *testing.T) {
	is := is.New(t)
	m, _, _ := newModel()

	m = update(m, sendEnabledMsg{Enabled: false})
	is.True(strings.Contains(m.View(), "waiting for reply"))

	m.input.SetValue("draft")
	m = update(m, sendEnabledMsg{Enabled: true}, clearInputMsg{})
	is.Equal(m.input.Value(), "")
}

func TestModel_EnterSends(t *testing.T) {
	is := is.New(t)
	m, _, sender := newModel()

	m.input.SetValue("   ")
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	is.True(cmd == nil) // blank input is ignored

	m.input.SetValue("kya haal hai")
	m, cmd = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	is.True(cmd != nil)
	is.True(!m.sendEnabled)
	is.Equal(cmd(), nil)
	is.Equal(sender.sent, []string{"kya haal hai"})

	_, cmd = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	is.True(cmd == nil) // disabled until the reply lands
	is.Equal(len(sender.sent), 1)
}

func TestModel_TabSwitchesMode(t *testing.T) {
	is := is.New(t)
	m, ctrl, _ := newModel()

	_, cmd := press(m, tea.KeyMsg{Type: tea.KeyTab})
	is.True(cmd != nil)
	is.Equal(cmd(), nil)

	m = update(m, modeMsg{Mode: session.ModeVoice})
	_, cmd = press(m, tea.KeyMsg{Type: tea.KeyTab})
	is.Equal(cmd(), nil)

	is.Equal(ctrl.modes, []session.Mode{session.ModeVoice, session.ModeChat})
}

func TestModel_VoiceKeys(t *testing.T) {
	is := is.New(t)
	m, ctrl, _ := newModel()
	m = update(m, modeMsg{Mode: session.ModeVoice}, controlsMsg{Controls: session.Controls{
		ConnectEnabled: true,
		MuteLabel:      session.MuteLabel,
	}})

	// disabled controls do nothing
	m, _ = press(m, runes("d"))
	m, _ = press(m, runes("m"))
	is.Equal(ctrl.disconnects, 0)
	is.Equal(ctrl.mutes, 0)

	m, cmd := press(m, runes("c"))
	is.True(cmd != nil)
	is.True(!m.controls.ConnectEnabled) // disabled until the controller says otherwise
	is.Equal(cmd(), nil)
	is.Equal(ctrl.connects, 1)

	m, _ = press(m, runes("c"))
	is.Equal(ctrl.connects, 1)

	m = update(m, controlsMsg{Controls: session.Controls{
		DisconnectEnabled: true,
		MuteEnabled:       true,
		MuteLabel:         session.MuteLabel,
	}})
	is.True(strings.Contains(m.View(), "[m] Mute Mic"))

	m, cmd = press(m, runes("m"))
	is.Equal(cmd(), nil)
	is.Equal(ctrl.mutes, 1)

	_, cmd = press(m, runes("d"))
	is.Equal(cmd(), nil)
	is.Equal(ctrl.disconnects, 1)
}

func TestModel_ActionError(t *testing.T) {
	is := is.New(t)
	m, ctrl, _ := newModel()
	ctrl.err = errors.New("dial failed")
	m = update(m, modeMsg{Mode: session.ModeVoice}, controlsMsg{Controls: session.Controls{ConnectEnabled: true}})

	m, cmd := press(m, runes("c"))
	msg := cmd()
	is.Equal(msg, actionErrMsg{Err: ctrl.err})

	m = update(m, msg)
	is.Equal(m.logs.tail(1), []string{"error: dial failed"})

	// refused user actions are shown as notices
	m = update(m, actionErrMsg{Err: session.ErrSessionActive})
	is.Equal(m.logs.tail(1), []string{"notice: " + session.ErrSessionActive.Error()})
}

func TestModel_Quit(t *testing.T) {
	is := is.New(t)
	m, _, _ := newModel()

	_, cmd := press(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	_, ok := cmd().(tea.QuitMsg)
	is.True(ok)

	// q types into the input in chat mode
	typed, _ := press(m, runes("q"))
	is.Equal(typed.input.Value(), "q")

	m = update(m, modeMsg{Mode: session.ModeVoice})
	_, cmd = press(m, runes("q"))
	_, ok = cmd().(tea.QuitMsg)
	is.True(ok)
}

func TestModel_DebugPane(t *testing.T) {
	is := is.New(t)
	m, _, _ := newModel()

	m = update(m, logMsg{Text: "12:00:00 transcript sender=bot"})
	is.True(strings.Contains(m.View(), "transcript sender=bot"))

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyCtrlL})
	is.True(!m.showDebug)
	is.True(!strings.Contains(m.View(), "transcript sender=bot"))
}

func TestBridge(t *testing.T) {
	is := is.New(t)

	b := NewBridge()
	b.SetStatus("dropped") // not attached yet

	rec := &recordingSender{}
	b.Attach(rec)
	b.SetStatus(session.StatusConnected)
	b.ShowMode(session.ModeVoice)
	b.RemoveMessage("p1")
	b.SetSendEnabled(true)

	is.Equal(rec.snapshot(), []tea.Msg{
		statusMsg{Text: session.StatusConnected},
		modeMsg{Mode: session.ModeVoice},
		chatRemoveMsg{ID: "p1"},
		sendEnabledMsg{Enabled: true},
	})
}

func TestLogHandler(t *testing.T) {
	is := is.New(t)

	h := NewLogHandler(slog.LevelInfo)
	logger := slog.New(h).With(slog.String("room", "voicechat-1"))

	logger.Debug("hidden")
	logger.Info("transcript", slog.String("text", "hello"))

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recordingSender{}
	done := make(chan struct{})
	go func() {
		h.Forward(ctx, rec)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for len(rec.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	msgs := rec.snapshot()
	is.Equal(len(msgs), 1)
	line := msgs[0].(logMsg).Text
	is.True(strings.HasSuffix(line, " transcript room=voicechat-1 text=hello"))
}

func TestLogHandler_DropsWhenFull(t *testing.T) {
	is := is.New(t)

	h := NewLogHandler(slog.LevelDebug)
	logger := slog.New(h)
	for i := 0; i < cap(h.queue)+10; i++ {
		logger.Info(fmt.Sprintf("line %d", i))
	}
	is.Equal(len(h.queue), cap(h.queue))
}

func TestLogBuffer(t *testing.T) {
	is := is.New(t)

	b := newLogBuffer(3)
	is.Equal(len(b.tail(5)), 0)
	for i := 1; i <= 5; i++ {
		b.add(fmt.Sprintf("%d", i))
	}
	is.Equal(b.len(), 3)
	is.Equal(b.tail(5), []string{"3", "4", "5"})
	is.Equal(b.tail(2), []string{"4", "5"})
}
