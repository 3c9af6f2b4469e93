package tui

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"aster-cli/internal/api"
	"aster-cli/internal/config"
	"aster-cli/internal/controller"
	"aster-cli/internal/render"
	"aster-cli/internal/transcript"
)

// mockAPI implements api.ChatAPI for testing.
type mockAPI struct {
	chats  []api.ChatSummary
	detail *api.ChatDetail
	groups []api.ModelGroup

	// streamBody feeds SendMessage; when nil the stream ends immediately.
	streamBody io.ReadCloser

	err error // if set, all methods return this error
}

func (m *mockAPI) SendMessage(ctx context.Context, chatID int64, opts api.SendOptions) (*api.SendResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	body := m.streamBody
	if body == nil {
		body = io.NopCloser(strings.NewReader(`{"type":"content","text":"ok"}` + "\n"))
	}
	return &api.SendResult{Stream: body}, nil
}

func (m *mockAPI) ListChats(ctx context.Context) ([]api.ChatSummary, error) {
	return m.chats, m.err
}

func (m *mockAPI) GetChat(ctx context.Context, chatID int64) (*api.ChatDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.detail, nil
}

func (m *mockAPI) DeleteChat(ctx context.Context, chatID int64) error { return m.err }

func (m *mockAPI) RenameChat(ctx context.Context, chatID int64, title string) error { return m.err }

func (m *mockAPI) ClearHistory(ctx context.Context, rng string) error { return m.err }

func (m *mockAPI) ListModels(ctx context.Context) ([]api.ModelGroup, error) {
	return m.groups, m.err
}

func (m *mockAPI) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "https://cdn/" + filename, nil
}

func (m *mockAPI) RequestEmailCode(ctx context.Context, email string) error { return m.err }

func (m *mockAPI) VerifyEmailCode(ctx context.Context, email, code string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "sess-test", nil
}

func (m *mockAPI) CreatePayment(ctx context.Context, amount float64) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "ct-test", nil
}

func newTestModel() model {
	ti := textinput.New()
	sp := spinner.New()
	tr := transcript.New()
	notes := make(chan controller.Note, 64)
	mock := &mockAPI{}

	m := model{
		input:      ti,
		spinner:    sp,
		cfg:        &config.Config{Server: "http://localhost:8000", SessionID: "sess"},
		client:     mock,
		tr:         tr,
		renderer:   render.NewPlain(),
		notes:      notes,
		historyIdx: -1,
		ready:      true,
		width:      80,
		height:     24,
	}
	m.ctrl = controller.New(mock, tr, func(n controller.Note) { notes <- n })
	return m
}

// blockingBody never returns until closed, keeping a session in flight.
type blockingBody struct {
	done chan struct{}
}

func newBlockingBody() *blockingBody { return &blockingBody{done: make(chan struct{})} }

func (b *blockingBody) Read(p []byte) (int, error) {
	<-b.done
	return 0, io.EOF
}

func (b *blockingBody) Close() error {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
	return nil
}

func TestMatchCommands(t *testing.T) {
	if got := matchCommands("/"); len(got) != len(slashCommands) {
		t.Errorf("matchCommands(/) = %d commands, want all %d", len(got), len(slashCommands))
	}

	got := matchCommands("/chat")
	if len(got) != 2 {
		t.Fatalf("matchCommands(/chat) = %v, want /chat and /chats", got)
	}
	for _, c := range got {
		if c.name != "/chat" && c.name != "/chats" {
			t.Errorf("unexpected match %q", c.name)
		}
	}

	if got := matchCommands("/zzz"); len(got) != 0 {
		t.Errorf("matchCommands(/zzz) = %v, want none", got)
	}
}

func TestDispatchCommand(t *testing.T) {
	tests := []string{"/help", "/config", "/clear", "/unknown", "/balance", "/model"}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			m := newTestModel()
			result, cmd := m.dispatchCommand(input)
			rm := result.(model)
			if rm.mode != modeIdle {
				t.Errorf("mode = %d, want modeIdle", rm.mode)
			}
			if cmd == nil {
				t.Error("expected output cmd, got nil")
			}
		})
	}
}

func TestDispatchInput(t *testing.T) {
	t.Run("question mark shows help", func(t *testing.T) {
		m := newTestModel()
		result, _ := m.dispatchInput("?")
		if rm := result.(model); rm.mode != modeIdle {
			t.Errorf("mode = %d, want modeIdle", rm.mode)
		}
	})

	t.Run("plain text starts a send", func(t *testing.T) {
		m := newTestModel()
		body := newBlockingBody()
		defer body.Close()
		m.client.(*mockAPI).streamBody = body
		result, _ := m.dispatchInput("hello there")
		rm := result.(model)
		if rm.mode != modeStreaming {
			t.Errorf("mode = %d, want modeStreaming", rm.mode)
		}
		if rm.streamMsgID == 0 {
			t.Error("streamMsgID not set")
		}
		msgs := rm.tr.Messages()
		if len(msgs) != 2 || msgs[0].Content != "hello there" {
			t.Errorf("transcript = %+v", msgs)
		}
		rm.ctrl.Stop()
	})

	t.Run("attachment-only send with empty input", func(t *testing.T) {
		m := newTestModel()
		body := newBlockingBody()
		defer body.Close()
		m.client.(*mockAPI).streamBody = body
		m.pendingAttachment = "https://files.example/report.pdf"
		m.pendingAttachName = "report.pdf"

		result, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		rm := result.(model)
		if rm.mode != modeStreaming {
			t.Errorf("mode = %d, want modeStreaming", rm.mode)
		}
		msgs := rm.tr.Messages()
		if len(msgs) != 2 {
			t.Fatalf("transcript has %d messages, want 2", len(msgs))
		}
		if msgs[0].Content != "" || msgs[0].AttachmentURL != "https://files.example/report.pdf" {
			t.Errorf("user message = %+v", msgs[0])
		}
		if rm.pendingAttachment != "" {
			t.Error("pendingAttachment not consumed")
		}
		rm.ctrl.Stop()
	})

	t.Run("empty input without attachment does nothing", func(t *testing.T) {
		m := newTestModel()
		result, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		rm := result.(model)
		if rm.mode != modeIdle || cmd != nil {
			t.Errorf("mode = %d, cmd = %v, want idle no-op", rm.mode, cmd)
		}
		if len(rm.tr.Messages()) != 0 {
			t.Errorf("transcript = %+v, want empty", rm.tr.Messages())
		}
	})

	t.Run("send without client shows error", func(t *testing.T) {
		m := newTestModel()
		m.client = nil
		result, cmd := m.dispatchInput("test")
		if rm := result.(model); rm.mode != modeIdle {
			t.Errorf("mode = %d, want modeIdle", rm.mode)
		}
		if cmd == nil {
			t.Error("expected error cmd, got nil")
		}
	})
}

func TestSendGuardWhileBusy(t *testing.T) {
	m := newTestModel()
	body := newBlockingBody()
	m.client.(*mockAPI).streamBody = body
	defer body.Close()

	result, _ := m.dispatchInput("first")
	rm := result.(model)
	if rm.mode != modeStreaming {
		t.Fatalf("mode = %d, want modeStreaming", rm.mode)
	}

	result2, cmd := rm.dispatchInput("second")
	rm2 := result2.(model)
	if cmd == nil {
		t.Error("expected busy warning cmd")
	}
	if got := len(rm2.tr.Messages()); got != 2 {
		t.Errorf("transcript length = %d, want 2 (second send rejected)", got)
	}
	rm2.ctrl.Stop()
}

func TestLoginFlow(t *testing.T) {
	t.Run("login without args enters email mode", func(t *testing.T) {
		m := newTestModel()
		result, _ := m.cmdLogin(nil)
		if rm := result.(model); rm.mode != modeLoginEmail {
			t.Errorf("mode = %d, want modeLoginEmail", rm.mode)
		}
	})

	t.Run("bad email rejected", func(t *testing.T) {
		m := newTestModel()
		result, cmd := m.handleLoginEmailSubmit("notanemail")
		rm := result.(model)
		if rm.mode != modeLoginEmail {
			t.Errorf("mode = %d, want modeLoginEmail", rm.mode)
		}
		if cmd == nil {
			t.Error("expected warning cmd")
		}
	})

	t.Run("valid email enters code mode", func(t *testing.T) {
		m := newTestModel()
		result, cmd := m.handleLoginEmailSubmit("a@b.c")
		rm := result.(model)
		if rm.mode != modeLoginCode {
			t.Errorf("mode = %d, want modeLoginCode", rm.mode)
		}
		if rm.loginEmail != "a@b.c" {
			t.Errorf("loginEmail = %q", rm.loginEmail)
		}
		if cmd == nil {
			t.Error("expected request-code cmd")
		}
	})

	t.Run("login result success rebuilds client", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		m := newTestModel()
		m.mode = modeLoginCode
		m.loginEmail = "a@b.c"
		m.cfg.SessionID = ""
		m.client = nil
		m.ctrl = nil

		result, _ := m.handleLoginResult(loginResultMsg{sessionID: "fresh-sess"})
		rm := result.(model)
		if rm.mode != modeIdle {
			t.Errorf("mode = %d, want modeIdle", rm.mode)
		}
		if rm.cfg.SessionID != "fresh-sess" || rm.cfg.Email != "a@b.c" {
			t.Errorf("cfg = %+v", rm.cfg)
		}
		if rm.client == nil || rm.ctrl == nil {
			t.Error("client/controller not rebuilt after login")
		}
	})

	t.Run("login result error returns to idle", func(t *testing.T) {
		m := newTestModel()
		m.mode = modeLoginCode
		result, _ := m.handleLoginResult(loginResultMsg{err: io.ErrUnexpectedEOF})
		if rm := result.(model); rm.mode != modeIdle {
			t.Errorf("mode = %d, want modeIdle", rm.mode)
		}
	})
}

func TestCommandRequiresAuth(t *testing.T) {
	commands := []struct {
		name string
		fn   func(m model) bool
	}{
		{"send", func(m model) bool { _, c := m.cmdSend("hi"); return c != nil }},
		{"chats", func(m model) bool { _, c := m.cmdChats(""); return c != nil }},
		{"chat", func(m model) bool { _, c := m.cmdChat([]string{"1"}); return c != nil }},
		{"models", func(m model) bool { _, c := m.cmdModels(); return c != nil }},
		{"attach", func(m model) bool { _, c := m.cmdAttach([]string{"x"}); return c != nil }},
		{"topup", func(m model) bool { _, c := m.cmdTopup([]string{"5"}); return c != nil }},
		{"delete", func(m model) bool { _, c := m.cmdDelete(nil); return c != nil }},
		{"rename", func(m model) bool { _, c := m.cmdRename(nil, "/rename x"); return c != nil }},
	}

	for _, tc := range commands {
		t.Run(tc.name+" without auth", func(t *testing.T) {
			m := newTestModel()
			m.client = nil
			if !tc.fn(m) {
				t.Error("expected error cmd when not logged in")
			}
		})
	}
}

func TestSettingsCommands(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	t.Run("model set", func(t *testing.T) {
		m := newTestModel()
		result, _ := m.cmdModel([]string{"gpt-test"})
		if rm := result.(model); rm.cfg.Model != "gpt-test" {
			t.Errorf("Model = %q", rm.cfg.Model)
		}
	})

	t.Run("theme toggles", func(t *testing.T) {
		m := newTestModel()
		result, _ := m.cmdTheme()
		rm := result.(model)
		if rm.cfg.Theme != "light" {
			t.Errorf("Theme = %q, want light", rm.cfg.Theme)
		}
		result, _ = rm.cmdTheme()
		if rm := result.(model); rm.cfg.Theme != "dark" {
			t.Errorf("Theme = %q, want dark", rm.cfg.Theme)
		}
	})

	t.Run("web toggles", func(t *testing.T) {
		m := newTestModel()
		result, _ := m.cmdWeb()
		rm := result.(model)
		if !rm.cfg.WebSearch {
			t.Error("WebSearch = false after toggle")
		}
	})

	t.Run("tempchat toggles", func(t *testing.T) {
		m := newTestModel()
		result, _ := m.cmdTempChat()
		rm := result.(model)
		if !rm.temporary {
			t.Error("temporary = false after toggle")
		}
	})

	t.Run("temperature bounds", func(t *testing.T) {
		m := newTestModel()
		result, _ := m.cmdTemp([]string{"3"})
		if rm := result.(model); rm.cfg.Temperature != nil {
			t.Error("out-of-range temperature accepted")
		}
		result, _ = m.cmdTemp([]string{"0.7"})
		rm := result.(model)
		if rm.cfg.Temperature == nil || *rm.cfg.Temperature != 0.7 {
			t.Errorf("Temperature = %v", rm.cfg.Temperature)
		}
		result, _ = rm.cmdTemp([]string{"off"})
		if rm := result.(model); rm.cfg.Temperature != nil {
			t.Error("Temperature not reset by off")
		}
	})
}

func TestCmdCopy(t *testing.T) {
	t.Run("no reply yet", func(t *testing.T) {
		m := newTestModel()
		_, cmd := m.cmdCopy(nil)
		if cmd == nil {
			t.Error("expected warning cmd")
		}
	})

	t.Run("multiple blocks without index lists them", func(t *testing.T) {
		m := newTestModel()
		id := m.tr.AppendPlaceholder()
		m.tr.SetContent(id, "```go\na\n```\ntext\n```py\nb\n```")
		m.tr.Finalize(id)
		_, cmd := m.cmdCopy(nil)
		if cmd == nil {
			t.Error("expected listing cmd")
		}
	})

	t.Run("bad index", func(t *testing.T) {
		m := newTestModel()
		id := m.tr.AppendPlaceholder()
		m.tr.SetContent(id, "```go\na\n```")
		m.tr.Finalize(id)
		_, cmd := m.cmdCopy([]string{"7"})
		if cmd == nil {
			t.Error("expected range warning cmd")
		}
	})
}

func TestCmdQuote(t *testing.T) {
	t.Run("no reply yet", func(t *testing.T) {
		m := newTestModel()
		result, cmd := m.cmdQuote()
		if cmd == nil {
			t.Error("expected warning cmd")
		}
		if result.(model).pendingQuote != "" {
			t.Error("pendingQuote should stay empty without a reply")
		}
	})

	t.Run("quotes the last finalized reply", func(t *testing.T) {
		m := newTestModel()
		id := m.tr.AppendPlaceholder()
		m.tr.SetContent(id, "first line\nsecond line")
		m.tr.Finalize(id)

		result, _ := m.cmdQuote()
		m = result.(model)
		if m.pendingQuote != "first line\nsecond line" {
			t.Errorf("pendingQuote = %q", m.pendingQuote)
		}

		body := newBlockingBody()
		defer body.Close()
		m.client.(*mockAPI).streamBody = body

		result, _ = m.cmdSend("what about that?")
		m = result.(model)

		got, ok := m.tr.LastUserContent()
		if !ok {
			t.Fatal("no user message appended")
		}
		want := "> first line\n> second line\n\nwhat about that?"
		if got != want {
			t.Errorf("sent message = %q, want %q", got, want)
		}
		if m.pendingQuote != "" {
			t.Error("pendingQuote should be consumed by send")
		}
	})
}

func TestQuoteLines(t *testing.T) {
	if got := quoteLines("a\n\nb"); got != "> a\n> \n> b" {
		t.Errorf("quoteLines = %q", got)
	}
}

func TestHandleChatLoaded(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	m := newTestModel()

	detail := &api.ChatDetail{
		ID:    9,
		Title: "Notes",
		Messages: []api.ChatMessage{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	}
	result, cmd := m.handleChatLoaded(chatLoadedMsg{detail: detail})
	rm := result.(model)
	if cmd == nil {
		t.Error("expected print cmd")
	}
	if rm.tr.ChatID() != 9 {
		t.Errorf("transcript chat = %d, want 9", rm.tr.ChatID())
	}
	if got := len(rm.tr.Messages()); got != 2 {
		t.Errorf("transcript length = %d, want 2", got)
	}
	if rm.cfg.LastChat != 9 {
		t.Errorf("LastChat = %d, want 9", rm.cfg.LastChat)
	}
}

func TestHandleNotes(t *testing.T) {
	t.Run("content updates stream tail", func(t *testing.T) {
		m := newTestModel()
		id := m.tr.AppendPlaceholder()
		m.tr.SetContent(id, "partial answer")
		m.mode = modeStreaming
		m.streamMsgID = id

		result, _ := m.handleNote(controller.Note{Kind: controller.NoteContent, MessageID: id})
		rm := result.(model)
		if !strings.Contains(rm.streamTail, "partial answer") {
			t.Errorf("streamTail = %q", rm.streamTail)
		}
	})

	t.Run("balance stored", func(t *testing.T) {
		m := newTestModel()
		result, _ := m.handleNote(controller.Note{Kind: controller.NoteBalance, Balance: 7.5})
		rm := result.(model)
		if rm.balance == nil || *rm.balance != 7.5 {
			t.Errorf("balance = %v", rm.balance)
		}
	})

	t.Run("done returns to idle", func(t *testing.T) {
		m := newTestModel()
		id := m.tr.AppendPlaceholder()
		m.tr.SetContent(id, "final")
		m.tr.Finalize(id)
		m.mode = modeStreaming
		m.streamMsgID = id
		m.streamTail = "final"

		result, cmd := m.handleNote(controller.Note{Kind: controller.NoteDone, MessageID: id})
		rm := result.(model)
		if rm.mode != modeIdle {
			t.Errorf("mode = %d, want modeIdle", rm.mode)
		}
		if rm.streamTail != "" || rm.streamMsgID != 0 {
			t.Error("stream state not reset")
		}
		if cmd == nil {
			t.Error("expected print cmd")
		}
	})

	t.Run("chat bound saves last chat", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		m := newTestModel()
		result, _ := m.handleNote(controller.Note{Kind: controller.NoteChat, ChatID: 33})
		if rm := result.(model); rm.cfg.LastChat != 33 {
			t.Errorf("LastChat = %d, want 33", rm.cfg.LastChat)
		}
	})
}

func TestTranscriptMarkdown(t *testing.T) {
	msgs := []transcript.Message{
		{Role: transcript.RoleUser, Content: "draw a cat"},
		{Role: transcript.RoleAssistant, Content: "Here", ImageURL: "https://cdn/cat.png"},
	}
	doc := transcriptMarkdown("Cats", msgs)

	for _, want := range []string{"# Cats", "### You", "### Aster", "draw a cat", "![image](https://cdn/cat.png)"} {
		if !strings.Contains(doc, want) {
			t.Errorf("markdown missing %q:\n%s", want, doc)
		}
	}
}
