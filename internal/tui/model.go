package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"aster-cli/internal/api"
	"aster-cli/internal/config"
	"aster-cli/internal/controller"
	"aster-cli/internal/render"
	"aster-cli/internal/transcript"
)

// ─── App mode ───────────────────────────────────────────────────────────────

type appMode int

const (
	modeIdle appMode = iota
	modeStreaming
	modeLoginEmail
	modeLoginCode
)

// ─── Slash command registry ─────────────────────────────────────────────────

type slashCmd struct {
	name string
	desc string
}

var slashCommands = []slashCmd{
	{"/attach", "Attach a file to the next message"},
	{"/balance", "Show account balance"},
	{"/chat", "Open a chat by id"},
	{"/chats", "List chat history"},
	{"/clear", "Clear the screen"},
	{"/config", "Show current configuration"},
	{"/copy", "Copy a code block from the last reply"},
	{"/delete", "Delete a chat"},
	{"/export", "Export the chat as markdown"},
	{"/help", "Show all commands"},
	{"/login", "Login with your email"},
	{"/model", "Show or set the model"},
	{"/models", "List available models"},
	{"/new", "Start a new chat"},
	{"/quit", "Exit Aster"},
	{"/quote", "Quote the last reply in your next message"},
	{"/regenerate", "Regenerate the last reply"},
	{"/rename", "Rename the current chat"},
	{"/search", "Search chats by title"},
	{"/stop", "Stop the current response"},
	{"/temp", "Set sampling temperature"},
	{"/tempchat", "Toggle temporary chat"},
	{"/theme", "Toggle dark/light rendering"},
	{"/topup", "Top up your balance"},
	{"/web", "Toggle web search"},
}

// ─── Model ──────────────────────────────────────────────────────────────────

type model struct {
	width  int
	height int

	// Bubble Tea components
	input   textinput.Model
	spinner spinner.Model

	// App state
	mode     appMode
	cfg      *config.Config
	client   api.ChatAPI
	tr       *transcript.Transcript
	ctrl     *controller.Controller
	renderer *render.Renderer
	notes    chan controller.Note
	version  string
	profile  string

	// Streaming state
	streamMsgID int64  // transcript id of the in-flight assistant message
	streamTail  string // rendered tail of the in-flight reply, shown in View

	// Per-send settings
	pendingAttachment string // uploaded file url, consumed by the next send
	pendingAttachName string
	pendingQuote      string // quoted reply text, prepended to the next send
	temporary         bool
	balance           *float64

	// Login flow state
	loginEmail string

	// UI state
	ready        bool
	cmdMenuIdx   int
	cmdMenuOpen  bool
	lastInputVal string

	// Command history
	history      []string
	historyIdx   int
	historySaved string
}

func initialModel(version, profile string) model {
	ti := textinput.New()
	ti.Placeholder = "Ask anything or type /help..."
	ti.Focus()
	ti.CharLimit = 8192
	ti.Prompt = "❯ "
	ti.PromptStyle = promptSymbol
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(colorViolet)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorViolet)

	cfg, _ := config.Load(profile)
	if cfg == nil {
		cfg = &config.Config{Server: config.DefaultServer, Profile: profile}
	}

	var client api.ChatAPI
	if cfg.SessionID != "" {
		client = api.NewClient(cfg)
	}

	tr := transcript.New()
	notes := make(chan controller.Note, 64)
	m := model{
		input:      ti,
		spinner:    sp,
		version:    version,
		profile:    profile,
		cfg:        cfg,
		client:     client,
		tr:         tr,
		renderer:   render.New(),
		notes:      notes,
		mode:       modeIdle,
		history:    make([]string, 0),
		historyIdx: -1,
	}
	if client != nil {
		m.ctrl = controller.New(client, tr, func(n controller.Note) { notes <- n })
	}
	return m
}

// ─── Init ───────────────────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForNote(m.notes),
	)
}

// ─── Update ─────────────────────────────────────────────────────────────────

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 6

		if !m.ready {
			m.ready = true
			welcome := renderWelcome(m.version, serverStr(m.cfg), modelStr(m.cfg), m.width)
			cmds = append(cmds, tea.Println(welcome))
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.mode == modeStreaming {
				m.ctrl.Stop()
				return m, nil
			}
			return m, tea.Quit

		case tea.KeyEsc:
			if m.mode == modeStreaming {
				m.ctrl.Stop()
				return m, nil
			}
			if m.mode == modeLoginEmail || m.mode == modeLoginCode {
				m.mode = modeIdle
				m.input.Placeholder = "Ask anything or type /help..."
				m.input.SetValue("")
				m.loginEmail = ""
				cmds = append(cmds, tea.Println(warnMsgStyle.Render("  ! Login cancelled.")))
				return m, tea.Batch(cmds...)
			}
			if m.cmdMenuOpen {
				m.cmdMenuOpen = false
				m.cmdMenuIdx = 0
				return m, nil
			}

		case tea.KeyUp:
			if m.mode == modeIdle {
				if m.cmdMenuOpen {
					matches := matchCommands(m.input.Value())
					if len(matches) > 0 {
						m.cmdMenuIdx--
						if m.cmdMenuIdx < 0 {
							m.cmdMenuIdx = len(matches) - 1
						}
						return m, nil
					}
				} else if len(m.history) > 0 {
					if m.historyIdx == -1 {
						m.historySaved = m.input.Value()
						m.historyIdx = len(m.history) - 1
					} else {
						m.historyIdx--
						if m.historyIdx < 0 {
							m.historyIdx = 0
						}
					}
					m.input.SetValue(m.history[m.historyIdx])
					m.input.CursorEnd()
					return m, nil
				}
			}

		case tea.KeyDown:
			if m.mode == modeIdle {
				if m.cmdMenuOpen {
					matches := matchCommands(m.input.Value())
					if len(matches) > 0 {
						m.cmdMenuIdx++
						if m.cmdMenuIdx >= len(matches) {
							m.cmdMenuIdx = 0
						}
						return m, nil
					}
				} else if m.historyIdx != -1 {
					m.historyIdx++
					if m.historyIdx >= len(m.history) {
						m.historyIdx = -1
						m.input.SetValue(m.historySaved)
						m.historySaved = ""
					} else {
						m.input.SetValue(m.history[m.historyIdx])
					}
					m.input.CursorEnd()
					return m, nil
				}
			}

		case tea.KeyTab:
			if m.mode == modeIdle && m.cmdMenuOpen {
				matches := matchCommands(m.input.Value())
				if len(matches) > 0 {
					idx := m.cmdMenuIdx
					if idx < 0 || idx >= len(matches) {
						idx = 0
					}
					m.input.SetValue(matches[idx].name + " ")
					m.input.CursorEnd()
					m.cmdMenuOpen = false
					m.cmdMenuIdx = 0
				}
				return m, nil
			}

		case tea.KeyEnter:
			if m.mode == modeIdle && m.cmdMenuOpen && m.cmdMenuIdx >= 0 {
				matches := matchCommands(m.input.Value())
				if m.cmdMenuIdx < len(matches) {
					m.input.SetValue(matches[m.cmdMenuIdx].name + " ")
					m.input.CursorEnd()
					m.cmdMenuOpen = false
					m.cmdMenuIdx = 0
					return m, nil
				}
			}

			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				// An attachment alone is a valid send.
				if m.mode == modeIdle && m.pendingAttachment != "" {
					m.input.SetValue("")
					return m.cmdSend("")
				}
				return m, nil
			}

			if len(m.history) == 0 || m.history[len(m.history)-1] != value {
				m.history = append(m.history, value)
				if len(m.history) > 1000 {
					m.history = m.history[len(m.history)-1000:]
				}
			}
			m.historyIdx = -1
			m.historySaved = ""

			m.input.SetValue("")
			m.cmdMenuOpen = false
			m.cmdMenuIdx = 0

			switch m.mode {
			case modeLoginEmail:
				return m.handleLoginEmailSubmit(value)
			case modeLoginCode:
				return m.handleLoginCodeSubmit(value)
			default:
				return m.dispatchInput(value)
			}
		}

	// ── Stream notes ──────────────────────────────────────────────────
	case noteMsg:
		return m.handleNote(msg.note)

	// ── Async results ─────────────────────────────────────────────────
	case chatsLoadedMsg:
		return m.handleChatsLoaded(msg)

	case chatLoadedMsg:
		return m.handleChatLoaded(msg)

	case chatDeletedMsg:
		return m.handleChatDeleted(msg)

	case chatRenamedMsg:
		return m.handleChatRenamed(msg)

	case historyClearedMsg:
		return m.handleHistoryCleared(msg)

	case modelsLoadedMsg:
		return m.handleModelsLoaded(msg)

	case uploadDoneMsg:
		return m.handleUploadDone(msg)

	case loginCodeSentMsg:
		return m.handleLoginCodeSent(msg)

	case loginResultMsg:
		return m.handleLoginResult(msg)

	case topupResultMsg:
		return m.handleTopupResult(msg)

	case exportDoneMsg:
		return m.handleExportDone(msg)
	}

	// Update sub-components
	var cmd tea.Cmd

	if m.mode != modeStreaming {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	// Track input changes to open/close command menu and reset selection
	newVal := m.input.Value()
	if newVal != m.lastInputVal {
		m.lastInputVal = newVal
		if m.historyIdx != -1 {
			if m.historyIdx < len(m.history) && m.history[m.historyIdx] != newVal {
				m.historyIdx = -1
				m.historySaved = ""
			}
		}
		if strings.HasPrefix(newVal, "/") {
			m.cmdMenuOpen = true
			m.cmdMenuIdx = 0
		} else {
			m.cmdMenuOpen = false
			m.cmdMenuIdx = 0
		}
	}

	return m, tea.Batch(cmds...)
}

// ─── Note handling ──────────────────────────────────────────────────────────
//
// The in-flight reply is re-rendered from scratch on every content note;
// View shows its tail under the spinner. The full rendered message is
// printed into the scrollback only once, when the session finishes.

func (m model) handleNote(note controller.Note) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{waitForNote(m.notes)}

	switch note.Kind {
	case controller.NoteContent:
		if note.MessageID == m.streamMsgID {
			if msg, ok := m.tr.Message(note.MessageID); ok {
				m.streamTail = tailLines(m.renderer.Render(msg.Content), streamTailLines)
			}
		}

	case controller.NoteChat:
		if m.cfg.LastChat != note.ChatID {
			m.cfg.LastChat = note.ChatID
			_ = m.cfg.Save()
		}

	case controller.NoteBalance:
		b := note.Balance
		m.balance = &b

	case controller.NoteDone:
		m.mode = modeIdle
		m.streamTail = ""
		cmds = append(cmds, m.printFinished(note)...)
		m.streamMsgID = 0
	}

	return m, tea.Batch(cmds...)
}

// streamTailLines bounds the live preview so the inline viewport stays small.
const streamTailLines = 8

func (m *model) printFinished(note controller.Note) []tea.Cmd {
	var out []tea.Cmd

	if note.Cancelled {
		out = append(out, tea.Println(warnMsgStyle.Render("  ! Stopped.")))
	}

	msg, ok := m.tr.Message(note.MessageID)
	if ok && msg.Content != "" {
		rendered := m.renderer.Render(msg.Content)
		if note.Err != nil {
			out = append(out, tea.Println(errorMsgStyle.Render(indent(rendered, "  "))))
		} else {
			out = append(out, tea.Println(indent(rendered, "  ")))
		}
	}
	if ok && msg.ImageURL != "" {
		out = append(out, tea.Println("  "+imageLinkStyle.Render(msg.ImageURL)))
	}

	if note.Err != nil {
		var be *api.BillingError
		if errors.As(note.Err, &be) {
			out = append(out, tea.Println(dimStyle.Render("    Use /topup <amount> to add funds.")))
		}
	}

	out = append(out, tea.Println(""))
	return out
}

// ─── View ───────────────────────────────────────────────────────────────────
//
// Inline mode: View() shows the live reply tail plus the input prompt or
// spinner. Finished output is printed above via tea.Println.

func (m model) View() string {
	if !m.ready {
		return ""
	}

	var s strings.Builder

	if m.mode == modeStreaming {
		if m.streamTail != "" {
			s.WriteString(indent(m.streamTail, "  "))
			s.WriteString("\n")
		}
		s.WriteString(m.spinner.View() + " " + statusStyle.Render("Answering..."))
	} else {
		s.WriteString(m.input.View())
	}
	s.WriteString("\n")

	sepWidth := min(m.width, 80)
	if sepWidth < 20 {
		sepWidth = 20
	}
	s.WriteString(separatorStyle.Render(strings.Repeat("─", sepWidth)))
	s.WriteString("\n")

	s.WriteString(m.renderHints())

	return s.String()
}

// ─── Hint bar ───────────────────────────────────────────────────────────────

func (m model) renderHints() string {
	if m.mode == modeStreaming {
		return hintBarStyle.Render("  Esc stop")
	}

	if m.mode == modeLoginEmail || m.mode == modeLoginCode {
		return hintBarStyle.Render("  Enter submit   Esc cancel")
	}

	if m.cmdMenuOpen {
		matches := matchCommands(m.input.Value())
		if len(matches) > 0 {
			return m.renderCommandMenu(matches)
		}
	}

	var badges []string
	if m.temporary {
		badges = append(badges, "temp chat")
	}
	if m.cfg != nil && m.cfg.WebSearch {
		badges = append(badges, "web")
	}
	if m.pendingAttachName != "" {
		badges = append(badges, "📎 "+m.pendingAttachName)
	}
	if m.pendingQuote != "" {
		badges = append(badges, "❝ quote")
	}
	if len(badges) > 0 {
		return hintBarStyle.Render("  " + strings.Join(badges, " · ") + "   ? for help")
	}
	return hintBarStyle.Render("  ? for help")
}

func (m model) renderCommandMenu(matches []slashCmd) string {
	maxLen := 0
	for _, c := range matches {
		if len(c.name) > maxLen {
			maxLen = len(c.name)
		}
	}

	var lines []string
	for i, c := range matches {
		padded := c.name
		for len(padded) < maxLen {
			padded += " "
		}

		var line string
		if i == m.cmdMenuIdx {
			line = "  " + cmdSelectedNameStyle.Render(padded) + "  " + cmdSelectedDescStyle.Render(c.desc)
		} else {
			line = "  " + cmdNameStyle.Render(padded) + "  " + cmdDescStyle.Render(c.desc)
		}
		lines = append(lines, line)
	}

	lines = append(lines, hintBarStyle.Render("  ↑↓ navigate  Tab/Enter select"))

	return strings.Join(lines, "\n")
}

// matchCommands returns all slash commands matching a prefix.
func matchCommands(prefix string) []slashCmd {
	prefix = strings.ToLower(prefix)
	if prefix == "/" {
		return slashCommands
	}
	var matches []slashCmd
	for _, c := range slashCommands {
		if strings.HasPrefix(c.name, prefix) {
			matches = append(matches, c)
		}
	}
	return matches
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func serverStr(cfg *config.Config) string {
	if cfg == nil || cfg.SessionID == "" {
		return ""
	}
	return cfg.Server
}

func modelStr(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return cfg.Model
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
