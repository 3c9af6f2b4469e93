package tui

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"aster-cli/internal/api"
	"aster-cli/internal/controller"
	"aster-cli/internal/render"
	"aster-cli/internal/transcript"
)

func bgCtx() context.Context { return context.Background() }

// ─── Input dispatcher ───────────────────────────────────────────────────────

func (m model) dispatchInput(input string) (tea.Model, tea.Cmd) {
	if input == "?" {
		return m.cmdHelp()
	}
	if strings.HasPrefix(input, "/") {
		return m.dispatchCommand(input)
	}
	// Default: treat as a chat message
	return m.cmdSend(input)
}

func (m model) dispatchCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help", "/h":
		return m.cmdHelp()
	case "/new":
		return m.cmdNew()
	case "/chats":
		return m.cmdChats("")
	case "/chat":
		return m.cmdChat(args)
	case "/delete", "/rm":
		return m.cmdDelete(args)
	case "/rename":
		return m.cmdRename(args, input)
	case "/search":
		return m.cmdSearch(args, input)
	case "/model":
		return m.cmdModel(args)
	case "/models":
		return m.cmdModels()
	case "/attach":
		return m.cmdAttach(args)
	case "/copy":
		return m.cmdCopy(args)
	case "/quote":
		return m.cmdQuote()
	case "/theme":
		return m.cmdTheme()
	case "/temp":
		return m.cmdTemp(args)
	case "/web":
		return m.cmdWeb()
	case "/tempchat":
		return m.cmdTempChat()
	case "/login":
		return m.cmdLogin(args)
	case "/balance":
		return m.cmdBalance()
	case "/topup":
		return m.cmdTopup(args)
	case "/export":
		return m.cmdExport(args)
	case "/regenerate", "/retry":
		return m.cmdRegenerate()
	case "/stop":
		return m.cmdStop()
	case "/config":
		return m.cmdConfig()
	case "/clear":
		return m.cmdClear()
	case "/quit", "/exit", "/q":
		return m, tea.Quit
	default:
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Unknown command: %s — type /help", cmd)))
	}
}

// ─── Sending ────────────────────────────────────────────────────────────────

func (m model) cmdSend(text string) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Run /login first."))
	}
	if m.ctrl.Busy() {
		return m, tea.Println(warnMsgStyle.Render("  ! Still answering. /stop it first."))
	}

	if m.pendingQuote != "" {
		text = quoteLines(m.pendingQuote) + "\n\n" + text
		m.pendingQuote = ""
	}

	req := m.buildSendRequest(text)
	m.pendingAttachment = ""
	m.pendingAttachName = ""

	_, asstID := m.ctrl.Send(bgCtx(), req)
	m.streamMsgID = asstID
	m.streamTail = ""
	m.mode = modeStreaming

	echo := userPromptStyle.Render("❯ ") + text
	if req.AttachmentURL != "" {
		echo += dimStyle.Render("  [📎]")
	}
	return m, tea.Sequence(tea.Println(""), tea.Println(echo), tea.Println(""))
}

func (m *model) buildSendRequest(text string) controller.SendRequest {
	return controller.SendRequest{
		Message:       text,
		Model:         m.cfg.Model,
		AttachmentURL: m.pendingAttachment,
		Temperature:   m.cfg.Temperature,
		WebSearch:     m.cfg.WebSearch,
		IsTemporary:   m.temporary,
	}
}

func (m model) cmdRegenerate() (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Run /login first."))
	}
	if m.ctrl.Busy() {
		return m, tea.Println(warnMsgStyle.Render("  ! Still answering. /stop it first."))
	}
	text, ok := m.tr.LastUserContent()
	if !ok {
		return m, tea.Println(warnMsgStyle.Render("  ! Nothing to regenerate yet."))
	}

	m.tr.DropLastAssistant()
	m.streamMsgID = m.ctrl.Regenerate(bgCtx(), m.buildSendRequest(text))
	m.streamTail = ""
	m.mode = modeStreaming
	return m, tea.Println(dimStyle.Render("  ⟳ Regenerating..."))
}

func (m model) cmdStop() (tea.Model, tea.Cmd) {
	if m.ctrl == nil || !m.ctrl.Stop() {
		return m, tea.Println(warnMsgStyle.Render("  ! Nothing to stop."))
	}
	return m, nil
}

// ─── /new ───────────────────────────────────────────────────────────────────

func (m model) cmdNew() (tea.Model, tea.Cmd) {
	if m.ctrl != nil && m.ctrl.Busy() {
		return m, tea.Println(warnMsgStyle.Render("  ! Still answering. /stop it first."))
	}
	m.tr.Reset()
	m.streamMsgID = 0
	if m.cfg.LastChat != 0 {
		m.cfg.LastChat = 0
		_ = m.cfg.Save()
	}
	return m, tea.Println(successMsgStyle.Render("  ✓ New chat started."))
}

// ─── /chats and /search ─────────────────────────────────────────────────────

func (m model) cmdChats(filter string) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Run /login first."))
	}
	client := m.client
	return m, tea.Sequence(
		tea.Println(statusStyle.Render("  ⟳ Loading chats...")),
		func() tea.Msg {
			chats, err := client.ListChats(bgCtx())
			return chatsLoadedMsg{chats: chats, filter: filter, err: err}
		},
	)
}

func (m model) cmdSearch(args []string, raw string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! Usage: /search <term>"))
	}
	term := strings.TrimSpace(strings.TrimPrefix(raw, "/search"))
	return m.cmdChats(term)
}

func (m model) handleChatsLoaded(msg chatsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Failed to load chats: %v", msg.err)))
	}

	chats := msg.chats
	if msg.filter != "" {
		needle := strings.ToLower(msg.filter)
		var filtered []api.ChatSummary
		for _, c := range chats {
			if strings.Contains(strings.ToLower(c.Title), needle) {
				filtered = append(filtered, c)
			}
		}
		chats = filtered
	}

	if len(chats) == 0 {
		if msg.filter != "" {
			return m, tea.Println(warnMsgStyle.Render(fmt.Sprintf("  ! No chats matching %q.", msg.filter)))
		}
		return m, tea.Println(warnMsgStyle.Render("  ! No chats yet."))
	}

	var cmds []tea.Cmd
	header := fmt.Sprintf("  Chats (%d):", len(chats))
	if msg.filter != "" {
		header = fmt.Sprintf("  Chats matching %q (%d):", msg.filter, len(chats))
	}
	cmds = append(cmds, tea.Println(""), tea.Println(dimStyle.Render(header)), tea.Println(""))

	for _, c := range chats {
		marker := "  "
		if c.ID == m.cfg.LastChat {
			marker = userPromptStyle.Render("❯ ")
		}
		title := truncateTitle(c.Title, 48)
		if title == "" {
			title = dimStyle.Render("(untitled)")
		}
		cmds = append(cmds, tea.Println(fmt.Sprintf("  %s%-6d %s  %s", marker, c.ID, title, dimStyle.Render(c.Date))))
	}

	cmds = append(cmds,
		tea.Println(""),
		tea.Println(dimStyle.Render("  Tip: /chat <id> to open · /delete <id> to remove")),
		tea.Println(""),
	)
	return m, tea.Sequence(cmds...)
}

// ─── /chat ──────────────────────────────────────────────────────────────────

func (m model) cmdChat(args []string) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Run /login first."))
	}
	if len(args) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! Usage: /chat <id>"))
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Bad chat id: %s", args[0])))
	}
	if m.ctrl != nil && m.ctrl.Busy() {
		return m, tea.Println(warnMsgStyle.Render("  ! Still answering. /stop it first."))
	}

	client := m.client
	return m, tea.Sequence(
		tea.Println(statusStyle.Render(fmt.Sprintf("  ⟳ Opening chat %d...", id))),
		func() tea.Msg {
			detail, err := client.GetChat(bgCtx(), id)
			return chatLoadedMsg{detail: detail, err: err}
		},
	)
}

func (m model) handleChatLoaded(msg chatLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Failed to open chat: %v", msg.err)))
	}

	detail := msg.detail
	msgs := make([]transcript.Message, 0, len(detail.Messages))
	for _, cm := range detail.Messages {
		msgs = append(msgs, transcript.Message{
			Role:          transcript.Role(cm.Role),
			Content:       cm.Content,
			AttachmentURL: cm.AttachmentURL,
			ImageURL:      cm.ImageURL,
		})
	}
	m.tr.Load(detail.ID, msgs)
	m.cfg.LastChat = detail.ID
	_ = m.cfg.Save()

	width := min(m.width-4, 100)
	if width < 40 {
		width = 80
	}
	doc, err := render.Document(transcriptMarkdown(detail.Title, m.tr.Messages()), width, m.cfg.ThemeOrDefault())
	if err != nil {
		doc = transcriptMarkdown(detail.Title, m.tr.Messages())
	}

	cmds := []tea.Cmd{tea.Println(doc)}
	if detail.ExpiresAt != "" {
		cmds = append(cmds, tea.Println(dimStyle.Render("  Expires: "+detail.ExpiresAt)))
	}
	cmds = append(cmds, tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ Chat %d loaded. New messages continue it.", detail.ID))))
	return m, tea.Sequence(cmds...)
}

// transcriptMarkdown flattens a conversation into a markdown document for
// the glamour-rendered chat view and for /export.
func transcriptMarkdown(title string, msgs []transcript.Message) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	for _, msg := range msgs {
		switch msg.Role {
		case transcript.RoleUser:
			b.WriteString("### You\n\n")
		case transcript.RoleAssistant:
			b.WriteString("### Aster\n\n")
		default:
			fmt.Fprintf(&b, "### %s\n\n", msg.Role)
		}
		b.WriteString(msg.Content)
		if msg.AttachmentURL != "" {
			fmt.Fprintf(&b, "\n\n[attachment](%s)", msg.AttachmentURL)
		}
		if msg.ImageURL != "" {
			fmt.Fprintf(&b, "\n\n![image](%s)", msg.ImageURL)
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

// ─── /delete ────────────────────────────────────────────────────────────────

func (m model) cmdDelete(args []string) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Run /login first."))
	}

	// /delete day|week|all clears history server-side in bulk.
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "day", "week", "all":
			rng := strings.ToLower(args[0])
			client := m.client
			return m, tea.Sequence(
				tea.Println(statusStyle.Render("  ⟳ Clearing history ("+rng+")...")),
				func() tea.Msg {
					return historyClearedMsg{rng: rng, err: client.ClearHistory(bgCtx(), rng)}
				},
			)
		}
	}

	id := m.cfg.LastChat
	if len(args) > 0 {
		parsed, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Bad chat id: %s", args[0])))
		}
		id = parsed
	}
	if id == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! Usage: /delete <id> (or open a chat first)"))
	}

	client := m.client
	current := id == m.cfg.LastChat
	return m, func() tea.Msg {
		return chatDeletedMsg{id: id, current: current, err: client.DeleteChat(bgCtx(), id)}
	}
}

func (m model) handleChatDeleted(msg chatDeletedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Delete failed: %v", msg.err)))
	}
	if msg.current {
		m.tr.Reset()
		m.cfg.LastChat = 0
		_ = m.cfg.Save()
	}
	return m, tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ Chat %d deleted.", msg.id)))
}

func (m model) handleHistoryCleared(msg historyClearedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Clear failed: %v", msg.err)))
	}
	m.tr.Reset()
	m.cfg.LastChat = 0
	_ = m.cfg.Save()
	return m, tea.Println(successMsgStyle.Render("  ✓ History cleared (" + msg.rng + ")."))
}

// ─── /rename ────────────────────────────────────────────────────────────────

func (m model) cmdRename(args []string, raw string) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Run /login first."))
	}
	if m.cfg.LastChat == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! No chat open. /chat <id> first."))
	}
	title := strings.TrimSpace(strings.TrimPrefix(raw, "/rename"))
	if title == "" {
		return m, tea.Println(warnMsgStyle.Render("  ! Usage: /rename <new title>"))
	}

	client := m.client
	id := m.cfg.LastChat
	return m, func() tea.Msg {
		return chatRenamedMsg{title: title, err: client.RenameChat(bgCtx(), id, title)}
	}
}

func (m model) handleChatRenamed(msg chatRenamedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Rename failed: %v", msg.err)))
	}
	return m, tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ Renamed to %q.", msg.title)))
}

// ─── /model and /models ─────────────────────────────────────────────────────

func (m model) cmdModel(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		current := m.cfg.Model
		if current == "" {
			current = "(server default)"
		}
		return m, tea.Println(dimStyle.Render("  Model: " + current))
	}
	m.cfg.Model = args[0]
	if err := m.cfg.Save(); err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %v", err)))
	}
	return m, tea.Println(successMsgStyle.Render("  ✓ Model set to " + args[0]))
}

func (m model) cmdModels() (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Run /login first."))
	}
	client := m.client
	return m, tea.Sequence(
		tea.Println(statusStyle.Render("  ⟳ Loading models...")),
		func() tea.Msg {
			groups, err := client.ListModels(bgCtx())
			return modelsLoadedMsg{groups: groups, err: err}
		},
	)
}

func (m model) handleModelsLoaded(msg modelsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Failed to load models: %v", msg.err)))
	}
	if len(msg.groups) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! No models available."))
	}

	var cmds []tea.Cmd
	cmds = append(cmds, tea.Println(""))
	for _, g := range msg.groups {
		icon := g.Icon
		if icon == "" {
			icon = "·"
		}
		cmds = append(cmds, tea.Println(dimStyle.Render("  "+icon)))
		for _, mi := range g.Models {
			marker := "  "
			if mi.ID == m.cfg.Model {
				marker = userPromptStyle.Render("❯ ")
			}
			cmds = append(cmds, tea.Println(fmt.Sprintf("  %s%-24s %s", marker, mi.ID, dimStyle.Render(mi.Name))))
		}
	}
	cmds = append(cmds,
		tea.Println(""),
		tea.Println(dimStyle.Render("  Tip: /model <id> to switch")),
		tea.Println(""),
	)
	return m, tea.Sequence(cmds...)
}

// ─── /attach ────────────────────────────────────────────────────────────────

func (m model) cmdAttach(args []string) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Run /login first."))
	}
	if len(args) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! Usage: /attach <path>"))
	}
	path := args[0]
	if _, err := os.Stat(path); err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %v", err)))
	}
	return m, tea.Sequence(
		tea.Println(statusStyle.Render("  ⟳ Uploading "+path+"...")),
		uploadFile(m.client, path),
	)
}

func (m model) handleUploadDone(msg uploadDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Upload failed: %v", msg.err)))
	}
	m.pendingAttachment = msg.url
	m.pendingAttachName = msg.name
	return m, tea.Println(successMsgStyle.Render("  ✓ Attached " + msg.name + ". It will ride along with your next message."))
}

// ─── /copy ──────────────────────────────────────────────────────────────────

func (m model) cmdCopy(args []string) (tea.Model, tea.Cmd) {
	var last *transcript.Message
	for _, msg := range m.tr.Messages() {
		if msg.Role == transcript.RoleAssistant && !msg.Streaming {
			snapshot := msg
			last = &snapshot
		}
	}
	if last == nil {
		return m, tea.Println(warnMsgStyle.Render("  ! No reply to copy from yet."))
	}

	blocks := render.CodeBlocks(last.Content)
	if len(blocks) == 0 {
		// No code blocks: copy the whole reply.
		if err := clipboard.WriteAll(last.Content); err != nil {
			return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Clipboard: %v", err)))
		}
		return m, tea.Println(successMsgStyle.Render("  ✓ Reply copied."))
	}

	n := 1
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 1 || parsed > len(blocks) {
			return m, tea.Println(warnMsgStyle.Render(fmt.Sprintf("  ! Pick a block 1-%d.", len(blocks))))
		}
		n = parsed
	} else if len(blocks) > 1 {
		var cmds []tea.Cmd
		cmds = append(cmds, tea.Println(dimStyle.Render(fmt.Sprintf("  %d code blocks:", len(blocks)))))
		for i, b := range blocks {
			lang := b.Lang
			if lang == "" {
				lang = "text"
			}
			first := strings.SplitN(b.Code, "\n", 2)[0]
			cmds = append(cmds, tea.Println(fmt.Sprintf("    %d. [%s] %s", i+1, lang, truncateTitle(first, 50))))
		}
		cmds = append(cmds, tea.Println(dimStyle.Render("  Usage: /copy <n>")))
		return m, tea.Sequence(cmds...)
	}

	if err := clipboard.WriteAll(blocks[n-1].Code); err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Clipboard: %v", err)))
	}
	return m, tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ Code block %d copied.", n)))
}

// ─── /quote ─────────────────────────────────────────────────────────────────

func (m model) cmdQuote() (tea.Model, tea.Cmd) {
	var last *transcript.Message
	for _, msg := range m.tr.Messages() {
		if msg.Role == transcript.RoleAssistant && !msg.Streaming {
			snapshot := msg
			last = &snapshot
		}
	}
	if last == nil || last.Content == "" {
		return m, tea.Println(warnMsgStyle.Render("  ! No reply to quote yet."))
	}

	m.pendingQuote = last.Content
	return m, tea.Println(successMsgStyle.Render("  ✓ Quoting the last reply in your next message."))
}

func quoteLines(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

// ─── Toggles: /theme /temp /web /tempchat ───────────────────────────────────

func (m model) cmdTheme() (tea.Model, tea.Cmd) {
	if m.cfg.ThemeOrDefault() == "dark" {
		m.cfg.Theme = "light"
	} else {
		m.cfg.Theme = "dark"
	}
	_ = m.cfg.Save()
	return m, tea.Println(successMsgStyle.Render("  ✓ Theme: " + m.cfg.Theme))
}

func (m model) cmdTemp(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		if m.cfg.Temperature == nil {
			return m, tea.Println(dimStyle.Render("  Temperature: (server default). Usage: /temp <0..2> or /temp off"))
		}
		return m, tea.Println(dimStyle.Render(fmt.Sprintf("  Temperature: %.2f", *m.cfg.Temperature)))
	}
	if strings.ToLower(args[0]) == "off" {
		m.cfg.Temperature = nil
		_ = m.cfg.Save()
		return m, tea.Println(successMsgStyle.Render("  ✓ Temperature reset to server default."))
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil || v < 0 || v > 2 {
		return m, tea.Println(warnMsgStyle.Render("  ! Temperature must be between 0 and 2."))
	}
	m.cfg.Temperature = &v
	_ = m.cfg.Save()
	return m, tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ Temperature set to %.2f.", v)))
}

func (m model) cmdWeb() (tea.Model, tea.Cmd) {
	m.cfg.WebSearch = !m.cfg.WebSearch
	_ = m.cfg.Save()
	if m.cfg.WebSearch {
		return m, tea.Println(successMsgStyle.Render("  ✓ Web search on."))
	}
	return m, tea.Println(successMsgStyle.Render("  ✓ Web search off."))
}

func (m model) cmdTempChat() (tea.Model, tea.Cmd) {
	m.temporary = !m.temporary
	if m.temporary {
		return m, tea.Println(successMsgStyle.Render("  ✓ Temporary chat on. The next new chat will auto-expire."))
	}
	return m, tea.Println(successMsgStyle.Render("  ✓ Temporary chat off."))
}

// ─── /login ─────────────────────────────────────────────────────────────────

func (m model) cmdLogin(args []string) (tea.Model, tea.Cmd) {
	if len(args) > 0 {
		return m.handleLoginEmailSubmit(args[0])
	}
	m.mode = modeLoginEmail
	m.input.Placeholder = "you@example.com..."
	m.input.SetValue("")
	return m, tea.Println(dimStyle.Render("  Enter your email:"))
}

func (m model) handleLoginEmailSubmit(value string) (tea.Model, tea.Cmd) {
	if !strings.Contains(value, "@") {
		m.mode = modeLoginEmail
		m.input.Placeholder = "you@example.com..."
		return m, tea.Println(warnMsgStyle.Render("  ! That does not look like an email."))
	}
	m.loginEmail = value
	m.mode = modeLoginCode
	m.input.Placeholder = "Waiting for code..."

	server := m.cfg.Server
	email := value
	return m, tea.Sequence(
		tea.Println(statusStyle.Render("  ⟳ Sending code to "+email+"...")),
		func() tea.Msg {
			client := api.NewClientWithServer(server, "")
			return loginCodeSentMsg{email: email, err: client.RequestEmailCode(bgCtx(), email)}
		},
	)
}

func (m model) handleLoginCodeSent(msg loginCodeSentMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.mode = modeIdle
		m.input.Placeholder = "Ask anything or type /help..."
		m.loginEmail = ""
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Could not send code: %v", msg.err)))
	}
	m.input.Placeholder = "6-digit code..."
	return m, tea.Println(dimStyle.Render("  Check your inbox and enter the code:"))
}

func (m model) handleLoginCodeSubmit(value string) (tea.Model, tea.Cmd) {
	server := m.cfg.Server
	email := m.loginEmail
	code := value
	m.input.Placeholder = "Verifying..."

	return m, tea.Sequence(
		tea.Println(statusStyle.Render("  ⟳ Verifying...")),
		func() tea.Msg {
			client := api.NewClientWithServer(server, "")
			sessionID, err := client.VerifyEmailCode(bgCtx(), email, code)
			return loginResultMsg{sessionID: sessionID, err: err}
		},
	)
}

func (m model) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	m.mode = modeIdle
	m.input.Placeholder = "Ask anything or type /help..."

	if msg.err != nil {
		m.loginEmail = ""
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Login failed: %v", msg.err)))
	}

	m.cfg.Email = m.loginEmail
	m.cfg.SessionID = msg.sessionID
	m.loginEmail = ""
	if err := m.cfg.Save(); err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %v", err)))
	}

	m.client = api.NewClient(m.cfg)
	notes := m.notes
	m.ctrl = controller.New(m.client, m.tr, func(n controller.Note) { notes <- n })

	return m, tea.Sequence(
		tea.Println(successMsgStyle.Render("  ✓ Logged in as "+m.cfg.Email)),
		tea.Println(""),
	)
}

// ─── /balance and /topup ────────────────────────────────────────────────────

func (m model) cmdBalance() (tea.Model, tea.Cmd) {
	if m.balance == nil {
		return m, tea.Println(dimStyle.Render("  Balance updates after each message. Send one first."))
	}
	return m, tea.Println(balanceStyle.Render(fmt.Sprintf("  ⬡ %.2f", *m.balance)))
}

func (m model) cmdTopup(args []string) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Run /login first."))
	}
	if len(args) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! Usage: /topup <amount>"))
	}
	amount, err := strconv.ParseFloat(args[0], 64)
	if err != nil || amount <= 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! Amount must be a positive number."))
	}

	client := m.client
	return m, tea.Sequence(
		tea.Println(statusStyle.Render("  ⟳ Creating payment...")),
		func() tea.Msg {
			token, err := client.CreatePayment(bgCtx(), amount)
			return topupResultMsg{token: token, err: err}
		},
	)
}

func (m model) handleTopupResult(msg topupResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Top-up failed: %v", msg.err)))
	}
	return m, tea.Sequence(
		tea.Println(successMsgStyle.Render("  ✓ Payment created.")),
		tea.Println(dimStyle.Render("    Finish in your browser: "+strings.TrimRight(m.cfg.Server, "/")+"/pay?token="+msg.token)),
	)
}

// ─── /export ────────────────────────────────────────────────────────────────

func (m model) cmdExport(args []string) (tea.Model, tea.Cmd) {
	msgs := m.tr.Messages()
	if len(msgs) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! Nothing to export yet."))
	}

	path := fmt.Sprintf("aster-chat-%d.md", m.cfg.LastChat)
	if m.cfg.LastChat == 0 {
		path = "aster-chat.md"
	}
	if len(args) > 0 {
		path = args[0]
	}

	doc := transcriptMarkdown("", msgs)
	return m, func() tea.Msg {
		return exportDoneMsg{path: path, err: os.WriteFile(path, []byte(doc), 0644)}
	}
}

func (m model) handleExportDone(msg exportDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Export failed: %v", msg.err)))
	}
	return m, tea.Println(successMsgStyle.Render("  ✓ Exported to " + msg.path))
}

// ─── /config ────────────────────────────────────────────────────────────────

func (m model) cmdConfig() (tea.Model, tea.Cmd) {
	val := func(s string) string {
		if s == "" {
			return dimStyle.Render("(not set)")
		}
		return s
	}
	session := dimStyle.Render("(not set)")
	if m.cfg.SessionID != "" {
		end := 8
		if len(m.cfg.SessionID) < end {
			end = len(m.cfg.SessionID)
		}
		session = m.cfg.SessionID[:end] + "..."
	}
	temp := dimStyle.Render("(default)")
	if m.cfg.Temperature != nil {
		temp = fmt.Sprintf("%.2f", *m.cfg.Temperature)
	}

	return m, tea.Sequence(
		tea.Println(""),
		tea.Println(dimStyle.Render("  Configuration:")),
		tea.Println(fmt.Sprintf("    Profile:     %s", profileName(m.profile))),
		tea.Println(fmt.Sprintf("    Server:      %s", val(m.cfg.Server))),
		tea.Println(fmt.Sprintf("    Email:       %s", val(m.cfg.Email))),
		tea.Println(fmt.Sprintf("    Model:       %s", val(m.cfg.Model))),
		tea.Println(fmt.Sprintf("    Theme:       %s", m.cfg.ThemeOrDefault())),
		tea.Println(fmt.Sprintf("    Temperature: %s", temp)),
		tea.Println(fmt.Sprintf("    Web search:  %t", m.cfg.WebSearch)),
		tea.Println(fmt.Sprintf("    Session:     %s", session)),
		tea.Println(""),
	)
}

func profileName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}

// ─── /clear and /help ───────────────────────────────────────────────────────

func (m model) cmdClear() (tea.Model, tea.Cmd) {
	welcome := renderWelcome(m.version, serverStr(m.cfg), modelStr(m.cfg), m.width)
	return m, tea.Sequence(tea.ClearScreen, tea.Println(welcome))
}

func (m model) cmdHelp() (tea.Model, tea.Cmd) {
	pad := func(s string, w int) string {
		for len(s) < w {
			s += " "
		}
		return s
	}

	row := func(key, desc string) tea.Cmd {
		return tea.Println("  " + pad(hintKeyStyle.Render(key), 34) + dimStyle.Render(desc))
	}

	lines := []tea.Cmd{
		tea.Println(""),
		tea.Println(dimStyle.Render("  Chat:")),
		row("/new", "Start a new chat"),
		row("/chats", "List chat history"),
		row("/chat <id>", "Open a chat"),
		row("/search <term>", "Search chats by title"),
		row("/rename <title>", "Rename the current chat"),
		row("/delete [id|day|week|all]", "Delete a chat or clear history"),
		row("/export [path]", "Export the chat as markdown"),
		tea.Println(""),
		tea.Println(dimStyle.Render("  Reply:")),
		row("/stop", "Stop the current response"),
		row("/regenerate", "Regenerate the last reply"),
		row("/copy [n]", "Copy a code block (or the reply)"),
		row("/quote", "Quote the last reply in your next message"),
		tea.Println(""),
		tea.Println(dimStyle.Render("  Settings:")),
		row("/model [id]", "Show or set the model"),
		row("/models", "List available models"),
		row("/temp <0..2>", "Set sampling temperature"),
		row("/web", "Toggle web search"),
		row("/tempchat", "Toggle temporary chat"),
		row("/theme", "Toggle dark/light rendering"),
		row("/attach <path>", "Attach a file to the next message"),
		tea.Println(""),
		tea.Println(dimStyle.Render("  Account:")),
		row("/login [email]", "Login with your email"),
		row("/balance", "Show account balance"),
		row("/topup <amount>", "Top up your balance"),
		row("/config", "Show current configuration"),
		tea.Println(""),
		row("/clear", "Clear the screen"),
		row("/quit", "Exit Aster"),
		tea.Println(""),
		tea.Println(dimStyle.Render("  Or just type a message to chat!")),
		tea.Println(""),
	}
	return m, tea.Sequence(lines...)
}
