package tui

import (
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"aster-cli/internal/api"
	"aster-cli/internal/controller"
)

// ─── Messages sent from background goroutines to Bubble Tea ─────────────────

// noteMsg wraps a controller note so the Update loop can react to stream
// progress without touching controller internals.
type noteMsg struct {
	note controller.Note
}

type chatsLoadedMsg struct {
	chats []api.ChatSummary
	// filter is set when the list was requested by /search
	filter string
	err    error
}

type chatLoadedMsg struct {
	detail *api.ChatDetail
	err    error
}

type chatDeletedMsg struct {
	id      int64
	current bool
	err     error
}

type chatRenamedMsg struct {
	title string
	err   error
}

type historyClearedMsg struct {
	rng string
	err error
}

type modelsLoadedMsg struct {
	groups []api.ModelGroup
	err    error
}

type uploadDoneMsg struct {
	url  string
	name string
	err  error
}

type loginCodeSentMsg struct {
	email string
	err   error
}

type loginResultMsg struct {
	sessionID string
	err       error
}

type topupResultMsg struct {
	token string
	err   error
}

type exportDoneMsg struct {
	path string
	err  error
}

// ─── Note pump ──────────────────────────────────────────────────────────────
//
// The controller delivers notes on a channel owned by the model. One
// waitForNote command is always pending; Update re-arms it after every
// note, so the pump survives across sends.

func waitForNote(ch <-chan controller.Note) tea.Cmd {
	return func() tea.Msg {
		return noteMsg{note: <-ch}
	}
}

// ─── Background commands ────────────────────────────────────────────────────

func uploadFile(client api.ChatAPI, path string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return uploadDoneMsg{err: err}
		}
		defer f.Close()
		name := filepath.Base(path)
		url, err := client.Upload(bgCtx(), name, f)
		return uploadDoneMsg{url: url, name: name, err: err}
	}
}
