// Package transcript holds the ordered message list for the active chat.
// The transcript is append-only except for the single in-flight assistant
// message, which the stream controller mutates until it is finalized.
package transcript

import (
	"fmt"
	"sync"
)

// Role identifies the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. IDs are sequence numbers, unique and
// ordered within a transcript.
type Message struct {
	ID            int64
	Role          Role
	Content       string
	AttachmentURL string
	ImageURL      string
	Streaming     bool

	stopMarked bool // stop marker appended; never append it twice
}

// Transcript is the ordered conversation state. Safe for use from the
// stream goroutine and the UI loop.
type Transcript struct {
	mu     sync.Mutex
	chatID int64
	nextID int64
	msgs   []*Message
}

func New() *Transcript {
	return &Transcript{}
}

// ChatID returns the bound server-side chat id, 0 if the conversation has
// not been persisted yet.
func (t *Transcript) ChatID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chatID
}

// BindChat binds the server chat id once. Later calls with any id are
// ignored, so repeated meta events are harmless.
func (t *Transcript) BindChat(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.chatID == 0 && chatID != 0 {
		t.chatID = chatID
	}
}

// AppendUser appends a finished user message and returns its id.
func (t *Transcript) AppendUser(content, attachmentURL string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.msgs = append(t.msgs, &Message{
		ID:            t.nextID,
		Role:          RoleUser,
		Content:       content,
		AttachmentURL: attachmentURL,
	})
	return t.nextID
}

// AppendPlaceholder appends the empty streaming assistant entry that the
// stream will fill in. Any previously streaming message is finalized first,
// preserving the at-most-one-streaming invariant.
func (t *Transcript) AppendPlaceholder() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.msgs {
		m.Streaming = false
	}
	t.nextID++
	t.msgs = append(t.msgs, &Message{
		ID:        t.nextID,
		Role:      RoleAssistant,
		Streaming: true,
	})
	return t.nextID
}

// SetContent replaces the content of the in-flight message with the
// accumulated total so far. Applying the same total twice is a no-op by
// construction. Messages that are unknown or already finalized are left
// untouched: a late event from a dead session must not resurrect them.
func (t *Transcript) SetContent(id int64, cumulative string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.find(id)
	if m == nil {
		return fmt.Errorf("transcript: no message %d", id)
	}
	if !m.Streaming {
		return fmt.Errorf("transcript: message %d is finalized", id)
	}
	m.Content = cumulative
	return nil
}

// SetImageURL attaches a generated image to the in-flight message.
func (t *Transcript) SetImageURL(id int64, url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m := t.find(id); m != nil && m.Streaming {
		m.ImageURL = url
	}
}

// AppendErrorMarker appends an inline error marker to the in-flight
// message. In-band errors do not finalize; the stream may continue.
func (t *Transcript) AppendErrorMarker(id int64, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m := t.find(id); m != nil && m.Streaming {
		m.Content += fmt.Sprintf("\n[Error: %s]", text)
	}
}

// AppendStopMarker appends the cancellation marker exactly once and
// finalizes the message.
func (t *Transcript) AppendStopMarker(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.find(id)
	if m == nil || m.stopMarked {
		return
	}
	if m.Streaming {
		m.stopMarked = true
		m.Content += " [Stopped]"
		m.Streaming = false
	}
}

// Fail replaces the message content with failure text and finalizes. Used
// for transport errors and the billing rejection: no partial content is
// retained.
func (t *Transcript) Fail(id int64, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m := t.find(id); m != nil && m.Streaming {
		m.Content = text
		m.Streaming = false
	}
}

// Finalize flips Streaming off. Idempotent; once off it never comes back.
func (t *Transcript) Finalize(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m := t.find(id); m != nil {
		m.Streaming = false
	}
}

// Message returns a snapshot of one message.
func (t *Transcript) Message(id int64) (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m := t.find(id); m != nil {
		return *m, true
	}
	return Message{}, false
}

// Messages returns a snapshot of the whole conversation.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.msgs))
	for i, m := range t.msgs {
		out[i] = *m
	}
	return out
}

// Last returns the most recent message, if any.
func (t *Transcript) Last() (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.msgs) == 0 {
		return Message{}, false
	}
	return *t.msgs[len(t.msgs)-1], true
}

// LastUserContent returns the content of the most recent user message,
// used for regeneration.
func (t *Transcript) LastUserContent() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.msgs) - 1; i >= 0; i-- {
		if t.msgs[i].Role == RoleUser {
			return t.msgs[i].Content, true
		}
	}
	return "", false
}

// DropLastAssistant removes a trailing assistant message before a
// regeneration. No-op while a stream is active on it.
func (t *Transcript) DropLastAssistant() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.msgs); n > 0 && t.msgs[n-1].Role == RoleAssistant && !t.msgs[n-1].Streaming {
		t.msgs = t.msgs[:n-1]
	}
}

// Reset clears the transcript for a new or switched chat.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chatID = 0
	t.msgs = nil
}

// Load replaces the transcript with persisted history from the server.
func (t *Transcript) Load(chatID int64, msgs []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chatID = chatID
	t.msgs = make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		t.nextID++
		c := m
		c.ID = t.nextID
		c.Streaming = false
		t.msgs = append(t.msgs, &c)
	}
}

func (t *Transcript) find(id int64) *Message {
	for _, m := range t.msgs {
		if m.ID == id {
			return m
		}
	}
	return nil
}
