// Package controller drives one response stream at a time: it owns the HTTP
// send, the chunk reassembly and event decoding, and every transcript
// mutation made on behalf of the network. The UI only reads transcript
// snapshots and reacts to notes.
package controller

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"

	"aster-cli/internal/api"
	"aster-cli/internal/stream"
	"aster-cli/internal/transcript"
)

// State is the controller lifecycle phase.
type State int

const (
	StateIdle      State = iota
	StateSending         // request posted, no bytes received yet
	StateStreaming       // response body open, events flowing
)

// NoteKind classifies an asynchronous notification.
type NoteKind int

const (
	NoteContent NoteKind = iota // in-flight message content changed
	NoteChat                    // chat id bound
	NoteBalance                 // account balance update
	NoteDone                    // session reached a terminal state
)

// Note is an asynchronous event delivered to the UI. After NoteDone the
// session that produced it is dead and will never emit again.
type Note struct {
	Kind      NoteKind
	SessionID string
	MessageID int64
	ChatID    int64
	Balance   float64
	Cancelled bool
	Err       error // terminal failure (billing, transport); nil otherwise
}

// SendRequest carries one user turn and its per-send settings.
type SendRequest struct {
	Message       string
	Model         string
	AttachmentURL string
	Temperature   *float64
	WebSearch     bool
	IsTemporary   bool
}

// session is one send attempt. Identity decides whether late events still
// apply: a superseded session may keep reading for a moment, but the
// current-session check drops everything it produces.
type session struct {
	id        string
	cancel    context.CancelFunc
	messageID int64
	total     string // accumulated assistant text, cumulative
	cancelled bool   // set by Stop; guarded by the controller mutex
}

// Sender is the one client call the controller needs.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, opts api.SendOptions) (*api.SendResult, error)
}

// Controller serializes sends: starting a new one supersedes the previous
// session, whose placeholder is finalized with whatever it had.
type Controller struct {
	mu         sync.Mutex
	client     Sender
	transcript *transcript.Transcript
	current    *session
	state      State
	notify     func(Note)
}

// New creates a controller. notify is called from the stream goroutine; it
// must be safe for that (bubbletea's Program.Send is).
func New(client Sender, tr *transcript.Transcript, notify func(Note)) *Controller {
	if notify == nil {
		notify = func(Note) {}
	}
	return &Controller{
		client:     client,
		transcript: tr,
		notify:     notify,
	}
}

// State reports the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a session is in flight.
func (c *Controller) Busy() bool {
	return c.State() != StateIdle
}

// Send appends the user message and an assistant placeholder, then starts
// the request in the background. Any in-flight session is superseded: its
// context is cancelled and its placeholder finalized as-is. The returned
// ids identify the two new transcript entries.
func (c *Controller) Send(ctx context.Context, req SendRequest) (userID, assistantID int64) {
	return c.start(ctx, req, true)
}

// Regenerate resends a previous user message without appending it to the
// transcript again. The caller drops the stale assistant reply first.
func (c *Controller) Regenerate(ctx context.Context, req SendRequest) (assistantID int64) {
	_, assistantID = c.start(ctx, req, false)
	return assistantID
}

func (c *Controller) start(ctx context.Context, req SendRequest, appendUser bool) (userID, assistantID int64) {
	c.mu.Lock()
	if c.current != nil {
		c.current.cancel()
		c.transcript.Finalize(c.current.messageID)
	}

	if appendUser {
		userID = c.transcript.AppendUser(req.Message, req.AttachmentURL)
	}
	assistantID = c.transcript.AppendPlaceholder()

	sctx, cancel := context.WithCancel(ctx)
	s := &session{
		id:        uuid.NewString(),
		cancel:    cancel,
		messageID: assistantID,
	}
	c.current = s
	c.state = StateSending
	c.mu.Unlock()

	go c.run(sctx, s, req)
	return userID, assistantID
}

// Stop cancels the in-flight session, if any. The stop marker is appended
// by the stream goroutine when the cancellation surfaces. Events already
// read from the wire but not yet applied are dropped from this point on.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return false
	}
	c.current.cancelled = true
	c.current.cancel()
	return true
}

// stillCurrent reports whether s is the session allowed to touch state.
func (c *Controller) stillCurrent(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == s
}

// active reports whether s may still apply events: it must be the current
// session and not explicitly stopped. A stopped session keeps its identity
// so the terminal transition can append the stop marker, but anything its
// reader produces after Stop no longer reaches the transcript.
func (c *Controller) active(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == s && !s.cancelled
}

// retire marks s finished. Only the current session resets the state; a
// superseded one retiring must not disturb its successor.
func (c *Controller) retire(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == s {
		c.current = nil
		c.state = StateIdle
	}
}

// enterStreaming flips Sending to Streaming for s.
func (c *Controller) enterStreaming(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == s {
		c.state = StateStreaming
	}
}

// run performs the send and consumes the response. It is the only writer
// of s and the only goroutine mutating the transcript for s.messageID.
func (c *Controller) run(ctx context.Context, s *session, req SendRequest) {
	defer s.cancel()

	chatID := c.transcript.ChatID()
	result, err := c.client.SendMessage(ctx, chatID, api.SendOptions{
		Message:       req.Message,
		Model:         req.Model,
		AttachmentURL: req.AttachmentURL,
		Temperature:   req.Temperature,
		WebSearch:     req.WebSearch,
		IsTemporary:   req.IsTemporary,
	})
	if err != nil {
		c.finishError(s, err)
		return
	}

	if result.ChatID != 0 && c.active(s) {
		c.transcript.BindChat(result.ChatID)
		c.notify(Note{Kind: NoteChat, SessionID: s.id, ChatID: result.ChatID})
	}

	if result.Media != nil {
		c.applyMedia(s, result.Media)
		return
	}

	c.consume(ctx, s, result.Stream)
}

// consume reads the chunked body to completion, reassembling lines and
// applying decoded events while the session stays current.
func (c *Controller) consume(ctx context.Context, s *session, body io.ReadCloser) {
	defer body.Close()

	c.enterStreaming(s)

	re := stream.NewReassembler()
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, line := range re.Feed(buf[:n]) {
				c.applyLine(s, line)
			}
		}
		if err != nil {
			if tail, ok := re.Flush(); ok {
				c.applyLine(s, tail)
			}
			switch {
			case errors.Is(err, io.EOF):
				c.finishOK(s)
			case ctx.Err() != nil:
				c.finishCancelled(s)
			default:
				c.finishBroken(s, err)
			}
			return
		}
	}
}

// applyLine decodes one reassembled line and mutates the transcript. Events
// from a superseded or stopped session are dropped wholesale.
func (c *Controller) applyLine(s *session, line string) {
	ev, ok := stream.Decode(line)
	if !ok || !c.active(s) {
		return
	}
	switch ev.Type {
	case stream.EventContent:
		s.total += ev.Text
		if err := c.transcript.SetContent(s.messageID, s.total); err != nil {
			return
		}
		c.notify(Note{Kind: NoteContent, SessionID: s.id, MessageID: s.messageID})
	case stream.EventMeta:
		c.transcript.BindChat(ev.ChatID)
		c.notify(Note{Kind: NoteChat, SessionID: s.id, ChatID: ev.ChatID})
	case stream.EventBalance:
		c.notify(Note{Kind: NoteBalance, SessionID: s.id, Balance: ev.Balance})
	case stream.EventError:
		c.transcript.AppendErrorMarker(s.messageID, ev.Text)
		c.notify(Note{Kind: NoteContent, SessionID: s.id, MessageID: s.messageID})
	}
}

// applyMedia handles the non-streaming JSON branch: the final assistant
// message arrives whole, typically with an image url.
func (c *Controller) applyMedia(s *session, media *api.MediaResult) {
	if c.active(s) {
		c.transcript.BindChat(media.ChatID)
		for _, m := range media.Messages {
			if m.Role != string(transcript.RoleAssistant) {
				continue
			}
			if m.Content != "" {
				s.total = m.Content
				_ = c.transcript.SetContent(s.messageID, s.total)
			}
			if m.ImageURL != "" {
				c.transcript.SetImageURL(s.messageID, m.ImageURL)
			}
		}
		if media.Balance != nil {
			c.notify(Note{Kind: NoteBalance, SessionID: s.id, Balance: *media.Balance})
		}
	}
	c.finishOK(s)
}

// ─── Terminal transitions ───────────────────────────────────────────────────

func (c *Controller) finishOK(s *session) {
	c.mu.Lock()
	cancelled := s.cancelled
	c.mu.Unlock()
	if cancelled {
		// Stop raced the end of the stream: the user asked for a stop and
		// gets one, marker included, even though the body reached EOF.
		c.finishCancelled(s)
		return
	}
	current := c.stillCurrent(s)
	c.retire(s)
	if current {
		c.transcript.Finalize(s.messageID)
		c.notify(Note{Kind: NoteDone, SessionID: s.id, MessageID: s.messageID})
	}
}

func (c *Controller) finishCancelled(s *session) {
	current := c.stillCurrent(s)
	c.retire(s)
	if current {
		c.transcript.AppendStopMarker(s.messageID)
		c.transcript.Finalize(s.messageID)
		c.notify(Note{Kind: NoteDone, SessionID: s.id, MessageID: s.messageID, Cancelled: true})
	}
}

// finishError handles failures before any content arrived: the send itself
// failed or the server rejected it. The placeholder is replaced, nothing
// partial to preserve.
func (c *Controller) finishError(s *session, err error) {
	current := c.stillCurrent(s)
	c.retire(s)
	if !current {
		return
	}
	if errors.Is(err, context.Canceled) {
		c.transcript.AppendStopMarker(s.messageID)
		c.transcript.Finalize(s.messageID)
		c.notify(Note{Kind: NoteDone, SessionID: s.id, MessageID: s.messageID, Cancelled: true})
		return
	}
	var be *api.BillingError
	if errors.As(err, &be) {
		c.transcript.Fail(s.messageID, be.Detail)
	} else {
		c.transcript.Fail(s.messageID, "Request failed: "+err.Error())
	}
	c.notify(Note{Kind: NoteDone, SessionID: s.id, MessageID: s.messageID, Err: err})
}

// finishBroken handles a connection dropped mid-stream. Partial content is
// kept; the break is recorded as an inline marker.
func (c *Controller) finishBroken(s *session, err error) {
	current := c.stillCurrent(s)
	c.retire(s)
	if !current {
		return
	}
	c.transcript.AppendErrorMarker(s.messageID, "connection lost: "+err.Error())
	c.transcript.Finalize(s.messageID)
	c.notify(Note{Kind: NoteDone, SessionID: s.id, MessageID: s.messageID, Err: err})
}
