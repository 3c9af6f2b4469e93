package stream

import (
	"encoding/json"
	"strings"
)

// EventType discriminates decoded protocol events.
type EventType int

const (
	EventContent EventType = iota // text delta to append
	EventMeta                     // chat id for a freshly created chat
	EventBalance                  // account balance update
	EventError                    // in-band error text
)

// Event is one decoded unit of the streaming protocol. Produced transiently
// by Decode and consumed by the controller; never persisted.
type Event struct {
	Type    EventType
	Text    string  // EventContent, EventError
	ChatID  int64   // EventMeta
	Balance float64 // EventBalance
}

// wireEvent covers both framings seen from the server: the canonical NDJSON
// object with a type discriminator, and the older SSE payload that carries
// just a content fragment.
type wireEvent struct {
	Type    string   `json:"type"`
	Text    string   `json:"text"`
	Content string   `json:"content"`
	ChatID  int64    `json:"chat_id"`
	Balance *float64 `json:"balance"`
}

// Decode parses one complete line into an Event. The second return value is
// false for lines that carry nothing: blanks, malformed JSON (a real newline
// inside content can terminate a line mid-object), and unrecognized
// discriminators. Decode never fails loudly; the stream self-heals on the
// next well-formed line.
func Decode(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}

	// SSE framing: "data: <json>". The bare NDJSON framing is canonical.
	if rest, ok := strings.CutPrefix(line, "data:"); ok {
		line = strings.TrimSpace(rest)
		if line == "" || line == "[DONE]" {
			return Event{}, false
		}
	}

	var w wireEvent
	if err := json.Unmarshal([]byte(line), &w); err != nil {
		return Event{}, false
	}

	switch w.Type {
	case "content":
		return Event{Type: EventContent, Text: w.Text}, true
	case "meta":
		if w.ChatID == 0 {
			return Event{}, false
		}
		return Event{Type: EventMeta, ChatID: w.ChatID}, true
	case "balance":
		if w.Balance == nil {
			return Event{}, false
		}
		return Event{Type: EventBalance, Balance: *w.Balance}, true
	case "error":
		return Event{Type: EventError, Text: w.Text}, true
	case "":
		// Legacy SSE payload: no discriminator, content fragment only.
		if w.Content != "" {
			return Event{Type: EventContent, Text: w.Content}, true
		}
		return Event{}, false
	default:
		// Unknown discriminator: skip, forward compatible.
		return Event{}, false
	}
}
