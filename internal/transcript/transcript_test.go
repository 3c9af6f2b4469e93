package transcript

import (
	"strings"
	"testing"
)

func TestCumulativeContentIsIdempotent(t *testing.T) {
	tr := New()
	tr.AppendUser("hi", "")
	id := tr.AppendPlaceholder()

	totals := []string{"A", "AB", "ABC"}
	for _, c := range totals {
		if err := tr.SetContent(id, c); err != nil {
			t.Fatalf("SetContent(%q): %v", c, err)
		}
	}
	// Replaying the same cumulative sequence changes nothing.
	for _, c := range totals {
		_ = tr.SetContent(id, c)
	}

	m, _ := tr.Message(id)
	if m.Content != "ABC" {
		t.Fatalf("content = %q, want %q", m.Content, "ABC")
	}
}

func TestFinalizeIsIdempotentAndSticky(t *testing.T) {
	tr := New()
	id := tr.AppendPlaceholder()
	_ = tr.SetContent(id, "partial")

	tr.Finalize(id)
	tr.Finalize(id)

	if err := tr.SetContent(id, "late delta"); err == nil {
		t.Fatal("SetContent after Finalize should be rejected")
	}
	m, _ := tr.Message(id)
	if m.Streaming || m.Content != "partial" {
		t.Fatalf("message after finalize = %+v", m)
	}
}

func TestAtMostOneStreamingMessage(t *testing.T) {
	tr := New()
	first := tr.AppendPlaceholder()
	second := tr.AppendPlaceholder()

	count := 0
	for _, m := range tr.Messages() {
		if m.Streaming {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("streaming messages = %d, want 1", count)
	}
	if m, _ := tr.Message(first); m.Streaming {
		t.Error("first placeholder should have been finalized")
	}
	if m, _ := tr.Message(second); !m.Streaming {
		t.Error("second placeholder should be streaming")
	}
}

func TestStopMarkerAppendedExactlyOnce(t *testing.T) {
	tr := New()
	id := tr.AppendPlaceholder()
	_ = tr.SetContent(id, "thinking abou")

	tr.AppendStopMarker(id)
	tr.AppendStopMarker(id)

	m, _ := tr.Message(id)
	if got := strings.Count(m.Content, "[Stopped]"); got != 1 {
		t.Fatalf("stop marker count = %d in %q", got, m.Content)
	}
	if m.Streaming {
		t.Error("stopped message still streaming")
	}
}

func TestFailReplacesPartialContent(t *testing.T) {
	tr := New()
	id := tr.AppendPlaceholder()
	_ = tr.SetContent(id, "half an answ")

	tr.Fail(id, "Insufficient balance")

	m, _ := tr.Message(id)
	if m.Content != "Insufficient balance" {
		t.Fatalf("content = %q, want replacement only", m.Content)
	}
	if m.Streaming {
		t.Error("failed message still streaming")
	}
	// A second Fail on the finalized message must not overwrite it.
	tr.Fail(id, "other")
	m, _ = tr.Message(id)
	if m.Content != "Insufficient balance" {
		t.Errorf("content after late Fail = %q", m.Content)
	}
}

func TestErrorMarkerDoesNotFinalize(t *testing.T) {
	tr := New()
	id := tr.AppendPlaceholder()
	_ = tr.SetContent(id, "so far")

	tr.AppendErrorMarker(id, "rate limited")

	m, _ := tr.Message(id)
	if !m.Streaming {
		t.Error("in-band error should not finalize the message")
	}
	if !strings.Contains(m.Content, "[Error: rate limited]") {
		t.Errorf("content = %q, missing inline marker", m.Content)
	}
}

func TestBindChatIsIdempotent(t *testing.T) {
	tr := New()
	tr.BindChat(7)
	tr.BindChat(9)
	if got := tr.ChatID(); got != 7 {
		t.Fatalf("ChatID() = %d, want first binding to stick", got)
	}
}

func TestLoadReplacesHistory(t *testing.T) {
	tr := New()
	tr.AppendUser("old", "")
	tr.Load(3, []Message{
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "a"},
	})

	msgs := tr.Messages()
	if len(msgs) != 2 || tr.ChatID() != 3 {
		t.Fatalf("loaded %d messages, chat %d", len(msgs), tr.ChatID())
	}
	if msgs[0].ID >= msgs[1].ID {
		t.Error("loaded ids are not ordered")
	}
	for _, m := range msgs {
		if m.Streaming {
			t.Error("loaded history must not stream")
		}
	}
}

func TestRegenerateHelpers(t *testing.T) {
	tr := New()
	tr.AppendUser("first question", "")
	id := tr.AppendPlaceholder()
	_ = tr.SetContent(id, "answer")
	tr.Finalize(id)

	content, ok := tr.LastUserContent()
	if !ok || content != "first question" {
		t.Fatalf("LastUserContent() = %q, %v", content, ok)
	}

	tr.DropLastAssistant()
	if last, _ := tr.Last(); last.Role != RoleUser {
		t.Fatalf("after drop, last = %+v", last)
	}
}
