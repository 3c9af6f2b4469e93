package tui

import (
	"strings"
	"testing"
)

func TestRenderWelcome(t *testing.T) {
	t.Run("logged out shows login hint", func(t *testing.T) {
		out := renderWelcome("1.0.0", "", "", 80)
		if !strings.Contains(out, "Aster") {
			t.Error("welcome missing product name")
		}
		if !strings.Contains(out, "/login") {
			t.Error("welcome missing login hint")
		}
	})

	t.Run("logged in shows server and model", func(t *testing.T) {
		out := renderWelcome("1.0.0", "https://aster.chat", "gpt-test", 80)
		if !strings.Contains(out, "https://aster.chat") {
			t.Error("welcome missing server")
		}
		if !strings.Contains(out, "gpt-test") {
			t.Error("welcome missing model")
		}
	})

	t.Run("long server truncated", func(t *testing.T) {
		long := "https://" + strings.Repeat("a", 60) + ".example.com"
		out := renderWelcome("1.0.0", long, "", 80)
		if strings.Contains(out, long) {
			t.Error("long server url not truncated")
		}
	})
}

func TestRenderStarASCIIArt(t *testing.T) {
	out := renderStarASCIIArt()
	if out == "" {
		t.Fatal("empty logo")
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(stripANSI(line)) == "" && line != "" {
			t.Errorf("padded blank line survived trimming: %q", line)
		}
	}
}

func stripANSI(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc:
			if r == 'm' {
				inEsc = false
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func TestTruncateTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		width int
		want  string
	}{
		{"short untouched", "hello", 10, "hello"},
		{"exact untouched", "hello", 5, "hello"},
		{"long clipped", "hello world", 8, "hello w…"},
		{"wide runes respected", "日本語のタイトル", 6, "日本…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateTitle(tt.title, tt.width); got != tt.want {
				t.Errorf("truncateTitle(%q, %d) = %q, want %q", tt.title, tt.width, got, tt.want)
			}
		})
	}
}

func TestTailLines(t *testing.T) {
	s := "a\nb\nc\nd"
	if got := tailLines(s, 2); got != "c\nd" {
		t.Errorf("tailLines = %q", got)
	}
	if got := tailLines(s, 10); got != s {
		t.Errorf("tailLines with slack = %q, want unchanged", got)
	}
}

func TestIndent(t *testing.T) {
	if got := indent("a\n\nb", "  "); got != "  a\n\n  b" {
		t.Errorf("indent = %q", got)
	}
}
