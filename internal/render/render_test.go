package render

import (
	"strings"
	"testing"
)

func TestRenderIsPure(t *testing.T) {
	texts := []string{
		"plain paragraph",
		"# Title\n\nsome **bold** and `code`",
		"```go\nfmt.Println(\"hi\")\n```",
		"<think>half a thou",
		"inline $x^2$ math",
	}
	r := NewPlain()
	for _, text := range texts {
		a := r.Render(text)
		b := r.Render(text)
		if a != b {
			t.Errorf("Render(%q) not deterministic", text)
		}
	}
}

func TestGrowingPrefixKeepsDecorations(t *testing.T) {
	full := "intro\n```python\nprint(1)\nprint(2)\n```\nafter $a+b$ done"
	r := NewPlain()
	var prev string
	for i := 1; i <= len(full); i++ {
		out := r.Render(full[:i])
		_ = prev
		prev = out
	}
	final := r.Render(full)
	if !strings.Contains(final, "┌─ python ─ ⧉ /copy") {
		t.Error("final render lost the code block header")
	}
	if !strings.Contains(final, ansiMagenta+ansiItalic+"a+b"+ansiReset) {
		t.Error("final render lost the math span styling")
	}
}

func TestUnterminatedCodeFenceStillBoxed(t *testing.T) {
	out := NewPlain().Render("```go\nfunc main() {")
	if !strings.Contains(out, "┌─ go ─ ⧉ /copy") {
		t.Fatalf("open fence not rendered as a block:\n%s", out)
	}
	if !strings.Contains(out, "func main() {") {
		t.Error("code body missing")
	}
}

func TestReasoningOpenThenClosed(t *testing.T) {
	r := NewPlain()

	open := r.Render("<think>step one\nstep two")
	if !strings.Contains(open, "▾ Reasoning") {
		t.Fatalf("unterminated reasoning should render open:\n%s", open)
	}
	if !strings.Contains(open, "step two") {
		t.Error("open reasoning should show its content")
	}

	closed := r.Render("<think>step one\nstep two</think>the answer")
	if !strings.Contains(closed, "▸ Reasoning · 2 lines hidden") {
		t.Fatalf("terminated reasoning should render collapsed:\n%s", closed)
	}
	if strings.Contains(closed, "step one") {
		t.Error("collapsed reasoning must hide its content")
	}
	if !strings.Contains(closed, "the answer") {
		t.Error("text after the reasoning block missing")
	}
}

func TestMultipleClosedReasoningSpans(t *testing.T) {
	out := NewPlain().Render("<think>a</think>mid<think>b\nc</think>end")
	if got := strings.Count(out, "▸ Reasoning"); got != 2 {
		t.Fatalf("collapsed span count = %d, want 2:\n%s", got, out)
	}
}

func TestSourceCannotInjectControlOrMarkup(t *testing.T) {
	r := NewPlain()

	out := r.Render("evil \x1b[31mred\x1b[0m <script>alert(1)</script> text")
	if strings.Contains(out, "\x1b[31m") {
		t.Error("raw escape sequence from source survived")
	}
	if strings.Contains(out, "<script>") {
		t.Error("script tag survived")
	}
	if !strings.Contains(out, "alert(1)") {
		// The tag is stripped, not the text; nothing executes in a terminal.
		t.Error("inner text should remain as plain text")
	}
}

func TestMathDelimiters(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"display dollars", "sum: $$\\sum_i x_i$$", "\\sum_i x_i"},
		{"inline dollars", "value $x=1$ here", "x=1"},
		{"paren form", `inline \(y^2\) here`, "y^2"},
		{"bracket form", `block \[z_3\] here`, "z_3"},
	}
	r := NewPlain()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Render(tt.in)
			if !strings.Contains(out, ansiMagenta+ansiItalic+tt.want+ansiReset) {
				t.Errorf("Render(%q) missing typeset %q:\n%s", tt.in, tt.want, out)
			}
		})
	}
}

func TestMathInsideCodeBlockUntouched(t *testing.T) {
	out := NewPlain().Render("```sh\necho $$PATH$$\n```")
	if strings.Contains(out, ansiMagenta) {
		t.Error("math typesetting leaked into a code block")
	}
}

func TestCodeBlocks(t *testing.T) {
	text := "before\n```go\nfmt.Println()\n```\nmiddle\n```\nplain\nlines\n```\nopen:\n```rust\nfn main()"
	blocks := CodeBlocks(text)
	if len(blocks) != 3 {
		t.Fatalf("CodeBlocks() = %d blocks, want 3", len(blocks))
	}
	if blocks[0].Lang != "go" || blocks[0].Code != "fmt.Println()" {
		t.Errorf("first block = %+v", blocks[0])
	}
	if blocks[1].Lang != "" || blocks[1].Code != "plain\nlines" {
		t.Errorf("second block = %+v", blocks[1])
	}
	if blocks[2].Lang != "rust" || blocks[2].Code != "fn main()" {
		t.Errorf("unterminated block = %+v", blocks[2])
	}
}

func TestHeadingAndListRendering(t *testing.T) {
	out := NewPlain().Render("## Section\n- item one\n1. numbered")
	if !strings.Contains(out, ansiBoldCyan+"Section"+ansiReset) {
		t.Error("heading style missing")
	}
	if !strings.Contains(out, "• item one") {
		t.Error("bullet missing")
	}
	if !strings.Contains(out, "1. numbered") {
		t.Error("numbered item missing")
	}
}
