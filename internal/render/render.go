// Package render turns raw assistant text into styled terminal output.
// Rendering is pure: the same input always produces the same output, and
// every decoration (code headers, highlighting, math styling, reasoning
// blocks) is re-derived from the raw text alone, so the pipeline can be
// re-run on every streaming delta without accumulating duplicates.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

const (
	ansiReset     = "\033[0m"
	ansiBold      = "\033[1m"
	ansiDim       = "\033[2m"
	ansiItalic    = "\033[3m"
	ansiUnderline = "\033[4m"
	ansiCyan      = "\033[36m"
	ansiMagenta   = "\033[35m"
	ansiBoldCyan  = "\033[1;36m"
)

const (
	reasoningOpenTag  = "<think>"
	reasoningCloseTag = "</think>"
)

var (
	htmlTagRe   = regexp.MustCompile(`<[^>]+>`)
	escapeRe    = regexp.MustCompile(`[\x1b\x9b]`)
	mathBlockRe = regexp.MustCompile(`\$\$([^$]+)\$\$|\\\[([^\]]+?)\\\]`)
	mathSpanRe  = regexp.MustCompile(`\$([^$\n]+)\$|\\\(([^)]+?)\\\)`)
)

// CodeBlock is one fenced block extracted from assistant text, used by the
// clipboard copy affordance.
type CodeBlock struct {
	Lang string
	Code string
}

// Renderer renders markdown-ish assistant text for the terminal.
type Renderer struct {
	highlight bool // chroma syntax highlighting for code blocks
}

func New() *Renderer {
	return &Renderer{highlight: true}
}

// NewPlain returns a renderer without syntax highlighting, for tests and
// dumb terminals.
func NewPlain() *Renderer {
	return &Renderer{}
}

// Render produces the styled form of text. Safe against hostile input:
// escape sequences and HTML in the source are neutralized before any of
// our own styling is applied, so source text can never inject terminal
// control or markup.
func (r *Renderer) Render(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range splitReasoning(sanitize(text)) {
		switch seg.kind {
		case segReasoningClosed:
			b.WriteString(r.renderReasoningClosed(seg.body))
		case segReasoningOpen:
			b.WriteString(r.renderReasoningOpen(seg.body))
		default:
			b.WriteString(r.renderMarkdown(seg.body))
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// CodeBlocks extracts all fenced code blocks, including an unterminated
// trailing fence still being streamed.
func CodeBlocks(text string) []CodeBlock {
	var blocks []CodeBlock
	var cur *CodeBlock
	for _, line := range strings.Split(sanitize(text), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if cur == nil {
				cur = &CodeBlock{Lang: strings.TrimSpace(trimmed[3:])}
			} else {
				cur.Code = strings.TrimSuffix(cur.Code, "\n")
				blocks = append(blocks, *cur)
				cur = nil
			}
			continue
		}
		if cur != nil {
			cur.Code += line + "\n"
		}
	}
	if cur != nil {
		cur.Code = strings.TrimSuffix(cur.Code, "\n")
		blocks = append(blocks, *cur)
	}
	return blocks
}

// ─── Sanitization ───────────────────────────────────────────────────────────

// sanitize neutralizes anything in the source that could act as markup or
// terminal control. Reasoning tags survive; they are consumed by
// splitReasoning before the generic tag strip.
func sanitize(s string) string {
	s = escapeRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "<br/>", "\n")
	s = strings.ReplaceAll(s, "<br />", "\n")
	s = strings.ReplaceAll(s, "<br>", "\n")
	return s
}

// stripTags removes residual HTML outside code blocks.
func stripTags(s string) string {
	return htmlTagRe.ReplaceAllString(s, "")
}

// ─── Reasoning blocks ───────────────────────────────────────────────────────

type segmentKind int

const (
	segNormal segmentKind = iota
	segReasoningClosed
	segReasoningOpen
)

type segment struct {
	kind segmentKind
	body string
}

// splitReasoning cuts text into normal and reasoning segments. A closing
// tag makes the span collapsed; an opening tag without its close means the
// model is still mid-thought, and the whole remainder is open reasoning.
func splitReasoning(text string) []segment {
	var segs []segment
	for {
		open := strings.Index(text, reasoningOpenTag)
		if open < 0 {
			break
		}
		if open > 0 {
			segs = append(segs, segment{segNormal, text[:open]})
		}
		rest := text[open+len(reasoningOpenTag):]
		closeIdx := strings.Index(rest, reasoningCloseTag)
		if closeIdx < 0 {
			segs = append(segs, segment{segReasoningOpen, rest})
			return segs
		}
		segs = append(segs, segment{segReasoningClosed, rest[:closeIdx]})
		text = rest[closeIdx+len(reasoningCloseTag):]
	}
	if text != "" {
		segs = append(segs, segment{segNormal, text})
	}
	return segs
}

func (r *Renderer) renderReasoningClosed(body string) string {
	n := 0
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return fmt.Sprintf("%s▸ Reasoning · %d lines hidden%s\n", ansiDim, n, ansiReset)
}

func (r *Renderer) renderReasoningOpen(body string) string {
	var b strings.Builder
	b.WriteString(ansiDim + "▾ Reasoning" + ansiReset + "\n")
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		b.WriteString(fmt.Sprintf("%s│ %s%s\n", ansiDim, stripTags(line), ansiReset))
	}
	return b.String()
}

// ─── Markdown ───────────────────────────────────────────────────────────────

func (r *Renderer) renderMarkdown(text string) string {
	var b strings.Builder
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "```") {
			lang := strings.TrimSpace(trimmed[3:])
			var code []string
			j := i + 1
			for ; j < len(lines); j++ {
				if strings.TrimSpace(lines[j]) == "```" {
					break
				}
				code = append(code, lines[j])
			}
			b.WriteString(r.renderCodeBlock(lang, code))
			i = j
			continue
		}
		b.WriteString(typesetMath(r.renderLine(lines[i])))
		b.WriteString("\n")
	}
	return b.String()
}

// renderCodeBlock draws a bordered block with the language tag and the
// copy affordance in the header. An unterminated fence (mid-stream) is
// rendered the same way; when the closing fence arrives the output for the
// completed block is identical.
func (r *Renderer) renderCodeBlock(lang string, code []string) string {
	label := lang
	if label == "" {
		label = "code"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s┌─ %s ─ ⧉ /copy%s\n", ansiDim, label, ansiReset)
	for _, line := range r.highlightCode(lang, code) {
		fmt.Fprintf(&b, "%s│%s %s\n", ansiDim, ansiReset, line)
	}
	fmt.Fprintf(&b, "%s└──%s\n", ansiDim, ansiReset)
	return b.String()
}

func (r *Renderer) highlightCode(lang string, code []string) []string {
	if !r.highlight || lang == "" || len(code) == 0 {
		return code
	}
	var buf strings.Builder
	if err := quick.Highlight(&buf, strings.Join(code, "\n"), lang, "terminal256", "monokai"); err != nil {
		return code
	}
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func (r *Renderer) renderLine(line string) string {
	trimmed := strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(trimmed, "#### "):
		return ansiBold + stripTags(trimmed[5:]) + ansiReset
	case strings.HasPrefix(trimmed, "### "):
		return ansiBold + stripTags(trimmed[4:]) + ansiReset
	case strings.HasPrefix(trimmed, "## "):
		return ansiBoldCyan + stripTags(trimmed[3:]) + ansiReset
	case strings.HasPrefix(trimmed, "# "):
		return ansiBoldCyan + stripTags(trimmed[2:]) + ansiReset
	case trimmed == "---" || trimmed == "***" || trimmed == "___":
		return ansiDim + strings.Repeat("─", 40) + ansiReset
	case strings.HasPrefix(trimmed, "> "):
		return ansiDim + "│ " + ansiReset + renderInline(stripTags(trimmed[2:]))
	}

	indent := len(line) - len(strings.TrimLeft(line, " \t"))
	pad := strings.Repeat(" ", indent)

	if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
		return pad + "• " + renderInline(stripTags(trimmed[2:]))
	}

	if dotIdx := strings.Index(trimmed, ". "); dotIdx > 0 && dotIdx <= 3 && allDigits(trimmed[:dotIdx]) {
		return pad + trimmed[:dotIdx] + ". " + renderInline(stripTags(trimmed[dotIdx+2:]))
	}

	return renderInline(stripTags(line))
}

// typesetMath styles math spans after markup generation, mirroring how the
// web client runs its typesetter over the generated markup.
func typesetMath(line string) string {
	style := func(groups ...string) string {
		for _, g := range groups {
			if g != "" {
				return ansiMagenta + ansiItalic + g + ansiReset
			}
		}
		return ""
	}
	line = mathBlockRe.ReplaceAllStringFunc(line, func(m string) string {
		sub := mathBlockRe.FindStringSubmatch(m)
		return style(sub[1], sub[2])
	})
	return mathSpanRe.ReplaceAllStringFunc(line, func(m string) string {
		sub := mathSpanRe.FindStringSubmatch(m)
		return style(sub[1], sub[2])
	})
}

func renderInline(text string) string {
	var out strings.Builder
	i := 0
	for i < len(text) {
		if i+3 < len(text) && text[i] == '*' && text[i+1] == '*' {
			end := strings.Index(text[i+2:], "**")
			if end > 0 {
				out.WriteString(ansiBold)
				out.WriteString(renderInline(text[i+2 : i+2+end]))
				out.WriteString(ansiReset)
				i += 4 + end
				continue
			}
		}

		if text[i] == '*' && (i == 0 || text[i-1] == ' ') {
			end := strings.IndexByte(text[i+1:], '*')
			if end > 0 {
				out.WriteString(ansiItalic)
				out.WriteString(text[i+1 : i+1+end])
				out.WriteString(ansiReset)
				i += 2 + end
				continue
			}
		}

		if text[i] == '`' {
			end := strings.IndexByte(text[i+1:], '`')
			if end >= 0 {
				out.WriteString(ansiCyan)
				out.WriteString(text[i+1 : i+1+end])
				out.WriteString(ansiReset)
				i += 2 + end
				continue
			}
		}

		if text[i] == '[' {
			cb := strings.IndexByte(text[i:], ']')
			if cb > 1 && i+cb+1 < len(text) && text[i+cb+1] == '(' {
				cp := strings.IndexByte(text[i+cb+1:], ')')
				if cp > 0 {
					out.WriteString(ansiUnderline)
					out.WriteString(text[i+1 : i+cb])
					out.WriteString(ansiReset)
					out.WriteString(ansiDim)
					out.WriteString(" (")
					out.WriteString(text[i+cb+2 : i+cb+1+cp])
					out.WriteString(")")
					out.WriteString(ansiReset)
					i += cb + 1 + cp + 1
					continue
				}
			}
		}

		out.WriteByte(text[i])
		i++
	}
	return out.String()
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
