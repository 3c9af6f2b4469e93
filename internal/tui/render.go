package tui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// ─── Welcome Screen ─────────────────────────────────────────────────────────

func renderWelcome(version, server, model string, width int) string {
	titleLine := logoTitleStyle.Render("Aster") + " " + versionStyle.Render("v"+version)

	var infoLine string
	if server == "" {
		infoLine = welcomeHintStyle.Render("Type /login to get started")
	} else {
		serverDisplay := server
		if len(serverDisplay) > 40 {
			serverDisplay = serverDisplay[:37] + "..."
		}
		modelDisplay := dimStyle.Render("default model")
		if model != "" {
			modelDisplay = model
			if len(modelDisplay) > 36 {
				modelDisplay = modelDisplay[:33] + "..."
			}
		}
		infoLine = welcomeInfoLabel.Render(fmt.Sprintf("%s · %s", serverDisplay, modelDisplay))
	}

	star := renderStarASCIIArt()
	return fmt.Sprintf("\n%s\n\n%s\n%s\n", star, titleLine, infoLine)
}

const starASCIIArt = `
               *
              ***
             *****
     ***************++***
       ***********++*****
         *******++*******
        ******+++++******
       *****+++++++++*****
      ****+++++*****++****
     *****+++*********++*****
    ***+++*****     *****+++***
        *****         *****
`

func renderStarASCIIArt() string {
	lines := strings.Split(starASCIIArt, "\n")
	lines = trimEmptyEdgeLines(lines)

	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := countLeadingSpaces(line)
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}

	for i, line := range lines {
		line = strings.TrimRight(line, " ")
		if minIndent > 0 && len(line) >= minIndent {
			line = line[minIndent:]
		}
		lines[i] = colorizeStarLine(line)
	}

	return strings.Join(lines, "\n")
}

func trimEmptyEdgeLines(lines []string) []string {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}

	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

func countLeadingSpaces(s string) int {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	return i
}

func colorizeStarLine(line string) string {
	const (
		stylePlain = iota
		styleBody
		styleCore
	)

	styleFor := func(r rune) int {
		switch r {
		case '*', '%', '@':
			return styleBody
		case '+', '#':
			return styleCore
		default:
			return stylePlain
		}
	}

	render := func(style int, s string) string {
		switch style {
		case styleBody:
			return logoBodyStyle.Render(s)
		case styleCore:
			return logoCoreStyle.Render(s)
		default:
			return s
		}
	}

	var out strings.Builder
	var run strings.Builder
	currentStyle := stylePlain
	first := true

	flush := func() {
		if run.Len() == 0 {
			return
		}
		out.WriteString(render(currentStyle, run.String()))
		run.Reset()
	}

	for _, r := range line {
		nextStyle := styleFor(r)
		if first {
			currentStyle = nextStyle
			first = false
		} else if nextStyle != currentStyle {
			flush()
			currentStyle = nextStyle
		}
		run.WriteRune(r)
	}

	flush()
	return out.String()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// truncateTitle clips a chat title to the given display width, aware of
// wide runes so CJK titles do not overflow the column.
func truncateTitle(title string, width int) string {
	if runewidth.StringWidth(title) <= width {
		return title
	}
	return runewidth.Truncate(title, width, "…")
}

// tailLines returns the last n lines of s.
func tailLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
