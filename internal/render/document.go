package render

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// Document renders a complete saved transcript message with glamour, for
// the non-streaming views (chats show, export preview). Theme is the
// stored UI theme, "light" or "dark".
func Document(text string, width int, theme string) (string, error) {
	style := "dark"
	if theme == "light" {
		style = "light"
	}
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("creating renderer: %w", err)
	}
	out, err := r.Render(sanitize(text))
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return out, nil
}
