package main

import (
	"fmt"
)

// ANSI color helpers
const (
	violet = "\033[38;2;139;114;245m"
	gray   = "\033[38;5;242m"
	white  = "\033[1;37m"
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
)

func main() {
	info1 := white + "Aster CLI " + gray + "v0.1.0" + reset
	info2 := gray + "aster.chat · gpt-4o" + reset

	fmt.Println()
	fmt.Println(bold + "═══ Pick a star logo ═══" + reset)

	// ── Option A: Four-pointed star ──
	fmt.Println()
	fmt.Println(dim + "Option A — Four-pointed star" + reset)
	fmt.Println()
	fmt.Printf("      %s▄%s\n", violet, reset)
	fmt.Printf("   %s▄▄█%s%s◆%s%s█▄▄%s   %s\n", violet, reset, white, reset, violet, reset, info1)
	fmt.Printf("      %s█%s      %s\n", violet, reset, info2)
	fmt.Printf("      %s▀%s\n", violet, reset)

	// ── Option B: Sparkle ──
	fmt.Println()
	fmt.Println(dim + "Option B — Sparkle" + reset)
	fmt.Println()
	fmt.Printf("    %s·%s %s✦%s %s·%s    %s\n", gray, reset, violet, reset, gray, reset, info1)
	fmt.Printf("   %s✧%s %s✦✦✦%s %s✧%s   %s\n", gray, reset, violet, reset, gray, reset, info2)
	fmt.Printf("    %s·%s %s✦%s %s·%s\n", gray, reset, violet, reset, gray, reset)

	// ── Option C: Faceted core ──
	fmt.Println()
	fmt.Println(dim + "Option C — Faceted core (current)" + reset)
	fmt.Println()
	fmt.Printf("      %s*%s\n", violet, reset)
	fmt.Printf("   %s***%s%s+++%s%s***%s   %s\n", violet, reset, white, reset, violet, reset, info1)
	fmt.Printf("   %s**%s %s+++++%s %s**%s   %s\n", violet, reset, white, reset, violet, reset, info2)
	fmt.Printf("      %s*%s\n", violet, reset)

	// ── Option D: Comet ──
	fmt.Println()
	fmt.Println(dim + "Option D — Comet" + reset)
	fmt.Println()
	fmt.Printf("   %s∙ ∙∙%s%s●%s%s━━━━▶%s   %s\n", gray, reset, white, reset, violet, reset, info1)
	fmt.Printf("   %s  ∙∙%s          %s\n", gray, reset, info2)

	fmt.Println()
	fmt.Println(dim + "Which one? (A/B/C/D)" + reset)
	fmt.Println()
}
