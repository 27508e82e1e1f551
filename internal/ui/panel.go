package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	reflowtruncate "github.com/muesli/reflow/truncate"
)

// panel draws a bordered box of exactly width x height with title inlined in
// the top border.
func panel(title string, body string, width int, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	border := panelBorder
	innerW := max(0, width-2)
	innerH := max(0, height-2)
	contentW := panelContentWidth(width)

	lines := fitLines(body, contentW, innerH)
	for len(lines) < innerH {
		lines = append(lines, strings.Repeat(" ", contentW))
	}

	out := make([]string, 0, height)
	out = append(out, topBorderWithTitle(width, title, border))
	for _, l := range lines {
		out = append(out, border.Left+" "+padRight(truncateANSI(l, contentW), contentW)+" "+border.Right)
	}
	out = append(out, border.BottomLeft+strings.Repeat(border.Bottom, innerW)+border.BottomRight)
	return strings.Join(out, "\n")
}

func topBorderWithTitle(width int, title string, border lipgloss.Border) string {
	fillW := width - lipgloss.Width(border.TopLeft) - lipgloss.Width(border.TopRight)
	if fillW < 0 {
		return ""
	}
	title = strings.TrimSpace(title)
	maxTitleW := fillW - lipgloss.Width(border.Top) - 2
	if title == "" || maxTitleW <= 0 {
		return border.TopLeft + repeatToWidth(border.Top, fillW) + border.TopRight
	}

	block := border.Top + " " + panelTitleStyle.Render(cutPlain(title, maxTitleW)) + " "
	if lipgloss.Width(block) > fillW {
		// Never end the border with an ellipsis.
		block = reflowtruncate.StringWithTail(block, uint(fillW), "")
	}
	rest := max(0, fillW-lipgloss.Width(block))
	return border.TopLeft + block + repeatToWidth(border.Top, rest) + border.TopRight
}

func repeatToWidth(s string, width int) string {
	if width <= 0 || s == "" {
		return ""
	}
	cellW := lipgloss.Width(s)
	if cellW <= 0 {
		return ""
	}
	return cutPlain(strings.Repeat(s, width/cellW+1), width)
}

func panelContentWidth(panelWidth int) int {
	// Border: 2, horizontal padding: 2.
	return max(0, panelWidth-4)
}

func panelBodyHeight(panelHeight int) int {
	return max(0, panelHeight-2)
}

func fitLines(s string, width int, height int) []string {
	if height <= 0 || width <= 0 {
		return nil
	}
	raw := splitLines(s)
	out := make([]string, 0, height)
	for i := 0; i < height; i++ {
		line := ""
		if i < len(raw) {
			line = raw[i]
		}
		out = append(out, padRight(truncateANSI(line, width), width))
	}
	return out
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func padRight(s string, width int) string {
	if width <= 0 {
		return ""
	}
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func cutPlain(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "")
}

func truncatePlain(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 1 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "…")
}

func truncateANSI(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	if width <= 1 {
		return reflowtruncate.String(s, uint(width))
	}
	return reflowtruncate.StringWithTail(s, uint(width), "…")
}

func minSizeView(width int, height int) string {
	if width <= 0 || height <= 0 {
		return "Increase terminal size"
	}
	msgText := "Increase terminal size"
	if width < 22 {
		msgText = "Increase size"
	}
	msg := lipgloss.NewStyle().Bold(true).Render(truncatePlain(msgText, width))
	sub := lipgloss.NewStyle().Faint(true).Render(truncatePlain(fmt.Sprintf("Current: %dx%d", width, height), width))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, msg+"\n"+sub)
}
