package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/wordwrap"

	"github.com/snigdhaos/blackbox/internal/domain"
)

const appTitle = "Snigdha OS Blackbox"

func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "Loading…"
	}

	usableH := max(0, m.height-footerHeight)
	footer := m.footerHints()
	if usableH == 0 {
		return footer
	}

	if m.layout.width != m.width || m.layout.height != usableH {
		m.reflow()
	}

	var body string
	switch {
	case m.layout.tooSmall:
		body = minSizeView(m.width, usableH)
	case !m.haveView:
		line := m.spin.View() + " Starting…"
		body = lipgloss.Place(m.width, usableH, lipgloss.Center, lipgloss.Center, line)
	default:
		header := m.renderHeader(m.width, m.layout.showLogo)
		page := panel(m.view.Title, m.renderPage(panelContentWidth(m.width), panelBodyHeight(m.layout.pageH)), m.width, m.layout.pageH)
		logs := panel("Log", m.logVP.View(), m.width, m.layout.logH)
		body = lipgloss.JoinVertical(lipgloss.Top, header, page, logs)
	}
	return lipgloss.JoinVertical(lipgloss.Top, body, footer)
}

func (m *Model) footerHints() string {
	page := domain.PageKind("")
	if m.haveView {
		page = m.view.Page
	}
	hint := truncateANSI(m.help.View(hints{keys: m.keys, page: page}), m.width)
	return lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, hint)
}

func (m *Model) renderHeader(width int, showLogo bool) string {
	if showLogo {
		if h, ok := m.renderLogoHeader(width); ok {
			return h
		}
	}
	contentW := panelContentWidth(width)
	line := versionStyle.Render(formatVersion(m.meta.Version)) + "  " + taglineStyle.Render(m.tagline())
	return panel(appTitle, truncateANSI(line, contentW), width, compactHeaderHeight)
}

func (m *Model) renderLogoHeader(width int) (string, bool) {
	innerW := panelContentWidth(width)
	innerH := panelBodyHeight(logoHeaderHeight)

	logoLines := splitLines(strings.TrimLeft(logoText, "\n"))
	if len(logoLines) == 0 || len(logoLines) > innerH {
		return "", false
	}
	logoW := 0
	for _, l := range logoLines {
		logoW = max(logoW, lipgloss.Width(l))
	}

	const gap = 3
	metaW := innerW - logoW - gap
	if metaW < 12 {
		return "", false
	}
	meta := []string{
		versionStyle.Render(cutPlain(formatVersion(m.meta.Version), metaW)),
		taglineStyle.Render(cutPlain(m.tagline(), metaW)),
	}
	metaTop := max(0, (len(logoLines)-len(meta))/2)

	lines := make([]string, 0, len(logoLines))
	for i, l := range logoLines {
		right := ""
		if j := i - metaTop; j >= 0 && j < len(meta) {
			right = meta[j]
		}
		lines = append(lines, logoStyle.Render(padRight(l, logoW))+strings.Repeat(" ", gap)+right)
	}
	return panel(appTitle, strings.Join(lines, "\n"), width, logoHeaderHeight), true
}

func (m *Model) tagline() string {
	if t := strings.TrimSpace(m.meta.Tagline); t != "" {
		return t
	}
	return "First steps on your new system"
}

func formatVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		v = "dev"
	}
	if strings.HasPrefix(strings.ToLower(v), "v") {
		return v
	}
	if v[0] >= '0' && v[0] <= '9' {
		return "v" + v
	}
	return v
}

func (m *Model) renderPage(width int, height int) string {
	switch m.view.Page {
	case domain.PageSelect:
		return m.renderSelect(width, height)
	case domain.PageWaiting:
		return m.renderWaiting(width, height)
	default:
		return m.renderText(width, height)
	}
}

func (m *Model) renderText(width int, height int) string {
	bodyH := max(0, height-2)
	lines := splitLines(wordwrap.String(m.view.Message, width))
	if len(lines) > bodyH {
		lines = lines[:bodyH]
	}
	for len(lines) < bodyH {
		lines = append(lines, "")
	}
	lines = append(lines, "", m.renderButtons(width, true))
	return strings.Join(lines, "\n")
}

func (m *Model) renderWaiting(width int, height int) string {
	lines := []string{m.spin.View() + " " + activeStyle.Render(m.view.Message)}
	if p := m.probe; p != nil {
		lines = append(lines, "", mutedStyle.Render(truncatePlain(fmt.Sprintf("Attempt %d · %s", p.attempt, p.url), width)))
		if p.deadline > 0 {
			pct := float64(time.Since(p.started)) / float64(p.deadline)
			bar := m.progress
			bar.Width = max(5, min(width, 40))
			lines = append(lines, bar.ViewAs(min(1, max(0, pct))))
		}
	}
	block := strings.Join(lines, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, block)
}

func (m *Model) renderSelect(width int, height int) string {
	out := []string{m.renderTabs(width), ""}

	listH := max(0, height-len(out)-2)
	tab, ok := m.currentTab()
	switch {
	case !ok:
		out = append(out, mutedStyle.Render(truncatePlain("Nothing to pick on this tab.", width)))
		listH--
	default:
		cur := min(m.cursors[m.tab], len(tab.Bundles)-1)
		first := 0
		if cur >= listH && listH > 0 {
			first = cur - listH + 1
		}
		for i := first; i < len(tab.Bundles) && i < first+listH; i++ {
			out = append(out, m.renderBundle(tab.Bundles[i], i == cur && m.focus == focusList, width))
		}
		listH -= min(listH, len(tab.Bundles)-first)
	}
	for ; listH > 0; listH-- {
		out = append(out, "")
	}
	out = append(out, "", m.renderButtons(width, m.focus == focusButtons))
	return strings.Join(out, "\n")
}

func (m *Model) renderTabs(width int) string {
	parts := make([]string, 0, len(m.view.Tabs))
	for i, t := range m.view.Tabs {
		style := tabStyle
		if i == m.tab {
			style = tabActiveStyle
		}
		parts = append(parts, style.Render(" "+t.Label+" "))
	}
	return truncateANSI(strings.Join(parts, mutedStyle.Render("│")), width)
}

func (m *Model) renderBundle(b domain.BundleDescriptor, current bool, width int) string {
	mark := "[ ]"
	if m.checked[b.ID] {
		mark = okStyle.Render("[x]")
	}
	prefix := "  "
	label := b.Label
	if strings.TrimSpace(label) == "" {
		label = strings.Join(b.Packages, " ")
	}
	if current {
		prefix = cursorStyle.Render("> ")
		label = cursorStyle.Render(label)
	}
	line := prefix + mark + " " + label
	if pkgs := strings.Join(b.Packages, " "); pkgs != "" && pkgs != b.Label {
		line += " " + mutedStyle.Render("("+pkgs+")")
	}
	return truncateANSI(line, width)
}

func (m *Model) renderButtons(width int, focused bool) string {
	parts := make([]string, 0, len(m.view.Buttons))
	for i, b := range m.view.Buttons {
		text := "[ " + b.Label() + " ]"
		if focused && i == m.button {
			parts = append(parts, buttonFocusedStyle.Render(text))
			continue
		}
		parts = append(parts, buttonStyle.Render(text))
	}
	row := strings.Join(parts, "  ")
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, truncateANSI(row, width))
}

func (m *Model) renderLogStream(width int) string {
	if len(m.logs) == 0 {
		return mutedStyle.Render(truncatePlain("(no logs yet)", width))
	}
	lines := make([]string, 0, len(m.logs))
	for _, e := range m.logs {
		ts := e.TS
		if ts.IsZero() {
			ts = time.Now()
		}
		prefix, style := logPrefix(e.Level)
		timeStr := ts.Format("15:04:05")
		line := timeStr + " " + style.Render(prefix) + " " + ansi.Strip(e.Message)
		lines = append(lines, truncateANSI(line, width))
	}
	return strings.Join(lines, "\n")
}

func logPrefix(level domain.LogLevel) (string, lipgloss.Style) {
	switch level {
	case domain.LogError:
		return "✖", errStyle
	case domain.LogWarning:
		return "⚠", warnStyle
	default:
		return "•", mutedStyle
	}
}
