package ui

const (
	compactHeaderHeight = 3
	logoHeaderHeight    = 6

	minWidth     = 44
	minPageH     = 7
	minLogH      = 4
	maxLogH      = 10
	footerHeight = 1
)

const logoText = `
 ___ _         _   _
| _ ) |__ _ __| |_| |__  _____ __
| _ \ / _' / _| / / '_ \/ _ \ \ /
|___/_\__,_\__|_\_\_.__/\___/_\_\
`

type layoutState struct {
	width  int
	height int

	headerH int
	pageH   int
	logH    int

	showLogo bool
	tooSmall bool
}

func (m *Model) reflow() {
	if m.width <= 0 || m.height <= 0 {
		return
	}

	m.layout = computeLayout(m.width, max(0, m.height-footerHeight))
	if m.layout.tooSmall {
		return
	}

	m.logVP.Width = panelContentWidth(m.layout.width)
	m.logVP.Height = panelBodyHeight(m.layout.logH)
	m.logVP.SetContent(m.renderLogStream(m.logVP.Width))
	if m.followLogs {
		m.logVP.GotoBottom()
	}
	m.help.Width = m.width
}

func computeLayout(width int, height int) layoutState {
	if height >= logoHeaderHeight+minPageH+minLogH+6 {
		if l := computeLayoutWithHeader(width, height, true); !l.tooSmall {
			return l
		}
	}
	return computeLayoutWithHeader(width, height, false)
}

func computeLayoutWithHeader(width int, height int, showLogo bool) layoutState {
	headerH := compactHeaderHeight
	if showLogo {
		headerH = logoHeaderHeight
	}
	l := layoutState{
		width:    width,
		height:   height,
		headerH:  headerH,
		showLogo: showLogo,
	}
	if width < minWidth || height < headerH+minPageH+minLogH {
		l.tooSmall = true
		return l
	}

	rest := height - headerH
	l.logH = min(maxLogH, max(minLogH, rest/3))
	l.pageH = rest - l.logH
	if l.pageH < minPageH {
		l.logH = max(minLogH, rest-minPageH)
		l.pageH = rest - l.logH
	}
	return l
}
