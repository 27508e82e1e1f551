package catalog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snigdhaos/blackbox/internal/platform"
)

const webappFixture = `true
firefox
Firefox Browser
false
libreoffice-fresh hunspell-en_us
LibreOffice Suite
true
thunderbird
Thunderbird Mail
`

func TestLoadTriples(t *testing.T) {
	t.Parallel()

	tab, err := Load(strings.NewReader(webappFixture), "WEBAPP")
	require.NoError(t, err)
	require.Equal(t, "WEBAPP", tab.Label)
	require.Len(t, tab.Bundles, 3)

	require.True(t, tab.Bundles[0].DefaultOn)
	require.Equal(t, []string{"firefox"}, tab.Bundles[0].Packages)
	require.Equal(t, "Firefox Browser", tab.Bundles[0].Label)
	require.Equal(t, "WEBAPP/0", tab.Bundles[0].ID)

	require.False(t, tab.Bundles[1].DefaultOn)
	require.Equal(t, []string{"libreoffice-fresh", "hunspell-en_us"}, tab.Bundles[1].Packages)
	require.Equal(t, "WEBAPP/2", tab.Bundles[2].ID)
}

func TestLoadDefaultFlagIsExactTrue(t *testing.T) {
	t.Parallel()

	tab, err := Load(strings.NewReader("True\na\nA\nyes\nb\nB\n"), "X")
	require.NoError(t, err)
	require.Len(t, tab.Bundles, 2)
	require.False(t, tab.Bundles[0].DefaultOn)
	require.False(t, tab.Bundles[1].DefaultOn)
}

func TestLoadIncompleteTrailingRecord(t *testing.T) {
	t.Parallel()

	tab, err := Load(strings.NewReader("true\nfirefox\nFirefox\ntrue\nvlc"), "X")
	require.NoError(t, err)
	require.Len(t, tab.Bundles, 2)
	require.Equal(t, []string{"vlc"}, tab.Bundles[1].Packages)
	require.Equal(t, "", tab.Bundles[1].Label)
}

func TestFormatRoundTrip(t *testing.T) {
	t.Parallel()

	tab, err := Load(strings.NewReader(webappFixture), "WEBAPP")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Format(&buf, tab))
	require.Equal(t, strings.TrimRight(webappFixture, "\n"), strings.TrimRight(buf.String(), "\n"))
}

func TestFormatKeepsDefaultLine(t *testing.T) {
	t.Parallel()

	const src = "yes\nfirefox\nFirefox\nTrue\nvlc\nVLC\n"
	tab, err := Load(strings.NewReader(src), "WEBAPP")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Format(&buf, tab))
	require.Equal(t, src, buf.String())

	// A changed flag is written in canonical form.
	tab.Bundles[0].DefaultOn = true
	buf.Reset()
	require.NoError(t, Format(&buf, tab))
	require.True(t, strings.HasPrefix(buf.String(), "true\nfirefox\n"))
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "webapp.txt"), "WEBAPP")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnreadable))
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "webapp.txt")
	require.NoError(t, os.WriteFile(p, []byte(webappFixture), 0o644))

	tab, err := LoadFile(p, "WEBAPP")
	require.NoError(t, err)
	require.Len(t, tab.Bundles, 3)
}

func TestLoadBaseConditions(t *testing.T) {
	t.Parallel()

	doc := []byte(`
label: BASE
bundles:
  - id: gnome
    label: GNOME
    when: gnome
    packages: [gnome-tweaks]
  - id: perf
    label: Performance
    when: desktop-chassis
    default: true
    packages: [irqbalance]
    setup: [systemctl enable --now irqbalance.service]
  - id: always
    label: Always
    packages: [flatpak]
    prepare: [echo prepare]
`)

	tab, err := LoadBase(doc, platform.Info{})
	require.NoError(t, err)
	require.Len(t, tab.Bundles, 1)
	require.Equal(t, "BASE/always", tab.Bundles[0].ID)
	require.Equal(t, []string{"echo prepare"}, tab.Bundles[0].Prepare)

	tab, err = LoadBase(doc, platform.Info{Session: "gnome", DesktopChassis: true})
	require.NoError(t, err)
	require.Len(t, tab.Bundles, 3)
	require.True(t, tab.Bundles[1].DefaultOn)
	require.Equal(t, []string{"systemctl enable --now irqbalance.service"}, tab.Bundles[1].Setup)
}

func TestLoadBaseRejectsBadDocuments(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no label":     "bundles: []\n",
		"no id":        "label: B\nbundles:\n  - label: x\n",
		"duplicate id": "label: B\nbundles:\n  - id: a\n  - id: a\n",
		"bad when":     "label: B\nbundles:\n  - id: a\n    when: laptop\n",
		"not yaml":     "label: [\n",
	}
	for name, doc := range cases {
		_, err := LoadBase([]byte(doc), platform.Info{})
		require.Error(t, err, name)
	}
}

func TestEmbeddedBaseLoads(t *testing.T) {
	t.Parallel()

	tab, err := LoadBaseFile("", platform.Info{Session: "gnome", DesktopChassis: true})
	require.NoError(t, err)
	require.NotEmpty(t, tab.Bundles)

	hidden, err := LoadBase(DefaultBase(), platform.Info{})
	require.NoError(t, err)
	require.Less(t, len(hidden.Bundles), len(tab.Bundles))
}
