package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func writeChassis(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "chassis_type")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write chassis: %v", err)
	}
	return p
}

func TestDetectChassis(t *testing.T) {
	t.Parallel()

	cases := []struct {
		content string
		want    bool
	}{
		{"3\n", true},
		{"4\n", true},
		{"6\n", true},
		{"7\n", true},
		{"23\n", true},
		{"24", true},
		{"10\n", false}, // notebook
		{"9\n", false},
		{"", false},
		{" 3\n", false},
	}

	for _, tc := range cases {
		p := Probe{Getenv: func(string) string { return "" }, ChassisPath: writeChassis(t, tc.content)}
		if got := p.Detect().DesktopChassis; got != tc.want {
			t.Fatalf("chassis %q => %v; want %v", tc.content, got, tc.want)
		}
	}
}

func TestDetectMissingChassisFile(t *testing.T) {
	t.Parallel()

	p := Probe{Getenv: func(string) string { return "" }, ChassisPath: filepath.Join(t.TempDir(), "missing")}
	if p.Detect().DesktopChassis {
		t.Fatalf("missing chassis file must not report a desktop chassis")
	}
}

func TestDetectSession(t *testing.T) {
	t.Parallel()

	env := map[string]string{}
	p := Probe{Getenv: func(k string) string { return env[k] }, ChassisPath: filepath.Join(t.TempDir(), "missing")}

	if p.Detect().GNOME() {
		t.Fatalf("unset session must not enable GNOME tweaks")
	}
	env[SessionEnv] = "GNOME"
	if p.Detect().GNOME() {
		t.Fatalf("session match is case-sensitive")
	}
	env[SessionEnv] = "gnome"
	if !p.Detect().GNOME() {
		t.Fatalf("gnome session must enable GNOME tweaks")
	}
}
