package platform

import (
	"bufio"
	"os"
	"strings"
)

const (
	SessionEnv         = "XDG_DESKTOP_SESSION"
	DefaultChassisPath = "/sys/class/dmi/id/chassis_type"
)

// SMBIOS chassis codes treated as desktop-class hardware.
var desktopChassisCodes = map[string]struct{}{
	"3":  {}, // Desktop
	"4":  {}, // Low Profile Desktop
	"6":  {}, // Mini Tower
	"7":  {}, // Tower
	"23": {}, // Rack Mount Chassis
	"24": {}, // Sealed-case PC
}

type Info struct {
	Session        string
	DesktopChassis bool
}

func (i Info) GNOME() bool { return IsGNOME(i.Session) }

type Probe struct {
	Getenv      func(string) string
	ChassisPath string
}

func NewProbe(chassisPath string) Probe {
	if strings.TrimSpace(chassisPath) == "" {
		chassisPath = DefaultChassisPath
	}
	return Probe{Getenv: os.Getenv, ChassisPath: chassisPath}
}

func (p Probe) Detect() Info {
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	code, err := readChassis(p.ChassisPath)
	return Info{
		Session:        getenv(SessionEnv),
		DesktopChassis: err == nil && IsDesktopChassis(code),
	}
}

func IsGNOME(session string) bool {
	return session == "gnome"
}

func IsDesktopChassis(code string) bool {
	_, ok := desktopChassisCodes[code]
	return ok
}

func readChassis(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if sc.Scan() {
		return sc.Text(), nil
	}
	return "", sc.Err()
}
