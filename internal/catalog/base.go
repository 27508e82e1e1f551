package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/snigdhaos/blackbox/internal/domain"
	"github.com/snigdhaos/blackbox/internal/platform"
)

//go:embed base.yaml
var defaultBase []byte

const (
	WhenGNOME          = "gnome"
	WhenDesktopChassis = "desktop-chassis"
)

type baseDocument struct {
	Label   string       `yaml:"label"`
	Bundles []baseBundle `yaml:"bundles"`
}

type baseBundle struct {
	ID       string   `yaml:"id"`
	Label    string   `yaml:"label"`
	When     string   `yaml:"when"`
	Default  bool     `yaml:"default"`
	Packages []string `yaml:"packages"`
	Setup    []string `yaml:"setup"`
	Prepare  []string `yaml:"prepare"`
}

// DefaultBase returns the embedded base tab document.
func DefaultBase() []byte {
	return append([]byte(nil), defaultBase...)
}

// LoadBaseFile loads a base tab document from path, or the embedded document
// when path is empty.
func LoadBaseFile(path string, info platform.Info) (domain.CatalogTab, error) {
	if strings.TrimSpace(path) == "" {
		return LoadBase(defaultBase, info)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.CatalogTab{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return LoadBase(data, info)
}

// LoadBase decodes the static tab. Bundles whose condition does not hold on
// this host are left out.
func LoadBase(data []byte, info platform.Info) (domain.CatalogTab, error) {
	var doc baseDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.CatalogTab{}, fmt.Errorf("base catalog: %w", err)
	}
	label := strings.TrimSpace(doc.Label)
	if label == "" {
		return domain.CatalogTab{}, errors.New("base catalog: missing label")
	}

	tab := domain.CatalogTab{Label: label}
	seen := map[string]bool{}
	for i, b := range doc.Bundles {
		id := strings.TrimSpace(b.ID)
		if id == "" {
			return domain.CatalogTab{}, fmt.Errorf("base catalog: bundle %d has no id", i)
		}
		if seen[id] {
			return domain.CatalogTab{}, fmt.Errorf("base catalog: duplicate bundle id %q", id)
		}
		seen[id] = true

		show, err := conditionHolds(b.When, info)
		if err != nil {
			return domain.CatalogTab{}, fmt.Errorf("base catalog: bundle %q: %w", id, err)
		}
		if !show {
			continue
		}
		tab.Bundles = append(tab.Bundles, domain.BundleDescriptor{
			ID:        label + "/" + id,
			DefaultOn: b.Default,
			Packages:  append([]string(nil), b.Packages...),
			Label:     b.Label,
			Setup:     append([]string(nil), b.Setup...),
			Prepare:   append([]string(nil), b.Prepare...),
		})
	}
	return tab, nil
}

func conditionHolds(when string, info platform.Info) (bool, error) {
	switch strings.TrimSpace(when) {
	case "":
		return true, nil
	case WhenGNOME:
		return info.GNOME(), nil
	case WhenDesktopChassis:
		return info.DesktopChassis, nil
	default:
		return false, fmt.Errorf("unknown condition %q", when)
	}
}
