package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/snigdhaos/blackbox/internal/domain"
)

// ErrUnreadable wraps every failure to open or read a catalog file.
var ErrUnreadable = errors.New("catalog unreadable")

// LoadFile reads a text catalog. Each record is three consecutive lines:
// default flag, space-separated packages, display label.
func LoadFile(path string, label string) (domain.CatalogTab, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.CatalogTab{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	tab, err := Load(f, label)
	if err != nil {
		return domain.CatalogTab{}, fmt.Errorf("%s: %w", path, err)
	}
	return tab, nil
}

func Load(r io.Reader, label string) (domain.CatalogTab, error) {
	tab := domain.CatalogTab{Label: label}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	next := func() string {
		if sc.Scan() {
			return sc.Text()
		}
		return ""
	}

	for sc.Scan() {
		def := sc.Text()
		packages := next()
		display := next()

		tab.Bundles = append(tab.Bundles, domain.BundleDescriptor{
			ID:          bundleID(label, len(tab.Bundles)),
			DefaultOn:   def == "true",
			DefaultFlag: def,
			Packages:    strings.Split(packages, " "),
			Label:       display,
		})
	}
	if err := sc.Err(); err != nil {
		return domain.CatalogTab{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return tab, nil
}

// Format writes tab back in the text catalog format. A default line read by
// Load is written back unchanged unless DefaultOn was changed since.
func Format(w io.Writer, tab domain.CatalogTab) error {
	bw := bufio.NewWriter(w)
	for _, b := range tab.Bundles {
		fmt.Fprintln(bw, defaultFlag(b))
		fmt.Fprintln(bw, strings.Join(b.Packages, " "))
		fmt.Fprintln(bw, b.Label)
	}
	return bw.Flush()
}

func defaultFlag(b domain.BundleDescriptor) string {
	if b.DefaultFlag != "" && (b.DefaultFlag == "true") == b.DefaultOn {
		return b.DefaultFlag
	}
	return strconv.FormatBool(b.DefaultOn)
}

func bundleID(label string, index int) string {
	return label + "/" + strconv.Itoa(index)
}
