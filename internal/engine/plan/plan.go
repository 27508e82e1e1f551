// Package plan turns a set of selected bundles into the three inputs of the
// apply script.
package plan

import (
	"fmt"
	"strings"

	"github.com/snigdhaos/blackbox/internal/domain"
	"github.com/snigdhaos/blackbox/internal/engine/runner"
)

// Container runtimes whose socket unit is enabled when the package is installed.
var socketUnits = []struct {
	pkg     string
	command string
}{
	{pkg: "podman", command: "systemctl enable --now podman.socket"},
	{pkg: "docker", command: "systemctl enable --now docker.socket"},
}

type Plan struct {
	Prepare  []string
	Packages []string
	Setup    []string
}

// Build accumulates hooks and packages in bundle order. Packages are
// de-duplicated keeping the first occurrence; blank names are dropped.
func Build(bundles []domain.BundleDescriptor) Plan {
	var p Plan
	seen := make(map[string]struct{})
	for _, b := range bundles {
		p.Prepare = append(p.Prepare, b.Prepare...)
		p.Setup = append(p.Setup, b.Setup...)
		for _, pkg := range b.Packages {
			pkg = strings.TrimSpace(pkg)
			if pkg == "" {
				continue
			}
			if _, ok := seen[pkg]; ok {
				continue
			}
			seen[pkg] = struct{}{}
			p.Packages = append(p.Packages, pkg)
		}
	}
	if len(p.Packages) == 0 {
		return p
	}
	for _, unit := range socketUnits {
		if _, ok := seen[unit.pkg]; ok {
			p.Setup = append(p.Setup, unit.command)
		}
	}
	return p
}

// Empty reports whether there is nothing to install. An empty plan never
// reaches the apply script, even when it carries hooks.
func (p Plan) Empty() bool { return len(p.Packages) == 0 }

// Files are the paths handed to the apply script, in argument order.
type Files struct {
	Prepare  string
	Packages string
	Setup    string
}

func (f Files) Args() []string { return []string{f.Prepare, f.Packages, f.Setup} }

// Materialize writes the plan into scope-owned temp files. The packages file is
// the sentinel: the apply script deletes it once installation succeeded.
func (p Plan) Materialize(scope *runner.Scope) (Files, error) {
	var files Files
	var err error
	if files.Prepare, err = scope.TempFile(strings.Join(p.Prepare, "\n")); err != nil {
		return Files{}, fmt.Errorf("prepare script: %w", err)
	}
	if files.Packages, err = scope.TempFile(strings.Join(p.Packages, " ")); err != nil {
		return Files{}, fmt.Errorf("package list: %w", err)
	}
	if files.Setup, err = scope.TempFile(strings.Join(p.Setup, "\n")); err != nil {
		return Files{}, fmt.Errorf("setup script: %w", err)
	}
	return files, nil
}
