// Package config loads the optional system-wide configuration file.
//
// Every key has a built-in default, so a host without the file behaves like a
// stock install.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/snigdhaos/blackbox/internal/engine/runner"
	"github.com/snigdhaos/blackbox/internal/platform"
	"github.com/snigdhaos/blackbox/internal/services/connectivity"
)

const (
	DefaultPath = "/etc/snigdhaos-blackbox.toml"
	// PathEnv overrides DefaultPath when no explicit path is given.
	PathEnv = "SNIGDHAOS_BLACKBOX_CONFIG"

	DefaultProbeURL           = connectivity.DefaultURL
	DefaultProbeTimeout       = connectivity.DefaultDeadline
	// DefaultProbeRetryInterval retries a failed probe at once.
	DefaultProbeRetryInterval = time.Duration(0)
	DefaultTerminalHelper     = runner.DefaultTerminalHelper
	DefaultApplyScript        = "/usr/lib/snigdhaos-blackbox/apply.sh"
	DefaultCatalogPath        = "/usr/lib/snigdhaos-blackbox/webapp.txt"
	DefaultCatalogLabel       = "WEBAPP"
	DefaultChassisPath        = platform.DefaultChassisPath
	DefaultUpgradeCommand     = "sudo pacman -Syyu"
)

// Duration decodes TOML strings such as "5s" or "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	ProbeURL           string   `toml:"probe_url"`
	ProbeTimeout       Duration `toml:"probe_timeout"`
	ProbeRetryInterval Duration `toml:"probe_retry_interval"`

	TerminalHelper string `toml:"terminal_helper"`
	ApplyScript    string `toml:"apply_script"`
	UpgradeCommand string `toml:"upgrade_command"`

	CatalogPath  string `toml:"catalog_path"`
	CatalogLabel string `toml:"catalog_label"`
	// BaseCatalogPath replaces the built-in base tab when set.
	BaseCatalogPath string `toml:"base_catalog_path"`
	ChassisPath     string `toml:"chassis_path"`

	// LogDir defaults to $XDG_STATE_HOME/snigdhaos-blackbox.
	LogDir string `toml:"log_dir"`
}

func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// Load reads path, or the file named by PathEnv, or DefaultPath. Only a missing
// default file is tolerated.
func Load(path string) (*Config, error) {
	explicit := true
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		path = DefaultPath
		explicit = false
	}

	cfg := &Config{}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.setDefaults(md.IsDefined)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SetDefaults fills every zero-valued key.
func (c *Config) SetDefaults() {
	c.setDefaults(func(...string) bool { return false })
}

// setDefaults leaves keys the file defined alone where zero is a valid value.
func (c *Config) setDefaults(defined func(key ...string) bool) {
	if strings.TrimSpace(c.ProbeURL) == "" {
		c.ProbeURL = DefaultProbeURL
	}
	if c.ProbeTimeout.Duration == 0 {
		c.ProbeTimeout.Duration = DefaultProbeTimeout
	}
	if c.ProbeRetryInterval.Duration == 0 && !defined("probe_retry_interval") {
		c.ProbeRetryInterval.Duration = DefaultProbeRetryInterval
	}
	if strings.TrimSpace(c.TerminalHelper) == "" {
		c.TerminalHelper = DefaultTerminalHelper
	}
	if strings.TrimSpace(c.ApplyScript) == "" {
		c.ApplyScript = DefaultApplyScript
	}
	if strings.TrimSpace(c.UpgradeCommand) == "" {
		c.UpgradeCommand = DefaultUpgradeCommand
	}
	if strings.TrimSpace(c.CatalogPath) == "" {
		c.CatalogPath = DefaultCatalogPath
	}
	if strings.TrimSpace(c.CatalogLabel) == "" {
		c.CatalogLabel = DefaultCatalogLabel
	}
	if strings.TrimSpace(c.ChassisPath) == "" {
		c.ChassisPath = DefaultChassisPath
	}
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (c *Config) Validate() error {
	var errs ValidationErrors

	if u, err := url.Parse(c.ProbeURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{Field: "probe_url", Message: fmt.Sprintf("%q is not an http(s) URL", c.ProbeURL)})
	}
	if c.ProbeTimeout.Duration < 0 {
		errs = append(errs, ValidationError{Field: "probe_timeout", Message: "must be positive"})
	}
	if c.ProbeRetryInterval.Duration < 0 {
		errs = append(errs, ValidationError{Field: "probe_retry_interval", Message: "must be positive"})
	}
	if strings.ContainsAny(c.CatalogLabel, "/\n") {
		errs = append(errs, ValidationError{Field: "catalog_label", Message: "must not contain '/' or newlines"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
