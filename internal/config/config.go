package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the project config file looked up at the workspace root.
const FileName = ".ngtask.yaml"

// Config holds all ngtask configuration.
type Config struct {
	// Project name used when the primary manifest carries none
	Project string `yaml:"project"`

	Release   ReleaseConfig   `yaml:"release"`
	Build     BuildConfig     `yaml:"build"`
	Watch     WatchConfig     `yaml:"watch"`
	Scenarios ScenariosConfig `yaml:"scenarios"`
	Tests     TestsConfig     `yaml:"tests"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ReleaseConfig configures the version bump workflow.
type ReleaseConfig struct {
	// Path of the manifest the current version is read from
	Primary       string           `yaml:"primary"`
	TagPrefix     string           `yaml:"tag_prefix"`
	CommitMessage string           `yaml:"commit_message"` // fmt pattern, %s = tag
	GitBinary     string           `yaml:"git_binary"`
	Manifests     []ManifestConfig `yaml:"manifests"`
}

// ManifestConfig describes one per-target manifest file.
type ManifestConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"` // json, plist
	Prefix string `yaml:"prefix"` // prepended to the version string in this file
}

// BuildConfig configures the icon/script/style pipeline.
type BuildConfig struct {
	Icons   IconsConfig    `yaml:"icons"`
	Script  ScriptConfig   `yaml:"script"`
	Style   StyleConfig    `yaml:"style"`
	Targets []TargetConfig `yaml:"targets"`
}

// IconsConfig lists icon source globs.
type IconsConfig struct {
	Sources []string `yaml:"sources"`
}

// ScriptConfig configures script concatenation. Sources are ordered.
type ScriptConfig struct {
	Output    string   `yaml:"output"`
	Sources   []string `yaml:"sources"`
	Separator string   `yaml:"separator"`
	Wrapper   string   `yaml:"wrapper"` // text/template, {{.Contents}}
}

// StyleConfig configures stylesheet compilation.
type StyleConfig struct {
	Entry    string   `yaml:"entry"`
	Compiler []string `yaml:"compiler"` // argv prefix; entry path is appended
}

// TargetConfig describes one distribution output tree.
type TargetConfig struct {
	Name        string   `yaml:"name"`
	Dir         string   `yaml:"dir"`
	IconsDir    string   `yaml:"icons_dir"`
	Outputs     []string `yaml:"outputs"` // icons, js, css
	URLPrefix   string   `yaml:"url_prefix"`
	StripImages bool     `yaml:"strip_images"`
}

// Produces reports whether the target receives the given output kind.
func (t TargetConfig) Produces(kind string) bool {
	for _, o := range t.Outputs {
		if o == kind {
			return true
		}
	}
	return false
}

// WatchConfig maps file patterns to build tasks.
type WatchConfig struct {
	Debounce string      `yaml:"debounce"`
	Rules    []WatchRule `yaml:"rules"`
}

// WatchRule triggers Task when a file matching Pattern changes.
type WatchRule struct {
	Pattern string `yaml:"pattern"`
	Task    string `yaml:"task"`
}

// ScenariosConfig configures the scenario server.
type ScenariosConfig struct {
	Root     string `yaml:"root"`     // static root, parent of the template dir
	Template string `yaml:"template"` // base template path
	Port     int    `yaml:"port"`
}

// TestsConfig configures the e2e runner and result handling.
type TestsConfig struct {
	FixturesDir string        `yaml:"fixtures_dir"`
	ResultsDir  string        `yaml:"results_dir"`
	SummaryPath string        `yaml:"summary_path"`
	HistoryDB   string        `yaml:"history_db"`
	Driver      string        `yaml:"driver"` // rod, command
	Command     []string      `yaml:"command"`
	Browser     BrowserConfig `yaml:"browser"`
}

// BrowserConfig configures the rod driver.
type BrowserConfig struct {
	Bin               string `yaml:"bin"`
	Headless          bool   `yaml:"headless"`
	NavigationTimeout string `yaml:"navigation_timeout"`
	ReadyExpression   string `yaml:"ready_expression"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"` // false = no log files
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultScriptSources is the concatenation order of the extension sources.
var DefaultScriptSources = []string{
	"src/js/Inspector.js",
	"src/js/InspectorAgent.js",
	"src/js/InspectorPane.js",
	"src/js/TreeView.js",
	"src/js/Highlighter.js",
	"src/js/Utils.js",
	"src/js/Service.js",
	"src/js/App.js",
	"src/js/Module.js",
	"src/js/ModelMixin.js",
	"src/js/Scope.js",
	"src/js/Model.js",
	"src/js/bootstrap.js",
}

// DefaultWrapper wraps the concatenated script in a strict-mode IIFE.
const DefaultWrapper = "(function(window) {\n\"use strict\";\n\n{{.Contents}}\n})(window);"

// ChromeURLPrefix addresses packaged assets from inside the Chrome extension.
const ChromeURLPrefix = "chrome-extension://__MSG_@@extension_id__/"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Project: "ng-inspector",

		Release: ReleaseConfig{
			Primary:       "package.json",
			TagPrefix:     "v",
			CommitMessage: "Prepare for %s",
			GitBinary:     "git",
			Manifests: []ManifestConfig{
				{Path: "package.json", Format: "json"},
				{Path: "ng-inspector.safariextension/Info.plist", Format: "plist"},
				{Path: "ng-inspector.chrome/manifest.json", Format: "json"},
				{Path: "ng-inspector.firefox/package.json", Format: "json"},
			},
		},

		Build: BuildConfig{
			Icons: IconsConfig{Sources: []string{"src/icons/*.png"}},
			Script: ScriptConfig{
				Output:    "ng-inspector.js",
				Sources:   append([]string(nil), DefaultScriptSources...),
				Separator: "\n\n",
				Wrapper:   DefaultWrapper,
			},
			Style: StyleConfig{
				Entry:    "src/less/stylesheet.less",
				Compiler: []string{"lessc"},
			},
			Targets: []TargetConfig{
				{Name: "safari", Dir: "ng-inspector.safariextension", IconsDir: "icons", Outputs: []string{"icons", "js", "css"}},
				{Name: "chrome", Dir: "ng-inspector.chrome", IconsDir: "icons", Outputs: []string{"icons", "js", "css"}, URLPrefix: ChromeURLPrefix},
				{Name: "firefox", Dir: "ng-inspector.firefox/data", IconsDir: "icons", Outputs: []string{"icons", "js", "css"}},
				{Name: "e2e", Dir: "test/e2e/scenarios/lib", Outputs: []string{"js", "css"}, URLPrefix: ChromeURLPrefix, StripImages: true},
			},
		},

		Watch: WatchConfig{
			Debounce: "300ms",
			Rules: []WatchRule{
				{Pattern: "src/icons/*.png", Task: "build:icons"},
				{Pattern: "src/js/*.js", Task: "build:js"},
				{Pattern: "src/less/*.less", Task: "build:css"},
			},
		},

		Scenarios: ScenariosConfig{
			Root:     "test/e2e/scenarios",
			Template: "test/e2e/scenarios/scenario-server/base-template.html",
			Port:     3000,
		},

		Tests: TestsConfig{
			FixturesDir: "test/e2e/scenarios/lib/angular",
			ResultsDir:  "test/e2e/test-results",
			SummaryPath: "test/e2e/test-summary.json",
			HistoryDB:   ".ngtask/history.db",
			Driver:      "rod",
			Command:     []string{"protractor", "test/protractor.conf.js", "--params.angularVersion={{.Version}}"},
			Browser: BrowserConfig{
				Headless:          true,
				NavigationTimeout: "30s",
				ReadyExpression:   "() => !!document.querySelector('.angular-root-element')",
			},
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NGTASK_SCENARIO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Scenarios.Port = port
		}
	}
	if v := os.Getenv("NGTASK_BROWSER_BIN"); v != "" {
		c.Tests.Browser.Bin = v
	}
	if v := os.Getenv("NGTASK_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Tests.Browser.Headless = b
		}
	}
	if v := os.Getenv("NGTASK_HISTORY_DB"); v != "" {
		c.Tests.HistoryDB = v
	}
	if v := os.Getenv("NGTASK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// ValidFormats lists the supported manifest formats.
var ValidFormats = []string{"json", "plist"}

// ValidDrivers lists the supported e2e drivers.
var ValidDrivers = []string{"rod", "command"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Release.Manifests) == 0 {
		return fmt.Errorf("release.manifests: at least one manifest is required")
	}
	primaryFound := c.Release.Primary == ""
	for i, m := range c.Release.Manifests {
		if m.Path == "" {
			return fmt.Errorf("release.manifests[%d]: path is required", i)
		}
		if !contains(ValidFormats, m.Format) {
			return fmt.Errorf("release.manifests[%d]: invalid format %q (valid: %v)", i, m.Format, ValidFormats)
		}
		if m.Path == c.Release.Primary {
			primaryFound = true
		}
	}
	if !primaryFound {
		return fmt.Errorf("release.primary %q is not one of release.manifests", c.Release.Primary)
	}

	for i, t := range c.Build.Targets {
		if t.Dir == "" {
			return fmt.Errorf("build.targets[%d]: dir is required", i)
		}
		for _, o := range t.Outputs {
			if o != "icons" && o != "js" && o != "css" {
				return fmt.Errorf("build.targets[%d]: unknown output %q", i, o)
			}
		}
	}

	if c.Scenarios.Port < 0 || c.Scenarios.Port > 65535 {
		return fmt.Errorf("scenarios.port out of range: %d", c.Scenarios.Port)
	}
	if !contains(ValidDrivers, c.Tests.Driver) {
		return fmt.Errorf("invalid tests.driver: %s (valid: %v)", c.Tests.Driver, ValidDrivers)
	}
	if c.Tests.Driver == "command" && len(c.Tests.Command) == 0 {
		return fmt.Errorf("tests.command is required for the command driver")
	}
	return nil
}

// GetWatchDebounce returns the watch debounce as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}

// GetNavigationTimeout returns the browser navigation timeout as a duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Tests.Browser.NavigationTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
