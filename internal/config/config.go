package config

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hctx-dev/hctx/internal/errors"
	"github.com/hctx-dev/hctx/pkg/hctx"
)

const (
	// JSONFileName is the JSON configuration file name.
	JSONFileName = "hctx.json"

	// YAMLFileName is the YAML configuration file name.
	YAMLFileName = "hctx.yaml"

	// DefaultImportPath is the plugin path template for context templates.
	DefaultImportPath = "contexts/{name}.so"

	// DefaultDevtoolsAddr is the default devtools listen address.
	DefaultDevtoolsAddr = "127.0.0.1:7331"

	// namePlaceholder is replaced by the context name in Import.Path.
	namePlaceholder = "{name}"
)

// fileNames lists configuration files in lookup order.
var fileNames = []string{JSONFileName, YAMLFileName, "hctx.yml"}

// Config represents an hctx.json or hctx.yaml project file.
type Config struct {
	// Attributes overrides the marker attribute names.
	Attributes AttributesConfig `json:"attributes,omitempty" yaml:"attributes,omitempty"`

	// Import configures how unregistered context templates are loaded.
	Import ImportConfig `json:"import,omitempty" yaml:"import,omitempty"`

	// Devtools configures the devtools server.
	Devtools DevtoolsConfig `json:"devtools,omitempty" yaml:"devtools,omitempty"`

	// Watch configures hctx check --watch.
	Watch WatchConfig `json:"watch,omitempty" yaml:"watch,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// AttributesConfig names the marker attributes.
type AttributesConfig struct {
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
	Action  string `json:"action,omitempty" yaml:"action,omitempty"`
	Effect  string `json:"effect,omitempty" yaml:"effect,omitempty"`
}

// ImportConfig configures template imports.
type ImportConfig struct {
	// Path is a plugin path template; "{name}" is replaced by the context
	// name. Relative paths resolve against the config file's directory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Concurrency bounds parallel imports. Zero uses the runtime default.
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
}

// DevtoolsConfig configures the devtools server.
type DevtoolsConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// History is how many dispatch records are kept.
	History int `json:"history,omitempty" yaml:"history,omitempty"`

	// Diagnostics enables the runtime's dev diagnostics.
	Diagnostics bool `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// WatchConfig configures file watching.
type WatchConfig struct {
	// Ignore contains patterns to skip.
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`

	// Debounce is a duration string such as "100ms".
	Debounce string `json:"debounce,omitempty" yaml:"debounce,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from dir, trying hctx.json, then hctx.yaml and
// hctx.yml.
func Load(dir string) (*Config, error) {
	for _, name := range fileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New(errors.CodeConfigNotFound).
		WithDetail("No hctx.json or hctx.yaml found in " + dir).
		WithSuggestion("Create hctx.json, or run without a config to use the defaults")
}

// LoadFile reads configuration from path. The format follows the file
// extension: .yaml and .yml are YAML, anything else JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithDetail("No configuration file at " + path)
		}
		return nil, errors.New(errors.CodeInvalidConfig).Wrap(err)
	}

	cfg := &Config{}
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return nil, errors.New(errors.CodeInvalidConfig).
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid YAML")
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, errors.New(errors.CodeInvalidConfig).
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid JSON")
		}
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to path in the format its extension
// names.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New(errors.CodeInvalidConfig).Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(errors.CodeInvalidConfig).Wrap(err)
	}
	c.configPath = path
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Attributes.Context == "" {
		c.Attributes.Context = hctx.DefaultContextAttr
	}
	if c.Attributes.Action == "" {
		c.Attributes.Action = hctx.DefaultActionAttr
	}
	if c.Attributes.Effect == "" {
		c.Attributes.Effect = hctx.DefaultEffectAttr
	}
	if c.Import.Path == "" {
		c.Import.Path = DefaultImportPath
	}
	if c.Devtools.Addr == "" {
		c.Devtools.Addr = DefaultDevtoolsAddr
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = "100ms"
	}
}

var attrName = regexp.MustCompile(`^[a-zA-Z_:][-a-zA-Z0-9_:.]*$`)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	attrs := []struct{ field, value string }{
		{"attributes.context", c.Attributes.Context},
		{"attributes.action", c.Attributes.Action},
		{"attributes.effect", c.Attributes.Effect},
	}
	seen := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if !attrName.MatchString(a.value) {
			return errors.New(errors.CodeInvalidConfig).
				WithAttr(a.field).
				WithDetail(a.field + ": " + quote(a.value) + " is not a valid attribute name")
		}
		if prev, dup := seen[a.value]; dup {
			return errors.New(errors.CodeInvalidConfig).
				WithAttr(a.field).
				WithDetail(a.field + " and " + prev + " both use " + quote(a.value))
		}
		seen[a.value] = a.field
	}

	if !strings.Contains(c.Import.Path, namePlaceholder) {
		return errors.New(errors.CodeInvalidConfig).
			WithAttr("import.path").
			WithDetail("import.path must contain " + namePlaceholder).
			WithSuggestion(`Use a template such as "` + DefaultImportPath + `"`)
	}
	if c.Import.Concurrency < 0 {
		return errors.New(errors.CodeInvalidConfig).
			WithAttr("import.concurrency").
			WithDetail("import.concurrency must not be negative")
	}
	if c.Devtools.History < 0 {
		return errors.New(errors.CodeInvalidConfig).
			WithAttr("devtools.history").
			WithDetail("devtools.history must not be negative")
	}
	if _, err := c.WatchDebounce(); err != nil {
		return err
	}
	return nil
}

// WatchDebounce parses Watch.Debounce.
func (c *Config) WatchDebounce() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d < 0 {
		return 0, errors.New(errors.CodeInvalidConfig).
			WithAttr("watch.debounce").
			WithDetail("watch.debounce: " + quote(c.Watch.Debounce) + " is not a valid duration")
	}
	return d, nil
}

func quote(s string) string { return `"` + s + `"` }

// ImportPathFor returns the plugin path for a context name.
func (c *Config) ImportPathFor(name string) string {
	p := strings.ReplaceAll(c.Import.Path, namePlaceholder, name)
	if filepath.IsAbs(p) || c.Dir() == "" {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// Runtime converts the file into a runtime configuration. Callers add
// observers and an error handler.
func (c *Config) Runtime(logger *slog.Logger) hctx.Config {
	return hctx.Config{
		ContextAttr:       c.Attributes.Context,
		ActionAttr:        c.Attributes.Action,
		EffectAttr:        c.Attributes.Effect,
		ImportPath:        c.ImportPathFor,
		ImportConcurrency: c.Import.Concurrency,
		DevDiagnostics:    c.Devtools.Diagnostics,
		Logger:            logger,
	}
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range fileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing hctx.json or hctx.yaml, or an error if
// not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.CodeConfigNotFound).
				WithDetail("No hctx.json or hctx.yaml found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// Discover loads the configuration governing startDir, or the defaults
// when there is none.
func Discover(startDir string) (*Config, error) {
	root, err := FindProjectRoot(startDir)
	if err != nil {
		return New(), nil
	}
	return Load(root)
}
