package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hctx-dev/hctx/internal/errors"
	"github.com/hctx-dev/hctx/pkg/hctx"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// code returns the catalogue code of err, or "" for other errors.
func code(err error) string {
	if e, ok := err.(*errors.Error); ok {
		return e.Code
	}
	return ""
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Attributes.Context != hctx.DefaultContextAttr {
		t.Errorf("Attributes.Context = %q, want %q", cfg.Attributes.Context, hctx.DefaultContextAttr)
	}
	if cfg.Attributes.Action != hctx.DefaultActionAttr {
		t.Errorf("Attributes.Action = %q, want %q", cfg.Attributes.Action, hctx.DefaultActionAttr)
	}
	if cfg.Attributes.Effect != hctx.DefaultEffectAttr {
		t.Errorf("Attributes.Effect = %q, want %q", cfg.Attributes.Effect, hctx.DefaultEffectAttr)
	}
	if cfg.Import.Path != DefaultImportPath {
		t.Errorf("Import.Path = %q, want %q", cfg.Import.Path, DefaultImportPath)
	}
	if cfg.Devtools.Addr != DefaultDevtoolsAddr {
		t.Errorf("Devtools.Addr = %q, want %q", cfg.Devtools.Addr, DefaultDevtoolsAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v for defaults", err)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := Load(tmpDir)
	if code(err) != errors.CodeConfigNotFound {
		t.Errorf("Load() on empty dir = %v, want %s", err, errors.CodeConfigNotFound)
	}

	writeFile(t, filepath.Join(tmpDir, JSONFileName), `{
  "attributes": {"context": "data-ctx"},
  "import": {"path": "plugins/{name}/template.so", "concurrency": 2},
  "devtools": {"addr": ":9000", "history": 10, "diagnostics": true}
}
`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Attributes.Context != "data-ctx" {
		t.Errorf("Attributes.Context = %q, want data-ctx", cfg.Attributes.Context)
	}
	if cfg.Attributes.Action != hctx.DefaultActionAttr {
		t.Errorf("Attributes.Action = %q, want default", cfg.Attributes.Action)
	}
	if cfg.Import.Concurrency != 2 || cfg.Devtools.History != 10 || !cfg.Devtools.Diagnostics {
		t.Errorf("loaded = %+v", cfg)
	}
	if cfg.Path() != filepath.Join(tmpDir, JSONFileName) || cfg.Dir() != tmpDir {
		t.Errorf("Path() = %q, Dir() = %q", cfg.Path(), cfg.Dir())
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, YAMLFileName), `
attributes:
  action: x-on
  effect: x-effect
watch:
  ignore: [vendor, "*.bak"]
  debounce: 250ms
`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Attributes.Action != "x-on" || cfg.Attributes.Effect != "x-effect" {
		t.Errorf("Attributes = %+v", cfg.Attributes)
	}
	if len(cfg.Watch.Ignore) != 2 || cfg.Watch.Ignore[1] != "*.bak" {
		t.Errorf("Watch.Ignore = %v", cfg.Watch.Ignore)
	}
	d, err := cfg.WatchDebounce()
	if err != nil || d != 250*time.Millisecond {
		t.Errorf("WatchDebounce() = %v, %v", d, err)
	}
}

func TestLoadPrefersJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, JSONFileName), `{"devtools": {"addr": ":1"}}`)
	writeFile(t, filepath.Join(tmpDir, YAMLFileName), "devtools:\n  addr: \":2\"\n")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Devtools.Addr != ":1" {
		t.Errorf("Devtools.Addr = %q, want :1 from %s", cfg.Devtools.Addr, JSONFileName)
	}
}

func TestLoadEmptyYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hctx.yml")
	writeFile(t, path, "")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.Import.Path != DefaultImportPath {
		t.Errorf("Import.Path = %q, want default", cfg.Import.Path)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		detail  string
	}{
		{"bad json", JSONFileName, "not valid json", "Failed to parse hctx.json"},
		{"unknown json field", JSONFileName, `{"port": 3000}`, `unknown field "port"`},
		{"bad yaml", YAMLFileName, "attributes: [", "Failed to parse hctx.yaml"},
		{"unknown yaml field", YAMLFileName, "routes: app\n", "field routes not found"},
		{"bad attribute", JSONFileName, `{"attributes": {"action": "on click"}}`, "not a valid attribute name"},
		{"duplicate attribute", JSONFileName, `{"attributes": {"action": "hc-effect"}}`, "both use"},
		{"no placeholder", JSONFileName, `{"import": {"path": "contexts/all.so"}}`, "must contain {name}"},
		{"negative concurrency", JSONFileName, `{"import": {"concurrency": -1}}`, "must not be negative"},
		{"bad debounce", YAMLFileName, "watch:\n  debounce: soon\n", "not a valid duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			writeFile(t, path, tt.content)

			_, err := LoadFile(path)
			if code(err) != errors.CodeInvalidConfig {
				t.Fatalf("LoadFile() = %v, want %s", err, errors.CodeInvalidConfig)
			}
			if detail := err.(*errors.Error).Detail; !strings.Contains(detail, tt.detail) {
				t.Errorf("Detail = %q, want it to contain %q", detail, tt.detail)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), JSONFileName))
	if code(err) != errors.CodeConfigNotFound {
		t.Errorf("LoadFile() = %v, want %s", err, errors.CodeConfigNotFound)
	}
}

func TestSaveTo(t *testing.T) {
	for _, name := range []string{JSONFileName, YAMLFileName} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			cfg := New()
			cfg.Attributes.Context = "data-hctx"
			cfg.Devtools.History = 32
			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo error: %v", err)
			}
			if cfg.Path() != path {
				t.Errorf("Path() = %q after SaveTo", cfg.Path())
			}

			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile error: %v", err)
			}
			if loaded.Attributes.Context != "data-hctx" || loaded.Devtools.History != 32 {
				t.Errorf("reloaded = %+v", loaded)
			}
		})
	}
}

func TestImportPathFor(t *testing.T) {
	cfg := New()
	if got := cfg.ImportPathFor("counter"); got != "contexts/counter.so" {
		t.Errorf("ImportPathFor without dir = %q", got)
	}

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, JSONFileName)
	writeFile(t, path, `{"import": {"path": "build/{name}/{name}.so"}}`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(tmpDir, "build", "todo", "todo.so")
	if got := cfg.ImportPathFor("todo"); got != want {
		t.Errorf("ImportPathFor = %q, want %q", got, want)
	}

	cfg.Import.Path = "/opt/hctx/{name}.so"
	if got := cfg.ImportPathFor("todo"); got != "/opt/hctx/todo.so" {
		t.Errorf("absolute ImportPathFor = %q", got)
	}
}

func TestRuntime(t *testing.T) {
	cfg := New()
	cfg.Attributes.Context = "data-ctx"
	cfg.Import.Concurrency = 3
	cfg.Devtools.Diagnostics = true
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rc := cfg.Runtime(logger)
	if rc.ContextAttr != "data-ctx" || rc.ActionAttr != hctx.DefaultActionAttr || rc.EffectAttr != hctx.DefaultEffectAttr {
		t.Errorf("attributes = %q %q %q", rc.ContextAttr, rc.ActionAttr, rc.EffectAttr)
	}
	if rc.ImportConcurrency != 3 || !rc.DevDiagnostics || rc.Logger != logger {
		t.Errorf("runtime config = %+v", rc)
	}
	if rc.ImportPath == nil || rc.ImportPath("x") != "contexts/x.so" {
		t.Error("ImportPath not wired to ImportPathFor")
	}
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	if Exists(tmpDir) {
		t.Error("Exists should be false for empty directory")
	}

	writeFile(t, filepath.Join(tmpDir, YAMLFileName), "")

	if !Exists(tmpDir) {
		t.Error("Exists should be true after creating config")
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "a", "b", "c")
	if err := os.MkdirAll(nestedDir, 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := FindProjectRoot(nestedDir); err == nil {
		t.Error("FindProjectRoot should fail when no config exists")
	}

	// Discover falls back to defaults.
	cfg, err := Discover(nestedDir)
	if err != nil || cfg.Path() != "" {
		t.Errorf("Discover() = %v, %v; want defaults", cfg, err)
	}

	writeFile(t, filepath.Join(tmpDir, JSONFileName), "{}")

	root, err := FindProjectRoot(nestedDir)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot = %q, want %q", root, tmpDir)
	}

	cfg, err = Discover(filepath.Join(tmpDir, "a"))
	if err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	if cfg.Dir() != tmpDir {
		t.Errorf("Discover().Dir() = %q, want %q", cfg.Dir(), tmpDir)
	}
}
