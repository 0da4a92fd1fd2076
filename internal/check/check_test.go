package check

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hctx-dev/hctx/internal/errors"
	"github.com/hctx-dev/hctx/pkg/vdom"
)

func run(t *testing.T, c *Checker, markup string) []*errors.Error {
	t.Helper()
	doc, err := vdom.ParseHTMLString(markup)
	if err != nil {
		t.Fatal(err)
	}
	return c.Document("page.html", doc)
}

func TestDocument(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		codes  []string
		detail string
	}{
		{
			name: "clean",
			markup: `<div hctx="list#a"><button hc-action="add on click; clear on dblclick">+</button>` +
				`<input hc-action='$toggle:{"id":1} on change'>` +
				`<ul hc-effect="render on a:add or hc:statechanged:items"></ul></div>` +
				`<div hctx="log"><p hc-effect="print on a:add@list#a"></p></div>`,
		},
		{
			name:   "syntax",
			markup: `<div hctx="x"><button hc-action="inc click"></button></div>`,
			codes:  []string{errors.CodeSyntax},
		},
		{
			name:   "props json",
			markup: `<div hctx="x"><button hc-action='inc:{bad} on click'></button></div>`,
			codes:  []string{errors.CodeSyntax},
			detail: "invalid props JSON",
		},
		{
			name:   "circular",
			markup: `<div hctx="x"><button hc-action="a on click; b on a:a"></button></div>`,
			codes:  []string{errors.CodeCircularTrigger},
		},
		{
			name:   "missing context",
			markup: `<div hctx="x"><p hc-effect="show on a:save@form"></p></div>`,
			codes:  []string{errors.CodeUnknownContext},
			detail: `references context "form"`,
		},
		{
			name:   "forward reference",
			markup: `<div hctx="x"><p hc-effect="show on a:save@form"></p></div><form hctx="form"></form>`,
		},
		{
			name:   "outside context",
			markup: `<button hc-action="inc on click"></button>`,
			codes:  []string{errors.CodeOutsideContext},
		},
		{
			name:   "local effect",
			markup: `<div hctx="x"><p hc-effect="$show on click"></p></div>`,
			codes:  []string{errors.CodeSyntax},
			detail: "cannot be local or tagged",
		},
		{
			name:   "bad marker",
			markup: `<div hctx="x#"></div><div hctx="#t"></div>`,
			codes:  []string{errors.CodeSyntax, errors.CodeSyntax},
		},
		{
			name:   "bad action trigger",
			markup: `<div hctx="x"><p hc-effect="show on a:@x"></p></div>`,
			codes:  []string{errors.CodeSyntax},
		},
	}

	c := New(Attrs{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := run(t, c, tt.markup)
			if len(found) != len(tt.codes) {
				t.Fatalf("found %d problems, want %d: %v", len(found), len(tt.codes), found)
			}
			for i, e := range found {
				if e.Code != tt.codes[i] {
					t.Errorf("problem %d code = %s, want %s", i, e.Code, tt.codes[i])
				}
				if e.Location == nil || e.Location.File != "page.html" {
					t.Errorf("problem %d location = %v", i, e.Location)
				}
			}
			if tt.detail != "" {
				text := found[0].Detail
				if found[0].Wrapped != nil {
					text += " " + found[0].Wrapped.Error()
				}
				if !strings.Contains(text, tt.detail) {
					t.Errorf("problem = %q, want it to mention %q", text, tt.detail)
				}
			}
		})
	}
}

func TestCustomAttrs(t *testing.T) {
	c := New(Attrs{Context: "data-ctx", Action: "data-on"})
	found := run(t, c, `<div data-ctx="x"><button data-on="inc click"></button><p hc-effect="$bad on click"></p></div>`)
	if len(found) != 2 {
		t.Fatalf("found = %v, want syntax errors on both attributes", found)
	}
	if found[0].Node != "<button>" {
		t.Errorf("node = %q, want <button>", found[0].Node)
	}
	if found[0].Attr != "inc click" {
		t.Errorf("attr = %q", found[0].Attr)
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(path, []byte(`<div hctx="a"><b hc-action="go on a:x@b"></b></div>`), 0644); err != nil {
		t.Fatal(err)
	}

	found, err := New(Attrs{}).File(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Location.File != path {
		t.Errorf("found = %v", found)
	}

	if _, err := New(Attrs{}).File(filepath.Join(t.TempDir(), "missing.html")); err == nil {
		t.Error("expected error for missing file")
	}
}
