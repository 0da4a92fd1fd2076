package hctx

import (
	"context"
	"fmt"
	"plugin"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hctx-dev/hctx/pkg/host"
)

// TemplateSymbol is the symbol looked up in template plugins.
const TemplateSymbol = "Template"

// importTemplates loads the templates named by markers that are not
// registered yet. Failures are diagnostics only; the markers then fail to
// resolve as unknown contexts.
func (rt *Runtime) importTemplates(ctx context.Context, markers []host.Node) {
	if rt.cfg.ImportCallback == nil && rt.cfg.ImportPath == nil {
		return
	}

	seen := make(map[string]bool)
	var names []string
	for _, n := range markers {
		attr, _ := n.Attr(rt.cfg.ContextAttr)
		name, _, _ := strings.Cut(strings.TrimSpace(attr), "#")
		if name == "" || seen[name] || rt.template(name) != nil {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(rt.cfg.ImportConcurrency)
	for _, name := range names {
		g.Go(func() error {
			fn, err := rt.importOne(ctx, name)
			if err != nil {
				rt.diag("template import failed", "context", name, "error", err)
				return nil
			}
			rt.Register(name, fn)
			rt.logger.Debug("template imported", "context", name)
			return nil
		})
	}
	_ = g.Wait()
}

func (rt *Runtime) importOne(ctx context.Context, name string) (TemplateFunc, error) {
	if rt.cfg.ImportCallback != nil {
		imp := rt.cfg.ImportCallback(name)
		if imp == nil {
			return nil, fmt.Errorf("no importer for %q", name)
		}
		fn, err := imp(ctx)
		if err == nil && fn == nil {
			err = fmt.Errorf("importer for %q returned no template", name)
		}
		return fn, err
	}
	return OpenPlugin(rt.cfg.ImportPath(name))
}

// OpenPlugin loads a template from a Go plugin exporting Template as a
// func() hctx.Template or a variable of type hctx.TemplateFunc.
func OpenPlugin(path string) (TemplateFunc, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin %s: %w", path, err)
	}
	sym, err := p.Lookup(TemplateSymbol)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", path, err)
	}
	switch fn := sym.(type) {
	case func() Template:
		return fn, nil
	case *func() Template:
		return *fn, nil
	case *TemplateFunc:
		return *fn, nil
	}
	return nil, fmt.Errorf("plugin %s: symbol %s has type %T", path, TemplateSymbol, sym)
}
