package hctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/hctx-dev/hctx/pkg/reactive"
	"github.com/hctx-dev/hctx/pkg/vdom"
)

// errSink collects reported errors.
type errSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *errSink) handle(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *errSink) all() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

// recorder is a concurrency-safe string log.
type recorder struct {
	mu    sync.Mutex
	items []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.items...)
}

func (r *recorder) count(s string) int {
	n := 0
	for _, it := range r.list() {
		if it == s {
			n++
		}
	}
	return n
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setup builds a document around children and a runtime with a collecting
// error handler. The runtime is stopped when the test ends.
func setup(t *testing.T, cfg Config, children ...any) (*Runtime, *vdom.Document, *errSink) {
	t.Helper()
	doc := vdom.NewDocument(vdom.Body(children...))
	sink := &errSink{}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = sink.handle
	}
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	rt := New(doc, cfg)
	t.Cleanup(rt.Stop)
	return rt, doc, sink
}

func mustStart(t *testing.T, rt *Runtime) {
	t.Helper()
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func byID(t *testing.T, doc *vdom.Document, id string) *vdom.VNode {
	t.Helper()
	n := doc.GetElementByID(id)
	if n == nil {
		t.Fatalf("no element #%s", id)
	}
	return n
}

func setText(n any, text string) {
	n.(*vdom.VNode).SetText(text)
}

func counterTemplate() Template {
	return Template{
		Data: map[string]any{"count": 0},
		Actions: map[string]Action{
			"increment": {Handle: func(ac *ActionContext) error {
				n, _ := reactive.Number(ac.Data, "count")
				return ac.Data.Set("count", n+1)
			}},
		},
		Effects: map[string]Effect{
			"render": {Handle: func(ec *EffectContext) error {
				n, _ := reactive.Number(ec.Data, "count")
				setText(ec.Element, fmt.Sprint(n))
				return nil
			}},
		},
	}
}

func counterView(key, suffix string) *vdom.VNode {
	return vdom.Div(vdom.Ctx(key),
		vdom.Button(vdom.ID("inc"+suffix), vdom.Action("increment on click")),
		vdom.Span(vdom.ID("out"+suffix), vdom.Effect("render on a:increment")),
	)
}
