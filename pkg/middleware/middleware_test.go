package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hctx-dev/hctx/pkg/hctx"
	"github.com/hctx-dev/hctx/pkg/vdom"
)

// harness is a started runtime over a small document with one context
// "jobs" that has a succeeding, a failing and a vetoed action.
type harness struct {
	rt   *hctx.Runtime
	doc  *vdom.Document
	errs []error
}

func newHarness(t *testing.T, observers []hctx.Observer, gates ...*hctx.Middleware) *harness {
	t.Helper()
	h := &harness{}
	h.doc = vdom.NewDocument(vdom.Body(
		vdom.Div(vdom.Ctx("jobs"),
			vdom.Button(vdom.ID("ok"), vdom.Action("run on click")),
			vdom.Button(vdom.ID("fail"), vdom.Action("fail on click")),
			vdom.Button(vdom.ID("veto"), vdom.Action("blocked on click")),
			vdom.Button(vdom.ID("slow"), vdom.Action("slow on click")),
		),
	))
	h.rt = hctx.New(h.doc, hctx.Config{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		ErrorHandler: func(err error) { h.errs = append(h.errs, err) },
		Observers:    observers,
	})
	no := hctx.NewMiddleware(func(*hctx.MiddlewareContext) bool { return false })
	h.rt.Register("jobs", func() hctx.Template {
		return hctx.Template{
			Options: hctx.Options{Middleware: gates},
			Actions: map[string]hctx.Action{
				"run":     {Handle: func(*hctx.ActionContext) error { return nil }},
				"fail":    {Handle: func(*hctx.ActionContext) error { return errors.New("boom") }},
				"blocked": {Handle: func(*hctx.ActionContext) error { return nil }, Middleware: []*hctx.Middleware{no}},
				"slow": {HandleAsync: func(ctx context.Context, _ *hctx.ActionContext) error {
					<-ctx.Done()
					return ctx.Err()
				}},
			},
		}
	})
	if err := h.rt.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(h.rt.Stop)
	return h
}

func (h *harness) click(t *testing.T, id string) {
	t.Helper()
	n := h.doc.GetElementByID(id)
	if n == nil {
		t.Fatalf("no element #%s", id)
	}
	n.Click()
}
