package hctx

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/hctx-dev/hctx/pkg/vdom"
)

func pingTemplates(rt *Runtime, shown *recorder) {
	rt.Register("source", func() Template {
		return Template{Actions: map[string]Action{
			"ping": {Handle: func(*ActionContext) error { return nil }},
		}}
	})
	rt.Register("sink", func() Template {
		return Template{Effects: map[string]Effect{
			"show": {Handle: func(ec *EffectContext) error {
				shown.add(ec.Details.Trigger)
				return nil
			}},
		}}
	})
}

func TestCrossContextSubscription(t *testing.T) {
	source := func() *vdom.VNode {
		return vdom.Div(vdom.Ctx("source"), vdom.Button(vdom.ID("ping"), vdom.Action("ping on click")))
	}
	sink := func() *vdom.VNode {
		return vdom.Div(vdom.Ctx("sink"), vdom.Span(vdom.ID("view"), vdom.Effect("show on a:ping@source")))
	}

	tests := []struct {
		name  string
		nodes []any
	}{
		{"target resolved first", []any{source(), sink()}},
		{"target resolved later", []any{sink(), source()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var shown recorder
			rt, doc, sink := setup(t, Config{}, tt.nodes...)
			pingTemplates(rt, &shown)
			mustStart(t, rt)

			byID(t, doc, "ping").Click()
			if got := shown.list(); !slices.Equal(got, []string{"hc:action:ping@source"}) {
				t.Fatalf("shown = %v", got)
			}
			if snap := rt.Snapshot(); len(snap.Pending) != 0 {
				t.Errorf("pending = %+v, want merged", snap.Pending)
			}

			// A removed subscriber no longer hears the source.
			byID(t, doc, "view").Remove()
			byID(t, doc, "ping").Click()
			if got := len(shown.list()); got != 1 {
				t.Errorf("removed effect ran again (%d runs)", got)
			}
			for _, c := range rt.Snapshot().Contexts {
				if c.Key == "source" && c.Subscribers["ping"] != 0 {
					t.Errorf("source still has %d ping subscribers", c.Subscribers["ping"])
				}
			}
			if errs := sink.all(); len(errs) != 0 {
				t.Errorf("errors = %v", errs)
			}
		})
	}
}

func TestPendingPrunedOnRemoval(t *testing.T) {
	var shown recorder
	rt, doc, _ := setup(t, Config{},
		vdom.Div(vdom.ID("sink"), vdom.Ctx("sink"), vdom.Span(vdom.Effect("show on a:ping@source"))),
	)
	pingTemplates(rt, &shown)
	mustStart(t, rt)

	if got := len(rt.Snapshot().Pending); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
	byID(t, doc, "sink").Remove()
	if snap := rt.Snapshot(); len(snap.Pending) != 0 || snap.BoundNodes != 0 {
		t.Errorf("after removal snapshot = %+v", snap)
	}
	if snap := rt.Snapshot(); snap.Contexts[0].Fragments != 0 {
		t.Errorf("fragment not released: %+v", snap.Contexts[0])
	}
}

func TestRemovalRunsCleanupsOnce(t *testing.T) {
	cleaned := map[string]int{}
	rt, doc, _ := setup(t, Config{},
		vdom.Div(vdom.ID("root"), vdom.Ctx("doc"),
			vdom.Section(vdom.ID("outer"), vdom.Action("arm on hc:loaded"),
				vdom.Span(vdom.ID("inner"), vdom.Action("arm on hc:loaded")),
			),
		),
	)
	rt.Register("doc", func() Template {
		return Template{Actions: map[string]Action{
			"arm": {UseRawElement: true, Handle: func(ac *ActionContext) error {
				id, _ := ac.Element.Attr("id")
				ac.OnCleanup(func() { cleaned[id]++ })
				ac.OnCleanup(func() { cleaned[id+":second"]++ })
				return nil
			}},
		}}
	})
	mustStart(t, rt)

	outer := byID(t, doc, "outer")
	outer.Remove()

	want := map[string]int{"outer": 1, "outer:second": 1, "inner": 1, "inner:second": 1}
	for k, v := range want {
		if cleaned[k] != v {
			t.Errorf("cleaned[%s] = %d, want %d", k, cleaned[k], v)
		}
	}
	if snap := rt.Snapshot(); snap.BoundNodes != 0 {
		t.Errorf("bound nodes = %d, want 0", snap.BoundNodes)
	}

	// A detached subtree is not bound any more; removing it again is a no-op.
	outer.Remove()
	if cleaned["outer"] != 1 {
		t.Errorf("cleanup ran %d times", cleaned["outer"])
	}
}

func TestListenersRemovedOnRemoval(t *testing.T) {
	rt, doc, _ := setup(t, Config{}, counterView("counter", ""))
	rt.Register("counter", counterTemplate)
	mustStart(t, rt)

	inc := byID(t, doc, "inc")
	if inc.ListenerCount("click") != 1 {
		t.Fatalf("listeners = %d, want 1", inc.ListenerCount("click"))
	}
	inc.Remove()
	if inc.ListenerCount("click") != 0 {
		t.Errorf("listeners = %d after removal", inc.ListenerCount("click"))
	}
}

func TestAddedNodesAreBound(t *testing.T) {
	var log recorder
	rt, doc, sink := setup(t, Config{}, counterView("counter", ""))
	rt.Register("counter", func() Template {
		tmpl := counterTemplate()
		tmpl.Effects["loaded"] = Effect{Handle: func(ec *EffectContext) error {
			log.add("loaded")
			return nil
		}}
		tmpl.Effects["mutated"] = Effect{Handle: func(ec *EffectContext) error {
			log.add("mutated")
			return nil
		}}
		return tmpl
	})
	mustStart(t, rt)

	ctx := byID(t, doc, "inc").Parent()
	ctx.AppendChild(vdom.Button(vdom.ID("inc2"), vdom.Action("increment on click")))
	ctx.AppendChild(vdom.Span(vdom.Effect("loaded on hc:loaded; mutated on hc:mutated")))

	byID(t, doc, "inc2").Click()
	if got := byID(t, doc, "out").TextContent(); got != "1" {
		t.Errorf("text = %q, want 1", got)
	}
	if got := log.list(); !slices.Equal(got, []string{"mutated"}) {
		t.Errorf("lifecycle = %v, want [mutated]", got)
	}

	// A new context subtree resolves on insertion.
	doc.Body().AppendChild(counterView("counter#new", "-new"))
	byID(t, doc, "inc-new").Click()
	if got := byID(t, doc, "out-new").TextContent(); got != "1" {
		t.Errorf("new context text = %q, want 1", got)
	}
	if errs := sink.all(); len(errs) != 0 {
		t.Errorf("errors = %v", errs)
	}
}

func TestLoadedOnlyOnInitialPass(t *testing.T) {
	var log recorder
	rt, _, _ := setup(t, Config{},
		vdom.Div(vdom.Ctx("doc"), vdom.Span(vdom.Effect("loaded on hc:loaded; mutated on hc:mutated"))),
	)
	rt.Register("doc", func() Template {
		return Template{Effects: map[string]Effect{
			"loaded":  {Handle: func(*EffectContext) error { log.add("loaded"); return nil }},
			"mutated": {Handle: func(*EffectContext) error { log.add("mutated"); return nil }},
		}}
	})
	mustStart(t, rt)
	if got := log.list(); !slices.Equal(got, []string{"loaded"}) {
		t.Errorf("lifecycle = %v, want [loaded]", got)
	}
}

func TestMovedNodeStaysBound(t *testing.T) {
	rt, doc, _ := setup(t, Config{},
		counterView("counter", ""),
		vdom.Div(vdom.ID("other"), vdom.Ctx("counter")),
	)
	rt.Register("counter", counterTemplate)
	mustStart(t, rt)

	inc := byID(t, doc, "inc")
	byID(t, doc, "other").AppendChild(inc)
	if inc.ListenerCount("click") != 1 {
		t.Fatalf("listeners = %d after move, want 1", inc.ListenerCount("click"))
	}
	inc.Click()
	if got := byID(t, doc, "out").TextContent(); got != "1" {
		t.Errorf("text = %q, want 1", got)
	}
}

func TestActionCloneIsDetached(t *testing.T) {
	rt, doc, sink := setup(t, Config{},
		vdom.Div(vdom.ID("list"), vdom.Ctx("list"),
			vdom.Button(vdom.ID("add"), vdom.Action("add on click")),
		),
	)
	rt.Register("list", func() Template {
		return Template{
			Actions: map[string]Action{
				"add": {Handle: func(ac *ActionContext) error {
					ac.Element.(*vdom.VNode).AppendChild(vdom.Span(vdom.ID("row"), vdom.Effect("row on hc:mutated")))
					return nil
				}},
			},
			Effects: map[string]Effect{
				"row": {Handle: func(ec *EffectContext) error {
					setText(ec.Element, "bound")
					return nil
				}},
			},
		}
	})
	mustStart(t, rt)

	// The handler appends to its clone, which is outside the tree.
	byID(t, doc, "add").Click()
	if doc.GetElementByID("row") != nil {
		t.Fatal("clone mutations must not reach the tree")
	}
	if errs := sink.all(); len(errs) != 0 {
		t.Fatalf("errors = %v", errs)
	}
}

func TestEffectInsertsBoundNode(t *testing.T) {
	rt, doc, sink := setup(t, Config{},
		vdom.Div(vdom.Ctx("list"),
			vdom.Button(vdom.ID("add"), vdom.Action("add on click")),
			vdom.Ul(vdom.ID("rows"), vdom.Effect("grow on a:add")),
		),
	)
	rt.Register("list", func() Template {
		return Template{
			Data: map[string]any{"n": 0},
			Actions: map[string]Action{
				"add": {Handle: func(*ActionContext) error { return nil }},
			},
			Effects: map[string]Effect{
				"grow": {Handle: func(ec *EffectContext) error {
					ec.Element.(*vdom.VNode).AppendChild(vdom.Li(vdom.ID("row"), vdom.Effect("mark on hc:mutated")))
					return nil
				}},
				"mark": {Handle: func(ec *EffectContext) error {
					setText(ec.Element, "bound")
					return nil
				}},
			},
		}
	})
	mustStart(t, rt)

	byID(t, doc, "add").Click()
	if got := byID(t, doc, "row").TextContent(); got != "bound" {
		t.Errorf("row text = %q, want bound", got)
	}
	if errs := sink.all(); len(errs) != 0 {
		t.Errorf("errors = %v", errs)
	}
}

func TestAddedNodeOutsideContext(t *testing.T) {
	rt, doc, sink := setup(t, Config{}, counterView("counter", ""))
	rt.Register("counter", counterTemplate)
	mustStart(t, rt)

	doc.Body().AppendChild(vdom.Button(vdom.Action("increment on click")))
	errs := sink.all()
	var re *ResolutionError
	if len(errs) != 1 || !errors.As(errs[0], &re) || re.Kind != OutsideContext {
		t.Errorf("errors = %v, want OutsideContext", errs)
	}
}

func TestBindErrorsAreIsolated(t *testing.T) {
	rt, doc, _ := setup(t, Config{},
		vdom.Div(vdom.Ctx("counter"),
			vdom.Button(vdom.ID("bad"), vdom.Action("increment on click; nope on click")),
			vdom.Button(vdom.ID("loop"), vdom.Action("increment on a:increment")),
			vdom.Button(vdom.ID("syntax"), vdom.Action("increment click")),
			vdom.Button(vdom.ID("inc"), vdom.Action("increment on click")),
			vdom.Span(vdom.ID("out"), vdom.Effect("render on a:increment")),
		),
	)
	rt.Register("counter", counterTemplate)

	err := rt.Start(context.Background())
	var (
		re *ResolutionError
		ce *CircularTriggerError
		be *BindError
	)
	if !errors.As(err, &re) || re.Kind != UnknownAction || re.Name != "nope" {
		t.Errorf("missing unknown action error in %v", err)
	}
	if !errors.As(err, &ce) {
		t.Errorf("missing circular trigger error in %v", err)
	}
	if !errors.As(err, &be) {
		t.Errorf("errors should be BindErrors: %v", err)
	}

	// The failed node is rolled back completely.
	if n := byID(t, doc, "bad").ListenerCount("click"); n != 0 {
		t.Errorf("bad node kept %d listeners", n)
	}
	byID(t, doc, "inc").Click()
	if got := byID(t, doc, "out").TextContent(); got != "1" {
		t.Errorf("text = %q, want 1", got)
	}
}

func TestEffectKeysRejectLocalAndTag(t *testing.T) {
	rt, _, _ := setup(t, Config{},
		vdom.Div(vdom.Ctx("counter"), vdom.Span(vdom.Effect("$render on click"))),
	)
	rt.Register("counter", counterTemplate)
	if err := rt.Start(context.Background()); err == nil {
		t.Error("local effect should fail to bind")
	}
}

func TestUnresolvedMarkerKeepsSubtreeUnbound(t *testing.T) {
	unknownContext := func(t *testing.T, errs []error) {
		t.Helper()
		var re *ResolutionError
		if len(errs) != 1 || !errors.As(errs[0], &re) || re.Kind != UnknownContext || re.Name != "missing" {
			t.Errorf("errors = %v, want one unknown context error", errs)
		}
	}

	t.Run("initial pass", func(t *testing.T) {
		rt, doc, sink := setup(t, Config{},
			vdom.Div(vdom.Ctx("counter"),
				vdom.Div(vdom.Ctx("missing"),
					vdom.Button(vdom.ID("inner"), vdom.Action("increment on click")),
				),
				vdom.Span(vdom.ID("out"), vdom.Effect("render on a:increment")),
			),
		)
		rt.Register("counter", counterTemplate)
		if err := rt.Start(context.Background()); err == nil {
			t.Fatal("Start() should report the unknown context")
		}
		unknownContext(t, sink.all())

		inner := byID(t, doc, "inner")
		if n := inner.ListenerCount("click"); n != 0 {
			t.Errorf("inner button has %d click listeners", n)
		}
		inner.Click()
		if got := byID(t, doc, "out").TextContent(); got != "" {
			t.Errorf("outer context ran for a nested node: text = %q", got)
		}
		if bound, _ := rt.NodeState(inner); bound {
			t.Error("inner button should stay unbound")
		}
	})

	t.Run("inserted marker", func(t *testing.T) {
		rt, doc, sink := setup(t, Config{}, counterView("counter", ""))
		rt.Register("counter", counterTemplate)
		mustStart(t, rt)

		byID(t, doc, "inc").Parent().AppendChild(
			vdom.Div(vdom.Ctx("missing"),
				vdom.Button(vdom.ID("inner"), vdom.Action("increment on click")),
			),
		)
		unknownContext(t, sink.all())

		byID(t, doc, "inner").Click()
		if got := byID(t, doc, "out").TextContent(); got != "" {
			t.Errorf("outer context ran for a nested node: text = %q", got)
		}
	})

	t.Run("node inserted under failed marker", func(t *testing.T) {
		rt, doc, sink := setup(t, Config{},
			vdom.Div(vdom.Ctx("counter"),
				vdom.Div(vdom.ID("missing"), vdom.Ctx("missing")),
				vdom.Span(vdom.ID("out"), vdom.Effect("render on a:increment")),
			),
		)
		rt.Register("counter", counterTemplate)
		_ = rt.Start(context.Background())
		unknownContext(t, sink.all())

		byID(t, doc, "missing").AppendChild(vdom.Button(vdom.ID("inner"), vdom.Action("increment on click")))
		errs := sink.all()
		var re *ResolutionError
		if len(errs) != 2 || !errors.As(errs[1], &re) || re.Kind != OutsideContext {
			t.Errorf("errors = %v, want OutsideContext for the inserted node", errs)
		}
		byID(t, doc, "inner").Click()
		if got := byID(t, doc, "out").TextContent(); got != "" {
			t.Errorf("outer context ran for a nested node: text = %q", got)
		}
	})
}

func TestStagedReferenceToUnknownAction(t *testing.T) {
	source := func() *vdom.VNode {
		return vdom.Div(vdom.Ctx("source"), vdom.Button(vdom.Action("ping on click")))
	}
	sink := func() *vdom.VNode {
		return vdom.Div(vdom.Ctx("sink"), vdom.Span(vdom.ID("view"), vdom.Effect("show on a:nosuch@source")))
	}

	tests := []struct {
		name  string
		nodes []any
	}{
		{"target resolved first", []any{source(), sink()}},
		{"target resolved later", []any{sink(), source()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var shown recorder
			rt, doc, errs := setup(t, Config{}, tt.nodes...)
			pingTemplates(rt, &shown)

			err := rt.Start(context.Background())
			var (
				re *ResolutionError
				be *BindError
			)
			if !errors.As(err, &re) || re.Kind != UnknownAction || re.Name != "nosuch" || re.Context != "source" {
				t.Fatalf("Start() error = %v, want unknown action nosuch in source", err)
			}
			if !errors.As(err, &be) || be.Node != byID(t, doc, "view") {
				t.Errorf("error should name the referencing node: %v", err)
			}
			if got := len(errs.all()); got != 1 {
				t.Errorf("reported %d errors, want 1", got)
			}
			if got := len(rt.Snapshot().Pending); got != 0 {
				t.Errorf("pending = %d, want 0", got)
			}
		})
	}
}
