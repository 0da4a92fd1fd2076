package hctx

import (
	"context"
	"maps"
	"runtime/debug"
	"time"

	"github.com/hctx-dev/hctx/pkg/host"
	"github.com/hctx-dev/hctx/pkg/reactive"
	"github.com/hctx-dev/hctx/pkg/store"
	"github.com/hctx-dev/hctx/pkg/trigger"
)

// Details describe why a handler runs.
type Details struct {
	// Trigger is the trigger that fired: an event name, a lifecycle marker,
	// "hc:statechanged:<field>", "hc:action:<name>@<context>", or the reason
	// given to Execute.
	Trigger string `json:"trigger"`

	// InitTrigger is the trigger that started the chain of dispatches.
	InitTrigger string `json:"initTrigger"`

	Phase      trigger.Phase `json:"phase"`
	IsLocal    bool          `json:"isLocal"`
	ContextTag string        `json:"contextTag,omitempty"`
}

// ActionContext is passed to action handlers.
type ActionContext struct {
	// Data is the writable context data, shared by every fragment of the
	// context instance.
	Data *reactive.Record

	// Element is a detached clone of the bound node, or the node itself
	// when UseRawElement is set.
	Element host.Node

	// Props is the decoded payload of the handler key. Never nil.
	Props map[string]any

	Details Details

	// Event is the native event, or nil for other triggers.
	Event *host.Event

	ctx     context.Context
	b       *binding
	counter int
}

// Context returns the runtime context, as derived by observers.
func (ac *ActionContext) Context() context.Context { return ac.ctx }

// UseStore returns the writable value of a store.
func (ac *ActionContext) UseStore(h store.Handle) *reactive.Record {
	return ac.b.rt.stores.Use(h).Value
}

// OnCleanup registers fn to run when the bound node leaves the tree.
func (ac *ActionContext) OnCleanup(fn func()) { ac.b.rt.onCleanup(ac.b.node, fn) }

// Counter returns how many Execute timers led to this dispatch.
func (ac *ActionContext) Counter() int { return ac.counter }

// EffectContext is passed to effect handlers.
type EffectContext struct {
	// Data is the context data, read-only unless the effect allows state
	// mutations.
	Data reactive.Object

	// Element is the bound node.
	Element host.Node

	Props   map[string]any
	Details Details
	Event   *host.Event

	ctx     context.Context
	b       *binding
	mutable bool
}

// Context returns the runtime context, as derived by observers.
func (ec *EffectContext) Context() context.Context { return ec.ctx }

// UseStore returns a store value, read-only unless the effect allows state
// mutations.
func (ec *EffectContext) UseStore(h store.Handle) reactive.Object {
	inst := ec.b.rt.stores.Use(h)
	if ec.mutable {
		return inst.Value
	}
	return inst.Guarded
}

// OnCleanup registers fn to run when the bound node leaves the tree.
func (ec *EffectContext) OnCleanup(fn func()) { ec.b.rt.onCleanup(ec.b.node, fn) }

type runKey struct {
	kind Kind
	name string
	node host.Node
}

// call is one dispatch in flight.
type call struct {
	b       *binding
	d       Details
	ev      *host.Event
	counter int
	ctx     context.Context
}

// dispatch runs a handler for b unless the same handler is already running
// on the same node.
func (rt *Runtime) dispatch(b *binding, d Details, ev *host.Event, counter int) {
	key := runKey{kind: b.h.kind, name: b.h.key, node: b.node}
	info := DispatchInfo{
		Kind:    b.h.kind,
		Context: b.inst.key,
		Name:    b.h.key,
		Trigger: d.Trigger,
		Node:    b.node,
		Async:   b.h.async,
	}
	if rt.running[key] {
		rt.observeEnd(rt.ctx, info, Result{Outcome: OutcomeDropped})
		return
	}
	rt.running[key] = true

	c := &call{b: b, d: d, ev: ev, counter: counter}
	c.ctx = rt.observeStart(rt.ctx, info)

	if b.h.async {
		rt.wg.Add(1)
		go rt.runAsync(key, info, c)
		return
	}

	defer delete(rt.running, key)
	start := time.Now()
	outcome, err := c.runSync()
	rt.finish(c.ctx, info, outcome, err, time.Since(start))
}

func (rt *Runtime) finish(ctx context.Context, info DispatchInfo, outcome Outcome, err error, elapsed time.Duration) {
	rt.observeEnd(ctx, info, Result{Outcome: outcome, Err: err, Elapsed: elapsed})
	if err != nil {
		rt.report(&HandlerError{Kind: info.Kind, Context: info.Context, Name: info.Name, Err: err})
	}
}

func (rt *Runtime) runAsync(key runKey, info DispatchInfo, c *call) {
	defer rt.wg.Done()
	start := time.Now()
	outcome, err := c.runAsync()
	rt.loop.do(func() {
		delete(rt.running, key)
		rt.finish(c.ctx, info, outcome, err, time.Since(start))
	})
}

func (c *call) middlewareContext() *MiddlewareContext {
	b := c.b
	return &MiddlewareContext{
		Element:   b.node,
		Details:   c.d,
		Kind:      b.h.kind,
		onCleanup: func(fn func()) { b.rt.onCleanup(b.node, fn) },
	}
}

// runSync runs the whole dispatch on the loop.
func (c *call) runSync() (Outcome, error) {
	mc := c.middlewareContext()
	for _, m := range c.b.h.middleware {
		if !m.sync(mc) {
			return OutcomeVetoed, nil
		}
	}
	c.b.notify(trigger.PhaseBefore, c.d)
	if err := c.invoke(); err != nil {
		return OutcomeFailed, err
	}
	c.b.notify(trigger.PhaseAfter, c.d)
	return OutcomeCompleted, nil
}

// runAsync runs async gates and handlers on the calling goroutine and
// everything else on the loop.
func (c *call) runAsync() (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = OutcomeFailed, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	lp := &c.b.rt.loop
	mc := c.middlewareContext()
	for _, m := range c.b.h.middleware {
		ok := false
		if m.async != nil {
			if ok, err = m.async(c.ctx, mc); err != nil {
				return OutcomeFailed, err
			}
		} else {
			lp.do(func() { ok = m.sync(mc) })
		}
		if !ok {
			return OutcomeVetoed, nil
		}
	}

	lp.do(func() { c.b.notify(trigger.PhaseBefore, c.d) })
	if c.b.h.action.HandleAsync != nil || c.b.h.effect.HandleAsync != nil {
		err = c.invoke()
	} else {
		lp.do(func() { err = c.invoke() })
	}
	if err != nil {
		return OutcomeFailed, err
	}
	lp.do(func() { c.b.notify(trigger.PhaseAfter, c.d) })
	return OutcomeCompleted, nil
}

// invoke runs the handler body.
func (c *call) invoke() error {
	h, b := c.b.h, c.b
	if h.kind == KindAction {
		el := b.node
		if !h.rawElement {
			el = el.CloneNode()
		}
		ac := &ActionContext{
			Data:    b.inst.data,
			Element: el,
			Props:   maps.Clone(h.props),
			Details: c.d,
			Event:   c.ev,
			ctx:     c.ctx,
			b:       b,
			counter: c.counter,
		}
		if h.action.HandleAsync != nil {
			return h.action.HandleAsync(c.ctx, ac)
		}
		return h.action.Handle(ac)
	}

	ec := &EffectContext{
		Data:    b.inst.guarded,
		Element: b.node,
		Props:   maps.Clone(h.props),
		Details: c.d,
		Event:   c.ev,
		ctx:     c.ctx,
		b:       b,
		mutable: h.mutable,
	}
	if h.mutable {
		ec.Data = b.inst.data
	}
	if h.effect.HandleAsync != nil {
		return h.effect.HandleAsync(c.ctx, ec)
	}
	return h.effect.Handle(ec)
}

// notify runs the subscribers of an action for one phase. Local actions
// notify their fragment only.
func (b *binding) notify(phase trigger.Phase, d Details) {
	if b.h.kind != KindAction {
		return
	}
	subs := b.inst.subscribers
	if b.h.local {
		subs = b.frag.subscribers
	}
	o := &override{
		initTrigger: d.InitTrigger,
		phase:       phase,
		setLocal:    true,
		local:       b.h.local,
	}
	for _, s := range subs[b.h.name].Values() {
		s.fire(o)
	}
}
