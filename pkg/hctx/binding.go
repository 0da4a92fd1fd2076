package hctx

import (
	"errors"
	"strings"

	"github.com/hctx-dev/hctx/pkg/host"
	"github.com/hctx-dev/hctx/pkg/reactive"
	"github.com/hctx-dev/hctx/pkg/store"
	"github.com/hctx-dev/hctx/pkg/trigger"
)

const actionTriggerPrefix = "hc:action:"

// pass is one resolution sweep: the initial pass at Start, or one mutation
// record.
type pass struct {
	mutation bool
	skip     map[host.Node]bool
	banned   map[host.Node]bool
	runners  []func()
	errs     []error
}

func newPass(mutation bool) *pass {
	return &pass{
		mutation: mutation,
		skip:     make(map[host.Node]bool),
		banned:   make(map[host.Node]bool),
	}
}

// runInit fires the hc:loaded or hc:mutated callbacks collected so far.
func (p *pass) runInit() {
	runners := p.runners
	p.runners = nil
	for _, fn := range runners {
		fn()
	}
}

// binding is one handler bound to one node.
type binding struct {
	rt   *Runtime
	h    *handler
	inst *instance
	frag *fragment
	node host.Node
}

// override carries the fields a notifier forces on the callback's details.
type override struct {
	trigger     string
	initTrigger string
	phase       trigger.Phase
	setLocal    bool
	local       bool
}

// resolveContext resolves a context marker node: nested markers first, then
// every action and effect node it owns.
func (rt *Runtime) resolveContext(p *pass, node host.Node) {
	if p.skip[node] {
		return
	}
	p.skip[node] = true
	if _, ok := rt.fragments[node]; ok {
		return
	}

	attr, _ := node.Attr(rt.cfg.ContextAttr)
	key := strings.TrimSpace(attr)

	for _, nested := range node.Descendants(host.HasAnyAttr(rt.cfg.ContextAttr)) {
		rt.resolveContext(p, nested)
	}

	inst, err := rt.instance(key)
	if err != nil {
		p.errs = append(p.errs, &BindError{Node: node, Attr: attr, Err: err})
		// The subtree stays unbound rather than joining an outer context.
		for _, n := range host.Matching(node, host.HasAnyAttr(rt.cfg.ActionAttr, rt.cfg.EffectAttr)) {
			p.banned[n] = true
		}
		return
	}
	frag := rt.newFragment(inst, node)

	owned := append([]host.Node{node}, node.Descendants(host.HasAnyAttr(rt.cfg.ActionAttr, rt.cfg.EffectAttr))...)
	for _, child := range owned {
		if p.banned[child] {
			continue
		}
		if other, ok := child.Attr(rt.cfg.ContextAttr); ok && other != attr && p.skip[child] {
			continue
		}
		p.banned[child] = true
		if err := rt.bindNode(p, frag, child); err != nil {
			p.errs = append(p.errs, err)
		}
	}
}

// bindNode binds every handler declared on node into frag. On error the
// node's partial bindings are rolled back and no init callbacks are queued.
func (rt *Runtime) bindNode(p *pass, frag *fragment, node host.Node) error {
	if rt.bound[node] {
		return nil
	}
	before := len(rt.cleanups[node])
	runners := len(p.runners)

	err := rt.bindAttrs(p, frag, node)
	if err != nil {
		fns := rt.cleanups[node][before:]
		rt.cleanups[node] = rt.cleanups[node][:before]
		if len(rt.cleanups[node]) == 0 {
			delete(rt.cleanups, node)
		}
		for _, fn := range fns {
			fn()
		}
		p.runners = p.runners[:runners]
		return err
	}
	if node.HasAttr(rt.cfg.ActionAttr) || node.HasAttr(rt.cfg.EffectAttr) {
		rt.bound[node] = true
	}
	return nil
}

func (rt *Runtime) bindAttrs(p *pass, frag *fragment, node host.Node) error {
	inst := frag.inst

	if attr, ok := node.Attr(rt.cfg.ActionAttr); ok {
		ast, err := trigger.Parse(attr)
		if err != nil {
			return &BindError{Node: node, Attr: attr, Err: err}
		}
		var ce *trigger.CircularError
		if err := trigger.CheckCircular(ast); errors.As(err, &ce) {
			return &BindError{Node: node, Attr: attr, Err: &CircularTriggerError{Handler: ce.Handler, Trigger: ce.Trigger}}
		}
		for _, key := range ast.Keys() {
			h, err := rt.resolveAction(inst, frag, key)
			if err != nil {
				return &BindError{Node: node, Attr: attr, Err: err}
			}
			b := &binding{rt: rt, h: h, inst: inst, frag: frag, node: node}
			for _, t := range ast.Triggers(key) {
				if err := b.bindTrigger(p, t); err != nil {
					return &BindError{Node: node, Attr: attr, Err: err}
				}
			}
		}
	}

	if attr, ok := node.Attr(rt.cfg.EffectAttr); ok {
		ast, err := trigger.Parse(attr)
		if err != nil {
			return &BindError{Node: node, Attr: attr, Err: err}
		}
		for _, key := range ast.Keys() {
			h, err := rt.resolveEffect(inst, key)
			if err != nil {
				return &BindError{Node: node, Attr: attr, Err: err}
			}
			b := &binding{rt: rt, h: h, inst: inst, frag: frag, node: node}
			for _, t := range ast.Triggers(key) {
				if err := b.bindTrigger(p, t); err != nil {
					return &BindError{Node: node, Attr: attr, Err: err}
				}
			}
		}
	}
	return nil
}

// callback returns the function every trigger form ends up calling. runPhase
// is the notification phase the callback accepts.
func (b *binding) callback(trig string, runPhase trigger.Phase) func(ev *host.Event, o *override) {
	return func(ev *host.Event, o *override) {
		rt := b.rt
		if !rt.ready.Load() {
			return
		}
		d := Details{
			Trigger:     trig,
			InitTrigger: trig,
			Phase:       trigger.PhaseAfter,
			ContextTag:  b.inst.tag,
		}
		if b.h.kind == KindAction {
			d.IsLocal = b.h.local
		}
		if o != nil {
			if o.trigger != "" {
				d.Trigger = o.trigger
			}
			if o.initTrigger != "" {
				d.InitTrigger = o.initTrigger
			}
			if o.phase != "" {
				d.Phase = o.phase
			}
			if o.setLocal {
				d.IsLocal = o.local
			}
		}
		if d.Phase != runPhase {
			return
		}
		rt.dispatch(b, d, ev, 0)
	}
}

func (b *binding) bindTrigger(p *pass, t string) error {
	rt := b.rt
	switch trigger.Classify(t) {
	case trigger.KindStateChanged:
		return b.bindStateChanged(t)

	case trigger.KindLoaded:
		if !p.mutation {
			fire := b.callback(t, trigger.PhaseAfter)
			p.runners = append(p.runners, func() { fire(nil, nil) })
		}

	case trigger.KindMutated:
		if p.mutation {
			fire := b.callback(t, trigger.PhaseAfter)
			p.runners = append(p.runners, func() { fire(nil, nil) })
		}

	case trigger.KindAction:
		ref, err := trigger.ParseActionRef(t)
		if err != nil {
			return err
		}
		if ref.External() {
			return b.bindExternal(ref)
		}
		if _, ok := b.inst.tmpl.Actions[ref.Name]; !ok {
			return &ResolutionError{Kind: UnknownAction, Name: ref.Name, Context: b.inst.key}
		}
		fire := b.callback(actionTriggerPrefix+ref.Name+"@"+b.inst.key, ref.RunPhase())
		sub := &subscriber{node: b.node, fire: func(o *override) { fire(nil, o) }}
		inst, frag := b.inst, b.frag
		subscribeTo(inst.subscribers, ref.Name, sub)
		subscribeTo(frag.subscribers, ref.Name, sub)
		rt.addCleanup(b.node, func() {
			unsubscribeFrom(inst.subscribers, ref.Name, sub)
			unsubscribeFrom(frag.subscribers, ref.Name, sub)
		})

	default:
		fire := b.callback(t, trigger.PhaseAfter)
		remove := b.node.Listen(t, func(ev *host.Event) {
			rt.loop.do(func() { fire(ev, nil) })
		})
		rt.addCleanup(b.node, remove)
	}
	return nil
}

// bindExternal subscribes to an action of another context. Until that
// context has an instance the subscription waits in the pending table.
func (b *binding) bindExternal(ref trigger.ActionRef) error {
	rt := b.rt
	key := ref.ContextKey()
	if target, ok := rt.instances[key]; ok {
		if _, ok := target.tmpl.Actions[ref.Name]; !ok {
			return &ResolutionError{Kind: UnknownAction, Name: ref.Name, Context: key}
		}
	}

	fire := b.callback(actionTriggerPrefix+ref.Name+"@"+key, ref.RunPhase())
	sub := &subscriber{node: b.node, attr: b.attr(), fire: func(o *override) { fire(nil, o) }}
	if target, ok := rt.instances[key]; ok {
		subscribeTo(target.subscribers, ref.Name, sub)
	} else {
		rt.pending.add(key, ref.Name, sub)
	}
	rt.addCleanup(b.node, func() {
		rt.pending.remove(key, ref.Name, sub)
		if target, ok := rt.instances[key]; ok {
			unsubscribeFrom(target.subscribers, ref.Name, sub)
		}
	})
	return nil
}

// attr returns the attribute value b was declared in.
func (b *binding) attr() string {
	name := b.rt.cfg.ActionAttr
	if b.h.kind == KindEffect {
		name = b.rt.cfg.EffectAttr
	}
	v, _ := b.node.Attr(name)
	return v
}

// bindStateChanged wires hc:statechanged[:field]. With a Subscribe function
// the dry run decides what is watched and the field, if any, filters the
// notifications. Without one, a field trigger watches that field of the
// context data.
func (b *binding) bindStateChanged(t string) error {
	rt := b.rt
	field := trigger.StateField(t)
	col := rt.subs.Collector()

	switch {
	case b.h.subscribe != nil:
		b.h.subscribe(&SubscribeArgs{
			Data:     b.inst.guarded,
			UseStore: func(h store.Handle) reactive.Object { return rt.stores.Use(h).Guarded },
			Add:      col.Add,
		})
	case field != "":
		col.Add(b.inst.data, field)
	default:
		rt.diag("hc:statechanged without a Subscribe function is ignored", "handler", b.h.key, "context", b.inst.key)
		return nil
	}
	if col.Len() == 0 {
		return nil
	}

	fire := b.callback(t, trigger.PhaseAfter)
	want := reactive.StateChangedPrefix + field
	cb := reactive.NewCallback(func(changed string) {
		if field != "" && changed != want {
			return
		}
		rt.loop.do(func() { fire(nil, &override{trigger: changed}) })
	})
	rt.addCleanup(b.node, col.Bind(cb))
	return nil
}
