package hctx

import (
	"strings"

	"github.com/hctx-dev/hctx/internal/orderedset"
	"github.com/hctx-dev/hctx/pkg/host"
	"github.com/hctx-dev/hctx/pkg/reactive"
	"github.com/hctx-dev/hctx/pkg/trigger"
)

// instance is the live realisation of a template under one "name#tag" key.
// All fields are owned by the runtime loop except data, which locks itself.
type instance struct {
	key  string
	name string
	tag  string
	tmpl Template

	data    *reactive.Record
	guarded reactive.Object

	actions     map[string]*handler
	effects     map[string]*handler
	subscribers map[string]*orderedset.Set[*subscriber]
	fragments   map[int]*fragment
}

// fragment is one rooted occurrence of a context marker. Local ($) actions
// are cached and notified here instead of on the instance.
type fragment struct {
	id          int
	inst        *instance
	node        host.Node
	actions     map[string]*handler
	subscribers map[string]*orderedset.Set[*subscriber]
}

// subscriber is an action-trigger callback bound to node.
type subscriber struct {
	node host.Node
	attr string
	fire func(o *override)
}

// handler is a resolved action or effect, merged with its context options.
type handler struct {
	kind  Kind
	key   string
	name  string
	local bool
	props map[string]any

	middleware []*Middleware
	async      bool

	rawElement bool
	mutable    bool
	subscribe  SubscribeFunc

	action Action
	effect Effect
}

// instance returns the instance for key, creating it on first use.
func (rt *Runtime) instance(key string) (*instance, error) {
	if inst, ok := rt.instances[key]; ok {
		return inst, nil
	}
	name, tag, _ := strings.Cut(key, "#")
	fn := rt.template(name)
	if fn == nil {
		return nil, &ResolutionError{Kind: UnknownContext, Name: name}
	}

	tmpl := fn()
	data := reactive.NewRecord(tmpl.Data)
	inst := &instance{
		key:         key,
		name:        name,
		tag:         tag,
		tmpl:        tmpl,
		data:        data,
		guarded:     reactive.Guard("data", data),
		actions:     make(map[string]*handler),
		effects:     make(map[string]*handler),
		subscribers: make(map[string]*orderedset.Set[*subscriber]),
		fragments:   make(map[int]*fragment),
	}
	rt.instances[key] = inst
	rt.logger.Debug("context created", "context", key)
	return inst, nil
}

func (rt *Runtime) newFragment(inst *instance, node host.Node) *fragment {
	rt.nextFragment++
	f := &fragment{
		id:          rt.nextFragment,
		inst:        inst,
		node:        node,
		actions:     make(map[string]*handler),
		subscribers: make(map[string]*orderedset.Set[*subscriber]),
	}
	inst.fragments[f.id] = f
	rt.fragments[node] = f
	return f
}

// releaseFragment forgets the fragment rooted at node.
func (rt *Runtime) releaseFragment(node host.Node) {
	f, ok := rt.fragments[node]
	if !ok {
		return
	}
	delete(rt.fragments, node)
	delete(f.inst.fragments, f.id)
	clear(f.subscribers)
	clear(f.actions)
}

// enclosingFragment returns the fragment of the nearest context marker at
// or above node, or nil when there is none or that marker never resolved.
func (rt *Runtime) enclosingFragment(node host.Node) *fragment {
	for n := node; n != nil; n = n.ParentNode() {
		if f, ok := rt.fragments[n]; ok {
			return f
		}
		if n.HasAttr(rt.cfg.ContextAttr) {
			return nil
		}
	}
	return nil
}

// resolveAction returns the cached action for key, resolving it on first
// use. Local actions are cached on the fragment.
func (rt *Runtime) resolveAction(inst *instance, frag *fragment, key string) (*handler, error) {
	hk, err := trigger.ParseHandler(key)
	if err != nil {
		return nil, err
	}
	cacheKey := strings.TrimPrefix(key, "$")
	cache := inst.actions
	if hk.Local {
		cache = frag.actions
	}
	if h, ok := cache[cacheKey]; ok {
		return h, nil
	}

	def, ok := inst.tmpl.Actions[hk.Name]
	if !ok {
		return nil, &ResolutionError{Kind: UnknownAction, Name: hk.Name, Context: inst.key}
	}
	if reason := def.validate(); reason != "" {
		return nil, &ResolutionError{Kind: InvalidHandler, Name: hk.Name, Context: inst.key, Reason: reason}
	}
	opts := inst.tmpl.ActionOptions
	mw, async, err := mergeMiddleware(key, inst.tmpl.Options.Middleware, opts.Middleware, def.Middleware)
	if err != nil {
		return nil, err
	}

	h := &handler{
		kind:       KindAction,
		key:        cacheKey,
		name:       hk.Name,
		local:      hk.Local,
		props:      hk.Props,
		middleware: mw,
		async:      async || def.HandleAsync != nil,
		rawElement: opts.UseRawElement || def.UseRawElement,
		subscribe:  def.Subscribe,
		action:     def,
	}
	cache[cacheKey] = h
	return h, nil
}

// resolveEffect returns the cached effect for key.
func (rt *Runtime) resolveEffect(inst *instance, key string) (*handler, error) {
	if h, ok := inst.effects[key]; ok {
		return h, nil
	}
	hk, err := trigger.ParseHandler(key)
	if err != nil {
		return nil, err
	}
	if hk.Local || hk.Tag != "" {
		return nil, &trigger.SyntaxError{Attr: key, Msg: "effects cannot be local or tagged"}
	}

	def, ok := inst.tmpl.Effects[hk.Name]
	if !ok {
		return nil, &ResolutionError{Kind: UnknownEffect, Name: hk.Name, Context: inst.key}
	}
	if reason := def.validate(); reason != "" {
		return nil, &ResolutionError{Kind: InvalidHandler, Name: hk.Name, Context: inst.key, Reason: reason}
	}
	opts := inst.tmpl.EffectOptions
	mw, async, err := mergeMiddleware(key, inst.tmpl.Options.Middleware, opts.Middleware, def.Middleware)
	if err != nil {
		return nil, err
	}

	h := &handler{
		kind:       KindEffect,
		key:        key,
		name:       hk.Name,
		props:      hk.Props,
		middleware: mw,
		async:      async || def.HandleAsync != nil,
		mutable:    opts.AllowStateMutations || def.AllowStateMutations,
		subscribe:  def.Subscribe,
		effect:     def,
	}
	inst.effects[key] = h
	return h, nil
}

func subscribeTo(m map[string]*orderedset.Set[*subscriber], name string, s *subscriber) {
	set, ok := m[name]
	if !ok {
		set = orderedset.New[*subscriber]()
		m[name] = set
	}
	set.Add(s)
}

func unsubscribeFrom(m map[string]*orderedset.Set[*subscriber], name string, s *subscriber) {
	if set, ok := m[name]; ok {
		set.Delete(s)
		if set.Len() == 0 {
			delete(m, name)
		}
	}
}
