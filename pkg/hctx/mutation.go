package hctx

import (
	"github.com/hctx-dev/hctx/pkg/host"
)

// observe is the host.Observer armed by Start. Records produced while a
// handler runs are applied at the end of the current loop turn.
func (rt *Runtime) observe(records []host.Mutation) {
	rt.loop.later(func() { rt.applyMutations(records) })
}

// applyMutations unbinds removed subtrees and binds added ones. Within a
// record removals go first, so a moved node is rebound.
func (rt *Runtime) applyMutations(records []host.Mutation) {
	if !rt.ready.Load() {
		return
	}
	for _, rec := range records {
		for _, n := range rec.Removed {
			rt.teardown(n)
		}
		if len(rec.Added) == 0 {
			continue
		}

		p := newPass(true)
		var markers, owned []host.Node
		for _, n := range rec.Added {
			markers = append(markers, host.Matching(n, host.HasAnyAttr(rt.cfg.ContextAttr))...)
			owned = append(owned, host.Matching(n, host.HasAnyAttr(rt.cfg.ActionAttr, rt.cfg.EffectAttr))...)
		}

		if len(markers) > 0 {
			rt.importTemplates(rt.ctx, markers)
			for _, n := range markers {
				rt.resolveContext(p, n)
			}
		}

		for _, n := range owned {
			if p.banned[n] {
				continue
			}
			p.banned[n] = true
			frag := rt.enclosingFragment(n)
			if frag == nil {
				p.errs = append(p.errs, &BindError{Node: n, Err: &ResolutionError{Kind: OutsideContext}})
				continue
			}
			if err := rt.bindNode(p, frag, n); err != nil {
				p.errs = append(p.errs, err)
			}
		}

		p.errs = append(p.errs, rt.pending.merge(rt.instances)...)
		p.runInit()
		for _, err := range p.errs {
			rt.report(err)
		}
	}
}
