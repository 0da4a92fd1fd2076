// Package hctx is a reactive markup resolution and dispatch engine.
//
// Nodes of a host tree carry attribute markers. A context marker names a
// registered template bundling state, actions and effects; action and effect
// attributes below it bind handlers to triggers:
//
//	<div hctx="counter">
//	  <button hc-action="increment on click">+</button>
//	  <span hc-effect="render on a:increment">0</span>
//	</div>
//
// A Runtime resolves every marker once at Start, then follows the tree's
// structural mutations, binding added nodes and running cleanups of removed
// ones.
//
// # Templates
//
// Templates are registered by name. The function runs once per context
// instance ("name" or "name#tag"), so each instance gets fresh data:
//
//	rt.Register("counter", hctx.Define(func() hctx.Template {
//	    return hctx.Template{
//	        Data: map[string]any{"count": 0},
//	        Actions: map[string]hctx.Action{
//	            "increment": {Handle: func(ac *hctx.ActionContext) error {
//	                n, _ := reactive.Number(ac.Data, "count")
//	                return ac.Data.Set("count", n+1)
//	            }},
//	        },
//	        Effects: map[string]hctx.Effect{
//	            "render": {Handle: func(ec *hctx.EffectContext) error {
//	                n, _ := reactive.Number(ec.Data, "count")
//	                ec.Element.(*vdom.VNode).SetText(fmt.Sprint(n))
//	                return nil
//	            }},
//	        },
//	    }
//	}))
//
// # Dispatch
//
// Each (kind, handler, node) triple is either idle or running; a trigger
// arriving while running is dropped. A dispatch runs the middleware chain,
// notifies "before" subscribers, runs the handler and notifies "after"
// subscribers. Handlers and middleware declared async run off the runtime
// loop; everything else runs synchronously inside the triggering call.
//
// # Concurrency
//
// Engine state is owned by the runtime loop, a goroutine-reentrant
// serialiser. Host events, timers and async continuations enter through it.
// Context data and stores are reactive.Record values with their own locks,
// so async handlers may read and write them directly.
package hctx
