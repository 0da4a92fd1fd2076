package reactive

import (
	"sync"

	"github.com/hctx-dev/hctx/internal/orderedset"
)

// Wildcard is the bucket for subscriptions without a field.
const Wildcard = "*"

// StateChangedPrefix prefixes the trigger passed to callbacks.
const StateChangedPrefix = "hc:statechanged:"

// Callback is a subscription handle. Identity is the pointer.
type Callback struct {
	fn func(trigger string)
}

// NewCallback returns a handle that runs fn with the trigger
// "hc:statechanged:<field>" on every matching write.
func NewCallback(fn func(trigger string)) *Callback {
	return &Callback{fn: fn}
}

// Registry tracks field subscriptions on observable objects. Each object is
// intercepted at most once per registry.
type Registry struct {
	mu      sync.Mutex
	watched map[Observable]*watch

	// Diagnostic receives non-fatal misuse reports. May be nil.
	Diagnostic func(msg string, args ...any)
}

type watch struct {
	buckets map[string]*orderedset.Set[*Callback]
	stop    func()
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{watched: make(map[Observable]*watch)}
}

func (r *Registry) diag(msg string, args ...any) {
	if r.Diagnostic != nil {
		r.Diagnostic(msg, args...)
	}
}

// watchLocked returns the watch for o, intercepting o on first use.
func (r *Registry) watchLocked(o Observable) *watch {
	if w, ok := r.watched[o]; ok {
		return w
	}
	w := &watch{buckets: make(map[string]*orderedset.Set[*Callback])}
	w.stop = o.Intercept(func(key string) { r.fire(o, key) })
	r.watched[o] = w
	return w
}

func (r *Registry) fire(o Observable, key string) {
	r.mu.Lock()
	w := r.watched[o]
	if w == nil {
		r.mu.Unlock()
		return
	}
	cbs := w.buckets[key].Values()
	if key != Wildcard {
		cbs = append(cbs, w.buckets[Wildcard].Values()...)
	}
	r.mu.Unlock()

	trigger := StateChangedPrefix + key
	for _, cb := range cbs {
		cb.fn(trigger)
	}
}

// Watched reports whether o is intercepted by this registry.
func (r *Registry) Watched(o Object) bool {
	obs, ok := Raw(o).(Observable)
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok = r.watched[obs]
	return ok
}

// Stats returns the number of watched objects and live callbacks.
func (r *Registry) Stats() (objects, callbacks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.watched {
		for _, b := range w.buckets {
			callbacks += b.Len()
		}
	}
	return len(r.watched), callbacks
}

// Close removes every interceptor installed by the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	watched := r.watched
	r.watched = make(map[Observable]*watch)
	r.mu.Unlock()
	for _, w := range watched {
		w.stop()
	}
}

// Collector records the buckets touched by one subscribe dry run.
type Collector struct {
	reg     *Registry
	targets []target
}

type target struct {
	obj Observable
	key string
}

// Collector starts a dry run against the registry.
func (r *Registry) Collector() *Collector {
	return &Collector{reg: r}
}

// Add subscribes to the given fields of obj, or to every field when none
// are given. Guarded views are unwrapped. Fields the object does not have
// are reported on the registry's diagnostic channel and skipped.
func (c *Collector) Add(obj Object, fields ...string) {
	o, ok := Raw(obj).(Observable)
	if !ok || o == nil {
		c.reg.diag("subscription target is not observable", "type", typeName(obj))
		return
	}

	n := len(c.targets)
	if len(fields) == 0 {
		c.targets = append(c.targets, target{obj: o, key: Wildcard})
	}
	for _, f := range fields {
		if !o.Has(f) {
			c.reg.diag("subscription to missing field", "field", f)
			continue
		}
		c.targets = append(c.targets, target{obj: o, key: f})
	}
	if len(c.targets) == n {
		return
	}

	c.reg.mu.Lock()
	c.reg.watchLocked(o)
	c.reg.mu.Unlock()
}

// Len returns the number of buckets collected.
func (c *Collector) Len() int { return len(c.targets) }

// Bind adds cb to every collected bucket. The returned function removes it
// again and is safe to call more than once. An object whose last callback
// is removed is no longer intercepted.
func (c *Collector) Bind(cb *Callback) (remove func()) {
	r := c.reg
	targets := append([]target(nil), c.targets...)

	r.mu.Lock()
	for _, t := range targets {
		w := r.watchLocked(t.obj)
		b := w.buckets[t.key]
		if b == nil {
			b = orderedset.New[*Callback]()
			w.buckets[t.key] = b
		}
		b.Add(cb)
	}
	r.mu.Unlock()

	return func() {
		var stops []func()
		r.mu.Lock()
		for _, t := range targets {
			w := r.watched[t.obj]
			if w == nil {
				continue
			}
			if b := w.buckets[t.key]; b != nil {
				b.Delete(cb)
				if b.Len() == 0 {
					delete(w.buckets, t.key)
				}
			}
			if len(w.buckets) == 0 {
				delete(r.watched, t.obj)
				stops = append(stops, w.stop)
			}
		}
		r.mu.Unlock()
		for _, stop := range stops {
			stop()
		}
	}
}
