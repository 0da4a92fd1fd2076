// Package reactive provides the observable records backing context data and
// stores, and the field-level subscription registry built on top of them.
//
// A Record is an ordered string-keyed map guarded by its own mutex. Writes go
// through Set, which calls the record's interceptors after the lock is
// released. A Registry installs one interceptor per watched record and fans
// each write out to the callbacks subscribed to that field and to the
// wildcard bucket.
package reactive

import (
	"bytes"
	"encoding/json"
	"sort"
	"sync"
)

// Object is the read/write surface handlers see for data and stores.
type Object interface {
	Get(key string) any
	Set(key string, value any) error
	Has(key string) bool
	Keys() []string
}

// Observable is an Object whose writes can be intercepted.
type Observable interface {
	Object
	Intercept(fn func(key string)) (remove func())
}

// Record is an ordered, concurrency-safe record. Nested map[string]any
// values are stored as nested records.
type Record struct {
	mu     sync.RWMutex
	keys   []string
	values map[string]any

	// hooks are called after each Set, outside mu.
	hooks []*hook
}

type hook struct {
	fn func(key string)
}

var _ Observable = (*Record)(nil)

// NewRecord builds a record from m. Keys are ordered alphabetically since
// map order is undefined; use Set to control order.
func NewRecord(m map[string]any) *Record {
	r := &Record{values: make(map[string]any, len(m))}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.keys = append(r.keys, k)
		r.values[k] = wrap(m[k])
	}
	return r
}

func wrap(v any) any {
	if m, ok := v.(map[string]any); ok {
		return NewRecord(m)
	}
	return v
}

// Get returns the value stored under key, or nil.
func (r *Record) Get(key string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.values[key]
}

// Has reports whether key is present.
func (r *Record) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.keys...)
}

// Len returns the number of keys.
func (r *Record) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// Set stores value under key and notifies interceptors. Interceptors run on
// every write, including writes of an equal value. Set on a Record never
// fails; the error is part of the Object contract for guarded views.
func (r *Record) Set(key string, value any) error {
	r.mu.Lock()
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = wrap(value)
	hooks := make([]*hook, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.Unlock()

	for _, h := range hooks {
		h.fn(key)
	}
	return nil
}

// Delete removes key. Interceptors are notified.
func (r *Record) Delete(key string) {
	r.mu.Lock()
	if _, ok := r.values[key]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i:i], r.keys[i+1:]...)
			break
		}
	}
	hooks := make([]*hook, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.Unlock()

	for _, h := range hooks {
		h.fn(key)
	}
}

// Intercept registers fn to run after every write.
func (r *Record) Intercept(fn func(key string)) func() {
	h := &hook{fn: fn}
	r.mu.Lock()
	r.hooks = append(r.hooks, h)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, o := range r.hooks {
			if o == h {
				r.hooks = append(r.hooks[:i:i], r.hooks[i+1:]...)
				return
			}
		}
	}
}

// ToMap returns a deep copy with nested records converted to maps.
func (r *Record) ToMap() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		if rec, ok := v.(*Record); ok {
			out[k] = rec.ToMap()
			continue
		}
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the record as a JSON object in key order.
func (r *Record) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	keys := append([]string(nil), r.keys...)
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = r.values[k]
	}
	r.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
