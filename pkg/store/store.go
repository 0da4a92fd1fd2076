// Package store provides runtime-scoped shared state.
//
// A store is declared once, usually at package level, and resolved lazily
// through a Manager. Every handler of a runtime that asks for the same handle
// sees the same record:
//
//	var Cart = store.New(func() map[string]any {
//	    return map[string]any{"items": []string{}}
//	})
//
//	// inside an action
//	cart := ac.UseStore(Cart)
//	_ = cart.Set("items", append(items, id))
//
// Actions receive the writable record. Effects receive a guarded view unless
// they allow state mutations.
package store

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hctx-dev/hctx/pkg/reactive"
)

// Factory builds the initial value of a store.
type Factory func() map[string]any

// Handle identifies a store. Creating a handle does not allocate the value.
type Handle struct {
	UID     uuid.UUID
	Factory Factory
}

// New declares a store.
func New(factory Factory) Handle {
	return Handle{UID: uuid.New(), Factory: factory}
}

// Instance is a constructed store.
type Instance struct {
	// Value is the writable record.
	Value *reactive.Record

	// Guarded rejects writes with *reactive.WriteGuardError.
	Guarded reactive.Object
}

// Manager memoises store instances by UID.
type Manager struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

type entry struct {
	once sync.Once
	inst atomic.Pointer[Instance]
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{entries: make(map[uuid.UUID]*entry)}
}

// Use returns the instance for h, constructing it on first use. The factory
// runs at most once per manager, even under concurrent calls.
func (m *Manager) Use(h Handle) *Instance {
	m.mu.Lock()
	e, ok := m.entries[h.UID]
	if !ok {
		e = &entry{}
		m.entries[h.UID] = e
	}
	m.mu.Unlock()

	e.once.Do(func() {
		var initial map[string]any
		if h.Factory != nil {
			initial = h.Factory()
		}
		rec := reactive.NewRecord(initial)
		e.inst.Store(&Instance{Value: rec, Guarded: reactive.Guard("store", rec)})
	})
	return e.inst.Load()
}

// Len returns the number of constructed stores.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Values returns the constructed records keyed by UID.
func (m *Manager) Values() map[uuid.UUID]*reactive.Record {
	m.mu.Lock()
	entries := make(map[uuid.UUID]*entry, len(m.entries))
	for k, v := range m.entries {
		entries[k] = v
	}
	m.mu.Unlock()

	out := make(map[uuid.UUID]*reactive.Record, len(entries))
	for k, e := range entries {
		if inst := e.inst.Load(); inst != nil {
			out[k] = inst.Value
		}
	}
	return out
}
