package hctx

import (
	"maps"
	"slices"

	"github.com/hctx-dev/hctx/pkg/host"
)

// Snapshot is a point-in-time view of runtime state for diagnostics.
type Snapshot struct {
	Started  bool              `json:"started"`
	Contexts []ContextSnapshot `json:"contexts"`
	Pending  []PendingSnapshot `json:"pending,omitempty"`

	BoundNodes     int `json:"boundNodes"`
	Running        int `json:"running"`
	Stores         int `json:"stores"`
	WatchedObjects int `json:"watchedObjects"`
	StateCallbacks int `json:"stateCallbacks"`
}

// ContextSnapshot describes one context instance.
type ContextSnapshot struct {
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Tag         string         `json:"tag,omitempty"`
	Data        map[string]any `json:"data"`
	Fragments   int            `json:"fragments"`
	Actions     []string       `json:"actions"`
	Effects     []string       `json:"effects"`
	Subscribers map[string]int `json:"subscribers"`
}

// PendingSnapshot describes cross-context subscriptions waiting for their
// target context.
type PendingSnapshot struct {
	Context     string `json:"context"`
	Action      string `json:"action"`
	Subscribers int    `json:"subscribers"`
}

// Snapshot captures the current state. Contexts are sorted by key.
func (rt *Runtime) Snapshot() Snapshot {
	var s Snapshot
	rt.loop.do(func() {
		s.Started = rt.ready.Load()
		s.BoundNodes = len(rt.bound)
		s.Running = len(rt.running)
		s.Stores = rt.stores.Len()
		s.WatchedObjects, s.StateCallbacks = rt.subs.Stats()

		for _, key := range slices.Sorted(maps.Keys(rt.instances)) {
			inst := rt.instances[key]
			cs := ContextSnapshot{
				Key:         inst.key,
				Name:        inst.name,
				Tag:         inst.tag,
				Data:        inst.data.ToMap(),
				Fragments:   len(inst.fragments),
				Actions:     slices.Sorted(maps.Keys(inst.actions)),
				Effects:     slices.Sorted(maps.Keys(inst.effects)),
				Subscribers: make(map[string]int, len(inst.subscribers)),
			}
			for name, set := range inst.subscribers {
				cs.Subscribers[name] = set.Len()
			}
			s.Contexts = append(s.Contexts, cs)
		}

		for _, key := range slices.Sorted(maps.Keys(rt.pending)) {
			byAction := rt.pending[key]
			for _, action := range slices.Sorted(maps.Keys(byAction)) {
				s.Pending = append(s.Pending, PendingSnapshot{
					Context:     key,
					Action:      action,
					Subscribers: byAction[action].Len(),
				})
			}
		}
	})
	return s
}

// NodeState reports whether node has live bindings and, for a context
// marker, the key of the instance its fragment belongs to.
func (rt *Runtime) NodeState(node host.Node) (bound bool, context string) {
	rt.loop.do(func() {
		bound = rt.bound[node]
		if f, ok := rt.fragments[node]; ok {
			context = f.inst.key
		}
	})
	return bound, context
}
