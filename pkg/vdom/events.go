package vdom

import "github.com/hctx-dev/hctx/pkg/host"

// Listen registers fn for events of the given type.
func (n *VNode) Listen(event string, fn host.Listener) func() {
	l := &listener{fn: fn}
	treeMu.Lock()
	if n.listeners == nil {
		n.listeners = make(map[string][]*listener)
	}
	n.listeners[event] = append(n.listeners[event], l)
	treeMu.Unlock()

	return func() {
		treeMu.Lock()
		defer treeMu.Unlock()
		list := n.listeners[event]
		for i, o := range list {
			if o == l {
				n.listeners[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// ListenerCount returns the number of listeners registered for event.
func (n *VNode) ListenerCount(event string) int {
	treeMu.RLock()
	defer treeMu.RUnlock()
	return len(n.listeners[event])
}

// Dispatch delivers an event to n and then to each ancestor.
func (n *VNode) Dispatch(event string, detail any) {
	ev := &host.Event{Type: event, Target: n, Detail: detail}

	treeMu.RLock()
	var path []*VNode
	for p := n; p != nil; p = p.parent {
		path = append(path, p)
	}
	treeMu.RUnlock()

	for _, p := range path {
		treeMu.RLock()
		list := append([]*listener(nil), p.listeners[event]...)
		treeMu.RUnlock()
		for _, l := range list {
			l.fn(ev)
		}
	}
}

// Click dispatches a click event on n.
func (n *VNode) Click() { n.Dispatch("click", nil) }
