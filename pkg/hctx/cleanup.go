package hctx

import "github.com/hctx-dev/hctx/pkg/host"

// addCleanup appends fn to node's cleanup list. Loop only.
func (rt *Runtime) addCleanup(node host.Node, fn func()) {
	rt.cleanups[node] = append(rt.cleanups[node], fn)
}

// onCleanup is addCleanup for handler code, which may run off the loop.
// A node that is no longer bound runs fn at once.
func (rt *Runtime) onCleanup(node host.Node, fn func()) {
	rt.loop.do(func() {
		if !rt.bound[node] {
			fn()
			return
		}
		rt.addCleanup(node, fn)
	})
}

// runCleanups runs node's cleanup list once, in registration order.
func (rt *Runtime) runCleanups(node host.Node) {
	fns := rt.cleanups[node]
	delete(rt.cleanups, node)
	delete(rt.bound, node)
	for _, fn := range fns {
		fn()
	}
}

// teardown unbinds a removed subtree: cleanups of every bound node run and
// every fragment rooted in it is released.
func (rt *Runtime) teardown(root host.Node) {
	tracked := func(n host.Node) bool {
		_, hasCleanups := rt.cleanups[n]
		_, hasFragment := rt.fragments[n]
		return hasCleanups || hasFragment || rt.bound[n]
	}
	for _, n := range host.Matching(root, tracked) {
		rt.runCleanups(n)
		rt.releaseFragment(n)
	}
}
