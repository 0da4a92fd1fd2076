// Package host defines the contract between the hctx engine and the UI tree
// it binds to.
//
// The engine never builds or renders nodes. It reads attributes, walks the
// tree, listens for events and observes structural mutations. Any tree that
// implements Node and Tree can host hctx; pkg/vdom is the in-memory
// implementation used by the CLI, devtools and tests.
//
// Node values are used as map keys by the engine, so implementations must be
// comparable (pointer types in practice) and must return an untyped nil from
// ParentNode at the root.
package host

// Event is a native event delivered to a node listener.
type Event struct {
	// Type is the event name ("click", "input", or any custom name).
	Type string

	// Target is the node the event was dispatched on.
	Target Node

	// Detail carries an optional payload for custom events.
	Detail any
}

// Listener receives events dispatched on a node.
type Listener func(ev *Event)

// Node is a single element of the host tree.
type Node interface {
	// Attr returns the attribute value and whether it is present.
	Attr(name string) (string, bool)

	// HasAttr reports whether the attribute is present.
	HasAttr(name string) bool

	// ParentNode returns the parent element, or nil at the root.
	ParentNode() Node

	// Descendants returns every element below this node (not including it)
	// for which match returns true, in document order.
	Descendants(match func(Node) bool) []Node

	// Listen registers fn for events of the given type and returns a function
	// that removes the registration.
	Listen(event string, fn Listener) (remove func())

	// CloneNode returns a deep, detached copy of the node.
	CloneNode() Node
}

// Mutation is a batch of structural changes observed in the tree.
type Mutation struct {
	// Added holds the roots of subtrees inserted into the tree.
	Added []Node

	// Removed holds the roots of subtrees detached from the tree.
	Removed []Node
}

// Observer receives mutation records.
type Observer func(records []Mutation)

// Tree is the document hosting the nodes.
type Tree interface {
	// Root returns the top-most element.
	Root() Node

	// Observe arms fn for structural mutations below Root. The returned
	// function disarms it.
	Observe(fn Observer) (stop func())

	// Notify emits a document-level notification such as "hc:started".
	Notify(name string, detail any)
}

// Matching returns the root itself (when it matches) followed by every
// matching descendant, in document order.
func Matching(root Node, match func(Node) bool) []Node {
	if root == nil {
		return nil
	}
	var out []Node
	if match(root) {
		out = append(out, root)
	}
	return append(out, root.Descendants(match)...)
}

// HasAnyAttr returns a matcher for nodes carrying at least one of names.
func HasAnyAttr(names ...string) func(Node) bool {
	return func(n Node) bool {
		for _, name := range names {
			if n.HasAttr(name) {
				return true
			}
		}
		return false
	}
}
