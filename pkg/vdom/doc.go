// Package vdom provides the in-memory host tree used by hctx.
//
// A VNode is an element or text node with attributes, children, a parent
// link and event listeners. A Document owns a root element and implements
// host.Tree: it reports structural mutations below the root to observers and
// records document-level notifications such as "hc:started".
//
// # Element API
//
// Elements are created using variadic factory functions:
//
//	Div(Attr("hctx", "counter"),
//	    Button(Attr("hc-action", "increment on click"), Text("+")),
//	    Span(Attr("hc-effect", "render on hc:statechanged"), Text("0")),
//	)
//
// Markup can also be parsed with ParseHTML.
//
// # Mutations
//
// AppendChild, InsertBefore, RemoveChild and Remove produce mutation records
// when the affected node is attached to a Document. Only element nodes are
// reported. Attribute and text changes are not structural and produce none.
//
// # Events
//
// Dispatch delivers an event to the target and then to each ancestor, like a
// bubbling DOM event. Listeners are called outside the tree lock, so they may
// freely mutate the tree.
package vdom
