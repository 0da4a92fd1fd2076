package vdom

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hctx-dev/hctx/pkg/host"
)

// VKind represents the type of virtual node.
type VKind uint8

const (
	KindElement VKind = iota // HTML element
	KindText                 // Text node
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	default:
		return "Unknown"
	}
}

// treeMu guards structure, attributes and listeners of every tree.
// Callbacks (observers and listeners) always run with it released.
var treeMu sync.RWMutex

// VNode is an element or text node of the in-memory tree.
type VNode struct {
	Kind  VKind
	Tag   string
	Props Props
	Text  string

	children  []*VNode
	parent    *VNode
	doc       *Document
	listeners map[string][]*listener
}

// Props holds attributes. Values are rendered with fmt.Sprint; a true bool
// renders as a bare attribute and a false bool is treated as absent.
type Props map[string]any

// Attr represents a single attribute.
type Attr struct {
	Key   string
	Value any
}

type listener struct {
	fn host.Listener
}

var _ host.Node = (*VNode)(nil)

func propString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return "", x
	default:
		return fmt.Sprint(x), true
	}
}

// Attr returns the attribute value and whether it is present.
func (n *VNode) Attr(name string) (string, bool) {
	treeMu.RLock()
	defer treeMu.RUnlock()
	if n.Kind != KindElement {
		return "", false
	}
	return propString(n.Props[name])
}

// HasAttr reports whether the attribute is present.
func (n *VNode) HasAttr(name string) bool {
	_, ok := n.Attr(name)
	return ok
}

// SetAttr sets an attribute. A nil value removes it.
func (n *VNode) SetAttr(name string, value any) {
	treeMu.Lock()
	defer treeMu.Unlock()
	if n.Props == nil {
		n.Props = make(Props)
	}
	if value == nil {
		delete(n.Props, name)
		return
	}
	n.Props[name] = value
}

// RemoveAttr removes an attribute.
func (n *VNode) RemoveAttr(name string) {
	n.SetAttr(name, nil)
}

// AttrNames returns the present attribute names in sorted order.
func (n *VNode) AttrNames() []string {
	treeMu.RLock()
	defer treeMu.RUnlock()
	names := make([]string, 0, len(n.Props))
	for k, v := range n.Props {
		if _, ok := propString(v); ok {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// ParentNode returns the parent element, or nil at the root.
func (n *VNode) ParentNode() host.Node {
	treeMu.RLock()
	p := n.parent
	treeMu.RUnlock()
	if p == nil {
		return nil
	}
	return p
}

// Parent returns the parent as a *VNode.
func (n *VNode) Parent() *VNode {
	treeMu.RLock()
	defer treeMu.RUnlock()
	return n.parent
}

// Children returns a copy of the child list.
func (n *VNode) Children() []*VNode {
	treeMu.RLock()
	defer treeMu.RUnlock()
	return append([]*VNode(nil), n.children...)
}

// Document returns the document the node is attached to, or nil.
func (n *VNode) Document() *Document {
	treeMu.RLock()
	defer treeMu.RUnlock()
	return n.doc
}

// Descendants returns every element below n for which match returns true,
// in document order.
func (n *VNode) Descendants(match func(host.Node) bool) []host.Node {
	treeMu.RLock()
	var all []*VNode
	n.walk(func(c *VNode) {
		if c != n && c.Kind == KindElement {
			all = append(all, c)
		}
	})
	treeMu.RUnlock()

	var out []host.Node
	for _, c := range all {
		if match == nil || match(c) {
			out = append(out, c)
		}
	}
	return out
}

// walk visits n and its subtree in document order. Caller holds treeMu.
func (n *VNode) walk(fn func(*VNode)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}

// CloneNode returns a deep, detached copy. Listeners are not copied.
func (n *VNode) CloneNode() host.Node {
	treeMu.RLock()
	defer treeMu.RUnlock()
	return n.clone(nil)
}

// Clone is CloneNode returning the concrete type.
func (n *VNode) Clone() *VNode {
	treeMu.RLock()
	defer treeMu.RUnlock()
	return n.clone(nil)
}

func (n *VNode) clone(parent *VNode) *VNode {
	c := &VNode{Kind: n.Kind, Tag: n.Tag, Text: n.Text, parent: parent}
	if n.Props != nil {
		c.Props = make(Props, len(n.Props))
		for k, v := range n.Props {
			c.Props[k] = v
		}
	}
	for _, child := range n.children {
		c.children = append(c.children, child.clone(c))
	}
	return c
}

// TextContent returns the concatenated text of n and its descendants.
func (n *VNode) TextContent() string {
	treeMu.RLock()
	defer treeMu.RUnlock()
	var b strings.Builder
	n.walk(func(c *VNode) {
		if c.Kind == KindText {
			b.WriteString(c.Text)
		}
	})
	return b.String()
}

// String returns a short description such as <button#inc.primary>.
func (n *VNode) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.Kind == KindText {
		return fmt.Sprintf("%q", n.Text)
	}
	treeMu.RLock()
	defer treeMu.RUnlock()
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(n.Tag)
	if id, ok := propString(n.Props["id"]); ok && id != "" {
		b.WriteString("#")
		b.WriteString(id)
	}
	if class, ok := propString(n.Props["class"]); ok && class != "" {
		for _, c := range strings.Fields(class) {
			b.WriteString(".")
			b.WriteString(c)
		}
	}
	b.WriteString(">")
	return b.String()
}
