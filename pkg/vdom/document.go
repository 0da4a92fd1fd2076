package vdom

import (
	"sync"

	"github.com/hctx-dev/hctx/pkg/host"
)

// Notification is a document-level notification emitted through Notify.
type Notification struct {
	Name   string
	Detail any
}

// Document owns a root element and implements host.Tree.
type Document struct {
	root *VNode

	mu        sync.Mutex
	observers []*observerEntry
	notes     []Notification
	onNotify  []*notifyEntry
}

type observerEntry struct {
	fn host.Observer
}

type notifyEntry struct {
	fn func(Notification)
}

var _ host.Tree = (*Document)(nil)

// NewDocument attaches root to a new document. A root that already belongs
// to a tree is detached first.
func NewDocument(root *VNode) *Document {
	if root.Parent() != nil {
		root.Remove()
	}
	d := &Document{root: root}
	treeMu.Lock()
	root.walk(func(n *VNode) { n.doc = d })
	treeMu.Unlock()
	return d
}

// Root returns the root element.
func (d *Document) Root() host.Node { return d.root }

// Body returns the root element as a *VNode.
func (d *Document) Body() *VNode { return d.root }

// Observe arms fn for structural mutations below the root.
func (d *Document) Observe(fn host.Observer) func() {
	e := &observerEntry{fn: fn}
	d.mu.Lock()
	d.observers = append(d.observers, e)
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, o := range d.observers {
				if o == e {
					d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
					break
				}
			}
		})
	}
}

// Notify records a document-level notification and forwards it to OnNotify
// listeners.
func (d *Document) Notify(name string, detail any) {
	n := Notification{Name: name, Detail: detail}
	d.mu.Lock()
	d.notes = append(d.notes, n)
	listeners := make([]*notifyEntry, len(d.onNotify))
	copy(listeners, d.onNotify)
	d.mu.Unlock()

	for _, l := range listeners {
		l.fn(n)
	}
}

// OnNotify registers fn for document notifications.
func (d *Document) OnNotify(fn func(Notification)) (remove func()) {
	e := &notifyEntry{fn: fn}
	d.mu.Lock()
	d.onNotify = append(d.onNotify, e)
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, o := range d.onNotify {
			if o == e {
				d.onNotify = append(d.onNotify[:i:i], d.onNotify[i+1:]...)
				return
			}
		}
	}
}

// Notifications returns the names of all notifications emitted so far.
func (d *Document) Notifications() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, len(d.notes))
	for i, n := range d.notes {
		names[i] = n.Name
	}
	return names
}

// GetElementByID returns the first element whose id attribute equals id.
func (d *Document) GetElementByID(id string) *VNode {
	for _, n := range host.Matching(d.root, func(n host.Node) bool {
		v, ok := n.Attr("id")
		return ok && v == id
	}) {
		return n.(*VNode)
	}
	return nil
}

// QueryAll returns every element carrying attribute name, root included.
func (d *Document) QueryAll(name string) []*VNode {
	var out []*VNode
	for _, n := range host.Matching(d.root, host.HasAnyAttr(name)) {
		out = append(out, n.(*VNode))
	}
	return out
}

func (d *Document) deliver(m host.Mutation) {
	if len(m.Added) == 0 && len(m.Removed) == 0 {
		return
	}
	d.mu.Lock()
	observers := make([]*observerEntry, len(d.observers))
	copy(observers, d.observers)
	d.mu.Unlock()

	for _, o := range observers {
		o.fn([]host.Mutation{m})
	}
}

// pending collects mutation records per document while treeMu is held.
type pending map[*Document]*host.Mutation

func (p pending) added(n *VNode) {
	if n.doc == nil || n.Kind != KindElement {
		return
	}
	p.get(n.doc).Added = append(p.get(n.doc).Added, n)
}

func (p pending) removed(doc *Document, n *VNode) {
	if doc == nil || n.Kind != KindElement {
		return
	}
	p.get(doc).Removed = append(p.get(doc).Removed, n)
}

func (p pending) get(d *Document) *host.Mutation {
	m, ok := p[d]
	if !ok {
		m = &host.Mutation{}
		p[d] = m
	}
	return m
}

func (p pending) flush() {
	for d, m := range p {
		d.deliver(*m)
	}
}

func setDoc(n *VNode, d *Document) {
	n.walk(func(c *VNode) { c.doc = d })
}

// detach unlinks n from its parent. Caller holds treeMu.
func (n *VNode) detach(p pending) {
	parent := n.parent
	if parent == nil {
		return
	}
	for i, c := range parent.children {
		if c == n {
			parent.children = append(parent.children[:i:i], parent.children[i+1:]...)
			break
		}
	}
	doc := n.doc
	n.parent = nil
	setDoc(n, nil)
	p.removed(doc, n)
}

func (n *VNode) isAncestorOf(other *VNode) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// AppendChild appends child, moving it from its current parent if needed.
func (n *VNode) AppendChild(child *VNode) {
	n.InsertBefore(child, nil)
}

// InsertBefore inserts child before ref. A nil or foreign ref appends.
// It panics if child is n or one of its ancestors.
func (n *VNode) InsertBefore(child, ref *VNode) {
	p := pending{}
	treeMu.Lock()
	if child.isAncestorOf(n) {
		treeMu.Unlock()
		panic("vdom: cannot insert a node into its own subtree")
	}
	child.detach(p)
	idx := len(n.children)
	if ref != nil {
		for i, c := range n.children {
			if c == ref {
				idx = i
				break
			}
		}
	}
	n.children = append(n.children, nil)
	copy(n.children[idx+1:], n.children[idx:])
	n.children[idx] = child
	child.parent = n
	setDoc(child, n.doc)
	p.added(child)
	treeMu.Unlock()

	p.flush()
}

// RemoveChild detaches child from n. It reports false when child is not a
// child of n.
func (n *VNode) RemoveChild(child *VNode) bool {
	p := pending{}
	treeMu.Lock()
	if child.parent != n {
		treeMu.Unlock()
		return false
	}
	child.detach(p)
	treeMu.Unlock()

	p.flush()
	return true
}

// Remove detaches n from its parent.
func (n *VNode) Remove() {
	p := pending{}
	treeMu.Lock()
	n.detach(p)
	treeMu.Unlock()
	p.flush()
}

// ReplaceChildren removes every child of n and appends children instead.
func (n *VNode) ReplaceChildren(children ...*VNode) {
	p := pending{}
	treeMu.Lock()
	for _, c := range children {
		if c.isAncestorOf(n) {
			treeMu.Unlock()
			panic("vdom: cannot insert a node into its own subtree")
		}
	}
	for _, c := range append([]*VNode(nil), n.children...) {
		c.detach(p)
	}
	for _, c := range children {
		c.detach(p)
		n.children = append(n.children, c)
		c.parent = n
		setDoc(c, n.doc)
		p.added(c)
	}
	treeMu.Unlock()
	p.flush()
}

// SetText replaces the children of n with a single text node.
func (n *VNode) SetText(text string) {
	n.ReplaceChildren(Text(text))
}
