package render

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/hctx-dev/hctx/pkg/vdom"
)

// RendererConfig configures the HTML renderer.
type RendererConfig struct {
	// Pretty enables pretty-printed HTML output with indentation.
	Pretty bool

	// Indent is the string used for each indentation level in pretty mode.
	// Defaults to two spaces if not specified.
	Indent string

	// Annotate, when set, returns extra attributes for an element. Devtools
	// uses it to mark bound nodes. Returned names are rendered after the
	// element's own attributes, in sorted order.
	Annotate func(n *vdom.VNode) map[string]string
}

// Renderer serializes vdom trees to HTML.
type Renderer struct {
	config RendererConfig
}

// NewRenderer creates a new Renderer with the given configuration.
func NewRenderer(config RendererConfig) *Renderer {
	if config.Indent == "" {
		config.Indent = "  "
	}
	return &Renderer{config: config}
}

// RenderToString renders a tree to an HTML string.
func (r *Renderer) RenderToString(node *vdom.VNode) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToWriter(&buf, node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToWriter streams a tree to w. The tree is rendered from a snapshot,
// so handlers may keep mutating it concurrently.
func (r *Renderer) RenderToWriter(w io.Writer, node *vdom.VNode) error {
	if node == nil {
		return nil
	}
	ew := &errWriter{w: w}
	r.renderNode(ew, node, node.Clone(), 0)
	return ew.err
}

// errWriter keeps the first write error and drops later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) write(s string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s)
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

// renderNode renders the snapshot node; orig is the live node it was
// cloned from, handed to Annotate.
func (r *Renderer) renderNode(w *errWriter, orig, node *vdom.VNode, depth int) {
	switch node.Kind {
	case vdom.KindText:
		w.write(escapeHTML(node.Text))
	case vdom.KindElement:
		r.renderElement(w, orig, node, depth)
	default:
		if w.err == nil {
			w.err = fmt.Errorf("render: unknown node kind %v", node.Kind)
		}
	}
}

func (r *Renderer) renderElement(w *errWriter, orig, node *vdom.VNode, depth int) {
	tag := node.Tag
	if r.config.Pretty && depth > 0 {
		r.writeIndent(w, depth)
	}

	w.write("<" + tag)
	r.renderAttributes(w, node)
	if r.config.Annotate != nil {
		extra := r.config.Annotate(orig)
		keys := make([]string, 0, len(extra))
		for k := range extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			w.printf(` %s="%s"`, k, escapeAttr(extra[k]))
		}
	}
	w.write(">")

	if vdom.IsVoidElement(tag) {
		if r.config.Pretty {
			w.write("\n")
		}
		return
	}

	children := node.Children()
	var origChildren []*vdom.VNode
	if orig != nil {
		origChildren = orig.Children()
	}
	block := len(children) > 0 && !isInlineElement(tag) && hasElementChild(children)
	if r.config.Pretty && block {
		w.write("\n")
	}
	for i, child := range children {
		var o *vdom.VNode
		if i < len(origChildren) {
			o = origChildren[i]
		}
		if r.config.Pretty && block && child.Kind == vdom.KindText {
			r.writeIndent(w, depth+1)
			r.renderNode(w, o, child, depth+1)
			w.write("\n")
			continue
		}
		r.renderNode(w, o, child, depth+1)
	}
	if r.config.Pretty && block {
		r.writeIndent(w, depth)
	}

	w.write("</" + tag + ">")
	if r.config.Pretty {
		w.write("\n")
	}
}

// renderAttributes renders attributes in sorted order. A true bool renders
// as a bare attribute; false and nil are skipped.
func (r *Renderer) renderAttributes(w *errWriter, node *vdom.VNode) {
	for _, key := range node.AttrNames() {
		value := node.Props[key]
		if b, ok := value.(bool); ok {
			if b {
				w.write(" " + key)
			}
			continue
		}
		if isBooleanAttr(key) && value == "" {
			w.write(" " + key)
			continue
		}
		s, _ := node.Attr(key)
		w.printf(` %s="%s"`, key, escapeAttr(s))
	}
}

func hasElementChild(children []*vdom.VNode) bool {
	for _, c := range children {
		if c.Kind == vdom.KindElement {
			return true
		}
	}
	return false
}

func (r *Renderer) writeIndent(w *errWriter, depth int) {
	for range depth {
		w.write(r.config.Indent)
	}
}
