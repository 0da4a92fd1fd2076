package check

import (
	"fmt"
	"os"
	"strings"

	"github.com/hctx-dev/hctx/internal/errors"
	"github.com/hctx-dev/hctx/pkg/hctx"
	"github.com/hctx-dev/hctx/pkg/trigger"
	"github.com/hctx-dev/hctx/pkg/vdom"
)

// Attrs names the marker attributes to check.
type Attrs struct {
	Context string
	Action  string
	Effect  string
}

// DefaultAttrs returns the runtime's default attribute names.
func DefaultAttrs() Attrs {
	return Attrs{
		Context: hctx.DefaultContextAttr,
		Action:  hctx.DefaultActionAttr,
		Effect:  hctx.DefaultEffectAttr,
	}
}

// Checker reports markup problems that would make binding fail, without
// loading any template.
type Checker struct {
	attrs Attrs
}

// New creates a Checker. Empty attribute names use the defaults.
func New(attrs Attrs) *Checker {
	def := DefaultAttrs()
	if attrs.Context == "" {
		attrs.Context = def.Context
	}
	if attrs.Action == "" {
		attrs.Action = def.Action
	}
	if attrs.Effect == "" {
		attrs.Effect = def.Effect
	}
	return &Checker{attrs: attrs}
}

// File parses the markup at path and checks it.
func (c *Checker) File(path string) ([]*errors.Error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := vdom.ParseHTML(f)
	if err != nil {
		return nil, err
	}
	return c.Document(path, doc), nil
}

// Document checks doc and returns findings in document order. file only
// labels the findings.
func (c *Checker) Document(file string, doc *vdom.Document) []*errors.Error {
	s := &scan{c: c, file: file, present: map[string]bool{}}

	// Cross-context references may point forward, so collect every marker
	// before checking attributes.
	walk(doc.Body(), func(n *vdom.VNode) {
		if v, ok := n.Attr(c.attrs.Context); ok {
			name, _, _ := strings.Cut(strings.TrimSpace(v), "#")
			if name != "" {
				s.present[name] = true
			}
		}
	})
	walk(doc.Body(), s.node)
	return s.found
}

func walk(n *vdom.VNode, fn func(*vdom.VNode)) {
	if n == nil || n.Kind != vdom.KindElement {
		return
	}
	fn(n)
	for _, child := range n.Children() {
		walk(child, fn)
	}
}

type scan struct {
	c       *Checker
	file    string
	present map[string]bool
	found   []*errors.Error
}

func (s *scan) report(n *vdom.VNode, attr string, e *errors.Error) {
	e.Location = &errors.Location{File: s.file}
	s.found = append(s.found, e.WithNode(n.String()).WithAttr(attr))
}

func (s *scan) node(n *vdom.VNode) {
	if v, ok := n.Attr(s.c.attrs.Context); ok {
		s.marker(n, v)
	}
	action, hasAction := n.Attr(s.c.attrs.Action)
	effect, hasEffect := n.Attr(s.c.attrs.Effect)
	if (hasAction || hasEffect) && !s.insideContext(n) {
		attr := action
		if !hasAction {
			attr = effect
		}
		s.report(n, attr, errors.New(errors.CodeOutsideContext))
		return
	}
	if hasAction {
		s.attribute(n, action, hctx.KindAction)
	}
	if hasEffect {
		s.attribute(n, effect, hctx.KindEffect)
	}
}

func (s *scan) marker(n *vdom.VNode, v string) {
	key := strings.TrimSpace(v)
	name, tag, hasTag := strings.Cut(key, "#")
	switch {
	case name == "":
		s.report(n, v, errors.New(errors.CodeSyntax).WithDetail("Context markers need a name: \"name\" or \"name#tag\"."))
	case strings.ContainsAny(key, " \t\n"):
		s.report(n, v, errors.New(errors.CodeSyntax).WithDetail("Context markers cannot contain whitespace."))
	case hasTag && tag == "":
		s.report(n, v, errors.New(errors.CodeSyntax).WithDetail("The tag after \"#\" is empty."))
	}
}

func (s *scan) insideContext(n *vdom.VNode) bool {
	for p := n; p != nil; p = p.Parent() {
		if p.HasAttr(s.c.attrs.Context) {
			return true
		}
	}
	return false
}

func (s *scan) attribute(n *vdom.VNode, attr string, kind hctx.Kind) {
	ast, err := trigger.Parse(attr)
	if err != nil {
		s.report(n, attr, errors.New(errors.CodeSyntax).Wrap(err))
		return
	}

	for _, key := range ast.Keys() {
		h, err := trigger.ParseHandler(key)
		if err != nil {
			s.report(n, attr, errors.New(errors.CodeSyntax).Wrap(err))
			continue
		}
		if kind == hctx.KindEffect && (h.Local || h.Tag != "") {
			s.report(n, attr, errors.New(errors.CodeSyntax).
				WithDetail(fmt.Sprintf("Effect %q cannot be local or tagged.", key)))
		}
		for _, t := range ast.Triggers(key) {
			s.trigger(n, attr, t)
		}
	}

	if kind == hctx.KindAction {
		if err := trigger.CheckCircular(ast); err != nil {
			s.report(n, attr, errors.New(errors.CodeCircularTrigger).Wrap(err))
		}
	}
}

func (s *scan) trigger(n *vdom.VNode, attr, t string) {
	if trigger.Classify(t) != trigger.KindAction {
		return
	}
	ref, err := trigger.ParseActionRef(t)
	if err != nil {
		s.report(n, attr, errors.New(errors.CodeSyntax).Wrap(err))
		return
	}
	if ref.External() && !s.present[ref.Context] {
		s.report(n, attr, errors.New(errors.CodeUnknownContext).
			WithDetail(fmt.Sprintf("Trigger %q references context %q, which has no marker in this file.", t, ref.Context)).
			WithSuggestion(fmt.Sprintf(`Add an element with %s="%s"`, s.c.attrs.Context, ref.ContextKey())))
	}
}
