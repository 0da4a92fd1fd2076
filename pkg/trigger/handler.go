package trigger

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Handler is a decoded handler key such as `$open#main:{"id":7}`.
type Handler struct {
	// Key is the key exactly as written in the attribute.
	Key string

	// Name is the bare handler name used for template lookup.
	Name string

	// Tag is the optional #tag selector.
	Tag string

	// Local is set by the "$" prefix.
	Local bool

	// Props is the decoded JSON payload. Never nil.
	Props map[string]any
}

// ParseHandler decodes a handler key. The first ":" separates the name from
// a JSON props payload; payloads that are not JSON objects decode to an
// empty map.
func ParseHandler(key string) (Handler, error) {
	h := Handler{Key: key, Props: map[string]any{}}

	name := key
	if strings.HasPrefix(name, "$") {
		h.Local = true
		name = name[1:]
	}

	name, raw, hasProps := strings.Cut(name, ":")
	if hasProps && strings.TrimSpace(raw) != "" {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return Handler{}, &SyntaxError{Attr: key, Msg: fmt.Sprintf("invalid props JSON: %v", err)}
		}
		if m, ok := v.(map[string]any); ok {
			h.Props = m
		}
	}

	if strings.Contains(name, "@") {
		return Handler{}, &SyntaxError{Attr: key, Msg: "handler names cannot reference another context"}
	}
	name, h.Tag, _ = strings.Cut(name, "#")
	if name == "" {
		return Handler{}, &SyntaxError{Attr: key, Msg: "empty handler name"}
	}
	h.Name = name
	return h, nil
}

// ActionRef is a decoded a:<name>[:phase][@context[#tag]] trigger.
type ActionRef struct {
	// Name of the referenced action.
	Name string

	// Phase is "" when unqualified. Unqualified references observe the
	// after phase.
	Phase Phase

	// Context is the external context name, empty for the owning context.
	Context string

	// Tag is the external context tag.
	Tag string
}

// External reports whether the reference targets another context.
func (r ActionRef) External() bool { return r.Context != "" }

// ContextKey returns the "name#tag" key of the external context.
func (r ActionRef) ContextKey() string {
	if r.Tag == "" {
		return r.Context
	}
	return r.Context + "#" + r.Tag
}

// RunPhase returns the phase the subscriber runs in.
func (r ActionRef) RunPhase() Phase {
	if r.Phase == "" {
		return PhaseAfter
	}
	return r.Phase
}

// ParseActionRef decodes an action trigger. The phase may be written before
// or after the context suffix: "a:save:before@form" and "a:save@form:before"
// are equivalent.
func ParseActionRef(t string) (ActionRef, error) {
	if !strings.HasPrefix(t, actionPrefix) {
		return ActionRef{}, &SyntaxError{Attr: t, Msg: `action trigger must start with "a:"`}
	}
	var ref ActionRef
	rest := t[len(actionPrefix):]

	name, ext, hasExt := strings.Cut(rest, "@")
	name, phase, err := splitPhase(t, name)
	if err != nil {
		return ActionRef{}, err
	}
	ref.Phase = phase
	if hasExt {
		ext, phase, err = splitPhase(t, ext)
		if err != nil {
			return ActionRef{}, err
		}
		if phase != "" {
			ref.Phase = phase
		}
		ref.Context, ref.Tag, _ = strings.Cut(ext, "#")
		if ref.Context == "" {
			return ActionRef{}, &SyntaxError{Attr: t, Msg: "empty context reference"}
		}
	}
	if name == "" {
		return ActionRef{}, &SyntaxError{Attr: t, Msg: "empty action name"}
	}
	if strings.Contains(name, "#") {
		return ActionRef{}, &SyntaxError{Attr: t, Msg: "tags belong to the context reference"}
	}
	ref.Name = name
	return ref, nil
}

func splitPhase(t, s string) (string, Phase, error) {
	s, p, ok := strings.Cut(s, ":")
	if !ok {
		return s, "", nil
	}
	switch Phase(p) {
	case PhaseBefore, PhaseAfter:
		return s, Phase(p), nil
	}
	return "", "", &SyntaxError{Attr: t, Msg: fmt.Sprintf("unknown phase %q", p)}
}

// CircularError reports an action bound to one of the actions declared in
// the same attribute.
type CircularError struct {
	Handler string
	Trigger string
}

func (e *CircularError) Error() string {
	return fmt.Sprintf("trigger: circular action: %q is triggered by %q from the same attribute", e.Handler, e.Trigger)
}

// CheckCircular rejects action attributes where a handler is triggered by a
// local reference to an action named in the same attribute. Keys that do not
// decode are ignored; binding reports them separately.
func CheckCircular(ast *AST) error {
	names := make(map[string]bool, ast.Len())
	for _, k := range ast.keys {
		if h, err := ParseHandler(k); err == nil {
			names[h.Name] = true
		}
	}
	for _, k := range ast.keys {
		for _, t := range ast.Triggers(k) {
			if Classify(t) != KindAction {
				continue
			}
			ref, err := ParseActionRef(t)
			if err != nil || ref.External() {
				continue
			}
			if names[ref.Name] {
				return &CircularError{Handler: k, Trigger: t}
			}
		}
	}
	return nil
}
