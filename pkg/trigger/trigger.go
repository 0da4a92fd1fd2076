// Package trigger parses the hctx binding grammar.
//
// An action or effect attribute holds statements separated by ";":
//
//	increment and log on click or a:reset:after
//	$toggle:{"panel":2} on hc:loaded
//
// Each statement names one or more handlers (joined by " and ") and one or
// more triggers (joined by " or "). Parse returns an AST mapping each handler
// key to its ordered trigger set. ParseHandler and ParseActionRef decode the
// two sides of a statement.
package trigger

import (
	"fmt"
	"strings"

	"github.com/hctx-dev/hctx/internal/orderedset"
)

// Lifecycle trigger names.
const (
	Loaded       = "hc:loaded"
	Mutated      = "hc:mutated"
	StateChanged = "hc:statechanged"
	Started      = "hc:started"

	actionPrefix = "a:"
	optionsWord  = " options "
)

// Phase selects which side of an action dispatch a subscriber observes.
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
)

// Kind classifies a trigger expression.
type Kind uint8

const (
	KindEvent        Kind = iota // native event name
	KindLoaded                   // hc:loaded
	KindMutated                  // hc:mutated
	KindStateChanged             // hc:statechanged[:field]
	KindAction                   // a:<name>...
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindLoaded:
		return "loaded"
	case KindMutated:
		return "mutated"
	case KindStateChanged:
		return "statechanged"
	case KindAction:
		return "action"
	default:
		return "unknown"
	}
}

// Classify reports the kind of a single trigger expression.
func Classify(t string) Kind {
	switch {
	case t == Loaded:
		return KindLoaded
	case t == Mutated:
		return KindMutated
	case strings.EqualFold(t, StateChanged),
		len(t) > len(StateChanged) && strings.EqualFold(t[:len(StateChanged)+1], StateChanged+":"):
		return KindStateChanged
	case strings.HasPrefix(t, actionPrefix):
		return KindAction
	default:
		return KindEvent
	}
}

// StateField returns the field of an hc:statechanged:<field> trigger, or ""
// for the wildcard form.
func StateField(t string) string {
	if Classify(t) != KindStateChanged || len(t) == len(StateChanged) {
		return ""
	}
	return t[len(StateChanged)+1:]
}

// AST is the parsed form of one attribute value: handler keys in merge
// order, each with an ordered set of triggers.
type AST struct {
	keys     []string
	triggers map[string]*orderedset.Set[string]
}

// Keys returns the handler keys in merge order.
func (a *AST) Keys() []string {
	return append([]string(nil), a.keys...)
}

// Triggers returns the triggers of key in merge order.
func (a *AST) Triggers(key string) []string {
	return a.triggers[key].Values()
}

// Len returns the number of handler keys.
func (a *AST) Len() int { return len(a.keys) }

// Binding is one handler key with its triggers.
type Binding struct {
	Handler  string   `json:"handler" yaml:"handler"`
	Triggers []string `json:"triggers" yaml:"triggers"`
}

// Bindings returns the AST as an ordered list.
func (a *AST) Bindings() []Binding {
	out := make([]Binding, 0, len(a.keys))
	for _, k := range a.keys {
		out = append(out, Binding{Handler: k, Triggers: a.Triggers(k)})
	}
	return out
}

func (a *AST) add(key string, triggers []string) {
	set, ok := a.triggers[key]
	if !ok {
		set = orderedset.New[string]()
		a.triggers[key] = set
		a.keys = append(a.keys, key)
	}
	for _, t := range triggers {
		set.Add(t)
	}
}

// Parse parses an action or effect attribute value.
//
// Statements are merged walking from the last to the first, so keys and
// repeated-key triggers are ordered by that reversed walk. Statements
// containing the reserved word " options " are skipped.
func Parse(attr string) (*AST, error) {
	ast := &AST{triggers: make(map[string]*orderedset.Set[string])}

	stmts := strings.Split(attr, ";")
	for i := len(stmts) - 1; i >= 0; i-- {
		stmt := strings.TrimSpace(stmts[i])
		if stmt == "" || strings.Contains(stmt, optionsWord) {
			continue
		}
		names, triggers, err := parseStatement(attr, stmt)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			ast.add(name, triggers)
		}
	}
	return ast, nil
}

func parseStatement(attr, stmt string) (names, triggers []string, err error) {
	left, right, ok := strings.Cut(stmt, " on ")
	if !ok {
		return nil, nil, &SyntaxError{Attr: attr, Statement: stmt, Msg: `missing " on "`}
	}
	if strings.Contains(right, " on ") {
		return nil, nil, &SyntaxError{Attr: attr, Statement: stmt, Msg: `more than one " on "`}
	}
	names, err = splitList(attr, stmt, left, " and ", "handler")
	if err != nil {
		return nil, nil, err
	}
	triggers, err = splitList(attr, stmt, right, " or ", "trigger")
	if err != nil {
		return nil, nil, err
	}
	return names, triggers, nil
}

func splitList(attr, stmt, s, sep, what string) ([]string, error) {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, &SyntaxError{Attr: attr, Statement: stmt, Msg: "empty " + what}
		}
		out = append(out, p)
	}
	return out, nil
}

// SyntaxError reports a malformed attribute value.
type SyntaxError struct {
	Attr      string
	Statement string
	Msg       string
}

func (e *SyntaxError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("trigger: %s in %q", e.Msg, e.Attr)
	}
	return fmt.Sprintf("trigger: %s in statement %q", e.Msg, e.Statement)
}
