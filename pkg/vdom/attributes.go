package vdom

import "strings"

// AttrOf creates an attribute with an arbitrary name.
func AttrOf(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// ID sets the id attribute.
func ID(id string) Attr { return AttrOf("id", id) }

// Class sets the class attribute, joining multiple classes with spaces.
func Class(classes ...string) Attr { return AttrOf("class", strings.Join(classes, " ")) }

// Data creates a data-* attribute.
func Data(key, value string) Attr { return AttrOf("data-"+key, value) }

// Value sets the value attribute.
func Value(v string) Attr { return AttrOf("value", v) }

// Disabled sets the disabled attribute.
func Disabled(disabled bool) Attr { return AttrOf("disabled", disabled) }

// Hidden sets the hidden attribute.
func Hidden() Attr { return AttrOf("hidden", true) }

// Default hctx attribute names. Runtimes configured with other names should
// use AttrOf.
const (
	ContextAttr = "hctx"
	ActionAttr  = "hc-action"
	EffectAttr  = "hc-effect"
)

// Ctx marks a node as a context root: Ctx("counter") or Ctx("counter#a").
func Ctx(name string) Attr { return AttrOf(ContextAttr, name) }

// Action binds actions: Action("increment on click").
func Action(expr string) Attr { return AttrOf(ActionAttr, expr) }

// Effect binds effects: Effect("render on hc:statechanged").
func Effect(expr string) Attr { return AttrOf(EffectAttr, expr) }
