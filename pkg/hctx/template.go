package hctx

import (
	"context"

	"github.com/hctx-dev/hctx/pkg/reactive"
	"github.com/hctx-dev/hctx/pkg/store"
)

// Kind distinguishes actions from effects.
type Kind string

const (
	KindAction Kind = "action"
	KindEffect Kind = "effect"
)

// Template is the definition of a context. A TemplateFunc builds one per
// context instance.
type Template struct {
	// Data is the initial state. Nested maps become nested records.
	Data map[string]any

	Actions map[string]Action
	Effects map[string]Effect

	// Options apply to every action and effect of the context.
	Options Options

	ActionOptions ActionOptions
	EffectOptions EffectOptions
}

// Options are shared by actions and effects.
type Options struct {
	Middleware []*Middleware
}

// ActionOptions apply to every action of a context.
type ActionOptions struct {
	Middleware []*Middleware

	// UseRawElement hands actions the bound node instead of a clone.
	UseRawElement bool
}

// EffectOptions apply to every effect of a context.
type EffectOptions struct {
	Middleware []*Middleware

	// AllowStateMutations gives effects writable data and stores.
	AllowStateMutations bool
}

// TemplateFunc builds a fresh Template. It runs once per context instance.
type TemplateFunc func() Template

// Define returns fn as a TemplateFunc.
func Define(fn func() Template) TemplateFunc { return fn }

// Importer loads a template that was not registered before the first node
// naming it was resolved.
type Importer func(ctx context.Context) (TemplateFunc, error)

type (
	ActionFunc      func(ac *ActionContext) error
	AsyncActionFunc func(ctx context.Context, ac *ActionContext) error
	EffectFunc      func(ec *EffectContext) error
	AsyncEffectFunc func(ctx context.Context, ec *EffectContext) error
	SubscribeFunc   func(s *SubscribeArgs)
)

// Action is a named handler that may mutate state. Exactly one of Handle
// and HandleAsync must be set.
type Action struct {
	Handle      ActionFunc
	HandleAsync AsyncActionFunc
	Middleware  []*Middleware

	// UseRawElement hands the handler the bound node instead of a clone.
	UseRawElement bool

	// Subscribe declares the state this action follows for
	// hc:statechanged triggers.
	Subscribe SubscribeFunc
}

// Effect is a named handler reacting to state. Writes through its data view
// fail with *WriteGuardError unless AllowStateMutations is set here or in
// the context's EffectOptions. Exactly one of Handle and HandleAsync must be
// set.
type Effect struct {
	Handle              EffectFunc
	HandleAsync         AsyncEffectFunc
	Middleware          []*Middleware
	AllowStateMutations bool
	Subscribe           SubscribeFunc
}

// SubscribeArgs is passed to a Subscribe dry run. Only Add has an effect;
// Data and UseStore give access to the objects to subscribe to.
type SubscribeArgs struct {
	Data     reactive.Object
	UseStore func(h store.Handle) reactive.Object

	// Add subscribes to the given fields of obj, or every field when none
	// are given.
	Add func(obj reactive.Object, fields ...string)
}

func (a Action) validate() string {
	switch {
	case a.Handle == nil && a.HandleAsync == nil:
		return "neither Handle nor HandleAsync is set"
	case a.Handle != nil && a.HandleAsync != nil:
		return "both Handle and HandleAsync are set"
	}
	return ""
}

func (e Effect) validate() string {
	switch {
	case e.Handle == nil && e.HandleAsync == nil:
		return "neither Handle nor HandleAsync is set"
	case e.Handle != nil && e.HandleAsync != nil:
		return "both Handle and HandleAsync are set"
	}
	return ""
}
