package hctx

import (
	"context"

	"github.com/hctx-dev/hctx/pkg/host"
)

// MiddlewareContext is passed to every gate of a dispatch.
type MiddlewareContext struct {
	// Element is the bound node.
	Element host.Node
	Details Details
	Kind    Kind

	onCleanup func(fn func())
}

// OnCleanup registers fn to run when Element is removed from the tree. Gates
// keeping per-element state release it here.
func (mc *MiddlewareContext) OnCleanup(fn func()) {
	if mc.onCleanup == nil {
		return
	}
	mc.onCleanup(fn)
}

// Middleware gates a dispatch. A gate returning false stops the chain and
// the handler does not run.
//
// Middleware values must be created with NewMiddleware or
// NewAsyncMiddleware; the same value may be shared by many handlers.
type Middleware struct {
	name  string
	sync  func(mc *MiddlewareContext) bool
	async func(ctx context.Context, mc *MiddlewareContext) (bool, error)
}

// NewMiddleware returns a synchronous gate.
func NewMiddleware(fn func(mc *MiddlewareContext) bool) *Middleware {
	return &Middleware{sync: fn}
}

// NewAsyncMiddleware returns a gate that runs off the runtime loop. Any
// handler using it is dispatched asynchronously. A non-nil error counts as
// a veto and is reported.
func NewAsyncMiddleware(fn func(ctx context.Context, mc *MiddlewareContext) (bool, error)) *Middleware {
	return &Middleware{async: fn}
}

// Named sets a label used in logs.
func (m *Middleware) Named(name string) *Middleware {
	m.name = name
	return m
}

// Name returns the label set by Named.
func (m *Middleware) Name() string { return m.name }

// Async reports whether the gate runs off the runtime loop.
func (m *Middleware) Async() bool { return m != nil && m.async != nil }

func (m *Middleware) valid() bool {
	return m != nil && (m.sync == nil) != (m.async == nil)
}
