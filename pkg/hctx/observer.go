package hctx

import (
	"context"
	"time"

	"github.com/hctx-dev/hctx/pkg/host"
)

// Outcome is how a dispatch ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeVetoed    Outcome = "vetoed"
	OutcomeDropped   Outcome = "dropped"
	OutcomeFailed    Outcome = "failed"
)

// DispatchInfo describes one dispatch.
type DispatchInfo struct {
	Kind    Kind      `json:"kind"`
	Context string    `json:"context"`
	Name    string    `json:"name"`
	Trigger string    `json:"trigger"`
	Node    host.Node `json:"-"`
	Async   bool      `json:"async"`
}

// Result is passed to DispatchEnd.
type Result struct {
	Outcome Outcome
	Err     error
	Elapsed time.Duration
}

// Observer is notified around dispatches. DispatchStart may return a derived
// context; it is handed to async handlers and to DispatchEnd.
//
// Dropped dispatches never start: they get DispatchEnd only, with the
// runtime context.
//
// Observers are called on the runtime loop and must not block.
type Observer interface {
	DispatchStart(ctx context.Context, info DispatchInfo) context.Context
	DispatchEnd(ctx context.Context, info DispatchInfo, res Result)
}

func (rt *Runtime) observeStart(ctx context.Context, info DispatchInfo) context.Context {
	for _, o := range rt.cfg.Observers {
		ctx = o.DispatchStart(ctx, info)
	}
	return ctx
}

func (rt *Runtime) observeEnd(ctx context.Context, info DispatchInfo, res Result) {
	for _, o := range rt.cfg.Observers {
		o.DispatchEnd(ctx, info, res)
	}
}
