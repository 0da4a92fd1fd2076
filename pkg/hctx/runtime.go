package hctx

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hctx-dev/hctx/pkg/host"
	"github.com/hctx-dev/hctx/pkg/reactive"
	"github.com/hctx-dev/hctx/pkg/store"
	"github.com/hctx-dev/hctx/pkg/trigger"
)

const (
	stateNew int32 = iota
	stateStarted
	stateStopped
)

// Runtime binds templates to one host tree. Runtimes are independent: each
// has its own templates, instances, stores and subscriptions.
type Runtime struct {
	cfg    Config
	tree   host.Tree
	logger *slog.Logger
	loop   loop

	tmplMu    sync.RWMutex
	templates map[string]TemplateFunc

	// Owned by the loop.
	instances    map[string]*instance
	fragments    map[host.Node]*fragment
	nextFragment int
	bound        map[host.Node]bool
	cleanups     map[host.Node][]func()
	running      map[runKey]bool
	pending      pendingTable

	subs   *reactive.Registry
	stores *store.Manager

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	state   atomic.Int32
	ready   atomic.Bool
	stopObs func()
}

// New returns a runtime for tree. Templates are registered with Register
// before Start, or imported on demand when the config allows it.
func New(tree host.Tree, cfg Config) *Runtime {
	cfg = cfg.withDefaults()
	rt := &Runtime{
		cfg:       cfg,
		tree:      tree,
		logger:    cfg.Logger.With("component", "hctx"),
		templates: make(map[string]TemplateFunc),
		instances: make(map[string]*instance),
		fragments: make(map[host.Node]*fragment),
		bound:     make(map[host.Node]bool),
		cleanups:  make(map[host.Node][]func()),
		running:   make(map[runKey]bool),
		pending:   make(pendingTable),
		subs:      reactive.NewRegistry(),
		stores:    store.NewManager(),
		ctx:       context.Background(),
	}
	rt.subs.Diagnostic = rt.diag
	return rt
}

// Config returns the effective configuration.
func (rt *Runtime) Config() Config { return rt.cfg }

// Register makes a template available under name. The first registration
// wins; Register reports whether fn was stored.
func (rt *Runtime) Register(name string, fn TemplateFunc) bool {
	if name == "" || fn == nil {
		return false
	}
	rt.tmplMu.Lock()
	defer rt.tmplMu.Unlock()
	if _, ok := rt.templates[name]; ok {
		return false
	}
	rt.templates[name] = fn
	return true
}

// Registered reports whether a template is registered under name.
func (rt *Runtime) Registered(name string) bool {
	return rt.template(name) != nil
}

func (rt *Runtime) template(name string) TemplateFunc {
	rt.tmplMu.RLock()
	defer rt.tmplMu.RUnlock()
	return rt.templates[name]
}

// Start emits hc:loaded, resolves every context marker in the tree, fires
// hc:loaded triggers, arms the mutation observer and emits hc:started.
//
// Binding errors are reported through the error handler as they would be
// at any time, and also returned joined. Nodes that fail to bind stay
// unbound; everything else is live.
//
// ctx becomes the parent of the context handed to handlers.
func (rt *Runtime) Start(ctx context.Context) error {
	if !rt.state.CompareAndSwap(stateNew, stateStarted) {
		if rt.state.Load() == stateStopped {
			return ErrStopped
		}
		return ErrAlreadyStarted
	}
	rt.ctx, rt.cancel = context.WithCancel(ctx)
	rt.tree.Notify(trigger.Loaded, nil)

	markers := host.Matching(rt.tree.Root(), host.HasAnyAttr(rt.cfg.ContextAttr))
	rt.importTemplates(rt.ctx, markers)

	var errs []error
	rt.loop.do(func() {
		p := newPass(false)
		for _, n := range markers {
			rt.resolveContext(p, n)
		}
		p.errs = append(p.errs, rt.pending.merge(rt.instances)...)
		rt.ready.Store(true)
		p.runInit()
		rt.stopObs = rt.tree.Observe(rt.observe)
		errs = p.errs
	})

	for _, err := range errs {
		rt.report(err)
	}
	rt.tree.Notify(trigger.Started, nil)
	rt.logger.Info("runtime started",
		"contexts", len(markers),
		"errors", len(errs),
	)
	return errors.Join(errs...)
}

// Wait blocks until every in-flight async dispatch has finished. It must
// not be called from a handler.
func (rt *Runtime) Wait() {
	rt.wg.Wait()
}

// Stop disarms the mutation observer, cancels the runtime context, waits
// for async dispatches and removes state interceptors. Bindings stay in
// place but no longer dispatch. Stop must not be called from a handler.
func (rt *Runtime) Stop() {
	if rt.state.Swap(stateStopped) != stateStarted {
		return
	}
	rt.loop.do(func() {
		rt.ready.Store(false)
		if rt.stopObs != nil {
			rt.stopObs()
		}
	})
	rt.cancel()
	rt.wg.Wait()
	rt.subs.Close()
	rt.logger.Info("runtime stopped")
}

// report sends err to the error handler, or logs it.
func (rt *Runtime) report(err error) {
	if rt.cfg.ErrorHandler != nil {
		rt.cfg.ErrorHandler(err)
		return
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		rt.logger.Error("handler panic",
			"panic", pe.Value,
			"error", err,
			"stack", string(pe.Stack),
		)
		return
	}
	var be *BindError
	if errors.As(err, &be) {
		rt.logger.Error("bind failed", "node", describe(be.Node), "attr", be.Attr, "error", be.Err)
		return
	}
	rt.logger.Error("dispatch failed", "error", err)
}

// diag reports non-fatal misuse when DevDiagnostics is set.
func (rt *Runtime) diag(msg string, args ...any) {
	if rt.cfg.DevDiagnostics {
		rt.logger.Warn(msg, args...)
	}
}
