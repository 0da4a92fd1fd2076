package hctx

import (
	"log/slog"
)

// Default attribute names.
const (
	DefaultContextAttr = "hctx"
	DefaultActionAttr  = "hc-action"
	DefaultEffectAttr  = "hc-effect"

	defaultImportConcurrency = 4
)

// Config configures a Runtime.
type Config struct {
	// ContextAttr marks context roots. Default "hctx".
	ContextAttr string

	// ActionAttr binds actions. Default "hc-action".
	ActionAttr string

	// EffectAttr binds effects. Default "hc-effect".
	EffectAttr string

	// ImportPath maps an unregistered context name to a Go plugin path. The
	// plugin must export a "Template" symbol of type func() hctx.Template.
	ImportPath func(name string) string

	// ImportCallback maps an unregistered context name to a loader. It takes
	// precedence over ImportPath.
	ImportCallback func(name string) Importer

	// ImportConcurrency bounds concurrent imports. Default 4.
	ImportConcurrency int

	// DevDiagnostics reports non-fatal misuse (import failures, subscriptions
	// to missing fields) through Logger at warn level.
	DevDiagnostics bool

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger

	// ErrorHandler receives handler failures, recovered async panics and
	// binding errors. If nil, errors are logged at error level.
	ErrorHandler func(err error)

	// Observers are notified around every dispatch.
	Observers []Observer
}

// DefaultConfig returns a Config with default attribute names.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.ContextAttr == "" {
		c.ContextAttr = DefaultContextAttr
	}
	if c.ActionAttr == "" {
		c.ActionAttr = DefaultActionAttr
	}
	if c.EffectAttr == "" {
		c.EffectAttr = DefaultEffectAttr
	}
	if c.ImportConcurrency <= 0 {
		c.ImportConcurrency = defaultImportConcurrency
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
