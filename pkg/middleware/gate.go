package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/hctx-dev/hctx/pkg/hctx"
	"github.com/hctx-dev/hctx/pkg/host"
)

// Logging returns a gate that logs every dispatch it sees and lets it
// through. A nil logger uses slog.Default().
//
//	Options: hctx.Options{Middleware: []*hctx.Middleware{middleware.Logging(logger, slog.LevelDebug)}}
func Logging(logger *slog.Logger, level slog.Level) *hctx.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return hctx.NewMiddleware(func(mc *hctx.MiddlewareContext) bool {
		logger.Log(context.Background(), level, "dispatch",
			"kind", mc.Kind,
			"trigger", mc.Details.Trigger,
			"init_trigger", mc.Details.InitTrigger,
			"local", mc.Details.IsLocal,
			"tag", mc.Details.ContextTag,
			"node", describe(mc.Element),
		)
		return true
	}).Named("logging")
}

// Throttle returns a gate that limits dispatches per element to perSecond,
// allowing bursts of burst. Excess dispatches are vetoed. An element's
// limiter is dropped when the element leaves the tree.
func Throttle(perSecond float64, burst int) *hctx.Middleware {
	return newThrottle(perSecond, burst).middleware()
}

type throttle struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[host.Node]*rate.Limiter
}

func newThrottle(perSecond float64, burst int) *throttle {
	if burst < 1 {
		burst = 1
	}
	return &throttle{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[host.Node]*rate.Limiter),
	}
}

func (t *throttle) middleware() *hctx.Middleware {
	return hctx.NewMiddleware(t.allow).Named("throttle")
}

func (t *throttle) allow(mc *hctx.MiddlewareContext) bool {
	el := mc.Element
	t.mu.Lock()
	l, ok := t.limiters[el]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[el] = l
	}
	t.mu.Unlock()
	if !ok {
		mc.OnCleanup(func() {
			t.mu.Lock()
			delete(t.limiters, el)
			t.mu.Unlock()
		})
	}
	return l.Allow()
}

func (t *throttle) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.limiters)
}

func describe(n host.Node) string {
	if n == nil {
		return ""
	}
	if s, ok := n.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", n)
}
