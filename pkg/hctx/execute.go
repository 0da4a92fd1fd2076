package hctx

import (
	"sync/atomic"
	"time"
)

// DefaultExecuteDelay is the delay used by Execute without WithDelay.
const DefaultExecuteDelay = 200 * time.Millisecond

type executeConfig struct {
	delay    time.Duration
	callback func(counter int)
	times    int
}

// ExecuteOption configures Execute.
type ExecuteOption func(*executeConfig)

// WithDelay sets the delay before the re-dispatch. Negative delays are
// treated as zero.
func WithDelay(d time.Duration) ExecuteOption {
	return func(c *executeConfig) { c.delay = max(d, 0) }
}

// WithCallback sets a function called with the counter on every timer fire,
// including the last one that does not re-dispatch.
func WithCallback(fn func(counter int)) ExecuteOption {
	return func(c *executeConfig) { c.callback = fn }
}

// WithTimes bounds the number of re-dispatches. Zero means unbounded.
func WithTimes(n int) ExecuteOption {
	return func(c *executeConfig) { c.times = n }
}

// Execute schedules a re-dispatch of the running action on the same node
// after a delay. The new dispatch sees Details.Trigger == reason ("execute"
// when empty) and a counter one higher; calling Execute again from it
// continues the sequence until the WithTimes bound is passed.
//
// Timers are not cancelled when the node leaves the tree. Register the
// returned stop function with OnCleanup for that.
func (ac *ActionContext) Execute(reason string, opts ...ExecuteOption) (stop func()) {
	cfg := executeConfig{delay: DefaultExecuteDelay}
	for _, opt := range opts {
		opt(&cfg)
	}
	if reason == "" {
		reason = "execute"
	}

	b, rt := ac.b, ac.b.rt
	d := ac.Details
	d.Trigger = reason
	ev := ac.Event
	counter := ac.counter

	var stopped atomic.Bool
	t := time.AfterFunc(cfg.delay, func() {
		rt.loop.do(func() {
			if stopped.Load() || rt.ctx.Err() != nil {
				return
			}
			counter++
			if cfg.callback != nil {
				cfg.callback(counter)
			}
			if cfg.times == 0 || counter <= cfg.times {
				rt.dispatch(b, d, ev, counter)
			}
		})
	})
	return func() {
		stopped.Store(true)
		t.Stop()
	}
}
