package hctx

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// loop serialises engine work. A goroutine that already owns the loop runs
// nested work inline, so synchronous fan-out (a handler writing data, which
// notifies subscribers, which dispatch more handlers) never deadlocks.
//
// Work queued with later while the loop is owned runs at the end of the
// outermost turn.
type loop struct {
	mu       sync.Mutex
	owner    atomic.Uint64
	deferred []func()
}

// do runs fn on the loop.
func (l *loop) do(fn func()) {
	gid := goroutineID()
	if l.owner.Load() == gid {
		fn()
		return
	}

	l.mu.Lock()
	l.owner.Store(gid)
	defer func() {
		l.deferred = nil
		l.owner.Store(0)
		l.mu.Unlock()
	}()

	fn()
	for len(l.deferred) > 0 {
		next := l.deferred[0]
		l.deferred = l.deferred[1:]
		next()
	}
}

// later runs fn at the end of the current turn, or immediately as its own
// turn when the caller does not own the loop.
func (l *loop) later(fn func()) {
	if l.owner.Load() == goroutineID() {
		l.deferred = append(l.deferred, fn)
		return
	}
	l.do(fn)
}

// owned reports whether the calling goroutine owns the loop.
func (l *loop) owned() bool {
	return l.owner.Load() == goroutineID()
}

// goroutineID returns the current goroutine's id, parsed from the stack
// header "goroutine <id> [...]".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
