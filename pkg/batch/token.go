package batch

import (
	"sync"
	"sync/atomic"
)

// Token is a one-shot stop signal shared between a batch and whoever owns it.
// The zero value is not usable; create tokens with NewToken.
type Token struct {
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

// NewToken returns a token that has not been stopped.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Stop requests cancellation. Calls after the first are no-ops.
func (t *Token) Stop() {
	t.once.Do(func() {
		t.stopped.Store(true)
		close(t.done)
	})
}

// Stopped reports whether Stop has been called. It never blocks.
func (t *Token) Stopped() bool {
	return t.stopped.Load()
}

// Done returns a channel that is closed once Stop has been called.
func (t *Token) Done() <-chan struct{} {
	return t.done
}
