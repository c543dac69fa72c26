// Package gate provides the one-shot latch that holds runtime starts until
// workspace deployment has finished.
//
// A Gate starts closed or open. Once opened it never closes again, and every
// waiter, past or future, is released. A wait that is cancelled through its
// context forces the gate open: the runtime starts against whatever workspace
// exists rather than blocking forever.
package gate

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/script-host/errors"
)

// Gate is a single-fire latch.
type Gate struct {
	done      chan struct{}
	once      sync.Once
	log       *zap.Logger
	interrupt func(error)
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger used to report interrupted waits.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) {
		g.log = l
	}
}

// WithInterruptHandler registers fn to receive the error describing an
// interrupted wait. fn runs on the waiting goroutine.
func WithInterruptHandler(fn func(error)) Option {
	return func(g *Gate) {
		g.interrupt = fn
	}
}

// New returns a gate, already open if open is true.
func New(open bool, opts ...Option) *Gate {
	g := &Gate{
		done: make(chan struct{}),
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if open {
		g.Open()
	}
	return g
}

// Open releases all waiters. Calling it again has no effect.
func (g *Gate) Open() {
	g.once.Do(func() {
		close(g.done)
	})
}

// IsOpen reports whether the gate has been opened.
func (g *Gate) IsOpen() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the gate opens.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// Wait blocks until the gate opens or ctx is done. On cancellation the gate
// is forced open, the interrupt is reported and Wait returns nil so the
// caller proceeds.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	default:
	}

	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		err := errors.Interrupted(errors.PhaseGate, "init wait", ctx.Err())
		g.log.Warn("init wait interrupted, continuing without a finished deployment", zap.Error(err))
		if g.interrupt != nil {
			g.interrupt(err)
		}
		g.Open()
		return nil
	}
}
