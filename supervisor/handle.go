package supervisor

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Handle tracks one accepted start.
type Handle struct {
	id      uuid.UUID
	args    []string
	started time.Time
	done    chan struct{}

	code int
	err  error
}

func newHandle(args []string) *Handle {
	return &Handle{
		id:      uuid.New(),
		args:    args,
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

// ID returns the unique id of this run.
func (h *Handle) ID() uuid.UUID { return h.id }

// Args returns the argument vector the runtime was started with.
func (h *Handle) Args() []string { return h.args }

// Done is closed once the runtime has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the runtime exits or ctx is done. err is nil only for
// a zero exit code.
func (h *Handle) Wait(ctx context.Context) (int, error) {
	select {
	case <-h.done:
		return h.code, h.err
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (h *Handle) finish(code int, err error) {
	h.code = code
	h.err = err
	close(h.done)
}
