package runtime

import (
	"sync"

	"go.uber.org/zap"

	scripthost "github.com/wippyai/script-host"
)

// Looper runs posted callbacks one at a time, in order, on its own
// goroutine.
type Looper struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

var _ scripthost.Looper = (*Looper)(nil)

// NewLooper starts a Looper.
func NewLooper() *Looper {
	l := &Looper{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.loop()
	return l
}

// Post queues fn. Callbacks posted after Close are dropped.
func (l *Looper) Post(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
}

// Close runs the callbacks already queued and stops the goroutine. It
// must not be called from a posted callback.
func (l *Looper) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	l.mu.Unlock()
	l.cond.Broadcast()
	<-l.done
}

func (l *Looper) loop() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for !l.closed && len(l.queue) == 0 {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.run(fn)
	}
}

func (l *Looper) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("looper callback panicked", zap.Any("recovered", r))
		}
	}()
	fn()
}
