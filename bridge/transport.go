package bridge

import (
	"encoding/binary"
	"sync"

	"github.com/wippyai/script-host/errors"
)

// Transport moves raw payloads between the two sides of a bridge.
type Transport interface {
	Send(channel string, payload []byte) error
	// SetHandler installs the receiver for inbound payloads.
	SetHandler(fn func(channel string, payload []byte))
}

// FrameHeaderSize is the length prefix preceding the channel name.
const FrameHeaderSize = 4

// AppendFrame appends the frame for channel and payload to dst.
// Layout: u32 little-endian channel length, channel, payload.
func AppendFrame(dst []byte, channel string, payload []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(channel)))
	dst = append(dst, channel...)
	return append(dst, payload...)
}

// FrameSize returns the encoded length of a frame.
func FrameSize(channel string, payload []byte) int {
	return FrameHeaderSize + len(channel) + len(payload)
}

// ParseFrame splits a frame into channel and payload. payload aliases frame.
func ParseFrame(frame []byte) (string, []byte, error) {
	if len(frame) < FrameHeaderSize {
		return "", nil, errors.InvalidInput(errors.PhaseBridge, "frame shorter than header")
	}
	n := binary.LittleEndian.Uint32(frame)
	if uint64(n) > uint64(len(frame)-FrameHeaderSize) {
		return "", nil, errors.InvalidInput(errors.PhaseBridge, "channel length exceeds frame")
	}
	end := FrameHeaderSize + int(n)
	return string(frame[FrameHeaderSize:end]), frame[end:], nil
}

type pipeMessage struct {
	channel string
	payload []byte
}

// PipeEnd is one side of an in-process transport pair.
type PipeEnd struct {
	peer *PipeEnd

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []pipeMessage
	handler func(string, []byte)
	closed  bool
}

// Pipe returns two connected transports. Messages sent on one end reach
// the other end's handler in order, on that end's own goroutine. Messages
// arriving before a handler is installed are held until it is.
func Pipe() (*PipeEnd, *PipeEnd) {
	a, b := newPipeEnd(), newPipeEnd()
	a.peer, b.peer = b, a
	go a.run()
	go b.run()
	return a, b
}

func newPipeEnd() *PipeEnd {
	p := &PipeEnd{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Send queues payload for the peer. The payload is copied.
func (p *PipeEnd) Send(channel string, payload []byte) error {
	return p.peer.enqueue(channel, append([]byte(nil), payload...))
}

// SetHandler installs the inbound receiver.
func (p *PipeEnd) SetHandler(fn func(channel string, payload []byte)) {
	p.mu.Lock()
	p.handler = fn
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Close stops both ends. Queued messages are discarded and later sends fail.
func (p *PipeEnd) Close() error {
	p.shutdown()
	p.peer.shutdown()
	return nil
}

func (p *PipeEnd) shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.queue = nil
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *PipeEnd) enqueue(channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.NotInitialized(errors.PhaseBridge, "pipe")
	}
	p.queue = append(p.queue, pipeMessage{channel: channel, payload: payload})
	p.cond.Signal()
	return nil
}

func (p *PipeEnd) run() {
	for {
		p.mu.Lock()
		for !p.closed && (p.handler == nil || len(p.queue) == 0) {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		msg := p.queue[0]
		p.queue = p.queue[1:]
		fn := p.handler
		p.mu.Unlock()

		fn(msg.channel, msg.payload)
	}
}
