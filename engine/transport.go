package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/script-host/bridge"
	"github.com/wippyai/script-host/errors"
)

// BridgeModule is the host module name the guest imports.
const BridgeModule = "script_bridge"

// DefaultQueueLimit bounds the frames waiting for the guest.
const DefaultQueueLimit = 1024

// send_message result codes.
const (
	sendOK          int32 = 0
	sendOutOfBounds int32 = -1
)

// Transport is the host end of the bridge. Messages sent by the host are
// queued until the guest polls them with recv_message; messages from the
// guest reach the handler synchronously on the guest's goroutine.
type Transport struct {
	mu      sync.Mutex
	queue   [][]byte
	limit   int
	dropped int
	handler func(channel string, payload []byte)
	log     *zap.Logger
}

// NewTransport creates a transport holding at most limit frames.
func NewTransport(limit int, log *zap.Logger) *Transport {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	if log == nil {
		log = Logger()
	}
	return &Transport{limit: limit, log: log}
}

// Send queues payload for the guest. When the queue is full the message is
// dropped and an error returned.
func (t *Transport) Send(channel string, payload []byte) error {
	frame := bridge.AppendFrame(make([]byte, 0, bridge.FrameSize(channel, payload)), channel, payload)

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) >= t.limit {
		t.dropped++
		t.log.Warn("bridge queue full, message dropped",
			zap.String("channel", channel),
			zap.Int("limit", t.limit),
			zap.Int("dropped", t.dropped))
		return errors.New(errors.PhaseBoundary, errors.KindIO).
			Path(channel).
			Detail("guest queue full").
			Build()
	}
	t.queue = append(t.queue, frame)
	return nil
}

// SetHandler installs the receiver for guest messages.
func (t *Transport) SetHandler(fn func(channel string, payload []byte)) {
	t.mu.Lock()
	t.handler = fn
	t.mu.Unlock()
}

// Pending returns the number of frames waiting for the guest.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Dropped returns how many messages were discarded on overflow.
func (t *Transport) Dropped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Reset discards queued frames, typically when the guest exits.
func (t *Transport) Reset() {
	t.mu.Lock()
	t.queue = nil
	t.mu.Unlock()
}

// Instantiate registers the script_bridge host module in r.
func (t *Transport) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	return r.NewHostModuleBuilder(BridgeModule).
		NewFunctionBuilder().
		WithFunc(t.sendMessage).
		WithParameterNames("ch_ptr", "ch_len", "msg_ptr", "msg_len").
		Export("send_message").
		NewFunctionBuilder().
		WithFunc(t.recvMessage).
		WithParameterNames("buf_ptr", "buf_cap").
		Export("recv_message").
		Instantiate(ctx)
}

func (t *Transport) sendMessage(_ context.Context, m api.Module, chPtr, chLen, msgPtr, msgLen uint32) int32 {
	mem := m.Memory()
	if mem == nil {
		return sendOutOfBounds
	}
	ch, ok := mem.Read(chPtr, chLen)
	if !ok {
		return sendOutOfBounds
	}
	msg, ok := mem.Read(msgPtr, msgLen)
	if !ok {
		return sendOutOfBounds
	}

	channel := string(ch)
	payload := append([]byte(nil), msg...)

	t.mu.Lock()
	fn := t.handler
	t.mu.Unlock()
	if fn == nil {
		t.log.Debug("guest message without handler", zap.String("channel", channel))
		return sendOK
	}
	fn(channel, payload)
	return sendOK
}

func (t *Transport) recvMessage(_ context.Context, m api.Module, bufPtr, bufCap uint32) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.queue) == 0 {
		return 0
	}
	frame := t.queue[0]
	if uint32(len(frame)) > bufCap {
		return -int32(len(frame))
	}
	mem := m.Memory()
	if mem == nil || !mem.Write(bufPtr, frame) {
		return sendOutOfBounds
	}
	t.queue[0] = nil
	t.queue = t.queue[1:]
	return int32(len(frame))
}
