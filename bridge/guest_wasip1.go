//go:build wasip1

package bridge

import (
	"context"
	"sync"
	"time"
	"unsafe"

	"github.com/wippyai/script-host/errors"
)

//go:wasmimport script_bridge send_message
func hostSendMessage(chPtr unsafe.Pointer, chLen uint32, msgPtr unsafe.Pointer, msgLen uint32) int32

//go:wasmimport script_bridge recv_message
func hostRecvMessage(bufPtr unsafe.Pointer, bufCap uint32) int32

// GuestTransport is the runtime end of the native bridge. Inbound frames
// are pulled from the host by Poll.
type GuestTransport struct {
	mu      sync.Mutex
	handler func(string, []byte)
	buf     []byte
}

// NewGuestTransport returns a transport bound to the script_bridge host module.
func NewGuestTransport() *GuestTransport {
	return &GuestTransport{buf: make([]byte, 4096)}
}

func (g *GuestTransport) Send(channel string, payload []byte) error {
	var chPtr, msgPtr unsafe.Pointer
	if len(channel) > 0 {
		chPtr = unsafe.Pointer(unsafe.StringData(channel))
	}
	if len(payload) > 0 {
		msgPtr = unsafe.Pointer(&payload[0])
	}
	if rc := hostSendMessage(chPtr, uint32(len(channel)), msgPtr, uint32(len(payload))); rc != 0 {
		return errors.New(errors.PhaseBridge, errors.KindIO).
			Path(channel).
			Detail("host rejected message (code %d)", rc).
			Build()
	}
	return nil
}

func (g *GuestTransport) SetHandler(fn func(channel string, payload []byte)) {
	g.mu.Lock()
	g.handler = fn
	g.mu.Unlock()
}

// Poll delivers every frame the host has queued and returns how many.
func (g *GuestTransport) Poll() (int, error) {
	g.mu.Lock()
	fn := g.handler
	g.mu.Unlock()

	n := 0
	for {
		rc := hostRecvMessage(unsafe.Pointer(&g.buf[0]), uint32(len(g.buf)))
		if rc == 0 {
			return n, nil
		}
		if rc < 0 {
			g.buf = make([]byte, int(-rc))
			continue
		}
		channel, payload, err := ParseFrame(g.buf[:rc])
		if err != nil {
			return n, err
		}
		n++
		if fn != nil {
			fn(channel, append([]byte(nil), payload...))
		}
	}
}

// Run polls until ctx is done, sleeping interval between empty polls.
func (g *GuestTransport) Run(ctx context.Context, interval time.Duration) error {
	for {
		n, err := g.Poll()
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
