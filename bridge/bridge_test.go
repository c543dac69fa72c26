package bridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	sherrors "github.com/wippyai/script-host/errors"
)

func TestDeliver_DispatchOrder(t *testing.T) {
	b := New()
	var order []string

	b.Register("app", func(env Envelope) {
		order = append(order, "channel:"+env.Tag)
	})
	b.On("ping", func(v any) {
		order = append(order, "tag:"+v.(string))
	})
	b.OnBroadcast(func(env Envelope) {
		order = append(order, "broadcast:"+env.Channel)
	})

	b.Deliver("app", []byte(`{"tag":"ping","message":"hi"}`))

	want := []string{"channel:ping", "tag:hi", "broadcast:app"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestDeliver_BroadcastTagNotDuplicated(t *testing.T) {
	b := New()
	var got []any
	b.On(BroadcastChannel, func(v any) { got = append(got, v) })

	b.Deliver(BroadcastChannel, []byte(`{"tag":"_EVENTS_","message":5}`))

	if len(got) != 1 {
		t.Fatalf("broadcast listeners ran %d times, want 1", len(got))
	}
	if got[0] != float64(5) {
		t.Errorf("broadcast got %#v, want the message", got[0])
	}
}

func TestOnBroadcast_SeesEveryMessage(t *testing.T) {
	b := New()
	var got []Envelope
	b.OnBroadcast(func(env Envelope) { got = append(got, env) })

	b.Deliver(BroadcastChannel, []byte(`{"tag":"ping","message":1}`))
	b.Deliver(BroadcastChannel, []byte(`{"tag":"_EVENTS_","message":5}`))

	if len(got) != 2 {
		t.Fatalf("broadcast listener saw %d messages, want 2", len(got))
	}
	if got[0].Tag != "ping" || got[0].Message != float64(1) {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Tag != BroadcastChannel || got[1].Message != float64(5) {
		t.Errorf("second = %+v", got[1])
	}
}

func TestDeliver_OpaquePayload(t *testing.T) {
	b := New()
	var env Envelope
	tagged := false
	b.OnBroadcast(func(e Envelope) { env = e })
	b.On("", func(any) { tagged = true })

	b.Deliver("raw", []byte("plain text"))

	if !env.Opaque || env.Message != "plain text" || env.Tag != "" {
		t.Errorf("envelope = %+v", env)
	}
	if tagged {
		t.Error("opaque payload should not reach tag listeners")
	}
}

func TestDeliver_DecodeFailureIsReported(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	b := New(WithLogger(zap.New(core)))

	var reported error
	var broadcast int
	b.OnError(func(err error) { reported = err })
	b.OnBroadcast(func(Envelope) { broadcast++ })

	b.Deliver("c", []byte(`{"tag":{"x":1}}`))

	if !errors.Is(reported, sherrors.ErrDecodeFailure) {
		t.Errorf("error topic got %v", reported)
	}
	if broadcast != 1 {
		t.Errorf("broadcast = %d, want 1", broadcast)
	}
	if logs.FilterMessage("malformed envelope").Len() != 1 {
		t.Error("decode failure was not logged")
	}
}

func TestDeliver_ListenerPanicIsolated(t *testing.T) {
	b := New()
	var errs []error
	var calls int

	b.OnError(func(err error) { errs = append(errs, err) })
	b.On("boom", func(any) { panic("listener exploded") })
	b.On("boom", func(any) { calls++ })

	b.Deliver("c", []byte(`{"tag":"boom"}`))
	b.Deliver("c", []byte(`{"tag":"boom"}`))

	if calls != 2 {
		t.Errorf("second listener ran %d times, want 2", calls)
	}
	if len(errs) != 2 {
		t.Fatalf("error topic got %d errors, want 2", len(errs))
	}
	var e *sherrors.Error
	if !errors.As(errs[0], &e) || e.Kind != sherrors.KindDispatch {
		t.Errorf("error = %v, want dispatch error", errs[0])
	}
}

func TestDeliver_ErrorListenerPanicDoesNotRecurse(t *testing.T) {
	b := New()
	b.OnError(func(error) { panic("again") })
	b.Deliver("c", []byte(`{"tag":["bad"]}`))
}

func TestRegister_Idempotent(t *testing.T) {
	b := New()
	var first, second int

	if !b.Register("c", func(Envelope) { first++ }) {
		t.Error("first Register should report true")
	}
	if b.Register("c", func(Envelope) { second++ }) {
		t.Error("second Register should report false")
	}
	if !b.Registered("c") {
		t.Error("channel should be registered")
	}

	b.Deliver("c", []byte(`"x"`))
	if first != 1 || second != 0 {
		t.Errorf("first=%d second=%d, want 1/0", first, second)
	}
}

func TestOff(t *testing.T) {
	b := New()
	var a, c int
	subA := b.On("t", func(any) { a++ })
	b.On("t", func(any) { c++ })

	b.Emit("t", nil)
	b.Off(subA)
	b.Emit("t", nil)

	if a != 1 || c != 2 {
		t.Errorf("a=%d c=%d, want 1/2", a, c)
	}
	if subA.Topic() != "t" {
		t.Errorf("Topic = %q", subA.Topic())
	}
}

func TestSend_WithoutTransport(t *testing.T) {
	b := New()
	err := b.Send("c", "x")
	var e *sherrors.Error
	if !errors.As(err, &e) || e.Kind != sherrors.KindNotInitialized {
		t.Errorf("Send without transport = %v", err)
	}
}

func TestPipe_RoundTrip(t *testing.T) {
	hostEnd, guestEnd := Pipe()
	defer hostEnd.Close()

	host := New()
	host.Attach(hostEnd)
	guest := New()
	guest.Attach(guestEnd)

	guest.On("ping", func(v any) {
		if err := guest.SendTagged(BroadcastChannel, "pong", v); err != nil {
			t.Errorf("guest send: %v", err)
		}
	})

	got := make(chan any, 1)
	host.On("pong", func(v any) { got <- v })

	if err := host.SendTagged(BroadcastChannel, "ping", "hello"); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-got:
		if v != "hello" {
			t.Errorf("pong = %#v, want hello", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pong")
	}
}

func TestPipe_OrderedAndBufferedUntilHandler(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	for i := 0; i < 50; i++ {
		if err := a.Send("c", []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}

	var mu sync.Mutex
	var got []byte
	done := make(chan struct{})
	b.SetHandler(func(_ string, p []byte) {
		mu.Lock()
		got = append(got, p[0])
		n := len(got)
		mu.Unlock()
		if n == 50 {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	for i, v := range got {
		if int(v) != i {
			t.Fatalf("got[%d] = %d, out of order", i, v)
		}
	}
}

func TestPipe_SendAfterClose(t *testing.T) {
	a, b := Pipe()
	b.SetHandler(func(string, []byte) {})
	a.Close()
	if err := a.Send("c", nil); err == nil {
		t.Error("send after close should fail")
	}
}

func TestConcurrentRegistration(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := b.On("t", func(any) {})
			b.Off(sub)
		}()
		go func() {
			defer wg.Done()
			b.Register("c", func(Envelope) {})
			b.Deliver("c", []byte(`{"tag":"t"}`))
		}()
	}
	wg.Wait()
}
