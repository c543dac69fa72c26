package bridge

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/script-host/errors"
	"github.com/wippyai/script-host/metrics"
)

// Callback handles every envelope arriving on a registered channel.
type Callback func(Envelope)

// Listener receives emitted values: the Envelope for broadcast listeners,
// the message for tag listeners and the error for error listeners.
type Listener func(any)

// Subscription identifies a registered listener.
type Subscription struct {
	topic string
	id    uint64
}

// Topic returns the subscribed topic.
func (s Subscription) Topic() string { return s.topic }

type listenerEntry struct {
	id uint64
	fn Listener
}

// Bridge holds the channel registry and listener table for one side of
// the connection.
type Bridge struct {
	mu        sync.RWMutex
	channels  map[string]Callback
	listeners map[string][]listenerEntry
	nextID    uint64

	transport Transport
	log       *zap.Logger
	metrics   metrics.Collector
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTransport sets the transport used by Send.
func WithTransport(t Transport) Option {
	return func(b *Bridge) {
		b.transport = t
	}
}

// WithLogger sets the bridge logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		b.log = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(b *Bridge) {
		b.metrics = c
	}
}

// New creates a bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		channels:  make(map[string]Callback),
		listeners: make(map[string][]listenerEntry),
		log:       Logger(),
		metrics:   metrics.Noop,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.metrics = metrics.OrNoop(b.metrics)
	return b
}

// Attach sets t as the outbound transport and routes its inbound traffic
// to Deliver.
func (b *Bridge) Attach(t Transport) {
	b.mu.Lock()
	b.transport = t
	b.mu.Unlock()
	t.SetHandler(func(channel string, payload []byte) {
		b.Deliver(channel, payload)
	})
}

// Register installs cb for channel. Registering a channel twice keeps the
// first callback and reports false.
func (b *Bridge) Register(channel string, cb Callback) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.channels[channel]; ok {
		return false
	}
	b.channels[channel] = cb
	return true
}

// Registered reports whether channel has a callback.
func (b *Bridge) Registered(channel string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.channels[channel]
	return ok
}

// On subscribes fn to topic.
func (b *Bridge) On(topic string, fn Listener) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.listeners[topic] = append(b.listeners[topic], listenerEntry{id: b.nextID, fn: fn})
	return Subscription{topic: topic, id: b.nextID}
}

// OnBroadcast subscribes fn to every delivered envelope. A message tagged
// with the broadcast name reaches the topic bare and is wrapped again here.
func (b *Bridge) OnBroadcast(fn func(Envelope)) Subscription {
	return b.On(BroadcastChannel, func(v any) {
		env, ok := v.(Envelope)
		if !ok {
			env = Envelope{Tag: BroadcastChannel, Message: v}
		}
		fn(env)
	})
}

// OnError subscribes fn to decode and dispatch failures.
func (b *Bridge) OnError(fn func(error)) Subscription {
	return b.On(ErrorTopic, func(v any) {
		if err, ok := v.(error); ok {
			fn(err)
		}
	})
}

// Off removes a subscription.
func (b *Bridge) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.listeners[sub.topic]
	for i, e := range entries {
		if e.id == sub.id {
			b.listeners[sub.topic] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(b.listeners[sub.topic]) == 0 {
		delete(b.listeners, sub.topic)
	}
}

// Deliver decodes raw and dispatches it.
func (b *Bridge) Deliver(channel string, raw []byte) {
	b.metrics.MessageRelayed(channel, metrics.Inbound)

	env, err := Decode(channel, raw)
	if err != nil {
		b.metrics.DecodeFailure(channel)
		b.log.Warn("malformed envelope", zap.String("channel", channel), zap.Error(err))
		b.ReportError(err)
	}
	b.Dispatch(env)
}

// Dispatch runs the channel callback, tag listeners and broadcast
// listeners for env.
func (b *Bridge) Dispatch(env Envelope) {
	b.mu.RLock()
	cb := b.channels[env.Channel]
	b.mu.RUnlock()

	if cb != nil {
		b.invoke(env.Channel, func() { cb(env) })
	}
	if env.Tag != "" {
		b.emit(env.Tag, env.Message)
	}
	if env.Tag != BroadcastChannel {
		b.emit(BroadcastChannel, env)
	}
}

// Emit delivers value to the listeners of topic.
func (b *Bridge) Emit(topic string, value any) {
	b.emit(topic, value)
}

// ReportError emits err on the error topic.
func (b *Bridge) ReportError(err error) {
	b.emit(ErrorTopic, err)
}

func (b *Bridge) emit(topic string, value any) {
	b.mu.RLock()
	entries := b.listeners[topic]
	fns := make([]Listener, len(entries))
	for i, e := range entries {
		fns[i] = e.fn
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		b.invoke(topic, func() { fn(value) })
	}
}

func (b *Bridge) invoke(topic string, fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		b.metrics.ListenerFailure(topic)
		err := errors.Dispatch(topic, r)
		b.log.Error("listener failed", zap.String("topic", topic), zap.Any("panic", r))
		if topic != ErrorTopic {
			b.emit(ErrorTopic, err)
		}
	}()
	fn()
}

// Send writes message to channel through the transport.
func (b *Bridge) Send(channel string, message any) error {
	data, err := Marshal(channel, message)
	if err != nil {
		return err
	}

	b.mu.RLock()
	t := b.transport
	b.mu.RUnlock()
	if t == nil {
		return errors.NotInitialized(errors.PhaseBridge, "transport")
	}

	if err := t.Send(channel, data); err != nil {
		return errors.IO(errors.PhaseBridge, "send on "+channel, err)
	}
	b.metrics.MessageRelayed(channel, metrics.Outbound)
	return nil
}

// SendTagged sends a {tag, message} envelope on channel.
func (b *Bridge) SendTagged(channel, tag string, message any) error {
	data, err := Encode(tag, message)
	if err != nil {
		return err
	}
	return b.Send(channel, data)
}
