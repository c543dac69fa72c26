// Package lifecycle forwards host foreground/background transitions to the
// runtime once it has declared itself ready to receive them.
package lifecycle

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/script-host/bridge"
)

// Sender writes a control payload to a channel.
type Sender interface {
	Send(channel string, message any) error
}

// Adapter tracks runtime readiness and relays pause/resume.
type Adapter struct {
	sender Sender
	log    *zap.Logger
	ready  atomic.Bool
}

// New creates an Adapter writing through sender.
func New(sender Sender, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{sender: sender, log: log}
}

// HandleSystemMessage inspects a message received on the system channel.
func (a *Adapter) HandleSystemMessage(msg string) {
	if msg == bridge.ReadyForAppEvents {
		a.ready.Store(true)
		a.log.Debug("runtime ready for app events")
	}
}

// Ready reports whether the runtime has asked for app events.
func (a *Adapter) Ready() bool {
	return a.ready.Load()
}

// Reset forgets readiness, typically after the runtime exits.
func (a *Adapter) Reset() {
	a.ready.Store(false)
}

// Pause tells the runtime the host went to the background. It reports
// whether the message was sent.
func (a *Adapter) Pause() bool {
	return a.signal(bridge.Pause)
}

// Resume tells the runtime the host returned to the foreground.
func (a *Adapter) Resume() bool {
	return a.signal(bridge.Resume)
}

func (a *Adapter) signal(msg string) bool {
	if !a.ready.Load() {
		a.log.Debug("lifecycle event dropped, runtime not ready", zap.String("event", msg))
		return false
	}
	if err := a.sender.Send(bridge.SystemChannel, msg); err != nil {
		a.log.Warn("lifecycle event not sent", zap.String("event", msg), zap.Error(err))
		return false
	}
	return true
}
