// Package metrics defines the instrumentation hooks used across the host.
//
// Components take a Collector and default to Noop. The Prometheus
// implementation keeps its own registry so several hosts in one process
// never collide; serve it with Handler.
package metrics

import "time"

// Message directions.
const (
	Inbound  = "inbound"
	Outbound = "outbound"
)

// Collector receives host events worth counting.
type Collector interface {
	// DeploymentCompleted records one synchronization pass.
	DeploymentCompleted(copied, failed int, duration time.Duration, err error)

	// TrashSwept records a trash sweep and how many entries could not be removed.
	TrashSwept(failures int)

	// StateTransition records a supervisor state change.
	StateTransition(from, to string)

	// StartRejected records a start refused before reaching the boundary.
	StartRejected(reason string)

	// RuntimeExited records a finished runtime and its exit code.
	RuntimeExited(code int, duration time.Duration)

	// MessageRelayed records a message crossing the bridge.
	MessageRelayed(channel, direction string)

	// DecodeFailure records a malformed inbound envelope.
	DecodeFailure(channel string)

	// ListenerFailure records a listener that panicked during dispatch.
	ListenerFailure(topic string)
}

// Noop discards everything.
var Noop Collector = noopCollector{}

type noopCollector struct{}

func (noopCollector) DeploymentCompleted(int, int, time.Duration, error) {}
func (noopCollector) TrashSwept(int)                                     {}
func (noopCollector) StateTransition(string, string)                     {}
func (noopCollector) StartRejected(string)                               {}
func (noopCollector) RuntimeExited(int, time.Duration)                   {}
func (noopCollector) MessageRelayed(string, string)                      {}
func (noopCollector) DecodeFailure(string)                               {}
func (noopCollector) ListenerFailure(string)                             {}

// OrNoop returns c, or Noop when c is nil.
func OrNoop(c Collector) Collector {
	if c == nil {
		return Noop
	}
	return c
}
