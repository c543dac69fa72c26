package supervisor

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// LogNotifier is a Notifier that writes the notification to a logger.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Show(title, content string) error {
	n.Logger.Info("service notification shown", zap.String("title", title), zap.String("content", content))
	return nil
}

func (n LogNotifier) Hide() {
	n.Logger.Info("service notification hidden")
}

// Permission policies for StaticPermissions.
const (
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
	PermissionPrompt  = "prompt"
)

// StaticPermissions is a Permissions with a fixed policy. Under
// PermissionPrompt the first Request grants the permission, so the next
// start succeeds.
type StaticPermissions struct {
	policy   string
	granted  atomic.Bool
	requests atomic.Int32
}

// NewStaticPermissions returns a Permissions following policy.
func NewStaticPermissions(policy string) *StaticPermissions {
	p := &StaticPermissions{policy: policy}
	p.granted.Store(policy == PermissionGranted)
	return p
}

func (p *StaticPermissions) NotificationsGranted() bool {
	return p.granted.Load()
}

func (p *StaticPermissions) Request() {
	p.requests.Add(1)
	if p.policy == PermissionPrompt {
		p.granted.Store(true)
	}
}

// Requests returns how many times the permission was requested.
func (p *StaticPermissions) Requests() int {
	return int(p.requests.Load())
}
