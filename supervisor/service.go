package supervisor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/script-host/errors"
)

// Notifier presents the notification shown while a service runs.
type Notifier interface {
	Show(title, content string) error
	Hide()
}

// Permissions answers and requests the notification permission.
type Permissions interface {
	NotificationsGranted() bool
	// Request asks for the permission. It does not wait for the answer.
	Request()
}

// ServiceOptions configures a service start.
type ServiceOptions struct {
	Title   string
	Content string
	Options
}

// Service runs the runtime as a long-lived background task.
type Service struct {
	sup      *Supervisor
	notifier Notifier
	perms    Permissions

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewService wraps sup.
func NewService(sup *Supervisor, notifier Notifier, perms Permissions) *Service {
	return &Service{sup: sup, notifier: notifier, perms: perms}
}

// Start shows the notification and runs file like StartWithEntryFile. The
// run outlives ctx's cancellation; use Stop to end it.
func (s *Service) Start(ctx context.Context, file string, opts ServiceOptions) (*Handle, error) {
	if s.perms != nil && !s.perms.NotificationsGranted() {
		s.perms.Request()
		s.sup.metrics.StartRejected(string(errors.KindPermissionDenied))
		return nil, errors.PermissionDenied("notification")
	}

	if s.notifier != nil {
		if err := s.notifier.Show(opts.Title, opts.Content); err != nil {
			s.sup.log.Warn("service notification not shown", zap.Error(err))
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	userExit := opts.OnExit
	opts.OnExit = func(code int, err error) {
		s.hide()
		cancel()
		if userExit != nil {
			userExit(code, err)
		}
	}

	h, err := s.sup.StartWithEntryFile(runCtx, file, opts.Options)
	if err != nil {
		cancel()
		s.hide()
		return nil, err
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	return h, nil
}

// Stop asks the running service to end. It returns immediately and does
// not report whether the runtime stopped.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Service) hide() {
	if s.notifier != nil {
		s.notifier.Hide()
	}
}
