package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sherrors "github.com/wippyai/script-host/errors"
)

type recordingNotifier struct {
	mu     sync.Mutex
	shown  []string
	hidden int
}

func (n *recordingNotifier) Show(title, content string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = append(n.shown, title+"|"+content)
	return nil
}

func (n *recordingNotifier) Hide() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hidden++
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.shown), n.hidden
}

func TestService_PermissionDenied(t *testing.T) {
	f := newFakeBoundary()
	perms := NewStaticPermissions(PermissionDenied)
	notifier := &recordingNotifier{}
	svc := NewService(newSupervisor(t, f), notifier, perms)

	_, err := svc.Start(context.Background(), "main.js", ServiceOptions{Title: "t"})
	if !errors.Is(err, sherrors.ErrPermissionDenied) {
		t.Fatalf("Start = %v, want PermissionDenied", err)
	}
	if perms.Requests() != 1 {
		t.Errorf("Requests = %d, want 1", perms.Requests())
	}
	if shown, _ := notifier.counts(); shown != 0 {
		t.Error("notification shown without permission")
	}
	if len(f.invocations()) != 0 {
		t.Error("runtime started without permission")
	}
}

func TestService_PromptGrantsOnRetry(t *testing.T) {
	f := newFakeBoundary()
	perms := NewStaticPermissions(PermissionPrompt)
	svc := NewService(newSupervisor(t, f), &recordingNotifier{}, perms)

	if _, err := svc.Start(context.Background(), "main.js", ServiceOptions{}); !errors.Is(err, sherrors.ErrPermissionDenied) {
		t.Fatalf("first Start = %v", err)
	}
	h, err := svc.Start(context.Background(), "main.js", ServiceOptions{})
	if err != nil {
		t.Fatalf("second Start = %v", err)
	}
	waitStarted(t, f)
	f.release <- 0
	h.Wait(context.Background())
}

func TestService_NotificationLifecycle(t *testing.T) {
	f := newFakeBoundary()
	notifier := &recordingNotifier{}
	svc := NewService(newSupervisor(t, f), notifier, NewStaticPermissions(PermissionGranted))

	exited := make(chan struct{})
	h, err := svc.Start(context.Background(), "main.js", ServiceOptions{
		Title:   "Script host",
		Content: "running",
		Options: Options{OnExit: func(int, error) { close(exited) }},
	})
	if err != nil {
		t.Fatal(err)
	}
	waitStarted(t, f)
	if shown, hidden := notifier.counts(); shown != 1 || hidden != 0 {
		t.Errorf("shown=%d hidden=%d while running", shown, hidden)
	}
	if notifier.shown[0] != "Script host|running" {
		t.Errorf("notification = %q", notifier.shown[0])
	}

	f.release <- 0
	h.Wait(context.Background())
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("OnExit not called")
	}
	if _, hidden := notifier.counts(); hidden != 1 {
		t.Errorf("hidden = %d, want 1", hidden)
	}
}

func TestService_Stop(t *testing.T) {
	f := newFakeBoundary()
	svc := NewService(newSupervisor(t, f), &recordingNotifier{}, NewStaticPermissions(PermissionGranted))

	ctx, cancel := context.WithCancel(context.Background())
	h, err := svc.Start(ctx, "main.js", ServiceOptions{})
	if err != nil {
		t.Fatal(err)
	}
	waitStarted(t, f)

	// cancelling the caller's context does not stop a service
	cancel()
	select {
	case <-h.Done():
		t.Fatal("service stopped with the caller's context")
	case <-time.After(20 * time.Millisecond):
	}

	svc.Stop()
	wctx, wcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer wcancel()
	code, _ := h.Wait(wctx)
	if code != 137 {
		t.Errorf("code = %d, want 137 from cancelled boundary", code)
	}
	svc.Stop()
}

func TestService_AlreadyRunningHidesNotification(t *testing.T) {
	f := newFakeBoundary()
	sup := newSupervisor(t, f)
	notifier := &recordingNotifier{}
	svc := NewService(sup, notifier, NewStaticPermissions(PermissionGranted))

	h, err := sup.StartWithScript(context.Background(), "x", Options{})
	if err != nil {
		t.Fatal(err)
	}
	waitStarted(t, f)

	if _, err := svc.Start(context.Background(), "main.js", ServiceOptions{}); !errors.Is(err, sherrors.ErrAlreadyRunning) {
		t.Errorf("Start = %v, want AlreadyRunning", err)
	}
	if shown, hidden := notifier.counts(); shown != hidden {
		t.Errorf("shown=%d hidden=%d, notification left visible", shown, hidden)
	}

	f.release <- 0
	h.Wait(context.Background())
}

func TestService_NoSecondRunAfterExit(t *testing.T) {
	f := newFakeBoundary()
	notifier := &recordingNotifier{}
	svc := NewService(newSupervisor(t, f), notifier, NewStaticPermissions(PermissionGranted))

	exited := make(chan struct{})
	h, err := svc.Start(context.Background(), "main.js", ServiceOptions{
		Options: Options{OnExit: func(int, error) { close(exited) }},
	})
	if err != nil {
		t.Fatal(err)
	}
	waitStarted(t, f)
	f.release <- 0
	h.Wait(context.Background())
	<-exited

	if _, err := svc.Start(context.Background(), "main.js", ServiceOptions{}); !errors.Is(err, sherrors.ErrAlreadyRunning) {
		t.Fatalf("Start after exit = %v, want AlreadyRunning", err)
	}
	if shown, hidden := notifier.counts(); shown != hidden {
		t.Errorf("shown=%d hidden=%d, notification left visible", shown, hidden)
	}
}
