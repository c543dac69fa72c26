package main

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/script-host/bridge"
	"github.com/wippyai/script-host/deploy"
	"github.com/wippyai/script-host/engine"
	sherrors "github.com/wippyai/script-host/errors"
	"github.com/wippyai/script-host/runtime"
	"github.com/wippyai/script-host/supervisor"
)

func TestExitStatus(t *testing.T) {
	exit3 := &sherrors.ExitError{Code: 3}
	failed := errors.New("instantiate failed")
	tests := []struct {
		name     string
		code     int
		err      error
		wantCode int
		wantErr  error
	}{
		{"clean", 0, nil, 0, nil},
		{"nonzero exit", 3, exit3, 3, nil},
		{"wait timed out", -1, context.DeadlineExceeded, 1, context.DeadlineExceeded},
		{"boundary failure", -1, failed, 1, failed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := exitStatus(tt.code, tt.err)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if !errors.Is(err, tt.wantErr) || (err == nil) != (tt.wantErr == nil) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInstallLoggers(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	installLoggers(zap.New(core))
	t.Cleanup(func() { installLoggers(zap.NewNop()) })

	bridge.Logger().Info("x")
	deploy.Logger().Info("x")
	engine.Logger().Info("x")
	runtime.Logger().Info("x")
	supervisor.Logger().Info("x")

	var names []string
	for _, e := range logs.All() {
		names = append(names, e.LoggerName)
	}
	want := []string{"bridge", "deploy", "engine", "runtime", "supervisor"}
	if len(names) != len(want) {
		t.Fatalf("logger names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("logger %d = %q, want %q", i, names[i], want[i])
		}
	}
}
