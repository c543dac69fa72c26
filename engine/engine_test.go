package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	scripthost "github.com/wippyai/script-host"
	sherrors "github.com/wippyai/script-host/errors"
)

func writeModule(t *testing.T, dir, name string, wasm []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, wasm, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close(context.Background()) })
	return e
}

func TestNew_RequiresInterpreter(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("New without interpreter should fail")
	}
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		wasm []byte
		want int
	}{
		{"proc_exit 0", exitModule(0), 0},
		{"proc_exit 3", exitModule(3), 3},
		{"return from _start", returnModule(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeModule(t, root, "interp.wasm", tt.wasm)
			e := newEngine(t, Config{Interpreter: "interp.wasm", Root: root})

			code, err := e.Run(context.Background(), scripthost.Invocation{Args: []string{"node", "-e", "1"}})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if code != tt.want {
				t.Errorf("code = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestRun_RepeatedRunsShareCompilation(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "interp.wasm", exitModule(1))
	e := newEngine(t, Config{Interpreter: "interp.wasm", Root: root, Cache: filepath.Join(root, "cache")})

	for i := 0; i < 3; i++ {
		code, err := e.Run(context.Background(), scripthost.Invocation{Args: []string{"node"}})
		if err != nil || code != 1 {
			t.Fatalf("run %d = %d %v", i, code, err)
		}
	}
	if len(e.compiled) != 1 {
		t.Errorf("compiled %d modules, want 1", len(e.compiled))
	}
}

func TestRun_MissingInterpreter(t *testing.T) {
	e := newEngine(t, Config{Interpreter: "missing.wasm", Root: t.TempDir()})
	code, err := e.Run(context.Background(), scripthost.Invocation{})
	if code != -1 {
		t.Errorf("code = %d, want -1", code)
	}
	var se *sherrors.Error
	if !errors.As(err, &se) || se.Kind != sherrors.KindNotFound {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestRun_InvalidInterpreter(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "bad.wasm", []byte("not wasm"))
	e := newEngine(t, Config{Interpreter: "bad.wasm", Root: root})
	if _, err := e.Run(context.Background(), scripthost.Invocation{}); err == nil {
		t.Error("invalid module should fail")
	}
}

func TestRun_ContextCancelStops(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "spin.wasm", spinModule())
	e := newEngine(t, Config{Interpreter: "spin.wasm", Root: root})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	var code int
	var err error
	go func() {
		code, err = e.Run(ctx, scripthost.Invocation{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled run did not stop")
	}
	if code != -1 {
		t.Errorf("code = %d, want -1", code)
	}
	var se *sherrors.Error
	if !errors.As(err, &se) || se.Kind != sherrors.KindInterrupted {
		t.Errorf("err = %v, want interrupted", err)
	}
}

func TestRun_RedirectOutput(t *testing.T) {
	for _, redirect := range []bool{true, false} {
		t.Run(fmt.Sprintf("redirect=%v", redirect), func(t *testing.T) {
			root := t.TempDir()
			writeModule(t, root, "echo.wasm", stdoutModule("hello from guest\n"))

			core, logs := observer.New(zapcore.InfoLevel)
			e := newEngine(t, Config{Interpreter: "echo.wasm", Root: root, Logger: zap.New(core)})

			code, err := e.Run(context.Background(), scripthost.Invocation{
				Args:           []string{"node", "main.js"},
				RedirectOutput: redirect,
			})
			if code != 0 || err != nil {
				t.Fatalf("Run = %d, %v", code, err)
			}

			mirrored := logs.FilterField(zap.String("stream", "stdout")).All()
			if !redirect {
				if len(mirrored) != 0 {
					t.Errorf("output mirrored with redirect off: %v", mirrored)
				}
				return
			}
			if len(mirrored) != 1 || mirrored[0].Message != "hello from guest" {
				t.Errorf("mirrored = %v, want one stdout line", mirrored)
			}
		})
	}
}

func TestEnviron(t *testing.T) {
	e := &Engine{cfg: Config{
		Root:          "/data",
		Cache:         "/data/cache",
		ModulePathEnv: "NODE_PATH",
		Env:           map[string]string{"A": "base", "HOME": "overridden"},
	}}

	env := e.environ(scripthost.Invocation{
		ModulePath: "/data/workspace:/data/builtin-modules",
		Env:        map[string]string{"A": "invocation"},
	})

	got := map[string]string{}
	var keys []string
	for _, kv := range env {
		got[kv[0]] = kv[1]
		keys = append(keys, kv[0])
	}

	want := map[string]string{
		"A":         "invocation",
		"HOME":      "/data",
		"NODE_PATH": "/data/workspace:/data/builtin-modules",
		"TMPDIR":    "/data/cache",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Errorf("environment not sorted: %v", keys)
		}
	}
}

func TestLineWriter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	w := newLineWriter(zap.New(core), zapcore.ErrorLevel, "stderr")

	w.Write([]byte("first li"))
	w.Write([]byte("ne\r\nsecond\nthi"))
	if logs.Len() != 2 {
		t.Fatalf("logged %d lines before flush, want 2", logs.Len())
	}
	w.Flush()

	entries := logs.All()
	want := []string{"first line", "second", "thi"}
	if len(entries) != len(want) {
		t.Fatalf("logged %d lines, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Message != want[i] {
			t.Errorf("line %d = %q, want %q", i, e.Message, want[i])
		}
		if e.Level != zapcore.ErrorLevel {
			t.Errorf("line %d level = %v", i, e.Level)
		}
		if e.ContextMap()["stream"] != "stderr" {
			t.Errorf("line %d stream = %v", i, e.ContextMap()["stream"])
		}
	}
}

func TestLineWriter_LongLine(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	w := newLineWriter(zap.New(core), zapcore.InfoLevel, "stdout")
	w.Write(make([]byte, maxLine+10))
	if logs.Len() != 1 {
		t.Errorf("oversized partial line should be flushed, logged %d", logs.Len())
	}
}
