package engine

import (
	"context"
	"crypto/rand"
	goerrors "errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	scripthost "github.com/wippyai/script-host"
	"github.com/wippyai/script-host/errors"
)

// Config holds configuration for engine creation.
type Config struct {
	// Interpreter is the WASI command module to run. A relative path is
	// resolved against Root.
	Interpreter string

	// Root is mounted read-write at the same path inside the guest.
	Root string

	// Cache is exported as TMPDIR. When set, compiled code is also cached
	// on disk under Cache/wazero.
	Cache string

	// ModulePathEnv names the variable carrying the module search path.
	// Defaults to NODE_PATH.
	ModulePathEnv string

	// Env is the base environment for every run.
	Env map[string]string

	// MemoryLimitPages caps guest memory in 64KiB pages. 0 keeps wazero's default.
	MemoryLimitPages uint32

	// QueueLimit bounds the host-to-guest message queue.
	QueueLimit int

	Logger *zap.Logger
}

// Engine runs the interpreter module. It implements scripthost.Boundary.
type Engine struct {
	runtime   wazero.Runtime
	transport *Transport
	cfg       Config
	log       *zap.Logger

	mu       sync.Mutex
	compiled map[string]wazero.CompiledModule
}

var _ scripthost.Boundary = (*Engine)(nil)

// New creates an engine with WASI preview1 and the bridge module installed.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Interpreter == "" {
		return nil, errors.InvalidInput(errors.PhaseBoundary, "interpreter path is empty")
	}
	if cfg.Root != "" {
		abs, err := filepath.Abs(cfg.Root)
		if err != nil {
			return nil, errors.IO(errors.PhaseBoundary, "resolve root", err)
		}
		cfg.Root = abs
	}
	if cfg.ModulePathEnv == "" {
		cfg.ModulePathEnv = "NODE_PATH"
	}
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	if cfg.Cache != "" {
		cache, err := wazero.NewCompilationCacheWithDir(filepath.Join(cfg.Cache, "wazero"))
		if err != nil {
			log.Warn("compilation cache unavailable", zap.Error(err))
		} else {
			runtimeCfg = runtimeCfg.WithCompilationCache(cache)
		}
	}

	e := &Engine{
		runtime:   wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		transport: NewTransport(cfg.QueueLimit, log),
		cfg:       cfg,
		log:       log,
		compiled:  make(map[string]wazero.CompiledModule),
	}

	if _, err := instantiateWASI(ctx, e.runtime); err != nil {
		e.runtime.Close(ctx)
		return nil, errors.Wrap(errors.PhaseBoundary, errors.KindNotInitialized, err, "instantiate WASI")
	}
	if _, err := e.transport.Instantiate(ctx, e.runtime); err != nil {
		e.runtime.Close(ctx)
		return nil, errors.Wrap(errors.PhaseBoundary, errors.KindNotInitialized, err, "instantiate bridge module")
	}
	return e, nil
}

// instantiateWASI registers wasi_snapshot_preview1.
func instantiateWASI(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(wasi_snapshot_preview1.ModuleName)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	return builder.Instantiate(ctx)
}

// Transport returns the host end of the bridge.
func (e *Engine) Transport() *Transport {
	return e.transport
}

// Run instantiates the interpreter with inv and blocks until it exits.
func (e *Engine) Run(ctx context.Context, inv scripthost.Invocation) (int, error) {
	compiled, err := e.compile(ctx, e.cfg.Interpreter)
	if err != nil {
		return -1, err
	}
	defer e.transport.Reset()

	var stdout, stderr io.Writer = io.Discard, io.Discard
	if inv.RedirectOutput {
		outW := newLineWriter(e.log, zapcore.InfoLevel, "stdout")
		errW := newLineWriter(e.log, zapcore.ErrorLevel, "stderr")
		defer outW.Flush()
		defer errW.Flush()
		stdout, stderr = outW, errW
	}

	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(inv.Args...).
		WithStdout(stdout).
		WithStderr(stderr).
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep().
		WithRandSource(rand.Reader)
	for _, kv := range e.environ(inv) {
		modCfg = modCfg.WithEnv(kv[0], kv[1])
	}
	if e.cfg.Root != "" {
		modCfg = modCfg.WithFSConfig(wazero.NewFSConfig().WithDirMount(e.cfg.Root, filepath.ToSlash(e.cfg.Root)))
	}

	start := time.Now()
	mod, err := e.runtime.InstantiateModule(ctx, compiled, modCfg)
	if mod != nil {
		defer mod.Close(context.WithoutCancel(ctx))
	}
	code, err := exitCode(ctx, err)
	e.log.Debug("interpreter finished",
		zap.Strings("args", inv.Args),
		zap.Int("code", code),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	return code, err
}

func exitCode(ctx context.Context, err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *sys.ExitError
	if !goerrors.As(err, &exitErr) {
		return -1, errors.Wrap(errors.PhaseBoundary, errors.KindIO, err, "run interpreter")
	}
	switch exitErr.ExitCode() {
	case sys.ExitCodeContextCanceled, sys.ExitCodeDeadlineExceeded:
		if ctx.Err() != nil {
			return -1, errors.Interrupted(errors.PhaseBoundary, "interpreter", ctx.Err())
		}
	}
	return int(exitErr.ExitCode()), nil
}

// environ returns the run environment as sorted key/value pairs.
func (e *Engine) environ(inv scripthost.Invocation) [][2]string {
	env := make(map[string]string, len(e.cfg.Env)+len(inv.Env)+3)
	for k, v := range e.cfg.Env {
		env[k] = v
	}
	if inv.ModulePath != "" {
		env[e.cfg.ModulePathEnv] = inv.ModulePath
	}
	if e.cfg.Cache != "" {
		env["TMPDIR"] = e.cfg.Cache
	}
	if e.cfg.Root != "" {
		env["HOME"] = e.cfg.Root
	}
	for k, v := range inv.Env {
		env[k] = v
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][2]string, len(keys))
	for i, k := range keys {
		out[i] = [2]string{k, env[k]}
	}
	return out
}

// compile returns the compiled module for path, compiling it on first use.
func (e *Engine) compile(ctx context.Context, path string) (wazero.CompiledModule, error) {
	if !filepath.IsAbs(path) && e.cfg.Root != "" {
		path = filepath.Join(e.cfg.Root, path)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.compiled[path]; ok {
		return c, nil
	}

	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseBoundary, errors.KindNotFound).
			Path(path).
			Detail("read interpreter").
			Cause(err).
			Build()
	}
	c, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.New(errors.PhaseBoundary, errors.KindInvalidInput).
			Path(path).
			Detail("compile interpreter").
			Cause(err).
			Build()
	}
	e.compiled[path] = c
	e.log.Debug("interpreter compiled", zap.String("path", path))
	return c, nil
}

// Close releases the wazero runtime and every compiled module.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
