package supervisor

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	scripthost "github.com/wippyai/script-host"
	"github.com/wippyai/script-host/errors"
	"github.com/wippyai/script-host/gate"
	"github.com/wippyai/script-host/metrics"
)

// Options configures a single start.
type Options struct {
	// RedirectOutput mirrors runtime stdout/stderr to the host log.
	// Defaults to true when nil.
	RedirectOutput *bool
	// OnExit is posted on the supervisor's Looper after the runtime exits.
	OnExit func(code int, err error)
}

// Redirect returns a pointer to v for Options.RedirectOutput.
func Redirect(v bool) *bool { return &v }

func (o Options) redirect() bool {
	return o.RedirectOutput == nil || *o.RedirectOutput
}

// Request is a start waiting for the gate.
type Request struct {
	Args           []string
	ModulePath     string
	RedirectOutput bool
	OnExit         func(code int, err error)
}

// Config configures a Supervisor.
type Config struct {
	Boundary scripthost.Boundary
	// Looper receives exit callbacks. Defaults to a fresh goroutine per callback.
	Looper scripthost.Looper
	// Workspace is the directory entry files are resolved against.
	Workspace  string
	ModulePath string
	// Interpreter is argv[0]. Defaults to "node".
	Interpreter string
	Env         map[string]string
	Logger      *zap.Logger
	Metrics     metrics.Collector
	// OnStateChange observes every transition. It runs outside the lock.
	OnStateChange func(from, to State)
}

// Supervisor owns the single runtime slot.
type Supervisor struct {
	boundary    scripthost.Boundary
	looper      scripthost.Looper
	workspace   string
	modulePath  string
	interpreter string
	env         map[string]string
	log         *zap.Logger
	metrics     metrics.Collector
	observe     func(from, to State)

	mu      sync.Mutex
	state   State
	gate    *gate.Gate
	current *Handle
}

// New creates a Supervisor in the Idle state.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Boundary == nil {
		return nil, errors.NotInitialized(errors.PhaseSupervisor, "boundary")
	}
	s := &Supervisor{
		boundary:    cfg.Boundary,
		looper:      cfg.Looper,
		workspace:   cfg.Workspace,
		modulePath:  cfg.ModulePath,
		interpreter: cfg.Interpreter,
		env:         cfg.Env,
		log:         cfg.Logger,
		metrics:     metrics.OrNoop(cfg.Metrics),
		observe:     cfg.OnStateChange,
		gate:        gate.New(true),
	}
	if s.looper == nil {
		s.looper = scripthost.LooperFunc(func(fn func()) { go fn() })
	}
	if s.interpreter == "" {
		s.interpreter = "node"
	}
	if s.log == nil {
		s.log = Logger()
	}
	return s, nil
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the handle of the latest accepted start, or nil.
func (s *Supervisor) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Track makes later starts wait on g and follows its progress through the
// Deploying and Ready states.
func (s *Supervisor) Track(g *gate.Gate) {
	s.mu.Lock()
	s.gate = g
	from, moved := s.state, false
	if !g.IsOpen() && s.state == Idle {
		s.state, moved = Deploying, true
	} else if g.IsOpen() && s.state == Idle {
		s.state, moved = Ready, true
	}
	to := s.state
	s.mu.Unlock()

	if moved {
		s.transitioned(from, to)
	}
	if g.IsOpen() {
		return
	}

	go func() {
		<-g.Done()
		s.mu.Lock()
		if s.state != Deploying {
			s.mu.Unlock()
			return
		}
		s.state = Ready
		s.mu.Unlock()
		s.transitioned(Deploying, Ready)
	}()
}

// StartWithScript runs an inline script: argv is [interpreter, "-e", script].
func (s *Supervisor) StartWithScript(ctx context.Context, script string, opts Options) (*Handle, error) {
	return s.Start(ctx, s.request([]string{s.interpreter, "-e", script}, opts))
}

// StartWithEntryFile runs file, relative to the workspace.
func (s *Supervisor) StartWithEntryFile(ctx context.Context, file string, opts Options) (*Handle, error) {
	if file == "" {
		return nil, errors.InvalidInput(errors.PhaseSupervisor, "entry file is empty")
	}
	return s.Start(ctx, s.request([]string{s.interpreter, filepath.Join(s.workspace, file)}, opts))
}

func (s *Supervisor) request(args []string, opts Options) Request {
	return Request{
		Args:           args,
		ModulePath:     s.modulePath,
		RedirectOutput: opts.redirect(),
		OnExit:         opts.OnExit,
	}
}

// Start accepts req unless a runtime is already running. The runtime is
// launched on its own goroutine once the gate opens.
func (s *Supervisor) Start(ctx context.Context, req Request) (*Handle, error) {
	s.mu.Lock()
	if !s.state.canStart() {
		s.mu.Unlock()
		s.metrics.StartRejected(string(errors.KindAlreadyRunning))
		return nil, errors.AlreadyRunning()
	}
	from := s.state
	s.state = Running
	g := s.gate
	h := newHandle(req.Args)
	s.current = h
	s.mu.Unlock()

	s.transitioned(from, Running)
	s.log.Info("runtime start accepted",
		zap.String("id", h.id.String()),
		zap.Strings("args", req.Args),
		zap.Bool("gated", !g.IsOpen()))

	go s.run(ctx, g, h, req)
	return h, nil
}

func (s *Supervisor) run(ctx context.Context, g *gate.Gate, h *Handle, req Request) {
	if err := g.Wait(ctx); err != nil {
		s.log.Warn("gate wait failed", zap.Error(err))
	}

	inv := scripthost.Invocation{
		Args:           req.Args,
		ModulePath:     req.ModulePath,
		RedirectOutput: req.RedirectOutput,
		Env:            s.env,
	}

	code, err := s.invoke(ctx, inv)
	if err == nil {
		err = errors.ProcessExit(code)
	}

	elapsed := time.Since(h.started)
	s.metrics.RuntimeExited(code, elapsed)
	s.log.Info("runtime exited",
		zap.String("id", h.id.String()),
		zap.Int("code", code),
		zap.Duration("elapsed", elapsed),
		zap.Error(err))

	s.mu.Lock()
	s.state = Exited
	s.mu.Unlock()
	s.transitioned(Running, Exited)

	h.finish(code, err)
	if req.OnExit != nil {
		s.looper.Post(func() { req.OnExit(code, err) })
	}
}

func (s *Supervisor) invoke(ctx context.Context, inv scripthost.Invocation) (code int, err error) {
	defer func() {
		if r := recover(); r != nil {
			code = -1
			err = errors.New(errors.PhaseBoundary, errors.KindIO).
				Value(r).
				Detail("boundary panicked: %v", r).
				Build()
		}
	}()
	return s.boundary.Run(ctx, inv)
}

// HandleSystemMessage records control traffic from the runtime.
func (s *Supervisor) HandleSystemMessage(msg string) {
	s.log.Debug("system message", zap.String("message", msg), zap.Stringer("state", s.State()))
}

func (s *Supervisor) transitioned(from, to State) {
	s.metrics.StateTransition(from.String(), to.String())
	s.log.Debug("state transition", zap.Stringer("from", from), zap.Stringer("to", to))
	if s.observe != nil {
		s.observe(from, to)
	}
}
