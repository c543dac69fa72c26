package runtime

import (
	"context"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	scripthost "github.com/wippyai/script-host"
	"github.com/wippyai/script-host/assets"
	"github.com/wippyai/script-host/bridge"
	"github.com/wippyai/script-host/config"
	"github.com/wippyai/script-host/deploy"
	"github.com/wippyai/script-host/engine"
	"github.com/wippyai/script-host/errors"
	"github.com/wippyai/script-host/gate"
	"github.com/wippyai/script-host/lifecycle"
	"github.com/wippyai/script-host/metrics"
	"github.com/wippyai/script-host/store"
	"github.com/wippyai/script-host/supervisor"
)

// Config configures a Runtime. Only Settings is required; every other
// field replaces the component New would otherwise build from Settings.
type Config struct {
	Settings config.Config

	// Bundle defaults to the directory at Settings.BundlePath().
	Bundle *assets.Bundle
	// Store defaults to the backend named in Settings.Store.
	Store store.Store

	// Boundary defaults to a wazero engine running Settings.Interpreter.
	// A custom Boundary must come with the Transport it talks through.
	Boundary  scripthost.Boundary
	Transport bridge.Transport

	// Looper defaults to a Looper owned and closed by the Runtime.
	Looper scripthost.Looper

	Notifier    supervisor.Notifier
	Permissions supervisor.Permissions

	// Arch overrides the architecture tag used to pick the overlay.
	Arch string

	Logger  *zap.Logger
	Metrics metrics.Collector
}

// Runtime is the host context object.
type Runtime struct {
	settings config.Config
	layout   deploy.Layout
	arch     string
	log      *zap.Logger

	deployer  *deploy.Manager
	sup       *supervisor.Supervisor
	service   *supervisor.Service
	bridge    *bridge.Bridge
	lifecycle *lifecycle.Adapter
	metrics   metrics.Collector

	looper     scripthost.Looper
	ownLooper  *Looper
	engine     *engine.Engine
	closeStore func() error
	cancel     context.CancelFunc

	closeOnce sync.Once
}

// New attaches a Runtime to the root named in cfg.Settings and starts
// deploying the bundle when the stored version differs from it.
func New(ctx context.Context, cfg Config) (_ *Runtime, err error) {
	settings := cfg.Settings
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(settings.Root)
	if err != nil {
		return nil, errors.IO(errors.PhaseConfig, "resolve root", err)
	}
	settings.Root = root

	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	r := &Runtime{
		settings:   settings,
		layout:     deploy.NewLayout(root),
		arch:       cfg.Arch,
		log:        log,
		metrics:    metrics.OrNoop(cfg.Metrics),
		looper:     cfg.Looper,
		closeStore: func() error { return nil },
	}
	if r.arch == "" {
		r.arch = assets.Architecture()
	}
	defer func() {
		if err != nil {
			r.release(context.WithoutCancel(ctx))
		}
	}()

	if r.looper == nil {
		r.ownLooper = NewLooper()
		r.looper = r.ownLooper
	}

	bundle := cfg.Bundle
	if bundle == nil {
		if bundle, err = assets.FromDir(settings.BundlePath()); err != nil {
			return nil, err
		}
	}
	if settings.BundleVersion > 0 {
		bundle = assets.FromFS(bundle.FS, settings.BundleVersion)
	}

	st := cfg.Store
	if st == nil {
		var closeStore func() error
		if st, closeStore, err = settings.OpenStore(); err != nil {
			return nil, err
		}
		r.closeStore = closeStore
	}

	boundary, transport := cfg.Boundary, cfg.Transport
	if boundary == nil {
		r.engine, err = engine.New(ctx, engine.Config{
			Interpreter:   settings.InterpreterPath(),
			Root:          root,
			Cache:         r.layout.Cache,
			ModulePathEnv: settings.ModulePathEnv,
			Logger:        log.Named("engine"),
		})
		if err != nil {
			return nil, err
		}
		boundary, transport = r.engine, r.engine.Transport()
	}
	if transport == nil {
		return nil, errors.NotInitialized(errors.PhaseBoundary, "transport")
	}

	r.bridge = bridge.New(
		bridge.WithTransport(transport),
		bridge.WithLogger(log.Named("bridge")),
		bridge.WithMetrics(r.metrics))
	r.lifecycle = lifecycle.New(r.bridge, log.Named("lifecycle"))
	transport.SetHandler(r.receive)

	r.deployer, err = deploy.New(deploy.Config{
		Layout:  r.layout,
		Bundle:  bundle,
		Store:   st,
		Arch:    r.arch,
		Logger:  log.Named("deploy"),
		Metrics: r.metrics,
	})
	if err != nil {
		return nil, err
	}

	r.sup, err = supervisor.New(supervisor.Config{
		Boundary:    boundary,
		Looper:      r.looper,
		Workspace:   r.layout.Workspace,
		ModulePath:  r.layout.ModulePath(),
		Interpreter: settings.InterpreterName,
		Env:         settings.Env,
		Logger:      log.Named("supervisor"),
		Metrics:     r.metrics,
		OnStateChange: func(_, to supervisor.State) {
			if to == supervisor.Exited {
				r.lifecycle.Reset()
			}
		},
	})
	if err != nil {
		return nil, err
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = supervisor.LogNotifier{Logger: log.Named("service")}
	}
	perms := cfg.Permissions
	if perms == nil {
		perms = supervisor.NewStaticPermissions(settings.Service.Notifications)
	}
	r.service = supervisor.NewService(r.sup, notifier, perms)

	deployCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	g := r.deployer.Start(deployCtx,
		gate.WithLogger(log.Named("gate")),
		gate.WithInterruptHandler(r.bridge.ReportError))
	r.sup.Track(g)

	log.Info("runtime attached",
		zap.String("root", root),
		zap.String("arch", r.arch),
		zap.Int64("bundle_version", bundle.Version),
		zap.Bool("deploying", !g.IsOpen()))
	return r, nil
}

// receive handles every message arriving from the runtime. System traffic
// is consumed here; the rest is dispatched on the Looper.
func (r *Runtime) receive(channel string, payload []byte) {
	if channel == bridge.SystemChannel {
		r.metrics.MessageRelayed(channel, metrics.Inbound)
		env, _ := bridge.Decode(channel, payload)
		msg, _ := env.Message.(string)
		r.lifecycle.HandleSystemMessage(msg)
		r.sup.HandleSystemMessage(msg)
		return
	}
	r.looper.Post(func() {
		r.bridge.Deliver(channel, payload)
	})
}

// StartWithScript runs an inline script.
func (r *Runtime) StartWithScript(ctx context.Context, script string, opts supervisor.Options) (*supervisor.Handle, error) {
	return r.sup.StartWithScript(ctx, script, r.options(opts))
}

// StartWithEntryFile runs file from the workspace.
func (r *Runtime) StartWithEntryFile(ctx context.Context, file string, opts supervisor.Options) (*supervisor.Handle, error) {
	return r.sup.StartWithEntryFile(ctx, file, r.options(opts))
}

// StartAsService runs file as a long-lived service. Its notification uses
// the configured title and content.
func (r *Runtime) StartAsService(ctx context.Context, file string, opts supervisor.Options) (*supervisor.Handle, error) {
	return r.service.Start(ctx, file, supervisor.ServiceOptions{
		Title:   r.settings.Service.Title,
		Content: r.settings.Service.Content,
		Options: r.options(opts),
	})
}

// StopService asks a running service to stop and returns immediately.
func (r *Runtime) StopService() {
	r.service.Stop()
}

func (r *Runtime) options(opts supervisor.Options) supervisor.Options {
	if opts.RedirectOutput == nil {
		opts.RedirectOutput = supervisor.Redirect(r.settings.RedirectOutput)
	}
	return opts
}

// SendMessage writes message to channel on the runtime side.
func (r *Runtime) SendMessage(channel string, message any) error {
	return r.bridge.Send(channel, message)
}

// WorkspacePath returns the directory entry files are resolved against.
func (r *Runtime) WorkspacePath() string {
	return r.layout.Workspace
}

// ArchitectureTag returns the tag naming the native overlay in use.
func (r *Runtime) ArchitectureTag() string {
	return r.arch
}

// Bridge returns the host side of the channel bridge.
func (r *Runtime) Bridge() *bridge.Bridge {
	return r.bridge
}

// Pause tells a ready runtime that the host went to the background.
func (r *Runtime) Pause() bool {
	return r.lifecycle.Pause()
}

// Resume tells a ready runtime that the host returned to the foreground.
func (r *Runtime) Resume() bool {
	return r.lifecycle.Resume()
}

// State returns the supervisor state.
func (r *Runtime) State() supervisor.State {
	return r.sup.State()
}

// Current returns the handle of the latest accepted start.
func (r *Runtime) Current() *supervisor.Handle {
	return r.sup.Current()
}

// Close stops any service, cancels an unfinished deployment and releases
// the engine, store and owned Looper. A runtime still executing is asked
// to stop but not waited for.
func (r *Runtime) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		r.service.Stop()
		err = r.release(ctx)
		r.log.Info("runtime detached", zap.Error(err))
	})
	return err
}

func (r *Runtime) release(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	var err error
	if r.engine != nil {
		err = multierr.Append(err, r.engine.Close(ctx))
	}
	err = multierr.Append(err, r.closeStore())
	if r.ownLooper != nil {
		r.ownLooper.Close()
	}
	return err
}
