package main

import (
	"context"
	goerrors "errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/script-host/bridge"
	"github.com/wippyai/script-host/config"
	"github.com/wippyai/script-host/deploy"
	"github.com/wippyai/script-host/engine"
	"github.com/wippyai/script-host/errors"
	"github.com/wippyai/script-host/metrics"
	"github.com/wippyai/script-host/runtime"
	"github.com/wippyai/script-host/supervisor"
)

type options struct {
	script      string
	entry       string
	service     bool
	interactive bool
}

func main() {
	var (
		configPath  = flag.String("config", "", "TOML configuration file")
		root        = flag.String("root", "", "Data root (overrides config)")
		bundle      = flag.String("bundle", "", "Bundle directory (overrides config)")
		interpreter = flag.String("interpreter", "", "Interpreter wasm module (overrides config)")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
		metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics on host:port")
		quiet       = flag.Bool("quiet", false, "Discard runtime stdout/stderr")
		opts        options
	)
	flag.StringVar(&opts.script, "e", "", "Inline script to run")
	flag.StringVar(&opts.entry, "entry", "", "Entry file, relative to the workspace")
	flag.BoolVar(&opts.service, "service", false, "Run the entry file as a service")
	flag.BoolVar(&opts.interactive, "i", false, "Interactive console")
	flag.Parse()

	if (opts.script == "") == (opts.entry == "") {
		fmt.Fprintln(os.Stderr, "Usage: run [-config host.toml] -entry main.js [-service] [-i]")
		fmt.Fprintln(os.Stderr, "       run [-config host.toml] -e '<script>' [-i]")
		os.Exit(2)
	}
	if opts.service && opts.entry == "" {
		fmt.Fprintln(os.Stderr, "Error: -service needs -entry")
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	override(&cfg.Root, *root)
	override(&cfg.Bundle, *bundle)
	override(&cfg.Interpreter, *interpreter)
	override(&cfg.Log.Level, *logLevel)
	override(&cfg.Metrics.Addr, *metricsAddr)
	if *quiet {
		cfg.RedirectOutput = false
	}

	if opts.interactive && !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "stdout is not a terminal, running without the console")
		opts.interactive = false
	}

	code, err := run(cfg, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func run(cfg config.Config, opts options) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 1, err
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return 1, errors.IO(errors.PhaseConfig, "create root", err)
	}
	if opts.interactive && cfg.Log.Output == "" {
		cfg.Log.Output = cfg.Resolve("scripthost.log")
	}

	log, err := cfg.Log.BuildLogger()
	if err != nil {
		return 1, err
	}
	defer log.Sync()
	installLoggers(log)

	collector := metrics.Noop
	if cfg.Metrics.Addr != "" {
		prom := metrics.NewPrometheus(cfg.Metrics.Namespace)
		collector = prom
		stop := serveMetrics(cfg.Metrics.Addr, prom.Handler(), log)
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.interactive {
		return runInteractive(ctx, cfg, opts, log, collector)
	}

	rt, err := runtime.New(ctx, runtime.Config{
		Settings: cfg,
		Logger:   log,
		Metrics:  collector,
	})
	if err != nil {
		return 1, err
	}
	defer rt.Close(context.Background())

	h, err := start(ctx, rt, opts, supervisor.Options{})
	if err != nil {
		return 1, err
	}
	if opts.service {
		go func() {
			<-ctx.Done()
			rt.StopService()
		}()
	}

	return exitStatus(h.Wait(context.Background()))
}

// installLoggers hands log to the packages that log outside a Runtime.
func installLoggers(log *zap.Logger) {
	bridge.SetLogger(log.Named("bridge"))
	deploy.SetLogger(log.Named("deploy"))
	engine.SetLogger(log.Named("engine"))
	runtime.SetLogger(log.Named("runtime"))
	supervisor.SetLogger(log.Named("supervisor"))
}

// exitStatus maps the result of Handle.Wait to the process exit code. A
// nonzero exit is reported through the code alone.
func exitStatus(code int, err error) (int, error) {
	var exitErr *errors.ExitError
	if goerrors.As(err, &exitErr) {
		err = nil
	}
	if code < 0 {
		code = 1
	}
	return code, err
}

func start(ctx context.Context, rt *runtime.Runtime, opts options, so supervisor.Options) (*supervisor.Handle, error) {
	switch {
	case opts.script != "":
		return rt.StartWithScript(ctx, opts.script, so)
	case opts.service:
		return rt.StartAsService(ctx, opts.entry, so)
	default:
		return rt.StartWithEntryFile(ctx, opts.entry, so)
	}
}

func serveMetrics(addr string, h http.Handler, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
