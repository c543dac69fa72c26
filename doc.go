// Package scripthost embeds a long-lived script runtime inside a Go host.
//
// The library keeps the runtime's writable working tree synchronized with an
// immutable bundled asset tree, gates runtime startup behind asynchronous,
// crash-tolerant one-time setup, and relays structured messages between the
// host and the runtime over named channels.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	scripthost/          Root package with the Boundary and Looper contracts
//	├── runtime/         Host-facing context object tying everything together
//	├── assets/          Read-only bundle access, manifests and platform tag
//	├── store/           Persisted key-value state (bundle version marker)
//	├── deploy/          Workspace synchronization with trash-based recovery
//	├── gate/            One-shot readiness latch guarding runtime start
//	├── bridge/          Channel multiplexing message router
//	├── supervisor/      Single-instance runtime lifecycle and service variant
//	├── lifecycle/       Foreground/background notices over the system channel
//	├── engine/          wazero-backed native boundary and bridge transport
//	├── metrics/         Prometheus collectors
//	├── config/          TOML configuration with validation
//	└── errors/          Structured error types
//
// # Quick Start
//
//	cfg, err := config.Load("host.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rt, err := runtime.New(ctx, runtime.Config{Settings: cfg})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	rt.Bridge().On("pong", func(msg any) {
//	    fmt.Println("runtime says", msg)
//	})
//
//	h, err := rt.StartWithEntryFile(ctx, "main.js", supervisor.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rt.SendMessage("_EVENTS_", bridge.Envelope{Tag: "ping", Message: "hi"})
//	code, err := h.Wait(ctx)
//
// # Startup Ordering
//
// Deployment runs once per bundle version change on its own goroutine. Start
// requests issued before it finishes are accepted immediately and block on
// the init gate; none of them observes a partially populated workspace.
//
// # Thread Safety
//
// Runtime, Bridge and Supervisor are safe for concurrent use. Callbacks that
// reach host-visible state (exit callbacks, bridged messages) are posted on
// the configured Looper, never run on the worker that produced them.
package scripthost
