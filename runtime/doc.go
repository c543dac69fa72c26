// Package runtime ties the host-side components into one context object.
//
// A Runtime owns the data layout, the deployment manager, the supervisor,
// the channel bridge and the lifecycle adapter for one host root. It is
// created once per host and closed when the host detaches:
//
//	rt, err := runtime.New(ctx, runtime.Config{Settings: cfg, Logger: log})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close(ctx)
//
//	rt.Bridge().On("pong", func(v any) { fmt.Println(v) })
//	h, err := rt.StartWithEntryFile(ctx, "main.js", supervisor.Options{})
//	...
//	rt.SendMessage(bridge.BroadcastChannel, map[string]any{"tag": "ping"})
//
// Starts issued while the bundle is still being deployed are accepted and
// run once deployment finishes. Messages from the runtime on the system
// channel are consumed by the lifecycle adapter; every other channel is
// dispatched through the bridge on the host Looper.
package runtime
