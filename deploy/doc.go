// Package deploy keeps the runtime's writable workspace in step with the
// bundled assets.
//
// # Layout
//
//	<root>/workspace         runtime working tree, replaced on every deployment
//	<root>/builtin-modules   support libraries, replaced the same way
//	<root>/trash             superseded trees awaiting removal
//	<root>/cache             scratch space exported to the runtime
//
// # Deployment Pass
//
// A pass runs only when the stored bundle version differs from the
// bundle's. It never deletes live files: the old workspace is renamed into
// the trash first, and if that rename fails the pass stops with the
// workspace untouched. Files are then copied from the manifest when the
// bundle carries one, or by walking workspace/ otherwise. The platform
// overlay is merged on top and builtin-modules is replaced. The version is
// stored last, so an interrupted pass is repeated in full on the next start.
//
// A single file that cannot be copied is logged and skipped; the pass
// still completes.
//
// # Starting
//
// Start returns a gate.Gate. It is already open when nothing needs
// deploying; otherwise one background goroutine empties the trash, runs
// the pass, opens the gate and empties the trash again. Concurrent calls
// share the in-flight gate.
package deploy
