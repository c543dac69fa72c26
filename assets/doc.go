// Package assets provides read-only access to the bundle shipped with the host.
//
// A bundle is any fs.FS laid out as:
//
//	workspace/                 runtime working tree
//	builtin-modules/           fixed support libraries
//	native-assets-<arch>/      optional per-platform overlay, merged into workspace
//	dir.list, file.list        optional manifests (one bundle-relative path per line)
//
// An overlay directory may carry its own dir.list and file.list; their
// entries are relative to the overlay directory.
//
// Bundles are versioned by a monotonic timestamp. FromDir derives it from the
// newest modification time found in the tree; FromFS takes it explicitly,
// which suits embed.FS where modification times are not recorded:
//
//	//go:embed bundle
//	var bundleFS embed.FS
//
//	sub, _ := fs.Sub(bundleFS, "bundle")
//	b := assets.FromFS(sub, buildStamp)
package assets
