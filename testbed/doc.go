// Package testbed holds end-to-end tests that run the host against real
// bundles, stores and interpreter modules.
package testbed
