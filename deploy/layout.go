package deploy

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/script-host/assets"
	"github.com/wippyai/script-host/errors"
)

// Layout names the directories a deployment manages.
type Layout struct {
	Root           string
	Workspace      string
	BuiltinModules string
	Trash          string
	Cache          string
}

// NewLayout derives the standard layout under root.
func NewLayout(root string) Layout {
	return Layout{
		Root:           root,
		Workspace:      filepath.Join(root, assets.WorkspaceDir),
		BuiltinModules: filepath.Join(root, assets.BuiltinModulesDir),
		Trash:          filepath.Join(root, "trash"),
		Cache:          filepath.Join(root, "cache"),
	}
}

// Ensure creates the root, trash and cache directories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Root, l.Trash, l.Cache} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.IO(errors.PhaseDeploy, "create "+dir, err)
		}
	}
	return nil
}

// ModulePath is the module search path handed to the runtime.
func (l Layout) ModulePath() string {
	return strings.Join([]string{l.Workspace, l.BuiltinModules}, string(os.PathListSeparator))
}

// Resolve maps a bundle-relative slash path onto the root.
func (l Layout) Resolve(bundlePath string) string {
	return filepath.Join(l.Root, filepath.FromSlash(bundlePath))
}
