package deploy

import (
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/script-host/errors"
)

// EmptyTrash deletes everything in the trash directory. Entries that
// cannot be removed are logged and left behind; the sweep continues and
// the returned error combines every failure.
func (m *Manager) EmptyTrash() error {
	entries, err := os.ReadDir(m.layout.Trash)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.IO(errors.PhaseDeploy, "read trash", err)
	}

	var errs error
	for _, e := range entries {
		errs = multierr.Append(errs, removeTree(filepath.Join(m.layout.Trash, e.Name())))
	}

	failures := multierr.Errors(errs)
	for _, f := range failures {
		m.log.Warn("trash entry not removed", zap.Error(f))
	}
	m.metrics.TrashSwept(len(failures))
	return errs
}

// removeTree removes p depth-first, continuing past failures.
func removeTree(p string) error {
	info, err := os.Lstat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.IO(errors.PhaseDeploy, "stat "+p, err)
	}

	var errs error
	if info.IsDir() {
		entries, err := os.ReadDir(p)
		if err != nil {
			errs = multierr.Append(errs, errors.IO(errors.PhaseDeploy, "read "+p, err))
		}
		for _, e := range entries {
			errs = multierr.Append(errs, removeTree(filepath.Join(p, e.Name())))
		}
	}

	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		errs = multierr.Append(errs, errors.IO(errors.PhaseDeploy, "remove "+p, err))
	}
	return errs
}
