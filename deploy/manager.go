package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/script-host/assets"
	"github.com/wippyai/script-host/errors"
	"github.com/wippyai/script-host/gate"
	"github.com/wippyai/script-host/metrics"
	"github.com/wippyai/script-host/store"
)

// Config configures a Manager.
type Config struct {
	Layout Layout
	Bundle *assets.Bundle
	Store  store.Store
	// Arch selects the native overlay. Defaults to assets.Architecture().
	Arch    string
	Logger  *zap.Logger
	Metrics metrics.Collector
}

// Report summarizes a deployment pass.
type Report struct {
	Version      int64
	Copied       int
	Failed       int
	OverlayFiles int
	Manifest     bool
	Duration     time.Duration
}

// Manager runs deployment passes for one layout.
type Manager struct {
	layout  Layout
	bundle  *assets.Bundle
	store   store.Store
	arch    string
	log     *zap.Logger
	metrics metrics.Collector

	mu       sync.Mutex
	inflight *gate.Gate
}

// New creates a Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Bundle == nil || cfg.Bundle.FS == nil {
		return nil, errors.NotInitialized(errors.PhaseDeploy, "bundle")
	}
	if cfg.Store == nil {
		return nil, errors.NotInitialized(errors.PhaseDeploy, "store")
	}
	if cfg.Layout.Root == "" {
		return nil, errors.InvalidInput(errors.PhaseDeploy, "layout root is empty")
	}

	m := &Manager{
		layout:  cfg.Layout,
		bundle:  cfg.Bundle,
		store:   cfg.Store,
		arch:    cfg.Arch,
		log:     cfg.Logger,
		metrics: metrics.OrNoop(cfg.Metrics),
	}
	if m.arch == "" {
		m.arch = assets.Architecture()
	}
	if m.log == nil {
		m.log = Logger()
	}
	return m, nil
}

// Layout returns the managed layout.
func (m *Manager) Layout() Layout {
	return m.layout
}

// NeedsSync reports whether the stored version differs from the bundle's.
// A missing marker counts as version 0.
func (m *Manager) NeedsSync() (bool, error) {
	stored, _, err := m.store.GetInt64(store.LastUpdateKey)
	if err != nil {
		return true, err
	}
	return stored != m.bundle.Version, nil
}

// Start returns the gate guarding runtime starts, launching a deployment
// pass in the background when one is needed. While a pass is in flight
// every caller receives the same gate.
func (m *Manager) Start(ctx context.Context, opts ...gate.Option) *gate.Gate {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inflight != nil && !m.inflight.IsOpen() {
		return m.inflight
	}

	needed, err := m.NeedsSync()
	if err != nil {
		m.log.Warn("cannot read deployed version, redeploying", zap.Error(err))
	}
	if !needed {
		return gate.New(true, opts...)
	}

	g := gate.New(false, opts...)
	m.inflight = g
	go m.run(ctx, g)
	return g
}

func (m *Manager) run(ctx context.Context, g *gate.Gate) {
	defer g.Open()

	m.EmptyTrash()
	report, err := m.Synchronize(ctx)
	if err != nil {
		m.log.Error("deployment failed", zap.Error(err))
	} else {
		m.log.Info("deployment completed",
			zap.Int64("version", report.Version),
			zap.Int("copied", report.Copied),
			zap.Int("failed", report.Failed),
			zap.Int("overlay", report.OverlayFiles),
			zap.Bool("manifest", report.Manifest),
			zap.Duration("duration", report.Duration))
	}
	g.Open()
	m.EmptyTrash()
}

// Synchronize replaces the workspace and builtin modules with the bundle's
// contents and stores the bundle version.
func (m *Manager) Synchronize(ctx context.Context) (report Report, err error) {
	start := time.Now()
	report.Version = m.bundle.Version
	defer func() {
		report.Duration = time.Since(start)
		m.metrics.DeploymentCompleted(report.Copied, report.Failed, report.Duration, err)
	}()

	if err := m.layout.Ensure(); err != nil {
		return report, err
	}
	if err := m.moveToTrash(m.layout.Workspace); err != nil {
		return report, err
	}
	if err := os.MkdirAll(m.layout.Workspace, 0o755); err != nil {
		return report, errors.IO(errors.PhaseDeploy, "create workspace", err)
	}

	c := &copier{bundle: m.bundle, log: m.log}

	dirs, files, ok, err := m.bundle.Manifest(".")
	if err != nil {
		m.log.Warn("manifest unreadable, enumerating bundle", zap.Error(err))
	}
	if ok {
		report.Manifest = true
		m.log.Debug("copying workspace from manifest", zap.Int("files", len(files)))
		if err := c.fromManifest(ctx, m.layout.Root, "", dirs, files, workspaceOnly); err != nil {
			return report.merge(c), err
		}
	} else {
		m.log.Debug("copying workspace by enumeration")
		if err := c.tree(ctx, assets.WorkspaceDir, m.layout.Workspace); err != nil {
			return report.merge(c), err
		}
	}

	overlay := &copier{bundle: m.bundle, log: m.log}
	if err := m.deployOverlay(ctx, overlay); err != nil {
		return report.merge(c).mergeOverlay(overlay), err
	}

	if err := m.replaceBuiltinModules(ctx, c); err != nil {
		return report.merge(c).mergeOverlay(overlay), err
	}

	report = report.merge(c).mergeOverlay(overlay)

	if err := m.store.SetInt64(store.LastUpdateKey, m.bundle.Version); err != nil {
		return report, err
	}
	return report, nil
}

func (m *Manager) deployOverlay(ctx context.Context, c *copier) error {
	dir := assets.OverlayDir(m.arch)
	dirs, files, _, err := m.bundle.Manifest(dir)
	if err != nil {
		m.log.Warn("overlay manifest unreadable", zap.String("overlay", dir), zap.Error(err))
	}

	switch {
	case len(files) > 0:
		m.log.Debug("copying overlay from manifest", zap.String("overlay", dir))
		return c.fromManifest(ctx, m.layout.Workspace, dir, dirs, files, anyPath)
	case m.bundle.Exists(dir):
		m.log.Debug("copying overlay by enumeration", zap.String("overlay", dir))
		return c.tree(ctx, dir, m.layout.Workspace)
	default:
		m.log.Debug("no overlay for platform", zap.String("arch", m.arch))
		return nil
	}
}

func (m *Manager) replaceBuiltinModules(ctx context.Context, c *copier) error {
	if err := m.moveToTrash(m.layout.BuiltinModules); err != nil {
		m.log.Warn("cannot move builtin modules to trash, removing in place", zap.Error(err))
		if err := os.RemoveAll(m.layout.BuiltinModules); err != nil {
			return errors.IO(errors.PhaseDeploy, "remove builtin modules", err)
		}
	}
	if !m.bundle.Exists(assets.BuiltinModulesDir) {
		return nil
	}
	return c.tree(ctx, assets.BuiltinModulesDir, m.layout.BuiltinModules)
}

// moveToTrash renames dir into the trash under a unique name.
// A missing dir is not an error.
func (m *Manager) moveToTrash(dir string) error {
	if _, err := os.Lstat(dir); os.IsNotExist(err) {
		return nil
	}
	dst := filepath.Join(m.layout.Trash, fmt.Sprintf("%s-%d", filepath.Base(dir), time.Now().UnixNano()))
	if err := os.Rename(dir, dst); err != nil {
		return errors.New(errors.PhaseDeploy, errors.KindIO).
			Path(dir).
			Detail("move to trash").
			Cause(err).
			Build()
	}
	m.log.Debug("moved to trash", zap.String("from", dir), zap.String("to", dst))
	return nil
}

func (r Report) merge(c *copier) Report {
	r.Copied += c.copied
	r.Failed += c.failed
	return r
}

func (r Report) mergeOverlay(c *copier) Report {
	r.OverlayFiles += c.copied
	r.Failed += c.failed
	return r
}
