package deploy

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/script-host/assets"
	"github.com/wippyai/script-host/errors"
)

// pathFilter decides whether a manifest entry may be copied.
type pathFilter func(p string) bool

func workspaceOnly(p string) bool {
	return p == assets.WorkspaceDir || strings.HasPrefix(p, assets.WorkspaceDir+"/")
}

func anyPath(string) bool { return true }

// copier copies bundle entries to disk and tallies the outcome.
type copier struct {
	bundle *assets.Bundle
	log    *zap.Logger
	copied int
	failed int
}

// fromManifest creates dirs and copies files listed relative to srcDir
// into dstRoot.
func (c *copier) fromManifest(ctx context.Context, dstRoot, srcDir string, dirs, files []string, allow pathFilter) error {
	for _, d := range dirs {
		if !allow(d) {
			c.log.Debug("skipping manifest dir", zap.String("dir", d))
			continue
		}
		dst := filepath.Join(dstRoot, filepath.FromSlash(d))
		if err := os.MkdirAll(dst, 0o755); err != nil {
			c.fail(d, err)
		}
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return errors.Interrupted(errors.PhaseDeploy, "asset copy", err)
		}
		if !allow(f) {
			c.log.Debug("skipping manifest file", zap.String("file", f))
			continue
		}
		src := f
		if srcDir != "" {
			src = path.Join(srcDir, f)
		}
		c.file(src, filepath.Join(dstRoot, filepath.FromSlash(f)))
	}
	return nil
}

// tree copies the bundle directory srcDir to dstDir recursively.
func (c *copier) tree(ctx context.Context, srcDir, dstDir string) error {
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return errors.IO(errors.PhaseDeploy, "create "+dstDir, err)
	}
	if !c.bundle.Exists(srcDir) {
		c.log.Debug("bundle has no directory", zap.String("dir", srcDir))
		return nil
	}

	return fs.WalkDir(c.bundle.FS, srcDir, func(p string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return errors.Interrupted(errors.PhaseDeploy, "asset copy", cerr)
		}
		if err != nil {
			c.fail(p, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel := strings.TrimPrefix(strings.TrimPrefix(p, srcDir), "/")
		dst := filepath.Join(dstDir, filepath.FromSlash(rel))
		if d.IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				c.fail(p, err)
				return fs.SkipDir
			}
			return nil
		}
		c.file(p, dst)
		return nil
	})
}

func (c *copier) file(src, dst string) {
	if err := copyFile(c.bundle.FS, src, dst); err != nil {
		c.fail(src, err)
		return
	}
	c.copied++
}

func (c *copier) fail(p string, cause error) {
	c.failed++
	err := errors.DeploymentFailure(p, cause)
	c.log.Warn("asset not deployed", zap.String("path", p), zap.Error(err))
}

func copyFile(fsys fs.FS, src, dst string) error {
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.InvalidInput(errors.PhaseDeploy, src+" is a directory")
	}

	perm := info.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
