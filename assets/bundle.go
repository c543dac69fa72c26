package assets

import (
	"bufio"
	goerrors "errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/wippyai/script-host/errors"
)

// Bundle directory and manifest names.
const (
	WorkspaceDir      = "workspace"
	BuiltinModulesDir = "builtin-modules"
	OverlayPrefix     = "native-assets-"
	DirList           = "dir.list"
	FileList          = "file.list"
)

// Bundle is a read-only asset tree with its version marker.
type Bundle struct {
	FS fs.FS
	// Version is a Unix millisecond timestamp identifying this bundle.
	Version int64
}

// FromFS wraps fsys with an explicit version marker.
func FromFS(fsys fs.FS, version int64) *Bundle {
	return &Bundle{FS: fsys, Version: version}
}

// FromDir opens dir as a bundle. The version is the newest modification
// time in the tree, so any rebuilt asset bumps it.
func FromDir(dir string) (*Bundle, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.IO(errors.PhaseAssets, "open bundle "+dir, err)
	}
	if !info.IsDir() {
		return nil, errors.InvalidInput(errors.PhaseAssets, dir+" is not a directory")
	}

	fsys := os.DirFS(dir)
	version, err := newestModTime(fsys)
	if err != nil {
		return nil, err
	}
	return &Bundle{FS: fsys, Version: version}, nil
}

func newestModTime(fsys fs.FS) (int64, error) {
	var newest int64
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if ms := info.ModTime().UnixMilli(); ms > newest {
			newest = ms
		}
		return nil
	})
	if err != nil {
		return 0, errors.IO(errors.PhaseAssets, "scan bundle", err)
	}
	return newest, nil
}

// ReadList reads a manifest file. A missing manifest yields an empty list.
// Blank lines and entries that are not valid fs paths are dropped.
func (b *Bundle) ReadList(name string) ([]string, error) {
	f, err := b.FS.Open(name)
	if err != nil {
		if goerrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.IO(errors.PhaseAssets, "open "+name, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimSuffix(line, "/")
		if line == "" || !fs.ValidPath(line) {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.IO(errors.PhaseAssets, "read "+name, err)
	}
	return lines, nil
}

// Manifest returns the directory and file lists under dir ("." for the
// bundle root). ok is false unless both lists are present and non-empty.
func (b *Bundle) Manifest(dir string) (dirs, files []string, ok bool, err error) {
	dirs, err = b.ReadList(path.Join(dir, DirList))
	if err != nil {
		return nil, nil, false, err
	}
	files, err = b.ReadList(path.Join(dir, FileList))
	if err != nil {
		return nil, nil, false, err
	}
	return dirs, files, len(dirs) > 0 && len(files) > 0, nil
}

// Exists reports whether name exists in the bundle.
func (b *Bundle) Exists(name string) bool {
	_, err := fs.Stat(b.FS, name)
	return err == nil
}

// OverlayDir returns the bundle directory holding the overlay for arch.
func OverlayDir(arch string) string {
	return OverlayPrefix + arch
}
