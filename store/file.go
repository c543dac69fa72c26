package store

import (
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/script-host/errors"
)

type fileStoreConfig struct {
	path     string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

func defaultFileStoreConfig() fileStoreConfig {
	return fileStoreConfig{
		path:     "prefs.yaml",
		dirPerm:  0o755,
		filePerm: 0o600,
	}
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*fileStoreConfig)

// WithPath sets the backing file.
func WithPath(path string) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.path = path
	}
}

// WithFilePermissions sets the mode of the backing file. Default is 0o600.
func WithFilePermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the mode of created parent directories.
func WithDirPermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.dirPerm = perm
	}
}

// FileStore keeps values in a flat YAML mapping.
// Writes replace the file through a temp file and rename.
type FileStore struct {
	config fileStoreConfig
	mu     sync.Mutex
}

// NewFileStore creates a FileStore with the given options.
func NewFileStore(opts ...FileStoreOption) *FileStore {
	cfg := defaultFileStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FileStore{config: cfg}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.config.path
}

func (s *FileStore) GetInt64(key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return 0, false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *FileStore) SetInt64(key string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) load() (map[string]int64, error) {
	data, err := os.ReadFile(s.config.path)
	if os.IsNotExist(err) {
		return map[string]int64{}, nil
	}
	if err != nil {
		return nil, errors.IO(errors.PhaseStore, "read "+s.config.path, err)
	}

	values := map[string]int64{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, errors.IO(errors.PhaseStore, "parse "+s.config.path, err)
	}
	return values, nil
}

func (s *FileStore) save(values map[string]int64) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return errors.IO(errors.PhaseStore, "marshal values", err)
	}

	dir := filepath.Dir(s.config.path)
	if err := os.MkdirAll(dir, s.config.dirPerm); err != nil {
		return errors.IO(errors.PhaseStore, "create "+dir, err)
	}

	tmp := s.config.path + ".tmp"
	if err := os.WriteFile(tmp, data, s.config.filePerm); err != nil {
		return errors.IO(errors.PhaseStore, "write "+tmp, err)
	}
	if err := os.Rename(tmp, s.config.path); err != nil {
		os.Remove(tmp)
		return errors.IO(errors.PhaseStore, "replace "+s.config.path, err)
	}
	return nil
}
