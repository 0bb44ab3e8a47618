package config

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ringwire/streamserver/errors"
)

// Store is the teacher's SafeConfig pattern (RWMutex-guarded snapshot swap)
// adapted to poll the source file's mtime rather than a NATS KV watch: the
// supervisor tick calls a reread hook once per tick, and the original
// ringserver only ever rereads its config file when its mtime has advanced.
// Validate-before-swap, keep the old snapshot on error: log and keep
// running with the previous snapshot on a reread failure.
type Store struct {
	mu       sync.RWMutex
	cfg      *Config
	path     string
	loader   *Loader
	modTime  time.Time
	logger   *slog.Logger
}

// NewStore wraps an already-loaded Config for in-memory use (tests, or a
// process configured entirely through the environment with no file to
// poll).
func NewStore(cfg *Config, logger *slog.Logger) *Store {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{cfg: cfg, logger: logger}
}

// NewFileStore loads path once via loader and returns a Store that polls
// path's mtime on each Reload call.
func NewFileStore(path string, loader *Loader, logger *slog.Logger) (*Store, error) {
	if loader == nil {
		loader = NewLoader()
	}
	cfg, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	return NewFileStoreFromConfig(path, loader, cfg, logger), nil
}

// NewFileStoreFromConfig wraps an already-loaded cfg (e.g. one that has had
// command-line Overrides layered on top) in a Store that polls path's
// mtime on each Reload call. A subsequent Reload still re-reads from
// file+environment only — command-line overrides are a one-time layer
// applied at startup, matching the "keep endpoint set immutable after
// startup unless a deliberate decision is taken" caution extended to the
// whole snapshot: the operator invoking a fresh process is the mechanism
// for changing a command-line override, not a live reload.
func NewFileStoreFromConfig(path string, loader *Loader, cfg *Config, logger *slog.Logger) *Store {
	s := NewStore(cfg, logger)
	s.path = path
	s.loader = loader
	if info, statErr := os.Stat(path); statErr == nil {
		s.modTime = info.ModTime()
	}
	return s
}

// Get returns a deep copy of the current snapshot.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Update validates and swaps in cfg directly, without reading the file.
func (s *Store) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}

// Reload matches supervisor.Supervisor.ConfigReload's signature: it is
// polled once per tick, and only does file I/O when the source file's
// mtime has advanced since the last successful read. Returns changed=true
// only when a new snapshot was actually swapped in.
func (s *Store) Reload() (changed bool, err error) {
	if s.path == "" {
		return false, nil
	}

	info, statErr := os.Stat(s.path)
	if statErr != nil {
		return false, errors.WrapTransient(statErr, "config", "Reload", "stat config file")
	}

	s.mu.RLock()
	unchanged := !info.ModTime().After(s.modTime)
	s.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	cfg, loadErr := s.loader.Load(s.path)
	if loadErr != nil {
		s.logger.Warn("config reread failed, keeping previous snapshot", "path", s.path, "error", loadErr)
		return false, loadErr
	}

	s.mu.Lock()
	s.cfg = cfg
	s.modTime = info.ModTime()
	s.mu.Unlock()

	s.logger.Info("config reloaded", "path", s.path)
	return true, nil
}
