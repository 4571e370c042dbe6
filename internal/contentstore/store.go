package contentstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"dialtone/internal/config"
	"dialtone/internal/logging"
)

// Persisted file names under the content directory. Other tooling reads these
// directly, so the names are a contract.
const (
	catalogBlobName = "catalog.json"
	timestampName   = "catalog.timestamp"
	syncTokenName   = "catalog.token"
)

// ErrUnavailable is returned by persistence operations when the store is
// running in memory-only degraded mode.
var ErrUnavailable = errors.New("content storage unavailable")

// Metadata tracks catalog sync bookkeeping. Only the sync timestamp and token
// are durable; the lightweight check time lives in memory and resets at boot.
type Metadata struct {
	LastSyncTimeMs         int64
	SyncToken              string
	LastLightweightCheckMs int64
}

// Store owns catalog bytes, sync metadata, and cached audio files.
type Store struct {
	backend   Backend
	dir       string
	audioDir  string
	available bool
	logger    *slog.Logger

	mu     sync.Mutex
	owners map[string]string // write-side address ownership, keyed by path
}

// Open initializes a disk-backed store rooted at the configured content
// directory. If the directory cannot be created the store degrades to an
// in-memory backend and Available reports false.
func Open(cfg *config.Config, logger *slog.Logger) *Store {
	logger = logging.NewComponentLogger(logger, "contentstore")

	s := &Store{
		backend:   DiskBackend{},
		dir:       cfg.Paths.ContentDir,
		audioDir:  cfg.Paths.AudioDir,
		available: true,
		logger:    logger,
		owners:    make(map[string]string),
	}

	if err := s.backend.MkdirAll(s.dir); err == nil {
		if err := s.backend.MkdirAll(s.audioDir); err != nil {
			s.degrade(err)
		}
	} else {
		s.degrade(err)
	}
	return s
}

// NewWithBackend builds a store over an explicit backend. Tests and the
// degraded path use this with MemBackend.
func NewWithBackend(backend Backend, contentDir, audioDir string, logger *slog.Logger) *Store {
	return &Store{
		backend:   backend,
		dir:       contentDir,
		audioDir:  audioDir,
		available: true,
		logger:    logging.NewComponentLogger(logger, "contentstore"),
		owners:    make(map[string]string),
	}
}

func (s *Store) degrade(err error) {
	s.logger.Error("content storage unavailable, continuing memory-only",
		logging.Error(err),
		logging.String(logging.FieldPath, s.dir))
	s.backend = NewMemBackend()
	s.available = false
}

// Available reports whether durable storage came up at init. It is checked
// once and cached; callers must tolerate memory-only operation.
func (s *Store) Available() bool { return s.available }

// AudioDir returns the cache directory for audio files.
func (s *Store) AudioDir() string { return s.audioDir }

// Exists reports whether a cached file is present.
func (s *Store) Exists(path string) bool {
	return s.backend.Exists(path)
}

// EnsureDir creates the directory and all intermediate segments. Idempotent.
func (s *Store) EnsureDir(path string) error {
	if err := s.backend.MkdirAll(path); err != nil {
		return fmt.Errorf("ensure directory %q: %w", path, err)
	}
	return nil
}

// Write persists bytes at path.
func (s *Store) Write(path string, data []byte) error {
	if err := s.backend.WriteFile(path, data); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

// Create opens a streaming writer for a cached file.
func (s *Store) Create(path string) (io.WriteCloser, error) {
	return s.backend.Create(path)
}

// Remove deletes a cached file, ignoring files that are already gone.
func (s *Store) Remove(path string) error {
	return s.backend.Remove(path)
}

// TargetFor returns the write-side path for a download of url. On a collision
// with an address already claimed by a different URL it appends a numeric
// suffix.
//
// Known quirk carried over from the original firmware: lookups always use the
// base address from AddressFor, so a collision-resolved file can never be
// found again by lookup. Preserved for compatibility with existing caches.
func (s *Store) TargetFor(url, extension string) string {
	base := s.AddressFor(url, extension)

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, claimed := s.owners[base]
	if !claimed || owner == url {
		s.owners[base] = url
		return base
	}

	stem, ext := splitExtension(base)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d.%s", stem, n, ext)
		if owner, claimed := s.owners[candidate]; claimed && owner != url {
			continue
		}
		s.owners[candidate] = url
		s.logger.Warn("cache address collision, writing under suffixed name",
			logging.String(logging.FieldURL, url),
			logging.String(logging.FieldPath, candidate))
		return candidate
	}
}

// PruneStaleVariants removes sibling cached files that share keepPath's base
// name under the known audio extensions. Deletion is irreversible; failures
// are logged and not retried.
func (s *Store) PruneStaleVariants(keepPath string) {
	stem, _ := splitExtension(keepPath)
	if stem == "" {
		return
	}
	for _, ext := range knownExtensions {
		sibling := stem + "." + ext
		if sibling == keepPath || !s.backend.Exists(sibling) {
			continue
		}
		if err := s.backend.Remove(sibling); err != nil {
			s.logger.Warn("prune stale variant failed",
				logging.String(logging.FieldPath, sibling),
				logging.Error(err))
			continue
		}
		s.logger.Info("pruned stale variant",
			logging.String(logging.FieldPath, sibling),
			logging.String("kept", filepath.Base(keepPath)))
	}
}

// LoadCatalogBlob returns the persisted raw catalog payload.
func (s *Store) LoadCatalogBlob() ([]byte, error) {
	if !s.available {
		return nil, ErrUnavailable
	}
	data, err := s.backend.ReadFile(filepath.Join(s.dir, catalogBlobName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fs.ErrNotExist
		}
		return nil, fmt.Errorf("load catalog blob: %w", err)
	}
	return data, nil
}

// SaveCatalogBlob persists the raw catalog payload.
func (s *Store) SaveCatalogBlob(data []byte) error {
	if !s.available {
		return ErrUnavailable
	}
	if err := s.backend.WriteFile(filepath.Join(s.dir, catalogBlobName), data); err != nil {
		return fmt.Errorf("save catalog blob: %w", err)
	}
	return nil
}

// LoadMetadata reads the persisted sync timestamp and token. A missing
// timestamp file yields zero metadata and no error.
func (s *Store) LoadMetadata() (Metadata, error) {
	if !s.available {
		return Metadata{}, ErrUnavailable
	}

	var meta Metadata
	data, err := s.backend.ReadFile(filepath.Join(s.dir, timestampName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return meta, nil
	case err != nil:
		return meta, fmt.Errorf("load sync timestamp: %w", err)
	}

	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		s.logger.Warn("sync timestamp file corrupt, treating as never synced",
			logging.Error(err))
		return Metadata{}, nil
	}
	meta.LastSyncTimeMs = ms

	if token, err := s.LoadSyncToken(); err == nil {
		meta.SyncToken = token
	}
	return meta, nil
}

// SaveMetadata persists the sync timestamp and token.
func (s *Store) SaveMetadata(meta Metadata) error {
	if !s.available {
		return ErrUnavailable
	}
	stamp := strconv.FormatInt(meta.LastSyncTimeMs, 10)
	if err := s.backend.WriteFile(filepath.Join(s.dir, timestampName), []byte(stamp)); err != nil {
		return fmt.Errorf("save sync timestamp: %w", err)
	}
	return s.SaveSyncToken(meta.SyncToken)
}

// LoadSyncToken reads the persisted sync token, returning "" when absent.
func (s *Store) LoadSyncToken() (string, error) {
	if !s.available {
		return "", ErrUnavailable
	}
	data, err := s.backend.ReadFile(filepath.Join(s.dir, syncTokenName))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load sync token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveSyncToken persists the sync token.
func (s *Store) SaveSyncToken(token string) error {
	if !s.available {
		return ErrUnavailable
	}
	if err := s.backend.WriteFile(filepath.Join(s.dir, syncTokenName), []byte(token)); err != nil {
		return fmt.Errorf("save sync token: %w", err)
	}
	return nil
}
