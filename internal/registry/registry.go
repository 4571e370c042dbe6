// Package registry maps symbolic audio keys to resolved playback resources:
// cached local files, streaming fallbacks, or in-process generators.
package registry

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"dialtone/internal/catalog"
	"dialtone/internal/contentstore"
	"dialtone/internal/logging"
)

// Variant classifies how a registered key is played back.
type Variant string

const (
	VariantFile      Variant = "file"
	VariantStream    Variant = "url_stream"
	VariantGenerator Variant = "generator"
)

// Entry is the resolved resource descriptor for one audio key. Exactly one of
// LocalPath and GeneratorRef is meaningful per variant; StreamingURL may
// accompany LocalPath as a fallback.
type Entry struct {
	AudioKey     string
	Variant      Variant
	LocalPath    string
	StreamingURL string
	GeneratorRef any
}

// Dynamic supplies external key existence and resolution, e.g. for keys
// provisioned outside the catalog. Both methods must be cheap; they are
// consulted on every miss.
type Dynamic interface {
	Exists(key string) bool
	Resolve(key string) (path string, ok bool)
}

// Registry is the in-memory audio key index. It is rebuilt from the parsed
// catalog and owns no file bytes, only path and URL references into the
// content store's namespace.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	store   *contentstore.Store
	dynamic Dynamic
	logger  *slog.Logger
}

// New constructs an empty registry. dynamic may be nil.
func New(store *contentstore.Store, dynamic Dynamic, logger *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]Entry),
		store:   store,
		dynamic: dynamic,
		logger:  logging.NewComponentLogger(logger, "registry"),
	}
}

// Register records a File-variant key. A URL locator is rewritten to its
// deterministic cache address with the URL kept as streaming fallback; a local
// locator is used as-is. Re-registering the same key overwrites
// deterministically from the same inputs.
func (r *Registry) Register(audioKey, locator, extension string) {
	entry := Entry{AudioKey: audioKey, Variant: VariantFile}
	if catalog.IsURL(locator) {
		entry.LocalPath = r.store.AddressFor(locator, extension)
		entry.StreamingURL = locator
	} else {
		entry.LocalPath = locator
	}

	r.mu.Lock()
	r.entries[audioKey] = entry
	r.mu.Unlock()

	r.logger.Debug("registered key",
		logging.String(logging.FieldAudioKey, audioKey),
		logging.String(logging.FieldPath, entry.LocalPath))
}

// RegisterGenerator records a Generator-variant key, overwriting any prior
// entry under the same key.
func (r *Registry) RegisterGenerator(audioKey string, ref any) {
	r.mu.Lock()
	r.entries[audioKey] = Entry{AudioKey: audioKey, Variant: VariantGenerator, GeneratorRef: ref}
	r.mu.Unlock()

	r.logger.Debug("registered generator", logging.String(logging.FieldAudioKey, audioKey))
}

// Unregister removes a key.
func (r *Registry) Unregister(audioKey string) {
	r.mu.Lock()
	delete(r.entries, audioKey)
	r.mu.Unlock()
}

// Clear removes every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.entries = make(map[string]Entry)
	r.mu.Unlock()
}

// HasKey reports whether a key is resolvable: the map first, then the dynamic
// existence check, then the dynamic resolver. First positive match wins.
func (r *Registry) HasKey(audioKey string) bool {
	r.mu.RLock()
	_, ok := r.entries[audioKey]
	r.mu.RUnlock()
	if ok {
		return true
	}
	if r.dynamic != nil {
		if r.dynamic.Exists(audioKey) {
			return true
		}
		if _, ok := r.dynamic.Resolve(audioKey); ok {
			return true
		}
	}
	return false
}

// Lookup returns the registered entry for a key.
func (r *Registry) Lookup(audioKey string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[audioKey]
	return entry, ok
}

// ResolvePath returns the local path for a key. Generator entries have no
// path. A key absent from the map falls through to the dynamic resolver.
func (r *Registry) ResolvePath(audioKey string) (string, bool) {
	r.mu.RLock()
	entry, ok := r.entries[audioKey]
	r.mu.RUnlock()
	if ok {
		if entry.Variant == VariantGenerator {
			return "", false
		}
		return entry.LocalPath, true
	}
	if r.dynamic != nil {
		if path, ok := r.dynamic.Resolve(audioKey); ok {
			return path, true
		}
	}
	return "", false
}

// KeyType returns the variant for a key. Unregistered keys are inferred:
// URL-shaped keys stream, dynamically resolvable keys are files, and the
// default is file.
func (r *Registry) KeyType(audioKey string) Variant {
	r.mu.RLock()
	entry, ok := r.entries[audioKey]
	r.mu.RUnlock()
	if ok {
		return entry.Variant
	}
	if catalog.IsURL(audioKey) {
		return VariantStream
	}
	if r.dynamic != nil {
		if _, ok := r.dynamic.Resolve(audioKey); ok {
			return VariantFile
		}
	}
	return VariantFile
}

// HasPrefix reports whether any registered key starts with prefix. Supports
// progressive dial matching by the DTMF sequence collaborator.
func (r *Registry) HasPrefix(prefix string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for key := range r.entries {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Keys returns all registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// NonGeneratorKeys returns the sweep candidate set for catalog reconciliation.
// Generators are exempt from pruning because they are not catalog-sourced.
func (r *Registry) NonGeneratorKeys() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make(map[string]struct{}, len(r.entries))
	for key, entry := range r.entries {
		if entry.Variant != VariantGenerator {
			keys[key] = struct{}{}
		}
	}
	return keys
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
