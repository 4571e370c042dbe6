// Package service assembles the content-delivery core into one explicitly
// constructed value. Collaborators (playback, tone generator, DTMF matcher)
// receive a *CatalogService instead of reaching for global registries.
package service

import (
	"log/slog"

	"dialtone/internal/catalogsync"
	"dialtone/internal/config"
	"dialtone/internal/contentstore"
	"dialtone/internal/downloads"
	"dialtone/internal/fetch"
	"dialtone/internal/logging"
	"dialtone/internal/playlist"
	"dialtone/internal/registry"
)

// Playable is the resolved playback descriptor handed to the audio
// collaborator. Exactly one of LocalPath and GeneratorRef is set per variant;
// StreamingURL may accompany LocalPath as a fallback.
type Playable struct {
	AudioKey     string
	Variant      registry.Variant
	LocalPath    string
	StreamingURL string
	GeneratorRef any
}

// CatalogService owns the content store, download queue, key and playlist
// registries, and the syncer that keeps them current.
type CatalogService struct {
	cfg       *config.Config
	store     *contentstore.Store
	keys      *registry.Registry
	playlists *playlist.Registry
	queue     *downloads.Queue
	syncer    *catalogsync.Syncer
	logger    *slog.Logger
}

// Options inject alternative collaborators, primarily for tests.
type Options struct {
	Getter  fetch.Getter
	Prober  fetch.Prober
	Dynamic registry.Dynamic
	Store   *contentstore.Store
}

// New wires the core from configuration. A nil opts uses production defaults:
// a disk-backed store, a plain HTTP client, and a dial probe against the
// catalog host.
func New(cfg *config.Config, logger *slog.Logger, opts *Options) *CatalogService {
	if opts == nil {
		opts = &Options{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store := opts.Store
	if store == nil {
		store = contentstore.Open(cfg, logger)
	}

	getter := opts.Getter
	if getter == nil {
		getter = fetch.NewClient(cfg.FetchTimeout())
	}
	prober := opts.Prober
	if prober == nil {
		prober = fetch.NewDialProber(cfg.CatalogURL(), 0)
	}

	keys := registry.New(store, opts.Dynamic, logger)
	playlists := playlist.NewRegistry(keys, logger)
	queue := downloads.NewQueue(store, getter, prober, downloads.Options{
		Capacity:    cfg.Downloads.Capacity,
		FileTimeout: cfg.FileTimeout(),
		ChunkSize:   cfg.ChunkSize(),
	}, logger)
	syncer := catalogsync.New(cfg, store, keys, playlists, queue, getter, prober, logger)

	return &CatalogService{
		cfg:       cfg,
		store:     store,
		keys:      keys,
		playlists: playlists,
		queue:     queue,
		syncer:    syncer,
		logger:    logging.NewComponentLogger(logger, "service"),
	}
}

// HasKey reports whether a key resolves through the registry or its dynamic
// capability.
func (s *CatalogService) HasKey(audioKey string) bool {
	return s.keys.HasKey(audioKey)
}

// HasPrefix reports whether any registered key starts with prefix.
func (s *CatalogService) HasPrefix(prefix string) bool {
	return s.keys.HasPrefix(prefix)
}

// RegisterGenerator records an in-process synthesized source under a key.
// The tone collaborator calls this at startup.
func (s *CatalogService) RegisterGenerator(audioKey string, ref any) {
	s.keys.RegisterGenerator(audioKey, ref)
}

// ResolvePlayable resolves a key to a concrete playback descriptor. A
// File-variant key whose cache copy is missing keeps its streaming fallback
// and is re-enqueued for download.
func (s *CatalogService) ResolvePlayable(audioKey string) (Playable, bool) {
	entry, ok := s.keys.Lookup(audioKey)
	if !ok {
		if path, ok := s.keys.ResolvePath(audioKey); ok {
			return Playable{AudioKey: audioKey, Variant: registry.VariantFile, LocalPath: path}, true
		}
		return Playable{}, false
	}

	p := Playable{
		AudioKey:     entry.AudioKey,
		Variant:      entry.Variant,
		StreamingURL: entry.StreamingURL,
		GeneratorRef: entry.GeneratorRef,
	}
	if entry.Variant != registry.VariantGenerator {
		p.LocalPath = entry.LocalPath
	}

	if entry.Variant == registry.VariantFile && entry.StreamingURL != "" && !s.store.Exists(entry.LocalPath) {
		// Not cached yet: hand back the streaming fallback and queue the fetch.
		s.queue.Enqueue(entry.StreamingURL, entry.LocalPath, entry.AudioKey, "")
		p.LocalPath = ""
	}
	return p, true
}

// GetPlaylist returns the playback sequence owned by a key.
func (s *CatalogService) GetPlaylist(audioKey string) (playlist.Playlist, bool) {
	return s.playlists.Get(audioKey)
}

// Accessors for the daemon and CLI.

func (s *CatalogService) Store() *contentstore.Store    { return s.store }
func (s *CatalogService) Keys() *registry.Registry      { return s.keys }
func (s *CatalogService) Playlists() *playlist.Registry { return s.playlists }
func (s *CatalogService) Queue() *downloads.Queue       { return s.queue }
func (s *CatalogService) Syncer() *catalogsync.Syncer   { return s.syncer }
