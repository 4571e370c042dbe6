package catalogsync_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"dialtone/internal/catalogsync"
	"dialtone/internal/config"
	"dialtone/internal/contentstore"
	"dialtone/internal/downloads"
	"dialtone/internal/fetch"
	"dialtone/internal/playlist"
	"dialtone/internal/registry"
	"dialtone/internal/testsupport"
)

type catalogServer struct {
	*httptest.Server
	payload   atomic.Value // string
	etag      atomic.Value // string
	lastQuery atomic.Value // string
	status    atomic.Int64
	hits      atomic.Int64
}

func newCatalogServer(t *testing.T) *catalogServer {
	t.Helper()
	cs := &catalogServer{}
	cs.payload.Store("{}")
	cs.etag.Store("")
	cs.lastQuery.Store("")
	cs.status.Store(http.StatusOK)
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		cs.lastQuery.Store(r.URL.RawQuery)
		if etag := cs.etag.Load().(string); etag != "" {
			w.Header().Set("ETag", etag)
		}
		status := int(cs.status.Load())
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(cs.payload.Load().(string)))
		}
	}))
	t.Cleanup(cs.Close)
	return cs
}

type recordingNotifier struct {
	calls atomic.Int64
	last  atomic.Value // error
}

func (n *recordingNotifier) NotifySyncFailed(_ context.Context, err error) error {
	n.calls.Add(1)
	n.last.Store(err)
	return nil
}

type env struct {
	cfg       *config.Config
	store     *contentstore.Store
	keys      *registry.Registry
	playlists *playlist.Registry
	queue     *downloads.Queue
	syncer    *catalogsync.Syncer
}

func newEnv(t *testing.T, catalogURL string, prober fetch.Prober) *env {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithCatalogURL(catalogURL))
	return newEnvWithConfig(t, cfg, prober)
}

func newEnvWithConfig(t *testing.T, cfg *config.Config, prober fetch.Prober) *env {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	return newEnvWithStore(t, cfg, store, prober)
}

func newEnvWithStore(t *testing.T, cfg *config.Config, store *contentstore.Store, prober fetch.Prober) *env {
	t.Helper()
	logger := testsupport.Logger()
	getter := fetch.NewClient(5 * time.Second)
	keys := registry.New(store, nil, logger)
	playlists := playlist.NewRegistry(keys, logger)
	queue := downloads.NewQueue(store, getter, prober, downloads.Options{}, logger)
	syncer := catalogsync.New(cfg, store, keys, playlists, queue, getter, prober, logger)
	return &env{cfg: cfg, store: store, keys: keys, playlists: playlists, queue: queue, syncer: syncer}
}

func TestCheckOnceWithoutCatalogURLIsNoop(t *testing.T) {
	e := newEnv(t, "", fetch.StaticProber(false))
	if err := e.syncer.CheckOnce(context.Background()); err != nil {
		t.Fatalf("CheckOnce: %v", err)
	}
	if e.keys.Len() != 0 {
		t.Fatal("catalog-less check must not register keys")
	}
}

func TestCheckOnceFullCycle(t *testing.T) {
	server := newCatalogServer(t)
	server.payload.Store(`{
		"lastModified": "v1",
		"911": {
			"description": "emergency siren",
			"type": "audio",
			"path": "` + server.URL + `/siren.mp3",
			"ring_duration": 2000
		},
		"*73": {
			"description": "call forward disable",
			"type": "service",
			"data": "disable_forwarding"
		}
	}`)

	e := newEnv(t, server.URL, fetch.StaticProber(true))
	if err := e.syncer.CheckOnce(context.Background()); err != nil {
		t.Fatalf("CheckOnce: %v", err)
	}

	// Audio entry registered, non-audio skipped.
	if !e.keys.HasKey("911") {
		t.Fatal("audio key not registered")
	}
	if e.keys.HasKey("*73") {
		t.Fatal("service entry must not reach the key registry")
	}

	// Playlist built with the ringback marker.
	p, ok := e.playlists.Get("911")
	if !ok {
		t.Fatal("playlist not built")
	}
	if p.Nodes[0].AudioKey != playlist.RingbackKey || p.Nodes[0].DurationMs != 2000 {
		t.Fatalf("ringback node missing: %#v", p.Nodes)
	}

	// Remote audio queued for download.
	if e.queue.Remaining() != 1 {
		t.Fatalf("expected 1 queued download, got %d", e.queue.Remaining())
	}

	// Metadata persisted with the payload token.
	meta := e.syncer.Metadata()
	if meta.SyncToken != "v1" || meta.LastSyncTimeMs == 0 {
		t.Fatalf("metadata not updated: %#v", meta)
	}
	if _, err := e.store.LoadCatalogBlob(); err != nil {
		t.Fatalf("catalog blob not persisted: %v", err)
	}
	if e.syncer.State() != catalogsync.StateIdle {
		t.Fatalf("syncer not idle after cycle: %s", e.syncer.State())
	}
}

func TestCheckOnceSkipsWhenFresh(t *testing.T) {
	server := newCatalogServer(t)
	server.payload.Store(`{"911": {"type": "audio", "path": "` + server.URL + `/siren.mp3"}}`)

	e := newEnv(t, server.URL, fetch.StaticProber(true))
	if err := e.syncer.CheckOnce(context.Background()); err != nil {
		t.Fatalf("first CheckOnce: %v", err)
	}
	hits := server.hits.Load()

	// The refresh just ran: inside both the validity window and the
	// lightweight interval, so no request is made at all.
	if err := e.syncer.CheckOnce(context.Background()); err != nil {
		t.Fatalf("second CheckOnce: %v", err)
	}
	if server.hits.Load() != hits {
		t.Fatalf("fresh catalog refetched: %d -> %d hits", hits, server.hits.Load())
	}
}

// primedEnv builds an env whose store already holds a synced catalog with the
// given age, then boots a fresh syncer from it, as a daemon restart would.
func primedEnv(t *testing.T, server *catalogServer, prober fetch.Prober, age time.Duration, token string) *env {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithCatalogURL(server.URL))
	store := testsupport.MustOpenStore(t, cfg)

	blob := `{"911": {"type": "audio", "path": "` + server.URL + `/siren.mp3"}}`
	if err := store.SaveCatalogBlob([]byte(blob)); err != nil {
		t.Fatalf("seed catalog blob: %v", err)
	}
	meta := contentstore.Metadata{
		LastSyncTimeMs: time.Now().Add(-age).UnixMilli(),
		SyncToken:      token,
	}
	if err := store.SaveMetadata(meta); err != nil {
		t.Fatalf("seed metadata: %v", err)
	}

	e := newEnvWithStore(t, cfg, store, prober)
	if err := e.syncer.LoadCached(); err != nil {
		t.Fatalf("LoadCached: %v", err)
	}
	return e
}

func TestStalenessOfflineAssumesValid(t *testing.T) {
	server := newCatalogServer(t)
	e := primedEnv(t, server, fetch.StaticProber(false), time.Hour, "v1")

	// Lightweight interval has elapsed (it resets at boot) but the network is
	// down: cannot verify, assume valid.
	if err := e.syncer.CheckOnce(context.Background()); err != nil {
		t.Fatalf("CheckOnce: %v", err)
	}
	if server.hits.Load() != 0 {
		t.Fatalf("offline check touched the network: %d hits", server.hits.Load())
	}
	if !e.keys.HasKey("911") {
		t.Fatal("cached registry lost")
	}
}

func TestStalenessTokenMatchSkipsRefresh(t *testing.T) {
	server := newCatalogServer(t)
	server.etag.Store("v1")
	e := primedEnv(t, server, fetch.StaticProber(true), time.Hour, "v1")

	if err := e.syncer.CheckOnce(context.Background()); err != nil {
		t.Fatalf("CheckOnce: %v", err)
	}
	// One lightweight request, no full fetch.
	if server.hits.Load() != 1 {
		t.Fatalf("expected exactly one token request, got %d", server.hits.Load())
	}

	// The successful token check is remembered; the next check is silent.
	if err := e.syncer.CheckOnce(context.Background()); err != nil {
		t.Fatalf("second CheckOnce: %v", err)
	}
	if server.hits.Load() != 1 {
		t.Fatalf("token check not remembered: %d hits", server.hits.Load())
	}
}

func TestStalenessTokenChangeTriggersRefresh(t *testing.T) {
	server := newCatalogServer(t)
	server.etag.Store("v2")
	server.payload.Store(`{
		"lastModified": "v2",
		"911": {"type": "audio", "path": "` + server.URL + `/siren.mp3"},
		"411": {"type": "audio", "path": "` + server.URL + `/directory.mp3"}
	}`)
	e := primedEnv(t, server, fetch.StaticProber(true), time.Hour, "v1")

	if err := e.syncer.CheckOnce(context.Background()); err != nil {
		t.Fatalf("CheckOnce: %v", err)
	}
	if !e.keys.HasKey("411") {
		t.Fatal("changed catalog not refetched")
	}
	if got := e.syncer.Metadata().SyncToken; got != "v2" {
		t.Fatalf("token not advanced: %s", got)
	}
}

func TestStalenessValidityWindowExpired(t *testing.T) {
	server := newCatalogServer(t)
	server.payload.Store(`{
		"lastModified": "v2",
		"911": {"type": "audio", "path": "` + server.URL + `/siren.mp3"}
	}`)
	// Same token on the wire: only the age forces the refresh.
	server.etag.Store("v1")
	e := primedEnv(t, server, fetch.StaticProber(true), 25*time.Hour, "v1")

	if err := e.syncer.CheckOnce(context.Background()); err != nil {
		t.Fatalf("CheckOnce: %v", err)
	}
	meta := e.syncer.Metadata()
	if meta.SyncToken != "v2" {
		t.Fatalf("expired catalog not refetched, token %s", meta.SyncToken)
	}
}

func TestReconcileSweepsOrphansButNotGenerators(t *testing.T) {
	server := newCatalogServer(t)
	server.payload.Store(`{
		"911": {"type": "audio", "path": "` + server.URL + `/siren.mp3"},
		"411": {"type": "audio", "path": "` + server.URL + `/directory.mp3"}
	}`)

	e := newEnv(t, server.URL, fetch.StaticProber(true))
	e.keys.RegisterGenerator("dialtone", nil)

	if err := e.syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	if !e.keys.HasKey("411") || !e.keys.HasKey("911") {
		t.Fatal("initial registration incomplete")
	}

	server.payload.Store(`{"911": {"type": "audio", "path": "` + server.URL + `/siren.mp3"}}`)
	if err := e.syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}

	if e.keys.HasKey("411") {
		t.Fatal("orphan key survived the sweep")
	}
	if _, ok := e.playlists.Get("411"); ok {
		t.Fatal("orphan playlist survived the sweep")
	}
	if !e.keys.HasKey("dialtone") {
		t.Fatal("generator was swept")
	}
	if !e.keys.HasKey("911") {
		t.Fatal("live key was swept")
	}
}

func TestRefreshRetriesThenNotifies(t *testing.T) {
	server := newCatalogServer(t)
	server.status.Store(http.StatusInternalServerError)

	e := newEnv(t, server.URL, fetch.StaticProber(true))
	notifier := &recordingNotifier{}
	e.syncer.SetNotifier(notifier)

	err := e.syncer.Refresh(context.Background())
	if !errors.Is(err, catalogsync.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if got := server.hits.Load(); got != int64(e.cfg.Catalog.RetryAttempts) {
		t.Fatalf("expected %d attempts, got %d", e.cfg.Catalog.RetryAttempts, got)
	}
	if notifier.calls.Load() != 1 {
		t.Fatalf("expected one failure notification, got %d", notifier.calls.Load())
	}
	if e.syncer.State() != catalogsync.StateIdle {
		t.Fatalf("syncer stuck in %s", e.syncer.State())
	}
}

func TestRefreshRejectsOversizedPayload(t *testing.T) {
	server := newCatalogServer(t)
	server.payload.Store(`{"911": {"type": "audio", "path": "` + server.URL + `/siren.mp3"}}`)

	cfg := testsupport.NewConfig(t, testsupport.WithCatalogURL(server.URL))
	cfg.Catalog.MaxBodyBytes = 16
	e := newEnvWithConfig(t, cfg, fetch.StaticProber(true))

	err := e.syncer.Refresh(context.Background())
	if !errors.Is(err, catalogsync.ErrParse) {
		t.Fatalf("expected ErrParse for oversized payload, got %v", err)
	}
	if e.keys.Len() != 0 {
		t.Fatal("oversized payload must not mutate the registry")
	}
}

func TestRefreshWorksMemoryOnlyWhenStorageDegraded(t *testing.T) {
	server := newCatalogServer(t)
	server.payload.Store(`{"911": {"type": "audio", "path": "` + server.URL + `/siren.mp3"}}`)

	cfg := testsupport.NewConfig(t, testsupport.WithCatalogURL(server.URL))
	blocked := filepath.Join(testsupport.BaseDir(cfg), "blocked")
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	cfg.Paths.ContentDir = blocked
	cfg.Paths.AudioDir = filepath.Join(blocked, "audio")

	store := contentstore.Open(cfg, testsupport.Logger())
	if store.Available() {
		t.Fatal("expected degraded store")
	}
	e := newEnvWithStore(t, cfg, store, fetch.StaticProber(true))

	if err := e.syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !e.keys.HasKey("911") {
		t.Fatal("memory-only refresh did not register keys")
	}
	if got := e.syncer.Metadata().SyncToken; got == "" {
		t.Fatal("in-memory metadata not updated")
	}
}

func TestEnqueueMissingSkipsCachedFiles(t *testing.T) {
	server := newCatalogServer(t)
	server.payload.Store(`{"911": {"type": "audio", "path": "` + server.URL + `/siren.mp3"}}`)

	e := newEnv(t, server.URL, fetch.StaticProber(true))
	cached := e.store.AddressFor(server.URL+"/siren.mp3", "")
	testsupport.WriteFile(t, cached, 32)

	if err := e.syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if e.queue.Remaining() != 0 {
		t.Fatalf("cached file re-enqueued: %d", e.queue.Remaining())
	}
}

func TestRefreshHonorsSyncErrorsOptOut(t *testing.T) {
	server := newCatalogServer(t)
	server.status.Store(http.StatusInternalServerError)

	cfg := testsupport.NewConfig(t, testsupport.WithCatalogURL(server.URL))
	cfg.Notifications.SyncErrors = false
	e := newEnvWithConfig(t, cfg, fetch.StaticProber(true))
	notifier := &recordingNotifier{}
	e.syncer.SetNotifier(notifier)

	err := e.syncer.Refresh(context.Background())
	if !errors.Is(err, catalogsync.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if notifier.calls.Load() != 0 {
		t.Fatalf("sync_errors disabled but notifier called %d time(s)", notifier.calls.Load())
	}
}

func TestRefreshRecordsCycleID(t *testing.T) {
	server := newCatalogServer(t)
	server.payload.Store(string(testsupport.CatalogJSON(map[string]string{
		"911": server.URL + "/siren.mp3",
	})))

	e := newEnv(t, server.URL, fetch.StaticProber(true))
	if got := e.syncer.LastCycleID(); got != "" {
		t.Fatalf("cycle id set before first refresh: %s", got)
	}

	if err := e.syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	first := e.syncer.LastCycleID()
	if first == "" {
		t.Fatal("cycle id not recorded")
	}

	if err := e.syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if e.syncer.LastCycleID() == first {
		t.Fatal("cycle id not rotated per refresh")
	}
}

func TestStreamingVariantRequested(t *testing.T) {
	server := newCatalogServer(t)
	server.payload.Store(string(testsupport.CatalogJSON(map[string]string{
		"911": server.URL + "/siren.mp3",
	})))

	cfg := testsupport.NewConfig(t,
		testsupport.WithCatalogURL(server.URL),
		testsupport.WithStreaming(true))
	e := newEnvWithConfig(t, cfg, fetch.StaticProber(true))

	if err := e.syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := server.lastQuery.Load().(string); got != "streaming=true" {
		t.Fatalf("streaming variant not requested, query %q", got)
	}
}

func TestEnqueueMissingCountsSharedURLOnce(t *testing.T) {
	server := newCatalogServer(t)
	// Two keys share one remote file; the queue dedups by URL, so only one
	// download job may be accepted and counted.
	server.payload.Store(string(testsupport.CatalogJSON(map[string]string{
		"911": server.URL + "/siren.mp3",
		"112": server.URL + "/siren.mp3",
	})))

	e := newEnv(t, server.URL, fetch.StaticProber(true))
	if err := e.syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := e.queue.Total(); got != 1 {
		t.Fatalf("shared URL accepted %d times", got)
	}

	// A second refresh re-offers the same URL; the dedup no-op must not grow
	// the queue either.
	if err := e.syncer.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if got := e.queue.Total(); got != 1 {
		t.Fatalf("re-offered URL accepted again, total %d", got)
	}
}

func TestLoadCachedWithoutBlobIsNoop(t *testing.T) {
	e := newEnv(t, "", fetch.StaticProber(false))
	if err := e.syncer.LoadCached(); err != nil {
		t.Fatalf("LoadCached: %v", err)
	}
	if e.keys.Len() != 0 {
		t.Fatal("no blob, no keys")
	}
}

func TestLoadCachedRestoresRegistriesOffline(t *testing.T) {
	server := newCatalogServer(t)
	e := primedEnv(t, server, fetch.StaticProber(false), time.Hour, "v1")

	if !e.keys.HasKey("911") {
		t.Fatal("cached key not restored")
	}
	if _, ok := e.playlists.Get("911"); !ok {
		t.Fatal("cached playlist not rebuilt")
	}
	// The audio bytes are not cached yet, so the download is queued for when
	// the network returns.
	if e.queue.Remaining() != 1 {
		t.Fatalf("expected queued download, got %d", e.queue.Remaining())
	}
}
