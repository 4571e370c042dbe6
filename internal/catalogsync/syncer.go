package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"dialtone/internal/catalog"
	"dialtone/internal/config"
	"dialtone/internal/contentstore"
	"dialtone/internal/downloads"
	"dialtone/internal/fetch"
	"dialtone/internal/logging"
	"dialtone/internal/playlist"
	"dialtone/internal/registry"
)

// State names the syncer's position in its cycle.
type State string

const (
	StateIdle        State = "idle"
	StateChecking    State = "checking"
	StateFetching    State = "fetching"
	StateReconciling State = "reconciling"
	StatePersisting  State = "persisting"
)

// Notifier receives sync failure alerts. The ntfy service implements it; a
// nil Notifier disables alerts.
type Notifier interface {
	NotifySyncFailed(ctx context.Context, err error) error
}

// Syncer drives catalog synchronization. All mutation runs on the caller's
// goroutine; the daemon serializes calls, so internal locking only guards
// state inspection from other goroutines.
type Syncer struct {
	cfg       *config.Config
	store     *contentstore.Store
	keys      *registry.Registry
	playlists *playlist.Registry
	queue     *downloads.Queue
	getter    fetch.Getter
	prober    fetch.Prober
	notifier  Notifier
	logger    *slog.Logger

	mu          sync.Mutex
	state       State
	meta        contentstore.Metadata
	lastCycleID string

	now   func() time.Time
	sleep func(time.Duration)
}

// New constructs a syncer and reads persisted sync metadata so the first
// staleness decision happens before any registry mutation.
func New(
	cfg *config.Config,
	store *contentstore.Store,
	keys *registry.Registry,
	playlists *playlist.Registry,
	queue *downloads.Queue,
	getter fetch.Getter,
	prober fetch.Prober,
	logger *slog.Logger,
) *Syncer {
	s := &Syncer{
		cfg:       cfg,
		store:     store,
		keys:      keys,
		playlists: playlists,
		queue:     queue,
		getter:    getter,
		prober:    prober,
		logger:    logging.NewComponentLogger(logger, "catalogsync"),
		state:     StateIdle,
		now:       time.Now,
		sleep:     time.Sleep,
	}

	meta, err := store.LoadMetadata()
	if err != nil && !errors.Is(err, contentstore.ErrUnavailable) {
		s.logger.Warn("load sync metadata failed", logging.Error(err))
	}
	s.meta = meta
	return s
}

// SetNotifier installs the failure alert sink.
func (s *Syncer) SetNotifier(n Notifier) { s.notifier = n }

// State returns the current cycle state.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastCycleID returns the correlation id of the most recent refresh, or ""
// before the first one. The daemon attaches it to ledger rows so downloads can
// be traced back to the sync cycle that queued them.
func (s *Syncer) LastCycleID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCycleID
}

// Metadata returns the in-memory view of sync bookkeeping.
func (s *Syncer) Metadata() contentstore.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

func (s *Syncer) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.logger.Debug("sync state", logging.String(logging.FieldState, string(state)))
}

// LoadCached rebuilds the registries from the persisted catalog blob without
// touching the network. Call at boot so the device is usable offline; a
// missing or unreadable blob is not an error.
func (s *Syncer) LoadCached() error {
	blob, err := s.store.LoadCatalogBlob()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, contentstore.ErrUnavailable) {
			return nil
		}
		return err
	}

	entries, _, err := catalog.Decode(blob, s.cfg.Catalog.MaxBodyBytes)
	if err != nil {
		s.logger.Warn("cached catalog blob unparsable, will refetch",
			logging.Error(err))
		return nil
	}

	s.reconcile(entries)
	s.enqueueMissing(entries)
	s.logger.Info("catalog restored from cache", logging.Int("keys", len(entries)))
	return nil
}

// CheckOnce performs one staleness decision and, when stale, a full refresh.
func (s *Syncer) CheckOnce(ctx context.Context) error {
	if s.cfg.CatalogURL() == "" {
		return nil
	}

	s.setState(StateChecking)
	stale, reason := s.staleness(ctx)
	if !stale {
		s.setState(StateIdle)
		return nil
	}

	s.logger.Info("catalog stale, refreshing", logging.String("reason", reason))
	return s.Refresh(ctx)
}

// staleness applies the two-tier decision. It may perform a lightweight
// remote token check when the network is available.
func (s *Syncer) staleness(ctx context.Context) (bool, string) {
	s.mu.Lock()
	meta := s.meta
	s.mu.Unlock()

	if len(s.keys.NonGeneratorKeys()) == 0 {
		return true, "registry empty"
	}
	if !s.store.Available() {
		return true, "storage unavailable"
	}
	if meta.LastSyncTimeMs == 0 {
		return true, "never synced"
	}

	nowMs := s.now().UnixMilli()
	if nowMs-meta.LastSyncTimeMs > s.cfg.FullValidityWindow().Milliseconds() {
		return true, "validity window expired"
	}

	if nowMs-meta.LastLightweightCheckMs > s.cfg.LightweightCheckInterval().Milliseconds() {
		if s.prober == nil || !s.prober.Online() {
			// Cannot verify, assume valid.
			return false, ""
		}
		token, err := s.remoteToken(ctx)
		if err != nil {
			s.logger.Warn("lightweight check failed", logging.Error(err))
			return false, ""
		}
		if token != "" && token != meta.SyncToken {
			return true, "sync token changed"
		}
		s.mu.Lock()
		s.meta.LastLightweightCheckMs = nowMs
		s.mu.Unlock()
	}

	return false, ""
}

// remoteToken fetches the server's current sync token cheaply: the catalog
// endpoint is requested but only the validator headers are read, the body is
// discarded unread.
func (s *Syncer) remoteToken(ctx context.Context) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout())
	defer cancel()

	resp, err := s.getter.Get(reqCtx, s.cfg.CatalogURL())
	if err != nil {
		return "", Wrap(ErrNetwork, "catalogsync", "lightweight check", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", Wrap(ErrNetwork, "catalogsync", "lightweight check",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		return etag, nil
	}
	return resp.Header.Get("Last-Modified"), nil
}

// Refresh runs the full fetch-and-reconcile with bounded retries. On
// exhausted retries the previous catalog remains authoritative.
func (s *Syncer) Refresh(ctx context.Context) error {
	cycleID := uuid.NewString()
	s.mu.Lock()
	s.lastCycleID = cycleID
	s.mu.Unlock()
	logger := s.logger.With(logging.String(logging.FieldCycleID, cycleID))

	var lastErr error
	attempts := s.cfg.Catalog.RetryAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = s.refreshOnce(ctx, logger)
		if lastErr == nil {
			return nil
		}
		logger.Warn("catalog refresh attempt failed",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Error(lastErr))
		if attempt < attempts {
			s.sleep(s.cfg.RetryDelay())
		}
	}

	s.setState(StateIdle)
	if s.notifier != nil && s.cfg.Notifications.SyncErrors {
		if err := s.notifier.NotifySyncFailed(ctx, lastErr); err != nil {
			logger.Debug("sync failure notification failed", logging.Error(err))
		}
	}
	return lastErr
}

func (s *Syncer) refreshOnce(ctx context.Context, logger *slog.Logger) error {
	s.setState(StateFetching)
	body, headerToken, err := s.fetchCatalog(ctx)
	if err != nil {
		return err
	}

	entries, payloadToken, err := catalog.Decode(body, s.cfg.Catalog.MaxBodyBytes)
	if err != nil {
		return Wrap(ErrParse, "catalogsync", "decode catalog", "", err)
	}

	s.setState(StateReconciling)
	registered, pruned := s.reconcile(entries)

	s.setState(StatePersisting)
	nowMs := s.now().UnixMilli()
	token := payloadToken
	if token == "" {
		token = headerToken
	}
	if token == "" {
		token = fmt.Sprintf("local-%d", nowMs)
	}

	meta := contentstore.Metadata{
		LastSyncTimeMs:         nowMs,
		SyncToken:              token,
		LastLightweightCheckMs: nowMs,
	}
	if err := s.store.SaveCatalogBlob(body); err != nil && !errors.Is(err, contentstore.ErrUnavailable) {
		logger.Warn("persist catalog blob failed", logging.Error(err))
	}
	if err := s.store.SaveMetadata(meta); err != nil && !errors.Is(err, contentstore.ErrUnavailable) {
		logger.Warn("persist sync metadata failed", logging.Error(err))
	}
	s.mu.Lock()
	s.meta = meta
	s.mu.Unlock()

	resolved := s.playlists.ResolveAll()
	queued := s.enqueueMissing(entries)

	s.setState(StateIdle)
	logger.Info("catalog refreshed",
		logging.Int("keys", registered),
		logging.Int("pruned", pruned),
		logging.Int("resolved_nodes", resolved),
		logging.Int("queued_downloads", queued))
	return nil
}

func (s *Syncer) fetchCatalog(ctx context.Context) ([]byte, string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout())
	defer cancel()

	resp, err := s.getter.Get(reqCtx, s.cfg.CatalogURL())
	if err != nil {
		return nil, "", Wrap(ErrNetwork, "catalogsync", "fetch catalog", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, "", Wrap(ErrNetwork, "catalogsync", "fetch catalog",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	limit := s.cfg.Catalog.MaxBodyBytes
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", Wrap(ErrNetwork, "catalogsync", "read catalog body", "", err)
	}
	if int64(len(body)) > limit {
		return nil, "", Wrap(ErrParse, "catalogsync", "read catalog body",
			fmt.Sprintf("payload exceeds %d bytes", limit), catalog.ErrOversized)
	}

	token := resp.Header.Get("ETag")
	if token == "" {
		token = resp.Header.Get("Last-Modified")
	}
	return body, token, nil
}

// reconcile registers every audio entry and rebuilds its playlist, then
// sweeps registry keys that were present before but absent from the new
// catalog. Generators are never swept; they are not catalog-sourced.
func (s *Syncer) reconcile(entries map[string]catalog.Entry) (registered, pruned int) {
	sweep := s.keys.NonGeneratorKeys()

	for key, entry := range entries {
		if entry.Kind != catalog.KindAudio {
			s.logger.Debug("skipping non-audio entry",
				logging.String(logging.FieldAudioKey, key),
				logging.String("kind", string(entry.Kind)))
			continue
		}
		s.keys.Register(key, entry.Locator, entry.Extension)
		s.playlists.BuildFromEntry(entry)
		delete(sweep, key)
		registered++
	}

	for key := range sweep {
		s.keys.Unregister(key)
		// Playlists are 1:1 with their owning key; sweep them together.
		s.playlists.Remove(key)
		s.logger.Info("pruned orphan key", logging.String(logging.FieldAudioKey, key))
		pruned++
	}
	return registered, pruned
}

// enqueueMissing queues a download for every remote audio entry whose cache
// copy does not exist yet. Enqueue treats a dedup hit as success, so the
// count of newly accepted jobs comes from the queue length delta.
func (s *Syncer) enqueueMissing(entries map[string]catalog.Entry) int {
	before := s.queue.Total()
	for _, entry := range entries {
		if entry.Kind != catalog.KindAudio || !entry.IsRemote() {
			continue
		}
		local := s.store.AddressFor(entry.Locator, entry.Extension)
		if s.store.Exists(local) {
			continue
		}
		s.queue.Enqueue(entry.Locator, local, entry.Description, entry.Extension)
	}
	return s.queue.Total() - before
}
