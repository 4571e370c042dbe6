package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/time/rate"

	"dialtone/internal/config"
	"dialtone/internal/downloads"
	"dialtone/internal/ledger"
	"dialtone/internal/logging"
	"dialtone/internal/notifications"
	"dialtone/internal/service"
)

// LockFileName under the log directory. The CLI takes the same lock for
// one-shot operations against the content store.
const LockFileName = "dialtoned.lock"

// Daemon coordinates the sync and drain tickers and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	svc      *service.CatalogService
	notifier notifications.Service
	history  *ledger.Store
	logger   *slog.Logger

	lockPath string
	lock     *flock.Flock
	limiter  *rate.Limiter

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// drain window statistics, reported when the queue empties
	drainStart      time.Time
	drainDownloaded int
	drainFailed     int
}

// New constructs a daemon with initialized dependencies. history may be nil
// when durable storage is unavailable.
func New(cfg *config.Config, svc *service.CatalogService, notifier notifications.Service, history *ledger.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("daemon requires config and service")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	return &Daemon{
		cfg:      cfg,
		svc:      svc,
		notifier: notifier,
		history:  history,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		limiter:  rate.NewLimiter(rate.Limit(cfg.Downloads.DrainsPerSecond), 1),
	}, nil
}

// LockPath returns the daemon lock file location.
func (d *Daemon) LockPath() string { return d.lockPath }

// Start acquires the instance lock, restores the cached catalog, and launches
// the polling loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dialtoned instance is already running")
	}

	if err := d.svc.Syncer().LoadCached(); err != nil {
		d.logger.Warn("restore cached catalog failed", logging.Error(err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running.Store(true)

	d.wg.Add(1)
	go d.run(runCtx)

	d.logger.Info("dialtoned started",
		logging.String("lock", d.lockPath),
		logging.Bool("storage", d.svc.Store().Available()))
	return nil
}

// Stop terminates the polling loop and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock failed", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("dialtoned stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.history.Close()
}

// Running reports whether the polling loop is active.
func (d *Daemon) Running() bool { return d.running.Load() }

func (d *Daemon) run(ctx context.Context) {
	defer d.wg.Done()

	syncTicker := time.NewTicker(d.cfg.SyncCheckInterval())
	defer syncTicker.Stop()
	drainTicker := time.NewTicker(d.cfg.DrainInterval())
	defer drainTicker.Stop()

	// First staleness decision happens immediately rather than one interval in.
	d.checkSync(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-syncTicker.C:
			d.checkSync(ctx)
		case <-drainTicker.C:
			d.drainOne(ctx)
		}
	}
}

func (d *Daemon) checkSync(ctx context.Context) {
	if err := d.svc.Syncer().CheckOnce(ctx); err != nil {
		d.logger.Warn("catalog check failed", logging.Error(err))
	}
}

// drainOne processes at most one queued download, paced by the rate limiter.
func (d *Daemon) drainOne(ctx context.Context) {
	queue := d.svc.Queue()
	if queue.IsEmpty() || !d.limiter.Allow() {
		return
	}
	if d.drainDownloaded == 0 && d.drainFailed == 0 {
		d.drainStart = time.Now()
	}

	result := queue.Tick(ctx)
	switch result.Outcome {
	case downloads.OutcomeDownloaded:
		d.drainDownloaded++
	case downloads.OutcomeFailed:
		d.drainFailed++
	default:
		return
	}

	d.record(ctx, result)

	if queue.IsEmpty() {
		d.finishDrainWindow(ctx)
	}
}

func (d *Daemon) record(ctx context.Context, result downloads.TickResult) {
	if result.Job == nil {
		return
	}
	rec := ledger.Record{
		URL:        result.Job.URL,
		Path:       result.Job.LocalPath,
		Bytes:      result.Bytes,
		Outcome:    string(result.Outcome),
		CycleID:    d.svc.Syncer().LastCycleID(),
		DurationMs: result.Duration.Milliseconds(),
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	if err := d.history.Append(ctx, rec); err != nil {
		d.logger.Debug("ledger append failed", logging.Error(err))
	}
}

func (d *Daemon) finishDrainWindow(ctx context.Context) {
	if d.cfg.Notifications.QueueDrained {
		elapsed := time.Since(d.drainStart)
		if err := d.notifier.NotifyQueueDrained(ctx, d.drainDownloaded, d.drainFailed, elapsed); err != nil {
			d.logger.Debug("drain notification failed", logging.Error(err))
		}
	}
	d.drainDownloaded = 0
	d.drainFailed = 0
}
