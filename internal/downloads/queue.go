// Package downloads implements the ordered, deduplicated, rate-limit-friendly
// download queue that fills the audio cache one file per tick.
package downloads

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"dialtone/internal/contentstore"
	"dialtone/internal/fetch"
	"dialtone/internal/logging"
)

// State tracks a job through its lifecycle. Transitions only move forward:
// pending → in_progress → done.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateDone       State = "done"
)

// Job is one queued remote fetch. URL is the dedup key; LocalPath is the
// deterministic target computed at enqueue time.
type Job struct {
	URL         string
	LocalPath   string
	Description string
	Extension   string
	State       State
}

// Outcome describes what a Tick call did.
type Outcome string

// OutcomeIdle means nothing was processed: the queue was empty, the network
// was offline, or storage was unavailable. OutcomeBusy means the next job was
// already in progress.
const (
	OutcomeIdle       Outcome = "idle"
	OutcomeBusy       Outcome = "busy"
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeFailed     Outcome = "failed"
)

// TickResult reports the processed job, if any.
type TickResult struct {
	Outcome  Outcome
	Job      *Job
	Bytes    int64
	Duration time.Duration
	Err      error
}

// Queue is the pending remote-fetch list. Jobs are processed strictly in
// insertion order, one per Tick, and never retried individually; recovery is
// the next catalog re-sync re-enqueuing the same URL.
type Queue struct {
	mu       sync.Mutex
	jobs     []*Job
	byURL    map[string]*Job
	cursor   int
	capacity int

	store     *contentstore.Store
	getter    fetch.Getter
	prober    fetch.Prober
	timeout   time.Duration
	chunkSize int
	logger    *slog.Logger
}

// Options configures queue construction.
type Options struct {
	Capacity    int
	FileTimeout time.Duration
	ChunkSize   int
}

// NewQueue constructs an empty queue. getter and prober may be nil, in which
// case Tick always reports idle.
func NewQueue(store *contentstore.Store, getter fetch.Getter, prober fetch.Prober, opts Options, logger *slog.Logger) *Queue {
	if opts.Capacity <= 0 {
		opts.Capacity = 64
	}
	if opts.FileTimeout <= 0 {
		opts.FileTimeout = time.Minute
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 32 * 1024
	}
	return &Queue{
		byURL:     make(map[string]*Job),
		capacity:  opts.Capacity,
		store:     store,
		getter:    getter,
		prober:    prober,
		timeout:   opts.FileTimeout,
		chunkSize: opts.ChunkSize,
		logger:    logging.NewComponentLogger(logger, "downloads"),
	}
}

// Enqueue appends a pending job. It returns true without effect when the URL
// is already queued, and false when the queue is at capacity.
func (q *Queue) Enqueue(url, localPath, description, extension string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.byURL[url]; ok {
		return true
	}
	if len(q.jobs) >= q.capacity {
		q.logger.Warn("download queue at capacity, dropping job",
			logging.String(logging.FieldURL, url),
			logging.Int("capacity", q.capacity))
		return false
	}

	job := &Job{
		URL:         url,
		LocalPath:   localPath,
		Description: description,
		Extension:   extension,
		State:       StatePending,
	}
	q.jobs = append(q.jobs, job)
	q.byURL[url] = job

	q.logger.Debug("queued download",
		logging.String(logging.FieldURL, url),
		logging.String(logging.FieldPath, localPath))
	return true
}

// Tick processes at most one job: the next unprocessed entry in insertion
// order. Failures are logged and the job still advances; the cursor moves by
// exactly one position per processed job.
func (q *Queue) Tick(ctx context.Context) TickResult {
	q.mu.Lock()
	if q.getter == nil || (q.prober != nil && !q.prober.Online()) {
		q.mu.Unlock()
		return TickResult{Outcome: OutcomeIdle}
	}
	if q.store == nil || !q.store.Available() {
		q.mu.Unlock()
		return TickResult{Outcome: OutcomeIdle}
	}
	if q.cursor >= len(q.jobs) {
		q.mu.Unlock()
		return TickResult{Outcome: OutcomeIdle}
	}
	job := q.jobs[q.cursor]
	if job.State == StateInProgress {
		q.mu.Unlock()
		return TickResult{Outcome: OutcomeBusy}
	}
	job.State = StateInProgress
	q.mu.Unlock()

	started := time.Now()
	bytes, err := q.download(ctx, job)
	elapsed := time.Since(started)

	q.mu.Lock()
	job.State = StateDone
	q.cursor++
	q.mu.Unlock()

	result := TickResult{Job: job, Bytes: bytes, Duration: elapsed, Err: err}
	if err != nil {
		result.Outcome = OutcomeFailed
		// No per-file retry: the next full catalog re-sync re-enqueues the URL.
		q.logger.Warn("download failed",
			logging.String(logging.FieldURL, job.URL),
			logging.Error(err))
		return result
	}
	result.Outcome = OutcomeDownloaded
	q.logger.Info("downloaded",
		logging.String(logging.FieldURL, job.URL),
		logging.String(logging.FieldPath, job.LocalPath),
		logging.Int64("bytes", bytes),
		logging.Duration("elapsed", elapsed))
	return result
}

func (q *Queue) download(ctx context.Context, job *Job) (int64, error) {
	if err := q.store.EnsureDir(q.store.AudioDir()); err != nil {
		return 0, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	resp, err := q.getter.Get(reqCtx, job.URL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return 0, &StatusError{URL: job.URL, StatusCode: resp.StatusCode}
	}

	target := q.store.TargetFor(job.URL, job.Extension)
	writer, err := q.store.Create(target)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, q.chunkSize)
	written, err := io.CopyBuffer(writer, resp.Body, buf)
	if closeErr := writer.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return written, err
	}

	q.store.PruneStaleVariants(target)
	return written, nil
}

// Remaining returns the number of unprocessed jobs.
func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs) - q.cursor
}

// Total returns the number of jobs accepted since the last Clear.
func (q *Queue) Total() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// IsEmpty reports whether no unprocessed jobs remain.
func (q *Queue) IsEmpty() bool {
	return q.Remaining() == 0
}

// Jobs returns a snapshot of the queue for observability output.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := make([]Job, len(q.jobs))
	for i, job := range q.jobs {
		jobs[i] = *job
	}
	return jobs
}

// Clear resets the queue. Already-downloaded bytes stay in the cache.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = nil
	q.byURL = make(map[string]*Job)
	q.cursor = 0
}
