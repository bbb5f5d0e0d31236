package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dvloznov/finsight/internal/jobs"
	"github.com/google/uuid"
)

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// A single worker (the default) processes saves in publish order.
type Queue struct {
	jobChan   chan *jobs.SaveSnapshotJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
	workers   int
	backoff   func(retry int) time.Duration
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithBackoff overrides the delay before retry number n (starting at 1).
func WithBackoff(f func(retry int) time.Duration) QueueOption {
	return func(q *Queue) { q.backoff = f }
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishSaveSnapshot blocks.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...QueueOption) *Queue {
	q := &Queue{
		jobChan:   make(chan *jobs.SaveSnapshotJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   1,
		backoff: func(retry int) time.Duration {
			return time.Duration(retry) * time.Second
		},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishSaveSnapshot implements the Publisher interface.
func (q *Queue) PublishSaveSnapshot(ctx context.Context, job *jobs.SaveSnapshotJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = jobs.DefaultMaxRetries
	}
	job.AccountCount = len(job.Snapshot.Accounts)
	job.TransactionCount = len(job.Snapshot.Transactions)

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return err
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return jobs.ErrQueueClosed
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

// worker processes jobs until the context ends or the queue is stopped.
// On stop it finishes whatever is already buffered.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			q.drain(ctx, handler)
			return
		case job := <-q.jobChan:
			q.processJob(ctx, job, handler)
		}
	}
}

func (q *Queue) drain(ctx context.Context, handler jobs.JobHandler) {
	for {
		select {
		case job := <-q.jobChan:
			q.processJob(ctx, job, handler)
		default:
			return
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.SaveSnapshotJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	retry := false
	switch {
	case errors.Is(err, jobs.ErrSuperseded):
		job.Status = jobs.JobStatusSkipped
		job.Error = ""
	case err != nil:
		job.Error = err.Error()
		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			retry = true
		} else {
			job.Status = jobs.JobStatusFailed
		}
	default:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	if retry {
		q.scheduleRetry(ctx, job, handler)
	}
}

// scheduleRetry requeues job after its backoff. Stop waits for pending
// retries; a retry that fires after Stop runs on the timer goroutine.
func (q *Queue) scheduleRetry(ctx context.Context, job *jobs.SaveSnapshotJob, handler jobs.JobHandler) {
	q.wg.Add(1)
	time.AfterFunc(q.backoff(job.RetryCount), func() {
		defer q.wg.Done()
		job.Status = jobs.JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil

		err := q.PublishSaveSnapshot(ctx, job)
		switch {
		case errors.Is(err, jobs.ErrQueueClosed):
			q.processJob(ctx, job, handler)
		case err != nil && q.store != nil:
			_ = q.store.UpdateJobStatus(context.Background(), job.JobID, jobs.JobStatusFailed, err.Error())
		}
	})
}

// Stop implements the Consumer interface.
// It stops accepting jobs and waits for buffered ones and pending retries
// to be processed.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
