package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotStarted = errors.New("queue not started")
	ErrFull       = errors.New("queue full")
	// ErrDuplicate is returned when a job with the same Key is waiting or running.
	ErrDuplicate = errors.New("job already queued")
)

// Job is a unit of background work such as a bill run.
type Job struct {
	ID string
	// Key deduplicates jobs; empty means never deduplicated.
	Key      string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

type Handler func(context.Context, Job) error

// QueueConfig tunes the worker pool. Failed jobs are dropped after
// MaxRetries further attempts, which defaults to none.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	JobTimeout time.Duration
	Logger     *zap.Logger
}

// Queue runs jobs on a fixed pool of goroutines.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger
	jobs    chan Job

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	inflight map[string]string
	workers  sync.WaitGroup
}

func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 4 * cfg.Workers
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:     name,
		handler:  handler,
		cfg:      cfg,
		logger:   cfg.Logger.With(zap.String("queue", name)),
		jobs:     make(chan Job, cfg.BufferSize),
		inflight: make(map[string]string),
	}
}

// Start launches the workers. Cancelling parent stops them too. Calling
// Start on a running queue does nothing.
func (q *Queue) Start(parent context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ctx != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(parent)
	q.workers.Add(q.cfg.Workers)
	for i := 0; i < q.cfg.Workers; i++ {
		go q.work(q.ctx)
	}
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels running handlers and waits for the workers to return. Jobs
// still buffered are discarded.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.ctx == nil {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.ctx = nil
	q.mu.Unlock()

	q.workers.Wait()
	q.mu.Lock()
	q.inflight = make(map[string]string)
	q.mu.Unlock()
	q.logger.Info("queue stopped")
}

// Enqueue buffers job and returns its id. It never blocks.
func (q *Queue) Enqueue(job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ctx == nil {
		return "", fmt.Errorf("%s: %w", q.name, ErrNotStarted)
	}
	if job.Key != "" {
		if owner, busy := q.inflight[job.Key]; busy && owner != job.ID {
			return owner, fmt.Errorf("%s %s: %w", q.name, job.Key, ErrDuplicate)
		}
	}
	select {
	case q.jobs <- job:
	default:
		return "", fmt.Errorf("%s: %w", q.name, ErrFull)
	}
	if job.Key != "" {
		q.inflight[job.Key] = job.ID
	}
	return job.ID, nil
}

func (q *Queue) work(ctx context.Context) {
	defer q.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			err := q.process(ctx, job)
			if err == nil || !q.retry(job, err) {
				q.release(job)
			}
		}
	}
}

func (q *Queue) process(ctx context.Context, job Job) (err error) {
	if q.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.JobTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return q.handler(ctx, job)
}

// retry schedules another attempt and reports whether it did.
func (q *Queue) retry(job Job, cause error) bool {
	job.Attempt++
	fields := []zap.Field{zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt), zap.Error(cause)}
	if job.Attempt > q.cfg.MaxRetries {
		q.logger.Error("job failed", fields...)
		return false
	}
	q.logger.Warn("job failed, will retry", append(fields, zap.Duration("delay", q.cfg.RetryDelay))...)
	time.AfterFunc(q.cfg.RetryDelay, func() {
		if _, err := q.Enqueue(job); err != nil {
			q.logger.Error("job dropped on retry", zap.String("job_id", job.ID), zap.Error(err))
			q.release(job)
		}
	})
	return true
}

func (q *Queue) release(job Job) {
	if job.Key == "" {
		return
	}
	q.mu.Lock()
	if q.inflight[job.Key] == job.ID {
		delete(q.inflight, job.Key)
	}
	q.mu.Unlock()
}
