package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Handler is a function that processes a job's payload
type Handler func(ctx context.Context, payload map[string]interface{}) error

// Recorder receives job execution outcomes. The serve and worker commands
// plug the Prometheus collectors in here.
type Recorder interface {
	RecordJob(jobType, outcome string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordJob(string, string, time.Duration) {}

// Worker represents a single worker goroutine that processes jobs
type Worker struct {
	ID           string
	queue        *Queue
	handlers     *HandlerRegistry
	queueName    string
	pollInterval time.Duration
	stopChan     chan struct{}
	wg           *sync.WaitGroup
}

// WorkerPool manages multiple worker goroutines for concurrent job processing
type WorkerPool struct {
	queue        *Queue
	handlers     *HandlerRegistry
	queueName    string
	numWorkers   int
	pollInterval time.Duration
	recorder     Recorder
	workers      []*Worker
	stopChan     chan struct{}
	wg           sync.WaitGroup
	mu           sync.RWMutex
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(queue *Queue, queueName string, numWorkers int, pollInterval time.Duration) *WorkerPool {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &WorkerPool{
		queue:        queue,
		handlers:     NewHandlerRegistry(),
		queueName:    queueName,
		numWorkers:   numWorkers,
		pollInterval: pollInterval,
		recorder:     nopRecorder{},
		workers:      make([]*Worker, 0, numWorkers),
		stopChan:     make(chan struct{}),
	}
}

// SetRecorder installs a recorder for job execution outcomes
func (p *WorkerPool) SetRecorder(r Recorder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r != nil {
		p.recorder = r
	}
}

// RegisterHandler registers a job handler for a specific job type
func (p *WorkerPool) RegisterHandler(jobType string, handler Handler) {
	p.handlers.Register(jobType, handler)
}

// Start starts all workers in the pool
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	log.Printf("Starting worker pool with %d workers for queue '%s'", p.numWorkers, p.queueName)

	for i := 0; i < p.numWorkers; i++ {
		worker := &Worker{
			ID:           fmt.Sprintf("worker-%s-%d", p.queueName, i),
			queue:        p.queue,
			handlers:     p.handlers,
			queueName:    p.queueName,
			pollInterval: p.pollInterval,
			stopChan:     p.stopChan,
			wg:           &p.wg,
		}

		p.workers = append(p.workers, worker)
		p.wg.Add(1)
		go worker.run(ctx, p.recorder)
	}
}

// Stop gracefully stops all workers
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	log.Printf("Stopping worker pool for queue '%s'", p.queueName)
	close(p.stopChan)
	p.wg.Wait()
	log.Printf("Worker pool stopped for queue '%s'", p.queueName)
}

// run is the main worker loop
func (w *Worker) run(ctx context.Context, recorder Recorder) {
	defer w.wg.Done()

	log.Printf("Worker %s started", w.ID)

	for {
		select {
		case <-w.stopChan:
			log.Printf("Worker %s stopped", w.ID)
			return
		case <-ctx.Done():
			log.Printf("Worker %s stopped: %v", w.ID, ctx.Err())
			return
		default:
			job, err := w.queue.Dequeue(ctx, w.ID, w.queueName)
			if err != nil {
				if !errors.Is(err, ErrNoJobs) {
					log.Printf("Worker %s: dequeue failed: %v", w.ID, err)
				}
				w.sleep()
				continue
			}

			w.processJob(ctx, job, recorder)
		}
	}
}

// sleep waits one poll interval or until the pool stops
func (w *Worker) sleep() {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-w.stopChan:
	case <-timer.C:
	}
}

// processJob handles a single job execution
func (w *Worker) processJob(ctx context.Context, job *Job, recorder Recorder) {
	startTime := time.Now()
	log.Printf("Worker %s processing job %s (type: %s, attempt: %d/%d)",
		w.ID, job.ID, job.Type, job.Attempts, job.MaxAttempts)

	handler, err := w.handlers.Get(job.Type)
	if err != nil {
		errMsg := fmt.Sprintf("no handler registered for job type: %s", job.Type)
		log.Printf("Worker %s: %s", w.ID, errMsg)
		if failErr := w.queue.Fail(ctx, job.ID, errMsg); failErr != nil {
			log.Printf("Worker %s: failed to mark job %s as failed: %v", w.ID, job.ID, failErr)
		}
		recorder.RecordJob(job.Type, "failure", time.Since(startTime))
		return
	}

	err = handler(ctx, job.Payload)
	duration := time.Since(startTime)

	if err != nil {
		w.handleJobError(ctx, job, err, recorder, duration)
		return
	}

	if err := w.queue.Complete(ctx, job.ID); err != nil {
		log.Printf("Worker %s: failed to mark job %s as complete: %v", w.ID, job.ID, err)
		return
	}

	log.Printf("Worker %s: job %s completed in %v", w.ID, job.ID, duration)
	recorder.RecordJob(job.Type, "success", duration)
}

// handleJobError processes a job failure and determines retry logic
func (w *Worker) handleJobError(ctx context.Context, job *Job, err error, recorder Recorder, duration time.Duration) {
	errMsg := err.Error()
	log.Printf("Worker %s: job %s failed: %v (attempt %d/%d)",
		w.ID, job.ID, err, job.Attempts, job.MaxAttempts)

	if job.IsRetryable() {
		if retryErr := w.queue.Retry(ctx, job.ID); retryErr != nil {
			log.Printf("Worker %s: failed to retry job %s: %v", w.ID, job.ID, retryErr)
			if failErr := w.queue.Fail(ctx, job.ID, errMsg); failErr != nil {
				log.Printf("Worker %s: failed to mark job %s as failed: %v", w.ID, job.ID, failErr)
			}
			recorder.RecordJob(job.Type, "failure", duration)
			return
		}

		recorder.RecordJob(job.Type, "retry", duration)
		return
	}

	if failErr := w.queue.Fail(ctx, job.ID, errMsg); failErr != nil {
		log.Printf("Worker %s: failed to mark job %s as failed: %v", w.ID, job.ID, failErr)
	}

	log.Printf("Worker %s: job %s exceeded max attempts", w.ID, job.ID)
	recorder.RecordJob(job.Type, "failure", duration)
}

// HandlerRegistry manages job type handlers
type HandlerRegistry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewHandlerRegistry creates a new handler registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for a job type
func (r *HandlerRegistry) Register(jobType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = handler
}

// Get retrieves a handler for a job type
func (r *HandlerRegistry) Get(jobType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("no handler registered for job type: %s", jobType)
	}

	return handler, nil
}

// ListTypes returns all registered job types
func (r *HandlerRegistry) ListTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
