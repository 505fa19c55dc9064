package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/colporter/internal/config"
	"github.com/dgallion1/colporter/internal/repo"
)

// Orchestrator manages the export pipeline.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	repo     repo.Repository
	payloads repo.ResourcePayloader
	log      *slog.Logger
	cfg      config.Config
	stats    *Stats

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewOrchestrator creates the pipeline. Repositories that can also serve raw
// resource bytes get them embedded in packages; others produce packages with
// payload warnings.
func NewOrchestrator(cfg config.Config, rp repo.Repository, log *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		repo:  rp,
		log:   log,
		cfg:   cfg,
		stats: NewStats(time.Hour),
	}
	if p, ok := rp.(repo.ResourcePayloader); ok {
		o.payloads = p
	}
	return o
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.repo, o.payloads, o.log, o.cfg, o.stats)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. Submissions racing the shutdown
// are refused rather than sent on the closing queue.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.mu.Lock()
	o.closed = true
	close(o.queue)
	o.mu.Unlock()
	o.wg.Wait()
}

// Submit queues a new export job.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		job.SetStatus(StatusFailed, "shutting_down")
		return fmt.Errorf("pipeline is shutting down")
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats returns the pipeline's run counters.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}
