// Package dispatch pulls queued jobs off the task queue and drives them
// through the encode pipeline on a bounded worker pool.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nischay-chauhan/video-transcode/internal/job"
	"github.com/nischay-chauhan/video-transcode/internal/media"
	"github.com/nischay-chauhan/video-transcode/internal/observability/metrics"
	"github.com/nischay-chauhan/video-transcode/internal/queue"
	"github.com/nischay-chauhan/video-transcode/internal/ws"
)

// Coordinator runs a single encode job to completion.
type Coordinator interface {
	Run(ctx context.Context, jobID string, spec media.EncodeSpec) error
}

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	Registry    job.Registry
	Coordinator Coordinator
	Queue       queue.Queue
	Broadcaster ws.Broadcaster
	Metrics     *metrics.Recorder
	// Workers bounds how many jobs encode concurrently.
	Workers int
	// Timeout bounds a single job's encode, including all its segments.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Processor subscribes to the task queue and fans jobs out to workers. A job
// id already being processed is skipped rather than run twice. Failed jobs
// are not retried.
type Processor struct {
	registry    job.Registry
	coordinator Coordinator
	queue       queue.Queue
	broadcaster ws.Broadcaster
	metrics     *metrics.Recorder
	workers     int
	timeout     time.Duration
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sub queue.Subscription
	wg  sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]struct{}
	started  bool
}

const (
	defaultWorkers = 2
	defaultTimeout = 30 * time.Minute
)

// NewProcessor initialises a processor from the configuration.
func NewProcessor(cfg ProcessorConfig) *Processor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		registry:    cfg.Registry,
		coordinator: cfg.Coordinator,
		queue:       cfg.Queue,
		broadcaster: cfg.Broadcaster,
		metrics:     cfg.Metrics,
		workers:     workers,
		timeout:     timeout,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		inFlight:    make(map[string]struct{}),
	}
}

// Start subscribes to the queue and launches the worker pool. It is a no-op
// when called twice.
func (p *Processor) Start() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.sub = p.queue.Subscribe()
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Shutdown stops accepting tasks and waits for in-flight jobs to finish or
// the context to expire.
func (p *Processor) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.cancel()
	if p.sub != nil {
		p.sub.Close()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.sub.Tasks():
			if !ok {
				return
			}
			id := strings.TrimSpace(task.JobID)
			if id == "" {
				continue
			}
			if !p.beginWork(id) {
				p.logger.Warn("skipping job already in flight", "job_id", id)
				continue
			}
			p.process(id)
			p.finishWork(id)
		}
	}
}

func (p *Processor) beginWork(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.inFlight[id]; exists {
		return false
	}
	p.inFlight[id] = struct{}{}
	return true
}

func (p *Processor) finishWork(id string) {
	p.mu.Lock()
	delete(p.inFlight, id)
	p.mu.Unlock()
}

func (p *Processor) process(id string) {
	logger := p.logger.With("job_id", id)

	j, err := p.registry.Get(id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			logger.Warn("queued job no longer exists")
			return
		}
		logger.Error("failed to load job", "error", err)
		return
	}
	if j.State.Terminal() {
		logger.Info("skipping job in terminal state", "state", j.State)
		return
	}

	j, err = p.registry.Transition(id, job.StateActive, "")
	if err != nil {
		logger.Error("failed to activate job", "error", err)
		return
	}
	if p.metrics != nil {
		p.metrics.JobStarted()
	}
	p.broadcastStatus(id, j)
	logger.Info("job started", "input", j.InputPath, "output", j.OutputPath)

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	spec := media.EncodeSpec{
		InputPath:  j.InputPath,
		OutputPath: j.OutputPath,
		Options:    j.Options,
	}
	if err := p.coordinator.Run(ctx, id, spec); err != nil {
		if deadline := ctx.Err(); deadline != nil && !errors.Is(err, deadline) {
			err = deadline
		}
		p.failJob(id, err)
		return
	}

	j, err = p.registry.Transition(id, job.StateCompleted, "")
	if err != nil {
		logger.Error("failed to mark job completed", "error", err)
		return
	}
	if p.metrics != nil {
		p.metrics.JobCompleted()
	}
	p.broadcastStatus(id, j)
	logger.Info("job completed", "output", j.OutputPath)
}

func (p *Processor) failJob(id string, cause error) {
	logger := p.logger.With("job_id", id)
	message := strings.TrimSpace(cause.Error())

	j, err := p.registry.Transition(id, job.StateFailed, message)
	if err != nil {
		logger.Error("failed to mark job failed", "error", err, "failure", cause)
		return
	}
	if p.metrics != nil {
		p.metrics.JobFailed()
	}
	if p.broadcaster != nil {
		p.broadcaster.Broadcast(ws.Error(id, message))
	}
	p.broadcastStatus(id, j)
	logger.Error("job failed", "error", cause)
}

func (p *Processor) broadcastStatus(id string, j job.Job) {
	if p.broadcaster == nil {
		return
	}
	data := ws.StatusData{Status: string(j.State)}
	if j.State == job.StateCompleted {
		data.OutputPath = j.OutputPath
	}
	p.broadcaster.Broadcast(ws.Status(id, data))
}
