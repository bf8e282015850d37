package job

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRegistry is the in-process Registry used for single-node
// deployments and tests.
type MemoryRegistry struct {
	logger *slog.Logger

	mu   sync.RWMutex
	jobs map[string]Job
}

// NewMemoryRegistry returns an empty in-memory registry.
func NewMemoryRegistry(logger *slog.Logger) *MemoryRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryRegistry{
		logger: logger,
		jobs:   make(map[string]Job),
	}
}

func (r *MemoryRegistry) Create(spec Spec) (Job, error) {
	if err := validateSpec(spec); err != nil {
		return Job{}, err
	}
	now := time.Now().UTC()
	record := Job{
		ID:         uuid.NewString(),
		InputPath:  spec.InputPath,
		OutputPath: spec.OutputPath,
		Options:    spec.Options,
		State:      StateQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.mu.Lock()
	r.jobs[record.ID] = record
	r.mu.Unlock()
	return record, nil
}

func (r *MemoryRegistry) Get(id string) (Job, error) {
	r.mu.RLock()
	record, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return record, nil
}

func (r *MemoryRegistry) Transition(id string, next State, detail string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if !canTransition(record.State, next) {
		r.logger.Warn("rejected job transition",
			"job_id", id, "from", string(record.State), "to", string(next))
		return Job{}, fmt.Errorf("job %s: %s -> %s: %w", id, record.State, next, ErrInvalidTransition)
	}
	record.State = next
	record.UpdatedAt = time.Now().UTC()
	if next == StateFailed {
		record.Error = detail
	}
	if next.Terminal() {
		completed := record.UpdatedAt
		record.CompletedAt = &completed
	}
	r.jobs[id] = record
	return record, nil
}

func (r *MemoryRegistry) List() ([]Job, error) {
	r.mu.RLock()
	records := make([]Job, 0, len(r.jobs))
	for _, record := range r.jobs {
		records = append(records, record)
	}
	r.mu.RUnlock()
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func validateSpec(spec Spec) error {
	if spec.InputPath == "" {
		return fmt.Errorf("input path is required")
	}
	if spec.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	return nil
}
