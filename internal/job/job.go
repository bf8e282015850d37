// Package job owns the transcode job lifecycle: the Job record, its state
// machine, and the Registry that is the single source of truth for status
// queries. Jobs are created queued, activated by the dispatcher, and finish
// in exactly one of the terminal states.
package job

import (
	"errors"
	"time"

	"github.com/nischay-chauhan/video-transcode/internal/media"
)

// State represents the current lifecycle state of a Job.
type State string

const (
	// StateQueued indicates the job is waiting for a dispatcher worker.
	StateQueued State = "queued"
	// StateActive indicates the job is being encoded.
	StateActive State = "active"
	// StateCompleted indicates the job finished successfully.
	StateCompleted State = "completed"
	// StateFailed indicates the job encountered a fatal error.
	StateFailed State = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

var (
	// ErrNotFound is returned when no job exists for the requested id.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when a state change would not
	// follow a legal edge. Stale workers must never resurrect a
	// finished job.
	ErrInvalidTransition = errors.New("invalid state transition")
)

var legalEdges = map[State][]State{
	StateQueued:    {StateActive, StateFailed},
	StateActive:    {StateCompleted, StateFailed},
	StateCompleted: {},
	StateFailed:    {},
}

func canTransition(from, to State) bool {
	for _, next := range legalEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is one requested transcode operation. The Registry owns the record;
// only the dispatcher mutates it after creation.
type Job struct {
	ID          string        `json:"id"`
	InputPath   string        `json:"inputPath"`
	OutputPath  string        `json:"outputPath"`
	Options     media.Options `json:"options"`
	State       State         `json:"state"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// Spec carries the caller-supplied fields for a new job.
type Spec struct {
	InputPath  string
	OutputPath string
	Options    media.Options
}

// Registry is the authoritative store for job records. Get is safe for
// concurrent callers while the owning job is mutated elsewhere; reads always
// observe a fully-formed record.
type Registry interface {
	Create(spec Spec) (Job, error)
	Get(id string) (Job, error)
	Transition(id string, next State, detail string) (Job, error)
	List() ([]Job, error)
}
