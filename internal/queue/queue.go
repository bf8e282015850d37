// Package queue carries encode tasks from the API to the dispatcher.
// Implementations deliver each task to exactly one subscriber so multiple
// dispatcher processes can share a backlog.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Task is the unit of work placed on the queue. The registry holds the full
// job record; the queue only carries its identity.
type Task struct {
	JobID      string    `json:"jobId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Queue hands encode tasks to competing subscribers.
type Queue interface {
	Publish(ctx context.Context, task Task) error
	Subscribe() Subscription
}

// Subscription represents an active task stream.
type Subscription interface {
	Tasks() <-chan Task
	Close()
}

// NewMemoryQueue initialises an in-process queue suitable for tests and
// single-process deployments. Publish blocks while the backlog is full
// instead of dropping tasks.
func NewMemoryQueue(buffer int) Queue {
	if buffer <= 0 {
		buffer = 64
	}
	return &memoryQueue{ch: make(chan Task, buffer)}
}

type memoryQueue struct {
	ch chan Task
}

func (q *memoryQueue) Publish(ctx context.Context, task Task) error {
	if task.JobID == "" {
		return errors.New("task job id is required")
	}
	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *memoryQueue) Subscribe() Subscription {
	sub := &memorySubscription{
		source: q.ch,
		ch:     make(chan Task),
		done:   make(chan struct{}),
	}
	go sub.run()
	return sub
}

type memorySubscription struct {
	once   sync.Once
	source chan Task
	ch     chan Task
	done   chan struct{}
}

func (s *memorySubscription) run() {
	defer close(s.ch)
	for {
		select {
		case <-s.done:
			return
		case task := <-s.source:
			select {
			case s.ch <- task:
			case <-s.done:
				// Hand the undelivered task back for another
				// subscriber, unless the backlog is full.
				select {
				case s.source <- task:
				default:
				}
				return
			}
		}
	}
}

func (s *memorySubscription) Tasks() <-chan Task {
	return s.ch
}

func (s *memorySubscription) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}
