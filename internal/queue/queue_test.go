package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func publish(t *testing.T, q Queue, jobID string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := q.Publish(ctx, Task{JobID: jobID, EnqueuedAt: time.Now()}); err != nil {
		t.Fatalf("Publish(%s) error: %v", jobID, err)
	}
}

func receive(t *testing.T, sub Subscription) Task {
	t.Helper()
	select {
	case task, ok := <-sub.Tasks():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return task
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task")
	}
	return Task{}
}

func TestMemoryQueueDeliversInOrder(t *testing.T) {
	q := NewMemoryQueue(4)
	sub := q.Subscribe()
	defer sub.Close()

	publish(t, q, "job-1")
	publish(t, q, "job-2")

	if task := receive(t, sub); task.JobID != "job-1" {
		t.Fatalf("expected job-1 first, got %s", task.JobID)
	}
	if task := receive(t, sub); task.JobID != "job-2" {
		t.Fatalf("expected job-2 second, got %s", task.JobID)
	}
}

func TestMemoryQueuePublishRejectsEmptyJobID(t *testing.T) {
	q := NewMemoryQueue(1)
	if err := q.Publish(context.Background(), Task{}); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

func TestMemoryQueuePublishHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	publish(t, q, "fills-the-buffer")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, Task{JobID: "blocked"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestMemoryQueueCompetingSubscribers(t *testing.T) {
	q := NewMemoryQueue(16)
	subA := q.Subscribe()
	defer subA.Close()
	subB := q.Subscribe()
	defer subB.Close()

	const total = 10
	for i := 0; i < total; i++ {
		publish(t, q, fmt.Sprintf("job-%d", i))
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	drain := func(sub Subscription) {
		defer wg.Done()
		for {
			select {
			case task, ok := <-sub.Tasks():
				if !ok {
					return
				}
				mu.Lock()
				seen[task.JobID]++
				mu.Unlock()
			case <-time.After(200 * time.Millisecond):
				return
			}
		}
	}
	wg.Add(2)
	go drain(subA)
	go drain(subB)
	wg.Wait()

	if len(seen) != total {
		t.Fatalf("expected %d distinct tasks, got %d", total, len(seen))
	}
	for jobID, n := range seen {
		if n != 1 {
			t.Fatalf("task %s delivered %d times", jobID, n)
		}
	}
}

func TestMemorySubscriptionCloseStopsStream(t *testing.T) {
	q := NewMemoryQueue(4)
	sub := q.Subscribe()
	sub.Close()
	sub.Close()

	select {
	case _, ok := <-sub.Tasks():
		if ok {
			t.Fatal("expected closed channel, got task")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestMemorySubscriptionCloseReturnsInFlightTask(t *testing.T) {
	q := NewMemoryQueue(4)
	sub := q.Subscribe()

	publish(t, q, "job-1")
	// Give the subscription goroutine time to pull the task off the
	// backlog before closing without ever receiving it.
	time.Sleep(20 * time.Millisecond)
	sub.Close()

	replacement := q.Subscribe()
	defer replacement.Close()
	if task := receive(t, replacement); task.JobID != "job-1" {
		t.Fatalf("expected job-1 re-delivered, got %s", task.JobID)
	}
}
