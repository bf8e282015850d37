package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time {
	return t.ch
}

func (t *manualTicker) Stop() {}

type countingPurger struct {
	calls atomic.Int64
	err   error
}

func (p *countingPurger) PurgeExpired() error {
	p.calls.Add(1)
	return p.err
}

func TestStartJanitorRunsOnEachTick(t *testing.T) {
	t.Parallel()

	ticker := &manualTicker{ch: make(chan time.Time)}
	purger := &countingPurger{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stop := startJanitor(context.Background(), time.Minute, func(time.Duration) janitorTicker {
		return ticker
	}, func() {
		if err := purger.PurgeExpired(); err != nil {
			logger.Error("purge failed", "error", err)
		}
	})
	defer stop()

	for i := 0; i < 3; i++ {
		ticker.ch <- time.Now()
	}

	deadline := time.After(time.Second)
	for purger.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected 3 purge calls, got %d", purger.calls.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestStartJanitorStopIsIdempotent(t *testing.T) {
	t.Parallel()

	ticker := &manualTicker{ch: make(chan time.Time)}
	stop := startJanitor(context.Background(), time.Minute, func(time.Duration) janitorTicker {
		return ticker
	}, func() {})

	stop()
	stop()
}

func TestStartJanitorDisabledWithoutInterval(t *testing.T) {
	t.Parallel()

	stop := startJanitor(context.Background(), 0, func(time.Duration) janitorTicker {
		t.Fatal("ticker should not be created when interval is zero")
		return nil
	}, func() {})
	stop()
}

func TestStartSessionPurgeWorkerLogsErrors(t *testing.T) {
	t.Parallel()

	purger := &countingPurger{err: errors.New("backend down")}
	stop := startSessionPurgeWorker(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), purger, time.Millisecond)
	defer stop()

	deadline := time.After(time.Second)
	for purger.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected purge worker to run")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
