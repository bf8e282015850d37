package main

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type sessionPurger interface {
	PurgeExpired() error
}

type uploadSweeper interface {
	Sweep() int
}

type janitorTicker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

type tickerFactory func(time.Duration) janitorTicker

func newTimeTicker(d time.Duration) janitorTicker {
	return timeTicker{ticker: time.NewTicker(d)}
}

func startSessionPurgeWorker(ctx context.Context, logger *slog.Logger, sessions sessionPurger, interval time.Duration) func() {
	if sessions == nil {
		return func() {}
	}
	return startJanitor(ctx, interval, newTimeTicker, func() {
		if err := sessions.PurgeExpired(); err != nil && logger != nil {
			logger.Error("failed to purge expired sessions", "error", err)
		}
	})
}

func startUploadSweepWorker(ctx context.Context, logger *slog.Logger, uploads uploadSweeper, interval time.Duration) func() {
	if uploads == nil {
		return func() {}
	}
	return startJanitor(ctx, interval, newTimeTicker, func() {
		if dropped := uploads.Sweep(); dropped > 0 && logger != nil {
			logger.Info("discarded stale upload sessions", "count", dropped)
		}
	})
}

func startJanitor(ctx context.Context, interval time.Duration, newTicker tickerFactory, run func()) func() {
	if interval <= 0 {
		return func() {}
	}
	workerCtx, cancel := context.WithCancel(ctx)
	ticker := newTicker(interval)
	done := make(chan struct{})
	go func() {
		defer func() {
			ticker.Stop()
			close(done)
		}()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C():
				run()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
