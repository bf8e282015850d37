package server

import (
	"fmt"
	"os"
	"testing"
	"time"
)

// Requires a reachable Redis. Set VIDEO_TRANSCODE_TEST_REDIS_ADDR to run.
func TestRedisStoreAllow(t *testing.T) {
	addr := os.Getenv("VIDEO_TRANSCODE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("VIDEO_TRANSCODE_TEST_REDIS_ADDR not set")
	}

	store := newRedisStore(addr, os.Getenv("VIDEO_TRANSCODE_TEST_REDIS_PASSWORD"), time.Second)
	key := fmt.Sprintf("login:test:%d", time.Now().UnixNano())

	allowed, retry, err := store.Allow(key, 2, time.Second)
	if err != nil || !allowed || retry != 0 {
		t.Fatalf("first allow unexpected: allowed=%v retry=%v err=%v", allowed, retry, err)
	}
	allowed, _, err = store.Allow(key, 2, time.Second)
	if err != nil || !allowed {
		t.Fatalf("second allow unexpected: allowed=%v err=%v", allowed, err)
	}
	allowed, retry, err = store.Allow(key, 2, time.Second)
	if err != nil {
		t.Fatalf("third allow err: %v", err)
	}
	if allowed {
		t.Fatal("expected throttle on third attempt")
	}
	if retry < 0 {
		t.Fatalf("expected non-negative retry, got %v", retry)
	}
}
