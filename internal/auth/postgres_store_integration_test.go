//go:build postgres

package auth

import (
	"context"
	"os"
	"testing"
	"time"
)

// Requires a reachable Postgres. Set VIDEO_TRANSCODE_TEST_POSTGRES_DSN to run
// with the postgres build tag.
func TestPostgresSessionStoreRoundtrip(t *testing.T) {
	dsn := os.Getenv("VIDEO_TRANSCODE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VIDEO_TRANSCODE_TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewPostgresSessionStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgresSessionStore: %v", err)
	}
	t.Cleanup(func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = store.Close(closeCtx)
	})

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	now := time.Now()
	token := "integration-token"
	if err := store.Save(token, "user-1", now.Add(time.Minute), now.Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	record, ok, err := store.Get(token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected session to exist")
	}
	if record.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", record.UserID)
	}
	if record.AbsoluteExpiresAt.Before(record.ExpiresAt) {
		t.Fatal("expected absolute expiry at or after idle expiry")
	}

	if err := store.Save(token, "user-1", now.Add(2*time.Minute), now.Add(time.Hour)); err != nil {
		t.Fatalf("Save update: %v", err)
	}

	if err := store.Delete(token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := store.Get(token); err != nil || ok {
		t.Fatalf("expected deleted session to be gone, ok=%v err=%v", ok, err)
	}

	expired := "expired-token"
	if err := store.Save(expired, "user-2", now.Add(-time.Minute), now.Add(-time.Second)); err != nil {
		t.Fatalf("Save expired: %v", err)
	}
	if err := store.PurgeExpired(time.Now()); err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if _, ok, err := store.Get(expired); err != nil || ok {
		t.Fatalf("expected expired session to be purged, ok=%v err=%v", ok, err)
	}
}
