//go:build postgres

package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nischay-chauhan/video-transcode/internal/media"
)

// Requires a reachable Postgres; set VIDEO_TRANSCODE_TEST_POSTGRES_DSN and
// build with -tags postgres to run.
func newIntegrationRegistry(t *testing.T) *PostgresRegistry {
	t.Helper()
	dsn := os.Getenv("VIDEO_TRANSCODE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VIDEO_TRANSCODE_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	registry, err := NewPostgresRegistry(ctx, PostgresConfig{
		DSN:    dsn,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewPostgresRegistry error: %v", err)
	}
	t.Cleanup(registry.Close)
	return registry
}

func TestPostgresRegistryLifecycle(t *testing.T) {
	registry := newIntegrationRegistry(t)

	created, err := registry.Create(Spec{
		InputPath:  "in.mp4",
		OutputPath: "out.mp4",
		Options:    media.Options{Resolution: "1280x720", Preset: "fast"},
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	fetched, err := registry.Get(created.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if fetched.State != StateQueued || fetched.Options.Resolution != "1280x720" {
		t.Fatalf("unexpected record %+v", fetched)
	}

	if _, err := registry.Transition(created.ID, StateActive, ""); err != nil {
		t.Fatalf("Transition to active: %v", err)
	}
	done, err := registry.Transition(created.ID, StateCompleted, "")
	if err != nil {
		t.Fatalf("Transition to completed: %v", err)
	}
	if done.CompletedAt == nil {
		t.Fatal("expected CompletedAt on terminal transition")
	}

	if _, err := registry.Transition(created.ID, StateActive, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	jobs, err := registry.List()
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	var found bool
	for _, j := range jobs {
		if j.ID == created.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("created job missing from List")
	}
}

func TestPostgresRegistryGetUnknown(t *testing.T) {
	registry := newIntegrationRegistry(t)

	if _, err := registry.Get("no-such-job"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
