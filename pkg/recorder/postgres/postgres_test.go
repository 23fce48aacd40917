package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rhuss/streamwire/pkg/frame"
	"github.com/rhuss/streamwire/pkg/recorder"
)

func init() {
	// Point testcontainers at a podman machine when docker is not configured.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			if sock := strings.TrimSpace(string(out)); sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a migrated Store.
// Tests are skipped without a container runtime.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}
	_, dockerErr := exec.LookPath("docker")
	_, podmanErr := exec.LookPath("podman")
	if dockerErr != nil && podmanErr != nil {
		t.Skip("no container runtime found, skipping integration tests")
	}

	ctx := context.Background()
	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("streamwire_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{DSN: connStr, MaxConns: 5, MinConns: 1, MigrateOnStart: true})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func makeTestRecording(id, kind string, created time.Time) *recorder.Recording {
	return &recorder.Recording{
		ID:       id,
		Kind:     kind,
		Protocol: frame.ProtocolSSE,
		Frames: []frame.Frame{
			{Event: "response.output_text.delta", Data: []byte(`{"type":"response.output_text.delta","delta":"Hel"}`), ID: "1"},
			{Data: []byte(`{"type":"response.output_text.delta","delta":"lo"}`)},
			{Data: []byte(frame.Sentinel)},
		},
		Status:     "completed",
		Incomplete: false,
		Result:     []byte(`{"Status": "completed"}`),
		CreatedAt:  created.UTC().Truncate(time.Microsecond),
	}
}

func TestPostgres_SaveAndGet(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	rec := makeTestRecording(fmt.Sprintf("rec_pg_%d", time.Now().UnixNano()), "responses", time.Now())
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Kind != "responses" || got.Status != "completed" || got.Protocol != frame.ProtocolSSE {
		t.Errorf("got %s/%s/%s, want responses/completed/sse", got.Kind, got.Status, got.Protocol)
	}
	if diff := cmp.Diff(rec.Frames, got.Frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
	if !got.Terminated() {
		t.Error("Terminated() = false, want true")
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
	if len(got.Result) == 0 {
		t.Error("Result is empty")
	}
}

func TestPostgres_GetNotFound(t *testing.T) {
	store := setupTestDB(t)
	if _, err := store.Get(context.Background(), "rec_nonexistent"); !errors.Is(err, recorder.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_DuplicateSave(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	rec := makeTestRecording(fmt.Sprintf("rec_pg_dup_%d", time.Now().UnixNano()), "chat", time.Now())
	store.Save(ctx, rec)
	if err := store.Save(ctx, rec); !errors.Is(err, recorder.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestPostgres_Delete(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	rec := makeTestRecording(fmt.Sprintf("rec_pg_del_%d", time.Now().UnixNano()), "chat", time.Now())
	store.Save(ctx, rec)

	if err := store.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, rec.ID); !errors.Is(err, recorder.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, rec.ID); !errors.Is(err, recorder.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_List(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	kind := fmt.Sprintf("kind_%d", time.Now().UnixNano())
	for i := range 3 {
		rec := makeTestRecording(fmt.Sprintf("rec_list_%s_%d", kind, i), kind, base.Add(time.Duration(i)*time.Minute))
		if err := store.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	page, err := store.List(ctx, recorder.ListOptions{Kind: kind, Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Data) != 2 || !page.HasMore {
		t.Fatalf("page = %d items, has_more %v; want 2, true", len(page.Data), page.HasMore)
	}
	if want := fmt.Sprintf("rec_list_%s_2", kind); page.Data[0].ID != want {
		t.Errorf("first ID = %s, want %s", page.Data[0].ID, want)
	}

	next, err := store.List(ctx, recorder.ListOptions{Kind: kind, After: page.Data[1].ID})
	if err != nil {
		t.Fatalf("List after failed: %v", err)
	}
	if len(next.Data) != 1 || next.HasMore {
		t.Errorf("next page = %d items, has_more %v; want 1, false", len(next.Data), next.HasMore)
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	store := setupTestDB(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestMigrationsOrdered(t *testing.T) {
	list, err := migrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) < 2 {
		t.Fatalf("migrations = %d, want at least 2", len(list))
	}
	for i, m := range list {
		if m.version != i+1 {
			t.Errorf("migration %d has version %d (%s)", i, m.version, m.name)
		}
	}
}
