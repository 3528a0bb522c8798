//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/config"
	"github.com/kozaktomas/missing-persons/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if _, err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestPersonRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewPersonRepository(pool, 4)

	embedding := []float32{0.1, 0.2, 0.3, 0.4}

	t.Run("PutAndGet", func(t *testing.T) {
		meta := database.PersonMetadata{
			Name:        "Jan Novák",
			AgeLabel:    "34",
			Description: "Blue jacket",
			DateMissing: "2024-03-01",
			Contact:     "555-0100",
			PhotoPath:   "abc.jpg",
		}

		id, err := repo.Put(ctx, meta, embedding, "buffalo_l")
		if err != nil {
			t.Fatalf("Failed to put person: %v", err)
		}

		got, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatalf("Failed to get person: %v", err)
		}
		if got.Name != "Jan Novák" {
			t.Errorf("Expected name 'Jan Novák', got '%s'", got.Name)
		}
		if got.Model != "buffalo_l" || got.Dim != 4 {
			t.Errorf("Expected buffalo_l/4, got %s/%d", got.Model, got.Dim)
		}
		for i := range embedding {
			if got.Embedding[i] != embedding[i] {
				t.Errorf("Embedding[%d] = %v, want %v", i, got.Embedding[i], embedding[i])
			}
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, err := repo.Get(ctx, 999999)
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("PutWrongDimensionAllocatesNoID", func(t *testing.T) {
		before, _ := repo.Count(ctx)
		_, err := repo.Put(ctx, database.PersonMetadata{Name: "X"}, []float32{1, 2}, "buffalo_l")
		if !errors.Is(err, apperr.ErrInvalidEncoding) {
			t.Errorf("Expected ErrInvalidEncoding, got %v", err)
		}
		after, _ := repo.Count(ctx)
		if before != after {
			t.Errorf("Expected count unchanged, got %d -> %d", before, after)
		}
	})

	t.Run("ListNewestFirstWithNameFilter", func(t *testing.T) {
		second, err := repo.Put(ctx, database.PersonMetadata{Name: "Petr Novak"}, embedding, "buffalo_l")
		if err != nil {
			t.Fatalf("Failed to put person: %v", err)
		}
		if _, err := repo.Put(ctx, database.PersonMetadata{Name: "Jane Doe"}, embedding, "buffalo_l"); err != nil {
			t.Fatalf("Failed to put person: %v", err)
		}

		all, err := repo.List(ctx, database.ListOptions{})
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(all) != 3 || all[0].Name != "Jane Doe" {
			t.Fatalf("Expected 3 records newest first, got %+v", all)
		}

		filtered, err := repo.List(ctx, database.ListOptions{Name: "novak"})
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(filtered) != 2 || filtered[0].ID != second {
			t.Errorf("Expected 2 Novak records starting with id %d, got %+v", second, filtered)
		}

		paged, err := repo.List(ctx, database.ListOptions{Limit: 1, Offset: 1})
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(paged) != 1 || paged[0].ID != second {
			t.Errorf("Expected page with id %d, got %+v", second, paged)
		}

		for _, literal := range []string{"%", "_", "nov_k"} {
			got, err := repo.List(ctx, database.ListOptions{Name: literal})
			if err != nil {
				t.Fatalf("Failed to list: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("Expected %q to match literally, got %+v", literal, got)
			}
		}
	})

	t.Run("SnapshotEncodings", func(t *testing.T) {
		encodings, err := repo.SnapshotEncodings(ctx)
		if err != nil {
			t.Fatalf("Failed to snapshot: %v", err)
		}
		if len(encodings) != 3 {
			t.Fatalf("Expected 3 encodings, got %d", len(encodings))
		}
		for i := 1; i < len(encodings); i++ {
			if encodings[i-1].PersonID >= encodings[i].PersonID {
				t.Errorf("Expected encodings ordered by id")
			}
		}
	})
}

func TestMigrationsApplied(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("Failed to list migrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != "001_missing_persons.sql" {
		t.Errorf("Expected 001_missing_persons.sql to be applied, got %v", versions)
	}

	applied, err := pool.Migrate(ctx)
	if err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("Expected no pending migrations, got %v", applied)
	}
}
