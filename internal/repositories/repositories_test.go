package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestNextSequence(t *testing.T) {
	ctx := context.Background()

	t.Run("increments", func(t *testing.T) {
		db := setupTestDB(t)

		for want := 1; want <= 3; want++ {
			got, err := NextSequence(ctx, db, "credentials")
			if err != nil {
				t.Fatalf("NextSequence() error = %v", err)
			}
			if got != want {
				t.Errorf("NextSequence() = %d, want %d", got, want)
			}
		}
	})

	t.Run("rejects unsafe table names", func(t *testing.T) {
		db := setupTestDB(t)

		_, err := NextSequence(ctx, db, "credentials; DROP TABLE credentials")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("missing sequence table", func(t *testing.T) {
		db := setupTestDB(t)

		if _, err := NextSequence(ctx, db, "users"); err == nil {
			t.Error("expected error for table without a sequence")
		}
	})
}

func TestCredentialRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewCredentialRepository(db)

		credential := models.NewCredential("spotify-user", "access-1", "refresh-1")
		if err := repo.Create(ctx, credential); err != nil {
			t.Fatalf("failed to create credential: %v", err)
		}

		if credential.ID() == "" {
			t.Error("credential ID should be set after creation")
		}
		if credential.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", credential.Sequence())
		}

		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("failed to count credentials: %v", err)
		}
		if count != 1 {
			t.Errorf("expected exactly one row, got %d", count)
		}
	})

	t.Run("Create Requires Spotify ID", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewCredentialRepository(db)

		err := repo.Create(ctx, models.NewCredential("", "access", "refresh"))
		if !errors.Is(err, models.ErrMissingSpotifyID) {
			t.Errorf("expected ErrMissingSpotifyID, got %v", err)
		}

		count, _ := repo.Count(ctx)
		if count != 0 {
			t.Errorf("expected no rows after failed create, got %d", count)
		}
	})

	t.Run("Repeated Logins Insert Duplicates", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewCredentialRepository(db)

		for _, tokens := range [][2]string{{"a1", "r1"}, {"a2", "r2"}} {
			if err := repo.Create(ctx, models.NewCredential("same-user", tokens[0], tokens[1])); err != nil {
				t.Fatalf("failed to create credential: %v", err)
			}
		}

		credentials, err := repo.List(ctx, map[string]any{"spotify_id": "same-user"})
		if err != nil {
			t.Fatalf("failed to list credentials: %v", err)
		}
		if len(credentials) != 2 {
			t.Fatalf("expected 2 credentials, got %d", len(credentials))
		}
		if credentials[0].AccessToken() != "a1" || credentials[1].AccessToken() != "a2" {
			t.Errorf("expected credentials ordered by sequence, got %s, %s",
				credentials[0].AccessToken(), credentials[1].AccessToken())
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewCredentialRepository(db)

		credential := models.NewCredential("spotify-user", "access", "refresh")
		if err := repo.Create(ctx, credential); err != nil {
			t.Fatalf("failed to create credential: %v", err)
		}

		retrieved, err := repo.Get(ctx, credential.ID())
		if err != nil {
			t.Fatalf("failed to get credential: %v", err)
		}

		if retrieved.ID() != credential.ID() {
			t.Errorf("expected ID %s, got %s", credential.ID(), retrieved.ID())
		}
		if retrieved.SpotifyID() != "spotify-user" {
			t.Errorf("expected spotify id spotify-user, got %s", retrieved.SpotifyID())
		}
		if retrieved.RefreshToken() != "refresh" {
			t.Errorf("expected refresh token refresh, got %s", retrieved.RefreshToken())
		}
		if retrieved.CreatedAt().IsZero() {
			t.Error("expected created_at to be populated")
		}
	})

	t.Run("Get Not Found", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewCredentialRepository(db)

		_, err := repo.Get(ctx, "missing")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewCredentialRepository(db)

		for _, id := range []string{"alice", "bob", "alice", "carol"} {
			if err := repo.Create(ctx, models.NewCredential(id, "access-"+id, "refresh-"+id)); err != nil {
				t.Fatalf("failed to create credential: %v", err)
			}
		}

		tc := []struct {
			name     string
			criteria map[string]any
			want     int
		}{
			{name: "all", criteria: nil, want: 4},
			{name: "by spotify id", criteria: map[string]any{"spotify_id": "alice"}, want: 2},
			{name: "unknown spotify id", criteria: map[string]any{"spotify_id": "dave"}, want: 0},
			{name: "limit", criteria: map[string]any{"limit": 3}, want: 3},
			{name: "ignores wrong types", criteria: map[string]any{"spotify_id": 42}, want: 4},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				credentials, err := repo.List(ctx, tt.criteria)
				if err != nil {
					t.Fatalf("failed to list credentials: %v", err)
				}
				if len(credentials) != tt.want {
					t.Errorf("expected %d credentials, got %d", tt.want, len(credentials))
				}
			})
		}
	})

	t.Run("Closed Database", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewCredentialRepository(db)
		db.Close()

		if err := repo.Create(ctx, models.NewCredential("id", "a", "r")); err == nil {
			t.Error("expected error on closed database")
		}
		if _, err := repo.List(ctx, nil); err == nil {
			t.Error("expected error on closed database")
		}
		if _, err := repo.Count(ctx); err == nil {
			t.Error("expected error on closed database")
		}
	})
}
