package verdict

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// setupPostgres starts a throwaway Postgres container and applies the schema.
// Needs a Docker daemon; short mode skips it.
func setupPostgres(t *testing.T) *PGStore {
	t.Helper()
	if testing.Short() {
		t.Skip("requires docker")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "test_db",
			"POSTGRES_USER":     "test_user",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("host=%s port=%s user=test_user password=test_password dbname=test_db sslmode=disable",
		host, port.Port())
	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, waitForPostgres(db, 10*time.Second))

	schema, err := os.ReadFile("../../database/schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return NewPGStore(db, zap.NewNop())
}

func waitForPostgres(db *sql.DB, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for Postgres to be ready")
		}
		if err := db.Ping(); err == nil {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func TestPersistAndLookupText(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	stored, err := store.PersistText(ctx, TextVerdict{
		TextHash:    "raw-a",
		SummaryHash: "norm-a",
		Mark:        "correct",
		Reason:      "matches known source",
		Summary:     "short summary",
		Confidence:  0.93,
		URLs:        []string{"https://example.com/a", "https://example.com/b"},
	})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotZero(t, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())

	byRaw, err := store.LookupText(ctx, "raw-a", "no-such-norm")
	require.NoError(t, err)
	require.NotNil(t, byRaw)
	assert.Equal(t, stored.ID, byRaw.ID)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, byRaw.URLs)

	byNorm, err := store.LookupText(ctx, "no-such-raw", "norm-a")
	require.NoError(t, err)
	require.NotNil(t, byNorm)
	assert.Equal(t, stored.ID, byNorm.ID)

	miss, err := store.LookupText(ctx, "no-such-raw", "no-such-norm")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestLookupTextExactMatchWins(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	// Two rows where the raw hash of one collides with the normalized hash
	// of the other. The raw match must be returned.
	exact, err := store.PersistText(ctx, TextVerdict{
		TextHash: "raw-x", SummaryHash: "norm-x", Mark: "correct", Reason: "exact",
	})
	require.NoError(t, err)
	variant, err := store.PersistText(ctx, TextVerdict{
		TextHash: "raw-y", SummaryHash: "norm-shared", Mark: "incorrect", Reason: "variant",
	})
	require.NoError(t, err)

	got, err := store.LookupText(ctx, "raw-x", "norm-shared")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, exact.ID, got.ID)

	got, err = store.LookupText(ctx, "raw-unknown", "norm-shared")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, variant.ID, got.ID)
}

func TestPersistTextNullableColumns(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	stored, err := store.PersistText(ctx, TextVerdict{
		TextHash: "raw-min", SummaryHash: "norm-min", Mark: "unknown", Reason: "no sources",
	})
	require.NoError(t, err)
	assert.Empty(t, stored.Summary)
	assert.Empty(t, stored.URLs)

	got, err := store.GetTextByID(ctx, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Summary)
	assert.Empty(t, got.URLs)
}

func TestDeleteTextForcesRecheck(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	stored, err := store.PersistText(ctx, TextVerdict{
		TextHash: "raw-del", SummaryHash: "norm-del", Mark: "correct", Reason: "cached",
	})
	require.NoError(t, err)

	deleted, err := store.DeleteTextByID(ctx, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, stored.ID, deleted.ID)

	// Gone from both the id fetch and the dedup lookup.
	got, err := store.GetTextByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	hit, err := store.LookupText(ctx, "raw-del", "norm-del")
	require.NoError(t, err)
	assert.Nil(t, hit)

	again, err := store.DeleteTextByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestPersistAndLookupImage(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	stored, err := store.PersistImage(ctx, ImageVerdict{
		ImageHash:  "img-a",
		ImageURL:   "https://example.com/pic.png",
		Mark:       "incorrect",
		Reason:     "manipulated",
		Confidence: 0.81,
	})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotZero(t, stored.ID)

	byHash, err := store.LookupImage(ctx, "img-a", "")
	require.NoError(t, err)
	require.NotNil(t, byHash)
	assert.Equal(t, stored.ID, byHash.ID)

	byURL, err := store.LookupImage(ctx, "", "https://example.com/pic.png")
	require.NoError(t, err)
	require.NotNil(t, byURL)
	assert.Equal(t, stored.ID, byURL.ID)

	deleted, err := store.DeleteImageByID(ctx, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	miss, err := store.LookupImage(ctx, "img-a", "https://example.com/pic.png")
	require.NoError(t, err)
	assert.Nil(t, miss)
}
