package hostaudit

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := NewMigrator(logger)
	require.NoError(t, err)
	require.NoError(t, m.ApplyMigrations(db))

	return db
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := NewMigrator(logger)
	require.NoError(t, err)
	require.NoError(t, m.ApplyMigrations(db), "re-applying migrations against an up-to-date schema must be a no-op")
}

func TestRecordAndQueryCompletions(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	require.NoError(t, store.RecordCompletion(ctx, "run-a", 0, 1, 1, 1000))
	require.NoError(t, store.RecordCompletion(ctx, "run-a", 1, 1, 1, 1001))
	require.NoError(t, store.RecordCompletion(ctx, "run-b", 0, 1, 1, 2000))

	got, err := store.CompletionsForRun(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "run-a", got[0].RunID)
	require.Equal(t, 0, got[0].WorkerRank)
	require.Equal(t, int64(1000), got[0].ObservedAt)
	require.Equal(t, 1, got[1].WorkerRank)
}

func TestCompletionsForRunEmptyWhenNoneRecorded(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)

	got, err := store.CompletionsForRun(context.Background(), "nonexistent")
	require.NoError(t, err)
	require.Empty(t, got)
}
