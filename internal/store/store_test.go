package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestWriteRun_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rec := RunRecord{
		ID:         "run-1",
		ScriptHash: "abc123",
		Scenarios:  []string{"eddsa", "p256"},
		Status:     StatusOK,
		Traceback:  "+1 Given I am 'Alice'\n",
		OutJSON:    `{"k":1}`,
		CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.WriteRun(ctx, rec))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ScriptHash, got.ScriptHash)
	assert.Equal(t, rec.Scenarios, got.Scenarios)
	assert.Equal(t, rec.Status, got.Status)
	assert.Equal(t, rec.Traceback, got.Traceback)
	assert.Equal(t, rec.OutJSON, got.OutJSON)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestWriteRun_DuplicateIDIgnored(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := RunRecord{ID: "run-1", ScriptHash: "a", Status: StatusOK}
	require.NoError(t, s.WriteRun(ctx, first))

	second := RunRecord{ID: "run-1", ScriptHash: "b", Status: StatusFailed}
	require.NoError(t, s.WriteRun(ctx, second))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ScriptHash, "first write wins")
}

func TestWriteRun_StampsCreatedAt(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, RunRecord{ID: "run-1", ScriptHash: "a", Status: StatusOK}))
	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, s.WriteRun(ctx, RunRecord{
			ID:         id,
			ScriptHash: "h",
			Status:     StatusOK,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
}

func TestListRuns_FailedRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, RunRecord{
		ID:         "run-1",
		ScriptHash: "h",
		Status:     StatusFailed,
		Error:      "NOT_FOUND: cannot find \"x\" in DATA or KEYS",
	}))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "NOT_FOUND")
	assert.Empty(t, runs[0].Scenarios)
}

func TestGetRun_Missing(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetRun(context.Background(), "ghost")
	assert.Error(t, err)
}
