package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_ValidationErrors(t *testing.T) {
	for _, path := range []string{"", "   ", "\t"} {
		store, err := Open(context.Background(), path)
		assert.Nil(t, store)
		assert.ErrorContains(t, err, "empty database path")
	}
}

func TestOpen_DirectoryCreationAndReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "deep", "history.db")

	store, err := Open(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, Entry{Test: "t", Key: "k", Verdict: "pass", Baseline: true}))
	require.NoError(t, store.Close())
	assert.DirExists(t, filepath.Dir(dbPath))

	// reopen keeps rows and does not rerun migrations destructively
	store, err = Open(ctx, dbPath)
	require.NoError(t, err)
	defer store.Close()
	rows, err := store.ByKey(ctx, "k", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestAppendAndByKey(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	base := time.Unix(1700000000, 0)

	require.NoError(t, store.Append(ctx, Entry{Test: "a", Key: "shot", Average: 0.5, StdDev: 1.5, Verdict: "artifact", Baseline: true, At: base}))
	require.NoError(t, store.Append(ctx, Entry{Test: "a", Key: "shot", Average: 3, StdDev: 7, Verdict: "fail", Baseline: true, At: base.Add(time.Second)}))
	require.NoError(t, store.Append(ctx, Entry{Test: "b", Key: "other", Verdict: "missing", At: base}))

	rows, err := store.ByKey(ctx, "shot", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "fail", rows[0].Verdict)
	assert.InDelta(t, 3.0, rows[0].Average, 1e-9)
	assert.InDelta(t, 7.0, rows[0].StdDev, 1e-9)
	assert.True(t, rows[0].At.Equal(base.Add(time.Second)))
	assert.Equal(t, "artifact", rows[1].Verdict)

	rows, err = store.ByKey(ctx, "shot", 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = store.ByKey(ctx, "other", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Baseline)
}

func TestAppend_Validation(t *testing.T) {
	store := openTemp(t)
	assert.Error(t, store.Append(context.Background(), Entry{Test: "t"}))

	var nilStore *Store
	assert.Error(t, nilStore.Append(context.Background(), Entry{Key: "k"}))
	assert.NoError(t, nilStore.Close())
}

func TestRecentAndPrune(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	base := time.Unix(1700000000, 0)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, Entry{Test: "t", Key: "k", Verdict: "pass", At: base.Add(time.Duration(i) * time.Minute)}))
	}

	rows, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].At.After(rows[1].At))

	n, err := store.Prune(ctx, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rows, err = store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
