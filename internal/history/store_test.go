package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"automl/internal/evaluation"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := openTemp(t)

	run := &Run{
		Kind:     KindTrain,
		ModelKey: "knn",
		Metrics:  &evaluation.Report{Accuracy: 0.75, Labels: []string{"a", "b"}},
		Duration: 2 * time.Second,
	}
	require.NoError(t, store.Record(run))
	require.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := store.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "knn", got.ModelKey)
	assert.Equal(t, 0.75, got.Metrics.Accuracy)
	assert.Equal(t, 2*time.Second, got.Duration)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListNewestFirst(t *testing.T) {
	store := openTemp(t)
	now := time.Now()

	for i, key := range []string{"first", "second", "third"} {
		require.NoError(t, store.Record(&Run{Kind: KindTrain, ModelKey: key, CreatedAt: now.Add(time.Duration(i) * time.Second)}))
	}
	// Same timestamp as "third" must not overwrite it.
	require.NoError(t, store.Record(&Run{Kind: KindTest, ModelKey: "fourth", CreatedAt: now.Add(2 * time.Second)}))

	runs, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	assert.Equal(t, "fourth", runs[0].ModelKey)
	assert.Equal(t, "first", runs[3].ModelKey)

	runs, err = store.List(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Record(&Run{Kind: KindTrain}))
	require.NoError(t, store.Close())

	store, err = Open(path, nil)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStoresShareOneFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := Open(path, nil)
	require.NoError(t, err)
	second, err := Open(path, nil)
	require.NoError(t, err)

	require.NoError(t, first.Record(&Run{Kind: KindTrain, ModelKey: "knn"}))
	require.NoError(t, second.Record(&Run{Kind: KindTest, ModelKey: "svm"}))

	for _, s := range []*Store{first, second} {
		runs, err := s.List(0)
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	}
}

func TestOpenWhileLocked(t *testing.T) {
	defer func(d time.Duration) { lockTimeout = d }(lockTimeout)
	lockTimeout = 50 * time.Millisecond

	path := filepath.Join(t.TempDir(), "history.db")
	holder, err := bbolt.Open(path, 0o600, nil)
	require.NoError(t, err)

	store, err := Open(path, nil)
	require.NoError(t, err)
	assert.True(t, store.Enabled())
	assert.ErrorIs(t, store.Record(&Run{Kind: KindTrain}), bbolt.ErrTimeout)

	require.NoError(t, holder.Close())
	require.NoError(t, store.Record(&Run{Kind: KindTrain}))
	runs, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestListBeforeFirstWrite(t *testing.T) {
	store := &Store{path: filepath.Join(t.TempDir(), "absent.db"), logger: zap.NewNop()}
	runs, err := store.List(0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	_, err = store.Get("x")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestDisabledStore(t *testing.T) {
	store, err := Open("", nil)
	require.NoError(t, err)
	assert.False(t, store.Enabled())

	assert.NoError(t, store.Record(&Run{Kind: KindTrain}))
	runs, err := store.List(10)
	assert.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, store.Close())

	var nilStore *Store
	assert.NoError(t, nilStore.Record(&Run{}))
}
