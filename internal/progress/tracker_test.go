package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lessonOrder = []string{"intro", "qmd-structure", "yaml-header"}

type failingStore struct {
	*MemoryStore
	failSave bool
	failLoad bool
}

func (f *failingStore) Load(ctx context.Context) (Set, error) {
	if f.failLoad {
		return nil, errors.New("disk on fire")
	}
	return f.MemoryStore.Load(ctx)
}

func (f *failingStore) Save(ctx context.Context, set Set) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.MemoryStore.Save(ctx, set)
}

func TestTrackerLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, NewSet("yaml-header")))

	tr, err := NewTracker(ctx, store, lessonOrder)
	require.NoError(t, err)

	assert.True(t, tr.IsCompleted("yaml-header"))
	assert.Equal(t, Summary{Completed: []string{"yaml-header"}, Count: 1, Total: 3, Percent: 33}, tr.Summary())

	require.NoError(t, tr.Complete(ctx, "intro"))
	require.NoError(t, tr.Complete(ctx, "intro"))
	s := tr.Summary()
	assert.Equal(t, []string{"intro", "yaml-header"}, s.Completed)
	assert.Equal(t, 67, s.Percent)

	saved, _ := store.Load(ctx)
	assert.Equal(t, []string{"intro", "yaml-header"}, saved.Sorted())

	require.NoError(t, tr.Uncomplete(ctx, "yaml-header"))
	assert.False(t, tr.IsCompleted("yaml-header"))

	require.NoError(t, tr.Reset(ctx))
	assert.Equal(t, 0, tr.Summary().Count)
	saved, _ = store.Load(ctx)
	assert.Empty(t, saved)
}

func TestTrackerUnknownLesson(t *testing.T) {
	tr, err := NewTracker(context.Background(), NewMemoryStore(), lessonOrder)
	require.NoError(t, err)

	err = tr.Complete(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownLesson)
}

func TestTrackerSaveFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: NewMemoryStore()}
	tr, err := NewTracker(ctx, store, lessonOrder)
	require.NoError(t, err)

	require.NoError(t, tr.Complete(ctx, "intro"))

	store.failSave = true
	assert.Error(t, tr.Complete(ctx, "yaml-header"))
	assert.False(t, tr.IsCompleted("yaml-header"))
	assert.Error(t, tr.Reset(ctx))
	assert.True(t, tr.IsCompleted("intro"))
}

func TestTrackerLoadFailure(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), failLoad: true}
	_, err := NewTracker(context.Background(), store, lessonOrder)
	assert.Error(t, err)
}

func TestTrackerSetLessons(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, NewSet("intro", "retired")))

	tr, err := NewTracker(ctx, store, lessonOrder)
	require.NoError(t, err)

	s := tr.Summary()
	assert.Equal(t, 1, s.Count, "lessons outside the catalog are not counted")
	assert.True(t, tr.IsCompleted("retired"))

	tr.SetLessons([]string{"intro"})
	assert.Equal(t, 100, tr.Summary().Percent)

	tr.SetLessons(nil)
	assert.Equal(t, Summary{Completed: []string{}, Total: 0}, tr.Summary())
}
