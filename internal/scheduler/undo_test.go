package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/artiflow/internal/event"
	"github.com/vk/artiflow/internal/pipeline"
	"github.com/vk/artiflow/internal/runctx"
)

func undoRC(target string, downstream bool) *runctx.Context {
	rc := runctx.New(nil)
	rc.Target = target
	rc.Downstream = downstream
	return rc
}

func builtFetchClean(t *testing.T) *fixture {
	f := fetchClean(t, 0)
	require.NoError(t, f.runner().Run(context.Background(), rcFor("", runctx.ModeNone, 0)))
	for _, loc := range []string{"raw", "cleaned", "summary", "other"} {
		require.True(t, f.store.has(loc), loc)
	}
	return f
}

func TestUndo_TargetOnly(t *testing.T) {
	f := builtFetchClean(t)
	deleted, err := f.runner().Undo(context.Background(), undoRC("clean", false))
	require.NoError(t, err)
	assert.Equal(t, []string{"cleaned"}, deleted)
	assert.True(t, f.store.has("raw"), "upstream is preserved")
	assert.True(t, f.store.has("summary"), "downstream is kept without the flag")
}

func TestUndo_Downstream(t *testing.T) {
	f := builtFetchClean(t)
	deleted, err := f.runner().Undo(context.Background(), undoRC("clean", true))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cleaned", "summary"}, deleted)
	assert.True(t, f.store.has("raw"))
	assert.True(t, f.store.has("other"))

	started := f.log.OfKind(event.UndoStarted)
	require.Len(t, started, 1)
	assert.Equal(t, []string{"clean", "report"}, started[0].Tasks)

	// The next run rebuilds exactly what was undone.
	require.NoError(t, f.runner().Run(context.Background(), rcFor("", runctx.ModeNone, 0)))
	assert.Equal(t, 2, f.tracker.Calls("clean"))
	assert.Equal(t, 2, f.tracker.Calls("report"))
	assert.Equal(t, 1, f.tracker.Calls("fetch"))
}

func TestUndo_AllAndIdempotent(t *testing.T) {
	f := builtFetchClean(t)
	deleted, err := f.runner().Undo(context.Background(), undoRC("", false))
	require.NoError(t, err)
	assert.Len(t, deleted, 4)

	deleted, err = f.runner().Undo(context.Background(), undoRC("", false))
	require.NoError(t, err)
	assert.Empty(t, deleted, "undoing missing artifacts is a no-op")
}

func TestUndo_UnknownTask(t *testing.T) {
	f := fetchClean(t, 0)
	_, err := f.runner().Undo(context.Background(), undoRC("ghost", true))
	assert.ErrorIs(t, err, pipeline.ErrUnknownTask)
}
