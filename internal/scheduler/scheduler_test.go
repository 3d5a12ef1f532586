package scheduler

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/artiflow/internal/event"
	"github.com/vk/artiflow/internal/pipeline"
	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/task"
)

var modes = []runctx.Mode{runctx.ModeNone, runctx.ModeThreads}

func TestRun_FetchCleanScenario(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			ctx := context.Background()
			f := fetchClean(t, 0)
			r := f.runner()

			require.NoError(t, r.Run(ctx, rcFor("clean", mode, 2)))
			assert.Equal(t, 1, f.tracker.Calls("fetch"))
			assert.Equal(t, 1, f.tracker.Calls("clean"))
			assert.Equal(t, 0, f.tracker.Calls("report"), "downstream of the target is not in the closure")
			assert.Equal(t, 0, f.tracker.Calls("unrelated"))
			assert.True(t, f.store.has("raw"))
			assert.True(t, f.store.has("cleaned"))
			assert.Equal(t, []string{"fetch", "clean"}, f.log.Tasks(event.TaskFinished))

			closure := f.log.OfKind(event.Closure)
			require.Len(t, closure, 1)
			assert.Equal(t, []string{"fetch", "clean"}, closure[0].Tasks)

			// A second run of the same closure executes nothing.
			require.NoError(t, r.Run(ctx, rcFor("clean", mode, 2)))
			assert.Equal(t, 2, f.tracker.Total())
			assert.ElementsMatch(t, []string{"fetch", "clean"}, f.log.Tasks(event.TaskSkipped))
		})
	}
}

func TestRun_HonorsArtifactsProducedOutOfBand(t *testing.T) {
	f := fetchClean(t, 0)
	f.store.put("raw", "from elsewhere")

	require.NoError(t, f.runner().Run(context.Background(), rcFor("report", runctx.ModeNone, 0)))
	assert.Equal(t, 0, f.tracker.Calls("fetch"))
	assert.Equal(t, 1, f.tracker.Calls("clean"))
	assert.Equal(t, 1, f.tracker.Calls("report"))
}

func TestRun_AllTasksWithoutTarget(t *testing.T) {
	f := fetchClean(t, 0)
	require.NoError(t, f.runner().Run(context.Background(), rcFor("", runctx.ModeNone, 0)))
	assert.Equal(t, []string{"fetch", "clean", "report", "unrelated"}, f.log.Tasks(event.TaskStarted))
}

func TestRun_ResumesAfterFailure(t *testing.T) {
	f := newFixture(t, 0)
	fail := true
	f.add("fetch", nil, []string{"raw"}, nil)
	f.add("clean", []string{"raw"}, []string{"cleaned"}, func(ctx context.Context, in task.Inputs, rc *runctx.Context) (any, error) {
		if fail {
			return nil, errors.New("network down")
		}
		return "ok", nil
	})
	r := f.runner()

	err := r.Run(context.Background(), rcFor("clean", runctx.ModeNone, 0))
	require.ErrorContains(t, err, "task <clean>: network down")
	assert.True(t, f.store.has("raw"))
	assert.False(t, f.store.has("cleaned"))
	finished := f.log.OfKind(event.RunFinished)
	require.Len(t, finished, 1)
	assert.Error(t, finished[0].Err)

	fail = false
	require.NoError(t, r.Run(context.Background(), rcFor("clean", runctx.ModeNone, 0)))
	assert.Equal(t, 1, f.tracker.Calls("fetch"), "completed producers are not re-run")
	assert.True(t, f.store.has("cleaned"))
}

func TestRun_ThreadsRespectTopology(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)
	f.add("fetch", nil, []string{"raw"}, nil)
	f.add("left", []string{"raw"}, []string{"l"}, nil)
	f.add("right", []string{"raw"}, []string{"r"}, nil)
	f.add("middle", []string{"raw"}, []string{"m"}, nil)
	f.add("join", []string{"l", "r", "m"}, []string{"joined"}, nil)

	require.NoError(t, f.runner().Run(context.Background(), rcFor("join", runctx.ModeThreads, 4)))

	fetch, join := f.tracker.Record("fetch"), f.tracker.Record("join")
	for _, name := range []string{"left", "right", "middle"} {
		rec := f.tracker.Record(name)
		require.NotNil(t, rec, name)
		assert.False(t, rec.Start.Before(fetch.End), "%s started before its producer finished", name)
		assert.False(t, join.Start.Before(rec.End), "join started before %s finished", name)
	}
	assert.Greater(t, f.tracker.MaxInFlight(), 1, "independent tasks run concurrently")
	assert.Equal(t, 5, f.tracker.Total())
}

func TestRun_ParallelFailureIsSurfaced(t *testing.T) {
	f := newFixture(t, 0)
	boom := errors.New("boom")
	f.add("fetch", nil, []string{"raw"}, nil)
	f.add("bad", []string{"raw"}, []string{"b"}, func(context.Context, task.Inputs, *runctx.Context) (any, error) {
		return nil, boom
	})
	f.add("good", []string{"raw"}, []string{"g"}, nil)
	f.add("join", []string{"b", "g"}, []string{"j"}, nil)

	done := make(chan error, 1)
	go func() { done <- f.runner().Run(context.Background(), rcFor("", runctx.ModeThreads, 2)) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 0, f.tracker.Calls("join"))
		assert.Equal(t, []string{"bad"}, f.log.Tasks(event.TaskFailed))
	case <-time.After(5 * time.Second):
		t.Fatal("run did not terminate after a worker failure")
	}
}

func TestRun_PanicsBecomeErrors(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t, 0)
			f.add("explode", nil, []string{"x"}, func(context.Context, task.Inputs, *runctx.Context) (any, error) {
				panic("kaboom")
			})
			err := f.runner().Run(context.Background(), rcFor("", mode, 1))
			assert.ErrorContains(t, err, "task <explode> panicked: kaboom")
		})
	}
}

func TestRun_StallsInsteadOfLooping(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t, 0)
			f.add("fetch", nil, []string{"raw"}, nil)
			f.add("clean", []string{"raw"}, []string{"cleaned"}, nil)
			f.store.drop["raw"] = true

			err := f.runner().Run(context.Background(), rcFor("clean", mode, 2))
			require.ErrorIs(t, err, ErrStalled)
			assert.Contains(t, err.Error(), "task <fetch>")
			assert.Equal(t, 1, f.tracker.Calls("fetch"))
			assert.Equal(t, 0, f.tracker.Calls("clean"))
		})
	}
}

func TestRun_ConfigurationErrors(t *testing.T) {
	t.Run("unresolved producer", func(t *testing.T) {
		f := newFixture(t, 0)
		f.resource("features")
		f.add("train", []string{"features"}, []string{"model"}, nil)
		err := f.runner().Run(context.Background(), rcFor("train", runctx.ModeNone, 0))
		require.ErrorIs(t, err, pipeline.ErrUnresolvedProducer)
		assert.Zero(t, f.tracker.Total())
	})

	t.Run("unknown target", func(t *testing.T) {
		f := fetchClean(t, 0)
		err := f.runner().Run(context.Background(), rcFor("ghost", runctx.ModeNone, 0))
		assert.ErrorIs(t, err, pipeline.ErrUnknownTask)
	})

	t.Run("process mode needs a launcher", func(t *testing.T) {
		f := fetchClean(t, 0)
		err := f.runner().Run(context.Background(), rcFor("", runctx.ModeProcesses, 2))
		assert.ErrorIs(t, err, ErrNoLauncher)
	})

	t.Run("output arity", func(t *testing.T) {
		f := newFixture(t, 0)
		f.add("split", nil, []string{"a", "b"}, func(context.Context, task.Inputs, *runctx.Context) (any, error) {
			return task.Return("only one"), nil
		})
		err := f.runner().Run(context.Background(), rcFor("", runctx.ModeNone, 0))
		assert.ErrorIs(t, err, task.ErrOutputArity)
	})
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := fetchClean(t, 0)
	for _, mode := range modes {
		err := f.runner().Run(ctx, rcFor("", mode, 2))
		assert.ErrorIs(t, err, context.Canceled, string(mode))
	}
	assert.Zero(t, f.tracker.Total())
}

func TestRun_EventsCarryRunID(t *testing.T) {
	f := fetchClean(t, 0)
	require.NoError(t, f.runner().Run(context.Background(), rcFor("fetch", runctx.ModeNone, 0)))

	events := f.log.Events()
	require.NotEmpty(t, events)
	id := events[0].RunID
	assert.NotEmpty(t, id)
	for _, e := range events {
		assert.Equal(t, id, e.RunID, "event %s", e.Kind)
	}
	assert.Equal(t, event.RunStarted, events[0].Kind)
	assert.Equal(t, event.RunFinished, events[len(events)-1].Kind)
	assert.Equal(t, []string{"raw"}, f.log.Locations(event.ResourceSaved))
}

func TestRun_DefaultWorkersAreVisibleToTasks(t *testing.T) {
	f := newFixture(t, 0)
	var seen int
	f.add("count", nil, []string{"n"}, func(_ context.Context, _ task.Inputs, rc *runctx.Context) (any, error) {
		n, err := rc.Int(runctx.KeyWorkers)
		seen = n
		return n, err
	})

	rc := rcFor("", runctx.ModeThreads, 0)
	require.NoError(t, f.runner().Run(context.Background(), rc))
	assert.Equal(t, runtime.NumCPU(), seen)
	assert.Zero(t, rc.Workers, "the caller's context is not modified")

	started := f.log.OfKind(event.RunStarted)
	require.Len(t, started, 1)
	assert.Equal(t, runtime.NumCPU(), started[0].Fields["workers"])
}
