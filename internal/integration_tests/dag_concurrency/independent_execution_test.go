package integration_tests

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/artiflow/internal/app"
	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/testutil"
)

func independentPipeline(n int) (string, []string) {
	var b strings.Builder
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = fmt.Sprintf("T%d", i)
		fmt.Fprintf(&b, "resource \"r%d\" { location = \"r%d.csv\" }\n", i, i)
		fmt.Fprintf(&b, "task %q { outputs = [\"r%d\"] }\n", names[i], i)
	}
	return b.String(), names
}

// Test for: Independent tasks overlap, bounded by the worker count.
func TestDagConcurrency_IndependentExecution(t *testing.T) {
	cases := []struct {
		mode        runctx.Mode
		workers     int
		wantMaxLow  int
		wantMaxHigh int
	}{
		{mode: runctx.ModeNone, workers: 4, wantMaxLow: 1, wantMaxHigh: 1},
		{mode: runctx.ModeThreads, workers: 1, wantMaxLow: 1, wantMaxHigh: 1},
		{mode: runctx.ModeThreads, workers: 3, wantMaxLow: 2, wantMaxHigh: 3},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/%d", tc.mode, tc.workers), func(t *testing.T) {
			// --- Arrange ---
			src, names := independentPipeline(6)
			tracker := testutil.NewTracker(50 * time.Millisecond)
			testApp, _ := app.SetupAppTest(t, app.Config{
				PipelinePath: writePipeline(t, src),
				Parallelism:  tc.mode,
				Workers:      tc.workers,
			}, &trackedModule{names: names, tracker: tracker})

			// --- Act ---
			require.NoError(t, testApp.Run(context.Background()))

			// --- Assert ---
			assert.Equal(t, 6, tracker.Total())
			assert.GreaterOrEqual(t, tracker.MaxInFlight(), tc.wantMaxLow)
			assert.LessOrEqual(t, tracker.MaxInFlight(), tc.wantMaxHigh)
		})
	}
}
