package scheduler

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vk/artiflow/internal/pipeline"
	"github.com/vk/artiflow/internal/resource"
	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/task"
	"github.com/vk/artiflow/internal/testutil"
)

// memStore is an in-memory resource.Store. Locations listed in drop accept
// writes but never retain them.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	drop map[string]bool
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, drop: map[string]bool{}}
}

func (m *memStore) Exists(_ context.Context, loc string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[loc]
	return ok, nil
}

func (m *memStore) Open(_ context.Context, loc string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[loc]
	if !ok {
		return nil, resource.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memStore) Write(_ context.Context, loc string, fn func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.drop[loc] {
		m.data[loc] = buf.Bytes()
	}
	return nil
}

func (m *memStore) Remove(_ context.Context, loc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[loc]; !ok {
		return resource.ErrNotFound
	}
	delete(m.data, loc)
	return nil
}

func (m *memStore) put(loc, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[loc] = []byte(value)
}

func (m *memStore) has(loc string) bool {
	ok, _ := m.Exists(context.Background(), loc)
	return ok
}

type fixture struct {
	t       *testing.T
	p       *pipeline.Pipeline
	store   *memStore
	tracker *testutil.Tracker
	log     *testutil.EventLog
}

func newFixture(t *testing.T, sleep time.Duration) *fixture {
	log := &testutil.EventLog{}
	return &fixture{
		t:       t,
		p:       pipeline.New(pipeline.WithRecorder(log)),
		store:   newMemStore(),
		tracker: testutil.NewTracker(sleep),
		log:     log,
	}
}

func (f *fixture) resource(name string) {
	f.t.Helper()
	if _, err := f.p.Resource(name); err == nil {
		return
	}
	require.NoError(f.t, f.p.AddResource(resource.New(name, name, f.store, resource.YAMLCodec{})))
}

// add registers a task. A nil fn produces one string per output.
func (f *fixture) add(name string, inputs, outputs []string, fn task.Func) {
	f.t.Helper()
	for _, r := range append(append([]string(nil), inputs...), outputs...) {
		f.resource(r)
	}
	if fn == nil {
		fn = f.produce(name, len(outputs))
	}
	_, err := f.p.Register(name, fn)
	require.NoError(f.t, err)
	require.NoError(f.t, f.p.DeclareInputs(name, inputs...))
	require.NoError(f.t, f.p.DeclareOutputs(name, outputs...))
}

func (f *fixture) produce(name string, n int) task.Func {
	return func(context.Context, task.Inputs, *runctx.Context) (any, error) {
		done := f.tracker.Enter(name)
		defer done()
		out := make(task.Tuple, n)
		for i := range out {
			out[i] = name
		}
		return out, nil
	}
}

func (f *fixture) runner(opts ...Option) *Runner {
	return New(f.p, append([]Option{WithRecorder(f.log)}, opts...)...)
}

func rcFor(target string, mode runctx.Mode, workers int) *runctx.Context {
	rc := runctx.New(nil)
	rc.Target = target
	rc.Parallelism = mode
	rc.Workers = workers
	return rc
}

// fetchClean builds fetch -> raw -> clean -> cleaned -> report -> summary,
// plus an unrelated task.
func fetchClean(t *testing.T, sleep time.Duration) *fixture {
	f := newFixture(t, sleep)
	f.add("report", []string{"cleaned"}, []string{"summary"}, nil)
	f.add("clean", []string{"raw"}, []string{"cleaned"}, nil)
	f.add("fetch", nil, []string{"raw"}, nil)
	f.add("unrelated", nil, []string{"other"}, nil)
	return f
}
