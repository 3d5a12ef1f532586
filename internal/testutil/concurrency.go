package testutil

import (
	"sync"
	"time"
)

// Tracker records when named units of work run and how many overlap. It is
// shared by the scheduler tests that assert ordering and parallelism.
type Tracker struct {
	mu          sync.Mutex
	records     map[string]*ExecutionRecord
	calls       map[string]int
	inFlight    int
	maxInFlight int
	sleep       time.Duration
}

// NewTracker creates a tracker. Each tracked unit sleeps for sleep before
// finishing, which widens the window in which overlap can be observed.
func NewTracker(sleep time.Duration) *Tracker {
	return &Tracker{
		records: make(map[string]*ExecutionRecord),
		calls:   make(map[string]int),
		sleep:   sleep,
	}
}

// Enter marks name as started and returns the function that marks it done.
func (t *Tracker) Enter(name string) (done func()) {
	t.mu.Lock()
	t.calls[name]++
	t.inFlight++
	if t.inFlight > t.maxInFlight {
		t.maxInFlight = t.inFlight
	}
	rec := &ExecutionRecord{Start: time.Now()}
	t.records[name] = rec
	t.mu.Unlock()

	return func() {
		if t.sleep > 0 {
			time.Sleep(t.sleep)
		}
		t.mu.Lock()
		rec.End = time.Now()
		t.inFlight--
		t.mu.Unlock()
	}
}

// Record returns the last execution record for name, or nil.
func (t *Tracker) Record(name string) *ExecutionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.records[name]
}

// Calls returns how many times name was entered.
func (t *Tracker) Calls(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[name]
}

// Total returns the number of entries across all names.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.calls {
		n += c
	}
	return n
}

// MaxInFlight returns the highest number of concurrently running units seen.
func (t *Tracker) MaxInFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxInFlight
}
