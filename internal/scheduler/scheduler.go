package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/artiflow/internal/ctxlog"
	"github.com/vk/artiflow/internal/event"
	"github.com/vk/artiflow/internal/pipeline"
	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/task"
)

var (
	// ErrStalled is returned when incomplete tasks remain but none can run.
	ErrStalled = errors.New("run stalled")
	// ErrNoLauncher is returned for process mode without a process launcher.
	ErrNoLauncher = errors.New("no process launcher configured")
)

// Launcher executes a single task. The scheduler calls it from its worker
// goroutines.
type Launcher interface {
	Launch(ctx context.Context, t *task.Task, rc *runctx.Context) error
}

// InProcess runs tasks on the calling goroutine.
type InProcess struct{}

// Launch implements Launcher.
func (InProcess) Launch(ctx context.Context, t *task.Task, rc *runctx.Context) error {
	return t.Run(ctx, rc)
}

// Runner runs and undoes the tasks of a pipeline.
type Runner struct {
	pipeline *pipeline.Pipeline
	rec      event.Recorder
	procs    Launcher
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder sets the recorder for engine events.
func WithRecorder(r event.Recorder) Option {
	return func(rn *Runner) { rn.rec = r }
}

// WithProcessLauncher sets the launcher used in process mode.
func WithProcessLauncher(l Launcher) Option {
	return func(rn *Runner) { rn.procs = l }
}

// New creates a runner for p.
func New(p *pipeline.Pipeline, opts ...Option) *Runner {
	r := &Runner{pipeline: p, rec: event.Discard}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run brings every task in the closure of rc.Target (all tasks when empty)
// to completion.
func (r *Runner) Run(ctx context.Context, rc *runctx.Context) (err error) {
	runID := uuid.NewString()
	ctx = event.WithRunID(ctx, runID)
	logger := ctxlog.FromContext(ctx).With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)

	if rc.Workers <= 0 {
		resolved := *rc
		resolved.Workers = runtime.NumCPU()
		rc = &resolved
	}
	event.Emit(ctx, r.rec, event.Event{
		Kind: event.RunStarted,
		Task: rc.Target,
		Fields: map[string]any{
			"context":     rc.Display(),
			"parallelism": string(rc.Parallelism),
			"workers":     rc.Workers,
		},
	})
	defer func() {
		event.Emit(ctx, r.rec, event.Event{Kind: event.RunFinished, Task: rc.Target, Err: err})
	}()

	closure, err := r.Closure(rc.Target)
	if err != nil {
		return err
	}
	event.Emit(ctx, r.rec, event.Event{Kind: event.Closure, Task: rc.Target, Tasks: taskNames(closure)})
	if err := r.pipeline.CheckProducers(closure); err != nil {
		return err
	}

	if !rc.Parallelism.Parallel() {
		return r.runSequential(ctx, rc, closure)
	}
	var l Launcher = InProcess{}
	if rc.Parallelism == runctx.ModeProcesses {
		if r.procs == nil {
			return ErrNoLauncher
		}
		l = r.procs
	}
	return r.runParallel(ctx, rc, closure, l, rc.Workers)
}

// Closure returns the target and everything upstream of it, or every task
// when target is empty, in topological order.
func (r *Runner) Closure(target string) ([]*task.Task, error) {
	order, err := r.pipeline.Order()
	if err != nil {
		return nil, err
	}
	if target == "" {
		return order, nil
	}
	up, err := r.pipeline.Upstream(target)
	if err != nil {
		return nil, err
	}
	members := map[string]bool{target: true}
	for _, t := range up {
		members[t.Name()] = true
	}
	closure := make([]*task.Task, 0, len(members))
	for _, t := range order {
		if members[t.Name()] {
			closure = append(closure, t)
		}
	}
	return closure, nil
}

// snapshot is the derived state of a closure at one point in time.
type snapshot struct {
	complete map[string]bool
	ready    map[string]bool
}

func (s snapshot) done(closure []*task.Task) bool {
	return len(s.complete) == len(closure)
}

func (s snapshot) runnable(t *task.Task) bool {
	return !s.complete[t.Name()] && s.ready[t.Name()]
}

// observe re-derives completion and readiness from the artifact store.
func (r *Runner) observe(ctx context.Context, rc *runctx.Context, closure []*task.Task) (snapshot, error) {
	s := snapshot{complete: map[string]bool{}, ready: map[string]bool{}}
	var pending []string
	for _, t := range closure {
		done, err := t.IsComplete(ctx, rc)
		if err != nil {
			return s, err
		}
		if done {
			s.complete[t.Name()] = true
			continue
		}
		pending = append(pending, t.Name())
		ready, err := t.IsReady(ctx, rc)
		if err != nil {
			return s, err
		}
		if ready {
			s.ready[t.Name()] = true
		}
	}
	event.Emit(ctx, r.rec, event.Event{
		Kind:   event.State,
		Tasks:  pending,
		Fields: map[string]any{"complete": len(s.complete), "ready": len(s.ready)},
	})
	return s, nil
}

func (r *Runner) skipCompleted(ctx context.Context, closure []*task.Task, s snapshot) {
	for _, t := range closure {
		if s.complete[t.Name()] {
			event.Emit(ctx, r.rec, event.Event{Kind: event.TaskSkipped, Task: t.Name(), Message: "outputs already exist"})
		}
	}
}

func (r *Runner) runSequential(ctx context.Context, rc *runctx.Context, closure []*task.Task) error {
	executed := map[string]bool{}
	for iteration := 0; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := r.observe(ctx, rc, closure)
		if err != nil {
			return err
		}
		if iteration == 0 {
			r.skipCompleted(ctx, closure, s)
		}
		if s.done(closure) {
			return nil
		}

		var next *task.Task
		for _, t := range closure {
			if s.runnable(t) {
				next = t
				break
			}
		}
		if next == nil {
			return r.stalled(ctx, rc, closure, s)
		}
		if executed[next.Name()] {
			return fmt.Errorf("%w: task <%s> finished without producing all of its outputs", ErrStalled, next.Name())
		}
		executed[next.Name()] = true

		if err := r.execute(ctx, InProcess{}, next, rc); err != nil {
			return err
		}
	}
}

type outcome struct {
	task *task.Task
	err  error
}

// runParallel submits every runnable task to a pool of workers and waits for
// one of them to finish before looking at the artifact state again. After
// the first failure nothing new is submitted; the tasks already running are
// waited for and every failure is returned.
func (r *Runner) runParallel(ctx context.Context, rc *runctx.Context, closure []*task.Task, l Launcher, workers int) error {
	logger := ctxlog.FromContext(ctx)

	jobs := make(chan *task.Task, len(closure))
	results := make(chan outcome, len(closure))
	var wg sync.WaitGroup

	logger.Debug("Starting worker pool.", "workers", workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go r.worker(ctx, i, l, rc, jobs, results, &wg)
	}
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	submitted := map[string]bool{}
	outstanding := 0
	var errs []error
	for iteration := 0; ; iteration++ {
		if len(errs) == 0 {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) == 0 {
			s, err := r.observe(ctx, rc, closure)
			if err != nil {
				errs = append(errs, err)
			} else {
				if iteration == 0 {
					r.skipCompleted(ctx, closure, s)
				}
				if s.done(closure) && outstanding == 0 {
					return nil
				}
				for _, t := range closure {
					if s.runnable(t) && !submitted[t.Name()] {
						submitted[t.Name()] = true
						outstanding++
						jobs <- t
					}
				}
				if outstanding == 0 {
					return r.stalled(ctx, rc, closure, s)
				}
			}
		}

		if outstanding == 0 {
			return errors.Join(errs...)
		}
		res := <-results
		outstanding--
		if res.err != nil {
			errs = append(errs, res.err)
		}
	}
}

// worker is the processing loop for a single pool worker.
func (r *Runner) worker(ctx context.Context, id int, l Launcher, rc *runctx.Context, jobs <-chan *task.Task, results chan<- outcome, wg *sync.WaitGroup) {
	defer wg.Done()
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", id)

	for t := range jobs {
		if err := ctx.Err(); err != nil {
			results <- outcome{task: t, err: err}
			continue
		}
		logger.Debug("Worker picked up task.", "workerID", id, "task", t.Name())
		results <- outcome{task: t, err: r.execute(ctx, l, t, rc)}
	}
	logger.Debug("Worker finished.", "workerID", id)
}

// execute launches one task and reports its start and outcome. A panic in
// the task function is turned into an error.
func (r *Runner) execute(ctx context.Context, l Launcher, t *task.Task, rc *runctx.Context) (err error) {
	event.Emit(ctx, r.rec, event.Event{
		Kind:   event.TaskStarted,
		Task:   t.Name(),
		Fields: map[string]any{"context": rc.Display()},
	})
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task <%s> panicked: %v", t.Name(), p)
		}
		elapsed := time.Since(start)
		if err != nil {
			event.Emit(ctx, r.rec, event.Event{Kind: event.TaskFailed, Task: t.Name(), Err: err,
				Fields: map[string]any{"duration": elapsed.String()}})
			return
		}
		event.Emit(ctx, r.rec, event.Event{Kind: event.TaskFinished, Task: t.Name(),
			Fields: map[string]any{"duration": elapsed.String()}})
	}()
	return l.Launch(ctx, t, rc)
}

// stalled explains which inputs block the remaining tasks.
func (r *Runner) stalled(ctx context.Context, rc *runctx.Context, closure []*task.Task, s snapshot) error {
	var details []string
	for _, t := range closure {
		if s.complete[t.Name()] {
			continue
		}
		var missing []string
		for _, in := range t.Inputs() {
			ok, err := in.Check(ctx, rc)
			if err == nil && !ok {
				missing = append(missing, "<"+in.Name()+">")
			}
		}
		if len(missing) == 0 {
			details = append(details, fmt.Sprintf("task <%s> is ready but did not produce its outputs", t.Name()))
			continue
		}
		details = append(details, fmt.Sprintf("task <%s> waits for %s", t.Name(), strings.Join(missing, ", ")))
	}
	return fmt.Errorf("%w: %s", ErrStalled, strings.Join(details, "; "))
}

// Undo deletes the outputs of rc.Target, plus everything downstream of it
// when rc.Downstream is set, or of every task when no target is given.
// Upstream artifacts are never touched. It returns the removed locations.
func (r *Runner) Undo(ctx context.Context, rc *runctx.Context) (deleted []string, err error) {
	ctx = event.WithRunID(ctx, uuid.NewString())

	var targets []*task.Task
	if rc.Target == "" {
		targets = r.pipeline.Tasks()
	} else {
		t, err := r.pipeline.Task(rc.Target)
		if err != nil {
			return nil, err
		}
		targets = []*task.Task{t}
		if rc.Downstream {
			down, err := r.pipeline.Downstream(rc.Target)
			if err != nil {
				return nil, err
			}
			targets = append(targets, down...)
		}
	}

	event.Emit(ctx, r.rec, event.Event{
		Kind:   event.UndoStarted,
		Task:   rc.Target,
		Tasks:  taskNames(targets),
		Fields: map[string]any{"downstream": rc.Downstream, "context": rc.Display()},
	})
	defer func() {
		event.Emit(ctx, r.rec, event.Event{Kind: event.UndoFinished, Task: rc.Target, Err: err,
			Fields: map[string]any{"deleted": len(deleted)}})
	}()

	for _, t := range targets {
		locs, err := t.Undo(ctx, rc)
		deleted = append(deleted, locs...)
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func taskNames(ts []*task.Task) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Name()
	}
	return out
}
