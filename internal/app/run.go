package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vk/artiflow/internal/ctxlog"
	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/scheduler"
)

// Run brings the configured target (every task when none is set) to
// completion.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	rc, err := a.Context()
	if err != nil {
		return err
	}

	a.logger.Info("🚀 Starting run...", "task", rc.Target, "parallelism", rc.Parallelism)
	if err := a.runner().Run(ctx, rc); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	a.logger.Info("🏁 Execution finished.")
	return nil
}

// Undo deletes the outputs of the configured target, extended downstream
// when requested, and returns the deleted locations.
func (a *App) Undo(ctx context.Context) ([]string, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	rc, err := a.Context()
	if err != nil {
		return nil, err
	}
	deleted, err := a.runner().Undo(ctx, rc)
	if err != nil {
		return deleted, fmt.Errorf("undo failed: %w", err)
	}
	a.logger.Info("🧹 Undo finished.", "deleted", len(deleted))
	return deleted, nil
}

// ExecTask runs exactly one task with a context serialized by a parent
// process. It is the child side of the processes parallelism mode.
func (a *App) ExecTask(ctx context.Context, name, payload string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger.With("task", name, "pid", os.Getpid()))
	var rc runctx.Context
	if err := json.Unmarshal([]byte(payload), &rc); err != nil {
		return err
	}
	t, err := a.pipeline.Task(name)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Worker process started.")
	return t.Run(ctx, &rc)
}

// List writes one line per task: its name, inputs and outputs. With order
// set the tasks are listed in an execution order, otherwise in declaration
// order.
func (a *App) List(w io.Writer, order bool) error {
	tasks := a.pipeline.Tasks()
	if order {
		var err error
		if tasks, err = a.pipeline.Order(); err != nil {
			return err
		}
	}
	for _, t := range tasks {
		var in, out []string
		for _, r := range t.Inputs() {
			in = append(in, r.Name())
		}
		for _, r := range t.Outputs() {
			out = append(out, r.Name())
		}
		if _, err := fmt.Fprintf(w, "%s\t[%s] -> [%s]\n", t.Name(), strings.Join(in, ", "), strings.Join(out, ", ")); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) runner() *scheduler.Runner {
	return scheduler.New(a.pipeline,
		scheduler.WithRecorder(a.recorder),
		scheduler.WithProcessLauncher(&scheduler.ProcessLauncher{
			Args:   a.config.WorkerArgs,
			Stdout: a.outW,
			Stderr: os.Stderr,
		}),
	)
}
