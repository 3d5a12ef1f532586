package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/vk/artiflow/internal/runctx"
	"github.com/vk/artiflow/internal/task"
)

// maxStderrTail bounds how much child stderr is quoted in an error.
const maxStderrTail = 2048

// ProcessLauncher runs each task in a child process. The child is started as
//
//	Path Args... --task NAME --context JSON
//
// and is expected to rebuild the same pipeline, run the named task with the
// decoded context and exit non-zero on failure.
type ProcessLauncher struct {
	// Path is the executable to start. Empty means the current executable.
	Path string
	// Args precede the task flags, e.g. the subcommand and pipeline flags.
	Args []string
	// Env is appended to the parent's environment.
	Env []string
	// Stdout and Stderr receive the child's output when set.
	Stdout io.Writer
	Stderr io.Writer
}

// Launch implements Launcher.
func (l *ProcessLauncher) Launch(ctx context.Context, t *task.Task, rc *runctx.Context) error {
	path := l.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("task <%s>: locating executable: %w", t.Name(), err)
		}
		path = exe
	}

	payload, err := json.Marshal(rc)
	if err != nil {
		return fmt.Errorf("task <%s>: %w", t.Name(), err)
	}
	args := append(append([]string(nil), l.Args...), "--task", t.Name(), "--context", string(payload))

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = append(os.Environ(), l.Env...)
	if l.Stdout != nil {
		cmd.Stdout = l.Stdout
	}
	tail := &tailBuffer{max: maxStderrTail}
	if l.Stderr != nil {
		cmd.Stderr = io.MultiWriter(l.Stderr, tail)
	} else {
		cmd.Stderr = tail
	}

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(tail.String()); msg != "" {
			return fmt.Errorf("task <%s>: worker process: %w: %s", t.Name(), err, msg)
		}
		return fmt.Errorf("task <%s>: worker process: %w", t.Name(), err)
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	b.buf.Write(p)
	if over := b.buf.Len() - b.max; over > 0 {
		b.buf.Next(over)
	}
	return n, nil
}

func (b *tailBuffer) String() string { return b.buf.String() }
