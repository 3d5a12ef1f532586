package runctx

import (
	"fmt"
	"strings"
)

// Mode selects how the scheduler dispatches runnable tasks.
type Mode string

const (
	// ModeNone runs one task at a time on the calling goroutine.
	ModeNone Mode = "none"
	// ModeThreads runs tasks on a bounded pool of goroutines.
	ModeThreads Mode = "threads"
	// ModeProcesses runs every task in its own worker process, bounded by
	// the worker count.
	ModeProcesses Mode = "processes"
)

// ParseMode accepts the canonical mode names plus the aliases "threaded" and
// "multiprocess". An empty string selects ModeNone.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ModeNone, nil
	case "threads", "threaded":
		return ModeThreads, nil
	case "processes", "multiprocess":
		return ModeProcesses, nil
	default:
		return "", fmt.Errorf("parallelism has to be one of none, threads or processes, got %q", s)
	}
}

// Parallel reports whether the mode dispatches to a worker pool.
func (m Mode) Parallel() bool {
	return m == ModeThreads || m == ModeProcesses
}

func (m Mode) orNone() Mode {
	if m == "" {
		return ModeNone
	}
	return m
}
