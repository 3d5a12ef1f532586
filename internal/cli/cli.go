package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/vk/artiflow/internal/app"
	"github.com/vk/artiflow/internal/runctx"
)

// Commands understood by Parse.
const (
	CommandRun      = "run"
	CommandUndo     = "undo"
	CommandList     = "ls"
	CommandExecTask = "exec-task"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Invocation is a parsed command line.
type Invocation struct {
	Command string
	Config  *app.Config
	// Order lists tasks in execution order (ls only).
	Order bool
	// Context is the serialized run context handed to a worker (exec-task only).
	Context string
}

const usage = `
Artiflow - an incremental, artifact-addressed task runner.

Usage:
  artiflow <command> [options] [PIPELINE_PATH]

Commands:
  run     Run a task and everything it depends on (all tasks without -t).
  undo    Delete the outputs of a task (all tasks without -t).
  ls      List the tasks of the pipeline.

Arguments:
  PIPELINE_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Run "artiflow <command> -h" for the options of a command.
`

// varsFlag collects repeated name=value overrides.
type varsFlag map[string]string

func (v varsFlag) String() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + v[k]
	}
	return strings.Join(parts, ",")
}

func (v varsFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	v[name] = value
	return nil
}

// Parse processes command-line arguments. It returns the parsed invocation,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Invocation, bool, error) {
	slog.Debug("CLI parser started.")
	if len(args) == 0 {
		fmt.Fprint(output, usage)
		return nil, true, nil
	}

	command := args[0]
	switch command {
	case CommandRun, CommandUndo, CommandList, CommandExecTask:
	case "-h", "-help", "--help", "help":
		fmt.Fprint(output, usage)
		return nil, true, nil
	default:
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q: must be one of run, undo, ls", command)}
	}

	flagSet := flag.NewFlagSet("artiflow "+command, flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprintf(output, "\nUsage:\n  artiflow %s [options] [PIPELINE_PATH]\n\nOptions:\n", command)
		flagSet.PrintDefaults()
	}

	var (
		pipelinePath string
		taskName     string
		parallelism  string
		workers      int
		downstream   bool
		order        bool
		contextJSON  string
		vars         = varsFlag{}
	)
	flagSet.StringVar(&pipelinePath, "pipeline", "", "Path to the pipeline file or directory.")
	flagSet.StringVar(&pipelinePath, "f", "", "Path to the pipeline file or directory (shorthand).")
	dataDir := flagSet.String("data-dir", "", "Root directory of the local artifact store. Defaults to the working directory.")
	healthPort := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	eventsURL := flagSet.String("events-url", "", "socket.io server that receives run events, e.g. http://localhost:3000/socket.io/.")
	storeDSN := flagSet.String("store-dsn", "", "PostgreSQL DSN for resources using the postgres store.")
	flagSet.StringVar(&taskName, "task", "", "Task to run or undo. Empty means all tasks.")
	flagSet.StringVar(&taskName, "t", "", "Task to run or undo (shorthand).")

	switch command {
	case CommandRun:
		flagSet.StringVar(&parallelism, "parallelism", "none", "Execution mode. Options: 'none', 'threads', 'processes'.")
		flagSet.StringVar(&parallelism, "p", "none", "Execution mode (shorthand).")
		flagSet.IntVar(&workers, "workers", 0, "Worker pool size for parallel modes. 0 uses the number of CPUs.")
		flagSet.IntVar(&workers, "w", 0, "Worker pool size (shorthand).")
	case CommandUndo:
		flagSet.BoolVar(&downstream, "downstream", false, "Also undo every task downstream of the task.")
		flagSet.BoolVar(&downstream, "d", false, "Also undo downstream tasks (shorthand).")
	case CommandList:
		flagSet.BoolVar(&order, "order", false, "List tasks in execution order.")
	case CommandExecTask:
		flagSet.StringVar(&contextJSON, "context", "", "Serialized run context.")
	}
	paramsFile := ""
	if command == CommandRun || command == CommandUndo {
		flagSet.Var(vars, "var", "Set a parameter as name=value. Repeatable. Typed params take HCL literals, e.g. --var 'ids=[1, 2]'.")
		flagSet.StringVar(&paramsFile, "params-file", "", "YAML file of parameter values.")
	}

	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.", "command", command)

	if pipelinePath == "" && flagSet.NArg() > 0 {
		pipelinePath = flagSet.Arg(0)
	}
	if pipelinePath == "" {
		slog.Debug("No pipeline path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if command == CommandExecTask && (taskName == "" || contextJSON == "") {
		return nil, false, &ExitError{Code: 2, Message: "exec-task requires --task and --context"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		PipelinePath:    pipelinePath,
		DataDir:         *dataDir,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPort,
		EventsURL:       *eventsURL,
		StoreDSN:        *storeDSN,
		Task:            taskName,
		Parallelism:     runctx.Mode(parallelism),
		Workers:         workers,
		Downstream:      downstream,
		Vars:            vars,
		ParamsFile:      paramsFile,
		WorkerArgs:      workerArgs(pipelinePath, *dataDir, logLevel, logFormat, *storeDSN),
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "command", command)
	return &Invocation{Command: command, Config: config, Order: order, Context: contextJSON}, false, nil
}

// workerArgs are the arguments a worker process is re-invoked with. The
// process launcher appends the task name and the serialized context.
func workerArgs(pipelinePath, dataDir, logLevel, logFormat, storeDSN string) []string {
	args := []string{CommandExecTask, "--pipeline", pipelinePath, "--log-level", logLevel, "--log-format", logFormat}
	if dataDir != "" {
		args = append(args, "--data-dir", dataDir)
	}
	if storeDSN != "" {
		args = append(args, "--store-dsn", storeDSN)
	}
	return args
}
