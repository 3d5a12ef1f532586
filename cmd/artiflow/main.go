package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/artiflow/internal/app"
	"github.com/vk/artiflow/internal/cli"
	"github.com/vk/artiflow/internal/hcl"
)

// main is the entrypoint for the artiflow application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := exitCode(run(ctx, os.Stdout, os.Args[1:]), os.Stderr)
	stop()
	os.Exit(code)
}

// exitCode reports err on errW and maps it to the process exit code.
func exitCode(err error, errW io.Writer) int {
	if err == nil {
		return 0
	}
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(errW, exitErr.Message)
		return exitErr.Code
	}
	fmt.Fprintln(errW, err)
	return 1
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) (err error) {
	inv, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// Module registration panics on programming errors such as a handler
	// registered twice.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	a, err := app.NewApp(ctx, outW, inv.Config, hcl.NewLoader())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	switch inv.Command {
	case cli.CommandUndo:
		deleted, err := a.Undo(ctx)
		for _, loc := range deleted {
			fmt.Fprintf(outW, "deleted %s\n", loc)
		}
		return err
	case cli.CommandList:
		return a.List(outW, inv.Order)
	case cli.CommandExecTask:
		return a.ExecTask(ctx, inv.Config.Task, inv.Context)
	default:
		return a.Run(ctx)
	}
}
