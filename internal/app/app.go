package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vk/artiflow/internal/config"
	"github.com/vk/artiflow/internal/ctxlog"
	"github.com/vk/artiflow/internal/event"
	"github.com/vk/artiflow/internal/pipeline"
	"github.com/vk/artiflow/internal/registry"
)

// eventsConnectTimeout bounds how long startup waits for the events server.
const eventsConnectTimeout = 15 * time.Second

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *registry.Registry
	model      *config.Model
	converter  config.Converter
	pipeline   *pipeline.Pipeline
	recorder   event.Recorder
	httpServer *http.Server
	closers    []func() error
}

// NewApp is the constructor for the main application. It loads the pipeline
// definition, registers the Go handlers of modules (the built-in modules when
// none are given) and binds the two into a validated pipeline.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	model, converter, err := loader.Load(ctx, cfg.PipelinePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline definition: %w", err)
	}
	logger.Debug("Pipeline definition loaded.", "params", len(model.Params), "resources", len(model.Resources), "tasks", len(model.Tasks))

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.New(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules), "handlers", reg.Names())

	if err := reg.Validate(ctx, model); err != nil {
		return nil, err
	}
	logger.Debug("Registry validation passed.")

	a := &App{
		ctx:       ctx,
		outW:      outW,
		logger:    logger,
		config:    cfg,
		registry:  reg,
		model:     model,
		converter: converter,
	}

	if err := a.setupRecorder(); err != nil {
		a.Close()
		return nil, err
	}
	if a.pipeline, err = a.buildPipeline(); err != nil {
		a.Close()
		return nil, err
	}
	logger.Debug("Pipeline built.", "tasks", len(a.pipeline.Tasks()))
	return a, nil
}

// setupRecorder logs every event and, when an events URL is configured, also
// streams them to the socket.io server.
func (a *App) setupRecorder() error {
	recorders := []event.Recorder{event.NewSlogRecorder(a.logger)}
	if a.config.EventsURL != "" {
		sio, err := event.DialSocketIO(a.ctx, a.config.EventsURL, event.SocketIOOptions{ConnectTimeout: eventsConnectTimeout})
		if err != nil {
			return fmt.Errorf("failed to connect to events server: %w", err)
		}
		a.closers = append(a.closers, sio.Close)
		recorders = append(recorders, sio)
	}
	a.recorder = event.Multi(recorders...)
	return nil
}

// Pipeline returns the bound pipeline. This is primarily for testing.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Close releases the health check server, the events connection and the
// database pool, in reverse order of acquisition.
func (a *App) Close() error {
	err := a.closeHealthCheckServer()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if cerr := a.closers[i](); cerr != nil && err == nil {
			err = cerr
		}
	}
	a.closers = nil
	return err
}
