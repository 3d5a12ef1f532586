// Package event defines the recording collaborator injected into the
// pipeline engine.
//
// The engine never writes log lines itself. Every noteworthy step of a run
// (closure computed, task started, resource saved, artifact deleted, ...) is
// reported as an Event to a Recorder supplied at construction time. The
// application decides where events go: a slog logger, a socket.io dashboard,
// a test recorder, or nowhere at all.
package event
