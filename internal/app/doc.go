// Package app contains the core application logic. It loads a pipeline
// definition, binds it to the registered Go task handlers and exposes the
// run, undo, list and worker entry points, decoupled from any specific
// entrypoint like a CLI.
package app
