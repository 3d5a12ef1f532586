// Package testutil holds helpers shared by the package tests: a goroutine
// safe log buffer, an in-memory event recorder and an execution tracker.
package testutil
