// Package scheduler drives a pipeline to completion. A run computes the
// closure of tasks needed for the target, then repeatedly derives which of
// them are complete and which are ready from the live state of their
// artifacts, and dispatches runnable tasks until every task in the closure is
// complete. Dispatch is sequential or goes to a bounded pool of goroutines or
// worker processes.
//
// Because state is re-derived from the artifact store on every iteration,
// artifacts produced by earlier runs or out of band are honored, and a
// second run of an unchanged closure executes nothing.
package scheduler
