// Package state persists a record of each apply run.
//
// Records are JSON files in the runs directory, one per run, named by run
// ID so that lexical order is chronological. Writes are atomic.
package state
