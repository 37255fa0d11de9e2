// Package model holds the shell host's mutable world: surfaces own
// containers, containers own groups, groups own work items.
//
// Records live in generational arenas and reference each other by id,
// never by pointer. A subsystem holding a stale handle reads nil, not
// freed memory. Ownership flows strictly downward; removal cascades
// top-down through explicit calls.
//
// Nothing in this package is goroutine safe. The orchestrator is the
// single writer; everyone else gets snapshots.
package model
