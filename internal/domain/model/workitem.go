package model

import (
	"time"

	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// WorkItem is one runnable unit of UI work inside a group.
type WorkItem struct {
	Handle    id.Handle
	TaskID    int
	Component types.ComponentName
	Affinity  string

	State types.LifecycleState

	Finishing bool
	Visible   bool
	Idle      bool
	Sleeping  bool

	// NewIntentCount counts deliver-to-top redeliveries on this item.
	NewIntentCount int

	// LaunchToken ties async host acks back to this launch attempt.
	LaunchToken string

	// CrashCount tracks consecutive host failures for this item.
	CrashCount int

	// Process is the host's process handle, zero while unattached.
	Process uint64

	CreatedAt time.Time
}

// CanTransition defers to the lifecycle legality table.
func (w *WorkItem) CanTransition(next types.LifecycleState) bool {
	return w.State.CanTransition(next)
}

// Stuck reports whether the item is mid-transition and still owes an
// acknowledgment from the process host.
func (w *WorkItem) Stuck() bool {
	switch w.State {
	case types.StateInitializing, types.StatePausing, types.StateStopping, types.StateDestroying:
		return true
	}
	return false
}
