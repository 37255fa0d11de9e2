package model

import (
	"time"

	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// Group is an ordered sequence of work items sharing affinity and
// back-navigation semantics.
type Group struct {
	ID     int
	UserID int

	// Items is bottom to top.
	Items []id.Handle

	// Container is a back-reference for lookup only; invalid while the
	// group is detached mid-move.
	Container id.Handle

	BaseComponent  types.ComponentName
	Affinity       string
	ReturnTo       types.ReturnTo
	Resizable      bool
	SupportedModes []types.WindowingMode
	LockAuth       types.LockAuth
	LaunchMode     types.LaunchMode

	// Forgotten groups skip the recency store when they empty out:
	// set on explicit removal, never on background eviction.
	Forgotten bool

	LastActive time.Time
}

// TopItem returns the topmost item handle, or an invalid handle when
// the group is empty.
func (g *Group) TopItem() id.Handle {
	if len(g.Items) == 0 {
		return 0
	}
	return g.Items[len(g.Items)-1]
}

// Empty reports whether the group holds no items.
func (g *Group) Empty() bool { return len(g.Items) == 0 }

// SupportsMode reports whether the group may live in the given
// windowing mode. An empty SupportedModes list means fullscreen only.
func (g *Group) SupportsMode(mode types.WindowingMode) bool {
	if mode == types.ModeFullscreen {
		return true
	}
	if !g.Resizable {
		return false
	}
	if len(g.SupportedModes) == 0 {
		return false
	}
	for _, m := range g.SupportedModes {
		if m == mode {
			return true
		}
	}
	return false
}

// removeItem drops a handle from the ordered sequence.
func (g *Group) removeItem(h id.Handle) {
	for i, have := range g.Items {
		if have == h {
			g.Items = append(g.Items[:i], g.Items[i+1:]...)
			return
		}
	}
}

// GroupInfo is the serializable description of a group, used by the
// recency store and diagnostics dumps.
type GroupInfo struct {
	ID             int                   `json:"id"`
	UserID         int                   `json:"user_id"`
	BaseComponent  types.ComponentName   `json:"base_component"`
	Affinity       string                `json:"affinity"`
	ReturnTo       types.ReturnTo        `json:"return_to"`
	Resizable      bool                  `json:"resizable"`
	SupportedModes []types.WindowingMode `json:"supported_modes,omitempty"`
	LockAuth       types.LockAuth        `json:"lock_auth"`
	LaunchMode     types.LaunchMode      `json:"launch_mode"`
	ActivityType   types.ActivityType    `json:"activity_type"`
	WindowingMode  types.WindowingMode   `json:"windowing_mode"`
	Components     []types.ComponentName `json:"components,omitempty"`
	LastActive     time.Time             `json:"last_active"`
}
