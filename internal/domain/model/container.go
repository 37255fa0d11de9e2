package model

import (
	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// Container is an ordered collection of groups with one windowing mode
// and one activity type.
type Container struct {
	Handle       id.Handle
	Mode         types.WindowingMode
	ActivityType types.ActivityType

	// Groups is bottom to top; the topmost group is frontmost.
	Groups []int

	// Surface is the owning surface id; nil while detached during a move.
	Surface *int

	Bounds types.Bounds

	// Focusable can be cleared by the restrictive-mode guard.
	Focusable bool
	Visible   bool
}

// Singleton reports whether at most one container like this may exist
// per surface. Single-task mode containers hold exactly one group.
func (c *Container) Singleton() bool {
	return c.ActivityType.Singleton() || c.Mode == types.ModeSingleTask
}

// CanHold reports whether a group of the given type and mode preference
// belongs in this container. Home containers only ever hold home
// groups, and the same per type for recents and assistant.
func (c *Container) CanHold(activityType types.ActivityType, mode types.WindowingMode) bool {
	switch c.ActivityType {
	case types.TypeHome, types.TypeRecents, types.TypeAssistant:
		return activityType == c.ActivityType
	case types.TypeStandard:
		if activityType != types.TypeStandard {
			return false
		}
		if c.Mode == types.ModeSingleTask && len(c.Groups) > 0 {
			return false
		}
		return mode == c.Mode || mode == types.ModeFullscreen && c.Mode == types.ModeFreeform
	}
	return false
}

// TopGroup returns the frontmost group id, or zero when empty.
func (c *Container) TopGroup() int {
	if len(c.Groups) == 0 {
		return 0
	}
	return c.Groups[len(c.Groups)-1]
}

// Empty reports whether the container holds no groups.
func (c *Container) Empty() bool { return len(c.Groups) == 0 }

// Attached reports whether the container currently sits on a surface.
func (c *Container) Attached() bool { return c.Surface != nil }

// HasGroup reports membership.
func (c *Container) HasGroup(taskID int) bool {
	for _, tid := range c.Groups {
		if tid == taskID {
			return true
		}
	}
	return false
}

func (c *Container) removeGroup(taskID int) {
	for i, tid := range c.Groups {
		if tid == taskID {
			c.Groups = append(c.Groups[:i], c.Groups[i+1:]...)
			return
		}
	}
}

func (c *Container) moveGroupToTop(taskID int) {
	c.removeGroup(taskID)
	c.Groups = append(c.Groups, taskID)
}
