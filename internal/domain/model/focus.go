package model

import (
	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// FocusOrder returns the surface scan order: the compositor-supplied
// order when provided, registration order otherwise.
func (s *State) FocusOrder(compositorOrder []int) []int {
	if len(compositorOrder) == 0 {
		return s.SurfaceIDs()
	}
	order := make([]int, 0, len(compositorOrder))
	for _, sid := range compositorOrder {
		if _, ok := s.surfaces[sid]; ok {
			order = append(order, sid)
		}
	}
	// Surfaces the compositor does not know yet go last.
	for _, sid := range s.surfaceOrder {
		seen := false
		for _, have := range order {
			if have == sid {
				seen = true
				break
			}
		}
		if !seen {
			order = append(order, sid)
		}
	}
	return order
}

// NextFocusable scans surfaces in focus order and returns the first
// focusable, visible container, excluding current when ignoreCurrent
// is set. Returns an invalid handle when nothing qualifies.
func (s *State) NextFocusable(current id.Handle, ignoreCurrent bool, focusOrder []int) id.Handle {
	for _, sid := range s.FocusOrder(focusOrder) {
		sf := s.surfaces[sid]
		for i := len(sf.Containers) - 1; i >= 0; i-- {
			h := sf.Containers[i]
			if ignoreCurrent && h == current {
				continue
			}
			c, ok := s.Containers.Get(h)
			if !ok {
				continue
			}
			if c.Focusable && c.Visible {
				return h
			}
		}
	}
	return 0
}

// SetFocus makes candidate the globally focused container, or the next
// focusable container when the candidate does not qualify. Reports
// whether the focused container changed.
func (s *State) SetFocus(candidate id.Handle, focusOrder []int) bool {
	target := candidate
	if c, ok := s.Containers.Get(candidate); !ok || !c.Focusable {
		target = s.NextFocusable(candidate, true, focusOrder)
	}
	if target == s.Focused {
		return false
	}
	s.LastFocused = s.Focused
	s.Focused = target
	if c, ok := s.Containers.Get(target); ok {
		if sf := s.SurfaceOf(c); sf != nil {
			sf.LastFocused = target
		}
	}
	return true
}

// FocusedContainer resolves the focused handle, nil when unset or
// stale.
func (s *State) FocusedContainer() *Container {
	c, _ := s.Containers.Get(s.Focused)
	return c
}

// FrontContainer returns a surface's topmost focusable, visible
// container.
func (s *State) FrontContainer(surfaceID int) *Container {
	sf, ok := s.surfaces[surfaceID]
	if !ok {
		return nil
	}
	for i := len(sf.Containers) - 1; i >= 0; i-- {
		c, ok := s.Containers.Get(sf.Containers[i])
		if !ok {
			continue
		}
		if c.Focusable && c.Visible {
			return c
		}
	}
	return nil
}

// ============================================================================
// Item queries
// ============================================================================

// TopRunningItem walks a container's groups top to bottom and returns
// the topmost item that is not finishing.
func (s *State) TopRunningItem(container id.Handle) *WorkItem {
	c, ok := s.Containers.Get(container)
	if !ok {
		return nil
	}
	for i := len(c.Groups) - 1; i >= 0; i-- {
		g, ok := s.groups[c.Groups[i]]
		if !ok {
			continue
		}
		for j := len(g.Items) - 1; j >= 0; j-- {
			w, ok := s.Items.Get(g.Items[j])
			if !ok || w.Finishing {
				continue
			}
			return w
		}
	}
	return nil
}

// ResumedItemIn returns the resumed item inside one container, if any.
func (s *State) ResumedItemIn(container id.Handle) *WorkItem {
	c, ok := s.Containers.Get(container)
	if !ok {
		return nil
	}
	for _, tid := range c.Groups {
		g, ok := s.groups[tid]
		if !ok {
			continue
		}
		for _, h := range g.Items {
			if w, ok := s.Items.Get(h); ok && w.State == types.StateResumed {
				return w
			}
		}
	}
	return nil
}

// ResumedItemsOn collects every resumed item across a surface's
// containers. The single-resume invariant wants at most one.
func (s *State) ResumedItemsOn(surfaceID int) []*WorkItem {
	sf, ok := s.surfaces[surfaceID]
	if !ok {
		return nil
	}
	var out []*WorkItem
	for _, h := range sf.Containers {
		if w := s.ResumedItemIn(h); w != nil {
			out = append(out, w)
		}
	}
	return out
}

// PausingItems returns every item currently mid-pause, across all
// containers. Resume passes gate on this being empty.
func (s *State) PausingItems() []id.Handle {
	var out []id.Handle
	s.Items.ForEach(func(h id.Handle, w *WorkItem) bool {
		if w.State == types.StatePausing {
			out = append(out, h)
		}
		return true
	})
	return out
}

// AllPausedComplete is the global gate before any resume may run.
func (s *State) AllPausedComplete() bool {
	done := true
	s.Items.ForEach(func(_ id.Handle, w *WorkItem) bool {
		if w.State == types.StatePausing {
			done = false
			return false
		}
		return true
	})
	return done
}

// ItemsInState collects handles of items in a given state.
func (s *State) ItemsInState(st types.LifecycleState) []id.Handle {
	var out []id.Handle
	s.Items.ForEach(func(h id.Handle, w *WorkItem) bool {
		if w.State == st {
			out = append(out, h)
		}
		return true
	})
	return out
}

// ============================================================================
// Group matching
// ============================================================================

// FindGroupByAffinity returns the most recently active live group of a
// user whose affinity matches, standard containers only.
func (s *State) FindGroupByAffinity(userID int, affinity string) *Group {
	var best *Group
	for _, g := range s.groups {
		if g.UserID != userID || g.Affinity != affinity {
			continue
		}
		if c := s.ContainerOf(g); c == nil || c.ActivityType != types.TypeStandard {
			continue
		}
		if best == nil || g.LastActive.After(best.LastActive) {
			best = g
		}
	}
	return best
}

// FindGroupByComponent returns the live group whose base component
// matches, used for single-task and single-instance reuse.
func (s *State) FindGroupByComponent(userID int, component types.ComponentName) *Group {
	var best *Group
	for _, g := range s.groups {
		if g.UserID != userID || g.BaseComponent != component {
			continue
		}
		if best == nil || g.LastActive.After(best.LastActive) {
			best = g
		}
	}
	return best
}

// ============================================================================
// Reclaim and diagnostics queries
// ============================================================================

// ReleaseCandidates returns items safe to reclaim under memory
// pressure: stopped, invisible, and not in the focused container.
func (s *State) ReleaseCandidates() []id.Handle {
	var out []id.Handle
	s.Items.ForEach(func(h id.Handle, w *WorkItem) bool {
		if w.State != types.StateStopped || w.Visible {
			return true
		}
		if g, ok := s.groups[w.TaskID]; ok && g.Container == s.Focused {
			return true
		}
		out = append(out, h)
		return true
	})
	return out
}

// Counts summarizes the graph for metrics.
type Counts struct {
	Surfaces   int
	Containers int
	Groups     int
	Items      int
	Resumed    int
	Pausing    int
	Stopped    int
}

// Count tallies the live graph.
func (s *State) Count() Counts {
	c := Counts{
		Surfaces:   len(s.surfaces),
		Containers: s.Containers.Len(),
		Groups:     len(s.groups),
		Items:      s.Items.Len(),
	}
	s.Items.ForEach(func(_ id.Handle, w *WorkItem) bool {
		switch w.State {
		case types.StateResumed:
			c.Resumed++
		case types.StatePausing:
			c.Pausing++
		case types.StateStopped:
			c.Stopped++
		}
		return true
	})
	return c
}
