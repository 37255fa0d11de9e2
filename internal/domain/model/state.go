package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

var (
	ErrSurfaceExists    = errors.New("surface already registered")
	ErrNoSurface        = errors.New("surface not registered")
	ErrPrimarySurface   = errors.New("primary surface cannot be removed")
	ErrNoGroup          = errors.New("group not found")
	ErrNoContainer      = errors.New("container not found")
	ErrNoItem           = errors.New("work item not found")
	ErrContainerInUse   = errors.New("container not empty")
	ErrIncompatible     = errors.New("group incompatible with container")
	ErrGroupAttached    = errors.New("group already attached")
	ErrGroupDetached    = errors.New("group not attached")
	ErrSingletonPresent = errors.New("singleton container already present")
)

// State is the whole mutable object graph, owned by one orchestrator
// instance. No process-wide statics: two States never share anything.
type State struct {
	Items      *Arena[WorkItem]
	Containers *Arena[Container]

	groups   map[int]*Group
	surfaces map[int]*Surface

	// surfaceOrder is registration order, used as the fallback focus
	// order when the compositor offers none.
	surfaceOrder []int

	Focused     id.Handle
	LastFocused id.Handle

	tasks *id.TaskAllocator
}

// NewState creates an empty world.
func NewState() *State {
	return &State{
		Items:      NewArena[WorkItem](),
		Containers: NewArena[Container](),
		groups:     make(map[int]*Group),
		surfaces:   make(map[int]*Surface),
		tasks:      id.NewTaskAllocator(),
	}
}

// ============================================================================
// Lookups
// ============================================================================

// Item resolves a work-item handle.
func (s *State) Item(h id.Handle) (*WorkItem, bool) { return s.Items.Get(h) }

// Container resolves a container handle.
func (s *State) Container(h id.Handle) (*Container, bool) { return s.Containers.Get(h) }

// Group looks up a live group by task id.
func (s *State) Group(taskID int) (*Group, bool) {
	g, ok := s.groups[taskID]
	return g, ok
}

// Surface looks up a registered surface.
func (s *State) Surface(surfaceID int) (*Surface, bool) {
	sf, ok := s.surfaces[surfaceID]
	return sf, ok
}

// SurfaceIDs returns registered surface ids in registration order.
func (s *State) SurfaceIDs() []int {
	out := make([]int, len(s.surfaceOrder))
	copy(out, s.surfaceOrder)
	return out
}

// GroupIDs returns live task ids.
func (s *State) GroupIDs() []int {
	out := make([]int, 0, len(s.groups))
	for tid := range s.groups {
		out = append(out, tid)
	}
	return out
}

// ContainerOf resolves a group's owning container, nil while detached.
func (s *State) ContainerOf(g *Group) *Container {
	if g == nil || !g.Container.Valid() {
		return nil
	}
	c, _ := s.Containers.Get(g.Container)
	return c
}

// SurfaceOf resolves a container's owning surface, nil while detached.
func (s *State) SurfaceOf(c *Container) *Surface {
	if c == nil || c.Surface == nil {
		return nil
	}
	sf, _ := s.surfaces[*c.Surface]
	return sf
}

// GroupOfItem resolves an item's owning group.
func (s *State) GroupOfItem(w *WorkItem) *Group {
	if w == nil {
		return nil
	}
	g, _ := s.groups[w.TaskID]
	return g
}

// TaskInUse reports whether a task id belongs to a live group.
func (s *State) TaskInUse(taskID int) bool {
	_, ok := s.groups[taskID]
	return ok
}

// ============================================================================
// Surfaces
// ============================================================================

// AddSurface registers a new output surface.
func (s *State) AddSurface(surfaceID int, bounds types.Bounds) (*Surface, error) {
	if _, ok := s.surfaces[surfaceID]; ok {
		return nil, fmt.Errorf("%w: %d", ErrSurfaceExists, surfaceID)
	}
	sf := &Surface{
		ID:          surfaceID,
		Bounds:      bounds,
		SleepTokens: make(map[string]bool),
		PresentUIDs: make(map[int]bool),
	}
	s.surfaces[surfaceID] = sf
	s.surfaceOrder = append(s.surfaceOrder, surfaceID)
	return sf, nil
}

// RemoveSurface unregisters a surface and relocates its containers to
// the primary surface, preserving their relative order below whatever
// the primary already shows. Singleton containers whose type already
// exists on the primary have their groups merged instead.
func (s *State) RemoveSurface(surfaceID int) error {
	if surfaceID == DefaultSurfaceID {
		return ErrPrimarySurface
	}
	sf, ok := s.surfaces[surfaceID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSurface, surfaceID)
	}
	primary, ok := s.surfaces[DefaultSurfaceID]
	if !ok {
		return fmt.Errorf("%w: primary", ErrNoSurface)
	}

	moved := make([]id.Handle, len(sf.Containers))
	copy(moved, sf.Containers)
	sf.Containers = nil

	var relocated []id.Handle
	for _, h := range moved {
		c, ok := s.Containers.Get(h)
		if !ok {
			continue
		}
		if c.Singleton() {
			if existing := s.findSingleton(primary.ID, c.ActivityType, c.Mode); existing != nil && existing.Handle != h {
				for _, tid := range append([]int(nil), c.Groups...) {
					g := s.groups[tid]
					if g == nil {
						continue
					}
					c.removeGroup(tid)
					g.Container = existing.Handle
					existing.Groups = append(existing.Groups, tid)
				}
				c.Surface = nil
				s.Containers.Free(h)
				continue
			}
		}
		pid := primary.ID
		c.Surface = &pid
		relocated = append(relocated, h)
	}
	// Splice below the primary's existing stack in one step so the
	// movers keep their bottom→top order relative to each other.
	primary.Containers = append(relocated, primary.Containers...)

	delete(s.surfaces, surfaceID)
	for i, have := range s.surfaceOrder {
		if have == surfaceID {
			s.surfaceOrder = append(s.surfaceOrder[:i], s.surfaceOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *State) findSingleton(surfaceID int, activityType types.ActivityType, mode types.WindowingMode) *Container {
	sf, ok := s.surfaces[surfaceID]
	if !ok {
		return nil
	}
	for _, h := range sf.Containers {
		c, ok := s.Containers.Get(h)
		if !ok || !c.Singleton() {
			continue
		}
		if c.ActivityType == activityType && (activityType != types.TypeStandard || c.Mode == mode) {
			return c
		}
	}
	return nil
}

// ============================================================================
// Containers
// ============================================================================

// CreateContainer places a new container on top of a surface's stack.
// At most one singleton container per type may exist on a surface.
func (s *State) CreateContainer(surfaceID int, mode types.WindowingMode, activityType types.ActivityType) (id.Handle, error) {
	sf, ok := s.surfaces[surfaceID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoSurface, surfaceID)
	}
	if !activityType.CompatibleMode(mode) {
		return 0, fmt.Errorf("%w: %s in %s", ErrIncompatible, activityType, mode)
	}
	if (activityType.Singleton() || mode == types.ModeSingleTask) && s.findSingleton(surfaceID, activityType, mode) != nil {
		return 0, fmt.Errorf("%w: %s on surface %d", ErrSingletonPresent, activityType, surfaceID)
	}

	h := s.Containers.Alloc(func(h id.Handle) Container {
		sid := surfaceID
		return Container{
			Handle:       h,
			Mode:         mode,
			ActivityType: activityType,
			Surface:      &sid,
			Bounds:       sf.Bounds,
			Focusable:    true,
			Visible:      true,
		}
	})
	sf.Containers = append(sf.Containers, h)
	return h, nil
}

// GetOrCreateContainer returns a surface's container matching the mode
// and activity type, creating one when none exists. Singleton activity
// types always resolve to the one permanent container of that type.
func (s *State) GetOrCreateContainer(surfaceID int, mode types.WindowingMode, activityType types.ActivityType) (id.Handle, error) {
	sf, ok := s.surfaces[surfaceID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoSurface, surfaceID)
	}
	if activityType.Singleton() {
		if c := s.findSingleton(surfaceID, activityType, mode); c != nil {
			return c.Handle, nil
		}
		return s.CreateContainer(surfaceID, types.ModeFullscreen, activityType)
	}
	// Prefer the topmost compatible container.
	for i := len(sf.Containers) - 1; i >= 0; i-- {
		c, ok := s.Containers.Get(sf.Containers[i])
		if !ok {
			continue
		}
		if c.ActivityType == activityType && c.Mode == mode && !(c.Mode == types.ModeSingleTask && len(c.Groups) > 0) {
			return c.Handle, nil
		}
	}
	return s.CreateContainer(surfaceID, mode, activityType)
}

// FreeContainer removes an empty container from its surface.
func (s *State) FreeContainer(h id.Handle) error {
	c, ok := s.Containers.Get(h)
	if !ok {
		return ErrNoContainer
	}
	if !c.Empty() {
		return ErrContainerInUse
	}
	if sf := s.SurfaceOf(c); sf != nil {
		sf.removeContainer(h)
		if sf.LastFocused == h {
			sf.LastFocused = 0
		}
	}
	if s.Focused == h {
		s.Focused = 0
	}
	if s.LastFocused == h {
		s.LastFocused = 0
	}
	s.Containers.Free(h)
	return nil
}

// PruneContainerIfEmpty frees an emptied container unless it is the
// permanent home container. Reports whether the container was freed.
func (s *State) PruneContainerIfEmpty(h id.Handle) bool {
	c, ok := s.Containers.Get(h)
	if !ok || !c.Empty() {
		return false
	}
	if c.ActivityType == types.TypeHome {
		return false
	}
	return s.FreeContainer(h) == nil
}

// MoveContainerToFront reorders a container to the top of its surface.
func (s *State) MoveContainerToFront(h id.Handle) error {
	c, ok := s.Containers.Get(h)
	if !ok {
		return ErrNoContainer
	}
	sf := s.SurfaceOf(c)
	if sf == nil {
		return ErrGroupDetached
	}
	sf.moveContainerToTop(h)
	return nil
}

// ============================================================================
// Groups
// ============================================================================

// CreateGroup allocates a task id and registers a new empty group.
// alsoInUse extends the in-use check beyond live groups (recents).
func (s *State) CreateGroup(userID int, alsoInUse func(int) bool, configure func(*Group)) (*Group, error) {
	taskID, err := s.tasks.Next(userID, func(tid int) bool {
		if s.TaskInUse(tid) {
			return true
		}
		return alsoInUse != nil && alsoInUse(tid)
	})
	if err != nil {
		return nil, err
	}
	g := &Group{
		ID:         taskID,
		UserID:     userID,
		LastActive: time.Now(),
	}
	if configure != nil {
		configure(g)
	}
	s.groups[taskID] = g
	return g, nil
}

// AdoptGroup registers a group restored from the recency store under
// its original task id.
func (s *State) AdoptGroup(g *Group) error {
	if _, ok := s.groups[g.ID]; ok {
		return fmt.Errorf("task id %d already live", g.ID)
	}
	s.groups[g.ID] = g
	return nil
}

// AttachGroup appends a group to the top of a container.
func (s *State) AttachGroup(taskID int, container id.Handle) error {
	g, ok := s.groups[taskID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoGroup, taskID)
	}
	if g.Container.Valid() {
		return ErrGroupAttached
	}
	c, ok := s.Containers.Get(container)
	if !ok {
		return ErrNoContainer
	}
	if c.Mode == types.ModeSingleTask && len(c.Groups) > 0 {
		return ErrIncompatible
	}
	c.Groups = append(c.Groups, taskID)
	g.Container = container
	return nil
}

// DetachGroup removes a group from its container without destroying
// it. Returns the former container handle.
func (s *State) DetachGroup(taskID int) (id.Handle, error) {
	g, ok := s.groups[taskID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoGroup, taskID)
	}
	if !g.Container.Valid() {
		return 0, ErrGroupDetached
	}
	former := g.Container
	if c, ok := s.Containers.Get(former); ok {
		c.removeGroup(taskID)
	}
	g.Container = 0
	return former, nil
}

// RemoveGroup destroys a group and every item in it, then prunes the
// emptied container. Items must already be lifecycle-terminal; the
// sequencer drives them there first.
func (s *State) RemoveGroup(taskID int) error {
	g, ok := s.groups[taskID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoGroup, taskID)
	}
	for _, h := range g.Items {
		s.Items.Free(h)
	}
	g.Items = nil
	former := g.Container
	if former.Valid() {
		if c, ok := s.Containers.Get(former); ok {
			c.removeGroup(taskID)
		}
	}
	delete(s.groups, taskID)
	if former.Valid() {
		s.PruneContainerIfEmpty(former)
	}
	return nil
}

// MoveGroupToFront raises a group within its container and the
// container within its surface.
func (s *State) MoveGroupToFront(taskID int) error {
	g, ok := s.groups[taskID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoGroup, taskID)
	}
	c := s.ContainerOf(g)
	if c == nil {
		return ErrGroupDetached
	}
	c.moveGroupToTop(taskID)
	g.LastActive = time.Now()
	return s.MoveContainerToFront(c.Handle)
}

// Info captures a group's serializable description.
func (s *State) Info(g *Group) GroupInfo {
	info := GroupInfo{
		ID:             g.ID,
		UserID:         g.UserID,
		BaseComponent:  g.BaseComponent,
		Affinity:       g.Affinity,
		ReturnTo:       g.ReturnTo,
		Resizable:      g.Resizable,
		SupportedModes: append([]types.WindowingMode(nil), g.SupportedModes...),
		LockAuth:       g.LockAuth,
		LaunchMode:     g.LaunchMode,
		ActivityType:   types.TypeStandard,
		WindowingMode:  types.ModeFullscreen,
		LastActive:     g.LastActive,
	}
	if c := s.ContainerOf(g); c != nil {
		info.ActivityType = c.ActivityType
		info.WindowingMode = c.Mode
	}
	for _, h := range g.Items {
		if w, ok := s.Items.Get(h); ok {
			info.Components = append(info.Components, w.Component)
		}
	}
	return info
}

// ============================================================================
// Work items
// ============================================================================

// CreateItem appends a new initializing item to the top of a group.
func (s *State) CreateItem(taskID int, component types.ComponentName, affinity, launchToken string) (id.Handle, error) {
	g, ok := s.groups[taskID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoGroup, taskID)
	}
	h := s.Items.Alloc(func(h id.Handle) WorkItem {
		return WorkItem{
			Handle:      h,
			TaskID:      taskID,
			Component:   component,
			Affinity:    affinity,
			State:       types.StateInitializing,
			LaunchToken: launchToken,
			CreatedAt:   time.Now(),
		}
	})
	g.Items = append(g.Items, h)
	g.LastActive = time.Now()
	return h, nil
}

// RemoveItem frees an item and reports the owning task id and whether
// the group emptied. The caller decides the emptied group's fate.
func (s *State) RemoveItem(h id.Handle) (taskID int, emptied bool, err error) {
	w, ok := s.Items.Get(h)
	if !ok {
		return 0, false, ErrNoItem
	}
	taskID = w.TaskID
	if g, ok := s.groups[taskID]; ok {
		g.removeItem(h)
		emptied = g.Empty()
	}
	s.Items.Free(h)
	return taskID, emptied, nil
}
