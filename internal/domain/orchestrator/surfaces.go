package orchestrator

import (
	"errors"

	"go.uber.org/zap"

	"github.com/luminos-ui/shellhost/internal/domain/compositor"
	"github.com/luminos-ui/shellhost/internal/domain/model"
	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// ErrNoSuchGroup reports a move naming an unknown group.
var ErrNoSuchGroup = errors.New("no such group")

// NotifyDisplayAdded registers a new output surface.
func (o *Orchestrator) NotifyDisplayAdded(surfaceID int, bounds types.Bounds) error {
	var err error
	o.call("surface-added", func() {
		if _, err = o.state.AddSurface(surfaceID, bounds); err != nil {
			return
		}
		o.emit(Event{Type: EventSurfaceAdded, SurfaceID: surfaceID})
		o.publishCounts()
	})
	return err
}

// NotifyDisplayChanged applies new surface geometry and resizes every
// container on it in one compositor transaction. The resume pass is
// deferred until the transaction acks.
func (o *Orchestrator) NotifyDisplayChanged(surfaceID int, bounds types.Bounds) error {
	var err error
	o.call("surface-changed", func() {
		sf, ok := o.state.Surface(surfaceID)
		if !ok {
			err = model.ErrNoSurface
			return
		}
		sf.Bounds = bounds

		var ops []compositor.Op
		for _, ch := range sf.Containers {
			c, live := o.state.Container(ch)
			if !live {
				continue
			}
			c.Bounds = o.fitBounds(c, bounds)
			ops = append(ops, compositor.Op{
				Kind:      compositor.OpResize,
				Container: compositor.ContainerRef(ch),
				SurfaceID: surfaceID,
				Bounds:    c.Bounds,
			})
		}

		o.seq.BeginDefer()
		if front := o.state.FrontContainer(surfaceID); front != nil {
			o.seq.ResumeTopIn(front.Handle)
		}
		o.submitTransaction(id.NewRequestID(), ops, func() {
			o.seq.EndDefer()
		})
		o.emit(Event{Type: EventSurfaceChanged, SurfaceID: surfaceID})
	})
	return err
}

// NotifyDisplayRemoved drops a surface; its containers relocate to the
// default surface in one deferred batch with a single resume pass. The
// relocations travel to the compositor as one reparent+resize
// transaction, the same shape a group move emits.
func (o *Orchestrator) NotifyDisplayRemoved(surfaceID int) error {
	var err error
	o.call("surface-removed", func() {
		var moved []id.Handle
		if sf, ok := o.state.Surface(surfaceID); ok {
			moved = append(moved, sf.Containers...)
		}

		o.seq.BeginDefer()
		if err = o.state.RemoveSurface(surfaceID); err != nil {
			o.seq.EndDefer()
			return
		}

		var ops []compositor.Op
		primary, _ := o.state.Surface(model.DefaultSurfaceID)
		for _, h := range moved {
			c, live := o.state.Container(h)
			// Merged singletons were freed during removal.
			if !live || c.Surface == nil || *c.Surface != model.DefaultSurfaceID {
				continue
			}
			c.Bounds = o.fitBounds(c, primary.Bounds)
			ops = append(ops, compositor.Op{
				Kind:      compositor.OpReparent,
				Container: compositor.ContainerRef(h),
				SurfaceID: model.DefaultSurfaceID,
				Bounds:    c.Bounds,
			})
		}

		// The removed surface's focus context is gone; refocus from
		// the front of the focus order, not the relocated container.
		fo := o.focusOrder()
		if next := o.state.NextFocusable(0, false, fo); next != 0 {
			o.state.SetFocus(next, fo)
		}
		if fc := o.state.FocusedContainer(); fc != nil {
			o.seq.ResumeTopIn(fc.Handle)
		}
		o.submitTransaction(id.NewRequestID(), ops, func() {
			o.seq.EndDefer()
		})
		o.emit(Event{Type: EventSurfaceRemoved, SurfaceID: surfaceID})
		o.publishCounts()
	})
	return err
}

// GroupMove is one structural move inside a batch: a group reparented
// to a surface and windowing mode.
type GroupMove struct {
	TaskID        int                 `json:"task_id"`
	TargetSurface int                 `json:"target_surface"`
	Mode          types.WindowingMode `json:"mode,omitempty"`
	Bounds        *types.Bounds       `json:"bounds,omitempty"`
}

// MoveGroup reparents one group.
func (o *Orchestrator) MoveGroup(move GroupMove) error {
	return o.ApplyBatch([]GroupMove{move})
}

// ApplyBatch performs a sequence of structural moves atomically with
// respect to resume: however many moves run, exactly one resume pass
// follows, and only after the compositor acknowledges the transaction.
func (o *Orchestrator) ApplyBatch(moves []GroupMove) error {
	var err error
	o.call("apply-batch", func() { err = o.applyBatch(moves) })
	return err
}

func (o *Orchestrator) applyBatch(moves []GroupMove) error {
	o.seq.BeginDefer()

	var ops []compositor.Op
	var lastDest id.Handle
	for _, move := range moves {
		dest, moveOps, err := o.moveGroupLocked(move)
		if err != nil {
			o.seq.EndDefer()
			return err
		}
		ops = append(ops, moveOps...)
		lastDest = dest
	}

	if lastDest != 0 {
		fo := o.focusOrder()
		o.state.MoveContainerToFront(lastDest)
		o.state.SetFocus(lastDest, fo)
		o.seq.ResumeTopIn(lastDest)
	}

	o.submitTransaction(id.NewRequestID(), ops, func() {
		o.seq.EndDefer()
	})
	o.publishCounts()
	return nil
}

// moveGroupLocked detaches, re-attaches, and emits the reparent and
// sibling-resize ops. The source container is pruned when emptied.
func (o *Orchestrator) moveGroupLocked(move GroupMove) (id.Handle, []compositor.Op, error) {
	g, ok := o.state.Group(move.TaskID)
	if !ok {
		return 0, nil, ErrNoSuchGroup
	}
	srcContainer := o.state.ContainerOf(g)
	if srcContainer == nil {
		return 0, nil, model.ErrGroupDetached
	}
	activityType := srcContainer.ActivityType

	mode := move.Mode
	if mode == "" {
		mode = srcContainer.Mode
	}
	if !g.SupportsMode(mode) {
		o.log.Info("promoting non-resizable group to fullscreen",
			zap.Int("task_id", g.ID), zap.String("requested_mode", string(mode)))
		mode = types.ModeFullscreen
		o.notifier.ForcedResize(g.BaseComponent, g.ID)
		o.emit(Event{Type: EventForcedResize, Component: g.BaseComponent, TaskID: g.ID})
	}

	src, err := o.state.DetachGroup(move.TaskID)
	if err != nil {
		return 0, nil, err
	}

	dest, err := o.state.GetOrCreateContainer(move.TargetSurface, mode, activityType)
	if err != nil {
		// Put the group back where it was.
		if reErr := o.state.AttachGroup(move.TaskID, src); reErr != nil {
			o.log.Error("reattach after failed move",
				zap.Int("task_id", move.TaskID), zap.Error(reErr))
		}
		return 0, nil, err
	}
	if err := o.state.AttachGroup(move.TaskID, dest); err != nil {
		if reErr := o.state.AttachGroup(move.TaskID, src); reErr != nil {
			o.log.Error("reattach after failed move",
				zap.Int("task_id", move.TaskID), zap.Error(reErr))
		}
		o.state.PruneContainerIfEmpty(dest)
		return 0, nil, err
	}
	o.state.PruneContainerIfEmpty(src)

	c, _ := o.state.Container(dest)
	if c != nil && move.Bounds != nil {
		c.Bounds = *move.Bounds
	}

	ops := []compositor.Op{{
		Kind:      compositor.OpReparent,
		Container: compositor.ContainerRef(dest),
		SurfaceID: move.TargetSurface,
		Bounds:    o.containerBounds(dest),
	}}
	ops = append(ops, o.siblingResizeOps(dest, move.TargetSurface)...)
	return dest, ops, nil
}

// siblingResizeOps keeps split layouts non-overlapping: when a split
// primary changes, every other resizable container on the surface is
// resized in the same transaction.
func (o *Orchestrator) siblingResizeOps(changed id.Handle, surfaceID int) []compositor.Op {
	c, ok := o.state.Container(changed)
	if !ok || c.Mode != types.ModeSplitPrimary {
		return nil
	}
	sf, ok := o.state.Surface(surfaceID)
	if !ok {
		return nil
	}

	var ops []compositor.Op
	for _, h := range sf.Containers {
		if h == changed {
			continue
		}
		sib, live := o.state.Container(h)
		if !live || sib.Mode == types.ModeFullscreen || sib.Mode == types.ModeSingleTask {
			continue
		}
		sib.Bounds = o.complementBounds(c.Bounds, sf.Bounds)
		ops = append(ops, compositor.Op{
			Kind:      compositor.OpResize,
			Container: compositor.ContainerRef(h),
			SurfaceID: surfaceID,
			Bounds:    sib.Bounds,
		})
	}
	return ops
}

// complementBounds gives the surface area left of a split primary to
// the secondary side.
func (o *Orchestrator) complementBounds(primary, surface types.Bounds) types.Bounds {
	return types.Bounds{
		X:      primary.X + primary.Width,
		Y:      surface.Y,
		Width:  surface.Width - primary.Width,
		Height: surface.Height,
	}
}

// fitBounds clamps a container's rectangle into new surface geometry.
func (o *Orchestrator) fitBounds(c *model.Container, surface types.Bounds) types.Bounds {
	switch c.Mode {
	case types.ModeFullscreen, types.ModeSingleTask:
		return surface
	}
	b := c.Bounds
	if b.Empty() {
		return surface
	}
	if b.X+b.Width > surface.Width {
		b.Width = surface.Width - b.X
	}
	if b.Y+b.Height > surface.Height {
		b.Height = surface.Height - b.Y
	}
	if b.Empty() {
		return surface
	}
	return b
}

func (o *Orchestrator) containerBounds(h id.Handle) types.Bounds {
	if c, ok := o.state.Container(h); ok {
		return c.Bounds
	}
	return types.Bounds{}
}
