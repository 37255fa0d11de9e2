package orchestrator

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luminos-ui/shellhost/internal/domain/model"
	"github.com/luminos-ui/shellhost/internal/domain/policy"
	"github.com/luminos-ui/shellhost/internal/domain/resolver"
	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// ResolveAndLaunch resolves a launch request and drives the target
// item toward resumed. The result code is terminal; callers treat
// unknown codes as failure.
func (o *Orchestrator) ResolveAndLaunch(req *types.LaunchRequest) types.LaunchResult {
	result := types.ResultCancelled
	o.call("launch", func() { result = o.launch(req) })
	return result
}

// NotifyIdle reports that an item reached steady state.
func (o *Orchestrator) NotifyIdle(item id.Handle) {
	o.call("idle", func() { o.seq.HandleIdle(item) })
}

// NotifyLaunchTaskBehindComplete reports that a background launch
// finished drawing; the item is stopped rather than kept paused.
func (o *Orchestrator) NotifyLaunchTaskBehindComplete(item id.Handle) {
	o.call("launch-behind-complete", func() { o.seq.StopBackground(item) })
}

// FinishItem requests an orderly teardown of one item.
func (o *Orchestrator) FinishItem(item id.Handle) {
	o.call("finish-item", func() { o.seq.Finish(item) })
}

// FinishGroup finishes every item of a group and forgets the group in
// the recency store: an explicit removal, not a background eviction.
func (o *Orchestrator) FinishGroup(taskID int) bool {
	found := false
	o.call("finish-group", func() {
		g, ok := o.state.Group(taskID)
		if !ok {
			return
		}
		found = true
		g.Forgotten = true
		o.recents.Remove(taskID)
		for i := len(g.Items) - 1; i >= 0; i-- {
			o.seq.Finish(g.Items[i])
		}
		// Quiescent items wait for an idle flush that may never come
		// if nothing is resumed; flush now and bring the next group
		// forward.
		o.seq.HandleIdle(0)
		o.ensureFocusAndResume()
	})
	return found
}

// DisableAppSwitches parks subsequent launches until re-enabled.
// Requires the stop-app-switches permission.
func (o *Orchestrator) DisableAppSwitches(callerUID int) bool {
	ok := false
	o.call("disable-app-switches", func() {
		if !o.policy.CheckPermission(callerUID, policy.PermStopAppSwitches) {
			return
		}
		o.appSwitchesAllowed = false
		ok = true
	})
	return ok
}

// EnableAppSwitches lifts the restriction and replays parked launches
// in arrival order.
func (o *Orchestrator) EnableAppSwitches(callerUID int) bool {
	ok := false
	o.call("enable-app-switches", func() {
		if !o.policy.CheckPermission(callerUID, policy.PermStopAppSwitches) {
			return
		}
		o.appSwitchesAllowed = true
		ok = true
		pending := o.pending
		o.pending = nil
		for _, p := range pending {
			result := o.launch(p.req)
			o.log.Info("pending launch replayed",
				zap.String("component", p.req.Component.String()),
				zap.String("result", string(result)),
				zap.Duration("parked", time.Since(p.when)))
		}
	})
	return ok
}

// ============================================================================
// Loop-side launch path
// ============================================================================

func (o *Orchestrator) launch(req *types.LaunchRequest) types.LaunchResult {
	start := time.Now()
	result := o.launchLocked(req)
	if o.metrics != nil {
		o.metrics.RecordLaunch(string(result), time.Since(start))
	}
	o.emit(Event{Type: EventLaunch, Component: req.Component, Result: string(result)})
	o.publishCounts()
	return result
}

func (o *Orchestrator) launchLocked(req *types.LaunchRequest) types.LaunchResult {
	if o.shuttingDown {
		return types.ResultCancelled
	}
	if !o.policy.CheckPermission(req.CallerUID, policy.PermLaunch) {
		return types.ResultPermissionDenied
	}
	spec, ok := o.catalog.Lookup(req.Component)
	if !ok {
		o.log.Warn("launch for unknown component", zap.String("component", req.Component.String()))
		return types.ResultClassNotFound
	}
	o.catalog.ApplyDefaults(req, spec)
	req.Normalize()

	if !o.appSwitchesAllowed && !o.policy.CheckPermission(req.CallerUID, policy.PermStopAppSwitches) {
		o.pending = append(o.pending, pendingLaunch{req: req, when: time.Now()})
		o.log.Info("launch parked, app switches disabled",
			zap.String("component", req.Component.String()))
		return types.ResultCancelled
	}

	res, code := o.res.Resolve(req)
	if code != "" {
		return code
	}
	return o.applyResolution(req, res)
}

// applyResolution commits a successful resolution: reuse, restore, or
// a fresh group, then a resume pass.
func (o *Orchestrator) applyResolution(req *types.LaunchRequest, res resolver.Resolution) types.LaunchResult {
	fo := o.focusOrder()

	if res.Group != nil && res.Reuse == resolver.ReuseDeliverToTop {
		top := res.Group.TopItem()
		o.seq.DeliverNewIntent(top)
		res.Group.LastActive = time.Now()
		return types.ResultDeliveredToTop
	}

	if res.Group != nil && res.Reuse == resolver.ReuseTaskToFront {
		g := res.Group
		c, ok := o.state.Container(res.Container)
		if !ok {
			return types.ResultNoCompatibleContainer
		}

		// Relaunching the group already at the front redelivers
		// instead of rebuilding: the idempotent path.
		if !res.Restored && o.state.Focused == c.Handle && c.TopGroup() == g.ID {
			if top := o.state.TopRunningItem(c.Handle); top != nil && top.State == types.StateResumed {
				o.seq.DeliverNewIntent(top.Handle)
				g.LastActive = time.Now()
				return types.ResultDeliveredToTop
			}
		}

		o.bringGroupForward(g, c, fo)
		if res.Restored {
			return types.ResultSuccess
		}
		return types.ResultTaskToFront
	}

	if res.Group != nil {
		// Affinity reuse: a new item stacks onto the existing group.
		g := res.Group
		c, ok := o.state.Container(res.Container)
		if !ok {
			return types.ResultNoCompatibleContainer
		}
		if _, err := o.state.CreateItem(g.ID, req.Component, req.Affinity, uuid.NewString()); err != nil {
			o.log.Error("create item in existing group", zap.Int("task_id", g.ID), zap.Error(err))
			return types.ResultNoCompatibleContainer
		}
		o.bringGroupForward(g, c, fo)
		return types.ResultSuccess
	}

	return o.launchFreshGroup(req, res, fo)
}

func (o *Orchestrator) launchFreshGroup(req *types.LaunchRequest, res resolver.Resolution, fo []int) types.LaunchResult {
	g, err := o.state.CreateGroup(req.UserID, o.recents.InUse, func(g *model.Group) {
		g.BaseComponent = req.Component
		g.Affinity = req.Affinity
		g.ReturnTo = req.ReturnTo
		g.Resizable = req.Resizable
		g.LockAuth = req.LockAuth
		g.LaunchMode = req.LaunchMode
	})
	if err != nil {
		o.log.Error("group id allocation failed",
			zap.Int("user_id", req.UserID), zap.Error(err))
		return types.ResultTaskIDExhausted
	}
	if err := o.state.AttachGroup(g.ID, res.Container); err != nil {
		o.state.RemoveGroup(g.ID)
		o.log.Error("attach fresh group", zap.Int("task_id", g.ID), zap.Error(err))
		return types.ResultNoCompatibleContainer
	}
	item, err := o.state.CreateItem(g.ID, req.Component, req.Affinity, uuid.NewString())
	if err != nil {
		o.state.RemoveGroup(g.ID)
		o.state.PruneContainerIfEmpty(res.Container)
		return types.ResultNoCompatibleContainer
	}

	if !o.bootTargetSet {
		o.bootTargetSet = true
		o.seq.SetBootTarget(item)
	}

	c, _ := o.state.Container(res.Container)
	if res.ForcedFullscreen {
		o.notifier.ForcedResize(req.Component, g.ID)
		o.emit(Event{Type: EventForcedResize, Component: req.Component, TaskID: g.ID})
	}
	if c != nil {
		o.bringGroupForward(g, c, fo)
	}
	// The resume pass runs inline; a double host failure has already
	// torn the item down by the time we get here.
	if _, live := o.state.Item(item); !live {
		return types.ResultCancelled
	}
	return types.ResultSuccess
}

// bringGroupForward raises the group and its container, refreshes the
// recency store, repairs focus, and runs a resume pass.
func (o *Orchestrator) bringGroupForward(g *model.Group, c *model.Container, fo []int) {
	if err := o.state.MoveGroupToFront(g.ID); err != nil {
		o.log.Error("move group to front", zap.Int("task_id", g.ID), zap.Error(err))
		return
	}
	if err := o.state.MoveContainerToFront(c.Handle); err != nil {
		o.log.Error("move container to front",
			zap.String("container", c.Handle.String()), zap.Error(err))
		return
	}
	g.LastActive = time.Now()
	o.recents.Add(o.state.Info(g))
	o.state.SetFocus(c.Handle, fo)
	o.seq.ResumeTopIn(c.Handle)
}
