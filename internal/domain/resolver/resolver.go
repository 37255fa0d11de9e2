// Package resolver picks the container that receives a launch request:
// explicit group restore, explicit surface placement, reuse of a
// compatible group, or fallback to the default surface.
package resolver

import (
	"go.uber.org/zap"

	"github.com/luminos-ui/shellhost/internal/domain/locktask"
	"github.com/luminos-ui/shellhost/internal/domain/model"
	"github.com/luminos-ui/shellhost/internal/domain/policy"
	"github.com/luminos-ui/shellhost/internal/domain/recents"
	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// ReuseKind tells the orchestrator how an existing group is reused.
type ReuseKind int

const (
	// ReuseNone means a fresh group is created in the container.
	ReuseNone ReuseKind = iota
	// ReuseDeliverToTop redelivers to the existing top item.
	ReuseDeliverToTop
	// ReuseTaskToFront raises an existing group.
	ReuseTaskToFront
)

// Resolution is a successful resolver outcome.
type Resolution struct {
	Container id.Handle
	// Group is the reused group; nil means create a new one.
	Group *model.Group
	Reuse ReuseKind
	// Restored marks a group re-attached from the recency store.
	Restored bool
	// ForcedFullscreen marks a non-resizable group promoted out of a
	// multi-window request; the caller owes a UI-feedback notification.
	ForcedFullscreen bool
}

// Resolver resolves launch targets against the live world.
type Resolver struct {
	state   *model.State
	recents recents.Store
	policy  policy.Checker
	guard   *locktask.Guard
	log     *zap.Logger
}

// New creates a resolver over the orchestrator's state.
func New(state *model.State, store recents.Store, checker policy.Checker, guard *locktask.Guard, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{state: state, recents: store, policy: checker, guard: guard, log: log}
}

// Resolve returns the target container for a request, or a terminal
// failure code. No partial state survives a failure.
func (r *Resolver) Resolve(req *types.LaunchRequest) (Resolution, types.LaunchResult) {
	req.Normalize()

	// Priority 1: an explicit group id wins over everything.
	if req.TaskID != 0 {
		return r.resolveExplicitTask(req)
	}

	// Priority 2 handled inside surface selection; reuse first needs
	// the launch-mode candidates.
	if res, ok := r.resolveReuse(req); ok {
		if r.guard.IsViolation(res.Group.ID, res.Group.LockAuth) {
			r.log.Warn("launch blocked by lock task",
				zap.Int("task_id", res.Group.ID),
				zap.String("component", req.Component.String()))
			return Resolution{}, types.ResultLockTaskViolation
		}
		return res, ""
	}

	// New groups are only allowed over an active lock when the
	// request's tier is allowlisted.
	if r.guard.Active() && !req.LockAuth.PermitsLaunchOverLock() {
		return Resolution{}, types.ResultLockTaskViolation
	}

	surfaceID, ok := r.pickSurface(req)
	if !ok {
		return Resolution{}, types.ResultNoCompatibleContainer
	}

	mode, forced := r.effectiveMode(req)
	container, err := r.state.GetOrCreateContainer(surfaceID, mode, req.ActivityType)
	if err != nil {
		r.log.Warn("no compatible container",
			zap.Int("surface", surfaceID),
			zap.String("mode", string(mode)),
			zap.String("activity_type", string(req.ActivityType)),
			zap.Error(err))
		return Resolution{}, types.ResultNoCompatibleContainer
	}
	return Resolution{Container: container, ForcedFullscreen: forced}, ""
}

// resolveExplicitTask locates a named group among live containers or
// restores it from the recency store.
func (r *Resolver) resolveExplicitTask(req *types.LaunchRequest) (Resolution, types.LaunchResult) {
	if g, ok := r.state.Group(req.TaskID); ok {
		if r.guard.IsViolation(g.ID, g.LockAuth) {
			return Resolution{}, types.ResultLockTaskViolation
		}
		c := r.state.ContainerOf(g)
		if c == nil {
			return Resolution{}, types.ResultNoCompatibleContainer
		}
		return Resolution{Container: c.Handle, Group: g, Reuse: ReuseTaskToFront}, ""
	}

	info, ok := r.recents.Get(req.TaskID)
	if !ok {
		r.log.Warn("explicit task id unknown", zap.Int("task_id", req.TaskID))
		return Resolution{}, types.ResultRestoreFailed
	}
	return r.restore(req, info)
}

// restore re-attaches a stored group to a resolved container and
// recreates its items' backing records. Failure leaves nothing behind.
func (r *Resolver) restore(req *types.LaunchRequest, info model.GroupInfo) (Resolution, types.LaunchResult) {
	if r.guard.IsViolation(info.ID, info.LockAuth) {
		return Resolution{}, types.ResultLockTaskViolation
	}

	surfaceID := model.DefaultSurfaceID
	if req.SurfaceID != nil && r.surfaceAuthorized(req, *req.SurfaceID) {
		surfaceID = *req.SurfaceID
	}
	if _, ok := r.state.Surface(surfaceID); !ok {
		r.log.Warn("restore target surface gone",
			zap.Int("task_id", info.ID), zap.Int("surface", surfaceID))
		return Resolution{}, types.ResultRestoreFailed
	}

	mode := info.WindowingMode
	if mode == "" {
		mode = types.ModeFullscreen
	}
	container, err := r.state.GetOrCreateContainer(surfaceID, mode, info.ActivityType)
	if err != nil {
		return Resolution{}, types.ResultRestoreFailed
	}

	g := &model.Group{
		ID:             info.ID,
		UserID:         info.UserID,
		BaseComponent:  info.BaseComponent,
		Affinity:       info.Affinity,
		ReturnTo:       info.ReturnTo,
		Resizable:      info.Resizable,
		SupportedModes: append([]types.WindowingMode(nil), info.SupportedModes...),
		LockAuth:       info.LockAuth,
		LaunchMode:     info.LaunchMode,
		LastActive:     info.LastActive,
	}
	if err := r.state.AdoptGroup(g); err != nil {
		r.state.PruneContainerIfEmpty(container)
		return Resolution{}, types.ResultRestoreFailed
	}
	if err := r.state.AttachGroup(g.ID, container); err != nil {
		r.state.RemoveGroup(g.ID)
		r.state.PruneContainerIfEmpty(container)
		return Resolution{}, types.ResultRestoreFailed
	}

	// Recreate backing records for the stored components, bottom to
	// top, at rest until the sequencer resumes the top one.
	comps := info.Components
	if len(comps) == 0 {
		comps = []types.ComponentName{info.BaseComponent}
	}
	for _, comp := range comps {
		h, err := r.state.CreateItem(g.ID, comp, info.Affinity, "")
		if err != nil {
			r.state.RemoveGroup(g.ID)
			return Resolution{}, types.ResultRestoreFailed
		}
		if w, ok := r.state.Item(h); ok {
			w.State = types.StateStopped
		}
	}

	r.recents.Remove(info.ID)
	r.log.Info("group restored from recents",
		zap.Int("task_id", g.ID), zap.Int("surface", surfaceID))
	return Resolution{Container: container, Group: g, Reuse: ReuseTaskToFront, Restored: true}, ""
}

// resolveReuse finds an existing group per the request's launch mode.
func (r *Resolver) resolveReuse(req *types.LaunchRequest) (Resolution, bool) {
	switch req.LaunchMode {
	case types.LaunchModeSingleInstance:
		if g := r.state.FindGroupByComponent(req.UserID, req.Component); g != nil {
			if c := r.state.ContainerOf(g); c != nil {
				return Resolution{Container: c.Handle, Group: g, Reuse: ReuseTaskToFront}, true
			}
		}
	case types.LaunchModeSingleTask:
		g := r.state.FindGroupByComponent(req.UserID, req.Component)
		if g == nil {
			g = r.state.FindGroupByAffinity(req.UserID, req.Affinity)
		}
		if g != nil {
			if c := r.state.ContainerOf(g); c != nil {
				return Resolution{Container: c.Handle, Group: g, Reuse: ReuseTaskToFront}, true
			}
		}
	case types.LaunchModeSingleTop:
		// Only the focused container's top running item is eligible.
		focused := r.state.FocusedContainer()
		if focused == nil {
			break
		}
		top := r.state.TopRunningItem(focused.Handle)
		if top == nil || top.Component != req.Component {
			break
		}
		if g, ok := r.state.Group(top.TaskID); ok {
			return Resolution{Container: focused.Handle, Group: g, Reuse: ReuseDeliverToTop}, true
		}
	}

	// Standard launches still prefer a container holding a matching
	// affinity group on the same user.
	if req.LaunchMode == types.LaunchModeMultiple && req.ActivityType == types.TypeStandard {
		if g := r.state.FindGroupByAffinity(req.UserID, req.Affinity); g != nil {
			if c := r.state.ContainerOf(g); c != nil && c.CanHold(req.ActivityType, req.Mode) {
				return Resolution{Container: c.Handle, Group: g, Reuse: ReuseNone}, true
			}
		}
	}
	return Resolution{}, false
}

// pickSurface selects the target surface: explicit and authorized,
// else the focused container's surface, else the default surface.
func (r *Resolver) pickSurface(req *types.LaunchRequest) (int, bool) {
	// Singleton types live on the default surface only.
	if req.ActivityType.Singleton() {
		_, ok := r.state.Surface(model.DefaultSurfaceID)
		return model.DefaultSurfaceID, ok
	}

	if req.SurfaceID != nil {
		if sf, ok := r.state.Surface(*req.SurfaceID); ok {
			if r.surfaceAuthorized(req, sf.ID) {
				return sf.ID, true
			}
			r.log.Warn("caller not authorized for surface",
				zap.Int("surface", sf.ID), zap.Int("caller_uid", req.CallerUID))
		}
	}

	if focused := r.state.FocusedContainer(); focused != nil {
		if sf := r.state.SurfaceOf(focused); sf != nil && !sf.Sleeping {
			return sf.ID, true
		}
	}

	_, ok := r.state.Surface(model.DefaultSurfaceID)
	return model.DefaultSurfaceID, ok
}

// surfaceAuthorized implements the explicit-surface access rule:
// public surface, owner uid, present uid, or embedding permission.
func (r *Resolver) surfaceAuthorized(req *types.LaunchRequest, surfaceID int) bool {
	sf, ok := r.state.Surface(surfaceID)
	if !ok {
		return false
	}
	if sf.AllowsUID(req.CallerUID) {
		if surfaceID != model.DefaultSurfaceID {
			return r.policy.CheckPermission(req.CallerUID, policy.PermLaunchOnSecondary)
		}
		return true
	}
	return r.policy.CheckPermission(req.CallerUID, policy.PermEmbedOtherSurfaces)
}

// effectiveMode downgrades a multi-window request to fullscreen when
// the work is not resizable.
func (r *Resolver) effectiveMode(req *types.LaunchRequest) (types.WindowingMode, bool) {
	if req.Mode == types.ModeFullscreen || req.Mode == types.ModeSingleTask {
		return req.Mode, false
	}
	if !req.Resizable {
		r.log.Info("forcing fullscreen for non-resizable launch",
			zap.String("component", req.Component.String()),
			zap.String("requested_mode", string(req.Mode)))
		return types.ModeFullscreen, true
	}
	return req.Mode, false
}
