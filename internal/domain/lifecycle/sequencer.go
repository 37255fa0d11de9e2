// Package lifecycle drives work items through their state machine:
// pause before resume, a global all-paused gate, batched stop/finish
// processing on idle, and bounded timeouts everywhere the process
// host could hang.
package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/luminos-ui/shellhost/internal/domain/host"
	"github.com/luminos-ui/shellhost/internal/domain/model"
	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// Timeouts. Every wait on the process host is bounded; expiry forces
// the transition and logs, never blocks.
const (
	PauseTimeout   = 500 * time.Millisecond
	IdleTimeout    = 10 * time.Second
	LaunchTimeout  = 10 * time.Second
	SleepTimeout   = 5 * time.Second
	StopTimeout    = 11 * time.Second
	DestroyTimeout = 10 * time.Second
)

// TimerKind names the sequencer's wall-clock timers.
type TimerKind string

const (
	TimerPause   TimerKind = "pause"
	TimerIdle    TimerKind = "idle"
	TimerLaunch  TimerKind = "launch"
	TimerStop    TimerKind = "stop"
	TimerDestroy TimerKind = "destroy"
)

// Sequencer owns the per-item state machine. It runs entirely on the
// orchestrator goroutine; the callbacks below are its only way out.
type Sequencer struct {
	state *model.State
	host  host.Host
	log   *zap.Logger

	// Batched queues, flushed collect-then-act on idle.
	stopping  []id.Handle
	finishing []id.Handle

	// resumeWaiting holds containers whose resume is gated on the
	// global all-paused condition.
	resumeWaiting map[id.Handle]bool

	// deferDepth suppresses resume passes while structural changes
	// are in flight; endDefer runs at most one pass.
	deferDepth        int
	pendingResumePass bool
	pendingContainers map[id.Handle]bool

	booted     bool
	bootTarget id.Handle

	// Schedule and CancelTimer post and cancel wall-clock timers on
	// the orchestrator's queue.
	Schedule    func(kind TimerKind, item id.Handle, d time.Duration)
	CancelTimer func(kind TimerKind, item id.Handle)

	// OnTransition observes every legal state change.
	OnTransition func(w *model.WorkItem, from, to types.LifecycleState)

	// OnItemDestroyed removes the record and cascades group cleanup.
	OnItemDestroyed func(item id.Handle)

	// OnSecondFailure reports a crash-disposition finish upward.
	OnSecondFailure func(item id.Handle, reason string)

	// OnBootComplete fires once, when the boot target first idles.
	OnBootComplete func()
}

// NewSequencer creates a sequencer over the orchestrator's state.
func NewSequencer(state *model.State, h host.Host, log *zap.Logger) *Sequencer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sequencer{
		state:             state,
		host:              h,
		log:               log,
		resumeWaiting:     make(map[id.Handle]bool),
		pendingContainers: make(map[id.Handle]bool),
	}
}

// SetBootTarget names the item whose first idle completes boot.
func (s *Sequencer) SetBootTarget(item id.Handle) { s.bootTarget = item }

// Booted reports the one-shot boot-complete signal.
func (s *Sequencer) Booted() bool { return s.booted }

// ============================================================================
// Defer/batch
// ============================================================================

// BeginDefer suppresses resume passes; calls nest.
func (s *Sequencer) BeginDefer() { s.deferDepth++ }

// EndDefer re-enables resume passes. If any pass was requested while
// deferred, exactly one runs now.
func (s *Sequencer) EndDefer() {
	if s.deferDepth == 0 {
		s.log.Error("unbalanced EndDefer")
		return
	}
	s.deferDepth--
	if s.deferDepth == 0 && s.pendingResumePass {
		s.pendingResumePass = false
		pending := s.pendingContainers
		s.pendingContainers = make(map[id.Handle]bool)
		for c := range pending {
			s.ResumeTopIn(c)
		}
	}
}

// Deferred reports whether resume passes are currently suppressed.
func (s *Sequencer) Deferred() bool { return s.deferDepth > 0 }

// ============================================================================
// Resume
// ============================================================================

// ResumeTopIn makes the container's top running item the resumed one.
// While deferred, the request is recorded, not executed. While any
// item anywhere is still pausing, the request parks until the last
// pause acknowledgment arrives.
func (s *Sequencer) ResumeTopIn(container id.Handle) {
	if s.deferDepth > 0 {
		s.pendingResumePass = true
		s.pendingContainers[container] = true
		return
	}
	c, ok := s.state.Container(container)
	if !ok {
		s.log.Error("resume requested for stale container", zap.String("container", container.String()))
		return
	}
	top := s.state.TopRunningItem(container)
	if top == nil {
		return
	}
	if top.State == types.StateResumed {
		return
	}

	s.pauseOthersOn(c, top.Handle)

	if !s.state.AllPausedComplete() {
		s.resumeWaiting[container] = true
		return
	}
	s.resumeNow(top)
}

// pauseOthersOn pauses every resumed item on the container's surface
// except the one about to come forward.
func (s *Sequencer) pauseOthersOn(c *model.Container, except id.Handle) {
	sf := s.state.SurfaceOf(c)
	if sf == nil {
		return
	}
	for _, w := range s.state.ResumedItemsOn(sf.ID) {
		if w.Handle == except {
			continue
		}
		s.StartPausing(w)
	}
}

// StartPausing transitions a resumed item to Pausing and delivers the
// pause instruction with a bounded timeout.
func (s *Sequencer) StartPausing(w *model.WorkItem) {
	if !s.transition(w, types.StatePausing) {
		return
	}
	s.deliver(w, host.InstrPause)
	s.Schedule(TimerPause, w.Handle, PauseTimeout)
}

// resumeNow instantiates or redelivers the item and marks it resumed.
// A dead process is re-acquired once; the second consecutive failure
// finishes the item with a crash disposition.
func (s *Sequencer) resumeNow(w *model.WorkItem) {
	fresh := w.State == types.StateInitializing

	if w.Process == 0 {
		if !s.ensureProcess(w) {
			return
		}
	}

	instr := host.InstrResume
	if fresh {
		instr = host.InstrLaunch
	}
	if err := s.host.DeliverLifecycle(context.Background(), host.ProcessHandle(w.Process), w.Handle, w.LaunchToken, instr); err != nil {
		s.log.Warn("lifecycle delivery failed, refetching process",
			zap.String("item", w.Handle.String()), zap.Error(err))
		w.Process = 0
		if !s.ensureProcess(w) {
			return
		}
		if err := s.host.DeliverLifecycle(context.Background(), host.ProcessHandle(w.Process), w.Handle, w.LaunchToken, instr); err != nil {
			s.failItem(w, "lifecycle delivery failed twice: "+err.Error())
			return
		}
	}
	w.CrashCount = 0

	if !s.transition(w, types.StateResumed) {
		return
	}
	w.Visible = true
	w.Idle = false
	w.Sleeping = false
	s.Schedule(TimerIdle, w.Handle, IdleTimeout)
	if fresh {
		s.Schedule(TimerLaunch, w.Handle, LaunchTimeout)
	}
}

// ensureProcess fetches a process handle, retrying once. Reports
// whether the item now has a live process.
func (s *Sequencer) ensureProcess(w *model.WorkItem) bool {
	spec := host.ProcessSpec{Component: w.Component, Affinity: w.Affinity, UserID: id.UserOf(w.TaskID)}
	proc, err := s.host.EnsureProcess(context.Background(), spec)
	if err != nil {
		s.log.Warn("ensure process failed, retrying once",
			zap.String("item", w.Handle.String()), zap.Error(err))
		proc, err = s.host.EnsureProcess(context.Background(), spec)
		if err != nil {
			s.failItem(w, "process acquisition failed twice: "+err.Error())
			return false
		}
	}
	w.Process = uint64(proc)
	return true
}

// failItem applies the crash disposition: the item is destroyed and
// the failure propagates to whoever asked for the resume.
func (s *Sequencer) failItem(w *model.WorkItem, reason string) {
	s.log.Error("finishing item with crash disposition",
		zap.String("item", w.Handle.String()),
		zap.String("component", w.Component.String()),
		zap.String("reason", reason))
	w.Finishing = true
	w.CrashCount++
	h := w.Handle
	if w.State.CanTransition(types.StateFinishing) {
		s.transition(w, types.StateFinishing)
	}
	if w.State.CanTransition(types.StateDestroying) {
		s.transition(w, types.StateDestroying)
		s.transition(w, types.StateDestroyed)
	} else {
		// The process is gone; jump to terminal rather than wait on
		// acks that cannot arrive.
		from := w.State
		w.State = types.StateDestroyed
		if s.OnTransition != nil {
			s.OnTransition(w, from, types.StateDestroyed)
		}
	}
	if s.OnSecondFailure != nil {
		s.OnSecondFailure(h, reason)
	}
	if s.OnItemDestroyed != nil {
		s.OnItemDestroyed(h)
	}
}

// ============================================================================
// Acks and timeouts
// ============================================================================

// HandleAck advances the state machine on a host acknowledgment.
func (s *Sequencer) HandleAck(ack host.Ack) {
	w, ok := s.state.Item(ack.Item)
	if !ok {
		return
	}
	switch ack.Instruction {
	case host.InstrPause:
		s.CancelTimer(TimerPause, w.Handle)
		s.completePause(w)
	case host.InstrStop:
		s.CancelTimer(TimerStop, w.Handle)
		s.completeStop(w)
	case host.InstrDestroy:
		s.CancelTimer(TimerDestroy, w.Handle)
		s.completeDestroy(w)
	}
}

// HandleTimeout force-advances a transition whose ack never arrived.
func (s *Sequencer) HandleTimeout(kind TimerKind, item id.Handle) {
	w, ok := s.state.Item(item)
	if !ok {
		return
	}
	switch kind {
	case TimerPause:
		if w.State == types.StatePausing {
			s.log.Warn("pause timeout, forcing paused", zap.String("item", item.String()))
			s.completePause(w)
		}
	case TimerIdle:
		s.log.Warn("idle timeout, treating as idle", zap.String("item", item.String()))
		s.HandleIdle(item)
	case TimerLaunch:
		s.log.Warn("launch timeout, releasing launch hold", zap.String("item", item.String()))
		s.HandleIdle(item)
	case TimerStop:
		if w.State == types.StateStopping {
			s.log.Warn("stop timeout, forcing stopped", zap.String("item", item.String()))
			s.completeStop(w)
		}
	case TimerDestroy:
		if w.State == types.StateDestroying {
			s.log.Warn("destroy timeout, forcing destroyed", zap.String("item", item.String()))
			s.completeDestroy(w)
		}
	}
}

// completePause finishes the Pausing -> Paused edge, queues the item
// for stop when it is off-screen or its surface sleeps, and unparks
// resume requests gated on the all-paused condition.
func (s *Sequencer) completePause(w *model.WorkItem) {
	if !s.transition(w, types.StatePaused) {
		return
	}
	w.Visible = s.stillVisible(w)

	if w.Finishing {
		var c *model.Container
		if g := s.state.GroupOfItem(w); g != nil {
			c = s.state.ContainerOf(g)
		}
		if c != nil && s.state.TopRunningItem(c.Handle) != nil {
			// The item below comes forward now; destruction waits
			// for its idle flush.
			s.finishing = append(s.finishing, w.Handle)
			s.ResumeTopIn(c.Handle)
		} else {
			// Nothing left to come forward, so nothing to wait on.
			s.destroyFromAnyState(w)
		}
	} else if s.surfaceSleeping(w) || !w.Visible {
		s.stopping = append(s.stopping, w.Handle)
	}

	if s.state.AllPausedComplete() {
		waiting := s.resumeWaiting
		s.resumeWaiting = make(map[id.Handle]bool)
		for c := range waiting {
			s.ResumeTopIn(c)
		}
	}
}

func (s *Sequencer) completeStop(w *model.WorkItem) {
	if !s.transition(w, types.StateStopped) {
		return
	}
	if w.Finishing {
		s.destroyItem(w)
	}
}

func (s *Sequencer) completeDestroy(w *model.WorkItem) {
	h := w.Handle
	if !s.transition(w, types.StateDestroyed) {
		return
	}
	if s.OnItemDestroyed != nil {
		s.OnItemDestroyed(h)
	}
}

// stillVisible reports whether a paused item remains on screen: top of
// its group, group fronting its container, and the container either at
// the front of the surface or behind one that does not occlude it.
// Split-surface siblings stay paused-visible instead of stopping.
func (s *Sequencer) stillVisible(w *model.WorkItem) bool {
	g := s.state.GroupOfItem(w)
	if g == nil || g.TopItem() != w.Handle {
		return false
	}
	c := s.state.ContainerOf(g)
	if c == nil || c.TopGroup() != g.ID {
		return false
	}
	sf := s.state.SurfaceOf(c)
	if sf == nil {
		return false
	}
	front := s.state.FrontContainer(sf.ID)
	if front == nil {
		return false
	}
	if front == c {
		return true
	}
	switch front.Mode {
	case types.ModeFullscreen, types.ModeSingleTask:
		return false
	}
	return true
}

func (s *Sequencer) surfaceSleeping(w *model.WorkItem) bool {
	g := s.state.GroupOfItem(w)
	if g == nil {
		return false
	}
	c := s.state.ContainerOf(g)
	if c == nil {
		return false
	}
	sf := s.state.SurfaceOf(c)
	return sf != nil && sf.Sleeping
}

// ============================================================================
// Idle
// ============================================================================

// HandleIdle marks the item settled and flushes the stop and finish
// queues. The queues are collected first and cleared before acting so
// the work cannot mutate what is being iterated.
func (s *Sequencer) HandleIdle(item id.Handle) {
	if w, ok := s.state.Item(item); ok {
		w.Idle = true
		s.CancelTimer(TimerIdle, item)
		s.CancelTimer(TimerLaunch, item)
	}

	toStop := s.stopping
	toFinish := s.finishing
	s.stopping = nil
	s.finishing = nil

	for _, h := range toStop {
		if w, ok := s.state.Item(h); ok && w.State == types.StatePaused {
			s.stopItem(w)
		}
	}
	for _, h := range toFinish {
		if w, ok := s.state.Item(h); ok {
			s.destroyFromAnyState(w)
		}
	}

	if !s.booted && s.bootTarget != 0 && item == s.bootTarget {
		s.booted = true
		if s.OnBootComplete != nil {
			s.OnBootComplete()
		}
	}
}

// DeliverNewIntent redelivers to an existing top item instead of
// creating a new record.
func (s *Sequencer) DeliverNewIntent(item id.Handle) {
	w, ok := s.state.Item(item)
	if !ok {
		return
	}
	w.NewIntentCount++
	s.deliver(w, host.InstrNewIntent)
}

// StopBackground stops an item that finished launching behind the
// visible ones.
func (s *Sequencer) StopBackground(item id.Handle) {
	w, ok := s.state.Item(item)
	if !ok {
		return
	}
	w.Visible = false
	if w.State == types.StatePaused {
		s.stopItem(w)
	}
}

// stopItem drives Paused -> Stopping with a bounded timeout.
func (s *Sequencer) stopItem(w *model.WorkItem) {
	if !s.transition(w, types.StateStopping) {
		return
	}
	s.deliver(w, host.InstrStop)
	s.Schedule(TimerStop, w.Handle, StopTimeout)
}

// ============================================================================
// Finish and destroy
// ============================================================================

// Finish marks an item finishing. A resumed item pauses first; a
// quiescent one is destroyed on the next idle flush.
func (s *Sequencer) Finish(item id.Handle) {
	w, ok := s.state.Item(item)
	if !ok {
		return
	}
	if w.Finishing {
		return
	}
	w.Finishing = true
	switch w.State {
	case types.StateResumed:
		s.StartPausing(w)
	case types.StatePausing, types.StateStopping, types.StateDestroying:
		// In flight; the ack path routes finishing items onward.
	default:
		s.finishing = append(s.finishing, w.Handle)
	}
}

func (s *Sequencer) destroyFromAnyState(w *model.WorkItem) {
	switch w.State {
	case types.StatePaused, types.StateStopped, types.StateInitializing:
		if w.State.CanTransition(types.StateFinishing) {
			s.transition(w, types.StateFinishing)
		}
		s.destroyItem(w)
	case types.StateFinishing:
		s.destroyItem(w)
	}
}

// destroyItem delivers destroy and waits for the ack, bounded.
func (s *Sequencer) destroyItem(w *model.WorkItem) {
	if !s.transition(w, types.StateDestroying) {
		return
	}
	if w.Process != 0 {
		s.deliver(w, host.InstrDestroy)
		s.Schedule(TimerDestroy, w.Handle, DestroyTimeout)
		return
	}
	// No process to tear down; complete immediately.
	s.completeDestroy(w)
}

// ============================================================================
// Sleep
// ============================================================================

// SleepSurfaceItems pushes every running item on a sleeping surface
// toward stopped.
func (s *Sequencer) SleepSurfaceItems(surfaceID int) {
	sf, ok := s.state.Surface(surfaceID)
	if !ok {
		return
	}
	for _, ch := range sf.Containers {
		c, ok := s.state.Container(ch)
		if !ok {
			continue
		}
		for _, tid := range c.Groups {
			g, ok := s.state.Group(tid)
			if !ok {
				continue
			}
			for _, ih := range g.Items {
				w, ok := s.state.Item(ih)
				if !ok {
					continue
				}
				w.Sleeping = true
				switch w.State {
				case types.StateResumed:
					s.StartPausing(w)
				case types.StatePaused:
					s.stopItem(w)
				}
			}
		}
	}
}

// WakeSurfaceItems clears sleep marks; the caller follows up with a
// resume pass on the surface's last focused container.
func (s *Sequencer) WakeSurfaceItems(surfaceID int) {
	sf, ok := s.state.Surface(surfaceID)
	if !ok {
		return
	}
	for _, ch := range sf.Containers {
		c, ok := s.state.Container(ch)
		if !ok {
			continue
		}
		for _, tid := range c.Groups {
			g, ok := s.state.Group(tid)
			if !ok {
				continue
			}
			for _, ih := range g.Items {
				if w, ok := s.state.Item(ih); ok {
					w.Sleeping = false
				}
			}
		}
	}
}

// AllQuiescent reports whether no item is mid-transition, the
// condition the bounded shutdown poll waits for.
func (s *Sequencer) AllQuiescent() bool {
	quiet := true
	s.state.Items.ForEach(func(_ id.Handle, w *model.WorkItem) bool {
		if w.Stuck() || w.State == types.StateResumed {
			quiet = false
			return false
		}
		return true
	})
	return quiet
}

// ============================================================================
// Helpers
// ============================================================================

// transition applies one legal edge. Illegal requests log loudly and
// become no-ops rather than corrupting state.
func (s *Sequencer) transition(w *model.WorkItem, to types.LifecycleState) bool {
	from := w.State
	if !from.CanTransition(to) {
		s.log.Error("illegal lifecycle transition ignored",
			zap.String("item", w.Handle.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		return false
	}
	w.State = to
	if s.OnTransition != nil {
		s.OnTransition(w, from, to)
	}
	return true
}

// deliver sends one instruction, tolerating a dead process; the item
// ends up force-advanced by the corresponding timeout.
func (s *Sequencer) deliver(w *model.WorkItem, instr host.Instruction) {
	if w.Process == 0 {
		return
	}
	if err := s.host.DeliverLifecycle(context.Background(), host.ProcessHandle(w.Process), w.Handle, w.LaunchToken, instr); err != nil {
		s.log.Warn("lifecycle delivery failed",
			zap.String("item", w.Handle.String()),
			zap.String("instruction", string(instr)),
			zap.Error(err))
	}
}
