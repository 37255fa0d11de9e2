package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"github.com/luminos-ui/shellhost/internal/domain/locktask"
	"github.com/luminos-ui/shellhost/internal/domain/model"
	"github.com/luminos-ui/shellhost/internal/domain/policy"
	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// Snapshot returns a consistent copy of the world graph, marshalled
// through the command queue like every other read.
func (o *Orchestrator) Snapshot() model.WorldSnapshot {
	var snap model.WorldSnapshot
	o.call("snapshot", func() { snap = o.state.Snapshot() })
	return snap
}

// Counts tallies the live graph.
func (o *Orchestrator) Counts() model.Counts {
	var c model.Counts
	o.call("counts", func() { c = o.state.Count() })
	return c
}

// ReleaseCandidates lists items a memory reclaimer could destroy:
// stopped, invisible, and outside the focused container.
func (o *Orchestrator) ReleaseCandidates() []id.Handle {
	var out []id.Handle
	o.call("release-candidates", func() { out = o.state.ReleaseCandidates() })
	return out
}

// Recents lists the recency store, most recent first.
func (o *Orchestrator) Recents() []model.GroupInfo {
	return o.recents.List()
}

// Booted reports the one-shot boot-complete signal.
func (o *Orchestrator) Booted() bool {
	booted := false
	o.call("booted", func() { booted = o.seq.Booted() })
	return booted
}

// DumpState is the diagnostics view served by the control API.
type DumpState struct {
	Time            time.Time            `json:"time"`
	World           model.WorldSnapshot  `json:"world"`
	Counts          model.Counts         `json:"counts"`
	Sleeping        bool                 `json:"sleeping"`
	ShuttingDown    bool                 `json:"shutting_down"`
	Booted          bool                 `json:"booted"`
	AppSwitches     bool                 `json:"app_switches_allowed"`
	PendingLaunches int                  `json:"pending_launches"`
	LockChain       []locktask.Entry     `json:"lock_chain,omitempty"`
	SleepTokens     map[string]int       `json:"sleep_tokens,omitempty"`
	Recents         []model.GroupInfo    `json:"recents,omitempty"`
	Focused         string               `json:"focused,omitempty"`
}

// Dump collects the full diagnostics view.
func (o *Orchestrator) Dump() DumpState {
	var d DumpState
	o.call("dump", func() {
		tokens := make(map[string]int, len(o.sleepTokens))
		for tok, sid := range o.sleepTokens {
			tokens[tok] = sid
		}
		d = DumpState{
			Time:            time.Now(),
			World:           o.state.Snapshot(),
			Counts:          o.state.Count(),
			Sleeping:        o.sleeping,
			ShuttingDown:    o.shuttingDown,
			Booted:          o.seq.Booted(),
			AppSwitches:     o.appSwitchesAllowed,
			PendingLaunches: len(o.pending),
			LockChain:       o.guard.Chain(),
			SleepTokens:     tokens,
			Recents:         o.recents.List(),
		}
		if fc := o.state.FocusedContainer(); fc != nil {
			d.Focused = fc.Handle.String()
		}
	})
	return d
}

// ============================================================================
// Restrictive mode
// ============================================================================

// StartLock pins a group: until the lock chain empties, launches
// outside it are refused.
func (o *Orchestrator) StartLock(callerUID, taskID int) bool {
	ok := false
	o.call("lock-start", func() {
		g, found := o.state.Group(taskID)
		if !found {
			return
		}
		if g.LockAuth == types.LockAuthDontLock {
			o.log.Warn("lock refused for dont-lock group", zap.Int("task_id", taskID))
			return
		}
		// Pinning someone else's group needs the control permission.
		if g.LockAuth == types.LockAuthPinnable &&
			!o.policy.CheckPermission(callerUID, policy.PermControlLockMode) {
			return
		}
		if !o.guard.Start(taskID, g.LockAuth) {
			return
		}
		ok = true
		o.emit(Event{Type: EventLockStarted, TaskID: taskID})
	})
	return ok
}

// StopLock unpins a group. Callers other than the locked group's own
// need the control permission.
func (o *Orchestrator) StopLock(callerUID, taskID int) bool {
	ok := false
	o.call("lock-stop", func() {
		if !o.policy.CheckPermission(callerUID, policy.PermControlLockMode) {
			return
		}
		ok = o.guard.Stop(taskID)
	})
	return ok
}

// LockChain returns the current lock stack, outermost first.
func (o *Orchestrator) LockChain() []locktask.Entry {
	var chain []locktask.Entry
	o.call("lock-chain", func() { chain = o.guard.Chain() })
	return chain
}
