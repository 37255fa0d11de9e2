// Package orchestrator is the single-owner actor at the core of the
// shell host. All world-graph mutation happens on one goroutine
// draining one FIFO command queue; public methods marshal onto that
// queue and external acknowledgments arrive as queued commands, never
// as concurrent mutation.
package orchestrator

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luminos-ui/shellhost/internal/domain/catalog"
	"github.com/luminos-ui/shellhost/internal/domain/compositor"
	"github.com/luminos-ui/shellhost/internal/domain/host"
	"github.com/luminos-ui/shellhost/internal/domain/lifecycle"
	"github.com/luminos-ui/shellhost/internal/domain/locktask"
	"github.com/luminos-ui/shellhost/internal/domain/model"
	"github.com/luminos-ui/shellhost/internal/domain/policy"
	"github.com/luminos-ui/shellhost/internal/domain/recents"
	"github.com/luminos-ui/shellhost/internal/domain/resolver"
	"github.com/luminos-ui/shellhost/internal/infrastructure/monitoring"
	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// Options wires the orchestrator's collaborators. Host, Compositor,
// Policy, Recents, and Catalog are required; nil Log, Metrics, and
// Notifier fall back to no-ops.
type Options struct {
	Log        *zap.Logger
	Metrics    *monitoring.Metrics
	Host       host.Host
	Compositor compositor.Client
	Policy     policy.Checker
	Recents    recents.Store
	Catalog    *catalog.Catalog
	Notifier   Notifier
}

type timerKey struct {
	kind lifecycle.TimerKind
	item id.Handle
}

type pendingLaunch struct {
	req  *types.LaunchRequest
	when time.Time
}

// Orchestrator owns the world graph and every policy that mutates it.
type Orchestrator struct {
	log     *zap.Logger
	metrics *monitoring.Metrics

	state   *model.State
	seq     *lifecycle.Sequencer
	res     *resolver.Resolver
	guard   *locktask.Guard
	catalog *catalog.Catalog

	recents  recents.Store
	comp     compositor.Client
	host     host.Host
	policy   policy.Checker
	notifier Notifier

	loop *looper

	// timers fire on their own goroutines and post back; the map needs
	// its own lock.
	timersMu sync.Mutex
	timers   map[timerKey]*time.Timer

	// sleeping is the system-wide sleep request; per-surface state is
	// resolved against it on every walk.
	sleeping bool

	// sleepTokens maps token id to the surface it holds asleep.
	sleepTokens map[string]int

	// appSwitchesAllowed gates launches; while false, non-allowlisted
	// requests park on the pending queue.
	appSwitchesAllowed bool
	pending            []pendingLaunch

	// txWaits maps in-flight compositor transactions to their
	// completion step. Every wait is bounded: a lost ack must not hold
	// the resume gate shut, so each transaction arms a timer that
	// assumes failure and completes anyway.
	txWaits   map[string]func()
	txTimers  map[string]*time.Timer
	txTimeout time.Duration

	shuttingDown  bool
	bootTargetSet bool

	eventFn func(Event)
}

// New builds a stopped orchestrator; call Run to start the loop.
func New(opts Options) *Orchestrator {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}

	state := model.NewState()
	guard := locktask.NewGuard()

	o := &Orchestrator{
		log:                log,
		metrics:            opts.Metrics,
		state:              state,
		guard:              guard,
		catalog:            opts.Catalog,
		recents:            opts.Recents,
		comp:               opts.Compositor,
		host:               opts.Host,
		policy:             opts.Policy,
		notifier:           notifier,
		loop:               newLooper(),
		timers:             make(map[timerKey]*time.Timer),
		sleepTokens:        make(map[string]int),
		appSwitchesAllowed: true,
		txWaits:            make(map[string]func()),
		txTimers:           make(map[string]*time.Timer),
		txTimeout:          TransactionTimeout,
	}

	o.res = resolver.New(state, opts.Recents, opts.Policy, guard, log)
	o.seq = lifecycle.NewSequencer(state, opts.Host, log)
	o.seq.Schedule = o.scheduleTimer
	o.seq.CancelTimer = o.cancelTimer
	o.seq.OnTransition = o.onTransition
	o.seq.OnItemDestroyed = o.onItemDestroyed
	o.seq.OnSecondFailure = o.onSecondFailure
	o.seq.OnBootComplete = o.onBootComplete

	guard.SetOnEmpty(o.onLockEmpty)

	opts.Host.SetAckFunc(func(a host.Ack) {
		o.post("host-ack", func() { o.seq.HandleAck(a) })
	})
	opts.Compositor.SetAckFunc(func(txID string) {
		o.post("compositor-ack", func() { o.transactionDone(txID) })
	})

	return o
}

// Run starts the loop goroutine.
func (o *Orchestrator) Run() {
	go o.loop.run(func(name string, depth int) {
		if o.metrics != nil {
			o.metrics.RecordCommand(name)
			o.metrics.SetQueueDepth(depth)
		}
	})
}

// Stop drains the queue and stops the loop. Pending timers are
// cancelled; in-flight lifecycle transitions are abandoned.
func (o *Orchestrator) Stop() {
	o.loop.stop()
	o.loop.wait()

	o.timersMu.Lock()
	for key, t := range o.timers {
		t.Stop()
		delete(o.timers, key)
	}
	o.timersMu.Unlock()
}

// post enqueues asynchronous work on the loop.
func (o *Orchestrator) post(name string, fn func()) {
	if !o.loop.post(command{name: name, fn: fn}) {
		o.log.Debug("command dropped, orchestrator stopped", zap.String("command", name))
	}
}

// call runs fn on the loop and waits for it. Must not be called from
// the loop goroutine.
func (o *Orchestrator) call(name string, fn func()) {
	done := make(chan struct{})
	if !o.loop.post(command{name: name, fn: func() {
		defer close(done)
		fn()
	}}) {
		return
	}
	<-done
}

// ============================================================================
// Timers
// ============================================================================

func (o *Orchestrator) scheduleTimer(kind lifecycle.TimerKind, item id.Handle, d time.Duration) {
	key := timerKey{kind: kind, item: item}
	o.timersMu.Lock()
	if t, ok := o.timers[key]; ok {
		t.Stop()
	}
	o.timers[key] = time.AfterFunc(d, func() {
		o.timersMu.Lock()
		delete(o.timers, key)
		o.timersMu.Unlock()
		if o.metrics != nil {
			o.metrics.RecordTimerExpiry(string(kind))
		}
		o.post("timeout/"+string(kind), func() { o.seq.HandleTimeout(kind, item) })
	})
	o.timersMu.Unlock()
}

func (o *Orchestrator) cancelTimer(kind lifecycle.TimerKind, item id.Handle) {
	key := timerKey{kind: kind, item: item}
	o.timersMu.Lock()
	if t, ok := o.timers[key]; ok {
		t.Stop()
		delete(o.timers, key)
	}
	o.timersMu.Unlock()
}

// ============================================================================
// Sequencer callbacks (loop goroutine)
// ============================================================================

func (o *Orchestrator) onTransition(w *model.WorkItem, from, to types.LifecycleState) {
	if o.metrics != nil {
		o.metrics.RecordTransition(string(from), string(to))
	}
	o.emit(Event{
		Type:      EventTransition,
		Item:      w.Handle.String(),
		Component: w.Component,
		From:      string(from),
		To:        string(to),
		TaskID:    w.TaskID,
	})
	o.publishCounts()
}

// onItemDestroyed removes the record and cascades: an emptied group is
// refreshed in the recency store and removed from the live graph, its
// container pruned, any lock it held released, and focus repaired.
func (o *Orchestrator) onItemDestroyed(h id.Handle) {
	taskID, emptied, err := o.state.RemoveItem(h)
	if err != nil {
		return
	}
	if emptied {
		if g, ok := o.state.Group(taskID); ok {
			if !g.Forgotten {
				o.recents.Add(o.state.Info(g))
			}
			containerH := g.Container
			if err := o.state.RemoveGroup(taskID); err != nil {
				o.log.Error("remove emptied group", zap.Int("task_id", taskID), zap.Error(err))
			}
			o.state.PruneContainerIfEmpty(containerH)
		}
		if o.guard.Locked(taskID) {
			o.guard.Stop(taskID)
		}
	}
	o.ensureFocusAndResume()
}

func (o *Orchestrator) onSecondFailure(item id.Handle, reason string) {
	if o.metrics != nil {
		o.metrics.CrashFinishes.Inc()
	}
	o.emit(Event{Type: EventCrashFinish, Item: item.String(), Reason: reason})
}

func (o *Orchestrator) onBootComplete() {
	o.log.Info("boot complete")
	o.emit(Event{Type: EventBootComplete})
}

func (o *Orchestrator) onLockEmpty() {
	o.notifier.LockEnded()
	o.emit(Event{Type: EventLockEnded})
}

// ============================================================================
// Focus maintenance (loop goroutine)
// ============================================================================

// focusOrder asks the compositor for the surface scan order.
func (o *Orchestrator) focusOrder() []int {
	return o.comp.FocusOrder(o.state.SurfaceIDs())
}

// ensureFocusAndResume repairs a stale focus reference and resumes the
// focused container's top item.
func (o *Orchestrator) ensureFocusAndResume() {
	fo := o.focusOrder()
	if o.state.FocusedContainer() == nil {
		next := o.state.NextFocusable(0, false, fo)
		if next != 0 {
			o.state.SetFocus(next, fo)
		}
	}
	if fc := o.state.FocusedContainer(); fc != nil {
		if sf := o.state.SurfaceOf(fc); sf != nil && !sf.Sleeping {
			o.seq.ResumeTopIn(fc.Handle)
		}
	}
	o.publishCounts()
}

func (o *Orchestrator) publishCounts() {
	if o.metrics == nil {
		return
	}
	c := o.state.Count()
	o.metrics.SetWorldCounts(c.Surfaces, c.Containers, c.Groups, c.Items, c.Resumed)
	o.metrics.SetPendingLaunches(len(o.pending))
}

// ============================================================================
// Compositor transactions (loop goroutine)
// ============================================================================

// TransactionTimeout bounds the wait for a compositor ack. On expiry
// the transaction is treated as acknowledged so deferred resume passes
// run anyway.
const TransactionTimeout = 5 * time.Second

// submitTransaction sends ops to the compositor and registers the
// completion step to run when the ack arrives.
func (o *Orchestrator) submitTransaction(txID string, ops []compositor.Op, onAck func()) {
	if len(ops) == 0 {
		if onAck != nil {
			onAck()
		}
		return
	}
	o.txWaits[txID] = onAck
	if err := o.comp.Submit(compositor.Transaction{ID: txID, Ops: ops}); err != nil {
		o.log.Warn("compositor submit failed, completing immediately",
			zap.String("tx", txID), zap.Error(err))
		delete(o.txWaits, txID)
		if onAck != nil {
			onAck()
		}
		return
	}
	o.txTimers[txID] = time.AfterFunc(o.txTimeout, func() {
		o.post("tx-timeout", func() { o.transactionTimedOut(txID) })
	})
}

func (o *Orchestrator) transactionDone(txID string) {
	if t, ok := o.txTimers[txID]; ok {
		t.Stop()
		delete(o.txTimers, txID)
	}
	fn, ok := o.txWaits[txID]
	if !ok {
		return
	}
	delete(o.txWaits, txID)
	if fn != nil {
		fn()
	}
}

// transactionTimedOut assumes a lost ack: log, count the expiry, and
// run the completion step as if the compositor had answered.
func (o *Orchestrator) transactionTimedOut(txID string) {
	if _, ok := o.txWaits[txID]; !ok {
		return
	}
	o.log.Warn("compositor ack timed out, forcing completion", zap.String("tx", txID))
	if o.metrics != nil {
		o.metrics.RecordTimerExpiry("transaction")
	}
	o.transactionDone(txID)
}
