package lifecycle

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/luminos-ui/shellhost/internal/domain/host"
	"github.com/luminos-ui/shellhost/internal/domain/model"
	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// fixture wires a sequencer to a loopback host with buffered acks and
// recorded timers, so tests advance the machine step by step.
type fixture struct {
	state     *model.State
	lb        *host.Loopback
	seq       *Sequencer
	acks      []host.Ack
	timers    map[string]bool
	destroyed []id.Handle
	failures  []string
}

func timerKey(kind TimerKind, item id.Handle) string {
	return fmt.Sprintf("%s/%s", kind, item)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state:  model.NewState(),
		lb:     host.NewLoopback(),
		timers: make(map[string]bool),
	}
	if _, err := f.state.AddSurface(model.DefaultSurfaceID, types.Bounds{Width: 1920, Height: 1080}); err != nil {
		t.Fatalf("add surface: %v", err)
	}
	f.lb.SetAckFunc(func(a host.Ack) { f.acks = append(f.acks, a) })

	f.seq = NewSequencer(f.state, f.lb, zap.NewNop())
	f.seq.Schedule = func(kind TimerKind, item id.Handle, _ time.Duration) {
		f.timers[timerKey(kind, item)] = true
	}
	f.seq.CancelTimer = func(kind TimerKind, item id.Handle) {
		delete(f.timers, timerKey(kind, item))
	}
	f.seq.OnItemDestroyed = func(h id.Handle) {
		f.destroyed = append(f.destroyed, h)
		f.state.RemoveItem(h)
	}
	f.seq.OnSecondFailure = func(_ id.Handle, reason string) {
		f.failures = append(f.failures, reason)
	}
	return f
}

// drainAcks feeds buffered acknowledgments back into the sequencer,
// including any generated while handling earlier ones.
func (f *fixture) drainAcks() {
	for len(f.acks) > 0 {
		pending := f.acks
		f.acks = nil
		for _, a := range pending {
			f.seq.HandleAck(a)
		}
	}
}

// spawn creates a group in a fresh fullscreen container with one item.
func (f *fixture) spawn(t *testing.T, comp string) (id.Handle, id.Handle, int) {
	t.Helper()
	cn := types.ComponentName{Package: comp, Class: "Main"}
	c, err := f.state.CreateContainer(model.DefaultSurfaceID, types.ModeFullscreen, types.TypeStandard)
	if err != nil {
		t.Fatalf("create container: %v", err)
	}
	g, err := f.state.CreateGroup(0, nil, func(g *model.Group) {
		g.BaseComponent = cn
		g.Affinity = comp
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := f.state.AttachGroup(g.ID, c); err != nil {
		t.Fatalf("attach group: %v", err)
	}
	item, err := f.state.CreateItem(g.ID, cn, comp, "tok")
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return item, c, g.ID
}

func (f *fixture) item(t *testing.T, h id.Handle) *model.WorkItem {
	t.Helper()
	w, ok := f.state.Item(h)
	if !ok {
		t.Fatalf("item %s gone", h)
	}
	return w
}

func TestResumeFreshItem(t *testing.T) {
	f := newFixture(t)
	a, ca, _ := f.spawn(t, "ui.home")

	f.seq.ResumeTopIn(ca)

	if got := f.item(t, a).State; got != types.StateResumed {
		t.Fatalf("state = %s, want resumed", got)
	}
	if n := f.lb.DeliveredCount(host.InstrLaunch); n != 1 {
		t.Fatalf("launch deliveries = %d, want 1", n)
	}
	if !f.timers[timerKey(TimerIdle, a)] {
		t.Fatal("idle timer not scheduled")
	}
	if !f.timers[timerKey(TimerLaunch, a)] {
		t.Fatal("launch timer not scheduled")
	}
}

func TestPauseGatesResume(t *testing.T) {
	f := newFixture(t)
	a, ca, _ := f.spawn(t, "ui.alpha")
	b, cb, _ := f.spawn(t, "ui.beta")

	f.seq.ResumeTopIn(ca)
	f.drainAcks()
	if got := f.item(t, a).State; got != types.StateResumed {
		t.Fatalf("a = %s, want resumed", got)
	}

	f.state.MoveContainerToFront(cb)
	f.seq.ResumeTopIn(cb)

	// Pause delivered to a, resume of b parked until the ack lands.
	if got := f.item(t, a).State; got != types.StatePausing {
		t.Fatalf("a = %s, want pausing", got)
	}
	if got := f.item(t, b).State; got == types.StateResumed {
		t.Fatal("b resumed before a finished pausing")
	}

	f.drainAcks()
	if got := f.item(t, a).State; got != types.StatePaused {
		t.Fatalf("a = %s, want paused", got)
	}
	if got := f.item(t, b).State; got != types.StateResumed {
		t.Fatalf("b = %s, want resumed", got)
	}

	// Never more than one resumed item on the surface.
	if n := len(f.state.ResumedItemsOn(model.DefaultSurfaceID)); n != 1 {
		t.Fatalf("resumed items = %d, want 1", n)
	}
}

func TestDeferBatchesResume(t *testing.T) {
	f := newFixture(t)
	_, ca, _ := f.spawn(t, "ui.gamma")

	f.seq.BeginDefer()
	f.seq.BeginDefer()
	f.seq.ResumeTopIn(ca)
	f.seq.ResumeTopIn(ca)
	f.seq.ResumeTopIn(ca)
	f.seq.EndDefer()

	if n := f.lb.DeliveredCount(host.InstrLaunch); n != 0 {
		t.Fatalf("resume ran while deferred: %d deliveries", n)
	}

	f.seq.EndDefer()
	if n := f.lb.DeliveredCount(host.InstrLaunch); n != 1 {
		t.Fatalf("launch deliveries = %d, want exactly 1", n)
	}
}

func TestPauseTimeoutForcesAdvance(t *testing.T) {
	f := newFixture(t)
	a, ca, _ := f.spawn(t, "ui.hung")
	b, cb, _ := f.spawn(t, "ui.next")

	f.seq.ResumeTopIn(ca)
	f.drainAcks()

	f.lb.Silence(host.InstrPause)
	f.state.MoveContainerToFront(cb)
	f.seq.ResumeTopIn(cb)
	f.drainAcks()

	if got := f.item(t, a).State; got != types.StatePausing {
		t.Fatalf("a = %s, want pausing", got)
	}

	f.seq.HandleTimeout(TimerPause, a)
	f.drainAcks()

	if got := f.item(t, a).State; got != types.StatePaused {
		t.Fatalf("a = %s after timeout, want paused", got)
	}
	if got := f.item(t, b).State; got != types.StateResumed {
		t.Fatalf("b = %s after timeout, want resumed", got)
	}
}

func TestIdleFlushStopsBackgroundItems(t *testing.T) {
	f := newFixture(t)
	a, ca, _ := f.spawn(t, "ui.back")
	b, cb, _ := f.spawn(t, "ui.front")

	f.seq.ResumeTopIn(ca)
	f.drainAcks()
	f.state.MoveContainerToFront(cb)
	f.seq.ResumeTopIn(cb)
	f.drainAcks()

	if got := f.item(t, a).State; got != types.StatePaused {
		t.Fatalf("a = %s, want paused", got)
	}
	if n := f.lb.DeliveredCount(host.InstrStop); n != 0 {
		t.Fatal("stop delivered before idle")
	}

	f.seq.HandleIdle(b)
	f.drainAcks()

	if got := f.item(t, a).State; got != types.StateStopped {
		t.Fatalf("a = %s after idle flush, want stopped", got)
	}
}

func TestFinishResumedItem(t *testing.T) {
	f := newFixture(t)
	a, ca, _ := f.spawn(t, "ui.done")

	f.seq.ResumeTopIn(ca)
	f.drainAcks()

	// Nothing is behind a, so the pause ack rolls straight into
	// destroy without waiting for an idle flush.
	f.seq.Finish(a)
	f.drainAcks()

	if len(f.destroyed) != 1 || f.destroyed[0] != a {
		t.Fatalf("destroyed = %v, want [%s]", f.destroyed, a)
	}
	if _, ok := f.state.Item(a); ok {
		t.Fatal("item record survived destroy")
	}
}

func TestDoubleProcessFailureFinishesItem(t *testing.T) {
	f := newFixture(t)
	a, ca, _ := f.spawn(t, "ui.crashy")

	f.lb.FailEnsure("ui.crashy", 2)
	f.seq.ResumeTopIn(ca)

	if len(f.failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(f.failures))
	}
	if _, ok := f.state.Item(a); ok {
		t.Fatal("crashed item still in state")
	}
}

func TestSingleProcessFailureRetries(t *testing.T) {
	f := newFixture(t)
	a, ca, _ := f.spawn(t, "ui.flaky")

	f.lb.FailEnsure("ui.flaky", 1)
	f.seq.ResumeTopIn(ca)

	if len(f.failures) != 0 {
		t.Fatalf("failures = %v, want none", f.failures)
	}
	if got := f.item(t, a).State; got != types.StateResumed {
		t.Fatalf("a = %s, want resumed after retry", got)
	}
}

func TestSleepStopsSurfaceItems(t *testing.T) {
	f := newFixture(t)
	a, ca, _ := f.spawn(t, "ui.sleepy")

	f.seq.ResumeTopIn(ca)
	f.drainAcks()

	sf, _ := f.state.Surface(model.DefaultSurfaceID)
	sf.Sleeping = true
	f.seq.SleepSurfaceItems(model.DefaultSurfaceID)
	f.drainAcks()

	if got := f.item(t, a).State; got != types.StatePaused {
		t.Fatalf("a = %s, want paused", got)
	}
	f.seq.HandleIdle(a)
	f.drainAcks()
	if got := f.item(t, a).State; got != types.StateStopped {
		t.Fatalf("a = %s, want stopped on sleeping surface", got)
	}
	if !f.item(t, a).Sleeping {
		t.Fatal("sleep mark not set")
	}
}

func TestBootCompleteFiresOnce(t *testing.T) {
	f := newFixture(t)
	a, ca, _ := f.spawn(t, "ui.home")

	fired := 0
	f.seq.OnBootComplete = func() { fired++ }
	f.seq.SetBootTarget(a)

	f.seq.ResumeTopIn(ca)
	f.drainAcks()
	f.seq.HandleIdle(a)
	f.seq.HandleIdle(a)

	if fired != 1 {
		t.Fatalf("boot-complete fired %d times, want 1", fired)
	}
	if !f.seq.Booted() {
		t.Fatal("Booted() = false after boot target idled")
	}
}

func TestAllQuiescentAfterTeardown(t *testing.T) {
	f := newFixture(t)
	a, ca, _ := f.spawn(t, "ui.last")

	f.seq.ResumeTopIn(ca)
	f.drainAcks()
	if f.seq.AllQuiescent() {
		t.Fatal("quiescent with a resumed item")
	}

	f.seq.Finish(a)
	f.drainAcks()

	if !f.seq.AllQuiescent() {
		t.Fatal("not quiescent after teardown")
	}
}
