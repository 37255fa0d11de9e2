package orchestrator

import (
	"sync"
	"testing"
	"time"

	"github.com/luminos-ui/shellhost/internal/domain/catalog"
	"github.com/luminos-ui/shellhost/internal/domain/compositor"
	"github.com/luminos-ui/shellhost/internal/domain/host"
	"github.com/luminos-ui/shellhost/internal/domain/model"
	"github.com/luminos-ui/shellhost/internal/domain/policy"
	"github.com/luminos-ui/shellhost/internal/domain/recents"
	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

func comp(pkg string) types.ComponentName {
	return types.ComponentName{Package: pkg, Class: "Main"}
}

// recordingNotifier captures outward notifications for assertions.
type recordingNotifier struct {
	mu          sync.Mutex
	forced      []int
	lockEndedN  int
	forcedComps []types.ComponentName
}

func (n *recordingNotifier) ForcedResize(c types.ComponentName, taskID int) {
	n.mu.Lock()
	n.forced = append(n.forced, taskID)
	n.forcedComps = append(n.forcedComps, c)
	n.mu.Unlock()
}

func (n *recordingNotifier) LockEnded() {
	n.mu.Lock()
	n.lockEndedN++
	n.mu.Unlock()
}

func (n *recordingNotifier) lockEnds() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lockEndedN
}

type env struct {
	o        *Orchestrator
	lb       *host.Loopback
	comp     *compositor.Recording
	cat      *catalog.Catalog
	store    *recents.Memory
	notifier *recordingNotifier

	eventsMu sync.Mutex
	events   []Event
}

func newEnv(t *testing.T, checker policy.Checker) *env {
	t.Helper()
	e := &env{
		lb:       host.NewLoopback(),
		comp:     compositor.NewRecording(),
		cat:      catalog.New(),
		store:    recents.NewMemory(),
		notifier: &recordingNotifier{},
	}
	if checker == nil {
		checker = policy.AllowAll{}
	}

	register := func(pkg string, mode types.LaunchMode, resizable bool, auth types.LockAuth) {
		e.cat.Register(catalog.Spec{
			Component:  comp(pkg),
			LaunchMode: mode,
			Resizable:  resizable,
			LockAuth:   auth,
		})
	}
	register("app.alpha", types.LaunchModeMultiple, true, "")
	register("app.beta", types.LaunchModeMultiple, true, "")
	register("app.chat", types.LaunchModeSingleTop, true, "")
	register("app.mail", types.LaunchModeSingleTask, true, "")
	register("app.kiosk", types.LaunchModeSingleTask, false, types.LockAuthLaunchable)
	register("app.crashy", types.LaunchModeMultiple, true, "")

	e.o = New(Options{
		Host:       e.lb,
		Compositor: e.comp,
		Policy:     checker,
		Recents:    e.store,
		Catalog:    e.cat,
		Notifier:   e.notifier,
	})
	e.o.SetEventFunc(func(ev Event) {
		e.eventsMu.Lock()
		e.events = append(e.events, ev)
		e.eventsMu.Unlock()
	})
	e.o.Run()
	t.Cleanup(e.o.Stop)

	if err := e.o.Bootstrap(nil, types.ComponentName{}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return e
}

// settle drains the queue repeatedly; acknowledgment cascades enqueue
// a bounded number of follow-up commands per round.
func (e *env) settle() {
	for i := 0; i < 10; i++ {
		e.o.call("settle", func() {})
	}
}

func (e *env) launch(t *testing.T, req *types.LaunchRequest) types.LaunchResult {
	t.Helper()
	result := e.o.ResolveAndLaunch(req)
	e.settle()
	return result
}

// inspect runs fn on the loop goroutine with the world at rest.
func (e *env) inspect(fn func(s *model.State)) {
	e.o.call("inspect", func() { fn(e.o.state) })
}

func (e *env) itemState(t *testing.T, pkg string) (id.Handle, types.LifecycleState) {
	t.Helper()
	var h id.Handle
	var st types.LifecycleState
	e.inspect(func(s *model.State) {
		g := s.FindGroupByComponent(0, comp(pkg))
		if g == nil {
			return
		}
		h = g.TopItem()
		if w, ok := s.Item(h); ok {
			st = w.State
		}
	})
	if h == 0 {
		t.Fatalf("no live item for %s", pkg)
	}
	return h, st
}

func (e *env) taskID(t *testing.T, pkg string) int {
	t.Helper()
	taskID := 0
	e.inspect(func(s *model.State) {
		if g := s.FindGroupByComponent(0, comp(pkg)); g != nil {
			taskID = g.ID
		}
	})
	if taskID == 0 {
		t.Fatalf("no live group for %s", pkg)
	}
	return taskID
}

func (e *env) assertSingleResumedPerSurface(t *testing.T) {
	t.Helper()
	e.inspect(func(s *model.State) {
		for _, sid := range s.SurfaceIDs() {
			if n := len(s.ResumedItemsOn(sid)); n > 1 {
				t.Errorf("surface %d has %d resumed items", sid, n)
			}
		}
	})
}

func (e *env) eventCount(typ string) int {
	e.eventsMu.Lock()
	defer e.eventsMu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func TestFreshLaunchReachesResumed(t *testing.T) {
	e := newEnv(t, nil)

	result := e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")})
	if result != types.ResultSuccess {
		t.Fatalf("result = %q, want success", result)
	}

	_, st := e.itemState(t, "app.alpha")
	if st != types.StateResumed {
		t.Fatalf("state = %q, want resumed", st)
	}
	if got := e.lb.DeliveredCount(host.InstrLaunch); got != 1 {
		t.Fatalf("launch deliveries = %d, want 1", got)
	}
	counts := e.o.Counts()
	if counts.Groups != 1 || counts.Items != 1 || counts.Resumed != 1 {
		t.Fatalf("counts = %+v", counts)
	}
}

func TestSecondLaunchPausesFirst(t *testing.T) {
	e := newEnv(t, nil)

	e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")})
	e.launch(t, &types.LaunchRequest{Component: comp("app.beta")})

	_, alphaState := e.itemState(t, "app.alpha")
	_, betaState := e.itemState(t, "app.beta")
	if betaState != types.StateResumed {
		t.Fatalf("beta = %q, want resumed", betaState)
	}
	if alphaState == types.StateResumed {
		t.Fatal("alpha still resumed alongside beta")
	}
	e.assertSingleResumedPerSurface(t)
}

func TestIdleStopsInvisibleBackground(t *testing.T) {
	e := newEnv(t, nil)

	e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")})
	e.launch(t, &types.LaunchRequest{Component: comp("app.beta")})

	beta, _ := e.itemState(t, "app.beta")
	e.o.NotifyIdle(beta)
	e.settle()

	_, alphaState := e.itemState(t, "app.alpha")
	if alphaState != types.StateStopped {
		t.Fatalf("alpha = %q, want stopped after idle flush", alphaState)
	}
}

func TestSingleTopDeliversToTop(t *testing.T) {
	e := newEnv(t, nil)

	first := e.launch(t, &types.LaunchRequest{Component: comp("app.chat")})
	if first != types.ResultSuccess {
		t.Fatalf("first = %q", first)
	}
	second := e.launch(t, &types.LaunchRequest{Component: comp("app.chat")})
	if second != types.ResultDeliveredToTop {
		t.Fatalf("second = %q, want delivered-to-top", second)
	}

	if got := e.lb.DeliveredCount(host.InstrNewIntent); got != 1 {
		t.Fatalf("new-intent deliveries = %d, want 1", got)
	}
	counts := e.o.Counts()
	if counts.Items != 1 || counts.Groups != 1 {
		t.Fatalf("counts = %+v, want a single reused item", counts)
	}
}

func TestSingleTaskRelaunchIsIdempotent(t *testing.T) {
	e := newEnv(t, nil)

	e.launch(t, &types.LaunchRequest{Component: comp("app.mail")})
	taskID := e.taskID(t, "app.mail")

	second := e.launch(t, &types.LaunchRequest{Component: comp("app.mail")})
	if second != types.ResultDeliveredToTop {
		t.Fatalf("second = %q, want delivered-to-top", second)
	}
	if got := e.taskID(t, "app.mail"); got != taskID {
		t.Fatalf("task id changed %d -> %d", taskID, got)
	}
	e.assertSingleResumedPerSurface(t)
}

func TestRestoreFromRecencyStore(t *testing.T) {
	e := newEnv(t, nil)

	e.store.Add(model.GroupInfo{
		ID:            100042,
		BaseComponent: comp("app.mail"),
		Affinity:      "app.mail",
		LaunchMode:    types.LaunchModeSingleTask,
		ActivityType:  types.TypeStandard,
		WindowingMode: types.ModeFullscreen,
		Components:    []types.ComponentName{comp("app.mail"), {Package: "app.mail", Class: "Composer"}},
		LastActive:    time.Now(),
	})

	result := e.launch(t, &types.LaunchRequest{Component: comp("app.mail"), TaskID: 100042})
	if result != types.ResultSuccess {
		t.Fatalf("result = %q, want success", result)
	}

	e.inspect(func(s *model.State) {
		g, ok := s.Group(100042)
		if !ok {
			t.Error("restored group not live")
			return
		}
		if len(g.Items) != 2 {
			t.Errorf("restored items = %d, want 2", len(g.Items))
		}
		if w, ok := s.Item(g.TopItem()); !ok || w.State != types.StateResumed {
			t.Error("restored top item not resumed")
		}
	})
}

func TestRestoreUnknownTaskFailsCleanly(t *testing.T) {
	e := newEnv(t, nil)

	before := e.o.Counts()
	result := e.launch(t, &types.LaunchRequest{Component: comp("app.mail"), TaskID: 999999})
	if result != types.ResultRestoreFailed {
		t.Fatalf("result = %q, want restore-failed", result)
	}
	if after := e.o.Counts(); after != before {
		t.Fatalf("counts changed %+v -> %+v", before, after)
	}
}

func TestSleepStopsOnlyUnprotectedSurfaces(t *testing.T) {
	e := newEnv(t, nil)

	if err := e.o.NotifyDisplayAdded(2, types.Bounds{Width: 1280, Height: 720}); err != nil {
		t.Fatalf("add surface: %v", err)
	}
	e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")})
	sid := 2
	e.launch(t, &types.LaunchRequest{Component: comp("app.beta"), SurfaceID: &sid})

	if !e.o.SetKeyguardOverride(model.DefaultSurfaceID, true) {
		t.Fatal("keyguard override rejected")
	}
	e.o.RequestSleep()
	e.settle()

	beta, _ := e.itemState(t, "app.beta")
	e.o.NotifyIdle(beta)
	e.settle()

	_, alphaState := e.itemState(t, "app.alpha")
	_, betaState := e.itemState(t, "app.beta")
	if alphaState != types.StateResumed {
		t.Fatalf("alpha on overridden surface = %q, want resumed", alphaState)
	}
	if betaState != types.StateStopped {
		t.Fatalf("beta on sleeping surface = %q, want stopped", betaState)
	}

	e.o.RequestWake()
	e.settle()
	_, betaState = e.itemState(t, "app.beta")
	if betaState != types.StateResumed {
		t.Fatalf("beta after wake = %q, want resumed", betaState)
	}
}

func TestSleepTokenHoldsOneSurface(t *testing.T) {
	e := newEnv(t, nil)

	e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")})
	token, ok := e.o.CreateSleepToken(model.DefaultSurfaceID)
	if !ok {
		t.Fatal("token creation failed")
	}
	e.settle()

	alpha, _ := e.itemState(t, "app.alpha")
	e.o.NotifyIdle(alpha)
	e.settle()
	if _, st := e.itemState(t, "app.alpha"); st != types.StateStopped {
		t.Fatalf("alpha = %q, want stopped while token held", st)
	}

	if !e.o.ReleaseSleepToken(token) {
		t.Fatal("token release failed")
	}
	e.settle()
	if _, st := e.itemState(t, "app.alpha"); st != types.StateResumed {
		t.Fatalf("alpha = %q, want resumed after release", st)
	}
	if e.o.ReleaseSleepToken(token) {
		t.Fatal("double release accepted")
	}
}

func TestRepeatedProcessFailureAbortsLaunch(t *testing.T) {
	e := newEnv(t, nil)

	e.lb.FailEnsure("app.crashy", 2)
	result := e.launch(t, &types.LaunchRequest{Component: comp("app.crashy")})
	if result != types.ResultCancelled {
		t.Fatalf("result = %q, want cancelled", result)
	}

	counts := e.o.Counts()
	if counts.Items != 0 || counts.Groups != 0 {
		t.Fatalf("counts = %+v, want a clean world", counts)
	}
	if got := e.eventCount(EventCrashFinish); got != 1 {
		t.Fatalf("crash events = %d, want 1", got)
	}

	// The host recovered; the same component launches fine now.
	if result := e.launch(t, &types.LaunchRequest{Component: comp("app.crashy")}); result != types.ResultSuccess {
		t.Fatalf("relaunch = %q, want success", result)
	}
}

func TestBatchedMovesRunOneResumePass(t *testing.T) {
	e := newEnv(t, nil)

	if err := e.o.NotifyDisplayAdded(2, types.Bounds{Width: 1280, Height: 720}); err != nil {
		t.Fatalf("add surface: %v", err)
	}
	e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")})
	e.launch(t, &types.LaunchRequest{Component: comp("app.beta")})
	alphaTask := e.taskID(t, "app.alpha")
	betaTask := e.taskID(t, "app.beta")

	e.comp.HoldAcks = true
	before := len(e.lb.Delivered())

	err := e.o.ApplyBatch([]GroupMove{
		{TaskID: betaTask, TargetSurface: 2, Mode: types.ModeFullscreen},
		{TaskID: alphaTask, TargetSurface: 2, Mode: types.ModeFullscreen},
	})
	if err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	e.settle()

	if got := len(e.lb.Delivered()); got != before {
		t.Fatalf("deliveries while deferred = %d, want %d", got, before)
	}
	deferred := false
	e.o.call("check-deferred", func() { deferred = e.o.seq.Deferred() })
	if !deferred {
		t.Fatal("batch not deferred while acks held")
	}

	e.comp.HoldAcks = false
	e.comp.ReleaseAcks()
	e.settle()

	e.o.call("check-deferred", func() { deferred = e.o.seq.Deferred() })
	if deferred {
		t.Fatal("still deferred after ack")
	}
	if _, st := e.itemState(t, "app.alpha"); st != types.StateResumed {
		t.Fatalf("alpha after batch = %q, want resumed", st)
	}
	e.assertSingleResumedPerSurface(t)
}

func TestLockBlocksOutsideLaunchesUntilStopped(t *testing.T) {
	e := newEnv(t, nil)

	e.launch(t, &types.LaunchRequest{Component: comp("app.kiosk")})
	kioskTask := e.taskID(t, "app.kiosk")

	if !e.o.StartLock(0, kioskTask) {
		t.Fatal("lock refused")
	}
	if result := e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")}); result != types.ResultLockTaskViolation {
		t.Fatalf("outside launch = %q, want lock-task-violation", result)
	}
	if result := e.launch(t, &types.LaunchRequest{Component: comp("app.kiosk")}); !result.OK() {
		t.Fatalf("locked-group relaunch = %q, want ok", result)
	}

	if !e.o.StopLock(0, kioskTask) {
		t.Fatal("unlock refused")
	}
	if e.notifier.lockEnds() != 1 {
		t.Fatalf("lock-ended notifications = %d, want 1", e.notifier.lockEnds())
	}
	if result := e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")}); result != types.ResultSuccess {
		t.Fatalf("launch after unlock = %q", result)
	}
}

func TestFinishingLockedGroupEndsLock(t *testing.T) {
	e := newEnv(t, nil)

	e.launch(t, &types.LaunchRequest{Component: comp("app.kiosk")})
	kioskTask := e.taskID(t, "app.kiosk")
	if !e.o.StartLock(0, kioskTask) {
		t.Fatal("lock refused")
	}

	if !e.o.FinishGroup(kioskTask) {
		t.Fatal("finish group failed")
	}
	e.settle()

	if e.notifier.lockEnds() != 1 {
		t.Fatalf("lock-ended notifications = %d, want 1", e.notifier.lockEnds())
	}
	if chain := e.o.LockChain(); len(chain) != 0 {
		t.Fatalf("lock chain = %v, want empty", chain)
	}
}

func TestFocusSurvivesDisplayRemoval(t *testing.T) {
	e := newEnv(t, nil)

	if err := e.o.NotifyDisplayAdded(2, types.Bounds{Width: 1280, Height: 720}); err != nil {
		t.Fatalf("add surface: %v", err)
	}
	e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")})
	sid := 2
	e.launch(t, &types.LaunchRequest{Component: comp("app.beta"), SurfaceID: &sid})

	if err := e.o.NotifyDisplayRemoved(2); err != nil {
		t.Fatalf("remove surface: %v", err)
	}
	e.settle()

	e.inspect(func(s *model.State) {
		if _, ok := s.Surface(2); ok {
			t.Error("surface 2 still present")
		}
		fc := s.FocusedContainer()
		if fc == nil {
			t.Error("focus dangling after surface removal")
			return
		}
		if fc.Surface == nil || *fc.Surface != model.DefaultSurfaceID {
			t.Errorf("focus not on the default surface: %+v", fc.Surface)
		}
	})
	if _, st := e.itemState(t, "app.alpha"); st != types.StateResumed {
		t.Fatalf("alpha = %q, want resumed after surface removal", st)
	}
}

func TestLostCompositorAckForcesResumePass(t *testing.T) {
	e := newEnv(t, nil)
	e.o.call("shorten-ack-wait", func() { e.o.txTimeout = 50 * time.Millisecond })

	e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")})

	e.comp.HoldAcks = true
	if err := e.o.NotifyDisplayChanged(model.DefaultSurfaceID, types.Bounds{Width: 1600, Height: 900}); err != nil {
		t.Fatalf("resize surface: %v", err)
	}

	result := e.launch(t, &types.LaunchRequest{Component: comp("app.beta")})
	if result != types.ResultSuccess {
		t.Fatalf("launch while deferred = %q, want success", result)
	}
	deferred := false
	e.o.call("check-deferred", func() { deferred = e.o.seq.Deferred() })
	if !deferred {
		t.Fatal("resize with held acks should defer resumes")
	}

	// The acks never arrive; the transaction timeout must open the
	// gate and let the pending resume run.
	var st types.LifecycleState
	deadline := time.Now().Add(2 * time.Second)
	for {
		e.settle()
		_, st = e.itemState(t, "app.beta")
		e.o.call("check-deferred", func() { deferred = e.o.seq.Deferred() })
		if st == types.StateResumed && !deferred {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("beta = %q, deferred = %v long after the ack window closed", st, deferred)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDisplayRemovalReparentsContainers(t *testing.T) {
	e := newEnv(t, nil)

	if err := e.o.NotifyDisplayAdded(2, types.Bounds{Width: 1280, Height: 720}); err != nil {
		t.Fatalf("add surface: %v", err)
	}
	e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")})
	sid := 2
	e.launch(t, &types.LaunchRequest{Component: comp("app.beta"), SurfaceID: &sid})

	var ch id.Handle
	e.inspect(func(s *model.State) {
		if g := s.FindGroupByComponent(0, comp("app.beta")); g != nil {
			ch = g.Container
		}
	})
	if ch == 0 {
		t.Fatal("no container for app.beta")
	}

	before := len(e.comp.Applied())
	if err := e.o.NotifyDisplayRemoved(2); err != nil {
		t.Fatalf("remove surface: %v", err)
	}
	e.settle()

	reparented := false
	for _, tx := range e.comp.Applied()[before:] {
		for _, op := range tx.Ops {
			if op.Kind != compositor.OpReparent || op.Container != compositor.ContainerRef(ch) {
				continue
			}
			reparented = true
			if op.SurfaceID != model.DefaultSurfaceID {
				t.Errorf("reparent target = %d, want primary surface", op.SurfaceID)
			}
			if op.Bounds.Width != 1920 || op.Bounds.Height != 1080 {
				t.Errorf("reparent bounds = %+v, want refit to primary", op.Bounds)
			}
		}
	}
	if !reparented {
		t.Fatal("no reparent issued for the relocated container")
	}

	e.inspect(func(s *model.State) {
		c, ok := s.Container(ch)
		if !ok {
			t.Error("container gone after relocation")
			return
		}
		if c.Bounds.Width != 1920 || c.Bounds.Height != 1080 {
			t.Errorf("container bounds = %+v, want primary bounds", c.Bounds)
		}
	})
}

func TestDefaultSurfaceCannotBeRemoved(t *testing.T) {
	e := newEnv(t, nil)
	if err := e.o.NotifyDisplayRemoved(model.DefaultSurfaceID); err == nil {
		t.Fatal("default surface removal accepted")
	}
}

func TestDisabledAppSwitchesParkAndReplay(t *testing.T) {
	checker := policy.NewStatic().Deny(9, policy.PermStopAppSwitches)
	e := newEnv(t, checker)

	if !e.o.DisableAppSwitches(0) {
		t.Fatal("disable refused for privileged caller")
	}
	result := e.launch(t, &types.LaunchRequest{Component: comp("app.alpha"), CallerUID: 9})
	if result != types.ResultCancelled {
		t.Fatalf("parked launch = %q, want cancelled", result)
	}
	if n := e.o.Counts().Items; n != 0 {
		t.Fatalf("items = %d, want 0 while parked", n)
	}

	// A privileged caller bypasses the restriction entirely.
	if result := e.launch(t, &types.LaunchRequest{Component: comp("app.beta"), CallerUID: 0}); result != types.ResultSuccess {
		t.Fatalf("privileged launch = %q", result)
	}

	if !e.o.EnableAppSwitches(0) {
		t.Fatal("enable refused")
	}
	e.settle()
	if _, st := e.itemState(t, "app.alpha"); st != types.StateResumed {
		t.Fatalf("replayed launch state = %q, want resumed", st)
	}
}

func TestBootCompleteFiresOnceAfterFirstIdle(t *testing.T) {
	e := newEnv(t, nil)

	e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")})
	if e.o.Booted() {
		t.Fatal("booted before first idle")
	}

	item, _ := e.itemState(t, "app.alpha")
	e.o.NotifyIdle(item)
	e.settle()
	if !e.o.Booted() {
		t.Fatal("not booted after first idle")
	}

	e.o.NotifyIdle(item)
	e.settle()
	if got := e.eventCount(EventBootComplete); got != 1 {
		t.Fatalf("boot events = %d, want 1", got)
	}
}

func TestFinishItemPromotesNextInGroup(t *testing.T) {
	e := newEnv(t, nil)

	e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")})
	e.launch(t, &types.LaunchRequest{Component: comp("app.beta"), Affinity: "app.alpha"})

	beta, _ := e.itemState(t, "app.beta")
	e.o.FinishItem(beta)
	e.settle()

	alpha, st := e.itemState(t, "app.alpha")
	if st != types.StateResumed {
		t.Fatalf("alpha = %q, want resumed after beta finished", st)
	}

	// The finishing item is destroyed on the next idle flush.
	e.o.NotifyIdle(alpha)
	e.settle()
	e.inspect(func(s *model.State) {
		if _, ok := s.Item(beta); ok {
			t.Error("finished item still live")
		}
	})
}

func TestFinishGroupForgetsRecentsEntry(t *testing.T) {
	e := newEnv(t, nil)

	e.launch(t, &types.LaunchRequest{Component: comp("app.mail")})
	taskID := e.taskID(t, "app.mail")
	if _, ok := e.store.Get(taskID); !ok {
		t.Fatal("live group missing from recency store")
	}

	if !e.o.FinishGroup(taskID) {
		t.Fatal("finish group failed")
	}
	e.settle()

	if _, ok := e.store.Get(taskID); ok {
		t.Fatal("finished group still in recency store")
	}
	if n := e.o.Counts().Groups; n != 0 {
		t.Fatalf("groups = %d, want 0", n)
	}
}

func TestShutdownQuiescesCleanly(t *testing.T) {
	e := newEnv(t, nil)

	e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")})
	if timedOut := e.o.RequestShutdown(2 * time.Second); timedOut {
		t.Fatal("shutdown timed out with a responsive host")
	}
	if result := e.o.ResolveAndLaunch(&types.LaunchRequest{Component: comp("app.beta")}); result != types.ResultCancelled {
		t.Fatalf("launch during shutdown = %q, want cancelled", result)
	}
}

func TestShutdownTimesOutOnHungPause(t *testing.T) {
	e := newEnv(t, nil)

	e.launch(t, &types.LaunchRequest{Component: comp("app.alpha")})
	e.lb.Silence(host.InstrPause)

	if timedOut := e.o.RequestShutdown(150 * time.Millisecond); !timedOut {
		t.Fatal("shutdown reported clean with a hung pause")
	}
}

func TestNonResizableMoveFallsBackToFullscreen(t *testing.T) {
	e := newEnv(t, nil)

	e.launch(t, &types.LaunchRequest{Component: comp("app.kiosk")})
	taskID := e.taskID(t, "app.kiosk")

	if err := e.o.MoveGroup(GroupMove{TaskID: taskID, TargetSurface: model.DefaultSurfaceID, Mode: types.ModeSplitPrimary}); err != nil {
		t.Fatalf("move: %v", err)
	}
	e.settle()

	e.inspect(func(s *model.State) {
		g, _ := s.Group(taskID)
		c := s.ContainerOf(g)
		if c == nil {
			t.Error("group detached")
			return
		}
		if c.Mode != types.ModeFullscreen {
			t.Errorf("mode = %q, want forced fullscreen", c.Mode)
		}
	})
	e.notifier.mu.Lock()
	forced := len(e.notifier.forced)
	e.notifier.mu.Unlock()
	if forced == 0 {
		t.Fatal("forced-resize notification not sent")
	}
}

func TestLaunchUnknownComponent(t *testing.T) {
	e := newEnv(t, nil)
	if result := e.launch(t, &types.LaunchRequest{Component: comp("app.ghost")}); result != types.ResultClassNotFound {
		t.Fatalf("result = %q, want class-not-found", result)
	}
}

func TestLaunchDeniedWithoutPermission(t *testing.T) {
	checker := policy.NewStatic().Deny(7, policy.PermLaunch)
	e := newEnv(t, checker)
	if result := e.launch(t, &types.LaunchRequest{Component: comp("app.alpha"), CallerUID: 7}); result != types.ResultPermissionDenied {
		t.Fatalf("result = %q, want permission-denied", result)
	}
}
