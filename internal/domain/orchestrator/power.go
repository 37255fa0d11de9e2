package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"github.com/luminos-ui/shellhost/internal/shared/id"
)

// RequestSleep puts the system to sleep: every surface without a
// keyguard override pushes its items through pause and stop.
func (o *Orchestrator) RequestSleep() {
	o.call("sleep", func() {
		if o.sleeping {
			return
		}
		o.sleeping = true
		o.recomputeSleep()
		o.emit(Event{Type: EventSleep})
	})
}

// RequestWake wakes the system; each newly awake surface resumes its
// last focused container.
func (o *Orchestrator) RequestWake() {
	o.call("wake", func() {
		if !o.sleeping {
			return
		}
		o.sleeping = false
		o.recomputeSleep()
		o.ensureFocusAndResume()
		o.emit(Event{Type: EventWake})
	})
}

// CreateSleepToken holds one surface asleep on behalf of an external
// subsystem. Returns the token to release later.
func (o *Orchestrator) CreateSleepToken(surfaceID int) (string, bool) {
	var token string
	ok := false
	o.call("sleep-token-create", func() {
		sf, found := o.state.Surface(surfaceID)
		if !found {
			return
		}
		token = id.NewSleepToken()
		sf.SleepTokens[token] = true
		o.sleepTokens[token] = surfaceID
		ok = true
		o.recomputeSleep()
	})
	return token, ok
}

// ReleaseSleepToken releases a held token; the surface wakes unless
// something else keeps it asleep.
func (o *Orchestrator) ReleaseSleepToken(token string) bool {
	ok := false
	o.call("sleep-token-release", func() {
		surfaceID, found := o.sleepTokens[token]
		if !found {
			return
		}
		delete(o.sleepTokens, token)
		if sf, have := o.state.Surface(surfaceID); have {
			delete(sf.SleepTokens, token)
		}
		ok = true
		o.recomputeSleep()
		o.ensureFocusAndResume()
	})
	return ok
}

// SetKeyguardOverride keeps a surface awake regardless of sleep
// requests and tokens.
func (o *Orchestrator) SetKeyguardOverride(surfaceID int, override bool) bool {
	ok := false
	o.call("keyguard-override", func() {
		sf, found := o.state.Surface(surfaceID)
		if !found {
			return
		}
		sf.KeyguardOverride = override
		ok = true
		o.recomputeSleep()
		if !override {
			return
		}
		o.ensureFocusAndResume()
	})
	return ok
}

// RequestShutdown sleeps everything and polls, bounded, until no item
// is mid-transition. Reports whether the wait timed out.
func (o *Orchestrator) RequestShutdown(timeout time.Duration) (timedOut bool) {
	o.call("shutdown", func() {
		o.shuttingDown = true
		o.sleeping = true
		o.recomputeSleep()
	})

	deadline := time.Now().Add(timeout)
	for {
		quiet := false
		o.call("shutdown-poll", func() { quiet = o.seq.AllQuiescent() })
		if quiet {
			return false
		}
		if time.Now().After(deadline) {
			o.log.Warn("shutdown wait timed out", zap.Duration("timeout", timeout))
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// recomputeSleep resolves each surface's sleep predicate and drives
// the items on surfaces whose state flipped. Loop goroutine only.
func (o *Orchestrator) recomputeSleep() {
	for _, sid := range o.state.SurfaceIDs() {
		sf, ok := o.state.Surface(sid)
		if !ok {
			continue
		}
		should := sf.ShouldSleep(o.sleeping)
		if should == sf.Sleeping {
			continue
		}
		sf.Sleeping = should
		if should {
			o.log.Info("surface sleeping", zap.Int("surface", sid))
			o.seq.SleepSurfaceItems(sid)
			continue
		}
		o.log.Info("surface awake", zap.Int("surface", sid))
		o.seq.WakeSurfaceItems(sid)
		target := sf.LastFocused
		if _, live := o.state.Container(target); !live {
			if front := o.state.FrontContainer(sid); front != nil {
				target = front.Handle
			} else {
				continue
			}
		}
		o.seq.ResumeTopIn(target)
	}
}
