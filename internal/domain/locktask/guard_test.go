package locktask

import (
	"testing"

	"github.com/luminos-ui/shellhost/internal/shared/types"
)

func TestInactiveGuardAllowsEverything(t *testing.T) {
	g := NewGuard()
	if g.IsViolation(1, types.LockAuthPinnable) {
		t.Error("Inactive guard must not report violations")
	}
}

func TestLockedGroupAllowed(t *testing.T) {
	g := NewGuard()
	if !g.Start(1, types.LockAuthPinnable) {
		t.Fatal("Start failed")
	}
	if g.IsViolation(1, types.LockAuthPinnable) {
		t.Error("The locked group itself is never a violation")
	}
	if !g.IsViolation(2, types.LockAuthPinnable) {
		t.Error("Other pinnable groups violate an active lock")
	}
}

func TestAllowlistedLaunchesOverLock(t *testing.T) {
	g := NewGuard()
	g.Start(1, types.LockAuthPinnable)
	if g.IsViolation(2, types.LockAuthAllowlisted) {
		t.Error("Allowlisted groups may launch over an active lock")
	}
	if g.IsViolation(3, types.LockAuthLaunchable) {
		t.Error("Launchable groups may launch over an active lock")
	}
}

func TestDontLockRefused(t *testing.T) {
	g := NewGuard()
	if g.Start(1, types.LockAuthDontLock) {
		t.Error("dont-lock groups must not be pinnable")
	}
	if g.Active() {
		t.Error("Guard must stay inactive after refused start")
	}
}

func TestStopDrainFiresCallbackOnce(t *testing.T) {
	g := NewGuard()
	fired := 0
	g.SetOnEmpty(func() { fired++ })

	g.Start(1, types.LockAuthPinnable)
	g.Start(2, types.LockAuthAllowlisted)

	g.Stop(1)
	if fired != 0 {
		t.Error("Callback must not fire while stack non-empty")
	}
	g.Stop(2)
	if fired != 1 {
		t.Errorf("Expected one callback, got %d", fired)
	}
	if g.Stop(2) {
		t.Error("Stopping an unlocked group must report false")
	}
	if fired != 1 {
		t.Error("Failed stop must not re-fire callback")
	}
}

func TestChainOrder(t *testing.T) {
	g := NewGuard()
	g.Start(1, types.LockAuthPinnable)
	g.Start(2, types.LockAuthPinnable)

	chain := g.Chain()
	if len(chain) != 2 || chain[0].TaskID != 1 || chain[1].TaskID != 2 {
		t.Errorf("Unexpected chain: %+v", chain)
	}
	if g.Top() != 2 {
		t.Errorf("Expected top 2, got %d", g.Top())
	}
}
