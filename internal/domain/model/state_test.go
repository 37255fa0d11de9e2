package model

import (
	"testing"

	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	s := NewState()
	if _, err := s.AddSurface(DefaultSurfaceID, types.Bounds{Width: 1920, Height: 1080}); err != nil {
		t.Fatalf("AddSurface failed: %v", err)
	}
	return s
}

func spawnGroup(t *testing.T, s *State, comp types.ComponentName) *Group {
	t.Helper()
	g, err := s.CreateGroup(0, nil, func(g *Group) {
		g.BaseComponent = comp
		g.Affinity = comp.Package
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return g
}

func TestAddRemoveSurface(t *testing.T) {
	s := newTestState(t)

	if _, err := s.AddSurface(1, types.Bounds{Width: 800, Height: 600}); err != nil {
		t.Fatalf("AddSurface failed: %v", err)
	}
	if _, err := s.AddSurface(1, types.Bounds{}); err == nil {
		t.Error("Duplicate surface must fail")
	}
	if err := s.RemoveSurface(DefaultSurfaceID); err != ErrPrimarySurface {
		t.Errorf("Expected ErrPrimarySurface, got %v", err)
	}
	if err := s.RemoveSurface(1); err != nil {
		t.Errorf("RemoveSurface failed: %v", err)
	}
	if _, ok := s.Surface(1); ok {
		t.Error("Surface 1 should be gone")
	}
}

func TestRemoveSurfaceRelocatesContainers(t *testing.T) {
	s := newTestState(t)
	s.AddSurface(1, types.Bounds{Width: 800, Height: 600})

	ch, err := s.CreateContainer(1, types.ModeFullscreen, types.TypeStandard)
	if err != nil {
		t.Fatalf("CreateContainer failed: %v", err)
	}
	g := spawnGroup(t, s, types.ComponentName{Package: "demo", Class: "Main"})
	if err := s.AttachGroup(g.ID, ch); err != nil {
		t.Fatalf("AttachGroup failed: %v", err)
	}

	if err := s.RemoveSurface(1); err != nil {
		t.Fatalf("RemoveSurface failed: %v", err)
	}

	c, ok := s.Container(ch)
	if !ok {
		t.Fatal("Container must survive surface removal")
	}
	if c.Surface == nil || *c.Surface != DefaultSurfaceID {
		t.Error("Container must relocate to primary surface")
	}
}

func TestRemoveSurfaceKeepsRelativeOrder(t *testing.T) {
	s := newTestState(t)
	s.AddSurface(1, types.Bounds{Width: 800, Height: 600})

	bottom, err := s.CreateContainer(1, types.ModeFullscreen, types.TypeStandard)
	if err != nil {
		t.Fatalf("CreateContainer failed: %v", err)
	}
	top, err := s.CreateContainer(1, types.ModeFreeform, types.TypeStandard)
	if err != nil {
		t.Fatalf("CreateContainer failed: %v", err)
	}
	for _, ch := range []struct {
		h   id.Handle
		pkg string
	}{{bottom, "demo.bottom"}, {top, "demo.top"}} {
		g := spawnGroup(t, s, types.ComponentName{Package: ch.pkg, Class: "Main"})
		if err := s.AttachGroup(g.ID, ch.h); err != nil {
			t.Fatalf("AttachGroup failed: %v", err)
		}
	}

	if err := s.RemoveSurface(1); err != nil {
		t.Fatalf("RemoveSurface failed: %v", err)
	}

	primary, _ := s.Surface(DefaultSurfaceID)
	bi, ti := -1, -1
	for i, h := range primary.Containers {
		switch h {
		case bottom:
			bi = i
		case top:
			ti = i
		}
	}
	if bi < 0 || ti < 0 {
		t.Fatal("Relocated containers missing from primary surface")
	}
	if bi > ti {
		t.Errorf("Relocation reversed z-order: bottom at %d, top at %d", bi, ti)
	}
}

func TestSingletonContainerPerSurface(t *testing.T) {
	s := newTestState(t)

	h1, err := s.GetOrCreateContainer(DefaultSurfaceID, types.ModeFullscreen, types.TypeHome)
	if err != nil {
		t.Fatalf("GetOrCreateContainer failed: %v", err)
	}
	h2, err := s.GetOrCreateContainer(DefaultSurfaceID, types.ModeFullscreen, types.TypeHome)
	if err != nil {
		t.Fatalf("GetOrCreateContainer failed: %v", err)
	}
	if h1 != h2 {
		t.Error("Home container must be singleton per surface")
	}
	if _, err := s.CreateContainer(DefaultSurfaceID, types.ModeFullscreen, types.TypeHome); err == nil {
		t.Error("Second home container must be rejected")
	}
}

func TestActivityTypeModeCompatibility(t *testing.T) {
	s := newTestState(t)
	if _, err := s.CreateContainer(DefaultSurfaceID, types.ModeFreeform, types.TypeHome); err == nil {
		t.Error("Home in freeform mode must be rejected")
	}
	if _, err := s.CreateContainer(DefaultSurfaceID, types.ModeFreeform, types.TypeStandard); err != nil {
		t.Errorf("Standard freeform must be allowed: %v", err)
	}
}

func TestHomeContainerIsPermanent(t *testing.T) {
	s := newTestState(t)

	home, _ := s.GetOrCreateContainer(DefaultSurfaceID, types.ModeFullscreen, types.TypeHome)
	if s.PruneContainerIfEmpty(home) {
		t.Error("Empty home container must not be pruned")
	}

	std, _ := s.CreateContainer(DefaultSurfaceID, types.ModeFullscreen, types.TypeStandard)
	if !s.PruneContainerIfEmpty(std) {
		t.Error("Empty standard container must be pruned")
	}
	if _, ok := s.Container(std); ok {
		t.Error("Pruned container handle must be stale")
	}
}

func TestGroupAttachDetach(t *testing.T) {
	s := newTestState(t)
	ch, _ := s.CreateContainer(DefaultSurfaceID, types.ModeFullscreen, types.TypeStandard)
	g := spawnGroup(t, s, types.ComponentName{Package: "demo", Class: "Main"})

	if err := s.AttachGroup(g.ID, ch); err != nil {
		t.Fatalf("AttachGroup failed: %v", err)
	}
	if err := s.AttachGroup(g.ID, ch); err != ErrGroupAttached {
		t.Errorf("Expected ErrGroupAttached, got %v", err)
	}

	former, err := s.DetachGroup(g.ID)
	if err != nil {
		t.Fatalf("DetachGroup failed: %v", err)
	}
	if former != ch {
		t.Error("DetachGroup must report the former container")
	}
	if g.Container.Valid() {
		t.Error("Detached group must have no container")
	}
}

func TestRemoveItemCascade(t *testing.T) {
	s := newTestState(t)
	ch, _ := s.CreateContainer(DefaultSurfaceID, types.ModeFullscreen, types.TypeStandard)
	g := spawnGroup(t, s, types.ComponentName{Package: "demo", Class: "Main"})
	s.AttachGroup(g.ID, ch)

	ih, err := s.CreateItem(g.ID, types.ComponentName{Package: "demo", Class: "Main"}, "demo", "tok1")
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	taskID, emptied, err := s.RemoveItem(ih)
	if err != nil {
		t.Fatalf("RemoveItem failed: %v", err)
	}
	if taskID != g.ID || !emptied {
		t.Errorf("Expected group %d emptied, got task %d emptied=%v", g.ID, taskID, emptied)
	}

	if err := s.RemoveGroup(g.ID); err != nil {
		t.Fatalf("RemoveGroup failed: %v", err)
	}
	if _, ok := s.Container(ch); ok {
		t.Error("Emptied container must be pruned with its group")
	}
}

func TestMoveGroupToFront(t *testing.T) {
	s := newTestState(t)
	ch, _ := s.CreateContainer(DefaultSurfaceID, types.ModeFullscreen, types.TypeStandard)

	g1 := spawnGroup(t, s, types.ComponentName{Package: "a", Class: "A"})
	g2 := spawnGroup(t, s, types.ComponentName{Package: "b", Class: "B"})
	s.AttachGroup(g1.ID, ch)
	s.AttachGroup(g2.ID, ch)

	if err := s.MoveGroupToFront(g1.ID); err != nil {
		t.Fatalf("MoveGroupToFront failed: %v", err)
	}
	c, _ := s.Container(ch)
	if c.TopGroup() != g1.ID {
		t.Errorf("Expected group %d on top, got %d", g1.ID, c.TopGroup())
	}
}

func TestSetFocusSubstitutesUnfocusable(t *testing.T) {
	s := newTestState(t)
	good, _ := s.CreateContainer(DefaultSurfaceID, types.ModeFullscreen, types.TypeStandard)
	bad, _ := s.CreateContainer(DefaultSurfaceID, types.ModeFreeform, types.TypeStandard)

	c, _ := s.Container(bad)
	c.Focusable = false

	if !s.SetFocus(bad, nil) {
		t.Fatal("SetFocus should change focus")
	}
	if s.Focused != good {
		t.Errorf("Expected substitution to %v, got %v", good, s.Focused)
	}
}

func TestSetFocusRecordsLastFocused(t *testing.T) {
	s := newTestState(t)
	a, _ := s.CreateContainer(DefaultSurfaceID, types.ModeFullscreen, types.TypeStandard)
	b, _ := s.CreateContainer(DefaultSurfaceID, types.ModeFreeform, types.TypeStandard)

	s.SetFocus(a, nil)
	s.SetFocus(b, nil)
	if s.LastFocused != a {
		t.Errorf("Expected last focused %v, got %v", a, s.LastFocused)
	}
	// Redundant focus is not a change and must not churn last-focused.
	if s.SetFocus(b, nil) {
		t.Error("Redundant SetFocus must report no change")
	}
	if s.LastFocused != a {
		t.Error("Redundant SetFocus must not overwrite last focused")
	}
}

func TestFocusClearedWhenContainerFreed(t *testing.T) {
	s := newTestState(t)
	ch, _ := s.CreateContainer(DefaultSurfaceID, types.ModeFullscreen, types.TypeStandard)
	s.SetFocus(ch, nil)

	if err := s.FreeContainer(ch); err != nil {
		t.Fatalf("FreeContainer failed: %v", err)
	}
	if s.Focused.Valid() {
		t.Error("Focused reference must not dangle after container removal")
	}
}

func TestSupportsMode(t *testing.T) {
	g := &Group{Resizable: true, SupportedModes: []types.WindowingMode{types.ModeSplitPrimary}}
	if !g.SupportsMode(types.ModeFullscreen) {
		t.Error("Every group supports fullscreen")
	}
	if !g.SupportsMode(types.ModeSplitPrimary) {
		t.Error("Declared mode must be supported")
	}
	if g.SupportsMode(types.ModeFreeform) {
		t.Error("Undeclared mode must not be supported")
	}

	fixed := &Group{Resizable: false, SupportedModes: []types.WindowingMode{types.ModeSplitPrimary}}
	if fixed.SupportsMode(types.ModeSplitPrimary) {
		t.Error("Non-resizable group only supports fullscreen")
	}
}
