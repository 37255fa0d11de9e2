package types

// WindowingMode describes how a container lays out its groups.
type WindowingMode string

const (
	ModeFullscreen     WindowingMode = "fullscreen"
	ModeSplitPrimary   WindowingMode = "split-primary"
	ModeSplitSecondary WindowingMode = "split-secondary"
	ModeFreeform       WindowingMode = "freeform"
	ModeSingleTask     WindowingMode = "single-task"
)

// ActivityType classifies the kind of work a container may hold.
type ActivityType string

const (
	TypeStandard  ActivityType = "standard"
	TypeHome      ActivityType = "home"
	TypeRecents   ActivityType = "recents"
	TypeAssistant ActivityType = "assistant"
)

// Singleton reports whether at most one container of this type may
// exist per surface.
func (t ActivityType) Singleton() bool {
	switch t {
	case TypeHome, TypeRecents, TypeAssistant:
		return true
	case TypeStandard:
		return false
	}
	return false
}

// CompatibleMode reports whether an activity type may live in the given
// windowing mode. Home, recents and assistant containers never split.
func (t ActivityType) CompatibleMode(mode WindowingMode) bool {
	switch t {
	case TypeStandard:
		return true
	case TypeHome, TypeRecents, TypeAssistant:
		return mode == ModeFullscreen
	}
	return false
}

// Bounds is a window rectangle in surface coordinates.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rectangle has no area.
func (b Bounds) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Intersects reports whether two rectangles overlap.
func (b Bounds) Intersects(o Bounds) bool {
	if b.Empty() || o.Empty() {
		return false
	}
	return b.X < o.X+o.Width && o.X < b.X+b.Width &&
		b.Y < o.Y+o.Height && o.Y < b.Y+b.Height
}
