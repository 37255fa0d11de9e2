package types

import "strings"

// ComponentName identifies a launchable component.
type ComponentName struct {
	Package string `json:"package"`
	Class   string `json:"class"`
}

// String renders pkg/class for logs.
func (c ComponentName) String() string {
	return c.Package + "/" + c.Class
}

// Valid reports whether both halves are present.
func (c ComponentName) Valid() bool {
	return c.Package != "" && c.Class != ""
}

// ParseComponentName splits a pkg/class string back into its halves.
// Input that is not exactly two non-empty halves yields a zero name.
func ParseComponentName(s string) ComponentName {
	pkg, class, ok := strings.Cut(s, "/")
	if !ok {
		return ComponentName{}
	}
	return ComponentName{Package: pkg, Class: class}
}

// LaunchMode controls group reuse on launch.
type LaunchMode string

const (
	LaunchModeMultiple       LaunchMode = "multiple"
	LaunchModeSingleTop      LaunchMode = "single-top"
	LaunchModeSingleTask     LaunchMode = "single-task"
	LaunchModeSingleInstance LaunchMode = "single-instance"
)

// ReturnTo hints where navigation lands when a group finishes.
type ReturnTo string

const (
	ReturnToPrevious ReturnTo = "previous"
	ReturnToHome     ReturnTo = "home"
)

// LockAuth is a group's restrictive-mode authorization tier.
type LockAuth string

const (
	// LockAuthDontLock groups may never be pinned.
	LockAuthDontLock LockAuth = "dont-lock"
	// LockAuthPinnable groups may be pinned by the user.
	LockAuthPinnable LockAuth = "pinnable"
	// LockAuthAllowlisted groups may launch over an active lock.
	LockAuthAllowlisted LockAuth = "allowlisted"
	// LockAuthLaunchable groups may both launch over and start a lock.
	LockAuthLaunchable LockAuth = "launchable"
)

// PermitsLaunchOverLock reports whether a group of this tier may be
// brought forward while another group holds the lock.
func (a LockAuth) PermitsLaunchOverLock() bool {
	return a == LockAuthAllowlisted || a == LockAuthLaunchable
}

// LaunchRequest is one call into the launch-target resolver.
type LaunchRequest struct {
	Component    ComponentName `json:"component"`
	UserID       int           `json:"user_id"`
	CallerUID    int           `json:"caller_uid"`
	LaunchMode   LaunchMode    `json:"launch_mode,omitempty"`
	ActivityType ActivityType  `json:"activity_type,omitempty"`
	Mode         WindowingMode `json:"windowing_mode,omitempty"`
	Affinity     string        `json:"affinity,omitempty"`

	// TaskID, when non-zero, names an existing or recents-stored group.
	TaskID int `json:"task_id,omitempty"`
	// SurfaceID, when non-nil, requests a specific output surface.
	SurfaceID *int `json:"surface_id,omitempty"`

	Resizable bool           `json:"resizable"`
	ReturnTo  ReturnTo       `json:"return_to,omitempty"`
	LockAuth  LockAuth       `json:"lock_auth,omitempty"`
	Bounds    *Bounds        `json:"bounds,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// Normalize fills the defaults a caller may omit.
func (r *LaunchRequest) Normalize() {
	if r.LaunchMode == "" {
		r.LaunchMode = LaunchModeMultiple
	}
	if r.ActivityType == "" {
		r.ActivityType = TypeStandard
	}
	if r.Mode == "" {
		r.Mode = ModeFullscreen
	}
	if r.ReturnTo == "" {
		r.ReturnTo = ReturnToPrevious
	}
	if r.LockAuth == "" {
		r.LockAuth = LockAuthPinnable
	}
	if r.Affinity == "" {
		r.Affinity = r.Component.Package
	}
}
