package orchestrator

import (
	"time"

	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// Event types published on the event stream.
const (
	EventTransition     = "transition"
	EventLaunch         = "launch"
	EventBootComplete   = "boot-complete"
	EventCrashFinish    = "crash-finish"
	EventForcedResize   = "forced-resize"
	EventSurfaceAdded   = "surface-added"
	EventSurfaceChanged = "surface-changed"
	EventSurfaceRemoved = "surface-removed"
	EventLockStarted    = "lock-started"
	EventLockEnded      = "lock-ended"
	EventSleep          = "sleep"
	EventWake           = "wake"
)

// Event is one observable orchestrator occurrence, published to stream
// subscribers and the webhook notifier.
type Event struct {
	Type      string              `json:"type"`
	Time      time.Time           `json:"time"`
	Item      string              `json:"item,omitempty"`
	Component types.ComponentName `json:"component,omitzero"`
	From      string              `json:"from,omitempty"`
	To        string              `json:"to,omitempty"`
	TaskID    int                 `json:"task_id,omitempty"`
	SurfaceID int                 `json:"surface_id,omitempty"`
	Result    string              `json:"result,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}

// Notifier receives UI-feedback notifications that leave the process:
// forced fullscreen promotions and the end of a restrictive mode.
type Notifier interface {
	ForcedResize(component types.ComponentName, taskID int)
	LockEnded()
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) ForcedResize(types.ComponentName, int) {}
func (NopNotifier) LockEnded()                            {}

// emit publishes an event to the registered subscriber, if any.
func (o *Orchestrator) emit(e Event) {
	e.Time = time.Now()
	if fn := o.eventFn; fn != nil {
		fn(e)
	}
}

// SetEventFunc registers the event-stream subscriber. Call before Run;
// events fire from the loop goroutine.
func (o *Orchestrator) SetEventFunc(fn func(Event)) { o.eventFn = fn }
