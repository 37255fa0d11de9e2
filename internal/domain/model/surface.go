package model

import (
	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// DefaultSurfaceID is the primary output surface. It can never be
// removed.
const DefaultSurfaceID = 0

// Surface is one physical or virtual output target.
type Surface struct {
	ID int

	// Containers is bottom to top; order defines z and focus priority.
	Containers []id.Handle

	Bounds types.Bounds

	// Sleeping is the resolved sleep state, recomputed on every sleep
	// or wake walk.
	Sleeping bool

	// SleepTokens are held by external subsystems; any held token puts
	// the surface to sleep unless the keyguard override is set.
	SleepTokens map[string]bool

	// KeyguardOverride keeps the surface awake despite sleep tokens.
	KeyguardOverride bool

	// Private surfaces admit only their owner and explicitly present
	// uids.
	Private     bool
	OwnerUID    int
	PresentUIDs map[int]bool

	// LastFocused remembers the container to resume after wake.
	LastFocused id.Handle
}

// ShouldSleep resolves the sleep predicate: system-wide sleep requested
// or any sleep token held, barring the keyguard override.
func (s *Surface) ShouldSleep(systemSleeping bool) bool {
	if s.KeyguardOverride {
		return false
	}
	return systemSleeping || len(s.SleepTokens) > 0
}

// AllowsUID reports whether callerUID may place work on this surface.
func (s *Surface) AllowsUID(callerUID int) bool {
	if !s.Private {
		return true
	}
	if callerUID == s.OwnerUID {
		return true
	}
	return s.PresentUIDs[callerUID]
}

func (s *Surface) removeContainer(h id.Handle) {
	for i, have := range s.Containers {
		if have == h {
			s.Containers = append(s.Containers[:i], s.Containers[i+1:]...)
			return
		}
	}
}

func (s *Surface) moveContainerToTop(h id.Handle) {
	s.removeContainer(h)
	s.Containers = append(s.Containers, h)
}
