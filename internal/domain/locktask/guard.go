// Package locktask implements the restrictive-mode guard: while a
// group is pinned, navigation is confined to the lock chain.
package locktask

import (
	"sync"

	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// Entry is one pinned group.
type Entry struct {
	TaskID int
	Auth   types.LockAuth
}

// Guard tracks the ordered stack of locked groups. The orchestrator
// is the only writer; the read paths are safe for snapshots.
type Guard struct {
	mu    sync.RWMutex
	stack []Entry

	// onEmpty fires once when the stack drains, the policy
	// notification point for keyguard-style integrations.
	onEmpty func()
}

// NewGuard creates an inactive guard.
func NewGuard() *Guard {
	return &Guard{}
}

// SetOnEmpty registers the end-of-lock callback.
func (g *Guard) SetOnEmpty(fn func()) {
	g.mu.Lock()
	g.onEmpty = fn
	g.mu.Unlock()
}

// Active reports whether any group is pinned.
func (g *Guard) Active() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.stack) > 0
}

// Locked reports whether a specific group is in the lock chain.
func (g *Guard) Locked(taskID int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.stack {
		if e.TaskID == taskID {
			return true
		}
	}
	return false
}

// Top returns the most recently locked task id, zero when inactive.
func (g *Guard) Top() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.stack) == 0 {
		return 0
	}
	return g.stack[len(g.stack)-1].TaskID
}

// IsViolation reports whether bringing the given group forward breaks
// the lock: true unless the lock is inactive, the group is in the
// chain, or its tier permits launching over an active lock.
func (g *Guard) IsViolation(taskID int, auth types.LockAuth) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.stack) == 0 {
		return false
	}
	for _, e := range g.stack {
		if e.TaskID == taskID {
			return false
		}
	}
	return !auth.PermitsLaunchOverLock()
}

// Start pins a group. Groups whose tier forbids locking are refused.
func (g *Guard) Start(taskID int, auth types.LockAuth) bool {
	if auth == types.LockAuthDontLock {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.stack {
		if e.TaskID == taskID {
			return true
		}
	}
	g.stack = append(g.stack, Entry{TaskID: taskID, Auth: auth})
	return true
}

// Stop unpins a group. When the stack drains, the end-of-lock
// callback fires exactly once per drain.
func (g *Guard) Stop(taskID int) bool {
	g.mu.Lock()
	found := false
	for i, e := range g.stack {
		if e.TaskID == taskID {
			g.stack = append(g.stack[:i], g.stack[i+1:]...)
			found = true
			break
		}
	}
	emptied := found && len(g.stack) == 0
	cb := g.onEmpty
	g.mu.Unlock()

	if emptied && cb != nil {
		cb()
	}
	return found
}

// Chain returns the lock stack bottom to top.
func (g *Guard) Chain() []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Entry(nil), g.stack...)
}
