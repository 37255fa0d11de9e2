// Package id provides centralized ID generation for the shell host.
//
// Three id families coexist and never collide:
//   - Generational handles for arena-held records (work items, containers)
//   - Per-user numeric task ids for groups, wrapping inside a fixed range
//   - Prefixed ULIDs for API request tracing
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Handle is a generational arena handle: index in the low 32 bits,
// generation in the high 32. The zero Handle is never valid.
type Handle uint64

// NewHandle packs an index and generation.
func NewHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

// Index returns the arena slot.
func (h Handle) Index() uint32 { return uint32(h) }

// Generation returns the slot generation at allocation time.
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

// Valid reports whether the handle was ever allocated.
func (h Handle) Valid() bool { return h != 0 }

func (h Handle) String() string {
	if !h.Valid() {
		return "<nil>"
	}
	return fmt.Sprintf("%d.%d", h.Index(), h.Generation())
}

// ============================================================================
// Per-user task id allocation
// ============================================================================

// TaskIDRange is the size of each user's task id namespace.
const TaskIDRange = 100000

// ErrTaskIDExhausted is returned when a user's entire task id range is
// occupied by live or stored groups. This is a hard capacity limit.
var ErrTaskIDExhausted = fmt.Errorf("task id range exhausted (%d per user)", TaskIDRange)

// TaskAllocator hands out task ids namespaced per user. Ids wrap within
// (uid*TaskIDRange, (uid+1)*TaskIDRange) so two users never collide.
type TaskAllocator struct {
	mu   sync.Mutex
	next map[int]int
}

// NewTaskAllocator creates an allocator with empty per-user cursors.
func NewTaskAllocator() *TaskAllocator {
	return &TaskAllocator{next: make(map[int]int)}
}

// Next returns the next free task id for userID. inUse reports ids that
// are taken by live or recents-stored groups.
func (a *TaskAllocator) Next(userID int, inUse func(taskID int) bool) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	base := userID * TaskIDRange
	cursor, ok := a.next[userID]
	if !ok {
		cursor = base
	}

	for tried := 0; tried < TaskIDRange; tried++ {
		candidate := cursor + 1
		// base itself is never handed out: for user 0 it would be the
		// zero task id, which callers use as the "no group" sentinel.
		if candidate >= base+TaskIDRange {
			candidate = base + 1
		}
		cursor = candidate
		if !inUse(candidate) {
			a.next[userID] = candidate
			return candidate, nil
		}
	}
	return 0, ErrTaskIDExhausted
}

// UserOf returns the user namespace a task id belongs to.
func UserOf(taskID int) int {
	return taskID / TaskIDRange
}

// ============================================================================
// ULID request ids (for API tracing)
// ============================================================================

const (
	RequestPrefix = "req"
	TokenPrefix   = "tok"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with custom entropy,
// useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRequestID generates an API request id.
func NewRequestID() string {
	return Default().GenerateWithPrefix(RequestPrefix)
}

// NewSleepToken generates an opaque sleep-token id.
func NewSleepToken() string {
	return Default().GenerateWithPrefix(TokenPrefix)
}
