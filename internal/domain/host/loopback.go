package host

import (
	"context"
	"sync"

	"github.com/luminos-ui/shellhost/internal/shared/id"
)

// Loopback is an in-process host. It acknowledges every instruction
// immediately unless told to fail or stay silent, which is how tests
// exercise dead and hung processes.
type Loopback struct {
	mu        sync.Mutex
	ack       func(Ack)
	next      ProcessHandle
	processes map[string]ProcessHandle
	dead      map[ProcessHandle]bool

	// ensureFailures counts down per affinity; while positive,
	// EnsureProcess fails for that affinity.
	ensureFailures map[string]int

	// silent suppresses acks for the named instructions.
	silent map[Instruction]bool

	delivered []Delivery
}

// Delivery records one DeliverLifecycle call for assertions.
type Delivery struct {
	Process     ProcessHandle
	Item        id.Handle
	Token       string
	Instruction Instruction
}

// NewLoopback creates a well-behaved loopback host.
func NewLoopback() *Loopback {
	return &Loopback{
		next:           1,
		processes:      make(map[string]ProcessHandle),
		dead:           make(map[ProcessHandle]bool),
		ensureFailures: make(map[string]int),
		silent:         make(map[Instruction]bool),
	}
}

func (l *Loopback) SetAckFunc(fn func(Ack)) {
	l.mu.Lock()
	l.ack = fn
	l.mu.Unlock()
}

// FailEnsure makes the next n EnsureProcess calls for affinity fail.
func (l *Loopback) FailEnsure(affinity string, n int) {
	l.mu.Lock()
	l.ensureFailures[affinity] = n
	l.mu.Unlock()
}

// Silence suppresses acknowledgments for an instruction, simulating a
// hung process.
func (l *Loopback) Silence(instr Instruction) {
	l.mu.Lock()
	l.silent[instr] = true
	l.mu.Unlock()
}

// Unsilence restores acknowledgments for an instruction.
func (l *Loopback) Unsilence(instr Instruction) {
	l.mu.Lock()
	delete(l.silent, instr)
	l.mu.Unlock()
}

// KillProcess marks a process dead; deliveries to it fail until the
// affinity is re-ensured.
func (l *Loopback) KillProcess(h ProcessHandle) {
	l.mu.Lock()
	l.dead[h] = true
	for affinity, have := range l.processes {
		if have == h {
			delete(l.processes, affinity)
		}
	}
	l.mu.Unlock()
}

func (l *Loopback) EnsureProcess(_ context.Context, spec ProcessSpec) (ProcessHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := l.ensureFailures[spec.Affinity]; n > 0 {
		l.ensureFailures[spec.Affinity] = n - 1
		return 0, ErrUnavailable
	}
	if h, ok := l.processes[spec.Affinity]; ok && !l.dead[h] {
		return h, nil
	}
	h := l.next
	l.next++
	l.processes[spec.Affinity] = h
	return h, nil
}

func (l *Loopback) DeliverLifecycle(_ context.Context, proc ProcessHandle, item id.Handle, token string, instr Instruction) error {
	l.mu.Lock()
	if l.dead[proc] {
		l.mu.Unlock()
		return ErrProcessDead
	}
	l.delivered = append(l.delivered, Delivery{Process: proc, Item: item, Token: token, Instruction: instr})
	ack := l.ack
	quiet := l.silent[instr]
	l.mu.Unlock()

	if ack != nil && !quiet {
		ack(Ack{Item: item, Token: token, Instruction: instr, OK: true})
	}
	return nil
}

// Delivered returns a copy of every recorded delivery.
func (l *Loopback) Delivered() []Delivery {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Delivery(nil), l.delivered...)
}

// DeliveredCount counts deliveries of one instruction kind.
func (l *Loopback) DeliveredCount(instr Instruction) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, d := range l.delivered {
		if d.Instruction == instr {
			n++
		}
	}
	return n
}
