// Package host is the boundary to the per-process execution host. The
// orchestrator asks it for process handles and delivers lifecycle
// instructions; acknowledgments come back asynchronously.
package host

import (
	"context"
	"errors"

	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

var (
	// ErrProcessDead means the handle no longer names a live process.
	ErrProcessDead = errors.New("process dead")
	// ErrUnavailable means the host itself cannot be reached.
	ErrUnavailable = errors.New("process host unavailable")
	// ErrUnknownComponent means the host has no such component.
	ErrUnknownComponent = errors.New("unknown component")
)

// ProcessHandle names a process inside the host. Zero is no process.
type ProcessHandle uint64

// Instruction is one lifecycle callback delivered to a work item.
type Instruction string

const (
	InstrLaunch    Instruction = "launch"
	InstrResume    Instruction = "resume"
	InstrPause     Instruction = "pause"
	InstrStop      Instruction = "stop"
	InstrDestroy   Instruction = "destroy"
	InstrNewIntent Instruction = "new-intent"
)

// ProcessSpec describes the process a work item should run in.
type ProcessSpec struct {
	Component types.ComponentName
	Affinity  string
	UserID    int
}

// Ack is the asynchronous acknowledgment of one delivered instruction.
type Ack struct {
	Item        id.Handle
	Token       string
	Instruction Instruction
	OK          bool
	Reason      string
}

// Host is the execution host contract. DeliverLifecycle returns once
// the instruction is on the wire; completion arrives as an Ack.
type Host interface {
	EnsureProcess(ctx context.Context, spec ProcessSpec) (ProcessHandle, error)
	DeliverLifecycle(ctx context.Context, proc ProcessHandle, item id.Handle, token string, instr Instruction) error
	SetAckFunc(fn func(Ack))
}
