// Package compositor is the boundary to the surface-control layer.
// The orchestrator batches geometry and visibility changes into
// transactions; the compositor applies them and acknowledges
// asynchronously.
package compositor

import (
	"sync"

	"github.com/luminos-ui/shellhost/internal/shared/id"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// OpKind enumerates transaction operations.
type OpKind string

const (
	OpReparent   OpKind = "reparent"
	OpResize     OpKind = "resize"
	OpVisibility OpKind = "visibility"
)

// Op is one change inside a transaction.
type Op struct {
	Kind      OpKind       `json:"kind"`
	Container string       `json:"container"`
	SurfaceID int          `json:"surface_id"`
	Bounds    types.Bounds `json:"bounds,omitempty"`
	Visible   bool         `json:"visible,omitempty"`
}

// Transaction is an atomic batch; the compositor acks the whole batch.
type Transaction struct {
	ID  string `json:"id"`
	Ops []Op   `json:"ops"`
}

// Client is the compositor collaborator contract.
type Client interface {
	// Submit hands a transaction off; the ack arrives later through
	// the callback registered with SetAckFunc.
	Submit(tx Transaction) error
	// FocusOrder returns surface ids in system focus order.
	FocusOrder(surfaceIDs []int) []int
	// SetAckFunc registers the transaction-ack callback.
	SetAckFunc(fn func(txID string))
}

// Recording is an in-process compositor that acknowledges every
// transaction immediately. It doubles as the test double.
type Recording struct {
	mu      sync.Mutex
	ack     func(string)
	applied []Transaction

	// Order, when set, overrides the identity focus order.
	Order []int

	// HoldAcks suppresses acknowledgments until ReleaseAcks.
	HoldAcks bool
	held     []string
}

// NewRecording creates an immediately-acking compositor.
func NewRecording() *Recording {
	return &Recording{}
}

func (r *Recording) SetAckFunc(fn func(txID string)) {
	r.mu.Lock()
	r.ack = fn
	r.mu.Unlock()
}

func (r *Recording) Submit(tx Transaction) error {
	r.mu.Lock()
	r.applied = append(r.applied, tx)
	ack := r.ack
	if r.HoldAcks {
		r.held = append(r.held, tx.ID)
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	if ack != nil {
		ack(tx.ID)
	}
	return nil
}

// ReleaseAcks delivers every held acknowledgment in order.
func (r *Recording) ReleaseAcks() {
	r.mu.Lock()
	held := r.held
	r.held = nil
	ack := r.ack
	r.mu.Unlock()
	if ack == nil {
		return
	}
	for _, txID := range held {
		ack(txID)
	}
}

func (r *Recording) FocusOrder(surfaceIDs []int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Order) > 0 {
		return append([]int(nil), r.Order...)
	}
	return append([]int(nil), surfaceIDs...)
}

// Applied returns a copy of every submitted transaction.
func (r *Recording) Applied() []Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transaction(nil), r.applied...)
}

// ContainerRef renders a container handle for transaction ops.
func ContainerRef(h id.Handle) string { return h.String() }
