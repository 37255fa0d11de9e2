package id

import (
	"testing"
)

func TestHandlePacking(t *testing.T) {
	h := NewHandle(42, 7)
	if h.Index() != 42 {
		t.Errorf("Expected index 42, got %d", h.Index())
	}
	if h.Generation() != 7 {
		t.Errorf("Expected generation 7, got %d", h.Generation())
	}
	if !h.Valid() {
		t.Error("Expected handle to be valid")
	}

	var zero Handle
	if zero.Valid() {
		t.Error("Zero handle must be invalid")
	}
}

func TestTaskAllocatorNamespaces(t *testing.T) {
	a := NewTaskAllocator()
	none := func(int) bool { return false }

	id0, err := a.Next(0, none)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	id10, err := a.Next(10, none)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	if UserOf(id0) != 0 {
		t.Errorf("Expected user 0 namespace, got id %d", id0)
	}
	if UserOf(id10) != 10 {
		t.Errorf("Expected user 10 namespace, got id %d", id10)
	}
}

func TestTaskAllocatorSkipsInUse(t *testing.T) {
	a := NewTaskAllocator()
	taken := map[int]bool{1: true, 2: true}

	got, err := a.Next(0, func(id int) bool { return taken[id] })
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != 3 {
		t.Errorf("Expected 3, got %d", got)
	}
}

func TestTaskAllocatorNeverHandsOutZero(t *testing.T) {
	a := NewTaskAllocator()
	// Park the cursor at the top of user 0's range so the next
	// allocation wraps.
	a.next[0] = TaskIDRange - 1
	got, err := a.Next(0, func(int) bool { return false })
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got == 0 {
		t.Fatal("Allocator handed out task id 0, the no-group sentinel")
	}
	if got != 1 {
		t.Errorf("Expected wrap to 1, got %d", got)
	}
}

func TestTaskAllocatorExhaustion(t *testing.T) {
	a := NewTaskAllocator()
	_, err := a.Next(0, func(int) bool { return true })
	if err != ErrTaskIDExhausted {
		t.Errorf("Expected ErrTaskIDExhausted, got %v", err)
	}
}

func TestRequestIDPrefix(t *testing.T) {
	id := NewRequestID()
	if len(id) == 0 || id[:4] != "req_" {
		t.Errorf("Expected req_ prefix, got %q", id)
	}
}
