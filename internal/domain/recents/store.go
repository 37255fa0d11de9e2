// Package recents is the persistence boundary for recently used
// groups. The orchestrator consults it on restore and feeds it on
// group removal; what the store does beyond ordering is not this
// core's business.
package recents

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/luminos-ui/shellhost/internal/domain/model"
)

// DefaultLimit bounds how many groups the in-memory store keeps.
const DefaultLimit = 100

// Store is the recency store contract.
type Store interface {
	Get(taskID int) (model.GroupInfo, bool)
	Add(info model.GroupInfo)
	Remove(taskID int)
	List() []model.GroupInfo
	InUse(taskID int) bool
}

// Memory is an ordered in-memory store, most recent first, with an
// optional JSON snapshot file.
type Memory struct {
	mu    sync.RWMutex
	order []int
	byID  map[int]model.GroupInfo
	limit int
	path  string
}

// NewMemory creates a store bounded at DefaultLimit.
func NewMemory() *Memory {
	return &Memory{byID: make(map[int]model.GroupInfo), limit: DefaultLimit}
}

// WithLimit overrides the entry bound.
func (m *Memory) WithLimit(limit int) *Memory {
	if limit > 0 {
		m.limit = limit
	}
	return m
}

// WithSnapshotFile enables JSON snapshots at path and loads any
// existing one.
func (m *Memory) WithSnapshotFile(path string) *Memory {
	m.path = path
	m.load()
	return m
}

// Get returns a stored group description.
func (m *Memory) Get(taskID int) (model.GroupInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.byID[taskID]
	return info, ok
}

// InUse reports whether a task id is occupied by a stored group.
func (m *Memory) InUse(taskID int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byID[taskID]
	return ok
}

// Add records a group as most recent, evicting the oldest entry past
// the limit.
func (m *Memory) Add(info model.GroupInfo) {
	m.mu.Lock()
	m.removeLocked(info.ID)
	m.order = append([]int{info.ID}, m.order...)
	m.byID[info.ID] = info
	for len(m.order) > m.limit {
		oldest := m.order[len(m.order)-1]
		m.order = m.order[:len(m.order)-1]
		delete(m.byID, oldest)
	}
	m.mu.Unlock()
	m.snapshot()
}

// Remove drops a group from the store.
func (m *Memory) Remove(taskID int) {
	m.mu.Lock()
	m.removeLocked(taskID)
	m.mu.Unlock()
	m.snapshot()
}

func (m *Memory) removeLocked(taskID int) {
	if _, ok := m.byID[taskID]; !ok {
		return
	}
	delete(m.byID, taskID)
	for i, have := range m.order {
		if have == taskID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// List returns stored groups, most recent first.
func (m *Memory) List() []model.GroupInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.GroupInfo, 0, len(m.order))
	for _, tid := range m.order {
		out = append(out, m.byID[tid])
	}
	return out
}

func (m *Memory) snapshot() {
	if m.path == "" {
		return
	}
	data, err := json.MarshalIndent(m.List(), "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(m.path, data, 0o644)
}

func (m *Memory) load() {
	if m.path == "" {
		return
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return
	}
	var infos []model.GroupInfo
	if err := json.Unmarshal(data, &infos); err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(infos) - 1; i >= 0; i-- {
		info := infos[i]
		m.removeLocked(info.ID)
		m.order = append([]int{info.ID}, m.order...)
		m.byID[info.ID] = info
	}
}
