// Package catalog tracks the launchable components the host knows
// about. A launch request naming an unregistered component fails
// before any state is touched.
package catalog

import (
	"sort"
	"sync"

	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// Spec describes one launchable component and the launch defaults a
// request inherits when it leaves them unset.
type Spec struct {
	Component      types.ComponentName   `json:"component" yaml:"component"`
	Affinity       string                `json:"affinity,omitempty" yaml:"affinity"`
	LaunchMode     types.LaunchMode      `json:"launch_mode,omitempty" yaml:"launch_mode"`
	ActivityType   types.ActivityType    `json:"activity_type,omitempty" yaml:"activity_type"`
	Resizable      bool                  `json:"resizable" yaml:"resizable"`
	SupportedModes []types.WindowingMode `json:"supported_modes,omitempty" yaml:"supported_modes"`
	LockAuth       types.LockAuth        `json:"lock_auth,omitempty" yaml:"lock_auth"`
	ReturnTo       types.ReturnTo        `json:"return_to,omitempty" yaml:"return_to"`
}

// Catalog is safe for concurrent reads; registration may come from the
// control API while the orchestrator resolves launches.
type Catalog struct {
	mu    sync.RWMutex
	specs map[types.ComponentName]Spec
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{specs: make(map[types.ComponentName]Spec)}
}

// Register adds or replaces a component spec.
func (c *Catalog) Register(spec Spec) {
	c.mu.Lock()
	c.specs[spec.Component] = spec
	c.mu.Unlock()
}

// Unregister removes a component. Live items keep running; only new
// launches are affected.
func (c *Catalog) Unregister(name types.ComponentName) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.specs[name]; !ok {
		return false
	}
	delete(c.specs, name)
	return true
}

// Lookup resolves a component name.
func (c *Catalog) Lookup(name types.ComponentName) (Spec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	spec, ok := c.specs[name]
	return spec, ok
}

// Len reports the number of registered components.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.specs)
}

// List returns every spec, ordered by component name.
func (c *Catalog) List() []Spec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Spec, 0, len(c.specs))
	for _, spec := range c.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Component.String() < out[j].Component.String()
	})
	return out
}

// ApplyDefaults fills request fields the caller left unset from the
// registered spec. Explicit request values win.
func (c *Catalog) ApplyDefaults(req *types.LaunchRequest, spec Spec) {
	if req.Affinity == "" {
		req.Affinity = spec.Affinity
	}
	if req.LaunchMode == "" {
		req.LaunchMode = spec.LaunchMode
	}
	if req.ActivityType == "" {
		req.ActivityType = spec.ActivityType
	}
	if req.LockAuth == "" {
		req.LockAuth = spec.LockAuth
	}
	if req.ReturnTo == "" {
		req.ReturnTo = spec.ReturnTo
	}
	if !req.Resizable {
		req.Resizable = spec.Resizable
	}
}
