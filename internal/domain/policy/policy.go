// Package policy is the boundary to the external permission checker.
// The orchestrator consumes plain yes/no decisions; the model behind
// them lives elsewhere.
package policy

import (
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// Permission names consumed by the orchestrator.
const (
	PermLaunch             = "shellhost.permission.LAUNCH"
	PermLaunchOnSecondary  = "shellhost.permission.LAUNCH_ON_SECONDARY"
	PermControlLockMode    = "shellhost.permission.CONTROL_LOCK_MODE"
	PermManageSurfaces     = "shellhost.permission.MANAGE_SURFACES"
	PermEmbedOtherSurfaces = "shellhost.permission.EMBED_SURFACES"
	PermStopAppSwitches    = "shellhost.permission.STOP_APP_SWITCHES"
)

// Checker is the external policy collaborator.
type Checker interface {
	CheckPermission(callerUID int, permission string) bool
	CheckRestriction(callerUID int, operation string) types.Restriction
}

// AllowAll grants everything. The default for local runs.
type AllowAll struct{}

func (AllowAll) CheckPermission(int, string) bool { return true }

func (AllowAll) CheckRestriction(int, string) types.Restriction { return types.RestrictionNone }

// Static answers from fixed tables, for tests and constrained hosts.
type Static struct {
	// Denied maps uid -> set of denied permissions.
	Denied map[int]map[string]bool
	// Restrictions maps operation -> verdict, applied to every uid.
	Restrictions map[string]types.Restriction
}

// NewStatic creates an empty static checker (grants everything).
func NewStatic() *Static {
	return &Static{
		Denied:       make(map[int]map[string]bool),
		Restrictions: make(map[string]types.Restriction),
	}
}

// Deny records a denial for one uid and permission.
func (s *Static) Deny(uid int, permission string) *Static {
	if s.Denied[uid] == nil {
		s.Denied[uid] = make(map[string]bool)
	}
	s.Denied[uid][permission] = true
	return s
}

func (s *Static) CheckPermission(callerUID int, permission string) bool {
	return !s.Denied[callerUID][permission]
}

func (s *Static) CheckRestriction(_ int, operation string) types.Restriction {
	if r, ok := s.Restrictions[operation]; ok {
		return r
	}
	return types.RestrictionNone
}
