package model

import (
	"time"

	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// Snapshot DTOs give diagnostics a stale-but-consistent view of the
// graph. They carry no handles back into the arena.

type ItemSnapshot struct {
	Handle         string               `json:"handle"`
	TaskID         int                  `json:"task_id"`
	Component      types.ComponentName  `json:"component"`
	State          types.LifecycleState `json:"state"`
	Finishing      bool                 `json:"finishing,omitempty"`
	Visible        bool                 `json:"visible,omitempty"`
	Idle           bool                 `json:"idle,omitempty"`
	Sleeping       bool                 `json:"sleeping,omitempty"`
	NewIntentCount int                  `json:"new_intent_count,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

type GroupSnapshot struct {
	ID         int                 `json:"id"`
	UserID     int                 `json:"user_id"`
	Affinity   string              `json:"affinity"`
	Base       types.ComponentName `json:"base_component"`
	Resizable  bool                `json:"resizable"`
	LockAuth   types.LockAuth      `json:"lock_auth"`
	ReturnTo   types.ReturnTo      `json:"return_to"`
	LastActive time.Time           `json:"last_active"`
	Items      []ItemSnapshot      `json:"items"`
}

type ContainerSnapshot struct {
	Handle       string              `json:"handle"`
	Mode         types.WindowingMode `json:"mode"`
	ActivityType types.ActivityType  `json:"activity_type"`
	Bounds       types.Bounds        `json:"bounds"`
	Focusable    bool                `json:"focusable"`
	Visible      bool                `json:"visible"`
	Focused      bool                `json:"focused,omitempty"`
	Groups       []GroupSnapshot     `json:"groups"`
}

type SurfaceSnapshot struct {
	ID          int                 `json:"id"`
	Bounds      types.Bounds        `json:"bounds"`
	Sleeping    bool                `json:"sleeping"`
	SleepTokens int                 `json:"sleep_tokens"`
	Private     bool                `json:"private,omitempty"`
	Containers  []ContainerSnapshot `json:"containers"`
}

type WorldSnapshot struct {
	Surfaces    []SurfaceSnapshot `json:"surfaces"`
	Focused     string            `json:"focused_container,omitempty"`
	LastFocused string            `json:"last_focused_container,omitempty"`
	TakenAt     time.Time         `json:"taken_at"`
}

// Snapshot captures the whole graph bottom to top.
func (s *State) Snapshot() WorldSnapshot {
	out := WorldSnapshot{TakenAt: time.Now()}
	if s.Focused.Valid() {
		out.Focused = s.Focused.String()
	}
	if s.LastFocused.Valid() {
		out.LastFocused = s.LastFocused.String()
	}
	for _, sid := range s.surfaceOrder {
		sf := s.surfaces[sid]
		ss := SurfaceSnapshot{
			ID:          sf.ID,
			Bounds:      sf.Bounds,
			Sleeping:    sf.Sleeping,
			SleepTokens: len(sf.SleepTokens),
			Private:     sf.Private,
		}
		for _, ch := range sf.Containers {
			c, ok := s.Containers.Get(ch)
			if !ok {
				continue
			}
			cs := ContainerSnapshot{
				Handle:       c.Handle.String(),
				Mode:         c.Mode,
				ActivityType: c.ActivityType,
				Bounds:       c.Bounds,
				Focusable:    c.Focusable,
				Visible:      c.Visible,
				Focused:      c.Handle == s.Focused,
			}
			for _, tid := range c.Groups {
				g, ok := s.groups[tid]
				if !ok {
					continue
				}
				gs := GroupSnapshot{
					ID:         g.ID,
					UserID:     g.UserID,
					Affinity:   g.Affinity,
					Base:       g.BaseComponent,
					Resizable:  g.Resizable,
					LockAuth:   g.LockAuth,
					ReturnTo:   g.ReturnTo,
					LastActive: g.LastActive,
				}
				for _, ih := range g.Items {
					w, ok := s.Items.Get(ih)
					if !ok {
						continue
					}
					gs.Items = append(gs.Items, ItemSnapshot{
						Handle:         w.Handle.String(),
						TaskID:         w.TaskID,
						Component:      w.Component,
						State:          w.State,
						Finishing:      w.Finishing,
						Visible:        w.Visible,
						Idle:           w.Idle,
						Sleeping:       w.Sleeping,
						NewIntentCount: w.NewIntentCount,
						CreatedAt:      w.CreatedAt,
					})
				}
				cs.Groups = append(cs.Groups, gs)
			}
			ss.Containers = append(ss.Containers, cs)
		}
		out.Surfaces = append(out.Surfaces, ss)
	}
	return out
}
