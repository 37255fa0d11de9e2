package orchestrator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/luminos-ui/shellhost/internal/domain/catalog"
	"github.com/luminos-ui/shellhost/internal/domain/model"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// Bootstrap registers the default surface plus any profile-declared
// surfaces, then launches the home component. Call after Run.
func (o *Orchestrator) Bootstrap(surfaces []catalog.SurfaceProfile, home types.ComponentName) error {
	o.call("bootstrap", func() {
		if _, ok := o.state.Surface(model.DefaultSurfaceID); !ok {
			if _, err := o.state.AddSurface(model.DefaultSurfaceID, types.Bounds{Width: 1920, Height: 1080}); err != nil {
				o.log.Error("register default surface", zap.Error(err))
			}
		}
		for _, sp := range surfaces {
			bounds := types.Bounds{Width: sp.Width, Height: sp.Height}
			if sf, ok := o.state.Surface(sp.ID); ok {
				if !bounds.Empty() {
					sf.Bounds = bounds
				}
				sf.Private = sp.Private
				sf.OwnerUID = sp.OwnerUID
				continue
			}
			sf, err := o.state.AddSurface(sp.ID, bounds)
			if err != nil {
				o.log.Warn("profile surface rejected", zap.Int("surface", sp.ID), zap.Error(err))
				continue
			}
			sf.Private = sp.Private
			sf.OwnerUID = sp.OwnerUID
		}
		o.publishCounts()
	})

	if !home.Valid() {
		return nil
	}
	result := o.ResolveAndLaunch(&types.LaunchRequest{Component: home})
	if !result.OK() {
		return fmt.Errorf("home launch failed: %s", result)
	}
	return nil
}
