package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// SurfaceProfile declares one output surface a layout profile brings
// up at boot.
type SurfaceProfile struct {
	ID       int  `yaml:"id"`
	Width    int  `yaml:"width"`
	Height   int  `yaml:"height"`
	Private  bool `yaml:"private"`
	OwnerUID int  `yaml:"owner_uid"`
}

// Profile is one declarative layout file: the surfaces to register and
// the components available on them.
type Profile struct {
	Name       string           `yaml:"name"`
	Surfaces   []SurfaceProfile `yaml:"surfaces"`
	Components []Spec           `yaml:"components"`
}

// Seeder loads layout profiles from disk into a catalog.
type Seeder struct {
	catalog     *Catalog
	profilesDir string
	log         *zap.Logger

	surfaces []SurfaceProfile
}

// NewSeeder creates a profile seeder.
func NewSeeder(catalog *Catalog, profilesDir string, log *zap.Logger) *Seeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Seeder{catalog: catalog, profilesDir: profilesDir, log: log}
}

// Seed loads every .yaml/.yml profile under the profiles directory. A
// missing directory is not an error; the host runs with defaults.
func (s *Seeder) Seed() error {
	if _, err := os.Stat(s.profilesDir); os.IsNotExist(err) {
		s.log.Warn("profiles directory not found", zap.String("dir", s.profilesDir))
		return nil
	}

	var loaded, failed int
	err := filepath.Walk(s.profilesDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(info.Name(), ".yaml") && !strings.HasSuffix(info.Name(), ".yml") {
			return nil
		}
		if err := s.loadProfile(path); err != nil {
			s.log.Warn("failed to load profile", zap.String("file", info.Name()), zap.Error(err))
			failed++
		} else {
			loaded++
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("layout profiles seeded", zap.Int("loaded", loaded), zap.Int("failed", failed))
	return nil
}

func (s *Seeder) loadProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	for _, spec := range profile.Components {
		if !spec.Component.Valid() {
			s.log.Warn("profile component missing package or class",
				zap.String("profile", profile.Name),
				zap.String("component", spec.Component.String()))
			continue
		}
		s.catalog.Register(spec)
	}
	s.surfaces = append(s.surfaces, profile.Surfaces...)
	return nil
}

// Surfaces returns the surface declarations collected across profiles.
func (s *Seeder) Surfaces() []SurfaceProfile {
	return append([]SurfaceProfile(nil), s.surfaces...)
}

// SeedDefaults registers the essential system components if absent:
// the home shell and the recents overview.
func (s *Seeder) SeedDefaults() {
	defaults := []Spec{
		{
			Component:    types.ComponentName{Package: "system.shell", Class: "Home"},
			Affinity:     "system.shell",
			LaunchMode:   types.LaunchModeSingleTask,
			ActivityType: types.TypeHome,
			LockAuth:     types.LockAuthDontLock,
			ReturnTo:     types.ReturnToHome,
		},
		{
			Component:    types.ComponentName{Package: "system.shell", Class: "Recents"},
			Affinity:     "system.shell",
			LaunchMode:   types.LaunchModeSingleInstance,
			ActivityType: types.TypeRecents,
			LockAuth:     types.LockAuthDontLock,
		},
	}

	var seeded int
	for _, spec := range defaults {
		if _, ok := s.catalog.Lookup(spec.Component); !ok {
			s.catalog.Register(spec)
			seeded++
		}
	}
	s.log.Info("default components seeded", zap.Int("count", seeded))
}
