//go:build !sdl2

package backend

import (
	"fmt"

	"github.com/valerio/go-gba/gba"
)

// SDL2Backend stub used when built without the sdl2 build tag (no SDL2
// development libraries required). Grounded on
// jeebie/backend/sdl2_stub.go.
type SDL2Backend struct{}

func NewSDL2Backend() *SDL2Backend { return &SDL2Backend{} }

func (s *SDL2Backend) Init(config BackendConfig) error {
	return fmt.Errorf("SDL2 backend not available - compile with -tags sdl2 and install SDL2 development libraries")
}

func (s *SDL2Backend) Update(g *gba.GBA) error {
	return fmt.Errorf("SDL2 backend not available")
}

func (s *SDL2Backend) Cleanup() error { return nil }
