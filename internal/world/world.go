package world

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/rakrwi/nextWarp/internal/warp"
)

// playerHeight is the headroom a standing player needs below MaxY.
const playerHeight = 2

// World describes the terrain of one loaded world well enough to decide where
// a player can stand. The asset id is the world name.
type World struct {
	MinY      float64       `json:"min_y" yaml:"min_y"`
	MaxY      float64       `json:"max_y" yaml:"max_y"`
	SurfaceY  float64       `json:"surface_y" yaml:"surface_y"`
	Border    warp.Region   `json:"border" yaml:"border"`
	Protected []warp.Region `json:"protected,omitempty" yaml:"protected,omitempty"`
	Hazards   []warp.Region `json:"hazards,omitempty" yaml:"hazards,omitempty"`
}

func (w *World) Validate() error {
	el := errors.NewErrorList()

	if w.MinY >= w.MaxY {
		el.Add(fmt.Errorf("min_y must be below max_y"))
	}
	if w.SurfaceY < w.MinY || w.SurfaceY+playerHeight > w.MaxY {
		el.Add(fmt.Errorf("surface_y must leave room for a player between min_y and max_y"))
	}
	if err := w.Border.Validate(); err != nil {
		el.Add(fmt.Errorf("border: %w", err))
	}
	for i, r := range w.Protected {
		if err := r.Validate(); err != nil {
			el.Add(fmt.Errorf("protected %d: %w", i, err))
		}
	}
	for i, r := range w.Hazards {
		if err := r.Validate(); err != nil {
			el.Add(fmt.Errorf("hazard %d: %w", i, err))
		}
	}

	return el.Err()
}

// Safe places the candidate on the surface and reports whether a player may
// stand there: inside the border and outside every protected or hazardous
// region.
func (w *World) Safe(candidate warp.Location) (warp.Location, bool) {
	if !w.Border.Contains(candidate.X, candidate.Z) {
		return warp.Location{}, false
	}
	for _, r := range w.Protected {
		if r.Contains(candidate.X, candidate.Z) {
			return warp.Location{}, false
		}
	}
	for _, r := range w.Hazards {
		if r.Contains(candidate.X, candidate.Z) {
			return warp.Location{}, false
		}
	}

	candidate.Y = w.SurfaceY
	if candidate.Y < w.MinY || candidate.Y+playerHeight > w.MaxY {
		return warp.Location{}, false
	}
	return candidate, true
}
