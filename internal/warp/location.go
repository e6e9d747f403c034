package warp

import "fmt"

type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

type Orientation struct {
	Yaw   float32 `json:"yaw" yaml:"yaw"`
	Pitch float32 `json:"pitch" yaml:"pitch"`
}

// Location is the shape exchanged at every boundary: a world plus a position
// and facing within it.
type Location struct {
	World       string `json:"world" yaml:"world"`
	Position    `yaml:",inline"`
	Orientation `yaml:",inline"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s(%.2f, %.2f, %.2f)", l.World, l.X, l.Y, l.Z)
}

// Region is a horizontal rectangle, bounds inclusive.
type Region struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MinZ float64 `json:"min_z" yaml:"min_z"`
	MaxZ float64 `json:"max_z" yaml:"max_z"`
}

func (r Region) Validate() error {
	if r.MinX > r.MaxX {
		return fmt.Errorf("min_x %v greater than max_x %v", r.MinX, r.MaxX)
	}
	if r.MinZ > r.MaxZ {
		return fmt.Errorf("min_z %v greater than max_z %v", r.MinZ, r.MaxZ)
	}
	return nil
}

func (r Region) Contains(x, z float64) bool {
	return x >= r.MinX && x <= r.MaxX && z >= r.MinZ && z <= r.MaxZ
}

// Intersect returns the overlap of r and o. ok is false when they do not overlap.
func (r Region) Intersect(o Region) (Region, bool) {
	out := Region{
		MinX: max(r.MinX, o.MinX),
		MaxX: min(r.MaxX, o.MaxX),
		MinZ: max(r.MinZ, o.MinZ),
		MaxZ: min(r.MaxZ, o.MaxZ),
	}
	if out.MinX > out.MaxX || out.MinZ > out.MaxZ {
		return Region{}, false
	}
	return out, true
}
