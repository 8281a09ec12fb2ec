// Package lattice maps 3D positions on a cubic lattice to site ids and
// enumerates neighbors within a cutoff distance. It is the geometry helper
// feeding site topology to the simulation front-end; the engine itself
// never queries it.
package lattice

import (
	"fmt"
	"math"
	"math/rand"
)

// Boundary controls how positions past a lattice face are treated.
type Boundary int

const (
	// Fixed bounds reject out-of-range positions.
	Fixed Boundary = iota
	// Periodic bounds wrap positions around the lattice.
	Periodic
)

// Plane names an axis-aligned lattice plane.
type Plane int

const (
	PlaneX Plane = iota
	PlaneY
	PlaneZ
)

// Cubic is a length x width x height lattice of evenly spaced sites.
// Site ids run z-major: index = z*length*width + y*length + x.
type Cubic struct {
	length, width, height int
	total                 int
	interSiteDistance     float64
	xBound, yBound, zBound Boundary
}

// New creates a lattice with unit site spacing and fixed boundaries.
func New(length, width, height int) (*Cubic, error) {
	return NewDetailed(length, width, height, 1.0, Fixed, Fixed, Fixed)
}

// NewDetailed creates a lattice with explicit spacing and per-axis
// boundary settings.
func NewDetailed(length, width, height int, interSiteDistance float64, xBound, yBound, zBound Boundary) (*Cubic, error) {
	if length <= 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("lattice: dimensions %dx%dx%d must be positive", length, width, height)
	}
	if interSiteDistance <= 0 {
		return nil, fmt.Errorf("lattice: inter-site distance %v must be positive", interSiteDistance)
	}
	return &Cubic{
		length:            length,
		width:             width,
		height:            height,
		total:             length * width * height,
		interSiteDistance: interSiteDistance,
		xBound:            xBound,
		yBound:            yBound,
		zBound:            zBound,
	}, nil
}

// Length returns the x extent in sites.
func (c *Cubic) Length() int { return c.length }

// Width returns the y extent in sites.
func (c *Cubic) Width() int { return c.width }

// Height returns the z extent in sites.
func (c *Cubic) Height() int { return c.height }

// Total returns the number of sites.
func (c *Cubic) Total() int { return c.total }

// Index maps a 3D position to its site id, wrapping periodic axes and
// rejecting out-of-range positions on fixed axes.
func (c *Cubic) Index(x, y, z int) (int, error) {
	var err error
	if x, err = c.fold(x, c.length, c.xBound, "x"); err != nil {
		return 0, err
	}
	if y, err = c.fold(y, c.width, c.yBound, "y"); err != nil {
		return 0, err
	}
	if z, err = c.fold(z, c.height, c.zBound, "z"); err != nil {
		return 0, err
	}
	return c.index(x, y, z), nil
}

func (c *Cubic) fold(v, extent int, bound Boundary, axis string) (int, error) {
	if v >= 0 && v < extent {
		return v, nil
	}
	if bound == Periodic {
		v %= extent
		if v < 0 {
			v += extent
		}
		return v, nil
	}
	return 0, fmt.Errorf("lattice: %s position %d outside [0,%d)", axis, v, extent)
}

func (c *Cubic) index(x, y, z int) int {
	return z*c.length*c.width + y*c.length + x
}

// Position returns the (x, y, z) position of a site id.
func (c *Cubic) Position(index int) ([3]int, error) {
	if index < 0 || index >= c.total {
		return [3]int{}, fmt.Errorf("lattice: index %d outside [0,%d)", index, c.total)
	}
	z := index / (c.length * c.width)
	rem := index - z*c.length*c.width
	y := rem / c.length
	x := rem % c.length
	return [3]int{x, y, z}, nil
}

// Neighbors returns the ids of every site within the cutoff distance of
// index, excluding index itself. Periodic axes wrap.
func (c *Cubic) Neighbors(index int, cutoff float64) []int {
	pos, err := c.Position(index)
	if err != nil {
		return nil
	}
	reach := int(math.Floor(cutoff / c.interSiteDistance))
	var out []int
	for dz := -reach; dz <= reach; dz++ {
		for dy := -reach; dy <= reach; dy++ {
			for dx := -reach; dx <= reach; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				d := c.interSiteDistance * math.Sqrt(float64(dx*dx+dy*dy+dz*dz))
				if d > cutoff {
					continue
				}
				id, err := c.Index(pos[0]+dx, pos[1]+dy, pos[2]+dz)
				if err != nil {
					continue // outside a fixed boundary
				}
				out = append(out, id)
			}
		}
	}
	return out
}

// Distance returns the euclidean distance between two sites, ignoring
// periodic wrapping.
func (c *Cubic) Distance(index1, index2 int) (float64, error) {
	p1, err := c.Position(index1)
	if err != nil {
		return 0, err
	}
	p2, err := c.Position(index2)
	if err != nil {
		return 0, err
	}
	dx := float64(p1[0] - p2[0])
	dy := float64(p1[1] - p2[1])
	dz := float64(p1[2] - p2[2])
	return c.interSiteDistance * math.Sqrt(dx*dx+dy*dy+dz*dz), nil
}

// RandomSite returns a uniformly random site on the given plane of the
// lattice, drawing from the caller's RNG so placements stay reproducible.
func (c *Cubic) RandomSite(plane Plane, planeIndex int, rng *rand.Rand) (int, error) {
	switch plane {
	case PlaneX:
		if planeIndex < 0 || planeIndex >= c.length {
			return 0, fmt.Errorf("lattice: x plane %d outside [0,%d)", planeIndex, c.length)
		}
		return c.index(planeIndex, rng.Intn(c.width), rng.Intn(c.height)), nil
	case PlaneY:
		if planeIndex < 0 || planeIndex >= c.width {
			return 0, fmt.Errorf("lattice: y plane %d outside [0,%d)", planeIndex, c.width)
		}
		return c.index(rng.Intn(c.length), planeIndex, rng.Intn(c.height)), nil
	case PlaneZ:
		if planeIndex < 0 || planeIndex >= c.height {
			return 0, fmt.Errorf("lattice: z plane %d outside [0,%d)", planeIndex, c.height)
		}
		return c.index(rng.Intn(c.length), rng.Intn(c.width), planeIndex), nil
	}
	return 0, fmt.Errorf("lattice: unknown plane %d", plane)
}
