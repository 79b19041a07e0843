// Package chunks holds chunk-grid addressing: coordinates, the observer's
// chunk, world-space origins and the wanted set around an observer.
package chunks

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"snowdrift.dev/internal/sim/world/logic/mathx"
)

// Coord addresses one chunk on the horizontal grid.
type Coord struct {
	CX int `json:"cx"`
	CZ int `json:"cz"`
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.CX, c.CZ) }

// Distance is the Chebyshev distance between two chunks.
func (c Coord) Distance(o Coord) int {
	return mathx.Chebyshev(c.CX-o.CX, c.CZ-o.CZ)
}

func (c Coord) manhattan(o Coord) int {
	return mathx.AbsInt(c.CX-o.CX) + mathx.AbsInt(c.CZ-o.CZ)
}

// ObserverCoord floors a world position onto the chunk grid. Only x and z
// matter; non-finite components land on chunk 0.
func ObserverCoord(pos mgl32.Vec3, chunkSize int, spacing float64) Coord {
	w := float64(chunkSize) * spacing
	return Coord{
		CX: mathx.FloorToCell(float64(pos[0]), w),
		CZ: mathx.FloorToCell(float64(pos[2]), w),
	}
}

// Origin is the world-space translation of a chunk's local (0,0) vertex.
func Origin(c Coord, chunkSize int, spacing float64) mgl32.Vec3 {
	w := float64(chunkSize) * spacing
	return mgl32.Vec3{float32(float64(c.CX) * w), 0, float32(float64(c.CZ) * w)}
}

// Within reports whether c lies in the square of the given radius around center.
func Within(c, center Coord, radius int) bool {
	if radius < 0 {
		return false
	}
	return c.Distance(center) <= radius
}

// Closer orders coordinates nearest-first around center: Chebyshev distance,
// then Manhattan distance, then x, then z. It is a strict total order.
func Closer(a, b, center Coord) bool {
	da, db := a.Distance(center), b.Distance(center)
	if da != db {
		return da < db
	}
	ma, mb := a.manhattan(center), b.manhattan(center)
	if ma != mb {
		return ma < mb
	}
	if a.CX != b.CX {
		return a.CX < b.CX
	}
	return a.CZ < b.CZ
}

// Wanted returns every coordinate within Chebyshev distance radius of center,
// (2r+1)^2 of them, nearest first.
func Wanted(center Coord, radius int) []Coord {
	if radius < 0 {
		return nil
	}
	side := 2*radius + 1
	out := make([]Coord, 0, side*side)
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			out = append(out, Coord{CX: center.CX + dx, CZ: center.CZ + dz})
		}
	}
	SortNearest(out, center)
	return out
}

func SortNearest(cs []Coord, center Coord) {
	sort.Slice(cs, func(i, j int) bool { return Closer(cs[i], cs[j], center) })
}

// SortKeys orders coordinates by x, then z.
func SortKeys(cs []Coord) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].CX != cs[j].CX {
			return cs[i].CX < cs[j].CX
		}
		return cs[i].CZ < cs[j].CZ
	})
}
