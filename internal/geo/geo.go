package geo

import (
	"math"

	"github.com/OCAP2/drivescene/pkg/core"
	"gonum.org/v1/gonum/spatial/r2"
)

// parallelEpsilon is the |u1 x u2| below which two headings count as parallel.
const parallelEpsilon = 1e-9

// Bearing places a vehicle in front of or behind the ego along its heading.
type Bearing int

const (
	Ahead Bearing = iota
	Behind
)

func (b Bearing) String() string {
	if b == Behind {
		return "behind"
	}
	return "ahead"
}

func (b Bearing) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnitVector returns (cos heading, sin heading).
func UnitVector(heading float64) r2.Vec {
	return r2.Vec{X: math.Cos(heading), Y: math.Sin(heading)}
}

// Distance returns the Euclidean distance between two positions.
func Distance(a, b core.Position2D) float64 {
	return r2.Norm(r2.Sub(a.Vec(), b.Vec()))
}

// RelativeBearing projects other's offset onto the ego heading. A zero
// projection (directly beside the ego) is Ahead.
func RelativeBearing(ego, other core.Vehicle) Bearing {
	offset := r2.Sub(other.Position.Vec(), ego.Position.Vec())
	if r2.Dot(offset, UnitVector(ego.Heading)) >= 0 {
		return Ahead
	}
	return Behind
}

// AngleBetween returns the angle in [0, pi] between two unit vectors.
// The dot product is clamped so colinear vectors never leave acos's domain.
func AngleBetween(u, v r2.Vec) float64 {
	return math.Acos(math.Max(-1, math.Min(1, r2.Dot(u, v))))
}

// RayIntersection intersects the ray from p1 along heading h1 with the ray
// from p2 along heading h2. The point must lie within horizon metres of both
// origins. ok is false for parallel rays and for crossings behind either
// origin or beyond the horizon.
func RayIntersection(p1 core.Position2D, h1 float64, p2 core.Position2D, h2 float64, horizon float64) (point core.Position2D, ok bool) {
	u1, u2 := UnitVector(h1), UnitVector(h2)
	denom := r2.Cross(u1, u2)
	if math.Abs(denom) < parallelEpsilon {
		return core.Position2D{}, false
	}

	d := r2.Sub(p2.Vec(), p1.Vec())
	t := r2.Cross(d, u2) / denom
	s := r2.Cross(d, u1) / denom
	if t < 0 || s < 0 || t > horizon || s > horizon {
		return core.Position2D{}, false
	}

	return core.PositionFromVec(r2.Add(p1.Vec(), r2.Scale(t, u1))), true
}
