// Package danger flags vehicles inside the two-sector attention zone in
// front of the ego: a narrow long cone straight ahead and a wide short one
// around it.
package danger

import (
	"math"

	"github.com/OCAP2/drivescene/internal/geo"
	"github.com/OCAP2/drivescene/pkg/core"
	"gonum.org/v1/gonum/spatial/r2"
)

// Sector bounds, derived from a 3 x 17.5 frontal rectangle and a 2 x 2.5
// near-field rectangle.
var (
	Theta1  = math.Atan(3 / 17.5)
	Radius1 = math.Hypot(3, 17.5)
	Theta2  = math.Atan(2 / 2.5)
	Radius2 = math.Hypot(2, 2.5)
)

// InZone applies the sector rule to an angular offset from the ego heading
// and a distance. Both bounds are inclusive.
func InZone(alpha, distance float64) bool {
	switch {
	case alpha <= Theta1:
		return distance <= Radius1
	case alpha <= Theta2:
		return distance <= Radius2
	default:
		return false
	}
}

// IsDangerous reports whether v is inside the ego's attention zone. A vehicle
// on top of the ego is always flagged.
func IsDangerous(ego, v core.Vehicle) bool {
	offset := r2.Sub(v.Position.Vec(), ego.Position.Vec())
	distance := r2.Norm(offset)
	if distance == 0 {
		return true
	}
	alpha := geo.AngleBetween(geo.UnitVector(ego.Heading), r2.Scale(1/distance, offset))
	return InZone(alpha, distance)
}

// Flagged returns the ids of the dangerous vehicles in nearby, in order.
func Flagged(ego core.Vehicle, nearby []core.Vehicle) []uint16 {
	var ids []uint16
	for _, v := range nearby {
		if IsDangerous(ego, v) {
			ids = append(ids, v.ID)
		}
	}
	return ids
}
