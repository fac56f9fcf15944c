// pkg/core/vehicle.go
package core

import "gonum.org/v1/gonum/spatial/r2"

// Position2D is a point on the simulation plane, in metres.
type Position2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec returns the position as a gonum vector.
func (p Position2D) Vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// PositionFromVec converts a gonum vector back to a Position2D.
func PositionFromVec(v r2.Vec) Position2D {
	return Position2D{X: v.X, Y: v.Y}
}

// Vehicle is a read-only view of one vehicle in a snapshot.
// ID is assigned by the perception collaborator and is stable across frames.
type Vehicle struct {
	ID           uint16     `json:"id"`
	Position     Position2D `json:"position"`
	Heading      float64    `json:"heading"` // radians
	Speed        float64    `json:"speed"`   // m/s
	Acceleration float64    `json:"acceleration"`
	Steering     float64    `json:"steering"` // 0 when not reported
	Length       float64    `json:"length"`
	Width        float64    `json:"width"`
	Lane         LaneIndex  `json:"lane"`

	// Route is the planned sequence of roads. Only set on the ego vehicle.
	Route []LaneIndex `json:"route,omitempty"`
}

// HalfLength returns half of the vehicle's length.
func (v Vehicle) HalfLength() float64 {
	return v.Length / 2
}

// HalfWidth returns half of the vehicle's width.
func (v Vehicle) HalfWidth() float64 {
	return v.Width / 2
}
