package core

import "fmt"

// LaneIndex identifies a lane as (origin node, destination node, index within
// the parallel group). Index 0 is the leftmost lane.
type LaneIndex struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Index int    `json:"index"`
}

// String formats the index as "from->to#index".
func (l LaneIndex) String() string {
	return fmt.Sprintf("%s->%s#%d", l.From, l.To, l.Index)
}

// SameRoad reports whether both indices belong to the same From->To group.
func (l LaneIndex) SameRoad(other LaneIndex) bool {
	return l.From == other.From && l.To == other.To
}

// LaneKind names a lane geometry variant.
type LaneKind string

const (
	LaneKindStraight   LaneKind = "straight"
	LaneKindCircular   LaneKind = "circular"
	LaneKindSine       LaneKind = "sine"
	LaneKindPolynomial LaneKind = "polynomial"
)

// Lane is the closed set of lane geometries: *StraightLane, *CircularLane
// and *UnsupportedLane. Consumers type-switch over these three.
type Lane interface {
	Kind() LaneKind
	LaneWidth() float64
	LaneSpeedLimit() float64
	sealed()
}

// StraightLane runs from Start to End.
type StraightLane struct {
	Start      Position2D `json:"start"`
	End        Position2D `json:"end"`
	Width      float64    `json:"width"`
	SpeedLimit float64    `json:"speedLimit"`
}

func (*StraightLane) Kind() LaneKind            { return LaneKindStraight }
func (l *StraightLane) LaneWidth() float64      { return l.Width }
func (l *StraightLane) LaneSpeedLimit() float64 { return l.SpeedLimit }
func (*StraightLane) sealed()                   {}

// CircularLane is an arc around Center between StartPhase and EndPhase.
// Clockwise is measured in the simulator's y-down screen frame, so clockwise
// arcs run with increasing phase.
type CircularLane struct {
	Center     Position2D `json:"center"`
	Radius     float64    `json:"radius"`
	StartPhase float64    `json:"startPhase"`
	EndPhase   float64    `json:"endPhase"`
	Clockwise  bool       `json:"clockwise"`
	Width      float64    `json:"width"`
	SpeedLimit float64    `json:"speedLimit"`
}

func (*CircularLane) Kind() LaneKind            { return LaneKindCircular }
func (l *CircularLane) LaneWidth() float64      { return l.Width }
func (l *CircularLane) LaneSpeedLimit() float64 { return l.SpeedLimit }
func (*CircularLane) sealed()                   {}

// Direction returns +1 for clockwise arcs and -1 otherwise.
func (l *CircularLane) Direction() float64 {
	if l.Clockwise {
		return 1
	}
	return -1
}

// UnsupportedLane keeps sine and polynomial lanes representable. Every
// geometry query on it fails.
type UnsupportedLane struct {
	LaneKind   LaneKind `json:"kind"`
	Width      float64  `json:"width"`
	SpeedLimit float64  `json:"speedLimit"`
}

func (l *UnsupportedLane) Kind() LaneKind          { return l.LaneKind }
func (l *UnsupportedLane) LaneWidth() float64      { return l.Width }
func (l *UnsupportedLane) LaneSpeedLimit() float64 { return l.SpeedLimit }
func (*UnsupportedLane) sealed()                   {}
