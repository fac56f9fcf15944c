package road

import (
	"fmt"
	"math"

	"github.com/OCAP2/drivescene/pkg/core"
	"gonum.org/v1/gonum/spatial/r2"
)

// arcSamples is the number of waypoints emitted for a circular lane.
const arcSamples = 50

func unsupported(lane core.Lane) error {
	return fmt.Errorf("%s lane: %w", lane.Kind(), ErrUnsupportedLaneType)
}

func straightFrame(l *core.StraightLane) (dir, lateral r2.Vec) {
	dir = r2.Unit(r2.Sub(l.End.Vec(), l.Start.Vec()))
	return dir, r2.Vec{X: -dir.Y, Y: dir.X}
}

// Length returns the lane length along its centre line.
func Length(lane core.Lane) (float64, error) {
	switch l := lane.(type) {
	case *core.StraightLane:
		return r2.Norm(r2.Sub(l.End.Vec(), l.Start.Vec())), nil
	case *core.CircularLane:
		return l.Radius * (l.EndPhase - l.StartPhase) * l.Direction(), nil
	default:
		return 0, unsupported(lane)
	}
}

// LocalCoordinates projects p into the lane frame: longitudinal distance from
// the lane start and lateral offset from the centre line.
func LocalCoordinates(lane core.Lane, p core.Position2D) (long, lat float64, err error) {
	switch l := lane.(type) {
	case *core.StraightLane:
		dir, lateral := straightFrame(l)
		delta := r2.Sub(p.Vec(), l.Start.Vec())
		return r2.Dot(delta, dir), r2.Dot(delta, lateral), nil
	case *core.CircularLane:
		delta := r2.Sub(p.Vec(), l.Center.Vec())
		phi := math.Atan2(delta.Y, delta.X)
		phi = l.StartPhase + wrapToPi(phi-l.StartPhase)
		long = l.Direction() * (phi - l.StartPhase) * l.Radius
		lat = l.Direction() * (l.Radius - r2.Norm(delta))
		return long, lat, nil
	default:
		return 0, 0, unsupported(lane)
	}
}

// PositionAt maps lane coordinates back to the plane.
func PositionAt(lane core.Lane, long, lat float64) (core.Position2D, error) {
	switch l := lane.(type) {
	case *core.StraightLane:
		dir, lateral := straightFrame(l)
		v := r2.Add(l.Start.Vec(), r2.Add(r2.Scale(long, dir), r2.Scale(lat, lateral)))
		return core.PositionFromVec(v), nil
	case *core.CircularLane:
		phi := l.Direction()*long/l.Radius + l.StartPhase
		r := l.Radius - lat*l.Direction()
		return core.Position2D{
			X: l.Center.X + r*math.Cos(phi),
			Y: l.Center.Y + r*math.Sin(phi),
		}, nil
	default:
		return core.Position2D{}, unsupported(lane)
	}
}

// DistanceTo is the lateral offset of p plus how far p lies beyond either
// end of the lane.
func DistanceTo(lane core.Lane, p core.Position2D) (float64, error) {
	long, lat, err := LocalCoordinates(lane, p)
	if err != nil {
		return 0, err
	}
	length, err := Length(lane)
	if err != nil {
		return 0, err
	}
	return math.Abs(lat) + math.Max(long-length, 0) + math.Max(-long, 0), nil
}

// Waypoints returns the centre line as a polyline: both ends of a straight
// lane, or arcSamples points along a circular one.
func Waypoints(lane core.Lane) ([]core.Position2D, error) {
	switch l := lane.(type) {
	case *core.StraightLane:
		return []core.Position2D{l.Start, l.End}, nil
	case *core.CircularLane:
		from, to := l.StartPhase, l.EndPhase
		if l.Direction() == 1 {
			from, to = to, from
		}
		step := (to - from) / (arcSamples - 1)
		points := make([]core.Position2D, arcSamples)
		for i := range points {
			theta := from + float64(i)*step
			points[i] = core.Position2D{
				X: l.Center.X + l.Radius*math.Cos(theta),
				Y: l.Center.Y + l.Radius*math.Sin(theta),
			}
		}
		return points, nil
	default:
		return nil, unsupported(lane)
	}
}

// wrapToPi maps an angle to [-pi, pi).
func wrapToPi(x float64) float64 {
	m := math.Mod(x+math.Pi, 2*math.Pi)
	if m < 0 {
		m += 2 * math.Pi
	}
	return m - math.Pi
}
