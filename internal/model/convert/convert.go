package convert

import (
	"fmt"

	"github.com/OCAP2/drivescene/internal/geo"
	"github.com/OCAP2/drivescene/internal/model"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"
)

// pointToPosition converts a geom.Point to a core.Position2D
func pointToPosition(p geom.Point) core.Position2D {
	coord, ok := p.Coordinates()
	if !ok {
		return core.Position2D{}
	}
	return core.Position2D{X: coord.XY.X, Y: coord.XY.Y}
}

// lineStringToPositions converts a geom.LineString to positions
func lineStringToPositions(ls geom.LineString) []core.Position2D {
	seq := ls.Coordinates()
	if seq.Length() == 0 {
		return nil
	}
	out := make([]core.Position2D, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		pt := seq.GetXY(i)
		out[i] = core.Position2D{X: pt.X, Y: pt.Y}
	}
	return out
}

// EpisodeToCore converts a GORM Episode back to episode info.
func EpisodeToCore(e model.Episode) (core.SimInfo, error) {
	id, err := uuid.Parse(e.EpisodeID)
	if err != nil {
		return core.SimInfo{}, fmt.Errorf("episode %d: %w", e.ID, err)
	}
	return core.SimInfo{
		EpisodeID: id,
		EnvType:   core.EnvironmentKind(e.EnvType),
		Seed:      e.Seed,
	}, nil
}

// VehicleStateToCore converts a GORM VehicleState to a core.Vehicle.
func VehicleStateToCore(s model.VehicleState) core.Vehicle {
	return core.Vehicle{
		ID:           s.VehicleID,
		Position:     pointToPosition(s.Position),
		Heading:      s.Heading,
		Speed:        s.Speed,
		Acceleration: s.Acceleration,
		Steering:     s.Steering,
		Length:       s.Length,
		Width:        s.Width,
		Lane:         core.LaneIndex{From: s.LaneFrom, To: s.LaneTo, Index: s.LaneIndex},
	}
}

// PromptRecordToCore converts a GORM PromptRecord to core.FramePrompts.
func PromptRecordToCore(r model.PromptRecord) core.FramePrompts {
	return core.FramePrompts{
		Frame:             int(r.Frame),
		VectorID:          r.VectorID,
		Done:              r.Done,
		Description:       r.Description,
		FewShots:          r.FewShots,
		ThoughtsAndAction: r.ThoughtsAndAction,
		EditedThoughts:    r.EditedThoughts,
		EditTimes:         r.EditTimes,
	}
}

// LaneWaypoints returns the stored centre line of a lane. The geometry column
// wins; the waypoint string is the fallback for rows written without it.
func LaneWaypoints(l model.NetworkLane) (core.LaneIndex, []core.Position2D, error) {
	idx := core.LaneIndex{From: l.FromNode, To: l.ToNode, Index: l.LaneIndex}
	if points := lineStringToPositions(l.Path); len(points) > 0 {
		return idx, points, nil
	}
	if l.Waypoints == "" {
		return idx, nil, nil
	}
	points, err := geo.ParseWaypoints(l.Waypoints)
	if err != nil {
		return idx, nil, fmt.Errorf("lane %s: %w", idx, err)
	}
	return idx, points, nil
}
