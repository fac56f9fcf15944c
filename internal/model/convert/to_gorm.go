// Package convert provides functions to convert between core values and GORM models
package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/drivescene/internal/describe"
	"github.com/OCAP2/drivescene/internal/geo"
	"github.com/OCAP2/drivescene/internal/model"
	"github.com/OCAP2/drivescene/internal/road"
	"github.com/OCAP2/drivescene/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// positionToPoint converts a core.Position2D to a geom.Point
func positionToPoint(p core.Position2D) geom.Point {
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.X, Y: p.Y}})
}

// toJSON marshals v, falling back to fallback for empty values.
func toJSON(v any, empty bool, fallback string) (datatypes.JSON, error) {
	if empty {
		return datatypes.JSON(fallback), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// CoreToEpisode converts episode info to a GORM model.Episode.
func CoreToEpisode(info core.SimInfo, start time.Time) model.Episode {
	return model.Episode{
		EpisodeID: info.EpisodeID.String(),
		EnvType:   string(info.EnvType),
		Seed:      info.Seed,
		StartTime: start,
	}
}

// NetworkToLanes flattens a road network into GORM rows, in network order.
// Sine and polynomial lanes are kept without waypoints.
func NetworkToLanes(n *road.Network, episodeID uint) ([]model.NetworkLane, error) {
	lanes := make([]model.NetworkLane, 0, n.Len())
	err := n.Each(func(idx core.LaneIndex, lane core.Lane) error {
		row := model.NetworkLane{
			EpisodeID:  episodeID,
			FromNode:   idx.From,
			ToNode:     idx.To,
			LaneIndex:  idx.Index,
			Kind:       string(lane.Kind()),
			Width:      lane.LaneWidth(),
			SpeedLimit: lane.LaneSpeedLimit(),
		}
		points, err := road.Waypoints(lane)
		switch {
		case errors.Is(err, road.ErrUnsupportedLaneType):
		case err != nil:
			return fmt.Errorf("lane %s: %w", idx, err)
		default:
			row.Waypoints = geo.FormatWaypoints(points)
			row.Path = geo.LineString(points)
		}
		lanes = append(lanes, row)
		return nil
	})
	return lanes, err
}

// CoreToVehicleState converts one perceived vehicle to a GORM row.
func CoreToVehicleState(v core.Vehicle, frame int, isEgo, dangerous bool, t time.Time) model.VehicleState {
	return model.VehicleState{
		Time:         t,
		Frame:        uint(frame),
		VehicleID:    v.ID,
		IsEgo:        isEgo,
		Position:     positionToPoint(v.Position),
		Heading:      v.Heading,
		Speed:        v.Speed,
		Acceleration: v.Acceleration,
		Steering:     v.Steering,
		Length:       v.Length,
		Width:        v.Width,
		LaneFrom:     v.Lane.From,
		LaneTo:       v.Lane.To,
		LaneIndex:    v.Lane.Index,
		Dangerous:    dangerous,
	}
}

// SnapshotToStates converts the ego and every nearby vehicle of a frame,
// ego first. Vehicles listed in flagged are marked dangerous.
func SnapshotToStates(snap core.SceneSnapshot, flagged []uint16, t time.Time) []model.VehicleState {
	danger := make(map[uint16]bool, len(flagged))
	for _, id := range flagged {
		danger[id] = true
	}
	states := make([]model.VehicleState, 0, len(snap.Nearby)+1)
	states = append(states, CoreToVehicleState(snap.Ego, snap.Frame, true, false, t))
	for _, v := range snap.Nearby {
		states = append(states, CoreToVehicleState(v, snap.Frame, false, danger[v.ID], t))
	}
	return states
}

// DescriptionToGorm converts a frame description to a GORM row.
func DescriptionToGorm(d describe.Description, actionsText string, t time.Time) (model.SceneDescription, error) {
	row := model.SceneDescription{
		Time:             t,
		Frame:            uint(d.Frame),
		Environment:      string(d.Environment),
		Text:             d.Text,
		InJunction:       d.InJunction,
		AvailableActions: actionsText,
	}

	var err error
	if row.Classification, err = toJSON(d.Classification, d.Classification == nil, "null"); err != nil {
		return row, fmt.Errorf("classification: %w", err)
	}
	if row.Candidates, err = toJSON(d.Candidates, len(d.Candidates) == 0, "[]"); err != nil {
		return row, fmt.Errorf("candidates: %w", err)
	}
	if row.Danger, err = toJSON(d.Danger, len(d.Danger) == 0, "[]"); err != nil {
		return row, fmt.Errorf("danger: %w", err)
	}
	return row, nil
}

// CoreToPromptRecord converts frame prompts to a GORM row.
func CoreToPromptRecord(p core.FramePrompts, t time.Time) model.PromptRecord {
	return model.PromptRecord{
		Time:              t,
		Frame:             uint(p.Frame),
		VectorID:          p.VectorID,
		Done:              p.Done,
		Description:       p.Description,
		FewShots:          p.FewShots,
		ThoughtsAndAction: p.ThoughtsAndAction,
		EditedThoughts:    p.EditedThoughts,
		EditTimes:         p.EditTimes,
	}
}
