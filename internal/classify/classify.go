// Package classify buckets nearby vehicles by their lane relative to the ego
// and keeps the nearest vehicle ahead and behind in each bucket.
package classify

import (
	"github.com/OCAP2/drivescene/internal/geo"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/samber/lo"
)

// Bucket is a lane relation between a nearby vehicle and the ego.
type Bucket string

const (
	Current Bucket = "current"
	Left    Bucket = "left"
	Right   Bucket = "right"
	Target  Bucket = "target"
)

// Buckets lists every bucket in reporting order.
var Buckets = []Bucket{Current, Left, Right, Target}

// Topology is the part of the road network the classifier needs.
type Topology interface {
	SideLanes(idx core.LaneIndex) ([]core.LaneIndex, error)
	NextLane(idx core.LaneIndex, route []core.LaneIndex, position core.Position2D) (core.LaneIndex, bool, error)
}

// Pair holds the nearest vehicle ahead and behind in one bucket. Exists is
// true when the bucket had at least one member before the reduction.
type Pair struct {
	Ahead  *core.Vehicle `json:"ahead,omitempty"`
	Behind *core.Vehicle `json:"behind,omitempty"`
	Exists bool          `json:"exists"`
}

// Relation describes one kept vehicle relative to the ego.
type Relation struct {
	Vehicle    core.Vehicle `json:"vehicle"`
	Bucket     Bucket       `json:"bucket"`
	Bearing    geo.Bearing  `json:"bearing"`
	Gap        float64      `json:"gap"`
	SpeedDelta float64      `json:"speedDelta"`
}

// Result is the outcome of one classification.
type Result struct {
	Buckets map[Bucket]Pair `json:"buckets"`
	// Selected lists the kept vehicles in perception order.
	Selected   []Relation     `json:"selected"`
	TargetLane core.LaneIndex `json:"targetLane"`
	HasTarget  bool           `json:"hasTarget"`
	SideLanes  int            `json:"sideLanes"`
}

// Lanes is the lane context of the ego for one frame.
type Lanes struct {
	Ego       core.LaneIndex
	Side      []core.LaneIndex
	Target    core.LaneIndex
	HasTarget bool
}

// Resolve looks up the side lanes and target lane of the ego.
func Resolve(topo Topology, ego core.Vehicle) (Lanes, error) {
	side, err := topo.SideLanes(ego.Lane)
	if err != nil {
		return Lanes{}, err
	}
	target, ok, err := topo.NextLane(ego.Lane, ego.Route, ego.Position)
	if err != nil {
		return Lanes{}, err
	}
	return Lanes{Ego: ego.Lane, Side: side, Target: target, HasTarget: ok}, nil
}

// BucketOf places a lane into a bucket. ok is false for lanes that are
// neither an adjacent side lane nor the target lane.
func (l Lanes) BucketOf(lane core.LaneIndex) (b Bucket, ok bool) {
	if lo.Contains(l.Side, lane) {
		switch {
		case lane == l.Ego:
			return Current, true
		case lane.Index-l.Ego.Index == 1:
			return Right, true
		case lane.Index-l.Ego.Index == -1:
			return Left, true
		default:
			return "", false
		}
	}
	if l.HasTarget && lane == l.Target {
		return Target, true
	}
	return "", false
}

// Classify buckets nearby and reduces each bucket to its nearest vehicle
// ahead and behind. Ties go to the vehicle seen first in nearby.
func Classify(topo Topology, ego core.Vehicle, nearby []core.Vehicle) (Result, error) {
	lanes, err := Resolve(topo, ego)
	if err != nil {
		return Result{}, err
	}
	return lanes.Classify(ego, nearby), nil
}

// Classify runs the reduction against an already resolved lane context.
func (l Lanes) Classify(ego core.Vehicle, nearby []core.Vehicle) Result {
	members := make(map[Bucket][]core.Vehicle, len(Buckets))
	for _, v := range nearby {
		if b, ok := l.BucketOf(v.Lane); ok {
			members[b] = append(members[b], v)
		}
	}

	res := Result{
		Buckets:    make(map[Bucket]Pair, len(Buckets)),
		TargetLane: l.Target,
		HasTarget:  l.HasTarget,
		SideLanes:  len(l.Side),
	}
	kept := make(map[uint16]Bucket)
	for _, b := range Buckets {
		group := members[b]
		ahead := lo.Filter(group, func(v core.Vehicle, _ int) bool {
			return geo.RelativeBearing(ego, v) == geo.Ahead
		})
		behind := lo.Filter(group, func(v core.Vehicle, _ int) bool {
			return geo.RelativeBearing(ego, v) == geo.Behind
		})
		pair := Pair{
			Ahead:  nearest(ego, ahead),
			Behind: nearest(ego, behind),
			Exists: len(group) > 0,
		}
		if pair.Ahead != nil {
			kept[pair.Ahead.ID] = b
		}
		if pair.Behind != nil {
			kept[pair.Behind.ID] = b
		}
		res.Buckets[b] = pair
	}

	for _, v := range nearby {
		b, ok := kept[v.ID]
		if !ok {
			continue
		}
		delete(kept, v.ID)
		res.Selected = append(res.Selected, Relation{
			Vehicle:    v,
			Bucket:     b,
			Bearing:    geo.RelativeBearing(ego, v),
			Gap:        geo.Distance(ego.Position, v.Position),
			SpeedDelta: v.Speed - ego.Speed,
		})
	}
	return res
}

// nearest returns the member closest to the ego, or nil for an empty group.
func nearest(ego core.Vehicle, group []core.Vehicle) *core.Vehicle {
	if len(group) == 0 {
		return nil
	}
	v := lo.MinBy(group, func(a, b core.Vehicle) bool {
		return geo.Distance(ego.Position, a.Position) < geo.Distance(ego.Position, b.Position)
	})
	return &v
}
