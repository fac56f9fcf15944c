// Package road indexes the lane graph of a simulated road network.
package road

import (
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/drivescene/internal/geo"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/samber/lo"
)

var (
	// ErrUnknownLane is returned when a lane index is absent from the network.
	ErrUnknownLane = errors.New("unknown lane")
	// ErrUnsupportedGeometry is returned for longitudinal queries on lanes that
	// are not straight.
	ErrUnsupportedGeometry = errors.New("unsupported lane geometry")
	// ErrUnsupportedLaneType is returned by any geometry query on sine or
	// polynomial lanes.
	ErrUnsupportedLaneType = errors.New("unsupported lane type")
)

// Network maps origin -> destination -> ordered lanes. Index 0 of each group
// is the leftmost lane. A Network is not modified after it is built, so it can
// be shared across goroutines.
type Network struct {
	graph map[string]map[string][]core.Lane
	// insertion order, for deterministic scans
	origins []string
	order   map[string][]string
}

// NewNetwork returns an empty network.
func NewNetwork() *Network {
	return &Network{
		graph: make(map[string]map[string][]core.Lane),
		order: make(map[string][]string),
	}
}

// AddLane appends lane to the from->to group and returns its index.
func (n *Network) AddLane(from, to string, lane core.Lane) core.LaneIndex {
	if _, ok := n.graph[from]; !ok {
		n.graph[from] = make(map[string][]core.Lane)
		n.origins = append(n.origins, from)
	}
	if _, ok := n.graph[from][to]; !ok {
		n.order[from] = append(n.order[from], to)
	}
	n.graph[from][to] = append(n.graph[from][to], lane)
	return core.LaneIndex{From: from, To: to, Index: len(n.graph[from][to]) - 1}
}

// Lane returns the geometry stored at idx.
func (n *Network) Lane(idx core.LaneIndex) (core.Lane, error) {
	group := n.graph[idx.From][idx.To]
	if idx.Index < 0 || idx.Index >= len(group) {
		return nil, fmt.Errorf("lane %s: %w", idx, ErrUnknownLane)
	}
	return group[idx.Index], nil
}

// SideLanes returns every lane of idx's group in order, idx included.
func (n *Network) SideLanes(idx core.LaneIndex) ([]core.LaneIndex, error) {
	if _, err := n.Lane(idx); err != nil {
		return nil, err
	}
	return n.group(idx.From, idx.To), nil
}

func (n *Network) group(from, to string) []core.LaneIndex {
	return lo.Times(len(n.graph[from][to]), func(i int) core.LaneIndex {
		return core.LaneIndex{From: from, To: to, Index: i}
	})
}

// Len returns the number of lanes in the network.
func (n *Network) Len() int {
	count := 0
	for _, tos := range n.graph {
		for _, lanes := range tos {
			count += len(lanes)
		}
	}
	return count
}

// Each calls fn for every lane, in insertion order. Iteration stops at the
// first error.
func (n *Network) Each(fn func(idx core.LaneIndex, lane core.Lane) error) error {
	for _, from := range n.origins {
		for _, to := range n.order[from] {
			for i, lane := range n.graph[from][to] {
				if err := fn(core.LaneIndex{From: from, To: to, Index: i}, lane); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// NextLane returns the lane a vehicle on idx moves onto next.
//
// The route is followed when its next step starts where idx ends. A route
// step with a negative Index leaves the lane choice to the network. Without a
// usable route step, the outgoing road with the lane closest to the vehicle's
// projection on idx wins. ok is false when idx.To has no outgoing roads.
func (n *Network) NextLane(idx core.LaneIndex, route []core.LaneIndex, position core.Position2D) (next core.LaneIndex, ok bool, err error) {
	current, err := n.Lane(idx)
	if err != nil {
		return core.LaneIndex{}, false, err
	}

	if len(route) > 0 && route[0].SameRoad(idx) {
		route = route[1:]
	}
	nextTo, nextID := "", -1
	if len(route) > 0 && route[0].From == idx.To {
		nextTo, nextID = route[0].To, route[0].Index
	}

	long, _, err := LocalCoordinates(current, position)
	if err != nil {
		return core.LaneIndex{}, false, err
	}
	projected, err := PositionAt(current, long, 0)
	if err != nil {
		return core.LaneIndex{}, false, err
	}

	if nextTo != "" {
		if _, exists := n.graph[idx.To][nextTo]; !exists {
			return core.LaneIndex{}, false, fmt.Errorf("route step %s->%s: %w", idx.To, nextTo, ErrUnknownLane)
		}
		nextID, _, err = n.laneOnRoad(idx, nextTo, nextID, projected)
		if err != nil {
			return core.LaneIndex{}, false, err
		}
		return core.LaneIndex{From: idx.To, To: nextTo, Index: nextID}, true, nil
	}

	outgoing := n.order[idx.To]
	if len(outgoing) == 0 {
		return idx, false, nil
	}
	best := math.Inf(1)
	for _, to := range outgoing {
		id, dist, err := n.laneOnRoad(idx, to, -1, projected)
		if err != nil {
			return core.LaneIndex{}, false, err
		}
		if dist < best {
			best, nextTo, nextID = dist, to, id
		}
	}
	return core.LaneIndex{From: idx.To, To: nextTo, Index: nextID}, true, nil
}

// laneOnRoad picks the lane of idx.To->to to continue on. Roads with the same
// lane count keep the lane index, others take the lane closest to projected.
func (n *Network) laneOnRoad(idx core.LaneIndex, to string, id int, projected core.Position2D) (int, float64, error) {
	lanes := n.graph[idx.To][to]
	if len(n.graph[idx.From][idx.To]) == len(lanes) {
		if id < 0 {
			id = idx.Index
		}
	} else {
		id = -1
		best := math.Inf(1)
		for i, lane := range lanes {
			d, err := DistanceTo(lane, projected)
			if err != nil {
				return 0, 0, err
			}
			if d < best {
				best, id = d, i
			}
		}
	}

	lane, err := n.Lane(core.LaneIndex{From: idx.To, To: to, Index: id})
	if err != nil {
		return 0, 0, err
	}
	d, err := DistanceTo(lane, projected)
	if err != nil {
		return 0, 0, err
	}
	return id, d, nil
}

// LanePosition returns how far v has travelled along its lane, measured
// from the lane start. Only straight lanes have a lane position.
func (n *Network) LanePosition(v core.Vehicle) (float64, error) {
	lane, err := n.Lane(v.Lane)
	if err != nil {
		return 0, err
	}
	switch l := lane.(type) {
	case *core.StraightLane:
		return geo.Distance(v.Position, l.Start), nil
	case *core.CircularLane:
		return 0, fmt.Errorf("lane position on %s: %w", v.Lane, ErrUnsupportedGeometry)
	case *core.UnsupportedLane:
		return 0, fmt.Errorf("lane position on %s (%s): %w", v.Lane, l.LaneKind, ErrUnsupportedLaneType)
	default:
		return 0, fmt.Errorf("lane position on %s: %w", v.Lane, ErrUnsupportedLaneType)
	}
}
