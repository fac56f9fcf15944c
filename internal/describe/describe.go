// Package describe turns a scene snapshot into the text handed to the
// decision client, together with the classification behind it.
package describe

import (
	"context"
	"fmt"

	"github.com/OCAP2/drivescene/internal/classify"
	"github.com/OCAP2/drivescene/internal/danger"
	"github.com/OCAP2/drivescene/internal/geo"
	"github.com/OCAP2/drivescene/internal/junction"
	"github.com/OCAP2/drivescene/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Perception limits: the gateway is asked for ten vehicles on roads and six
// in junctions, the ego included.
const (
	DefaultMaxNearby         = 9
	DefaultMaxNearbyJunction = 5
)

// Topology is the road network as the describer sees it.
type Topology interface {
	classify.Topology
	LanePosition(v core.Vehicle) (float64, error)
}

// Description is the result of describing one frame.
type Description struct {
	Frame       int                  `json:"frame"`
	Environment core.EnvironmentKind `json:"environment"`
	Text        string               `json:"text"`
	InJunction  bool                 `json:"inJunction"`
	// Classification is nil when the ego is in a junction.
	Classification *classify.Result     `json:"classification,omitempty"`
	Candidates     []junction.Candidate `json:"candidates,omitempty"`
	Danger         []uint16             `json:"danger,omitempty"`
	// Considered is how many nearby vehicles were looked at after truncation.
	Considered int `json:"considered"`
}

// Option configures a Describer.
type Option func(*Describer)

// WithNearbyLimits caps how many nearby vehicles are considered on roads and
// in junctions.
func WithNearbyLimits(road, junction int) Option {
	return func(d *Describer) {
		d.maxNearby = road
		d.maxNearbyJunction = junction
	}
}

// WithJunctionOptions passes options to the junction reasoner.
func WithJunctionOptions(opts ...junction.Option) Option {
	return func(d *Describer) {
		d.junctionOpts = append(d.junctionOpts, opts...)
	}
}

// Describer builds descriptions against one road network. It keeps no state
// between calls and is safe for concurrent use.
type Describer struct {
	topo              Topology
	maxNearby         int
	maxNearbyJunction int
	junctionOpts      []junction.Option

	frames  metric.Int64Counter
	flagged metric.Int64Counter
}

// New creates a Describer over topo.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(topo Topology, opts ...Option) (*Describer, error) {
	d := &Describer{
		topo:              topo,
		maxNearby:         DefaultMaxNearby,
		maxNearbyJunction: DefaultMaxNearbyJunction,
	}
	for _, opt := range opts {
		opt(d)
	}

	m := meter()
	var err error
	d.frames, err = m.Int64Counter(
		"describe.frames",
		metric.WithDescription("Total frames described"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}
	d.flagged, err = m.Int64Counter(
		"describe.danger.flagged",
		metric.WithDescription("Total vehicles flagged inside the danger zone"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating danger counter: %w", err)
	}
	return d, nil
}

// Describe builds the description of snap.
func (d *Describer) Describe(snap core.SceneSnapshot) (Description, error) {
	reasoner := junction.New(snap.Environment, d.junctionOpts...)
	desc := Description{
		Frame:       snap.Frame,
		Environment: snap.Environment,
		InJunction:  reasoner.InJunction(snap.Ego),
	}

	var err error
	branch := "road"
	if desc.InJunction {
		branch = "junction"
		err = d.describeJunction(reasoner, snap, &desc)
	} else {
		err = d.describeRoad(snap, &desc)
	}
	if err != nil {
		return Description{}, fmt.Errorf("frame %d: %w", snap.Frame, err)
	}

	ctx := context.Background()
	d.frames.Add(ctx, 1, metric.WithAttributes(attribute.String("branch", branch)))
	if len(desc.Danger) > 0 {
		d.flagged.Add(ctx, int64(len(desc.Danger)), metric.WithAttributes(attribute.String("branch", branch)))
	}
	return desc, nil
}

func truncate(vs []core.Vehicle, limit int) []core.Vehicle {
	if limit >= 0 && len(vs) > limit {
		return vs[:limit]
	}
	return vs
}

func (d *Describer) describeRoad(snap core.SceneSnapshot, desc *Description) error {
	ego := snap.Ego
	nearby := truncate(snap.Nearby, d.maxNearby)
	desc.Considered = len(nearby)

	lanes, err := classify.Resolve(d.topo, ego)
	if err != nil {
		return err
	}
	egoPosition, err := d.topo.LanePosition(ego)
	if err != nil {
		return fmt.Errorf("ego: %w", err)
	}

	res := lanes.Classify(ego, nearby)
	desc.Classification = &res
	desc.Danger = danger.Flagged(ego, nearby)

	withLanePosition := snap.Environment != core.EnvIntersection
	bullets := make([]string, 0, len(res.Selected))
	for _, rel := range res.Selected {
		var pos float64
		if withLanePosition {
			pos, err = d.topo.LanePosition(rel.Vehicle)
			if err != nil {
				return fmt.Errorf("vehicle %d: %w", rel.Vehicle.ID, err)
			}
		}
		bullets = append(bullets, RoadBullet(rel, withLanePosition, pos))
	}

	desc.Text = LaneParagraph(len(lanes.Side), ego.Lane.Index, ego, egoPosition) + VehicleSection(bullets)
	return nil
}

func (d *Describer) describeJunction(reasoner *junction.Reasoner, snap core.SceneSnapshot, desc *Description) error {
	ego := snap.Ego
	nearby := truncate(snap.Nearby, d.maxNearbyJunction)
	desc.Considered = len(nearby)

	target, hasTarget, err := d.topo.NextLane(ego.Lane, ego.Route, ego.Position)
	if err != nil {
		return err
	}
	desc.Candidates = reasoner.Candidates(ego, nearby, target, hasTarget)

	byID := make(map[uint16]junction.Candidate, len(desc.Candidates))
	for _, c := range desc.Candidates {
		byID[c.Vehicle.ID] = c
	}

	var bullets []string
	for _, v := range nearby {
		if c, ok := byID[v.ID]; ok {
			bullets = append(bullets, CandidateBullet(c))
		}
		if danger.IsDangerous(ego, v) {
			desc.Danger = append(desc.Danger, v.ID)
			bullets = append(bullets, AttentionBullet(v, geo.RelativeBearing(ego, v), reasoner.InJunction(v)))
		}
	}

	desc.Text = JunctionParagraph(ego) + VehicleSection(bullets)
	return nil
}
