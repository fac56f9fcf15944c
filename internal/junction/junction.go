// Package junction handles vehicles inside an intersection, where lane
// buckets give way to collision-point reasoning.
package junction

import (
	"github.com/OCAP2/drivescene/internal/geo"
	"github.com/OCAP2/drivescene/pkg/core"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	DefaultHalfSize = 20.0
	DefaultHorizon  = 60.0
)

// Role is why a vehicle is reported while the ego is in a junction.
type Role string

const (
	RolePeer       Role = "peer"
	RoleTargetLane Role = "target-lane"
)

// Option configures a Reasoner.
type Option func(*config)

type config struct {
	halfSize float64
	center   core.Position2D
	horizon  float64
}

// WithHalfSize sets the half side length of the junction square.
func WithHalfSize(size float64) Option {
	return func(c *config) {
		c.halfSize = size
	}
}

// WithCenter moves the junction square.
func WithCenter(center core.Position2D) Option {
	return func(c *config) {
		c.center = center
	}
}

// WithHorizon sets how far ahead of each vehicle a collision point may lie.
func WithHorizon(metres float64) Option {
	return func(c *config) {
		c.horizon = metres
	}
}

// Reasoner answers junction questions for one environment kind.
type Reasoner struct {
	env     core.EnvironmentKind
	box     r2.Box
	horizon float64
}

// New creates a Reasoner. Only intersection environments have a junction.
func New(env core.EnvironmentKind, opts ...Option) *Reasoner {
	cfg := &config{halfSize: DefaultHalfSize, horizon: DefaultHorizon}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Reasoner{
		env: env,
		box: r2.NewBox(
			cfg.center.X-cfg.halfSize, cfg.center.Y-cfg.halfSize,
			cfg.center.X+cfg.halfSize, cfg.center.Y+cfg.halfSize,
		),
		horizon: cfg.horizon,
	}
}

// InJunction reports whether v is inside the junction square, edges included.
func (r *Reasoner) InJunction(v core.Vehicle) bool {
	if r.env != core.EnvIntersection {
		return false
	}
	return r.box.Contains(v.Position.Vec())
}

// CollisionPoint intersects the forward rays of ego and v.
func (r *Reasoner) CollisionPoint(ego, v core.Vehicle) (core.Position2D, bool) {
	return geo.RayIntersection(ego.Position, ego.Heading, v.Position, v.Heading, r.horizon)
}

// Candidate is a vehicle reported while the ego is in the junction.
type Candidate struct {
	Vehicle   core.Vehicle     `json:"vehicle"`
	Role      Role             `json:"role"`
	Bearing   geo.Bearing      `json:"bearing"`
	Collision *core.Position2D `json:"collision,omitempty"`
}

// Candidates returns, in order, the nearby vehicles that are in the junction
// or on the ego's target lane, each with its collision point if any.
func (r *Reasoner) Candidates(ego core.Vehicle, nearby []core.Vehicle, target core.LaneIndex, hasTarget bool) []Candidate {
	var out []Candidate
	for _, v := range nearby {
		var role Role
		switch {
		case r.InJunction(v):
			role = RolePeer
		case hasTarget && v.Lane == target:
			role = RoleTargetLane
		default:
			continue
		}

		c := Candidate{Vehicle: v, Role: role, Bearing: geo.RelativeBearing(ego, v)}
		if p, ok := r.CollisionPoint(ego, v); ok {
			c.Collision = &p
		}
		out = append(out, c)
	}
	return out
}
