package junction

import (
	"math"
	"testing"

	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(x, y, heading float64) core.Vehicle {
	return core.Vehicle{Position: core.Position2D{X: x, Y: y}, Heading: heading}
}

func TestInJunction_Square(t *testing.T) {
	r := New(core.EnvIntersection)

	ego := at(-5, 3, 0)
	peer := at(20, -20, 0)
	assert.True(t, r.InJunction(ego))
	assert.True(t, r.InJunction(peer), "edges are inside")

	peer.Position.X = 21
	assert.False(t, r.InJunction(peer))
}

func TestInJunction_HighwayNever(t *testing.T) {
	r := New(core.EnvHighway)
	assert.False(t, r.InJunction(at(0, 0, 0)))
}

func TestInJunction_Options(t *testing.T) {
	r := New(core.EnvIntersection, WithHalfSize(5), WithCenter(core.Position2D{X: 100, Y: 100}))
	assert.True(t, r.InJunction(at(104, 96, 0)))
	assert.False(t, r.InJunction(at(0, 0, 0)))
}

func TestCollisionPoint(t *testing.T) {
	r := New(core.EnvIntersection)

	ego := at(-10, 0, 0)
	crossing := at(0, -10, math.Pi/2)
	p, ok := r.CollisionPoint(ego, crossing)
	require.True(t, ok)
	assert.InDelta(t, 0.0, p.X, 1e-9)
	assert.InDelta(t, 0.0, p.Y, 1e-9)

	_, ok = r.CollisionPoint(ego, at(0, 4, 0))
	assert.False(t, ok, "parallel")

	_, ok = New(core.EnvIntersection, WithHorizon(5)).CollisionPoint(ego, crossing)
	assert.False(t, ok, "beyond horizon")
}

func TestCandidates(t *testing.T) {
	r := New(core.EnvIntersection)
	target := core.LaneIndex{From: "ir0", To: "il1", Index: 0}

	ego := at(-10, 0, 0)
	peer := at(0, -10, math.Pi/2)
	peer.ID = 1
	onTarget := at(30, 0, 0)
	onTarget.ID = 2
	onTarget.Lane = target
	away := at(60, 60, 0)
	away.ID = 3

	got := r.Candidates(ego, []core.Vehicle{away, peer, onTarget}, target, true)
	require.Len(t, got, 2)

	assert.Equal(t, uint16(1), got[0].Vehicle.ID)
	assert.Equal(t, RolePeer, got[0].Role)
	require.NotNil(t, got[0].Collision)

	assert.Equal(t, uint16(2), got[1].Vehicle.ID)
	assert.Equal(t, RoleTargetLane, got[1].Role)
	assert.Nil(t, got[1].Collision, "same heading never crosses")

	assert.Len(t, r.Candidates(ego, []core.Vehicle{onTarget}, target, false), 0)
}
