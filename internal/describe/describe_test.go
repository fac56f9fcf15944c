package describe

import (
	"math"
	"testing"

	"github.com/OCAP2/drivescene/internal/classify"
	"github.com/OCAP2/drivescene/internal/junction"
	"github.com/OCAP2/drivescene/internal/road"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func highway(lanes int) *road.Network {
	n := road.NewNetwork()
	for i := 0; i < lanes; i++ {
		y := 4 * float64(i)
		n.AddLane("0", "1", &core.StraightLane{
			Start: core.Position2D{X: 0, Y: y},
			End:   core.Position2D{X: 1000, Y: y},
			Width: 4,
		})
	}
	return n
}

func newDescriber(t *testing.T, topo Topology, opts ...Option) *Describer {
	t.Helper()
	d, err := New(topo, opts...)
	require.NoError(t, err)
	return d
}

func assertText(t *testing.T, want, got string) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("description mismatch (-want +got):\n%s", diff)
	}
}

func TestDescribe_SingleLaneNoVehicles(t *testing.T) {
	d := newDescriber(t, highway(1))
	snap := core.SceneSnapshot{
		Frame:       3,
		Environment: core.EnvHighway,
		Ego: core.Vehicle{
			Position:     core.Position2D{X: 100},
			Speed:        20,
			Acceleration: 0.5,
			Lane:         core.LaneIndex{From: "0", To: "1"},
		},
	}

	desc, err := d.Describe(snap)
	require.NoError(t, err)

	assertText(t, "You are driving on a road with only one lane, you can't change lane. "+
		"Your current position is `(100.00, 0.00)`, speed is 20.00 m/s, acceleration is 0.50 m/s^2, and lane position is 100.00 m.\n"+
		"There are no other vehicles driving near you, so you can drive completely according to your own ideas.\n", desc.Text)
	assert.Equal(t, 3, desc.Frame)
	assert.False(t, desc.InJunction)
	require.NotNil(t, desc.Classification)
}

func TestDescribe_SingleLaneOmitsSideBullets(t *testing.T) {
	d := newDescriber(t, highway(1))
	ego := core.Vehicle{Position: core.Position2D{X: 100}, Speed: 20, Lane: core.LaneIndex{From: "0", To: "1"}}
	// Index 1 does not exist on this road.
	stray := core.Vehicle{ID: 4, Position: core.Position2D{X: 120, Y: 4}, Lane: core.LaneIndex{From: "0", To: "1", Index: 1}}

	desc, err := d.Describe(core.SceneSnapshot{Environment: core.EnvHighway, Ego: ego, Nearby: []core.Vehicle{stray}})
	require.NoError(t, err)

	assert.Contains(t, desc.Text, "only one lane")
	assert.NotContains(t, desc.Text, "lane to your")
	assert.Contains(t, desc.Text, noVehiclesText)
}

func TestDescribe_SameLaneAhead(t *testing.T) {
	d := newDescriber(t, highway(3))
	lane := core.LaneIndex{From: "0", To: "1", Index: 1}
	snap := core.SceneSnapshot{
		Environment: core.EnvHighway,
		Ego:         core.Vehicle{Position: core.Position2D{X: 363.14, Y: 4}, Speed: 25.0, Lane: lane},
		Nearby: []core.Vehicle{
			{ID: 7, Position: core.Position2D{X: 382.33, Y: 4}, Speed: 23.30, Acceleration: -0.5, Lane: lane},
		},
	}

	desc, err := d.Describe(snap)
	require.NoError(t, err)

	assertText(t, "You are driving on a road with 3 lanes, and you are currently driving in the second lane from the left. "+
		"Your current position is `(363.14, 4.00)`, speed is 25.00 m/s, acceleration is 0.00 m/s^2, and lane position is 363.14 m.\n"+
		vehiclesPrefix+
		"- Vehicle `7` is driving on the same lane as you and is ahead of you. "+
		"The position of it is `(382.33, 4.00)`, speed is 23.30 m/s, acceleration is -0.50 m/s^2, and lane position is 382.33 m.\n", desc.Text)

	cur := desc.Classification.Buckets[classify.Current]
	require.NotNil(t, cur.Ahead)
	assert.Equal(t, uint16(7), cur.Ahead.ID)
}

func TestDescribe_IntersectionApproachOmitsLanePosition(t *testing.T) {
	n := road.NewNetwork()
	lane := n.AddLane("o0", "ir0", &core.StraightLane{
		Start: core.Position2D{X: 0, Y: 100},
		End:   core.Position2D{X: 0, Y: 20},
		Width: 4,
	})
	d := newDescriber(t, n)

	south := -math.Pi / 2
	snap := core.SceneSnapshot{
		Environment: core.EnvIntersection,
		Ego:         core.Vehicle{Position: core.Position2D{X: 0, Y: 50}, Heading: south, Speed: 9, Lane: lane},
		Nearby: []core.Vehicle{
			{ID: 3, Position: core.Position2D{X: 0, Y: 40}, Heading: south, Speed: 10, Lane: lane},
		},
	}

	desc, err := d.Describe(snap)
	require.NoError(t, err)

	assertText(t, singleLaneText+
		"Your current position is `(0.00, 50.00)`, speed is 9.00 m/s, acceleration is 0.00 m/s^2, and lane position is 50.00 m.\n"+
		vehiclesPrefix+
		"- Vehicle `3` is driving on the same lane as you and is ahead of you. "+
		"The position of it is `(0.00, 40.00)`, speed is 10.00 m/s, acceleration is 0.00 m/s^2.\n", desc.Text)
	assert.Equal(t, []uint16{3}, desc.Danger)
}

func crossroads() (*road.Network, core.LaneIndex, core.LaneIndex) {
	n := road.NewNetwork()
	through := n.AddLane("ir0", "il1", &core.StraightLane{
		Start: core.Position2D{X: -20, Y: 0},
		End:   core.Position2D{X: 20, Y: 0},
		Width: 4,
	})
	exit := n.AddLane("il1", "o1", &core.StraightLane{
		Start: core.Position2D{X: 20, Y: 0},
		End:   core.Position2D{X: 100, Y: 0},
		Width: 4,
	})
	return n, through, exit
}

func TestDescribe_Junction(t *testing.T) {
	n, through, exit := crossroads()
	d := newDescriber(t, n)

	snap := core.SceneSnapshot{
		Environment: core.EnvIntersection,
		Ego:         core.Vehicle{Position: core.Position2D{X: -10}, Speed: 5, Lane: through},
		Nearby: []core.Vehicle{
			{ID: 3, Position: core.Position2D{X: -5, Y: 0.5}, Speed: 4, Lane: through},
			{ID: 1, Position: core.Position2D{X: 0, Y: -10}, Heading: math.Pi / 2, Speed: 8},
			{ID: 2, Position: core.Position2D{X: 30}, Speed: 10, Lane: exit},
		},
	}

	desc, err := d.Describe(snap)
	require.NoError(t, err)

	assertText(t, junctionText+
		"Your current position is `(-10.00, 0.00)`, speed is 5.00 m/s, and acceleration is 0.00 m/s^2.\n"+
		vehiclesPrefix+
		"- Vehicle `3` is also in the junction and is ahead of you. The position of it is `(-5.00, 0.50)`, speed is 4.00 m/s, and acceleration is 0.00 m/s^2. You two are no potential collision.\n"+
		"- Vehicle `3` is also in the junction and is ahead of you. The position of it is `(-5.00, 0.50)`, speed is 4.00 m/s, and acceleration is 0.00 m/s^2. This car is within your field of vision, and you need to pay attention to its status when making decisions.\n"+
		"- Vehicle `1` is also in the junction and is ahead of you. The position of it is `(0.00, -10.00)`, speed is 8.00 m/s, and acceleration is 0.00 m/s^2. The potential collision point is `(0.00, 0.00)`.\n"+
		"- Vehicle `2` is driving on your target lane and is ahead of you. The position of it is `(30.00, 0.00)`, speed is 10.00 m/s, and acceleration is 0.00 m/s^2. You two are no potential collision.\n",
		desc.Text)

	assert.True(t, desc.InJunction)
	assert.Nil(t, desc.Classification)
	assert.Len(t, desc.Candidates, 3)
	assert.Equal(t, []uint16{3}, desc.Danger)
}

func TestDescribe_JunctionWithoutCandidates(t *testing.T) {
	n, through, _ := crossroads()
	d := newDescriber(t, n)

	snap := core.SceneSnapshot{
		Environment: core.EnvIntersection,
		Ego:         core.Vehicle{Position: core.Position2D{X: -10}, Speed: 5, Lane: through},
		Nearby:      []core.Vehicle{{ID: 9, Position: core.Position2D{X: 100, Y: 100}}},
	}

	desc, err := d.Describe(snap)
	require.NoError(t, err)
	assert.Equal(t, JunctionParagraph(snap.Ego)+noVehiclesText, desc.Text)
}

func TestDescribe_JunctionOptions(t *testing.T) {
	n, through, _ := crossroads()
	d := newDescriber(t, n, WithJunctionOptions(junction.WithHalfSize(5)))

	snap := core.SceneSnapshot{
		Environment: core.EnvIntersection,
		Ego:         core.Vehicle{Position: core.Position2D{X: -10}, Speed: 5, Lane: through},
	}
	desc, err := d.Describe(snap)
	require.NoError(t, err)
	assert.False(t, desc.InJunction)
}

func TestDescribe_TruncatesNearby(t *testing.T) {
	lane := core.LaneIndex{From: "0", To: "1"}
	var nearby []core.Vehicle
	for i := 1; i <= 12; i++ {
		nearby = append(nearby, core.Vehicle{ID: uint16(i), Position: core.Position2D{X: 500 + 10*float64(i)}, Lane: lane})
	}
	snap := core.SceneSnapshot{
		Environment: core.EnvHighway,
		Ego:         core.Vehicle{Position: core.Position2D{X: 500}, Lane: lane},
		Nearby:      nearby,
	}

	desc, err := newDescriber(t, highway(2)).Describe(snap)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxNearby, desc.Considered)

	desc, err = newDescriber(t, highway(2), WithNearbyLimits(2, 1)).Describe(snap)
	require.NoError(t, err)
	assert.Equal(t, 2, desc.Considered)
}

func TestDescribe_Errors(t *testing.T) {
	n := highway(2)
	arc := n.AddLane("1", "2", &core.CircularLane{Center: core.Position2D{X: 1000, Y: 100}, Radius: 100, StartPhase: -math.Pi / 2, Clockwise: true})
	d := newDescriber(t, n)

	_, err := d.Describe(core.SceneSnapshot{
		Environment: core.EnvHighway,
		Ego:         core.Vehicle{Lane: core.LaneIndex{From: "x", To: "y"}},
	})
	assert.ErrorIs(t, err, road.ErrUnknownLane)

	_, err = d.Describe(core.SceneSnapshot{
		Environment: core.EnvHighway,
		Ego:         core.Vehicle{Position: core.Position2D{X: 1000}, Lane: arc},
	})
	assert.ErrorIs(t, err, road.ErrUnsupportedGeometry)
}

func TestLaneParagraph_Ordinals(t *testing.T) {
	ego := core.Vehicle{}
	tests := []struct {
		lanes, rank int
		want        string
	}{
		{4, 0, "in the leftmost lane. "},
		{4, 3, "in the rightmost lane. "},
		{4, 1, "in the second lane from the left. "},
		{4, 2, "in the third lane from the left. "},
		{5, 3, "in the fourth lane from the left. "},
		{12, 10, "in the 11th lane from the left. "},
	}
	for _, tt := range tests {
		got := LaneParagraph(tt.lanes, tt.rank, ego, 0)
		assert.Contains(t, got, tt.want)
	}
}

func TestAvailableActionsDescription(t *testing.T) {
	got := AvailableActionsDescription([]core.Action{core.ActionIdle, core.ActionAccelerate, core.Action(9), core.ActionDecelerate})
	assertText(t, "Your available actions are: \n"+
		"IDLE - remain in the current lane with current speed Action_id: 1\n"+
		"Acceleration - accelerate the vehicle Action_id: 3\n"+
		"Deceleration - decelerate the vehicle Action_id: 4\n", got)
}
