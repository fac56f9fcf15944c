package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/OCAP2/drivescene/internal/classify"
	"github.com/OCAP2/drivescene/internal/describe"
	"github.com/OCAP2/drivescene/internal/road"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionToPoint(t *testing.T) {
	pt := positionToPoint(core.Position2D{X: 100.5, Y: -4})

	coord, ok := pt.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 100.5, coord.XY.X)
	assert.Equal(t, -4.0, coord.XY.Y)
}

func TestCoreToEpisode(t *testing.T) {
	now := time.Now()
	info := core.SimInfo{EpisodeID: uuid.New(), EnvType: core.EnvIntersection, Seed: 7}

	e := CoreToEpisode(info, now)
	assert.Equal(t, info.EpisodeID.String(), e.EpisodeID)
	assert.Equal(t, "intersection-v1", e.EnvType)
	assert.Equal(t, int64(7), e.Seed)
	assert.Equal(t, now, e.StartTime)
	assert.False(t, e.EndTime.Valid)

	back, err := EpisodeToCore(e)
	require.NoError(t, err)
	assert.Equal(t, info, back)
}

func TestNetworkToLanes(t *testing.T) {
	n := road.NewNetwork()
	n.AddLane("0", "1", &core.StraightLane{Start: core.Position2D{X: 0, Y: 0}, End: core.Position2D{X: 100, Y: 0}, Width: 4, SpeedLimit: 30})
	n.AddLane("1", "2", &core.CircularLane{Center: core.Position2D{X: 100, Y: 20}, Radius: 20, StartPhase: -1.5, EndPhase: 0, Width: 4})
	n.AddLane("2", "3", &core.UnsupportedLane{LaneKind: core.LaneKindPolynomial, Width: 4})

	lanes, err := NetworkToLanes(n, 9)
	require.NoError(t, err)
	require.Len(t, lanes, 3)

	assert.Equal(t, uint(9), lanes[0].EpisodeID)
	assert.Equal(t, "0", lanes[0].FromNode)
	assert.Equal(t, "straight", lanes[0].Kind)
	assert.Equal(t, "0,0 100,0", lanes[0].Waypoints)
	assert.Equal(t, 2, lanes[0].Path.Coordinates().Length())
	assert.Equal(t, 30.0, lanes[0].SpeedLimit)

	assert.Equal(t, "circular", lanes[1].Kind)
	assert.Equal(t, 50, lanes[1].Path.Coordinates().Length())

	assert.Equal(t, "polynomial", lanes[2].Kind)
	assert.Empty(t, lanes[2].Waypoints)
	assert.True(t, lanes[2].Path.IsEmpty())
}

func TestSnapshotToStates(t *testing.T) {
	now := time.Now()
	snap := core.SceneSnapshot{
		Frame: 12,
		Ego: core.Vehicle{ID: 0, Position: core.Position2D{X: 10, Y: 4}, Speed: 25, Length: 5, Width: 2,
			Lane: core.LaneIndex{From: "0", To: "1", Index: 1}},
		Nearby: []core.Vehicle{
			{ID: 4, Position: core.Position2D{X: 12, Y: 4}, Length: 5, Width: 2},
			{ID: 6, Position: core.Position2D{X: 40, Y: 0}, Length: 5, Width: 2},
		},
	}

	states := SnapshotToStates(snap, []uint16{4}, now)
	require.Len(t, states, 3)

	assert.True(t, states[0].IsEgo)
	assert.False(t, states[0].Dangerous)
	assert.Equal(t, uint(12), states[0].Frame)
	assert.Equal(t, "1", states[0].LaneTo)
	assert.Equal(t, 1, states[0].LaneIndex)

	assert.Equal(t, uint16(4), states[1].VehicleID)
	assert.True(t, states[1].Dangerous)
	assert.False(t, states[2].Dangerous)

	back := VehicleStateToCore(states[0])
	assert.Equal(t, snap.Ego, back)
}

func TestDescriptionToGorm(t *testing.T) {
	now := time.Now()
	ahead := core.Vehicle{ID: 3}
	d := describe.Description{
		Frame:       5,
		Environment: core.EnvHighway,
		Text:        "You are driving on a road with only one lane.",
		Classification: &classify.Result{
			Buckets:   map[classify.Bucket]classify.Pair{classify.Current: {Ahead: &ahead, Exists: true}},
			SideLanes: 1,
		},
		Danger: []uint16{3},
	}

	row, err := DescriptionToGorm(d, "IDLE", now)
	require.NoError(t, err)
	assert.Equal(t, uint(5), row.Frame)
	assert.Equal(t, "highway-v0", row.Environment)
	assert.Equal(t, "IDLE", row.AvailableActions)
	assert.JSONEq(t, `[]`, string(row.Candidates))
	assert.JSONEq(t, `[3]`, string(row.Danger))

	var cls map[string]any
	require.NoError(t, json.Unmarshal(row.Classification, &cls))
	assert.Equal(t, float64(1), cls["sideLanes"])
}

func TestDescriptionToGorm_Junction(t *testing.T) {
	row, err := DescriptionToGorm(describe.Description{Frame: 1, InJunction: true}, "", time.Now())
	require.NoError(t, err)
	assert.True(t, row.InJunction)
	assert.JSONEq(t, `null`, string(row.Classification))
}

func TestCoreToPromptRecord(t *testing.T) {
	p := core.FramePrompts{
		Frame:             3,
		VectorID:          "v-3",
		Done:              true,
		Description:       "desc",
		FewShots:          "shots",
		ThoughtsAndAction: "thoughts",
		EditedThoughts:    "edited",
		EditTimes:         2,
	}

	row := CoreToPromptRecord(p, time.Now())
	assert.Equal(t, uint(3), row.Frame)
	assert.Equal(t, 2, row.EditTimes)
	assert.Equal(t, p, PromptRecordToCore(row))
}
