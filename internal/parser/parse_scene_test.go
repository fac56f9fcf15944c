package parser

import (
	"testing"

	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScene(t *testing.T) {
	p := newTestParser()

	payload := `{
		"frame": 7,
		"environment": "highway-v0",
		"ego": {"id": 0, "position": [100, 4], "heading": 0, "speed": 25.5, "acceleration": 0.3,
			"steering": 0.01, "length": 5, "width": 2, "lane": ["0", "1", 1],
			"route": [["0", "1", null], ["1", "2", 0]]},
		"nearby": [
			{"id": 3.0, "position": [120, 4], "heading": 0, "speed": 20, "length": 5, "width": 2, "lane": ["0", "1", 1]},
			{"id": 0, "position": [100, 4], "heading": 0, "speed": 25.5, "length": 5, "width": 2, "lane": ["0", "1", 1]}
		],
		"actions": [0, 1, 2, 3, 4]
	}`

	scene, err := p.ParseScene([]byte(payload))
	require.NoError(t, err)

	snap := scene.Snapshot
	assert.Equal(t, 7, snap.Frame)
	assert.Equal(t, core.EnvHighway, snap.Environment)
	assert.Equal(t, core.Position2D{X: 100, Y: 4}, snap.Ego.Position)
	assert.Equal(t, 0.01, snap.Ego.Steering)
	assert.Equal(t, core.LaneIndex{From: "0", To: "1", Index: 1}, snap.Ego.Lane)
	assert.Equal(t, []core.LaneIndex{
		{From: "0", To: "1", Index: -1},
		{From: "1", To: "2", Index: 0},
	}, snap.Ego.Route)

	require.Len(t, snap.Nearby, 1, "ego must be dropped from nearby")
	assert.Equal(t, uint16(3), snap.Nearby[0].ID)
	assert.Zero(t, snap.Nearby[0].Steering)
	assert.Nil(t, snap.Nearby[0].Route)

	assert.Equal(t, core.AllActions, scene.Actions)
}

func TestParseScene_EnvironmentOptional(t *testing.T) {
	p := newTestParser()

	scene, err := p.ParseScene([]byte(`{"frame":0,"ego":{"id":1,"position":[0,0],"length":5,"width":2,"lane":["a","b",0]}}`))
	require.NoError(t, err)
	assert.Empty(t, scene.Snapshot.Environment)
	assert.Empty(t, scene.Snapshot.Nearby)
	assert.Empty(t, scene.Actions)
}

func TestParseScene_Errors(t *testing.T) {
	p := newTestParser()

	ego := `"ego":{"id":1,"position":[0,0],"length":5,"width":2,"lane":["a","b",0]}`
	tests := []struct {
		name    string
		payload string
	}{
		{"missing frame", `{` + ego + `}`},
		{"fractional frame", `{"frame":1.5,` + ego + `}`},
		{"unknown environment", `{"frame":1,"environment":"merge-v0",` + ego + `}`},
		{"missing ego", `{"frame":1}`},
		{"bad action", `{"frame":1,` + ego + `,"actions":[5]}`},
		{"id out of range", `{"frame":1,"ego":{"id":70000,"position":[0,0],"length":5,"width":2,"lane":["a","b",0]}}`},
		{"zero size", `{"frame":1,"ego":{"id":1,"position":[0,0],"length":0,"width":2,"lane":["a","b",0]}}`},
		{"null lane index", `{"frame":1,"ego":{"id":1,"position":[0,0],"length":5,"width":2,"lane":["a","b",null]}}`},
		{"short lane index", `{"frame":1,"ego":{"id":1,"position":[0,0],"length":5,"width":2,"lane":["a","b"]}}`},
		{"negative nearby id", `{"frame":1,` + ego + `,"nearby":[{"id":-2,"position":[0,0],"length":5,"width":2,"lane":["a","b",0]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseScene([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestParsePrompts(t *testing.T) {
	p := newTestParser()

	prompts, err := p.ParsePrompts([]byte(`{"frame":4,"vectorId":"v-12","done":false,
		"description":"You are driving on a road with 3 lanes","fewShots":"",
		"thoughtsAndAction":"Keep lane. Response to user:#### 1","editedThoughts":"","editTimes":0}`))
	require.NoError(t, err)
	assert.Equal(t, core.FramePrompts{
		Frame:             4,
		VectorID:          "v-12",
		Description:       "You are driving on a road with 3 lanes",
		ThoughtsAndAction: "Keep lane. Response to user:#### 1",
	}, prompts)

	_, err = p.ParsePrompts([]byte(`{"frame":-1}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = p.ParsePrompts([]byte(`{"frame":1,"editTimes":-3}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = p.ParsePrompts([]byte(`[]`))
	assert.Error(t, err)
}
