package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/drivescene/internal/episode"
	"github.com/OCAP2/drivescene/internal/road"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queues map[string]int

func (q queues) QueueLengths() map[string]int { return q }

func TestStatus_NoEpisode(t *testing.T) {
	s := NewService(Dependencies{Episode: episode.NewContext()})
	_, ok := s.Status()
	assert.False(t, ok)
}

func TestStatus_RunningEpisode(t *testing.T) {
	ctx := episode.NewContext()
	info := core.SimInfo{EpisodeID: uuid.New(), EnvType: core.EnvIntersection}
	ctx.Start(info, road.NewNetwork())
	ctx.CountFrame()
	ctx.CountFrame()

	s := NewService(Dependencies{Episode: ctx, Backend: queues{"scenes": 4}})
	st, ok := s.Status()
	require.True(t, ok)
	assert.Equal(t, info.EpisodeID, st.Episode)
	assert.Equal(t, core.EnvIntersection, st.Env)
	assert.Equal(t, 2, st.Frames)
	assert.Equal(t, map[string]int{"scenes": 4}, st.WriteQueues)
}

func TestStatus_BackendWithoutQueues(t *testing.T) {
	ctx := episode.NewContext()
	ctx.Start(core.SimInfo{EpisodeID: uuid.New()}, road.NewNetwork())

	s := NewService(Dependencies{Episode: ctx, Backend: struct{}{}})
	st, ok := s.Status()
	require.True(t, ok)
	assert.Nil(t, st.WriteQueues)
}

func TestStartStop_WritesStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	ctx := episode.NewContext()
	info := core.SimInfo{EpisodeID: uuid.New(), EnvType: core.EnvHighway}
	ctx.Start(info, road.NewNetwork())
	ctx.CountFrame()

	s := NewService(Dependencies{Episode: ctx, StatusFile: path, Interval: 10 * time.Millisecond})
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start())

	var st Status
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		if err != nil || len(data) == 0 {
			return false
		}
		return json.Unmarshal(data, &st) == nil
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()

	assert.Equal(t, info.EpisodeID, st.Episode)
	assert.Equal(t, 1, st.Frames)
}

func TestStart_BadPath(t *testing.T) {
	s := NewService(Dependencies{
		Episode:    episode.NewContext(),
		StatusFile: filepath.Join(t.TempDir(), "missing", "status.json"),
	})
	assert.Error(t, s.Start())
	assert.False(t, s.IsRunning())
}
