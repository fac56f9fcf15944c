package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OCAP2/drivescene/internal/config"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoolToInt(t *testing.T) {
	assert.Equal(t, 1, boolToInt(true))
	assert.Equal(t, 0, boolToInt(false))
}

func TestBuildExport(t *testing.T) {
	info := core.SimInfo{EpisodeID: uuid.New(), EnvType: core.EnvHighway, Seed: 11}
	e := &EpisodeRecord{
		Info:      info,
		Network:   testNetwork(),
		StartTime: time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC),
		Frames:    map[int]*FrameRecord{},
	}
	s := testScene(2)
	e.frame(2).Scene = &s
	e.frame(2).Prompts = &core.FramePrompts{Frame: 2, Description: "prompt"}
	e.frame(5).Prompts = &core.FramePrompts{Frame: 5}

	export, err := buildExport(e)
	require.NoError(t, err)

	assert.Equal(t, info.EpisodeID.String(), export.EpisodeID)
	assert.Equal(t, "highway-v0", export.EnvType)
	assert.Equal(t, int64(11), export.Seed)
	assert.Equal(t, 5, export.EndFrame)

	require.Len(t, export.Lanes, 2)
	assert.Equal(t, [][2]float64{{0, 0}, {100, 0}}, export.Lanes[0].Waypoints)
	assert.Equal(t, "polynomial", export.Lanes[1].Kind)
	assert.Empty(t, export.Lanes[1].Waypoints)

	require.Len(t, export.Frames, 2)
	f := export.Frames[0]
	assert.Equal(t, 2, f.Frame)
	assert.Equal(t, "desc", f.Description)
	assert.Equal(t, []uint16{7}, f.Danger)
	assert.Equal(t, []int{1}, f.AvailableActions)
	require.Len(t, f.Vehicles, 2)
	assert.Equal(t, []any{uint16(0), []float64{0, 0}, 0.0, 0.0, 1, 0, "->#0"}, f.Vehicles[0])
	assert.Equal(t, 1, f.Vehicles[1][5], "vehicle 7 is dangerous")
	assert.Equal(t, "prompt", f.Prompts.Description)

	empty := export.Frames[1]
	assert.Equal(t, 5, empty.Frame)
	assert.Empty(t, empty.Vehicles)
	assert.NotNil(t, empty.Danger)
}

func TestExportJSON(t *testing.T) {
	tempDir := t.TempDir()
	b, info := startedBackend(t, config.MemoryConfig{OutputDir: tempDir})
	require.NoError(t, b.RecordScene(testScene(1)))

	// EndEpisode triggers export
	require.NoError(t, b.EndEpisode())

	matches, err := filepath.Glob(filepath.Join(tempDir, "highway-v0_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, matches[0], b.LastExportPath())
	assert.True(t, strings.HasSuffix(matches[0], strings.SplitN(info.EpisodeID.String(), "-", 2)[0]+".json"))

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)

	var export TraceExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, info.EpisodeID.String(), export.EpisodeID)
	require.Len(t, export.Frames, 1)
	assert.Equal(t, "desc", export.Frames[0].Description)
}

func TestExportGzipJSON(t *testing.T) {
	tempDir := t.TempDir()
	b, info := startedBackend(t, config.MemoryConfig{OutputDir: tempDir, CompressOutput: true})

	require.NoError(t, b.EndEpisode())

	matches, err := filepath.Glob(filepath.Join(tempDir, "*.json.gz"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	f, err := os.Open(matches[0])
	require.NoError(t, err)
	defer f.Close()

	gzReader, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gzReader.Close()

	var export TraceExport
	require.NoError(t, json.NewDecoder(gzReader).Decode(&export))
	assert.Equal(t, info.EpisodeID.String(), export.EpisodeID)
	assert.Empty(t, export.Frames)
}

func TestExport_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	b, _ := startedBackend(t, config.MemoryConfig{OutputDir: filepath.Join(file, "out")})
	assert.Error(t, b.EndEpisode())
	assert.Empty(t, b.LastExportPath())
}
