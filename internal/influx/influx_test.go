package influx

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OCAP2/drivescene/internal/classify"
	"github.com/OCAP2/drivescene/internal/config"
	"github.com/OCAP2/drivescene/internal/describe"
	"github.com/OCAP2/drivescene/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPoint() *influxdb2_write.Point {
	info := core.SimInfo{EpisodeID: uuid.MustParse("6f1c2d9e-0000-4000-8000-000000000001"), EnvType: core.EnvHighway}
	snap := core.SceneSnapshot{
		Frame:       12,
		Environment: core.EnvHighway,
		Ego:         core.Vehicle{Speed: 25.5, Acceleration: -1},
		Nearby:      []core.Vehicle{{ID: 1}, {ID: 2}, {ID: 3}},
	}
	d := describe.Description{
		Considered:     3,
		Danger:         []uint16{2},
		Classification: &classify.Result{Selected: []classify.Relation{{}, {}}},
	}
	return ScenePoint(info, snap, d, time.Unix(100, 0))
}

func TestScenePoint(t *testing.T) {
	line := influxdb2_write.PointToLineProtocol(testPoint(), time.Second)

	assert.True(t, strings.HasPrefix(line, "scene,"), line)
	assert.Contains(t, line, "episode=6f1c2d9e-0000-4000-8000-000000000001")
	assert.Contains(t, line, "env=highway-v0")
	assert.Contains(t, line, "in_junction=false")
	assert.Contains(t, line, "frame=12i")
	assert.Contains(t, line, "nearby=3i")
	assert.Contains(t, line, "danger=1i")
	assert.Contains(t, line, "classified=2i")
	assert.Contains(t, line, "ego_speed=25.5")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(line), " 100"), line)
}

func TestScenePoint_JunctionHasNoClassification(t *testing.T) {
	p := ScenePoint(core.SimInfo{}, core.SceneSnapshot{}, describe.Description{InJunction: true}, time.Now())
	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	assert.Contains(t, line, "in_junction=true")
	assert.NotContains(t, line, "classified")
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
	assert.NoError(t, m.Close())
}

func TestWritePoint_NoWriter(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.Error(t, m.WritePoint(testPoint()))
}

func TestWritePoint_Backup(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	m.BackupWriter = gzip.NewWriter(&buf)

	require.NoError(t, m.WritePoint(testPoint()))
	require.NoError(t, m.Close())

	r, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), "frame=12i")
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
}

func TestConnect_UnreachableFallsBackToFile(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	cfg := config.InfluxConfig{Enabled: true, Protocol: "http", Host: "127.0.0.1", Port: "1", Org: "o", Bucket: "b"}
	m := NewManager(cfg, zerolog.Nop(), backup)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)

	require.NoError(t, m.WritePoint(testPoint()))
	require.NoError(t, m.Close())

	info, err := os.Stat(backup)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
