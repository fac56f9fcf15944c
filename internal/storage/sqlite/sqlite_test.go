package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/drivescene/internal/config"
	"github.com/OCAP2/drivescene/internal/database"
	"github.com/OCAP2/drivescene/internal/model"
	"github.com/OCAP2/drivescene/internal/road"
	"github.com/OCAP2/drivescene/internal/storage"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ storage.Backend    = (*Backend)(nil)
	_ storage.Replayer   = (*Backend)(nil)
	_ storage.Exportable = (*Backend)(nil)
)

func TestEndEpisode_DumpsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "drivescene.db")
	b, err := New(config.SQLiteConfig{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	n := road.NewNetwork()
	n.AddLane("a", "b", &core.StraightLane{End: core.Position2D{X: 50}, Width: 4})
	info := core.SimInfo{EpisodeID: uuid.New(), EnvType: core.EnvHighway}
	require.NoError(t, b.StartEpisode(info, n))
	require.NoError(t, b.RecordPrompts(core.FramePrompts{Frame: 0, Description: "d"}))
	require.NoError(t, b.EndEpisode())
	require.NoError(t, b.Close())
	assert.Equal(t, path, b.LastExportPath())

	disk, err := database.OpenSqlite(path)
	require.NoError(t, err)

	var episode model.Episode
	require.NoError(t, disk.First(&episode).Error)
	assert.Equal(t, info.EpisodeID.String(), episode.EpisodeID)

	var prompts int64
	disk.Model(&model.PromptRecord{}).Count(&prompts)
	assert.Equal(t, int64(1), prompts)
}

func TestDump_NoPath(t *testing.T) {
	b, err := New(config.SQLiteConfig{DumpInterval: time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	assert.Nil(t, b.stopChan, "dump loop needs a path")

	assert.NoError(t, b.Dump())
	assert.Empty(t, b.LastExportPath())
	assert.NoError(t, b.Close())
}

func TestDumpLoop_Periodic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.db")
	b, err := New(config.SQLiteConfig{Path: path, DumpInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer func() { require.NoError(t, b.Close()) }()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 10*time.Millisecond)
}
