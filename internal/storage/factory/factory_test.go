package factory

import (
	"path/filepath"
	"testing"

	"github.com/OCAP2/drivescene/internal/config"
	"github.com/OCAP2/drivescene/internal/storage"
	"github.com/OCAP2/drivescene/internal/storage/memory"
	sqlitestorage "github.com/OCAP2/drivescene/internal/storage/sqlite"
	"github.com/OCAP2/drivescene/internal/storage/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.StorageConfig
		check func(t *testing.T, b storage.Backend)
	}{
		{"default is memory", config.StorageConfig{}, func(t *testing.T, b storage.Backend) {
			assert.IsType(t, &memory.Backend{}, b)
		}},
		{"memory", config.StorageConfig{Type: TypeMemory}, func(t *testing.T, b storage.Backend) {
			assert.IsType(t, &memory.Backend{}, b)
		}},
		{"sqlite", config.StorageConfig{Type: TypeSQLite, SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "x.db")}}, func(t *testing.T, b storage.Backend) {
			assert.IsType(t, &sqlitestorage.Backend{}, b)
			_, ok := b.(storage.Replayer)
			assert.True(t, ok)
		}},
		{"websocket", config.StorageConfig{Type: TypeWebsocket}, func(t *testing.T, b storage.Backend) {
			assert.IsType(t, &websocket.Backend{}, b)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(tt.cfg, nil)
			require.NoError(t, err)
			tt.check(t, b)
		})
	}
}

func TestNewBackend_Unknown(t *testing.T) {
	_, err := NewBackend(config.StorageConfig{Type: "redis"}, nil)
	assert.EqualError(t, err, "unknown storage type: redis")
}
