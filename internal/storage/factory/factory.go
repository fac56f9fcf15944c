// Package factory builds the configured storage backend.
package factory

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/drivescene/internal/config"
	"github.com/OCAP2/drivescene/internal/database"
	"github.com/OCAP2/drivescene/internal/storage"
	gormstorage "github.com/OCAP2/drivescene/internal/storage/gorm"
	"github.com/OCAP2/drivescene/internal/storage/memory"
	sqlitestorage "github.com/OCAP2/drivescene/internal/storage/sqlite"
	"github.com/OCAP2/drivescene/internal/storage/websocket"
)

// Storage types accepted in storage.type.
const (
	TypeMemory    = "memory"
	TypeSQLite    = "sqlite"
	TypePostgres  = "postgres"
	TypeWebsocket = "websocket"
)

// NewBackend creates a storage backend based on configuration. The backend
// is not initialized.
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case TypeMemory, "":
		return memory.New(cfg.Memory), nil
	case TypeSQLite:
		return sqlitestorage.New(cfg.SQLite, logger)
	case TypePostgres:
		db, err := database.OpenPostgres(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger}), nil
	case TypeWebsocket:
		return websocket.New(cfg.Stream, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
