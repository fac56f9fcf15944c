// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the only SQLite-specific concerns are creating
// the in-memory DB and dumping it to disk.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/drivescene/internal/config"
	"github.com/OCAP2/drivescene/internal/database"
	gormstorage "github.com/OCAP2/drivescene/internal/storage/gorm"

	"gorm.io/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      config.SQLiteConfig
	log      *slog.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new SQLite storage backend.
func New(cfg config.SQLiteConfig, logger *slog.Logger) (*Backend, error) {
	db, err := database.OpenSqlite("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	// shared-cache memory databases lock whole tables; one writer at a time
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger}),
		db:      db,
		cfg:     cfg,
		log:     logger.With("component", "storage", "backend", "sqlite"),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.Path != "" && b.cfg.DumpInterval > 0 {
		b.stopChan = make(chan struct{})
		b.done = make(chan struct{})
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, flushes the GORM backend and writes a
// final dump.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		<-b.done
		b.stopChan = nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.Dump()
}

// EndEpisode closes the episode and dumps the database so a finished
// episode is always on disk.
func (b *Backend) EndEpisode() error {
	if err := b.Backend.EndEpisode(); err != nil {
		return err
	}
	return b.Dump()
}

// Dump writes a point-in-time snapshot to the configured path. It is a
// no-op when no path is configured.
func (b *Backend) Dump() error {
	if b.cfg.Path == "" {
		return nil
	}
	if err := b.Flush(); err != nil {
		return err
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.Path); err != nil {
		return err
	}
	b.log.Debug("Dumped to disk", "path", b.cfg.Path, "took", time.Since(start))
	return nil
}

// LastExportPath returns the dump file, empty when dumps are disabled.
func (b *Backend) LastExportPath() string {
	return b.cfg.Path
}

// dumpLoop periodically dumps the in-memory SQLite database to disk.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
