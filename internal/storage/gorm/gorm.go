// Package gormstorage implements storage.Backend and storage.Replayer on GORM
// with internal queues and a background DB writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/drivescene/internal/database"
	"github.com/OCAP2/drivescene/internal/model"
	"github.com/OCAP2/drivescene/internal/model/convert"
	"github.com/OCAP2/drivescene/internal/queue"
	"github.com/OCAP2/drivescene/internal/road"
	"github.com/OCAP2/drivescene/internal/storage"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	VehicleStates *queue.Queue[model.VehicleState]
	Scenes        *queue.Queue[model.SceneDescription]
	Prompts       *queue.Queue[model.PromptRecord]
}

// QueueLengths reports the rows waiting for the next flush.
func (b *Backend) QueueLengths() map[string]int {
	return map[string]int{
		"vehicleStates": b.queues.VehicleStates.Len(),
		"scenes":        b.queues.Scenes.Len(),
		"prompts":       b.queues.Prompts.Len(),
	}
}

func newQueues() *queues {
	return &queues{
		VehicleStates: queue.New[model.VehicleState](),
		Scenes:        queue.New[model.SceneDescription](),
		Prompts:       queue.New[model.PromptRecord](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	log       *slog.Logger
	queues    *queues
	episodeID atomic.Uint64
	frames    atomic.Uint64

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		deps:   deps,
		log:    log.With("component", "storage", "backend", "gorm"),
		queues: newQueues(),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend: no database connection")
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	b.log.Debug("Database setup complete")

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the DB writer goroutine and flushes what is left.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil
	return b.Flush()
}

// StartEpisode inserts the episode and its road network synchronously so
// later rows can reference the episode's primary key.
func (b *Backend) StartEpisode(info core.SimInfo, network *road.Network) error {
	episode := convert.CoreToEpisode(info, time.Now())

	err := b.deps.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&episode).Error; err != nil {
			return fmt.Errorf("failed to insert episode: %w", err)
		}
		if network == nil || network.Len() == 0 {
			return nil
		}
		lanes, err := convert.NetworkToLanes(network, episode.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(&lanes).Error; err != nil {
			return fmt.Errorf("failed to insert network lanes: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.episodeID.Store(uint64(episode.ID))
	b.frames.Store(0)
	b.log.Info("Episode stored", "episode", info.EpisodeID, "id", episode.ID)
	return nil
}

// EndEpisode flushes pending rows and closes the episode record.
func (b *Backend) EndEpisode() error {
	id := uint(b.episodeID.Load())
	if id == 0 {
		return storage.ErrNoEpisode
	}
	if err := b.Flush(); err != nil {
		return err
	}

	err := b.deps.DB.Model(&model.Episode{}).Where("id = ?", id).Updates(map[string]any{
		"end_time": time.Now(),
		"frames":   uint(b.frames.Load()),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to close episode: %w", err)
	}
	b.episodeID.Store(0)
	return nil
}

// RecordScene converts the frame and queues its rows.
func (b *Backend) RecordScene(s storage.Scene) error {
	id := uint(b.episodeID.Load())
	if id == 0 {
		return storage.ErrNoEpisode
	}

	row, err := convert.DescriptionToGorm(s.Description, s.ActionsText, s.Time)
	if err != nil {
		return fmt.Errorf("frame %d: %w", s.Snapshot.Frame, err)
	}
	row.EpisodeID = id

	states := convert.SnapshotToStates(s.Snapshot, s.Description.Danger, s.Time)
	for i := range states {
		states[i].EpisodeID = id
	}

	b.queues.Scenes.Push(row)
	b.queues.VehicleStates.Push(states...)
	b.frames.Add(1)
	return nil
}

// RecordPrompts queues the prompts of a frame. A later record for the same
// frame replaces the earlier one.
func (b *Backend) RecordPrompts(p core.FramePrompts) error {
	id := uint(b.episodeID.Load())
	if id == 0 {
		return storage.ErrNoEpisode
	}
	row := convert.CoreToPromptRecord(p, time.Now())
	row.EpisodeID = id
	b.queues.Prompts.Push(row)
	return nil
}

var upsertByFrame = clause.OnConflict{
	Columns:   []clause.Column{{Name: "episode_id"}, {Name: "frame"}},
	UpdateAll: true,
}

type frameKey struct {
	episode uint
	frame   uint
}

// latestPerFrame keeps the last queued row of each frame so one batch never
// upserts the same key twice.
func latestPerFrame[T any](key func(T) frameKey) func([]T) []T {
	return func(items []T) []T {
		return lo.Reverse(lo.UniqBy(lo.Reverse(items), key))
	}
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items go back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger, prepare func([]T) []T, clauses ...clause.Expression) error {
	items := q.Drain(0)
	if len(items) == 0 {
		return nil
	}
	if prepare != nil {
		items = prepare(items)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clauses...).CreateInBatches(&items, 500).Error
	})
	if err != nil {
		log.Error("Error writing batch", "table", name, "count", len(items), "error", err)
		q.Requeue(items)
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Flush drains every queue into the database.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	db := b.deps.DB
	return errors.Join(
		writeQueue(db, b.queues.Scenes, "scene descriptions", b.log,
			latestPerFrame(func(r model.SceneDescription) frameKey { return frameKey{r.EpisodeID, r.Frame} }), upsertByFrame),
		writeQueue(db, b.queues.VehicleStates, "vehicle states", b.log, nil),
		writeQueue(db, b.queues.Prompts, "prompt records", b.log,
			latestPerFrame(func(r model.PromptRecord) frameKey { return frameKey{r.EpisodeID, r.Frame} }), upsertByFrame),
	)
}

// writeLoop periodically drains the queues into the DB.
func (b *Backend) writeLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			// errors are logged by writeQueue and retried next tick
			_ = b.Flush()
		}
	}
}

// findEpisode resolves an episode uuid to its row.
func (b *Backend) findEpisode(episode uuid.UUID) (model.Episode, error) {
	var row model.Episode
	err := b.deps.DB.Where("episode_id = ?", episode.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, fmt.Errorf("episode %s: %w", episode, storage.ErrNotFound)
	}
	return row, err
}

// Episodes lists stored episodes, oldest first.
func (b *Backend) Episodes() ([]core.SimInfo, error) {
	var rows []model.Episode
	if err := b.deps.DB.Order("start_time, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.SimInfo, 0, len(rows))
	for _, r := range rows {
		info, err := convert.EpisodeToCore(r)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// FrameRange returns the first and last described frame of an episode.
func (b *Backend) FrameRange(episode uuid.UUID) (first, last int, err error) {
	row, err := b.findEpisode(episode)
	if err != nil {
		return 0, 0, err
	}

	var bounds struct {
		FirstFrame *uint
		LastFrame  *uint
	}
	err = b.deps.DB.Model(&model.SceneDescription{}).
		Select("MIN(frame) AS first_frame, MAX(frame) AS last_frame").
		Where("episode_id = ?", row.ID).
		Scan(&bounds).Error
	if err != nil {
		return 0, 0, err
	}
	if bounds.FirstFrame == nil || bounds.LastFrame == nil {
		return 0, 0, fmt.Errorf("episode %s frames: %w", episode, storage.ErrNotFound)
	}
	return int(*bounds.FirstFrame), int(*bounds.LastFrame), nil
}

// Prompts returns the prompts recorded for a frame.
func (b *Backend) Prompts(episode uuid.UUID, frame int) (core.FramePrompts, error) {
	row, err := b.findEpisode(episode)
	if err != nil {
		return core.FramePrompts{}, err
	}
	rec, err := findPrompt(b.deps.DB, row.ID, frame)
	if err != nil {
		return core.FramePrompts{}, err
	}
	return convert.PromptRecordToCore(rec), nil
}

func findPrompt(db *gorm.DB, episodeID uint, frame int) (model.PromptRecord, error) {
	var rec model.PromptRecord
	err := db.Where("episode_id = ? AND frame = ?", episodeID, frame).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, fmt.Errorf("prompts of frame %d: %w", frame, storage.ErrNotFound)
	}
	return rec, err
}

// EditThoughts stores a human edit of a frame's thoughts and bumps its edit
// counter in one transaction.
func (b *Backend) EditThoughts(episode uuid.UUID, frame int, thoughts string) (core.FramePrompts, error) {
	row, err := b.findEpisode(episode)
	if err != nil {
		return core.FramePrompts{}, err
	}

	var rec model.PromptRecord
	err = b.deps.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		if rec, err = findPrompt(tx, row.ID, frame); err != nil {
			return err
		}
		rec.EditedThoughts = thoughts
		rec.EditTimes++
		return tx.Model(&rec).Updates(map[string]any{
			"edited_thoughts": rec.EditedThoughts,
			"edit_times":      rec.EditTimes,
		}).Error
	})
	if err != nil {
		return core.FramePrompts{}, err
	}
	return convert.PromptRecordToCore(rec), nil
}

// VehicleShapes returns the footprints of a frame, ego first.
func (b *Backend) VehicleShapes(episode uuid.UUID, frame int) ([]storage.VehicleShape, error) {
	row, err := b.findEpisode(episode)
	if err != nil {
		return nil, err
	}

	var states []model.VehicleState
	err = b.deps.DB.
		Where("episode_id = ? AND frame = ?", row.ID, frame).
		Order("is_ego DESC, id").
		Find(&states).Error
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("vehicles of frame %d: %w", frame, storage.ErrNotFound)
	}

	shapes := make([]storage.VehicleShape, len(states))
	for i, s := range states {
		shapes[i] = storage.NewVehicleShape(convert.VehicleStateToCore(s), s.IsEgo, s.Dangerous)
	}
	return shapes, nil
}

// LaneWaypoints returns the centre line of every stored lane of an episode.
// Lanes stored without geometry are left out.
func (b *Backend) LaneWaypoints(episode uuid.UUID) (map[core.LaneIndex][]core.Position2D, error) {
	row, err := b.findEpisode(episode)
	if err != nil {
		return nil, err
	}

	var lanes []model.NetworkLane
	if err := b.deps.DB.Where("episode_id = ?", row.ID).Order("id").Find(&lanes).Error; err != nil {
		return nil, err
	}

	out := make(map[core.LaneIndex][]core.Position2D, len(lanes))
	for _, l := range lanes {
		idx, points, err := convert.LaneWaypoints(l)
		if err != nil {
			return nil, err
		}
		if len(points) > 0 {
			out[idx] = points
		}
	}
	return out, nil
}
