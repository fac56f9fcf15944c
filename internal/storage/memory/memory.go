// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OCAP2/drivescene/internal/config"
	"github.com/OCAP2/drivescene/internal/road"
	"github.com/OCAP2/drivescene/internal/storage"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/google/uuid"
)

// FrameRecord groups what was recorded for one frame. Either half may be
// missing when prompts arrive for a frame that was never described.
type FrameRecord struct {
	Scene   *storage.Scene
	Prompts *core.FramePrompts
}

// EpisodeRecord groups an episode with all its frames
type EpisodeRecord struct {
	Info      core.SimInfo
	Network   *road.Network
	StartTime time.Time
	EndTime   time.Time
	Frames    map[int]*FrameRecord
}

func (e *EpisodeRecord) frame(n int) *FrameRecord {
	f, ok := e.Frames[n]
	if !ok {
		f = &FrameRecord{}
		e.Frames[n] = f
	}
	return f
}

// describedFrames returns the frames that carry a scene, in order.
func (e *EpisodeRecord) describedFrames() []int {
	frames := make([]int, 0, len(e.Frames))
	for n, f := range e.Frames {
		if f.Scene != nil {
			frames = append(frames, n)
		}
	}
	sort.Ints(frames)
	return frames
}

// Backend keeps episodes in memory and exports each to JSON when it ends
type Backend struct {
	cfg      config.MemoryConfig
	current  *EpisodeRecord
	episodes []*EpisodeRecord

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartEpisode begins recording a new episode
func (b *Backend) StartEpisode(info core.SimInfo, network *road.Network) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = &EpisodeRecord{
		Info:      info,
		Network:   network,
		StartTime: time.Now(),
		Frames:    make(map[int]*FrameRecord),
	}
	b.episodes = append(b.episodes, b.current)
	b.lastExportPath = ""
	return nil
}

// EndEpisode finalizes and exports the episode data
func (b *Backend) EndEpisode() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return storage.ErrNoEpisode
	}
	b.current.EndTime = time.Now()
	err := b.exportJSON(b.current)
	b.current = nil
	return err
}

// RecordScene stores a described frame. A frame recorded twice keeps the
// later scene.
func (b *Backend) RecordScene(s storage.Scene) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return storage.ErrNoEpisode
	}
	b.current.frame(s.Snapshot.Frame).Scene = &s
	return nil
}

// RecordPrompts stores the prompts of a frame
func (b *Backend) RecordPrompts(p core.FramePrompts) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return storage.ErrNoEpisode
	}
	b.current.frame(p.Frame).Prompts = &p
	return nil
}

// LastExportPath returns the path of the last exported file, empty until an
// episode has ended.
func (b *Backend) LastExportPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// findEpisode looks up an episode by id. Callers hold the lock.
func (b *Backend) findEpisode(id uuid.UUID) (*EpisodeRecord, error) {
	for _, e := range b.episodes {
		if e.Info.EpisodeID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("episode %s: %w", id, storage.ErrNotFound)
}

// Episodes lists recorded episodes, oldest first.
func (b *Backend) Episodes() ([]core.SimInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.SimInfo, len(b.episodes))
	for i, e := range b.episodes {
		out[i] = e.Info
	}
	return out, nil
}

// FrameRange returns the first and last described frame of an episode.
func (b *Backend) FrameRange(episode uuid.UUID) (first, last int, err error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, err := b.findEpisode(episode)
	if err != nil {
		return 0, 0, err
	}
	frames := e.describedFrames()
	if len(frames) == 0 {
		return 0, 0, fmt.Errorf("episode %s frames: %w", episode, storage.ErrNotFound)
	}
	return frames[0], frames[len(frames)-1], nil
}

// Prompts returns the prompts recorded for a frame.
func (b *Backend) Prompts(episode uuid.UUID, frame int) (core.FramePrompts, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, err := b.prompts(episode, frame)
	if err != nil {
		return core.FramePrompts{}, err
	}
	return *p, nil
}

func (b *Backend) prompts(episode uuid.UUID, frame int) (*core.FramePrompts, error) {
	e, err := b.findEpisode(episode)
	if err != nil {
		return nil, err
	}
	f, ok := e.Frames[frame]
	if !ok || f.Prompts == nil {
		return nil, fmt.Errorf("prompts of frame %d: %w", frame, storage.ErrNotFound)
	}
	return f.Prompts, nil
}

// EditThoughts replaces the edited thoughts of a frame and bumps its counter.
func (b *Backend) EditThoughts(episode uuid.UUID, frame int, thoughts string) (core.FramePrompts, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.prompts(episode, frame)
	if err != nil {
		return core.FramePrompts{}, err
	}
	p.EditedThoughts = thoughts
	p.EditTimes++
	return *p, nil
}

// VehicleShapes returns the footprints of a frame, ego first.
func (b *Backend) VehicleShapes(episode uuid.UUID, frame int) ([]storage.VehicleShape, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, err := b.findEpisode(episode)
	if err != nil {
		return nil, err
	}
	f, ok := e.Frames[frame]
	if !ok || f.Scene == nil {
		return nil, fmt.Errorf("vehicles of frame %d: %w", frame, storage.ErrNotFound)
	}
	return storage.SceneShapes(f.Scene.Snapshot, f.Scene.Description.Danger), nil
}

// LaneWaypoints samples the centre line of every drawable lane.
func (b *Backend) LaneWaypoints(episode uuid.UUID) (map[core.LaneIndex][]core.Position2D, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, err := b.findEpisode(episode)
	if err != nil {
		return nil, err
	}
	out := make(map[core.LaneIndex][]core.Position2D)
	if e.Network == nil {
		return out, nil
	}
	err = e.Network.Each(func(idx core.LaneIndex, lane core.Lane) error {
		points, err := road.Waypoints(lane)
		switch {
		case errors.Is(err, road.ErrUnsupportedLaneType):
		case err != nil:
			return fmt.Errorf("lane %s: %w", idx, err)
		default:
			out[idx] = points
		}
		return nil
	})
	return out, err
}
