// Package storage defines the trace persistence collaborator. Backends live
// in subpackages.
package storage

import (
	"errors"
	"time"

	"github.com/OCAP2/drivescene/internal/describe"
	"github.com/OCAP2/drivescene/internal/geo"
	"github.com/OCAP2/drivescene/internal/road"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/google/uuid"
)

var (
	// ErrNoEpisode is returned when a record arrives outside an episode.
	ErrNoEpisode = errors.New("no episode started")
	// ErrNotFound is returned by replay lookups that match nothing.
	ErrNotFound = errors.New("not found")
)

// Scene is everything recorded for one described frame.
type Scene struct {
	Snapshot    core.SceneSnapshot
	Description describe.Description
	Actions     []core.Action
	ActionsText string
	Time        time.Time
}

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Episode management
	StartEpisode(info core.SimInfo, network *road.Network) error
	EndEpisode() error

	// Recording
	RecordScene(s Scene) error
	RecordPrompts(p core.FramePrompts) error
}

// VehicleShape is a vehicle footprint for the rendering collaborator.
type VehicleShape struct {
	ID        uint16            `json:"id"`
	IsEgo     bool              `json:"isEgo"`
	Dangerous bool              `json:"dangerous"`
	Outline   []core.Position2D `json:"outline"`
}

// NewVehicleShape computes the footprint of v.
func NewVehicleShape(v core.Vehicle, isEgo, dangerous bool) VehicleShape {
	return VehicleShape{
		ID:        v.ID,
		IsEgo:     isEgo,
		Dangerous: dangerous,
		Outline:   geo.OutlineVertices(v),
	}
}

// SceneShapes returns the footprints of a frame, ego first.
func SceneShapes(snap core.SceneSnapshot, flagged []uint16) []VehicleShape {
	danger := make(map[uint16]bool, len(flagged))
	for _, id := range flagged {
		danger[id] = true
	}
	shapes := make([]VehicleShape, 0, len(snap.Nearby)+1)
	shapes = append(shapes, NewVehicleShape(snap.Ego, true, false))
	for _, v := range snap.Nearby {
		shapes = append(shapes, NewVehicleShape(v, false, danger[v.ID]))
	}
	return shapes
}

// Replayer is an optional interface for backends that can read traces back.
type Replayer interface {
	Episodes() ([]core.SimInfo, error)
	FrameRange(episode uuid.UUID) (first, last int, err error)
	Prompts(episode uuid.UUID, frame int) (core.FramePrompts, error)
	// EditThoughts replaces the edited thoughts of a frame and increments
	// its edit counter.
	EditThoughts(episode uuid.UUID, frame int, thoughts string) (core.FramePrompts, error)
	VehicleShapes(episode uuid.UUID, frame int) ([]VehicleShape, error)
	LaneWaypoints(episode uuid.UUID) (map[core.LaneIndex][]core.Position2D, error)
}

// Exportable is an optional interface for backends that write trace files.
type Exportable interface {
	LastExportPath() string
}
