// Package worker turns dispatched simulator events into scene descriptions
// and records them.
package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/OCAP2/drivescene/internal/api"
	"github.com/OCAP2/drivescene/internal/config"
	"github.com/OCAP2/drivescene/internal/describe"
	"github.com/OCAP2/drivescene/internal/episode"
	"github.com/OCAP2/drivescene/internal/influx"
	"github.com/OCAP2/drivescene/internal/junction"
	"github.com/OCAP2/drivescene/internal/parser"
	"github.com/OCAP2/drivescene/internal/road"
	"github.com/OCAP2/drivescene/internal/storage"
)

// ErrNoEpisode is returned when a frame arrives before :SIM:START:.
var ErrNoEpisode = errors.New("no episode running")

// Uploader ships an exported trace file. *api.Client implements it.
type Uploader interface {
	Upload(filePath string, meta api.UploadMetadata) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Logger  *slog.Logger
	Parser  *parser.Parser
	Episode *episode.Context
	Scene   config.SceneConfig
	// Influx is optional; nil disables scene metrics.
	Influx *influx.Manager
	// Output receives one JSON line per described frame. Nil discards.
	Output io.Writer
	// Uploader is optional; when set, exported JSON traces are uploaded
	// at the end of each episode with UploadTag.
	Uploader  Uploader
	UploadTag string
}

// Manager owns the describer of the running episode and the storage backend.
type Manager struct {
	deps    Dependencies
	backend storage.Backend

	mu        sync.RWMutex
	describer *describe.Describer

	// drainPrompts waits for queued prompts; set by RegisterHandlers.
	drainPrompts func()

	outMu sync.Mutex
	enc   *json.Encoder
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.Logger)
	}
	if deps.Episode == nil {
		deps.Episode = episode.NewContext()
	}
	out := deps.Output
	if out == nil {
		out = io.Discard
	}
	return &Manager{
		deps:    deps,
		backend: backend,
		enc:     json.NewEncoder(out),

		drainPrompts: func() {},
	}
}

// describeOptions maps the scene settings onto describer options. Zero
// values keep the defaults.
func describeOptions(cfg config.SceneConfig) []describe.Option {
	var opts []describe.Option
	if cfg.MaxNearby > 0 || cfg.MaxNearbyJunction > 0 {
		onRoad, inJunction := describe.DefaultMaxNearby, describe.DefaultMaxNearbyJunction
		if cfg.MaxNearby > 0 {
			onRoad = cfg.MaxNearby
		}
		if cfg.MaxNearbyJunction > 0 {
			inJunction = cfg.MaxNearbyJunction
		}
		opts = append(opts, describe.WithNearbyLimits(onRoad, inJunction))
	}

	var jopts []junction.Option
	if cfg.JunctionHalfSize > 0 {
		jopts = append(jopts, junction.WithHalfSize(cfg.JunctionHalfSize))
	}
	if cfg.CollisionHorizon > 0 {
		jopts = append(jopts, junction.WithHorizon(cfg.CollisionHorizon))
	}
	if len(jopts) > 0 {
		opts = append(opts, describe.WithJunctionOptions(jopts...))
	}
	return opts
}

func (m *Manager) setDescriber(network *road.Network) error {
	var d *describe.Describer
	if network != nil {
		var err error
		d, err = describe.New(network, describeOptions(m.deps.Scene)...)
		if err != nil {
			return fmt.Errorf("creating describer: %w", err)
		}
	}
	m.mu.Lock()
	m.describer = d
	m.mu.Unlock()
	return nil
}

func (m *Manager) currentDescriber() *describe.Describer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.describer
}

// writeOutput encodes v as one line on the output writer.
func (m *Manager) writeOutput(v any) error {
	m.outMu.Lock()
	defer m.outMu.Unlock()
	return m.enc.Encode(v)
}
