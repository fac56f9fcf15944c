package worker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OCAP2/drivescene/internal/api"
	"github.com/OCAP2/drivescene/internal/describe"
	"github.com/OCAP2/drivescene/internal/dispatcher"
	"github.com/OCAP2/drivescene/internal/influx"
	"github.com/OCAP2/drivescene/internal/parser"
	"github.com/OCAP2/drivescene/internal/storage"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/google/uuid"
)

// SceneOutput is the line written to the decision client for each frame.
type SceneOutput struct {
	Episode     uuid.UUID     `json:"episode"`
	Frame       int           `json:"frame"`
	Description string        `json:"description"`
	ActionsText string        `json:"actionsText"`
	Actions     []core.Action `json:"actions"`
	InJunction  bool          `json:"inJunction"`
	Danger      []uint16      `json:"danger,omitempty"`
}

// EpisodeSummary is returned by the :SIM:END: handler.
type EpisodeSummary struct {
	Info       core.SimInfo
	Frames     int
	Elapsed    time.Duration
	ExportPath string
	Uploaded   bool
}

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Episode lifecycle - sync (frames need the network in place)
	d.Register(parser.CommandSimStart, m.handleSimStart, dispatcher.Logged())
	d.Register(parser.CommandSimEnd, m.handleSimEnd, dispatcher.Logged())

	// Frames - sync, the decision client waits for the description
	d.Register(parser.CommandScene, m.handleScene, dispatcher.Logged())

	// Prompts only feed storage - buffered, drained before an episode closes
	d.Register(parser.CommandPrompt, m.handlePrompt, dispatcher.Buffered(1000), dispatcher.Blocking(), dispatcher.Logged())
	m.drainPrompts = func() { d.Drain(parser.CommandPrompt) }
}

func (m *Manager) handleSimStart(e dispatcher.Event) (any, error) {
	start, err := m.deps.Parser.ParseSimStart(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to start episode: %w", err)
	}

	// A new episode implicitly closes one left open.
	if prev, ok := m.deps.Episode.Info(); ok {
		m.deps.Logger.Warn("Episode started before the previous one ended",
			"previous", prev.EpisodeID, "next", start.Info.EpisodeID)
		if _, err := m.endEpisode(); err != nil {
			m.deps.Logger.Error("Failed to close previous episode", "error", err)
		}
	}

	if err := m.setDescriber(start.Network); err != nil {
		return nil, err
	}
	m.deps.Episode.Start(start.Info, start.Network)

	if err := m.backend.StartEpisode(start.Info, start.Network); err != nil {
		m.deps.Episode.End()
		_ = m.setDescriber(nil)
		return nil, fmt.Errorf("failed to record episode start: %w", err)
	}

	m.deps.Logger.Info("Episode started",
		"episode", start.Info.EpisodeID,
		"env", start.Info.EnvType,
		"seed", start.Info.Seed,
		"lanes", start.Network.Len())
	return start.Info, nil
}

func (m *Manager) handleScene(e dispatcher.Event) (any, error) {
	info, ok := m.deps.Episode.Info()
	describer := m.currentDescriber()
	if !ok || describer == nil {
		return nil, ErrNoEpisode
	}

	scene, err := m.deps.Parser.ParseScene(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scene: %w", err)
	}
	snap := scene.Snapshot
	if snap.Environment == "" {
		snap.Environment = info.EnvType
	}

	desc, err := describer.Describe(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to describe scene: %w", err)
	}
	actionsText := describe.AvailableActionsDescription(scene.Actions)

	out := SceneOutput{
		Episode:     info.EpisodeID,
		Frame:       snap.Frame,
		Description: desc.Text,
		ActionsText: actionsText,
		Actions:     scene.Actions,
		InJunction:  desc.InJunction,
		Danger:      desc.Danger,
	}
	if err := m.writeOutput(out); err != nil {
		return nil, fmt.Errorf("failed to write description: %w", err)
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	// Recording failures never hold back the decision client.
	err = m.backend.RecordScene(storage.Scene{
		Snapshot:    snap,
		Description: desc,
		Actions:     scene.Actions,
		ActionsText: actionsText,
		Time:        ts,
	})
	if err != nil {
		m.deps.Logger.Error("Failed to record scene", "frame", snap.Frame, "error", err)
	}

	if m.deps.Influx != nil {
		if err := m.deps.Influx.WritePoint(influx.ScenePoint(info, snap, desc, ts)); err != nil {
			m.deps.Logger.Warn("Failed to write scene metrics", "frame", snap.Frame, "error", err)
		}
	}

	m.deps.Episode.CountFrame()
	return out, nil
}

func (m *Manager) handlePrompt(e dispatcher.Event) (any, error) {
	if _, ok := m.deps.Episode.Info(); !ok {
		return nil, ErrNoEpisode
	}

	prompts, err := m.deps.Parser.ParsePrompts(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}
	if err := m.backend.RecordPrompts(prompts); err != nil {
		return nil, fmt.Errorf("failed to record prompts for frame %d: %w", prompts.Frame, err)
	}
	return nil, nil
}

func (m *Manager) handleSimEnd(e dispatcher.Event) (any, error) {
	id, err := m.deps.Parser.ParseSimEnd(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to end episode: %w", err)
	}

	info, ok := m.deps.Episode.Info()
	if !ok {
		return nil, ErrNoEpisode
	}
	if id != uuid.Nil && id != info.EpisodeID {
		return nil, fmt.Errorf("end of episode %s while %s is running", id, info.EpisodeID)
	}

	summary, err := m.endEpisode()
	if err != nil {
		return summary, err
	}
	m.deps.Logger.Info("Episode ended",
		"episode", summary.Info.EpisodeID,
		"frames", summary.Frames,
		"elapsed", summary.Elapsed,
		"export", summary.ExportPath)
	return summary, nil
}

// endEpisode closes the running episode in the context and the backend.
func (m *Manager) endEpisode() (EpisodeSummary, error) {
	m.drainPrompts()

	summary := EpisodeSummary{
		Frames:  m.deps.Episode.Frames(),
		Elapsed: m.deps.Episode.Elapsed(),
	}
	summary.Info, _ = m.deps.Episode.End()
	_ = m.setDescriber(nil)

	err := m.backend.EndEpisode()
	if err != nil && !errors.Is(err, storage.ErrNoEpisode) {
		return summary, fmt.Errorf("failed to record episode end: %w", err)
	}
	if exp, ok := m.backend.(storage.Exportable); ok {
		summary.ExportPath = exp.LastExportPath()
	}
	summary.Uploaded = m.upload(summary)
	return summary, nil
}

// upload sends an exported JSON trace to the trace server. Failures are
// logged; the trace stays on disk.
func (m *Manager) upload(summary EpisodeSummary) bool {
	if m.deps.Uploader == nil || !isJSONTrace(summary.ExportPath) {
		return false
	}
	err := m.deps.Uploader.Upload(summary.ExportPath, api.UploadMetadata{
		Episode:  summary.Info,
		Frames:   summary.Frames,
		Duration: summary.Elapsed,
		Tag:      m.deps.UploadTag,
	})
	if err != nil {
		m.deps.Logger.Error("Failed to upload trace", "path", summary.ExportPath, "error", err)
		return false
	}
	m.deps.Logger.Info("Trace uploaded", "path", summary.ExportPath)
	return true
}

func isJSONTrace(path string) bool {
	return strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".json.gz")
}
