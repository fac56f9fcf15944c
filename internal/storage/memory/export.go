// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/OCAP2/drivescene/internal/road"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/samber/lo"
)

// TraceExport is the root JSON structure of an exported episode
type TraceExport struct {
	EpisodeID string      `json:"episodeId"`
	EnvType   string      `json:"envType"`
	Seed      int64       `json:"seed"`
	StartTime time.Time   `json:"startTime"`
	EndTime   time.Time   `json:"endTime"`
	EndFrame  int         `json:"endFrame"`
	Lanes     []LaneJSON  `json:"lanes"`
	Frames    []FrameJSON `json:"frames"`
}

// LaneJSON is one lane of the road network. Waypoints is empty for lanes
// without drawable geometry.
type LaneJSON struct {
	From       string       `json:"from"`
	To         string       `json:"to"`
	Index      int          `json:"index"`
	Kind       string       `json:"kind"`
	Width      float64      `json:"width"`
	SpeedLimit float64      `json:"speedLimit"`
	Waypoints  [][2]float64 `json:"waypoints"`
}

// FrameJSON is one recorded frame
type FrameJSON struct {
	Frame            int                `json:"frame"`
	Description      string             `json:"description,omitempty"`
	InJunction       bool               `json:"inJunction"`
	Danger           []uint16           `json:"danger"`
	AvailableActions []int              `json:"availableActions"`
	Vehicles         [][]any            `json:"vehicles"`
	Prompts          *core.FramePrompts `json:"prompts,omitempty"`
}

// vehicleRow packs a vehicle as
// [id, [x, y], heading, speed, isEgo, dangerous, "from->to#index"].
func vehicleRow(v core.Vehicle, isEgo, dangerous bool) []any {
	return []any{
		v.ID,
		[]float64{v.Position.X, v.Position.Y},
		v.Heading,
		v.Speed,
		boolToInt(isEgo),
		boolToInt(dangerous),
		v.Lane.String(),
	}
}

// exportJSON writes the episode to a (optionally gzipped) JSON file
func (b *Backend) exportJSON(e *EpisodeRecord) error {
	export, err := buildExport(e)
	if err != nil {
		return err
	}

	// Build filename
	envName := strings.ReplaceAll(string(e.Info.EnvType), " ", "_")
	envName = strings.ReplaceAll(envName, ":", "_")
	if envName == "" {
		envName = "episode"
	}
	timestamp := e.StartTime.Format("20060102_150405")
	shortID := strings.SplitN(e.Info.EpisodeID.String(), "-", 2)[0]

	filename := fmt.Sprintf("%s_%s_%s.json", envName, timestamp, shortID)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func buildExport(e *EpisodeRecord) (TraceExport, error) {
	export := TraceExport{
		EpisodeID: e.Info.EpisodeID.String(),
		EnvType:   string(e.Info.EnvType),
		Seed:      e.Info.Seed,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Lanes:     make([]LaneJSON, 0),
		Frames:    make([]FrameJSON, 0, len(e.Frames)),
	}

	if e.Network != nil {
		err := e.Network.Each(func(idx core.LaneIndex, lane core.Lane) error {
			l := LaneJSON{
				From:       idx.From,
				To:         idx.To,
				Index:      idx.Index,
				Kind:       string(lane.Kind()),
				Width:      lane.LaneWidth(),
				SpeedLimit: lane.LaneSpeedLimit(),
				Waypoints:  [][2]float64{},
			}
			points, err := road.Waypoints(lane)
			if err != nil && !errors.Is(err, road.ErrUnsupportedLaneType) {
				return fmt.Errorf("lane %s: %w", idx, err)
			}
			for _, p := range points {
				l.Waypoints = append(l.Waypoints, [2]float64{p.X, p.Y})
			}
			export.Lanes = append(export.Lanes, l)
			return nil
		})
		if err != nil {
			return export, err
		}
	}

	frames := lo.Keys(e.Frames)
	slices.Sort(frames)

	for _, n := range frames {
		record := e.Frames[n]
		f := FrameJSON{
			Frame:            n,
			Danger:           []uint16{},
			AvailableActions: []int{},
			Vehicles:         [][]any{},
			Prompts:          record.Prompts,
		}

		if s := record.Scene; s != nil {
			f.Description = s.Description.Text
			f.InJunction = s.Description.InJunction
			if len(s.Description.Danger) > 0 {
				f.Danger = s.Description.Danger
			}
			for _, a := range s.Actions {
				f.AvailableActions = append(f.AvailableActions, int(a))
			}

			danger := make(map[uint16]bool, len(f.Danger))
			for _, id := range f.Danger {
				danger[id] = true
			}
			f.Vehicles = append(f.Vehicles, vehicleRow(s.Snapshot.Ego, true, false))
			for _, v := range s.Snapshot.Nearby {
				f.Vehicles = append(f.Vehicles, vehicleRow(v, false, danger[v.ID]))
			}
		}

		if n > export.EndFrame {
			export.EndFrame = n
		}
		export.Frames = append(export.Frames, f)
	}

	return export, nil
}

func writeJSON(path string, data TraceExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data TraceExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
