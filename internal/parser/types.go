package parser

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/drivescene/pkg/core"
)

// defaultLaneWidth applies when the simulator omits a lane width.
const defaultLaneWidth = 4.0

// point is an [x, y] pair.
type point [2]float64

func (p point) position() core.Position2D {
	return core.Position2D{X: p[0], Y: p[1]}
}

// laneRef is a lane index tuple [from, to, index]. A null index decodes
// to -1.
type laneRef struct {
	From  string
	To    string
	Index int
}

func (r *laneRef) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("%w: lane index must have 3 elements, got %d", ErrInvalidPayload, len(raw))
	}
	if err := json.Unmarshal(raw[0], &r.From); err != nil {
		return fmt.Errorf("lane origin: %w", err)
	}
	if err := json.Unmarshal(raw[1], &r.To); err != nil {
		return fmt.Errorf("lane destination: %w", err)
	}
	if string(raw[2]) == "null" {
		r.Index = -1
		return nil
	}
	idx, err := parseIntFromFloat(string(raw[2]))
	if err != nil {
		return fmt.Errorf("lane index: %w", err)
	}
	r.Index = int(idx)
	return nil
}

func (r laneRef) index() core.LaneIndex {
	return core.LaneIndex{From: r.From, To: r.To, Index: r.Index}
}

type wireLane struct {
	From       string        `json:"from"`
	To         string        `json:"to"`
	Kind       core.LaneKind `json:"kind"`
	Start      *point        `json:"start"`
	End        *point        `json:"end"`
	Center     *point        `json:"center"`
	Radius     float64       `json:"radius"`
	StartPhase float64       `json:"startPhase"`
	EndPhase   float64       `json:"endPhase"`
	Clockwise  bool          `json:"clockwise"`
	Width      float64       `json:"width"`
	SpeedLimit float64       `json:"speedLimit"`
}

type wireSimStart struct {
	EpisodeID string      `json:"episodeId"`
	EnvType   string      `json:"envType"`
	Seed      json.Number `json:"seed"`
	Lanes     []wireLane  `json:"lanes"`
}

type wireVehicle struct {
	ID           json.Number `json:"id"`
	Position     point       `json:"position"`
	Heading      float64     `json:"heading"`
	Speed        float64     `json:"speed"`
	Acceleration float64     `json:"acceleration"`
	Steering     *float64    `json:"steering"`
	Length       float64     `json:"length"`
	Width        float64     `json:"width"`
	Lane         laneRef     `json:"lane"`
	Route        []laneRef   `json:"route"`
}

type wireScene struct {
	Frame       json.Number   `json:"frame"`
	Environment string        `json:"environment"`
	Ego         *wireVehicle  `json:"ego"`
	Nearby      []wireVehicle `json:"nearby"`
	Actions     []int         `json:"actions"`
}

type wireSimEnd struct {
	EpisodeID string `json:"episodeId"`
}
