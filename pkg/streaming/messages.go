// Package streaming defines the messages exchanged with a remote trace server.
package streaming

import (
	"encoding/json"

	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/google/uuid"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartEpisode = "start_episode"
	TypeEndEpisode   = "end_episode"
	TypeScene        = "scene"
	TypePrompts      = "prompts"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// Lane is one lane of the road network with its sampled centre line.
// Waypoints is empty for lanes without drawable geometry.
type Lane struct {
	Index      core.LaneIndex    `json:"index"`
	Kind       core.LaneKind     `json:"kind"`
	Width      float64           `json:"width"`
	SpeedLimit float64           `json:"speedLimit"`
	Waypoints  []core.Position2D `json:"waypoints"`
}

// StartEpisodePayload carries the episode and its road network.
type StartEpisodePayload struct {
	Episode core.SimInfo `json:"episode"`
	Lanes   []Lane       `json:"lanes"`
}

// ScenePayload carries one described frame.
type ScenePayload struct {
	Episode     uuid.UUID          `json:"episode"`
	Snapshot    core.SceneSnapshot `json:"snapshot"`
	Description string             `json:"description"`
	InJunction  bool               `json:"inJunction"`
	Danger      []uint16           `json:"danger"`
	Actions     []core.Action      `json:"actions"`
}

// PromptsPayload carries the prompts of one frame.
type PromptsPayload struct {
	Episode uuid.UUID         `json:"episode"`
	Prompts core.FramePrompts `json:"prompts"`
}

// EndEpisodePayload closes an episode.
type EndEpisodePayload struct {
	Episode uuid.UUID `json:"episode"`
	Frames  int       `json:"frames"`
}
