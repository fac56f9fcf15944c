// pkg/core/scene.go
package core

import (
	"fmt"

	"github.com/google/uuid"
)

// EnvironmentKind selects environment-dependent rules such as junction
// detection and lane-position reporting.
type EnvironmentKind string

const (
	EnvHighway      EnvironmentKind = "highway-v0"
	EnvIntersection EnvironmentKind = "intersection-v1"
)

// ParseEnvironmentKind accepts the simulator environment names.
func ParseEnvironmentKind(s string) (EnvironmentKind, error) {
	switch EnvironmentKind(s) {
	case EnvHighway, EnvIntersection:
		return EnvironmentKind(s), nil
	default:
		return "", fmt.Errorf("unknown environment kind %q", s)
	}
}

// SceneSnapshot is one decision frame as seen by the perception gateway.
// Nearby is distance-limited, sorted nearest first and never contains Ego.
type SceneSnapshot struct {
	Frame       int             `json:"frame"`
	Environment EnvironmentKind `json:"environment"`
	Ego         Vehicle         `json:"ego"`
	Nearby      []Vehicle       `json:"nearby"`
}

// SimInfo identifies one simulated episode.
type SimInfo struct {
	EpisodeID uuid.UUID       `json:"episodeId"`
	EnvType   EnvironmentKind `json:"envType"`
	Seed      int64           `json:"seed"`
}

// FramePrompts is what the decision client exchanged with the LLM for a frame.
type FramePrompts struct {
	Frame             int    `json:"frame"`
	VectorID          string `json:"vectorId"`
	Done              bool   `json:"done"`
	Description       string `json:"description"`
	FewShots          string `json:"fewShots"`
	ThoughtsAndAction string `json:"thoughtsAndAction"`
	EditedThoughts    string `json:"editedThoughts"`
	EditTimes         int    `json:"editTimes"`
}
