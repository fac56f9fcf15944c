package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Episode{},
	&NetworkLane{},
	&VehicleState{},
	&SceneDescription{},
	&PromptRecord{},
}

////////////////////////
// EPISODE MODELS
////////////////////////

// Episode is one simulation run.
//
// Command: :SIM:START:
type Episode struct {
	gorm.Model
	EpisodeID string       `json:"episodeId" gorm:"size:36;uniqueIndex:idx_episode_uuid"`
	EnvType   string       `json:"envType" gorm:"size:32"`
	Seed      int64        `json:"seed"`
	StartTime time.Time    `json:"startTime" gorm:"type:timestamptz;index:idx_episode_start"`
	EndTime   sql.NullTime `json:"endTime" gorm:"type:timestamptz"`
	Frames    uint         `json:"frames" gorm:"default:0"`

	Lanes []NetworkLane
}

func (*Episode) TableName() string {
	return "episodes"
}

// NetworkLane is one lane of the episode's road network, with sampled
// waypoints for rendering. Path is empty for sine and polynomial lanes.
type NetworkLane struct {
	ID         uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	EpisodeID  uint    `json:"episodeId" gorm:"index:idx_networklane_episode_id"`
	Episode    Episode `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:EpisodeID;"`
	FromNode   string  `json:"from" gorm:"size:32"`
	ToNode     string  `json:"to" gorm:"size:32"`
	LaneIndex  int     `json:"index"`
	Kind       string  `json:"kind" gorm:"size:16"`
	Width      float64 `json:"width"`
	SpeedLimit float64 `json:"speedLimit"`

	Waypoints string          `json:"waypoints"` // "x,y x,y ..." pairs
	Path      geom.LineString `json:"path"`
}

func (*NetworkLane) TableName() string {
	return "network_lanes"
}

// VehicleState is one vehicle as perceived in one frame. The ego is stored
// with IsEgo set.
//
// Command: :SCENE:
type VehicleState struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;"`
	EpisodeID uint      `json:"episodeId" gorm:"index:idx_vehiclestate_episode_frame,priority:1"`
	Episode   Episode   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:EpisodeID;"`
	Frame     uint      `json:"frame" gorm:"index:idx_vehiclestate_episode_frame,priority:2"`
	VehicleID uint16    `json:"vehicleId"`
	IsEgo     bool      `json:"isEgo" gorm:"default:false"`

	Position     geom.Point `json:"position"`
	Heading      float64    `json:"heading"` // radians
	Speed        float64    `json:"speed"`
	Acceleration float64    `json:"acceleration"`
	Steering     float64    `json:"steering"`
	Length       float64    `json:"length"`
	Width        float64    `json:"width"`
	LaneFrom     string     `json:"laneFrom" gorm:"size:32"`
	LaneTo       string     `json:"laneTo" gorm:"size:32"`
	LaneIndex    int        `json:"laneIndex"`
	Dangerous    bool       `json:"dangerous" gorm:"default:false"`
}

func (*VehicleState) TableName() string {
	return "vehicle_states"
}

// SceneDescription is the text and classification produced for a frame.
//
// Command: :SCENE:
type SceneDescription struct {
	ID               uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time             time.Time      `json:"time" gorm:"type:timestamptz;"`
	EpisodeID        uint           `json:"episodeId" gorm:"uniqueIndex:idx_scene_episode_frame,priority:1"`
	Episode          Episode        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:EpisodeID;"`
	Frame            uint           `json:"frame" gorm:"uniqueIndex:idx_scene_episode_frame,priority:2"`
	Environment      string         `json:"environment" gorm:"size:32"`
	Text             string         `json:"text"`
	InJunction       bool           `json:"inJunction" gorm:"default:false"`
	Classification   datatypes.JSON `json:"classification" gorm:"type:jsonb;default:'null'"`
	Candidates       datatypes.JSON `json:"candidates" gorm:"type:jsonb;default:'[]'"`
	Danger           datatypes.JSON `json:"danger" gorm:"type:jsonb;default:'[]'"`
	AvailableActions string         `json:"availableActions"`
}

func (*SceneDescription) TableName() string {
	return "scene_descriptions"
}

// PromptRecord is what the decision client exchanged with the LLM for a
// frame. EditTimes counts human edits of the thoughts.
//
// Command: :PROMPT:
type PromptRecord struct {
	ID                uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time              time.Time `json:"time" gorm:"type:timestamptz;"`
	EpisodeID         uint      `json:"episodeId" gorm:"uniqueIndex:idx_prompt_episode_frame,priority:1"`
	Episode           Episode   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:EpisodeID;"`
	Frame             uint      `json:"frame" gorm:"uniqueIndex:idx_prompt_episode_frame,priority:2"`
	VectorID          string    `json:"vectorId" gorm:"size:64"`
	Done              bool      `json:"done" gorm:"default:false"`
	Description       string    `json:"description"`
	FewShots          string    `json:"fewShots"`
	ThoughtsAndAction string    `json:"thoughtsAndAction"`
	EditedThoughts    string    `json:"editedThoughts"`
	EditTimes         int       `json:"editTimes" gorm:"default:0"`
}

func (*PromptRecord) TableName() string {
	return "prompt_records"
}
