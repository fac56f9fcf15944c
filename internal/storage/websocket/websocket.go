// Package websocket streams traces to a remote trace server.
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/drivescene/internal/config"
	"github.com/OCAP2/drivescene/internal/road"
	"github.com/OCAP2/drivescene/internal/storage"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/OCAP2/drivescene/pkg/streaming"
	"github.com/google/uuid"
)

// Backend streams episode data over WebSocket. It implements
// storage.Backend; replay lives on the server side.
type Backend struct {
	conn *connection
	cfg  config.StreamConfig

	mu      sync.Mutex
	episode uuid.UUID
	frames  int
}

// New creates a new WebSocket storage backend.
func New(cfg config.StreamConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("component", "storage", "backend", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// currentEpisode returns the running episode id.
func (b *Backend) currentEpisode() (uuid.UUID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.episode == uuid.Nil {
		return uuid.Nil, storage.ErrNoEpisode
	}
	return b.episode, nil
}

// networkLanes flattens the network for the start_episode payload.
func networkLanes(network *road.Network) ([]streaming.Lane, error) {
	lanes := []streaming.Lane{}
	if network == nil {
		return lanes, nil
	}
	err := network.Each(func(idx core.LaneIndex, lane core.Lane) error {
		points, err := road.Waypoints(lane)
		if err != nil && !errors.Is(err, road.ErrUnsupportedLaneType) {
			return fmt.Errorf("lane %s: %w", idx, err)
		}
		lanes = append(lanes, streaming.Lane{
			Index:      idx,
			Kind:       lane.Kind(),
			Width:      lane.LaneWidth(),
			SpeedLimit: lane.LaneSpeedLimit(),
			Waypoints:  points,
		})
		return nil
	})
	return lanes, err
}

// StartEpisode sends the episode and its network and waits for server ack.
func (b *Backend) StartEpisode(info core.SimInfo, network *road.Network) error {
	lanes, err := networkLanes(network)
	if err != nil {
		return err
	}
	data, err := marshalEnvelope(streaming.TypeStartEpisode, streaming.StartEpisodePayload{Episode: info, Lanes: lanes})
	if err != nil {
		return err
	}

	b.conn.setResumeMessage(data)

	if err := b.conn.sendAndWait(data, streaming.TypeStartEpisode, ackTimeout); err != nil {
		return err
	}

	b.mu.Lock()
	b.episode = info.EpisodeID
	b.frames = 0
	b.mu.Unlock()
	return nil
}

// EndEpisode sends end_episode and waits for server ack.
func (b *Backend) EndEpisode() error {
	b.mu.Lock()
	payload := streaming.EndEpisodePayload{Episode: b.episode, Frames: b.frames}
	running := b.episode != uuid.Nil
	b.episode = uuid.Nil
	b.mu.Unlock()

	// Clear cached state regardless of error.
	b.conn.setResumeMessage(nil)

	if !running {
		return storage.ErrNoEpisode
	}
	data, err := marshalEnvelope(streaming.TypeEndEpisode, payload)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, streaming.TypeEndEpisode, ackTimeout)
}

// RecordScene streams a described frame.
func (b *Backend) RecordScene(s storage.Scene) error {
	episode, err := b.currentEpisode()
	if err != nil {
		return err
	}
	err = b.sendEnvelope(streaming.TypeScene, streaming.ScenePayload{
		Episode:     episode,
		Snapshot:    s.Snapshot,
		Description: s.Description.Text,
		InJunction:  s.Description.InJunction,
		Danger:      s.Description.Danger,
		Actions:     s.Actions,
	})
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.frames++
	b.mu.Unlock()
	return nil
}

// RecordPrompts streams the prompts of a frame.
func (b *Backend) RecordPrompts(p core.FramePrompts) error {
	episode, err := b.currentEpisode()
	if err != nil {
		return err
	}
	return b.sendEnvelope(streaming.TypePrompts, streaming.PromptsPayload{Episode: episode, Prompts: p})
}

// QueueLengths reports messages waiting for the socket.
func (b *Backend) QueueLengths() map[string]int {
	return map[string]int{"send": b.conn.pending()}
}
