package parser

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/drivescene/internal/road"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/google/uuid"
)

// SimStart is a decoded :SIM:START: payload.
type SimStart struct {
	Info    core.SimInfo
	Network *road.Network
}

// ParseSimStart decodes episode info and the road network. A missing
// episode id is generated.
func (p *Parser) ParseSimStart(payload []byte) (SimStart, error) {
	var out SimStart
	var raw wireSimStart
	if err := json.Unmarshal(payload, &raw); err != nil {
		return out, fmt.Errorf("error unmarshalling sim start: %w", err)
	}

	env, err := core.ParseEnvironmentKind(raw.EnvType)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	out.Info.EnvType = env

	if raw.EpisodeID == "" {
		out.Info.EpisodeID = uuid.New()
	} else if out.Info.EpisodeID, err = uuid.Parse(raw.EpisodeID); err != nil {
		return out, fmt.Errorf("%w: episode id: %w", ErrInvalidPayload, err)
	}

	if raw.Seed != "" {
		if out.Info.Seed, err = parseIntFromFloat(raw.Seed.String()); err != nil {
			return out, fmt.Errorf("%w: seed: %w", ErrInvalidPayload, err)
		}
	}

	if len(raw.Lanes) == 0 {
		return out, fmt.Errorf("%w: road network has no lanes", ErrInvalidPayload)
	}
	network := road.NewNetwork()
	for i, wl := range raw.Lanes {
		lane, err := parseLane(wl)
		if err != nil {
			return out, fmt.Errorf("lane %d (%s->%s): %w", i, wl.From, wl.To, err)
		}
		network.AddLane(wl.From, wl.To, lane)
	}
	out.Network = network

	p.logger.Debug("Parsed sim start",
		"episode", out.Info.EpisodeID,
		"env", out.Info.EnvType,
		"lanes", network.Len())

	return out, nil
}

func parseLane(wl wireLane) (core.Lane, error) {
	if wl.From == "" || wl.To == "" {
		return nil, fmt.Errorf("%w: lane needs both nodes", ErrInvalidPayload)
	}
	width := wl.Width
	if width == 0 {
		width = defaultLaneWidth
	}
	if width < 0 {
		return nil, fmt.Errorf("%w: negative width %v", ErrInvalidPayload, width)
	}

	switch wl.Kind {
	case core.LaneKindStraight:
		if wl.Start == nil || wl.End == nil {
			return nil, fmt.Errorf("%w: straight lane needs start and end", ErrInvalidPayload)
		}
		if *wl.Start == *wl.End {
			return nil, fmt.Errorf("%w: straight lane has zero length", ErrInvalidPayload)
		}
		return &core.StraightLane{
			Start:      wl.Start.position(),
			End:        wl.End.position(),
			Width:      width,
			SpeedLimit: wl.SpeedLimit,
		}, nil
	case core.LaneKindCircular:
		if wl.Center == nil {
			return nil, fmt.Errorf("%w: circular lane needs a center", ErrInvalidPayload)
		}
		if wl.Radius <= 0 {
			return nil, fmt.Errorf("%w: circular lane radius %v", ErrInvalidPayload, wl.Radius)
		}
		return &core.CircularLane{
			Center:     wl.Center.position(),
			Radius:     wl.Radius,
			StartPhase: wl.StartPhase,
			EndPhase:   wl.EndPhase,
			Clockwise:  wl.Clockwise,
			Width:      width,
			SpeedLimit: wl.SpeedLimit,
		}, nil
	case core.LaneKindSine, core.LaneKindPolynomial:
		return &core.UnsupportedLane{LaneKind: wl.Kind, Width: width, SpeedLimit: wl.SpeedLimit}, nil
	default:
		return nil, fmt.Errorf("%w: unknown lane kind %q", ErrInvalidPayload, wl.Kind)
	}
}

// ParseSimEnd decodes the episode id closing an episode. An empty payload
// closes whatever episode is running and yields uuid.Nil.
func (p *Parser) ParseSimEnd(payload []byte) (uuid.UUID, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return uuid.Nil, nil
	}
	var raw wireSimEnd
	if err := json.Unmarshal(payload, &raw); err != nil {
		return uuid.Nil, fmt.Errorf("error unmarshalling sim end: %w", err)
	}
	if raw.EpisodeID == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw.EpisodeID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: episode id: %w", ErrInvalidPayload, err)
	}
	return id, nil
}
