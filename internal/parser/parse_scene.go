package parser

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/drivescene/pkg/core"
)

// Scene is a decoded :SCENE: payload.
type Scene struct {
	Snapshot core.SceneSnapshot
	Actions  []core.Action
}

// ParseScene decodes one decision frame. Environment is left empty when the
// payload omits it; the caller fills it from the running episode. The ego
// is dropped from Nearby if perception included it.
func (p *Parser) ParseScene(payload []byte) (Scene, error) {
	var out Scene
	var raw wireScene
	if err := json.Unmarshal(payload, &raw); err != nil {
		return out, fmt.Errorf("error unmarshalling scene: %w", err)
	}

	if raw.Frame == "" {
		return out, fmt.Errorf("%w: missing frame", ErrInvalidPayload)
	}
	frame, err := parseIntFromFloat(raw.Frame.String())
	if err != nil {
		return out, fmt.Errorf("%w: frame: %w", ErrInvalidPayload, err)
	}
	out.Snapshot.Frame = int(frame)

	if raw.Environment != "" {
		env, err := core.ParseEnvironmentKind(raw.Environment)
		if err != nil {
			return out, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		out.Snapshot.Environment = env
	}

	if raw.Ego == nil {
		return out, fmt.Errorf("%w: frame %d has no ego vehicle", ErrInvalidPayload, frame)
	}
	ego, err := parseVehicle(*raw.Ego)
	if err != nil {
		return out, fmt.Errorf("ego: %w", err)
	}
	out.Snapshot.Ego = ego

	out.Snapshot.Nearby = make([]core.Vehicle, 0, len(raw.Nearby))
	for i, wv := range raw.Nearby {
		v, err := parseVehicle(wv)
		if err != nil {
			return out, fmt.Errorf("nearby %d: %w", i, err)
		}
		if v.ID == ego.ID {
			p.logger.Debug("Dropping ego from nearby vehicles", "frame", frame, "id", v.ID)
			continue
		}
		out.Snapshot.Nearby = append(out.Snapshot.Nearby, v)
	}

	out.Actions = make([]core.Action, 0, len(raw.Actions))
	for _, id := range raw.Actions {
		a := core.Action(id)
		if !a.Valid() {
			return out, fmt.Errorf("%w: unknown action %d", ErrInvalidPayload, id)
		}
		out.Actions = append(out.Actions, a)
	}

	return out, nil
}

func parseVehicle(wv wireVehicle) (core.Vehicle, error) {
	var v core.Vehicle

	id, err := parseUintFromFloat(wv.ID.String())
	if err != nil {
		return v, fmt.Errorf("%w: vehicle id: %w", ErrInvalidPayload, err)
	}
	if id > 0xFFFF {
		return v, fmt.Errorf("%w: vehicle id %d out of range", ErrInvalidPayload, id)
	}
	v.ID = uint16(id)

	if wv.Length <= 0 || wv.Width <= 0 {
		return v, fmt.Errorf("%w: vehicle %d has size %vx%v", ErrInvalidPayload, id, wv.Length, wv.Width)
	}

	v.Position = wv.Position.position()
	v.Heading = wv.Heading
	v.Speed = wv.Speed
	v.Acceleration = wv.Acceleration
	if wv.Steering != nil {
		v.Steering = *wv.Steering
	}
	v.Length = wv.Length
	v.Width = wv.Width
	v.Lane = wv.Lane.index()
	if wv.Lane.Index < 0 {
		return v, fmt.Errorf("%w: vehicle %d lane %s has no index", ErrInvalidPayload, id, v.Lane)
	}
	for _, r := range wv.Route {
		v.Route = append(v.Route, r.index())
	}
	return v, nil
}
