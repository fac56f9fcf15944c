package core

import "fmt"

// Action is a discrete meta-action understood by the simulator.
type Action int

const (
	ActionTurnLeft Action = iota
	ActionIdle
	ActionTurnRight
	ActionAccelerate
	ActionDecelerate
)

// AllActions lists every action in id order.
var AllActions = []Action{ActionTurnLeft, ActionIdle, ActionTurnRight, ActionAccelerate, ActionDecelerate}

var actionNames = map[Action]string{
	ActionTurnLeft:   "LANE_LEFT",
	ActionIdle:       "IDLE",
	ActionTurnRight:  "LANE_RIGHT",
	ActionAccelerate: "FASTER",
	ActionDecelerate: "SLOWER",
}

var actionDescriptions = map[Action]string{
	ActionTurnLeft:   "Turn-left - change lane to the left of the current lane",
	ActionIdle:       "IDLE - remain in the current lane with current speed",
	ActionTurnRight:  "Turn-right - change lane to the right of the current lane",
	ActionAccelerate: "Acceleration - accelerate the vehicle",
	ActionDecelerate: "Deceleration - decelerate the vehicle",
}

// Valid reports whether a is one of the five known actions.
func (a Action) Valid() bool {
	return a >= ActionTurnLeft && a <= ActionDecelerate
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Description is the sentence shown to the decision client.
func (a Action) Description() string {
	return actionDescriptions[a]
}
