package describe

import (
	"fmt"
	"strings"

	"github.com/OCAP2/drivescene/internal/classify"
	"github.com/OCAP2/drivescene/internal/geo"
	"github.com/OCAP2/drivescene/internal/junction"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/dustin/go-humanize"
)

const (
	noVehiclesText = "There are no other vehicles driving near you, so you can drive completely according to your own ideas.\n"
	vehiclesPrefix = "There are other vehicles driving around you, and below is their basic information:\n"
	junctionText   = "You are driving in an intersection, you can't change lane. "
	singleLaneText = "You are driving on a road with only one lane, you can't change lane. "
	attentionText  = "This car is within your field of vision, and you need to pay attention to its status when making decisions.\n"
	noConflictText = "You two are no potential collision.\n"
)

var ordinals = map[int]string{
	1: "second",
	2: "third",
	3: "fourth",
	4: "fifth",
	5: "sixth",
	6: "seventh",
	7: "eighth",
	8: "ninth",
	9: "tenth",
}

var bucketPhrases = map[classify.Bucket]string{
	classify.Current: "is driving on the same lane as you",
	classify.Right:   "is driving on the lane to your right",
	classify.Left:    "is driving on the lane to your left",
	classify.Target:  "is driving on your target lane",
}

// ordinal names a lane counted from the left, zero-based.
func ordinal(rank int) string {
	if word, ok := ordinals[rank]; ok {
		return word
	}
	return humanize.Ordinal(rank + 1)
}

func relativeState(b geo.Bearing) string {
	if b == geo.Behind {
		return "is behind of you"
	}
	return "is ahead of you"
}

// LaneParagraph states the road layout and the ego's kinematics.
func LaneParagraph(lanes, rank int, ego core.Vehicle, lanePosition float64) string {
	var sb strings.Builder
	switch {
	case lanes == 1:
		sb.WriteString(singleLaneText)
	case rank == 0:
		fmt.Fprintf(&sb, "You are driving on a road with %d lanes, and you are currently driving in the leftmost lane. ", lanes)
	case rank == lanes-1:
		fmt.Fprintf(&sb, "You are driving on a road with %d lanes, and you are currently driving in the rightmost lane. ", lanes)
	default:
		fmt.Fprintf(&sb, "You are driving on a road with %d lanes, and you are currently driving in the %s lane from the left. ", lanes, ordinal(rank))
	}
	fmt.Fprintf(&sb, "Your current position is `(%.2f, %.2f)`, speed is %.2f m/s, acceleration is %.2f m/s^2, and lane position is %.2f m.\n",
		ego.Position.X, ego.Position.Y, ego.Speed, ego.Acceleration, lanePosition)
	return sb.String()
}

// JunctionParagraph states that the ego is inside an intersection.
func JunctionParagraph(ego core.Vehicle) string {
	return junctionText + fmt.Sprintf("Your current position is `(%.2f, %.2f)`, speed is %.2f m/s, and acceleration is %.2f m/s^2.\n",
		ego.Position.X, ego.Position.Y, ego.Speed, ego.Acceleration)
}

// RoadBullet describes one classified vehicle. lanePosition is only printed
// when withLanePosition is set.
func RoadBullet(rel classify.Relation, withLanePosition bool, lanePosition float64) string {
	v := rel.Vehicle
	s := fmt.Sprintf("- Vehicle `%d` %s and %s. The position of it is `(%.2f, %.2f)`, speed is %.2f m/s, acceleration is %.2f m/s^2",
		v.ID, bucketPhrases[rel.Bucket], relativeState(rel.Bearing), v.Position.X, v.Position.Y, v.Speed, v.Acceleration)
	if withLanePosition {
		return s + fmt.Sprintf(", and lane position is %.2f m.\n", lanePosition)
	}
	return s + ".\n"
}

func junctionKinematics(v core.Vehicle) string {
	return fmt.Sprintf("The position of it is `(%.2f, %.2f)`, speed is %.2f m/s, and acceleration is %.2f m/s^2. ",
		v.Position.X, v.Position.Y, v.Speed, v.Acceleration)
}

// CandidateBullet describes a junction peer or target-lane vehicle with its
// collision outlook.
func CandidateBullet(c junction.Candidate) string {
	where := "is also in the junction"
	if c.Role == junction.RoleTargetLane {
		where = "is driving on your target lane"
	}
	s := fmt.Sprintf("- Vehicle `%d` %s and %s. ", c.Vehicle.ID, where, relativeState(c.Bearing)) + junctionKinematics(c.Vehicle)
	if c.Collision == nil {
		return s + noConflictText
	}
	return s + fmt.Sprintf("The potential collision point is `(%.2f, %.2f)`.\n", c.Collision.X, c.Collision.Y)
}

// AttentionBullet describes a vehicle inside the danger zone.
func AttentionBullet(v core.Vehicle, bearing geo.Bearing, inJunction bool) string {
	where := "is near you"
	if inJunction {
		where = "is also in the junction"
	}
	return fmt.Sprintf("- Vehicle `%d` %s and %s. ", v.ID, where, relativeState(bearing)) + junctionKinematics(v) + attentionText
}

// VehicleSection wraps bullets with the shared prefix, or returns the
// no-vehicles sentence when there are none.
func VehicleSection(bullets []string) string {
	if len(bullets) == 0 {
		return noVehiclesText
	}
	return vehiclesPrefix + strings.Join(bullets, "")
}

// AvailableActionsDescription lists the legal actions for the decision
// client. Unknown action ids are skipped.
func AvailableActionsDescription(actions []core.Action) string {
	var sb strings.Builder
	sb.WriteString("Your available actions are: \n")
	for _, a := range actions {
		if !a.Valid() {
			continue
		}
		fmt.Fprintf(&sb, "%s Action_id: %d\n", a.Description(), int(a))
	}
	return sb.String()
}
