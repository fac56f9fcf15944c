package danger

import (
	"math"
	"testing"

	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestSectorBounds(t *testing.T) {
	assert.Less(t, Theta1, Theta2)
	assert.Greater(t, Radius1, Radius2)
	assert.InDelta(t, 17.755, Radius1, 1e-3)
	assert.InDelta(t, 3.2016, Radius2, 1e-4)
}

func TestInZone_Boundary(t *testing.T) {
	assert.True(t, InZone(Theta1, Radius1), "boundary is inclusive")
	assert.False(t, InZone(Theta1, Radius1+1e-9))
	assert.True(t, InZone(Theta2, Radius2))
	assert.False(t, InZone(Theta2, Radius2+1e-9))
	assert.False(t, InZone(math.Nextafter(Theta2, math.Inf(1)), 0.1))
}

func TestInZone_WideSectorUsesShortRadius(t *testing.T) {
	alpha := (Theta1 + Theta2) / 2
	assert.True(t, InZone(alpha, 3))
	assert.False(t, InZone(alpha, 10))
}

func TestInZone_MonotonicInDistance(t *testing.T) {
	for _, alpha := range []float64{0, Theta1 / 2, Theta1, (Theta1 + Theta2) / 2, Theta2, math.Pi / 2} {
		for d := 0.0; d < 30; d += 0.5 {
			if !InZone(alpha, d) {
				continue
			}
			for closer := 0.0; closer < d; closer += 0.1 {
				assert.True(t, InZone(alpha, closer), "alpha=%f d=%f closer=%f", alpha, d, closer)
			}
		}
	}
}

func at(x, y float64) core.Vehicle {
	return core.Vehicle{Position: core.Position2D{X: x, Y: y}}
}

func TestIsDangerous(t *testing.T) {
	ego := core.Vehicle{Heading: 0}

	tests := []struct {
		name string
		v    core.Vehicle
		want bool
	}{
		{"straight ahead close", at(10, 0), true},
		{"straight ahead far", at(18, 0), false},
		{"slightly off axis", at(15, 1), true},
		{"off axis within near field", at(2, 1), true},
		{"off axis beyond near field", at(3, 1.5), false},
		{"abeam", at(0, 1), false},
		{"behind", at(-2, 0), false},
		{"same position", at(0, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDangerous(ego, tt.v))
		})
	}
}

func TestIsDangerous_FollowsHeading(t *testing.T) {
	ego := core.Vehicle{Heading: math.Pi / 2}
	assert.True(t, IsDangerous(ego, at(0, 10)))
	assert.False(t, IsDangerous(ego, at(10, 0)))
}

func TestFlagged(t *testing.T) {
	ego := core.Vehicle{}
	nearby := []core.Vehicle{at(10, 0), at(-10, 0), at(5, 0.5)}
	nearby[0].ID, nearby[1].ID, nearby[2].ID = 3, 4, 5

	assert.Equal(t, []uint16{3, 5}, Flagged(ego, nearby))
	assert.Nil(t, Flagged(ego, nil))
}
