package camera

import (
	"math"
	"testing"
)

func TestSensorToDeviceRotation(t *testing.T) {
	tests := []struct {
		name    string
		sensor  int
		facing  Facing
		display Rotation
		want    int
	}{
		{"front sensor 90 display 90", 90, FacingFront, Rotation90, 0},
		{"front sensor 90 display 0", 90, FacingFront, Rotation0, 90},
		{"back sensor 90 display 90", 90, FacingBack, Rotation90, 180},
		{"back sensor 90 display 0", 90, FacingBack, Rotation0, 90},
		{"back sensor 90 display 270", 90, FacingBack, Rotation270, 0},
		{"front sensor 270 display 180", 270, FacingFront, Rotation180, 90},
		{"front sensor 270 display 270", 270, FacingFront, Rotation270, 0},
		{"out of range display", 90, FacingBack, Rotation(7), 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SensorToDeviceRotation(tt.sensor, tt.facing, tt.display)
			if got != tt.want {
				t.Errorf("SensorToDeviceRotation(%d, %s, %d) = %d, want %d",
					tt.sensor, tt.facing, tt.display, got, tt.want)
			}
		})
	}
}

func TestRotationFromDegrees(t *testing.T) {
	for i, deg := range []int{0, 90, 180, 270} {
		r, err := RotationFromDegrees(deg)
		if err != nil {
			t.Fatalf("RotationFromDegrees(%d) error: %v", deg, err)
		}
		if r != Rotation(i) || r.Degrees() != deg {
			t.Errorf("RotationFromDegrees(%d) = %d (%d degrees)", deg, r, r.Degrees())
		}
	}
	if _, err := RotationFromDegrees(45); err == nil {
		t.Error("RotationFromDegrees(45) should fail")
	}
}

func TestDisplayTransform(t *testing.T) {
	const w, h = 1080, 1920
	corners := [4][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}}

	tests := []struct {
		name    string
		display Rotation
		want    [4][2]float64
	}{
		{"rotation 0 is identity", Rotation0, corners},
		{"rotation 180 is identity", Rotation180, corners},
		{"rotation 90", Rotation90, [4][2]float64{{0, h}, {0, 0}, {w, h}, {w, 0}}},
		{"rotation 270", Rotation270, [4][2]float64{{w, 0}, {w, h}, {0, 0}, {0, h}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DisplayTransform(tt.display, w, h)
			for i, p := range corners {
				x, y := m.Apply(p[0], p[1])
				if !near(x, tt.want[i][0]) || !near(y, tt.want[i][1]) {
					t.Errorf("corner %v mapped to (%v, %v), want %v", p, x, y, tt.want[i])
				}
			}
		})
	}
}

func TestDisplayTransformEmptySurface(t *testing.T) {
	if m := DisplayTransform(Rotation90, 0, 0); m != Identity {
		t.Errorf("DisplayTransform on empty surface = %v, want identity", m)
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
