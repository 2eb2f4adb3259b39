package camera

// SensorToDeviceRotation returns the clockwise rotation in degrees that makes
// an image from the sensor upright for the current display rotation.
func SensorToDeviceRotation(sensorOrientation int, facing Facing, display Rotation) int {
	deg := display.Degrees()
	// Front cameras are mirrored, so the display rotation runs the other way.
	if facing == FacingFront {
		deg = -deg
	}
	return ((sensorOrientation+deg+360)%360 + 360) % 360
}

// Matrix is a row-major 3x3 affine transform.
type Matrix [9]float64

// Identity is the transform that leaves points unchanged.
var Identity = Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}

// Apply maps a point through the transform.
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// DisplayTransform returns the render transform for a preview surface of
// width by height under the given display rotation. Quarter turns map the
// surface corners onto the rotated corners. Other rotations use Identity.
func DisplayTransform(display Rotation, width, height int) Matrix {
	w, h := float64(width), float64(height)

	switch display {
	case Rotation90:
		// (0,0)->(0,h) (w,0)->(0,0) (0,h)->(w,h)
		return polyToPoly(
			[4][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}},
			[4][2]float64{{0, h}, {0, 0}, {w, h}, {w, 0}},
		)
	case Rotation270:
		// (0,0)->(w,0) (w,0)->(w,h) (0,h)->(0,0)
		return polyToPoly(
			[4][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}},
			[4][2]float64{{w, 0}, {w, h}, {0, 0}, {0, h}},
		)
	default:
		return Identity
	}
}

// polyToPoly solves the affine transform that maps the first three source
// points onto the first three destination points. The fourth pair is implied
// for rectangles. A degenerate source yields Identity.
func polyToPoly(src, dst [4][2]float64) Matrix {
	// Basis vectors of the source and destination parallelograms.
	sx0, sy0 := src[0][0], src[0][1]
	su := [2]float64{src[1][0] - sx0, src[1][1] - sy0}
	sv := [2]float64{src[2][0] - sx0, src[2][1] - sy0}

	det := su[0]*sv[1] - su[1]*sv[0]
	if det == 0 {
		return Identity
	}

	dx0, dy0 := dst[0][0], dst[0][1]
	du := [2]float64{dst[1][0] - dx0, dst[1][1] - dy0}
	dv := [2]float64{dst[2][0] - dx0, dst[2][1] - dy0}

	// inverse of the source basis
	i00, i01 := sv[1]/det, -sv[0]/det
	i10, i11 := -su[1]/det, su[0]/det

	// M = D * S^-1 on the linear part
	a := du[0]*i00 + dv[0]*i10
	b := du[0]*i01 + dv[0]*i11
	c := du[1]*i00 + dv[1]*i10
	d := du[1]*i01 + dv[1]*i11

	return Matrix{
		a, b, dx0 - a*sx0 - b*sy0,
		c, d, dy0 - c*sx0 - d*sy0,
		0, 0, 1,
	}
}
