package camera

import "fmt"

// State represents the current state of the capture session.
type State string

// Camera states.
const (
	StateClosed              State = "closed"               // Device closed
	StateOpened              State = "opened"               // Device open, no preview yet
	StatePreviewing          State = "previewing"           // Repeating preview request running
	StateAwaitingConvergence State = "awaiting_convergence" // Waiting for 3A before a still capture
)

// Facing selects a camera by the direction its lens points.
type Facing string

// Camera facings.
const (
	FacingBack  Facing = "back"
	FacingFront Facing = "front"
)

// ParseFacing converts a configuration string to a Facing.
func ParseFacing(s string) (Facing, error) {
	switch Facing(s) {
	case FacingBack, FacingFront:
		return Facing(s), nil
	default:
		return "", fmt.Errorf("unknown camera facing %q", s)
	}
}

// FlashMode is the user-facing flash policy.
type FlashMode string

// Flash policies.
const (
	FlashOff    FlashMode = "off"
	FlashOn     FlashMode = "on"
	FlashTorch  FlashMode = "torch"
	FlashAuto   FlashMode = "auto"
	FlashRedEye FlashMode = "red-eye"
)

// ParseFlashMode converts a configuration string to a FlashMode.
func ParseFlashMode(s string) (FlashMode, error) {
	switch FlashMode(s) {
	case FlashOff, FlashOn, FlashTorch, FlashAuto, FlashRedEye:
		return FlashMode(s), nil
	default:
		return "", fmt.Errorf("unknown flash mode %q", s)
	}
}

// Rotation is a quarter-turn display rotation.
type Rotation int

// Display rotations.
const (
	Rotation0 Rotation = iota
	Rotation90
	Rotation180
	Rotation270
)

// rotationDegrees maps each quarter-turn display rotation to degrees.
var rotationDegrees = [...]int{0, 90, 180, 270}

// Degrees returns the rotation in degrees. Out of range values map to 0.
func (r Rotation) Degrees() int {
	if r < Rotation0 || r > Rotation270 {
		return 0
	}
	return rotationDegrees[r]
}

// RotationFromDegrees converts 0, 90, 180 or 270 degrees to a Rotation.
func RotationFromDegrees(deg int) (Rotation, error) {
	for i, d := range rotationDegrees {
		if d == deg {
			return Rotation(i), nil
		}
	}
	return Rotation0, fmt.Errorf("unsupported display rotation %d", deg)
}

// Size is a width and height in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns width*height as a 64-bit product.
func (s Size) Area() int64 {
	return int64(s.Width) * int64(s.Height)
}

// IsZero reports whether the size is unset.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// StaticInfo is the immutable description of the selected camera.
type StaticInfo struct {
	CameraID          string
	Facing            Facing
	SensorOrientation int
	Legacy            bool
	FixedFocus        bool
	AFModes           []AFMode
	AWBModes          []AWBMode
	PreviewSizes      []Size // sorted by area, ascending
	PictureSizes      []Size // sorted by area, ascending
}

// newStaticInfo collects the fields the state machine needs from the
// hardware characteristics.
func newStaticInfo(id string, ch Characteristics) (StaticInfo, error) {
	if len(ch.PreviewSizes) == 0 {
		return StaticInfo{}, fmt.Errorf("camera %s: no preview sizes reported", id)
	}

	info := StaticInfo{
		CameraID:          id,
		Facing:            facingFromLens(ch.LensFacing),
		SensorOrientation: ch.SensorOrientation,
		Legacy:            ch.HardwareLevel == HardwareLevelLegacy,
		FixedFocus:        ch.MinimumFocusDistance == 0,
		AFModes:           append([]AFMode(nil), ch.AFModes...),
		AWBModes:          append([]AWBMode(nil), ch.AWBModes...),
		PreviewSizes:      SortByArea(ch.PreviewSizes),
	}

	// Prefer high resolution output sizes, fall back to the regular list.
	info.PictureSizes = SortByArea(ch.HighResolutionPictureSizes)
	if len(info.PictureSizes) == 0 {
		info.PictureSizes = SortByArea(ch.PictureSizes)
	}
	if len(info.PictureSizes) == 0 {
		return StaticInfo{}, fmt.Errorf("camera %s: no picture sizes reported", id)
	}

	return info, nil
}

// lensFacing maps a user facing to the hardware lens constant.
func lensFacing(f Facing) LensFacing {
	if f == FacingFront {
		return LensFacingFront
	}
	return LensFacingBack
}

// facingFromLens maps a hardware lens constant back to a facing.
// External cameras are treated as facing back.
func facingFromLens(l LensFacing) Facing {
	if l == LensFacingFront {
		return FacingFront
	}
	return FacingBack
}

func hasAFMode(modes []AFMode, mode AFMode) bool {
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}

func hasAWBMode(modes []AWBMode, mode AWBMode) bool {
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}
