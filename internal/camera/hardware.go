package camera

import (
	"context"
	"time"
)

// LensFacing is the hardware lens direction.
type LensFacing int

// Lens directions.
const (
	LensFacingBack LensFacing = iota
	LensFacingFront
	LensFacingExternal
)

// HardwareLevel is the capability class of a camera device.
type HardwareLevel int

// Hardware levels.
const (
	HardwareLevelLimited HardwareLevel = iota
	HardwareLevelFull
	HardwareLevelLegacy
	HardwareLevel3
)

// DeviceErrorCode identifies a fatal device error.
type DeviceErrorCode string

// Device error codes.
const (
	DeviceErrorInUse        DeviceErrorCode = "in-use"
	DeviceErrorMaxInUse     DeviceErrorCode = "max-cameras-in-use"
	DeviceErrorDisabled     DeviceErrorCode = "disabled"
	DeviceErrorDevice       DeviceErrorCode = "device"
	DeviceErrorService      DeviceErrorCode = "service"
	DeviceErrorDisconnected DeviceErrorCode = "disconnected"
)

// Characteristics is the static description a backend reports for a camera.
type Characteristics struct {
	LensFacing        LensFacing
	SensorOrientation int
	HardwareLevel     HardwareLevel
	// MinimumFocusDistance is zero for fixed-focus lenses.
	MinimumFocusDistance       float64
	AFModes                    []AFMode
	AWBModes                   []AWBMode
	PreviewSizes               []Size
	PictureSizes               []Size
	HighResolutionPictureSizes []Size
}

// Backend enumerates and opens camera devices.
type Backend interface {
	CameraIDs(ctx context.Context) ([]string, error)
	Characteristics(ctx context.Context, id string) (Characteristics, error)
	// NewImageReader creates a reader for still images. onAvailable is
	// called once for every image the device produces.
	NewImageReader(size Size, maxImages int, onAvailable func(ImageReader)) (ImageReader, error)
	// Open starts opening a device. The outcome is reported through cb.
	Open(ctx context.Context, id string, cb DeviceCallbacks) error
}

// DeviceCallbacks receives device state changes. Nil fields are skipped.
type DeviceCallbacks struct {
	OnOpened       func(Device)
	OnClosed       func(Device)
	OnDisconnected func(Device)
	OnError        func(Device, DeviceErrorCode)
}

// Device is an open camera.
type Device interface {
	ID() string
	// CreateSession starts configuring a capture session. The outcome is
	// reported through cb.
	CreateSession(cfg SessionConfig, cb SessionCallbacks) error
	Close() error
}

// SessionConfig lists the outputs of a capture session.
type SessionConfig struct {
	PreviewSize Size
	Surface     Size
	Reader      ImageReader
}

// SessionCallbacks receives session state changes. Nil fields are skipped.
type SessionCallbacks struct {
	OnConfigured      func(Session)
	OnConfigureFailed func(Session, error)
	OnClosed          func(Session)
}

// Session submits capture requests to a configured device.
type Session interface {
	SetRepeatingRequest(req CaptureRequest, cb CaptureCallbacks) error
	Capture(req CaptureRequest, cb CaptureCallbacks) error
	AbortCaptures() error
	Close() error
}

// CaptureCallbacks receives the progress of one request. Nil fields are skipped.
type CaptureCallbacks struct {
	OnStarted    func(req CaptureRequest, timestamp time.Duration, frame int64)
	OnProgressed func(req CaptureRequest, partial CaptureResult)
	OnCompleted  func(req CaptureRequest, result CaptureResult)
	OnFailed     func(req CaptureRequest, failure CaptureFailure)
}

// ImageReader hands out still images produced by the device.
type ImageReader interface {
	// AcquireNextImage returns the oldest unread image, or nil when none is
	// queued. It fails with ErrMaxImages when every buffer is checked out
	// and with ErrReaderClosed after Close.
	AcquireNextImage() (Image, error)
	Close() error
}

// Image is a buffer checked out from an ImageReader. Close returns it.
type Image interface {
	Planes() [][]byte
	Close() error
}
