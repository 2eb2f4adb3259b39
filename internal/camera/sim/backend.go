// Package sim is an in-process camera backend. It reports configurable
// characteristics, models 3A convergence per metering result and produces a
// small JPEG for every still request. Tests drive it frame by frame; the
// daemon runs it with a frame ticker.
package sim

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/stillcam/internal/camera"
	"github.com/smazurov/stillcam/internal/logging"
)

// ErrUnknownCamera is returned for ids the backend does not report.
var ErrUnknownCamera = errors.New("unknown camera id")

// Camera is one simulated camera.
type Camera struct {
	ID              string
	Characteristics camera.Characteristics
}

// ImageFactory produces the image data for a still request.
type ImageFactory func(req camera.CaptureRequest, size camera.Size) ([]byte, error)

// Options configures a Backend.
type Options struct {
	// Cameras defaults to DefaultCameras.
	Cameras []Camera
	// FrameInterval drives the repeating request. Zero means frames are
	// only produced by EmitFrame.
	FrameInterval time.Duration
	// ConvergeAfter is the number of metering results that report 3A still
	// searching after a trigger. Negative means 3A never converges.
	ConvergeAfter int
	// ImageFactory defaults to JPEGFactory.
	ImageFactory ImageFactory
	Logger       logging.Logger
}

// Backend is a simulated camera.Backend.
type Backend struct {
	opts   Options
	logger logging.Logger

	mu        sync.Mutex
	openErr   error
	holdOpen  bool
	heldOpens []heldOpen
	devices   []*Device
	readers   []*Reader
}

type heldOpen struct {
	dev *Device
	cb  camera.DeviceCallbacks
}

var _ camera.Backend = (*Backend)(nil)

// New creates a simulated backend.
func New(opts Options) *Backend {
	if len(opts.Cameras) == 0 {
		opts.Cameras = DefaultCameras()
	}
	if opts.ImageFactory == nil {
		opts.ImageFactory = JPEGFactory(640)
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("sim")
	}
	return &Backend{opts: opts, logger: opts.Logger}
}

// CameraIDs implements camera.Backend.
func (b *Backend) CameraIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(b.opts.Cameras))
	for _, c := range b.opts.Cameras {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// Characteristics implements camera.Backend.
func (b *Backend) Characteristics(_ context.Context, id string) (camera.Characteristics, error) {
	for _, c := range b.opts.Cameras {
		if c.ID == id {
			return c.Characteristics, nil
		}
	}
	return camera.Characteristics{}, fmt.Errorf("%w: %s", ErrUnknownCamera, id)
}

// NewImageReader implements camera.Backend.
func (b *Backend) NewImageReader(size camera.Size, maxImages int, onAvailable func(camera.ImageReader)) (camera.ImageReader, error) {
	if maxImages <= 0 {
		return nil, fmt.Errorf("invalid max images %d", maxImages)
	}
	r := &Reader{size: size, maxImages: maxImages, onAvailable: onAvailable}

	b.mu.Lock()
	b.readers = append(b.readers, r)
	b.mu.Unlock()
	return r, nil
}

// Open implements camera.Backend. Unless HoldOpen is set the device reports
// opened before Open returns.
func (b *Backend) Open(_ context.Context, id string, cb camera.DeviceCallbacks) error {
	if _, err := b.Characteristics(context.Background(), id); err != nil {
		return err
	}

	b.mu.Lock()
	if err := b.openErr; err != nil {
		b.mu.Unlock()
		return err
	}
	dev := &Device{backend: b, id: id, cb: cb}
	b.devices = append(b.devices, dev)
	if b.holdOpen {
		b.heldOpens = append(b.heldOpens, heldOpen{dev: dev, cb: cb})
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	b.logger.Debug("Simulated camera opened", "camera_id", id)
	if cb.OnOpened != nil {
		cb.OnOpened(dev)
	}
	return nil
}

// SetOpenError makes subsequent Open calls fail with err. Nil clears it.
func (b *Backend) SetOpenError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErr = err
}

// HoldOpen defers the opened callback of later Open calls until CompleteOpen.
func (b *Backend) HoldOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.holdOpen = true
}

// CompleteOpen reports every held open as opened and stops holding.
func (b *Backend) CompleteOpen() {
	b.mu.Lock()
	held := b.heldOpens
	b.heldOpens = nil
	b.holdOpen = false
	b.mu.Unlock()

	for _, h := range held {
		if h.cb.OnOpened != nil {
			h.cb.OnOpened(h.dev)
		}
	}
}

// Device returns the most recently opened device, or nil.
func (b *Backend) Device() *Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.devices) == 0 {
		return nil
	}
	return b.devices[len(b.devices)-1]
}

// Reader returns the most recently created image reader, or nil.
func (b *Backend) Reader() *Reader {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.readers) == 0 {
		return nil
	}
	return b.readers[len(b.readers)-1]
}

// EmitFrame produces one preview frame on the current session, if any.
func (b *Backend) EmitFrame() bool {
	dev := b.Device()
	if dev == nil {
		return false
	}
	s := dev.Session()
	if s == nil {
		return false
	}
	return s.EmitFrame()
}

// DefaultCameras returns a back camera with auto-focus and a fixed-focus
// front camera.
func DefaultCameras() []Camera {
	return []Camera{
		{ID: "0", Characteristics: BackCharacteristics()},
		{ID: "1", Characteristics: FrontCharacteristics()},
	}
}

// BackCharacteristics describes a full-level back camera.
func BackCharacteristics() camera.Characteristics {
	return camera.Characteristics{
		LensFacing:           camera.LensFacingBack,
		SensorOrientation:    90,
		HardwareLevel:        camera.HardwareLevelFull,
		MinimumFocusDistance: 10,
		AFModes:              []camera.AFMode{camera.AFModeOff, camera.AFModeAuto, camera.AFModeContinuousPicture},
		AWBModes:             []camera.AWBMode{camera.AWBModeOff, camera.AWBModeAuto},
		PreviewSizes: []camera.Size{
			{Width: 640, Height: 480},
			{Width: 1280, Height: 720},
			{Width: 1440, Height: 1080},
			{Width: 1920, Height: 1080},
		},
		PictureSizes: []camera.Size{
			{Width: 1920, Height: 1080},
			{Width: 3264, Height: 2448},
			{Width: 4032, Height: 3024},
		},
	}
}

// FrontCharacteristics describes a fixed-focus front camera.
func FrontCharacteristics() camera.Characteristics {
	return camera.Characteristics{
		LensFacing:        camera.LensFacingFront,
		SensorOrientation: 270,
		HardwareLevel:     camera.HardwareLevelLimited,
		AFModes:           []camera.AFMode{camera.AFModeOff},
		AWBModes:          []camera.AWBMode{camera.AWBModeAuto},
		PreviewSizes: []camera.Size{
			{Width: 640, Height: 480},
			{Width: 1280, Height: 720},
			{Width: 1920, Height: 1080},
		},
		PictureSizes: []camera.Size{
			{Width: 1280, Height: 960},
			{Width: 2592, Height: 1944},
		},
	}
}

// Device is a simulated open camera.
type Device struct {
	backend *Backend
	id      string
	cb      camera.DeviceCallbacks

	mu       sync.Mutex
	closed   bool
	sessions []*Session
}

var _ camera.Device = (*Device)(nil)

// ID implements camera.Device.
func (d *Device) ID() string {
	return d.id
}

// CreateSession implements camera.Device. The session reports configured
// before CreateSession returns.
func (d *Device) CreateSession(cfg camera.SessionConfig, cb camera.SessionCallbacks) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return camera.ErrDeviceClosed
	}
	reader, _ := cfg.Reader.(*Reader)
	s := newSession(d, cfg, reader, cb)
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()

	if cb.OnConfigured != nil {
		cb.OnConfigured(s)
	}
	return nil
}

// Close implements camera.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	sessions := slices.Clone(d.sessions)
	d.mu.Unlock()

	for _, s := range sessions {
		s.shutdown()
	}
	return nil
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Session returns the most recent session, or nil.
func (d *Device) Session() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}

// Disconnect reports the device as disconnected.
func (d *Device) Disconnect() {
	if d.cb.OnDisconnected != nil {
		d.cb.OnDisconnected(d)
	}
}

// Fail reports a fatal device error.
func (d *Device) Fail(code camera.DeviceErrorCode) {
	if d.cb.OnError != nil {
		d.cb.OnError(d, code)
	}
}
