package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/smazurov/stillcam/internal/events"
	"github.com/smazurov/stillcam/internal/logging"
)

// ConvergenceTimeout is how long a pre-capture sequence may wait for 3A
// before stills are taken anyway.
const ConvergenceTimeout = 1000 * time.Millisecond

// maxStillImages is the number of still buffers the image reader holds.
const maxStillImages = 5

// Close reasons reported in CameraClosedEvent.
const (
	reasonStopped      = "stopped"
	reasonClosed       = "closed"
	reasonDisconnected = "disconnected"
	reasonError        = "error"
)

// Listener receives controller notifications in addition to the event bus.
// Methods are called with the controller lock held and must not call back
// into the controller.
type Listener interface {
	CameraOpened(id string, facing Facing)
	CameraClosed(id string, reason string)
	PreviewSizesAvailable(preview, surface Size)
	TransformUpdated(m Matrix)
	CaptureStarted(id RequestID)
}

// Options configures a Controller.
type Options struct {
	Backend  Backend
	EventBus *events.Bus
	Listener Listener
	Clock    clock.Clock
	Logger   logging.Logger

	Facing   Facing
	Flash    FlashMode
	Rotation Rotation
	// TargetSize is the preview aspect ratio and minimum preview size.
	TargetSize  Size
	OpenTimeout time.Duration
}

// Status is a snapshot of the controller.
type Status struct {
	State       State
	// Opening is set while a device open is in flight; State is still Closed.
	Opening     bool
	CameraID    string
	Facing      Facing
	Flash       FlashMode
	Rotation    Rotation
	Surface     Size
	PreviewSize Size
	PictureSize Size
	Legacy      bool
	FixedFocus  bool
	Pending     int
}

// Controller drives one camera through open, preview, 3A convergence and
// still capture, and matches each TakePicture call with its image.
type Controller struct {
	backend     Backend
	bus         *events.Bus
	listener    Listener
	clock       clock.Clock
	logger      logging.Logger
	targetSize  Size
	openTimeout time.Duration

	token *openCloseToken

	// lifecycleMu serializes Start and Stop.
	lifecycleMu sync.Mutex

	mu          sync.Mutex
	state       State
	stateCh     chan struct{}
	facing      Facing
	flash       FlashMode
	rotation    Rotation
	surface     Size
	info        StaticInfo
	previewSize Size
	pictureSize Size
	worker      *worker
	device      Device
	session     Session
	reader      ImageReader
	opening     bool
	configuring bool
	preview     CaptureRequest
	pending     *correlator
	awaiting    []RequestID // counted since the pre-capture sequence began
	nextID      RequestID
	timerStart  time.Time
}

// NewController creates a closed controller.
func NewController(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("camera")
	}
	if opts.Facing == "" {
		opts.Facing = FacingBack
	}
	if opts.Flash == "" {
		opts.Flash = FlashAuto
	}
	if opts.TargetSize.IsZero() {
		opts.TargetSize = DefaultTargetSize
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = DefaultOpenTimeout
	}

	c := &Controller{
		backend:     opts.Backend,
		bus:         opts.EventBus,
		listener:    opts.Listener,
		clock:       opts.Clock,
		logger:      opts.Logger,
		targetSize:  opts.TargetSize,
		openTimeout: opts.OpenTimeout,
		token:       newOpenCloseToken(),
		state:       StateClosed,
		stateCh:     make(chan struct{}),
		facing:      opts.Facing,
		flash:       opts.Flash,
		rotation:    opts.Rotation,
	}
	c.pending = newCorrelator(c.logger, c.finishCapture)
	recordState(StateClosed)
	return c
}

// Start picks a camera, prepares the still reader and begins opening the
// device. The device reports back asynchronously; use WaitForState to block
// until the preview is running.
func (c *Controller) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.mu.Lock()
	running := c.worker != nil
	busy := running && (c.state != StateClosed || c.opening)
	c.mu.Unlock()

	if busy {
		return ErrAlreadyStarted
	}
	if running {
		// The device was lost; release what is left before reopening.
		if err := c.stopLocked(); err != nil {
			c.logger.Warn("Errors while releasing lost camera", "error", err)
		}
	}

	w := newWorker()
	w.Start()

	c.mu.Lock()
	c.worker = w
	if err := c.prepareLocked(ctx, w); err != nil {
		c.worker = nil
		c.mu.Unlock()
		w.Stop()
		return err
	}
	id := c.info.CameraID
	c.mu.Unlock()

	if err := c.token.acquireForOpen(ctx, c.openTimeout); err != nil {
		c.logger.Error("Failed to lock camera for opening", "camera_id", id, "error", err)
		c.abortStart(w)
		return err
	}

	c.mu.Lock()
	c.opening = true
	c.mu.Unlock()

	if err := c.backend.Open(ctx, id, c.deviceCallbacks(w)); err != nil {
		c.mu.Lock()
		c.opening = false
		c.mu.Unlock()
		c.token.release()
		c.abortStart(w)
		return fmt.Errorf("open camera %s: %w", id, err)
	}

	c.logger.Info("Opening camera", "camera_id", id, "facing", c.Facing())
	return nil
}

// prepareLocked chooses the camera and sizes and creates the image reader.
func (c *Controller) prepareLocked(ctx context.Context, w *worker) error {
	id, ch, facing, err := c.chooseCamera(ctx, c.facing)
	if err != nil {
		return err
	}
	if facing != c.facing {
		c.logger.Info("No camera with requested facing, using first camera",
			"requested", c.facing, "camera_id", id, "facing", facing)
	}
	c.facing = facing

	info, err := newStaticInfo(id, ch)
	if err != nil {
		return err
	}
	c.info = info
	c.pictureSize, _ = LargestSize(info.PictureSizes)
	c.previewSize, _ = ChooseOptimalSize(info.PreviewSizes, c.targetSize)

	c.logger.Debug("Camera selected",
		"camera_id", id,
		"preview_size", c.previewSize,
		"picture_size", c.pictureSize,
		"legacy", info.Legacy,
		"fixed_focus", info.FixedFocus)

	if !c.surface.IsZero() {
		c.configureTransformLocked()
		c.notifyPreviewSizesLocked()
	}

	reader, err := c.backend.NewImageReader(c.pictureSize, maxStillImages, func(r ImageReader) {
		if !w.Post(func() { c.onImageAvailable(r) }) {
			drainImage(r)
		}
	})
	if err != nil {
		return fmt.Errorf("create image reader: %w", err)
	}
	c.reader = reader
	return nil
}

// chooseCamera returns the first camera facing the requested way, or the
// first camera along with its own facing.
func (c *Controller) chooseCamera(ctx context.Context, facing Facing) (string, Characteristics, Facing, error) {
	ids, err := c.backend.CameraIDs(ctx)
	if err != nil {
		return "", Characteristics{}, "", fmt.Errorf("list cameras: %w", err)
	}
	if len(ids) == 0 {
		return "", Characteristics{}, "", ErrNoCamera
	}

	want := lensFacing(facing)
	for _, id := range ids {
		ch, err := c.backend.Characteristics(ctx, id)
		if err != nil {
			return "", Characteristics{}, "", fmt.Errorf("camera %s characteristics: %w", id, err)
		}
		if ch.LensFacing == want {
			return id, ch, facing, nil
		}
	}

	ch, err := c.backend.Characteristics(ctx, ids[0])
	if err != nil {
		return "", Characteristics{}, "", fmt.Errorf("camera %s characteristics: %w", ids[0], err)
	}
	return ids[0], ch, facingFromLens(ch.LensFacing), nil
}

// abortStart undoes a Start that failed after the worker was created.
func (c *Controller) abortStart(w *worker) {
	c.mu.Lock()
	if c.worker == w {
		if c.reader != nil {
			if err := c.reader.Close(); err != nil {
				c.logger.Debug("Failed to close image reader", "error", err)
			}
			c.reader = nil
		}
		c.worker = nil
	}
	c.mu.Unlock()
	w.Stop()
}

// Stop closes the camera, fails every pending capture and stops the worker.
// Calling Stop on a closed controller is a no-op.
func (c *Controller) Stop() error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	// Waits for an open in flight to report back.
	c.token.acquireForClose()
	defer c.token.release()

	c.mu.Lock()
	err := c.teardownLocked(reasonStopped, nil)
	w := c.worker
	c.worker = nil
	c.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	if err != nil {
		c.logger.Warn("Errors while closing camera", "error", err)
	}
	return err
}

// teardownLocked aborts outstanding captures, fails every pending entry and
// releases the device handles.
func (c *Controller) teardownLocked(reason string, cause error) error {
	var errs error

	if c.session != nil {
		if err := c.session.AbortCaptures(); err != nil && !errors.Is(err, ErrDeviceClosed) {
			c.logger.Debug("Failed to abort captures", "error", err)
		}
	}

	failErr := ErrSessionTornDown
	if cause != nil {
		failErr = fmt.Errorf("%w: %w", ErrSessionTornDown, cause)
	}
	failed := c.pending.failAll(failErr)
	c.awaiting = nil
	pendingCaptures.Set(0)

	if c.session != nil {
		errs = multierr.Append(errs, ignoreClosed(c.session.Close()))
		c.session = nil
	}
	if c.device != nil {
		errs = multierr.Append(errs, ignoreClosed(c.device.Close()))
		c.device = nil
	}
	if c.reader != nil {
		errs = multierr.Append(errs, ignoreClosed(c.reader.Close()))
		c.reader = nil
	}
	c.configuring = false
	c.preview = CaptureRequest{}

	if c.state != StateClosed {
		c.setStateLocked(StateClosed)
		c.logger.Info("Camera closed", "camera_id", c.info.CameraID, "reason", reason, "failed_captures", failed)
		c.publish(events.CameraClosedEvent{
			CameraID:  c.info.CameraID,
			Reason:    reason,
			Failed:    failed,
			Timestamp: c.timestamp(),
		})
		if c.listener != nil {
			c.listener.CameraClosed(c.info.CameraID, reason)
		}
	}
	return errs
}

func ignoreClosed(err error) error {
	if errors.Is(err, ErrDeviceClosed) || errors.Is(err, ErrReaderClosed) {
		return nil
	}
	return err
}

func (c *Controller) deviceCallbacks(w *worker) DeviceCallbacks {
	return DeviceCallbacks{
		OnOpened: func(d Device) {
			if !w.Post(func() { c.onOpened(d) }) {
				_ = d.Close()
			}
		},
		OnClosed: func(d Device) {
			w.Post(func() { c.onDeviceLost(d, reasonClosed, nil) })
		},
		OnDisconnected: func(d Device) {
			w.Post(func() { c.onDeviceLost(d, reasonDisconnected, &DeviceError{Code: DeviceErrorDisconnected}) })
		},
		OnError: func(d Device, code DeviceErrorCode) {
			w.Post(func() { c.onDeviceLost(d, reasonError, &DeviceError{Code: code}) })
		},
	}
}

func (c *Controller) onOpened(d Device) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opening {
		c.logger.Debug("Ignoring open for stale device", "camera_id", d.ID())
		_ = d.Close()
		return
	}
	c.opening = false
	c.token.release()

	c.device = d
	c.setStateLocked(StateOpened)
	c.logger.Info("Camera opened", "camera_id", d.ID(), "facing", c.facing)
	c.publish(events.CameraOpenedEvent{
		CameraID:  d.ID(),
		Facing:    string(c.facing),
		Timestamp: c.timestamp(),
	})
	if c.listener != nil {
		c.listener.CameraOpened(d.ID(), c.facing)
	}

	c.createSessionLocked()
}

func (c *Controller) onDeviceLost(d Device, reason string, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasOpening := c.opening
	if wasOpening {
		c.opening = false
		c.token.release()
	}
	if !wasOpening && d != c.device {
		return
	}

	if cause != nil {
		c.logger.Error("Camera device lost", "camera_id", d.ID(), "reason", reason, "error", cause)
	}
	if d != c.device {
		_ = d.Close()
	}
	if err := c.teardownLocked(reason, cause); err != nil {
		c.logger.Warn("Errors while closing camera", "error", err)
	}
}

// configureSession runs on the worker when a surface arrives after open.
func (c *Controller) configureSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createSessionLocked()
}

func (c *Controller) createSessionLocked() {
	if c.device == nil || c.session != nil || c.configuring || c.surface.IsZero() || c.previewSize.IsZero() {
		return
	}

	dev, w := c.device, c.worker
	c.configuring = true

	err := dev.CreateSession(SessionConfig{
		PreviewSize: c.previewSize,
		Surface:     c.surface,
		Reader:      c.reader,
	}, SessionCallbacks{
		OnConfigured: func(s Session) {
			if !w.Post(func() { c.onConfigured(dev, s) }) {
				_ = s.Close()
			}
		},
		OnConfigureFailed: func(_ Session, err error) {
			w.Post(func() { c.onConfigureFailed(dev, err) })
		},
		OnClosed: func(s Session) {
			w.Post(func() { c.onSessionClosed(s) })
		},
	})
	if err != nil {
		c.configuring = false
		c.logger.Error("Failed to create capture session", "error", err)
		if isAccessError(err) {
			_ = c.teardownLocked(reasonError, err)
		}
	}
}

func (c *Controller) onConfigured(dev Device, s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dev != c.device || !c.configuring {
		_ = s.Close()
		return
	}
	c.configuring = false

	c.preview = newPreviewRequest(c.info, c.flash)
	if err := s.SetRepeatingRequest(c.preview.repeating(), c.meteringCallbacks(s)); err != nil {
		c.logger.Error("Failed to start camera preview", "error", err)
		_ = s.Close()
		if isAccessError(err) {
			_ = c.teardownLocked(reasonError, err)
		}
		return
	}

	c.session = s
	c.setStateLocked(StatePreviewing)
	c.logger.Info("Preview started", "preview_size", c.previewSize, "flash", c.flash)
}

func (c *Controller) onConfigureFailed(dev Device, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dev != c.device {
		return
	}
	c.configuring = false
	c.logger.Error("Failed to configure capture session", "error", err)
}

// onSessionClosed handles a session the device closed on its own.
func (c *Controller) onSessionClosed(s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s != c.session {
		return
	}
	c.session = nil
	c.pending.failAll(ErrSessionTornDown)
	c.awaiting = nil
	pendingCaptures.Set(0)
	if c.device != nil {
		c.setStateLocked(StateOpened)
	}
}

// TakePicture starts a still capture. It never blocks on the hardware; the
// returned Capture completes with exactly one photo or error. Canceling ctx
// cancels the capture.
func (c *Controller) TakePicture(ctx context.Context) *Capture {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateAwaitingConvergence:
		// The pre-capture sequence is already running; the still is
		// scheduled when it completes.
		return c.registerLocked(ctx)
	case StatePreviewing:
	default:
		recordResult(outcomeUnavailable)
		return failedCapture(fmt.Errorf("%w (state %s)", ErrUnavailable, c.state))
	}

	if !c.info.FixedFocus {
		c.preview.AFTrigger = AFTriggerStart
	}
	if !c.info.Legacy {
		c.preview.AEPrecaptureTrigger = AEPrecaptureTriggerStart
	}
	c.setStateLocked(StateAwaitingConvergence)
	c.timerStart = c.clock.Now()

	if err := c.session.Capture(c.preview, c.meteringCallbacks(c.session)); err != nil {
		c.logger.Error("Failed to start pre-capture sequence", "error", err)
		recordResult(outcomeSubmitError)
		c.setStateLocked(StatePreviewing)
		capture := failedCapture(fmt.Errorf("start pre-capture: %w", err))
		if isAccessError(err) {
			_ = c.teardownLocked(reasonError, err)
		}
		return capture
	}

	return c.registerLocked(ctx)
}

func (c *Controller) registerLocked(ctx context.Context) *Capture {
	c.nextID++
	id := c.nextID

	capture := newCapture(id)
	c.pending.register(id, capture)
	c.awaiting = append(c.awaiting, id)
	capture.watch(ctx)

	captureRequests.Inc()
	pendingCaptures.Set(float64(c.pending.len()))
	c.logger.Debug("Capture requested", "request_id", id, "queued", len(c.awaiting))
	return capture
}

func (c *Controller) meteringCallbacks(s Session) CaptureCallbacks {
	w := c.worker
	return CaptureCallbacks{
		OnProgressed: func(_ CaptureRequest, r CaptureResult) {
			w.Post(func() { c.onMeteringResult(s, r) })
		},
		OnCompleted: func(_ CaptureRequest, r CaptureResult) {
			w.Post(func() { c.onMeteringResult(s, r) })
		},
	}
}

func (c *Controller) stillCallbacks(s Session) CaptureCallbacks {
	w := c.worker
	return CaptureCallbacks{
		OnStarted: func(req CaptureRequest, _ time.Duration, _ int64) {
			w.Post(func() { c.onStillStarted(s, req) })
		},
		OnCompleted: func(req CaptureRequest, _ CaptureResult) {
			w.Post(func() { c.onStillCompleted(s, req) })
		},
		OnFailed: func(req CaptureRequest, f CaptureFailure) {
			w.Post(func() { c.onStillFailed(s, req, f) })
		},
	}
}

// onMeteringResult advances the pre-capture sequence.
func (c *Controller) onMeteringResult(s Session, r CaptureResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s != c.session || c.state != StateAwaitingConvergence {
		return
	}

	ready := c.convergedLocked(r)
	if !ready && c.clock.Since(c.timerStart) > ConvergenceTimeout {
		c.logger.Warn("Timed out waiting for pre-capture sequence to complete",
			"af_state", r.AFState, "ae_state", r.AEState, "awb_state", r.AWBState)
		convergenceTimeouts.Inc()
		ready = true
	}
	if !ready || len(c.awaiting) == 0 {
		return
	}

	convergenceSeconds.Observe(c.clock.Since(c.timerStart).Seconds())

	// One still per counted request, oldest first.
	ids := c.awaiting
	c.awaiting = nil
	for _, id := range ids {
		c.captureStillLocked(id)
	}

	if c.state == StateAwaitingConvergence {
		c.setStateLocked(StatePreviewing)
	}
}

// convergedLocked reports whether 3A has settled. A result missing a state
// the camera should report is not ready.
func (c *Controller) convergedLocked(r CaptureResult) bool {
	if !c.info.FixedFocus && !afReady(r.AFState) {
		return false
	}
	if !c.info.Legacy && (r.AEState != AEStateConverged || r.AWBState != AWBStateConverged) {
		return false
	}
	return true
}

// captureStillLocked submits the still request tagged with id.
func (c *Controller) captureStillLocked(id RequestID) {
	capture, ok := c.pending.get(id)
	if !ok {
		return
	}
	if capture.Disposed() {
		// Nothing will be produced for it, so drop it to keep images aligned.
		c.pending.take(id)
		recordResult(outcomeCanceled)
		pendingCaptures.Set(float64(c.pending.len()))
		return
	}
	if c.session == nil {
		c.pending.fail(id, fmt.Errorf("request %d: %w", id, ErrDeviceClosed))
		return
	}

	req := newStillRequest(c.preview, id)
	if err := c.session.Capture(req, c.stillCallbacks(c.session)); err != nil {
		c.logger.Error("Failed to submit still capture", "request_id", id, "error", err)
		c.pending.fail(id, fmt.Errorf("submit still capture %d: %w", id, err))
		if isAccessError(err) {
			_ = c.teardownLocked(reasonError, err)
		}
	}
}

func (c *Controller) onStillStarted(s Session, req CaptureRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s != c.session {
		return
	}
	c.publish(events.CaptureStartedEvent{
		RequestID: uint64(req.Tag),
		Timestamp: c.timestamp(),
	})
	if c.listener != nil {
		c.listener.CaptureStarted(req.Tag)
	}
}

func (c *Controller) onStillCompleted(s Session, _ CaptureRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s != c.session {
		return
	}
	c.finishedCaptureLocked()
}

func (c *Controller) onStillFailed(s Session, req CaptureRequest, f CaptureFailure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s != c.session {
		return
	}
	c.finishedCaptureLocked()

	if !c.pending.contains(req.Tag) {
		c.logger.Debug("Capture failed for request no longer pending", "request_id", req.Tag, "reason", f.Reason)
		return
	}
	c.pending.fail(req.Tag, &CaptureFailedError{RequestID: req.Tag, Reason: f.Reason})
	pendingCaptures.Set(float64(c.pending.len()))
}

// finishedCaptureLocked re-arms the 3A triggers after a still.
func (c *Controller) finishedCaptureLocked() {
	if c.session == nil {
		return
	}

	if !c.info.FixedFocus {
		c.preview.AFTrigger = AFTriggerCancel
		err := c.session.Capture(c.preview, c.meteringCallbacks(c.session))
		c.preview.AFTrigger = AFTriggerIdle
		if err != nil {
			c.logger.Warn("Failed to cancel auto-focus trigger", "error", err)
			if isAccessError(err) {
				_ = c.teardownLocked(reasonError, err)
			}
			return
		}
	}

	if !c.info.Legacy {
		c.preview.AEPrecaptureTrigger = AEPrecaptureTriggerCancel
	}
}

// onImageAvailable hands the next image to the oldest pending capture. The
// image is always returned to the reader.
func (c *Controller) onImageAvailable(r ImageReader) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, acqErr := r.AcquireNextImage()
	if img != nil {
		defer func() {
			if err := img.Close(); err != nil {
				c.logger.Debug("Failed to release image", "error", err)
			}
		}()
	}

	if r != c.reader {
		return
	}
	id, ok := c.pending.earliest()
	if !ok {
		c.logger.Debug("Image available with no pending capture")
		return
	}
	defer func() { pendingCaptures.Set(float64(c.pending.len())) }()

	switch {
	case errors.Is(acqErr, ErrReaderClosed):
		c.pending.fail(id, fmt.Errorf("request %d: %w", id, ErrReaderClosed))
	case errors.Is(acqErr, ErrMaxImages):
		c.pending.fail(id, fmt.Errorf("%w, dropping image for request %d", ErrBufferExhausted, id))
	case acqErr != nil:
		c.pending.fail(id, fmt.Errorf("%w for request %d: %w", ErrImageRead, id, acqErr))
	case img == nil:
		c.pending.fail(id, fmt.Errorf("%w for request %d", ErrImageRead, id))
	default:
		planes := img.Planes()
		if len(planes) == 0 {
			c.pending.fail(id, fmt.Errorf("%w for request %d: no planes", ErrImageRead, id))
			return
		}
		c.pending.resolveEarliest(Photo{
			Data:     bytes.Clone(planes[0]),
			Rotation: SensorToDeviceRotation(c.info.SensorOrientation, c.info.Facing, c.rotation),
		})
	}
}

// finishCapture completes a capture taken out of the correlator. Canceled
// captures are dropped silently.
func (c *Controller) finishCapture(id RequestID, capture *Capture, photo Photo, err error) {
	if capture.Disposed() {
		recordResult(outcomeCanceled)
		return
	}

	if err != nil {
		capture.fail(err)
		recordResult(outcomeOf(err))
		c.logger.Warn("Capture failed", "request_id", id, "error", err)
		c.publish(events.CaptureFailedEvent{
			RequestID: uint64(id),
			Error:     err.Error(),
			Timestamp: c.timestamp(),
		})
		return
	}

	capture.resolve(photo)
	recordResult(outcomeSuccess)
	c.logger.Info("Capture complete", "request_id", id, "bytes", len(photo.Data), "rotation", photo.Rotation)
	c.publish(events.CaptureSucceededEvent{
		RequestID: uint64(id),
		Bytes:     len(photo.Data),
		Rotation:  photo.Rotation,
		Timestamp: c.timestamp(),
	})
}

func outcomeOf(err error) string {
	var failed *CaptureFailedError
	switch {
	case errors.As(err, &failed):
		return outcomeCaptureFailed
	case errors.Is(err, ErrBufferExhausted):
		return outcomeBufferFull
	case errors.Is(err, ErrReaderClosed):
		return outcomeReaderClosed
	case errors.Is(err, ErrImageRead):
		return outcomeReadError
	case errors.Is(err, ErrSessionTornDown):
		return outcomeTornDown
	default:
		return outcomeSubmitError
	}
}

// drainImage returns an image to a reader nobody is listening to anymore.
func drainImage(r ImageReader) {
	if img, err := r.AcquireNextImage(); err == nil && img != nil {
		_ = img.Close()
	}
}

// SetFacing selects the camera used by the next Start.
func (c *Controller) SetFacing(f Facing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.facing = f
}

// SetFlash changes the flash policy. While a preview runs the repeating
// request is reissued; if that fails the policy falls back to auto.
func (c *Controller) SetFlash(mode FlashMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flash == mode {
		return nil
	}
	c.flash = mode
	if c.session == nil {
		return nil
	}

	applyFlashPolicy(&c.preview, mode)
	if err := c.session.SetRepeatingRequest(c.preview.repeating(), c.meteringCallbacks(c.session)); err != nil {
		c.logger.Warn("Failed to apply flash mode, falling back to auto", "flash", mode, "error", err)
		c.flash = FlashAuto
		applyFlashPolicy(&c.preview, FlashAuto)
		if isAccessError(err) {
			_ = c.teardownLocked(reasonError, err)
		}
		return fmt.Errorf("set flash %s: %w", mode, err)
	}
	return nil
}

// SetDisplayRotation updates the display rotation used for the render
// transform and for the rotation of later photos.
func (c *Controller) SetDisplayRotation(r Rotation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotation = r
	c.configureTransformLocked()
}

// SurfaceAvailable reports a preview surface of the given size. If the
// camera is already open the capture session is configured.
func (c *Controller) SurfaceAvailable(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.surface = Size{Width: width, Height: height}
	c.configureTransformLocked()
	if !c.previewSize.IsZero() {
		c.notifyPreviewSizesLocked()
	}
	if c.state == StateOpened && c.worker != nil {
		c.worker.Post(c.configureSession)
	}
}

// SurfaceChanged reports a new size for the preview surface.
func (c *Controller) SurfaceChanged(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface = Size{Width: width, Height: height}
	c.configureTransformLocked()
}

// SurfaceDestroyed forgets the preview surface. A running preview is not
// stopped.
func (c *Controller) SurfaceDestroyed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface = Size{}
}

func (c *Controller) configureTransformLocked() {
	if c.previewSize.IsZero() {
		return
	}
	m := DisplayTransform(c.rotation, c.surface.Width, c.surface.Height)
	c.publish(events.TransformUpdatedEvent{
		Matrix:    m,
		Rotation:  c.rotation.Degrees(),
		Timestamp: c.timestamp(),
	})
	if c.listener != nil {
		c.listener.TransformUpdated(m)
	}
}

// notifyPreviewSizesLocked reports the preview size as displayed: portrait
// displays get the landscape sensor size swapped.
func (c *Controller) notifyPreviewSizesLocked() {
	preview := c.previewSize
	if c.rotation.Degrees()%180 == 0 && preview.Width > preview.Height {
		preview = Size{Width: preview.Height, Height: preview.Width}
	}
	c.publish(events.PreviewSizesEvent{
		PreviewWidth:  preview.Width,
		PreviewHeight: preview.Height,
		SurfaceWidth:  c.surface.Width,
		SurfaceHeight: c.surface.Height,
		Timestamp:     c.timestamp(),
	})
	if c.listener != nil {
		c.listener.PreviewSizesAvailable(preview, c.surface)
	}
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	prev := c.state
	c.state = s
	close(c.stateCh)
	c.stateCh = make(chan struct{})

	recordState(s)
	c.logger.Debug("Camera state changed", "from", prev, "to", s)
	c.publish(events.CameraStateChangedEvent{
		State:     string(s),
		Previous:  string(prev),
		Timestamp: c.timestamp(),
	})
}

// WaitForState blocks until the controller reaches want or ctx is done.
func (c *Controller) WaitForState(ctx context.Context, want State) error {
	for {
		c.mu.Lock()
		s, ch := c.state, c.stateCh
		c.mu.Unlock()

		if s == want {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("waiting for camera state %s (current %s): %w", want, s, ctx.Err())
		}
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Facing returns the configured facing, which Start may have replaced with
// the facing of the camera actually chosen.
func (c *Controller) Facing() Facing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facing
}

// Info returns the static description of the selected camera. ok is false
// before the first Start.
func (c *Controller) Info() (StaticInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info, c.info.CameraID != ""
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:       c.state,
		Opening:     c.opening,
		CameraID:    c.info.CameraID,
		Facing:      c.facing,
		Flash:       c.flash,
		Rotation:    c.rotation,
		Surface:     c.surface,
		PreviewSize: c.previewSize,
		PictureSize: c.pictureSize,
		Legacy:      c.info.Legacy,
		FixedFocus:  c.info.FixedFocus,
		Pending:     c.pending.len(),
	}
}

func (c *Controller) publish(ev events.Event) {
	c.bus.Publish(ev)
}

func (c *Controller) timestamp() string {
	return c.clock.Now().Format(time.RFC3339)
}
