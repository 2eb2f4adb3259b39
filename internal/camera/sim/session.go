package sim

import (
	"slices"
	"sync"
	"time"

	"github.com/smazurov/stillcam/internal/camera"
)

var (
	settled = camera.CaptureResult{
		AFState:  camera.AFStateFocusedLocked,
		AEState:  camera.AEStateConverged,
		AWBState: camera.AWBStateConverged,
	}
	searching = camera.CaptureResult{
		AFState:  camera.AFStateActiveScan,
		AEState:  camera.AEStatePrecapture,
		AWBState: camera.AWBStateSearching,
	}
)

// Session is a simulated capture session. Requests passed to Capture are
// processed before Capture returns.
type Session struct {
	device *Device
	cfg    camera.SessionConfig
	reader *Reader
	cb     camera.SessionCallbacks
	start  time.Time

	mu          sync.Mutex
	closed      bool
	repeating   *camera.CaptureRequest
	repeatingCB camera.CaptureCallbacks
	requests    []camera.CaptureRequest
	converging  bool
	searched    int
	frame       int64
	failNext    []camera.FailureReason
	aborts      int
	stopTicker  chan struct{}
	omitStates  bool
	forced      *camera.CaptureResult
}

var _ camera.Session = (*Session)(nil)

func newSession(d *Device, cfg camera.SessionConfig, reader *Reader, cb camera.SessionCallbacks) *Session {
	return &Session{
		device: d,
		cfg:    cfg,
		reader: reader,
		cb:     cb,
		start:  time.Now(),
	}
}

// SetRepeatingRequest implements camera.Session.
func (s *Session) SetRepeatingRequest(req camera.CaptureRequest, cb camera.CaptureCallbacks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return camera.ErrDeviceClosed
	}
	s.repeating = &req
	s.repeatingCB = cb

	if interval := s.device.backend.opts.FrameInterval; interval > 0 && s.stopTicker == nil {
		s.stopTicker = make(chan struct{})
		go s.tick(interval, s.stopTicker)
	}
	return nil
}

func (s *Session) tick(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.EmitFrame()
		}
	}
}

// Capture implements camera.Session.
func (s *Session) Capture(req camera.CaptureRequest, cb camera.CaptureCallbacks) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return camera.ErrDeviceClosed
	}
	s.requests = append(s.requests, req)
	s.frame++
	frame := s.frame
	ts := time.Since(s.start)

	if req.Template != camera.TemplateStillCapture {
		if startsMetering(req) {
			s.converging = true
			s.searched = 0
		}
		result := s.nextResultLocked()
		s.mu.Unlock()

		if cb.OnCompleted != nil {
			cb.OnCompleted(req, result)
		}
		return nil
	}

	var failure *camera.CaptureFailure
	if len(s.failNext) > 0 {
		failure = &camera.CaptureFailure{Reason: s.failNext[0]}
		s.failNext = s.failNext[1:]
	}
	s.mu.Unlock()

	if failure != nil {
		if cb.OnFailed != nil {
			cb.OnFailed(req, *failure)
		}
		return nil
	}

	if cb.OnStarted != nil {
		cb.OnStarted(req, ts, frame)
	}
	if s.reader != nil {
		size := s.reader.Size()
		data, err := s.device.backend.opts.ImageFactory(req, size)
		if err != nil {
			s.device.backend.logger.Warn("Failed to produce simulated image", "request_id", req.Tag, "error", err)
		} else {
			s.reader.push(data)
		}
	}
	if cb.OnCompleted != nil {
		cb.OnCompleted(req, settled)
	}
	return nil
}

// startsMetering reports whether a one-shot preview request starts a new
// pre-capture sequence. The auto-focus cancel sent after a still does not.
func startsMetering(req camera.CaptureRequest) bool {
	if req.AFTrigger == camera.AFTriggerCancel {
		return false
	}
	return req.AFTrigger == camera.AFTriggerStart || req.AEPrecaptureTrigger == camera.AEPrecaptureTriggerStart
}

func (s *Session) nextResultLocked() camera.CaptureResult {
	if s.forced != nil {
		return *s.forced
	}
	if s.omitStates {
		return camera.CaptureResult{}
	}
	if s.converging {
		limit := s.device.backend.opts.ConvergeAfter
		if limit < 0 || s.searched < limit {
			s.searched++
			return searching
		}
		s.converging = false
	}
	return settled
}

// EmitFrame reports one result for the repeating request. It returns false
// when no repeating request is set.
func (s *Session) EmitFrame() bool {
	s.mu.Lock()
	if s.closed || s.repeating == nil {
		s.mu.Unlock()
		return false
	}
	req, cb := *s.repeating, s.repeatingCB
	s.frame++
	result := s.nextResultLocked()
	s.mu.Unlock()

	if cb.OnCompleted != nil {
		cb.OnCompleted(req, result)
	}
	return true
}

// AbortCaptures implements camera.Session. Captures complete synchronously,
// so there is never anything in flight.
func (s *Session) AbortCaptures() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return camera.ErrDeviceClosed
	}
	s.aborts++
	return nil
}

// Close implements camera.Session.
func (s *Session) Close() error {
	if s.shutdown() && s.cb.OnClosed != nil {
		s.cb.OnClosed(s)
	}
	return nil
}

// shutdown marks the session closed and reports whether it was open.
func (s *Session) shutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	if s.stopTicker != nil {
		close(s.stopTicker)
		s.stopTicker = nil
	}
	return true
}

// FailNextStill makes the next still request fail with reason.
func (s *Session) FailNextStill(reason camera.FailureReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = append(s.failNext, reason)
}

// OmitStates makes metering results carry no 3A states.
func (s *Session) OmitStates(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitStates = omit
}

// ForceResult makes every preview result report r until cleared with nil.
func (s *Session) ForceResult(r *camera.CaptureResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced = r
}

// Requests returns every one-shot request submitted so far.
func (s *Session) Requests() []camera.CaptureRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// StillRequests returns the still capture requests submitted so far.
func (s *Session) StillRequests() []camera.CaptureRequest {
	var out []camera.CaptureRequest
	for _, req := range s.Requests() {
		if req.Template == camera.TemplateStillCapture {
			out = append(out, req)
		}
	}
	return out
}

// Repeating returns the current repeating request.
func (s *Session) Repeating() (camera.CaptureRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repeating == nil {
		return camera.CaptureRequest{}, false
	}
	return *s.repeating, true
}

// Config returns the outputs the session was created with.
func (s *Session) Config() camera.SessionConfig {
	return s.cfg
}

// Closed reports whether the session was closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Aborts returns how many times AbortCaptures succeeded.
func (s *Session) Aborts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborts
}
