package camera

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned by TakePicture when no preview is running.
	ErrUnavailable = errors.New("capture unavailable: device closed")
	// ErrDeviceClosed is returned by hardware handles used after close.
	ErrDeviceClosed = errors.New("camera device closed")
	// ErrOpenTimeout is returned when a previous session did not finish closing in time.
	ErrOpenTimeout = errors.New("timed out waiting to lock camera opening")
	// ErrReaderClosed is returned when the still image reader was already released.
	ErrReaderClosed = errors.New("image reader closed")
	// ErrMaxImages is returned by an ImageReader when every buffer is checked out.
	ErrMaxImages = errors.New("maximum number of images acquired")
	// ErrBufferExhausted fails a capture whose image could not be acquired.
	ErrBufferExhausted = errors.New("too many images queued")
	// ErrImageRead fails a capture whose image could not be read.
	ErrImageRead = errors.New("error reading image")
	// ErrSessionTornDown fails every capture still pending when the session closes.
	ErrSessionTornDown = errors.New("capture session torn down")
	// ErrCanceled completes a capture that was canceled by its caller.
	ErrCanceled = errors.New("capture canceled")
	// ErrAlreadyStarted is returned by Start while a session is running.
	ErrAlreadyStarted = errors.New("camera already started")
	// ErrNoCamera is returned when the backend reports no cameras.
	ErrNoCamera = errors.New("no camera available")
)

// CaptureFailedError reports a still capture the hardware could not complete.
type CaptureFailedError struct {
	RequestID RequestID
	Reason    FailureReason
}

func (e *CaptureFailedError) Error() string {
	return fmt.Sprintf("capture %d failed with reason: %s", e.RequestID, e.Reason)
}

// DeviceError is a fatal error reported by the camera device.
type DeviceError struct {
	Code DeviceErrorCode
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera device error: %s", e.Code)
}

// isAccessError reports whether err means the device can no longer be used.
func isAccessError(err error) bool {
	var devErr *DeviceError
	return errors.Is(err, ErrDeviceClosed) || errors.As(err, &devErr)
}
