package events

// Event type constants for kelindar/event.
const (
	TypeCameraOpened uint32 = iota + 1
	TypeCameraClosed
	TypeCameraStateChanged
	TypePreviewSizes
	TypeTransformUpdated
	TypeCaptureStarted
	TypeCaptureSucceeded
	TypeCaptureFailed
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CameraOpenedEvent is published once the camera device reports it is open.
type CameraOpenedEvent struct {
	CameraID  string `json:"camera_id" example:"0" doc:"Camera identifier"`
	Facing    string `json:"facing" example:"back" doc:"Direction the lens points: back or front"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraOpenedEvent.
func (e CameraOpenedEvent) Type() uint32 { return TypeCameraOpened }

// CameraClosedEvent is published when the device is closed, disconnected or failed.
type CameraClosedEvent struct {
	CameraID  string `json:"camera_id" example:"0" doc:"Camera identifier"`
	Reason    string `json:"reason" example:"stopped" doc:"Why the camera closed: stopped, disconnected or error"`
	Failed    int    `json:"failed" example:"0" doc:"Pending captures failed by the close"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraClosedEvent.
func (e CameraClosedEvent) Type() uint32 { return TypeCameraClosed }

// CameraStateChangedEvent is published on every state machine transition.
type CameraStateChangedEvent struct {
	State     string `json:"state" example:"previewing" doc:"New camera state"`
	Previous  string `json:"previous" example:"opened" doc:"Previous camera state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraStateChangedEvent.
func (e CameraStateChangedEvent) Type() uint32 { return TypeCameraStateChanged }

// PreviewSizesEvent carries the chosen preview size, adjusted for portrait
// displays, together with the current surface size.
type PreviewSizesEvent struct {
	PreviewWidth  int    `json:"preview_width" example:"1080" doc:"Preview width as displayed"`
	PreviewHeight int    `json:"preview_height" example:"1920" doc:"Preview height as displayed"`
	SurfaceWidth  int    `json:"surface_width" example:"1080" doc:"Surface width"`
	SurfaceHeight int    `json:"surface_height" example:"2160" doc:"Surface height"`
	Timestamp     string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PreviewSizesEvent.
func (e PreviewSizesEvent) Type() uint32 { return TypePreviewSizes }

// TransformUpdatedEvent carries the render transform for the preview surface.
type TransformUpdatedEvent struct {
	Matrix    [9]float64 `json:"matrix" doc:"Row-major 3x3 affine transform"`
	Rotation  int        `json:"rotation" example:"90" doc:"Display rotation in degrees"`
	Timestamp string     `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TransformUpdatedEvent.
func (e TransformUpdatedEvent) Type() uint32 { return TypeTransformUpdated }

// CaptureStartedEvent is published when the sensor starts exposing a still.
// Used for shutter feedback.
type CaptureStartedEvent struct {
	RequestID uint64 `json:"request_id" example:"1" doc:"Capture request identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStartedEvent.
func (e CaptureStartedEvent) Type() uint32 { return TypeCaptureStarted }

// CaptureSucceededEvent is published when a capture resolves with an image.
type CaptureSucceededEvent struct {
	RequestID uint64 `json:"request_id" example:"1" doc:"Capture request identifier"`
	Bytes     int    `json:"bytes" example:"204800" doc:"Size of the image data"`
	Rotation  int    `json:"rotation" example:"90" doc:"Clockwise rotation that makes the image upright"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureSucceededEvent.
func (e CaptureSucceededEvent) Type() uint32 { return TypeCaptureSucceeded }

// CaptureFailedEvent is published when a capture resolves with an error.
type CaptureFailedEvent struct {
	RequestID uint64 `json:"request_id" example:"1" doc:"Capture request identifier"`
	Error     string `json:"error" example:"too many images queued" doc:"Failure description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureFailedEvent.
func (e CaptureFailedEvent) Type() uint32 { return TypeCaptureFailed }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"camera" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
