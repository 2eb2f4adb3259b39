package events

import (
	"time"

	"github.com/kelindar/event"

	"github.com/smazurov/stillcam/internal/logging"
)

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to channels
// This is needed for SSE integration where Huma expects a channel-based select loop.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full (non-blocking)
		}
	})
}

// SubscribeCameraEvents forwards every camera event type to ch.
// The returned function removes all of the subscriptions.
func SubscribeCameraEvents(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[CameraOpenedEvent](bus, ch),
		SubscribeToChannel[CameraClosedEvent](bus, ch),
		SubscribeToChannel[CameraStateChangedEvent](bus, ch),
		SubscribeToChannel[PreviewSizesEvent](bus, ch),
		SubscribeToChannel[TransformUpdatedEvent](bus, ch),
		SubscribeToChannel[CaptureStartedEvent](bus, ch),
		SubscribeToChannel[CaptureSucceededEvent](bus, ch),
		SubscribeToChannel[CaptureFailedEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// CameraEventTypes maps SSE event names to their payload types for huma's
// sse.Register.
func CameraEventTypes() map[string]any {
	return map[string]any{
		"camera-opened":     CameraOpenedEvent{},
		"camera-closed":     CameraClosedEvent{},
		"state-changed":     CameraStateChangedEvent{},
		"preview-sizes":     PreviewSizesEvent{},
		"transform-updated": TransformUpdatedEvent{},
		"capture-started":   CaptureStartedEvent{},
		"capture-succeeded": CaptureSucceededEvent{},
		"capture-failed":    CaptureFailedEvent{},
	}
}

// NewLogEntryEvent converts a buffered log entry to its SSE payload.
func NewLogEntryEvent(entry logging.LogEntry) LogEntryEvent {
	return LogEntryEvent{
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}
