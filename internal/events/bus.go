package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers. A nil bus drops the event.
// Usage: bus.Publish(CaptureStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	// kelindar/event dispatches on the static type, so unwrap the interface
	switch e := ev.(type) {
	case CameraOpenedEvent:
		event.Publish(b.dispatcher, e)
	case CameraClosedEvent:
		event.Publish(b.dispatcher, e)
	case CameraStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case PreviewSizesEvent:
		event.Publish(b.dispatcher, e)
	case TransformUpdatedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureStartedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureSucceededEvent:
		event.Publish(b.dispatcher, e)
	case CaptureFailedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects which events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e CaptureStartedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(CameraOpenedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CameraClosedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CameraStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PreviewSizesEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TransformUpdatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureSucceededEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
