package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/stillcam/internal/events"
)

// registerSSERoutes registers the camera event stream.
func (s *Server) registerSSERoutes() {
	if s.eventBus == nil {
		s.logger.Debug("No event bus configured, skipping SSE routes")
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time camera events: open and close, state changes, preview sizes, transforms and capture results",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, events.CameraEventTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		unsubscribe := events.SubscribeCameraEvents(s.eventBus, eventCh)
		defer unsubscribe()

		// Current state first, so clients need not poll /api/camera.
		if s.camera != nil {
			st := s.camera.Status()
			if err := send.Data(events.CameraStateChangedEvent{
				State:     string(st.State),
				Previous:  string(st.State),
				Timestamp: time.Now().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
