package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// LEDRequest sets an LED directly. The shutter indicator overrides it on
// the next camera event.
type LEDRequest struct {
	Body struct {
		Type    string  `json:"type" example:"user" doc:"LED type (board-specific: user, system, blue, act)"`
		Enabled bool    `json:"enabled" example:"true" doc:"Whether the LED should be on or off"`
		Pattern *string `json:"pattern,omitempty" example:"solid" doc:"Optional LED pattern (solid, blink, heartbeat)"`
	}
}

// LEDCapabilities lists the LEDs and patterns of the current board.
type LEDCapabilities struct {
	AvailableTypes    []string `json:"available_types" doc:"LED types available on this board"`
	AvailablePatterns []string `json:"available_patterns" doc:"Patterns available on this board"`
}

type LEDCapabilitiesResponse struct {
	Body LEDCapabilities
}

func (s *Server) registerLEDRoutes() {
	ctrl := s.options.LEDController
	if ctrl == nil {
		s.logger.Debug("LED controller not available, skipping LED routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "control-led",
		Method:      http.MethodPost,
		Path:        "/api/leds",
		Summary:     "Control LED",
		Description: "Set an LED's state and optional pattern. LED types and patterns are board-specific.",
		Tags:        []string{"leds"},
		Errors:      []int{400, 401},
		Security:    withAuth(),
	}, func(_ context.Context, input *LEDRequest) (*struct{}, error) {
		pattern := ""
		if input.Body.Pattern != nil {
			pattern = *input.Body.Pattern
		}
		if err := ctrl.Set(input.Body.Type, input.Body.Enabled, pattern); err != nil {
			return nil, huma.Error400BadRequest("Failed to control LED", err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-led-capabilities",
		Method:      http.MethodGet,
		Path:        "/api/leds/capabilities",
		Summary:     "Get LED Capabilities",
		Description: "Get the LED types and patterns available on this board",
		Tags:        []string{"leds"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*LEDCapabilitiesResponse, error) {
		return &LEDCapabilitiesResponse{
			Body: LEDCapabilities{
				AvailableTypes:    ctrl.Available(),
				AvailablePatterns: ctrl.Patterns(),
			},
		}, nil
	})
}
