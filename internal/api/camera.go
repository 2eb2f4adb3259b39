package api

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/stillcam/internal/api/models"
	"github.com/smazurov/stillcam/internal/camera"
)

func toSizeData(s camera.Size) models.SizeData {
	return models.SizeData{Width: s.Width, Height: s.Height}
}

func (s *Server) statusResponse() *models.CameraStatusResponse {
	st := s.camera.Status()
	return &models.CameraStatusResponse{
		Body: models.CameraStatusData{
			State:       string(st.State),
			Opening:     st.Opening,
			CameraID:    st.CameraID,
			Facing:      string(st.Facing),
			Flash:       string(st.Flash),
			Rotation:    st.Rotation.Degrees(),
			Surface:     toSizeData(st.Surface),
			PreviewSize: toSizeData(st.PreviewSize),
			PictureSize: toSizeData(st.PictureSize),
			Legacy:      st.Legacy,
			FixedFocus:  st.FixedFocus,
			Pending:     st.Pending,
		},
	}
}

// startError maps a Start failure to an HTTP error.
func startError(err error) error {
	switch {
	case errors.Is(err, camera.ErrAlreadyStarted):
		return huma.Error409Conflict("Camera already started", err)
	case errors.Is(err, camera.ErrOpenTimeout), errors.Is(err, camera.ErrNoCamera):
		return huma.Error503ServiceUnavailable("Camera unavailable", err)
	default:
		return huma.Error500InternalServerError("Failed to start camera", err)
	}
}

// captureError maps a capture failure to an HTTP error: 503 when no preview
// is running, 504 when the wait timed out, 502 for hardware failures.
func captureError(err error) error {
	var failed *camera.CaptureFailedError
	switch {
	case errors.Is(err, camera.ErrUnavailable):
		return huma.Error503ServiceUnavailable("Capture unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout("Capture timed out", err)
	case errors.Is(err, camera.ErrCanceled), errors.Is(err, context.Canceled):
		return huma.NewError(499, "Capture canceled", err)
	case errors.As(err, &failed),
		errors.Is(err, camera.ErrBufferExhausted),
		errors.Is(err, camera.ErrImageRead),
		errors.Is(err, camera.ErrReaderClosed),
		errors.Is(err, camera.ErrSessionTornDown):
		return huma.Error502BadGateway("Capture failed", err)
	default:
		return huma.Error500InternalServerError("Capture failed", err)
	}
}

// startCamera starts the controller and, if wait is set, blocks until the
// preview runs or, without a surface, until the device is open.
func (s *Server) startCamera(ctx context.Context, wait bool) error {
	if err := s.camera.Start(ctx); err != nil {
		return startError(err)
	}
	if !wait {
		return nil
	}

	want := camera.StatePreviewing
	if s.camera.Status().Surface.IsZero() {
		want = camera.StateOpened
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.options.StartTimeout)
	defer cancel()
	if err := s.camera.WaitForState(waitCtx, want); err != nil {
		return huma.Error504GatewayTimeout("Camera did not become ready", err)
	}
	return nil
}

func (s *Server) registerCameraRoutes() {
	if s.camera == nil {
		s.logger.Warn("No camera service configured, skipping camera routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera",
		Method:      http.MethodGet,
		Path:        "/api/camera",
		Summary:     "Camera Status",
		Description: "Get the capture session state and current camera settings",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.CameraStatusResponse, error) {
		return s.statusResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-camera",
		Method:      http.MethodPost,
		Path:        "/api/camera/start",
		Summary:     "Start Camera",
		Description: "Open the camera. The preview starts once a surface is known.",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500, 503, 504},
	}, func(ctx context.Context, input *models.StartCameraRequest) (*models.CameraStatusResponse, error) {
		if err := s.startCamera(ctx, input.Wait); err != nil {
			return nil, err
		}
		return s.statusResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-camera",
		Method:      http.MethodPost,
		Path:        "/api/camera/stop",
		Summary:     "Stop Camera",
		Description: "Close the camera and fail every pending capture",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.CameraStatusResponse, error) {
		if err := s.camera.Stop(); err != nil {
			// The camera is closed regardless; release errors are only logged.
			s.logger.Warn("Errors while stopping camera", "error", err)
		}
		return s.statusResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-flash",
		Method:      http.MethodPut,
		Path:        "/api/camera/flash",
		Summary:     "Set Flash",
		Description: "Change the flash policy. A running preview is updated immediately.",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 502},
	}, func(_ context.Context, input *models.FlashRequest) (*models.CameraStatusResponse, error) {
		mode, err := camera.ParseFlashMode(input.Body.Mode)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("Invalid flash mode", err)
		}
		if err := s.camera.SetFlash(mode); err != nil {
			return nil, huma.Error502BadGateway("Failed to apply flash mode", err)
		}
		return s.statusResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-facing",
		Method:      http.MethodPut,
		Path:        "/api/camera/facing",
		Summary:     "Set Facing",
		Description: "Choose the front or back camera. A running session is restarted on the new camera.",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422, 500, 503},
	}, func(ctx context.Context, input *models.FacingRequest) (*models.CameraStatusResponse, error) {
		facing, err := camera.ParseFacing(input.Body.Facing)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("Invalid facing", err)
		}

		st := s.camera.Status()
		running := st.State != camera.StateClosed || st.Opening
		if running {
			if err := s.camera.Stop(); err != nil {
				s.logger.Warn("Errors while stopping camera for facing change", "error", err)
			}
		}
		s.camera.SetFacing(facing)
		if running {
			if err := s.startCamera(ctx, false); err != nil {
				return nil, err
			}
		}
		return s.statusResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-rotation",
		Method:      http.MethodPut,
		Path:        "/api/camera/rotation",
		Summary:     "Set Display Rotation",
		Description: "Set the display rotation used for the preview transform and photo orientation",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(_ context.Context, input *models.RotationRequest) (*models.CameraStatusResponse, error) {
		r, err := camera.RotationFromDegrees(input.Body.Degrees)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("Invalid rotation", err)
		}
		s.camera.SetDisplayRotation(r)
		return s.statusResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-surface",
		Method:      http.MethodPut,
		Path:        "/api/camera/surface",
		Summary:     "Set Preview Surface",
		Description: "Report the preview surface size. 0x0 destroys the surface.",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(_ context.Context, input *models.SurfaceRequest) (*models.CameraStatusResponse, error) {
		w, h := input.Body.Width, input.Body.Height
		switch {
		case w == 0 && h == 0:
			s.camera.SurfaceDestroyed()
		case w == 0 || h == 0:
			return nil, huma.Error422UnprocessableEntity("Surface width and height must both be set")
		case s.camera.Status().Surface.IsZero():
			s.camera.SurfaceAvailable(w, h)
		default:
			s.camera.SurfaceChanged(w, h)
		}
		return s.statusResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "capture-photo",
		Method:      http.MethodPost,
		Path:        "/api/camera/capture",
		Summary:     "Capture Photo",
		Description: "Take a still picture and return it base64 encoded, optionally saving it",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 500, 502, 503, 504},
	}, func(ctx context.Context, input *models.CaptureRequest) (*models.CaptureResponse, error) {
		if input.Save && s.options.Photos == nil {
			return nil, huma.Error400BadRequest("Photo saving is not configured")
		}

		ctx, cancel := context.WithTimeout(ctx, s.options.CaptureTimeout)
		defer cancel()

		photo, err := s.camera.TakePicture(ctx).Wait(ctx)
		if err != nil {
			if errors.Is(err, camera.ErrCanceled) && ctx.Err() != nil {
				err = ctx.Err()
			}
			return nil, captureError(err)
		}

		resp := &models.CaptureResponse{
			Body: models.CaptureData{
				RequestID: uint64(photo.RequestID),
				Rotation:  photo.Rotation,
				Bytes:     len(photo.Data),
				Image:     base64.StdEncoding.EncodeToString(photo.Data),
			},
		}
		if input.Save {
			path, err := s.options.Photos.Save(photo)
			if err != nil {
				return nil, huma.Error500InternalServerError("Failed to save photo", err)
			}
			resp.Body.Path = path
		}
		return resp, nil
	})
}
