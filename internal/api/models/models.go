package models

import (
	"github.com/smazurov/stillcam/internal/logging"
	"github.com/smazurov/stillcam/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.Info
}

// Camera models
type SizeData struct {
	Width  int `json:"width" example:"1920" doc:"Width in pixels"`
	Height int `json:"height" example:"1080" doc:"Height in pixels"`
}

type CameraStatusData struct {
	State       string   `json:"state" example:"previewing" enum:"closed,opened,previewing,awaiting_convergence" doc:"Capture session state"`
	Opening     bool     `json:"opening" doc:"A device open is in flight"`
	CameraID    string   `json:"camera_id,omitempty" example:"0" doc:"Open camera, empty when none was chosen yet"`
	Facing      string   `json:"facing" example:"back" doc:"Requested lens facing"`
	Flash       string   `json:"flash" example:"auto" doc:"Flash policy"`
	Rotation    int      `json:"rotation" example:"90" doc:"Display rotation in degrees"`
	Surface     SizeData `json:"surface" doc:"Preview surface size, zero when no surface"`
	PreviewSize SizeData `json:"preview_size" doc:"Chosen preview stream size"`
	PictureSize SizeData `json:"picture_size" doc:"Chosen still size"`
	Legacy      bool     `json:"legacy" doc:"Camera has legacy hardware support"`
	FixedFocus  bool     `json:"fixed_focus" doc:"Camera has no autofocus"`
	Pending     int      `json:"pending" example:"0" doc:"Captures waiting for an image"`
}

type CameraStatusResponse struct {
	Body CameraStatusData
}

type StartCameraRequest struct {
	Wait bool `query:"wait" doc:"Block until the preview is running"`
}

type FlashRequest struct {
	Body struct {
		Mode string `json:"mode" enum:"off,on,torch,auto,red-eye" example:"auto" doc:"Flash policy"`
	}
}

type FacingRequest struct {
	Body struct {
		Facing string `json:"facing" enum:"back,front" example:"back" doc:"Lens facing; a running session is restarted"`
	}
}

type RotationRequest struct {
	Body struct {
		Degrees int `json:"degrees" enum:"0,90,180,270" example:"90" doc:"Display rotation in degrees"`
	}
}

type SurfaceRequest struct {
	Body struct {
		Width  int `json:"width" minimum:"0" example:"1080" doc:"Surface width, 0 with height 0 destroys the surface"`
		Height int `json:"height" minimum:"0" example:"1920" doc:"Surface height"`
	}
}

// Capture models
type CaptureRequest struct {
	Save bool `query:"save" doc:"Also write the photo to the photo directory"`
}

type CaptureData struct {
	RequestID uint64 `json:"request_id" example:"1" doc:"Capture request identifier"`
	Rotation  int    `json:"rotation" example:"90" doc:"Clockwise rotation in degrees that makes the image upright"`
	Bytes     int    `json:"bytes" example:"204800" doc:"Size of the image data"`
	Image     string `json:"image" doc:"Base64 encoded image data"`
	Path      string `json:"path,omitempty" example:"/var/lib/stillcam/IMG_20260101_120000.000_0001.jpg" doc:"Saved file, when save was requested"`
}

type CaptureResponse struct {
	Body CaptureData
}

// Log models
type LogsRequest struct {
	Limit  int    `query:"limit" minimum:"0" default:"100" doc:"Maximum number of entries, newest last"`
	Module string `query:"module" doc:"Only entries from this module"`
}

type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Recent log entries, oldest first"`
	Count   int                `json:"count" example:"100" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

type LogLevelRequest struct {
	Body struct {
		Module string `json:"module,omitempty" example:"camera" doc:"Module name, empty for the global level"`
		Level  string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New level"`
	}
}

type LogLevelsResponse struct {
	Body struct {
		Levels map[string]string `json:"levels" doc:"Current level per module"`
	}
}
