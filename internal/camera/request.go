package camera

// RequestID tags a still capture request. Zero means untagged.
type RequestID uint64

// Template selects the request defaults the device starts from.
type Template int

// Request templates.
const (
	TemplatePreview Template = iota + 1
	TemplateStillCapture
)

// Target is an output stream of a capture session.
type Target int

// Capture targets.
const (
	TargetPreview Target = iota + 1
	TargetStill
)

// ControlMode is the overall 3A control mode.
type ControlMode int

// Control modes.
const (
	ControlModeUnset ControlMode = iota
	ControlModeOff
	ControlModeAuto
)

// AFMode is the auto-focus mode.
type AFMode int

// Auto-focus modes.
const (
	AFModeUnset AFMode = iota
	AFModeOff
	AFModeAuto
	AFModeContinuousPicture
)

// AFTrigger starts or cancels an auto-focus scan.
type AFTrigger int

// Auto-focus triggers.
const (
	AFTriggerIdle AFTrigger = iota
	AFTriggerStart
	AFTriggerCancel
)

// AEMode is the auto-exposure mode, which also decides who fires the flash.
type AEMode int

// Auto-exposure modes.
const (
	AEModeUnset AEMode = iota
	AEModeOn
	AEModeOnAutoFlash
	AEModeOnAutoFlashRedEye
)

// AEPrecaptureTrigger starts or cancels an exposure metering sequence.
type AEPrecaptureTrigger int

// Auto-exposure precapture triggers.
const (
	AEPrecaptureTriggerIdle AEPrecaptureTrigger = iota
	AEPrecaptureTriggerStart
	AEPrecaptureTriggerCancel
)

// AWBMode is the auto-white-balance mode.
type AWBMode int

// Auto-white-balance modes.
const (
	AWBModeUnset AWBMode = iota
	AWBModeOff
	AWBModeAuto
)

// FlashControl drives the flash unit directly.
type FlashControl int

// Flash unit controls.
const (
	FlashControlOff FlashControl = iota
	FlashControlSingle
	FlashControlTorch
)

// CaptureRequest is an immutable set of capture parameters. It is passed by
// value so a submitted request never changes under the device.
type CaptureRequest struct {
	Template            Template
	Targets             []Target
	ControlMode         ControlMode
	AFMode              AFMode
	AFTrigger           AFTrigger
	AEMode              AEMode
	AEPrecaptureTrigger AEPrecaptureTrigger
	AWBMode             AWBMode
	Flash               FlashControl
	Tag                 RequestID
}

// AFState is the auto-focus state reported in a capture result.
type AFState int

// Auto-focus states. AFStateUnknown means the result did not carry one.
const (
	AFStateUnknown AFState = iota
	AFStateInactive
	AFStatePassiveScan
	AFStatePassiveFocused
	AFStateActiveScan
	AFStateFocusedLocked
	AFStateNotFocusedLocked
	AFStatePassiveUnfocused
)

// AEState is the auto-exposure state reported in a capture result.
type AEState int

// Auto-exposure states.
const (
	AEStateUnknown AEState = iota
	AEStateInactive
	AEStateSearching
	AEStateConverged
	AEStateLocked
	AEStateFlashRequired
	AEStatePrecapture
)

// AWBState is the auto-white-balance state reported in a capture result.
type AWBState int

// Auto-white-balance states.
const (
	AWBStateUnknown AWBState = iota
	AWBStateInactive
	AWBStateSearching
	AWBStateConverged
	AWBStateLocked
)

// CaptureResult is the metadata produced for a request, partial or total.
type CaptureResult struct {
	AFState  AFState
	AEState  AEState
	AWBState AWBState
	Partial  bool
}

// FailureReason explains a failed capture.
type FailureReason string

// Failure reasons reported by devices.
const (
	FailureError   FailureReason = "error"
	FailureFlushed FailureReason = "flushed"
)

// CaptureFailure is reported instead of a result when a request fails.
type CaptureFailure struct {
	Reason FailureReason
}

// afReady reports whether auto-focus finished scanning.
func afReady(s AFState) bool {
	switch s {
	case AFStatePassiveFocused, AFStateFocusedLocked, AFStateNotFocusedLocked:
		return true
	default:
		return false
	}
}

// newPreviewRequest builds the repeating preview request for the camera.
func newPreviewRequest(info StaticInfo, flash FlashMode) CaptureRequest {
	req := CaptureRequest{
		Template:    TemplatePreview,
		Targets:     []Target{TargetPreview},
		ControlMode: ControlModeAuto,
	}

	if !info.FixedFocus {
		if hasAFMode(info.AFModes, AFModeContinuousPicture) {
			req.AFMode = AFModeContinuousPicture
		} else {
			req.AFMode = AFModeAuto
		}
	}

	applyFlashPolicy(&req, flash)

	if hasAWBMode(info.AWBModes, AWBModeAuto) {
		req.AWBMode = AWBModeAuto
	}

	return req
}

// applyFlashPolicy sets the exposure mode and flash control for a flash policy.
// Torch falls back to auto flash for stills.
func applyFlashPolicy(req *CaptureRequest, flash FlashMode) {
	switch flash {
	case FlashOff:
		req.AEMode = AEModeOn
		req.Flash = FlashControlOff
	case FlashOn:
		req.AEMode = AEModeOn
		req.Flash = FlashControlSingle
	case FlashTorch, FlashAuto:
		req.AEMode = AEModeOnAutoFlash
		req.Flash = FlashControlOff
	case FlashRedEye:
		req.AEMode = AEModeOnAutoFlashRedEye
		req.Flash = FlashControlOff
	default:
		req.AEMode = AEModeOnAutoFlash
		req.Flash = FlashControlOff
	}
}

// newStillRequest builds a tagged still capture that mirrors the preview 3A modes.
func newStillRequest(preview CaptureRequest, id RequestID) CaptureRequest {
	req := CaptureRequest{
		Template:    TemplateStillCapture,
		Targets:     []Target{TargetStill},
		ControlMode: preview.ControlMode,
		AFMode:      preview.AFMode,
		AEMode:      preview.AEMode,
		AWBMode:     preview.AWBMode,
		Flash:       preview.Flash,
		Tag:         id,
	}
	// A forced flash needs its own exposure metering.
	if req.Flash == FlashControlSingle {
		req.AEPrecaptureTrigger = AEPrecaptureTriggerStart
	}
	return req
}

// repeating returns the request with one-shot triggers cleared.
func (r CaptureRequest) repeating() CaptureRequest {
	r.AFTrigger = AFTriggerIdle
	r.AEPrecaptureTrigger = AEPrecaptureTriggerIdle
	return r
}
