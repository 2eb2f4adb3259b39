package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/stillcam/internal/camera"
	"github.com/smazurov/stillcam/internal/logging"
)

// CameraSettings is the [camera] table of the config file with defaults
// filled in, as used at startup. Reloads go through CameraUpdate.
type CameraSettings struct {
	Facing   string `toml:"facing" json:"facing"`
	Flash    string `toml:"flash" json:"flash"`
	Rotation int    `toml:"rotation" json:"rotation"`
}

// DefaultCameraSettings matches the controller defaults.
func DefaultCameraSettings() CameraSettings {
	return CameraSettings{
		Facing: string(camera.FacingBack),
		Flash:  string(camera.FlashAuto),
	}
}

// LoadCameraSettings reads the [camera] table from path. Missing keys keep
// their defaults; invalid values are an error.
func LoadCameraSettings(path string) (CameraSettings, error) {
	settings := DefaultCameraSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var raw struct {
		Camera CameraSettings `toml:"camera"`
	}
	raw.Camera = settings
	if err := toml.Unmarshal(data, &raw); err != nil {
		return settings, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := raw.Camera.Validate(); err != nil {
		return settings, err
	}
	return raw.Camera, nil
}

// Validate reports the first invalid value.
func (s CameraSettings) Validate() error {
	if _, err := camera.ParseFacing(s.Facing); err != nil {
		return err
	}
	if _, err := camera.ParseFlashMode(s.Flash); err != nil {
		return err
	}
	if _, err := camera.RotationFromDegrees(s.Rotation); err != nil {
		return err
	}
	return nil
}

// FacingValue returns the parsed facing, falling back to back.
func (s CameraSettings) FacingValue() camera.Facing {
	f, err := camera.ParseFacing(s.Facing)
	if err != nil {
		return camera.FacingBack
	}
	return f
}

// FlashValue returns the parsed flash mode, falling back to auto.
func (s CameraSettings) FlashValue() camera.FlashMode {
	m, err := camera.ParseFlashMode(s.Flash)
	if err != nil {
		return camera.FlashAuto
	}
	return m
}

// RotationValue returns the parsed display rotation, falling back to 0.
func (s CameraSettings) RotationValue() camera.Rotation {
	r, err := camera.RotationFromDegrees(s.Rotation)
	if err != nil {
		return camera.Rotation0
	}
	return r
}

// CameraUpdate holds only the [camera] keys present in the config file.
type CameraUpdate struct {
	Facing   *string `toml:"facing"`
	Flash    *string `toml:"flash"`
	Rotation *int    `toml:"rotation"`
}

// LoadCameraUpdate reads the [camera] keys present in path. A file without
// a [camera] table yields an empty update.
func LoadCameraUpdate(path string) (CameraUpdate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CameraUpdate{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var raw struct {
		Camera CameraUpdate `toml:"camera"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return CameraUpdate{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	u := raw.Camera
	if u.Facing != nil {
		if _, err := camera.ParseFacing(*u.Facing); err != nil {
			return CameraUpdate{}, err
		}
	}
	if u.Flash != nil {
		if _, err := camera.ParseFlashMode(*u.Flash); err != nil {
			return CameraUpdate{}, err
		}
	}
	if u.Rotation != nil {
		if _, err := camera.RotationFromDegrees(*u.Rotation); err != nil {
			return CameraUpdate{}, err
		}
	}
	return u, nil
}

// Empty reports whether no key is set.
func (u CameraUpdate) Empty() bool {
	return u.Facing == nil && u.Flash == nil && u.Rotation == nil
}

// Since returns the keys of u that are absent from prev or hold a different
// value there.
func (u CameraUpdate) Since(prev CameraUpdate) CameraUpdate {
	var out CameraUpdate
	if u.Facing != nil && (prev.Facing == nil || *prev.Facing != *u.Facing) {
		out.Facing = u.Facing
	}
	if u.Flash != nil && (prev.Flash == nil || *prev.Flash != *u.Flash) {
		out.Flash = u.Flash
	}
	if u.Rotation != nil && (prev.Rotation == nil || *prev.Rotation != *u.Rotation) {
		out.Rotation = u.Rotation
	}
	return out
}

// CameraTarget is the part of the camera controller a config reload drives.
type CameraTarget interface {
	SetFacing(f camera.Facing)
	SetFlash(mode camera.FlashMode) error
	SetDisplayRotation(r camera.Rotation)
}

// CameraReloader applies config file edits to a camera. Only keys edited
// since the previous load are applied, so settings changed from the command
// line, the environment or the API survive unrelated edits.
type CameraReloader struct {
	target CameraTarget
	logger logging.Logger

	mu   sync.Mutex
	last CameraUpdate
}

// NewCameraReloader starts from initial, the [camera] keys the file held
// when the daemon started.
func NewCameraReloader(target CameraTarget, initial CameraUpdate, logger logging.Logger) *CameraReloader {
	if logger == nil {
		logger = logging.GetLogger("config")
	}
	return &CameraReloader{target: target, logger: logger, last: initial}
}

// Apply is a Watcher reload handler.
func (r *CameraReloader) Apply(u CameraUpdate) {
	r.mu.Lock()
	changed := u.Since(r.last)
	r.last = u
	r.mu.Unlock()

	if changed.Empty() {
		r.logger.Debug("Config reloaded, camera settings unchanged")
		return
	}

	if changed.Flash != nil {
		mode, _ := camera.ParseFlashMode(*changed.Flash)
		r.logger.Info("Applying flash from config", "flash", mode)
		if err := r.target.SetFlash(mode); err != nil {
			r.logger.Warn("Failed to apply flash from config", "error", err)
		}
	}
	if changed.Rotation != nil {
		rot, _ := camera.RotationFromDegrees(*changed.Rotation)
		r.logger.Info("Applying display rotation from config", "rotation", *changed.Rotation)
		r.target.SetDisplayRotation(rot)
	}
	if changed.Facing != nil {
		facing, _ := camera.ParseFacing(*changed.Facing)
		r.logger.Info("Applying facing from config", "facing", facing)
		r.target.SetFacing(facing)
	}
}
