// Package photos writes captured stills to disk.
package photos

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"

	"github.com/smazurov/stillcam/internal/camera"
	"github.com/smazurov/stillcam/internal/logging"
)

// ErrEmptyPhoto is returned when a photo carries no image data.
var ErrEmptyPhoto = errors.New("photo has no image data")

const jpegQuality = 92

// Options configures a Saver.
type Options struct {
	Dir string
	// Upright rotates the pixels by the photo's rotation before writing.
	// Otherwise the camera's bytes are written unchanged.
	Upright bool
	Clock   clock.Clock
	Logger  logging.Logger
}

// Saver persists photos as JPEG files named after their capture time and
// request ID.
type Saver struct {
	dir     string
	upright bool
	clock   clock.Clock
	logger  logging.Logger
}

// NewSaver creates dir if needed and returns a Saver writing into it.
func NewSaver(opts Options) (*Saver, error) {
	if opts.Dir == "" {
		return nil, errors.New("photo directory is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("photos")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}
	return &Saver{dir: opts.Dir, upright: opts.Upright, clock: opts.Clock, logger: opts.Logger}, nil
}

// Dir returns the output directory.
func (s *Saver) Dir() string {
	return s.dir
}

// Save writes p and returns the file path. The file appears atomically.
func (s *Saver) Save(p camera.Photo) (string, error) {
	if len(p.Data) == 0 {
		return "", ErrEmptyPhoto
	}

	data := p.Data
	if s.upright && p.Rotation%360 != 0 {
		rotated, err := Upright(p.Data, p.Rotation)
		if err != nil {
			return "", fmt.Errorf("failed to rotate photo %d: %w", p.RequestID, err)
		}
		data = rotated
	}

	name := fmt.Sprintf("IMG_%s_%04d.jpg", s.clock.Now().Format("20060102_150405.000"), p.RequestID)
	path := filepath.Join(s.dir, name)
	if err := writeFile(path, data); err != nil {
		return "", err
	}

	s.logger.Info("Photo saved", "path", path, "request_id", p.RequestID, "bytes", len(data), "rotation", p.Rotation)
	return path, nil
}

// Upright decodes data, rotates it clockwise by degrees and re-encodes it
// as JPEG.
func Upright(data []byte, degrees int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var out image.Image
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		out = img
	case 90:
		out = imaging.Rotate270(img)
	case 180:
		out = imaging.Rotate180(img)
	case 270:
		out = imaging.Rotate90(img)
	default:
		return nil, fmt.Errorf("rotation %d is not a multiple of 90", degrees)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".photo-*")
	if err != nil {
		return fmt.Errorf("failed to create photo file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write photo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write photo: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write photo: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write photo: %w", err)
	}
	return nil
}
