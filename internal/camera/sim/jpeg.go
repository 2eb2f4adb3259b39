package sim

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/smazurov/stillcam/internal/camera"
)

// JPEGFactory renders a solid frame with a white marker in the top left
// corner of the sensor image, so the marker shows which way is up after
// rotation. The frame keeps the aspect ratio of the still size with its
// long side scaled to maxSide. The fill color varies with the request tag.
func JPEGFactory(maxSide int) ImageFactory {
	return func(req camera.CaptureRequest, size camera.Size) ([]byte, error) {
		w, h := scaled(size, maxSide)
		hue := uint8(req.Tag * 47)
		img := imaging.New(w, h, color.NRGBA{R: hue, G: 96, B: 255 - hue, A: 255})

		marker := imaging.New(max(w/8, 1), max(h/8, 1), color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		img = imaging.Paste(img, marker, image.Pt(w/16, h/16))

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

func scaled(size camera.Size, maxSide int) (int, int) {
	w, h := size.Width, size.Height
	if w <= 0 || h <= 0 {
		return maxSide, maxSide
	}
	if w <= maxSide && h <= maxSide {
		return w, h
	}
	if w >= h {
		return maxSide, max(h*maxSide/w, 1)
	}
	return max(w*maxSide/h, 1), maxSide
}
