// Package imaging derives the bounded-size display copy from an uploaded
// original. The original bytes are never modified; the digest is computed
// over them before any re-encoding here.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"picproof/internal/domain"
)

// WebCopier re-encodes originals into JPEG display copies whose long edge is
// capped at maxSide. Images already within bounds are re-encoded but never
// upscaled.
type WebCopier struct {
	maxSide int
	quality int
}

func NewWebCopier(maxSide, quality int) *WebCopier {
	return &WebCopier{maxSide: maxSide, quality: quality}
}

func (w *WebCopier) MakeWebCopy(original []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(original))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrImageInvalid, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	longEdge := width
	if height > longEdge {
		longEdge = height
	}

	slog.Debug("imaging: decoded original",
		"format", format, "width", width, "height", height)

	if longEdge > w.maxSide {
		scale := float64(w.maxSide) / float64(longEdge)
		targetW := int(float64(width) * scale)
		targetH := int(float64(height) * scale)
		if targetW < 1 {
			targetW = 1
		}
		if targetH < 1 {
			targetH = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, xdraw.Over, nil)
		img = scaled

		slog.Debug("imaging: downscaled",
			"target_width", targetW, "target_height", targetH)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: w.quality}); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", domain.ErrImageInvalid, err)
	}
	return buf.Bytes(), nil
}
