package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	// Register decoders for accepted input formats.
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

// ErrNotAnImage is returned when the uploaded bytes do not decode as a
// supported image format.
var ErrNotAnImage = errors.New("media: not a decodable image")

const (
	// ThumbMaxDim caps the longest side of generated thumbnails.
	ThumbMaxDim = 512

	fullQuality  = 90
	thumbQuality = 85
)

// JPEGNormalizer re-encodes uploads to JPEG using the standard library
// codecs and x/image scaling. It is stateless and safe for concurrent use.
type JPEGNormalizer struct{}

// NewJPEGNormalizer creates a JPEGNormalizer.
func NewJPEGNormalizer() *JPEGNormalizer {
	return &JPEGNormalizer{}
}

// Validate decodes only the image header. It never reads the pixel data,
// so it is cheap enough to run before any bytes touch disk.
func (n *JPEGNormalizer) Validate(raw []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ErrNotAnImage
	}
	return nil
}

// Normalize decodes raw, flattens it onto an opaque RGBA canvas (dropping
// alpha and palette), and encodes the full image and thumbnail as JPEG.
func (n *JPEGNormalizer) Normalize(raw []byte) (*Normalized, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}

	flat := flatten(src)
	bounds := flat.Bounds()

	var full bytes.Buffer
	if err := jpeg.Encode(&full, flat, &jpeg.Options{Quality: fullQuality}); err != nil {
		return nil, fmt.Errorf("encode full image: %w", err)
	}

	var thumb bytes.Buffer
	if err := jpeg.Encode(&thumb, resizeToFit(flat, ThumbMaxDim), &jpeg.Options{Quality: thumbQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	return &Normalized{
		Full:   full.Bytes(),
		Thumb:  thumb.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// flatten draws src onto an opaque white canvas, producing 3-channel color
// regardless of the source color model.
func flatten(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	return dst
}

// resizeToFit scales src so its longer side is at most maxDim, preserving
// aspect ratio. Images already within bounds are returned unchanged.
func resizeToFit(src *image.RGBA, maxDim int) image.Image {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = h * maxDim / w
	} else {
		newW = w * maxDim / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
