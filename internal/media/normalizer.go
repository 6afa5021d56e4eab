// Package media provides image normalization for uploaded photographs.
// Every accepted input format is re-encoded to JPEG; a thumbnail with the
// longest side capped at ThumbMaxDim accompanies each full image.
package media

// Normalized holds the JPEG outputs for one upload.
type Normalized struct {
	// Full is the full-resolution image, re-encoded as JPEG.
	Full []byte
	// Thumb is the thumbnail JPEG, longest side <= ThumbMaxDim.
	Thumb []byte
	// Width and Height are the dimensions of the full image.
	Width  int
	Height int
}

// Normalizer defines the image normalization capability used by the upload
// pipeline. Implementations must be safe for concurrent use.
type Normalizer interface {
	// Validate performs a cheap structural check (header decode only) and
	// returns ErrNotAnImage when raw does not look like a supported image.
	Validate(raw []byte) error

	// Normalize fully decodes raw, flattens it to 3-channel color, and
	// produces the full-resolution JPEG plus the thumbnail.
	Normalize(raw []byte) (*Normalized, error)
}
