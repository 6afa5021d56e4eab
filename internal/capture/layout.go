package capture

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/homage/capture-api/internal/media"
	"github.com/homage/capture-api/internal/slug"
)

// stemTimeFormat is fixed-width UTC to the second, so lexicographic order
// over stems matches chronological order.
const stemTimeFormat = "20060102T150405Z"

// SessionSlug sanitizes the client-supplied session identifier, falling
// back to a date-stamped default when the client sent nothing usable.
func SessionSlug(requested string, now time.Time) string {
	if s := slug.Make(requested); s != "" {
		return s
	}
	return now.UTC().Format("2006-01-02") + "_session"
}

// NewStem generates a fresh upload stem: the UTC timestamp plus an 8-char
// random hex suffix. The suffix keeps concurrent uploads within the same
// second distinct; collision means silent overwrite, not corruption.
func NewStem(now time.Time) string {
	ts := now.UTC().Format(stemTimeFormat)
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		// Fallback to timestamp only if crypto/rand fails
		return ts
	}
	return ts + "-" + hex.EncodeToString(random)
}

// ImageFilename returns the full-resolution JPEG name for a stem.
func ImageFilename(stem string) string {
	return stem + ".jpg"
}

// ThumbFilename returns the thumbnail JPEG name for a stem.
func ThumbFilename(stem string) string {
	return fmt.Sprintf("%s_%d.jpg", stem, media.ThumbMaxDim)
}

// MetaFilename returns the sidecar record name for a stem.
func MetaFilename(stem string) string {
	return stem + ".json"
}
