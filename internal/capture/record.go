// Package capture implements the photo upload pipeline: session layout,
// image normalization and persistence, the JSON sidecar record, and the
// recent-uploads feed assembled from stored records.
package capture

import "time"

// GPS holds the capture position. Latitude and longitude are always
// present; the rest is optional.
type GPS struct {
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Altitude *float64 `json:"altitude,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// Orientation holds the device attitude at capture time, in degrees.
type Orientation struct {
	Heading *float64 `json:"heading,omitempty"`
	Pitch   *float64 `json:"pitch,omitempty"`
	Roll    *float64 `json:"roll,omitempty"`
}

// Device describes the capturing hardware.
type Device struct {
	Model         string   `json:"model,omitempty"`
	OS            string   `json:"os,omitempty"`
	FocalLengthMM *float64 `json:"focal_length_mm,omitempty"`
	ISO           *int     `json:"iso,omitempty"`
	ExposureS     *float64 `json:"exposure_time_s,omitempty"`
}

// Labels groups the client-supplied label sets. Every element is
// slug-sanitized before persistence.
type Labels struct {
	Scene      []string `json:"scene"`
	Object     []string `json:"object"`
	Conditions []string `json:"conditions"`
	Puzzle     []string `json:"puzzle"`
}

// QR holds the client-side QR detection result.
type QR struct {
	Detected bool   `json:"detected"`
	Content  string `json:"content,omitempty"`
}

// Record is the JSON sidecar persisted next to each image. Its presence is
// what makes an upload visible to the feed; images without a record are
// treated as orphans and ignored.
type Record struct {
	Session       string      `json:"session"`
	ImageFilename string      `json:"image_filename"`
	ThumbFilename string      `json:"thumb_filename"`
	MetaFilename  string      `json:"meta_filename"`
	CapturedUTC   *time.Time  `json:"captured_utc,omitempty"`
	CapturedLocal string      `json:"captured_local,omitempty"`
	GPS           GPS         `json:"gps"`
	Orientation   Orientation `json:"orientation"`
	Device        Device      `json:"device"`
	Labels        Labels      `json:"labels"`
	QR            QR          `json:"qr"`
	OCRCandidates []string    `json:"ocr_candidates"`
	Notes         string      `json:"notes,omitempty"`
	// ChecksumMD5 is the MD5 of the bytes the client sent, computed before
	// any re-encoding.
	ChecksumMD5 string    `json:"checksum_md5"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
