// Package server provides the HTTP surface of the capture API: handlers,
// middleware, routes, and DTOs separated from domain types.
package server

import "github.com/homage/capture-api/internal/capture"

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// DataDir is the resolved storage root.
	DataDir string `json:"data_dir"`
	// Subdirs are the fixed subdirectories under the root.
	Subdirs []string `json:"subdirs"`
}

// UploadResponse is the HTTP response after a successful upload.
type UploadResponse struct {
	OK bool `json:"ok"`
	// Session is the sanitized session slug the upload landed in.
	Session string `json:"session"`
	// SessionDir is the root-relative session directory.
	SessionDir string `json:"session_dir"`
	// Image, Thumb and Meta are the stored filenames of the triplet.
	Image string `json:"image"`
	Thumb string `json:"thumb"`
	Meta  string `json:"meta"`
	// URLFull and URLThumb are retrieval URLs under /files/.
	URLFull  string `json:"url_full"`
	URLThumb string `json:"url_thumb"`
	// ChecksumMD5 is the MD5 of the bytes the client sent.
	ChecksumMD5 string `json:"checksum_md5"`
}

// RecentResponse is the HTTP response for the recent-uploads feed.
type RecentResponse struct {
	Items []capture.Summary `json:"items"`
}

// FilesResponse is the HTTP response for the flat file listing.
type FilesResponse struct {
	Count int      `json:"count"`
	Files []string `json:"files"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// SchemaField describes one upload form field for client form generation.
type SchemaField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Repeated    bool   `json:"repeated,omitempty"`
	Description string `json:"description,omitempty"`
}

// SchemaResponse is the static description of the upload form.
type SchemaResponse struct {
	// FilePart names the multipart binary field (with accepted alias).
	FilePart []string      `json:"file_part"`
	Fields   []SchemaField `json:"fields"`
}

// uploadFields is the validated subset of the multipart form. Values are
// parsed from strings before validation; pointer fields are nil when the
// client omitted them.
type uploadFields struct {
	Session       string   `validate:"omitempty,max=128"`
	GPSLat        *float64 `validate:"required,latitude"`
	GPSLon        *float64 `validate:"required,longitude"`
	GPSAltitude   *float64
	GPSAccuracy   *float64 `validate:"omitempty,gte=0"`
	Heading       *float64 `validate:"omitempty,gte=0,lt=360"`
	Pitch         *float64 `validate:"omitempty,gte=-180,lte=180"`
	Roll          *float64 `validate:"omitempty,gte=-180,lte=180"`
	FocalLengthMM *float64 `validate:"omitempty,gt=0"`
	ISO           *int     `validate:"omitempty,gt=0"`
	ExposureS     *float64 `validate:"omitempty,gt=0"`
}
