package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/homage/capture-api/internal/capture"
	"github.com/homage/capture-api/internal/storage"
)

// defaultRecentLimit applies when /recent is called without a limit.
const defaultRecentLimit = 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service        *capture.Service
	root           storage.Root
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes caps the accepted upload body size. Zero disables
// the cap.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		h.maxUploadBytes = n
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *capture.Service, root storage.Root, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:        service,
		root:           root,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: 32 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Index handles GET / with a minimal operator landing page.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<html>
  <head><title>Capture API</title></head>
  <body style="font-family: system-ui; margin: 2rem;">
    <h1>Capture API is live</h1>
    <p>data dir: <code>%s</code></p>
    <ul>
      <li><a href="/health">/health</a></li>
      <li><a href="/metadata-schema">/metadata-schema</a></li>
      <li><a href="/recent">/recent</a></li>
      <li><a href="/files">/files</a></li>
    </ul>
  </body>
</html>
`, h.root.Dir())
}

// Health handles GET /health and GET /healthz requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		DataDir: h.root.Dir(),
		Subdirs: h.root.SubdirPaths(),
	})
}

// Schema handles GET /metadata-schema requests.
func (h *Handlers) Schema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, uploadSchema)
}

// Recent handles GET /recent?limit=N requests.
func (h *Handlers) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer", "VALIDATION_ERROR")
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, RecentResponse{Items: h.service.Recent(limit)})
}

// Upload handles POST /upload multipart requests.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "request too large or malformed: "+err.Error(), "INVALID_FORM")
		return
	}

	// The binary part is "photo"; "file" is accepted as a legacy alias.
	file, header, err := r.FormFile("photo")
	if err != nil {
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'photo' part in form", "EMPTY_UPLOAD")
		return
	}
	defer func() { _ = file.Close() }()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload: "+err.Error(), "INVALID_FORM")
		return
	}

	fields, err := parseUploadFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	if err := h.validator.Struct(fields); err != nil {
		h.logger.Warn("upload validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	capturedUTC, err := formTime(r, "captured_utc")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input := capture.UploadInput{
		Photo:         raw,
		Filename:      header.Filename,
		Session:       fields.Session,
		CapturedUTC:   capturedUTC,
		CapturedLocal: r.FormValue("captured_local"),
		GPS: capture.GPS{
			Lat:      *fields.GPSLat,
			Lon:      *fields.GPSLon,
			Altitude: fields.GPSAltitude,
			Accuracy: fields.GPSAccuracy,
		},
		Orientation: capture.Orientation{
			Heading: fields.Heading,
			Pitch:   fields.Pitch,
			Roll:    fields.Roll,
		},
		Device: capture.Device{
			Model:         r.FormValue("device_model"),
			OS:            r.FormValue("device_os"),
			FocalLengthMM: fields.FocalLengthMM,
			ISO:           fields.ISO,
			ExposureS:     fields.ExposureS,
		},
		Labels: capture.Labels{
			Scene:      r.MultipartForm.Value["labels_scene"],
			Object:     r.MultipartForm.Value["labels_object"],
			Conditions: r.MultipartForm.Value["labels_conditions"],
			Puzzle:     r.MultipartForm.Value["labels_puzzle"],
		},
		QR: capture.QR{
			Detected: r.FormValue("qr_detected") == "true" || r.FormValue("qr_detected") == "1",
			Content:  r.FormValue("qr_content"),
		},
		OCRCandidates: r.MultipartForm.Value["ocr_text"],
		Notes:         r.FormValue("notes"),
	}

	result, err := h.service.Upload(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, capture.ErrEmptyUpload):
			writeError(w, http.StatusBadRequest, "upload body is empty", "EMPTY_UPLOAD")
		case errors.Is(err, capture.ErrInvalidImage):
			writeError(w, http.StatusBadRequest, "upload is not a decodable image", "INVALID_IMAGE")
		default:
			h.logger.Error("upload failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to store upload", "STORAGE_ERROR")
		}
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		OK:          true,
		Session:     result.Session,
		SessionDir:  result.SessionDir,
		Image:       result.Image,
		Thumb:       result.Thumb,
		Meta:        result.Meta,
		URLFull:     result.URLFull,
		URLThumb:    result.URLThumb,
		ChecksumMD5: result.ChecksumMD5,
	})
}

// ListFiles handles GET /files requests with a flat recursive listing of
// the raw tree, as session-relative slash paths.
func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	files := []string{}
	err := filepath.WalkDir(h.root.Raw(), func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(h.root.Raw(), p)
		if relErr != nil {
			return relErr
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		h.logger.Error("file listing failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list files", "STORAGE_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, FilesResponse{Count: len(files), Files: files})
}

// GetFile handles GET /files/{path...} requests, serving stored files from
// the raw tree only. Traversal sequences and absolute paths are rejected
// before touching the filesystem.
func (h *Handlers) GetFile(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	if !safeRelPath(rel) {
		writeError(w, http.StatusBadRequest, "invalid filename", "INVALID_FILENAME")
		return
	}

	cleaned := path.Clean(rel)
	if cleaned != "raw" && !strings.HasPrefix(cleaned, "raw/") {
		writeError(w, http.StatusNotFound, "not found", "NOT_FOUND")
		return
	}

	full := filepath.Join(h.root.Dir(), filepath.FromSlash(cleaned))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "not found", "NOT_FOUND")
		return
	}

	f, err := os.Open(full) // #nosec G304 - path validated against the raw tree above
	if err != nil {
		writeError(w, http.StatusNotFound, "not found", "NOT_FOUND")
		return
	}
	defer func() { _ = f.Close() }()

	contentType := mime.TypeByExtension(filepath.Ext(full))
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeContent(w, r, filepath.Base(full), info.ModTime(), f)
}

// safeRelPath rejects traversal sequences, absolute paths, and
// backslash-separated names before any path math happens.
func safeRelPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}

// parseUploadFields converts the string form values into typed fields.
func parseUploadFields(r *http.Request) (*uploadFields, error) {
	f := &uploadFields{Session: r.FormValue("session")}

	var err error
	if f.GPSLat, err = formFloat(r, "gps_lat"); err != nil {
		return nil, err
	}
	if f.GPSLon, err = formFloat(r, "gps_lon"); err != nil {
		return nil, err
	}
	if f.GPSAltitude, err = formFloat(r, "gps_alt"); err != nil {
		return nil, err
	}
	if f.GPSAccuracy, err = formFloat(r, "gps_accuracy"); err != nil {
		return nil, err
	}
	if f.Heading, err = formFloat(r, "heading"); err != nil {
		return nil, err
	}
	if f.Pitch, err = formFloat(r, "pitch"); err != nil {
		return nil, err
	}
	if f.Roll, err = formFloat(r, "roll"); err != nil {
		return nil, err
	}
	if f.FocalLengthMM, err = formFloat(r, "focal_length"); err != nil {
		return nil, err
	}
	if f.ExposureS, err = formFloat(r, "exposure_time"); err != nil {
		return nil, err
	}
	if f.ISO, err = formInt(r, "iso"); err != nil {
		return nil, err
	}
	return f, nil
}

// formFloat parses an optional float form value; absent fields yield nil.
func formFloat(r *http.Request, key string) (*float64, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("field %s: not a number", key)
	}
	return &f, nil
}

// formInt parses an optional integer form value; absent fields yield nil.
func formInt(r *http.Request, key string) (*int, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("field %s: not an integer", key)
	}
	return &n, nil
}

// formTime parses an optional RFC3339 form value; absent fields yield nil.
func formTime(r *http.Request, key string) (*time.Time, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("field %s: not an RFC3339 timestamp", key)
	}
	return &t, nil
}

// uploadSchema is the static field catalog served by /metadata-schema.
var uploadSchema = SchemaResponse{
	FilePart: []string{"photo", "file"},
	Fields: []SchemaField{
		{Name: "session", Type: "string", Description: "session identifier; defaults to a dated session"},
		{Name: "captured_utc", Type: "rfc3339", Description: "capture time in UTC"},
		{Name: "captured_local", Type: "string", Description: "capture time in the device's local zone"},
		{Name: "gps_lat", Type: "float", Required: true, Description: "latitude in decimal degrees"},
		{Name: "gps_lon", Type: "float", Required: true, Description: "longitude in decimal degrees"},
		{Name: "gps_alt", Type: "float", Description: "altitude in meters"},
		{Name: "gps_accuracy", Type: "float", Description: "horizontal accuracy in meters"},
		{Name: "heading", Type: "float", Description: "compass heading in degrees [0,360)"},
		{Name: "pitch", Type: "float", Description: "device pitch in degrees"},
		{Name: "roll", Type: "float", Description: "device roll in degrees"},
		{Name: "device_model", Type: "string"},
		{Name: "device_os", Type: "string"},
		{Name: "focal_length", Type: "float", Description: "focal length in millimeters"},
		{Name: "iso", Type: "int"},
		{Name: "exposure_time", Type: "float", Description: "exposure time in seconds"},
		{Name: "labels_scene", Type: "string", Repeated: true},
		{Name: "labels_object", Type: "string", Repeated: true},
		{Name: "labels_conditions", Type: "string", Repeated: true},
		{Name: "labels_puzzle", Type: "string", Repeated: true},
		{Name: "qr_detected", Type: "bool"},
		{Name: "qr_content", Type: "string"},
		{Name: "ocr_text", Type: "string", Repeated: true},
		{Name: "notes", Type: "string"},
	},
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
