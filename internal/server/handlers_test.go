package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homage/capture-api/internal/capture"
	"github.com/homage/capture-api/internal/media"
	"github.com/homage/capture-api/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestHandlers(t *testing.T) (*Handlers, storage.Root) {
	t.Helper()
	root := storage.NewRoot(t.TempDir())
	require.NoError(t, root.EnsureSubdirs())
	svc := capture.NewService(root, media.NewJPEGNormalizer(), nil, testLogger())
	return NewHandlers(svc, root, testLogger()), root
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// multipartUpload builds a POST /upload request with the given binary part
// name and repeated form fields.
func multipartUpload(t *testing.T, partName string, photo []byte, fields map[string][]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if photo != nil {
		part, err := mw.CreateFormFile(partName, "photo.jpg")
		require.NoError(t, err)
		_, err = part.Write(photo)
		require.NoError(t, err)
	}
	for key, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(key, v))
		}
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeJSON[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	h, root := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[HealthResponse](t, rec.Body)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, root.Dir(), resp.DataDir)
	assert.Len(t, resp.Subdirs, 3)
}

func TestSchema(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := httptest.NewRecorder()
	h.Schema(rec, httptest.NewRequest(http.MethodGet, "/metadata-schema", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[SchemaResponse](t, rec.Body)
	assert.Contains(t, resp.FilePart, "photo")

	var latRequired bool
	for _, f := range resp.Fields {
		if f.Name == "gps_lat" {
			latRequired = f.Required
		}
	}
	assert.True(t, latRequired)
}

func TestUpload_Success(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := NewRouter(h, testLogger(), DefaultConfig())

	req := multipartUpload(t, "photo", testJPEG(t, 800, 600), map[string][]string{
		"gps_lat":      {"37.0"},
		"gps_lon":      {"-122.0"},
		"captured_utc": {"2024-01-01T00:00:00Z"},
		"labels_scene": {"Living Room", "Indoor"},
		"notes":        {"test shot"},
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeJSON[UploadResponse](t, rec.Body)

	assert.True(t, resp.OK)
	assert.True(t, strings.HasPrefix(resp.SessionDir, "raw/"), resp.SessionDir)
	assert.True(t, strings.HasSuffix(resp.Image, ".jpg"))
	assert.True(t, strings.HasSuffix(resp.Thumb, "_512.jpg"))
	assert.NotEmpty(t, resp.ChecksumMD5)

	// Round-trip: both URLs serve decodable JPEGs.
	fullRec := httptest.NewRecorder()
	router.ServeHTTP(fullRec, httptest.NewRequest(http.MethodGet, resp.URLFull, nil))
	require.Equal(t, http.StatusOK, fullRec.Code)
	full, err := jpeg.Decode(bytes.NewReader(fullRec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 800, full.Bounds().Dx())

	thumbRec := httptest.NewRecorder()
	router.ServeHTTP(thumbRec, httptest.NewRequest(http.MethodGet, resp.URLThumb, nil))
	require.Equal(t, http.StatusOK, thumbRec.Code)
	thumb, err := jpeg.Decode(bytes.NewReader(thumbRec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 512, thumb.Bounds().Dx())
	assert.LessOrEqual(t, thumb.Bounds().Dy(), 512)
}

func TestUpload_FilePartAlias(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := multipartUpload(t, "file", testJPEG(t, 64, 64), map[string][]string{
		"gps_lat": {"1.0"},
		"gps_lon": {"2.0"},
	})
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestUpload_MissingPhotoPart(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := multipartUpload(t, "photo", nil, map[string][]string{
		"gps_lat": {"1.0"},
		"gps_lon": {"2.0"},
	})
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EMPTY_UPLOAD", decodeJSON[ErrorResponse](t, rec.Body).Code)
}

func TestUpload_EmptyPhotoPart(t *testing.T) {
	h, root := newTestHandlers(t)

	req := multipartUpload(t, "photo", []byte{}, map[string][]string{
		"gps_lat": {"1.0"},
		"gps_lon": {"2.0"},
	})
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EMPTY_UPLOAD", decodeJSON[ErrorResponse](t, rec.Body).Code)
	assertRawEmpty(t, root)
}

func TestUpload_NonImageBytes(t *testing.T) {
	h, root := newTestHandlers(t)

	req := multipartUpload(t, "photo", []byte("plain text pretending to be a photo"), map[string][]string{
		"gps_lat": {"1.0"},
		"gps_lon": {"2.0"},
	})
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_IMAGE", decodeJSON[ErrorResponse](t, rec.Body).Code)
	assertRawEmpty(t, root)
}

func TestUpload_MissingGPS(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := multipartUpload(t, "photo", testJPEG(t, 64, 64), nil)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeJSON[ErrorResponse](t, rec.Body).Code)
}

func TestUpload_MalformedNumberField(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := multipartUpload(t, "photo", testJPEG(t, 64, 64), map[string][]string{
		"gps_lat": {"north-ish"},
		"gps_lon": {"2.0"},
	})
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeJSON[ErrorResponse](t, rec.Body).Code)
}

func TestUpload_OutOfRangeLatitude(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := multipartUpload(t, "photo", testJPEG(t, 64, 64), map[string][]string{
		"gps_lat": {"123.0"},
		"gps_lon": {"2.0"},
	})
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeJSON[ErrorResponse](t, rec.Body).Code)
}

func TestUpload_BadTimestamp(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := multipartUpload(t, "photo", testJPEG(t, 64, 64), map[string][]string{
		"gps_lat":      {"1.0"},
		"gps_lon":      {"2.0"},
		"captured_utc": {"yesterday"},
	})
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeJSON[ErrorResponse](t, rec.Body).Code)
}

func assertRawEmpty(t *testing.T, root storage.Root) {
	t.Helper()
	entries, err := os.ReadDir(root.Raw())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecent_Endpoint(t *testing.T) {
	h, _ := newTestHandlers(t)

	for i := 0; i < 2; i++ {
		req := multipartUpload(t, "photo", testJPEG(t, 32, 32), map[string][]string{
			"gps_lat": {"1.0"},
			"gps_lon": {"2.0"},
		})
		rec := httptest.NewRecorder()
		h.Upload(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.Recent(rec, httptest.NewRequest(http.MethodGet, "/recent?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[RecentResponse](t, rec.Body)
	assert.Len(t, resp.Items, 1)

	rec = httptest.NewRecorder()
	h.Recent(rec, httptest.NewRequest(http.MethodGet, "/recent?limit=banana", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFiles(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := multipartUpload(t, "photo", testJPEG(t, 32, 32), map[string][]string{
		"gps_lat": {"1.0"},
		"gps_lon": {"2.0"},
		"session": {"bench"},
	})
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.ListFiles(rec, httptest.NewRequest(http.MethodGet, "/files", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeJSON[FilesResponse](t, rec.Body)
	assert.Equal(t, 3, resp.Count, "image, thumbnail, metadata")
	for _, f := range resp.Files {
		assert.True(t, strings.HasPrefix(f, "bench/"), f)
	}
}

func TestGetFile_TraversalRejected(t *testing.T) {
	h, _ := newTestHandlers(t)

	for _, p := range []string{
		"../../etc/passwd",
		"raw/../../etc/passwd",
		"/etc/passwd",
		"raw\\..\\secrets",
	} {
		req := httptest.NewRequest(http.MethodGet, "/files/x", nil)
		req.SetPathValue("path", p)
		rec := httptest.NewRecorder()
		h.GetFile(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code, "path %q", p)
		assert.Equal(t, "INVALID_FILENAME", decodeJSON[ErrorResponse](t, rec.Body).Code)
	}
}

func TestGetFile_TraversalRejectedThroughRouter(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := NewRouter(h, testLogger(), DefaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/files/..%2f..%2fetc%2fpasswd", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetFile_OutsideRawTree(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/files/processed/x.jpg", nil)
	req.SetPathValue("path", "processed/x.jpg")
	rec := httptest.NewRecorder()
	h.GetFile(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeJSON[ErrorResponse](t, rec.Body).Code)
}

func TestGetFile_Missing(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/files/raw/nope/missing.jpg", nil)
	req.SetPathValue("path", "raw/nope/missing.jpg")
	rec := httptest.NewRecorder()
	h.GetFile(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
