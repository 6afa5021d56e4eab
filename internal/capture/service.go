package capture

import (
	"bytes"
	"context"
	"crypto/md5" // #nosec G501 - checksum identifies client bytes, not a security boundary
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/homage/capture-api/internal/media"
	"github.com/homage/capture-api/internal/slug"
	"github.com/homage/capture-api/internal/storage"
)

// Static errors for upload validation and retrieval.
var (
	// ErrEmptyUpload is returned for a zero-length upload body.
	ErrEmptyUpload = errors.New("capture: empty upload body")
	// ErrInvalidImage is returned when the body does not decode as an image.
	ErrInvalidImage = errors.New("capture: upload is not a valid image")
	// ErrNotFound is returned when a stored file does not exist.
	ErrNotFound = errors.New("capture: not found")
)

// UploadInput carries one upload request into the pipeline: the original
// client bytes plus the parsed form fields.
type UploadInput struct {
	Photo    []byte
	Filename string // client-declared filename, used only for the archive key

	Session       string
	CapturedUTC   *time.Time
	CapturedLocal string
	GPS           GPS
	Orientation   Orientation
	Device        Device
	Labels        Labels
	QR            QR
	OCRCandidates []string
	Notes         string
}

// UploadResult describes a persisted upload.
type UploadResult struct {
	Session     string
	SessionDir  string // root-relative, e.g. "raw/2024-01-01_session"
	Image       string
	Thumb       string
	Meta        string
	URLFull     string
	URLThumb    string
	ChecksumMD5 string
}

// Service orchestrates upload persistence and feed assembly. The storage
// root is resolved once at startup; the service itself holds no other
// mutable state and is safe for concurrent use.
type Service struct {
	root       storage.Root
	normalizer media.Normalizer
	archiver   storage.Archiver
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service.
func NewService(root storage.Root, normalizer media.Normalizer, archiver storage.Archiver, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if archiver == nil {
		archiver = storage.NopArchiver{}
	}
	s := &Service{
		root:       root,
		normalizer: normalizer,
		archiver:   archiver,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload runs the pipeline for one request: validate, normalize, write the
// image/thumbnail/metadata triplet, checksum, and optionally archive the
// original bytes. Validation failures leave no state on disk. The metadata
// write is last; only its success makes the upload visible to the feed.
func (s *Service) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if len(input.Photo) == 0 {
		return nil, ErrEmptyUpload
	}
	if err := s.normalizer.Validate(input.Photo); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	norm, err := s.normalizer.Normalize(input.Photo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	now := s.now()
	session := SessionSlug(input.Session, now)
	dir, err := s.root.SessionDir(session)
	if err != nil {
		return nil, err
	}
	stem := NewStem(now)

	imageName := ImageFilename(stem)
	thumbName := ThumbFilename(stem)
	metaName := MetaFilename(stem)

	// Commit order: full image, thumbnail, metadata last. A failure aborts
	// the remaining steps; earlier files are left behind as orphans, which
	// the feed ignores.
	if err := os.WriteFile(filepath.Join(dir, imageName), norm.Full, 0o640); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, thumbName), norm.Thumb, 0o640); err != nil {
		return nil, fmt.Errorf("write thumbnail: %w", err)
	}

	sum := md5.Sum(input.Photo) // #nosec G401
	record := Record{
		Session:       session,
		ImageFilename: imageName,
		ThumbFilename: thumbName,
		MetaFilename:  metaName,
		CapturedUTC:   input.CapturedUTC,
		CapturedLocal: input.CapturedLocal,
		GPS:           input.GPS,
		Orientation:   input.Orientation,
		Device:        input.Device,
		Labels: Labels{
			Scene:      slug.MakeAll(input.Labels.Scene),
			Object:     slug.MakeAll(input.Labels.Object),
			Conditions: slug.MakeAll(input.Labels.Conditions),
			Puzzle:     slug.MakeAll(input.Labels.Puzzle),
		},
		QR:            input.QR,
		OCRCandidates: nonNil(input.OCRCandidates),
		Notes:         input.Notes,
		ChecksumMD5:   hex.EncodeToString(sum[:]),
		UploadedAt:    now.UTC(),
	}

	body, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaName), body, 0o640); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	s.archiveOriginal(ctx, session, stem, input)

	s.logger.Info("upload stored",
		slog.String("session", session),
		slog.String("stem", stem),
		slog.Int("bytes", len(input.Photo)),
		slog.Int("width", norm.Width),
		slog.Int("height", norm.Height),
	)

	return &UploadResult{
		Session:     session,
		SessionDir:  path.Join("raw", session),
		Image:       imageName,
		Thumb:       thumbName,
		Meta:        metaName,
		URLFull:     FileURL(session, imageName),
		URLThumb:    FileURL(session, thumbName),
		ChecksumMD5: record.ChecksumMD5,
	}, nil
}

// archiveOriginal ships the original client bytes to the configured
// archiver. Failures are logged and never fail the upload.
func (s *Service) archiveOriginal(ctx context.Context, session, stem string, input UploadInput) {
	if !s.archiver.Enabled() {
		return
	}

	ext := filepath.Ext(input.Filename)
	if ext == "" {
		ext = ".bin"
	}
	key := path.Join("raw", session, stem+ext)

	url, err := s.archiver.Put(ctx, key, bytes.NewReader(input.Photo))
	if err != nil {
		s.logger.Warn("archive upload failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("original archived",
		slog.String("key", key),
		slog.String("url", url),
	)
}

// FileURL builds the retrieval URL for a stored file.
func FileURL(session, name string) string {
	return "/files/" + path.Join("raw", session, name)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
