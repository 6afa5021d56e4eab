package capture

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Feed limit bounds; requested limits are clamped into this range.
const (
	MinFeedLimit = 1
	MaxFeedLimit = 100
)

// Summary is one feed entry derived from a stored Record. URL fields are
// null when the underlying filename is absent from the record.
type Summary struct {
	Session     string     `json:"session"`
	Meta        string     `json:"meta"`
	Image       string     `json:"image"`
	Thumb       string     `json:"thumb"`
	Labels      Labels     `json:"labels"`
	CapturedUTC *time.Time `json:"captured_utc"`
	GPS         GPS        `json:"gps"`
	URLFull     *string    `json:"url_full"`
	URLThumb    *string    `json:"url_thumb"`
}

// Recent scans every metadata file under raw/ and returns up to limit
// summaries, newest first. Individual records that fail to parse are
// skipped and logged; they never abort the scan. The whole feed is a full
// rescan per call, which is fine at data-collection scale.
func (s *Service) Recent(limit int) []Summary {
	if limit < MinFeedLimit {
		limit = MinFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	sessions, err := os.ReadDir(s.root.Raw())
	if err != nil {
		s.logger.Warn("feed scan failed", slog.String("error", err.Error()))
		return []Summary{}
	}

	items := make([]Summary, 0, limit)
	for _, sess := range sessions {
		if !sess.IsDir() {
			continue
		}
		items = append(items, s.scanSession(sess.Name())...)
	}

	// Image filenames are timestamp-prefixed, so descending filename order
	// is reverse-chronological order.
	sort.Slice(items, func(i, j int) bool {
		return items[i].Image > items[j].Image
	})

	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// scanSession collects summaries for every parseable record in one
// session directory.
func (s *Service) scanSession(session string) []Summary {
	dir := filepath.Join(s.root.Raw(), session)
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("session scan failed",
			slog.String("session", session),
			slog.String("error", err.Error()),
		)
		return nil
	}

	var items []Summary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		body, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			s.logger.Warn("metadata unreadable",
				slog.String("session", session),
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		var rec Record
		if err := json.Unmarshal(body, &rec); err != nil {
			// Corrupt or partially written record; skip it, keep the feed.
			s.logger.Warn("metadata unparseable",
				slog.String("session", session),
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		items = append(items, Summary{
			Session:     session,
			Meta:        entry.Name(),
			Image:       rec.ImageFilename,
			Thumb:       rec.ThumbFilename,
			Labels:      rec.Labels,
			CapturedUTC: rec.CapturedUTC,
			GPS:         rec.GPS,
			URLFull:     optionalFileURL(session, rec.ImageFilename),
			URLThumb:    optionalFileURL(session, rec.ThumbFilename),
		})
	}
	return items
}

func optionalFileURL(session, name string) *string {
	if name == "" {
		return nil
	}
	url := FileURL(session, name)
	return &url
}
