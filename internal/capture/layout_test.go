package capture

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionSlug(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)

	t.Run("client value sanitized", func(t *testing.T) {
		assert.Equal(t, "kitchen_table", SessionSlug("Kitchen Table", now))
	})

	t.Run("empty falls back to dated default", func(t *testing.T) {
		assert.Equal(t, "2024-01-01_session", SessionSlug("", now))
	})

	t.Run("unsanitizable falls back to dated default", func(t *testing.T) {
		assert.Equal(t, "2024-01-01_session", SessionSlug("..", now))
	})
}

func TestNewStem_Format(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stem := NewStem(now)

	assert.Regexp(t, regexp.MustCompile(`^20240101T000000Z-[0-9a-f]{8}$`), stem)
}

func TestNewStem_Uniqueness(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		stem := NewStem(now)
		if seen[stem] {
			t.Fatalf("duplicate stem generated: %s", stem)
		}
		seen[stem] = true
	}
}

func TestNewStem_LexicographicOrderMatchesTime(t *testing.T) {
	earlier := NewStem(time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC))
	later := NewStem(time.Date(2024, 1, 1, 0, 0, 2, 0, time.UTC))
	assert.Less(t, earlier, later)
}

func TestFilenames(t *testing.T) {
	stem := "20240101T000000Z-a1b2c3d4"
	assert.Equal(t, stem+".jpg", ImageFilename(stem))
	assert.Equal(t, stem+"_512.jpg", ThumbFilename(stem))
	assert.Equal(t, stem+".json", MetaFilename(stem))
}
