package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Kind classifies a catalog entry.
type Kind string

const (
	KindAudio    Kind = "audio"
	KindService  Kind = "service"
	KindShortcut Kind = "shortcut"
	KindURL      Kind = "url"
)

// tokenField is the top-level pseudo-entry carrying the server sync token.
const tokenField = "lastModified"

// ErrOversized is returned when a catalog payload exceeds the configured cap.
var ErrOversized = errors.New("catalog payload exceeds size limit")

// Entry is one parsed catalog record. Only KindAudio entries become playable
// resources; other kinds belong to external command and shortcut collaborators.
type Entry struct {
	AudioKey       string
	Description    string
	Kind           Kind
	Locator        string
	Extension      string
	GapMs          int
	DurationMs     int
	RingDurationMs int
	PreviousKeys   []string
	NextKeys       []string
}

// IsRemote reports whether the entry's locator is a remote URL.
func (e Entry) IsRemote() bool {
	return IsURL(e.Locator)
}

// IsURL reports whether a locator string names a remote resource.
func IsURL(locator string) bool {
	return strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://")
}

type rawEntry struct {
	Description  string   `json:"description"`
	Type         string   `json:"type"`
	Path         string   `json:"path"`
	Data         string   `json:"data"`
	Ext          string   `json:"ext"`
	Gap          int      `json:"gap"`
	Duration     int      `json:"duration"`
	RingDuration int      `json:"ring_duration"`
	Previous     []string `json:"previous"`
	Next         []string `json:"next"`
}

// Decode parses a catalog payload into an entry map keyed by audio key and the
// sync token carried in the payload, if any. maxBytes <= 0 disables the size cap.
func Decode(data []byte, maxBytes int64) (map[string]Entry, string, error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrOversized, len(data))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, "", fmt.Errorf("decode catalog: %w", err)
	}

	var token string
	entries := make(map[string]Entry, len(raw))
	for key, message := range raw {
		if key == tokenField {
			if err := json.Unmarshal(message, &token); err != nil {
				return nil, "", fmt.Errorf("decode %s: %w", tokenField, err)
			}
			continue
		}

		var re rawEntry
		if err := json.Unmarshal(message, &re); err != nil {
			return nil, "", fmt.Errorf("decode entry %q: %w", key, err)
		}

		locator := re.Path
		if locator == "" {
			locator = re.Data
		}

		entries[key] = Entry{
			AudioKey:       key,
			Description:    re.Description,
			Kind:           Kind(re.Type),
			Locator:        locator,
			Extension:      strings.TrimPrefix(re.Ext, "."),
			GapMs:          re.Gap,
			DurationMs:     re.Duration,
			RingDurationMs: re.RingDuration,
			PreviousKeys:   re.Previous,
			NextKeys:       re.Next,
		}
	}

	return entries, token, nil
}
