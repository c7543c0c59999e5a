package anime

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// PlaceholderImage is shown when a record has no image or the image fails to load.
const PlaceholderImage = "https://via.placeholder.com/320x400?text=No+Image"

// Display fallbacks for saved-list cards.
const (
	UnknownGenre  = "Unknown Genre"
	NoDescription = "No description available."
)

// MaxSavedAnime bounds the saved list kept for a visitor.
const MaxSavedAnime = 200

// ErrEmptyTitle is returned when a record has no title.
var ErrEmptyTitle = errors.New("anime title cannot be empty")

// Anime is one recommendation or saved-list record.
// URL is the cover image; Image is the alternate field used by saved-list records.
type Anime struct {
	Title       string   `json:"title"`
	Genre       string   `json:"genre,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
	Image       string   `json:"image,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Validate checks the record's invariants.
// PRE: none
// POST: returns nil if the record has a title
func (a *Anime) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// CoverURL returns the image to show on a results card.
// INVARIANT: Anime fields are not mutated
func (a Anime) CoverURL() string {
	if a.URL != "" {
		return a.URL
	}
	if a.Image != "" {
		return a.Image
	}
	return PlaceholderImage
}

// SavedImage returns the image for a saved-list card, empty when there is none.
func (a Anime) SavedImage() string {
	if a.Image != "" {
		return a.Image
	}
	return a.URL
}

// GenreOrUnknown returns the genre, or UnknownGenre when it is blank.
func (a Anime) GenreOrUnknown() string {
	if strings.TrimSpace(a.Genre) == "" {
		return UnknownGenre
	}
	return a.Genre
}

// Summary returns description, else reason, else NoDescription.
func (a Anime) Summary() string {
	if a.Description != "" {
		return a.Description
	}
	if a.Reason != "" {
		return a.Reason
	}
	return NoDescription
}

// DecodeList parses a recommendation payload. The backend may send either a bare
// list or an object wrapping it under "recommendations".
// PRE: none
// POST: returns the records in input order, or an error if the payload is not one of the two shapes
func DecodeList(payload []byte) ([]Anime, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Recommendations []Anime `json:"recommendations"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Recommendations, nil
	}
	var list []Anime
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// EncodeList serializes a list for storage in a handoff slot.
func EncodeList(list []Anime) (string, error) {
	if list == nil {
		list = []Anime{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AppendUnique appends a to list unless a record with the same title is present.
// The oldest records are dropped once MaxSavedAnime is exceeded.
// PRE: a has been validated
// POST: returns the new list and whether a was added
func AppendUnique(list []Anime, a Anime) ([]Anime, bool) {
	for _, existing := range list {
		if strings.EqualFold(strings.TrimSpace(existing.Title), strings.TrimSpace(a.Title)) {
			return list, false
		}
	}
	list = append(list, a)
	if len(list) > MaxSavedAnime {
		list = list[len(list)-MaxSavedAnime:]
	}
	return list, true
}
