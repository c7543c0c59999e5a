package query

import (
	"fmt"
	"strings"
)

// DefaultQuery is sent when no optional field was supplied.
const DefaultQuery = "Recommend me some good anime"

// Filter kinds, used as query-string keys on the search page.
const (
	KindGenre = "genre"
	KindTheme = "theme"
)

// Genres lists the genre chips offered on the search page.
var Genres = []string{
	"Action", "Adventure", "Comedy", "Drama", "Fantasy", "Horror",
	"Mystery", "Romance", "Sci-Fi", "Slice of Life", "Sports", "Supernatural", "Thriller",
}

// Themes lists the theme chips offered on the search page.
var Themes = []string{
	"School", "Isekai", "Mecha", "Military", "Music", "Psychological",
	"Samurai", "Space", "Time Travel", "Martial Arts", "Historical", "Gore",
}

// Selection is an insertion-ordered set of selected tags.
// INVARIANT: no value appears twice; order is first-insertion order.
type Selection struct {
	values []string
}

// NewSelection builds a selection from values, dropping blanks and duplicates.
// PRE: none
// POST: returns a selection holding each non-empty value once, in first-seen order
func NewSelection(values ...string) Selection {
	var s Selection
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Has reports whether v is selected.
func (s Selection) Has(v string) bool {
	for _, existing := range s.values {
		if existing == v {
			return true
		}
	}
	return false
}

// Add selects v if it is non-empty and not already selected.
// PRE: none
// POST: v is selected exactly once
func (s *Selection) Add(v string) {
	v = strings.TrimSpace(v)
	if v == "" || s.Has(v) {
		return
	}
	s.values = append(s.values, v)
}

// Remove deselects v, preserving the order of the remaining values.
func (s *Selection) Remove(v string) {
	out := make([]string, 0, len(s.values))
	for _, existing := range s.values {
		if existing != v {
			out = append(out, existing)
		}
	}
	s.values = out
}

// Toggle removes v when selected, otherwise appends it.
// PRE: none
// POST: Has(v) is the negation of its prior value (for non-empty v)
func (s *Selection) Toggle(v string) {
	v = strings.TrimSpace(v)
	if s.Has(v) {
		s.Remove(v)
		return
	}
	s.Add(v)
}

// Toggled returns a copy of s with v toggled. The receiver is not mutated.
func (s Selection) Toggled(v string) Selection {
	c := Selection{values: append([]string(nil), s.values...)}
	c.Toggle(v)
	return c
}

// Values returns the selected tags in insertion order.
func (s Selection) Values() []string {
	return append([]string(nil), s.values...)
}

// Len returns the number of selected tags.
func (s Selection) Len() int {
	return len(s.values)
}

// Label returns the counter text shown next to a chip group.
func (s Selection) Label() string {
	return fmt.Sprintf("%d selected", len(s.values))
}

// Form carries the search form fields.
type Form struct {
	Title    string
	Genres   Selection
	Themes   Selection
	Episodes string
}

// Build composes the natural-language query sent to the recommendation endpoint.
// Clauses are appended in fixed order (title, genres, themes, episodes), each only
// when its field is non-empty, and joined with " with ".
// PRE: none
// POST: returns DefaultQuery when no clause applies
func (f Form) Build() string {
	var parts []string

	if title := strings.TrimSpace(f.Title); title != "" {
		parts = append(parts, `anime with title "`+title+`"`)
	}
	if f.Genres.Len() > 0 {
		parts = append(parts, "genres: "+strings.Join(f.Genres.values, ", "))
	}
	if f.Themes.Len() > 0 {
		parts = append(parts, "themes: "+strings.Join(f.Themes.values, ", "))
	}
	if episodes := strings.TrimSpace(f.Episodes); episodes != "" {
		parts = append(parts, episodes+" episodes")
	}

	if len(parts) == 0 {
		return DefaultQuery
	}
	return "I want " + strings.Join(parts, " with ")
}

// Restrict builds a selection from requested, keeping only values listed in
// options. Order follows requested.
// PRE: none
// POST: every selected value is an element of options
func Restrict(requested, options []string) Selection {
	var s Selection
	for _, r := range requested {
		for _, o := range options {
			if r == o {
				s.Add(r)
				break
			}
		}
	}
	return s
}
