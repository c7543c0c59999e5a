package projections

import (
	"net/url"
	"strings"

	"animeai/internal/domain/query"
)

// Chip is one selectable tag on the search page. ToggleURL is the page URL
// with this chip's selection flipped.
type Chip struct {
	Value     string
	Selected  bool
	ToggleURL string
}

// ChipGroup is a labelled set of chips.
type ChipGroup struct {
	Kind     string
	Chips    []Chip
	Label    string
	Selected []string
}

// GetSearchPageQuery carries the selection read from the page URL.
type GetSearchPageQuery struct {
	Path     string
	Title    string
	Episodes string
	Genres   []string
	Themes   []string
	Error    string
}

// SearchPageView is the data the search page renders.
type SearchPageView struct {
	Title    string
	Episodes string
	Genres   ChipGroup
	Themes   ChipGroup
	Preview  string
	Error    string
}

// QueryGetSearchPage builds the chip groups for the current selection.
// Selections only hold offered tags, in the order they were picked.
// PRE: none
// POST: each group's Selected equals its chips marked Selected, and Label counts them
func QueryGetSearchPage(q GetSearchPageQuery) SearchPageView {
	genres := query.Restrict(q.Genres, query.Genres)
	themes := query.Restrict(q.Themes, query.Themes)
	path := q.Path
	if path == "" {
		path = "/search"
	}

	base := func(g, t query.Selection) string {
		v := url.Values{}
		if title := strings.TrimSpace(q.Title); title != "" {
			v.Set("title", title)
		}
		if ep := strings.TrimSpace(q.Episodes); ep != "" {
			v.Set("episodes", ep)
		}
		for _, s := range g.Values() {
			v.Add(query.KindGenre, s)
		}
		for _, s := range t.Values() {
			v.Add(query.KindTheme, s)
		}
		if len(v) == 0 {
			return path
		}
		return path + "?" + v.Encode()
	}

	view := SearchPageView{
		Title:    q.Title,
		Episodes: q.Episodes,
		Error:    q.Error,
		Preview: query.Form{
			Title: q.Title, Genres: genres, Themes: themes, Episodes: q.Episodes,
		}.Build(),
	}
	view.Genres = group(query.KindGenre, query.Genres, genres, func(v string) string { return base(genres.Toggled(v), themes) })
	view.Themes = group(query.KindTheme, query.Themes, themes, func(v string) string { return base(genres, themes.Toggled(v)) })
	return view
}

func group(kind string, options []string, sel query.Selection, toggle func(string) string) ChipGroup {
	g := ChipGroup{Kind: kind, Label: sel.Label(), Selected: sel.Values()}
	for _, o := range options {
		g.Chips = append(g.Chips, Chip{Value: o, Selected: sel.Has(o), ToggleURL: toggle(o)})
	}
	return g
}
