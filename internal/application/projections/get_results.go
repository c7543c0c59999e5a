package projections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"animeai/internal/domain/anime"
	"animeai/internal/domain/handoff"
)

// Results page messages.
const (
	ErrTextNoPayload   = "No recommendations found. Please search for anime first."
	ErrTextBadPayload  = "Failed to load recommendations. Please try again."
	ErrTextEmptyResult = "No anime recommendations found. Try a different search!"
)

// GetResultsQuery carries input for the results projection.
type GetResultsQuery struct {
	VisitorID string
	Saved     string // title just saved, echoed back as a notice
}

// GetResultsDeps holds dependencies for the results projection.
type GetResultsDeps struct {
	Slots SlotReader
	Now   func() time.Time
}

// ResultsView is the data the results page renders.
// INVARIANT: Error is empty exactly when Cards is non-empty
type ResultsView struct {
	Cards []anime.Anime
	Error string
	Saved string
}

// QueryGetResults renders the cached recommendations. It never calls the
// backend and leaves the cache in place, so a reload shows the same cards.
// PRE: VisitorID is non-empty
// POST: returns one card per record in input order, or one of the three error texts
func QueryGetResults(ctx context.Context, query GetResultsQuery, deps GetResultsDeps) (ResultsView, error) {
	view := ResultsView{Saved: strings.TrimSpace(query.Saved)}

	entry, err := deps.Slots.Peek(ctx, query.VisitorID, handoff.KeyAnimeRecommendations, deps.Now())
	if errors.Is(err, handoff.ErrNotFound) {
		view.Error = ErrTextNoPayload
		return view, nil
	}
	if err != nil {
		return ResultsView{}, fmt.Errorf("read recommendations: %w", err)
	}

	list, err := anime.DecodeList([]byte(entry.Value))
	if err != nil {
		slog.Warn("results_payload_invalid", "visitor", query.VisitorID, "error", err)
		view.Error = ErrTextBadPayload
		return view, nil
	}
	if len(list) == 0 {
		view.Error = ErrTextEmptyResult
		return view, nil
	}
	view.Cards = list
	return view, nil
}
