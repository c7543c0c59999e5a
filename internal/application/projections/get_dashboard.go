package projections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"animeai/internal/domain/anime"
	"animeai/internal/domain/handoff"
)

// GetDashboardQuery carries input for the dashboard projection.
type GetDashboardQuery struct {
	VisitorID string
}

// GetDashboardDeps holds dependencies for the dashboard projection.
type GetDashboardDeps struct {
	Slots SlotReader
	Now   func() time.Time
}

// SavedCard is one saved-list card, with every fallback already applied
// except the image, which the page replaces with an icon when empty.
type SavedCard struct {
	Title   string
	Image   string
	Genre   string
	Summary string
	Tags    []string
}

// DashboardView is the data the dashboard renders.
type DashboardView struct {
	Saved []SavedCard
}

// Empty reports whether the empty state should show.
func (v DashboardView) Empty() bool {
	return len(v.Saved) == 0
}

// QueryGetDashboard builds the saved-list cards.
// PRE: VisitorID is non-empty; the session gate has passed
// POST: a missing, undecodable or empty list yields the empty state
func QueryGetDashboard(ctx context.Context, query GetDashboardQuery, deps GetDashboardDeps) (DashboardView, error) {
	entry, err := deps.Slots.Peek(ctx, query.VisitorID, handoff.KeyUserAnime, deps.Now())
	if errors.Is(err, handoff.ErrNotFound) {
		return DashboardView{}, nil
	}
	if err != nil {
		return DashboardView{}, fmt.Errorf("read saved list: %w", err)
	}

	list, err := anime.DecodeList([]byte(entry.Value))
	if err != nil {
		slog.Warn("saved_list_invalid", "visitor", query.VisitorID, "error", err)
		return DashboardView{}, nil
	}

	view := DashboardView{Saved: make([]SavedCard, 0, len(list))}
	for _, a := range list {
		view.Saved = append(view.Saved, SavedCard{
			Title:   a.Title,
			Image:   a.SavedImage(),
			Genre:   a.GenreOrUnknown(),
			Summary: a.Summary(),
			Tags:    a.Tags,
		})
	}
	return view, nil
}
