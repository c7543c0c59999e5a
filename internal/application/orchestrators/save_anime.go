package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"animeai/internal/domain/anime"
	"animeai/internal/domain/handoff"
	"animeai/internal/domain/outcome"
)

// ViewRecorder reports an anime interaction to the backend.
type ViewRecorder interface {
	RecordView(ctx context.Context, visitorID, title, genre string) outcome.Outcome
}

// SaveAnimeInput carries input for the save orchestrator.
type SaveAnimeInput struct {
	VisitorID string
	Anime     anime.Anime
}

// SaveAnimeDeps holds dependencies for SaveAnime.
type SaveAnimeDeps struct {
	Backend ViewRecorder
	Slots   SlotReadWriter
	Now     func() time.Time
}

// ExecuteSaveAnime records a view with the backend and appends the record to
// the visitor's saved list.
// PRE: VisitorID is non-empty
// POST: a record without a title is refused with Error and no backend call;
// an unauthenticated visitor is redirected to signup with a reason;
// otherwise the list holds the title once and Redirect returns to the results
func ExecuteSaveAnime(ctx context.Context, input SaveAnimeInput, deps SaveAnimeDeps) (FormResult, error) {
	a := input.Anime
	if err := a.Validate(); err != nil {
		slog.Info("save_event", "event", "rejected", "visitor", input.VisitorID, "error", err)
		return FormResult{Error: MsgSaveNoTitle}, nil
	}

	out := deps.Backend.RecordView(ctx, input.VisitorID, a.Title, a.Genre)
	now := deps.Now()
	switch out.Kind {
	case outcome.KindOK:
	case outcome.KindUnauthenticated:
		return redirectWithReason(ctx, deps.Slots, input.VisitorID, handoff.ReasonSignupFirst, RouteSignup, now)
	default:
		slog.Warn("save_event", "event", "record_view_failed", "visitor", input.VisitorID, "kind", out.Kind.String(), "status", out.Status, "error", out.Err)
	}

	var list []anime.Anime
	existing, err := deps.Slots.Peek(ctx, input.VisitorID, handoff.KeyUserAnime, now)
	switch {
	case errors.Is(err, handoff.ErrNotFound):
	case err != nil:
		return FormResult{}, fmt.Errorf("read saved list: %w", err)
	default:
		if list, err = anime.DecodeList([]byte(existing.Value)); err != nil {
			slog.Warn("save_event", "event", "saved_list_corrupt", "visitor", input.VisitorID, "error", err)
			list = nil
		}
	}

	list, added := anime.AppendUnique(list, a)
	if added {
		value, err := anime.EncodeList(list)
		if err != nil {
			return FormResult{}, fmt.Errorf("encode saved list: %w", err)
		}
		entry := handoff.NewEntry(input.VisitorID, handoff.KeyUserAnime, value, now, handoff.TTLDurable)
		if err := deps.Slots.Put(ctx, entry); err != nil {
			return FormResult{}, fmt.Errorf("write saved list: %w", err)
		}
	}

	slog.Info("save_event", "event", "saved", "visitor", input.VisitorID, "title", a.Title, "added", added)
	return FormResult{Redirect: RouteResults + "?saved=" + url.QueryEscape(a.Title)}, nil
}
