package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"animeai/internal/domain/handoff"
	"animeai/internal/domain/outcome"
	"animeai/internal/domain/query"
)

// Recommender asks the backend for recommendations.
type Recommender interface {
	Recommend(ctx context.Context, visitorID, query string) outcome.Outcome
}

// SearchInput carries input for the search orchestrator.
type SearchInput struct {
	VisitorID string
	Form      query.Form
}

// SearchDeps holds dependencies for Search.
type SearchDeps struct {
	Backend Recommender
	Slots   SlotWriter
	Now     func() time.Time
}

// ExecuteSearch builds the query, asks for recommendations and caches the reply
// for the results page.
// PRE: VisitorID is non-empty
// POST: on success the reply body is stored verbatim and Redirect is the results page
func ExecuteSearch(ctx context.Context, input SearchInput, deps SearchDeps) (FormResult, error) {
	q := input.Form.Build()
	out := deps.Backend.Recommend(ctx, input.VisitorID, q)
	now := deps.Now()

	switch out.Kind {
	case outcome.KindOK:
	case outcome.KindUnauthenticated:
		slog.Info("search_event", "event", "redirect", "visitor", input.VisitorID, "reason", "not_authenticated")
		return redirectWithReason(ctx, deps.Slots, input.VisitorID, handoff.ReasonSignupFirst, RouteSignup, now)
	case outcome.KindTransport:
		slog.Warn("search_event", "event", "failed", "visitor", input.VisitorID, "reason", "transport", "error", out.Err)
		return FormResult{Error: MsgNetworkError}, nil
	default:
		slog.Info("search_event", "event", "failed", "visitor", input.VisitorID, "status", out.Status)
		return FormResult{Error: out.ErrorText(MsgSearchFailed)}, nil
	}

	entry := handoff.NewEntry(input.VisitorID, handoff.KeyAnimeRecommendations, string(out.Body), now, handoff.TTLRecommendations)
	if err := deps.Slots.Put(ctx, entry); err != nil {
		if errors.Is(err, handoff.ErrValueTooLarge) {
			slog.Warn("search_event", "event", "reply_too_large", "visitor", input.VisitorID, "bytes", len(out.Body))
			return FormResult{Error: MsgRecommendTooLong}, nil
		}
		return FormResult{}, fmt.Errorf("store recommendations: %w", err)
	}

	slog.Info("search_event", "event", "stored", "visitor", input.VisitorID, "query", q, "bytes", len(out.Body))
	return FormResult{Redirect: RouteResults}, nil
}
