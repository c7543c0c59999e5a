package visitor

import (
	"context"
	"time"

	domain "animeai/internal/domain/visitor"
)

// Store persists visitors and the backend cookies held on their behalf.
type Store interface {
	Touch(ctx context.Context, id string, now time.Time) error
	Get(ctx context.Context, id string) (domain.Visitor, error)
	Delete(ctx context.Context, id string) error
	DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error)
	SaveCookies(ctx context.Context, id string, cookies []domain.BackendCookie) error
	LoadCookies(ctx context.Context, id string, now time.Time) ([]domain.BackendCookie, error)
	ClearCookies(ctx context.Context, id string) error
}
