package ports

import (
	"context"
	"time"

	"AdSweeper/internal/domain"
)

// AccountDirectory lists advertiser accounts whose setup completed inside the
// given creation-time window.
type AccountDirectory interface {
	FetchAccounts(ctx context.Context, windowStart, windowEnd time.Time) ([]domain.Account, error)
}

// AdPlatform is the remote surface the pipeline reads and mutates. Every call
// is scoped to one account's session credential.
type AdPlatform interface {
	ListAds(ctx context.Context, session domain.Session) ([]domain.Ad, error)
	ListMaterials(ctx context.Context, session domain.Session, adIDs []string) ([]domain.Material, error)
	TriggerPreview(ctx context.Context, session domain.Session, materialID, adID string) error
	DeleteMaterials(ctx context.Context, session domain.Session, adID string, handles []string) error
	DeleteAd(ctx context.Context, session domain.Session, adID string) error
}
