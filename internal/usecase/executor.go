package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"AdSweeper/internal/domain"
	"AdSweeper/internal/ports"
)

// dryRunPreviewCap bounds how many preview entries a dry-run plan logs.
const dryRunPreviewCap = 20

// ExecutorDeps wires the executor.
type ExecutorDeps struct {
	Platform     ports.AdPlatform
	PreviewDelay time.Duration
	DeleteDelay  time.Duration
	DryRun       bool
	Logger       *slog.Logger
}

// Executor applies the remediation buckets against the platform in fixed
// order: previews, grouped material deletes, then whole-ad deletes. Failures
// of individual actions are logged and never abort the rest of the account.
type Executor struct {
	platform     ports.AdPlatform
	previewDelay time.Duration
	deleteDelay  time.Duration
	dryRun       bool
	logger       *slog.Logger
}

// NewExecutor creates an executor from deps.
func NewExecutor(deps ExecutorDeps) *Executor {
	return &Executor{
		platform:     deps.Platform,
		previewDelay: deps.PreviewDelay,
		deleteDelay:  deps.DeleteDelay,
		dryRun:       deps.DryRun,
		logger:       deps.Logger,
	}
}

// Execute runs all actions for one account. It returns an error only when
// the context is cancelled mid-run.
func (e *Executor) Execute(ctx context.Context, session domain.Session, buckets domain.Buckets) error {
	logger := e.logger.With("account_id", session.AccountID)

	if buckets.Empty() {
		logger.Info("no remediation actions for account")
		return nil
	}

	if e.dryRun {
		e.logPlan(logger, buckets)
		return nil
	}

	if err := e.runPreviews(ctx, logger, session, buckets.NeedsPreview); err != nil {
		return err
	}
	if err := e.runMaterialDeletes(ctx, logger, session, buckets.NeedsDeletion); err != nil {
		return err
	}
	return e.runAdDeletes(ctx, logger, session, buckets.FullyDeletableAds)
}

// runPreviews is strictly sequential. The preview endpoint is stateful on
// the platform side and must never see concurrent calls for one account.
func (e *Executor) runPreviews(ctx context.Context, logger *slog.Logger, session domain.Session, materials []domain.Material) error {
	for _, m := range materials {
		if err := e.platform.TriggerPreview(ctx, session, m.ID, m.AdID); err != nil {
			logger.Error("preview failed", "material_id", m.ID, "ad_id", m.AdID, "error", err)
		} else {
			logger.Info("preview triggered", "material_id", m.ID, "ad_id", m.AdID)
		}
		if err := sleep(ctx, e.previewDelay); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) runMaterialDeletes(ctx context.Context, logger *slog.Logger, session domain.Session, materials []domain.Material) error {
	for _, adID := range sortedAdIDs(materials) {
		var handles []string
		for _, m := range materials {
			if m.AdID != adID {
				continue
			}
			if m.DeletionHandle == "" {
				logger.Warn("material has no deletion handle, skipping", "material_id", m.ID, "ad_id", adID)
				continue
			}
			handles = append(handles, m.DeletionHandle)
		}
		if len(handles) == 0 {
			continue
		}

		if err := e.platform.DeleteMaterials(ctx, session, adID, handles); err != nil {
			logger.Error("material delete failed", "ad_id", adID, "count", len(handles), "error", err)
		} else {
			logger.Info("materials deleted", "ad_id", adID, "count", len(handles))
		}
		if err := sleep(ctx, e.deleteDelay); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) runAdDeletes(ctx context.Context, logger *slog.Logger, session domain.Session, adIDs []string) error {
	for _, adID := range adIDs {
		if err := e.platform.DeleteAd(ctx, session, adID); err != nil {
			logger.Error("ad delete failed", "ad_id", adID, "error", err)
		} else {
			logger.Info("ad deleted", "ad_id", adID)
		}
		if err := sleep(ctx, e.deleteDelay); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) logPlan(logger *slog.Logger, buckets domain.Buckets) {
	previews := make([]string, 0, len(buckets.NeedsPreview))
	for i, m := range buckets.NeedsPreview {
		if i == dryRunPreviewCap {
			previews = append(previews, "...")
			break
		}
		previews = append(previews, m.ID)
	}

	deletes := map[string][]string{}
	for _, m := range buckets.NeedsDeletion {
		deletes[m.AdID] = append(deletes[m.AdID], m.ID)
	}

	logger.Info("dry run, skipping remote calls",
		"preview_total", len(buckets.NeedsPreview),
		"preview_materials", previews,
		"delete_groups", deletes,
		"delete_ads", buckets.FullyDeletableAds)
}

func sortedAdIDs(materials []domain.Material) []string {
	seen := map[string]bool{}
	var ids []string
	for _, m := range materials {
		if !seen[m.AdID] {
			seen[m.AdID] = true
			ids = append(ids, m.AdID)
		}
	}
	sort.Strings(ids)
	return ids
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
