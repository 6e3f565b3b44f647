package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"AdSweeper/internal/domain"
	"AdSweeper/internal/ports"
)

// PipelineDeps wires the account pipeline.
type PipelineDeps struct {
	Directory      ports.AccountDirectory
	Platform       ports.AdPlatform
	Credentials    CredentialResolver
	Executor       *Executor
	StaticAccounts []domain.Account // when set, the directory is never consulted
	AliasWhitelist []string
	WindowStart    time.Duration // accounts created inside [now-WindowStart, now-WindowEnd]
	WindowEnd      time.Duration
	Logger         *slog.Logger
}

// Pipeline sweeps every eligible account through fetch, selection,
// classification and remediation.
type Pipeline struct {
	deps PipelineDeps
}

// NewPipeline creates the pipeline from deps.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{deps: deps}
}

// Sweep processes all accounts not yet handled in the current epoch. The
// first account-level failure aborts the sweep; already handled accounts
// keep their mark, so the next tick resumes where this one stopped.
func (p *Pipeline) Sweep(ctx context.Context, epoch *Epoch) error {
	accounts, err := p.loadAccounts(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	if len(accounts) == 0 {
		p.deps.Logger.Info("no eligible accounts this sweep")
		return nil
	}

	ids := make([]string, len(accounts))
	for i, account := range accounts {
		ids[i] = account.ID
	}
	epoch.Begin(ids)

	logger := p.deps.Logger.With("epoch", epoch.Number())
	logger.Info("sweep started", "accounts", len(accounts))

	for _, account := range accounts {
		if epoch.Handled(account.ID) {
			logger.Debug("account already handled this epoch", "account_id", account.ID)
			continue
		}
		if err := p.processAccount(ctx, logger, account); err != nil {
			return fmt.Errorf("account %s: %w", account.ID, err)
		}
		epoch.MarkHandled(account.ID)
	}

	logger.Info("sweep finished")
	return nil
}

func (p *Pipeline) loadAccounts(ctx context.Context) ([]domain.Account, error) {
	if len(p.deps.StaticAccounts) > 0 {
		p.deps.Logger.Info("using configured account list", "accounts", len(p.deps.StaticAccounts))
		return p.deps.StaticAccounts, nil
	}

	now := time.Now()
	return p.deps.Directory.FetchAccounts(ctx, now.Add(-p.deps.WindowStart), now.Add(-p.deps.WindowEnd))
}

func (p *Pipeline) processAccount(ctx context.Context, logger *slog.Logger, account domain.Account) error {
	logger = logger.With("account_id", account.ID, "drama", account.DramaName)

	session, credential, err := p.deps.Credentials.Resolve(account)
	if err != nil {
		return err
	}
	logger.Debug("credential resolved", "credential", credential)

	ads, err := p.deps.Platform.ListAds(ctx, session)
	if err != nil {
		return fmt.Errorf("list ads: %w", err)
	}

	selected := SelectAds(ads, account.DramaName, p.deps.AliasWhitelist)
	logger.Info("ads selected", "fetched", len(ads), "selected", len(selected))
	if len(selected) == 0 {
		return nil
	}

	adIDs := make([]string, len(selected))
	for i, ad := range selected {
		adIDs[i] = ad.ID
	}

	materials, err := p.deps.Platform.ListMaterials(ctx, session, adIDs)
	if err != nil {
		return fmt.Errorf("list materials: %w", err)
	}

	if HasPendingReview(materials) {
		logger.Info("account has materials pending review, skipping remediation")
		return nil
	}

	buckets := Classify(materials)
	logger.Info("materials classified",
		"materials", len(materials),
		"needs_preview", len(buckets.NeedsPreview),
		"needs_deletion", len(buckets.NeedsDeletion),
		"fully_deletable_ads", len(buckets.FullyDeletableAds))

	return p.deps.Executor.Execute(ctx, session, buckets)
}
