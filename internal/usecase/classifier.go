package usecase

import (
	"sort"

	"AdSweeper/internal/domain"
)

// HasPendingReview reports whether any material still sits in platform
// review. The whole account's run is skipped in that case so remediation
// never races an in-flight review.
func HasPendingReview(materials []domain.Material) bool {
	for _, m := range materials {
		if m.StatusPrimary == domain.StatusPendingReview {
			return true
		}
		for _, status := range m.StatusSecondary {
			if status == domain.StatusPendingReview {
				return true
			}
		}
	}
	return false
}

// Classify partitions materials into the remediation buckets. Ads whose
// materials are uniformly deletable are promoted to whole-ad deletion, and
// their materials leave the per-material buckets.
func Classify(materials []domain.Material) domain.Buckets {
	byAd := map[string][]domain.Material{}
	for _, m := range materials {
		byAd[m.AdID] = append(byAd[m.AdID], m)
	}

	fullyDeletable := map[string]bool{}
	for adID, group := range byAd {
		fullyDeletable[adID] = adFullyDeletable(group)
	}

	var buckets domain.Buckets
	for _, m := range materials {
		if fullyDeletable[m.AdID] {
			continue
		}
		switch {
		case needsPreview(m):
			buckets.NeedsPreview = append(buckets.NeedsPreview, m)
		case needsDeletion(m):
			buckets.NeedsDeletion = append(buckets.NeedsDeletion, m)
		}
	}

	for adID, deletable := range fullyDeletable {
		if deletable {
			buckets.FullyDeletableAds = append(buckets.FullyDeletableAds, adID)
		}
	}
	sort.Strings(buckets.FullyDeletableAds)
	return buckets
}

// needsPreview holds for materials stalled purely on account balance with no
// reviewer note attached.
func needsPreview(m domain.Material) bool {
	return onlyBalanceInsufficient(m) && m.RejectReason == domain.RejectReasonNone
}

// needsDeletion holds for materials a reviewer flagged with an actionable
// note, whether stalled on balance or outright rejected.
func needsDeletion(m domain.Material) bool {
	if m.RejectReason != domain.RejectReasonActionable {
		return false
	}
	return onlyBalanceInsufficient(m) || hasRejectedStatus(m)
}

func onlyBalanceInsufficient(m domain.Material) bool {
	return len(m.StatusSecondary) == 1 && m.StatusSecondary[0] == domain.StatusBalanceInsufficient
}

func hasRejectedStatus(m domain.Material) bool {
	for _, status := range m.StatusSecondary {
		if status == domain.StatusRejected {
			return true
		}
	}
	return false
}

// adFullyDeletable holds when no material wants a preview and every material
// satisfies the deletion rule, so deleting the ad subsumes them all.
func adFullyDeletable(group []domain.Material) bool {
	if len(group) == 0 {
		return false
	}
	for _, m := range group {
		if needsPreview(m) {
			return false
		}
	}
	for _, m := range group {
		if !needsDeletion(m) {
			return false
		}
	}
	return true
}
