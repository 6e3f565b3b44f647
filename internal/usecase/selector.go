package usecase

import (
	"sort"
	"strings"

	"AdSweeper/internal/domain"
)

// SelectAds narrows an account's ads to the remediation-relevant subset:
// ads whose title carries the drama name and at least one whitelisted alias,
// keeping only the newest ad per alias. The result is sorted newest first.
func SelectAds(ads []domain.Ad, dramaName string, whitelist []string) []domain.Ad {
	if dramaName == "" || len(whitelist) == 0 {
		return nil
	}

	bestPerAlias := map[string]domain.Ad{}
	for _, ad := range ads {
		if !strings.Contains(ad.Title, dramaName) {
			continue
		}
		alias := matchAlias(ad.Title, whitelist)
		if alias == "" {
			continue
		}
		if current, ok := bestPerAlias[alias]; !ok || newerThan(ad, current) {
			bestPerAlias[alias] = ad
		}
	}

	selected := make([]domain.Ad, 0, len(bestPerAlias))
	for _, ad := range bestPerAlias {
		selected = append(selected, ad)
	}
	sort.Slice(selected, func(i, j int) bool {
		return newerThan(selected[i], selected[j])
	})
	return selected
}

// matchAlias returns the longest whitelist entry contained in the title.
// Longest wins so a short alias cannot shadow a longer one it prefixes.
func matchAlias(title string, whitelist []string) string {
	best := ""
	for _, alias := range whitelist {
		if alias == "" || !strings.Contains(title, alias) {
			continue
		}
		if len(alias) > len(best) {
			best = alias
		}
	}
	return best
}

// newerThan orders by parsed creation time, falling back to the
// lexicographically greater id on exact ties.
func newerThan(a, b domain.Ad) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
