package ranker

import (
	"sort"
	"strings"

	"pulsepoint/internal/domain"
)

// FilterPolls оставляет опросы нужной рубрики, содержащие запрос в заголовке, анонсе или описании.
func FilterPolls(polls []domain.Poll, category domain.Category, query string) []domain.Poll {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Poll, 0, len(polls))
	for _, p := range polls {
		if category != "" && category != domain.CategoryAll && p.Category != category {
			continue
		}
		if q != "" {
			haystack := strings.ToLower(p.Title + " " + p.Blurb + " " + p.Description)
			if !strings.Contains(haystack, q) {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// OrderPolls упорядочивает опросы для вкладки ленты. Исходный срез не меняется.
func OrderPolls(tab domain.FeedTab, polls []domain.Poll, velocity map[string]int) []domain.Poll {
	out := make([]domain.Poll, len(polls))
	copy(out, polls)
	switch tab {
	case domain.FeedTabNew, domain.FeedTabSaved:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	case domain.FeedTabMostVoted:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].TotalVotes() > out[j].TotalVotes()
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return velocity[out[i].ID] > velocity[out[j].ID]
		})
	}
	return out
}
