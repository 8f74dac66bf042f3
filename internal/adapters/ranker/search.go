package ranker

import (
	"sort"
	"strings"

	"pulsepoint/internal/domain"
)

const (
	scoreExact     = 100
	scorePrefix    = 80
	scoreSubstring = 50

	optionScoreExact     = 120
	optionScorePrefix    = 95
	optionScoreSubstring = 70

	// DefaultSuggestionLimit ограничивает число подсказок поиска.
	DefaultSuggestionLimit = 6
	optionsPreviewSize     = 3
)

// ScoreText оценивает совпадение запроса со строкой: точное 100, префикс 80, подстрока 50.
func ScoreText(query, value string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}
	v := strings.ToLower(value)
	switch {
	case v == q:
		return scoreExact
	case strings.HasPrefix(v, q):
		return scorePrefix
	case strings.Contains(v, q):
		return scoreSubstring
	default:
		return 0
	}
}

// ScoreOptions берёт лучшее совпадение среди вариантов и поднимает его уровень.
func ScoreOptions(query string, labels []string) int {
	best := 0
	for _, l := range labels {
		if s := ScoreText(query, l); s > best {
			best = s
		}
	}
	switch best {
	case scoreExact:
		return optionScoreExact
	case scorePrefix:
		return optionScorePrefix
	case scoreSubstring:
		return optionScoreSubstring
	default:
		return 0
	}
}

// SearchCandidate описывает опрос с показателем популярности.
type SearchCandidate struct {
	Poll  domain.Poll
	Votes int
}

// SearchRanker ранжирует подсказки поиска.
type SearchRanker struct {
	Limit int
}

// NewSearchRanker создаёт ранжировщик с ограничением выдачи.
func NewSearchRanker(limit int) *SearchRanker {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	return &SearchRanker{Limit: limit}
}

type scoredCandidate struct {
	SearchCandidate
	score       int
	optionScore int
}

// Rank возвращает подсказки: сначала совпадения по убыванию оценки, затем популярные опросы.
// Пустой запрос возвращает только популярные опросы.
func (r *SearchRanker) Rank(query string, candidates []SearchCandidate) []domain.Suggestion {
	query = strings.TrimSpace(query)
	matched := make([]scoredCandidate, 0, len(candidates))
	fallback := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		sc := scoredCandidate{SearchCandidate: c}
		if query != "" {
			titleScore := ScoreText(query, c.Poll.Title)
			sc.optionScore = ScoreOptions(query, c.Poll.OptionLabels())
			sc.score = max(titleScore, sc.optionScore)
		}
		if sc.score > 0 {
			matched = append(matched, sc)
		} else {
			fallback = append(fallback, sc)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.optionScore != b.optionScore {
			return a.optionScore > b.optionScore
		}
		return a.Votes > b.Votes
	})
	sort.SliceStable(fallback, func(i, j int) bool {
		return fallback[i].Votes > fallback[j].Votes
	})

	limit := r.Limit
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	seenIDs := make(map[string]struct{})
	seenTitles := make(map[string]struct{})
	out := make([]domain.Suggestion, 0, limit)
	for _, sc := range append(matched, fallback...) {
		if len(out) >= limit {
			break
		}
		titleKey := strings.ToLower(strings.TrimSpace(sc.Poll.Title))
		if _, ok := seenIDs[sc.Poll.ID]; ok {
			continue
		}
		if _, ok := seenTitles[titleKey]; ok {
			continue
		}
		seenIDs[sc.Poll.ID] = struct{}{}
		seenTitles[titleKey] = struct{}{}
		out = append(out, toSuggestion(sc))
	}
	return out
}

func toSuggestion(sc scoredCandidate) domain.Suggestion {
	labels := sc.Poll.OptionLabels()
	if len(labels) > optionsPreviewSize {
		labels = labels[:optionsPreviewSize]
	}
	return domain.Suggestion{
		ID:             sc.Poll.ID,
		Slug:           sc.Poll.Slug,
		Title:          sc.Poll.Title,
		Category:       sc.Poll.Category,
		Votes:          sc.Votes,
		OptionsPreview: labels,
		ExactMatch:     sc.score > 0,
		Score:          sc.score,
	}
}
