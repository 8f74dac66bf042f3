package ranker

import (
	"sort"
	"strings"

	"pulsepoint/internal/domain"
)

// DuplicateParams задаёт веса и пороги поиска дубликатов.
type DuplicateParams struct {
	TitleWeight   float64
	MinScore      float64
	MinTitleScore float64
}

// DefaultDuplicateParams возвращает пороги, с которыми работает платформа.
func DefaultDuplicateParams() DuplicateParams {
	return DuplicateParams{TitleWeight: 0.75, MinScore: 0.18, MinTitleScore: 0.25}
}

// DuplicateQuery описывает новый опрос, для которого ищутся похожие.
type DuplicateQuery struct {
	Title   string
	Options []string
	// ExcludePollID исключает сам опрос из кандидатов.
	ExcludePollID string
	// Limit ограничивает число совпадений, 0 и меньше снимает ограничение.
	Limit int
}

// DuplicateDetector находит опубликованные опросы, похожие на новый.
type DuplicateDetector struct {
	params DuplicateParams
}

// NewDuplicateDetector создаёт детектор. Нулевой вес заголовка заменяется значением по умолчанию.
func NewDuplicateDetector(params DuplicateParams) *DuplicateDetector {
	if params.TitleWeight <= 0 || params.TitleWeight > 1 {
		params.TitleWeight = DefaultDuplicateParams().TitleWeight
	}
	return &DuplicateDetector{params: params}
}

// Params возвращает текущие пороги.
func (d *DuplicateDetector) Params() DuplicateParams {
	return d.params
}

// FindPossibleDuplicates сравнивает новый опрос с кандидатами.
// candidateOptions может содержать варианты любых опросов, лишние игнорируются.
func (d *DuplicateDetector) FindPossibleDuplicates(query DuplicateQuery, candidates []domain.Poll, candidateOptions []domain.Option) []domain.DuplicateMatch {
	if len(candidates) == 0 {
		return nil
	}
	titleTokens := Tokenize(query.Title)
	optionTokens := Tokenize(strings.Join(query.Options, " "))

	labelsByPoll := make(map[string][]string, len(candidates))
	for _, o := range candidateOptions {
		labelsByPoll[o.PollID] = append(labelsByPoll[o.PollID], o.Label)
	}

	matches := make([]domain.DuplicateMatch, 0)
	for _, c := range candidates {
		if query.ExcludePollID != "" && c.ID == query.ExcludePollID {
			continue
		}
		// Строки candidateOptions важнее вариантов в самом кандидате. Если строк нет,
		// сравниваются варианты кандидата, а у опроса без вариантов совпадать нечему.
		labels, ok := labelsByPoll[c.ID]
		if !ok {
			labels = c.OptionLabels()
		}
		titleScore := Similarity(titleTokens, Tokenize(c.Title))
		optionScore := Similarity(optionTokens, Tokenize(strings.Join(labels, " ")))
		score := d.params.TitleWeight*titleScore + (1-d.params.TitleWeight)*optionScore
		if score < d.params.MinScore && titleScore < d.params.MinTitleScore {
			continue
		}
		matches = append(matches, domain.DuplicateMatch{
			PollID: c.ID,
			Slug:   c.Slug,
			Title:  c.Title,
			Score:  score,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if query.Limit > 0 && len(matches) > query.Limit {
		matches = matches[:query.Limit]
	}
	return matches
}
