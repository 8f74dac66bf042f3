package ranker

import (
	"math"
	"sort"
)

// TrendingParams задаёт правило отбора трендовых опросов.
type TrendingParams struct {
	Percentile    float64
	MinVotes      int
	FallbackCount int
}

// DefaultTrendingParams возвращает верхний квинтиль, порог 10 голосов и запасной топ-5.
func DefaultTrendingParams() TrendingParams {
	return TrendingParams{Percentile: 0.2, MinVotes: 10, FallbackCount: 5}
}

// TrendingSelector отбирает трендовые опросы по скорости голосования за 24 часа.
type TrendingSelector struct {
	params TrendingParams
}

// NewTrendingSelector создаёт селектор. Некорректные параметры заменяются значениями по умолчанию.
func NewTrendingSelector(params TrendingParams) *TrendingSelector {
	def := DefaultTrendingParams()
	if params.Percentile <= 0 || params.Percentile > 1 {
		params.Percentile = def.Percentile
	}
	if params.MinVotes < 0 {
		params.MinVotes = def.MinVotes
	}
	if params.FallbackCount <= 0 {
		params.FallbackCount = def.FallbackCount
	}
	return &TrendingSelector{params: params}
}

type pollVelocity struct {
	id    string
	votes int
}

// Select возвращает множество трендовых опросов. Пустая карта даёт пустое множество.
func (s *TrendingSelector) Select(velocity map[string]int) map[string]struct{} {
	out := make(map[string]struct{})
	if len(velocity) == 0 {
		return out
	}
	ranked := make([]pollVelocity, 0, len(velocity))
	for id, v := range velocity {
		ranked = append(ranked, pollVelocity{id: id, votes: v})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].votes != ranked[j].votes {
			return ranked[i].votes > ranked[j].votes
		}
		return ranked[i].id < ranked[j].id
	})

	bucket := int(math.Ceil(float64(len(ranked)) * s.params.Percentile))
	bucket = max(1, min(bucket, len(ranked)))
	for _, pv := range ranked[:bucket] {
		if pv.votes >= s.params.MinVotes {
			out[pv.id] = struct{}{}
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, pv := range ranked[:min(s.params.FallbackCount, len(ranked))] {
		out[pv.id] = struct{}{}
	}
	return out
}
