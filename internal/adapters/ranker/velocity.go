package ranker

import (
	"time"

	"pulsepoint/internal/domain"
)

// TrendWindow задаёт окно агрегации голосов.
type TrendWindow struct {
	Label    string
	Duration time.Duration
}

// VelocityWindow используется для расчёта скорости голосования в ленте.
const VelocityWindow = 24 * time.Hour

// DefaultWindows возвращает окна 24h, 7d и 30d.
func DefaultWindows() []TrendWindow {
	return []TrendWindow{
		{Label: "24h", Duration: 24 * time.Hour},
		{Label: "7d", Duration: 7 * 24 * time.Hour},
		{Label: "30d", Duration: 30 * 24 * time.Hour},
	}
}

// VelocityAggregator строит распределения голосов по окнам из журнала событий.
type VelocityAggregator struct {
	Now     func() time.Time
	Windows []TrendWindow
}

// NewVelocityAggregator создаёт агрегатор с окнами по умолчанию.
func NewVelocityAggregator(now func() time.Time) *VelocityAggregator {
	if now == nil {
		now = time.Now
	}
	return &VelocityAggregator{Now: now, Windows: DefaultWindows()}
}

// BuildTrendPoints считает доли вариантов для каждого окна.
// Если за окно голосов нет, используется снимок голосов за всё время.
func (a *VelocityAggregator) BuildTrendPoints(options []domain.Option, events []domain.VoteEvent, fallbackTotals []domain.OptionTotal) []domain.TrendPoint {
	now := a.Now()
	known := make(map[string]struct{}, len(options))
	for _, o := range options {
		known[o.ID] = struct{}{}
	}

	fallbackCounts := make(map[string]int, len(options))
	for _, t := range fallbackTotals {
		if _, ok := known[t.OptionID]; !ok || t.Votes <= 0 {
			continue
		}
		fallbackCounts[t.OptionID] += t.Votes
	}

	windows := a.Windows
	if len(windows) == 0 {
		windows = DefaultWindows()
	}
	points := make([]domain.TrendPoint, 0, len(windows))
	for _, w := range windows {
		since := now.Add(-w.Duration)
		counts := make(map[string]int, len(options))
		for _, e := range events {
			if _, ok := known[e.OptionID]; !ok {
				continue
			}
			if e.ChangedAt.Before(since) {
				continue
			}
			counts[e.OptionID]++
		}
		if sumCounts(counts) == 0 {
			counts = fallbackCounts
		}
		points = append(points, buildPoint(w.Label, options, counts))
	}
	return points
}

func buildPoint(label string, options []domain.Option, counts map[string]int) domain.TrendPoint {
	total := sumCounts(counts)
	shares := make(map[string]float64, len(options))
	for _, o := range options {
		if total == 0 {
			shares[o.ID] = 0
			continue
		}
		shares[o.ID] = float64(counts[o.ID]) / float64(total)
	}
	return domain.TrendPoint{Label: label, TotalVotes: total, Shares: shares}
}

func sumCounts(counts map[string]int) int {
	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}

// CountVelocity считает голоса по опросам начиная с since.
// В результат попадают только опросы хотя бы с одним событием.
func CountVelocity(events []domain.VoteEvent, since time.Time) map[string]int {
	velocity := make(map[string]int)
	for _, e := range events {
		if e.ChangedAt.Before(since) {
			continue
		}
		velocity[e.PollID]++
	}
	return velocity
}
