package ranker

import (
	"math"
	"testing"
	"time"

	"pulsepoint/internal/domain"
)

var velocityNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return velocityNow }

func sumShares(p domain.TrendPoint) float64 {
	total := 0.0
	for _, s := range p.Shares {
		total += s
	}
	return total
}

func TestBuildTrendPointsWindows(t *testing.T) {
	a := NewVelocityAggregator(fixedNow)
	options := []domain.Option{{ID: "o1"}, {ID: "o2"}}
	events := []domain.VoteEvent{
		{PollID: "p", OptionID: "o1", ChangedAt: velocityNow.Add(-time.Hour)},
		{PollID: "p", OptionID: "o2", ChangedAt: velocityNow.Add(-2 * time.Hour)},
		{PollID: "p", OptionID: "o2", ChangedAt: velocityNow.Add(-3 * 24 * time.Hour)},
		{PollID: "p", OptionID: "o2", ChangedAt: velocityNow.Add(-20 * 24 * time.Hour)},
		{PollID: "p", OptionID: "o1", ChangedAt: velocityNow.Add(-40 * 24 * time.Hour)},
		{PollID: "p", OptionID: "gone", ChangedAt: velocityNow.Add(-time.Minute)},
	}
	points := a.BuildTrendPoints(options, events, nil)
	if len(points) != 3 {
		t.Fatalf("ожидали 3 окна, получили %d", len(points))
	}
	wantTotals := map[string]int{"24h": 2, "7d": 3, "30d": 4}
	for _, p := range points {
		if p.TotalVotes != wantTotals[p.Label] {
			t.Fatalf("окно %s: ожидали %d голосов, получили %d", p.Label, wantTotals[p.Label], p.TotalVotes)
		}
		if math.Abs(sumShares(p)-1) > 1e-9 {
			t.Fatalf("окно %s: доли должны давать 1, получили %v", p.Label, sumShares(p))
		}
	}
	if math.Abs(points[2].Shares["o2"]-0.75) > 1e-9 {
		t.Fatalf("ожидали долю 0.75 для o2 за 30d, получили %v", points[2].Shares["o2"])
	}
}

func TestBuildTrendPointsFallbackToTotals(t *testing.T) {
	a := NewVelocityAggregator(fixedNow)
	options := []domain.Option{{ID: "o1"}, {ID: "o2"}}
	totals := []domain.OptionTotal{
		{OptionID: "o1", Votes: 30},
		{OptionID: "o2", Votes: 10},
		{OptionID: "other", Votes: 1000},
	}
	points := a.BuildTrendPoints(options, nil, totals)
	for _, p := range points {
		if p.TotalVotes != 40 {
			t.Fatalf("ожидали 40 голосов из снимка, получили %d", p.TotalVotes)
		}
		if math.Abs(p.Shares["o1"]-0.75) > 1e-9 {
			t.Fatalf("ожидали долю 0.75, получили %v", p.Shares["o1"])
		}
	}
}

func TestBuildTrendPointsNoVotes(t *testing.T) {
	a := NewVelocityAggregator(fixedNow)
	options := []domain.Option{{ID: "o1"}, {ID: "o2"}}
	for _, p := range a.BuildTrendPoints(options, nil, nil) {
		if p.TotalVotes != 0 {
			t.Fatalf("ожидали 0 голосов")
		}
		for id, s := range p.Shares {
			if s != 0 {
				t.Fatalf("доля %s должна быть 0, получили %v", id, s)
			}
		}
		if len(p.Shares) != 2 {
			t.Fatalf("ожидали доли для всех вариантов")
		}
	}
}

func TestCountVelocity(t *testing.T) {
	since := velocityNow.Add(-VelocityWindow)
	events := []domain.VoteEvent{
		{PollID: "a", ChangedAt: velocityNow.Add(-time.Hour)},
		{PollID: "a", ChangedAt: velocityNow.Add(-2 * time.Hour)},
		{PollID: "b", ChangedAt: velocityNow.Add(-48 * time.Hour)},
		{PollID: "c", ChangedAt: since},
	}
	got := CountVelocity(events, since)
	if got["a"] != 2 || got["c"] != 1 {
		t.Fatalf("неверная скорость: %v", got)
	}
	if _, ok := got["b"]; ok {
		t.Fatalf("опрос без голосов за сутки не должен попадать в карту")
	}
}
