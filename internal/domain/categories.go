package domain

import (
	"strings"
	"time"
)

// Category описывает рубрику опроса.
type Category string

const (
	CategoryPolitics      Category = "politics"
	CategorySport         Category = "sport"
	CategoryEntertainment Category = "entertainment"
	CategoryCulture       Category = "culture"
	CategoryHotTakes      Category = "hot-takes"

	// CategoryAll отключает фильтр по рубрике.
	CategoryAll Category = "all"
)

// Categories возвращает допустимые рубрики в порядке отображения.
func Categories() []Category {
	return []Category{CategoryPolitics, CategorySport, CategoryEntertainment, CategoryCulture, CategoryHotTakes}
}

// IsCategory проверяет, что значение входит в фиксированный набор рубрик.
func IsCategory(value string) bool {
	for _, c := range Categories() {
		if string(c) == value {
			return true
		}
	}
	return false
}

// ParseCategory приводит ввод к рубрике. Неизвестные значения означают все рубрики.
func ParseCategory(value string) Category {
	v := strings.ToLower(strings.TrimSpace(value))
	if IsCategory(v) {
		return Category(v)
	}
	return CategoryAll
}

// FeedTab описывает вкладку ленты.
type FeedTab string

const (
	FeedTabTrending  FeedTab = "trending"
	FeedTabNew       FeedTab = "new"
	FeedTabMostVoted FeedTab = "most-voted"
	FeedTabSaved     FeedTab = "saved"
)

// ParseFeedTab возвращает вкладку, по умолчанию trending.
func ParseFeedTab(value string) FeedTab {
	switch FeedTab(strings.ToLower(strings.TrimSpace(value))) {
	case FeedTabNew:
		return FeedTabNew
	case FeedTabMostVoted:
		return FeedTabMostVoted
	case FeedTabSaved:
		return FeedTabSaved
	default:
		return FeedTabTrending
	}
}

// Lifecycle описывает отображаемое состояние опроса.
type Lifecycle string

const (
	LifecycleOpen        Lifecycle = "open"
	LifecycleClosingSoon Lifecycle = "closing-soon"
	LifecycleClosed      Lifecycle = "closed"
)

const closingSoonWindow = 24 * time.Hour

// LifecycleAt вычисляет состояние опроса на момент now.
func (p Poll) LifecycleAt(now time.Time) Lifecycle {
	if p.EndsAt == nil {
		return LifecycleOpen
	}
	if !p.EndsAt.After(now) {
		return LifecycleClosed
	}
	if p.EndsAt.Sub(now) <= closingSoonWindow {
		return LifecycleClosingSoon
	}
	return LifecycleOpen
}
