package domain

import (
	"sort"
	"time"
)

// PollStatus описывает стадию жизненного цикла опроса в хранилище.
type PollStatus string

const (
	PollStatusPending   PollStatus = "pending"
	PollStatusPublished PollStatus = "published"
	PollStatusClosed    PollStatus = "closed"
	PollStatusArchived  PollStatus = "archived"
)

// Poll описывает опрос вместе с вариантами ответа.
type Poll struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Blurb       string     `json:"blurb"`
	Description string     `json:"description"`
	Category    Category   `json:"category"`
	Status      PollStatus `json:"status,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	Options     []Option   `json:"options"`

	Velocity24h  int          `json:"velocity_24h"`
	IsTrending   bool         `json:"is_trending"`
	IsBookmarked bool         `json:"is_bookmarked"`
	CommentCount int          `json:"comment_count"`
	Trend        []TrendPoint `json:"trend,omitempty"`
}

// TotalVotes возвращает сумму голосов по всем вариантам.
func (p Poll) TotalVotes() int {
	total := 0
	for _, o := range p.Options {
		total += o.Votes
	}
	return total
}

// OptionLabels возвращает подписи вариантов в порядке отображения.
func (p Poll) OptionLabels() []string {
	labels := make([]string, 0, len(p.Options))
	for _, o := range p.Options {
		labels = append(labels, o.Label)
	}
	return labels
}

// Option описывает вариант ответа.
type Option struct {
	ID       string `json:"id"`
	PollID   string `json:"poll_id,omitempty"`
	Label    string `json:"label"`
	Position int    `json:"position"`
	Votes    int    `json:"votes"`
}

// SortOptions упорядочивает варианты по позиции, при равенстве по подписи.
func SortOptions(options []Option) {
	sort.SliceStable(options, func(i, j int) bool {
		if options[i].Position != options[j].Position {
			return options[i].Position < options[j].Position
		}
		return options[i].Label < options[j].Label
	})
}

// VoteEvent фиксирует смену голоса. События только добавляются.
type VoteEvent struct {
	PollID    string
	OptionID  string
	ChangedAt time.Time
}

// OptionTotal хранит денормализованное число голосов за вариант за всё время.
type OptionTotal struct {
	PollID   string
	OptionID string
	Label    string
	Votes    int
}

// DuplicateMatch описывает опрос, похожий на новый.
type DuplicateMatch struct {
	PollID string  `json:"poll_id"`
	Slug   string  `json:"slug"`
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
}

// TrendPoint содержит распределение голосов за окно времени.
type TrendPoint struct {
	Label      string             `json:"label"`
	TotalVotes int                `json:"total_votes"`
	Shares     map[string]float64 `json:"shares"`
}

// Suggestion описывает подсказку поиска.
type Suggestion struct {
	ID             string   `json:"id"`
	Slug           string   `json:"slug"`
	Title          string   `json:"title"`
	Category       Category `json:"category"`
	Votes          int      `json:"votes"`
	OptionsPreview []string `json:"options_preview"`
	ExactMatch     bool     `json:"exact_match"`
	Score          int      `json:"score"`
}
