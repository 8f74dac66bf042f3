package assist

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"pulsepoint/internal/domain"
)

const (
	sourceHeuristic = "heuristic"
	maxOptions      = 10
)

var loadedTitleWords = regexp.MustCompile(`(?i)\b(obviously|clearly|must|definitely|everyone\s+knows)\b`)

// Heuristic переписывает черновик без внешних сервисов.
type Heuristic struct {
	corrector domain.Corrector
}

// NewHeuristic создаёт переписчик. nil corrector заменяется словарём известных имён.
func NewHeuristic(corrector domain.Corrector) *Heuristic {
	if corrector == nil {
		corrector = NewEntityCorrector()
	}
	return &Heuristic{corrector: corrector}
}

// Rewrite делает заголовок вопросом, убирает оценочные слова и исправляет опечатки в вариантах.
func (h *Heuristic) Rewrite(_ context.Context, draft domain.PollDraft) (domain.AssistResult, error) {
	title := NeutralizeTitle(draft.Title)
	options, changes := correctOptions(h.corrector, draft.Options)
	topic := strings.ToLower(strings.TrimSuffix(title, "?"))
	return domain.AssistResult{
		Title: title,
		Blurb: fmt.Sprintf("A neutral community poll about %s.", topic),
		Description: fmt.Sprintf("This poll gathers opinion on %s across PulsePoint users. "+
			"Votes are anonymous and results update in real time as participation grows.", topic),
		Options:       CleanOptions(options),
		OptionChanges: changes,
		Source:        sourceHeuristic,
	}, nil
}

// EnsureQuestion схлопывает пробелы и добавляет знак вопроса в конце.
func EnsureQuestion(title string) string {
	clean := collapseSpaces(title)
	if clean == "" || strings.HasSuffix(clean, "?") {
		return clean
	}
	return clean + "?"
}

// NeutralizeTitle убирает из заголовка оценочные слова.
func NeutralizeTitle(title string) string {
	value := EnsureQuestion(title)
	value = loadedTitleWords.ReplaceAllString(value, "")
	return EnsureQuestion(value)
}

// CleanOptions убирает пустые и повторяющиеся варианты, оставляя не больше десяти.
func CleanOptions(options []string) []string {
	seen := make(map[string]struct{}, len(options))
	out := make([]string, 0, len(options))
	for _, o := range options {
		clean := collapseSpaces(o)
		if clean == "" {
			continue
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
		if len(out) == maxOptions {
			break
		}
	}
	return out
}

func correctOptions(c domain.Corrector, options []string) ([]string, []domain.OptionChange) {
	changes := make([]domain.OptionChange, 0)
	seen := make(map[domain.OptionChange]struct{})
	out := make([]string, 0, len(options))
	for _, o := range options {
		fixed := c.Correct(o)
		if fixed != o {
			change := domain.OptionChange{From: o, To: fixed}
			if _, ok := seen[change]; !ok {
				seen[change] = struct{}{}
				changes = append(changes, change)
			}
		}
		out = append(out, fixed)
	}
	return out, changes
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
