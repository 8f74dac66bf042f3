package moderation

import (
	"context"
	"regexp"
	"strings"

	"pulsepoint/internal/domain"
)

const sourceHeuristic = "heuristic"

var profanityTerms = []string{
	"fuck", "fucking", "shit", "bitch", "asshole", "bastard", "cunt", "motherfucker", "wanker", "twat",
}

var hateTerms = []string{
	"nigger", "nigga", "faggot", "kike", "paki", "spic", "chink", "raghead", "tranny",
}

var threatPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bkill\s+you\b`),
	regexp.MustCompile(`(?i)\bshould\s+die\b`),
	regexp.MustCompile(`(?i)\bi[' ]?ll\s+hurt\s+you\b`),
}

var nonWord = regexp.MustCompile(`[^a-z0-9\s]`)

// Heuristic проверяет текст по спискам слов и шаблонам угроз.
type Heuristic struct{}

// NewHeuristic создаёт локальный классификатор.
func NewHeuristic() Heuristic {
	return Heuristic{}
}

// Classify возвращает решение по тексту. Ошибок не бывает.
func (Heuristic) Classify(_ context.Context, text string) (domain.ModerationVerdict, error) {
	return classify(text), nil
}

func classify(text string) domain.ModerationVerdict {
	haystack := " " + normalize(text) + " "
	switch {
	case containsTerm(haystack, hateTerms):
		return block("hateful language")
	case containsTerm(haystack, profanityTerms):
		return block("profanity")
	}
	for _, p := range threatPatterns {
		if p.MatchString(text) {
			return block("threatening language")
		}
	}
	return domain.ModerationVerdict{Action: domain.ModerationAllow, Source: sourceHeuristic}
}

func block(reason string) domain.ModerationVerdict {
	return domain.ModerationVerdict{Action: domain.ModerationBlock, Reason: reason, Source: sourceHeuristic}
}

func normalize(text string) string {
	lower := nonWord.ReplaceAllString(strings.ToLower(text), " ")
	return strings.Join(strings.Fields(lower), " ")
}

func containsTerm(haystack string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(haystack, " "+t+" ") {
			return true
		}
	}
	return false
}
