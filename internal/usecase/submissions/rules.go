package submissions

import (
	"strings"

	"pulsepoint/internal/domain"
)

var sensitiveCategories = map[domain.Category]bool{
	domain.CategoryPolitics: true,
}

var loadedPhrases = []string{
	"obviously",
	"clearly",
	"only an idiot",
	"real patriots",
	"must",
	"everyone knows",
}

// HasLoadedWording ищет в тексте оценочные формулировки.
func HasLoadedWording(value string) bool {
	lower := strings.ToLower(value)
	for _, p := range loadedPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// RequiresModeration решает, нужна ли ручная проверка перед публикацией.
func RequiresModeration(category domain.Category, texts ...string) bool {
	if sensitiveCategories[category] {
		return true
	}
	for _, t := range texts {
		if HasLoadedWording(t) {
			return true
		}
	}
	return false
}
