package assist

import (
	"math"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

const minFuzzyLength = 5

var commonTypos = map[string]string{
	"barak obama":   "Barack Obama",
	"barrack obama": "Barack Obama",
	"barrak obama":  "Barack Obama",
	"barack obma":   "Barack Obama",
	"barack obam":   "Barack Obama",
	"renalso":       "Ronaldo",
	"ronadlo":       "Ronaldo",
	"ronalod":       "Ronaldo",
	"mesi":          "Messi",
	"mesii":         "Messi",
	"taylor swfit":  "Taylor Swift",
}

var knownEntities = []string{
	"Barack Obama",
	"Donald Trump",
	"Joe Biden",
	"Kamala Harris",
	"Rishi Sunak",
	"Keir Starmer",
	"Taylor Swift",
	"Lionel Messi",
	"Cristiano Ronaldo",
}

var matchStrip = regexp.MustCompile(`[^a-z0-9\s]`)

// EntityCorrector исправляет частые опечатки и близкие к известным именам подписи.
type EntityCorrector struct {
	typos    map[string]string
	entities []string
	keys     []string
}

// NewEntityCorrector создаёт корректор со встроенным словарём.
func NewEntityCorrector() *EntityCorrector {
	keys := make([]string, len(knownEntities))
	for i, e := range knownEntities {
		keys[i] = normalizeForMatch(e)
	}
	return &EntityCorrector{typos: commonTypos, entities: knownEntities, keys: keys}
}

// Correct возвращает исправленную подпись или исходную, если исправлять нечего.
func (c *EntityCorrector) Correct(label string) string {
	normalized := normalizeForMatch(label)
	if fixed, ok := c.typos[normalized]; ok {
		return fixed
	}
	if len(normalized) < minFuzzyLength {
		return label
	}
	best, bestDistance := label, math.MaxInt
	for i, key := range c.keys {
		if d := levenshtein.ComputeDistance(normalized, key); d < bestDistance {
			best, bestDistance = c.entities[i], d
		}
	}
	threshold := max(1, int(math.Floor(float64(len(normalized))*0.22)))
	if bestDistance <= threshold {
		return best
	}
	return label
}

func normalizeForMatch(value string) string {
	stripped := matchStrip.ReplaceAllString(strings.ToLower(value), "")
	return strings.Join(strings.Fields(stripped), " ")
}
