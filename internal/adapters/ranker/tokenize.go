package ranker

import (
	"sort"
	"strings"
)

const minTokenLength = 3

// DefaultStopWords содержит слова, которые не несут смысла при сравнении опросов.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "best", "by", "did", "do", "does",
	"favorite", "favourite", "for", "from", "how", "in", "is", "it", "of", "on", "or",
	"should", "that", "the", "their", "them", "these", "they", "this", "to", "want",
	"what", "when", "where", "which", "who", "why", "will", "win", "with", "would", "your",
}

var defaultStopSet = newStopSet(DefaultStopWords)

func newStopSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// TokenSet хранит уникальные значимые токены текста.
type TokenSet map[string]struct{}

// Has сообщает, содержится ли токен в наборе.
func (s TokenSet) Has(token string) bool {
	_, ok := s[token]
	return ok
}

// Sorted возвращает токены в лексикографическом порядке.
func (s TokenSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// String склеивает отсортированные токены через пробел.
func (s TokenSet) String() string {
	return strings.Join(s.Sorted(), " ")
}

// Tokenize разбивает текст на токены со стоп-словами по умолчанию.
func Tokenize(text string) TokenSet {
	return tokenize(text, defaultStopSet)
}

// TokenizeWith разбивает текст на токены с собственным списком стоп-слов. nil отключает фильтр.
func TokenizeWith(text string, stopWords []string) TokenSet {
	return tokenize(text, newStopSet(stopWords))
}

func tokenize(text string, stop map[string]struct{}) TokenSet {
	set := make(TokenSet)
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isASCIIAlnum(r)
	})
	for _, f := range fields {
		if len(f) < minTokenLength && !isNumeric(f) {
			continue
		}
		if _, skip := stop[f]; skip {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Similarity считает коэффициент Жаккара двух наборов. Пустое объединение даёт 0.
func Similarity(a, b TokenSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if large.Has(t) {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
