package submissions

import (
	"regexp"
	"strings"
	"time"
)

const (
	blurbMaxLength   = 120
	blurbCutLength   = 117
	defaultBlurb     = "Community opinion poll."
	defaultDuration  = 30 * 24 * time.Hour
	durationAllTime  = "all-time"
	durationCustom   = "custom"
	fallbackSlugBase = "poll"
)

var durationPresets = map[string]time.Duration{
	"1d":  24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

var (
	slugStrip  = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces = regexp.MustCompile(`\s+`)
	slugDashes = regexp.MustCompile(`-+`)
)

// SanitizeText обрезает пробелы по краям и схлопывает внутренние.
func SanitizeText(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// ParseOptions нормализует варианты, удаляя пустые и повторы с сохранением порядка.
func ParseOptions(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		clean := SanitizeText(v)
		if clean == "" {
			continue
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}

// Slugify строит адрес опроса из заголовка.
func Slugify(title string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(title), "")
	s = strings.TrimSpace(s)
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	if s == "" || s == "-" {
		return fallbackSlugBase
	}
	return s
}

// DeriveBlurb берёт описание или заголовок и обрезает до 120 символов.
func DeriveBlurb(description, title string) string {
	source := strings.TrimSpace(description)
	if source == "" {
		source = strings.TrimSpace(title)
	}
	if source == "" {
		return defaultBlurb
	}
	runes := []rune(source)
	if len(runes) <= blurbMaxLength {
		return source
	}
	return strings.TrimRight(string(runes[:blurbCutLength]), " \t\n") + "..."
}

// ResolveEndAt переводит пресет длительности в дату окончания. all-time означает бессрочный опрос.
func ResolveEndAt(preset, custom string, now time.Time) *time.Time {
	if preset == durationAllTime {
		return nil
	}
	if d, ok := durationPresets[preset]; ok {
		end := now.Add(d)
		return &end
	}
	if preset == durationCustom {
		if parsed, ok := parseDate(custom); ok {
			return &parsed
		}
	}
	end := now.Add(defaultDuration)
	return &end
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
