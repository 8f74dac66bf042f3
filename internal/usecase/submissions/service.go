package submissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pulsepoint/internal/domain"
)

const (
	minOptions = 2
	maxOptions = 10
)

// ErrInvalidDraft объединяет ошибки проверки черновика.
var ErrInvalidDraft = errors.New("некорректный черновик")

var (
	ErrTitleRequired   = fmt.Errorf("%w: title and description are required", ErrInvalidDraft)
	ErrInvalidCategory = fmt.Errorf("%w: please choose a valid category", ErrInvalidDraft)
	ErrOptionCount     = fmt.Errorf("%w: polls must have between %d and %d unique options", ErrInvalidDraft, minOptions, maxOptions)
)

// DuplicateChecker ищет опубликованные опросы, похожие на черновик.
type DuplicateChecker interface {
	CheckDuplicates(ctx context.Context, title string, options []string) []domain.DuplicateMatch
}

// Draft описывает черновик, присланный пользователем.
type Draft struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	Options        []string `json:"options"`
	DurationPreset string   `json:"duration_preset"`
	EndAt          string   `json:"end_at"`
}

// Review содержит нормализованный черновик и решения по нему. Ничего не сохраняется.
type Review struct {
	Slug               string                   `json:"slug"`
	Title              string                   `json:"title"`
	Blurb              string                   `json:"blurb"`
	Description        string                   `json:"description"`
	Category           domain.Category          `json:"category"`
	Options            []string                 `json:"options"`
	EndsAt             *time.Time               `json:"ends_at"`
	RequiresModeration bool                     `json:"requires_moderation"`
	Moderation         domain.ModerationVerdict `json:"moderation"`
	Duplicates         []domain.DuplicateMatch  `json:"duplicates"`
}

// Service проверяет черновики опросов.
type Service struct {
	classifier domain.Classifier
	duplicates DuplicateChecker
	log        zerolog.Logger
	now        func() time.Time
}

// NewService создаёт сервис проверки черновиков.
func NewService(classifier domain.Classifier, duplicates DuplicateChecker, logger zerolog.Logger) *Service {
	return &Service{
		classifier: classifier,
		duplicates: duplicates,
		log:        logger.With().Str("component", "submissions").Logger(),
		now:        time.Now,
	}
}

// Normalize приводит черновик к виду, в котором он будет опубликован, и проверяет его.
func (s *Service) Normalize(d Draft) (Review, error) {
	title := SanitizeText(d.Title)
	description := SanitizeText(d.Description)
	category := SanitizeText(d.Category)
	options := ParseOptions(d.Options)
	preset := SanitizeText(d.DurationPreset)
	if preset == "" {
		preset = "30d"
	}

	if title == "" || description == "" {
		return Review{}, ErrTitleRequired
	}
	if !domain.IsCategory(category) {
		return Review{}, ErrInvalidCategory
	}
	if len(options) < minOptions || len(options) > maxOptions {
		return Review{}, ErrOptionCount
	}

	blurb := DeriveBlurb(description, title)
	cat := domain.Category(category)
	return Review{
		Slug:               Slugify(title),
		Title:              title,
		Blurb:              blurb,
		Description:        description,
		Category:           cat,
		Options:            options,
		EndsAt:             ResolveEndAt(preset, d.EndAt, s.now().UTC()),
		RequiresModeration: RequiresModeration(cat, title, blurb, description),
		Moderation:         domain.ModerationVerdict{Action: domain.ModerationAllow},
		Duplicates:         []domain.DuplicateMatch{},
	}, nil
}

// Preview нормализует черновик, проверяет текст классификатором и ищет дубликаты.
func (s *Service) Preview(ctx context.Context, d Draft) (Review, error) {
	review, err := s.Normalize(d)
	if err != nil {
		return Review{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.classifier != nil {
		g.Go(func() error {
			text := strings.Join(append([]string{review.Title, review.Description}, review.Options...), "\n")
			verdict, err := s.classifier.Classify(gctx, text)
			if err != nil {
				s.log.Warn().Err(err).Msg("классификатор недоступен, отправляем на ручную проверку")
				review.RequiresModeration = true
				return nil
			}
			review.Moderation = verdict
			if verdict.Blocked() {
				review.RequiresModeration = true
			}
			return nil
		})
	}
	if s.duplicates != nil {
		g.Go(func() error {
			review.Duplicates = s.duplicates.CheckDuplicates(gctx, review.Title, review.Options)
			return nil
		})
	}
	_ = g.Wait()
	return review, nil
}
