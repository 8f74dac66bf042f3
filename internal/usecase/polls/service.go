package polls

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"pulsepoint/internal/adapters/ranker"
	"pulsepoint/internal/domain"
	"pulsepoint/internal/infra/metrics"
)

// Config задаёт пороги ранжирования и размеры выборок.
type Config struct {
	Duplicates ranker.DuplicateParams
	Trending   ranker.TrendingParams

	DuplicateLimit     int
	DuplicatePoolSize  int
	SimilarLimit       int
	SimilarPoolSize    int
	SuggestionLimit    int
	SuggestionPoolSize int
	FeedPoolSize       int
	SavedLimit         int
}

// DefaultConfig возвращает значения, с которыми работает платформа.
func DefaultConfig() Config {
	return Config{
		Duplicates:         ranker.DefaultDuplicateParams(),
		Trending:           ranker.DefaultTrendingParams(),
		DuplicateLimit:     3,
		DuplicatePoolSize:  300,
		SimilarLimit:       6,
		SimilarPoolSize:    80,
		SuggestionLimit:    ranker.DefaultSuggestionLimit,
		SuggestionPoolSize: 200,
		FeedPoolSize:       200,
		SavedLimit:         100,
	}
}

var (
	feedStatuses    = []domain.PollStatus{domain.PollStatusPublished, domain.PollStatusClosed}
	publishedOnly   = []domain.PollStatus{domain.PollStatusPublished}
	similarStatuses = []domain.PollStatus{domain.PollStatusPublished, domain.PollStatusClosed}
)

// Service собирает ленту, карточку опроса, подсказки и проверку дубликатов.
type Service struct {
	polls     domain.PollRepo
	bookmarks domain.BookmarkRepo
	comments  domain.CommentRepo
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time

	duplicates *ranker.DuplicateDetector
	search     *ranker.SearchRanker
	trending   *ranker.TrendingSelector

	pools singleflight.Group
}

// NewService создаёт сервис опросов. bookmarks и comments могут быть nil.
func NewService(polls domain.PollRepo, bookmarks domain.BookmarkRepo, comments domain.CommentRepo, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		polls:      polls,
		bookmarks:  bookmarks,
		comments:   comments,
		cfg:        cfg,
		log:        logger.With().Str("component", "polls").Logger(),
		now:        time.Now,
		duplicates: ranker.NewDuplicateDetector(cfg.Duplicates),
		search:     ranker.NewSearchRanker(cfg.SuggestionLimit),
		trending:   ranker.NewTrendingSelector(cfg.Trending),
	}
}

// FeedRequest описывает запрос ленты.
type FeedRequest struct {
	Tab      domain.FeedTab
	Category domain.Category
	Query    string
	ViewerID string
}

// Feed возвращает упорядоченную ленту опросов для вкладки.
func (s *Service) Feed(ctx context.Context, req FeedRequest) ([]domain.Poll, error) {
	query := domain.PollQuery{Statuses: feedStatuses, Limit: s.cfg.FeedPoolSize}
	if req.Category != "" && req.Category != domain.CategoryAll {
		query.Category = req.Category
	}
	if req.Tab == domain.FeedTabSaved {
		if req.ViewerID == "" || s.bookmarks == nil {
			return []domain.Poll{}, nil
		}
		ids, err := s.bookmarks.ListBookmarkedPollIDs(ctx, req.ViewerID, s.cfg.SavedLimit)
		if err != nil {
			return nil, fmt.Errorf("получение закладок: %w", err)
		}
		if len(ids) == 0 {
			return []domain.Poll{}, nil
		}
		query.IDs = ids
		query.Limit = 0
	}

	polls, err := s.polls.ListPolls(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("получение опросов: %w", err)
	}
	if len(polls) == 0 {
		return []domain.Poll{}, nil
	}

	now := s.now()
	ids := pollIDs(polls)
	var (
		options   []domain.Option
		events    []domain.VoteEvent
		bookmarks map[string]bool
		comments  map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		options, err = s.polls.ListOptions(gctx, ids)
		if err != nil {
			return fmt.Errorf("получение вариантов: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		events, err = s.polls.ListVoteEvents(gctx, ids, now.Add(-ranker.VelocityWindow))
		if err != nil {
			s.log.Warn().Err(err).Msg("голоса за сутки недоступны, тренды не рассчитаны")
			events = nil
		}
		return nil
	})
	g.Go(func() error {
		bookmarks = s.loadBookmarks(gctx, req.ViewerID)
		return nil
	})
	g.Go(func() error {
		comments = s.loadComments(gctx, ids)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	start := time.Now()
	velocity := ranker.CountVelocity(events, now.Add(-ranker.VelocityWindow))
	trending := s.trending.Select(velocity)
	hydrated := attachOptions(polls, options)
	for i := range hydrated {
		p := &hydrated[i]
		p.Velocity24h = velocity[p.ID]
		_, p.IsTrending = trending[p.ID]
		p.IsBookmarked = bookmarks[p.ID]
		p.CommentCount = comments[p.ID]
	}
	filtered := ranker.FilterPolls(hydrated, req.Category, req.Query)
	ordered := ranker.OrderPolls(req.Tab, filtered, velocity)
	metrics.ObserveRanking("feed", start, len(polls))
	metrics.TrendingPolls.Set(float64(len(trending)))
	return ordered, nil
}

// PollBySlug возвращает карточку опроса с распределением голосов за 24h, 7d и 30d.
func (s *Service) PollBySlug(ctx context.Context, slug, viewerID string) (domain.Poll, error) {
	poll, err := s.polls.GetPollBySlug(ctx, slug)
	if err != nil {
		return domain.Poll{}, fmt.Errorf("получение опроса %s: %w", slug, err)
	}

	now := s.now()
	ids := []string{poll.ID}
	windows := ranker.DefaultWindows()
	since := now.Add(-windows[len(windows)-1].Duration)
	var (
		options   []domain.Option
		totals    []domain.OptionTotal
		events    []domain.VoteEvent
		bookmarks map[string]bool
		comments  map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		options, err = s.polls.ListOptions(gctx, ids)
		if err != nil {
			return fmt.Errorf("получение вариантов: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		totals, err = s.polls.ListOptionTotals(gctx, ids)
		if err != nil {
			return fmt.Errorf("получение итогов: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		events, err = s.polls.ListVoteEvents(gctx, ids, since)
		if err != nil {
			s.log.Warn().Err(err).Str("poll_id", poll.ID).Msg("журнал голосов недоступен, используем итоги")
			events = nil
		}
		return nil
	})
	g.Go(func() error {
		bookmarks = s.loadBookmarks(gctx, viewerID)
		return nil
	})
	g.Go(func() error {
		comments = s.loadComments(gctx, ids)
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Poll{}, err
	}

	start := time.Now()
	poll = attachOptions([]domain.Poll{poll}, options)[0]
	aggregator := &ranker.VelocityAggregator{Now: func() time.Time { return now }, Windows: windows}
	poll.Trend = aggregator.BuildTrendPoints(poll.Options, events, totals)
	poll.Velocity24h = ranker.CountVelocity(events, now.Add(-ranker.VelocityWindow))[poll.ID]
	poll.IsBookmarked = bookmarks[poll.ID]
	poll.CommentCount = comments[poll.ID]
	metrics.ObserveRanking("trend_points", start, len(events))
	return poll, nil
}

// SearchSuggestions возвращает подсказки поиска. Ошибки хранилища дают пустой список.
func (s *Service) SearchSuggestions(ctx context.Context, query string) []domain.Suggestion {
	pool, err := s.loadPool(ctx, domain.PollQuery{Statuses: publishedOnly, Limit: s.cfg.SuggestionPoolSize}, true)
	if err != nil {
		s.failOpen("search_suggestions", err)
		return []domain.Suggestion{}
	}

	start := time.Now()
	polls := attachOptions(pool.polls, pool.options)
	votes := make(map[string]int, len(polls))
	for _, t := range pool.totals {
		votes[t.PollID] += t.Votes
	}
	candidates := make([]ranker.SearchCandidate, 0, len(polls))
	for _, p := range polls {
		candidates = append(candidates, ranker.SearchCandidate{Poll: p, Votes: votes[p.ID]})
	}
	out := s.search.Rank(query, candidates)
	metrics.ObserveRanking("search_suggestions", start, len(candidates))
	return out
}

// CheckDuplicates ищет опубликованные опросы, похожие на черновик. Ошибки хранилища дают пустой список.
func (s *Service) CheckDuplicates(ctx context.Context, title string, options []string) []domain.DuplicateMatch {
	if strings.TrimSpace(title) == "" && len(options) == 0 {
		return []domain.DuplicateMatch{}
	}
	pool, err := s.loadPool(ctx, domain.PollQuery{Statuses: publishedOnly, Limit: s.cfg.DuplicatePoolSize}, false)
	if err != nil {
		s.failOpen("duplicate_check", err)
		return []domain.DuplicateMatch{}
	}
	start := time.Now()
	matches := s.duplicates.FindPossibleDuplicates(ranker.DuplicateQuery{
		Title:   title,
		Options: options,
		Limit:   s.cfg.DuplicateLimit,
	}, pool.polls, pool.options)
	metrics.ObserveRanking("duplicate_check", start, len(pool.polls))
	return nonNil(matches)
}

// SimilarPolls ищет опросы той же рубрики, похожие на существующий опрос.
func (s *Service) SimilarPolls(ctx context.Context, pollID string) ([]domain.DuplicateMatch, error) {
	poll, err := s.polls.GetPollByID(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("получение опроса %s: %w", pollID, err)
	}
	options, err := s.polls.ListOptions(ctx, []string{poll.ID})
	if err != nil {
		return nil, fmt.Errorf("получение вариантов: %w", err)
	}
	poll = attachOptions([]domain.Poll{poll}, options)[0]

	pool, err := s.loadPool(ctx, domain.PollQuery{
		Category:  poll.Category,
		Statuses:  similarStatuses,
		ExcludeID: poll.ID,
		Limit:     s.cfg.SimilarPoolSize,
	}, false)
	if err != nil {
		s.failOpen("similar_polls", err)
		return []domain.DuplicateMatch{}, nil
	}
	start := time.Now()
	matches := s.duplicates.FindPossibleDuplicates(ranker.DuplicateQuery{
		Title:         poll.Title,
		Options:       poll.OptionLabels(),
		ExcludePollID: poll.ID,
		Limit:         s.cfg.SimilarLimit,
	}, pool.polls, pool.options)
	metrics.ObserveRanking("similar_polls", start, len(pool.polls))
	return nonNil(matches), nil
}

func (s *Service) failOpen(operation string, err error) {
	metrics.IncFailOpen(operation)
	s.log.Warn().Err(err).Str("operation", operation).Msg("хранилище недоступно, отдаём пустой результат")
}

func (s *Service) loadBookmarks(ctx context.Context, viewerID string) map[string]bool {
	out := make(map[string]bool)
	if viewerID == "" || s.bookmarks == nil {
		return out
	}
	ids, err := s.bookmarks.ListBookmarkedPollIDs(ctx, viewerID, s.cfg.SavedLimit)
	if err != nil {
		s.log.Warn().Err(err).Str("viewer_id", viewerID).Msg("закладки недоступны")
		return out
	}
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func (s *Service) loadComments(ctx context.Context, ids []string) map[string]int {
	if s.comments == nil {
		return map[string]int{}
	}
	counts, err := s.comments.CountComments(ctx, ids)
	if err != nil {
		s.log.Warn().Err(err).Msg("счётчики комментариев недоступны")
		return map[string]int{}
	}
	return counts
}

func pollIDs(polls []domain.Poll) []string {
	ids := make([]string, 0, len(polls))
	for _, p := range polls {
		ids = append(ids, p.ID)
	}
	return ids
}

// attachOptions возвращает копии опросов с упорядоченными вариантами.
func attachOptions(polls []domain.Poll, options []domain.Option) []domain.Poll {
	byPoll := make(map[string][]domain.Option, len(polls))
	for _, o := range options {
		byPoll[o.PollID] = append(byPoll[o.PollID], o)
	}
	out := make([]domain.Poll, len(polls))
	for i, p := range polls {
		opts := byPoll[p.ID]
		if opts == nil {
			opts = p.Options
		}
		p.Options = append([]domain.Option(nil), opts...)
		domain.SortOptions(p.Options)
		out[i] = p
	}
	return out
}

func nonNil(matches []domain.DuplicateMatch) []domain.DuplicateMatch {
	if matches == nil {
		return []domain.DuplicateMatch{}
	}
	return matches
}
