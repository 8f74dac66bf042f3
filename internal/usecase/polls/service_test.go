package polls

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pulsepoint/internal/domain"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type stubRepo struct {
	mu sync.Mutex

	polls   []domain.Poll
	options []domain.Option
	totals  []domain.OptionTotal
	events  []domain.VoteEvent

	listErr   error
	eventsErr error
	queries   []domain.PollQuery

	// entered получает сигнал при входе в ListPolls, release отпускает вызов.
	entered chan struct{}
	release chan struct{}
}

func (s *stubRepo) ListPolls(ctx context.Context, q domain.PollQuery) ([]domain.Poll, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	if s.release != nil {
		s.entered <- struct{}{}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.release:
		}
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	ids := make(map[string]bool, len(q.IDs))
	for _, id := range q.IDs {
		ids[id] = true
	}
	var out []domain.Poll
	for _, p := range s.polls {
		if len(ids) > 0 && !ids[p.ID] {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if q.ExcludeID != "" && p.ID == q.ExcludeID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *stubRepo) GetPollBySlug(_ context.Context, slug string) (domain.Poll, error) {
	for _, p := range s.polls {
		if p.Slug == slug {
			return p, nil
		}
	}
	return domain.Poll{}, domain.ErrPollNotFound
}

func (s *stubRepo) GetPollByID(_ context.Context, id string) (domain.Poll, error) {
	for _, p := range s.polls {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Poll{}, domain.ErrPollNotFound
}

func (s *stubRepo) ListOptions(_ context.Context, ids []string) ([]domain.Option, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.Option
	for _, o := range s.options {
		if want[o.PollID] {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *stubRepo) ListOptionTotals(context.Context, []string) ([]domain.OptionTotal, error) {
	return s.totals, nil
}

func (s *stubRepo) ListVoteEvents(_ context.Context, _ []string, since time.Time) ([]domain.VoteEvent, error) {
	if s.eventsErr != nil {
		return nil, s.eventsErr
	}
	var out []domain.VoteEvent
	for _, e := range s.events {
		if !e.ChangedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubBookmarks struct {
	ids []string
	err error
}

func (s stubBookmarks) ListBookmarkedPollIDs(context.Context, string, int) ([]string, error) {
	return s.ids, s.err
}

type stubComments map[string]int

func (s stubComments) CountComments(context.Context, []string) (map[string]int, error) {
	return s, nil
}

func (s *stubRepo) listCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func blockingRepo() *stubRepo {
	repo := fixtureRepo()
	repo.entered = make(chan struct{}, 4)
	repo.release = make(chan struct{})
	return repo
}

func newTestService(repo *stubRepo, bookmarks domain.BookmarkRepo) *Service {
	svc := NewService(repo, bookmarks, stubComments{"p1": 4}, DefaultConfig(), zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func votes(pollID, optionID string, n int, ago time.Duration) []domain.VoteEvent {
	out := make([]domain.VoteEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.VoteEvent{PollID: pollID, OptionID: optionID, ChangedAt: testNow.Add(-ago)})
	}
	return out
}

func fixtureRepo() *stubRepo {
	repo := &stubRepo{
		polls: []domain.Poll{
			{ID: "p1", Slug: "best-footballer", Title: "Best footballer ever?", Category: domain.CategorySport, CreatedAt: testNow.Add(-72 * time.Hour)},
			{ID: "p2", Slug: "tax", Title: "Should taxes rise?", Category: domain.CategoryPolitics, CreatedAt: testNow.Add(-time.Hour)},
			{ID: "p3", Slug: "film", Title: "Film of the year", Category: domain.CategoryCulture, CreatedAt: testNow.Add(-48 * time.Hour)},
			{ID: "p4", Slug: "goat", Title: "Footballer of all time", Category: domain.CategorySport, CreatedAt: testNow.Add(-24 * time.Hour)},
		},
		options: []domain.Option{
			{ID: "o2", PollID: "p1", Label: "Ronaldo", Position: 1, Votes: 10},
			{ID: "o1", PollID: "p1", Label: "Messi", Position: 0, Votes: 30},
			{ID: "o3", PollID: "p2", Label: "Yes", Position: 0, Votes: 100},
			{ID: "o4", PollID: "p2", Label: "No", Position: 1, Votes: 5},
			{ID: "o5", PollID: "p3", Label: "Dune", Position: 0, Votes: 2},
			{ID: "o6", PollID: "p4", Label: "Messi", Position: 0},
			{ID: "o7", PollID: "p4", Label: "Pele", Position: 1},
		},
		totals: []domain.OptionTotal{
			{PollID: "p1", OptionID: "o1", Votes: 30},
			{PollID: "p1", OptionID: "o2", Votes: 10},
			{PollID: "p2", OptionID: "o3", Votes: 100},
		},
	}
	repo.events = append(repo.events, votes("p1", "o1", 30, time.Hour)...)
	repo.events = append(repo.events, votes("p1", "o2", 10, 2*time.Hour)...)
	repo.events = append(repo.events, votes("p3", "o5", 2, 3*time.Hour)...)
	repo.events = append(repo.events, votes("p2", "o3", 1, 10*24*time.Hour)...)
	return repo
}

func ids(polls []domain.Poll) []string {
	out := make([]string, 0, len(polls))
	for _, p := range polls {
		out = append(out, p.ID)
	}
	return out
}

func TestFeedTrendingOrder(t *testing.T) {
	svc := newTestService(fixtureRepo(), stubBookmarks{ids: []string{"p3"}})
	feed, err := svc.Feed(context.Background(), FeedRequest{Tab: domain.FeedTabTrending, ViewerID: "u1"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(feed) != 4 || feed[0].ID != "p1" || feed[1].ID != "p3" {
		t.Fatalf("неверный порядок ленты: %v", ids(feed))
	}
	if !feed[0].IsTrending || feed[0].Velocity24h != 40 {
		t.Fatalf("ожидали p1 в тренде с 40 голосами, получили %+v", feed[0])
	}
	if feed[1].IsTrending {
		t.Fatalf("p3 не должен быть в тренде")
	}
	if !feed[1].IsBookmarked {
		t.Fatalf("ожидали закладку на p3")
	}
	if feed[0].CommentCount != 4 {
		t.Fatalf("ожидали 4 комментария у p1")
	}
	if feed[0].Options[0].Label != "Messi" {
		t.Fatalf("варианты должны идти по позиции: %+v", feed[0].Options)
	}
}

func TestFeedFiltersAndTabs(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)
	feed, err := svc.Feed(context.Background(), FeedRequest{Tab: domain.FeedTabNew, Category: domain.CategorySport})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got := ids(feed); len(got) != 2 || got[0] != "p4" || got[1] != "p1" {
		t.Fatalf("ожидали p4, p1, получили %v", got)
	}

	feed, err = svc.Feed(context.Background(), FeedRequest{Tab: domain.FeedTabMostVoted, Query: "taxes"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got := ids(feed); len(got) != 1 || got[0] != "p2" {
		t.Fatalf("ожидали только p2, получили %v", got)
	}
}

func TestFeedSavedRequiresViewer(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, stubBookmarks{ids: []string{"p2", "p3"}})
	feed, err := svc.Feed(context.Background(), FeedRequest{Tab: domain.FeedTabSaved})
	if err != nil || len(feed) != 0 {
		t.Fatalf("аноним не должен видеть закладки: %v %v", ids(feed), err)
	}
	feed, err = svc.Feed(context.Background(), FeedRequest{Tab: domain.FeedTabSaved, ViewerID: "u1"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got := ids(feed); len(got) != 2 || got[0] != "p2" || got[1] != "p3" {
		t.Fatalf("ожидали закладки по дате создания, получили %v", got)
	}
}

func TestFeedSurvivesVoteEventFailure(t *testing.T) {
	repo := fixtureRepo()
	repo.eventsErr = errors.New("timeout")
	svc := newTestService(repo, nil)
	feed, err := svc.Feed(context.Background(), FeedRequest{Tab: domain.FeedTabTrending})
	if err != nil {
		t.Fatalf("лента не должна падать без журнала голосов: %v", err)
	}
	if len(feed) != 4 {
		t.Fatalf("ожидали 4 опроса, получили %d", len(feed))
	}
}

func TestFeedListError(t *testing.T) {
	repo := fixtureRepo()
	repo.listErr = domain.ErrResourceNotConfigured
	svc := newTestService(repo, nil)
	if _, err := svc.Feed(context.Background(), FeedRequest{}); !errors.Is(err, domain.ErrResourceNotConfigured) {
		t.Fatalf("ожидали ErrResourceNotConfigured, получили %v", err)
	}
}

func TestPollBySlugTrend(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)
	poll, err := svc.PollBySlug(context.Background(), "best-footballer", "")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(poll.Trend) != 3 {
		t.Fatalf("ожидали 3 окна, получили %d", len(poll.Trend))
	}
	if math.Abs(poll.Trend[0].Shares["o1"]-0.75) > 1e-9 {
		t.Fatalf("ожидали долю 0.75, получили %v", poll.Trend[0].Shares["o1"])
	}
	if poll.Velocity24h != 40 || poll.CommentCount != 4 {
		t.Fatalf("неверные счётчики: %+v", poll)
	}
}

func TestPollBySlugFallsBackToTotals(t *testing.T) {
	repo := fixtureRepo()
	repo.eventsErr = errors.New("timeout")
	svc := newTestService(repo, nil)
	poll, err := svc.PollBySlug(context.Background(), "best-footballer", "")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	for _, p := range poll.Trend {
		if p.TotalVotes != 40 {
			t.Fatalf("ожидали снимок из 40 голосов, получили %d", p.TotalVotes)
		}
	}
}

func TestPollBySlugNotFound(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)
	if _, err := svc.PollBySlug(context.Background(), "missing", ""); !errors.Is(err, domain.ErrPollNotFound) {
		t.Fatalf("ожидали ErrPollNotFound, получили %v", err)
	}
}

func TestSearchSuggestions(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)
	got := svc.SearchSuggestions(context.Background(), "messi")
	if len(got) == 0 || got[0].ID != "p1" || got[0].Score != 120 {
		t.Fatalf("ожидали первым p1 по варианту Messi, получили %+v", got)
	}
	if got[0].Votes != 40 {
		t.Fatalf("популярность должна считаться по итогам, получили %d", got[0].Votes)
	}
	if len(got) > 6 {
		t.Fatalf("не больше 6 подсказок")
	}
}

func TestSearchSuggestionsFailOpen(t *testing.T) {
	repo := fixtureRepo()
	repo.listErr = errors.New("down")
	svc := newTestService(repo, nil)
	if got := svc.SearchSuggestions(context.Background(), "messi"); got == nil || len(got) != 0 {
		t.Fatalf("ожидали пустой список, получили %v", got)
	}
}

func TestCheckDuplicates(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)
	got := svc.CheckDuplicates(context.Background(), "Who is the best footballer of all time?", []string{"Messi", "Ronaldo", "Pele"})
	if len(got) != 2 || got[0].PollID != "p4" || got[1].PollID != "p1" {
		t.Fatalf("неожиданные совпадения: %+v", got)
	}
	last := repo.queries[len(repo.queries)-1]
	if last.Limit != 300 || len(last.Statuses) != 1 || last.Statuses[0] != domain.PollStatusPublished {
		t.Fatalf("неверный пул кандидатов: %+v", last)
	}
}

func TestCheckDuplicatesFailOpen(t *testing.T) {
	repo := fixtureRepo()
	repo.listErr = errors.New("down")
	svc := newTestService(repo, nil)
	if got := svc.CheckDuplicates(context.Background(), "Best footballer", nil); len(got) != 0 {
		t.Fatalf("ожидали пустой результат, получили %v", got)
	}
}

func TestSimilarPolls(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)
	got, err := svc.SimilarPolls(context.Background(), "p1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 1 || got[0].PollID != "p4" {
		t.Fatalf("ожидали только p4, получили %+v", got)
	}
	last := repo.queries[len(repo.queries)-1]
	if last.Category != domain.CategorySport || last.ExcludeID != "p1" || last.Limit != 80 {
		t.Fatalf("неверный пул кандидатов: %+v", last)
	}
}

func TestSimilarPollsNotFound(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)
	if _, err := svc.SimilarPolls(context.Background(), "nope"); !errors.Is(err, domain.ErrPollNotFound) {
		t.Fatalf("ожидали ErrPollNotFound, получили %v", err)
	}
}

func TestCheckDuplicatesSharedLoadSurvivesCancelledCaller(t *testing.T) {
	repo := blockingRepo()
	svc := newTestService(repo, nil)
	title := "Who is the best footballer of all time?"
	options := []string{"Messi", "Ronaldo", "Pele"}

	firstCtx, cancel := context.WithCancel(context.Background())
	first := make(chan []domain.DuplicateMatch, 1)
	go func() { first <- svc.CheckDuplicates(firstCtx, title, options) }()
	<-repo.entered

	second := make(chan []domain.DuplicateMatch, 1)
	go func() { second <- svc.CheckDuplicates(context.Background(), title, options) }()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if got := <-first; len(got) != 0 {
		t.Fatalf("отменённый вызов должен вернуть пустой список, получили %+v", got)
	}
	close(repo.release)
	got := <-second
	if len(got) != 2 || got[0].PollID != "p4" {
		t.Fatalf("второй вызов должен получить совпадения, получили %+v", got)
	}
	if n := repo.listCalls(); n != 1 {
		t.Fatalf("ожидали одну общую загрузку, получили %d", n)
	}
}

func TestSearchSuggestionsCoalescesConcurrentLoads(t *testing.T) {
	repo := blockingRepo()
	svc := newTestService(repo, nil)

	results := make(chan []domain.Suggestion, 2)
	go func() { results <- svc.SearchSuggestions(context.Background(), "messi") }()
	<-repo.entered
	go func() { results <- svc.SearchSuggestions(context.Background(), "messi") }()
	time.Sleep(50 * time.Millisecond)
	close(repo.release)

	for i := 0; i < 2; i++ {
		if got := <-results; len(got) == 0 {
			t.Fatalf("ожидали подсказки для обоих вызовов")
		}
	}
	if n := repo.listCalls(); n != 1 {
		t.Fatalf("одинаковые загрузки должны объединяться, получили %d вызовов ListPolls", n)
	}
}
