package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"pulsepoint/internal/domain"
	httpinfra "pulsepoint/internal/infra/http"
	"pulsepoint/internal/usecase/events"
	"pulsepoint/internal/usecase/polls"
	"pulsepoint/internal/usecase/submissions"
)

var handlerNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type stubPolls struct {
	feedReq polls.FeedRequest
	feed    []domain.Poll
	feedErr error
	polls   map[string]domain.Poll
	query   string
	dupes   []domain.DuplicateMatch
}

func (s *stubPolls) Feed(_ context.Context, req polls.FeedRequest) ([]domain.Poll, error) {
	s.feedReq = req
	return s.feed, s.feedErr
}

func (s *stubPolls) PollBySlug(_ context.Context, slug, _ string) (domain.Poll, error) {
	p, ok := s.polls[slug]
	if !ok {
		return domain.Poll{}, fmt.Errorf("получение опроса: %w", domain.ErrPollNotFound)
	}
	return p, nil
}

func (s *stubPolls) SearchSuggestions(_ context.Context, q string) []domain.Suggestion {
	s.query = q
	return nil
}

func (s *stubPolls) CheckDuplicates(context.Context, string, []string) []domain.DuplicateMatch {
	return s.dupes
}

func (s *stubPolls) SimilarPolls(_ context.Context, id string) ([]domain.DuplicateMatch, error) {
	if id != "p1" {
		return nil, domain.ErrPollNotFound
	}
	return s.dupes, nil
}

type stubSubmissions struct{}

func (stubSubmissions) Preview(_ context.Context, d submissions.Draft) (submissions.Review, error) {
	if d.Title == "" {
		return submissions.Review{}, submissions.ErrTitleRequired
	}
	return submissions.Review{Slug: "ok", Title: d.Title}, nil
}

type stubRewriter struct{}

func (stubRewriter) Rewrite(_ context.Context, d domain.PollDraft) (domain.AssistResult, error) {
	return domain.AssistResult{Title: d.Title + "?", Source: "heuristic"}, nil
}

type stubTracker struct {
	got []events.TrackInput
}

func (s *stubTracker) Track(_ context.Context, in events.TrackInput) error {
	s.got = append(s.got, in)
	_, err := events.Validate(in, handlerNow)
	return err
}

func newTestRouter(p *stubPolls, tr *stubTracker) http.Handler {
	h := NewHandler(p, stubSubmissions{}, stubRewriter{}, tr, zerolog.Nop())
	h.now = func() time.Time { return handlerNow }
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestFeedParsesQuery(t *testing.T) {
	ends := handlerNow.Add(2 * time.Hour)
	p := &stubPolls{feed: []domain.Poll{{
		ID:      "p1",
		Slug:    "goat",
		EndsAt:  &ends,
		Options: []domain.Option{{ID: "o1", Votes: 3}, {ID: "o2", Votes: 4}},
	}}}
	rec := do(t, newTestRouter(p, &stubTracker{}), http.MethodGet, "/api/v1/feed?tab=saved&category=SPORT&q=messi", "", map[string]string{httpinfra.ViewerHeader: "u1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	want := polls.FeedRequest{Tab: domain.FeedTabSaved, Category: domain.CategorySport, Query: "messi", ViewerID: "u1"}
	if p.feedReq != want {
		t.Fatalf("неожиданный запрос ленты: %+v", p.feedReq)
	}
	var body struct {
		Polls []struct {
			ID         string `json:"id"`
			TotalVotes int    `json:"total_votes"`
			Lifecycle  string `json:"lifecycle"`
		} `json:"polls"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if len(body.Polls) != 1 || body.Polls[0].TotalVotes != 7 || body.Polls[0].Lifecycle != "closing-soon" {
		t.Fatalf("неожиданный ответ: %+v", body)
	}
}

func TestFeedError(t *testing.T) {
	p := &stubPolls{feedErr: errors.New("db down")}
	rec := do(t, newTestRouter(p, &stubTracker{}), http.MethodGet, "/api/v1/feed", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("ожидали 500, получили %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "db down") {
		t.Fatalf("внутренняя ошибка не должна попадать в ответ")
	}
}

func TestPollDetailNotFound(t *testing.T) {
	p := &stubPolls{polls: map[string]domain.Poll{"goat": {ID: "p1", Slug: "goat"}}}
	h := newTestRouter(p, &stubTracker{})
	if rec := do(t, h, http.MethodGet, "/api/v1/polls/goat", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/api/v1/polls/missing", "", nil)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), `"error"`) {
		t.Fatalf("ожидали 404 с ошибкой, получили %d %s", rec.Code, rec.Body.String())
	}
}

func TestSuggestionsAndDuplicates(t *testing.T) {
	p := &stubPolls{}
	h := newTestRouter(p, &stubTracker{})
	rec := do(t, h, http.MethodPost, "/api/v1/search/suggestions", `{"q":"mess"}`, nil)
	if rec.Code != http.StatusOK || p.query != "mess" {
		t.Fatalf("неожиданный ответ подсказок: %d %q", rec.Code, p.query)
	}
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Fatalf("пустые подсказки отдаются массивом: %s", rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/search/suggestions", `{`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400 на битый JSON, получили %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/v1/polls/duplicate-check", `{"title":"x","options":["a"]}`, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"duplicates":[]`) {
		t.Fatalf("неожиданный ответ проверки дублей: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSimilar(t *testing.T) {
	p := &stubPolls{dupes: []domain.DuplicateMatch{{PollID: "p2", Score: 0.5}}}
	h := newTestRouter(p, &stubTracker{})
	rec := do(t, h, http.MethodGet, "/api/v1/admin/polls/p1/similar", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"p2"`) {
		t.Fatalf("неожиданный ответ: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/admin/polls/zzz/similar", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("ожидали 404, получили %d", rec.Code)
	}
}

func TestSubmissionPreviewValidation(t *testing.T) {
	h := newTestRouter(&stubPolls{}, &stubTracker{})
	rec := do(t, h, http.MethodPost, "/api/v1/submissions/preview", `{"title":""}`, nil)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "title and description are required") {
		t.Fatalf("ожидали 400, получили %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/submissions/preview", `{"title":"ok"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
}

func TestImprove(t *testing.T) {
	h := newTestRouter(&stubPolls{}, &stubTracker{})
	if rec := do(t, h, http.MethodPost, "/api/v1/polls/improve", `{"title":"  "}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400 без заголовка, получили %d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/api/v1/polls/improve", `{"title":"Best album"}`, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Best album?"`) {
		t.Fatalf("неожиданный ответ: %d %s", rec.Code, rec.Body.String())
	}
}

func TestTrackEvent(t *testing.T) {
	tr := &stubTracker{}
	h := newTestRouter(&stubPolls{}, tr)
	rec := do(t, h, http.MethodPost, "/api/v1/analytics/events", `{"poll_id":"p1","event_type":"poll_view"}`, map[string]string{httpinfra.ViewerHeader: "u9"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ожидали 202, получили %d", rec.Code)
	}
	if len(tr.got) != 1 || tr.got[0].UserID != "u9" || !tr.got[0].Public {
		t.Fatalf("неожиданное событие: %+v", tr.got)
	}
	rec = do(t, h, http.MethodPost, "/api/v1/analytics/events", `{"poll_id":"p1","event_type":"vote_cast"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400 для закрытого типа, получили %d", rec.Code)
	}
}
