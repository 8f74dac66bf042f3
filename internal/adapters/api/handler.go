package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"pulsepoint/internal/domain"
	httpinfra "pulsepoint/internal/infra/http"
	"pulsepoint/internal/usecase/events"
	"pulsepoint/internal/usecase/polls"
	"pulsepoint/internal/usecase/submissions"
)

// PollService отдаёт ленту, карточку опроса и результаты поиска.
type PollService interface {
	Feed(ctx context.Context, req polls.FeedRequest) ([]domain.Poll, error)
	PollBySlug(ctx context.Context, slug, viewerID string) (domain.Poll, error)
	SearchSuggestions(ctx context.Context, query string) []domain.Suggestion
	CheckDuplicates(ctx context.Context, title string, options []string) []domain.DuplicateMatch
	SimilarPolls(ctx context.Context, pollID string) ([]domain.DuplicateMatch, error)
}

// SubmissionService проверяет черновики.
type SubmissionService interface {
	Preview(ctx context.Context, d submissions.Draft) (submissions.Review, error)
}

// EventTracker принимает аналитические события.
type EventTracker interface {
	Track(ctx context.Context, in events.TrackInput) error
}

// Handler обслуживает HTTP API опросов.
type Handler struct {
	polls       PollService
	submissions SubmissionService
	assist      domain.Rewriter
	tracker     EventTracker
	log         zerolog.Logger
	now         func() time.Time
}

// NewHandler создаёт обработчики API.
func NewHandler(pollSvc PollService, submissionSvc SubmissionService, assist domain.Rewriter, tracker EventTracker, logger zerolog.Logger) *Handler {
	return &Handler{
		polls:       pollSvc,
		submissions: submissionSvc,
		assist:      assist,
		tracker:     tracker,
		log:         logger.With().Str("component", "api").Logger(),
		now:         time.Now,
	}
}

// Mount регистрирует маршруты /api/v1.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httpinfra.Viewer)

		r.Get("/feed", h.feed)
		r.Get("/polls/{slug}", h.pollDetail)
		r.Post("/polls/duplicate-check", h.duplicateCheck)
		r.Post("/polls/improve", h.improve)
		r.Post("/search/suggestions", h.suggestions)
		r.Post("/submissions/preview", h.previewSubmission)
		r.Post("/analytics/events", h.trackEvent)
		r.Get("/admin/polls/{pollID}/similar", h.similar)
	})
}

type pollView struct {
	domain.Poll
	TotalVotes int              `json:"total_votes"`
	Lifecycle  domain.Lifecycle `json:"lifecycle"`
}

func (h *Handler) view(p domain.Poll) pollView {
	if p.Options == nil {
		p.Options = []domain.Option{}
	}
	return pollView{Poll: p, TotalVotes: p.TotalVotes(), Lifecycle: p.LifecycleAt(h.now())}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrPollNotFound):
		httpinfra.WriteError(w, http.StatusNotFound, "poll not found")
	case errors.Is(err, submissions.ErrInvalidDraft), errors.Is(err, events.ErrInvalidEvent):
		httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Str("operation", op).Msg("ошибка обработки запроса")
		httpinfra.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.polls.Feed(r.Context(), polls.FeedRequest{
		Tab:      domain.ParseFeedTab(q.Get("tab")),
		Category: domain.ParseCategory(q.Get("category")),
		Query:    q.Get("q"),
		ViewerID: httpinfra.ViewerID(r.Context()),
	})
	if err != nil {
		h.writeServiceError(w, "feed", err)
		return
	}
	views := make([]pollView, 0, len(list))
	for _, p := range list {
		views = append(views, h.view(p))
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"polls": views})
}

func (h *Handler) pollDetail(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	poll, err := h.polls.PollBySlug(r.Context(), slug, httpinfra.ViewerID(r.Context()))
	if err != nil {
		h.writeServiceError(w, "poll_detail", err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"poll": h.view(poll)})
}

type suggestionsRequest struct {
	Q string `json:"q"`
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	var req suggestionsRequest
	if err := httpinfra.DecodeJSON(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	results := h.polls.SearchSuggestions(r.Context(), req.Q)
	if results == nil {
		results = []domain.Suggestion{}
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

type duplicateCheckRequest struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

func (h *Handler) duplicateCheck(w http.ResponseWriter, r *http.Request) {
	var req duplicateCheckRequest
	if err := httpinfra.DecodeJSON(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	matches := h.polls.CheckDuplicates(r.Context(), req.Title, req.Options)
	if matches == nil {
		matches = []domain.DuplicateMatch{}
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"duplicates": matches})
}

func (h *Handler) similar(w http.ResponseWriter, r *http.Request) {
	matches, err := h.polls.SimilarPolls(r.Context(), chi.URLParam(r, "pollID"))
	if err != nil {
		h.writeServiceError(w, "similar_polls", err)
		return
	}
	if matches == nil {
		matches = []domain.DuplicateMatch{}
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"similar": matches})
}

func (h *Handler) previewSubmission(w http.ResponseWriter, r *http.Request) {
	var draft submissions.Draft
	if err := httpinfra.DecodeJSON(r, &draft); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	review, err := h.submissions.Preview(r.Context(), draft)
	if err != nil {
		h.writeServiceError(w, "submission_preview", err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, review)
}

func (h *Handler) improve(w http.ResponseWriter, r *http.Request) {
	var draft domain.PollDraft
	if err := httpinfra.DecodeJSON(r, &draft); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(draft.Title) == "" {
		httpinfra.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}
	result, err := h.assist.Rewrite(r.Context(), draft)
	if err != nil {
		h.writeServiceError(w, "improve", err)
		return
	}
	if result.OptionChanges == nil {
		result.OptionChanges = []domain.OptionChange{}
	}
	httpinfra.WriteJSON(w, http.StatusOK, result)
}

type trackEventRequest struct {
	PollID    string         `json:"poll_id"`
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	SessionID string         `json:"session_id"`
	Metadata  map[string]any `json:"metadata"`
}

func (h *Handler) trackEvent(w http.ResponseWriter, r *http.Request) {
	var req trackEventRequest
	if err := httpinfra.DecodeJSON(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err := h.tracker.Track(r.Context(), events.TrackInput{
		PollID:    req.PollID,
		UserID:    httpinfra.ViewerID(r.Context()),
		SessionID: req.SessionID,
		Type:      domain.PollEventType(strings.TrimSpace(req.EventType)),
		Source:    req.Source,
		Metadata:  req.Metadata,
		Public:    true,
	})
	if err != nil {
		h.writeServiceError(w, "track_event", err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}
