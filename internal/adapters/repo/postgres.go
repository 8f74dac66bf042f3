package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pulsepoint/internal/domain"
	"pulsepoint/internal/infra/metrics"
)

const (
	queryTimeout       = 5 * time.Second
	pgUndefinedTable   = "42P01"
	defaultListLimit   = 200
	pollSelectColumns  = `id::text, slug, title, coalesce(blurb, ''), coalesce(description, ''), category, status, created_at, ends_at`
	optionTotalsSource = "poll_option_totals"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.PollRepo      = (*Postgres)(nil)
	_ domain.BookmarkRepo  = (*Postgres)(nil)
	_ domain.CommentRepo   = (*Postgres)(nil)
	_ domain.PollEventRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, queryTimeout)
}

// mapError переводит ошибки драйвера в доменные.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrPollNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%w: %s", domain.ErrResourceNotConfigured, pgErr.Message)
	}
	return err
}

func statusStrings(statuses []domain.PollStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// buildPollQuery собирает SQL для ListPolls. Пустые фильтры не добавляются.
func buildPollQuery(q domain.PollQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if len(q.IDs) > 0 {
		add("id::text = ANY($%d)", q.IDs)
	}
	if q.Category != "" && q.Category != domain.CategoryAll {
		add("category = $%d", string(q.Category))
	}
	if len(q.Statuses) > 0 {
		add("status = ANY($%d)", statusStrings(q.Statuses))
	}
	if q.ExcludeID != "" {
		add("id::text <> $%d", q.ExcludeID)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(pollSelectColumns)
	b.WriteString(" FROM polls")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " LIMIT $%d", len(args))
	return b.String(), args
}

func scanPoll(row pgx.Row) (domain.Poll, error) {
	var (
		poll     domain.Poll
		category string
		status   string
		endsAt   *time.Time
	)
	if err := row.Scan(&poll.ID, &poll.Slug, &poll.Title, &poll.Blurb, &poll.Description, &category, &status, &poll.CreatedAt, &endsAt); err != nil {
		return domain.Poll{}, err
	}
	poll.Category = domain.Category(category)
	poll.Status = domain.PollStatus(status)
	poll.EndsAt = endsAt
	return poll, nil
}

// ListPolls реализует domain.PollRepo.
func (p *Postgres) ListPolls(ctx context.Context, query domain.PollQuery) ([]domain.Poll, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	sql, args := buildPollQuery(query)
	start := time.Now()
	rows, err := p.pool.Query(ctx, sql, args...)
	metrics.ObserveNetworkRequest("postgres", "list_polls", "polls", start, err)
	if err != nil {
		return nil, fmt.Errorf("получение опросов: %w", mapError(err))
	}
	defer rows.Close()

	var polls []domain.Poll
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("чтение опроса: %w", err)
		}
		polls = append(polls, poll)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("получение опросов: %w", mapError(err))
	}
	return polls, nil
}

func (p *Postgres) getPoll(ctx context.Context, operation, column, value string) (domain.Poll, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, "SELECT "+pollSelectColumns+" FROM polls WHERE "+column+" = $1", value)
	poll, err := scanPoll(row)
	metrics.ObserveNetworkRequest("postgres", operation, "polls", start, err)
	if err != nil {
		return domain.Poll{}, mapError(err)
	}
	return poll, nil
}

// GetPollBySlug реализует domain.PollRepo.
func (p *Postgres) GetPollBySlug(ctx context.Context, slug string) (domain.Poll, error) {
	return p.getPoll(ctx, "get_poll_by_slug", "slug", slug)
}

// GetPollByID реализует domain.PollRepo.
func (p *Postgres) GetPollByID(ctx context.Context, id string) (domain.Poll, error) {
	return p.getPoll(ctx, "get_poll_by_id", "id::text", id)
}

// ListOptions реализует domain.PollRepo. Голоса берутся из денормализованных итогов.
func (p *Postgres) ListOptions(ctx context.Context, pollIDs []string) ([]domain.Option, error) {
	if len(pollIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT o.id::text, o.poll_id::text, o.label, o.position, coalesce(t.votes, 0)
FROM poll_options o
LEFT JOIN `+optionTotalsSource+` t ON t.option_id = o.id
WHERE o.poll_id::text = ANY($1)
ORDER BY o.poll_id, o.position, o.label
`, pollIDs)
	metrics.ObserveNetworkRequest("postgres", "list_options", "poll_options", start, err)
	if err != nil {
		return nil, fmt.Errorf("получение вариантов: %w", mapError(err))
	}
	defer rows.Close()

	var options []domain.Option
	for rows.Next() {
		var o domain.Option
		if err := rows.Scan(&o.ID, &o.PollID, &o.Label, &o.Position, &o.Votes); err != nil {
			return nil, fmt.Errorf("чтение варианта: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("получение вариантов: %w", mapError(err))
	}
	return options, nil
}

// ListOptionTotals реализует domain.PollRepo.
func (p *Postgres) ListOptionTotals(ctx context.Context, pollIDs []string) ([]domain.OptionTotal, error) {
	if len(pollIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT t.poll_id::text, t.option_id::text, o.label, t.votes
FROM `+optionTotalsSource+` t
JOIN poll_options o ON o.id = t.option_id
WHERE t.poll_id::text = ANY($1)
`, pollIDs)
	metrics.ObserveNetworkRequest("postgres", "list_option_totals", optionTotalsSource, start, err)
	if err != nil {
		return nil, fmt.Errorf("получение итогов: %w", mapError(err))
	}
	defer rows.Close()

	var totals []domain.OptionTotal
	for rows.Next() {
		var t domain.OptionTotal
		if err := rows.Scan(&t.PollID, &t.OptionID, &t.Label, &t.Votes); err != nil {
			return nil, fmt.Errorf("чтение итогов: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("получение итогов: %w", mapError(err))
	}
	return totals, nil
}

// ListVoteEvents реализует domain.PollRepo.
func (p *Postgres) ListVoteEvents(ctx context.Context, pollIDs []string, since time.Time) ([]domain.VoteEvent, error) {
	if len(pollIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT poll_id::text, option_id::text, changed_at
FROM vote_events
WHERE poll_id::text = ANY($1) AND changed_at >= $2
ORDER BY changed_at
`, pollIDs, since.UTC())
	metrics.ObserveNetworkRequest("postgres", "list_vote_events", "vote_events", start, err)
	if err != nil {
		return nil, fmt.Errorf("получение голосов: %w", mapError(err))
	}
	defer rows.Close()

	var events []domain.VoteEvent
	for rows.Next() {
		var e domain.VoteEvent
		if err := rows.Scan(&e.PollID, &e.OptionID, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("чтение голоса: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("получение голосов: %w", mapError(err))
	}
	return events, nil
}

// ListBookmarkedPollIDs реализует domain.BookmarkRepo.
func (p *Postgres) ListBookmarkedPollIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT poll_id::text FROM poll_bookmarks
WHERE user_id::text = $1
ORDER BY created_at DESC
LIMIT $2
`, userID, limit)
	metrics.ObserveNetworkRequest("postgres", "list_bookmarks", "poll_bookmarks", start, err)
	if err != nil {
		return nil, fmt.Errorf("получение закладок: %w", mapError(err))
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("чтение закладок: %w", mapError(err))
	}
	return ids, nil
}

// CountComments реализует domain.CommentRepo.
func (p *Postgres) CountComments(ctx context.Context, pollIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(pollIDs))
	if len(pollIDs) == 0 {
		return counts, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT poll_id::text, count(*) FROM poll_comments
WHERE poll_id::text = ANY($1)
GROUP BY poll_id
`, pollIDs)
	metrics.ObserveNetworkRequest("postgres", "count_comments", "poll_comments", start, err)
	if err != nil {
		return nil, fmt.Errorf("подсчёт комментариев: %w", mapError(err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("чтение комментариев: %w", err)
		}
		counts[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("подсчёт комментариев: %w", mapError(err))
	}
	return counts, nil
}

// RecordPollEvent реализует domain.PollEventRepo. Повторная запись с тем же id игнорируется.
func (p *Postgres) RecordPollEvent(ctx context.Context, event domain.PollEvent) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var payload []byte
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("сериализация метаданных: %w", err)
		}
		payload = data
	}
	var userID *string
	if event.UserID != "" {
		userID = &event.UserID
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO poll_events (id, poll_id, user_id, event_type, source, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING
`, event.ID, event.PollID, userID, string(event.Type), event.Source, payload, occurredAt.UTC())
	metrics.ObserveNetworkRequest("postgres", "insert_poll_event", "poll_events", start, err)
	if err != nil {
		return fmt.Errorf("сохранение события: %w", mapError(err))
	}
	return nil
}
