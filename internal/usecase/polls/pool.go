package polls

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pulsepoint/internal/domain"
)

const poolFetchTimeout = 10 * time.Second

// candidatePool содержит опросы-кандидаты и их варианты. Срезы общие для всех
// ожидающих вызовов, поэтому их нельзя менять.
type candidatePool struct {
	polls   []domain.Poll
	options []domain.Option
	totals  []domain.OptionTotal
}

func poolKey(q domain.PollQuery, withTotals bool) string {
	statuses := make([]string, 0, len(q.Statuses))
	for _, st := range q.Statuses {
		statuses = append(statuses, string(st))
	}
	return fmt.Sprintf("%s|%s|%s|%d|%t", q.Category, strings.Join(statuses, ","), q.ExcludeID, q.Limit, withTotals)
}

// loadPool загружает пул кандидатов, объединяя одновременные одинаковые запросы.
// Общая загрузка не зависит от отмены контекста первого вызова, каждый вызов ждёт
// её не дольше своего контекста. Результат не кэшируется между запросами.
func (s *Service) loadPool(ctx context.Context, q domain.PollQuery, withTotals bool) (candidatePool, error) {
	ch := s.pools.DoChan(poolKey(q, withTotals), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), poolFetchTimeout)
		defer cancel()
		return s.fetchPool(fetchCtx, q, withTotals)
	})
	select {
	case <-ctx.Done():
		return candidatePool{}, fmt.Errorf("ожидание кандидатов: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return candidatePool{}, res.Err
		}
		return res.Val.(candidatePool), nil
	}
}

func (s *Service) fetchPool(ctx context.Context, q domain.PollQuery, withTotals bool) (candidatePool, error) {
	polls, err := s.polls.ListPolls(ctx, q)
	if err != nil {
		return candidatePool{}, fmt.Errorf("получение кандидатов: %w", err)
	}
	pool := candidatePool{polls: polls}
	if len(polls) == 0 {
		return pool, nil
	}
	ids := pollIDs(polls)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		options, err := s.polls.ListOptions(gctx, ids)
		if err != nil {
			return fmt.Errorf("получение вариантов кандидатов: %w", err)
		}
		pool.options = options
		return nil
	})
	if withTotals {
		g.Go(func() error {
			totals, err := s.polls.ListOptionTotals(gctx, ids)
			if err != nil {
				return fmt.Errorf("получение итогов кандидатов: %w", err)
			}
			pool.totals = totals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return candidatePool{}, err
	}
	return pool, nil
}
