package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/market-downloader/internal/logger"
	"github.com/rxtech-lab/market-downloader/internal/types"
	"github.com/rxtech-lab/market-downloader/pkg/marketdata/provider"
	"go.uber.org/zap"
)

// OnPageProgress is invoked after each fetched page with the page number
// and the running bar total.
type OnPageProgress = func(page int, totalBars int)

// Pager drives repeated Provider.FetchPage calls until the requested date
// range is fully covered, honoring a minimum delay between requests and a
// bounded retry budget for transient errors.
type Pager struct {
	provider   provider.Provider
	wait       time.Duration
	maxRetries int
	logger     *logger.Logger
	onPage     OnPageProgress
}

// NewPager creates a pager. wait is the minimum delay between page
// requests; maxRetries bounds how often a rate-limited or failed-transport
// page is re-fetched before the error propagates.
func NewPager(p provider.Provider, wait time.Duration, maxRetries int, log *logger.Logger, onPage OnPageProgress) *Pager {
	return &Pager{
		provider:   p,
		wait:       wait,
		maxRetries: maxRetries,
		logger:     log,
		onPage:     onPage,
	}
}

// FetchAll accumulates every page of the request in fetch order. Bars come
// back in non-decreasing timestamp order because each adapter requests
// ascending data. The loop is bounded: it stops on cursor exhaustion, and
// an empty page that repeats the current cursor also counts as completion.
func (p *Pager) FetchAll(ctx context.Context, req provider.FetchRequest) ([]types.Bar, error) {
	var bars []types.Bar

	cursor := optional.None[provider.Cursor]()

	for pageNum := 1; ; pageNum++ {
		page, err := p.fetchWithRetry(ctx, req, cursor)
		if err != nil {
			return nil, err
		}

		bars = append(bars, page.Bars...)

		if p.onPage != nil {
			p.onPage(pageNum, len(bars))
		}

		p.logger.Debug("fetched page",
			zap.String("provider", p.provider.Name()),
			zap.Int("page", pageNum),
			zap.Int("bars", len(page.Bars)),
			zap.Int("total", len(bars)))

		if page.Next.IsNone() {
			break
		}

		if len(page.Bars) == 0 && cursorsEqual(page.Next, cursor) {
			p.logger.Warn("empty page repeated its cursor, treating as completion",
				zap.String("provider", p.provider.Name()),
				zap.Int("page", pageNum))

			break
		}

		cursor = page.Next

		if err := p.sleep(ctx); err != nil {
			return nil, err
		}
	}

	return bars, nil
}

// fetchWithRetry fetches one page, re-fetching it after a rate-limit wait
// for transient errors until the retry budget is exhausted.
func (p *Pager) fetchWithRetry(ctx context.Context, req provider.FetchRequest, cursor optional.Option[provider.Cursor]) (provider.Page, error) {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Warn("retrying page after transient error",
				zap.String("provider", p.provider.Name()),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", p.maxRetries),
				zap.Error(lastErr))

			if err := p.sleep(ctx); err != nil {
				return provider.Page{}, err
			}
		}

		page, err := p.provider.FetchPage(ctx, req, cursor)
		if err == nil {
			return page, nil
		}

		if !provider.IsRetryable(err) {
			return provider.Page{}, err
		}

		lastErr = err
	}

	return provider.Page{}, fmt.Errorf("retry budget of %d exhausted: %w", p.maxRetries, lastErr)
}

// sleep waits the configured rate-limit delay, or returns early when the
// context is cancelled.
func (p *Pager) sleep(ctx context.Context) error {
	if p.wait <= 0 {
		return nil
	}

	timer := time.NewTimer(p.wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func cursorsEqual(a, b optional.Option[provider.Cursor]) bool {
	aValue, aErr := a.Take()
	bValue, bErr := b.Take()

	if aErr != nil || bErr != nil {
		return aErr != nil && bErr != nil
	}

	return aValue == bValue
}
