// Package export collects every entry matching a view and writes it to a file.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Tiliavir/entrylog/internal/api"
	"github.com/Tiliavir/entrylog/internal/metrics"
	"github.com/Tiliavir/entrylog/internal/model"
)

const (
	DefaultPreferredLimit = 10000
	DefaultPageLimit      = 200
	DefaultPageDelay      = 250 * time.Millisecond
	DefaultBackoff        = 1500 * time.Millisecond
)

// Fetcher returns one page of normalized entries. *api.Client satisfies it.
type Fetcher interface {
	FetchEntries(ctx context.Context, q api.Query) (api.EntriesPage, error)
}

// Snapshot is the view being exported. It is read once and never modified.
type Snapshot struct {
	Section string // students, faculties or all
	Search  string
	Sort    string // backend directive
}

func (s Snapshot) query(page, limit int) api.Query {
	return api.Query{
		UserType: model.UserTypeForSection(s.Section),
		Search:   s.Search,
		Page:     page,
		Limit:    limit,
		Sort:     s.Sort,
	}
}

// BaseName is the section part of the export file name.
func (s Snapshot) BaseName() string {
	if name := strings.ToLower(strings.TrimSpace(s.Section)); name != "" {
		return name
	}
	return "entries"
}

// Result is everything an export collected.
type Result struct {
	Rows    []model.EntryRow
	Pages   int // successful page requests
	Retries int // rate-limit retries
}

// Runner pages through a view sequentially.
type Runner struct {
	fetcher        Fetcher
	preferredLimit int
	pageLimit      int
	delay          time.Duration
	backoff        time.Duration
	sleep          func(context.Context, time.Duration) error
	now            func() time.Time
	logger         *slog.Logger
	metrics        *metrics.Export
}

// Option customizes a Runner.
type Option func(*Runner)

// WithPreferredLimit sets the page size of the first request.
func WithPreferredLimit(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.preferredLimit = n
		}
	}
}

// WithPageLimit sets the page size of every later request. It is capped at
// the preferred limit.
func WithPageLimit(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.pageLimit = n
		}
	}
}

// WithDelay sets the pause before each request after the first.
func WithDelay(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.delay = d
		}
	}
}

// WithBackoff sets the pause before retrying a rate-limited page.
func WithBackoff(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.backoff = d
		}
	}
}

// WithSleep replaces the context-aware sleep, mainly for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(r *Runner) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithNow replaces the clock used for durations.
func WithNow(fn func() time.Time) Option {
	return func(r *Runner) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithLogger sets the logger for page progress and retries.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records pages, retries, rows and duration into m.
func WithMetrics(m *metrics.Export) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a Runner reading from f.
func NewRunner(f Fetcher, opts ...Option) *Runner {
	r := &Runner{
		fetcher:        f,
		preferredLimit: DefaultPreferredLimit,
		pageLimit:      DefaultPageLimit,
		delay:          DefaultPageDelay,
		backoff:        DefaultBackoff,
		sleep:          sleepContext,
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Collect fetches every row of snap. The first request asks for the whole
// result set at once; if the backend reports more pages, the rest are fetched
// one at a time with a pause before each. A rate-limited page after the first
// is retried once after the backoff. Any other failure aborts the export and
// no rows are returned.
func (r *Runner) Collect(ctx context.Context, snap Snapshot) (Result, error) {
	start := r.now()

	first, err := r.fetcher.FetchEntries(ctx, snap.query(1, r.preferredLimit))
	if err != nil {
		return Result{}, fmt.Errorf("fetching page 1: %w", err)
	}
	res := Result{Rows: first.Entries, Pages: 1}
	r.pageDone()

	totalPages := 1
	if first.Pagination != nil && first.Pagination.TotalPages > 1 {
		totalPages = first.Pagination.TotalPages
	}
	r.logger.Info("export page fetched", "page", 1, "total_pages", totalPages, "rows", len(first.Entries))

	limit := min(r.preferredLimit, r.pageLimit)
	if totalPages > 1 && first.Pagination.Limit > 0 && first.Pagination.Limit != limit {
		r.logger.Warn("backend page size differs from the export page size, rows may repeat or be missing",
			"backend_limit", first.Pagination.Limit, "page_limit", limit)
	}
	for p := 2; p <= totalPages; p++ {
		if err := r.sleep(ctx, r.delay); err != nil {
			return Result{}, err
		}
		page, retried, err := r.fetchPage(ctx, snap.query(p, limit))
		if retried {
			res.Retries++
		}
		if err != nil {
			return Result{}, fmt.Errorf("fetching page %d: %w", p, err)
		}
		res.Rows = append(res.Rows, page.Entries...)
		res.Pages++
		r.pageDone()
		r.logger.Info("export page fetched", "page", p, "total_pages", totalPages, "rows", len(page.Entries))
	}

	if r.metrics != nil {
		r.metrics.Rows.Add(float64(len(res.Rows)))
		r.metrics.Duration.Observe(r.now().Sub(start).Seconds())
	}
	return res, nil
}

// fetchPage requests q and retries it once when rate limited.
func (r *Runner) fetchPage(ctx context.Context, q api.Query) (api.EntriesPage, bool, error) {
	page, err := r.fetcher.FetchEntries(ctx, q)
	if err == nil || !api.IsRateLimited(err) {
		return page, false, err
	}

	r.logger.Warn("export page rate limited, retrying once", "page", q.Page, "backoff", r.backoff, "error", err)
	if r.metrics != nil {
		r.metrics.RateLimitRetries.Inc()
	}
	if err := r.sleep(ctx, r.backoff); err != nil {
		return api.EntriesPage{}, true, err
	}
	page, err = r.fetcher.FetchEntries(ctx, q)
	return page, true, err
}

func (r *Runner) pageDone() {
	if r.metrics != nil {
		r.metrics.Pages.Inc()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
