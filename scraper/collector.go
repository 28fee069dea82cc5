package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/backlog-match/config"
	"github.com/aluiziolira/backlog-match/models"
	"github.com/aluiziolira/backlog-match/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

// PageSink receives each accepted page batch in order.
type PageSink func(page int, records []models.Record) error

// Option configures a Collector.
type Option func(*Collector)

// WithExtractor replaces parser.Extract.
func WithExtractor(fn ExtractFunc) Option {
	return func(c *Collector) {
		if fn != nil {
			c.extract = fn
		}
	}
}

// WithMetrics records fetch and stop metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Collector) {
		c.metrics = m
	}
}

// WithPageSink streams every accepted batch to fn, e.g. a persistence pipeline.
func WithPageSink(fn PageSink) Option {
	return func(c *Collector) {
		c.sink = fn
	}
}

// WithLabel tags log lines with the profile being collected.
func WithLabel(label string) Option {
	return func(c *Collector) {
		c.label = label
	}
}

// Collector walks a paginated listing until it ends, repeats, or hits the
// safety cap. Fetches are strictly sequential.
type Collector struct {
	source  PageSource
	cfg     *config.Config
	extract ExtractFunc
	metrics *Metrics
	sink    PageSink
	label   string
	sleep   func(context.Context, time.Duration) error
}

// NewCollector builds a collector over source configured from cfg.
func NewCollector(source PageSource, cfg *config.Config, opts ...Option) *Collector {
	c := &Collector{
		source:  source,
		cfg:     cfg,
		extract: parser.Extract,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect runs one collection. The returned result is never nil. A run that
// hits the page cap returns its partial result and ErrSafetyCapExceeded. A
// page that keeps failing after retries ends the run like an empty page;
// the result then reports StopFetchError and LastError.
func (c *Collector) Collect(ctx context.Context) (*models.CollectResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.CollectResult{StartTime: time.Now()}

	if leaser, ok := c.source.(Leaser); ok {
		release, err := leaser.Acquire(ctx)
		if err != nil {
			c.finish(result, models.StopCanceled)
			return result, fmt.Errorf("acquire session: %w", err)
		}
		defer release()
	}

	dupes, err := newDuplicateDetector(c.cfg)
	if err != nil {
		c.finish(result, models.StopCanceled)
		return result, err
	}

	for page := 1; ; page++ {
		if page > c.cfg.MaxPages {
			c.finish(result, models.StopSafetyCap)
			slog.Warn("safety page cap reached",
				slog.String("profile", c.label),
				slog.Int("max_pages", c.cfg.MaxPages),
				slog.Int("records", len(result.Catalogue)),
			)
			return result, fmt.Errorf("%w (max pages %d)", ErrSafetyCapExceeded, c.cfg.MaxPages)
		}

		slog.Debug("fetching page", slog.String("profile", c.label), slog.Int("page", page))
		records, err := c.fetchWithRetry(ctx, page, result)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				c.finish(result, models.StopCanceled)
				return result, ctxErr
			}
			result.LastError = err
			c.finish(result, models.StopFetchError)
			slog.Error("page failed after retries, treating as end of catalogue",
				slog.String("profile", c.label),
				slog.Int("page", page),
				slog.Int("records", len(result.Catalogue)),
				slog.Any("error", err),
			)
			return result, nil
		}

		if len(records) == 0 {
			c.finish(result, models.StopEmpty)
			slog.Info("no more entries found", slog.String("profile", c.label), slog.Int("page", page))
			return result, nil
		}

		fp := Fingerprint(records)
		if dupes.Seen(fp) {
			c.finish(result, models.StopDuplicate)
			slog.Info("duplicate page data found",
				slog.String("profile", c.label),
				slog.Int("page", page),
				slog.String("fingerprint", fp.String()),
			)
			return result, nil
		}
		dupes.Remember(fp)

		result.Catalogue = append(result.Catalogue, records...)
		result.Pages++
		c.metrics.AddRecords(len(records))

		if c.sink != nil {
			if err := c.sink(page, records); err != nil {
				reason := models.StopSinkError
				if ctx.Err() != nil {
					reason = models.StopCanceled
				}
				c.finish(result, reason)
				return result, fmt.Errorf("page sink: %w", err)
			}
		}
	}
}

func (c *Collector) fetchWithRetry(ctx context.Context, page int, result *models.CollectResult) ([]models.Record, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			result.Retries++
			c.metrics.IncRetries()
			delay := backoff(c.cfg, attempt)
			slog.Debug("retrying page",
				slog.String("profile", c.label),
				slog.Int("page", page),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result.Fetches++
		records, err := c.fetchOnce(ctx, page)
		if err == nil {
			return records, nil
		}
		lastErr = err
		slog.Warn("page fetch failed",
			slog.String("profile", c.label),
			slog.Int("page", page),
			slog.String("category", errorTypeLabel(err)),
			slog.Any("error", err),
		)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *Collector) fetchOnce(ctx context.Context, page int) ([]models.Record, error) {
	start := time.Now()
	content, err := c.source.FetchPage(ctx, page)
	c.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		c.metrics.IncFetch("error")
		c.metrics.IncError(errorTypeLabel(err))
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return nil, err
		}
		return nil, &FetchError{Page: page, Err: err}
	}

	records, err := c.extract(content)
	if err != nil {
		c.metrics.IncFetch("error")
		c.metrics.IncError("extraction")
		return nil, &FetchError{Page: page, Err: ErrExtraction{Err: err}}
	}

	c.metrics.IncFetch("ok")
	return records, nil
}

func (c *Collector) finish(result *models.CollectResult, reason models.StopReason) {
	result.Stop = reason
	result.EndTime = time.Now()
	c.metrics.IncStop(string(reason))
}

func backoff(cfg *config.Config, attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// duplicateDetector decides whether a page batch repeats earlier content.
type duplicateDetector interface {
	Seen(fp models.Fingerprint) bool
	Remember(fp models.Fingerprint)
}

func newDuplicateDetector(cfg *config.Config) (duplicateDetector, error) {
	switch cfg.DuplicatePolicy {
	case "", "previous":
		return &previousPage{}, nil
	case "seen":
		cache, err := lru.New[models.Fingerprint, struct{}](cfg.DedupeMaxSize)
		if err != nil {
			return nil, fmt.Errorf("create fingerprint cache: %w", err)
		}
		return &seenPages{cache: cache}, nil
	default:
		return nil, fmt.Errorf("unknown duplicate policy %q", cfg.DuplicatePolicy)
	}
}

// previousPage only compares against the immediately preceding page.
type previousPage struct {
	last models.Fingerprint
	set  bool
}

func (p *previousPage) Seen(fp models.Fingerprint) bool {
	return p.set && p.last == fp
}

func (p *previousPage) Remember(fp models.Fingerprint) {
	p.last = fp
	p.set = true
}

// seenPages stops on any page already seen during the run, bounded by LRU eviction.
type seenPages struct {
	cache *lru.Cache[models.Fingerprint, struct{}]
}

func (s *seenPages) Seen(fp models.Fingerprint) bool {
	return s.cache.Contains(fp)
}

func (s *seenPages) Remember(fp models.Fingerprint) {
	s.cache.Add(fp, struct{}{})
}
