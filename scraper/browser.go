package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aluiziolira/backlog-match/config"
	"github.com/chromedp/chromedp"
)

// ErrSessionClosed is returned when a closed browser session is used.
var ErrSessionClosed = errors.New("scraper: browser session closed")

// BrowserSession owns one headless browser shared by sequential collections.
// Callers must Close it on every exit path.
type BrowserSession struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	lease   *lease

	closeOnce sync.Once
}

// NewBrowserSession launches the browser once and keeps it for reuse.
func NewBrowserSession(cfg *config.Config) (*BrowserSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &BrowserSession{
		ctx:     browserCtx,
		cancel:  cancel,
		timeout: cfg.Timeout,
		lease:   newLease(),
	}, nil
}

// Source returns a page source for profileURL backed by this session.
func (s *BrowserSession) Source(profileURL string) *BrowserSource {
	return &BrowserSource{session: s, profileURL: profileURL}
}

// Close shuts the browser down. It is safe to call more than once.
func (s *BrowserSession) Close() error {
	s.closeOnce.Do(func() {
		s.lease.close()
		s.cancel()
	})
	return nil
}

func (s *BrowserSession) render(ctx context.Context, target string) ([]byte, error) {
	if s.ctx.Err() != nil {
		return nil, ErrSessionClosed
	}

	tabCtx, cancelTab := chromedp.NewContext(s.ctx)
	defer cancelTab()
	timeoutCtx, cancelTimeout := context.WithTimeout(tabCtx, s.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var html string
	err := chromedp.Run(timeoutCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return []byte(html), nil
}

// BrowserSource renders listing pages in a tab of a shared BrowserSession.
type BrowserSource struct {
	session    *BrowserSession
	profileURL string
}

// FetchPage renders page and returns the document's outer HTML.
func (b *BrowserSource) FetchPage(ctx context.Context, page int) ([]byte, error) {
	target, err := PageURL(b.profileURL, page)
	if err != nil {
		return nil, &FetchError{Page: page, Err: err}
	}
	content, err := b.session.render(ctx, target)
	if err != nil {
		return nil, &FetchError{Page: page, URL: target, Err: classifyError(err, 0)}
	}
	return content, nil
}

// Acquire reserves the session for one collection run.
func (b *BrowserSource) Acquire(ctx context.Context) (func(), error) {
	return b.session.lease.acquire(ctx)
}

// lease is a one-slot semaphore that can be closed.
type lease struct {
	slot   chan struct{}
	done   chan struct{}
	closed sync.Once
}

func newLease() *lease {
	return &lease{
		slot: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (l *lease) acquire(ctx context.Context) (func(), error) {
	select {
	case <-l.done:
		return nil, ErrSessionClosed
	default:
	}

	select {
	case l.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-l.slot })
		}, nil
	case <-l.done:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *lease) close() {
	l.closed.Do(func() {
		close(l.done)
	})
}
