package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/backlog-match/config"
	"github.com/aluiziolira/backlog-match/models"
)

// scriptedSource answers each call from respond and records the page numbers asked for.
type scriptedSource struct {
	mu      sync.Mutex
	calls   []int
	respond func(page, call int) ([]byte, error)
}

func (s *scriptedSource) FetchPage(_ context.Context, page int) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, page)
	call := len(s.calls)
	s.mu.Unlock()
	return s.respond(page, call)
}

func (s *scriptedSource) Calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.calls))
	copy(out, s.calls)
	return out
}

// pagesSource serves fixed page bodies; pages beyond the slice are empty.
func pagesSource(pages ...string) *scriptedSource {
	return &scriptedSource{respond: func(page, _ int) ([]byte, error) {
		if page > len(pages) {
			return []byte{}, nil
		}
		return []byte(pages[page-1]), nil
	}}
}

// lineExtract reads "title|rating" lines.
func lineExtract(content []byte) ([]models.Record, error) {
	var records []models.Record
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		title, rating, ok := strings.Cut(line, "|")
		if !ok {
			return nil, fmt.Errorf("malformed line %q", line)
		}
		var value float64
		if _, err := fmt.Sscanf(rating, "%g", &value); err != nil {
			return nil, fmt.Errorf("malformed rating %q: %w", rating, err)
		}
		records = append(records, models.Record{Title: title, Rating: value})
	}
	return records, nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	cfg.Delay = 0
	cfg.MaxPages = 50
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 5 * time.Millisecond
	return cfg
}

func newTestCollector(source PageSource, cfg *config.Config, opts ...Option) *Collector {
	opts = append([]Option{WithExtractor(lineExtract)}, opts...)
	c := NewCollector(source, cfg, opts...)
	c.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return c
}

func titles(c models.Catalogue) []string {
	out := make([]string, len(c))
	for i, r := range c {
		out[i] = r.Title
	}
	return out
}

func TestBackoffCapped(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RetryBackoff = 200 * time.Millisecond
	cfg.RetryBackoffMax = 500 * time.Millisecond

	if got := backoff(cfg, 1); got != 200*time.Millisecond {
		t.Fatalf("first backoff = %v, want 200ms", got)
	}
	if got := backoff(cfg, 2); got != 400*time.Millisecond {
		t.Fatalf("second backoff = %v, want 400ms", got)
	}
	if got := backoff(cfg, 4); got > cfg.RetryBackoffMax {
		t.Fatalf("delay %v exceeds max %v", got, cfg.RetryBackoffMax)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: nil, statusCode: http.StatusBadGateway, expected: "other"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestFetchErrorUnwrap(t *testing.T) {
	err := &FetchError{Page: 3, URL: "http://example.test/?page=3", Err: ErrNotFound{Err: errors.New("Not Found")}}
	if errorTypeLabel(err) != "not_found" {
		t.Fatalf("label = %q, want not_found", errorTypeLabel(err))
	}
	if !strings.Contains(err.Error(), "page 3") {
		t.Fatalf("error %q should name the page", err.Error())
	}
}

func TestPageURL(t *testing.T) {
	got, err := PageURL("https://backloggd.com/u/alice/games/", 3)
	if err != nil {
		t.Fatalf("page url: %v", err)
	}
	if got != "https://backloggd.com/u/alice/games/?page=3" {
		t.Fatalf("page url = %q", got)
	}

	got, err = PageURL("https://backloggd.com/u/alice/games/?type=played&page=9", 2)
	if err != nil {
		t.Fatalf("page url: %v", err)
	}
	if got != "https://backloggd.com/u/alice/games/?page=2&type=played" {
		t.Fatalf("page url = %q", got)
	}
}

func TestFingerprint(t *testing.T) {
	a := []models.Record{{Title: "Hades", Rating: 4.5}, {Title: "Celeste", Rating: 3}}
	same := []models.Record{{Title: "Hades", Rating: 4.5}, {Title: "Celeste", Rating: 3}}
	reordered := []models.Record{{Title: "Celeste", Rating: 3}, {Title: "Hades", Rating: 4.5}}
	rerated := []models.Record{{Title: "Hades", Rating: 4}, {Title: "Celeste", Rating: 3}}

	if Fingerprint(a) != Fingerprint(same) {
		t.Fatalf("identical batches should share a fingerprint")
	}
	if Fingerprint(a) == Fingerprint(reordered) {
		t.Fatalf("order must change the fingerprint")
	}
	if Fingerprint(a) == Fingerprint(rerated) {
		t.Fatalf("ratings must change the fingerprint")
	}

	shiftedA := []models.Record{{Title: "ab"}, {Title: "c"}}
	shiftedB := []models.Record{{Title: "a"}, {Title: "bc"}}
	if Fingerprint(shiftedA) == Fingerprint(shiftedB) {
		t.Fatalf("title boundaries must change the fingerprint")
	}
	if len(Fingerprint(a).String()) != 64 {
		t.Fatalf("fingerprint string should be 64 hex chars")
	}
}
