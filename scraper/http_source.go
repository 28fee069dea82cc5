package scraper

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/backlog-match/config"
	"github.com/gocolly/colly/v2"
)

// HTTPSource fetches listing pages over plain HTTP with colly.
type HTTPSource struct {
	profileURL string
	collector  *colly.Collector
}

// NewHTTPSource builds a source for one profile listing URL.
func NewHTTPSource(profileURL string, cfg *config.Config) (*HTTPSource, error) {
	parsed, err := url.Parse(profileURL)
	if err != nil {
		return nil, fmt.Errorf("parse profile url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("profile url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(siteDomains(parsed.Hostname())...),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &HTTPSource{profileURL: profileURL, collector: collector}, nil
}

// siteDomains returns host together with its www. or apex counterpart, so a
// redirect between the two stays on site.
func siteDomains(host string) []string {
	host = strings.ToLower(host)
	if apex, ok := strings.CutPrefix(host, "www."); ok {
		return []string{host, apex}
	}
	return []string{host, "www." + host}
}

// FetchPage issues one blocking request for page and returns the body.
// Each call uses a fresh clone so concurrent callers never share callbacks.
// Cancellation is checked before the request; the request itself is bounded
// by the configured timeout.
func (s *HTTPSource) FetchPage(ctx context.Context, page int) ([]byte, error) {
	target, err := PageURL(s.profileURL, page)
	if err != nil {
		return nil, &FetchError{Page: page, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Page: page, URL: target, Err: err}
	}

	c := s.collector.Clone()

	var (
		body   []byte
		status int
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(target); err != nil {
		return nil, &FetchError{Page: page, URL: target, Err: classifyError(err, status)}
	}
	if status >= http.StatusBadRequest {
		return nil, &FetchError{Page: page, URL: target, Err: classifyError(nil, status)}
	}
	return body, nil
}
