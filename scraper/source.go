package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/aluiziolira/backlog-match/models"
)

// PageSource fetches the raw content of one listing page. Pages start at 1.
type PageSource interface {
	FetchPage(ctx context.Context, page int) ([]byte, error)
}

// Leaser is implemented by sources backed by a session that may serve only
// one collection at a time. The collector holds the lease for a whole run.
type Leaser interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// ExtractFunc turns raw page content into the page's records.
type ExtractFunc func(content []byte) ([]models.Record, error)

// PageURL returns profileURL with its page query parameter set.
func PageURL(profileURL string, page int) (string, error) {
	u, err := url.Parse(profileURL)
	if err != nil {
		return "", fmt.Errorf("parse profile url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
