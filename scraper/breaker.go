package scraper

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aluiziolira/backlog-match/config"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Breaker is a circuit breaker for one site. Sources wrapped by the same
// Breaker share its failure count, so a run that finds the site dead
// short-circuits the runs after it.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[[]byte]
}

// NewBreaker builds a breaker named after the site it guards. A zero
// BreakerThreshold disables tripping.
func NewBreaker(name string, cfg *config.Config) *Breaker {
	threshold := cfg.BreakerThreshold
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("page source circuit changed state",
				slog.String("source", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[[]byte](settings)}
}

// Wrap returns source guarded by b.
func (b *Breaker) Wrap(source PageSource) *BreakerSource {
	return &BreakerSource{source: source, breaker: b}
}

// State reports the breaker state for logging.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// BreakerSource is a PageSource behind a Breaker.
type BreakerSource struct {
	source  PageSource
	breaker *Breaker
}

// NewBreakerSource wraps source in a breaker of its own.
func NewBreakerSource(name string, source PageSource, cfg *config.Config) *BreakerSource {
	return NewBreaker(name, cfg).Wrap(source)
}

// FetchPage delegates to the wrapped source unless the circuit is open.
func (b *BreakerSource) FetchPage(ctx context.Context, page int) ([]byte, error) {
	return b.breaker.cb.Execute(func() ([]byte, error) {
		return b.source.FetchPage(ctx, page)
	})
}

// Acquire forwards to the wrapped source when it is session-backed.
func (b *BreakerSource) Acquire(ctx context.Context) (func(), error) {
	if leaser, ok := b.source.(Leaser); ok {
		return leaser.Acquire(ctx)
	}
	return func() {}, nil
}

// Breaker returns the breaker guarding this source.
func (b *BreakerSource) Breaker() *Breaker {
	return b.breaker
}

// State reports the breaker state for logging.
func (b *BreakerSource) State() string {
	return b.breaker.State()
}
