// Package remote gathers candidate sounds from the Freesound text search and
// picks one at random.
//
// Pages are requested one at a time so that a failure on page N leaves the
// results of pages 1..N-1 usable. Every provider call passes through a
// [resilience.CircuitBreaker]; an invalid API key does not count as a
// provider failure.
package remote

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrTrintignant/Songbird/internal/credential"
	"github.com/DrTrintignant/Songbird/internal/observe"
	"github.com/DrTrintignant/Songbird/internal/resilience"
	"github.com/DrTrintignant/Songbird/pkg/freesound"
)

// Defaults for [Aggregator] pagination.
const (
	DefaultPageSize   = freesound.DefaultPageSize
	DefaultMaxPages   = 5
	DefaultMaxResults = 75

	providerName = "freesound"
)

var (
	// ErrNoCandidates is returned by [SelectRandom] for an empty candidate list.
	ErrNoCandidates = errors.New("remote: no candidates")

	// ErrNoPreview is returned by Download when the sound has no usable
	// preview.
	ErrNoPreview = errors.New("remote: no preview available")
)

// Provider is the subset of [*freesound.Client] the aggregator needs.
type Provider interface {
	Search(ctx context.Context, token string, req freesound.SearchRequest) (*freesound.SearchResponse, error)
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// Compile-time interface assertion.
var _ Provider = (*freesound.Client)(nil)

// Aggregator collects search results across pages.
type Aggregator struct {
	provider   Provider
	creds      credential.Source
	breaker    *resilience.CircuitBreaker
	metrics    *observe.Metrics
	pageSize   int
	maxPages   int
	maxResults int
}

// Option is a functional option for [New].
type Option func(*Aggregator)

// WithPageSize sets the number of results requested per page.
func WithPageSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

// WithMaxPages caps the number of pages requested per Collect.
func WithMaxPages(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxPages = n
		}
	}
}

// WithMaxResults caps the number of candidates returned by Collect.
func WithMaxResults(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxResults = n
		}
	}
}

// WithBreaker replaces the default circuit breaker. The supplied breaker
// should treat [freesound.ErrUnauthorized] as a non-failure; see
// [IsProviderFailure].
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(a *Aggregator) { a.breaker = cb }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// New returns an Aggregator over provider, reading the API key from creds on
// every Collect.
func New(provider Provider, creds credential.Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		provider:   provider,
		creds:      creds,
		pageSize:   DefaultPageSize,
		maxPages:   DefaultMaxPages,
		maxResults: DefaultMaxResults,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.breaker == nil {
		a.breaker = NewBreaker(resilience.Config{}, a.metrics)
	}
	return a
}

// NewBreaker builds the provider circuit breaker: cfg with the provider name,
// [IsProviderFailure] and a transition hook recording metrics. Fields already
// set in cfg are kept.
func NewBreaker(cfg resilience.Config, m *observe.Metrics) *resilience.CircuitBreaker {
	if cfg.Name == "" {
		cfg.Name = providerName
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = IsProviderFailure
	}
	if cfg.OnStateChange == nil && m != nil {
		cfg.OnStateChange = func(name string, _, to resilience.State) {
			m.RecordBreakerTransition(context.Background(), name, to.String())
		}
	}
	return resilience.New(cfg)
}

// IsProviderFailure reports whether err indicates an unhealthy provider.
// Credential problems and caller cancellation do not.
func IsProviderFailure(err error) bool {
	switch {
	case errors.Is(err, freesound.ErrUnauthorized),
		errors.Is(err, credential.ErrMissing),
		errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

// Breaker returns the circuit breaker guarding provider calls.
func (a *Aggregator) Breaker() *resilience.CircuitBreaker { return a.breaker }

// Collect searches for query and returns up to maxResults distinct sounds.
//
// Pages are fetched in order starting at 1. Collection stops after maxPages,
// on an empty page, once maxResults sounds are held, or on a failed page.
// The provider's next link is not consulted. A failure on page 1 is returned
// as an error; a later failure keeps what was already collected.
func (a *Aggregator) Collect(ctx context.Context, query string) ([]freesound.Sound, error) {
	token, err := a.creds.Token()
	if err != nil {
		return nil, err
	}

	ctx, span := observe.StartSpan(ctx, "remote.collect", trace.WithAttributes(
		attribute.String("query", query),
	))
	var spanErr error
	defer func() { observe.EndSpan(span, spanErr) }()

	log := observe.Logger(ctx)
	seen := make(map[int64]struct{}, a.maxResults)
	var out []freesound.Sound

	for page := 1; page <= a.maxPages && len(out) < a.maxResults; page++ {
		resp, err := a.search(ctx, token, query, page)
		if err != nil {
			if page == 1 {
				spanErr = err
				return nil, err
			}
			log.Warn("remote: page failed, keeping earlier results",
				"query", query, "page", page, "collected", len(out), "err", err)
			break
		}
		if len(resp.Results) == 0 {
			break
		}
		for _, s := range resp.Results {
			if _, dup := seen[s.ID]; dup {
				continue
			}
			seen[s.ID] = struct{}{}
			out = append(out, s)
			if len(out) == a.maxResults {
				break
			}
		}
	}

	span.SetAttributes(attribute.Int("results", len(out)))
	log.Debug("remote: collected candidates", "query", query, "count", len(out))
	return out, nil
}

// Download fetches the best preview of s through the circuit breaker. It
// returns the file contents and its extension.
func (a *Aggregator) Download(ctx context.Context, s freesound.Sound) (data []byte, ext string, err error) {
	url, ext, ok := s.BestPreview()
	if !ok {
		return nil, "", ErrNoPreview
	}

	ctx, span := observe.StartSpan(ctx, "remote.download", trace.WithAttributes(
		attribute.Int64("sound_id", s.ID),
	))
	defer func() { observe.EndSpan(span, err) }()

	start := time.Now()
	err = a.breaker.Do(ctx, func(ctx context.Context) error {
		var callErr error
		data, callErr = a.provider.Download(ctx, url)
		return callErr
	})
	a.metrics.RecordProviderRequest(ctx, providerName, "download", statusLabel(err), time.Since(start))
	if err != nil {
		return nil, "", fmt.Errorf("remote: download sound %d: %w", s.ID, err)
	}
	return data, ext, nil
}

func (a *Aggregator) search(ctx context.Context, token, query string, page int) (*freesound.SearchResponse, error) {
	ctx, span := observe.StartSpan(ctx, "remote.search_page", trace.WithAttributes(
		attribute.Int("page", page),
	))
	start := time.Now()

	var resp *freesound.SearchResponse
	err := a.breaker.Do(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = a.provider.Search(ctx, token, freesound.SearchRequest{
			Query:    query,
			Page:     page,
			PageSize: a.pageSize,
		})
		return callErr
	})
	a.metrics.RecordProviderRequest(ctx, providerName, "search", statusLabel(err), time.Since(start))
	observe.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("remote: search page %d: %w", page, err)
	}
	return resp, nil
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "rejected"
	case errors.Is(err, freesound.ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}

// SelectRandom returns one of candidates chosen uniformly. r may be nil to
// use the package-level generator.
func SelectRandom(candidates []freesound.Sound, r *rand.Rand) (freesound.Sound, error) {
	if len(candidates) == 0 {
		return freesound.Sound{}, ErrNoCandidates
	}
	if r == nil {
		return candidates[rand.IntN(len(candidates))], nil
	}
	return candidates[r.IntN(len(candidates))], nil
}
