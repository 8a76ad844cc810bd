package remote

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/DrTrintignant/Songbird/internal/credential"
	"github.com/DrTrintignant/Songbird/internal/observe"
	"github.com/DrTrintignant/Songbird/internal/resilience"
	"github.com/DrTrintignant/Songbird/pkg/freesound"
)

// fakeProvider serves pages from a fixed table. pages[i] is page i+1 and
// errs[n] fails page n.
type fakeProvider struct {
	mu       sync.Mutex
	pages    [][]freesound.Sound
	errs     map[int]error
	calls    []int
	tokens   []string
	download []byte
	dlErr    error
	dlURLs   []string
}

func (f *fakeProvider) Search(_ context.Context, token string, req freesound.SearchRequest) (*freesound.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.Page)
	f.tokens = append(f.tokens, token)
	if err := f.errs[req.Page]; err != nil {
		return nil, err
	}
	resp := &freesound.SearchResponse{}
	if req.Page <= len(f.pages) {
		resp.Results = f.pages[req.Page-1]
	}
	return resp, nil
}

func (f *fakeProvider) Download(_ context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dlURLs = append(f.dlURLs, rawURL)
	return f.download, f.dlErr
}

func sounds(from, to int64) []freesound.Sound {
	var out []freesound.Sound
	for id := from; id <= to; id++ {
		out = append(out, freesound.Sound{ID: id, Name: "s"})
	}
	return out
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func newTestAggregator(t *testing.T, p Provider, opts ...Option) *Aggregator {
	t.Helper()
	return New(p, credential.Static("key"), append([]Option{WithMetrics(testMetrics(t))}, opts...)...)
}

func TestCollect_StopsAfterMaxPages(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{pages: [][]freesound.Sound{
		sounds(1, 15), sounds(16, 30), sounds(31, 45), sounds(46, 60), sounds(61, 75), sounds(76, 90),
	}}
	got, err := newTestAggregator(t, p).Collect(context.Background(), "rain")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 75 {
		t.Errorf("len = %d, want 75", len(got))
	}
	if len(p.calls) != 5 {
		t.Errorf("pages requested = %v, want 5", p.calls)
	}
	if p.tokens[0] != "key" {
		t.Errorf("token = %q", p.tokens[0])
	}
}

// endlessProvider serves pageSize fresh sounds on every page and never sets
// a next link.
type endlessProvider struct {
	mu    sync.Mutex
	calls int
}

func (e *endlessProvider) Search(_ context.Context, _ string, req freesound.SearchRequest) (*freesound.SearchResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	first := int64(req.Page-1)*15 + 1
	return &freesound.SearchResponse{Count: 1000, Results: sounds(first, first+14)}, nil
}

func (e *endlessProvider) Download(context.Context, string) ([]byte, error) { return nil, nil }

func TestCollect_SweepsWithoutNextLink(t *testing.T) {
	t.Parallel()
	p := &endlessProvider{}
	got, err := newTestAggregator(t, p).Collect(context.Background(), "door")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 75 {
		t.Errorf("len = %d, want 75", len(got))
	}
	if p.calls != 5 {
		t.Errorf("pages requested = %d, want 5", p.calls)
	}
}

func TestCollect_StopsOnEmptyPage(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{pages: [][]freesound.Sound{sounds(1, 15), {}, sounds(16, 20)}}
	got, err := newTestAggregator(t, p).Collect(context.Background(), "rain")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 15 || len(p.calls) != 2 {
		t.Errorf("len = %d, calls = %v", len(got), p.calls)
	}
}

func TestCollect_Dedup(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{pages: [][]freesound.Sound{sounds(1, 15), sounds(10, 24)}}
	got, err := newTestAggregator(t, p).Collect(context.Background(), "rain")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 24 {
		t.Errorf("len = %d, want 24 distinct", len(got))
	}
	seen := map[int64]bool{}
	for _, s := range got {
		if seen[s.ID] {
			t.Fatalf("duplicate id %d", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestCollect_MaxResultsCap(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{pages: [][]freesound.Sound{sounds(1, 15), sounds(16, 30)}}
	got, err := newTestAggregator(t, p, WithMaxResults(20)).Collect(context.Background(), "rain")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 20 {
		t.Errorf("len = %d, want 20", len(got))
	}
}

func TestCollect_FirstPageErrorReturned(t *testing.T) {
	t.Parallel()
	boom := &freesound.StatusError{Op: "search", StatusCode: 502}
	p := &fakeProvider{errs: map[int]error{1: boom}}
	_, err := newTestAggregator(t, p).Collect(context.Background(), "rain")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestCollect_LaterPageErrorKeepsResults(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{
		pages: [][]freesound.Sound{sounds(1, 15), sounds(16, 30), sounds(31, 45)},
		errs:  map[int]error{3: errors.New("timeout")},
	}
	got, err := newTestAggregator(t, p).Collect(context.Background(), "rain")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 30 {
		t.Errorf("len = %d, want 30", len(got))
	}
}

func TestCollect_MissingCredential(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{}
	a := New(p, credential.Static(""), WithMetrics(testMetrics(t)))
	if _, err := a.Collect(context.Background(), "rain"); !errors.Is(err, credential.ErrMissing) {
		t.Errorf("err = %v, want ErrMissing", err)
	}
	if len(p.calls) != 0 {
		t.Error("provider called without a credential")
	}
}

func TestCollect_UnauthorizedDoesNotTripBreaker(t *testing.T) {
	t.Parallel()
	unauthorized := &freesound.StatusError{Op: "search", StatusCode: 401}
	p := &fakeProvider{errs: map[int]error{1: unauthorized}}
	a := newTestAggregator(t, p, WithBreaker(NewBreaker(resilience.Config{MaxFailures: 2}, nil)))

	for range 5 {
		if _, err := a.Collect(context.Background(), "rain"); !errors.Is(err, freesound.ErrUnauthorized) {
			t.Fatalf("err = %v, want ErrUnauthorized", err)
		}
	}
	if s := a.Breaker().State(); s != resilience.StateClosed {
		t.Errorf("breaker state = %s, want closed", s)
	}
}

func TestCollect_BreakerOpens(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{errs: map[int]error{1: errors.New("connection refused")}}
	a := newTestAggregator(t, p, WithBreaker(NewBreaker(resilience.Config{MaxFailures: 2}, nil)))

	for range 2 {
		_, _ = a.Collect(context.Background(), "rain")
	}
	_, err := a.Collect(context.Background(), "rain")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if len(p.calls) != 2 {
		t.Errorf("provider calls = %d, want 2", len(p.calls))
	}
}

func TestDownload(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{download: []byte("ID3")}
	a := newTestAggregator(t, p)

	s := freesound.Sound{ID: 7, Previews: map[string]string{
		"preview-lq-ogg": "https://cdn/lq.ogg",
		"preview-hq-mp3": "https://cdn/hq.mp3",
	}}
	data, ext, err := a.Download(context.Background(), s)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "ID3" || ext != ".mp3" || p.dlURLs[0] != "https://cdn/hq.mp3" {
		t.Errorf("data=%q ext=%q urls=%v", data, ext, p.dlURLs)
	}

	if _, _, err := a.Download(context.Background(), freesound.Sound{ID: 8}); !errors.Is(err, ErrNoPreview) {
		t.Errorf("err = %v, want ErrNoPreview", err)
	}

	p.dlErr = &freesound.StatusError{Op: "download", StatusCode: 404}
	_, _, err = a.Download(context.Background(), s)
	var se *freesound.StatusError
	if !errors.As(err, &se) || se.StatusCode != 404 {
		t.Errorf("err = %v, want wrapped StatusError 404", err)
	}
}

func TestSelectRandom(t *testing.T) {
	t.Parallel()
	if _, err := SelectRandom(nil, nil); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("err = %v, want ErrNoCandidates", err)
	}

	cands := sounds(1, 4)
	r := rand.New(rand.NewPCG(3, 4))
	counts := map[int64]int{}
	for range 4000 {
		s, err := SelectRandom(cands, r)
		if err != nil {
			t.Fatal(err)
		}
		counts[s.ID]++
	}
	for id := int64(1); id <= 4; id++ {
		if c := counts[id]; c < 850 || c > 1150 {
			t.Errorf("id %d chosen %d times, want about 1000", id, c)
		}
	}

	if s, err := SelectRandom(cands[:1], nil); err != nil || s.ID != 1 {
		t.Errorf("single candidate = %+v, %v", s, err)
	}
}

func TestIsProviderFailure(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want bool
	}{
		{&freesound.StatusError{StatusCode: 401}, false},
		{credential.ErrMissing, false},
		{context.Canceled, false},
		{&freesound.StatusError{StatusCode: 500}, true},
		{context.DeadlineExceeded, true},
	}
	for _, tc := range tests {
		if got := IsProviderFailure(tc.err); got != tc.want {
			t.Errorf("IsProviderFailure(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
