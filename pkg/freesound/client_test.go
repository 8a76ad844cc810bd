package freesound

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// ---- test helpers ----

func newTestServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

// ---- Search ----

func TestSearch_SendsQueryAndToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/text/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token secret" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("query") != "door chime" || q.Get("page") != "2" || q.Get("page_size") != "15" {
			t.Errorf("query params = %v", q)
		}
		if q.Get("fields") != SearchFields {
			t.Errorf("fields = %q", q.Get("fields"))
		}
		fmt.Fprint(w, `{"count":2,"next":null,"results":[
			{"id":1,"name":"Chime A","username":"ann","previews":{"preview-hq-mp3":"http://x/a.mp3"}},
			{"id":2,"name":"Chime B","username":"ben","previews":{}}]}`)
	})

	c := New(WithBaseURL(srv.URL + "/"))
	page, err := c.Search(context.Background(), "secret", SearchRequest{Query: "door chime", Page: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.Count != 2 || len(page.Results) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Results[0].ID != 1 || page.Results[0].Username != "ann" {
		t.Errorf("first result = %+v", page.Results[0])
	}
}

func TestSearch_Unauthorized(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"Invalid token"}`, http.StatusUnauthorized)
	})

	c := New(WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), "bad", SearchRequest{Query: "x"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected *StatusError with 401, got %v", err)
	}
}

func TestSearch_ServerError(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	c := New(WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), "tok", SearchRequest{Query: "x"})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v, want StatusError 502", err)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Error("502 must not match ErrUnauthorized")
	}
}

func TestSearch_EmptyTokenSkipsRequest(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := newTestServer(t, func(http.ResponseWriter, *http.Request) { calls.Add(1) })

	c := New(WithBaseURL(srv.URL))
	if _, err := c.Search(context.Background(), "", SearchRequest{Query: "x"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("server called %d times", calls.Load())
	}
}

func TestSearch_MalformedBody(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results": [`)
	})
	c := New(WithBaseURL(srv.URL))
	if _, err := c.Search(context.Background(), "tok", SearchRequest{Query: "x"}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSearch_Timeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
	})
	defer close(release)

	c := New(WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))
	if _, err := c.Search(context.Background(), "tok", SearchRequest{Query: "x"}); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestSearch_RateLimitHonoursContext(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"count":0,"results":[]}`)
	})

	// One request per minute with a burst of one: the second call must wait.
	c := New(WithBaseURL(srv.URL), WithRateLimit(1))
	if _, err := c.Search(context.Background(), "tok", SearchRequest{Query: "x"}); err != nil {
		t.Fatalf("first Search: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Search(ctx, "tok", SearchRequest{Query: "x"}); err == nil {
		t.Fatal("expected rate limiter to give up before the deadline")
	}
}

// ---- Download ----

func TestDownload(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("download must not send credentials")
		}
		fmt.Fprint(w, "ID3-bytes")
	})

	c := New()
	data, err := c.Download(context.Background(), srv.URL+"/a.mp3")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "ID3-bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestDownload_NotFound(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, http.NotFound)
	c := New()
	_, err := c.Download(context.Background(), srv.URL+"/missing.mp3")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound || se.Op != "download" {
		t.Fatalf("err = %v", err)
	}
}

func TestDownload_EmptyURL(t *testing.T) {
	t.Parallel()
	if _, err := New().Download(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

// ---- Sound ----

func TestBestPreview_Priority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		previews map[string]string
		wantURL  string
		wantExt  string
		wantOK   bool
	}{
		{
			name: "hq mp3 wins",
			previews: map[string]string{
				"preview-lq-mp3": "lq.mp3", "preview-hq-mp3": "hq.mp3", "preview-hq-ogg": "hq.ogg",
			},
			wantURL: "hq.mp3", wantExt: ".mp3", wantOK: true,
		},
		{
			name:     "lq mp3 before ogg",
			previews: map[string]string{"preview-lq-mp3": "lq.mp3", "preview-hq-ogg": "hq.ogg"},
			wantURL:  "lq.mp3", wantExt: ".mp3", wantOK: true,
		},
		{
			name:     "ogg only",
			previews: map[string]string{"preview-lq-ogg": "lq.ogg"},
			wantURL:  "lq.ogg", wantExt: ".ogg", wantOK: true,
		},
		{
			name:     "empty values skipped",
			previews: map[string]string{"preview-hq-mp3": "", "preview-hq-ogg": "hq.ogg"},
			wantURL:  "hq.ogg", wantExt: ".ogg", wantOK: true,
		},
		{name: "none", previews: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			u, ext, ok := Sound{Previews: tc.previews}.BestPreview()
			if u != tc.wantURL || ext != tc.wantExt || ok != tc.wantOK {
				t.Errorf("BestPreview() = (%q, %q, %v), want (%q, %q, %v)", u, ext, ok, tc.wantURL, tc.wantExt, tc.wantOK)
			}
		})
	}
}

func TestStatusError_Message(t *testing.T) {
	t.Parallel()
	e := &StatusError{Op: "search", StatusCode: 500}
	if !strings.Contains(e.Error(), "500") {
		t.Errorf("Error() = %q", e.Error())
	}
}
