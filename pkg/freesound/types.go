package freesound

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized matches any [StatusError] carrying HTTP 401, which Freesound
// returns for a missing or invalid API token.
var ErrUnauthorized = errors.New("freesound: invalid API key")

// Sound is one text-search result. Only the fields requested through
// [SearchFields] are populated.
type Sound struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Username string            `json:"username"`
	URL      string            `json:"url"`
	Download string            `json:"download"`
	Previews map[string]string `json:"previews"`
}

// previewPriority lists preview variants from best to worst with the file
// extension each one is saved under.
var previewPriority = []struct {
	key string
	ext string
}{
	{"preview-hq-mp3", ".mp3"},
	{"preview-lq-mp3", ".mp3"},
	{"preview-hq-ogg", ".ogg"},
	{"preview-lq-ogg", ".ogg"},
}

// BestPreview returns the URL and file extension of the highest-quality
// preview available for s. ok is false when s has no usable preview.
func (s Sound) BestPreview() (url, ext string, ok bool) {
	for _, p := range previewPriority {
		if u := s.Previews[p.key]; u != "" {
			return u, p.ext, true
		}
	}
	return "", "", false
}

// SearchRequest holds the parameters of a single text-search page.
type SearchRequest struct {
	// Query is the free-text search string.
	Query string

	// Page is the 1-based page number.
	Page int

	// PageSize is the number of results per page. Zero uses [DefaultPageSize].
	PageSize int
}

// SearchResponse is one page of text-search results.
type SearchResponse struct {
	Count    int     `json:"count"`
	Next     string  `json:"next"`
	Previous string  `json:"previous"`
	Results  []Sound `json:"results"`
}

// StatusError is returned when Freesound answers with a non-200 status.
type StatusError struct {
	// Op is "search" or "download".
	Op string

	// StatusCode is the HTTP status code received.
	StatusCode int

	// Body holds the start of the response body for diagnostics.
	Body string
}

func (e *StatusError) Error() string {
	if e.StatusCode == http.StatusUnauthorized {
		return fmt.Sprintf("freesound: %s: invalid API key (HTTP 401)", e.Op)
	}
	return fmt.Sprintf("freesound: %s: request failed with HTTP %d", e.Op, e.StatusCode)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}
