// Package credential supplies the Freesound API token.
//
// The token file is re-read on every call so a key dropped into place while
// the process runs is picked up on the next request. When the file is absent
// or blank the environment variable named by [EnvVar] is consulted.
package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// EnvVar is the environment fallback for the token file.
const EnvVar = "SONGBIRD_FREESOUND_TOKEN"

// ErrMissing is returned when neither the token file nor the environment
// provides a token.
var ErrMissing = errors.New("credential: no Freesound API key configured")

// Source is the credential provider contract.
type Source interface {
	Token() (string, error)
}

// File reads the token from a text file, falling back to [EnvVar].
type File struct {
	path   string
	getenv func(string) string
}

// Compile-time interface assertion.
var _ Source = (*File)(nil)

// NewFile returns a File reading from path. An empty path disables the file
// and leaves only the environment fallback.
func NewFile(path string) *File {
	return &File{path: path, getenv: os.Getenv}
}

// Path returns the configured token file path.
func (f *File) Path() string { return f.path }

// Token returns the trimmed token, or [ErrMissing]. A token file that exists
// but cannot be read is reported as an error distinct from ErrMissing.
func (f *File) Token() (string, error) {
	if f.path != "" {
		data, err := os.ReadFile(f.path)
		switch {
		case err == nil:
			if tok := strings.TrimSpace(string(data)); tok != "" {
				return tok, nil
			}
		case !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("credential: read %s: %w", f.path, err)
		}
	}
	if tok := strings.TrimSpace(f.getenv(EnvVar)); tok != "" {
		return tok, nil
	}
	return "", ErrMissing
}

// Present reports whether a token is currently available.
func (f *File) Present() bool {
	_, err := f.Token()
	return err == nil
}

// Static is a fixed token, used in tests and when the token comes from
// configuration.
type Static string

// Token returns the static token or ErrMissing when blank.
func (s Static) Token() (string, error) {
	if tok := strings.TrimSpace(string(s)); tok != "" {
		return tok, nil
	}
	return "", ErrMissing
}
