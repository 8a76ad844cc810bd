// Package catalog enumerates the audio files cached in the local sound
// directory and stores newly downloaded previews there.
//
// The directory is flat. Every listing rescans it, so files added or removed
// out-of-band are picked up on the next call.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
)

// SupportedExtensions lists the file extensions (lowercase, with dot) that are
// considered playable.
var SupportedExtensions = []string{".mp3", ".ogg", ".wav"}

// Entry describes one cached audio file.
type Entry struct {
	// Filename is the on-disk name including extension.
	Filename string

	// Path is the absolute path to the file.
	Path string

	// ReadableName is the display name derived from Filename by [ReadableName].
	ReadableName string
}

// Catalog is a view of a single cache directory.
type Catalog struct {
	dir string
}

// New returns a Catalog rooted at dir. The directory does not need to exist;
// it is created on the first [Catalog.Save].
func New(dir string) (*Catalog, error) {
	if dir == "" {
		return nil, errors.New("catalog: directory must not be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: resolve %q: %w", dir, err)
	}
	return &Catalog{dir: abs}, nil
}

// Dir returns the absolute cache directory.
func (c *Catalog) Dir() string { return c.dir }

// List returns every supported audio file in the cache directory in directory
// enumeration order. A missing directory yields an empty list and no error.
func (c *Catalog) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: read %q: %w", c.dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !IsSupported(de.Name()) {
			continue
		}
		entries = append(entries, Entry{
			Filename:     de.Name(),
			Path:         filepath.Join(c.dir, de.Name()),
			ReadableName: ReadableName(de.Name()),
		})
	}
	return entries, nil
}

// Save writes the content of r to the cache as "<safe name>_<id><ext>" and
// returns the resulting entry. The cache directory is created if needed. An
// existing file with the same name is replaced.
func (c *Catalog) Save(name, id, ext string, r io.Reader) (Entry, error) {
	if !IsSupported(ext) {
		return Entry{}, fmt.Errorf("catalog: unsupported extension %q", ext)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return Entry{}, fmt.Errorf("catalog: create %q: %w", c.dir, err)
	}

	filename := SafeName(name) + "_" + id + strings.ToLower(ext)
	path := filepath.Join(c.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return Entry{}, fmt.Errorf("catalog: create %q: %w", path, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return Entry{}, fmt.Errorf("catalog: write %q: %w", path, err)
	}

	slog.Debug("catalog: sound saved", "path", path, "bytes", n)
	return Entry{
		Filename:     filename,
		Path:         path,
		ReadableName: ReadableName(filename),
	}, nil
}

// IsSupported reports whether name ends in one of [SupportedExtensions],
// ignoring case. name may be a bare extension such as ".MP3".
func IsSupported(name string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(name)))
}

// ReadableName derives a display name from a cached filename. Files saved from
// the remote provider are named "<name>_<digits><ext>"; for those the numeric
// suffix is dropped. Remaining underscores become spaces.
//
//	ReadableName("Door_Chime_48213.mp3") == "Door Chime"
//	ReadableName("my_fanfare.wav")       == "my fanfare"
func ReadableName(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if i := strings.LastIndexByte(stem, '_'); i >= 0 && isDigits(stem[i+1:]) {
		stem = stem[:i]
	}
	return strings.ReplaceAll(stem, "_", " ")
}

// SafeName keeps letters, digits, spaces, "-" and "_" from name and trims
// trailing spaces.
func SafeName(name string) string {
	safe := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			return r
		}
		return -1
	}, name)
	return strings.TrimRight(safe, " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
