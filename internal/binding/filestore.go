package binding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/DrTrintignant/Songbird/internal/phrase"
)

// DefaultFilename is the conventional name of the binding file.
const DefaultFilename = "bound_sounds.json"

// table is the decoded binding file: phrase → entries, in file order.
type table = orderedmap.OrderedMap[string, entryList]

// entryList decodes either a JSON list of entries or a single legacy entry
// object. It always encodes as a list.
type entryList []Entry

// UnmarshalJSON implements [json.Unmarshaler].
func (l *entryList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case len(data) > 0 && data[0] == '{':
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		*l = entryList{e}
		return nil
	default:
		var list []Entry
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*l = list
		return nil
	}
}

func (l entryList) hasPath(path string) bool {
	for _, e := range l {
		if e.Path == path {
			return true
		}
	}
	return false
}

// Compile-time interface assertion.
var _ Store = (*FileStore)(nil)

// FileStore is a [Store] backed by a single JSON file.
//
// Calls within one process are serialized by a mutex. Writes go to a
// temporary file in the same directory which is then renamed over the store,
// so a crash mid-write never leaves a truncated file behind.
type FileStore struct {
	path string
	mu   sync.Mutex
	intN func(n int) int
	stat func(name string) (fs.FileInfo, error)
}

// FileStoreOption is a functional option for [NewFileStore].
type FileStoreOption func(*FileStore)

// WithRand sets the random source used by Resolve. The default is the
// package-level math/rand/v2 generator.
func WithRand(r *rand.Rand) FileStoreOption {
	return func(s *FileStore) {
		s.intN = r.IntN
	}
}

// NewFileStore returns a FileStore persisting to path. The file and its
// directory are created on the first mutation.
func NewFileStore(path string, opts ...FileStoreOption) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("binding: store path must not be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("binding: resolve store path: %w", err)
	}
	s := &FileStore{
		path: abs,
		intN: rand.IntN,
		stat: os.Stat,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Path returns the absolute path of the backing file.
func (s *FileStore) Path() string { return s.path }

// Bind implements [Store].
func (s *FileStore) Bind(_ context.Context, p string, e Entry) (BindResult, error) {
	key := phrase.ForStorage(p)
	if key == "" {
		return BindResult{}, ErrEmptyPhrase
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return BindResult{}, err
	}
	list, existed := t.Get(key)
	if list.hasPath(e.Path) {
		return BindResult{Count: len(list)}, ErrAlreadyBound
	}
	list = append(list, e)
	t.Set(key, list)
	if err := s.save(t); err != nil {
		return BindResult{}, err
	}
	slog.Debug("binding: bound sound", "phrase", key, "sound", e.SoundName, "count", len(list))
	return BindResult{Count: len(list), Created: !existed}, nil
}

// BindMany implements [Store]. Entries repeated within the batch count as
// duplicates after the first. Nothing is written when every entry is a
// duplicate.
func (s *FileStore) BindMany(_ context.Context, p string, entries []Entry) (BindManyResult, error) {
	key := phrase.ForStorage(p)
	if key == "" {
		return BindManyResult{}, ErrEmptyPhrase
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return BindManyResult{}, err
	}
	list, _ := t.Get(key)
	var res BindManyResult
	for _, e := range entries {
		if list.hasPath(e.Path) {
			res.Skipped++
			continue
		}
		list = append(list, e)
		res.Added++
	}
	res.Total = len(list)
	if res.Added == 0 {
		return res, nil
	}
	t.Set(key, list)
	if err := s.save(t); err != nil {
		return BindManyResult{}, err
	}
	slog.Debug("binding: bound sounds", "phrase", key, "added", res.Added, "skipped", res.Skipped, "total", res.Total)
	return res, nil
}

// Unbind implements [Store].
func (s *FileStore) Unbind(_ context.Context, p string) ([]Entry, error) {
	key := phrase.ForStorage(p)
	if key == "" {
		return nil, ErrEmptyPhrase
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return nil, err
	}
	list, ok := t.Delete(key)
	if !ok {
		return nil, ErrNotBound
	}
	if err := s.save(t); err != nil {
		return nil, err
	}
	slog.Debug("binding: unbound phrase", "phrase", key, "count", len(list))
	return list, nil
}

// UnbindAll implements [Store]. An already empty store is not rewritten.
func (s *FileStore) UnbindAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return 0, err
	}
	n := t.Len()
	if n == 0 {
		return 0, nil
	}
	if err := s.save(orderedmap.New[string, entryList]()); err != nil {
		return 0, err
	}
	slog.Debug("binding: removed all bindings", "count", n)
	return n, nil
}

// Resolve implements [Store].
func (s *FileStore) Resolve(_ context.Context, p string) (Entry, error) {
	key := phrase.ForStorage(p)
	if key == "" {
		return Entry{}, ErrEmptyPhrase
	}

	s.mu.Lock()
	t, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return Entry{}, err
	}

	list, ok := t.Get(key)
	if !ok || len(list) == 0 {
		return Entry{}, ErrNotBound
	}
	e := list[s.intN(len(list))]
	if _, err := s.stat(e.Path); err != nil {
		slog.Warn("binding: bound file missing", "phrase", key, "path", e.Path, "err", err)
		return e, ErrMissingFile
	}
	return e, nil
}

// List implements [Store].
func (s *FileStore) List(_ context.Context) ([]Binding, error) {
	s.mu.Lock()
	t, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]Binding, 0, t.Len())
	for pair := t.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Binding{Phrase: pair.Key, Entries: pair.Value})
	}
	return out, nil
}

// Check reports whether the backing file can be read and decoded. It is
// intended for readiness probes.
func (s *FileStore) Check(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.load()
	return err
}

// load reads and decodes the store file. A missing or blank file is an empty
// table. Callers must hold s.mu.
func (s *FileStore) load() (*table, error) {
	t := orderedmap.New[string, entryList]()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrPersistence, s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return t, nil
	}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrPersistence, s.path, err)
	}
	return t, nil
}

// save rewrites the store file atomically. Callers must hold s.mu.
func (s *FileStore) save(t *table) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersistence, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create dir: %w", ErrPersistence, err)
	}
	tmp, err := os.CreateTemp(dir, ".bindings-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrPersistence, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write: %w", ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync: %w", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrPersistence, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %w", ErrPersistence, s.path, err)
	}
	return nil
}
