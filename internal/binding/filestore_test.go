package binding

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T, opts ...FileStoreOption) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, DefaultFilename), opts...)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s, dir
}

// touch creates an empty sound file and returns an entry pointing at it.
func touch(t *testing.T, dir, name string) Entry {
	t.Helper()
	p := filepath.Join(dir, name+".mp3")
	if err := os.WriteFile(p, []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Entry{SoundName: name, Path: p, DescriptionUsed: name, Username: "tester"}
}

func TestBind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, dir := newTestStore(t)
	door := touch(t, dir, "door")
	bell := touch(t, dir, "bell")

	res, err := s.Bind(ctx, "Front Door!", door)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if res != (BindResult{Count: 1, Created: true}) {
		t.Errorf("first Bind = %+v", res)
	}

	res, err = s.Bind(ctx, "front   door", bell)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if res != (BindResult{Count: 2, Created: false}) {
		t.Errorf("second Bind = %+v", res)
	}

	if _, err := s.Bind(ctx, "FRONT DOOR", door); !errors.Is(err, ErrAlreadyBound) {
		t.Errorf("duplicate Bind err = %v, want ErrAlreadyBound", err)
	}

	bindings, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(bindings) != 1 || bindings[0].Phrase != "front door" || len(bindings[0].Entries) != 2 {
		t.Errorf("List = %+v", bindings)
	}
}

func TestBind_EmptyPhrase(t *testing.T) {
	t.Parallel()
	s, dir := newTestStore(t)
	if _, err := s.Bind(context.Background(), " ?! ", Entry{Path: "x"}); !errors.Is(err, ErrEmptyPhrase) {
		t.Errorf("err = %v, want ErrEmptyPhrase", err)
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultFilename)); !errors.Is(err, os.ErrNotExist) {
		t.Error("store file written for an empty phrase")
	}
}

func TestBind_DuplicateDoesNotWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, dir := newTestStore(t)
	e := touch(t, dir, "door")
	if _, err := s.Bind(ctx, "door", e); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(s.Path())
	if _, err := s.Bind(ctx, "door", e); !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("err = %v", err)
	}
	after, _ := os.ReadFile(s.Path())
	if string(before) != string(after) {
		t.Error("duplicate bind rewrote the store")
	}
}

func TestBindMany(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, dir := newTestStore(t)
	a, b, c := touch(t, dir, "a"), touch(t, dir, "b"), touch(t, dir, "c")

	if _, err := s.Bind(ctx, "mix", a); err != nil {
		t.Fatal(err)
	}
	res, err := s.BindMany(ctx, "mix", []Entry{a, b, c, b})
	if err != nil {
		t.Fatalf("BindMany: %v", err)
	}
	want := BindManyResult{Added: 2, Skipped: 2, Total: 3}
	if res != want {
		t.Errorf("BindMany = %+v, want %+v", res, want)
	}
}

func TestUnbind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, dir := newTestStore(t)
	a, b := touch(t, dir, "a"), touch(t, dir, "b")
	if _, err := s.BindMany(ctx, "pair", []Entry{a, b}); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Unbind(ctx, "Pair.")
	if err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if len(removed) != 2 || removed[0].SoundName != "a" || removed[1].SoundName != "b" {
		t.Errorf("removed = %+v", removed)
	}
	if _, err := s.Unbind(ctx, "pair"); !errors.Is(err, ErrNotBound) {
		t.Errorf("second Unbind err = %v, want ErrNotBound", err)
	}
}

func TestUnbindAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, dir := newTestStore(t)

	if n, err := s.UnbindAll(ctx); err != nil || n != 0 {
		t.Fatalf("UnbindAll on empty store = %d, %v", n, err)
	}

	a := touch(t, dir, "a")
	for _, p := range []string{"one", "two", "three"} {
		if _, err := s.Bind(ctx, p, a); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.UnbindAll(ctx)
	if err != nil || n != 3 {
		t.Fatalf("UnbindAll = %d, %v; want 3", n, err)
	}
	bindings, _ := s.List(ctx)
	if len(bindings) != 0 {
		t.Errorf("List after UnbindAll = %+v", bindings)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, dir := newTestStore(t)

	if _, err := s.Resolve(ctx, "nothing"); !errors.Is(err, ErrNotBound) {
		t.Errorf("err = %v, want ErrNotBound", err)
	}

	e := touch(t, dir, "door")
	if _, err := s.Bind(ctx, "door", e); err != nil {
		t.Fatal(err)
	}
	got, err := s.Resolve(ctx, "DOOR")
	if err != nil || got != e {
		t.Errorf("Resolve = %+v, %v", got, err)
	}

	if err := os.Remove(e.Path); err != nil {
		t.Fatal(err)
	}
	got, err = s.Resolve(ctx, "door")
	if !errors.Is(err, ErrMissingFile) {
		t.Errorf("err = %v, want ErrMissingFile", err)
	}
	if got.SoundName != "door" {
		t.Errorf("missing-file Resolve should still name the entry, got %+v", got)
	}
}

// Resolve must pick every entry with roughly equal probability.
func TestResolve_Uniform(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, dir := newTestStore(t, WithRand(rand.New(rand.NewPCG(1, 2))))

	names := []string{"a", "b", "c"}
	var entries []Entry
	for _, n := range names {
		entries = append(entries, touch(t, dir, n))
	}
	if _, err := s.BindMany(ctx, "trio", entries); err != nil {
		t.Fatal(err)
	}

	const trials = 3000
	counts := map[string]int{}
	for range trials {
		e, err := s.Resolve(ctx, "trio")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		counts[e.SoundName]++
	}
	for _, n := range names {
		if c := counts[n]; c < 850 || c > 1150 {
			t.Errorf("%s chosen %d/%d times, want about %d", n, c, trials, trials/3)
		}
	}
}

func TestLegacySingleObject(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, dir := newTestStore(t)
	a := touch(t, dir, "a")
	b := touch(t, dir, "b")

	legacy := `{
  "zulu": {"sound_name": "a", "filepath": "` + filepath.ToSlash(a.Path) + `", "description_used": "a", "username": "tester"},
  "alpha": [
    {"sound_name": "b", "filepath": "` + filepath.ToSlash(b.Path) + `", "description_used": "b", "username": "tester"}
  ]
}`
	if err := os.WriteFile(s.Path(), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	bindings, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(bindings) != 2 || bindings[0].Phrase != "zulu" || bindings[1].Phrase != "alpha" {
		t.Fatalf("List = %+v, want file order zulu, alpha", bindings)
	}
	if len(bindings[0].Entries) != 1 || bindings[0].Entries[0].SoundName != "a" {
		t.Errorf("legacy entry = %+v", bindings[0].Entries)
	}

	// Reads never rewrite the legacy form.
	raw, _ := os.ReadFile(s.Path())
	if string(raw) != legacy {
		t.Error("List rewrote the store")
	}

	// The next write upgrades it to a list and keeps phrase order.
	if _, err := s.Bind(ctx, "zulu", b); err != nil {
		t.Fatal(err)
	}
	raw, _ = os.ReadFile(s.Path())
	text := string(raw)
	if !strings.Contains(text, `"zulu": [`) {
		t.Errorf("legacy value not upgraded to a list:\n%s", text)
	}
	if strings.Index(text, `"zulu"`) > strings.Index(text, `"alpha"`) {
		t.Errorf("phrase order not preserved:\n%s", text)
	}
}

func TestCorruptFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t)
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.List(ctx); !errors.Is(err, ErrPersistence) {
		t.Errorf("List err = %v, want ErrPersistence", err)
	}
	if err := s.Check(ctx); !errors.Is(err, ErrPersistence) {
		t.Errorf("Check err = %v, want ErrPersistence", err)
	}
	if _, err := s.Bind(ctx, "x", Entry{Path: "x"}); !errors.Is(err, ErrPersistence) {
		t.Errorf("Bind err = %v, want ErrPersistence", err)
	}
}

func TestSave_NoTempFilesLeft(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, dir := newTestStore(t)
	e := touch(t, dir, "a")
	if _, err := s.Bind(ctx, "a", e); err != nil {
		t.Fatal(err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, ".bindings-*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestNewFileStore_EmptyPath(t *testing.T) {
	t.Parallel()
	if _, err := NewFileStore(""); err == nil {
		t.Error("expected error for empty path")
	}
}
