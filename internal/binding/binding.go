// Package binding persists user-named phrases bound to one or more cached
// sounds.
//
// A [FileStore] keeps the whole binding table in a single pretty-printed JSON
// object keyed by storage-normalized phrase. Every call reads the file and
// every mutation rewrites it, so external edits are picked up without a
// restart. Phrase order in the file is preserved across rewrites.
package binding

import (
	"context"
	"errors"
)

// Sentinel errors returned by [Store] implementations.
var (
	// ErrEmptyPhrase is returned when a phrase normalizes to the empty string.
	ErrEmptyPhrase = errors.New("binding: empty phrase")

	// ErrAlreadyBound is returned by Bind when the sound path is already bound
	// under the phrase.
	ErrAlreadyBound = errors.New("binding: sound already bound to phrase")

	// ErrNotBound is returned when no binding exists for a phrase.
	ErrNotBound = errors.New("binding: phrase not bound")

	// ErrMissingFile is returned by Resolve when the chosen sound file no
	// longer exists on disk.
	ErrMissingFile = errors.New("binding: bound sound file missing")

	// ErrPersistence wraps read, decode and write failures of the backing
	// file.
	ErrPersistence = errors.New("binding: persistence failure")
)

// Entry is one sound bound under a phrase.
type Entry struct {
	SoundName       string `json:"sound_name"`
	Path            string `json:"filepath"`
	DescriptionUsed string `json:"description_used"`
	Username        string `json:"username"`
}

// Binding is a phrase together with its bound sounds, in insertion order.
type Binding struct {
	Phrase  string
	Entries []Entry
}

// BindResult reports the outcome of a single Bind.
type BindResult struct {
	// Count is the number of sounds under the phrase after the bind.
	Count int

	// Created is true when the phrase did not exist before.
	Created bool
}

// BindManyResult reports the outcome of BindMany.
type BindManyResult struct {
	Added   int
	Skipped int
	Total   int
}

// Store is the binding persistence contract.
//
// All phrase arguments are normalized with [phrase.ForStorage] before use.
// Implementations must be safe for concurrent use.
type Store interface {
	// Bind appends e under phrase. A duplicate path returns ErrAlreadyBound
	// and leaves the store untouched.
	Bind(ctx context.Context, phrase string, e Entry) (BindResult, error)

	// BindMany appends every entry whose path is not yet bound under phrase
	// and persists once.
	BindMany(ctx context.Context, phrase string, entries []Entry) (BindManyResult, error)

	// Unbind removes phrase and returns the entries it held.
	Unbind(ctx context.Context, phrase string) ([]Entry, error)

	// UnbindAll removes every phrase and returns how many were removed.
	UnbindAll(ctx context.Context) (int, error)

	// Resolve picks one entry under phrase uniformly at random. When the
	// chosen file is gone it returns that entry together with ErrMissingFile.
	Resolve(ctx context.Context, phrase string) (Entry, error)

	// List returns all bindings in file order.
	List(ctx context.Context) ([]Binding, error)
}
