package songbird

import (
	"errors"
	"fmt"

	"github.com/DrTrintignant/Songbird/internal/binding"
	"github.com/DrTrintignant/Songbird/internal/credential"
	"github.com/DrTrintignant/Songbird/internal/resilience"
	"github.com/DrTrintignant/Songbird/pkg/audio"
	"github.com/DrTrintignant/Songbird/pkg/freesound"
)

// Kind classifies operation failures.
type Kind int

const (
	// KindInternal is an unexpected failure that fits no other kind.
	KindInternal Kind = iota

	// KindConfiguration means a required setting, such as the API key, is
	// missing.
	KindConfiguration

	// KindTransport means a remote call failed.
	KindTransport

	// KindAuth is the transport failure caused by an invalid API key.
	KindAuth

	// KindNotFound means no local or remote sound, or no binding, matched.
	KindNotFound

	// KindFileMissing means a catalog or binding entry's file was removed
	// out of band.
	KindFileMissing

	// KindPersistence means the binding store or sound cache could not be
	// read or written.
	KindPersistence

	// KindValidation means the caller supplied an unusable argument.
	KindValidation

	// KindPlayback means the audio device rejected a command.
	KindPlayback
)

// String returns the lowercase kind name used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindFileMissing:
		return "file_missing"
	case KindPersistence:
		return "persistence"
	case KindValidation:
		return "validation"
	case KindPlayback:
		return "playback"
	default:
		return "internal"
	}
}

// Error is the failure of one exposed operation. Msg is the text shown to the
// user after the "SONGBIRD: " prefix.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("songbird: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("songbird: %s: %s: %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// fail builds an *Error.
func fail(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// Classify maps a package sentinel error onto a [Kind].
func Classify(err error) Kind {
	var se *Error
	switch {
	case err == nil:
		return KindInternal
	case errors.As(err, &se):
		return se.Kind
	case errors.Is(err, credential.ErrMissing):
		return KindConfiguration
	case errors.Is(err, freesound.ErrUnauthorized):
		return KindAuth
	case errors.Is(err, resilience.ErrCircuitOpen):
		return KindTransport
	case errors.Is(err, binding.ErrEmptyPhrase):
		return KindValidation
	case errors.Is(err, binding.ErrNotBound):
		return KindNotFound
	case errors.Is(err, binding.ErrMissingFile):
		return KindFileMissing
	case errors.Is(err, binding.ErrPersistence):
		return KindPersistence
	case errors.Is(err, audio.ErrUnsupportedFormat),
		errors.Is(err, audio.ErrUnsupported),
		errors.Is(err, audio.ErrNotPlaying):
		return KindPlayback
	default:
		var status *freesound.StatusError
		if errors.As(err, &status) {
			return KindTransport
		}
		return KindInternal
	}
}
