// Package audio defines the [Player] abstraction for local sound playback.
//
// Backends live in sub-packages: speaker decodes in-process and writes to the
// default output device, command hands files to an external player process,
// and mock records calls for tests. [Lazy] defers opening a backend until a
// sound is actually played.
package audio

import (
	"context"
	"errors"
	"math"
)

// Default volume levels on the linear 0..1 scale.
const (
	DefaultVolume = 0.7
	MinVolume     = 0.0
	MaxVolume     = 1.0
)

var (
	// ErrNotPlaying is returned by transport controls when nothing is loaded.
	ErrNotPlaying = errors.New("audio: nothing is playing")

	// ErrUnsupportedFormat is returned by Play for files the backend cannot
	// decode.
	ErrUnsupportedFormat = errors.New("audio: unsupported audio format")

	// ErrUnsupported is returned by backends that cannot perform an
	// operation, such as pausing an external player process.
	ErrUnsupported = errors.New("audio: operation not supported by backend")
)

// Player plays one sound file at a time on the local output device.
//
// Play replaces whatever is currently loaded and returns as soon as playback
// has started. Volume is linear in [MinVolume, MaxVolume] and persists across
// sounds.
//
// Implementations must be safe for concurrent use.
type Player interface {
	// Play starts path from the beginning. ctx bounds loading only; playback
	// continues after Play returns.
	Play(ctx context.Context, path string) error

	// Stop halts playback and unloads the current sound.
	Stop() error

	// Pause suspends playback of the current sound.
	Pause() error

	// Resume continues a paused sound.
	Resume() error

	// Volume returns the current volume.
	Volume() float64

	// SetVolume sets the volume, clamped to [MinVolume, MaxVolume].
	SetVolume(v float64) error

	// Close releases the output device.
	Close() error
}

// ClampVolume limits v to [MinVolume, MaxVolume]. NaN becomes MinVolume.
func ClampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return MinVolume
	}
	return math.Max(MinVolume, math.Min(MaxVolume, v))
}

// Percent renders v as a whole percentage, rounding to the nearest integer so
// that repeated 0.1 steps read as 80% rather than 79%.
func Percent(v float64) int {
	return int(math.Round(ClampVolume(v) * 100))
}
