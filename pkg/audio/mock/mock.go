// Package mock provides an in-memory implementation of [audio.Player] for
// unit tests.
//
// The mock is safe for concurrent use. It records every call so that tests
// can assert on call counts and arguments, and it exposes exported error
// fields that the test can set to control return values.
//
// Typical usage:
//
//	p := &mock.Player{}
//	svc := songbird.New(songbird.Deps{Player: p, ...})
//	svc.PlaySound(ctx, req)
//	if len(p.PlayCalls) != 1 { ... }
package mock

import (
	"context"
	"sync"

	"github.com/DrTrintignant/Songbird/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Player = (*Player)(nil)

// Player is a mock implementation of [audio.Player]. It tracks a simple
// loaded/paused state so transport controls behave like a real backend.
type Player struct {
	mu sync.Mutex

	// PlayErr, when non-nil, is returned by Play and nothing is loaded.
	PlayErr error

	// PauseErr, when non-nil, is returned by Pause and Resume.
	PauseErr error

	// PlayCalls holds the path of every Play call, in order.
	PlayCalls []string

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	// CallCountPause records how many times Pause was called.
	CallCountPause int

	// CallCountResume records how many times Resume was called.
	CallCountResume int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	// VolumeSet is every value passed to SetVolume after clamping.
	VolumeSet []float64

	volume    float64
	volumeSet bool
	loaded    string
	paused    bool
}

// Play implements [audio.Player].
func (p *Player) Play(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PlayCalls = append(p.PlayCalls, path)
	if p.PlayErr != nil {
		return p.PlayErr
	}
	p.loaded = path
	p.paused = false
	return nil
}

// Stop implements [audio.Player].
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountStop++
	if p.loaded == "" {
		return audio.ErrNotPlaying
	}
	p.loaded = ""
	p.paused = false
	return nil
}

// Pause implements [audio.Player].
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountPause++
	if p.PauseErr != nil {
		return p.PauseErr
	}
	if p.loaded == "" {
		return audio.ErrNotPlaying
	}
	p.paused = true
	return nil
}

// Resume implements [audio.Player].
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountResume++
	if p.PauseErr != nil {
		return p.PauseErr
	}
	if p.loaded == "" {
		return audio.ErrNotPlaying
	}
	p.paused = false
	return nil
}

// Volume implements [audio.Player]. It reports [audio.DefaultVolume] until
// SetVolume is first called.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.volumeSet {
		return audio.DefaultVolume
	}
	return p.volume
}

// SetVolume implements [audio.Player].
func (p *Player) SetVolume(v float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	v = audio.ClampVolume(v)
	p.volume = v
	p.volumeSet = true
	p.VolumeSet = append(p.VolumeSet, v)
	return nil
}

// Close implements [audio.Player].
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountClose++
	p.loaded = ""
	return nil
}

// Loaded returns the path of the loaded sound and whether it is paused.
func (p *Player) Loaded() (path string, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded, p.paused
}
