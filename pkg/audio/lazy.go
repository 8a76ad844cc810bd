package audio

import (
	"context"
	"sync"
)

// Lazy is a [Player] that opens its backend on the first Play. Commands that
// never play a sound, such as listings, therefore never touch the output
// device. Volume changes made before the backend opens are applied to it.
type Lazy struct {
	open func() (Player, error)

	mu     sync.Mutex
	p      Player
	volume float64
}

// NewLazy returns a Lazy player that calls open on first use. The volume is
// [DefaultVolume] until changed.
func NewLazy(open func() (Player, error)) *Lazy {
	return &Lazy{open: open, volume: DefaultVolume}
}

// player returns the opened backend, opening it when create is true.
func (l *Lazy) player(create bool) (Player, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.p != nil || !create {
		return l.p, nil
	}
	p, err := l.open()
	if err != nil {
		return nil, err
	}
	if err := p.SetVolume(l.volume); err != nil {
		_ = p.Close()
		return nil, err
	}
	l.p = p
	return p, nil
}

// Play opens the backend if needed and plays path.
func (l *Lazy) Play(ctx context.Context, path string) error {
	p, err := l.player(true)
	if err != nil {
		return err
	}
	return p.Play(ctx, path)
}

// Stop implements [Player].
func (l *Lazy) Stop() error {
	p, _ := l.player(false)
	if p == nil {
		return ErrNotPlaying
	}
	return p.Stop()
}

// Pause implements [Player].
func (l *Lazy) Pause() error {
	p, _ := l.player(false)
	if p == nil {
		return ErrNotPlaying
	}
	return p.Pause()
}

// Resume implements [Player].
func (l *Lazy) Resume() error {
	p, _ := l.player(false)
	if p == nil {
		return ErrNotPlaying
	}
	return p.Resume()
}

// Volume implements [Player].
func (l *Lazy) Volume() float64 {
	p, _ := l.player(false)
	if p == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.volume
	}
	return p.Volume()
}

// SetVolume implements [Player].
func (l *Lazy) SetVolume(v float64) error {
	l.mu.Lock()
	l.volume = ClampVolume(v)
	p := l.p
	l.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.SetVolume(v)
}

// Close closes the backend if it was opened.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.p == nil {
		return nil
	}
	err := l.p.Close()
	l.p = nil
	return err
}

var _ Player = (*Lazy)(nil)
