// Package playback holds the per-process record of what was played last.
//
// A [Session] is created once at startup and shared by reference between the
// sound matcher (which reads [Session.LastDescription] to resolve "play it
// again") and the operation layer (which writes it after every successful play
// and reads [Session.Current] when binding). Nothing here is persisted.
package playback

import (
	"sync"

	"github.com/DrTrintignant/Songbird/pkg/freesound"
)

// Playing describes the sound that was played most recently.
type Playing struct {
	// SoundName is the display name of the sound.
	SoundName string

	// Path is the local file that was played.
	Path string

	// DescriptionUsed is the free-text request that led to the play.
	DescriptionUsed string

	// Username is the uploader for remote sounds, or a fixed label for
	// sounds that came from the local cache.
	Username string

	// Sound is the remote search result, nil for local plays.
	Sound *freesound.Sound
}

// Session is the process-lifetime playback record. The zero value is ready to
// use. All methods are safe for concurrent use.
type Session struct {
	mu              sync.RWMutex
	current         *Playing
	lastDescription string
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// RecordPlay stores p as the current sound. A non-empty description also
// becomes the last description used for anaphora resolution.
func (s *Session) RecordPlay(p Playing, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &p
	if description != "" {
		s.lastDescription = description
	}
}

// Current returns a copy of the current sound and whether one exists.
func (s *Session) Current() (Playing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Playing{}, false
	}
	return *s.current, true
}

// LastDescription returns the description of the most recent description-led
// play and whether one exists.
func (s *Session) LastDescription() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDescription, s.lastDescription != ""
}

// Clear forgets everything recorded so far.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.lastDescription = ""
}
