package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/DrTrintignant/Songbird/pkg/audio"
)

// ErrBackendNotRegistered is returned by [Registry.CreatePlayer] when no
// factory has been registered under the requested backend.
var ErrBackendNotRegistered = errors.New("config: audio backend not registered")

// AutoOrder is the order in which [BackendAuto] tries concrete backends.
var AutoOrder = []AudioBackend{BackendSpeaker, BackendCommand}

// PlayerFactory builds an audio player from the audio section.
type PlayerFactory func(AudioConfig) (audio.Player, error)

// Registry maps audio backend names to player constructors. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	players map[AudioBackend]PlayerFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{players: make(map[AudioBackend]PlayerFactory)}
}

// RegisterPlayer registers a player factory under backend.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterPlayer(backend AudioBackend, factory PlayerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[backend] = factory
}

// CreatePlayer instantiates the player selected by a.Backend. For
// [BackendAuto] every backend in [AutoOrder] is tried until one succeeds; the
// joined errors are returned when none does.
func (r *Registry) CreatePlayer(a AudioConfig) (audio.Player, error) {
	if a.Backend != BackendAuto {
		return r.create(a.Backend, a)
	}

	var errs []error
	for _, b := range AutoOrder {
		p, err := r.create(b, a)
		if err == nil {
			slog.Info("config: audio backend selected", "backend", string(b))
			return p, nil
		}
		slog.Debug("config: audio backend unavailable", "backend", string(b), "err", err)
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("config: no usable audio backend: %w", errors.Join(errs...))
}

func (r *Registry) create(b AudioBackend, a AudioConfig) (audio.Player, error) {
	r.mu.RLock()
	factory, ok := r.players[b]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, b)
	}
	p, err := factory(a)
	if err != nil {
		return nil, fmt.Errorf("config: audio backend %q: %w", b, err)
	}
	return p, nil
}
