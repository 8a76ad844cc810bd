package main

import (
	"fmt"
	"log/slog"

	"github.com/DrTrintignant/Songbird/internal/binding"
	"github.com/DrTrintignant/Songbird/internal/catalog"
	"github.com/DrTrintignant/Songbird/internal/config"
	"github.com/DrTrintignant/Songbird/internal/credential"
	"github.com/DrTrintignant/Songbird/internal/observe"
	"github.com/DrTrintignant/Songbird/internal/remote"
	"github.com/DrTrintignant/Songbird/internal/resilience"
	"github.com/DrTrintignant/Songbird/internal/songbird"
	"github.com/DrTrintignant/Songbird/internal/voicecmd"
	"github.com/DrTrintignant/Songbird/pkg/audio"
	"github.com/DrTrintignant/Songbird/pkg/audio/command"
	"github.com/DrTrintignant/Songbird/pkg/audio/speaker"
	"github.com/DrTrintignant/Songbird/pkg/freesound"
)

// app holds the collaborators built from a config.
type app struct {
	cfg        *config.Config
	svc        *songbird.Service
	cache      *catalog.Catalog
	store      *binding.FileStore
	creds      *credential.File
	aggregator *remote.Aggregator
	player     *audio.Lazy
}

// registerBuiltinPlayers wires the audio backends that ship with Songbird
// into reg.
func registerBuiltinPlayers(reg *config.Registry) {
	reg.RegisterPlayer(config.BackendSpeaker, func(config.AudioConfig) (audio.Player, error) {
		p, err := speaker.New()
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterPlayer(config.BackendCommand, func(a config.AudioConfig) (audio.Player, error) {
		if a.Command != "" {
			spec, ok := command.Lookup(a.Command)
			if !ok {
				return nil, fmt.Errorf("unknown player command %q", a.Command)
			}
			return command.New(spec, audio.DefaultVolume), nil
		}
		spec, err := command.Detect()
		if err != nil {
			return nil, err
		}
		slog.Debug("audio: detected player command", "command", spec.Name)
		return command.New(spec, audio.DefaultVolume), nil
	})
}

// newApp builds every collaborator of the service from cfg. The audio
// backend is opened on first playback. m may be nil to use the default
// metrics.
func newApp(cfg *config.Config, m *observe.Metrics) (*app, error) {
	if m == nil {
		m = observe.DefaultMetrics()
	}

	cache, err := catalog.New(cfg.Paths.SoundsDir)
	if err != nil {
		return nil, err
	}
	store, err := binding.NewFileStore(cfg.Paths.BindingsFile)
	if err != nil {
		return nil, err
	}
	creds := credential.NewFile(cfg.Paths.APIKeyFile)

	fs := cfg.Freesound
	clientOpts := []freesound.Option{
		freesound.WithTimeout(fs.Timeout.Std()),
		freesound.WithDownloadTimeout(fs.DownloadTimeout.Std()),
		freesound.WithRateLimit(fs.RequestsPerMinute),
	}
	if fs.BaseURL != "" {
		clientOpts = append(clientOpts, freesound.WithBaseURL(fs.BaseURL))
	}
	breaker := remote.NewBreaker(resilience.Config{
		MaxFailures:  fs.Breaker.MaxFailures,
		ResetTimeout: fs.Breaker.ResetTimeout.Std(),
		HalfOpenMax:  fs.Breaker.HalfOpenMax,
	}, m)
	agg := remote.New(freesound.New(clientOpts...), creds,
		remote.WithPageSize(fs.PageSize),
		remote.WithMaxPages(fs.MaxPages),
		remote.WithMaxResults(fs.MaxResults),
		remote.WithBreaker(breaker),
		remote.WithMetrics(m),
	)

	reg := config.NewRegistry()
	registerBuiltinPlayers(reg)
	player := audio.NewLazy(func() (audio.Player, error) {
		return reg.CreatePlayer(cfg.Audio)
	})

	svc, err := songbird.New(songbird.Deps{
		Cache:       cache,
		Remote:      agg,
		Bindings:    store,
		Player:      player,
		Credentials: creds,
		KeyFile:     cfg.Paths.APIKeyFile,
		Commands: voicecmd.New(
			voicecmd.WithUnmuteVolume(cfg.Audio.UnmuteVolume),
			voicecmd.WithVolumeStep(cfg.Audio.VolumeStep),
		),
		Metrics: m,
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		svc:        svc,
		cache:      cache,
		store:      store,
		creds:      creds,
		aggregator: agg,
		player:     player,
	}, nil
}

// Close releases the audio device.
func (a *app) Close() error {
	return a.player.Close()
}
