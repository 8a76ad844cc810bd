// Package speaker implements [audio.Player] on the local sound card using
// gopxl/beep.
//
// The output device is opened once at a fixed sample rate; sounds recorded at
// other rates are resampled on the fly. MP3, Ogg Vorbis and WAV files are
// supported.
package speaker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/DrTrintignant/Songbird/pkg/audio"
)

const (
	// DefaultSampleRate is the device sample rate in Hz.
	DefaultSampleRate = 44100

	// DefaultBuffer is the device buffer length. Shorter buffers react faster
	// to pause and volume changes at the cost of more wakeups.
	DefaultBuffer = 100 * time.Millisecond

	resampleQuality = 4
	volumeBase      = 2
)

// Compile-time interface assertion.
var _ audio.Player = (*Player)(nil)

// decoder opens an encoded stream. The returned streamer owns rc.
type decoder func(rc *os.File) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decoder{
	".mp3": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) },
	".ogg": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return vorbis.Decode(f) },
	".wav": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) },
}

// track is the sound currently handed to the speaker.
type track struct {
	path   string
	stream beep.StreamSeekCloser
	ctrl   *beep.Ctrl
	volume *effects.Volume
}

// Player is an [audio.Player] writing to the default output device.
type Player struct {
	rate beep.SampleRate

	mu     sync.Mutex
	volume float64
	cur    *track
}

// Option is a functional option for [New].
type Option func(*config)

type config struct {
	sampleRate int
	buffer     time.Duration
	volume     float64
}

// WithSampleRate sets the device sample rate in Hz.
func WithSampleRate(hz int) Option {
	return func(c *config) {
		if hz > 0 {
			c.sampleRate = hz
		}
	}
}

// WithBuffer sets the device buffer duration.
func WithBuffer(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.buffer = d
		}
	}
}

// WithVolume sets the initial volume.
func WithVolume(v float64) Option {
	return func(c *config) { c.volume = audio.ClampVolume(v) }
}

// New opens the default output device. Only one Player may exist per
// process because the underlying speaker is a process-wide singleton.
func New(opts ...Option) (*Player, error) {
	cfg := config{
		sampleRate: DefaultSampleRate,
		buffer:     DefaultBuffer,
		volume:     audio.DefaultVolume,
	}
	for _, o := range opts {
		o(&cfg)
	}

	rate := beep.SampleRate(cfg.sampleRate)
	if err := speaker.Init(rate, rate.N(cfg.buffer)); err != nil {
		return nil, fmt.Errorf("speaker: init output device: %w", err)
	}
	slog.Info("speaker: output device ready", "sample_rate", cfg.sampleRate, "buffer", cfg.buffer)
	return &Player{rate: rate, volume: cfg.volume}, nil
}

// Play implements [audio.Player].
func (p *Player) Play(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dec, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return fmt.Errorf("speaker: %s: %w", filepath.Base(path), audio.ErrUnsupportedFormat)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("speaker: open: %w", err)
	}
	stream, format, err := dec(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("speaker: decode %s: %w", filepath.Base(path), err)
	}

	var src beep.Streamer = stream
	if format.SampleRate != p.rate {
		src = beep.Resample(resampleQuality, format.SampleRate, p.rate, stream)
	}

	t := &track{path: path, stream: stream}
	t.ctrl = &beep.Ctrl{Streamer: beep.Seq(src, beep.Callback(func() {
		// Runs on the speaker goroutine with the speaker lock held.
		go p.finished(t)
	}))}
	t.volume = &effects.Volume{Streamer: t.ctrl, Base: volumeBase}

	p.mu.Lock()
	defer p.mu.Unlock()

	applyVolume(t.volume, p.volume)
	p.unloadLocked()
	p.cur = t
	speaker.Play(t.volume)
	slog.Debug("speaker: playing", "path", path, "sample_rate", int(format.SampleRate))
	return nil
}

// Stop implements [audio.Player].
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil {
		return audio.ErrNotPlaying
	}
	p.unloadLocked()
	return nil
}

// Pause implements [audio.Player].
func (p *Player) Pause() error { return p.setPaused(true) }

// Resume implements [audio.Player].
func (p *Player) Resume() error { return p.setPaused(false) }

func (p *Player) setPaused(paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil {
		return audio.ErrNotPlaying
	}
	speaker.Lock()
	p.cur.ctrl.Paused = paused
	speaker.Unlock()
	return nil
}

// Volume implements [audio.Player].
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetVolume implements [audio.Player]. The new level applies to the current
// sound immediately and to every later one.
func (p *Player) SetVolume(v float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = audio.ClampVolume(v)
	if p.cur != nil {
		speaker.Lock()
		applyVolume(p.cur.volume, p.volume)
		speaker.Unlock()
	}
	return nil
}

// Close implements [audio.Player].
func (p *Player) Close() error {
	p.mu.Lock()
	p.unloadLocked()
	p.mu.Unlock()
	speaker.Close()
	return nil
}

// finished unloads t once it has played to the end, unless another sound
// replaced it in the meantime.
func (p *Player) finished(t *track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != t {
		return
	}
	p.unloadLocked()
	slog.Debug("speaker: finished", "path", t.path)
}

// unloadLocked clears the speaker and closes the current stream. Callers must
// hold p.mu.
func (p *Player) unloadLocked() {
	if p.cur == nil {
		return
	}
	speaker.Clear()
	if err := p.cur.stream.Close(); err != nil {
		slog.Warn("speaker: close stream", "path", p.cur.path, "err", err)
	}
	p.cur = nil
}

// applyVolume maps linear volume v onto the exponential gain of
// [effects.Volume]. Callers must hold the speaker lock when vol is playing.
func applyVolume(vol *effects.Volume, v float64) {
	exp, silent := volumeParams(v)
	vol.Volume = exp
	vol.Silent = silent
}

// volumeParams returns the base-2 exponent whose gain equals v, and whether
// v is silent.
func volumeParams(v float64) (exp float64, silent bool) {
	v = audio.ClampVolume(v)
	if v == 0 {
		return 0, true
	}
	return math.Log2(v), false
}
