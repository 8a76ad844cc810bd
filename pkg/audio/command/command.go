// Package command implements [audio.Player] by running an external command
// line player such as ffplay or mpv.
//
// It is the fallback when no sound card can be opened in-process. Volume is
// passed to the player at start, so a change takes effect from the next
// sound onwards. Pause and resume are implemented with job-control signals
// and are only available on Unix-like systems.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"

	"github.com/DrTrintignant/Songbird/pkg/audio"
)

// Spec describes how to run one external player.
type Spec struct {
	// Name is the executable looked up on PATH.
	Name string

	// Args builds the argument list for path at linear volume v.
	Args func(path string, v float64) []string
}

// Known lists the supported players in order of preference.
var Known = []Spec{
	{Name: "ffplay", Args: func(path string, v float64) []string {
		return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-volume", strconv.Itoa(audio.Percent(v)), path}
	}},
	{Name: "mpv", Args: func(path string, v float64) []string {
		return []string{"--no-video", "--really-quiet", "--volume=" + strconv.Itoa(audio.Percent(v)), path}
	}},
	{Name: "paplay", Args: func(path string, v float64) []string {
		return []string{"--volume=" + strconv.Itoa(int(audio.ClampVolume(v)*65536)), path}
	}},
	{Name: "afplay", Args: func(path string, v float64) []string {
		return []string{"-v", strconv.FormatFloat(audio.ClampVolume(v), 'f', 2, 64), path}
	}},
}

// ErrNoPlayer is returned by [Detect] when none of the known players is
// installed.
var ErrNoPlayer = errors.New("command: no supported audio player found (install one of: ffplay, mpv, paplay, afplay)")

// Detect returns the first entry of [Known] found on PATH.
func Detect() (Spec, error) {
	return detect(exec.LookPath)
}

func detect(lookPath func(string) (string, error)) (Spec, error) {
	for _, s := range Known {
		if _, err := lookPath(s.Name); err == nil {
			return s, nil
		}
	}
	return Spec{}, ErrNoPlayer
}

// Lookup returns the entry of [Known] with the given name.
func Lookup(name string) (Spec, bool) {
	for _, s := range Known {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// Compile-time interface assertion.
var _ audio.Player = (*Player)(nil)

// Player runs one player process per sound.
type Player struct {
	spec Spec

	mu     sync.Mutex
	volume float64
	cmd    *exec.Cmd
	paused bool
}

// New returns a Player running spec at initial volume v.
func New(spec Spec, v float64) *Player {
	return &Player{spec: spec, volume: audio.ClampVolume(v)}
}

// Play implements [audio.Player]. The process outlives ctx; use Stop to end
// it.
func (p *Player) Play(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.killLocked()
	cmd := exec.Command(p.spec.Name, p.spec.Args(path, p.volume)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("command: start %s: %w", p.spec.Name, err)
	}
	p.cmd = cmd
	p.paused = false
	go p.wait(cmd)
	slog.Debug("command: playing", "player", p.spec.Name, "path", path, "pid", cmd.Process.Pid)
	return nil
}

// wait reaps cmd and forgets it when it was still current.
func (p *Player) wait(cmd *exec.Cmd) {
	err := cmd.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == cmd {
		p.cmd = nil
		p.paused = false
		if err != nil {
			slog.Debug("command: player exited", "player", p.spec.Name, "err", err)
		}
	}
}

// Stop implements [audio.Player].
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return audio.ErrNotPlaying
	}
	p.killLocked()
	return nil
}

// Pause implements [audio.Player].
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return audio.ErrNotPlaying
	}
	if err := suspend(p.cmd.Process); err != nil {
		return err
	}
	p.paused = true
	return nil
}

// Resume implements [audio.Player].
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return audio.ErrNotPlaying
	}
	if !p.paused {
		return nil
	}
	if err := resume(p.cmd.Process); err != nil {
		return err
	}
	p.paused = false
	return nil
}

// Volume implements [audio.Player].
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetVolume implements [audio.Player].
func (p *Player) SetVolume(v float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = audio.ClampVolume(v)
	return nil
}

// Close implements [audio.Player].
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked()
	return nil
}

// killLocked terminates the current process. Callers must hold p.mu.
func (p *Player) killLocked() {
	if p.cmd == nil {
		return
	}
	if err := p.cmd.Process.Kill(); err != nil {
		slog.Debug("command: kill player", "player", p.spec.Name, "err", err)
	}
	p.cmd = nil
	p.paused = false
}
