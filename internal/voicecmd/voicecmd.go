// Package voicecmd interprets free-text playback commands such as "pause",
// "volume up" or "set the volume to 40 percent" and applies them to an
// [audio.Player].
//
// Commands are checked against an ordered set of regex patterns; the first
// pattern that matches wins. Patterns match whole words, so "unmute" is never
// mistaken for "mute" and "weekend" does not trigger "end".
package voicecmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/DrTrintignant/Songbird/pkg/audio"
)

const (
	// UnmuteVolume is the level restored by "unmute".
	UnmuteVolume = 0.7

	// VolumeStep is the change applied by "volume up" and "volume down".
	VolumeStep = 0.1
)

// Result describes how a command was handled.
type Result struct {
	// Pattern is the name of the matched pattern, or "" when nothing matched.
	Pattern string

	// Message is the human-readable outcome, e.g. "Audio paused".
	Message string
}

// Matched reports whether a pattern recognised the command.
func (r Result) Matched() bool { return r.Pattern != "" }

// Pattern pairs a compiled regex with the action to execute when it matches.
type Pattern struct {
	// Regex is the compiled pattern, matched against the lowercased command.
	Regex *regexp.Regexp

	// Name is a human-readable label for logging.
	Name string

	// Action applies the command to p and returns the outcome message.
	// matches is the full submatch slice from Regex.FindStringSubmatch.
	Action func(p audio.Player, cmd string, matches []string) (string, error)
}

// Interpreter matches commands against its patterns.
//
// Interpreter holds no mutable state and is safe for concurrent use if the
// player is.
type Interpreter struct {
	patterns     []Pattern
	unmuteVolume float64
	step         float64
}

// Option is a functional option for [New].
type Option func(*Interpreter)

// WithUnmuteVolume sets the level restored by "unmute".
func WithUnmuteVolume(v float64) Option {
	return func(i *Interpreter) { i.unmuteVolume = audio.ClampVolume(v) }
}

// WithVolumeStep sets the change applied by "volume up" and "volume down".
func WithVolumeStep(step float64) Option {
	return func(i *Interpreter) {
		if step > 0 {
			i.step = step
		}
	}
}

// New returns an Interpreter with the built-in patterns.
func New(opts ...Option) *Interpreter {
	i := &Interpreter{unmuteVolume: UnmuteVolume, step: VolumeStep}
	for _, o := range opts {
		o(i)
	}
	i.patterns = i.defaultPatterns()
	return i
}

// UnrecognisedMessage is the outcome for a command no pattern matched.
func UnrecognisedMessage(cmd string) string {
	return fmt.Sprintf("Command '%s' not recognized. Available: stop, pause, resume, volume up/down/to X%%, mute, unmute", cmd)
}

// Execute applies text to p. A command nothing matches yields a Result with
// an empty Pattern and the "not recognized" message. Errors come only from
// the player.
func (i *Interpreter) Execute(_ context.Context, text string, p audio.Player) (Result, error) {
	cmd := strings.ToLower(strings.TrimSpace(text))
	for _, pat := range i.patterns {
		matches := pat.Regex.FindStringSubmatch(cmd)
		if matches == nil {
			continue
		}

		msg, err := pat.Action(p, cmd, matches)
		if err != nil {
			slog.Warn("voicecmd: command failed",
				"pattern", pat.Name,
				"text", cmd,
				"error", err,
			)
			return Result{Pattern: pat.Name}, fmt.Errorf("voicecmd: %s: %w", pat.Name, err)
		}

		slog.Info("voicecmd: command executed",
			"pattern", pat.Name,
			"text", cmd,
			"result", msg,
		)
		return Result{Pattern: pat.Name, Message: msg}, nil
	}

	slog.Debug("voicecmd: no pattern matched", "text", cmd)
	return Result{Message: UnrecognisedMessage(cmd)}, nil
}

var (
	upRe     = regexp.MustCompile(`\b(up|increase|higher|louder)\b`)
	downRe   = regexp.MustCompile(`\b(down|decrease|lower|quieter)\b`)
	numberRe = regexp.MustCompile(`\d+`)
)

// defaultPatterns returns the built-in playback command patterns in priority
// order.
func (i *Interpreter) defaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:  "stop",
			Regex: regexp.MustCompile(`\b(stop|halt|end)\b`),
			Action: func(p audio.Player, _ string, _ []string) (string, error) {
				return "Audio stopped", ignoreIdle(p.Stop())
			},
		},
		{
			Name:  "pause",
			Regex: regexp.MustCompile(`\b(pause|hold)\b`),
			Action: func(p audio.Player, _ string, _ []string) (string, error) {
				return "Audio paused", ignoreIdle(p.Pause())
			},
		},
		{
			Name:  "resume",
			Regex: regexp.MustCompile(`\b(resume|continue|unpause|play)\b`),
			Action: func(p audio.Player, _ string, _ []string) (string, error) {
				return "Audio resumed", ignoreIdle(p.Resume())
			},
		},
		{
			Name:  "unmute",
			Regex: regexp.MustCompile(`\bunmute\b`),
			Action: func(p audio.Player, _ string, _ []string) (string, error) {
				return "Audio unmuted", p.SetVolume(i.unmuteVolume)
			},
		},
		{
			Name:  "mute",
			Regex: regexp.MustCompile(`\bmute\b`),
			Action: func(p audio.Player, _ string, _ []string) (string, error) {
				return "Audio muted", p.SetVolume(audio.MinVolume)
			},
		},
		{
			Name:   "volume",
			Regex:  regexp.MustCompile(`\bvolume\b`),
			Action: i.volume,
		},
	}
}

// volume handles relative and absolute volume changes.
func (i *Interpreter) volume(p audio.Player, cmd string, _ []string) (string, error) {
	switch {
	case upRe.MatchString(cmd):
		v := audio.ClampVolume(p.Volume() + i.step)
		if err := p.SetVolume(v); err != nil {
			return "", err
		}
		return fmt.Sprintf("Volume increased to %d%%", audio.Percent(v)), nil
	case downRe.MatchString(cmd):
		v := audio.ClampVolume(p.Volume() - i.step)
		if err := p.SetVolume(v); err != nil {
			return "", err
		}
		return fmt.Sprintf("Volume decreased to %d%%", audio.Percent(v)), nil
	}
	if n := numberRe.FindString(cmd); n != "" {
		pct, err := strconv.Atoi(n)
		if err == nil {
			v := audio.ClampVolume(float64(pct) / 100)
			if err := p.SetVolume(v); err != nil {
				return "", err
			}
			return fmt.Sprintf("Volume set to %d%%", audio.Percent(v)), nil
		}
	}
	return "Volume command unclear. Try 'volume up', 'volume down', or 'volume to 50%'", nil
}

// ignoreIdle treats transport controls on an idle player as successful.
func ignoreIdle(err error) error {
	if errors.Is(err, audio.ErrNotPlaying) {
		return nil
	}
	return err
}
