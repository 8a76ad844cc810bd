package songbird

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/DrTrintignant/Songbird/internal/binding"
	"github.com/DrTrintignant/Songbird/internal/observe"
	"github.com/DrTrintignant/Songbird/internal/playback"
)

// BindSound binds the sound played most recently to req.Phrase. A phrase
// already bound gains the sound as an additional alternative.
func (s *Service) BindSound(ctx context.Context, req BindSoundRequest) string {
	return s.run(ctx, OpBindSound, func(ctx context.Context) (string, error) {
		raw := strings.TrimSpace(req.Phrase)
		if err := s.validate.Struct(req); err != nil {
			return "", fail(KindValidation, OpBindSound, "Please specify a phrase to bind the sound to.", err)
		}

		cur, ok := s.session.Current()
		if !ok {
			return "", fail(KindNotFound, OpBindSound,
				"No sound has been played yet to bind. Play a sound first, then bind it.", nil)
		}
		if cur.SoundName == "" || cur.Path == "" {
			return "", fail(KindValidation, OpBindSound,
				"Current sound information incomplete. Try playing a sound again.", nil)
		}
		if _, err := os.Stat(cur.Path); err != nil {
			return "", fail(KindFileMissing, OpBindSound, "Sound file not found. Try playing the sound again.", err)
		}

		res, err := s.bindings.Bind(ctx, raw, entryFor(cur))
		switch {
		case errors.Is(err, binding.ErrEmptyPhrase):
			return "", fail(KindValidation, OpBindSound, "Please specify a phrase to bind the sound to.", err)
		case errors.Is(err, binding.ErrAlreadyBound):
			return statusf("'%s' is already bound to phrase '%s'", cur.SoundName, raw), nil
		case err != nil:
			return "", fail(KindPersistence, OpBindSound, "Error saving bound sound", err)
		}

		observe.Logger(ctx).Info("songbird: bound sound", "phrase", raw, "sound", cur.SoundName, "count", res.Count)
		if res.Created {
			return statusf("Bound '%s' to phrase '%s'", cur.SoundName, raw), nil
		}
		return statusf("Added '%s' to phrase '%s' (now %d sounds total)", cur.SoundName, raw, res.Count), nil
	})
}

// entryFor converts the current playback record into a binding entry.
func entryFor(p playback.Playing) binding.Entry {
	username := p.Username
	if username == "" {
		username = "Unknown"
	}
	return binding.Entry{
		SoundName:       p.SoundName,
		Path:            p.Path,
		DescriptionUsed: p.DescriptionUsed,
		Username:        username,
	}
}

// BindMultiple looks up each of req.SoundNames in the cache and binds every
// match to req.Phrase. Names that match nothing are reported but do not fail
// the operation unless none match.
func (s *Service) BindMultiple(ctx context.Context, req BindMultipleRequest) string {
	return s.run(ctx, OpBindMultiple, func(ctx context.Context) (string, error) {
		raw := strings.TrimSpace(req.Phrase)
		req.SoundNames = nonBlank(req.SoundNames)
		if err := s.validate.Struct(req); err != nil {
			if invalidField(err) == "SoundNames" {
				return "", fail(KindValidation, OpBindMultiple, "Please specify at least one sound name to bind.", err)
			}
			return "", fail(KindValidation, OpBindMultiple, "Please specify a phrase to bind the sounds to.", err)
		}

		cached, err := s.cache.List()
		if err != nil {
			return "", fail(KindPersistence, OpBindMultiple, "Error listing cached sounds - "+err.Error(), err)
		}
		if len(cached) == 0 {
			return "", fail(KindNotFound, OpBindMultiple, "No cached sounds available to bind.", nil)
		}

		found, notFound, err := s.matcher.ResolveNames(req.SoundNames)
		if err != nil {
			return "", fail(KindPersistence, OpBindMultiple, "Error listing cached sounds - "+err.Error(), err)
		}
		if len(found) == 0 {
			return "", fail(KindNotFound, OpBindMultiple,
				"None of the specified sounds were found in cache. Not found: "+strings.Join(notFound, ", "), nil)
		}

		entries := make([]binding.Entry, 0, len(found))
		for _, e := range found {
			entries = append(entries, binding.Entry{
				SoundName: e.ReadableName,
				Path:      e.Path,
				Username:  LocalUsername,
			})
		}
		res, err := s.bindings.BindMany(ctx, raw, entries)
		switch {
		case errors.Is(err, binding.ErrEmptyPhrase):
			return "", fail(KindValidation, OpBindMultiple, "Please specify a phrase to bind the sounds to.", err)
		case err != nil:
			return "", fail(KindPersistence, OpBindMultiple, "Error saving bound sounds", err)
		}

		observe.Logger(ctx).Info("songbird: bound sounds",
			"phrase", raw, "added", res.Added, "skipped", res.Skipped, "not_found", len(notFound))
		parts := []string{fmt.Sprintf("Bound %d sound(s) to phrase '%s' (total: %d)", res.Added, raw, res.Total)}
		if res.Skipped > 0 {
			parts = append(parts, fmt.Sprintf("Skipped %d duplicate(s)", res.Skipped))
		}
		if len(notFound) > 0 {
			parts = append(parts, "Not found: "+strings.Join(notFound, ", "))
		}
		return Prefix + strings.Join(parts, ". "), nil
	})
}

func nonBlank(names []string) []string {
	out := names[:0:0]
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// ReplayBound plays one of the sounds bound to req.Phrase, chosen at random.
func (s *Service) ReplayBound(ctx context.Context, req ReplayBoundRequest) string {
	return s.run(ctx, OpReplayBound, func(ctx context.Context) (string, error) {
		raw := strings.TrimSpace(req.Phrase)
		if err := s.validate.Struct(req); err != nil {
			return "", fail(KindValidation, OpReplayBound, "Please specify the bound phrase.", err)
		}

		e, err := s.bindings.Resolve(ctx, raw)
		switch {
		case errors.Is(err, binding.ErrEmptyPhrase):
			return "", fail(KindValidation, OpReplayBound, "Please specify the bound phrase.", err)
		case errors.Is(err, binding.ErrNotBound):
			return "", fail(KindNotFound, OpReplayBound,
				fmt.Sprintf("No sound bound to phrase '%s'. Use 'list bound sounds' to see available phrases.", raw), err)
		case errors.Is(err, binding.ErrMissingFile):
			return "", fail(KindFileMissing, OpReplayBound, "Bound sound file not found: "+e.SoundName, err)
		case err != nil:
			return "", fail(KindPersistence, OpReplayBound, "Replay bound error - "+err.Error(), err)
		}

		if err := s.player.Play(ctx, e.Path); err != nil {
			return "", fail(KindPlayback, OpReplayBound, "Error playing bound sound: "+err.Error(), err)
		}
		// A bound replay is not description-led, so the last description is
		// left alone.
		s.session.RecordPlay(playback.Playing{
			SoundName:       e.SoundName,
			Path:            e.Path,
			DescriptionUsed: e.DescriptionUsed,
			Username:        e.Username,
		}, "")
		s.metrics.RecordPlay(ctx, "binding")
		return statusf("Playing bound sound '%s'", e.SoundName), nil
	})
}

// ListBound renders every bound phrase with its sounds, in store order.
func (s *Service) ListBound(ctx context.Context) string {
	return s.run(ctx, OpListBound, func(ctx context.Context) (string, error) {
		all, err := s.bindings.List(ctx)
		if err != nil {
			return "", fail(KindPersistence, OpListBound, "Error listing bound sounds - "+err.Error(), err)
		}
		if len(all) == 0 {
			return statusf("No sounds bound to phrases yet. Use 'bind this to [phrase]' to create bindings."), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%sFound %d bound phrases:", Prefix, len(all))
		for _, bd := range all {
			b.WriteString("\n")
			if len(bd.Entries) == 1 {
				fmt.Fprintf(&b, "- '%s' -> %s", bd.Phrase, bd.Entries[0].SoundName)
				continue
			}
			fmt.Fprintf(&b, "- '%s' -> %d sounds: %s", bd.Phrase, len(bd.Entries), strings.Join(soundNames(bd.Entries), ", "))
		}
		return b.String(), nil
	})
}

func soundNames(entries []binding.Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.SoundName
	}
	return names
}

// UnbindSound removes req.Phrase together with every sound bound to it.
func (s *Service) UnbindSound(ctx context.Context, req UnbindRequest) string {
	return s.run(ctx, OpUnbindSound, func(ctx context.Context) (string, error) {
		raw := strings.TrimSpace(req.Phrase)
		if err := s.validate.Struct(req); err != nil {
			return "", fail(KindValidation, OpUnbindSound, "Please specify the phrase to unbind.", err)
		}

		removed, err := s.bindings.Unbind(ctx, raw)
		switch {
		case errors.Is(err, binding.ErrEmptyPhrase):
			return "", fail(KindValidation, OpUnbindSound, "Please specify the phrase to unbind.", err)
		case errors.Is(err, binding.ErrNotBound):
			return "", fail(KindNotFound, OpUnbindSound, fmt.Sprintf("No sound bound to phrase '%s'.", raw), err)
		case err != nil:
			return "", fail(KindPersistence, OpUnbindSound, "Error saving updated bindings", err)
		}
		return statusf("Unbound phrase '%s' (%d sound(s): %s)",
			raw, len(removed), strings.Join(soundNames(removed), ", ")), nil
	})
}

// UnbindAll removes every binding.
func (s *Service) UnbindAll(ctx context.Context) string {
	return s.run(ctx, OpUnbindAll, func(ctx context.Context) (string, error) {
		n, err := s.bindings.UnbindAll(ctx)
		if err != nil {
			return "", fail(KindPersistence, OpUnbindAll, "Error clearing bindings", err)
		}
		if n == 0 {
			return statusf("No sound bindings to remove."), nil
		}
		return statusf("Removed all %d sound bindings", n), nil
	})
}

// ListCached renders every playable file in the cache directory.
func (s *Service) ListCached(ctx context.Context) string {
	return s.run(ctx, OpListCached, func(ctx context.Context) (string, error) {
		entries, err := s.cache.List()
		if err != nil {
			return "", fail(KindPersistence, OpListCached, "Error listing cached sounds - "+err.Error(), err)
		}
		if len(entries) == 0 {
			return statusf("No sounds cached yet. Sounds folder: %s", s.cache.Dir()), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%sFound %d cached sounds:", Prefix, len(entries))
		for _, e := range entries {
			fmt.Fprintf(&b, "\n- '%s' (%s)", e.ReadableName, e.Filename)
		}
		return b.String(), nil
	})
}
