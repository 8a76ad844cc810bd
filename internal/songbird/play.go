package songbird

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/DrTrintignant/Songbird/internal/credential"
	"github.com/DrTrintignant/Songbird/internal/matcher"
	"github.com/DrTrintignant/Songbird/internal/observe"
	"github.com/DrTrintignant/Songbird/internal/playback"
	"github.com/DrTrintignant/Songbird/internal/policy"
	"github.com/DrTrintignant/Songbird/internal/remote"
	"github.com/DrTrintignant/Songbird/internal/resilience"
	"github.com/DrTrintignant/Songbird/pkg/freesound"
)

// PlaySound plays a sound matching req.Description, from the local cache or
// freshly fetched from Freesound according to the fetch/cache policy. A
// local miss falls back to Freesound.
func (s *Service) PlaySound(ctx context.Context, req PlaySoundRequest) string {
	return s.run(ctx, OpPlaySound, func(ctx context.Context) (string, error) {
		req.Description = strings.TrimSpace(req.Description)
		req.ReplayMode = strings.ToLower(strings.TrimSpace(req.ReplayMode))
		if err := s.validate.Struct(req); err != nil {
			if invalidField(err) == "ReplayMode" {
				return "", fail(KindValidation, OpPlaySound,
					fmt.Sprintf("Unknown replay mode '%s'. Use again, new or auto.", req.ReplayMode), err)
			}
			return "", fail(KindValidation, OpPlaySound, "No sound description provided.", err)
		}
		mode, err := policy.ParseMode(req.ReplayMode)
		if err != nil {
			return "", fail(KindValidation, OpPlaySound, err.Error(), err)
		}

		log := observe.Logger(ctx)
		decision := s.policy.Explain(req.Description, mode)
		s.metrics.RecordPolicy(ctx, decision.Verdict.String(), decision.Cue)
		log.Info("songbird: play request",
			"description", req.Description,
			"mode", string(mode),
			"verdict", decision.Verdict.String(),
			"cue", decision.Cue,
			"context", req.Context,
		)

		if decision.Verdict == policy.Local {
			status, ok, err := s.playLocal(ctx, req.Description)
			if ok || err != nil {
				return status, err
			}
			log.Info("songbird: no cached sound, falling back to Freesound", "description", req.Description)
		}
		return s.playRemote(ctx, req.Description)
	})
}

// playLocal plays the best cached match. ok is false on a miss, in which case
// the caller falls back to the remote provider.
func (s *Service) playLocal(ctx context.Context, description string) (status string, ok bool, err error) {
	m, found, err := s.matcher.Find(description)
	if err != nil {
		observe.Logger(ctx).Warn("songbird: cache lookup failed", "err", err)
		s.metrics.RecordMatch(ctx, matcher.TierNone.String())
		return "", false, nil
	}
	s.metrics.RecordMatch(ctx, m.Tier.String())
	if !found {
		return "", false, nil
	}

	name := m.Entry.ReadableName
	if err := s.player.Play(ctx, m.Entry.Path); err != nil {
		return "", true, fail(KindPlayback, OpPlaySound, "Error playing local sound: "+err.Error(), err)
	}
	s.session.RecordPlay(playback.Playing{
		SoundName:       name,
		Path:            m.Entry.Path,
		DescriptionUsed: m.Query,
		Username:        LocalUsername,
	}, m.Query)
	s.metrics.RecordPlay(ctx, "cache")
	return statusf("Playing cached sound: '%s'", name), true, nil
}

// playRemote searches Freesound, picks a random result, caches its preview
// and plays it.
func (s *Service) playRemote(ctx context.Context, description string) (string, error) {
	sounds, err := s.remote.Collect(ctx, description)
	switch {
	case errors.Is(err, credential.ErrMissing):
		return "", fail(KindConfiguration, OpPlaySound,
			"Please create api_key.txt file in the Songbird plugin folder with your Freesound API key.", err)
	case errors.Is(err, freesound.ErrUnauthorized):
		return "", fail(KindAuth, OpPlaySound,
			"Invalid Freesound API key. Please check your api_key.txt file.", err)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "", fail(KindTransport, OpPlaySound,
			"Search failed - Freesound is temporarily unavailable"+s.suggestion(description), err)
	case err != nil:
		return "", fail(KindTransport, OpPlaySound, "Search failed - "+searchFailure(err)+s.suggestion(description), err)
	}

	pick, err := remote.SelectRandom(sounds, s.rng)
	if err != nil {
		return "", fail(KindNotFound, OpPlaySound,
			fmt.Sprintf("No sounds found for '%s'. Try a different description.", description)+s.suggestion(description), err)
	}
	observe.Logger(ctx).Info("songbird: selected remote sound",
		"name", pick.Name, "id", pick.ID, "username", pick.Username, "pool", len(sounds))

	found := fmt.Sprintf("Found '%s' by %s. ", pick.Name, pick.Username)
	data, ext, err := s.remote.Download(ctx, pick)
	if err != nil {
		var status *freesound.StatusError
		switch {
		case errors.Is(err, remote.ErrNoPreview):
			return "", fail(KindNotFound, OpPlaySound, found+"No preview available for this sound", err)
		case errors.As(err, &status):
			return "", fail(KindTransport, OpPlaySound,
				found+fmt.Sprintf("Failed to download sound (HTTP %d)", status.StatusCode), err)
		default:
			return "", fail(KindTransport, OpPlaySound, found+"Error downloading/playing sound: "+err.Error(), err)
		}
	}

	entry, err := s.cache.Save(pick.Name, strconv.FormatInt(pick.ID, 10), ext, bytes.NewReader(data))
	if err != nil {
		return "", fail(KindPersistence, OpPlaySound, found+"Error downloading/playing sound: "+err.Error(), err)
	}

	if err := s.player.Play(ctx, entry.Path); err != nil {
		return "", fail(KindPlayback, OpPlaySound,
			found+fmt.Sprintf("Downloaded '%s' to sounds folder but failed to play: %v", pick.Name, err), err)
	}
	sound := pick
	s.session.RecordPlay(playback.Playing{
		SoundName:       pick.Name,
		Path:            entry.Path,
		DescriptionUsed: description,
		Username:        pick.Username,
		Sound:           &sound,
	}, description)
	s.metrics.RecordPlay(ctx, "remote")
	return statusf("%sPlaying '%s'", found, pick.Name), nil
}

// searchFailure renders a provider error for users without the package
// prefixes.
func searchFailure(err error) string {
	var status *freesound.StatusError
	switch {
	case errors.As(err, &status):
		return fmt.Sprintf("HTTP %d", status.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	default:
		return err.Error()
	}
}

// suggestion names the closest cached sound, for appending to failure
// messages. It is empty when nothing is close.
func (s *Service) suggestion(description string) string {
	name, ok := s.matcher.Suggest(description)
	if !ok {
		return ""
	}
	return fmt.Sprintf(" Closest cached sound: '%s'.", name)
}

// Control applies a free-text playback command such as "pause" or
// "volume to 40%".
func (s *Service) Control(ctx context.Context, req ControlRequest) string {
	return s.run(ctx, OpControl, func(ctx context.Context) (string, error) {
		res, err := s.commands.Execute(ctx, req.VoiceCommand, s.player)
		if err != nil {
			cause := err
			if u := errors.Unwrap(err); u != nil {
				cause = u
			}
			return "", fail(KindPlayback, OpControl, "Control error - "+cause.Error(), err)
		}
		return Prefix + res.Message, nil
	})
}
