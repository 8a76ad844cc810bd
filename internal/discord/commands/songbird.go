// Package commands implements the Songbird slash commands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/DrTrintignant/Songbird/internal/binding"
	"github.com/DrTrintignant/Songbird/internal/catalog"
	"github.com/DrTrintignant/Songbird/internal/discord"
	"github.com/DrTrintignant/Songbird/internal/songbird"
)

// commandTimeout bounds one slash command, including any Freesound search
// and download.
const commandTimeout = 90 * time.Second

// PhraseLister lists the bound phrases offered by autocomplete.
type PhraseLister interface {
	List(ctx context.Context) ([]binding.Binding, error)
}

// SoundLister lists the cached sounds offered by autocomplete.
type SoundLister interface {
	List() ([]catalog.Entry, error)
}

// SongbirdCommands handles the /songbird slash command group.
type SongbirdCommands struct {
	perms   *discord.PermissionChecker
	ops     songbird.Operations
	phrases PhraseLister
	sounds  SoundLister
}

// NewSongbirdCommands creates a SongbirdCommands handler. phrases and
// sounds feed autocomplete and may be nil.
func NewSongbirdCommands(perms *discord.PermissionChecker, ops songbird.Operations, phrases PhraseLister, sounds SoundLister) *SongbirdCommands {
	return &SongbirdCommands{
		perms:   perms,
		ops:     ops,
		phrases: phrases,
		sounds:  sounds,
	}
}

// Register registers all /songbird subcommands with the router.
func (sc *SongbirdCommands) Register(router *discord.CommandRouter) {
	def := sc.Definition()
	router.RegisterCommand("songbird", def, func(s discord.Responder, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand, e.g. `/songbird play`, `/songbird control` or `/songbird list-cached`.")
	})

	router.RegisterHandler("songbird/play", sc.controlled(func(ctx context.Context, i *discordgo.InteractionCreate) string {
		return sc.ops.PlaySound(ctx, songbird.PlaySoundRequest{
			Description: stringOption(i, "description"),
			ReplayMode:  stringOption(i, "mode"),
		})
	}))
	router.RegisterHandler("songbird/control", sc.controlled(func(ctx context.Context, i *discordgo.InteractionCreate) string {
		return sc.ops.Control(ctx, songbird.ControlRequest{VoiceCommand: stringOption(i, "command")})
	}))
	router.RegisterHandler("songbird/bind", sc.controlled(func(ctx context.Context, i *discordgo.InteractionCreate) string {
		return sc.ops.BindSound(ctx, songbird.BindSoundRequest{Phrase: stringOption(i, "phrase")})
	}))
	router.RegisterHandler("songbird/bind-multiple", sc.controlled(func(ctx context.Context, i *discordgo.InteractionCreate) string {
		return sc.ops.BindMultiple(ctx, songbird.BindMultipleRequest{
			SoundNames: SplitNames(stringOption(i, "sounds")),
			Phrase:     stringOption(i, "phrase"),
		})
	}))
	router.RegisterHandler("songbird/replay", sc.controlled(func(ctx context.Context, i *discordgo.InteractionCreate) string {
		return sc.ops.ReplayBound(ctx, songbird.ReplayBoundRequest{Phrase: stringOption(i, "phrase")})
	}))
	router.RegisterHandler("songbird/unbind", sc.controlled(func(ctx context.Context, i *discordgo.InteractionCreate) string {
		return sc.ops.UnbindSound(ctx, songbird.UnbindRequest{Phrase: stringOption(i, "phrase")})
	}))
	router.RegisterHandler("songbird/unbind-all", sc.controlled(func(ctx context.Context, _ *discordgo.InteractionCreate) string {
		return sc.ops.UnbindAll(ctx)
	}))
	router.RegisterHandler("songbird/list-bound", sc.open(sc.ops.ListBound))
	router.RegisterHandler("songbird/list-cached", sc.open(sc.ops.ListCached))
	router.RegisterHandler("songbird/test", sc.open(sc.ops.Test))

	router.RegisterAutocomplete("songbird/replay", sc.handlePhraseAutocomplete)
	router.RegisterAutocomplete("songbird/unbind", sc.handlePhraseAutocomplete)
	router.RegisterAutocomplete("songbird/bind-multiple", sc.handleSoundAutocomplete)
}

// Definition returns the /songbird ApplicationCommand for Discord registration.
func (sc *SongbirdCommands) Definition() *discordgo.ApplicationCommand {
	phrase := func(desc string, autocomplete bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Name:         "phrase",
			Description:  desc,
			Type:         discordgo.ApplicationCommandOptionString,
			Required:     true,
			Autocomplete: autocomplete,
		}
	}

	return &discordgo.ApplicationCommand{
		Name:        "songbird",
		Description: "Play sounds and manage phrase bindings",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "play",
				Description: "Play a sound matching a description",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "description",
						Description: "What the sound should be, e.g. 'thunder rolling'",
						Type:        discordgo.ApplicationCommandOptionString,
						Required:    true,
					},
					{
						Name:        "mode",
						Description: "Prefer the cache (again) or a fresh sound (new)",
						Type:        discordgo.ApplicationCommandOptionString,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "auto", Value: "auto"},
							{Name: "again", Value: "again"},
							{Name: "new", Value: "new"},
						},
					},
				},
			},
			{
				Name:        "control",
				Description: "Stop, pause, resume, mute or change the volume",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "command",
						Description: "e.g. 'pause' or 'volume to 40%'",
						Type:        discordgo.ApplicationCommandOptionString,
						Required:    true,
					},
				},
			},
			{
				Name:        "bind",
				Description: "Bind the sound played last to a phrase",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     []*discordgo.ApplicationCommandOption{phrase("Phrase that replays the sound", false)},
			},
			{
				Name:        "bind-multiple",
				Description: "Bind cached sounds to a phrase",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:         "sounds",
						Description:  "Comma-separated sound names",
						Type:         discordgo.ApplicationCommandOptionString,
						Required:     true,
						Autocomplete: true,
					},
					phrase("Phrase that replays one of the sounds", false),
				},
			},
			{
				Name:        "replay",
				Description: "Play a sound bound to a phrase",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     []*discordgo.ApplicationCommandOption{phrase("Bound phrase", true)},
			},
			{
				Name:        "list-bound",
				Description: "List bound phrases",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "unbind",
				Description: "Remove a phrase binding",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     []*discordgo.ApplicationCommandOption{phrase("Bound phrase", true)},
			},
			{
				Name:        "unbind-all",
				Description: "Remove every phrase binding",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "list-cached",
				Description: "List cached sounds",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "test",
				Description: "Show version and API key status",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
		},
	}
}

// controlled wraps an operation that changes playback or bindings. It checks
// the controller role, defers the reply and sends the status as a follow-up.
func (sc *SongbirdCommands) controlled(op func(ctx context.Context, i *discordgo.InteractionCreate) string) discord.HandlerFunc {
	return func(s discord.Responder, i *discordgo.InteractionCreate) {
		if !sc.perms.IsController(i) {
			discord.RespondEphemeral(s, i, "You need the controller role to use this command.")
			return
		}
		discord.DeferReply(s, i)

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		status := op(ctx, i)
		slog.Debug("discord: command handled", "command", subcommandName(i), "status", status)
		discord.FollowUp(s, i, status)
	}
}

// open wraps a read-only operation available to everyone.
func (sc *SongbirdCommands) open(op func(ctx context.Context) string) discord.HandlerFunc {
	return func(s discord.Responder, i *discordgo.InteractionCreate) {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		discord.RespondEphemeral(s, i, op(ctx))
	}
}

// handlePhraseAutocomplete offers bound phrases for /songbird replay and
// /songbird unbind.
func (sc *SongbirdCommands) handlePhraseAutocomplete(s discord.Responder, i *discordgo.InteractionCreate) {
	if sc.phrases == nil {
		discord.RespondChoices(s, i, nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bindings, err := sc.phrases.List(ctx)
	if err != nil {
		slog.Warn("discord: phrase autocomplete failed", "err", err)
		discord.RespondChoices(s, i, nil)
		return
	}

	partial := strings.ToLower(focusedValue(i))
	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, b := range bindings {
		if partial == "" || strings.Contains(b.Phrase, partial) {
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  fmt.Sprintf("%s (%d)", b.Phrase, len(b.Entries)),
				Value: b.Phrase,
			})
		}
	}
	discord.RespondChoices(s, i, choices)
}

// handleSoundAutocomplete completes the last name in the comma-separated
// sounds option of /songbird bind-multiple.
func (sc *SongbirdCommands) handleSoundAutocomplete(s discord.Responder, i *discordgo.InteractionCreate) {
	if sc.sounds == nil {
		discord.RespondChoices(s, i, nil)
		return
	}
	entries, err := sc.sounds.List()
	if err != nil {
		slog.Warn("discord: sound autocomplete failed", "err", err)
		discord.RespondChoices(s, i, nil)
		return
	}

	typed := focusedValue(i)
	head, last := "", typed
	if idx := strings.LastIndex(typed, ","); idx >= 0 {
		head, last = typed[:idx+1]+" ", typed[idx+1:]
	}
	last = strings.ToLower(strings.TrimSpace(last))

	var choices []*discordgo.ApplicationCommandOptionChoice
	seen := make(map[string]bool)
	for _, e := range entries {
		name := e.ReadableName
		if seen[name] || (last != "" && !strings.HasPrefix(strings.ToLower(name), last)) {
			continue
		}
		seen[name] = true
		value := head + name
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: discordChoice(value), Value: value})
	}
	discord.RespondChoices(s, i, choices)
}

// discordChoice limits a choice label to the 100 characters Discord accepts.
func discordChoice(s string) string {
	r := []rune(s)
	if len(r) <= 100 {
		return s
	}
	return "…" + string(r[len(r)-99:])
}

// SplitNames splits a comma-separated list of sound names, dropping blanks.
func SplitNames(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// subcommandOptions extracts the options from the first subcommand in an
// interaction's application command data. Returns nil if no subcommand exists.
func subcommandOptions(i *discordgo.InteractionCreate) []*discordgo.ApplicationCommandInteractionDataOption {
	data := i.ApplicationCommandData()
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return data.Options[0].Options
	}
	return nil
}

// subcommandName returns the invoked subcommand, or "" for the bare command.
func subcommandName(i *discordgo.InteractionCreate) string {
	data := i.ApplicationCommandData()
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return data.Options[0].Name
	}
	return ""
}

// stringOption extracts a string option value from a subcommand interaction.
func stringOption(i *discordgo.InteractionCreate, name string) string {
	for _, opt := range subcommandOptions(i) {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

// focusedValue returns the partial value of the option being autocompleted.
func focusedValue(i *discordgo.InteractionCreate) string {
	for _, opt := range subcommandOptions(i) {
		if opt.Focused {
			return opt.StringValue()
		}
	}
	return ""
}
