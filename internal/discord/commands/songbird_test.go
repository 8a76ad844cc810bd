package commands

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/DrTrintignant/Songbird/internal/binding"
	"github.com/DrTrintignant/Songbird/internal/catalog"
	"github.com/DrTrintignant/Songbird/internal/discord"
	discordmock "github.com/DrTrintignant/Songbird/internal/discord/mock"
	"github.com/DrTrintignant/Songbird/internal/songbird"
	"github.com/DrTrintignant/Songbird/internal/songbird/mock"
)

type staticPhrases struct {
	bindings []binding.Binding
	err      error
}

func (p staticPhrases) List(context.Context) ([]binding.Binding, error) { return p.bindings, p.err }

type staticSounds []catalog.Entry

func (s staticSounds) List() ([]catalog.Entry, error) { return s, nil }

// interaction builds a /songbird <sub> interaction with string options.
func interaction(typ discordgo.InteractionType, sub string, roles []string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:   typ,
			Member: &discordgo.Member{Roles: roles},
			Data: discordgo.ApplicationCommandInteractionData{
				Name: "songbird",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: sub, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts},
				},
			},
		},
	}
}

func str(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func focused(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	o := str(name, value)
	o.Focused = true
	return o
}

func newRouter(roleID string, ops songbird.Operations, phrases PhraseLister, sounds SoundLister) *discord.CommandRouter {
	r := discord.NewCommandRouter()
	NewSongbirdCommands(discord.NewPermissionChecker(roleID), ops, phrases, sounds).Register(r)
	return r
}

func choiceValues(resp *discordgo.InteractionResponse) []string {
	var out []string
	for _, c := range resp.Data.Choices {
		out = append(out, c.Value.(string))
	}
	return out
}

// ─── Definition ──────────────────────────────────────────────────────────────

func TestSongbirdDefinition(t *testing.T) {
	t.Parallel()

	def := NewSongbirdCommands(discord.NewPermissionChecker(""), &mock.Operations{}, nil, nil).Definition()
	if def.Name != "songbird" {
		t.Errorf("Name = %q, want songbird", def.Name)
	}

	wantSubs := []string{"play", "control", "bind", "bind-multiple", "replay", "list-bound", "unbind", "unbind-all", "list-cached", "test"}
	if len(def.Options) != len(wantSubs) {
		t.Fatalf("Options count = %d, want %d", len(def.Options), len(wantSubs))
	}
	for i, name := range wantSubs {
		if def.Options[i].Name != name {
			t.Errorf("subcommand[%d] = %q, want %q", i, def.Options[i].Name, name)
		}
		if def.Options[i].Type != discordgo.ApplicationCommandOptionSubCommand {
			t.Errorf("subcommand[%d] type = %d, want SubCommand", i, def.Options[i].Type)
		}
	}

	replay := def.Options[4].Options
	if len(replay) != 1 || replay[0].Name != "phrase" || !replay[0].Autocomplete {
		t.Errorf("replay options = %+v", replay)
	}
	if len(def.Options[0].Options[1].Choices) != 3 {
		t.Errorf("play mode choices = %d, want 3", len(def.Options[0].Options[1].Choices))
	}
}

func TestSongbirdRegister(t *testing.T) {
	t.Parallel()

	r := newRouter("", &mock.Operations{}, nil, nil)
	cmds := r.ApplicationCommands()
	if len(cmds) != 1 || cmds[0].Name != "songbird" {
		t.Fatalf("application commands = %+v", cmds)
	}
}

// ─── Dispatch ────────────────────────────────────────────────────────────────

func TestSongbird_ControlledCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sub     string
		opts    []*discordgo.ApplicationCommandInteractionDataOption
		method  string
		wantReq any
	}{
		{
			sub:     "play",
			opts:    []*discordgo.ApplicationCommandInteractionDataOption{str("description", "thunder"), str("mode", "new")},
			method:  "PlaySound",
			wantReq: songbird.PlaySoundRequest{Description: "thunder", ReplayMode: "new"},
		},
		{
			sub:     "control",
			opts:    []*discordgo.ApplicationCommandInteractionDataOption{str("command", "pause")},
			method:  "Control",
			wantReq: songbird.ControlRequest{VoiceCommand: "pause"},
		},
		{
			sub:     "bind",
			opts:    []*discordgo.ApplicationCommandInteractionDataOption{str("phrase", "victory")},
			method:  "BindSound",
			wantReq: songbird.BindSoundRequest{Phrase: "victory"},
		},
		{
			sub:     "replay",
			opts:    []*discordgo.ApplicationCommandInteractionDataOption{str("phrase", "victory")},
			method:  "ReplayBound",
			wantReq: songbird.ReplayBoundRequest{Phrase: "victory"},
		},
		{
			sub:     "unbind",
			opts:    []*discordgo.ApplicationCommandInteractionDataOption{str("phrase", "victory")},
			method:  "UnbindSound",
			wantReq: songbird.UnbindRequest{Phrase: "victory"},
		},
		{sub: "unbind-all", method: "UnbindAll"},
	}

	for _, tt := range tests {
		t.Run(tt.sub, func(t *testing.T) {
			t.Parallel()
			ops := &mock.Operations{Status: map[string]string{tt.method: "SONGBIRD: ok"}}
			rec := &discordmock.InteractionResponder{}
			newRouter("", ops, nil, nil).Handle(rec, interaction(discordgo.InteractionApplicationCommand, tt.sub, nil, tt.opts...))

			if n := ops.CallCount(tt.method); n != 1 {
				t.Fatalf("%s called %d times, want 1", tt.method, n)
			}
			if tt.wantReq != nil && ops.Last().Req != tt.wantReq {
				t.Errorf("req = %#v, want %#v", ops.Last().Req, tt.wantReq)
			}
			if resp := rec.LastResponse(); resp == nil || resp.Type != discordgo.InteractionResponseDeferredChannelMessageWithSource {
				t.Errorf("expected deferred response, got %+v", resp)
			}
			if fu := rec.LastFollowUp(); fu == nil || fu.Content != "SONGBIRD: ok" {
				t.Errorf("follow-up = %+v", fu)
			}
		})
	}
}

func TestSongbird_BindMultipleSplitsNames(t *testing.T) {
	t.Parallel()

	ops := &mock.Operations{}
	rec := &discordmock.InteractionResponder{}
	newRouter("", ops, nil, nil).Handle(rec, interaction(discordgo.InteractionApplicationCommand, "bind-multiple", nil,
		str("sounds", "Login 1, Login 2,, "), str("phrase", "login")))

	req, ok := ops.Last().Req.(songbird.BindMultipleRequest)
	if !ok {
		t.Fatalf("req type = %T", ops.Last().Req)
	}
	if !slices.Equal(req.SoundNames, []string{"Login 1", "Login 2"}) || req.Phrase != "login" {
		t.Errorf("req = %+v", req)
	}
}

func TestSongbird_OpenCommands(t *testing.T) {
	t.Parallel()

	for sub, method := range map[string]string{"list-bound": "ListBound", "list-cached": "ListCached", "test": "Test"} {
		t.Run(sub, func(t *testing.T) {
			t.Parallel()
			ops := &mock.Operations{}
			rec := &discordmock.InteractionResponder{}
			// Open commands ignore the controller role.
			newRouter("role-1", ops, nil, nil).Handle(rec, interaction(discordgo.InteractionApplicationCommand, sub, nil))

			if ops.CallCount(method) != 1 {
				t.Fatalf("%s not called", method)
			}
			resp := rec.LastResponse()
			if resp == nil || resp.Data.Content != "SONGBIRD: "+method {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestSongbird_RequiresControllerRole(t *testing.T) {
	t.Parallel()

	ops := &mock.Operations{}
	rec := &discordmock.InteractionResponder{}
	r := newRouter("role-1", ops, nil, nil)

	r.Handle(rec, interaction(discordgo.InteractionApplicationCommand, "unbind-all", []string{"role-2"}))
	if ops.CallCount("UnbindAll") != 0 {
		t.Fatal("UnbindAll ran without the controller role")
	}
	if resp := rec.LastResponse(); resp == nil || !strings.Contains(resp.Data.Content, "controller role") {
		t.Errorf("response = %+v", resp)
	}

	r.Handle(rec, interaction(discordgo.InteractionApplicationCommand, "unbind-all", []string{"role-1"}))
	if ops.CallCount("UnbindAll") != 1 {
		t.Error("UnbindAll did not run with the controller role")
	}
}

// ─── Autocomplete ────────────────────────────────────────────────────────────

func TestSongbird_PhraseAutocomplete(t *testing.T) {
	t.Parallel()

	phrases := staticPhrases{bindings: []binding.Binding{
		{Phrase: "victory", Entries: make([]binding.Entry, 2)},
		{Phrase: "door", Entries: make([]binding.Entry, 1)},
		{Phrase: "victory lap", Entries: make([]binding.Entry, 1)},
	}}
	rec := &discordmock.InteractionResponder{}
	newRouter("", &mock.Operations{}, phrases, nil).Handle(rec,
		interaction(discordgo.InteractionApplicationCommandAutocomplete, "replay", nil, focused("phrase", "VIC")))

	resp := rec.LastResponse()
	if resp == nil || resp.Type != discordgo.InteractionApplicationCommandAutocompleteResult {
		t.Fatalf("response = %+v", resp)
	}
	if got := choiceValues(resp); !slices.Equal(got, []string{"victory", "victory lap"}) {
		t.Errorf("choices = %v", got)
	}
	if resp.Data.Choices[0].Name != "victory (2)" {
		t.Errorf("label = %q", resp.Data.Choices[0].Name)
	}
}

func TestSongbird_PhraseAutocompleteError(t *testing.T) {
	t.Parallel()

	rec := &discordmock.InteractionResponder{}
	newRouter("", &mock.Operations{}, staticPhrases{err: errors.New("decode")}, nil).Handle(rec,
		interaction(discordgo.InteractionApplicationCommandAutocomplete, "unbind", nil, focused("phrase", "")))

	resp := rec.LastResponse()
	if resp == nil || len(resp.Data.Choices) != 0 {
		t.Errorf("expected empty choices, got %+v", resp)
	}
}

func TestSongbird_SoundAutocomplete(t *testing.T) {
	t.Parallel()

	sounds := staticSounds{
		{ReadableName: "Login 1"},
		{ReadableName: "Login 2"},
		{ReadableName: "Login 2"},
		{ReadableName: "Door Chime"},
	}
	rec := &discordmock.InteractionResponder{}
	r := newRouter("", &mock.Operations{}, nil, sounds)

	r.Handle(rec, interaction(discordgo.InteractionApplicationCommandAutocomplete, "bind-multiple", nil, focused("sounds", "Door Chime, log")))
	if got := choiceValues(rec.LastResponse()); !slices.Equal(got, []string{"Door Chime, Login 1", "Door Chime, Login 2"}) {
		t.Errorf("choices = %v", got)
	}

	r.Handle(rec, interaction(discordgo.InteractionApplicationCommandAutocomplete, "bind-multiple", nil, focused("sounds", "")))
	if got := choiceValues(rec.LastResponse()); len(got) != 3 {
		t.Errorf("choices = %v, want 3 distinct names", got)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func TestSplitNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{" a , b ,, c ", []string{"a", "b", "c"}},
		{",,", nil},
	}
	for _, tt := range tests {
		if got := SplitNames(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("SplitNames(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStringOption(t *testing.T) {
	t.Parallel()

	i := interaction(discordgo.InteractionApplicationCommand, "play", nil, str("description", "rain"))
	if got := stringOption(i, "description"); got != "rain" {
		t.Errorf("stringOption = %q, want rain", got)
	}
	if got := stringOption(i, "missing"); got != "" {
		t.Errorf("stringOption for missing = %q, want empty", got)
	}
}

func TestDiscordChoice(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 150)
	got := []rune(discordChoice(long))
	if len(got) != 100 || got[0] != '…' {
		t.Errorf("discordChoice len = %d, first = %q", len(got), got[0])
	}
	if discordChoice("short") != "short" {
		t.Error("short label changed")
	}
}
