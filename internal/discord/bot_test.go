package discord

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

// recorder is a minimal [Responder] for tests in this package.
type recorder struct {
	responses []*discordgo.InteractionResponse
	followUps []*discordgo.WebhookParams
}

func (r *recorder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	r.responses = append(r.responses, resp)
	return nil
}

func (r *recorder) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, p *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.followUps = append(r.followUps, p)
	return &discordgo.Message{}, nil
}

func commandInteraction(typ discordgo.InteractionType, name, sub string) *discordgo.InteractionCreate {
	data := discordgo.ApplicationCommandInteractionData{Name: name}
	if sub != "" {
		data.Options = []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: sub, Type: discordgo.ApplicationCommandOptionSubCommand},
		}
	}
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{Type: typ, Data: data}}
}

// ─── Permissions ─────────────────────────────────────────────────────────────

func TestPermissionChecker_IsController(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		roleID string
		inter  *discordgo.InteractionCreate
		want   bool
	}{
		{
			name:   "user with controller role",
			roleID: "role-123",
			inter: &discordgo.InteractionCreate{
				Interaction: &discordgo.Interaction{
					Member: &discordgo.Member{
						Roles: []string{"role-456", "role-123", "role-789"},
					},
				},
			},
			want: true,
		},
		{
			name:   "user without controller role",
			roleID: "role-123",
			inter: &discordgo.InteractionCreate{
				Interaction: &discordgo.Interaction{
					Member: &discordgo.Member{
						Roles: []string{"role-456", "role-789"},
					},
				},
			},
			want: false,
		},
		{
			name:   "empty role allows all",
			roleID: "",
			inter: &discordgo.InteractionCreate{
				Interaction: &discordgo.Interaction{
					Member: &discordgo.Member{Roles: []string{"role-456"}},
				},
			},
			want: true,
		},
		{
			name:   "nil Member returns false",
			roleID: "role-123",
			inter: &discordgo.InteractionCreate{
				Interaction: &discordgo.Interaction{Member: nil},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pc := NewPermissionChecker(tt.roleID)
			if got := pc.IsController(tt.inter); got != tt.want {
				t.Errorf("IsController() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ─── Router ──────────────────────────────────────────────────────────────────

func TestCommandRouter_ApplicationCommands_Dedup(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	cmd := &discordgo.ApplicationCommand{Name: "songbird"}
	r.RegisterCommand("songbird", cmd, func(Responder, *discordgo.InteractionCreate) {})
	r.RegisterCommand("songbird/play", cmd, func(Responder, *discordgo.InteractionCreate) {})
	r.RegisterHandler("songbird/stop", func(Responder, *discordgo.InteractionCreate) {})

	cmds := r.ApplicationCommands()
	if len(cmds) != 1 {
		t.Fatalf("expected 1 deduplicated command, got %d", len(cmds))
	}
	if cmds[0].Name != "songbird" {
		t.Errorf("command name = %q, want songbird", cmds[0].Name)
	}
}

func TestCommandRouter_HandleSubcommand(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	var got string
	r.RegisterHandler("songbird/play", func(Responder, *discordgo.InteractionCreate) { got = "play" })
	r.RegisterHandler("songbird", func(Responder, *discordgo.InteractionCreate) { got = "root" })

	r.Handle(&recorder{}, commandInteraction(discordgo.InteractionApplicationCommand, "songbird", "play"))
	if got != "play" {
		t.Errorf("dispatched to %q, want play", got)
	}
	r.Handle(&recorder{}, commandInteraction(discordgo.InteractionApplicationCommand, "songbird", ""))
	if got != "root" {
		t.Errorf("dispatched to %q, want root", got)
	}
}

func TestCommandRouter_UnknownCommand(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	rec := &recorder{}
	r.Handle(rec, commandInteraction(discordgo.InteractionApplicationCommand, "nope", ""))

	if len(rec.responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(rec.responses))
	}
	resp := rec.responses[0]
	if resp.Data.Content != "Unknown command." || resp.Data.Flags != discordgo.MessageFlagsEphemeral {
		t.Errorf("response = %+v", resp.Data)
	}
}

func TestCommandRouter_Autocomplete(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	called := false
	r.RegisterAutocomplete("songbird/replay", func(Responder, *discordgo.InteractionCreate) { called = true })

	r.Handle(&recorder{}, commandInteraction(discordgo.InteractionApplicationCommandAutocomplete, "songbird", "replay"))
	if !called {
		t.Error("autocomplete handler not called")
	}

	rec := &recorder{}
	r.Handle(rec, commandInteraction(discordgo.InteractionApplicationCommandAutocomplete, "songbird", "unbind"))
	if len(rec.responses) != 1 || rec.responses[0].Type != discordgo.InteractionApplicationCommandAutocompleteResult {
		t.Fatalf("expected an empty autocomplete result, got %+v", rec.responses)
	}
	if len(rec.responses[0].Data.Choices) != 0 {
		t.Errorf("choices = %d, want 0", len(rec.responses[0].Data.Choices))
	}
}

// ─── Responses ───────────────────────────────────────────────────────────────

func TestRespondChoices_Limit(t *testing.T) {
	t.Parallel()

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 40)
	for i := range choices {
		choices[i] = &discordgo.ApplicationCommandOptionChoice{Name: "c", Value: "c"}
	}
	rec := &recorder{}
	RespondChoices(rec, commandInteraction(discordgo.InteractionApplicationCommandAutocomplete, "songbird", "replay"), choices)

	if got := len(rec.responses[0].Data.Choices); got != MaxChoices {
		t.Errorf("choices = %d, want %d", got, MaxChoices)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("short"); got != "short" {
		t.Errorf("Truncate(short) = %q", got)
	}
	long := strings.Repeat("ä", MaxMessageLength+10)
	got := []rune(Truncate(long))
	if len(got) != MaxMessageLength {
		t.Errorf("len = %d, want %d", len(got), MaxMessageLength)
	}
	if got[len(got)-1] != '…' {
		t.Errorf("last rune = %q, want ellipsis", got[len(got)-1])
	}
}

func TestDeferAndFollowUp(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	i := commandInteraction(discordgo.InteractionApplicationCommand, "songbird", "play")
	DeferReply(rec, i)
	FollowUp(rec, i, "SONGBIRD: Playing 'rain'")

	if len(rec.responses) != 1 || rec.responses[0].Type != discordgo.InteractionResponseDeferredChannelMessageWithSource {
		t.Fatalf("defer response = %+v", rec.responses)
	}
	if len(rec.followUps) != 1 || rec.followUps[0].Content != "SONGBIRD: Playing 'rain'" {
		t.Fatalf("follow-ups = %+v", rec.followUps)
	}
}

func TestNew_RequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(t.Context(), Config{}); err == nil {
		t.Error("expected error for empty token")
	}
}
