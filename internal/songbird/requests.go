package songbird

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// PlaySoundRequest asks for a sound matching a free-text description.
type PlaySoundRequest struct {
	Description string `json:"sound_description" jsonschema:"what the sound should be, e.g. 'thunder rolling' or 'play it again'" validate:"notblank"`
	ReplayMode  string `json:"replay_mode,omitempty" jsonschema:"again: prefer the local cache; new: always fetch a fresh sound; auto (default): decide from the description" validate:"omitempty,oneof=again new auto"`
	Context     string `json:"context,omitempty" jsonschema:"optional conversational context, logged only"`
}

// ControlRequest is a free-text playback command.
type ControlRequest struct {
	VoiceCommand string `json:"voice_command" jsonschema:"e.g. 'stop', 'pause', 'resume', 'mute', 'volume up', 'volume to 40%'"`
}

// BindSoundRequest binds the sound played last to a phrase.
type BindSoundRequest struct {
	Phrase string `json:"bind_phrase" jsonschema:"the phrase that should replay the current sound" validate:"notblank"`
}

// BindMultipleRequest binds cached sounds, looked up by name, to a phrase.
type BindMultipleRequest struct {
	SoundNames []string `json:"sound_names" jsonschema:"readable names of cached sounds" validate:"required,min=1"`
	Phrase     string   `json:"bind_phrase" jsonschema:"the phrase that should replay one of the sounds" validate:"notblank"`
}

// ReplayBoundRequest plays one sound bound to a phrase.
type ReplayBoundRequest struct {
	Phrase string `json:"phrase" jsonschema:"a previously bound phrase" validate:"notblank"`
}

// UnbindRequest removes every sound bound to a phrase.
type UnbindRequest struct {
	Phrase string `json:"phrase" jsonschema:"the phrase to remove" validate:"notblank"`
}

// newValidator returns a validator with the non-standard notblank rule
// registered.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic("songbird: register notblank validator: " + err.Error())
	}
	return v
}

// invalidField returns the name of the first field that failed validation,
// or "" when err is not a validation error.
func invalidField(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].StructField()
	}
	return ""
}
