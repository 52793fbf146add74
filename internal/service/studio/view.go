package studio

import (
	"github.com/dustin/go-humanize"

	"github.com/zhouzirui/affirmation-studio/backend/internal/model/affirmation"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/apperr"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/speech"
	"github.com/zhouzirui/affirmation-studio/backend/internal/service/session"
)

// NoVoicesLabel is the placeholder shown when the provider has no voices.
const NoVoicesLabel = "no voices available"

// View is the display projection of a session. It is never read back.
type View struct {
	SessionID   string                   `json:"sessionId"`
	Version     uint64                   `json:"version"`
	Mode        affirmation.Mode         `json:"mode"`
	State       affirmation.State        `json:"state"`
	Goal        string                   `json:"goal,omitempty"`
	EditText    string                   `json:"editText"`
	Message     string                   `json:"message,omitempty"`
	Items       []affirmation.Item       `json:"items"`
	Suggestions []affirmation.Suggestion `json:"suggestions"`
	Voices      []VoiceOption            `json:"voices"`
	Audio       *AudioInfo               `json:"audio,omitempty"`
	Panels      Panels                   `json:"panels"`
	Controls    Controls                 `json:"controls"`
	Notice      *Notice                  `json:"notice,omitempty"`
}

// Panels says which parts of the page are shown.
type Panels struct {
	Goal        bool `json:"goal"`
	Editor      bool `json:"editor"`
	Items       bool `json:"items"`
	Suggestions bool `json:"suggestions"`
	Player      bool `json:"player"`
}

// Controls says which controls are enabled.
type Controls struct {
	Generate         bool `json:"generate"`
	Confirm          bool `json:"confirm"`
	Edit             bool `json:"edit"`
	ApplySuggestions bool `json:"applySuggestions"`
	SwitchMode       bool `json:"switchMode"`
	Synthesize       bool `json:"synthesize"`
	Download         bool `json:"download"`
}

// VoiceOption is one entry of the voice selector.
type VoiceOption struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled,omitempty"`
}

// AudioInfo describes the synthesized track without its payload.
type AudioInfo struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	SizeText    string `json:"sizeText"`
	VoiceID     string `json:"voiceId"`
}

// Notice is the user-visible alert for a failed action.
type Notice struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// Render projects a session snapshot to a view. It is a pure function of
// its inputs.
func Render(snap session.Snapshot, voices []speech.Voice) View {
	s := snap.Session
	view := View{
		SessionID:   s.ID,
		Version:     snap.Version,
		Mode:        s.Mode,
		State:       s.State,
		Goal:        s.Goal,
		EditText:    s.EditText,
		Message:     s.Message,
		Items:       append([]affirmation.Item{}, s.Items...),
		Suggestions: append([]affirmation.Suggestion{}, s.Pending...),
		Voices:      voiceOptions(voices),
	}

	if s.Audio != nil {
		view.Audio = &AudioInfo{
			Filename:    s.Audio.Filename,
			ContentType: s.Audio.ContentType,
			Size:        s.Audio.Size,
			SizeText:    humanize.Bytes(uint64(s.Audio.Size)),
			VoiceID:     s.Audio.VoiceID,
		}
	}

	view.Panels = panelsFor(s)
	view.Controls = controlsFor(s, snap.Busy, len(voices) > 0)
	return view
}

func voiceOptions(voices []speech.Voice) []VoiceOption {
	if len(voices) == 0 {
		return []VoiceOption{{Label: NoVoicesLabel, Disabled: true}}
	}
	out := make([]VoiceOption, 0, len(voices))
	for _, v := range voices {
		out = append(out, VoiceOption{ID: v.ID, Label: v.Label()})
	}
	return out
}

func panelsFor(s *affirmation.Session) Panels {
	custom := s.Mode == affirmation.ModeCustom
	editing := s.State == affirmation.StateEditing || s.State == affirmation.StatePendingValidation
	return Panels{
		Goal:        !custom,
		Editor:      custom && editing,
		Items:       len(s.Items) > 0 && !(custom && editing),
		Suggestions: s.State == affirmation.StateValidatedWithSuggestions,
		Player:      s.Audio != nil,
	}
}

func controlsFor(s *affirmation.Session, busy map[session.Action]bool, haveVoices bool) Controls {
	return Controls{
		Generate:         s.Mode == affirmation.ModeAI && s.State != affirmation.StateGenerating && !busy[session.ActionGenerate],
		Confirm:          s.Mode == affirmation.ModeCustom && s.State == affirmation.StateEditing && !busy[session.ActionValidate],
		Edit:             s.Mode == affirmation.ModeCustom && s.State.Validated(),
		ApplySuggestions: s.State == affirmation.StateValidatedWithSuggestions,
		SwitchMode:       true,
		Synthesize:       s.CanSynthesize() && haveVoices && !busy[session.ActionSynthesize],
		Download:         s.Audio != nil,
	}
}
