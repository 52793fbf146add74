package affirmation

import (
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/affirmation-studio/backend/internal/model/apperr"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/speech"
)

// Mode selects how affirmations enter the session.
type Mode string

const (
	ModeAI     Mode = "ai"
	ModeCustom Mode = "custom"
)

// ParseMode accepts the wire names of the two modes.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeAI:
		return ModeAI, nil
	case ModeCustom:
		return ModeCustom, nil
	default:
		return "", apperr.Invalid("parse mode", fmt.Sprintf("unknown mode %q", raw))
	}
}

// State is the position of a session in the mode state machine.
type State string

const (
	// ai mode
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateGenerated  State = "generated"

	// custom mode
	StateEditing                  State = "editing"
	StatePendingValidation        State = "pendingValidation"
	StateValidatedOK              State = "validatedOk"
	StateValidatedWithSuggestions State = "validatedWithSuggestions"
	StateRejected                 State = "rejected"
)

// InitialState is the state a session enters when switched to m.
func InitialState(m Mode) State {
	if m == ModeCustom {
		return StateEditing
	}
	return StateIdle
}

// Validated reports whether s is one of the post-validation states.
func (s State) Validated() bool {
	return s == StateValidatedOK || s == StateValidatedWithSuggestions || s == StateRejected
}

// Session is a single studio session. It is not safe for concurrent use;
// the session registry serializes access.
type Session struct {
	ID       string                `json:"id"`
	Mode     Mode                  `json:"mode"`
	State    State                 `json:"state"`
	Items    []Item                `json:"items"`
	Pending  []Suggestion          `json:"pendingSuggestions,omitempty"`
	Message  string                `json:"message,omitempty"`
	EditText string                `json:"editText"`
	Goal     string                `json:"goal,omitempty"`
	Audio    *speech.AudioResource `json:"audio,omitempty"`

	// Epoch increments on every mode switch so results of calls issued
	// before the switch can be recognized and dropped.
	Epoch     uint64    `json:"epoch"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSession returns an empty session in the initial state of mode.
func NewSession(id string, mode Mode) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Mode:      mode,
		State:     InitialState(mode),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}

func (s *Session) notAllowed(op string) error {
	return apperr.New(apperr.Conflict, op, fmt.Sprintf("not allowed in %s mode while %s", s.Mode, s.State))
}

// SwitchMode resets the session into the initial state of m. It always
// clears items, pending suggestions and audio, even when m is the
// current mode.
func (s *Session) SwitchMode(m Mode) {
	s.Mode = m
	s.State = InitialState(m)
	s.Items = nil
	s.Pending = nil
	s.Audio = nil
	s.Message = ""
	s.EditText = ""
	s.Goal = ""
	s.Epoch++
	s.touch()
}

// BeginGenerate marks an ai-mode generation as in flight.
func (s *Session) BeginGenerate(goal string) error {
	if s.Mode != ModeAI || s.State == StateGenerating {
		return s.notAllowed("generate")
	}
	if strings.TrimSpace(goal) == "" {
		return apperr.Invalid("generate", "goal is required")
	}
	s.Goal = strings.TrimSpace(goal)
	s.State = StateGenerating
	s.Message = ""
	s.touch()
	return nil
}

// CompleteGenerate stores freshly generated lines as the item list.
func (s *Session) CompleteGenerate(lines []string) error {
	if s.State != StateGenerating {
		return s.notAllowed("generate")
	}
	s.Items = newItems(lines, OriginGenerated)
	s.Pending = nil
	s.Audio = nil
	s.State = StateGenerated
	s.touch()
	return nil
}

// FailGenerate returns to the state before generation; previous items are kept.
func (s *Session) FailGenerate(message string) {
	if s.State != StateGenerating {
		return
	}
	if len(s.Items) > 0 {
		s.State = StateGenerated
	} else {
		s.State = StateIdle
	}
	s.Message = message
	s.touch()
}

// Confirm turns the edit text into user-entered items and waits for validation.
func (s *Session) Confirm(text string) error {
	if s.Mode != ModeCustom || s.State != StateEditing {
		return s.notAllowed("confirm")
	}
	lines := SplitLines(text)
	if len(lines) == 0 {
		return apperr.Invalid("confirm", "enter at least one affirmation")
	}
	s.EditText = text
	s.Items = newItems(lines, OriginUserEntered)
	s.Pending = nil
	s.Audio = nil
	s.Message = ""
	s.State = StatePendingValidation
	s.touch()
	return nil
}

// CompleteValidation applies the provider verdict.
func (s *Session) CompleteValidation(result ValidationResult) error {
	if s.State != StatePendingValidation {
		return s.notAllowed("validate")
	}
	s.Message = result.Message
	switch result.Status {
	case StatusOK:
		s.State = StateValidatedOK
	case StatusSuggestions:
		s.Pending = s.matchingSuggestions(result.Suggestions)
		if len(s.Pending) == 0 {
			s.Pending = nil
			s.State = StateValidatedOK
		} else {
			s.State = StateValidatedWithSuggestions
		}
	case StatusRejected:
		s.State = StateRejected
	default:
		return apperr.New(apperr.Upstream, "validate", fmt.Sprintf("unknown status %q", result.Status))
	}
	s.touch()
	return nil
}

// FailValidation puts the session back into editing with its text intact.
func (s *Session) FailValidation(message string) {
	if s.State != StatePendingValidation {
		return
	}
	s.State = StateEditing
	s.Items = nil
	s.Message = message
	s.touch()
}

// ApplySuggestions replaces every item whose text equals a pending
// suggestion's original. Unmatched items are kept verbatim.
func (s *Session) ApplySuggestions() error {
	if s.State != StateValidatedWithSuggestions {
		return s.notAllowed("apply suggestions")
	}
	s.Items = ApplySuggestions(s.Items, s.Pending)
	s.Pending = nil
	s.Audio = nil
	s.State = StateValidatedOK
	s.touch()
	return nil
}

// Edit returns a validated session to editing, re-seeding the text box
// from the current items.
func (s *Session) Edit() error {
	if s.Mode != ModeCustom || !s.State.Validated() {
		return s.notAllowed("edit")
	}
	s.EditText = strings.Join(Texts(s.Items), "\n")
	s.Pending = nil
	s.Audio = nil
	s.Message = ""
	s.State = StateEditing
	s.touch()
	return nil
}

// CanSynthesize reports whether the current items may be sent for synthesis.
func (s *Session) CanSynthesize() bool {
	if len(s.Items) == 0 {
		return false
	}
	switch s.State {
	case StateGenerated, StateValidatedOK, StateValidatedWithSuggestions:
		return true
	default:
		return false
	}
}

// SynthesisText joins the items the way they are read aloud.
func (s *Session) SynthesisText() string {
	return strings.Join(Texts(s.Items), ". ")
}

// SetAudio stores a synthesized track.
func (s *Session) SetAudio(res *speech.AudioResource) error {
	if !s.CanSynthesize() {
		return s.notAllowed("synthesize")
	}
	s.Audio = res
	s.touch()
	return nil
}

// Clone returns a deep copy safe to hand outside the registry lock.
func (s *Session) Clone() *Session {
	c := *s
	c.Items = append([]Item(nil), s.Items...)
	if s.Pending != nil {
		c.Pending = append([]Suggestion(nil), s.Pending...)
	}
	return &c
}

func (s *Session) matchingSuggestions(suggestions []Suggestion) []Suggestion {
	present := make(map[string]struct{}, len(s.Items))
	for _, item := range s.Items {
		present[item.Text] = struct{}{}
	}

	out := make([]Suggestion, 0, len(suggestions))
	for _, sg := range suggestions {
		if _, ok := present[sg.Original]; !ok {
			continue
		}
		if strings.TrimSpace(sg.Suggested) == "" {
			continue
		}
		out = append(out, sg)
	}
	return unchained(out)
}

// unchained drops every suggestion whose suggested text is the original
// of another suggestion.
func unchained(suggestions []Suggestion) []Suggestion {
	originals := make(map[string]struct{}, len(suggestions))
	for _, sg := range suggestions {
		originals[sg.Original] = struct{}{}
	}

	out := make([]Suggestion, 0, len(suggestions))
	for _, sg := range suggestions {
		if _, ok := originals[sg.Suggested]; ok && sg.Suggested != sg.Original {
			continue
		}
		out = append(out, sg)
	}
	return out
}

// ApplySuggestions returns items with every exact match of a suggestion's
// original text replaced by its suggested text. Chained suggestions are
// ignored, so applying the same suggestions to the result is a no-op.
func ApplySuggestions(items []Item, suggestions []Suggestion) []Item {
	replace := make(map[string]string, len(suggestions))
	for _, sg := range unchained(suggestions) {
		if _, seen := replace[sg.Original]; !seen {
			replace[sg.Original] = sg.Suggested
		}
	}

	out := make([]Item, len(items))
	for i, item := range items {
		if suggested, ok := replace[item.Text]; ok && suggested != item.Text {
			out[i] = Item{Text: suggested, Origin: OriginSuggestionApplied}
			continue
		}
		out[i] = item
	}
	return out
}
