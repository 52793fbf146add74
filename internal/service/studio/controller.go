package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/affirmation-studio/backend/internal/config"
	"github.com/zhouzirui/affirmation-studio/backend/internal/logging"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/affirmation"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/apperr"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/speech"
	"github.com/zhouzirui/affirmation-studio/backend/internal/service/session"
)

// TextClient drafts and reviews affirmations.
type TextClient interface {
	Generate(ctx context.Context, goal string, count int) ([]string, error)
	Validate(ctx context.Context, items []string) (affirmation.ValidationResult, error)
}

// SpeechClient turns text into an audio track.
type SpeechClient interface {
	Synthesize(ctx context.Context, text, voiceID string) (*speech.AudioResource, error)
}

// VoiceSource is the read-only voice catalog.
type VoiceSource interface {
	Voices() []speech.Voice
	Lookup(id string) (speech.Voice, bool)
}

// errStale marks a provider result that arrived after the session moved on.
var errStale = errors.New("stale result")

// Controller translates one user action at a time into calls on the text
// and speech clients and the session state machine, then re-renders.
type Controller struct {
	sessions *session.Service
	text     TextClient
	speech   SpeechClient
	voices   VoiceSource
	broker   *Broker
}

// New wires a controller. broker may be nil when nobody listens for pushes.
func New(sessions *session.Service, text TextClient, speechClient SpeechClient, voices VoiceSource, broker *Broker) *Controller {
	return &Controller{
		sessions: sessions,
		text:     text,
		speech:   speechClient,
		voices:   voices,
		broker:   broker,
	}
}

// Broker returns the view broker, if any.
func (c *Controller) Broker() *Broker {
	return c.broker
}

// Sessions reports how many sessions are open.
func (c *Controller) Sessions() int {
	return c.sessions.Count()
}

// Voices lists the selectable voices.
func (c *Controller) Voices() []speech.Voice {
	return c.voices.Voices()
}

// Open creates a session in mode.
func (c *Controller) Open(ctx context.Context, mode affirmation.Mode) (View, error) {
	snap, err := c.sessions.Create(ctx, mode)
	if err != nil {
		return View{}, err
	}
	logging.FromContext(ctx).WithPrefix("studio").Info("session opened", "session", snap.Session.ID, "mode", snap.Session.Mode)
	return Render(snap, c.voices.Voices()), nil
}

// View renders the current state of a session.
func (c *Controller) View(ctx context.Context, sessionID string) (View, error) {
	snap, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	return Render(snap, c.voices.Voices()), nil
}

// Close discards a session and ends its subscriptions.
func (c *Controller) Close(ctx context.Context, sessionID string) error {
	if err := c.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	if c.broker != nil {
		c.broker.Close(sessionID)
	}
	return nil
}

// SwitchMode moves the session to mode, clearing items, suggestions and audio.
func (c *Controller) SwitchMode(ctx context.Context, sessionID string, mode affirmation.Mode) (View, error) {
	mode, err := affirmation.ParseMode(string(mode))
	if err != nil {
		return c.respond(ctx, sessionID, err)
	}
	_, err = c.sessions.Update(ctx, sessionID, func(s *affirmation.Session) error {
		s.SwitchMode(mode)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return c.respond(ctx, sessionID, nil)
}

// Generate drafts affirmations for goal in ai mode.
func (c *Controller) Generate(ctx context.Context, sessionID, goal string, count int) (View, error) {
	if count < 0 || count > config.MaxAffirmationCount {
		return c.respond(ctx, sessionID, apperr.Invalid("generate",
			fmt.Sprintf("count must be between 1 and %d", config.MaxAffirmationCount)))
	}

	release, err := c.sessions.Begin(ctx, sessionID, session.ActionGenerate)
	if err != nil {
		return c.respond(ctx, sessionID, err)
	}
	defer release()

	var epoch uint64
	snap, err := c.sessions.Update(ctx, sessionID, func(s *affirmation.Session) error {
		if err := s.BeginGenerate(goal); err != nil {
			return err
		}
		epoch = s.Epoch
		return nil
	})
	if err != nil {
		return c.finish(ctx, sessionID, release, err)
	}
	c.publish(snap)

	lines, callErr := c.text.Generate(ctx, goal, count)

	_, err = c.sessions.Update(ctx, sessionID, func(s *affirmation.Session) error {
		if s.Epoch != epoch {
			return errStale
		}
		if callErr != nil {
			s.FailGenerate(failureMessage("could not generate affirmations", callErr))
			return callErr
		}
		return s.CompleteGenerate(lines)
	})
	return c.finish(ctx, sessionID, release, err)
}

// Confirm submits the custom text for validation.
func (c *Controller) Confirm(ctx context.Context, sessionID, text string) (View, error) {
	release, err := c.sessions.Begin(ctx, sessionID, session.ActionValidate)
	if err != nil {
		return c.respond(ctx, sessionID, err)
	}
	defer release()

	var (
		epoch uint64
		items []string
	)
	snap, err := c.sessions.Update(ctx, sessionID, func(s *affirmation.Session) error {
		if err := s.Confirm(text); err != nil {
			return err
		}
		epoch = s.Epoch
		items = affirmation.Texts(s.Items)
		return nil
	})
	if err != nil {
		return c.finish(ctx, sessionID, release, err)
	}
	c.publish(snap)

	result, callErr := c.text.Validate(ctx, items)

	_, err = c.sessions.Update(ctx, sessionID, func(s *affirmation.Session) error {
		if s.Epoch != epoch || s.State != affirmation.StatePendingValidation {
			return errStale
		}
		if callErr == nil {
			callErr = s.CompleteValidation(result)
		}
		if callErr != nil {
			s.FailValidation(failureMessage("could not validate affirmations", callErr))
			return callErr
		}
		return nil
	})
	return c.finish(ctx, sessionID, release, err)
}

// Edit returns a validated session to editing.
func (c *Controller) Edit(ctx context.Context, sessionID string) (View, error) {
	_, err := c.sessions.Update(ctx, sessionID, func(s *affirmation.Session) error {
		return s.Edit()
	})
	if errors.Is(err, session.ErrSessionNotFound) {
		return View{}, err
	}
	return c.respond(ctx, sessionID, err)
}

// ApplySuggestions replaces matched originals with the suggested texts.
func (c *Controller) ApplySuggestions(ctx context.Context, sessionID string) (View, error) {
	_, err := c.sessions.Update(ctx, sessionID, func(s *affirmation.Session) error {
		return s.ApplySuggestions()
	})
	if errors.Is(err, session.ErrSessionNotFound) {
		return View{}, err
	}
	return c.respond(ctx, sessionID, err)
}

// Synthesize reads the current items aloud with voiceID.
func (c *Controller) Synthesize(ctx context.Context, sessionID, voiceID string) (View, error) {
	const op = "synthesize"

	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" {
		return c.respond(ctx, sessionID, apperr.Invalid(op, "select a voice first"))
	}
	if _, ok := c.voices.Lookup(voiceID); !ok {
		return c.respond(ctx, sessionID, apperr.Invalid(op, fmt.Sprintf("unknown voice %q", voiceID)))
	}

	release, err := c.sessions.Begin(ctx, sessionID, session.ActionSynthesize)
	if err != nil {
		return c.respond(ctx, sessionID, err)
	}
	defer release()

	var (
		epoch uint64
		text  string
	)
	snap, err := c.sessions.Update(ctx, sessionID, func(s *affirmation.Session) error {
		if len(s.Items) == 0 {
			return apperr.Invalid(op, "generate or enter affirmations first")
		}
		if !s.CanSynthesize() {
			return apperr.New(apperr.Conflict, op, fmt.Sprintf("synthesis is not allowed while %s", s.State))
		}
		epoch = s.Epoch
		text = s.SynthesisText()
		return nil
	})
	if err != nil {
		return c.finish(ctx, sessionID, release, err)
	}
	c.publish(snap)

	audio, callErr := c.speech.Synthesize(ctx, text, voiceID)

	_, err = c.sessions.Update(ctx, sessionID, func(s *affirmation.Session) error {
		if s.Epoch != epoch || s.SynthesisText() != text {
			return errStale
		}
		if callErr != nil {
			s.Message = failureMessage("could not synthesize audio", callErr)
			return callErr
		}
		return s.SetAudio(audio)
	})
	return c.finish(ctx, sessionID, release, err)
}

// Audio returns the synthesized track of a session.
func (c *Controller) Audio(ctx context.Context, sessionID string) (*speech.AudioResource, error) {
	snap, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if snap.Session.Audio == nil {
		return nil, apperr.New(apperr.NotFound, "audio", "no audio has been synthesized yet")
	}
	return snap.Session.Audio, nil
}

// finish releases the in-flight guard before rendering so the view shows
// the control enabled again.
func (c *Controller) finish(ctx context.Context, sessionID string, release func(), err error) (View, error) {
	release()
	if errors.Is(err, errStale) {
		logging.FromContext(ctx).WithPrefix("studio").Debug("dropped stale result", "session", sessionID)
		err = nil
	}
	return c.respond(ctx, sessionID, err)
}

// respond renders the session, attaches a notice for actionErr, pushes the
// view to subscribers and returns actionErr unchanged.
func (c *Controller) respond(ctx context.Context, sessionID string, actionErr error) (View, error) {
	snap, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return View{}, err
	}

	view := Render(snap, c.voices.Voices())
	if actionErr != nil {
		view.Notice = &Notice{Kind: apperr.KindOf(actionErr), Message: noticeMessage(actionErr)}
		logger := logging.FromContext(ctx).WithPrefix("studio")
		if apperr.IsKind(actionErr, apperr.Upstream) || apperr.IsKind(actionErr, apperr.Internal) {
			keyvals := []interface{}{"session", sessionID, "err", actionErr}
			var appErr *apperr.Error
			if errors.As(actionErr, &appErr) && appErr.Body != "" {
				keyvals = append(keyvals, "status", appErr.Status, "body", appErr.Body)
			}
			logger.Error("action failed", keyvals...)
		} else {
			logger.Debug("action refused", "session", sessionID, "err", actionErr)
		}
	}
	if c.broker != nil && !c.broker.Publish(sessionID, view) {
		logging.FromContext(ctx).WithPrefix("studio").Debug("skipped out-of-date view", "session", sessionID, "version", view.Version)
	}
	return view, actionErr
}

func (c *Controller) publish(snap session.Snapshot) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(snap.Session.ID, Render(snap, c.voices.Voices()))
}

func failureMessage(prefix string, err error) string {
	return prefix + ": " + noticeMessage(err)
}

func noticeMessage(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if appErr.Message != "" {
			return appErr.Message
		}
		if appErr.Err != nil {
			return appErr.Err.Error()
		}
	}
	return err.Error()
}
