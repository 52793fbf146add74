package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/affirmation-studio/backend/internal/model/affirmation"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/apperr"
)

var (
	ErrSessionNotFound = apperr.New(apperr.NotFound, "session", "session not found")
	ErrActionInFlight  = apperr.New(apperr.Conflict, "session", "action already in progress")
)

// Action names a control whose network call must not run twice at once.
type Action string

const (
	ActionGenerate   Action = "generate"
	ActionValidate   Action = "confirm"
	ActionSynthesize Action = "synthesize"
)

// Snapshot is a copy of a session plus the actions currently in flight.
// Version grows with every change to either, so later snapshots of the
// same session always carry a higher or equal version.
type Snapshot struct {
	Session *affirmation.Session
	Busy    map[Action]bool
	Version uint64
}

type entry struct {
	mu      sync.Mutex
	session *affirmation.Session
	busy    map[Action]bool
	version uint64
}

func (e *entry) snapshot() Snapshot {
	busy := make(map[Action]bool, len(e.busy))
	for action, on := range e.busy {
		if on {
			busy[action] = true
		}
	}
	return Snapshot{Session: e.session.Clone(), Busy: busy, Version: e.version}
}

// Service keeps studio sessions in memory for the lifetime of the process.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewService bootstraps the in-memory session registry.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]*entry),
	}
}

// Create provisions an empty session in the initial state of mode.
func (s *Service) Create(_ context.Context, mode affirmation.Mode) (Snapshot, error) {
	if mode == "" {
		mode = affirmation.ModeAI
	}
	mode, err := affirmation.ParseMode(string(mode))
	if err != nil {
		return Snapshot{}, err
	}

	e := &entry{
		session: affirmation.NewSession(uuid.NewString(), mode),
		busy:    make(map[Action]bool),
		version: 1,
	}

	s.mu.Lock()
	s.sessions[e.session.ID] = e
	s.mu.Unlock()

	return e.snapshot(), nil
}

func (s *Service) lookup(sessionID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// Get retrieves a copy of a session by identifier.
func (s *Service) Get(_ context.Context, sessionID string) (Snapshot, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// Update runs fn with exclusive access to the session. The returned
// snapshot reflects the session after fn, whether or not fn failed.
func (s *Service) Update(_ context.Context, sessionID string, fn func(*affirmation.Session) error) (Snapshot, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	err = fn(e.session)
	e.version++
	return e.snapshot(), err
}

// Begin marks action as in flight for the session. The returned release
// must be called once the action's call has resolved or failed.
func (s *Service) Begin(_ context.Context, sessionID string, action Action) (release func(), err error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy[action] {
		return nil, ErrActionInFlight
	}
	e.busy[action] = true
	e.version++

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.busy, action)
			e.version++
			e.mu.Unlock()
		})
	}, nil
}

// Delete discards a session.
func (s *Service) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// Count reports how many sessions are live.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
