package speech

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/affirmation-studio/backend/internal/logging"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/speech"
)

// VoiceLister is the part of the provider the catalog needs.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]speech.Voice, error)
}

// VoiceCatalog holds the voices fetched once at startup. After Load it is
// read-only.
type VoiceCatalog struct {
	mu       sync.RWMutex
	voices   []speech.Voice
	byID     map[string]speech.Voice
	loadErr  error
	loadedAt time.Time
}

// NewVoiceCatalog returns an empty catalog, optionally seeded with voices.
func NewVoiceCatalog(voices ...speech.Voice) *VoiceCatalog {
	c := &VoiceCatalog{}
	c.set(voices, nil)
	return c
}

// Load fetches the voice list. A failure is recorded and returned but
// leaves the catalog usable (and empty).
func (c *VoiceCatalog) Load(ctx context.Context, lister VoiceLister) error {
	voices, err := lister.ListVoices(ctx)
	c.set(voices, err)

	logger := logging.FromContext(ctx).WithPrefix("tts")
	if err != nil {
		logger.Error("failed to load voices", "err", err)
		return err
	}
	if len(voices) == 0 {
		logger.Warn("provider reported no voices")
	} else {
		logger.Info("voices loaded", "count", len(voices))
	}
	return nil
}

func (c *VoiceCatalog) set(voices []speech.Voice, err error) {
	byID := make(map[string]speech.Voice, len(voices))
	for _, v := range voices {
		byID[v.ID] = v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.voices = append([]speech.Voice(nil), voices...)
	c.byID = byID
	c.loadErr = err
	c.loadedAt = time.Now().UTC()
}

// Voices returns a copy of the catalog in provider order.
func (c *VoiceCatalog) Voices() []speech.Voice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]speech.Voice(nil), c.voices...)
}

// Lookup finds a voice by id.
func (c *VoiceCatalog) Lookup(id string) (speech.Voice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.byID[id]
	return v, ok
}

// Available reports whether at least one voice can be selected.
func (c *VoiceCatalog) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.voices) > 0
}

// LoadedAt reports when the catalog was last filled.
func (c *VoiceCatalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Err returns the error from the last Load, if any.
func (c *VoiceCatalog) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadErr
}
