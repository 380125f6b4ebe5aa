// Package session holds per-conversation state. A session belongs to exactly
// one relay loop and is never shared across connections, so no locking.
package session

import (
	"fmt"

	"github.com/google/uuid"

	"voicebridge/internal/models"
)

// TTSSettings is the per-session voice parameter set applied to synthesis.
type TTSSettings struct {
	Exaggeration float64
	Temperature  float64
	CFGWeight    float64
	AudioPrompt  []byte
}

// DefaultTTSSettings returns the neutral voice parameters.
func DefaultTTSSettings() TTSSettings {
	return TTSSettings{
		Exaggeration: 0.5,
		Temperature:  0.8,
		CFGWeight:    0.5,
	}
}

// SettingsUpdate carries a partial settings change; nil fields keep their
// prior value.
type SettingsUpdate struct {
	Exaggeration *float64
	Temperature  *float64
	CFGWeight    *float64
	AudioPrompt  []byte
}

// Session is one logical conversation: an append-only ordered message log
// plus the voice settings for its audio replies.
type Session struct {
	id      string
	history []models.ChatMessage
	tts     TTSSettings
}

// New creates an empty session with default voice settings.
func New() *Session {
	return &Session{
		id:  uuid.NewString(),
		tts: DefaultTTSSettings(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Append adds a message to the end of the conversation log. Messages are
// never reordered or deduplicated.
func (s *Session) Append(msg models.ChatMessage) error {
	if !models.ValidRole(msg.Role) {
		return fmt.Errorf("invalid role %q", msg.Role)
	}
	s.history = append(s.history, msg)
	return nil
}

// Snapshot returns an ordered copy of the conversation log.
func (s *Session) Snapshot() []models.ChatMessage {
	out := make([]models.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of logged messages.
func (s *Session) Len() int {
	return len(s.history)
}

// Clear drops the conversation log. Voice settings are kept.
func (s *Session) Clear() {
	s.history = nil
}

// TTS returns the current voice settings.
func (s *Session) TTS() TTSSettings {
	return s.tts
}

// ApplySettings merges the non-nil fields of upd into the voice settings.
func (s *Session) ApplySettings(upd SettingsUpdate) {
	if upd.Exaggeration != nil {
		s.tts.Exaggeration = *upd.Exaggeration
	}
	if upd.Temperature != nil {
		s.tts.Temperature = *upd.Temperature
	}
	if upd.CFGWeight != nil {
		s.tts.CFGWeight = *upd.CFGWeight
	}
	if upd.AudioPrompt != nil {
		s.tts.AudioPrompt = upd.AudioPrompt
	}
}
