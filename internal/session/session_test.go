package session

import (
	"fmt"
	"testing"

	"voicebridge/internal/models"
)

func TestAppendPreservesOrder(t *testing.T) {
	s := New()

	for i := 0; i < 5; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msg := models.ChatMessage{Role: role, Content: fmt.Sprintf("message %d", i)}
		if err := s.Append(msg); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	snap := s.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("Len = %d, want 5", len(snap))
	}
	for i, msg := range snap {
		if want := fmt.Sprintf("message %d", i); msg.Content != want {
			t.Errorf("message %d = %q, want %q", i, msg.Content, want)
		}
	}
}

func TestAppendRejectsInvalidRole(t *testing.T) {
	s := New()
	if err := s.Append(models.ChatMessage{Role: "narrator", Content: "meanwhile"}); err == nil {
		t.Error("expected error for invalid role")
	}
	if s.Len() != 0 {
		t.Errorf("rejected message was logged, Len = %d", s.Len())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	if err := s.Append(models.ChatMessage{Role: models.RoleUser, Content: "original"}); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	snap[0].Content = "mutated"

	if s.Snapshot()[0].Content != "original" {
		t.Error("snapshot mutation leaked into the session log")
	}
}

func TestClearKeepsSettings(t *testing.T) {
	s := New()
	if err := s.Append(models.ChatMessage{Role: models.RoleUser, Content: "hi"}); err != nil {
		t.Fatal(err)
	}

	exaggeration := 1.5
	s.ApplySettings(SettingsUpdate{Exaggeration: &exaggeration, AudioPrompt: []byte("voice")})

	s.Clear()

	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d", s.Len())
	}
	if got := s.TTS(); got.Exaggeration != 1.5 || string(got.AudioPrompt) != "voice" {
		t.Errorf("voice settings lost on Clear: %+v", got)
	}

	// The session stays usable after a clear.
	if err := s.Append(models.ChatMessage{Role: models.RoleUser, Content: "again"}); err != nil {
		t.Fatalf("Append() after Clear error: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d", s.Len())
	}
}

func TestApplySettingsPartialUpdate(t *testing.T) {
	s := New()

	temperature := 2.0
	s.ApplySettings(SettingsUpdate{Temperature: &temperature})

	got := s.TTS()
	def := DefaultTTSSettings()
	if got.Temperature != 2.0 {
		t.Errorf("Temperature = %v", got.Temperature)
	}
	if got.Exaggeration != def.Exaggeration || got.CFGWeight != def.CFGWeight {
		t.Errorf("untouched fields changed: %+v", got)
	}

	// Zero-valued update changes nothing.
	s.ApplySettings(SettingsUpdate{})
	if s.TTS().Temperature != 2.0 {
		t.Error("empty update reset a field")
	}
}

func TestNewSessionsHaveDistinctIDs(t *testing.T) {
	a, b := New(), New()
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("ids %q and %q", a.ID(), b.ID())
	}
	got, def := a.TTS(), DefaultTTSSettings()
	if got.Exaggeration != def.Exaggeration || got.Temperature != def.Temperature || got.CFGWeight != def.CFGWeight {
		t.Errorf("defaults = %+v", got)
	}
}
