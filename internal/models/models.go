package models

// Chat roles shared across all provider families.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ValidRole reports whether role is one of the known chat roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ChatMessage is a single conversational message in the unified schema.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Transcription output formats accepted by the STT backend.
const (
	FormatPlainText     = "plain_text"
	FormatFormattedText = "formatted_text"
	FormatSRT           = "srt"
	FormatVTT           = "vtt"
)

// ValidTranscriptionFormat reports whether format is a known output format.
func ValidTranscriptionFormat(format string) bool {
	switch format {
	case FormatPlainText, FormatFormattedText, FormatSRT, FormatVTT:
		return true
	}
	return false
}

// TranscriptionRequest describes one speech-to-text call.
type TranscriptionRequest struct {
	Audio          []byte
	Language       string // empty means auto-detect
	Model          string
	Format         string
	WordTimestamps bool
}

// Valid ranges for the synthesis knobs.
const (
	MinExaggeration = 0.25
	MaxExaggeration = 2.0
	MinTemperature  = 0.05
	MaxTemperature  = 5.0
	MinCFGWeight    = 0.0
	MaxCFGWeight    = 1.0
)

// SynthesisRequest describes one text-to-speech call.
type SynthesisRequest struct {
	Text         string
	Exaggeration float64
	Temperature  float64
	CFGWeight    float64
	AudioPrompt  []byte // optional voice-cloning reference, WAV
}
