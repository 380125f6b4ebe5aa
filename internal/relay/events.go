package relay

// Client event types.
const (
	EventAudio    = "audio"
	EventText     = "text"
	EventClear    = "clear"
	EventSettings = "settings"
	EventPing     = "ping"
)

// Server event types.
const (
	EventStatus        = "status"
	EventTranscription = "transcription"
	EventResponse      = "response"
	EventAudioReply    = "audio"
	EventPong          = "pong"
	EventComplete      = "complete"
	EventError         = "error"
)

// ClientEvent is one inbound message on the duplex channel.
type ClientEvent struct {
	Type string `json:"type"`

	// audio
	AudioBase64 string `json:"audio_base64,omitempty"`
	Language    string `json:"language,omitempty"`
	Model       string `json:"model,omitempty"`

	// text
	Text       string `json:"text,omitempty"`
	Synthesize bool   `json:"synthesize,omitempty"`

	// settings; nil fields leave the session value untouched
	Exaggeration      *float64 `json:"exaggeration,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	CFGWeight         *float64 `json:"cfg_weight,omitempty"`
	AudioPromptBase64 *string  `json:"audio_prompt_base64,omitempty"`
}

// ServerEvent is one outbound message on the duplex channel.
type ServerEvent struct {
	Type        string `json:"type"`
	Message     string `json:"message,omitempty"`
	Text        string `json:"text,omitempty"`
	AudioBase64 string `json:"audio_base64,omitempty"`
}

func statusEvent(message string) ServerEvent {
	return ServerEvent{Type: EventStatus, Message: message}
}

func errorEvent(err error) ServerEvent {
	return ServerEvent{Type: EventError, Message: err.Error()}
}
