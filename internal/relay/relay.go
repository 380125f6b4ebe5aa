// Package relay implements the duplex conversation loop driving
// transcription, chat and synthesis for one session. Events are processed
// strictly in arrival order; a failing turn is reported as an error event and
// the loop keeps reading.
package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"voicebridge/internal/models"
	"voicebridge/internal/session"
)

// Conn is the duplex transport the relay reads client events from and writes
// server events to. *websocket.Conn satisfies it.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
}

// Transcriber converts audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, req models.TranscriptionRequest) (string, error)
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req models.SynthesisRequest) ([]byte, error)
}

// Chatter produces an assistant reply for a conversation.
type Chatter interface {
	Chat(ctx context.Context, messages []models.ChatMessage, providerName, model string) (string, error)
}

// Relay owns one session's event loop.
type Relay struct {
	conn   Conn
	stt    Transcriber
	tts    Synthesizer
	llm    Chatter
	sess   *session.Session
	logger *slog.Logger
}

// New constructs a relay for one connection and its session.
func New(conn Conn, stt Transcriber, tts Synthesizer, llm Chatter, sess *session.Session) *Relay {
	return &Relay{
		conn:   conn,
		stt:    stt,
		tts:    tts,
		llm:    llm,
		sess:   sess,
		logger: slog.Default().With("session", sess.ID()),
	}
}

// Run processes client events until the transport closes. Disconnecting is
// the only way out and is not an error; it simply ends the loop.
func (r *Relay) Run(ctx context.Context) error {
	for {
		var ev ClientEvent
		if err := r.conn.ReadJSON(&ev); err != nil {
			if isDecodeError(err) {
				r.send(errorEvent(errors.New("invalid JSON")))
				continue
			}
			r.logger.Debug("transport closed", "reason", err)
			return nil
		}

		r.handle(ctx, ev)
	}
}

func (r *Relay) handle(ctx context.Context, ev ClientEvent) {
	switch ev.Type {
	case EventAudio:
		r.handleAudio(ctx, ev)
	case EventText:
		r.handleText(ctx, ev)
	case EventClear:
		r.sess.Clear()
		r.send(statusEvent("Conversation cleared"))
	case EventSettings:
		if r.applySettings(ev) {
			r.send(statusEvent("Settings updated"))
		}
	case EventPing:
		r.send(ServerEvent{Type: EventPong})
	default:
		r.send(errorEvent(fmt.Errorf("unknown event type %q", ev.Type)))
	}
}

// handleAudio runs the full turn: transcribe, chat over the whole history,
// synthesize. The emitted event order is fixed.
func (r *Relay) handleAudio(ctx context.Context, ev ClientEvent) {
	audio, err := base64.StdEncoding.DecodeString(ev.AudioBase64)
	if err != nil {
		r.send(errorEvent(fmt.Errorf("invalid audio payload: %w", err)))
		return
	}

	r.send(statusEvent("Transcribing..."))
	userText, err := r.stt.Transcribe(ctx, models.TranscriptionRequest{
		Audio:    audio,
		Language: ev.Language,
		Model:    ev.Model,
	})
	if err != nil {
		r.reportError("transcription", err)
		return
	}
	r.send(ServerEvent{Type: EventTranscription, Text: userText})

	if !r.chatTurn(ctx, userText) {
		return
	}

	if !r.speakReply(ctx) {
		return
	}
	r.send(ServerEvent{Type: EventComplete})
}

// handleText runs the chat step only; synthesis happens when requested.
func (r *Relay) handleText(ctx context.Context, ev ClientEvent) {
	if !r.chatTurn(ctx, ev.Text) {
		return
	}

	if ev.Synthesize {
		if !r.speakReply(ctx) {
			return
		}
	}
	r.send(ServerEvent{Type: EventComplete})
}

// chatTurn appends the user message, chats over the full history, appends the
// assistant reply and emits the response event. Returns false when the turn
// failed and an error event was already sent.
func (r *Relay) chatTurn(ctx context.Context, userText string) bool {
	if err := r.sess.Append(models.ChatMessage{Role: models.RoleUser, Content: userText}); err != nil {
		r.send(errorEvent(err))
		return false
	}

	r.send(statusEvent("Thinking..."))
	reply, err := r.llm.Chat(ctx, r.sess.Snapshot(), "", "")
	if err != nil {
		r.reportError("chat", err)
		return false
	}

	if err := r.sess.Append(models.ChatMessage{Role: models.RoleAssistant, Content: reply}); err != nil {
		r.send(errorEvent(err))
		return false
	}

	r.send(ServerEvent{Type: EventResponse, Text: reply})
	return true
}

// speakReply synthesizes the newest assistant message with the session's
// current voice settings and emits the audio event.
func (r *Relay) speakReply(ctx context.Context) bool {
	history := r.sess.Snapshot()
	if len(history) == 0 {
		return false
	}
	reply := history[len(history)-1]

	r.send(statusEvent("Synthesizing..."))
	tts := r.sess.TTS()
	audio, err := r.tts.Synthesize(ctx, models.SynthesisRequest{
		Text:         reply.Content,
		Exaggeration: tts.Exaggeration,
		Temperature:  tts.Temperature,
		CFGWeight:    tts.CFGWeight,
		AudioPrompt:  tts.AudioPrompt,
	})
	if err != nil {
		r.reportError("synthesis", err)
		return false
	}

	r.send(ServerEvent{
		Type:        EventAudioReply,
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
	})
	return true
}

func (r *Relay) applySettings(ev ClientEvent) bool {
	upd := session.SettingsUpdate{
		Exaggeration: ev.Exaggeration,
		Temperature:  ev.Temperature,
		CFGWeight:    ev.CFGWeight,
	}
	if ev.AudioPromptBase64 != nil {
		prompt, err := base64.StdEncoding.DecodeString(*ev.AudioPromptBase64)
		if err != nil {
			r.send(errorEvent(fmt.Errorf("invalid audio prompt: %w", err)))
			return false
		}
		upd.AudioPrompt = prompt
	}
	r.sess.ApplySettings(upd)
	return true
}

func (r *Relay) reportError(stage string, err error) {
	r.logger.Warn("turn failed", "stage", stage, "err", err)
	r.send(errorEvent(err))
}

func (r *Relay) send(ev ServerEvent) {
	if err := r.conn.WriteJSON(ev); err != nil {
		r.logger.Debug("write failed", "type", ev.Type, "err", err)
	}
}

// isDecodeError distinguishes a malformed frame, which the relay answers with
// an error event, from a transport failure, which ends the loop.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
