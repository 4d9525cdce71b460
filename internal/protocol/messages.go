package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeTranscription MessageType = "transcription"
	TypeAudioData     MessageType = "audio_data"

	TypeConversationStarted MessageType = "conversation_started"
	TypeSystemSpeaking      MessageType = "system_speaking"
	TypeAIResponse          MessageType = "ai_response"
	TypeAudioResponse       MessageType = "audio_response"
	TypeAudioChunk          MessageType = "audio_chunk"
	TypeSpeechDetected      MessageType = "speech_detected"
	TypeResponseComplete    MessageType = "response_complete"
	TypeErrorEvent          MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// Transcription carries one candidate user utterance from the client.
type Transcription struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

// AudioData carries a WAV-containerized microphone capture for
// voice-activity screening.
type AudioData struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	WAVBase64 string      `json:"wav_base64"`
}

type ConversationStarted struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type SystemSpeaking struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Speaking  bool        `json:"speaking"`
}

type AIResponse struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	Text      string      `json:"text"`
	IsFinal   bool        `json:"is_final"`
}

type AudioResponse struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	URL       string      `json:"url"`
}

type AudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	TurnID      string      `json:"turn_id"`
	Seq         int         `json:"seq"`
	ChunkBase64 string      `json:"chunk_base64"`
}

type SpeechDetected struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Detected  bool        `json:"detected"`
}

type ResponseComplete struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes and validates an inbound client payload.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeTranscription:
		var msg Transcription
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Text == "" {
			return nil, errors.New("invalid transcription")
		}
		return msg, nil
	case TypeAudioData:
		var msg AudioData
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.WAVBase64 == "" {
			return nil, errors.New("invalid audio_data")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
