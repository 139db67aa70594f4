package models

import (
	"errors"
	"time"
)

// EventType tags the variant of an inbound chat event.
type EventType string

const (
	// EventText is a plain text message from a user.
	EventText EventType = "text"
	// EventVoice is a voice message carrying a file reference and duration.
	EventVoice EventType = "voice"
	// EventCallback is a button press carrying a discrete choice token.
	EventCallback EventType = "callback"
)

// Validation errors for inbound events. A malformed event is rejected
// before it enters the conversation state machine.
var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMissingUserID    = errors.New("event user id is required")
	ErrMissingMessageID = errors.New("event message id is required")
	ErrMissingText      = errors.New("text is required for text events")
	ErrMissingVoice     = errors.New("voice payload is required for voice events")
	ErrMissingVoiceRef  = errors.New("voice file reference is required for voice events")
	ErrMissingCallback  = errors.New("callback data is required for callback events")
)

// UserInfo identifies the sender of an inbound event.
type UserInfo struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// VoiceInfo carries the payload of a voice event.
type VoiceInfo struct {
	FileRef  string `json:"file_ref"`
	Duration int    `json:"duration"` // seconds
}

// InboundEvent is the abstracted chat event delivered by a platform
// adapter. Each variant carries only the fields it needs; consumers
// dispatch on Type.
type InboundEvent struct {
	Type         EventType  `json:"type"`
	User         UserInfo   `json:"user"`
	Text         string     `json:"text,omitempty"`
	Voice        *VoiceInfo `json:"voice,omitempty"`
	CallbackData string     `json:"callback_data,omitempty"`
	MessageID    int64      `json:"message_id"`
	Timestamp    time.Time  `json:"timestamp"`
}

// Validate checks the event carries the fields its variant requires.
func (e *InboundEvent) Validate() error {
	if e.User.ID == 0 {
		return ErrMissingUserID
	}
	if e.MessageID == 0 {
		return ErrMissingMessageID
	}
	switch e.Type {
	case EventText:
		if e.Text == "" {
			return ErrMissingText
		}
	case EventVoice:
		if e.Voice == nil {
			return ErrMissingVoice
		}
		if e.Voice.FileRef == "" {
			return ErrMissingVoiceRef
		}
	case EventCallback:
		if e.CallbackData == "" {
			return ErrMissingCallback
		}
	default:
		return ErrUnknownEventType
	}
	return nil
}

// BodyText returns the textual content of the event for persistence and
// brief accumulation: message text for text events, the choice token for
// callbacks, empty for voice.
func (e *InboundEvent) BodyText() string {
	switch e.Type {
	case EventCallback:
		return e.CallbackData
	default:
		return e.Text
	}
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
