// Package chat adapts inbound chat platform events to the conversation engine and the
// submission pipeline.
package chat

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"critique-backend/internal/conversation"
)

// ErrBadEvent is returned for events that cannot be interpreted at all.
var ErrBadEvent = errors.New("bad chat event")

// EventType is the kind of an inbound chat event.
type EventType string

const (
	EventText      EventType = "text"
	EventVoice     EventType = "voice"
	EventSelection EventType = "selection"
	EventCommand   EventType = "command"
)

// Commands understood by the bot.
const (
	CommandStart  = "/start"
	CommandCancel = "/cancel"
)

// Main menu selections.
const (
	MenuCritics = "critics"
	MenuGame    = "game"
)

// VoicePayload carries a base64 encoded voice recording.
type VoicePayload struct {
	Data     string `json:"data"`
	Duration int    `json:"duration"`
	MimeType string `json:"mime_type"`
}

// Event is one inbound chat event.
type Event struct {
	UserID    string        `json:"user_id"`
	Type      EventType     `json:"type"`
	Text      string        `json:"text,omitempty"`
	Selection string        `json:"selection,omitempty"`
	Command   string        `json:"command,omitempty"`
	Voice     *VoicePayload `json:"voice,omitempty"`
}

// Reply is one outbound message, optionally with selectable options.
type Reply struct {
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

// Response is the webhook response body.
type Response struct {
	Replies []Reply `json:"replies"`
}

// input converts a non-command event into an engine input.
func (e Event) input() (conversation.Input, error) {
	switch e.Type {
	case EventText:
		return conversation.TextInput(e.Text), nil
	case EventSelection:
		return conversation.SelectionInput(e.Selection), nil
	case EventVoice:
		if e.Voice == nil {
			return conversation.Input{}, fmt.Errorf("%w: voice event without payload", ErrBadEvent)
		}
		data, err := base64.StdEncoding.DecodeString(e.Voice.Data)
		if err != nil {
			return conversation.Input{}, fmt.Errorf("%w: voice data: %v", ErrBadEvent, err)
		}
		return conversation.VoiceInput(conversation.Voice{
			Data:     data,
			Duration: e.Voice.Duration,
			MimeType: e.Voice.MimeType,
		}), nil
	default:
		return conversation.Input{}, fmt.Errorf("%w: unknown type %q", ErrBadEvent, e.Type)
	}
}

func (e Event) validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrBadEvent)
	}
	return nil
}
