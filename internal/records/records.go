// Package records defines the indexed domain records and their document names.
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"critique-backend/internal/programs"
)

// Collection names as they appear in the document index and on the query API.
const (
	CriticsIndex   = "telegram_critics"
	CritiquesIndex = "telegram_critiques"
	GameIndex      = "game_registrants"
)

// Collections lists every known collection in a stable order.
func Collections() []string {
	return []string{CriticsIndex, CritiquesIndex, GameIndex}
}

// ContentKind is the payload kind of a critique.
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentVoice ContentKind = "voice"
)

// ParseContentKind maps a selection value onto a ContentKind.
func ParseContentKind(raw string) (ContentKind, bool) {
	switch ContentKind(raw) {
	case ContentText:
		return ContentText, true
	case ContentVoice:
		return ContentVoice, true
	default:
		return "", false
	}
}

var ErrInvalidRecord = errors.New("invalid record")

// ReviewerProfile is a registered critic, keyed by user handle.
type ReviewerProfile struct {
	UserID    string    `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	Timestamp time.Time `json:"timestamp"`
}

// Review is a submitted critique. TextContent is set only for text critiques and
// VoiceDuration only for voice critiques.
type Review struct {
	UserID        string      `json:"user_id"`
	Program       string      `json:"program"`
	ReceivedID    string      `json:"received_id"`
	FilePath      string      `json:"file_path"`
	Timestamp     time.Time   `json:"timestamp"`
	ContentType   ContentKind `json:"content_type"`
	TextContent   *string     `json:"text_content"`
	VoiceDuration *int        `json:"voice_duration"`
}

// Validate checks the kind/field exclusivity and the program catalogue.
func (r Review) Validate() error {
	if !programs.Valid(r.Program) {
		return fmt.Errorf("%w: unknown program %q", ErrInvalidRecord, r.Program)
	}
	switch r.ContentType {
	case ContentText:
		if r.TextContent == nil || r.VoiceDuration != nil {
			return fmt.Errorf("%w: text critique needs text_content only", ErrInvalidRecord)
		}
	case ContentVoice:
		if r.VoiceDuration == nil || r.TextContent != nil || r.FilePath == "" {
			return fmt.Errorf("%w: voice critique needs voice_duration and file_path only", ErrInvalidRecord)
		}
	default:
		return fmt.Errorf("%w: unknown content type %q", ErrInvalidRecord, r.ContentType)
	}
	return nil
}

// EventRegistrant is a game registration.
type EventRegistrant struct {
	UserID           string    `json:"user_id"`
	PlayerName       string    `json:"player_name"`
	RegistrationDate time.Time `json:"registration_date"`
}

// Encode converts a record into its schema-less document form.
func Encode(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// Decode converts a document back into a record.
func Decode[T any](doc json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(doc, &out); err != nil {
		return out, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}

// Excerpt returns at most limit runes of text.
func Excerpt(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
