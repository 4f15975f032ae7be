package queue

import (
	"encoding/json"
	"time"
)

// Message kinds.
const (
	KindSubmissionCreated = "submission.created"
	KindArtifactOrphaned  = "artifact.orphaned"
)

const messageVersion = 1

// Message is the payload sent to downstream queue consumers.
type Message struct {
	Kind         string `json:"kind"`
	Collection   string `json:"collection"`
	RecordID     string `json:"recordId,omitempty"`
	UserID       string `json:"userId"`
	ArtifactPath string `json:"artifactPath,omitempty"`
	EnqueuedAt   string `json:"enqueuedAt"`
	Version      int    `json:"version"`
}

// NewMessage stamps kind with the current time and payload version.
func NewMessage(kind, collection, recordID, userID, artifactPath string, now time.Time) Message {
	return Message{
		Kind:         kind,
		Collection:   collection,
		RecordID:     recordID,
		UserID:       userID,
		ArtifactPath: artifactPath,
		EnqueuedAt:   now.UTC().Format(time.RFC3339),
		Version:      messageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
