// Package workerproc audits submission events published by the pipeline: a created
// submission must be readable from the index and its artifact from the object store,
// and an orphaned artifact is confirmed for operators to reconcile by hand.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"critique-backend/internal/index"
	"critique-backend/internal/queue"
	"critique-backend/internal/shared/storage/object"
	"critique-backend/internal/shared/telemetry"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrInvalidMessage indicates a decoded message that cannot be audited.
type ErrInvalidMessage struct {
	Meta   MessageMeta
	Kind   string
	Reason string
}

func (e ErrInvalidMessage) Error() string {
	return fmt.Sprintf("invalid %q message: %s", e.Kind, e.Reason)
}

// ErrMissingDocument means a submission.created message points at a record the index does
// not hold. Redelivery cannot fix it.
type ErrMissingDocument struct {
	Collection string
	RecordID   string
}

func (e ErrMissingDocument) Error() string {
	return fmt.Sprintf("document %s/%s not found", e.Collection, e.RecordID)
}

// ErrProcess indicates a transient failure after successful parsing.
type ErrProcess struct {
	Kind     string
	RecordID string
	Err      error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "audit " + e.Kind
	}
	return "audit " + e.Kind + ": " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err means the message should be deleted rather than
// redelivered.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		invalid ErrInvalidMessage
		missing ErrMissingDocument
	)
	return errors.As(err, &empty) || errors.As(err, &decode) ||
		errors.As(err, &invalid) || errors.As(err, &missing)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	switch msg.Kind {
	case queue.KindSubmissionCreated:
		if strings.TrimSpace(msg.Collection) == "" || strings.TrimSpace(msg.RecordID) == "" {
			return msg, meta, ErrInvalidMessage{Meta: meta, Kind: msg.Kind, Reason: "missing collection or record id"}
		}
	case queue.KindArtifactOrphaned:
		if strings.TrimSpace(msg.ArtifactPath) == "" {
			return msg, meta, ErrInvalidMessage{Meta: meta, Kind: msg.Kind, Reason: "missing artifact path"}
		}
	default:
		return msg, meta, ErrInvalidMessage{Meta: meta, Kind: msg.Kind, Reason: "unknown kind"}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// Auditor checks queue messages against the index and the object store.
type Auditor struct {
	Index index.Index
	Store object.ObjectStore
}

func NewAuditor(idx index.Index, store object.ObjectStore) *Auditor {
	return &Auditor{Index: idx, Store: store}
}

// HandleMessage parses, validates, and audits a message payload.
func HandleMessage(ctx context.Context, a *Auditor, body string) error {
	if a == nil || a.Index == nil || a.Store == nil {
		return errors.New("auditor not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}
	return a.Audit(ctx, msg)
}

// Audit runs the check for msg's kind.
func (a *Auditor) Audit(ctx context.Context, msg queue.Message) error {
	switch msg.Kind {
	case queue.KindSubmissionCreated:
		return a.auditCreated(ctx, msg)
	case queue.KindArtifactOrphaned:
		return a.auditOrphan(ctx, msg)
	default:
		return ErrInvalidMessage{Kind: msg.Kind, Reason: "unknown kind"}
	}
}

func (a *Auditor) auditCreated(ctx context.Context, msg queue.Message) error {
	if _, err := a.Index.Get(ctx, msg.Collection, msg.RecordID); err != nil {
		if errors.Is(err, index.ErrNotFound) || errors.Is(err, index.ErrUnknownCollection) {
			return ErrMissingDocument{Collection: msg.Collection, RecordID: msg.RecordID}
		}
		return ErrProcess{Kind: msg.Kind, RecordID: msg.RecordID, Err: err}
	}
	if msg.ArtifactPath == "" {
		return nil
	}
	if err := a.readable(ctx, msg.ArtifactPath); err != nil {
		return ErrProcess{Kind: msg.Kind, RecordID: msg.RecordID, Err: err}
	}
	return nil
}

func (a *Auditor) auditOrphan(ctx context.Context, msg queue.Message) error {
	if err := a.readable(ctx, msg.ArtifactPath); err != nil {
		return ErrProcess{Kind: msg.Kind, Err: err}
	}
	telemetry.Warn("worker.orphan.confirmed", map[string]any{
		"artifact_path": msg.ArtifactPath,
		"user_id":       msg.UserID,
		"collection":    msg.Collection,
		"enqueued_at":   msg.EnqueuedAt,
	})
	return nil
}

func (a *Auditor) readable(ctx context.Context, path string) error {
	rc, err := a.Store.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer rc.Close()
	if _, err := io.CopyN(io.Discard, rc, 1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read artifact %s: %w", path, err)
	}
	return nil
}
