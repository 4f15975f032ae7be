// Package submissions turns completed dialogs into stored artifacts and index records.
package submissions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"critique-backend/internal/conversation"
	"critique-backend/internal/index"
	"critique-backend/internal/queue"
	"critique-backend/internal/records"
	"critique-backend/internal/shared/metrics"
	"critique-backend/internal/shared/storage/object"
	"critique-backend/internal/shared/telemetry"
)

// EventPolicy decides how repeated game registrations by one user are stored.
type EventPolicy string

const (
	// EventAccumulate stores every registration as its own record.
	EventAccumulate EventPolicy = "accumulate"
	// EventDedupe keeps one registration per user, keyed by user handle.
	EventDedupe EventPolicy = "dedupe"
)

const (
	defaultExcerptLength = 1000
	defaultVoiceMIME     = "audio/ogg"
	textMIME             = "text/plain; charset=utf-8"
)

// Completion is a finished dialog ready to be recorded.
type Completion struct {
	User   string
	Flow   conversation.Flow
	Fields map[string]string
	Voice  *conversation.Voice
}

// FromOutcome builds a Completion from a completed engine outcome.
func FromOutcome(user string, out conversation.Outcome) Completion {
	return Completion{User: user, Flow: out.Flow, Fields: out.Fields, Voice: out.Voice}
}

// Result identifies the record a commit produced.
type Result struct {
	Collection   string
	ID           string
	ReceivedID   string
	ArtifactPath string
}

// Options tunes a Pipeline.
type Options struct {
	ExcerptLength int
	EventPolicy   EventPolicy
	Now           func() time.Time
	NewID         func() string
}

// Pipeline writes artifacts first and metadata second.
type Pipeline struct {
	store         object.ObjectStore
	index         index.Index
	publisher     queue.Client
	excerptLength int
	eventPolicy   EventPolicy
	now           func() time.Time
	newID         func() string
}

// New builds a pipeline. A nil publisher disables queue notifications.
func New(store object.ObjectStore, idx index.Index, publisher queue.Client, opts Options) *Pipeline {
	if publisher == nil {
		publisher = queue.NoopClient{}
	}
	if opts.ExcerptLength <= 0 {
		opts.ExcerptLength = defaultExcerptLength
	}
	if opts.EventPolicy != EventDedupe {
		opts.EventPolicy = EventAccumulate
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") }
	}
	return &Pipeline{
		store:         store,
		index:         idx,
		publisher:     publisher,
		excerptLength: opts.ExcerptLength,
		eventPolicy:   opts.EventPolicy,
		now:           opts.Now,
		newID:         opts.NewID,
	}
}

// Commit records c.
func (p *Pipeline) Commit(ctx context.Context, c Completion) (Result, error) {
	start := time.Now()
	defer func() { metrics.ObserveCommitDurationMs(metrics.SinceMillis(start)) }()

	var (
		res Result
		err error
	)
	switch c.Flow {
	case conversation.FlowProfile:
		res, err = p.commitProfile(ctx, c)
	case conversation.FlowReview:
		res, err = p.commitReview(ctx, c)
	case conversation.FlowEvent:
		res, err = p.commitEvent(ctx, c)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFlow, c.Flow)
	}
	if err != nil {
		metrics.IncSubmissionFailed()
		return res, err
	}

	metrics.IncSubmissionCommitted()
	telemetry.Info("submission.created", map[string]any{
		"user_id":    c.User,
		"collection": res.Collection,
		"record_id":  res.ID,
	})
	p.publish(ctx, queue.NewMessage(queue.KindSubmissionCreated, res.Collection, res.ID, c.User, res.ArtifactPath, p.now()))
	return res, nil
}

// ProfileExists reports whether user already has a reviewer profile.
func (p *Pipeline) ProfileExists(ctx context.Context, user string) (bool, error) {
	_, err := p.index.Get(ctx, records.CriticsIndex, user)
	if errors.Is(err, index.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pipeline) commitProfile(ctx context.Context, c Completion) (Result, error) {
	doc, err := records.Encode(records.ReviewerProfile{
		UserID:    c.User,
		FirstName: c.Fields[conversation.FieldFirstName],
		LastName:  c.Fields[conversation.FieldLastName],
		Phone:     c.Fields[conversation.FieldPhone],
		Timestamp: p.now(),
	})
	if err != nil {
		return Result{}, err
	}
	if err := p.index.Upsert(ctx, records.CriticsIndex, c.User, doc); err != nil {
		return Result{}, fmt.Errorf("record profile: %w", err)
	}
	return Result{Collection: records.CriticsIndex, ID: c.User}, nil
}

func (p *Pipeline) commitEvent(ctx context.Context, c Completion) (Result, error) {
	doc, err := records.Encode(records.EventRegistrant{
		UserID:           c.User,
		PlayerName:       c.Fields[conversation.FieldPlayerName],
		RegistrationDate: p.now(),
	})
	if err != nil {
		return Result{}, err
	}
	if p.eventPolicy == EventDedupe {
		if err := p.index.Upsert(ctx, records.GameIndex, c.User, doc); err != nil {
			return Result{}, fmt.Errorf("record registration: %w", err)
		}
		return Result{Collection: records.GameIndex, ID: c.User}, nil
	}
	id, err := p.index.Insert(ctx, records.GameIndex, doc)
	if err != nil {
		return Result{}, fmt.Errorf("record registration: %w", err)
	}
	return Result{Collection: records.GameIndex, ID: id}, nil
}

func (p *Pipeline) commitReview(ctx context.Context, c Completion) (Result, error) {
	kind, ok := records.ParseContentKind(c.Fields[conversation.FieldContentType])
	if !ok {
		return Result{}, fmt.Errorf("%w: content type %q", records.ErrInvalidRecord, c.Fields[conversation.FieldContentType])
	}
	now := p.now()
	receivedID := p.newID()
	path := ArtifactPath(c.Fields[conversation.FieldProgram], kind, receivedID, now)

	review := records.Review{
		UserID:      c.User,
		Program:     c.Fields[conversation.FieldProgram],
		ReceivedID:  receivedID,
		FilePath:    path,
		Timestamp:   now,
		ContentType: kind,
	}

	var (
		payload     []byte
		contentType string
	)
	switch kind {
	case records.ContentText:
		text := c.Fields[conversation.FieldContent]
		excerpt := records.Excerpt(text, p.excerptLength)
		review.TextContent = &excerpt
		payload = []byte(text)
		contentType = textMIME
	case records.ContentVoice:
		if c.Voice == nil {
			return Result{}, fmt.Errorf("%w: voice critique without payload", records.ErrInvalidRecord)
		}
		duration := c.Voice.Duration
		review.VoiceDuration = &duration
		payload = c.Voice.Data
		contentType = c.Voice.MimeType
		if contentType == "" {
			contentType = defaultVoiceMIME
		}
	}
	if err := review.Validate(); err != nil {
		return Result{}, err
	}

	if _, err := p.store.Put(ctx, path, contentType, bytes.NewReader(payload)); err != nil {
		metrics.IncArtifactWriteFailure()
		telemetry.Error("submission.artifact_write_failed", map[string]any{
			"user_id": c.User,
			"path":    path,
			"error":   err,
		})
		return Result{}, fmt.Errorf("%w: %v", ErrArtifactWrite, err)
	}

	doc, err := records.Encode(review)
	if err == nil {
		var id string
		id, err = p.index.Insert(ctx, records.CritiquesIndex, doc)
		if err == nil {
			return Result{Collection: records.CritiquesIndex, ID: id, ReceivedID: receivedID, ArtifactPath: path}, nil
		}
	}

	metrics.IncOrphanedArtifact()
	telemetry.Error("submission.orphaned_artifact", map[string]any{
		"user_id":     c.User,
		"path":        path,
		"received_id": receivedID,
		"error":       err,
	})
	p.publish(ctx, queue.NewMessage(queue.KindArtifactOrphaned, records.CritiquesIndex, "", c.User, path, now))
	return Result{ArtifactPath: path, ReceivedID: receivedID}, &OrphanedArtifactError{Path: path, User: c.User, Err: err}
}

func (p *Pipeline) publish(ctx context.Context, msg queue.Message) {
	if err := p.publisher.Send(ctx, msg); err != nil {
		telemetry.Warn("queue.publish_failed", map[string]any{
			"kind":    msg.Kind,
			"user_id": msg.UserID,
			"error":   err,
		})
	}
}
