package workerproc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"critique-backend/internal/index"
	"critique-backend/internal/queue"
	"critique-backend/internal/records"
	"critique-backend/internal/shared/storage/object/local"
)

func newAuditor(t *testing.T) (*Auditor, *index.MemoryIndex, *local.Store) {
	t.Helper()
	idx := index.NewMemoryIndex(records.Collections()...)
	store := local.New(t.TempDir())
	return NewAuditor(idx, store), idx, store
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	require.NoError(t, err)
	return string(body)
}

func TestParseMessageRejectsBadPayloads(t *testing.T) {
	_, meta, err := ParseMessage("")
	require.ErrorAs(t, err, &ErrEmptyBody{})
	require.Zero(t, meta.BodyLen)

	_, meta, err = ParseMessage("{bad")
	var decodeErr ErrDecode
	require.ErrorAs(t, err, &decodeErr)
	require.Len(t, meta.BodySHA, 64)

	_, _, err = ParseMessage(`{"kind":"something.else"}`)
	require.True(t, Unrecoverable(err))

	_, _, err = ParseMessage(`{"kind":"submission.created","collection":"telegram_critiques"}`)
	var invalid ErrInvalidMessage
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, queue.KindSubmissionCreated, invalid.Kind)

	_, _, err = ParseMessage(`{"kind":"artifact.orphaned"}`)
	require.ErrorAs(t, err, &invalid)
}

func TestAuditCreatedSubmission(t *testing.T) {
	a, idx, store := newAuditor(t)
	ctx := context.Background()

	path := "ARCHITECTURE/text/20240102_030405_abc.txt"
	_, err := store.Put(ctx, path, "text/plain", strings.NewReader("great building"))
	require.NoError(t, err)
	id, err := idx.Insert(ctx, records.CritiquesIndex, json.RawMessage(`{"user_id":"7"}`))
	require.NoError(t, err)

	msg := queue.NewMessage(queue.KindSubmissionCreated, records.CritiquesIndex, id, "7", path, time.Now())
	require.NoError(t, HandleMessage(ctx, a, encode(t, msg)))
}

func TestAuditCreatedMissingDocumentIsUnrecoverable(t *testing.T) {
	a, _, _ := newAuditor(t)
	msg := queue.NewMessage(queue.KindSubmissionCreated, records.CriticsIndex, "nope", "7", "", time.Now())

	err := HandleMessage(context.Background(), a, encode(t, msg))
	var missing ErrMissingDocument
	require.ErrorAs(t, err, &missing)
	require.True(t, Unrecoverable(err))
}

func TestAuditCreatedMissingArtifactIsRetried(t *testing.T) {
	a, idx, _ := newAuditor(t)
	ctx := context.Background()
	id, err := idx.Insert(ctx, records.CritiquesIndex, json.RawMessage(`{"user_id":"7"}`))
	require.NoError(t, err)

	msg := queue.NewMessage(queue.KindSubmissionCreated, records.CritiquesIndex, id, "7", "ARCHITECTURE/text/missing.txt", time.Now())
	err = HandleMessage(ctx, a, encode(t, msg))
	var procErr ErrProcess
	require.ErrorAs(t, err, &procErr)
	require.False(t, Unrecoverable(err))
}

func TestAuditOrphanConfirmsArtifact(t *testing.T) {
	a, _, store := newAuditor(t)
	ctx := context.Background()
	path := "URBANISM/voice/20240102_030405_abc.ogg"
	_, err := store.Put(ctx, path, "audio/ogg", strings.NewReader("OggS"))
	require.NoError(t, err)

	msg := queue.NewMessage(queue.KindArtifactOrphaned, records.CritiquesIndex, "", "7", path, time.Now())
	require.NoError(t, HandleMessage(ctx, a, encode(t, msg)))

	msg.ArtifactPath = "URBANISM/voice/gone.ogg"
	require.Error(t, HandleMessage(ctx, a, encode(t, msg)))
}

func TestHandleMessageUsesParsedContext(t *testing.T) {
	a, _, store := newAuditor(t)
	ctx := context.Background()
	path := "DESIGN/text/x.txt"
	_, err := store.Put(ctx, path, "text/plain", strings.NewReader("x"))
	require.NoError(t, err)

	msg := queue.NewMessage(queue.KindArtifactOrphaned, records.CritiquesIndex, "", "7", path, time.Now())
	require.NoError(t, HandleMessage(WithParsedMessage(ctx, msg), a, "ignored"))
}

func TestHandleMessageRequiresAuditor(t *testing.T) {
	err := HandleMessage(context.Background(), nil, "{}")
	require.Error(t, err)
	require.False(t, errors.Is(err, index.ErrNotFound))
}
