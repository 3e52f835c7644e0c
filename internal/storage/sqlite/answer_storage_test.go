package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

func newTestStorage(t *testing.T) *AnswerStorage {
	t.Helper()

	config := &common.StorageConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		CacheSizeMB:   8,
		WALMode:       true,
		BusyTimeoutMS: 1000,
	}

	logger := arbor.NewLogger()
	db, err := NewSQLiteDB(logger, config)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewAnswerStorage(db, logger)
}

func completeFields() models.AnswerFields {
	ts := time.Date(2025, 6, 27, 22, 26, 56, 0, time.FixedZone("IST", 5*3600+30*60))
	return models.AnswerFields{
		DetailURL:       "https://www.quora.com/What-is-Go",
		TitleText:       "What is Go?",
		BodyText:        "A compiled language.",
		RevisionURL:     "https://www.quora.com/What-is-Go/log/revision/123",
		RawTimestamp:    "June 27, 2025 at 10:26:56 PM",
		ParsedTimestamp: &ts,
	}
}

func TestUpsertPending(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	inserted, err := store.UpsertPending(ctx, "https://www.quora.com/What-is-Go/answer/Someone")
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same key again is a no-op
	inserted, err = store.UpsertPending(ctx, "https://www.quora.com/What-is-Go/answer/Someone")
	require.NoError(t, err)
	assert.False(t, inserted)

	total, err := store.CountTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestUpsertPendingRejectsEmptyKey(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.UpsertPending(context.Background(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpsertPendingDoesNotTouchCompleteRecord(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	key := "https://www.quora.com/What-is-Go/answer/Someone"
	_, err := store.UpsertPending(ctx, key)
	require.NoError(t, err)
	require.NoError(t, store.CompleteRecord(ctx, key, completeFields()))

	// Re-collection of an already-complete key leaves the record intact
	inserted, err := store.UpsertPending(ctx, key)
	require.NoError(t, err)
	assert.False(t, inserted)

	answer, err := store.GetAnswer(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.Equal(t, "What is Go?", answer.TitleText)
	assert.True(t, answer.IsComplete())
}

func TestListPendingKeys(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	keys := []string{
		"https://www.quora.com/q1/answer/A",
		"https://www.quora.com/q2/answer/A",
		"https://www.quora.com/q3/answer/A",
	}
	for _, key := range keys {
		_, err := store.UpsertPending(ctx, key)
		require.NoError(t, err)
	}

	// Complete the middle one; it must drop out of the pending list
	require.NoError(t, store.CompleteRecord(ctx, keys[1], completeFields()))

	pending, err := store.ListPendingKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{keys[0], keys[2]}, pending)
}

func TestListPendingKeysEmpty(t *testing.T) {
	store := newTestStorage(t)

	pending, err := store.ListPendingKeys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCompleteRecord(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	key := "https://www.quora.com/What-is-Go/answer/Someone"
	_, err := store.UpsertPending(ctx, key)
	require.NoError(t, err)

	fields := completeFields()
	require.NoError(t, store.CompleteRecord(ctx, key, fields))

	answer, err := store.GetAnswer(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.Equal(t, fields.DetailURL, answer.DetailURL)
	assert.Equal(t, fields.TitleText, answer.TitleText)
	assert.Equal(t, fields.BodyText, answer.BodyText)
	assert.Equal(t, fields.RevisionURL, answer.RevisionURL)
	assert.Equal(t, fields.RawTimestamp, answer.RawTimestamp)
	require.NotNil(t, answer.ParsedTimestamp)
	assert.True(t, fields.ParsedTimestamp.Equal(*answer.ParsedTimestamp))

	complete, err := store.CountComplete(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, complete)
}

func TestCompleteRecordRejectsMissingCriticalFields(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	key := "https://www.quora.com/What-is-Go/answer/Someone"
	_, err := store.UpsertPending(ctx, key)
	require.NoError(t, err)

	fields := completeFields()
	fields.BodyText = ""
	err = store.CompleteRecord(ctx, key, fields)
	assert.ErrorIs(t, err, ErrValidation)

	// The rejected write must not have touched the row
	pending, err := store.ListPendingKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{key}, pending)

	answer, err := store.GetAnswer(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.Empty(t, answer.TitleText)
}

func TestCompleteRecordUnknownKey(t *testing.T) {
	store := newTestStorage(t)

	err := store.CompleteRecord(context.Background(), "https://www.quora.com/missing", completeFields())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteRecordOptionalFieldsMayBeEmpty(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	key := "https://www.quora.com/What-is-Go/answer/Someone"
	_, err := store.UpsertPending(ctx, key)
	require.NoError(t, err)

	// Revision metadata is best-effort; only title and body are critical
	fields := models.AnswerFields{
		TitleText: "What is Go?",
		BodyText:  "A compiled language.",
	}
	require.NoError(t, store.CompleteRecord(ctx, key, fields))

	answer, err := store.GetAnswer(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.True(t, answer.IsComplete())
	assert.Empty(t, answer.RevisionURL)
	assert.Nil(t, answer.ParsedTimestamp)

	pending, err := store.ListPendingKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGetAnswerMissing(t *testing.T) {
	store := newTestStorage(t)

	answer, err := store.GetAnswer(context.Background(), "https://www.quora.com/nope")
	require.NoError(t, err)
	assert.Nil(t, answer)
}

func TestCounts(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for _, key := range []string{"https://q/1", "https://q/2", "https://q/3"} {
		_, err := store.UpsertPending(ctx, key)
		require.NoError(t, err)
	}
	require.NoError(t, store.CompleteRecord(ctx, "https://q/2", completeFields()))

	total, err := store.CountTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	complete, err := store.CountComplete(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, complete)
}
