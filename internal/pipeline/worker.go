package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/browser"
	"github.com/ternarybob/colligo/internal/services/scraper"
	"github.com/ternarybob/colligo/internal/storage/sqlite"
	"golang.org/x/time/rate"
)

// DetailFetcher produces the full field set for one answer permalink
type DetailFetcher interface {
	Extract(ctx context.Context, sourceURL string) (models.AnswerFields, error)
}

// WorkerResult is one worker's contribution to the run report
type WorkerResult struct {
	WorkerID   int
	Processed  int
	Succeeded  int
	Skipped    int
	Failed     int
	FailedKeys []models.FailedKey
	FatalErr   error // set when the worker stopped before draining its partition
}

// Worker drains one partition of pending keys through a dedicated browser
// session. Items are strictly sequential within a worker; concurrency in the
// run comes only from running workers side by side. A fatal error (connection,
// auth loss) stops the worker and leaves its remaining items pending for the
// next run.
type Worker struct {
	id        int
	partition []string
	fetcher   DetailFetcher
	storage   interfaces.AnswerStorage
	limiter   *rate.Limiter
	retry     RetryPolicy
	events    interfaces.EventService
	logger    arbor.ILogger
}

// NewWorker creates a worker for one partition
func NewWorker(id int, partition []string, fetcher DetailFetcher, storage interfaces.AnswerStorage,
	limiter *rate.Limiter, retry RetryPolicy, events interfaces.EventService, logger arbor.ILogger) *Worker {
	return &Worker{
		id:        id,
		partition: partition,
		fetcher:   fetcher,
		storage:   storage,
		limiter:   limiter,
		retry:     retry,
		events:    events,
		logger:    logger,
	}
}

// Run processes the partition to completion, cancellation, or a fatal error.
// Cancellation is honored between items, never mid-item, so a persisted
// record is never half-written.
func (w *Worker) Run(ctx context.Context) WorkerResult {
	result := WorkerResult{WorkerID: w.id}

	w.logger.Info().
		Int("worker", w.id).
		Int("items", len(w.partition)).
		Msg("Worker started")

	for _, key := range w.partition {
		if err := ctx.Err(); err != nil {
			w.logger.Info().Int("worker", w.id).Int("processed", result.Processed).Msg("Worker cancelled")
			return result
		}

		kind, terminal := w.processItem(ctx, key, &result)
		if terminal {
			w.publishProgress(ctx, &result, key, kind)
		}

		if kind == models.KindAuthLost || kind == models.KindConnection {
			result.FatalErr = fmt.Errorf("worker %d stopped: %s on %s", w.id, kind, key)
			w.logger.Error().
				Int("worker", w.id).
				Str("kind", string(kind)).
				Str("key", key).
				Msg("Worker stopped, remaining items stay pending")
			return result
		}
	}

	w.logger.Info().
		Int("worker", w.id).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("Worker finished partition")
	return result
}

// processItem runs one key through the fetch-validate-persist sequence.
// It returns the error kind of the terminal state ("" on success or skip) and
// whether a terminal transition happened at all; an item abandoned inside the
// rate-limiter wait on cancellation reaches no terminal state and must not be
// reported as progress.
func (w *Worker) processItem(ctx context.Context, key string, result *WorkerResult) (models.ErrorKind, bool) {
	// The pending list is read once at run start; another run may have
	// completed this record in the meantime. Skipping costs no navigation,
	// so it happens before the rate limiter.
	if existing, err := w.storage.GetAnswer(ctx, key); err == nil && existing != nil && existing.IsComplete() {
		result.Processed++
		result.Skipped++
		w.logger.Debug().Int("worker", w.id).Str("key", key).Msg("Record already complete, skipping")
		return "", true
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return "", false
	}

	result.Processed++

	var fields models.AnswerFields
	err := w.retry.Execute(ctx, func(ctx context.Context) error {
		var fetchErr error
		fields, fetchErr = w.fetcher.Extract(ctx, key)
		return fetchErr
	})
	if err == nil {
		err = w.storage.CompleteRecord(ctx, key, fields)
		if err != nil {
			err = fmt.Errorf("persist %s: %w", key, err)
		}
	}

	if err != nil {
		kind := classifyError(err)
		result.Failed++
		result.FailedKeys = append(result.FailedKeys, models.FailedKey{Key: key, Kind: kind})
		w.logger.Warn().
			Int("worker", w.id).
			Str("key", key).
			Str("kind", string(kind)).
			Err(err).
			Msg("Item failed")
		return kind, true
	}

	result.Succeeded++
	return "", true
}

func (w *Worker) publishProgress(ctx context.Context, result *WorkerResult, key string, kind models.ErrorKind) {
	if w.events == nil {
		return
	}
	_ = w.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventItemProcessed,
		Payload: models.ProgressUpdate{
			WorkerID:      w.id,
			PartitionSize: len(w.partition),
			Processed:     result.Processed,
			Succeeded:     result.Succeeded,
			Skipped:       result.Skipped,
			Failed:        result.Failed,
			Key:           key,
			Kind:          kind,
		},
	})
}

// classifyError maps sentinel errors to report kinds
func classifyError(err error) models.ErrorKind {
	switch {
	case errors.Is(err, browser.ErrConnection):
		return models.KindConnection
	case errors.Is(err, scraper.ErrAuthLost):
		return models.KindAuthLost
	case errors.Is(err, scraper.ErrCriticalFieldMissing):
		return models.KindCriticalField
	case errors.Is(err, scraper.ErrNavigation):
		return models.KindNavigation
	case errors.Is(err, sqlite.ErrValidation):
		return models.KindValidation
	case errors.Is(err, sqlite.ErrNotFound):
		return models.KindStore
	default:
		return models.KindUnknown
	}
}
