package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/browser"
	"github.com/ternarybob/colligo/internal/services/scraper"
	"golang.org/x/time/rate"
)

// Run modes
const (
	ModeCollect = "collect"
	ModeProcess = "process"
)

// Coordinator owns one run end to end: it reads the work from the store,
// fans it out to workers, and aggregates the outcome. It holds no durable
// state; interrupting a run at any point loses nothing but in-flight items.
type Coordinator struct {
	config  *common.Config
	storage interfaces.AnswerStorage
	events  interfaces.EventService
	logger  arbor.ILogger
}

// NewCoordinator creates a coordinator over the given store and event bus
func NewCoordinator(config *common.Config, storage interfaces.AnswerStorage, events interfaces.EventService, logger arbor.ILogger) *Coordinator {
	return &Coordinator{
		config:  config,
		storage: storage,
		events:  events,
		logger:  logger,
	}
}

// Run executes one run in the given mode. The returned error is fatal
// (store unreachable, collection session unusable); per-item failures are
// recorded in the report and do not produce an error.
func (c *Coordinator) Run(ctx context.Context, mode string, workers int) (models.RunReport, error) {
	switch mode {
	case ModeCollect:
		return c.runCollect(ctx)
	case ModeProcess:
		return c.runProcess(ctx, workers)
	default:
		return models.RunReport{}, fmt.Errorf("unknown mode %q", mode)
	}
}

// runCollect walks the listing with a single dedicated session and registers
// every discovered permalink as a pending record. Links harvested before an
// error are persisted regardless, so a partial collection still advances the
// durable state.
func (c *Coordinator) runCollect(ctx context.Context) (models.RunReport, error) {
	report := models.RunReport{
		RunID:   uuid.New().String(),
		Mode:    ModeCollect,
		Workers: 1,
	}
	started := time.Now()

	c.logger.Info().
		Str("run_id", report.RunID).
		Str("listing_url", c.config.ListingURL()).
		Msg("Collection run starting")

	registry := browser.NewRegistry(c.config.Browser, c.config.Browser.CollectBasePort, c.logger)
	defer registry.ReleaseAll()

	session, err := registry.Acquire(ctx, 0)
	if err != nil {
		return report, fmt.Errorf("collection session: %w", err)
	}

	extractor := scraper.NewListingExtractor(session, c.config.Collect, c.events, c.logger)
	links, collectErr := extractor.Collect(ctx, c.config.ListingURL())

	// Persist before inspecting collectErr: whatever was found is kept
	for _, link := range links {
		inserted, err := c.storage.UpsertPending(ctx, link)
		if err != nil {
			return report, fmt.Errorf("persist collected link: %w", err)
		}
		if inserted {
			report.Collected++
		}
	}

	report.Elapsed = time.Since(started)

	if collectErr != nil && !errors.Is(collectErr, context.Canceled) {
		c.logger.Error().
			Err(collectErr).
			Int("persisted", report.Collected).
			Msg("Collection aborted, partial results kept")
		return report, collectErr
	}

	c.logger.Info().
		Str("run_id", report.RunID).
		Int("discovered", len(links)).
		Int("new", report.Collected).
		Dur("elapsed", report.Elapsed).
		Msg("Collection run complete")

	c.publishCompleted(ctx, report)
	return report, nil
}

// runProcess drains the pending backlog with workerCount parallel workers,
// each on its own browser session and port.
func (c *Coordinator) runProcess(ctx context.Context, workerCount int) (models.RunReport, error) {
	report := models.RunReport{
		RunID:   uuid.New().String(),
		Mode:    ModeProcess,
		Workers: workerCount,
	}
	started := time.Now()

	keys, err := c.storage.ListPendingKeys(ctx)
	if err != nil {
		return report, fmt.Errorf("list pending: %w", err)
	}
	if len(keys) == 0 {
		c.logger.Info().Str("run_id", report.RunID).Msg("Nothing pending, run complete")
		report.Elapsed = time.Since(started)
		c.publishCompleted(ctx, report)
		return report, nil
	}

	c.logger.Info().
		Str("run_id", report.RunID).
		Int("pending", len(keys)).
		Int("workers", workerCount).
		Msg("Processing run starting")

	registry := browser.NewRegistry(c.config.Browser, c.config.Browser.ProcessBasePort, c.logger)
	defer registry.ReleaseAll()

	partitions := Partition(keys, workerCount)
	retryPolicy := NewRetryPolicy(c.config.Process)
	domain := c.baseDomain()

	results := make(chan WorkerResult, workerCount)
	var wg sync.WaitGroup

	for i, partition := range partitions {
		if len(partition) == 0 {
			continue
		}
		wg.Add(1)
		go func(id int, partition []string) {
			defer wg.Done()
			results <- c.runWorker(ctx, registry, id, partition, retryPolicy, domain)
		}(i, partition)
	}

	wg.Wait()
	close(results)

	for result := range results {
		report.Processed += result.Processed
		report.Succeeded += result.Succeeded
		report.Skipped += result.Skipped
		report.Failed += result.Failed
		report.FailedKeys = append(report.FailedKeys, result.FailedKeys...)

		if result.FatalErr != nil {
			_ = c.events.Publish(ctx, interfaces.Event{
				Type:    interfaces.EventWorkerFailed,
				Payload: result,
			})
		}
	}

	report.Elapsed = time.Since(started)

	c.logger.Info().
		Str("run_id", report.RunID).
		Int("processed", report.Processed).
		Int("succeeded", report.Succeeded).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("elapsed", report.Elapsed).
		Msg("Processing run complete")

	c.publishCompleted(ctx, report)
	return report, nil
}

// runWorker connects one worker's session and drains its partition.
// A connection failure is recorded as a worker failure; the partition's
// items stay pending for the next run.
func (c *Coordinator) runWorker(ctx context.Context, registry *browser.Registry, id int,
	partition []string, retryPolicy RetryPolicy, domain string) WorkerResult {

	_ = c.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventWorkerStarted,
		Payload: models.ProgressUpdate{WorkerID: id, PartitionSize: len(partition)},
	})

	session, err := registry.Acquire(ctx, id)
	if err != nil {
		c.logger.Error().
			Int("worker", id).
			Int("items", len(partition)).
			Err(err).
			Msg("Worker session unavailable, items stay pending")
		return WorkerResult{WorkerID: id, FatalErr: err}
	}

	fetcher := scraper.NewDetailExtractor(session, c.config.Browser, domain, c.logger)
	limiter := rate.NewLimiter(rate.Limit(c.config.Process.RatePerSecond), 1)
	worker := NewWorker(id, partition, fetcher, c.storage, limiter, retryPolicy, c.events, c.logger)
	return worker.Run(ctx)
}

func (c *Coordinator) publishCompleted(ctx context.Context, report models.RunReport) {
	_ = c.events.PublishSync(ctx, interfaces.Event{
		Type:    interfaces.EventRunCompleted,
		Payload: report,
	})
}

// baseDomain extracts the host from the configured base URL for link
// resolution in converted markdown
func (c *Coordinator) baseDomain() string {
	u, err := url.Parse(c.config.Profile.BaseURL)
	if err != nil {
		return ""
	}
	return u.Host
}
