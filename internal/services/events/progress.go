package events

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// ConsoleProgress renders a single in-place status line from progress events.
// It holds no pipeline state of its own: everything shown is derived from the
// published payloads, so detaching it changes nothing about a run.
type ConsoleProgress struct {
	out     io.Writer
	mu      sync.Mutex
	started time.Time
	total   int
	workers map[int]models.ProgressUpdate
}

// NewConsoleProgress creates a progress renderer writing to out
func NewConsoleProgress(out io.Writer) *ConsoleProgress {
	return &ConsoleProgress{
		out:     out,
		started: time.Now(),
		workers: make(map[int]models.ProgressUpdate),
	}
}

// Attach subscribes the renderer to the event service
func (p *ConsoleProgress) Attach(svc interfaces.EventService) error {
	if err := svc.Subscribe(interfaces.EventItemProcessed, p.onItemProcessed); err != nil {
		return err
	}
	if err := svc.Subscribe(interfaces.EventCollectProgress, p.onCollectProgress); err != nil {
		return err
	}
	return svc.Subscribe(interfaces.EventRunCompleted, p.onRunCompleted)
}

func (p *ConsoleProgress) onItemProcessed(_ context.Context, event interfaces.Event) error {
	update, ok := event.Payload.(models.ProgressUpdate)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s", event.Payload, event.Type)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.workers[update.WorkerID] = update

	var total, processed, succeeded int
	for _, w := range p.workers {
		total += w.PartitionSize
		processed += w.Processed
		succeeded += w.Succeeded
	}
	p.total = total

	elapsed := time.Since(p.started)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(processed) / elapsed.Minutes()
	}
	eta := "--"
	if rate > 0 && processed < total {
		remaining := time.Duration(float64(total-processed)/rate*60) * time.Second
		eta = remaining.Round(time.Second).String()
	}

	pct := 0.0
	if total > 0 {
		pct = float64(processed) / float64(total) * 100
	}

	fmt.Fprintf(p.out, "\rProgress: %d/%d (%.1f%%) | Success: %d | Rate: %.1f/min | ETA: %s   ",
		processed, total, pct, succeeded, rate, eta)
	return nil
}

func (p *ConsoleProgress) onCollectProgress(_ context.Context, event interfaces.Event) error {
	progress, ok := event.Payload.(models.CollectProgress)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s", event.Payload, event.Type)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\rScroll %d: +%d links (%d total) | %s elapsed   ",
		progress.Iteration, progress.NewLinks, progress.TotalLinks,
		progress.Elapsed.Round(time.Second))
	return nil
}

func (p *ConsoleProgress) onRunCompleted(_ context.Context, event interfaces.Event) error {
	report, ok := event.Payload.(models.RunReport)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s", event.Payload, event.Type)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n")
	switch report.Mode {
	case "collect":
		fmt.Fprintf(p.out, "Collection complete: %d new links in %s\n",
			report.Collected, report.Elapsed.Round(time.Second))
	default:
		fmt.Fprintf(p.out, "Run complete: %d processed, %d succeeded, %d skipped, %d failed in %s\n",
			report.Processed, report.Succeeded, report.Skipped, report.Failed,
			report.Elapsed.Round(time.Second))
		for _, fk := range report.FailedKeys {
			fmt.Fprintf(p.out, "  failed [%s]: %s\n", fk.Kind, fk.Key)
		}
	}
	return nil
}
