package events

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

func TestConsoleProgressRendersItemLine(t *testing.T) {
	var buf bytes.Buffer
	progress := NewConsoleProgress(&buf)

	err := progress.onItemProcessed(context.Background(), interfaces.Event{
		Type: interfaces.EventItemProcessed,
		Payload: models.ProgressUpdate{
			WorkerID:      0,
			PartitionSize: 10,
			Processed:     5,
			Succeeded:     4,
			Failed:        1,
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "5/10")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "Success: 4")
}

func TestConsoleProgressAggregatesAcrossWorkers(t *testing.T) {
	var buf bytes.Buffer
	progress := NewConsoleProgress(&buf)

	for workerID, update := range map[int]models.ProgressUpdate{
		0: {WorkerID: 0, PartitionSize: 3, Processed: 2, Succeeded: 2},
		1: {WorkerID: 1, PartitionSize: 2, Processed: 1, Succeeded: 1},
	} {
		_ = workerID
		err := progress.onItemProcessed(context.Background(), interfaces.Event{
			Type:    interfaces.EventItemProcessed,
			Payload: update,
		})
		require.NoError(t, err)
	}

	assert.Contains(t, buf.String(), "3/5")
}

func TestConsoleProgressRendersCollectLine(t *testing.T) {
	var buf bytes.Buffer
	progress := NewConsoleProgress(&buf)

	err := progress.onCollectProgress(context.Background(), interfaces.Event{
		Type: interfaces.EventCollectProgress,
		Payload: models.CollectProgress{
			Iteration:  4,
			NewLinks:   12,
			TotalLinks: 48,
			Elapsed:    30 * time.Second,
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Scroll 4")
	assert.Contains(t, out, "+12 links")
	assert.Contains(t, out, "48 total")
}

func TestConsoleProgressRendersFinalReport(t *testing.T) {
	var buf bytes.Buffer
	progress := NewConsoleProgress(&buf)

	err := progress.onRunCompleted(context.Background(), interfaces.Event{
		Type: interfaces.EventRunCompleted,
		Payload: models.RunReport{
			Mode:      "process",
			Processed: 5,
			Succeeded: 4,
			Failed:    1,
			Elapsed:   time.Minute,
			FailedKeys: []models.FailedKey{
				{Key: "https://q/d", Kind: models.KindCriticalField},
			},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "4 succeeded")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "critical_field")
	assert.Contains(t, out, "https://q/d")
}

func TestConsoleProgressRejectsWrongPayload(t *testing.T) {
	var buf bytes.Buffer
	progress := NewConsoleProgress(&buf)

	err := progress.onItemProcessed(context.Background(), interfaces.Event{
		Type:    interfaces.EventItemProcessed,
		Payload: "not a progress update",
	})
	assert.Error(t, err)
}

func TestConsoleProgressAttach(t *testing.T) {
	var buf bytes.Buffer
	progress := NewConsoleProgress(&buf)
	svc := newTestService()

	require.NoError(t, progress.Attach(svc))

	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{
		Type: interfaces.EventRunCompleted,
		Payload: models.RunReport{
			Mode:    "collect",
			Elapsed: time.Second,
		},
	}))
	assert.Contains(t, buf.String(), "Collection complete")
}
