package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/services/events"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()

	config := common.NewDefaultConfig()
	config.Profile.Account = "Some-User"

	logger := arbor.NewLogger()
	store := newPipelineStorage(t)
	return NewCoordinator(config, store, events.NewService(logger), logger)
}

func TestRunRejectsUnknownMode(t *testing.T) {
	coordinator := newTestCoordinator(t)

	_, err := coordinator.Run(context.Background(), "replicate", 3)
	assert.Error(t, err)
}

func TestRunProcessWithEmptyBacklog(t *testing.T) {
	coordinator := newTestCoordinator(t)

	// No browser sessions are touched when nothing is pending
	report, err := coordinator.Run(context.Background(), ModeProcess, 3)
	require.NoError(t, err)

	assert.Equal(t, ModeProcess, report.Mode)
	assert.Zero(t, report.Processed)
	assert.Zero(t, report.Failed)
	assert.NotEmpty(t, report.RunID)
}

func TestBaseDomain(t *testing.T) {
	coordinator := newTestCoordinator(t)
	assert.Equal(t, "www.quora.com", coordinator.baseDomain())
}
